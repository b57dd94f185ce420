package downloader

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lrstanley/go-ytdlp"
)

func TestProgressFromUpdate(t *testing.T) {
	update := ytdlp.ProgressUpdate{
		DownloadedBytes: 500,
		TotalBytes:      1000,
		Started:         time.Now().Add(-2 * time.Second),
	}

	progress := progressFromUpdate(update)

	if progress.BytesProcessed != 500 {
		t.Errorf("Expected 500 bytes processed, got: %d", progress.BytesProcessed)
	}
	if progress.TotalBytes != 1000 {
		t.Errorf("Expected 1000 total bytes, got: %d", progress.TotalBytes)
	}
	if progress.Percentage != 50 {
		t.Errorf("Expected 50%%, got: %v", progress.Percentage)
	}
	if progress.Speed <= 0 {
		t.Errorf("Expected positive speed, got: %d", progress.Speed)
	}
	if progress.ETA <= 0 {
		t.Errorf("Expected positive ETA, got: %v", progress.ETA)
	}
}

func TestProgressFromUpdate_NoTotal(t *testing.T) {
	update := ytdlp.ProgressUpdate{DownloadedBytes: 500}

	progress := progressFromUpdate(update)

	if progress.Percentage != 0 {
		t.Errorf("Expected 0%% without a total, got: %v", progress.Percentage)
	}
	if progress.ETA != 0 {
		t.Errorf("Expected no ETA without a total, got: %v", progress.ETA)
	}
}

func TestFirstFileWithExt(t *testing.T) {
	dir := t.TempDir()

	os.Mkdir(filepath.Join(dir, "nested.mp3"), 0o755) // directory, must be skipped
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644)
	os.WriteFile(filepath.Join(dir, "track.MP3"), []byte("x"), 0o644)

	path, err := firstFileWithExt(dir, ".mp3")
	if err != nil {
		t.Fatalf("Failed to find mp3: %v", err)
	}
	if filepath.Base(path) != "track.MP3" {
		t.Errorf("Expected case-insensitive match on track.MP3, got: %s", path)
	}
}

func TestFirstFileWithExt_NotFound(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644)

	if _, err := firstFileWithExt(dir, ".mp3"); !os.IsNotExist(err) {
		t.Errorf("Expected not-exist error, got: %v", err)
	}
}

func TestCallbackHelpers_NilSafe(t *testing.T) {
	// Nil callbacks must not panic
	reportPhase(ProgressCallbacks{}, PhaseValidating, PhaseDownloading)
	reportProgress(ProgressCallbacks{}, PhaseDownloading, Progress{})
	reportError(ProgressCallbacks{}, NewDownloadError(ErrorUnknown, "x"))

	var phaseCalls int
	callbacks := ProgressCallbacks{
		OnPhaseChange: func(oldPhase, newPhase Phase) { phaseCalls++ },
	}
	reportPhase(callbacks, PhaseValidating, PhaseDownloading)
	if phaseCalls != 1 {
		t.Errorf("Expected one phase callback, got: %d", phaseCalls)
	}
}
