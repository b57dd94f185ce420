package downloader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWorkDir_CreateAndCleanup(t *testing.T) {
	base := t.TempDir()

	workDir, err := NewWorkDir(base)
	if err != nil {
		t.Fatalf("Failed to create work dir: %v", err)
	}

	if !strings.HasPrefix(filepath.Base(workDir.Path()), "track_") {
		t.Errorf("Expected track_ prefix, got: %s", workDir.Path())
	}

	// Drop a file in the work dir, cleanup must remove it along with the dir
	filePath := filepath.Join(workDir.Path(), "audio.mp3")
	if err := os.WriteFile(filePath, []byte("data"), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	if err := workDir.Cleanup(); err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}

	if _, err := os.Stat(workDir.Path()); !os.IsNotExist(err) {
		t.Error("Expected work dir to be removed after cleanup")
	}
}

func TestWorkDir_CleanupIdempotent(t *testing.T) {
	workDir, err := NewWorkDir(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create work dir: %v", err)
	}

	if err := workDir.Cleanup(); err != nil {
		t.Fatalf("First cleanup failed: %v", err)
	}
	if err := workDir.Cleanup(); err != nil {
		t.Fatalf("Second cleanup failed: %v", err)
	}
}

func TestWorkDir_CreatesBase(t *testing.T) {
	base := filepath.Join(t.TempDir(), "nested", "downloads")

	workDir, err := NewWorkDir(base)
	if err != nil {
		t.Fatalf("Failed to create work dir under missing base: %v", err)
	}
	defer workDir.Cleanup()

	if _, err := os.Stat(base); err != nil {
		t.Errorf("Expected base directory to exist: %v", err)
	}
}

func TestWorkDir_EmptyBaseUsesTempDir(t *testing.T) {
	workDir, err := NewWorkDir("")
	if err != nil {
		t.Fatalf("Failed to create work dir with empty base: %v", err)
	}
	defer workDir.Cleanup()

	if !strings.HasPrefix(workDir.Path(), os.TempDir()) {
		t.Errorf("Expected work dir under the system temp dir, got: %s", workDir.Path())
	}
}

func TestWorkDir_Isolation(t *testing.T) {
	base := t.TempDir()

	first, err := NewWorkDir(base)
	if err != nil {
		t.Fatalf("Failed to create first work dir: %v", err)
	}
	defer first.Cleanup()

	second, err := NewWorkDir(base)
	if err != nil {
		t.Fatalf("Failed to create second work dir: %v", err)
	}
	defer second.Cleanup()

	if first.Path() == second.Path() {
		t.Error("Expected distinct directories for concurrent requests")
	}
}
