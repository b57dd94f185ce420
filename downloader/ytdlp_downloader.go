package downloader

import (
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"
)

// YtdlpDownloader implements TrackDownloader on top of the yt-dlp binary via
// the go-ytdlp wrapper. The tool handles extraction and MP3 conversion; this
// type adds progress translation, error classification and result discovery.
type YtdlpDownloader struct {
	logger *log.Logger
}

// NewYtdlpDownloader creates a new YtdlpDownloader instance
func NewYtdlpDownloader(logger *log.Logger) *YtdlpDownloader {
	return &YtdlpDownloader{logger: logger}
}

// Name identifies the extractor for logging and status output.
func (d *YtdlpDownloader) Name() string {
	return "ytdlp"
}

// Download fetches the track at url into dir as an MP3 file.
func (d *YtdlpDownloader) Download(ctx context.Context, url string, dir string, callbacks ProgressCallbacks) (*DownloadResult, error) {
	startTime := time.Now()

	reportPhase(callbacks, PhaseResolving, PhaseDownloading)

	dl := ytdlp.New().
		ForceOverwrites().
		RestrictFilenames().
		NoPlaylist().
		ExtractAudio().
		AudioFormat("mp3").
		Format("bestaudio/best").
		Output(filepath.Join(dir, "%(title)s.%(ext)s"))

	dl.ProgressFunc(500*time.Millisecond, func(update ytdlp.ProgressUpdate) {
		reportProgress(callbacks, PhaseDownloading, progressFromUpdate(update))
	})

	result, err := dl.Run(ctx, url)
	if err != nil {
		derr := d.classifyError(ctx, err)
		reportError(callbacks, derr)
		return nil, derr
	}

	// The MP3 is produced by the FFmpeg post-processor, so the file on disk
	// is the source of truth rather than the filename yt-dlp reports.
	reportPhase(callbacks, PhaseDownloading, PhaseConverting)
	filePath, err := firstFileWithExt(dir, ".mp3")
	if err != nil {
		derr := NewDownloadErrorWithCause(ErrorExtractionFailure, "no audio file produced by extractor", err)
		reportError(callbacks, derr)
		return nil, derr
	}

	info, err := os.Stat(filePath)
	if err != nil {
		derr := NewDownloadErrorWithCause(ErrorFileSystemError, "failed to stat downloaded file", err)
		reportError(callbacks, derr)
		return nil, derr
	}

	meta := d.extractMetadata(result, url)
	if meta.Title == "" {
		meta.Title = strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath))
	}

	downloadResult := &DownloadResult{
		FilePath:  filePath,
		TrackMeta: meta,
		Elapsed:   time.Since(startTime),
		FileSize:  info.Size(),
		Format:    "mp3",
	}

	if callbacks.OnComplete != nil {
		callbacks.OnComplete(downloadResult)
	}

	return downloadResult, nil
}

// extractMetadata pulls track metadata out of the yt-dlp info output.
func (d *YtdlpDownloader) extractMetadata(result *ytdlp.Result, url string) *TrackMetadata {
	meta := &TrackMetadata{PermalinkURL: url}

	if result == nil {
		return meta
	}

	infos, err := result.GetExtractedInfo()
	if err != nil || len(infos) == 0 {
		if d.logger != nil {
			d.logger.Printf("No extracted info available for %s: %v", url, err)
		}
		return meta
	}

	info := infos[0]
	if info.Title != nil {
		meta.Title = *info.Title
	}
	// Prefer the tagged artist; fall back to the uploader name the way the
	// original bot did.
	if info.Artist != nil && *info.Artist != "" {
		meta.Artist = *info.Artist
	} else if info.Uploader != nil {
		meta.Artist = *info.Uploader
	}
	if info.Duration != nil {
		meta.Duration = time.Duration(*info.Duration * float64(time.Second))
	}
	if info.Thumbnail != nil {
		meta.ArtworkURL = *info.Thumbnail
	}
	if info.WebpageURL != nil && *info.WebpageURL != "" {
		meta.PermalinkURL = *info.WebpageURL
	}

	return meta
}

// classifyError maps a yt-dlp failure onto a structured DownloadError.
func (d *YtdlpDownloader) classifyError(ctx context.Context, err error) *DownloadError {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return NewDownloadErrorWithCause(ErrorTimeout, "download exceeded the configured timeout", err)
	case errors.Is(ctx.Err(), context.Canceled):
		return NewDownloadErrorWithCause(ErrorCancelled, "download was cancelled", err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "unsupported url") || strings.Contains(msg, "is not a valid url"):
		return NewDownloadErrorWithCause(ErrorInvalidURL, "extractor does not support this URL", err)
	case strings.Contains(msg, "network") || strings.Contains(msg, "connection") ||
		strings.Contains(msg, "timed out") || strings.Contains(msg, "temporary failure"):
		return NewDownloadErrorWithCause(ErrorNetworkFailure, "network failure while downloading", err)
	default:
		return NewDownloadErrorWithCause(ErrorExtractionFailure, "extractor failed to produce audio", err)
	}
}

// progressFromUpdate converts a yt-dlp progress update into the package's
// Progress representation.
func progressFromUpdate(update ytdlp.ProgressUpdate) Progress {
	progress := Progress{
		BytesProcessed: int64(update.DownloadedBytes),
		TotalBytes:     int64(update.TotalBytes),
	}

	if progress.TotalBytes > 0 {
		progress.Percentage = float64(progress.BytesProcessed) / float64(progress.TotalBytes) * 100
	}

	if !update.Started.IsZero() {
		elapsed := time.Since(update.Started)
		if elapsed > 0 {
			progress.Speed = int64(float64(progress.BytesProcessed) / elapsed.Seconds())
		}
	}

	if progress.Speed > 0 && progress.TotalBytes > progress.BytesProcessed {
		remaining := progress.TotalBytes - progress.BytesProcessed
		progress.ETA = time.Duration(remaining/progress.Speed) * time.Second
	}

	return progress
}

// firstFileWithExt returns the first file in dir carrying the extension.
func firstFileWithExt(dir, ext string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ext) {
			return filepath.Join(dir, entry.Name()), nil
		}
	}

	return "", os.ErrNotExist
}

// Callback helpers tolerate nil callbacks so implementations stay terse.

func reportPhase(callbacks ProgressCallbacks, oldPhase, newPhase Phase) {
	if callbacks.OnPhaseChange != nil {
		callbacks.OnPhaseChange(oldPhase, newPhase)
	}
}

func reportProgress(callbacks ProgressCallbacks, phase Phase, progress Progress) {
	if callbacks.OnProgress != nil {
		callbacks.OnProgress(phase, progress)
	}
}

func reportError(callbacks ProgressCallbacks, err error) {
	if callbacks.OnError != nil {
		callbacks.OnError(err)
	}
}
