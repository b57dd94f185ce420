package downloader

import (
	"context"
	"time"
)

// Phase represents the current phase of the download process
type Phase int

const (
	PhaseValidating Phase = iota
	PhaseResolving
	PhaseDownloading
	PhaseConverting
	PhaseUploading
	PhaseComplete
	PhaseError
)

// String returns the string representation of the phase
func (p Phase) String() string {
	switch p {
	case PhaseValidating:
		return "validating"
	case PhaseResolving:
		return "resolving"
	case PhaseDownloading:
		return "downloading"
	case PhaseConverting:
		return "converting"
	case PhaseUploading:
		return "uploading"
	case PhaseComplete:
		return "complete"
	case PhaseError:
		return "error"
	default:
		return "unknown"
	}
}

// Progress represents the current progress of an operation
type Progress struct {
	BytesProcessed int64         `json:"bytes_processed"`
	TotalBytes     int64         `json:"total_bytes"`
	Speed          int64         `json:"speed"` // bytes per second
	ETA            time.Duration `json:"eta"`
	Percentage     float64       `json:"percentage"`
}

// ProgressCallbacks defines callback functions for progress reporting
type ProgressCallbacks struct {
	OnProgress    func(phase Phase, progress Progress)
	OnPhaseChange func(oldPhase, newPhase Phase)
	OnError       func(err error)
	OnComplete    func(result *DownloadResult)
}

// DownloadResult contains the result of a successful download
type DownloadResult struct {
	FilePath  string         `json:"file_path"`
	TrackMeta *TrackMetadata `json:"track_meta"`
	Elapsed   time.Duration  `json:"elapsed"`
	FileSize  int64          `json:"file_size"`
	Format    string         `json:"format"`
}

// TrackMetadata contains metadata about the downloaded track
type TrackMetadata struct {
	Title        string        `json:"title"`
	Artist       string        `json:"artist"`
	Duration     time.Duration `json:"duration"`
	ArtworkURL   string        `json:"artwork_url"`
	PermalinkURL string        `json:"permalink_url"`
}

// TrackDownloader interface defines the contract for downloading tracks
type TrackDownloader interface {
	// Download fetches the track at the given URL into dir, reporting
	// progress through callbacks. The file named in the result lives inside
	// dir; the caller owns dir and removes it when done with the file.
	Download(ctx context.Context, url string, dir string, callbacks ProgressCallbacks) (*DownloadResult, error)

	// Name identifies the extractor for logging and status output.
	Name() string
}

// ProgressReporter interface defines the contract for reporting progress
type ProgressReporter interface {
	// StartTracking begins progress tracking for a specific chat and track
	StartTracking(ctx context.Context, chatID int64, trackName string) error

	// UpdateProgress reports progress for the current phase
	UpdateProgress(phase Phase, progress Progress) error

	// ReportPhaseChange reports a transition between phases
	ReportPhaseChange(oldPhase, newPhase Phase) error

	// ReportError reports an error that occurred during processing
	ReportError(err error) error

	// ReportComplete reports successful completion with summary information
	ReportComplete(duration time.Duration, filePath string) error

	// Stop stops progress tracking and cleans up resources
	Stop()
}
