package downloader

import (
	"context"
	"sync"
	"time"
)

// defaultUpdateInterval spaces out Telegram message edits; editing faster
// than this risks FLOOD_WAIT responses.
const defaultUpdateInterval = 2 * time.Second

// ProgressTracker coalesces download progress into periodic reporter updates.
// Callbacks may fire hundreds of times per second; the tracker keeps only the
// latest state and forwards it on a fixed interval.
type ProgressTracker struct {
	updateInterval time.Duration
	reporter       ProgressReporter

	mu              sync.RWMutex
	isRunning       bool
	currentPhase    Phase
	currentProgress Progress

	ctx        context.Context
	cancel     context.CancelFunc
	ticker     *time.Ticker
	updateChan chan progressUpdate
	stopChan   chan struct{}
	doneChan   chan struct{}
}

// progressUpdate represents an internal progress update
type progressUpdate struct {
	phase    Phase
	progress Progress
}

// NewProgressTracker creates a new ProgressTracker with the specified reporter
func NewProgressTracker(reporter ProgressReporter) *ProgressTracker {
	return &ProgressTracker{
		updateInterval: defaultUpdateInterval,
		reporter:       reporter,
		currentPhase:   -1, // invalid phase until the first update arrives
	}
}

// NewProgressTrackerWithInterval creates a ProgressTracker with a custom update interval
func NewProgressTrackerWithInterval(reporter ProgressReporter, interval time.Duration) *ProgressTracker {
	pt := NewProgressTracker(reporter)
	pt.updateInterval = interval
	return pt
}

// Start begins the progress tracking with periodic updates
func (pt *ProgressTracker) Start(ctx context.Context) error {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	if pt.isRunning {
		return NewDownloadError(ErrorUnknown, "progress tracker is already running")
	}

	pt.updateChan = make(chan progressUpdate, 16)
	pt.stopChan = make(chan struct{})
	pt.doneChan = make(chan struct{})

	pt.ctx, pt.cancel = context.WithCancel(ctx)
	pt.ticker = time.NewTicker(pt.updateInterval)
	pt.isRunning = true

	go pt.updateLoop()

	return nil
}

// Stop stops the progress tracking and cleans up resources
func (pt *ProgressTracker) Stop() {
	pt.mu.Lock()
	if !pt.isRunning {
		pt.mu.Unlock()
		return
	}

	select {
	case <-pt.stopChan:
		// Already closed
	default:
		close(pt.stopChan)
	}

	if pt.cancel != nil {
		pt.cancel()
	}
	pt.isRunning = false
	pt.mu.Unlock()

	// Wait for the update loop to finish
	<-pt.doneChan

	if pt.ticker != nil {
		pt.ticker.Stop()
		pt.ticker = nil
	}

	if pt.reporter != nil {
		pt.reporter.Stop()
	}
}

// UpdateProgress records the latest progress. Non-blocking: when the internal
// channel is full the update is dropped in favor of a newer one.
func (pt *ProgressTracker) UpdateProgress(phase Phase, progress Progress) {
	pt.mu.RLock()
	if !pt.isRunning {
		pt.mu.RUnlock()
		return
	}
	pt.mu.RUnlock()

	select {
	case pt.updateChan <- progressUpdate{phase: phase, progress: progress}:
	default:
	}
}

// GetCurrentProgress returns the current progress state (thread-safe)
func (pt *ProgressTracker) GetCurrentProgress() (Phase, Progress) {
	pt.mu.RLock()
	defer pt.mu.RUnlock()
	return pt.currentPhase, pt.currentProgress
}

// IsRunning returns whether the tracker is currently running
func (pt *ProgressTracker) IsRunning() bool {
	pt.mu.RLock()
	defer pt.mu.RUnlock()
	return pt.isRunning
}

// updateLoop consumes updates and drives the reporter.
func (pt *ProgressTracker) updateLoop() {
	defer close(pt.doneChan)

	for {
		select {
		case <-pt.ctx.Done():
			return

		case <-pt.stopChan:
			return

		case update := <-pt.updateChan:
			pt.mu.Lock()
			oldPhase := pt.currentPhase
			pt.currentPhase = update.phase
			pt.currentProgress = update.progress
			pt.mu.Unlock()

			// Phase transitions go out immediately rather than waiting for
			// the next tick.
			if oldPhase != update.phase && pt.reporter != nil {
				_ = pt.reporter.ReportPhaseChange(oldPhase, update.phase)
			}

		case <-pt.ticker.C:
			pt.mu.RLock()
			currentPhase := pt.currentPhase
			currentProgress := pt.currentProgress
			pt.mu.RUnlock()

			if pt.reporter != nil && currentPhase >= 0 {
				_ = pt.reporter.UpdateProgress(currentPhase, currentProgress)
			}
		}
	}
}
