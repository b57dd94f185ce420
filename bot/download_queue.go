package bot

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// QueueRequest represents a single track download request in the queue
type QueueRequest struct {
	UniqueID    string
	SenderID    int64
	ChatID      int64
	MessageID   int
	URL         string
	Canonical   string
	RequestTime time.Time
	Status      QueueStatus
}

// QueueStatus represents the current status of a queue request
type QueueStatus int

const (
	StatusQueued QueueStatus = iota
	StatusProcessing
	StatusCompleted
	StatusFailed
)

// String returns string representation of queue status
func (s QueueStatus) String() string {
	switch s {
	case StatusQueued:
		return "queued"
	case StatusProcessing:
		return "processing"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// TrackProcessor handles a single queued download from start to finish.
type TrackProcessor interface {
	ProcessDownload(ctx context.Context, request *QueueRequest) error
}

// DownloadQueue serializes track downloads so only one runs at a time.
// Requests are deduplicated by sender, chat and message ID.
type DownloadQueue struct {
	queue           []*QueueRequest
	processing      *QueueRequest
	mu              sync.RWMutex
	logger          *log.Logger
	processor       TrackProcessor
	maxSize         int
	processingMutex sync.Mutex
	isProcessing    bool
}

// NewDownloadQueue creates a queue that hands requests to processor one at
// a time.
func NewDownloadQueue(logger *log.Logger, processor TrackProcessor, maxSize int) *DownloadQueue {
	return &DownloadQueue{
		queue:     make([]*QueueRequest, 0),
		logger:    logger,
		processor: processor,
		maxSize:   maxSize,
	}
}

// GenerateUniqueID creates a unique ID for a request
func GenerateUniqueID(senderID, chatID int64, messageID int) string {
	return fmt.Sprintf("%d:%d:%d", senderID, chatID, messageID)
}

// AddRequest adds a new request to the queue and kicks off processing.
func (dq *DownloadQueue) AddRequest(senderID, chatID int64, messageID int, url, canonical string) (*QueueRequest, error) {
	dq.mu.Lock()
	defer dq.mu.Unlock()

	if len(dq.queue) >= dq.maxSize {
		return nil, fmt.Errorf("queue is full (max %d requests)", dq.maxSize)
	}

	uniqueID := GenerateUniqueID(senderID, chatID, messageID)
	if dq.findRequestByID(uniqueID) != nil {
		return nil, fmt.Errorf("request with ID %s already exists", uniqueID)
	}

	request := &QueueRequest{
		UniqueID:    uniqueID,
		SenderID:    senderID,
		ChatID:      chatID,
		MessageID:   messageID,
		URL:         url,
		Canonical:   canonical,
		RequestTime: time.Now(),
		Status:      StatusQueued,
	}

	dq.queue = append(dq.queue, request)
	dq.logger.Printf("Added request %s to queue (position: %d)", uniqueID, len(dq.queue))

	// Start processing if not already processing
	go dq.processQueue()

	return request, nil
}

// GetQueuePosition returns the position of a request in the queue (1-based)
func (dq *DownloadQueue) GetQueuePosition(uniqueID string) int {
	dq.mu.RLock()
	defer dq.mu.RUnlock()

	for i, request := range dq.queue {
		if request.UniqueID == uniqueID {
			return i + 1
		}
	}
	return -1
}

// GetQueueSize returns the current size of the queue
func (dq *DownloadQueue) GetQueueSize() int {
	dq.mu.RLock()
	defer dq.mu.RUnlock()
	return len(dq.queue)
}

// IsProcessing returns whether a request is currently being processed
func (dq *DownloadQueue) IsProcessing() bool {
	dq.mu.RLock()
	defer dq.mu.RUnlock()
	return dq.processing != nil
}

// GetCurrentlyProcessing returns a copy of the currently processing request,
// or nil when the queue is idle. A copy is returned because the processing
// goroutine keeps mutating the original's Status under dq.mu.
func (dq *DownloadQueue) GetCurrentlyProcessing() *QueueRequest {
	dq.mu.RLock()
	defer dq.mu.RUnlock()
	if dq.processing == nil {
		return nil
	}
	snapshot := *dq.processing
	return &snapshot
}

// MaxSize returns the queue capacity
func (dq *DownloadQueue) MaxSize() int {
	return dq.maxSize
}

// GetQueueInfo returns a snapshot of all queued requests for display. The
// requests are copied so callers never observe concurrent status updates.
func (dq *DownloadQueue) GetQueueInfo() []*QueueRequest {
	dq.mu.RLock()
	defer dq.mu.RUnlock()

	info := make([]*QueueRequest, len(dq.queue))
	for i, request := range dq.queue {
		snapshot := *request
		info[i] = &snapshot
	}
	return info
}

// RequestStatus reads a request's status under the queue lock, so callers
// can poll while the processing goroutine updates it.
func (dq *DownloadQueue) RequestStatus(request *QueueRequest) QueueStatus {
	dq.mu.RLock()
	defer dq.mu.RUnlock()
	return request.Status
}

// findRequestByID finds a request by its unique ID (must be called with lock held)
func (dq *DownloadQueue) findRequestByID(uniqueID string) *QueueRequest {
	for _, request := range dq.queue {
		if request.UniqueID == uniqueID {
			return request
		}
	}
	return nil
}

// processQueue processes requests from the queue one at a time
func (dq *DownloadQueue) processQueue() {
	// Prevent multiple processing goroutines
	dq.processingMutex.Lock()
	if dq.isProcessing {
		dq.processingMutex.Unlock()
		return
	}
	dq.isProcessing = true
	dq.processingMutex.Unlock()

	defer func() {
		dq.processingMutex.Lock()
		dq.isProcessing = false
		dq.processingMutex.Unlock()
	}()

	for {
		dq.mu.Lock()
		if len(dq.queue) == 0 {
			dq.mu.Unlock()
			break
		}

		request := dq.queue[0]
		dq.queue = dq.queue[1:]
		dq.processing = request
		request.Status = StatusProcessing
		dq.mu.Unlock()

		dq.logger.Printf("Processing request %s: %s", request.UniqueID, request.URL)

		err := dq.processor.ProcessDownload(context.Background(), request)

		dq.mu.Lock()
		if err != nil {
			request.Status = StatusFailed
			dq.logger.Printf("Request %s failed: %v", request.UniqueID, err)
		} else {
			request.Status = StatusCompleted
			dq.logger.Printf("Request %s completed successfully", request.UniqueID)
		}
		dq.processing = nil
		dq.mu.Unlock()

		// Small delay between requests to avoid overwhelming
		time.Sleep(1 * time.Second)
	}

	dq.logger.Printf("Queue processing completed")
}

// GetQueueStatus returns the current queue status for display
func (dq *DownloadQueue) GetQueueStatus() string {
	dq.mu.RLock()
	defer dq.mu.RUnlock()

	status := "📊 Queue Status:\n"
	status += fmt.Sprintf("• Queue size: %d/%d\n", len(dq.queue), dq.maxSize)

	if dq.processing != nil {
		status += fmt.Sprintf("• Currently processing: %s\n", dq.processing.UniqueID)
	} else {
		status += "• Currently processing: None\n"
	}

	if len(dq.queue) > 0 {
		status += "\n📋 Queued requests:\n"
		for i, request := range dq.queue {
			status += fmt.Sprintf("%d. %s (from user %d)\n", i+1, request.UniqueID, request.SenderID)
		}
	}

	return status
}
