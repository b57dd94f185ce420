package bot

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gotd/td/tg"

	"go-scdl-bot/cache"
	"go-scdl-bot/config"
	"go-scdl-bot/downloader"
)

// TrackHandler implements CommandHandler for the /dl command and doubles as
// the plain-text handler for bare track links. It runs the whole pipeline:
// validate, gate, queue, download, send, cache.
type TrackHandler struct {
	client       *TelegramBot
	logger       *log.Logger
	errorHandler *ErrorHandler
	validator    *URLValidator
	cooldown     *CooldownGuard
	membership   *MembershipChecker
	downloader   downloader.TrackDownloader
	sender       *AudioSender
	uploadCache  *cache.UploadCache
	queue        *DownloadQueue

	downloadDir     string
	downloadTimeout time.Duration
}

// NewTrackHandler wires the download pipeline together. The returned handler
// owns the queue; register it for /dl and as the plain-text handler.
func NewTrackHandler(
	client *TelegramBot,
	logger *log.Logger,
	cfg *config.BotConfig,
	dl downloader.TrackDownloader,
	sender *AudioSender,
	uploadCache *cache.UploadCache,
	membership *MembershipChecker,
) *TrackHandler {
	handler := &TrackHandler{
		client:          client,
		logger:          logger,
		validator:       NewURLValidator(cfg.AllowedDomains),
		cooldown:        NewCooldownGuard(cfg.UserCooldown),
		membership:      membership,
		downloader:      dl,
		sender:          sender,
		uploadCache:     uploadCache,
		downloadDir:     cfg.DownloadDir,
		downloadTimeout: cfg.DownloadTimeout,
	}

	if client != nil {
		handler.errorHandler = client.GetErrorHandler()
	}

	handler.queue = NewDownloadQueue(logger, handler, cfg.MaxQueueSize)
	return handler
}

// Command returns the command string this handler processes
func (h *TrackHandler) Command() string {
	return "dl"
}

// GetQueue exposes the download queue for the /queue command
func (h *TrackHandler) GetQueue() *DownloadQueue {
	return h.queue
}

// Handle processes a /dl command or a bare track link
func (h *TrackHandler) Handle(ctx context.Context, cmdCtx *CommandContext) error {
	h.logger.Printf("Processing track request for user %d in chat %d", cmdCtx.UserID, cmdCtx.ChatID)

	timeoutCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	rawURL := strings.TrimSpace(cmdCtx.Args)
	if cmdCtx.Command == "" {
		rawURL = strings.TrimSpace(cmdCtx.Text)
	}

	if rawURL == "" {
		return h.sendErrorMessage(timeoutCtx, cmdCtx.ChatID, "Please provide a track URL, e.g. /dl https://soundcloud.com/artist/track")
	}

	// Validate the URL before anything else touches it
	ref, err := h.validator.Validate(rawURL)
	if err != nil {
		return err
	}

	// Per-user cooldown
	if ok, wait := h.cooldown.Allow(cmdCtx.UserID); !ok {
		return h.sendErrorMessage(timeoutCtx, cmdCtx.ChatID,
			fmt.Sprintf("Slow down! You can request another track in %s.", wait.Round(time.Second)))
	}

	// Required channel subscription
	if !h.membership.IsMember(timeoutCtx, cmdCtx.UserID) {
		return h.sendMessage(timeoutCtx, cmdCtx.ChatID,
			fmt.Sprintf("🔔 You need to join %s before downloading.\n\nJoin the channel, then try again.",
				h.membership.ChannelName()))
	}

	// Previously uploaded tracks are re-sent instantly from cache
	if h.trySendCached(timeoutCtx, cmdCtx.ChatID, ref.Canonical) {
		h.logger.Printf("Served %s to chat %d from upload cache", ref.Canonical, cmdCtx.ChatID)
		return nil
	}

	request, err := h.queue.AddRequest(cmdCtx.UserID, cmdCtx.ChatID, cmdCtx.MessageID, ref.RawURL, ref.Canonical)
	if err != nil {
		return h.sendErrorMessage(timeoutCtx, cmdCtx.ChatID,
			fmt.Sprintf("Could not queue your request: %v", err))
	}

	if msg := queueAckMessage(h.queue.GetQueuePosition(request.UniqueID), h.queue.IsProcessing()); msg != "" {
		return h.sendMessage(timeoutCtx, cmdCtx.ChatID, msg)
	}
	return nil
}

// queueAckMessage builds the acknowledgement for a freshly queued request.
// The processing goroutine may dequeue the request before the position is
// read, in which case (or when the queue was empty) the progress reporter
// takes over immediately and no acknowledgement is needed.
func queueAckMessage(position int, busy bool) string {
	if position < 1 {
		return ""
	}
	if position == 1 && !busy {
		return ""
	}
	return fmt.Sprintf("🎶 Queued at position %d. I'll start on it shortly.", position)
}

// trySendCached attempts to serve the track from the upload cache. Stale
// document references are evicted so the next attempt re-downloads.
func (h *TrackHandler) trySendCached(ctx context.Context, chatID int64, canonical string) bool {
	if h.uploadCache == nil {
		return false
	}

	cached, found, err := h.uploadCache.Get(canonical)
	if err != nil || !found {
		return false
	}

	if err := h.sender.SendCached(ctx, chatID, cached); err != nil {
		if IsStaleReference(err) {
			h.logger.Printf("Cached document for %s is stale, evicting", canonical)
			if delErr := h.uploadCache.Delete(canonical); delErr != nil {
				h.logger.Printf("WARN: Failed to evict stale cache entry: %v", delErr)
			}
		} else {
			h.logger.Printf("WARN: Cached send for %s failed: %v", canonical, err)
		}
		return false
	}
	return true
}

// ProcessDownload runs one queued request end to end. Called by the queue's
// processing goroutine, one request at a time.
func (h *TrackHandler) ProcessDownload(ctx context.Context, request *QueueRequest) error {
	startTime := time.Now()

	downloadCtx, cancel := context.WithTimeout(ctx, h.downloadTimeout)
	defer cancel()

	// Scoped temp directory; removed on every exit path
	workDir, err := downloader.NewWorkDir(h.downloadDir)
	if err != nil {
		fsErr := downloader.NewDownloadErrorWithCause(downloader.ErrorFileSystemError,
			"could not create download directory", err)
		h.reportFailure(request, fsErr)
		return fsErr
	}
	defer func() {
		if err := workDir.Cleanup(); err != nil {
			h.logger.Printf("WARN: Failed to clean up %s: %v", workDir.Path(), err)
		}
	}()

	// Live progress via an edited status message
	var reporter *downloader.TelegramProgressReporter
	var tracker *downloader.ProgressTracker
	if h.client != nil && h.client.GetClient() != nil {
		reporter = downloader.NewTelegramProgressReporter(h.client.GetClient().API())
		tracker = downloader.NewProgressTracker(reporter)

		if err := reporter.StartTracking(downloadCtx, request.ChatID, request.URL); err != nil {
			h.logger.Printf("WARN: Could not start progress reporting for %s: %v", request.UniqueID, err)
		}
		if err := tracker.Start(downloadCtx); err != nil {
			h.logger.Printf("WARN: Could not start progress tracker for %s: %v", request.UniqueID, err)
		}
		defer tracker.Stop()
	}

	callbacks := downloader.ProgressCallbacks{
		OnProgress: func(phase downloader.Phase, progress downloader.Progress) {
			if tracker != nil {
				tracker.UpdateProgress(phase, progress)
			}
		},
		OnPhaseChange: func(oldPhase, newPhase downloader.Phase) {
			if reporter == nil {
				return
			}
			if err := reporter.ReportPhaseChange(oldPhase, newPhase); err != nil {
				h.logger.Printf("WARN: Phase change report failed: %v", err)
			}
		},
	}

	result, err := h.downloader.Download(downloadCtx, request.URL, workDir.Path(), callbacks)
	if err != nil {
		if reporter != nil {
			if repErr := reporter.ReportError(err); repErr != nil {
				h.logger.Printf("WARN: Error report failed: %v", repErr)
			}
		}
		h.reportFailure(request, err)
		return err
	}

	h.logger.Printf("Downloaded %s via %s (%s, took %v)",
		result.TrackMeta.Title, h.downloader.Name(), formatBytes(result.FileSize), result.Elapsed)

	// Upload to Telegram while the status message still shows activity
	if reporter != nil {
		if err := reporter.UpdateProgress(downloader.PhaseUploading, downloader.Progress{
			BytesProcessed: result.FileSize,
			TotalBytes:     result.FileSize,
			Percentage:     100,
		}); err != nil {
			h.logger.Printf("WARN: Upload phase report failed: %v", err)
		}
	}

	sendCtx, sendCancel := context.WithTimeout(ctx, 5*time.Minute)
	defer sendCancel()

	doc, err := h.sender.SendAudio(sendCtx, request.ChatID, result)
	if err != nil {
		h.reportFailure(request, err)
		return err
	}

	if reporter != nil {
		if err := reporter.ReportComplete(time.Since(startTime), result.FilePath); err != nil {
			h.logger.Printf("WARN: Completion report failed: %v", err)
		}
	}

	h.cacheUpload(request.Canonical, doc, result)

	h.logger.Printf("Delivered %s to chat %d (total %v)",
		result.TrackMeta.Title, request.ChatID, time.Since(startTime).Round(time.Millisecond))
	return nil
}

// cacheUpload stores the sent document for instant future re-sends.
func (h *TrackHandler) cacheUpload(canonical string, doc *tg.Document, result *downloader.DownloadResult) {
	if h.uploadCache == nil || doc == nil {
		return
	}

	entry := cache.CachedAudio{
		DocumentID:    doc.ID,
		AccessHash:    doc.AccessHash,
		FileReference: doc.FileReference,
		FileSize:      result.FileSize,
		Title:         result.TrackMeta.Title,
		Performer:     result.TrackMeta.Artist,
		DurationSec:   int(result.TrackMeta.Duration.Seconds()),
	}

	if err := h.uploadCache.Put(canonical, entry); err != nil {
		h.logger.Printf("WARN: Failed to cache upload for %s: %v", canonical, err)
	}
}

// reportFailure tells the user their queued download failed. Queue-processed
// requests run outside the router, so the error handler is invoked directly.
func (h *TrackHandler) reportFailure(request *QueueRequest, err error) {
	if h.errorHandler == nil {
		h.logger.Printf("ERROR: Request %s failed with no error handler attached: %v", request.UniqueID, err)
		return
	}

	h.errorHandler.HandleCommandError(err, &CommandContext{
		Command:   "dl",
		Args:      request.URL,
		UserID:    request.SenderID,
		ChatID:    request.ChatID,
		MessageID: request.MessageID,
		Timestamp: request.RequestTime,
	})
}

// sendErrorMessage sends an error message to the user
func (h *TrackHandler) sendErrorMessage(ctx context.Context, chatID int64, errorMsg string) error {
	return h.sendMessage(ctx, chatID, "❌ "+errorMsg)
}

// sendMessage sends a text message to the specified chat
func (h *TrackHandler) sendMessage(ctx context.Context, chatID int64, message string) error {
	if h.client == nil || h.client.GetClient() == nil {
		return fmt.Errorf("bot client is not initialized")
	}

	request := &tg.MessagesSendMessageRequest{
		Peer:     peerForChat(chatID),
		Message:  message,
		RandomID: time.Now().UnixNano(),
	}

	_, err := h.client.GetClient().API().MessagesSendMessage(ctx, request)
	if err != nil {
		return fmt.Errorf("failed to send message via Telegram API: %w", err)
	}

	return nil
}
