package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/gotd/td/telegram/uploader"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"

	"go-scdl-bot/cache"
	"go-scdl-bot/downloader"
)

// SendError wraps failures that happen after a successful download, while
// delivering the file to the chat.
type SendError struct {
	Message string
	Cause   error
}

func (se *SendError) Error() string {
	if se.Cause != nil {
		return fmt.Sprintf("send failed: %s (caused by: %v)", se.Message, se.Cause)
	}
	return fmt.Sprintf("send failed: %s", se.Message)
}

func (se *SendError) Unwrap() error {
	return se.Cause
}

// TelegramMediaAPI is the slice of the Telegram client the sender needs:
// file part uploads plus media sends. *tg.Client satisfies it.
type TelegramMediaAPI interface {
	uploader.Client
	MessagesSendMedia(ctx context.Context, request *tg.MessagesSendMediaRequest) (tg.UpdatesClass, error)
}

// AudioSender uploads downloaded tracks and sends them as audio documents.
// Sends are retried with exponential backoff and honor Telegram FLOOD_WAIT
// hints instead of hammering the API.
type AudioSender struct {
	api          TelegramMediaAPI
	logger       *log.Logger
	maxFileBytes int64
	maxRetries   int
	baseDelay    time.Duration
}

// NewAudioSender creates a sender with the given size limit in bytes.
func NewAudioSender(api TelegramMediaAPI, logger *log.Logger, maxFileBytes int64) *AudioSender {
	return &AudioSender{
		api:          api,
		logger:       logger,
		maxFileBytes: maxFileBytes,
		maxRetries:   3,
		baseDelay:    2 * time.Second,
	}
}

// SendAudio uploads the file at result.FilePath and sends it to chatID as an
// audio document with title, performer and duration attributes. On success it
// returns the sent document so callers can cache it for instant re-sends.
func (s *AudioSender) SendAudio(ctx context.Context, chatID int64, result *downloader.DownloadResult) (*tg.Document, error) {
	info, err := os.Stat(result.FilePath)
	if err != nil {
		return nil, &SendError{Message: "downloaded file disappeared before sending", Cause: err}
	}

	if s.maxFileBytes > 0 && info.Size() > s.maxFileBytes {
		return nil, downloader.NewDownloadError(downloader.ErrorFileTooLarge,
			fmt.Sprintf("file is %s, limit is %s", formatBytes(info.Size()), formatBytes(s.maxFileBytes))).
			WithContext("file", filepath.Base(result.FilePath))
	}

	s.logger.Printf("INFO: Uploading %s (%s) to chat %d",
		filepath.Base(result.FilePath), formatBytes(info.Size()), chatID)

	up := uploader.NewUploader(s.api)
	file, err := up.FromPath(ctx, result.FilePath)
	if err != nil {
		return nil, &SendError{Message: "upload to Telegram failed", Cause: err}
	}

	media := &tg.InputMediaUploadedDocument{
		File:     file,
		MimeType: mimeTypeFor(result.FilePath),
		Attributes: []tg.DocumentAttributeClass{
			&tg.DocumentAttributeAudio{
				Title:     result.TrackMeta.Title,
				Performer: result.TrackMeta.Artist,
				Duration:  int(result.TrackMeta.Duration.Seconds()),
			},
			&tg.DocumentAttributeFilename{
				FileName: filepath.Base(result.FilePath),
			},
		},
	}

	updates, err := s.sendMediaWithRetry(ctx, chatID, media)
	if err != nil {
		return nil, err
	}

	doc := extractSentDocument(updates)
	if doc == nil {
		s.logger.Printf("WARN: Sent audio to chat %d but could not extract document from response", chatID)
	}
	return doc, nil
}

// SendCached re-sends a previously uploaded track by document reference,
// skipping download and upload entirely.
func (s *AudioSender) SendCached(ctx context.Context, chatID int64, cached *cache.CachedAudio) error {
	media := &tg.InputMediaDocument{
		ID: &tg.InputDocument{
			ID:            cached.DocumentID,
			AccessHash:    cached.AccessHash,
			FileReference: cached.FileReference,
		},
	}

	_, err := s.sendMediaWithRetry(ctx, chatID, media)
	return err
}

// sendMediaWithRetry sends media with exponential backoff. A FLOOD_WAIT
// response overrides the backoff with Telegram's own wait duration.
func (s *AudioSender) sendMediaWithRetry(ctx context.Context, chatID int64, media tg.InputMediaClass) (tg.UpdatesClass, error) {
	var lastErr error

	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			delay := s.baseDelay * time.Duration(1<<(attempt-1))
			if wait, ok := tgerr.AsFloodWait(lastErr); ok {
				delay = wait + time.Second
			}
			s.logger.Printf("INFO: Retrying send to chat %d in %v (attempt %d/%d)",
				chatID, delay, attempt+1, s.maxRetries+1)

			select {
			case <-ctx.Done():
				return nil, &SendError{Message: "send cancelled while waiting to retry", Cause: ctx.Err()}
			case <-time.After(delay):
			}
		}

		updates, err := s.api.MessagesSendMedia(ctx, &tg.MessagesSendMediaRequest{
			Peer:     peerForChat(chatID),
			Media:    media,
			RandomID: time.Now().UnixNano(),
		})
		if err == nil {
			return updates, nil
		}

		lastErr = err
		if !s.isRetryableSendError(err) {
			break
		}
		s.logger.Printf("WARN: Send to chat %d failed (attempt %d/%d): %v",
			chatID, attempt+1, s.maxRetries+1, err)
	}

	return nil, &SendError{Message: "Telegram rejected the message", Cause: lastErr}
}

// isRetryableSendError reports whether a send failure is worth retrying.
func (s *AudioSender) isRetryableSendError(err error) bool {
	if _, ok := tgerr.AsFloodWait(err); ok {
		return true
	}
	if tgerr.Is(err, "TIMEOUT") || tgerr.Is(err, "INTERNAL_SERVER_ERROR") {
		return true
	}
	// FILE_REFERENCE_EXPIRED means a cached document went stale; the caller
	// has to re-download, retrying here cannot help.
	if tgerr.Is(err, "FILE_REFERENCE_EXPIRED") {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

// IsStaleReference reports whether an error indicates an expired cached
// document reference.
func IsStaleReference(err error) bool {
	return tgerr.Is(err, "FILE_REFERENCE_EXPIRED") || tgerr.Is(err, "FILE_REFERENCE_INVALID")
}

// extractSentDocument digs the sent document out of the updates response so
// it can be cached for future re-sends.
func extractSentDocument(updates tg.UpdatesClass) *tg.Document {
	var messages []tg.MessageClass

	switch u := updates.(type) {
	case *tg.Updates:
		for _, upd := range u.Updates {
			switch m := upd.(type) {
			case *tg.UpdateNewMessage:
				messages = append(messages, m.Message)
			case *tg.UpdateNewChannelMessage:
				messages = append(messages, m.Message)
			}
		}
	case *tg.UpdatesCombined:
		for _, upd := range u.Updates {
			if m, ok := upd.(*tg.UpdateNewMessage); ok {
				messages = append(messages, m.Message)
			}
		}
	}

	for _, msg := range messages {
		message, ok := msg.(*tg.Message)
		if !ok {
			continue
		}
		media, ok := message.Media.(*tg.MessageMediaDocument)
		if !ok {
			continue
		}
		if doc, ok := media.Document.(*tg.Document); ok {
			return doc
		}
	}
	return nil
}

// peerForChat maps a chat ID onto the right peer type: positive IDs are
// users, negative IDs are group chats.
func peerForChat(chatID int64) tg.InputPeerClass {
	if chatID > 0 {
		return &tg.InputPeerUser{UserID: chatID}
	}
	return &tg.InputPeerChat{ChatID: -chatID}
}

func mimeTypeFor(path string) string {
	switch filepath.Ext(path) {
	case ".mp3":
		return "audio/mpeg"
	case ".m4a":
		return "audio/mp4"
	case ".ogg", ".opus":
		return "audio/ogg"
	case ".flac":
		return "audio/flac"
	case ".wav":
		return "audio/wav"
	default:
		return "application/octet-stream"
	}
}

// formatBytes formats byte counts in human readable form
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
