package bot

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gotd/td/tg"
)

// CheckHandler implements CommandHandler for the /check command, which
// tells a user whether their required-channel subscription is in order.
type CheckHandler struct {
	client     *TelegramBot
	logger     *log.Logger
	membership *MembershipChecker
}

// NewCheckHandler creates a new CheckHandler instance
func NewCheckHandler(client *TelegramBot, logger *log.Logger, membership *MembershipChecker) *CheckHandler {
	return &CheckHandler{
		client:     client,
		logger:     logger,
		membership: membership,
	}
}

// Command returns the command string this handler processes
func (h *CheckHandler) Command() string {
	return "check"
}

// Handle processes the /check command
func (h *CheckHandler) Handle(ctx context.Context, cmdCtx *CommandContext) error {
	h.logger.Printf("Processing /check command for user %d in chat %d", cmdCtx.UserID, cmdCtx.ChatID)

	timeoutCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var message string
	switch {
	case !h.membership.Enabled():
		message = "✅ No channel subscription is required. You're good to go!"
	case h.membership.IsMember(timeoutCtx, cmdCtx.UserID):
		message = "✅ You're subscribed! Send me a track link to download."
	default:
		message = fmt.Sprintf("🔔 You need to join %s before downloading.\n\n"+
			"Join the channel, then run /check again.", h.membership.ChannelName())
	}

	if err := h.sendMessage(timeoutCtx, cmdCtx.ChatID, message); err != nil {
		h.logger.Printf("Failed to send check result to chat %d: %v", cmdCtx.ChatID, err)
		return fmt.Errorf("failed to send check result: %w", err)
	}

	return nil
}

// sendMessage sends a text message to the specified chat
func (h *CheckHandler) sendMessage(ctx context.Context, chatID int64, message string) error {
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
