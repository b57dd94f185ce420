package bot

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"

	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
)

// MembershipChecker verifies that a user is subscribed to the required
// channel before downloads are allowed. The channel may be configured as an
// @username or as a -100 prefixed numeric ID.
type MembershipChecker struct {
	api     *tg.Client
	logger  *log.Logger
	channel string

	mu       sync.Mutex
	resolved *tg.InputChannel
}

// NewMembershipChecker creates a checker for the configured channel.
// An empty channel disables the gate.
func NewMembershipChecker(api *tg.Client, logger *log.Logger, channel string) *MembershipChecker {
	return &MembershipChecker{
		api:     api,
		logger:  logger,
		channel: strings.TrimSpace(channel),
	}
}

// Enabled reports whether a required channel is configured.
func (m *MembershipChecker) Enabled() bool {
	return m.channel != ""
}

// ChannelName returns the configured channel reference for user messages.
func (m *MembershipChecker) ChannelName() string {
	return m.channel
}

// IsMember checks whether userID currently participates in the required
// channel. When no channel is configured the check always passes. Transient
// API failures are logged and treated as membership so a Telegram hiccup
// does not lock every user out.
func (m *MembershipChecker) IsMember(ctx context.Context, userID int64) bool {
	if !m.Enabled() {
		return true
	}

	channel, err := m.resolveChannel(ctx)
	if err != nil {
		m.logger.Printf("WARN: Could not resolve required channel %s: %v", m.channel, err)
		return true
	}

	participant, err := m.api.ChannelsGetParticipant(ctx, &tg.ChannelsGetParticipantRequest{
		Channel:     channel,
		Participant: &tg.InputPeerUser{UserID: userID},
	})
	if err != nil {
		if tgerr.Is(err, "USER_NOT_PARTICIPANT") || tgerr.Is(err, "PARTICIPANT_ID_INVALID") {
			return false
		}
		m.logger.Printf("WARN: Membership check failed for user %d: %v", userID, err)
		return true
	}

	switch participant.Participant.(type) {
	case *tg.ChannelParticipantLeft, *tg.ChannelParticipantBanned:
		return false
	}
	return true
}

// resolveChannel resolves the configured channel reference into an
// InputChannel, caching the result for subsequent checks.
func (m *MembershipChecker) resolveChannel(ctx context.Context) (*tg.InputChannel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.resolved != nil {
		return m.resolved, nil
	}

	var channel *tg.InputChannel
	var err error
	if strings.HasPrefix(m.channel, "@") {
		channel, err = m.resolveUsername(ctx, strings.TrimPrefix(m.channel, "@"))
	} else {
		channel, err = m.resolveNumericID(ctx, m.channel)
	}
	if err != nil {
		return nil, err
	}

	m.resolved = channel
	return channel, nil
}

func (m *MembershipChecker) resolveUsername(ctx context.Context, username string) (*tg.InputChannel, error) {
	resolved, err := m.api.ContactsResolveUsername(ctx, &tg.ContactsResolveUsernameRequest{
		Username: username,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve @%s: %w", username, err)
	}

	for _, chat := range resolved.Chats {
		if ch, ok := chat.(*tg.Channel); ok {
			return &tg.InputChannel{ChannelID: ch.ID, AccessHash: ch.AccessHash}, nil
		}
	}
	return nil, fmt.Errorf("@%s did not resolve to a channel", username)
}

func (m *MembershipChecker) resolveNumericID(ctx context.Context, raw string) (*tg.InputChannel, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(raw, "-100"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid channel ID %q: %w", raw, err)
	}

	chats, err := m.api.ChannelsGetChannels(ctx, []tg.InputChannelClass{
		&tg.InputChannel{ChannelID: id},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to look up channel %d: %w", id, err)
	}

	for _, chat := range chats.GetChats() {
		if ch, ok := chat.(*tg.Channel); ok && ch.ID == id {
			return &tg.InputChannel{ChannelID: ch.ID, AccessHash: ch.AccessHash}, nil
		}
	}
	return nil, fmt.Errorf("channel %d not accessible to the bot", id)
}
