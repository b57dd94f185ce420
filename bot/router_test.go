package bot

import (
	"context"
	"log"
	"os"
	"testing"

	"github.com/gotd/td/tg"
)

// MockCommandHandler is a test implementation of CommandHandler
type MockCommandHandler struct {
	command     string
	handleCalls int
	lastContext *CommandContext
}

func (m *MockCommandHandler) Handle(ctx context.Context, cmdCtx *CommandContext) error {
	m.handleCalls++
	m.lastContext = cmdCtx
	return nil
}

func (m *MockCommandHandler) Command() string {
	return m.command
}

func TestCommandRouter_RegisterHandler(t *testing.T) {
	logger := log.New(os.Stdout, "TEST: ", log.LstdFlags)
	router := NewCommandRouter(logger)

	handler := &MockCommandHandler{command: "test"}
	router.RegisterHandler(handler)

	if !router.HasHandler("test") {
		t.Error("Expected handler to be registered for 'test' command")
	}

	commands := router.GetRegisteredCommands()
	if len(commands) != 1 || commands[0] != "test" {
		t.Errorf("Expected registered commands to contain 'test', got: %v", commands)
	}
}

func TestCommandRouter_ExtractCommandContext(t *testing.T) {
	logger := log.New(os.Stdout, "TEST: ", log.LstdFlags)
	router := NewCommandRouter(logger)

	// Create a mock update with a command message
	message := &tg.Message{
		Message: "/dl https://soundcloud.com/forss/flickermood",
		PeerID:  &tg.PeerUser{UserID: 12345},
		FromID:  &tg.PeerUser{UserID: 12345},
	}

	update := &tg.UpdateNewMessage{
		Message: message,
	}

	cmdCtx, err := router.extractCommandContext(update)
	if err != nil {
		t.Fatalf("Failed to extract command context: %v", err)
	}

	if cmdCtx.Command != "dl" {
		t.Errorf("Expected command 'dl', got: %s", cmdCtx.Command)
	}

	if cmdCtx.Args != "https://soundcloud.com/forss/flickermood" {
		t.Errorf("Expected track URL args, got: %s", cmdCtx.Args)
	}

	if cmdCtx.UserID != 12345 {
		t.Errorf("Expected UserID 12345, got: %d", cmdCtx.UserID)
	}

	if cmdCtx.ChatID != 12345 {
		t.Errorf("Expected ChatID 12345, got: %d", cmdCtx.ChatID)
	}
}

func TestCommandRouter_ExtractCommandContext_BotSuffix(t *testing.T) {
	logger := log.New(os.Stdout, "TEST: ", log.LstdFlags)
	router := NewCommandRouter(logger)

	message := &tg.Message{
		Message: "/dl@scdl_bot https://soundcloud.com/forss/flickermood",
		PeerID:  &tg.PeerChat{ChatID: 777},
		FromID:  &tg.PeerUser{UserID: 12345},
	}

	cmdCtx, err := router.extractCommandContext(&tg.UpdateNewMessage{Message: message})
	if err != nil {
		t.Fatalf("Failed to extract command context: %v", err)
	}

	if cmdCtx.Command != "dl" {
		t.Errorf("Expected command 'dl' with bot suffix stripped, got: %s", cmdCtx.Command)
	}
}

func TestCommandRouter_RouteCommand(t *testing.T) {
	logger := log.New(os.Stdout, "TEST: ", log.LstdFlags)
	router := NewCommandRouter(logger)

	handler := &MockCommandHandler{command: "ping"}
	router.RegisterHandler(handler)

	// Create a mock update with a ping command
	message := &tg.Message{
		Message: "/ping",
		PeerID:  &tg.PeerUser{UserID: 12345},
		FromID:  &tg.PeerUser{UserID: 12345},
	}

	update := &tg.UpdateNewMessage{
		Message: message,
	}

	ctx := context.Background()
	err := router.RouteCommand(ctx, update)
	if err != nil {
		t.Fatalf("Failed to route command: %v", err)
	}

	if handler.handleCalls != 1 {
		t.Errorf("Expected handler to be called once, got: %d", handler.handleCalls)
	}

	if handler.lastContext.Command != "ping" {
		t.Errorf("Expected command 'ping', got: %s", handler.lastContext.Command)
	}
}

func TestCommandRouter_PlainTextRouting(t *testing.T) {
	logger := log.New(os.Stdout, "TEST: ", log.LstdFlags)
	router := NewCommandRouter(logger)

	textHandler := &MockCommandHandler{command: "dl"}
	router.SetTextHandler(textHandler)

	message := &tg.Message{
		Message: "https://soundcloud.com/forss/flickermood",
		PeerID:  &tg.PeerUser{UserID: 12345},
		FromID:  &tg.PeerUser{UserID: 12345},
	}

	err := router.RouteCommand(context.Background(), &tg.UpdateNewMessage{Message: message})
	if err != nil {
		t.Fatalf("Failed to route plain text: %v", err)
	}

	if textHandler.handleCalls != 1 {
		t.Errorf("Expected text handler to be called once, got: %d", textHandler.handleCalls)
	}

	if textHandler.lastContext.Command != "" {
		t.Errorf("Expected empty command for plain text, got: %s", textHandler.lastContext.Command)
	}

	if textHandler.lastContext.Text != "https://soundcloud.com/forss/flickermood" {
		t.Errorf("Expected full text to be preserved, got: %s", textHandler.lastContext.Text)
	}
}

func TestCommandRouter_PlainTextWithoutHandler(t *testing.T) {
	logger := log.New(os.Stdout, "TEST: ", log.LstdFlags)
	router := NewCommandRouter(logger)

	message := &tg.Message{
		Message: "hello there",
		PeerID:  &tg.PeerUser{UserID: 12345},
		FromID:  &tg.PeerUser{UserID: 12345},
	}

	// No text handler registered - should be a silent no-op
	err := router.RouteCommand(context.Background(), &tg.UpdateNewMessage{Message: message})
	if err != nil {
		t.Fatalf("Expected plain text without handler to be ignored, got: %v", err)
	}
}

func TestCommandRouter_UnknownCommand(t *testing.T) {
	logger := log.New(os.Stdout, "TEST: ", log.LstdFlags)
	router := NewCommandRouter(logger)

	handler := &MockCommandHandler{command: "test"}
	router.RegisterHandler(handler)

	message := &tg.Message{
		Message: "/unknown",
		PeerID:  &tg.PeerUser{UserID: 12345},
		FromID:  &tg.PeerUser{UserID: 12345},
	}

	err := router.RouteCommand(context.Background(), &tg.UpdateNewMessage{Message: message})
	if err != nil {
		t.Fatalf("Unknown command should not produce an error, got: %v", err)
	}

	if handler.handleCalls != 0 {
		t.Errorf("Expected no handler calls for unknown command, got: %d", handler.handleCalls)
	}
}

func TestCommandRouter_PrivateChatSenderFallback(t *testing.T) {
	logger := log.New(os.Stdout, "TEST: ", log.LstdFlags)
	router := NewCommandRouter(logger)

	// Private chats omit FromID; the peer is the sender
	message := &tg.Message{
		Message: "/ping",
		PeerID:  &tg.PeerUser{UserID: 98765},
	}

	cmdCtx, err := router.extractCommandContext(&tg.UpdateNewMessage{Message: message})
	if err != nil {
		t.Fatalf("Failed to extract command context: %v", err)
	}

	if cmdCtx.UserID != 98765 {
		t.Errorf("Expected UserID to fall back to peer, got: %d", cmdCtx.UserID)
	}
}
