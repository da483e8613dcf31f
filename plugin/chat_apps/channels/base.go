// Package channels provides the ChatChannel interface and the router that
// dispatches platform webhooks into the dialogue orchestrator.
package channels

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/aishwaryashinde26/Neo-stat-ai-engineer/ai/dialogue"
	"github.com/aishwaryashinde26/Neo-stat-ai-engineer/plugin/chat_apps"
)

// ChatChannel defines the interface for a chat platform integration.
type ChatChannel interface {
	// Name returns the platform name (e.g., "telegram").
	Name() chat_apps.Platform

	// ValidateWebhook verifies the incoming webhook request.
	// Returns an error if the request signature is invalid or the request is malformed.
	ValidateWebhook(ctx context.Context, headers map[string]string, body []byte) error

	// ParseMessage parses the incoming webhook payload into an IncomingMessage.
	ParseMessage(ctx context.Context, payload []byte) (*chat_apps.IncomingMessage, error)

	// SendMessage sends a single message to the chat platform.
	SendMessage(ctx context.Context, msg *chat_apps.OutgoingMessage) error

	// Close closes any open connections and releases resources.
	Close() error
}

// TurnHandler runs one assistant turn. The dialogue orchestrator satisfies it.
type TurnHandler interface {
	HandleTurn(ctx context.Context, sessionUID, utterance string) (*dialogue.Reply, error)
}

// ChannelRouter routes incoming webhooks to the right channel, runs the
// assistant turn, and sends the reply back on the same channel.
// Concurrent-safe for Register and GetChannel operations.
type ChannelRouter struct {
	mu       sync.RWMutex
	registry map[chat_apps.Platform]ChatChannel
	handler  TurnHandler
}

// NewChannelRouter creates a new channel router.
func NewChannelRouter(handler TurnHandler) *ChannelRouter {
	return &ChannelRouter{
		registry: make(map[chat_apps.Platform]ChatChannel),
		handler:  handler,
	}
}

// Register registers a chat channel for a platform.
func (r *ChannelRouter) Register(channel ChatChannel) {
	r.mu.Lock()
	r.registry[channel.Name()] = channel
	r.mu.Unlock()
}

// GetChannel returns the channel for a platform, or nil if not registered.
func (r *ChannelRouter) GetChannel(platform chat_apps.Platform) ChatChannel {
	r.mu.RLock()
	ch := r.registry[platform]
	r.mu.RUnlock()
	return ch
}

// HandleWebhook validates and parses an incoming webhook, runs the assistant
// turn for the chat's session, and replies on the originating channel. The
// returned message is the parsed inbound message.
func (r *ChannelRouter) HandleWebhook(ctx context.Context, platform chat_apps.Platform, headers map[string]string, body []byte) (*chat_apps.IncomingMessage, error) {
	channel := r.GetChannel(platform)
	if channel == nil {
		return nil, ErrNoChannelForPlatform
	}

	if err := channel.ValidateWebhook(ctx, headers, body); err != nil {
		return nil, err
	}

	msg, err := channel.ParseMessage(ctx, body)
	if err != nil {
		return nil, err
	}
	if msg.Content == "" {
		// Non-text updates (stickers, joins) are acknowledged and dropped.
		return msg, nil
	}

	reply, err := r.handler.HandleTurn(ctx, msg.SessionUID(), msg.Content)
	if err != nil {
		slog.Error("channels: turn failed", "platform", platform, "session", msg.SessionUID(), "error", err)
		return msg, &ChannelError{Code: "TURN_FAILED", Message: "assistant turn failed", Err: err}
	}

	if err := channel.SendMessage(ctx, &chat_apps.OutgoingMessage{
		PlatformChatID: msg.PlatformChatID,
		Content:        reply.Text,
	}); err != nil {
		return msg, err
	}
	return msg, nil
}

// Errors
var (
	ErrNoChannelForPlatform = &ChannelError{Code: "NO_CHANNEL", Message: "no channel registered for platform"}
	ErrInvalidSignature     = &ChannelError{Code: "INVALID_SIGNATURE", Message: "webhook signature validation failed"}
	ErrInvalidPayload       = &ChannelError{Code: "INVALID_PAYLOAD", Message: "could not parse webhook payload"}
)

// ChannelError represents an error in channel operations.
type ChannelError struct {
	Code    string
	Message string
	Err     error
}

func (e *ChannelError) Error() string {
	if e.Err != nil {
		return e.Code + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Code + ": " + e.Message
}

func (e *ChannelError) Unwrap() error {
	return e.Err
}

// io.Closer interface for cleanup
var _ io.Closer = (*ChannelRouter)(nil)

// Close closes all registered channels.
func (r *ChannelRouter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for _, channel := range r.registry {
		if err := channel.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
