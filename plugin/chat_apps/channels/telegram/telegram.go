// Package telegram implements the Telegram Bot channel.
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/aishwaryashinde26/Neo-stat-ai-engineer/plugin/chat_apps"
	"github.com/aishwaryashinde26/Neo-stat-ai-engineer/plugin/chat_apps/channels"
)

// secretTokenHeader carries the webhook secret Telegram echoes back when one
// was supplied to setWebhook.
const secretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// Config holds configuration for the Telegram channel.
type Config struct {
	BotToken string
	// WebhookSecret, when set, is required on every webhook request.
	WebhookSecret string
}

// Channel implements ChatChannel for the Telegram Bot API.
type Channel struct {
	bot    *tgbotapi.BotAPI
	config *Config
}

// NewChannel creates a new Telegram channel.
func NewChannel(config *Config) (*Channel, error) {
	bot, err := tgbotapi.NewBotAPI(config.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	return &Channel{bot: bot, config: config}, nil
}

// Name returns the platform name.
func (t *Channel) Name() chat_apps.Platform {
	return chat_apps.PlatformTelegram
}

// ValidateWebhook verifies the secret token header when a secret is
// configured. Telegram does not sign payloads beyond this.
func (t *Channel) ValidateWebhook(ctx context.Context, headers map[string]string, body []byte) error {
	if t.config.WebhookSecret == "" {
		return nil
	}
	if headers[secretTokenHeader] != t.config.WebhookSecret {
		slog.Warn("telegram: webhook secret mismatch")
		return channels.ErrInvalidSignature
	}
	return nil
}

// ParseMessage parses the incoming webhook payload into an IncomingMessage.
// Only text is forwarded to the assistant; other update kinds come back with
// empty content and are dropped by the router.
func (t *Channel) ParseMessage(ctx context.Context, payload []byte) (*chat_apps.IncomingMessage, error) {
	var update tgbotapi.Update
	if err := json.Unmarshal(payload, &update); err != nil {
		slog.Warn("telegram: failed to parse webhook payload", "error", err)
		return nil, channels.ErrInvalidPayload
	}

	var tgMsg *tgbotapi.Message
	switch {
	case update.Message != nil:
		tgMsg = update.Message
	case update.EditedMessage != nil:
		tgMsg = update.EditedMessage
	case update.CallbackQuery != nil:
		tgMsg = update.CallbackQuery.Message
	default:
		return nil, channels.ErrInvalidPayload
	}
	if tgMsg == nil || tgMsg.From == nil || tgMsg.Chat == nil {
		return nil, channels.ErrInvalidPayload
	}

	msg := &chat_apps.IncomingMessage{
		Platform:       chat_apps.PlatformTelegram,
		PlatformUserID: strconv.FormatInt(tgMsg.From.ID, 10),
		PlatformChatID: strconv.FormatInt(tgMsg.Chat.ID, 10),
		Content:        tgMsg.Text,
		Timestamp:      time.Now(),
		Metadata:       make(map[string]string),
	}
	msg.Metadata["update_id"] = strconv.Itoa(update.UpdateID)
	msg.Metadata["username"] = tgMsg.From.UserName
	msg.Metadata["language_code"] = tgMsg.From.LanguageCode
	return msg, nil
}

// SendMessage sends a text reply to Telegram.
func (t *Channel) SendMessage(ctx context.Context, msg *chat_apps.OutgoingMessage) error {
	chatID, err := strconv.ParseInt(msg.PlatformChatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat ID %q: %w", msg.PlatformChatID, err)
	}

	tgMsg := tgbotapi.NewMessage(chatID, msg.Content)
	if msg.ParseMode != "" {
		tgMsg.ParseMode = msg.ParseMode
	}
	if _, err := t.bot.Send(tgMsg); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	slog.Debug("telegram: reply sent", "chat_id", msg.PlatformChatID)
	return nil
}

// Close closes the Telegram channel.
func (t *Channel) Close() error {
	return nil
}

// Ensure Channel implements ChatChannel
var _ channels.ChatChannel = (*Channel)(nil)
