// Package chat_apps connects external chat platforms to the booking
// assistant. Each platform implements the channel interface and maps its
// chats onto assistant sessions.
package chat_apps

import (
	"fmt"
	"time"
)

// Platform represents a supported chat platform.
type Platform string

const (
	PlatformTelegram Platform = "telegram"
	PlatformWeb      Platform = "web"
)

// IsValid checks if the platform is valid.
func (p Platform) IsValid() bool {
	switch p {
	case PlatformTelegram, PlatformWeb:
		return true
	default:
		return false
	}
}

// IncomingMessage represents a user message from a chat platform.
type IncomingMessage struct {
	Platform       Platform          // Source platform
	PlatformUserID string            // Platform-specific user ID
	PlatformChatID string            // Platform-specific chat ID
	Content        string            // Text content
	Metadata       map[string]string // Additional platform-specific metadata
	Timestamp      time.Time         // Message timestamp
}

// SessionUID maps the platform chat onto an assistant session. One chat is
// one conversation; the mapping is stable across restarts.
func (m *IncomingMessage) SessionUID() string {
	return fmt.Sprintf("%s-%s", m.Platform, m.PlatformChatID)
}

// OutgoingMessage represents an assistant reply to send back.
type OutgoingMessage struct {
	PlatformChatID string // Destination chat ID
	Content        string // Text content
	ParseMode      string // Markdown/HTML parsing mode (optional)
}
