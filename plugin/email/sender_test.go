package email

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aishwaryashinde26/Neo-stat-ai-engineer/store"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:   "valid",
			config: Config{SMTPHost: "smtp.example.com", SMTPPort: 587, FromEmail: "noreply@example.com"},
		},
		{
			name:    "missing host",
			config:  Config{SMTPPort: 587, FromEmail: "noreply@example.com"},
			wantErr: true,
		},
		{
			name:    "bad port",
			config:  Config{SMTPHost: "smtp.example.com", SMTPPort: 0, FromEmail: "noreply@example.com"},
			wantErr: true,
		},
		{
			name:    "missing from",
			config:  Config{SMTPHost: "smtp.example.com", SMTPPort: 587},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestNewSenderFallsBackToMock(t *testing.T) {
	require.IsType(t, &MockSender{}, NewSender(nil))
	require.IsType(t, &MockSender{}, NewSender(&Config{}))
	require.IsType(t, &SMTPSender{}, NewSender(&Config{
		SMTPHost:  "smtp.example.com",
		SMTPPort:  587,
		FromEmail: "noreply@example.com",
	}))
}

type capturingSender struct {
	mu      sync.Mutex
	to      string
	subject string
	body    string
}

func (c *capturingSender) Send(ctx context.Context, to, subject, body string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.to, c.subject, c.body = to, subject, body
	return nil
}

func TestConfirmationNotifier(t *testing.T) {
	sender := &capturingSender{}
	notifier := NewConfirmationNotifier(sender, time.UTC)
	reservation := &store.Reservation{
		UID:         "res-42",
		ServiceType: "consultation",
		StartTs:     time.Date(2026, 3, 11, 14, 0, 0, 0, time.UTC).Unix(),
		EndTs:       time.Date(2026, 3, 11, 14, 30, 0, 0, time.UTC).Unix(),
	}

	require.NoError(t, notifier.ConfirmReservation(context.Background(), "jordan@example.com", reservation))
	require.Equal(t, "jordan@example.com", sender.to)
	require.Contains(t, sender.subject, "consultation")
	require.Contains(t, sender.body, "Wednesday, 11 March 2026")
	require.Contains(t, sender.body, "14:00 - 14:30")
	require.Contains(t, sender.body, "res-42")
}

func TestMockSenderNeverFails(t *testing.T) {
	require.NoError(t, (&MockSender{}).Send(context.Background(), "x@example.com", "s", "b"))
}
