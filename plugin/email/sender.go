// Package email delivers booking confirmation mail over SMTP. Without SMTP
// credentials it degrades to a mock sender that logs the message instead,
// so local setups work without a mail server.
package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
	"time"

	"github.com/aishwaryashinde26/Neo-stat-ai-engineer/store"
)

// Sender delivers one message to one recipient.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// NewSender picks the SMTP sender when the config validates, the mock
// otherwise.
func NewSender(config *Config) Sender {
	if config == nil || config.Validate() != nil {
		slog.Info("email: no SMTP configuration, using mock sender")
		return &MockSender{}
	}
	return &SMTPSender{config: config}
}

// SMTPSender sends mail through a configured SMTP relay.
type SMTPSender struct {
	config *Config
}

func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	if to == "" {
		return fmt.Errorf("recipient address is required")
	}

	from := s.config.FromEmail
	var msg strings.Builder
	if s.config.FromName != "" {
		fmt.Fprintf(&msg, "From: %s <%s>\r\n", s.config.FromName, from)
	} else {
		fmt.Fprintf(&msg, "From: %s\r\n", from)
	}
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	msg.WriteString(body)

	var auth smtp.Auth
	if s.config.SMTPUsername != "" {
		auth = smtp.PlainAuth("", s.config.SMTPUsername, s.config.SMTPPassword, s.config.SMTPHost)
	}

	done := make(chan error, 1)
	go func() {
		done <- s.send(auth, to, msg.String())
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send mail to %s: %w", to, err)
		}
	}
	slog.Debug("email: confirmation sent", "to", to, "subject", subject)
	return nil
}

func (s *SMTPSender) send(auth smtp.Auth, to, msg string) error {
	addr := s.config.GetServerAddress()
	if !s.config.UseTLS {
		return smtp.SendMail(addr, auth, s.config.FromEmail, []string{to}, []byte(msg))
	}

	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: s.config.SMTPHost})
	if err != nil {
		return err
	}
	client, err := smtp.NewClient(conn, s.config.SMTPHost)
	if err != nil {
		conn.Close()
		return err
	}
	defer client.Close()
	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return err
		}
	}
	if err := client.Mail(s.config.FromEmail); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte(msg)); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

// MockSender logs the message instead of sending it.
type MockSender struct{}

func (m *MockSender) Send(ctx context.Context, to, subject, body string) error {
	slog.Info("email: mock delivery", "to", to, "subject", subject, "bytes", len(body))
	return nil
}

// ConfirmationNotifier adapts a Sender to the dialogue orchestrator's
// notifier hook.
type ConfirmationNotifier struct {
	sender   Sender
	location *time.Location
}

func NewConfirmationNotifier(sender Sender, loc *time.Location) *ConfirmationNotifier {
	if loc == nil {
		loc = time.UTC
	}
	return &ConfirmationNotifier{sender: sender, location: loc}
}

func (n *ConfirmationNotifier) ConfirmReservation(ctx context.Context, email string, reservation *store.Reservation) error {
	subject := fmt.Sprintf("Booking confirmed: %s", reservation.ServiceType)
	body := RenderConfirmation(reservation, n.location)
	return n.sender.Send(ctx, email, subject, body)
}

// RenderConfirmation builds the plain-text confirmation body.
func RenderConfirmation(reservation *store.Reservation, loc *time.Location) string {
	start := time.Unix(reservation.StartTs, 0).In(loc)
	end := time.Unix(reservation.EndTs, 0).In(loc)
	var sb strings.Builder
	sb.WriteString("Your booking is confirmed.\n\n")
	fmt.Fprintf(&sb, "Service: %s\n", reservation.ServiceType)
	fmt.Fprintf(&sb, "Date: %s\n", start.Format("Monday, 2 January 2006"))
	fmt.Fprintf(&sb, "Time: %s - %s\n", start.Format("15:04"), end.Format("15:04"))
	fmt.Fprintf(&sb, "Reference: %s\n", reservation.UID)
	sb.WriteString("\nReply to this conversation to move or cancel the booking.\n")
	return sb.String()
}
