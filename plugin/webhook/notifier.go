package webhook

import (
	"context"
	"time"

	"github.com/aishwaryashinde26/Neo-stat-ai-engineer/store"
)

// Notifier posts reservation lifecycle events to a fixed endpoint. It
// satisfies the dialogue notifier contract so webhook delivery can run
// alongside email confirmation.
type Notifier struct {
	url string
}

// NewNotifier creates a Notifier for url.
func NewNotifier(url string) *Notifier {
	return &Notifier{url: url}
}

// ConfirmReservation posts a reservation.confirmed event. The email
// argument is unused; the reservation already carries the contact.
func (n *Notifier) ConfirmReservation(ctx context.Context, _ string, reservation *store.Reservation) error {
	return Post(ctx, n.url, &EventPayload{
		Event:       EventReservationConfirmed,
		Reservation: reservation,
		Timestamp:   time.Now().Unix(),
	})
}
