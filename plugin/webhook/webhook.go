package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/aishwaryashinde26/Neo-stat-ai-engineer/store"
)

// timeout bounds one webhook delivery, connect through response read.
var timeout = 30 * time.Second

// Reservation lifecycle event types carried in the payload.
const (
	EventReservationConfirmed = "reservation.confirmed"
	EventReservationModified  = "reservation.modified"
	EventReservationCancelled = "reservation.cancelled"
)

// EventPayload is the JSON body posted to the configured endpoint when a
// reservation changes state.
type EventPayload struct {
	Event       string             `json:"event"`
	Reservation *store.Reservation `json:"reservation"`
	Timestamp   int64              `json:"timestamp"`
}

// Post delivers payload to url and fails on any non-2xx response.
func Post(ctx context.Context, url string, payload *EventPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal webhook payload for %s", url)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return errors.Wrapf(err, "failed to construct webhook request to %s", url)
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "failed to post webhook to %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return errors.Errorf("webhook %s returned status %d: %s", url, resp.StatusCode, b)
	}
	return nil
}
