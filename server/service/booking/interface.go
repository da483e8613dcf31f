package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aishwaryashinde26/Neo-stat-ai-engineer/store"
)

var (
	// ErrConcurrencyConflict is returned when serialization retries are
	// exhausted without committing.
	ErrConcurrencyConflict = errors.New("booking lost a concurrent update race")

	// ErrReservationNotFound is returned when no reservation matches the
	// customer contact and time hints.
	ErrReservationNotFound = errors.New("no matching reservation")
)

// AmbiguousMatchError is returned when more than one reservation matches a
// modify or cancel request. The caller should ask the user to pick one
// rather than guess.
type AmbiguousMatchError struct {
	Candidates []*store.Reservation
}

func (e *AmbiguousMatchError) Error() string {
	return fmt.Sprintf("%d reservations match, need clarification", len(e.Candidates))
}

// Service defines the booking business logic. The dialogue orchestrator and
// the HTTP API both call it directly.
type Service interface {
	// Resolve attempts to commit the requested slot. On conflict it returns
	// a ConflictResult carrying up to MaxAlternatives free slots instead of
	// a reservation; both nil only on error.
	Resolve(ctx context.Context, req *Request) (*store.Reservation, *ConflictResult, error)

	// Modify moves an existing reservation found by customer contact and
	// time proximity. The move is atomic: a failed or conflicting move
	// leaves the original in place. Multiple candidates yield an
	// AmbiguousMatchError.
	Modify(ctx context.Context, req *ModifyRequest) (*store.Reservation, *ConflictResult, error)

	// Cancel flips a matching reservation to cancelled.
	Cancel(ctx context.Context, req *CancelRequest) (*store.Reservation, error)

	// Upcoming lists non-cancelled reservations starting after now.
	Upcoming(ctx context.Context, limit int) ([]*store.Reservation, error)
}

// Request asks for a new reservation.
type Request struct {
	Resource     string
	ServiceType  string
	CustomerName string
	Email        string
	Phone        string
	Start        time.Time
	DurationMins int
	Note         string
}

// ModifyRequest moves an existing reservation to a new slot.
type ModifyRequest struct {
	Email        string
	Phone        string
	Around       time.Time // optional hint narrowing which reservation
	NewStart     time.Time
	DurationMins int
}

// CancelRequest cancels an existing reservation.
type CancelRequest struct {
	Email  string
	Phone  string
	Around time.Time // optional hint narrowing which reservation
}

// ConflictResult reports why a slot could not be committed and what is
// still free nearby.
type ConflictResult struct {
	Requested      time.Time   `json:"requested"`
	NoAvailability bool        `json:"noAvailability"`
	Alternatives   []time.Time `json:"alternatives"`
}
