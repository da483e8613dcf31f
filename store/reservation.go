package store

import (
	"context"

	"github.com/pkg/errors"
)

// ReservationStatus is the lifecycle status of a reservation.
type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "pending"
	ReservationConfirmed ReservationStatus = "confirmed"
	ReservationCancelled ReservationStatus = "cancelled"
)

// ErrReservationOverlap is returned by CreateReservationIfAvailable when the
// requested time range overlaps an existing pending or confirmed reservation
// for the same resource.
var ErrReservationOverlap = errors.New("reservation overlaps an existing booking")

// Reservation represents a booked time range for a resource.
// No two reservations with status pending or confirmed may overlap for the
// same resource; the driver enforces this inside a single transaction.
type Reservation struct {
	ID          int32
	UID         string
	Resource    string
	ServiceType string
	CustomerID  int32
	StartTs     int64
	EndTs       int64
	Status      ReservationStatus
	Note        string
	CreatedTs   int64
	UpdatedTs   int64
}

// Active returns true for statuses that occupy the time slot.
func (r *Reservation) Active() bool {
	return r.Status == ReservationPending || r.Status == ReservationConfirmed
}

// Overlaps reports whether [startTs, endTs) intersects the reservation range.
func (r *Reservation) Overlaps(startTs, endTs int64) bool {
	return r.StartTs < endTs && startTs < r.EndTs
}

type FindReservation struct {
	ID           *int32
	UID          *string
	Resource     *string
	ServiceType  *string
	CustomerID   *int32
	Statuses     []ReservationStatus
	StartsAfter  *int64
	StartsBefore *int64
	Limit        *int
}

type UpdateReservation struct {
	ID        int32
	Status    *ReservationStatus
	StartTs   *int64
	EndTs     *int64
	Note      *string
	UpdatedTs int64
}

// CreateReservationIfAvailable atomically checks the requested range for
// overlap against active reservations on the same resource and inserts the
// reservation when free. Returns ErrReservationOverlap when the slot is taken.
func (s *Store) CreateReservationIfAvailable(ctx context.Context, create *Reservation) (*Reservation, error) {
	return s.driver.CreateReservationIfAvailable(ctx, create)
}

// MoveReservationIfAvailable cancels the reservation releaseID and inserts
// the replacement in one transaction, so the released window is never
// visible to concurrent bookings unless the move commits. Returns
// ErrReservationOverlap, with releaseID untouched, when the target slot is
// taken.
func (s *Store) MoveReservationIfAvailable(ctx context.Context, releaseID int32, create *Reservation) (*Reservation, error) {
	return s.driver.MoveReservationIfAvailable(ctx, releaseID, create)
}

func (s *Store) ListReservations(ctx context.Context, find *FindReservation) ([]*Reservation, error) {
	return s.driver.ListReservations(ctx, find)
}

func (s *Store) GetReservation(ctx context.Context, find *FindReservation) (*Reservation, error) {
	list, err := s.driver.ListReservations(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (s *Store) UpdateReservation(ctx context.Context, update *UpdateReservation) (*Reservation, error) {
	return s.driver.UpdateReservation(ctx, update)
}
