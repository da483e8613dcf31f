package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aishwaryashinde26/Neo-stat-ai-engineer/store"
)

// Store is the persistence surface the resolver needs. *store.Store
// satisfies it.
type Store interface {
	UpsertCustomer(ctx context.Context, upsert *store.Customer) (*store.Customer, error)
	GetCustomer(ctx context.Context, find *store.FindCustomer) (*store.Customer, error)
	CreateReservationIfAvailable(ctx context.Context, create *store.Reservation) (*store.Reservation, error)
	MoveReservationIfAvailable(ctx context.Context, releaseID int32, create *store.Reservation) (*store.Reservation, error)
	ListReservations(ctx context.Context, find *store.FindReservation) ([]*store.Reservation, error)
	UpdateReservation(ctx context.Context, update *store.UpdateReservation) (*store.Reservation, error)
}

// Config carries the scheduling policy.
type Config struct {
	BusinessHourStart int            // inclusive hour, default 9
	BusinessHourEnd   int            // exclusive hour, default 18
	HorizonDays       int            // alternative search horizon, default 14
	MaxAlternatives   int            // default 3
	DefaultResource   string         // used when the request names none
	Location          *time.Location // defaults to UTC
}

func (c *Config) normalize() {
	if c.BusinessHourStart <= 0 {
		c.BusinessHourStart = 9
	}
	if c.BusinessHourEnd <= c.BusinessHourStart {
		c.BusinessHourEnd = 18
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = 14
	}
	if c.MaxAlternatives <= 0 {
		c.MaxAlternatives = 3
	}
	if c.DefaultResource == "" {
		c.DefaultResource = "default"
	}
	if c.Location == nil {
		c.Location = time.UTC
	}
}

const createAttempts = 3

// Resolver implements Service against the store.
type Resolver struct {
	store  Store
	config Config
	now    func() time.Time
}

// NewResolver creates a Resolver.
func NewResolver(st Store, config Config) *Resolver {
	config.normalize()
	return &Resolver{store: st, config: config, now: time.Now}
}

func (r *Resolver) Resolve(ctx context.Context, req *Request) (*store.Reservation, *ConflictResult, error) {
	if req.Start.IsZero() {
		return nil, nil, fmt.Errorf("reservation start is required")
	}
	if req.DurationMins <= 0 {
		return nil, nil, fmt.Errorf("reservation duration is required")
	}
	if req.Email == "" {
		return nil, nil, fmt.Errorf("customer email is required")
	}
	resource := req.Resource
	if resource == "" {
		resource = r.config.DefaultResource
	}

	customer, err := r.store.UpsertCustomer(ctx, &store.Customer{
		Name:      req.CustomerName,
		Email:     strings.ToLower(req.Email),
		Phone:     req.Phone,
		CreatedTs: r.now().Unix(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("upsert customer: %w", err)
	}

	start := req.Start
	end := start.Add(time.Duration(req.DurationMins) * time.Minute)
	now := r.now().Unix()

	reservation, err := r.createWithRetry(ctx, &store.Reservation{
		UID:         uuid.NewString(),
		Resource:    resource,
		ServiceType: req.ServiceType,
		CustomerID:  customer.ID,
		StartTs:     start.Unix(),
		EndTs:       end.Unix(),
		Status:      store.ReservationConfirmed,
		Note:        req.Note,
		CreatedTs:   now,
		UpdatedTs:   now,
	})
	if err == nil {
		slog.Info("booking: reservation committed",
			"uid", reservation.UID,
			"resource", resource,
			"start", start.Format(time.RFC3339),
		)
		return reservation, nil, nil
	}
	if !errors.Is(err, store.ErrReservationOverlap) {
		return nil, nil, err
	}

	alternatives, err := r.findAlternatives(ctx, resource, start, req.DurationMins)
	if err != nil {
		return nil, nil, err
	}
	result := &ConflictResult{
		Requested:      start,
		Alternatives:   alternatives,
		NoAvailability: len(alternatives) == 0,
	}
	slog.Info("booking: slot conflict",
		"resource", resource,
		"start", start.Format(time.RFC3339),
		"alternatives", len(alternatives),
	)
	return nil, result, nil
}

func (r *Resolver) Modify(ctx context.Context, req *ModifyRequest) (*store.Reservation, *ConflictResult, error) {
	if req.NewStart.IsZero() {
		return nil, nil, fmt.Errorf("new start time is required")
	}
	existing, err := r.locate(ctx, req.Email, req.Phone, req.Around)
	if err != nil {
		return nil, nil, err
	}

	duration := req.DurationMins
	if duration <= 0 {
		duration = int((existing.EndTs - existing.StartTs) / 60)
	}
	newStart := req.NewStart
	newEnd := newStart.Add(time.Duration(duration) * time.Minute)
	now := r.now().Unix()

	// Release and re-insert run in one store transaction, so moving within
	// the reservation's own range works and a failed move never exposes the
	// released window to concurrent bookings.
	replacement := &store.Reservation{
		UID:         uuid.NewString(),
		Resource:    existing.Resource,
		ServiceType: existing.ServiceType,
		CustomerID:  existing.CustomerID,
		StartTs:     newStart.Unix(),
		EndTs:       newEnd.Unix(),
		Status:      existing.Status,
		Note:        existing.Note,
		CreatedTs:   now,
		UpdatedTs:   now,
	}
	moved, err := r.withRetry(ctx, func() (*store.Reservation, error) {
		return r.store.MoveReservationIfAvailable(ctx, existing.ID, replacement)
	})
	if err == nil {
		slog.Info("booking: reservation moved", "from", existing.UID, "to", moved.UID)
		return moved, nil, nil
	}
	if !errors.Is(err, store.ErrReservationOverlap) {
		return nil, nil, err
	}

	alternatives, err := r.findAlternatives(ctx, existing.Resource, newStart, duration)
	if err != nil {
		return nil, nil, err
	}
	return nil, &ConflictResult{
		Requested:      newStart,
		Alternatives:   alternatives,
		NoAvailability: len(alternatives) == 0,
	}, nil
}

func (r *Resolver) Cancel(ctx context.Context, req *CancelRequest) (*store.Reservation, error) {
	existing, err := r.locate(ctx, req.Email, req.Phone, req.Around)
	if err != nil {
		return nil, err
	}
	cancelled := store.ReservationCancelled
	updated, err := r.store.UpdateReservation(ctx, &store.UpdateReservation{
		ID:        existing.ID,
		Status:    &cancelled,
		UpdatedTs: r.now().Unix(),
	})
	if err != nil {
		return nil, fmt.Errorf("cancel reservation: %w", err)
	}
	slog.Info("booking: reservation cancelled", "uid", updated.UID)
	return updated, nil
}

func (r *Resolver) Upcoming(ctx context.Context, limit int) ([]*store.Reservation, error) {
	if limit <= 0 {
		limit = 50
	}
	after := r.now().Unix()
	return r.store.ListReservations(ctx, &store.FindReservation{
		Statuses:    []store.ReservationStatus{store.ReservationPending, store.ReservationConfirmed},
		StartsAfter: &after,
		Limit:       &limit,
	})
}

// locate finds the single reservation a modify or cancel request refers to.
// Matching is by customer email, narrowed by phone and by time proximity
// when the request carries an "around" hint.
func (r *Resolver) locate(ctx context.Context, email, phone string, around time.Time) (*store.Reservation, error) {
	if email == "" {
		return nil, fmt.Errorf("customer email is required to find a reservation")
	}
	normalized := strings.ToLower(email)
	customer, err := r.store.GetCustomer(ctx, &store.FindCustomer{Email: &normalized})
	if err != nil {
		return nil, fmt.Errorf("find customer: %w", err)
	}
	if customer == nil {
		return nil, ErrReservationNotFound
	}
	if phone != "" && customer.Phone != "" && customer.Phone != phone {
		return nil, ErrReservationNotFound
	}

	after := r.now().Unix()
	candidates, err := r.store.ListReservations(ctx, &store.FindReservation{
		CustomerID:  &customer.ID,
		Statuses:    []store.ReservationStatus{store.ReservationPending, store.ReservationConfirmed},
		StartsAfter: &after,
	})
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}

	if !around.IsZero() {
		nearby := []*store.Reservation{}
		for _, candidate := range candidates {
			distance := candidate.StartTs - around.Unix()
			if distance < 0 {
				distance = -distance
			}
			if distance <= 12*60*60 {
				nearby = append(nearby, candidate)
			}
		}
		candidates = nearby
	}

	switch len(candidates) {
	case 0:
		return nil, ErrReservationNotFound
	case 1:
		return candidates[0], nil
	default:
		return nil, &AmbiguousMatchError{Candidates: candidates}
	}
}

// createWithRetry retries serialization failures a bounded number of times.
// Overlap is a business outcome, never retried.
func (r *Resolver) createWithRetry(ctx context.Context, create *store.Reservation) (*store.Reservation, error) {
	return r.withRetry(ctx, func() (*store.Reservation, error) {
		return r.store.CreateReservationIfAvailable(ctx, create)
	})
}

func (r *Resolver) withRetry(ctx context.Context, op func() (*store.Reservation, error)) (*store.Reservation, error) {
	var lastErr error
	for attempt := 1; attempt <= createAttempts; attempt++ {
		reservation, err := op()
		if err == nil {
			return reservation, nil
		}
		if errors.Is(err, store.ErrReservationOverlap) {
			return nil, err
		}
		if !isSerializationError(err) {
			return nil, fmt.Errorf("commit reservation: %w", err)
		}
		lastErr = err
		slog.Warn("booking: serialization conflict, retrying", "attempt", attempt, "error", err)
		select {
		case <-time.After(time.Duration(attempt) * 50 * time.Millisecond):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrConcurrencyConflict, lastErr)
}

func isSerializationError(err error) bool {
	message := err.Error()
	return strings.Contains(message, "SQLSTATE 40") ||
		strings.Contains(message, "deadlock detected") ||
		strings.Contains(message, "could not serialize") ||
		strings.Contains(message, "database is locked") ||
		strings.Contains(message, "SQLITE_BUSY")
}

// findAlternatives scans forward from the requested slot in duration-sized
// increments inside business hours, up to the horizon.
func (r *Resolver) findAlternatives(ctx context.Context, resource string, requested time.Time, durationMins int) ([]time.Time, error) {
	duration := time.Duration(durationMins) * time.Minute
	horizon := requested.AddDate(0, 0, r.config.HorizonDays)
	location := r.config.Location

	alternatives := []time.Time{}
	cursor := requested.In(location)
	for cursor.Before(horizon) && len(alternatives) < r.config.MaxAlternatives {
		cursor = cursor.Add(duration)
		candidate, ok := r.clampToBusinessHours(cursor, duration)
		if !ok {
			// Jumped to the next day; continue scanning from there.
			cursor = candidate
		}
		if candidate.Add(duration).After(horizon) {
			break
		}
		free, err := r.slotFree(ctx, resource, candidate, candidate.Add(duration))
		if err != nil {
			return nil, err
		}
		if free {
			alternatives = append(alternatives, candidate)
		}
		cursor = candidate
	}
	return alternatives, nil
}

// clampToBusinessHours moves a candidate inside the business window,
// returning false when it was pushed to the next day's opening.
func (r *Resolver) clampToBusinessHours(candidate time.Time, duration time.Duration) (time.Time, bool) {
	location := r.config.Location
	candidate = candidate.In(location)
	dayOpen := time.Date(candidate.Year(), candidate.Month(), candidate.Day(), r.config.BusinessHourStart, 0, 0, 0, location)
	dayClose := time.Date(candidate.Year(), candidate.Month(), candidate.Day(), r.config.BusinessHourEnd, 0, 0, 0, location)

	if candidate.Before(dayOpen) {
		return dayOpen, false
	}
	if candidate.Add(duration).After(dayClose) {
		return dayOpen.AddDate(0, 0, 1), false
	}
	return candidate, true
}

func (r *Resolver) slotFree(ctx context.Context, resource string, start, end time.Time) (bool, error) {
	before := end.Unix()
	reservations, err := r.store.ListReservations(ctx, &store.FindReservation{
		Resource:     &resource,
		Statuses:     []store.ReservationStatus{store.ReservationPending, store.ReservationConfirmed},
		StartsBefore: &before,
	})
	if err != nil {
		return false, fmt.Errorf("check slot: %w", err)
	}
	for _, reservation := range reservations {
		if reservation.Overlaps(start.Unix(), end.Unix()) {
			return false, nil
		}
	}
	return true, nil
}
