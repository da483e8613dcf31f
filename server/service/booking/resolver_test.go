package booking

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aishwaryashinde26/Neo-stat-ai-engineer/store"
)

// fakeStore implements Store in memory with the same atomicity contract as
// the real drivers: overlap check and insert under one lock.
type fakeStore struct {
	mu           sync.Mutex
	nextID       int32
	customers    map[string]*store.Customer
	reservations []*store.Reservation
}

func newFakeStore() *fakeStore {
	return &fakeStore{customers: map[string]*store.Customer{}}
}

func (f *fakeStore) UpsertCustomer(_ context.Context, upsert *store.Customer) (*store.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing := f.customers[upsert.Email]; existing != nil {
		existing.Name = upsert.Name
		existing.Phone = upsert.Phone
		return existing, nil
	}
	f.nextID++
	upsert.ID = f.nextID
	f.customers[upsert.Email] = upsert
	return upsert, nil
}

func (f *fakeStore) GetCustomer(_ context.Context, find *store.FindCustomer) (*store.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if find.Email != nil {
		return f.customers[*find.Email], nil
	}
	for _, customer := range f.customers {
		if find.ID != nil && customer.ID == *find.ID {
			return customer, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) CreateReservationIfAvailable(_ context.Context, create *store.Reservation) (*store.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.reservations {
		if existing.Resource == create.Resource && existing.Active() && existing.Overlaps(create.StartTs, create.EndTs) {
			return nil, store.ErrReservationOverlap
		}
	}
	f.nextID++
	create.ID = f.nextID
	f.reservations = append(f.reservations, create)
	return create, nil
}

func (f *fakeStore) MoveReservationIfAvailable(_ context.Context, releaseID int32, create *store.Reservation) (*store.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var released *store.Reservation
	for _, r := range f.reservations {
		if r.ID == releaseID {
			released = r
		}
	}
	if released == nil {
		return nil, fmt.Errorf("reservation %d not found", releaseID)
	}
	for _, existing := range f.reservations {
		if existing.ID == releaseID {
			continue
		}
		if existing.Resource == create.Resource && existing.Active() && existing.Overlaps(create.StartTs, create.EndTs) {
			return nil, store.ErrReservationOverlap
		}
	}
	released.Status = store.ReservationCancelled
	released.UpdatedTs = create.UpdatedTs
	f.nextID++
	create.ID = f.nextID
	f.reservations = append(f.reservations, create)
	return create, nil
}

func (f *fakeStore) ListReservations(_ context.Context, find *store.FindReservation) ([]*store.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := []*store.Reservation{}
	for _, r := range f.reservations {
		if find.Resource != nil && r.Resource != *find.Resource {
			continue
		}
		if find.CustomerID != nil && r.CustomerID != *find.CustomerID {
			continue
		}
		if len(find.Statuses) > 0 {
			match := false
			for _, status := range find.Statuses {
				if r.Status == status {
					match = true
				}
			}
			if !match {
				continue
			}
		}
		if find.StartsAfter != nil && r.StartTs < *find.StartsAfter {
			continue
		}
		if find.StartsBefore != nil && r.StartTs >= *find.StartsBefore {
			continue
		}
		list = append(list, r)
	}
	if find.Limit != nil && len(list) > *find.Limit {
		list = list[:*find.Limit]
	}
	return list, nil
}

func (f *fakeStore) UpdateReservation(_ context.Context, update *store.UpdateReservation) (*store.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.reservations {
		if r.ID == update.ID {
			if update.Status != nil {
				r.Status = *update.Status
			}
			if update.StartTs != nil {
				r.StartTs = *update.StartTs
			}
			if update.EndTs != nil {
				r.EndTs = *update.EndTs
			}
			r.UpdatedTs = update.UpdatedTs
			return r, nil
		}
	}
	return nil, store.ErrReservationOverlap
}

func testResolver(st Store) *Resolver {
	resolver := NewResolver(st, Config{})
	resolver.now = func() time.Time {
		return time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	}
	return resolver
}

func bookingRequest(start time.Time) *Request {
	return &Request{
		ServiceType:  "consultation",
		CustomerName: "Jordan Wells",
		Email:        "jordan@example.com",
		Phone:        "+15550102233",
		Start:        start,
		DurationMins: 60,
	}
}

func TestResolveCommitsFreeSlot(t *testing.T) {
	st := newFakeStore()
	resolver := testResolver(st)
	start := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

	reservation, conflict, err := resolver.Resolve(context.Background(), bookingRequest(start))
	require.NoError(t, err)
	require.Nil(t, conflict)
	require.NotNil(t, reservation)
	require.Equal(t, store.ReservationConfirmed, reservation.Status)
	require.Equal(t, start.Unix(), reservation.StartTs)
	require.Equal(t, start.Add(time.Hour).Unix(), reservation.EndTs)
	require.NotEmpty(t, reservation.UID)

	// Customer was upserted by email.
	require.NotNil(t, st.customers["jordan@example.com"])
}

func TestResolveConflictReturnsAlternatives(t *testing.T) {
	st := newFakeStore()
	resolver := testResolver(st)
	start := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

	_, _, err := resolver.Resolve(context.Background(), bookingRequest(start))
	require.NoError(t, err)

	second := bookingRequest(start)
	second.Email = "casey@example.com"
	reservation, conflict, err := resolver.Resolve(context.Background(), second)
	require.NoError(t, err)
	require.Nil(t, reservation)
	require.NotNil(t, conflict)
	require.False(t, conflict.NoAvailability)
	require.Len(t, conflict.Alternatives, 3)

	// Alternatives are in the future of the requested slot and inside
	// business hours.
	for _, alternative := range conflict.Alternatives {
		require.True(t, alternative.After(start))
		require.GreaterOrEqual(t, alternative.Hour(), 9)
		require.LessOrEqual(t, alternative.Hour()+1, 18)
	}
}

func TestResolveConcurrentBookingsSingleWinner(t *testing.T) {
	st := newFakeStore()
	resolver := testResolver(st)
	start := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

	const contenders = 8
	var wg sync.WaitGroup
	results := make(chan *store.Reservation, contenders)
	errs := make(chan error, contenders)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			req := bookingRequest(start)
			req.Email = strings.ToLower(strings.Repeat("x", n+1)) + "@example.com"
			reservation, _, err := resolver.Resolve(context.Background(), req)
			if err != nil {
				errs <- err
				return
			}
			if reservation != nil {
				results <- reservation
			}
		}(i)
	}
	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	winners := 0
	for range results {
		winners++
	}
	require.Equal(t, 1, winners)
}

func TestResolveNoAvailability(t *testing.T) {
	st := newFakeStore()
	resolver := testResolver(st)
	resolver.config.HorizonDays = 1
	resolver.config.BusinessHourStart = 9
	resolver.config.BusinessHourEnd = 11

	// Fill the entire one-day horizon.
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	for d := 0; d < 2; d++ {
		for hour := 9; hour < 11; hour++ {
			start := day.AddDate(0, 0, d).Add(time.Duration(hour) * time.Hour)
			req := bookingRequest(start)
			_, _, err := resolver.Resolve(context.Background(), req)
			require.NoError(t, err)
		}
	}

	req := bookingRequest(day.Add(9 * time.Hour))
	reservation, conflict, err := resolver.Resolve(context.Background(), req)
	require.NoError(t, err)
	require.Nil(t, reservation)
	require.NotNil(t, conflict)
	require.True(t, conflict.NoAvailability)
	require.Empty(t, conflict.Alternatives)
}

func TestCancelByContact(t *testing.T) {
	st := newFakeStore()
	resolver := testResolver(st)
	start := time.Date(2026, 3, 11, 10, 0, 0, 0, time.UTC)

	_, _, err := resolver.Resolve(context.Background(), bookingRequest(start))
	require.NoError(t, err)

	cancelled, err := resolver.Cancel(context.Background(), &CancelRequest{Email: "jordan@example.com"})
	require.NoError(t, err)
	require.Equal(t, store.ReservationCancelled, cancelled.Status)

	// The slot is free again.
	reservation, conflict, err := resolver.Resolve(context.Background(), bookingRequest(start))
	require.NoError(t, err)
	require.Nil(t, conflict)
	require.NotNil(t, reservation)
}

func TestCancelUnknownCustomer(t *testing.T) {
	resolver := testResolver(newFakeStore())

	_, err := resolver.Cancel(context.Background(), &CancelRequest{Email: "nobody@example.com"})
	require.ErrorIs(t, err, ErrReservationNotFound)
}

func TestCancelAmbiguousWithoutHint(t *testing.T) {
	st := newFakeStore()
	resolver := testResolver(st)

	for _, day := range []int{11, 12} {
		start := time.Date(2026, 3, day, 10, 0, 0, 0, time.UTC)
		_, _, err := resolver.Resolve(context.Background(), bookingRequest(start))
		require.NoError(t, err)
	}

	_, err := resolver.Cancel(context.Background(), &CancelRequest{Email: "jordan@example.com"})
	var ambiguous *AmbiguousMatchError
	require.ErrorAs(t, err, &ambiguous)
	require.Len(t, ambiguous.Candidates, 2)

	// A time hint narrows the match to one.
	cancelled, err := resolver.Cancel(context.Background(), &CancelRequest{
		Email:  "jordan@example.com",
		Around: time.Date(2026, 3, 12, 9, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, 3, 12, 10, 0, 0, 0, time.UTC).Unix(), cancelled.StartTs)
}

func TestModifyMovesReservation(t *testing.T) {
	st := newFakeStore()
	resolver := testResolver(st)
	start := time.Date(2026, 3, 11, 10, 0, 0, 0, time.UTC)

	_, _, err := resolver.Resolve(context.Background(), bookingRequest(start))
	require.NoError(t, err)

	newStart := time.Date(2026, 3, 11, 14, 0, 0, 0, time.UTC)
	moved, conflict, err := resolver.Modify(context.Background(), &ModifyRequest{
		Email:    "jordan@example.com",
		NewStart: newStart,
	})
	require.NoError(t, err)
	require.Nil(t, conflict)
	require.Equal(t, newStart.Unix(), moved.StartTs)
	// Duration carried over from the original reservation.
	require.Equal(t, newStart.Add(time.Hour).Unix(), moved.EndTs)
}

func TestModifyConflictRestoresOriginal(t *testing.T) {
	st := newFakeStore()
	resolver := testResolver(st)
	mine := time.Date(2026, 3, 11, 10, 0, 0, 0, time.UTC)
	theirs := time.Date(2026, 3, 11, 14, 0, 0, 0, time.UTC)

	_, _, err := resolver.Resolve(context.Background(), bookingRequest(mine))
	require.NoError(t, err)
	other := bookingRequest(theirs)
	other.Email = "casey@example.com"
	_, _, err = resolver.Resolve(context.Background(), other)
	require.NoError(t, err)

	moved, conflict, err := resolver.Modify(context.Background(), &ModifyRequest{
		Email:    "jordan@example.com",
		NewStart: theirs,
	})
	require.NoError(t, err)
	require.Nil(t, moved)
	require.NotNil(t, conflict)

	// The original reservation is still active.
	upcoming, err := resolver.Upcoming(context.Background(), 10)
	require.NoError(t, err)
	starts := []int64{}
	for _, r := range upcoming {
		starts = append(starts, r.StartTs)
	}
	require.Contains(t, starts, mine.Unix())
}

// hookedStore interleaves a contender at the moment a reservation write
// begins, the only seam concurrent work can observe.
type hookedStore struct {
	*fakeStore
	beforeMove func()
}

func (h *hookedStore) MoveReservationIfAvailable(ctx context.Context, releaseID int32, create *store.Reservation) (*store.Reservation, error) {
	if h.beforeMove != nil {
		h.beforeMove()
	}
	return h.fakeStore.MoveReservationIfAvailable(ctx, releaseID, create)
}

func assertNoActiveOverlap(t *testing.T, st *fakeStore) {
	t.Helper()
	st.mu.Lock()
	defer st.mu.Unlock()
	for i, a := range st.reservations {
		for _, b := range st.reservations[i+1:] {
			if a.Resource == b.Resource && a.Active() && b.Active() {
				require.False(t, a.Overlaps(b.StartTs, b.EndTs),
					"reservations %q and %q overlap", a.UID, b.UID)
			}
		}
	}
}

func TestModifyWithinOwnRange(t *testing.T) {
	st := newFakeStore()
	resolver := testResolver(st)
	start := time.Date(2026, 3, 11, 10, 0, 0, 0, time.UTC)

	_, _, err := resolver.Resolve(context.Background(), bookingRequest(start))
	require.NoError(t, err)

	// The new range overlaps the old one; releasing and re-inserting in one
	// transaction makes this a plain move, not a self-conflict.
	newStart := start.Add(30 * time.Minute)
	moved, conflict, err := resolver.Modify(context.Background(), &ModifyRequest{
		Email:    "jordan@example.com",
		NewStart: newStart,
	})
	require.NoError(t, err)
	require.Nil(t, conflict)
	require.Equal(t, newStart.Unix(), moved.StartTs)
	assertNoActiveOverlap(t, st)
}

func TestModifyBlockedMoveNeverReleasesOldSlot(t *testing.T) {
	inner := newFakeStore()
	st := &hookedStore{fakeStore: inner}
	resolver := testResolver(st)
	mine := time.Date(2026, 3, 11, 14, 0, 0, 0, time.UTC)
	theirs := time.Date(2026, 3, 11, 16, 0, 0, 0, time.UTC)

	_, _, err := resolver.Resolve(context.Background(), bookingRequest(mine))
	require.NoError(t, err)
	other := bookingRequest(theirs)
	other.Email = "casey@example.com"
	_, _, err = resolver.Resolve(context.Background(), other)
	require.NoError(t, err)

	// A contender races for the first half of the old slot while the move
	// is in flight. The old slot is never released before the move commits,
	// so the contender must lose.
	var contenderErr error
	st.beforeMove = func() {
		_, contenderErr = inner.CreateReservationIfAvailable(context.Background(), &store.Reservation{
			UID:      "contender",
			Resource: "default",
			StartTs:  mine.Unix(),
			EndTs:    mine.Add(30 * time.Minute).Unix(),
			Status:   store.ReservationConfirmed,
		})
	}

	moved, conflict, err := resolver.Modify(context.Background(), &ModifyRequest{
		Email:    "jordan@example.com",
		NewStart: theirs,
	})
	require.NoError(t, err)
	require.Nil(t, moved)
	require.NotNil(t, conflict)
	require.ErrorIs(t, contenderErr, store.ErrReservationOverlap)

	// The original reservation still holds its slot.
	upcoming, err := resolver.Upcoming(context.Background(), 10)
	require.NoError(t, err)
	starts := []int64{}
	for _, r := range upcoming {
		starts = append(starts, r.StartTs)
	}
	require.Contains(t, starts, mine.Unix())
	assertNoActiveOverlap(t, inner)
}

// failingCreateStore rejects every reservation insert with a fixed error,
// running onCall first.
type failingCreateStore struct {
	*fakeStore
	err    error
	onCall func()
}

func (s *failingCreateStore) CreateReservationIfAvailable(_ context.Context, _ *store.Reservation) (*store.Reservation, error) {
	if s.onCall != nil {
		s.onCall()
	}
	return nil, s.err
}

func TestResolveCancelledContextLeavesStoreUnchanged(t *testing.T) {
	inner := newFakeStore()
	ctx, cancel := context.WithCancel(context.Background())
	st := &failingCreateStore{
		fakeStore: inner,
		err:       fmt.Errorf("database is locked"),
		onCall:    cancel,
	}
	resolver := testResolver(st)

	start := time.Date(2026, 3, 11, 10, 0, 0, 0, time.UTC)
	reservation, conflict, err := resolver.Resolve(ctx, bookingRequest(start))
	require.ErrorIs(t, err, context.Canceled)
	require.Nil(t, reservation)
	require.Nil(t, conflict)

	// Nothing was committed.
	inner.mu.Lock()
	defer inner.mu.Unlock()
	require.Empty(t, inner.reservations)
}

func TestUpcomingExcludesCancelled(t *testing.T) {
	st := newFakeStore()
	resolver := testResolver(st)

	_, _, err := resolver.Resolve(context.Background(), bookingRequest(time.Date(2026, 3, 11, 10, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	_, err = resolver.Cancel(context.Background(), &CancelRequest{Email: "jordan@example.com"})
	require.NoError(t, err)

	upcoming, err := resolver.Upcoming(context.Background(), 10)
	require.NoError(t, err)
	require.Empty(t, upcoming)
}
