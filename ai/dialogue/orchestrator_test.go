package dialogue

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aishwaryashinde26/Neo-stat-ai-engineer/ai/extractor"
	"github.com/aishwaryashinde26/Neo-stat-ai-engineer/server/service/booking"
	"github.com/aishwaryashinde26/Neo-stat-ai-engineer/store"
)

func testOrchestrator(t *testing.T, bookingService booking.Service, opts ...Option) (*Orchestrator, *fakeStore) {
	t.Helper()
	st := newFakeStore()
	memory := NewMemory(st, nil, DefaultWindow, time.Hour)
	memory.now = testClock()
	opts = append([]Option{WithClock(testClock())}, opts...)
	o := NewOrchestrator(memory, extractor.New(nil), bookingService, nil, nil, opts...)
	return o, st
}

func TestHandleTurnBookingConversation(t *testing.T) {
	bookingService := &fakeBooking{
		reservation: &store.Reservation{
			UID:         "res-1",
			ServiceType: "consultation",
			StartTs:     time.Date(2026, 3, 11, 14, 0, 0, 0, time.UTC).Unix(),
		},
	}
	notifier := &recordingNotifier{}
	o, _ := testOrchestrator(t, bookingService, WithNotifier(notifier))
	ctx := context.Background()

	reply, err := o.HandleTurn(ctx, "s1", "book a 30 minute consultation tomorrow at 2pm")
	require.NoError(t, err)
	require.Equal(t, StateClarifying, reply.State)
	require.Contains(t, reply.Text, "name")

	reply, err = o.HandleTurn(ctx, "s1", "my name is Jordan Wells")
	require.NoError(t, err)
	require.Equal(t, StateClarifying, reply.State)
	require.Contains(t, reply.Text, "email")

	reply, err = o.HandleTurn(ctx, "s1", "jordan@example.com")
	require.NoError(t, err)
	require.Equal(t, StateClarifying, reply.State)
	require.Contains(t, reply.Text, "phone")

	reply, err = o.HandleTurn(ctx, "s1", "+1 555 010 2233")
	require.NoError(t, err)
	require.Equal(t, StateConfirming, reply.State)
	require.Contains(t, reply.Text, "2026-03-11")
	require.Contains(t, reply.Text, "14:00")

	reply, err = o.HandleTurn(ctx, "s1", "yes please")
	require.NoError(t, err)
	require.Equal(t, StateIdle, reply.State)
	require.NotNil(t, reply.Reservation)
	require.Equal(t, "res-1", reply.Reservation.UID)

	require.NotNil(t, bookingService.resolveReq)
	require.Equal(t, "jordan@example.com", bookingService.resolveReq.Email)
	require.Equal(t, "Jordan Wells", bookingService.resolveReq.CustomerName)
	require.Equal(t, 30, bookingService.resolveReq.DurationMins)
	require.Equal(t, time.Date(2026, 3, 11, 14, 0, 0, 0, time.UTC), bookingService.resolveReq.Start)

	require.Equal(t, 1, notifier.count)
	require.Equal(t, "jordan@example.com", notifier.email)
}

func TestHandleTurnDeclinedConfirmation(t *testing.T) {
	bookingService := &fakeBooking{}
	o, _ := testOrchestrator(t, bookingService)
	ctx := context.Background()

	utterance := "book a consultation tomorrow at 2pm, my name is Jordan Wells, email jordan@example.com, phone +15550102233"
	reply, err := o.HandleTurn(ctx, "s1", utterance)
	require.NoError(t, err)
	require.Equal(t, StateConfirming, reply.State)

	reply, err = o.HandleTurn(ctx, "s1", "no, never mind")
	require.NoError(t, err)
	require.Equal(t, StateIdle, reply.State)
	require.Nil(t, bookingService.resolveReq, "declined booking must not reach the resolver")
}

func TestHandleTurnConflictOffersAlternatives(t *testing.T) {
	alternatives := []time.Time{
		time.Date(2026, 3, 11, 15, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 11, 16, 0, 0, 0, time.UTC),
	}
	bookingService := &fakeBooking{
		conflict: &booking.ConflictResult{
			Requested:    time.Date(2026, 3, 11, 14, 0, 0, 0, time.UTC),
			Alternatives: alternatives,
		},
	}
	o, _ := testOrchestrator(t, bookingService)
	ctx := context.Background()

	utterance := "book a consultation tomorrow at 2pm, my name is Jordan Wells, email jordan@example.com, phone +15550102233"
	_, err := o.HandleTurn(ctx, "s1", utterance)
	require.NoError(t, err)

	reply, err := o.HandleTurn(ctx, "s1", "yes")
	require.NoError(t, err)
	require.Equal(t, StateClarifying, reply.State)
	require.Equal(t, alternatives, reply.Alternatives)
	require.Contains(t, reply.Text, "15:00")
}

func TestHandleTurnNoAvailability(t *testing.T) {
	bookingService := &fakeBooking{
		conflict: &booking.ConflictResult{NoAvailability: true},
	}
	o, _ := testOrchestrator(t, bookingService)
	ctx := context.Background()

	utterance := "book a consultation tomorrow at 2pm, my name is Jordan Wells, email jordan@example.com, phone +15550102233"
	_, err := o.HandleTurn(ctx, "s1", utterance)
	require.NoError(t, err)

	reply, err := o.HandleTurn(ctx, "s1", "yes")
	require.NoError(t, err)
	require.Equal(t, StateClarifying, reply.State)
	require.Empty(t, reply.Alternatives)
}

func TestHandleTurnCancelByContact(t *testing.T) {
	bookingService := &fakeBooking{
		reservation: &store.Reservation{
			UID:         "res-9",
			ServiceType: "demo",
			StartTs:     time.Date(2026, 3, 12, 10, 0, 0, 0, time.UTC).Unix(),
			Status:      store.ReservationCancelled,
		},
	}
	o, _ := testOrchestrator(t, bookingService)

	reply, err := o.HandleTurn(context.Background(), "s1", "cancel my appointment, email jordan@example.com")
	require.NoError(t, err)
	require.Equal(t, StateIdle, reply.State)
	require.Contains(t, reply.Text, "Cancelled")
	require.NotNil(t, bookingService.cancelReq)
	require.Equal(t, "jordan@example.com", bookingService.cancelReq.Email)
}

func TestHandleTurnCancelNeedsEmail(t *testing.T) {
	o, _ := testOrchestrator(t, &fakeBooking{})

	reply, err := o.HandleTurn(context.Background(), "s1", "please cancel my appointment")
	require.NoError(t, err)
	require.Equal(t, StateClarifying, reply.State)
	require.Contains(t, reply.Text, "email")
}

func TestHandleTurnAmbiguousMatchAsksWhich(t *testing.T) {
	bookingService := &fakeBooking{
		err: &booking.AmbiguousMatchError{
			Candidates: []*store.Reservation{
				{ServiceType: "demo", StartTs: time.Date(2026, 3, 12, 10, 0, 0, 0, time.UTC).Unix()},
				{ServiceType: "consultation", StartTs: time.Date(2026, 3, 13, 11, 0, 0, 0, time.UTC).Unix()},
			},
		},
	}
	o, _ := testOrchestrator(t, bookingService)

	reply, err := o.HandleTurn(context.Background(), "s1", "cancel my appointment, email jordan@example.com")
	require.NoError(t, err)
	require.Equal(t, StateClarifying, reply.State)
	require.Contains(t, reply.Text, "2 upcoming reservations")
}

func TestHandleTurnUnknownCustomer(t *testing.T) {
	bookingService := &fakeBooking{err: booking.ErrReservationNotFound}
	o, _ := testOrchestrator(t, bookingService)

	reply, err := o.HandleTurn(context.Background(), "s1", "cancel my appointment, email nobody@example.com")
	require.NoError(t, err)
	require.Equal(t, StateIdle, reply.State)
	require.Contains(t, reply.Text, "could not find")
}

func TestHandleTurnQueryWithoutRetrieverDegrades(t *testing.T) {
	o, _ := testOrchestrator(t, &fakeBooking{})

	reply, err := o.HandleTurn(context.Background(), "s1", "what services do you offer?")
	require.NoError(t, err)
	require.Equal(t, StateIdle, reply.State)
	require.Contains(t, reply.Text, "book, move, or cancel")
	require.True(t, reply.Degraded)
}

func TestHandleTurnFailingLLMReportsDegraded(t *testing.T) {
	llmMock := &fixedLLM{err: fmt.Errorf("connection refused")}
	st := newFakeStore()
	memory := NewMemory(st, nil, DefaultWindow, time.Hour)
	memory.now = testClock()
	o := NewOrchestrator(memory, extractor.New(nil), &fakeBooking{}, nil, llmMock, WithClock(testClock()))

	reply, err := o.HandleTurn(context.Background(), "s1", "hello there")
	require.NoError(t, err)
	require.True(t, reply.Degraded)
	require.Contains(t, reply.Text, "book, move, or cancel")

	// The turn still committed despite the outage.
	session, err := st.GetConversationSession(context.Background(), "s1")
	require.NoError(t, err)
	turns, err := st.ListConversationTurns(context.Background(), &store.FindConversationTurn{SessionID: session.ID})
	require.NoError(t, err)
	require.Len(t, turns, 2)
}

func TestHandleTurnChitchatUsesLLM(t *testing.T) {
	llmMock := &fixedLLM{response: "Hello! How can I help you today?"}
	st := newFakeStore()
	memory := NewMemory(st, nil, DefaultWindow, time.Hour)
	memory.now = testClock()
	o := NewOrchestrator(memory, extractor.New(nil), &fakeBooking{}, nil, llmMock, WithClock(testClock()))

	reply, err := o.HandleTurn(context.Background(), "s1", "hello there")
	require.NoError(t, err)
	require.Equal(t, "Hello! How can I help you today?", reply.Text)
	require.Equal(t, 1, llmMock.calls)
}

func TestHandleTurnPersistsTranscript(t *testing.T) {
	o, st := testOrchestrator(t, &fakeBooking{})
	ctx := context.Background()

	reply, err := o.HandleTurn(ctx, "s1", "book a consultation tomorrow at 2pm")
	require.NoError(t, err)
	require.Equal(t, "s1", reply.SessionUID)

	session, err := st.GetConversationSession(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, session)

	turns, err := st.ListConversationTurns(ctx, &store.FindConversationTurn{SessionID: session.ID})
	require.NoError(t, err)
	require.Len(t, turns, 2)
	require.Equal(t, store.TurnRoleUser, turns[0].Role)
	require.NotNil(t, turns[0].IntentJSON, "user turns carry the extracted intent")
	require.Equal(t, store.TurnRoleAssistant, turns[1].Role)
	require.Nil(t, turns[1].IntentJSON)
}

func TestHandleTurnSerializedPerSession(t *testing.T) {
	o, st := testOrchestrator(t, &fakeBooking{})
	ctx := context.Background()

	done := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func() {
			_, err := o.HandleTurn(ctx, "s1", "book a consultation")
			done <- err
		}()
	}
	for i := 0; i < 8; i++ {
		require.NoError(t, <-done)
	}

	session, err := st.GetConversationSession(ctx, "s1")
	require.NoError(t, err)
	turns, err := st.ListConversationTurns(ctx, &store.FindConversationTurn{SessionID: session.ID})
	require.NoError(t, err)
	require.Len(t, turns, 16, "each turn appends exactly one user and one assistant row")
}

func TestHandleTurnRelativeDateResolvesAgainstClock(t *testing.T) {
	bookingService := &fakeBooking{reservation: &store.Reservation{UID: "res-1", ServiceType: "demo"}}
	o, _ := testOrchestrator(t, bookingService)
	ctx := context.Background()

	utterance := "book a demo next friday at 10am, my name is Jordan Wells, email jordan@example.com, phone +15550102233"
	reply, err := o.HandleTurn(ctx, "s1", utterance)
	require.NoError(t, err)
	require.Equal(t, StateConfirming, reply.State)
	// Anchor is Tuesday 2026-03-10, so next friday is 2026-03-13.
	require.Contains(t, reply.Text, "2026-03-13")
}

func TestResetSessionClearsStateAndTranscript(t *testing.T) {
	o, st := testOrchestrator(t, &fakeBooking{})
	ctx := context.Background()

	_, err := o.HandleTurn(ctx, "s1", "book a consultation tomorrow at 2pm")
	require.NoError(t, err)

	require.NoError(t, o.ResetSession(ctx, "s1"))

	session, err := st.GetConversationSession(ctx, "s1")
	require.NoError(t, err)
	require.Nil(t, session)

	// The pending partial intent must not leak into the fresh session.
	reply, err := o.HandleTurn(ctx, "s1", "my name is Jordan Wells")
	require.NoError(t, err)
	require.NotEqual(t, string(extractor.LabelBook), reply.Intent)
}

func TestHandleTurnEmptyUtterance(t *testing.T) {
	o, _ := testOrchestrator(t, &fakeBooking{})

	_, err := o.HandleTurn(context.Background(), "s1", "   ")
	require.Error(t, err)
}
