package dialogue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aishwaryashinde26/Neo-stat-ai-engineer/ai/core/llm"
	"github.com/aishwaryashinde26/Neo-stat-ai-engineer/server/service/booking"
	"github.com/aishwaryashinde26/Neo-stat-ai-engineer/store"
)

// fakeStore is an in-memory conversation store.
type fakeStore struct {
	mu            sync.Mutex
	sessions      map[string]*store.ConversationSession
	turns         []*store.ConversationTurn
	nextSessionID int32
	nextTurnID    int32
}

func newFakeStore() *fakeStore {
	return &fakeStore{sessions: map[string]*store.ConversationSession{}}
}

func (f *fakeStore) CreateConversationSession(ctx context.Context, create *store.ConversationSession) (*store.ConversationSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[create.UID]; ok {
		return nil, fmt.Errorf("session uid %s already exists", create.UID)
	}
	f.nextSessionID++
	session := *create
	session.ID = f.nextSessionID
	f.sessions[session.UID] = &session
	return &session, nil
}

func (f *fakeStore) GetConversationSession(ctx context.Context, uid string) (*store.ConversationSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[uid]
	if !ok {
		return nil, nil
	}
	copied := *session
	return &copied, nil
}

func (f *fakeStore) UpdateConversationSession(ctx context.Context, update *store.UpdateConversationSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, session := range f.sessions {
		if session.ID != update.ID {
			continue
		}
		if update.Summary != nil {
			session.Summary = *update.Summary
		}
		if update.SummarizedThroughID != nil {
			session.SummarizedThroughID = *update.SummarizedThroughID
		}
		if update.LastActiveTs != nil {
			session.LastActiveTs = *update.LastActiveTs
		}
		return nil
	}
	return fmt.Errorf("session %d not found", update.ID)
}

func (f *fakeStore) DeleteConversationSession(ctx context.Context, uid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[uid]
	if !ok {
		return nil
	}
	delete(f.sessions, uid)
	kept := f.turns[:0]
	for _, turn := range f.turns {
		if turn.SessionID != session.ID {
			kept = append(kept, turn)
		}
	}
	f.turns = kept
	return nil
}

func (f *fakeStore) DeleteExpiredConversationSessions(ctx context.Context, lastActiveBefore int64) (int64, error) {
	f.mu.Lock()
	var expired []string
	for uid, session := range f.sessions {
		if session.LastActiveTs < lastActiveBefore {
			expired = append(expired, uid)
		}
	}
	f.mu.Unlock()
	for _, uid := range expired {
		if err := f.DeleteConversationSession(ctx, uid); err != nil {
			return 0, err
		}
	}
	return int64(len(expired)), nil
}

func (f *fakeStore) AppendConversationTurn(ctx context.Context, create *store.ConversationTurn) (*store.ConversationTurn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextTurnID++
	turn := *create
	turn.ID = f.nextTurnID
	f.turns = append(f.turns, &turn)
	copied := turn
	return &copied, nil
}

func (f *fakeStore) ListConversationTurns(ctx context.Context, find *store.FindConversationTurn) ([]*store.ConversationTurn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matched []*store.ConversationTurn
	for _, turn := range f.turns {
		if turn.SessionID != find.SessionID {
			continue
		}
		if find.AfterID != nil && turn.ID <= *find.AfterID {
			continue
		}
		copied := *turn
		matched = append(matched, &copied)
	}
	if find.Descending {
		for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
			matched[i], matched[j] = matched[j], matched[i]
		}
	}
	if find.Limit != nil && len(matched) > *find.Limit {
		matched = matched[:*find.Limit]
	}
	return matched, nil
}

func (f *fakeStore) CountConversationTurns(ctx context.Context, sessionID int32) (int32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int32
	for _, turn := range f.turns {
		if turn.SessionID == sessionID {
			count++
		}
	}
	return count, nil
}

// fixedLLM answers every call with a canned response, or fails when err is
// set.
type fixedLLM struct {
	response string
	err      error
	calls    int
}

func (f *fixedLLM) Chat(ctx context.Context, messages []llm.Message) (string, *llm.CallStats, error) {
	f.calls++
	if f.err != nil {
		return "", nil, f.err
	}
	return f.response, &llm.CallStats{TotalTokens: 10}, nil
}

func (f *fixedLLM) ChatJSON(ctx context.Context, messages []llm.Message) (string, *llm.CallStats, error) {
	return f.Chat(ctx, messages)
}

func (f *fixedLLM) Warmup(ctx context.Context) {}

// fakeBooking records calls and returns whatever the test programmed.
type fakeBooking struct {
	mu          sync.Mutex
	resolveReq  *booking.Request
	modifyReq   *booking.ModifyRequest
	cancelReq   *booking.CancelRequest
	reservation *store.Reservation
	conflict    *booking.ConflictResult
	err         error
}

func (f *fakeBooking) Resolve(ctx context.Context, req *booking.Request) (*store.Reservation, *booking.ConflictResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolveReq = req
	return f.reservation, f.conflict, f.err
}

func (f *fakeBooking) Modify(ctx context.Context, req *booking.ModifyRequest) (*store.Reservation, *booking.ConflictResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.modifyReq = req
	return f.reservation, f.conflict, f.err
}

func (f *fakeBooking) Cancel(ctx context.Context, req *booking.CancelRequest) (*store.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelReq = req
	return f.reservation, f.err
}

func (f *fakeBooking) Upcoming(ctx context.Context, limit int) ([]*store.Reservation, error) {
	if f.reservation == nil {
		return nil, nil
	}
	return []*store.Reservation{f.reservation}, nil
}

// recordingNotifier captures confirmation deliveries.
type recordingNotifier struct {
	mu    sync.Mutex
	email string
	count int
}

func (n *recordingNotifier) ConfirmReservation(ctx context.Context, email string, reservation *store.Reservation) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.email = email
	n.count++
	return nil
}

func testClock() func() time.Time {
	fixed := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	return func() time.Time { return fixed }
}
