package dialogue

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lithammer/shortuuid/v4"

	"github.com/aishwaryashinde26/Neo-stat-ai-engineer/store"
)

// Store is the persistence surface the dialogue package needs. *store.Store
// satisfies it.
type Store interface {
	CreateConversationSession(ctx context.Context, create *store.ConversationSession) (*store.ConversationSession, error)
	GetConversationSession(ctx context.Context, uid string) (*store.ConversationSession, error)
	UpdateConversationSession(ctx context.Context, update *store.UpdateConversationSession) error
	DeleteConversationSession(ctx context.Context, uid string) error
	DeleteExpiredConversationSessions(ctx context.Context, lastActiveBefore int64) (int64, error)
	AppendConversationTurn(ctx context.Context, create *store.ConversationTurn) (*store.ConversationTurn, error)
	ListConversationTurns(ctx context.Context, find *store.FindConversationTurn) ([]*store.ConversationTurn, error)
	CountConversationTurns(ctx context.Context, sessionID int32) (int32, error)
}

// DefaultWindow is the recent-turn window size.
const DefaultWindow = 10

// SessionStats reports basic counters for one session.
type SessionStats struct {
	SessionUID string `json:"sessionUid"`
	Turns      int32  `json:"turns"`
	HasSummary bool   `json:"hasSummary"`
	CreatedTs  int64  `json:"createdTs"`
	LastActive int64  `json:"lastActiveTs"`
}

// Memory is the conversation memory store: append-only turns, a bounded
// recent window, and a rolling summary for everything older.
type Memory struct {
	store      Store
	summarizer *Summarizer
	window     int
	ttl        time.Duration
	now        func() time.Time
}

// NewMemory creates a Memory. A nil summarizer disables summarization.
func NewMemory(st Store, summarizer *Summarizer, window int, ttl time.Duration) *Memory {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Memory{
		store:      st,
		summarizer: summarizer,
		window:     window,
		ttl:        ttl,
		now:        time.Now,
	}
}

// GetOrCreate loads the session, creating it when uid is unknown or empty.
func (m *Memory) GetOrCreate(ctx context.Context, uid string) (*store.ConversationSession, error) {
	if uid != "" {
		session, err := m.store.GetConversationSession(ctx, uid)
		if err != nil {
			return nil, fmt.Errorf("%w: load session: %v", ErrStorageFailure, err)
		}
		if session != nil {
			return session, nil
		}
	}
	if uid == "" {
		uid = shortuuid.New()
	}
	now := m.now().Unix()
	session, err := m.store.CreateConversationSession(ctx, &store.ConversationSession{
		UID:          uid,
		CreatedTs:    now,
		LastActiveTs: now,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create session: %v", ErrStorageFailure, err)
	}
	return session, nil
}

// Append records one turn and bumps the session's activity timestamp.
func (m *Memory) Append(ctx context.Context, session *store.ConversationSession, role store.TurnRole, content string, intentJSON *string) (*store.ConversationTurn, error) {
	now := m.now().Unix()
	turn, err := m.store.AppendConversationTurn(ctx, &store.ConversationTurn{
		SessionID:  session.ID,
		Role:       role,
		Content:    content,
		IntentJSON: intentJSON,
		CreatedTs:  now,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: append turn: %v", ErrStorageFailure, err)
	}
	if err := m.store.UpdateConversationSession(ctx, &store.UpdateConversationSession{
		ID:           session.ID,
		LastActiveTs: &now,
	}); err != nil {
		return nil, fmt.Errorf("%w: touch session: %v", ErrStorageFailure, err)
	}
	return turn, nil
}

// Window returns up to n most recent turns in chronological order.
func (m *Memory) Window(ctx context.Context, session *store.ConversationSession, n int) ([]*store.ConversationTurn, error) {
	if n <= 0 {
		n = m.window
	}
	turns, err := m.store.ListConversationTurns(ctx, &store.FindConversationTurn{
		SessionID:  session.ID,
		Limit:      &n,
		Descending: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: list turns: %v", ErrStorageFailure, err)
	}
	// Flip back to chronological order.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// NeedsSummary reports whether enough un-summarized turns have piled up.
// Cadence: summarize once they exceed twice the window.
func (m *Memory) NeedsSummary(ctx context.Context, session *store.ConversationSession) bool {
	turns, err := m.store.ListConversationTurns(ctx, &store.FindConversationTurn{
		SessionID: session.ID,
		AfterID:   &session.SummarizedThroughID,
	})
	if err != nil {
		return false
	}
	return len(turns) > 2*m.window
}

// Summarize folds turns older than the window into the rolling summary.
// On any failure the prior summary is kept and the error returned; callers
// run this asynchronously and only log it.
func (m *Memory) Summarize(ctx context.Context, sessionUID string) error {
	session, err := m.store.GetConversationSession(ctx, sessionUID)
	if err != nil || session == nil {
		return fmt.Errorf("%w: load session for summary: %v", ErrStorageFailure, err)
	}
	turns, err := m.store.ListConversationTurns(ctx, &store.FindConversationTurn{
		SessionID: session.ID,
		AfterID:   &session.SummarizedThroughID,
	})
	if err != nil {
		return fmt.Errorf("%w: list turns for summary: %v", ErrStorageFailure, err)
	}
	if len(turns) <= m.window {
		return nil
	}
	// Keep the newest window turns verbatim, summarize the rest.
	old := turns[:len(turns)-m.window]

	if m.summarizer == nil {
		return nil
	}
	summary, err := m.summarizer.Fold(ctx, session.Summary, old)
	if err != nil {
		return fmt.Errorf("fold summary: %w", err)
	}
	lastID := old[len(old)-1].ID
	if err := m.store.UpdateConversationSession(ctx, &store.UpdateConversationSession{
		ID:                  session.ID,
		Summary:             &summary,
		SummarizedThroughID: &lastID,
	}); err != nil {
		return fmt.Errorf("%w: store summary: %v", ErrStorageFailure, err)
	}
	slog.Debug("dialogue: session summarized", "session", sessionUID, "folded_turns", len(old))
	return nil
}

// Clear deletes the session and its transcript.
func (m *Memory) Clear(ctx context.Context, sessionUID string) error {
	if err := m.store.DeleteConversationSession(ctx, sessionUID); err != nil {
		return fmt.Errorf("%w: clear session: %v", ErrStorageFailure, err)
	}
	return nil
}

// Export renders the full transcript as plain text.
func (m *Memory) Export(ctx context.Context, sessionUID string) (string, error) {
	session, err := m.store.GetConversationSession(ctx, sessionUID)
	if err != nil {
		return "", fmt.Errorf("%w: load session: %v", ErrStorageFailure, err)
	}
	if session == nil {
		return "", fmt.Errorf("session %s not found", sessionUID)
	}
	turns, err := m.store.ListConversationTurns(ctx, &store.FindConversationTurn{SessionID: session.ID})
	if err != nil {
		return "", fmt.Errorf("%w: list turns: %v", ErrStorageFailure, err)
	}

	var sb strings.Builder
	for _, turn := range turns {
		timestamp := time.Unix(turn.CreatedTs, 0).UTC().Format("2006-01-02 15:04")
		fmt.Fprintf(&sb, "[%s] %s: %s\n", timestamp, turn.Role, turn.Content)
	}
	return sb.String(), nil
}

// Stats returns turn counters for one session.
func (m *Memory) Stats(ctx context.Context, sessionUID string) (*SessionStats, error) {
	session, err := m.store.GetConversationSession(ctx, sessionUID)
	if err != nil {
		return nil, fmt.Errorf("%w: load session: %v", ErrStorageFailure, err)
	}
	if session == nil {
		return nil, fmt.Errorf("session %s not found", sessionUID)
	}
	count, err := m.store.CountConversationTurns(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: count turns: %v", ErrStorageFailure, err)
	}
	return &SessionStats{
		SessionUID: session.UID,
		Turns:      count,
		HasSummary: session.Summary != "",
		CreatedTs:  session.CreatedTs,
		LastActive: session.LastActiveTs,
	}, nil
}

// SweepExpired removes sessions idle beyond the TTL. Returns the number of
// removed sessions.
func (m *Memory) SweepExpired(ctx context.Context) (int64, error) {
	if m.ttl <= 0 {
		return 0, nil
	}
	cutoff := m.now().Add(-m.ttl).Unix()
	removed, err := m.store.DeleteExpiredConversationSessions(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("%w: sweep sessions: %v", ErrStorageFailure, err)
	}
	if removed > 0 {
		slog.Info("dialogue: expired sessions removed", "count", removed)
	}
	return removed, nil
}

// StartSweeper runs SweepExpired on the interval until ctx is done.
func (m *Memory) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := m.SweepExpired(ctx); err != nil {
					slog.Warn("dialogue: session sweep failed", "error", err)
				}
			}
		}
	}()
}
