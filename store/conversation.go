package store

import (
	"context"
)

// TurnRole identifies the author of a conversation turn.
type TurnRole string

const (
	TurnRoleUser      TurnRole = "user"
	TurnRoleAssistant TurnRole = "assistant"
)

// ConversationSession is the per-session aggregate. It owns an ordered
// sequence of turns and a rolling summary of turns that aged out of the
// prompt window.
type ConversationSession struct {
	ID           int32
	UID          string
	Summary      string
	// SummarizedThroughID is the highest turn ID folded into Summary.
	SummarizedThroughID int32
	CreatedTs    int64
	LastActiveTs int64
}

// ConversationTurn is a single utterance. Turns are append-only and never
// mutated after insertion.
type ConversationTurn struct {
	ID        int32
	SessionID int32
	Role      TurnRole
	Content   string
	// IntentJSON is the serialized extracted intent for user turns, nil for
	// assistant turns and turns without an extraction result.
	IntentJSON *string
	CreatedTs  int64
}

type UpdateConversationSession struct {
	ID                  int32
	Summary             *string
	SummarizedThroughID *int32
	LastActiveTs        *int64
}

type FindConversationTurn struct {
	SessionID int32
	// AfterID restricts to turns with ID greater than the given value.
	AfterID *int32
	// Limit caps the number of rows; combined with Descending it selects the
	// most recent turns.
	Limit      *int
	Descending bool
}

func (s *Store) CreateConversationSession(ctx context.Context, create *ConversationSession) (*ConversationSession, error) {
	return s.driver.CreateConversationSession(ctx, create)
}

func (s *Store) GetConversationSession(ctx context.Context, uid string) (*ConversationSession, error) {
	return s.driver.GetConversationSession(ctx, uid)
}

func (s *Store) UpdateConversationSession(ctx context.Context, update *UpdateConversationSession) error {
	return s.driver.UpdateConversationSession(ctx, update)
}

func (s *Store) DeleteConversationSession(ctx context.Context, uid string) error {
	return s.driver.DeleteConversationSession(ctx, uid)
}

// DeleteExpiredConversationSessions removes sessions (and their turns) whose
// last activity predates the given timestamp. Returns the number of sessions
// removed.
func (s *Store) DeleteExpiredConversationSessions(ctx context.Context, lastActiveBefore int64) (int64, error) {
	return s.driver.DeleteExpiredConversationSessions(ctx, lastActiveBefore)
}

func (s *Store) AppendConversationTurn(ctx context.Context, create *ConversationTurn) (*ConversationTurn, error) {
	return s.driver.AppendConversationTurn(ctx, create)
}

func (s *Store) ListConversationTurns(ctx context.Context, find *FindConversationTurn) ([]*ConversationTurn, error) {
	return s.driver.ListConversationTurns(ctx, find)
}

func (s *Store) CountConversationTurns(ctx context.Context, sessionID int32) (int32, error) {
	return s.driver.CountConversationTurns(ctx, sessionID)
}
