// Package dialogue orchestrates multi-turn conversations: intent handling,
// booking resolution, grounded answering, and conversation memory.
package dialogue

import (
	"errors"

	"github.com/aishwaryashinde26/Neo-stat-ai-engineer/ai/extractor"
	"github.com/aishwaryashinde26/Neo-stat-ai-engineer/server/service/booking"
)

var (
	// ErrAmbiguousSlot surfaces an unresolvable slot; the orchestrator
	// answers with a clarification question instead of failing the turn.
	ErrAmbiguousSlot = extractor.ErrAmbiguousSlot

	// ErrConcurrencyConflict is a booking race that survived retries.
	ErrConcurrencyConflict = booking.ErrConcurrencyConflict

	// ErrGroundingUnavailable means the LLM or embedding collaborators are
	// down after retries. The condition never fails the turn: replies
	// degrade to templates marked Reply.Degraded and still commit.
	ErrGroundingUnavailable = errors.New("grounding collaborators unavailable")

	// ErrStorageFailure means the turn could not be committed. It is the
	// only dialogue error an API caller should ever see alongside
	// ErrConcurrencyConflict.
	ErrStorageFailure = errors.New("storage failure")
)
