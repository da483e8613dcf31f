package dialogue

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aishwaryashinde26/Neo-stat-ai-engineer/store"
)

func testMemory(t *testing.T, summarizer *Summarizer, window int) (*Memory, *fakeStore) {
	t.Helper()
	st := newFakeStore()
	memory := NewMemory(st, summarizer, window, time.Hour)
	memory.now = testClock()
	return memory, st
}

func TestMemoryGetOrCreate(t *testing.T) {
	memory, _ := testMemory(t, nil, 10)
	ctx := context.Background()

	created, err := memory.GetOrCreate(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, "s1", created.UID)

	loaded, err := memory.GetOrCreate(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, created.ID, loaded.ID)

	generated, err := memory.GetOrCreate(ctx, "")
	require.NoError(t, err)
	require.NotEmpty(t, generated.UID)
	require.NotEqual(t, created.ID, generated.ID)
}

func TestMemoryWindowChronological(t *testing.T) {
	memory, _ := testMemory(t, nil, 10)
	ctx := context.Background()

	session, err := memory.GetOrCreate(ctx, "s1")
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := memory.Append(ctx, session, store.TurnRoleUser, fmt.Sprintf("turn %d", i), nil)
		require.NoError(t, err)
	}

	turns, err := memory.Window(ctx, session, 3)
	require.NoError(t, err)
	require.Len(t, turns, 3)
	require.Equal(t, "turn 2", turns[0].Content)
	require.Equal(t, "turn 4", turns[2].Content)
}

func TestMemorySummarizeFoldsOldTurns(t *testing.T) {
	llmMock := &fixedLLM{response: `{"summary": "Jordan booked a consultation for March 11."}`}
	memory, st := testMemory(t, NewSummarizer(llmMock), 4)
	ctx := context.Background()

	session, err := memory.GetOrCreate(ctx, "s1")
	require.NoError(t, err)
	for i := 0; i < 12; i++ {
		_, err := memory.Append(ctx, session, store.TurnRoleUser, fmt.Sprintf("turn %d", i), nil)
		require.NoError(t, err)
	}

	require.True(t, memory.NeedsSummary(ctx, session))
	require.NoError(t, memory.Summarize(ctx, "s1"))

	updated, err := st.GetConversationSession(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, "Jordan booked a consultation for March 11.", updated.Summary)
	require.NotZero(t, updated.SummarizedThroughID)

	// The newest window stays verbatim: only turns 0..7 were folded.
	afterID := updated.SummarizedThroughID
	remaining, err := st.ListConversationTurns(ctx, &store.FindConversationTurn{SessionID: session.ID, AfterID: &afterID})
	require.NoError(t, err)
	require.Len(t, remaining, 4)
	require.Equal(t, "turn 8", remaining[0].Content)
}

func TestMemorySummarizeRetainsPriorOnFailure(t *testing.T) {
	llmMock := &fixedLLM{err: fmt.Errorf("provider down")}
	memory, st := testMemory(t, NewSummarizer(llmMock), 2)
	ctx := context.Background()

	session, err := memory.GetOrCreate(ctx, "s1")
	require.NoError(t, err)
	prior := "prior summary"
	require.NoError(t, st.UpdateConversationSession(ctx, &store.UpdateConversationSession{ID: session.ID, Summary: &prior}))
	for i := 0; i < 6; i++ {
		_, err := memory.Append(ctx, session, store.TurnRoleUser, fmt.Sprintf("turn %d", i), nil)
		require.NoError(t, err)
	}

	// The truncation fallback still folds; the prior summary survives inside
	// the merged text.
	require.NoError(t, memory.Summarize(ctx, "s1"))
	updated, err := st.GetConversationSession(ctx, "s1")
	require.NoError(t, err)
	require.Contains(t, updated.Summary, "prior summary")
	require.Contains(t, updated.Summary, "turn 0")
}

func TestMemorySummarizeBelowWindowNoop(t *testing.T) {
	llmMock := &fixedLLM{response: `{"summary": "should not be used"}`}
	memory, st := testMemory(t, NewSummarizer(llmMock), 10)
	ctx := context.Background()

	session, err := memory.GetOrCreate(ctx, "s1")
	require.NoError(t, err)
	_, err = memory.Append(ctx, session, store.TurnRoleUser, "hi", nil)
	require.NoError(t, err)

	require.False(t, memory.NeedsSummary(ctx, session))
	require.NoError(t, memory.Summarize(ctx, "s1"))

	updated, err := st.GetConversationSession(ctx, "s1")
	require.NoError(t, err)
	require.Empty(t, updated.Summary)
	require.Zero(t, llmMock.calls)
}

func TestMemoryExportTranscript(t *testing.T) {
	memory, _ := testMemory(t, nil, 10)
	ctx := context.Background()

	session, err := memory.GetOrCreate(ctx, "s1")
	require.NoError(t, err)
	_, err = memory.Append(ctx, session, store.TurnRoleUser, "book a demo", nil)
	require.NoError(t, err)
	_, err = memory.Append(ctx, session, store.TurnRoleAssistant, "What name should the booking be under?", nil)
	require.NoError(t, err)

	transcript, err := memory.Export(ctx, "s1")
	require.NoError(t, err)
	require.Contains(t, transcript, "user: book a demo")
	require.Contains(t, transcript, "assistant: What name should the booking be under?")
}

func TestMemoryStats(t *testing.T) {
	memory, _ := testMemory(t, nil, 10)
	ctx := context.Background()

	session, err := memory.GetOrCreate(ctx, "s1")
	require.NoError(t, err)
	_, err = memory.Append(ctx, session, store.TurnRoleUser, "hello", nil)
	require.NoError(t, err)

	stats, err := memory.Stats(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, "s1", stats.SessionUID)
	require.Equal(t, int32(1), stats.Turns)
	require.False(t, stats.HasSummary)
}

func TestMemorySweepExpired(t *testing.T) {
	st := newFakeStore()
	memory := NewMemory(st, nil, 10, time.Hour)
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	memory.now = func() time.Time { return now }
	ctx := context.Background()

	stale, err := memory.GetOrCreate(ctx, "stale")
	require.NoError(t, err)
	old := now.Add(-2 * time.Hour).Unix()
	require.NoError(t, st.UpdateConversationSession(ctx, &store.UpdateConversationSession{ID: stale.ID, LastActiveTs: &old}))
	_, err = memory.GetOrCreate(ctx, "fresh")
	require.NoError(t, err)

	removed, err := memory.SweepExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)

	gone, err := st.GetConversationSession(ctx, "stale")
	require.NoError(t, err)
	require.Nil(t, gone)
	kept, err := st.GetConversationSession(ctx, "fresh")
	require.NoError(t, err)
	require.NotNil(t, kept)
}
