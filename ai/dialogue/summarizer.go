package dialogue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aishwaryashinde26/Neo-stat-ai-engineer/ai/core/llm"
	"github.com/aishwaryashinde26/Neo-stat-ai-engineer/store"
)

const summaryPrompt = `You maintain a rolling summary of a booking assistant conversation.
Merge the existing summary with the new turns into one concise summary.
Preserve customer contact details, requested services, dates, times, and
booking outcomes. Drop greetings and filler.

Respond with JSON only:
{"summary": "<merged summary, at most 120 words>"}`

// maxSummaryRunes bounds both LLM output and the truncation fallback.
const maxSummaryRunes = 1200

// Summarizer folds aged-out turns into a session's rolling summary. When the
// LLM is unavailable or misbehaves it degrades to plain truncation so the
// session never loses its memory entirely.
type Summarizer struct {
	llm llm.Service
}

func NewSummarizer(llmService llm.Service) *Summarizer {
	return &Summarizer{llm: llmService}
}

// Fold merges the prior summary with the given turns into a new summary.
func (s *Summarizer) Fold(ctx context.Context, prior string, turns []*store.ConversationTurn) (string, error) {
	if len(turns) == 0 {
		return prior, nil
	}
	if s.llm != nil {
		summary, err := s.foldLLM(ctx, prior, turns)
		if err == nil && summary != "" {
			return summary, nil
		}
		if err != nil {
			slog.Warn("dialogue: llm summary failed, falling back to truncation", "error", err)
		}
	}
	return truncateFold(prior, turns), nil
}

func (s *Summarizer) foldLLM(ctx context.Context, prior string, turns []*store.ConversationTurn) (string, error) {
	var sb strings.Builder
	if prior != "" {
		sb.WriteString("Existing summary:\n")
		sb.WriteString(prior)
		sb.WriteString("\n\n")
	}
	sb.WriteString("New turns:\n")
	for _, turn := range turns {
		fmt.Fprintf(&sb, "%s: %s\n", turn.Role, turn.Content)
	}

	messages := []llm.Message{
		llm.SystemPrompt(summaryPrompt),
		llm.UserMessage(sb.String()),
	}
	response, _, err := s.llm.ChatJSON(ctx, messages)
	if err != nil {
		return "", err
	}
	return parseSummaryResponse(response)
}

func parseSummaryResponse(response string) (string, error) {
	cleaned := strings.TrimSpace(response)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var parsed struct {
		Summary string `json:"summary"`
	}
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return "", fmt.Errorf("parse summary response: %w", err)
	}
	summary := strings.TrimSpace(parsed.Summary)
	if summary == "" {
		return "", fmt.Errorf("empty summary in response")
	}
	return truncateRunes(summary, maxSummaryRunes), nil
}

// truncateFold is the no-LLM fallback: prior summary plus the raw turns,
// oldest content dropped first to fit the budget.
func truncateFold(prior string, turns []*store.ConversationTurn) string {
	var sb strings.Builder
	if prior != "" {
		sb.WriteString(prior)
		sb.WriteString("\n")
	}
	for _, turn := range turns {
		fmt.Fprintf(&sb, "%s: %s\n", turn.Role, turn.Content)
	}
	merged := strings.TrimSpace(sb.String())
	runes := []rune(merged)
	if len(runes) <= maxSummaryRunes {
		return merged
	}
	return "..." + string(runes[len(runes)-maxSummaryRunes:])
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
