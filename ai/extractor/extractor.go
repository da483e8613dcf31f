package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aishwaryashinde26/Neo-stat-ai-engineer/ai/core/llm"
)

const extractionPrompt = `You extract booking intents from a single user message.
Respond with a JSON object only:
{
  "intent": "book|modify|cancel|query|chitchat|unknown",
  "confidence": 0.0,
  "slots": {
    "service": {"value": "", "confidence": 0.0},
    "date": {"value": "", "confidence": 0.0},
    "time": {"value": "", "confidence": 0.0},
    "duration": {"value": "", "confidence": 0.0},
    "name": {"value": "", "confidence": 0.0},
    "email": {"value": "", "confidence": 0.0},
    "phone": {"value": "", "confidence": 0.0}
  }
}
Omit slots that are not present in the message. Dates must be YYYY-MM-DD or a
relative phrase exactly as the user wrote it. Times must be HH:MM (24h) or the
exact phrase. Duration is whole minutes.`

// Extractor combines the rule layer with LLM JSON extraction.
type Extractor struct {
	llm llm.Service
}

// New creates an Extractor. The LLM service may be nil, in which case only
// the rule layer runs.
func New(llmService llm.Service) *Extractor {
	return &Extractor{llm: llmService}
}

// Extract derives the intent for one utterance. The window provides prior
// turns as LLM context; the anchor is the reference time for relative dates.
// Relative dates with a zero anchor return ErrAmbiguousSlot.
func (e *Extractor) Extract(ctx context.Context, utterance string, window []llm.Message, anchor time.Time) (*Intent, error) {
	intent := ruleExtract(utterance)

	// The LLM layer fills what the patterns missed. Rule hits win on
	// conflict because they are deterministic.
	if e.llm != nil && needsLLM(intent) {
		llmIntent, err := e.llmExtract(ctx, utterance, window)
		if err != nil {
			slog.Warn("extractor: LLM layer failed, using rule layer only", "error", err)
		} else {
			intent.Merge(llmIntent)
		}
	}

	// The partial intent is returned alongside ErrAmbiguousSlot so callers
	// can carry the other slots into a clarification turn.
	if err := resolveTemporalSlots(intent, anchor); err != nil {
		return intent, err
	}
	return intent, nil
}

// needsLLM reports whether the rule result leaves enough uncertainty to be
// worth an LLM call.
func needsLLM(intent *Intent) bool {
	if intent.Label == LabelUnknown {
		return true
	}
	if intent.Label == LabelBook || intent.Label == LabelModify {
		return len(intent.MissingBookingSlots()) > 0
	}
	return false
}

func (e *Extractor) llmExtract(ctx context.Context, utterance string, window []llm.Message) (*Intent, error) {
	messages := llm.FormatMessages(extractionPrompt, utterance, window)
	content, _, err := e.llm.ChatJSON(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("LLM extraction: %w", err)
	}
	return parseExtraction(content)
}

type wireExtraction struct {
	Intent     string           `json:"intent"`
	Confidence float32          `json:"confidence"`
	Slots      map[string]*Slot `json:"slots"`
}

func parseExtraction(content string) (*Intent, error) {
	// Some models wrap JSON in a code fence despite the response format.
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var wire wireExtraction
	if err := json.Unmarshal([]byte(content), &wire); err != nil {
		return nil, fmt.Errorf("parse extraction JSON: %w", err)
	}

	intent := newIntent(labelFromString(wire.Intent))
	intent.Confidence = clamp01(wire.Confidence)
	for name, slot := range wire.Slots {
		if slot == nil || strings.TrimSpace(slot.Value) == "" {
			continue
		}
		if !validSlotName(name) {
			continue
		}
		intent.setSlot(name, strings.TrimSpace(slot.Value), clamp01(slot.Confidence))
	}
	return intent, nil
}

func labelFromString(s string) Label {
	switch Label(strings.ToLower(strings.TrimSpace(s))) {
	case LabelBook:
		return LabelBook
	case LabelModify:
		return LabelModify
	case LabelCancel:
		return LabelCancel
	case LabelQuery:
		return LabelQuery
	case LabelChitchat:
		return LabelChitchat
	default:
		return LabelUnknown
	}
}

func validSlotName(name string) bool {
	switch name {
	case SlotService, SlotDate, SlotTime, SlotDuration, SlotName, SlotEmail, SlotPhone:
		return true
	}
	return false
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
