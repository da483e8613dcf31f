// Package extractor derives a structured intent with typed slots from a
// single user utterance, using a zero-latency rule layer backed by an LLM
// JSON extraction layer.
package extractor

import (
	"errors"
)

// ErrAmbiguousSlot indicates a slot value was recognized but cannot be
// resolved to a concrete value, such as a relative date with no anchor.
var ErrAmbiguousSlot = errors.New("ambiguous slot value")

// Label classifies the user's intent for a turn.
type Label string

const (
	LabelBook     Label = "book"
	LabelModify   Label = "modify"
	LabelCancel   Label = "cancel"
	LabelQuery    Label = "query"
	LabelChitchat Label = "chitchat"
	LabelUnknown  Label = "unknown"
)

// Slot names recognized by the extractor.
const (
	SlotService  = "service"
	SlotDate     = "date"
	SlotTime     = "time"
	SlotDuration = "duration"
	SlotName     = "name"
	SlotEmail    = "email"
	SlotPhone    = "phone"
)

// RequiredBookingSlots is the prompting order for a booking that is still
// missing information.
var RequiredBookingSlots = []string{
	SlotName, SlotEmail, SlotPhone, SlotService, SlotDate, SlotTime,
}

// Slot is one extracted value with its confidence in [0, 1].
type Slot struct {
	Value      string  `json:"value"`
	Confidence float32 `json:"confidence"`
}

// Intent is the structured result of extraction. Absent slots are simply
// not present in the map.
type Intent struct {
	Label      Label            `json:"label"`
	Confidence float32          `json:"confidence"`
	Slots      map[string]*Slot `json:"slots"`
}

func newIntent(label Label) *Intent {
	return &Intent{
		Label: label,
		Slots: map[string]*Slot{},
	}
}

// Slot returns the named slot, or nil when absent.
func (i *Intent) Slot(name string) *Slot {
	return i.Slots[name]
}

// SlotValue returns the named slot's value, or "" when absent.
func (i *Intent) SlotValue(name string) string {
	if s := i.Slots[name]; s != nil {
		return s.Value
	}
	return ""
}

func (i *Intent) setSlot(name, value string, confidence float32) {
	if value == "" {
		return
	}
	i.Slots[name] = &Slot{Value: value, Confidence: confidence}
}

// MissingBookingSlots returns the required booking slots not yet filled,
// in prompting order.
func (i *Intent) MissingBookingSlots() []string {
	missing := []string{}
	for _, name := range RequiredBookingSlots {
		if i.SlotValue(name) == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

// Merge fills empty fields of i from prior, keeping i's own values. Used to
// carry pending slots forward across clarification turns.
func (i *Intent) Merge(prior *Intent) {
	if prior == nil {
		return
	}
	if i.Label == LabelUnknown || i.Label == LabelChitchat {
		i.Label = prior.Label
	}
	for name, slot := range prior.Slots {
		if _, ok := i.Slots[name]; !ok {
			i.Slots[name] = slot
		}
	}
}
