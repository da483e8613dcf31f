package extractor

import (
	"regexp"
	"strings"
)

// Pre-compiled patterns for the rule layer. These handle the common
// booking phrasings with zero latency; the LLM layer covers the rest.
var (
	cancelPattern = regexp.MustCompile(`(?i)\b(cancel|call off|scrap|won'?t make)\b`)
	modifyPattern = regexp.MustCompile(`(?i)\b(reschedule|move|shift|change|modify|push back)\b`)
	bookPattern   = regexp.MustCompile(`(?i)\b(book|schedule|reserve|set up|arrange|make an? (appointment|booking|reservation))\b`)
	queryPattern  = regexp.MustCompile(`(?i)\b(what|which|when|how much|how long|do you|are you|tell me about|opening hours|price|cost|offer|available)\b`)
	greetPattern  = regexp.MustCompile(`(?i)^\s*(hi|hello|hey|good (morning|afternoon|evening)|thanks|thank you|bye|goodbye)\b`)

	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?\d[\d\s\-()]{7,}\d`)

	durationPattern = regexp.MustCompile(`(?i)\b(\d+)\s*(minutes?|mins?|hours?|hrs?)\b`)
	clockPattern    = regexp.MustCompile(`(?i)\b(\d{1,2})(?::(\d{2}))?\s*(am|pm)\b`)
	clock24Pattern  = regexp.MustCompile(`\b([01]?\d|2[0-3]):([0-5]\d)\b`)

	isoDatePattern  = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	relDatePattern  = regexp.MustCompile(`(?i)\b(today|tonight|tomorrow|day after tomorrow)\b`)
	weekdayPattern  = regexp.MustCompile(`(?i)\b(?:next|this|on|coming)?\s*(monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b`)
	servicePattern  = regexp.MustCompile(`(?i)\b(consultation|demo|meeting|appointment|session|call|checkup|check-up)\b`)
	namePhrase      = regexp.MustCompile(`(?i)\b(?:my name is|i am|i'?m|this is)\s+([A-Z][a-zA-Z'\-]+(?:\s+[A-Z][a-zA-Z'\-]+)?)`)
	affirmPattern   = regexp.MustCompile(`(?i)^\s*(yes|yep|yeah|sure|confirm|confirmed|correct|that'?s right|ok(ay)?|go ahead|sounds good)\b`)
	negativePattern = regexp.MustCompile(`(?i)^\s*(no|nope|nah|not|don'?t|cancel that|never mind)\b`)
)

// ruleExtract applies the pattern layer. Date and time slots hold the raw
// phrase here; resolveTemporalSlots turns them into concrete values.
func ruleExtract(utterance string) *Intent {
	intent := newIntent(LabelUnknown)

	switch {
	case cancelPattern.MatchString(utterance):
		intent.Label = LabelCancel
		intent.Confidence = 0.9
	case modifyPattern.MatchString(utterance):
		intent.Label = LabelModify
		intent.Confidence = 0.9
	case bookPattern.MatchString(utterance):
		intent.Label = LabelBook
		intent.Confidence = 0.9
	case queryPattern.MatchString(utterance):
		intent.Label = LabelQuery
		intent.Confidence = 0.7
	case greetPattern.MatchString(utterance):
		intent.Label = LabelChitchat
		intent.Confidence = 0.8
	}

	if m := emailPattern.FindString(utterance); m != "" {
		intent.setSlot(SlotEmail, strings.ToLower(m), 0.95)
	}
	// Phone matching runs on the utterance with the email removed so digits
	// inside an address are not picked up.
	stripped := emailPattern.ReplaceAllString(utterance, " ")
	if m := phonePattern.FindString(stripped); m != "" {
		intent.setSlot(SlotPhone, normalizePhone(m), 0.9)
	}
	if m := durationPattern.FindStringSubmatch(utterance); m != nil {
		intent.setSlot(SlotDuration, normalizeDuration(m[1], m[2]), 0.9)
	}
	if m := servicePattern.FindString(utterance); m != "" {
		intent.setSlot(SlotService, strings.ToLower(m), 0.8)
	}
	if m := namePhrase.FindStringSubmatch(utterance); m != nil {
		intent.setSlot(SlotName, m[1], 0.8)
	}

	if m := clockPattern.FindString(utterance); m != "" {
		intent.setSlot(SlotTime, m, 0.9)
	} else if m := clock24Pattern.FindString(utterance); m != "" {
		intent.setSlot(SlotTime, m, 0.9)
	}

	if m := isoDatePattern.FindString(utterance); m != "" {
		intent.setSlot(SlotDate, m, 0.95)
	} else if m := relDatePattern.FindString(utterance); m != "" {
		intent.setSlot(SlotDate, strings.ToLower(m), 0.85)
	} else if m := weekdayPattern.FindString(utterance); m != "" {
		intent.setSlot(SlotDate, strings.ToLower(strings.TrimSpace(m)), 0.8)
	}

	return intent
}

// IsAffirmative reports whether the utterance reads as a confirmation.
func IsAffirmative(utterance string) bool {
	return affirmPattern.MatchString(utterance)
}

// IsNegative reports whether the utterance reads as a rejection.
func IsNegative(utterance string) bool {
	return negativePattern.MatchString(utterance)
}

func normalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' || r == '+' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
