package extractor

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the canonical value of a resolved date slot.
const DateLayout = "2006-01-02"

// TimeLayout is the canonical value of a resolved time slot.
const TimeLayout = "15:04"

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// normalizeDuration converts an amount plus unit into whole minutes.
func normalizeDuration(amount, unit string) string {
	n, err := strconv.Atoi(amount)
	if err != nil || n <= 0 {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(unit), "h") {
		n *= 60
	}
	return strconv.Itoa(n)
}

// resolveTemporalSlots rewrites raw date and time phrases into canonical
// values. Relative dates resolve against the anchor; a relative phrase with
// a zero anchor is ambiguous.
func resolveTemporalSlots(intent *Intent, anchor time.Time) error {
	if slot := intent.Slot(SlotDate); slot != nil {
		resolved, err := resolveDatePhrase(slot.Value, anchor)
		if err != nil {
			return err
		}
		slot.Value = resolved
	}
	if slot := intent.Slot(SlotTime); slot != nil {
		resolved, err := resolveTimePhrase(slot.Value)
		if err != nil {
			return err
		}
		slot.Value = resolved
	}
	return nil
}

func resolveDatePhrase(phrase string, anchor time.Time) (string, error) {
	phrase = strings.ToLower(strings.TrimSpace(phrase))

	if t, err := time.Parse(DateLayout, phrase); err == nil {
		return t.Format(DateLayout), nil
	}

	if anchor.IsZero() {
		return "", fmt.Errorf("relative date %q without anchor: %w", phrase, ErrAmbiguousSlot)
	}
	day := time.Date(anchor.Year(), anchor.Month(), anchor.Day(), 0, 0, 0, 0, anchor.Location())

	switch phrase {
	case "today", "tonight":
		return day.Format(DateLayout), nil
	case "tomorrow":
		return day.AddDate(0, 0, 1).Format(DateLayout), nil
	case "day after tomorrow":
		return day.AddDate(0, 0, 2).Format(DateLayout), nil
	}

	// Weekday phrases resolve to the next occurrence strictly after the
	// anchor day; "next friday" on a Friday means a week out.
	name := strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(strings.TrimPrefix(strings.TrimPrefix(phrase, "next"), "this"), "coming"), "on"))
	if target, ok := weekdays[strings.TrimSpace(name)]; ok {
		days := (int(target) - int(day.Weekday()) + 7) % 7
		if days == 0 {
			days = 7
		}
		return day.AddDate(0, 0, days).Format(DateLayout), nil
	}

	return "", fmt.Errorf("unrecognized date %q: %w", phrase, ErrAmbiguousSlot)
}

func resolveTimePhrase(phrase string) (string, error) {
	phrase = strings.ToLower(strings.TrimSpace(phrase))

	if t, err := time.Parse(TimeLayout, phrase); err == nil {
		return t.Format(TimeLayout), nil
	}

	if m := clockPattern.FindStringSubmatch(phrase); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute := 0
		if m[2] != "" {
			minute, _ = strconv.Atoi(m[2])
		}
		if hour < 1 || hour > 12 || minute > 59 {
			return "", fmt.Errorf("unparseable time %q: %w", phrase, ErrAmbiguousSlot)
		}
		if m[3] == "pm" && hour != 12 {
			hour += 12
		}
		if m[3] == "am" && hour == 12 {
			hour = 0
		}
		return fmt.Sprintf("%02d:%02d", hour, minute), nil
	}

	return "", fmt.Errorf("unparseable time %q: %w", phrase, ErrAmbiguousSlot)
}

// SlotStart combines resolved date and time slots into a timestamp in loc.
func SlotStart(intent *Intent, loc *time.Location) (time.Time, error) {
	date := intent.SlotValue(SlotDate)
	clock := intent.SlotValue(SlotTime)
	if date == "" || clock == "" {
		return time.Time{}, fmt.Errorf("incomplete date/time slots: %w", ErrAmbiguousSlot)
	}
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(DateLayout+" "+TimeLayout, date+" "+clock, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date/time slots: %w", ErrAmbiguousSlot)
	}
	return t, nil
}

// SlotDurationMinutes returns the duration slot in minutes, or fallback
// when the slot is absent or invalid.
func SlotDurationMinutes(intent *Intent, fallback int) int {
	raw := intent.SlotValue(SlotDuration)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
