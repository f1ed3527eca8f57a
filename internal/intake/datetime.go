// Package intake implements the appointment intake flows: the bulk
// single-message capture path, the sequential field-by-field path, and the
// shared finalize step that resolves the requested date, persists the
// appointment and books the calendar event.
package intake

import (
	"regexp"
	"strings"
	"time"
)

// Business-hour defaults applied when the contact gives a vague or
// out-of-range time.
const (
	morningHour   = 10
	afternoonHour = 14
	openingHour   = 8
	closingHour   = 18
)

var (
	meridiemTimeRe = regexp.MustCompile(`(?i)\b(\d{1,2})(?::(\d{2}))?\s*(am|pm)\b`)
	clockTimeRe    = regexp.MustCompile(`\b(\d{1,2}):(\d{2})\b`)
	slashDateRe    = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`)
)

// weekdayNames is ordered so matching is deterministic when a message
// mentions more than one day.
var weekdayNames = []struct {
	name string
	day  time.Weekday
}{
	{"sunday", time.Sunday},
	{"monday", time.Monday},
	{"tuesday", time.Tuesday},
	{"wednesday", time.Wednesday},
	{"thursday", time.Thursday},
	{"friday", time.Friday},
	{"saturday", time.Saturday},
	{"domingo", time.Sunday},
	{"lunes", time.Monday},
	{"martes", time.Tuesday},
	{"miércoles", time.Wednesday},
	{"miercoles", time.Wednesday},
	{"jueves", time.Thursday},
	{"viernes", time.Friday},
	{"sábado", time.Saturday},
	{"sabado", time.Saturday},
}

// ResolveDateTime turns free text like "tomorrow 10am", "viernes en la
// tarde" or "15/03/2026 14:30" into a concrete local timestamp.
//
// Date resolution, in order: relative day keyword (tomorrow / day after
// tomorrow / weekday name), explicit DD/MM/YYYY, otherwise today. Time
// resolution: an explicit HH:MM or H am/pm pattern wins; "afternoon" maps to
// 14:00 and "morning" or an unspecified time to 10:00. Times outside business
// hours are clamped to the nearest of 10:00 and 14:00, and a result already
// in the past rolls forward one day, so the returned instant is never before
// now. The function is pure: equal inputs and now yield equal outputs.
func ResolveDateTime(input string, now time.Time) time.Time {
	lower := strings.ToLower(strings.TrimSpace(input))

	day := now
	dateMatched := false

	switch {
	case strings.Contains(lower, "day after tomorrow") || strings.Contains(lower, "pasado mañana"):
		day = now.AddDate(0, 0, 2)
		dateMatched = true
	case strings.Contains(lower, "tomorrow") || strings.Contains(lower, "mañana"):
		day = now.AddDate(0, 0, 1)
		dateMatched = true
	default:
		for _, wd := range weekdayNames {
			if strings.Contains(lower, wd.name) {
				delta := (int(wd.day) - int(now.Weekday()) + 7) % 7
				if delta == 0 {
					delta = 7
				}
				day = now.AddDate(0, 0, delta)
				dateMatched = true
				break
			}
		}
	}

	if !dateMatched {
		if m := slashDateRe.FindStringSubmatch(lower); m != nil {
			d := atoi(m[1])
			mo := atoi(m[2])
			y := atoi(m[3])
			if d >= 1 && d <= 31 && mo >= 1 && mo <= 12 {
				day = time.Date(y, time.Month(mo), d, 0, 0, 0, 0, now.Location())
				dateMatched = true
			}
		}
	}

	hour, minute := resolveTime(lower)

	resolved := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, now.Location())
	if !resolved.After(now) {
		resolved = resolved.AddDate(0, 0, 1)
	}
	return resolved
}

// resolveTime extracts the hour and minute from free text, applying the
// business-hour clamp.
func resolveTime(lower string) (int, int) {
	if m := meridiemTimeRe.FindStringSubmatch(lower); m != nil {
		hour := atoi(m[1]) % 12
		if strings.EqualFold(m[3], "pm") {
			hour += 12
		}
		minute := 0
		if m[2] != "" {
			minute = atoi(m[2])
		}
		return clampHour(hour), minute
	}
	if m := clockTimeRe.FindStringSubmatch(lower); m != nil {
		return clampHour(atoi(m[1])), atoi(m[2])
	}
	if strings.Contains(lower, "afternoon") || strings.Contains(lower, "tarde") {
		return afternoonHour, 0
	}
	// "morning" and unspecified both default to mid-morning.
	return morningHour, 0
}

// clampHour pulls out-of-business-hours times to the nearest default slot.
func clampHour(hour int) int {
	if hour < openingHour {
		return morningHour
	}
	if hour > closingHour {
		return afternoonHour
	}
	return hour
}

func atoi(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return n
		}
		n = n*10 + int(r-'0')
	}
	return n
}
