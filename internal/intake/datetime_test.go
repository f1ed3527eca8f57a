package intake

import (
	"testing"
	"time"
)

// Monday 2026-03-09 12:00 local time.
var baseNow = time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)

func TestResolveDateTimeTomorrow(t *testing.T) {
	got := ResolveDateTime("tomorrow 10 am", baseNow)
	want := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestResolveDateTimeSpanishRelativeDays(t *testing.T) {
	got := ResolveDateTime("mañana", baseNow)
	want := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("mañana: got %v, want %v", got, want)
	}

	got = ResolveDateTime("pasado mañana en la tarde", baseNow)
	want = time.Date(2026, 3, 11, 14, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("pasado mañana tarde: got %v, want %v", got, want)
	}
}

func TestResolveDateTimeNextOccurrenceNeverPast(t *testing.T) {
	// 3pm today is still ahead at noon.
	got := ResolveDateTime("3pm", baseNow)
	want := time.Date(2026, 3, 9, 15, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("3pm at noon: got %v, want %v", got, want)
	}

	// At 16:00 the same request rolls to the next day.
	lateNow := time.Date(2026, 3, 9, 16, 0, 0, 0, time.UTC)
	got = ResolveDateTime("3pm", lateNow)
	want = time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("3pm at 16:00: got %v, want %v", got, want)
	}
}

func TestResolveDateTimeWeekday(t *testing.T) {
	// baseNow is a Monday; friday resolves to the same week.
	got := ResolveDateTime("viernes 11:30", baseNow)
	want := time.Date(2026, 3, 13, 11, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("viernes: got %v, want %v", got, want)
	}

	// Naming the current weekday means next week, not today.
	got = ResolveDateTime("monday", baseNow)
	want = time.Date(2026, 3, 16, 10, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("monday on a Monday: got %v, want %v", got, want)
	}
}

func TestResolveDateTimeSlashDate(t *testing.T) {
	got := ResolveDateTime("25/12/2026 9:00", baseNow)
	want := time.Date(2026, 12, 25, 9, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestResolveDateTimeBusinessHourClamp(t *testing.T) {
	// 6am is before opening, pulled to mid-morning.
	got := ResolveDateTime("tomorrow 6am", baseNow)
	if got.Hour() != morningHour {
		t.Errorf("6am clamped hour = %d, want %d", got.Hour(), morningHour)
	}

	// 9pm is after closing, pulled to the afternoon slot.
	got = ResolveDateTime("tomorrow 9pm", baseNow)
	if got.Hour() != afternoonHour {
		t.Errorf("9pm clamped hour = %d, want %d", got.Hour(), afternoonHour)
	}
}

func TestResolveDateTimeVagueInputDefaults(t *testing.T) {
	// No usable date or time at noon: 10:00 already passed, rolls to
	// tomorrow.
	got := ResolveDateTime("whenever works", baseNow)
	want := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("vague at noon: got %v, want %v", got, want)
	}

	// Early in the day the default slot is still today.
	earlyNow := time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC)
	got = ResolveDateTime("", earlyNow)
	want = time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("vague at 8:00: got %v, want %v", got, want)
	}
}

func TestResolveDateTimeAlwaysFuture(t *testing.T) {
	inputs := []string{
		"", "tomorrow", "mañana tarde", "3pm", "07:15", "viernes",
		"monday 8am", "afternoon", "asap please",
	}
	for _, in := range inputs {
		if got := ResolveDateTime(in, baseNow); !got.After(baseNow) {
			t.Errorf("ResolveDateTime(%q) = %v, not after now %v", in, got, baseNow)
		}
	}
}

func TestResolveDateTimeDeterministic(t *testing.T) {
	a := ResolveDateTime("viernes en la tarde", baseNow)
	b := ResolveDateTime("viernes en la tarde", baseNow)
	if !a.Equal(b) {
		t.Errorf("same input resolved differently: %v vs %v", a, b)
	}
}
