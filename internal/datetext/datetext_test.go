package datetext

import (
	"errors"
	"testing"
	"time"
)

// 2026-09-14 is a Monday.
var monday = time.Date(2026, 9, 14, 11, 0, 0, 0, time.UTC)

func TestParseDateKeywords(t *testing.T) {
	got, err := ParseDate("hoy", monday, 60)
	if err != nil || got != "2026-09-14" {
		t.Fatalf("hoy: got %q, %v", got, err)
	}

	got, err = ParseDate("Mañana", monday, 60)
	if err != nil || got != "2026-09-15" {
		t.Fatalf("mañana: got %q, %v", got, err)
	}

	got, err = ParseDate("manana", monday, 60)
	if err != nil || got != "2026-09-15" {
		t.Fatalf("manana sin tilde: got %q, %v", got, err)
	}
}

func TestParseDateWeekdayRollsToNextWeek(t *testing.T) {
	// "lunes" asked on a Monday means next Monday, not today.
	got, err := ParseDate("lunes", monday, 60)
	if err != nil || got != "2026-09-21" {
		t.Fatalf("lunes on Monday: got %q, %v", got, err)
	}

	got, err = ParseDate("miércoles", monday, 60)
	if err != nil || got != "2026-09-16" {
		t.Fatalf("miércoles: got %q, %v", got, err)
	}

	got, err = ParseDate("sabado", monday, 60)
	if err != nil || got != "2026-09-19" {
		t.Fatalf("sabado: got %q, %v", got, err)
	}
}

func TestParseDateNumericForms(t *testing.T) {
	cases := map[string]string{
		"20/09":      "2026-09-20",
		"20/09/2026": "2026-09-20",
		"20-09":      "2026-09-20",
		"20-09-2026": "2026-09-20",
		"2026-09-20": "2026-09-20",
	}
	for input, want := range cases {
		got, err := ParseDate(input, monday, 60)
		if err != nil || got != want {
			t.Errorf("ParseDate(%q) = %q, %v; want %q", input, got, err, want)
		}
	}
}

func TestParseDateYearlessRollsForward(t *testing.T) {
	// 10/01 has passed by September, so it means next January — but that is
	// beyond the 60-day horizon, so it must be rejected as out of range,
	// not as "in the past".
	_, err := ParseDate("10/01", monday, 60)
	var ue *UserError
	if !errors.As(err, &ue) {
		t.Fatalf("expected user error, got %v", err)
	}

	// With no horizon the roll-forward itself is observable.
	got, err := ParseDate("10/01", monday, 0)
	if err != nil || got != "2027-01-10" {
		t.Fatalf("10/01: got %q, %v", got, err)
	}
}

func TestParseDateRejectsOutOfRange(t *testing.T) {
	for _, input := range []string{"01/01/2020", "14/12/2026", "ayer", "32/09", "31/02"} {
		_, err := ParseDate(input, monday, 60)
		var ue *UserError
		if !errors.As(err, &ue) {
			t.Errorf("ParseDate(%q): expected user error, got %v", input, err)
		}
	}
}

func TestParseDateFixedPoint(t *testing.T) {
	first, err := ParseDate("viernes", monday, 60)
	if err != nil {
		t.Fatal(err)
	}
	second, err := ParseDate(first, monday, 60)
	if err != nil || second != first {
		t.Fatalf("normalized date must be a fixed point: %q -> %q, %v", first, second, err)
	}
}

func TestParseTime(t *testing.T) {
	cases := map[string]string{
		"10:30": "10:30",
		"9:05":  "09:05",
		"10.30": "10:30",
		"8":     "08:00",
		"23:59": "23:59",
		"0":     "00:00",
	}
	for input, want := range cases {
		got, err := ParseTime(input)
		if err != nil || got != want {
			t.Errorf("ParseTime(%q) = %q, %v; want %q", input, got, err, want)
		}
	}
}

func TestParseTimeRejectsBadInput(t *testing.T) {
	for _, input := range []string{"24:00", "10:60", "25", "medio dia", "10:3"} {
		if _, err := ParseTime(input); err == nil {
			t.Errorf("ParseTime(%q) should fail", input)
		}
	}
}

func TestFormatHuman(t *testing.T) {
	if got := FormatHuman("2026-09-14", "10:30"); got != "lunes 14 de septiembre, 10:30" {
		t.Errorf("unexpected rendering: %q", got)
	}
	if got := FormatHuman("2026-09-14", ""); got != "lunes 14 de septiembre" {
		t.Errorf("unexpected date-only rendering: %q", got)
	}
}
