package schedule

import (
	"testing"
	"time"

	"github.com/turnoslabs/turnosbot/internal/availability"
)

func TestParseDocumentModernShape(t *testing.T) {
	raw := []byte(`{
		"hora_inicio": 8, "hora_fin": 18, "intervalo": 30,
		"dias_bloqueados": ["2026-12-25"],
		"horarios_por_dia": {
			"Lunes": {"manana": {"hora_inicio": 9, "hora_fin": 13, "intervalo": 20},
			          "tarde": {"hora_inicio": 16, "hora_fin": 20, "intervalo": 20}}
		}
	}`)

	doc, err := ParseDocument(raw)
	if err != nil {
		t.Fatal(err)
	}

	monday := doc.ByDay["Lunes"]
	if monday.Morning.StartHour != 9 || monday.Morning.IntervalMinutes != 20 {
		t.Errorf("monday morning not preserved: %+v", monday.Morning)
	}
	if monday.Afternoon.EndHour != 20 {
		t.Errorf("monday afternoon not preserved: %+v", monday.Afternoon)
	}

	// Days absent from the document get the default schedule.
	tuesday := doc.ByDay["Martes"]
	if tuesday != (availability.DaySchedule{
		Morning:   availability.TimeRange{StartHour: 8, EndHour: 12, IntervalMinutes: 30},
		Afternoon: availability.TimeRange{StartHour: 15, EndHour: 18, IntervalMinutes: 30},
	}) {
		t.Errorf("absent day should use legacy-derived defaults: %+v", tuesday)
	}

	if len(doc.BlockedDates) != 1 || doc.BlockedDates[0] != "2026-12-25" {
		t.Errorf("blocked dates lost: %v", doc.BlockedDates)
	}
}

func TestParseDocumentMigratesLegacyFlatDay(t *testing.T) {
	raw := []byte(`{
		"hora_inicio": 8, "hora_fin": 18, "intervalo": 30,
		"horarios_por_dia": {
			"Viernes": {"hora_inicio": 10, "hora_fin": 14, "intervalo": 15}
		}
	}`)

	doc, err := ParseDocument(raw)
	if err != nil {
		t.Fatal(err)
	}

	friday := doc.ByDay["Viernes"]
	if friday.Morning.StartHour != 10 || friday.Morning.EndHour != 14 || friday.Morning.IntervalMinutes != 15 {
		t.Errorf("legacy flat range should become the morning range: %+v", friday.Morning)
	}
	if friday.Afternoon != availability.DefaultDaySchedule().Afternoon {
		t.Errorf("migrated day should gain the default afternoon: %+v", friday.Afternoon)
	}
}

func TestParseDocumentMorningOnlyDay(t *testing.T) {
	raw := []byte(`{
		"horarios_por_dia": {
			"Sábado": {"manana": {"hora_inicio": 9, "hora_fin": 12, "intervalo": 30}}
		}
	}`)

	doc, err := ParseDocument(raw)
	if err != nil {
		t.Fatal(err)
	}
	saturday := doc.ByDay["Sábado"]
	if saturday.Morning.StartHour != 9 {
		t.Errorf("saturday morning lost: %+v", saturday.Morning)
	}
	if saturday.Afternoon != availability.DefaultDaySchedule().Afternoon {
		t.Errorf("missing afternoon should default: %+v", saturday.Afternoon)
	}
}

func TestParseDocumentGarbage(t *testing.T) {
	if _, err := ParseDocument([]byte(`{not json`)); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestWeekly(t *testing.T) {
	doc := DefaultDocument()
	weekly := doc.Weekly()
	if len(weekly) != 7 {
		t.Fatalf("expected 7 weekdays, got %d", len(weekly))
	}
	if weekly[time.Monday].Morning.StartHour != 8 {
		t.Errorf("monday morning: %+v", weekly[time.Monday].Morning)
	}
}

func TestSundaysWithin(t *testing.T) {
	// 2026-09-14 is a Monday; the next Sunday is the 20th.
	monday := time.Date(2026, 9, 14, 10, 0, 0, 0, time.UTC)
	sundays := SundaysWithin(monday, 1)

	if len(sundays) == 0 {
		t.Fatal("expected at least one Sunday")
	}
	if sundays[0] != "2026-09-20" {
		t.Errorf("first Sunday should be 2026-09-20, got %s", sundays[0])
	}
	for _, s := range sundays {
		d, err := time.Parse("2006-01-02", s)
		if err != nil || d.Weekday() != time.Sunday {
			t.Errorf("%s is not a Sunday", s)
		}
	}

	// Starting on a Sunday includes that same day.
	sunday := time.Date(2026, 9, 20, 8, 0, 0, 0, time.UTC)
	sundays = SundaysWithin(sunday, 1)
	if sundays[0] != "2026-09-20" {
		t.Errorf("a Sunday start date should block itself, got %s", sundays[0])
	}
}
