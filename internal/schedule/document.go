// Package schedule owns the weekly opening-hours configuration: the JSON
// document the admin panel edits, its legacy migrations, and the Postgres
// store behind it.
package schedule

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/turnoslabs/turnosbot/internal/availability"
)

const dateLayout = "2006-01-02"

// DayNames lists the Spanish weekday names used as JSON keys, Monday first,
// matching how the admin panel displays the week.
var DayNames = []string{"Lunes", "Martes", "Miércoles", "Jueves", "Viernes", "Sábado", "Domingo"}

var nameToWeekday = map[string]time.Weekday{
	"Lunes":     time.Monday,
	"Martes":    time.Tuesday,
	"Miércoles": time.Wednesday,
	"Jueves":    time.Thursday,
	"Viernes":   time.Friday,
	"Sábado":    time.Saturday,
	"Domingo":   time.Sunday,
}

// Document is the persisted schedule configuration. The top-level
// hour_start/hour_end/interval trio predates per-day ranges and survives
// only to migrate old documents; new writes always fill ByDay.
type Document struct {
	HourStart    int                                 `json:"hora_inicio"`
	HourEnd      int                                 `json:"hora_fin"`
	Interval     int                                 `json:"intervalo"`
	BlockedDates []string                            `json:"dias_bloqueados"`
	ByDay        map[string]availability.DaySchedule `json:"horarios_por_dia"`
}

// DefaultDocument returns the configuration used before an admin saves one.
func DefaultDocument() *Document {
	byDay := make(map[string]availability.DaySchedule, len(DayNames))
	for _, name := range DayNames {
		byDay[name] = availability.DefaultDaySchedule()
	}
	return &Document{
		HourStart:    8,
		HourEnd:      18,
		Interval:     30,
		BlockedDates: []string{},
		ByDay:        byDay,
	}
}

// ParseDocument decodes a schedule document, migrating legacy shapes:
// a day stored as a single flat range becomes that range as morning plus
// the default afternoon, and absent days get the default day schedule.
func ParseDocument(raw []byte) (*Document, error) {
	var probe struct {
		HourStart    int                        `json:"hora_inicio"`
		HourEnd      int                        `json:"hora_fin"`
		Interval     int                        `json:"intervalo"`
		BlockedDates []string                   `json:"dias_bloqueados"`
		ByDay        map[string]json.RawMessage `json:"horarios_por_dia"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("schedule: decode document: %w", err)
	}

	doc := &Document{
		HourStart:    probe.HourStart,
		HourEnd:      probe.HourEnd,
		Interval:     probe.Interval,
		BlockedDates: probe.BlockedDates,
		ByDay:        make(map[string]availability.DaySchedule, len(DayNames)),
	}
	if doc.BlockedDates == nil {
		doc.BlockedDates = []string{}
	}

	for _, name := range DayNames {
		rawDay, ok := probe.ByDay[name]
		if !ok {
			doc.ByDay[name] = legacyDefaultDay(probe.HourStart, probe.HourEnd, probe.Interval)
			continue
		}
		day, err := migrateDay(rawDay)
		if err != nil {
			return nil, fmt.Errorf("schedule: migrate day %s: %w", name, err)
		}
		doc.ByDay[name] = day
	}
	return doc, nil
}

// migrateDay accepts both the current two-range shape and the legacy flat
// single-range shape.
func migrateDay(raw json.RawMessage) (availability.DaySchedule, error) {
	var twoRange struct {
		Morning   *availability.TimeRange `json:"manana"`
		Afternoon *availability.TimeRange `json:"tarde"`
	}
	if err := json.Unmarshal(raw, &twoRange); err != nil {
		return availability.DaySchedule{}, err
	}
	if twoRange.Morning != nil || twoRange.Afternoon != nil {
		day := availability.DaySchedule{}
		defaults := availability.DefaultDaySchedule()
		if twoRange.Morning != nil {
			day.Morning = *twoRange.Morning
		}
		if twoRange.Afternoon != nil {
			day.Afternoon = *twoRange.Afternoon
		} else {
			day.Afternoon = defaults.Afternoon
		}
		return day, nil
	}

	// Legacy: the day value is itself a flat range.
	var flat availability.TimeRange
	if err := json.Unmarshal(raw, &flat); err != nil {
		return availability.DaySchedule{}, err
	}
	defaults := availability.DefaultDaySchedule()
	if flat.IsZero() {
		return defaults, nil
	}
	return availability.DaySchedule{Morning: flat, Afternoon: defaults.Afternoon}, nil
}

func legacyDefaultDay(hourStart, hourEnd, interval int) availability.DaySchedule {
	if hourStart == 0 && hourEnd == 0 {
		return availability.DefaultDaySchedule()
	}
	if interval <= 0 {
		interval = 30
	}
	morningEnd := 12
	if hourEnd < morningEnd {
		morningEnd = hourEnd
	}
	afternoonStart := 15
	if hourStart > afternoonStart {
		afternoonStart = hourStart
	}
	return availability.DaySchedule{
		Morning:   availability.TimeRange{StartHour: hourStart, EndHour: morningEnd, IntervalMinutes: interval},
		Afternoon: availability.TimeRange{StartHour: afternoonStart, EndHour: hourEnd, IntervalMinutes: interval},
	}
}

// Weekly converts the document into the engine's weekday-keyed form.
func (d *Document) Weekly() availability.WeeklySchedule {
	weekly := make(availability.WeeklySchedule, len(d.ByDay))
	for name, day := range d.ByDay {
		if wd, ok := nameToWeekday[name]; ok {
			weekly[wd] = day
		}
	}
	return weekly
}

// SundaysWithin lists every Sunday from today through the given number of
// months ahead. Sundays are closed by business rule: they are appended to
// the blocked set on every config load rather than stored one by one.
func SundaysWithin(today time.Time, months int) []string {
	if months <= 0 {
		return nil
	}
	day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	daysUntil := (int(time.Sunday) - int(day.Weekday()) + 7) % 7
	sunday := day.AddDate(0, 0, daysUntil)
	limit := day.AddDate(0, months, 0)

	var out []string
	for !sunday.After(limit) {
		out = append(out, sunday.Format(dateLayout))
		sunday = sunday.AddDate(0, 0, 7)
	}
	return out
}
