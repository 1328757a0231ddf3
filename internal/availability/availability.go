package availability

import (
	"fmt"
	"sort"
	"time"
)

const dateLayout = "2006-01-02"

// TimeRange is one open stretch of a working day, generated on a fixed
// interval. A zero range contributes no slots.
type TimeRange struct {
	StartHour       int `json:"hora_inicio"`
	EndHour         int `json:"hora_fin"`
	IntervalMinutes int `json:"intervalo"`
}

// IsZero reports whether the range is empty or unusable.
func (r TimeRange) IsZero() bool {
	return r.IntervalMinutes <= 0 || r.EndHour <= r.StartHour
}

// DaySchedule holds the morning and afternoon ranges for one weekday.
// Either range may be zero, meaning closed for that part of the day.
type DaySchedule struct {
	Morning   TimeRange `json:"manana"`
	Afternoon TimeRange `json:"tarde"`
}

// WeeklySchedule maps weekdays to their day schedules.
type WeeklySchedule map[time.Weekday]DaySchedule

// DefaultDaySchedule is the fallback for weekdays missing from the schedule.
// Callers must never get an error for an unconfigured day, only this default.
func DefaultDaySchedule() DaySchedule {
	return DaySchedule{
		Morning:   TimeRange{StartHour: 8, EndHour: 12, IntervalMinutes: 30},
		Afternoon: TimeRange{StartHour: 15, EndHour: 18, IntervalMinutes: 30},
	}
}

// Request carries everything ListSlots needs. The engine is a pure function
// of this input: no clocks, no storage.
type Request struct {
	// Date in YYYY-MM-DD form.
	Date string
	// Schedule is the weekly configuration; missing weekdays fall back to
	// DefaultDaySchedule.
	Schedule WeeklySchedule
	// Blocked dates never offer slots regardless of schedule.
	Blocked map[string]struct{}
	// Occupied holds times (HH:MM) already taken on Date. In
	// single-professional mode this is every booked time; when a specific
	// professional was requested it is that professional's booked times.
	Occupied map[string]struct{}
	// FreeProfessionals, when non-nil, gives the number of active
	// professionals still free at each time. A slot needs at least one.
	// Times absent from the map count as fully free.
	FreeProfessionals map[string]int
	// Now is the caller's clock, used only for the same-day cutoff.
	Now time.Time
}

// ListSlots computes the ordered list of bookable HH:MM times for a date.
//
// Blocked dates and unparseable dates yield an empty list, never an error.
// Morning and afternoon are generated independently so a misconfigured
// interval never walks across the lunch boundary; duplicate times keep
// their first occurrence. On the current day every time at or before the
// clock is dropped: a slot starting exactly now is not offered.
func ListSlots(req Request) []string {
	if _, blocked := req.Blocked[req.Date]; blocked {
		return []string{}
	}

	day, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		return []string{}
	}

	sched, ok := req.Schedule[day.Weekday()]
	if !ok {
		sched = DefaultDaySchedule()
	}

	seen := make(map[string]struct{})
	candidates := make([]string, 0, 32)
	for _, r := range []TimeRange{sched.Morning, sched.Afternoon} {
		for _, t := range r.Times() {
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			candidates = append(candidates, t)
		}
	}

	// Zero-padded HH:MM sorts lexicographically in chronological order.
	sort.Strings(candidates)

	cutoff := ""
	if !req.Now.IsZero() && req.Now.Format(dateLayout) == req.Date {
		cutoff = req.Now.Format("15:04")
	}

	out := make([]string, 0, len(candidates))
	for _, t := range candidates {
		if cutoff != "" && t <= cutoff {
			continue
		}
		if _, taken := req.Occupied[t]; taken {
			continue
		}
		if req.FreeProfessionals != nil {
			if free, tracked := req.FreeProfessionals[t]; tracked && free <= 0 {
				continue
			}
		}
		out = append(out, t)
	}
	return out
}

// Times expands the range into HH:MM strings. The loop condition is strictly
// below the end of the range, so a trailing partial slot is dropped.
func (r TimeRange) Times() []string {
	if r.IsZero() {
		return nil
	}
	times := make([]string, 0, (r.EndHour-r.StartHour)*60/r.IntervalMinutes+1)
	end := r.EndHour * 60
	for m := r.StartHour * 60; m < end; m += r.IntervalMinutes {
		times = append(times, fmt.Sprintf("%02d:%02d", m/60, m%60))
	}
	return times
}

// IsSlotFree is the trivial membership check used right before an insert.
// It is advisory only: the unique constraint on the appointments table is
// what actually prevents double booking.
func IsSlotFree(date, timeStr string, occupied map[string]struct{}, blocked map[string]struct{}) bool {
	if _, b := blocked[date]; b {
		return false
	}
	_, taken := occupied[timeStr]
	return !taken
}
