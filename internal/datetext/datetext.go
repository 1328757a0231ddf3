// Package datetext normalizes free-text Spanish date and time input from
// chat messages into canonical YYYY-MM-DD and HH:MM strings.
package datetext

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// UserError is a validation failure meant to be shown to the end user.
// It is never a programming error and must not crash a conversation.
type UserError struct {
	Reason string
}

func (e *UserError) Error() string { return e.Reason }

// NewUserError builds a user-facing validation error.
func NewUserError(reason string) *UserError {
	return &UserError{Reason: reason}
}

var weekdays = map[string]time.Weekday{
	"lunes":     time.Monday,
	"martes":    time.Tuesday,
	"miercoles": time.Wednesday,
	"miércoles": time.Wednesday,
	"jueves":    time.Thursday,
	"viernes":   time.Friday,
	"sabado":    time.Saturday,
	"sábado":    time.Saturday,
	"domingo":   time.Sunday,
}

var monthNames = []string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

var dayNames = []string{
	"domingo", "lunes", "martes", "miércoles", "jueves", "viernes", "sábado",
}

var (
	dmyPattern  = regexp.MustCompile(`^(\d{1,2})[/-](\d{1,2})[/-](\d{4})$`)
	dmPattern   = regexp.MustCompile(`^(\d{1,2})[/-](\d{1,2})$`)
	isoPattern  = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)
	timePattern = regexp.MustCompile(`^(\d{1,2})(?:[:.](\d{2}))?$`)
)

// ParseDate turns user input into YYYY-MM-DD relative to today.
//
// Accepted forms: "hoy", "mañana", weekday names (resolved to the next
// occurrence strictly after today), DD/MM, DD/MM/YYYY, DD-MM[-YYYY] and
// YYYY-MM-DD. DD/MM without a year assumes the current year unless that
// date already passed, in which case it rolls to next year. The result must
// fall within [today, today+horizonDays].
func ParseDate(input string, today time.Time, horizonDays int) (string, error) {
	s := strings.ToLower(strings.TrimSpace(input))
	todayDate := truncate(today)

	var parsed time.Time
	switch {
	case s == "hoy":
		parsed = todayDate
	case s == "mañana" || s == "manana":
		parsed = todayDate.AddDate(0, 0, 1)
	default:
		if wd, ok := weekdays[s]; ok {
			// Next occurrence, never today: "lunes" on a Monday means the
			// following Monday.
			days := (int(wd) - int(todayDate.Weekday()) + 7) % 7
			if days == 0 {
				days = 7
			}
			parsed = todayDate.AddDate(0, 0, days)
			break
		}
		var err error
		parsed, err = parseNumeric(s, todayDate)
		if err != nil {
			return "", err
		}
	}

	if parsed.Before(todayDate) {
		return "", NewUserError("La fecha no puede ser anterior a hoy.")
	}
	if horizonDays > 0 && parsed.After(todayDate.AddDate(0, 0, horizonDays)) {
		return "", NewUserError("Solo puedes reservar turnos hasta 2 meses adelante.")
	}
	return parsed.Format(dateLayout), nil
}

func parseNumeric(s string, today time.Time) (time.Time, error) {
	if m := isoPattern.FindStringSubmatch(s); m != nil {
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			return time.Time{}, NewUserError("Formato de fecha inválido. Usa DD/MM o DD/MM/AAAA.")
		}
		return t, nil
	}
	if m := dmyPattern.FindStringSubmatch(s); m != nil {
		return buildDate(m[1], m[2], m[3])
	}
	if m := dmPattern.FindStringSubmatch(s); m != nil {
		t, err := buildDate(m[1], m[2], strconv.Itoa(today.Year()))
		if err != nil {
			return time.Time{}, err
		}
		// Year-less dates already past roll to next year.
		if t.Before(today) {
			t = t.AddDate(1, 0, 0)
		}
		return t, nil
	}
	return time.Time{}, NewUserError("Formato de fecha inválido. Usa DD/MM o DD/MM/AAAA.")
}

func buildDate(dayStr, monthStr, yearStr string) (time.Time, error) {
	day, _ := strconv.Atoi(dayStr)
	month, _ := strconv.Atoi(monthStr)
	year, _ := strconv.Atoi(yearStr)
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, NewUserError("Formato de fecha inválido. Usa DD/MM o DD/MM/AAAA.")
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes overflow (31/02 becomes March); treat that as bad input.
	if t.Day() != day || t.Month() != time.Month(month) {
		return time.Time{}, NewUserError("Esa fecha no existe en el calendario.")
	}
	return t, nil
}

// ParseTime normalizes HH:MM, HH.MM or a bare hour into zero-padded HH:MM.
func ParseTime(input string) (string, error) {
	s := strings.TrimSpace(input)
	m := timePattern.FindStringSubmatch(s)
	if m == nil {
		return "", NewUserError("Formato de hora inválido. Usa HH:MM.")
	}
	hour, _ := strconv.Atoi(m[1])
	minute := 0
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return "", NewUserError("Hora inválida.")
	}
	return fmt.Sprintf("%02d:%02d", hour, minute), nil
}

// FormatHuman renders a date (and optional time) the way the bot speaks:
// "lunes 2 de marzo" or "lunes 2 de marzo, 10:30".
func FormatHuman(date, timeStr string) string {
	t, err := time.Parse(dateLayout, date)
	if err != nil {
		if timeStr != "" {
			return date + ", " + timeStr
		}
		return date
	}
	out := fmt.Sprintf("%s %d de %s", dayNames[int(t.Weekday())], t.Day(), monthNames[int(t.Month())-1])
	if timeStr != "" {
		out += ", " + timeStr
	}
	return out
}

// WeekdayName returns the lowercase Spanish name of t's weekday.
func WeekdayName(t time.Time) string {
	return dayNames[int(t.Weekday())]
}

func truncate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
