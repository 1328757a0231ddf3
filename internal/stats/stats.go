// Package stats aggregates booking and queue figures for the admin
// dashboard. It reads through database/sql so the dashboard can point at a
// read replica with its own connection settings.
package stats

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// Summary is the dashboard snapshot.
type Summary struct {
	Today                int            `json:"today"`
	Upcoming             int            `json:"upcoming"`
	WeekByDate           map[string]int `json:"week_by_date"`
	ActiveProfessionals  int            `json:"active_professionals"`
	PendingNotifications int            `json:"pending_notifications"`
}

// Reader computes dashboard summaries.
type Reader struct {
	db  *sql.DB
	now func() time.Time
}

func NewReader(db *sql.DB) *Reader {
	if db == nil {
		return nil
	}
	return &Reader{db: db, now: time.Now}
}

// WithClock overrides the time source, for tests.
func (r *Reader) WithClock(now func() time.Time) *Reader {
	r.now = now
	return r
}

// Summary gathers the dashboard figures in one pass.
func (r *Reader) Summary(ctx context.Context) (*Summary, error) {
	today := r.now().Format(dateLayout)
	weekEnd := r.now().AddDate(0, 0, 6).Format(dateLayout)

	s := &Summary{WeekByDate: make(map[string]int)}

	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM appointments WHERE date = $1`, today,
	).Scan(&s.Today)
	if err != nil {
		return nil, fmt.Errorf("stats: count today: %w", err)
	}

	err = r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM appointments WHERE date >= $1`, today,
	).Scan(&s.Upcoming)
	if err != nil {
		return nil, fmt.Errorf("stats: count upcoming: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT date, COUNT(*)
		FROM appointments
		WHERE date >= $1 AND date <= $2
		GROUP BY date
		ORDER BY date
	`, today, weekEnd)
	if err != nil {
		return nil, fmt.Errorf("stats: count week: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var date string
		var count int
		if err := rows.Scan(&date, &count); err != nil {
			return nil, fmt.Errorf("stats: scan week row: %w", err)
		}
		s.WeekByDate[date] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("stats: read week rows: %w", err)
	}

	err = r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM professionals WHERE active`,
	).Scan(&s.ActiveProfessionals)
	if err != nil {
		return nil, fmt.Errorf("stats: count professionals: %w", err)
	}

	err = r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE NOT sent`,
	).Scan(&s.PendingNotifications)
	if err != nil {
		return nil, fmt.Errorf("stats: count pending notifications: %w", err)
	}

	return s, nil
}
