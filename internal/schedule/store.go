package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of pgxpool.Pool the store needs, so tests can
// substitute a mock.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists the schedule document and the blocked-date set in Postgres.
type Store struct {
	pool            Querier
	autoBlockMonths int
}

// NewStore creates a schedule store. autoBlockMonths controls how far ahead
// Sundays are auto-blocked on every read.
func NewStore(pool Querier, autoBlockMonths int) *Store {
	if pool == nil {
		return nil
	}
	if autoBlockMonths <= 0 {
		autoBlockMonths = 6
	}
	return &Store{pool: pool, autoBlockMonths: autoBlockMonths}
}

// GetDocument loads the current schedule document, falling back to the
// default configuration when none has been saved yet.
func (s *Store) GetDocument(ctx context.Context) (*Document, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT document FROM schedule_config ORDER BY updated_at DESC LIMIT 1`,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return DefaultDocument(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("schedule: load document: %w", err)
	}
	return ParseDocument(raw)
}

// HasDocument reports whether a schedule document has ever been saved,
// letting a deployment seed from a legacy config file only once.
func (s *Store) HasDocument(ctx context.Context) (bool, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM schedule_config`).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("schedule: count documents: %w", err)
	}
	return n > 0, nil
}

// SaveDocument upserts the schedule document.
func (s *Store) SaveDocument(ctx context.Context, doc *Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("schedule: encode document: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO schedule_config (id, document, updated_at)
		VALUES (1, $1, now())
		ON CONFLICT (id) DO UPDATE SET document = EXCLUDED.document, updated_at = now()
	`, raw)
	if err != nil {
		return fmt.Errorf("schedule: save document: %w", err)
	}
	return nil
}

// BlockedDates returns the admin-blocked dates plus every Sunday within the
// auto-block window.
func (s *Store) BlockedDates(ctx context.Context, today time.Time) (map[string]struct{}, error) {
	rows, err := s.pool.Query(ctx, `SELECT date FROM blocked_dates`)
	if err != nil {
		return nil, fmt.Errorf("schedule: list blocked dates: %w", err)
	}
	defer rows.Close()

	blocked := make(map[string]struct{})
	for rows.Next() {
		var date string
		if err := rows.Scan(&date); err != nil {
			return nil, fmt.Errorf("schedule: scan blocked date: %w", err)
		}
		blocked[date] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("schedule: read blocked dates: %w", err)
	}

	for _, sunday := range SundaysWithin(today, s.autoBlockMonths) {
		blocked[sunday] = struct{}{}
	}
	return blocked, nil
}

// BlockDate marks a date as closed. Blocking an already-blocked date is a no-op.
func (s *Store) BlockDate(ctx context.Context, date string) error {
	if _, err := time.Parse(dateLayout, date); err != nil {
		return fmt.Errorf("schedule: invalid date %q: %w", date, err)
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO blocked_dates (date) VALUES ($1)
		ON CONFLICT (date) DO NOTHING
	`, date)
	if err != nil {
		return fmt.Errorf("schedule: block date: %w", err)
	}
	return nil
}

// UnblockDate reopens a date. Auto-blocked Sundays cannot be unblocked this
// way; they are recomputed on every read.
func (s *Store) UnblockDate(ctx context.Context, date string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM blocked_dates WHERE date = $1`, date)
	if err != nil {
		return fmt.Errorf("schedule: unblock date: %w", err)
	}
	return nil
}

// LoadFile reads a schedule document from disk, used to seed a fresh
// deployment from the legacy config.json.
func LoadFile(path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("schedule: read config file: %w", err)
	}
	return ParseDocument(raw)
}
