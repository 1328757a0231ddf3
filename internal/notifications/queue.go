// Package notifications decouples "something happened" from "a message was
// sent": events enqueue rows, a dispatcher delivers them out of band so the
// webhook and admin paths never block on the messaging API.
package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Notification kinds.
const (
	KindBookingCreated   = "booking_created"
	KindBookingCancelled = "booking_cancelled"
	KindDayBlocked       = "day_blocked"
)

// Entry is one queued notification. Delivered entries keep sent=true until
// garbage collection removes them.
type Entry struct {
	ID        uuid.UUID  `json:"id"`
	Kind      string     `json:"kind"`
	Recipient string     `json:"recipient_phone"`
	Message   string     `json:"message"`
	Sent      bool       `json:"sent"`
	CreatedAt time.Time  `json:"created_at"`
	SentAt    *time.Time `json:"sent_at,omitempty"`
}

// Querier is the subset of pgxpool.Pool the queue needs.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queue is the Postgres-backed notification queue.
type Queue struct {
	pool Querier
}

// NewQueue creates a queue backed by a pgx pool.
func NewQueue(pool Querier) *Queue {
	if pool == nil {
		return nil
	}
	return &Queue{pool: pool}
}

// Enqueue appends an unsent entry and returns immediately. The only
// guarantee is that delivery will be attempted.
func (q *Queue) Enqueue(ctx context.Context, recipient, message, kind string) error {
	_, err := q.pool.Exec(ctx, `
		INSERT INTO notifications (id, kind, recipient_phone, message, sent)
		VALUES ($1, $2, $3, $4, false)
	`, uuid.New(), kind, recipient, message)
	if err != nil {
		return fmt.Errorf("notifications: enqueue: %w", err)
	}
	return nil
}

// ClaimBatch atomically marks up to limit unsent entries as sent and
// returns them, oldest first. SKIP LOCKED keeps concurrent dispatchers from
// claiming the same rows; the whole-file rewrite race of the old JSON queue
// has no equivalent here.
func (q *Queue) ClaimBatch(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := q.pool.Query(ctx, `
		UPDATE notifications SET sent = true, sent_at = now()
		WHERE id IN (
			SELECT id FROM notifications
			WHERE sent = false
			ORDER BY created_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, kind, recipient_phone, message, sent, created_at, sent_at
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("notifications: claim batch: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// Release puts a claimed entry back in the queue after a failed delivery,
// so the next poll cycle retries it.
func (q *Queue) Release(ctx context.Context, id uuid.UUID) error {
	_, err := q.pool.Exec(ctx, `
		UPDATE notifications SET sent = false, sent_at = NULL WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("notifications: release: %w", err)
	}
	return nil
}

// DeleteSentBefore garbage-collects delivered entries older than the cutoff
// and returns how many were removed.
func (q *Queue) DeleteSentBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := q.pool.Exec(ctx, `
		DELETE FROM notifications WHERE sent = true AND sent_at < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("notifications: delete sent: %w", err)
	}
	return tag.RowsAffected(), nil
}

// List returns entries for the admin panel, pending first when onlyPending.
func (q *Queue) List(ctx context.Context, onlyPending bool, limit int) ([]Entry, error) {
	query := `
		SELECT id, kind, recipient_phone, message, sent, created_at, sent_at
		FROM notifications
	`
	if onlyPending {
		query += ` WHERE sent = false`
	}
	query += ` ORDER BY created_at DESC LIMIT $1`

	rows, err := q.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("notifications: list: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// CountPending returns how many entries still wait for delivery.
func (q *Queue) CountPending(ctx context.Context) (int, error) {
	var n int
	err := q.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE sent = false`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("notifications: count pending: %w", err)
	}
	return n, nil
}

func scanEntries(rows pgx.Rows) ([]Entry, error) {
	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Kind, &e.Recipient, &e.Message, &e.Sent, &e.CreatedAt, &e.SentAt); err != nil {
			return nil, fmt.Errorf("notifications: scan entry: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("notifications: read entries: %w", err)
	}
	return out, nil
}
