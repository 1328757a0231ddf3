// Package appointments owns booking persistence and the booking service.
// The unique index on (date, time, professional) is the real guard against
// double booking; availability checks are advisory.
package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrSlotTaken means another booking claimed the slot first. It surfaces to
// the user as "choose another time", never as a failure of the process.
var ErrSlotTaken = errors.New("appointments: slot already taken")

// ErrNotFound means the requested appointment does not exist (or does not
// belong to the requesting phone).
var ErrNotFound = errors.New("appointments: not found")

const uniqueViolation = "23505"

// Appointment is one booked slot.
type Appointment struct {
	ID               uuid.UUID  `json:"id"`
	CustomerName     string     `json:"customer_name"`
	Date             string     `json:"date"`
	Time             string     `json:"time"`
	Phone            string     `json:"phone"`
	ProfessionalID   *uuid.UUID `json:"professional_id,omitempty"`
	ProfessionalName string     `json:"professional_name,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// Querier is the subset of pgxpool.Pool the repository needs.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository provides persistence for appointments.
type Repository struct {
	pool Querier
}

// NewRepository creates a repository backed by a pgx pool.
func NewRepository(pool Querier) *Repository {
	if pool == nil {
		return nil
	}
	return &Repository{pool: pool}
}

// Create inserts an appointment. A collision on the slot's unique index is
// reported as ErrSlotTaken.
func (r *Repository) Create(ctx context.Context, appt Appointment) (*Appointment, error) {
	if appt.ID == uuid.Nil {
		appt.ID = uuid.New()
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, customer_name, date, time, phone, professional_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, appt.ID, appt.CustomerName, appt.Date, appt.Time, appt.Phone, appt.ProfessionalID).Scan(&appt.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrSlotTaken
		}
		return nil, fmt.Errorf("appointments: create: %w", err)
	}
	return &appt, nil
}

// ListUpcomingByPhone returns a customer's appointments from the given date
// onward, earliest first.
func (r *Repository) ListUpcomingByPhone(ctx context.Context, phone, fromDate string) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT a.id, a.customer_name, a.date, a.time, a.phone, a.professional_id,
		       COALESCE(p.name, ''), a.created_at
		FROM appointments a
		LEFT JOIN professionals p ON p.id = a.professional_id
		WHERE a.phone = $1 AND a.date >= $2
		ORDER BY a.date, a.time
	`, phone, fromDate)
	if err != nil {
		return nil, fmt.Errorf("appointments: list by phone: %w", err)
	}
	defer rows.Close()
	return scanAll(rows)
}

// ListByDate returns every appointment on a date, earliest first.
func (r *Repository) ListByDate(ctx context.Context, date string) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT a.id, a.customer_name, a.date, a.time, a.phone, a.professional_id,
		       COALESCE(p.name, ''), a.created_at
		FROM appointments a
		LEFT JOIN professionals p ON p.id = a.professional_id
		WHERE a.date = $1
		ORDER BY a.time
	`, date)
	if err != nil {
		return nil, fmt.Errorf("appointments: list by date: %w", err)
	}
	defer rows.Close()
	return scanAll(rows)
}

// ListBetween returns appointments with date in [from, to], for the admin
// week view.
func (r *Repository) ListBetween(ctx context.Context, from, to string) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT a.id, a.customer_name, a.date, a.time, a.phone, a.professional_id,
		       COALESCE(p.name, ''), a.created_at
		FROM appointments a
		LEFT JOIN professionals p ON p.id = a.professional_id
		WHERE a.date >= $1 AND a.date <= $2
		ORDER BY a.date, a.time
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("appointments: list between: %w", err)
	}
	defer rows.Close()
	return scanAll(rows)
}

// Get loads one appointment by id.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	var appt Appointment
	err := r.pool.QueryRow(ctx, `
		SELECT a.id, a.customer_name, a.date, a.time, a.phone, a.professional_id,
		       COALESCE(p.name, ''), a.created_at
		FROM appointments a
		LEFT JOIN professionals p ON p.id = a.professional_id
		WHERE a.id = $1
	`, id).Scan(&appt.ID, &appt.CustomerName, &appt.Date, &appt.Time, &appt.Phone,
		&appt.ProfessionalID, &appt.ProfessionalName, &appt.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("appointments: get: %w", err)
	}
	return &appt, nil
}

// Delete removes an appointment by id. Deleting a missing row returns
// ErrNotFound.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("appointments: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByIDAndPhone removes an appointment only when it belongs to the
// phone, so one customer cannot cancel another's booking.
func (r *Repository) DeleteByIDAndPhone(ctx context.Context, id uuid.UUID, phone string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM appointments WHERE id = $1 AND phone = $2`, id, phone)
	if err != nil {
		return fmt.Errorf("appointments: delete by phone: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// OccupiedTimes returns the set of booked times on a date, optionally
// narrowed to one professional's bookings.
func (r *Repository) OccupiedTimes(ctx context.Context, date string, professionalID *uuid.UUID) (map[string]struct{}, error) {
	query := `SELECT time FROM appointments WHERE date = $1`
	args := []any{date}
	if professionalID != nil {
		query += ` AND professional_id = $2`
		args = append(args, *professionalID)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("appointments: occupied times: %w", err)
	}
	defer rows.Close()

	occupied := make(map[string]struct{})
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("appointments: scan occupied time: %w", err)
		}
		occupied[t] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointments: read occupied times: %w", err)
	}
	return occupied, nil
}

// BookedCountsByTime returns, per time, how many bookings exist on a date.
// Times with no bookings are absent from the map.
func (r *Repository) BookedCountsByTime(ctx context.Context, date string) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT time, COUNT(*) FROM appointments WHERE date = $1 GROUP BY time
	`, date)
	if err != nil {
		return nil, fmt.Errorf("appointments: booked counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var t string
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			return nil, fmt.Errorf("appointments: scan booked count: %w", err)
		}
		counts[t] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointments: read booked counts: %w", err)
	}
	return counts, nil
}

// CountFrom returns the number of appointments on or after a date.
func (r *Repository) CountFrom(ctx context.Context, fromDate string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM appointments WHERE date >= $1`, fromDate).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("appointments: count from: %w", err)
	}
	return n, nil
}

func scanAll(rows pgx.Rows) ([]Appointment, error) {
	var out []Appointment
	for rows.Next() {
		var appt Appointment
		if err := rows.Scan(&appt.ID, &appt.CustomerName, &appt.Date, &appt.Time, &appt.Phone,
			&appt.ProfessionalID, &appt.ProfessionalName, &appt.CreatedAt); err != nil {
			return nil, fmt.Errorf("appointments: scan row: %w", err)
		}
		out = append(out, appt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointments: read rows: %w", err)
	}
	return out, nil
}
