// Package professionals manages the providers that can each hold their own
// booking in the same time slot.
package professionals

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound means the requested professional does not exist.
var ErrNotFound = errors.New("professionals: not found")

// Professional is one service provider. Position orders menus.
type Professional struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Color    string    `json:"color"`
	Active   bool      `json:"active"`
	Position int       `json:"position"`
}

// Querier is the subset of pgxpool.Pool the repository needs.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository provides persistence for professionals.
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

// ListActive returns active professionals in menu order.
func (r *Repository) ListActive(ctx context.Context) ([]Professional, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, color, active, position
		FROM professionals
		WHERE active
		ORDER BY position, name
	`)
	if err != nil {
		return nil, fmt.Errorf("professionals: list active: %w", err)
	}
	defer rows.Close()
	return scanAll(rows)
}

// List returns every professional, active or not, in menu order.
func (r *Repository) List(ctx context.Context) ([]Professional, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, color, active, position
		FROM professionals
		ORDER BY position, name
	`)
	if err != nil {
		return nil, fmt.Errorf("professionals: list: %w", err)
	}
	defer rows.Close()
	return scanAll(rows)
}

// Get loads one professional by id.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Professional, error) {
	var p Professional
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, color, active, position
		FROM professionals
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Color, &p.Active, &p.Position)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("professionals: get: %w", err)
	}
	return &p, nil
}

// Create inserts a professional and returns it with its generated id.
func (r *Repository) Create(ctx context.Context, p Professional) (*Professional, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO professionals (id, name, color, active, position)
		VALUES ($1, $2, $3, $4, $5)
	`, p.ID, p.Name, p.Color, p.Active, p.Position)
	if err != nil {
		return nil, fmt.Errorf("professionals: create: %w", err)
	}
	return &p, nil
}

// Update rewrites a professional's mutable fields.
func (r *Repository) Update(ctx context.Context, p Professional) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE professionals
		SET name = $2, color = $3, active = $4, position = $5
		WHERE id = $1
	`, p.ID, p.Name, p.Color, p.Active, p.Position)
	if err != nil {
		return fmt.Errorf("professionals: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a professional. Appointments keep a NULL professional_id
// through the FK's ON DELETE SET NULL.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM professionals WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("professionals: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// FreeAt returns the active professionals with no appointment at the given
// date and time, in menu order.
func (r *Repository) FreeAt(ctx context.Context, date, timeStr string) ([]Professional, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.id, p.name, p.color, p.active, p.position
		FROM professionals p
		WHERE p.active
		  AND NOT EXISTS (
			SELECT 1 FROM appointments a
			WHERE a.date = $1 AND a.time = $2 AND a.professional_id = p.id
		  )
		ORDER BY p.position, p.name
	`, date, timeStr)
	if err != nil {
		return nil, fmt.Errorf("professionals: free at slot: %w", err)
	}
	defer rows.Close()
	return scanAll(rows)
}

func scanAll(rows pgx.Rows) ([]Professional, error) {
	var out []Professional
	for rows.Next() {
		var p Professional
		if err := rows.Scan(&p.ID, &p.Name, &p.Color, &p.Active, &p.Position); err != nil {
			return nil, fmt.Errorf("professionals: scan row: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("professionals: read rows: %w", err)
	}
	return out, nil
}
