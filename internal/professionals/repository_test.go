package professionals

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func TestListActive(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	id1, id2 := uuid.New(), uuid.New()
	mock.ExpectQuery("SELECT id, name, color, active, position").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "color", "active", "position"}).
			AddRow(id1, "Martín", "#e74c3c", true, 1).
			AddRow(id2, "Lucía", "#2ecc71", true, 2))

	repo := NewRepository(mock)
	pros, err := repo.ListActive(context.Background())
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(pros) != 2 || pros[0].Name != "Martín" || pros[1].Name != "Lucía" {
		t.Fatalf("unexpected result: %+v", pros)
	}
}

func TestFreeAt(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	id := uuid.New()
	mock.ExpectQuery("SELECT p.id, p.name, p.color, p.active, p.position").
		WithArgs("2026-09-14", "10:00").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "color", "active", "position"}).
			AddRow(id, "Martín", "#e74c3c", true, 1))

	repo := NewRepository(mock)
	pros, err := repo.FreeAt(context.Background(), "2026-09-14", "10:00")
	if err != nil {
		t.Fatalf("free at: %v", err)
	}
	if len(pros) != 1 || pros[0].ID != id {
		t.Fatalf("unexpected result: %+v", pros)
	}
}

func TestGetNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	id := uuid.New()
	mock.ExpectQuery("SELECT id, name, color, active, position").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "color", "active", "position"}))

	repo := NewRepository(mock)
	if _, err := repo.Get(context.Background(), id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateMissingRowIsNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	p := Professional{ID: uuid.New(), Name: "Martín", Color: "#e74c3c", Active: true, Position: 1}
	mock.ExpectExec("UPDATE professionals").
		WithArgs(p.ID, p.Name, p.Color, p.Active, p.Position).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	repo := NewRepository(mock)
	if err := repo.Update(context.Background(), p); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateAssignsID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec("INSERT INTO professionals").
		WithArgs(pgxmock.AnyArg(), "Lucía", "#2ecc71", true, 2).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	repo := NewRepository(mock)
	created, err := repo.Create(context.Background(), Professional{Name: "Lucía", Color: "#2ecc71", Active: true, Position: 2})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == uuid.Nil {
		t.Fatal("expected generated id")
	}
}
