package appointments

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (*Repository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewRepository(mock), mock
}

func TestCreateReturnsCreatedAt(t *testing.T) {
	repo, mock := newMockRepo(t)

	created := time.Date(2026, 9, 10, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(pgxmock.AnyArg(), "Ana", "2026-09-14", "10:30", "5491122334455", (*uuid.UUID)(nil)).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(created))

	appt, err := repo.Create(context.Background(), Appointment{
		CustomerName: "Ana",
		Date:         "2026-09-14",
		Time:         "10:30",
		Phone:        "5491122334455",
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, appt.ID)
	assert.Equal(t, created, appt.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUniqueViolationIsSlotTaken(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(pgxmock.AnyArg(), "Ana", "2026-09-14", "10:30", "549111", (*uuid.UUID)(nil)).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "appointments_slot_key"})

	_, err := repo.Create(context.Background(), Appointment{
		CustomerName: "Ana",
		Date:         "2026-09-14",
		Time:         "10:30",
		Phone:        "549111",
	})
	assert.ErrorIs(t, err, ErrSlotTaken)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	id := uuid.New()
	mock.ExpectQuery("SELECT (.+) FROM appointments").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "customer_name", "date", "time", "phone", "professional_id", "name", "created_at",
		}))

	_, err := repo.Get(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteByIDAndPhoneRequiresOwnership(t *testing.T) {
	repo, mock := newMockRepo(t)

	id := uuid.New()
	mock.ExpectExec("DELETE FROM appointments").
		WithArgs(id, "549999").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := repo.DeleteByIDAndPhone(context.Background(), id, "549999")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOccupiedTimesForProfessional(t *testing.T) {
	repo, mock := newMockRepo(t)

	proID := uuid.New()
	mock.ExpectQuery("SELECT time FROM appointments").
		WithArgs("2026-09-14", proID).
		WillReturnRows(pgxmock.NewRows([]string{"time"}).AddRow("10:00").AddRow("10:30"))

	occupied, err := repo.OccupiedTimes(context.Background(), "2026-09-14", &proID)
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"10:00": {}, "10:30": {}}, occupied)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookedCountsByTime(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("GROUP BY time").
		WithArgs("2026-09-14").
		WillReturnRows(pgxmock.NewRows([]string{"time", "count"}).
			AddRow("09:00", 2).
			AddRow("10:30", 1))

	counts, err := repo.BookedCountsByTime(context.Background(), "2026-09-14")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"09:00": 2, "10:30": 1}, counts)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListUpcomingByPhoneOrdersByDateTime(t *testing.T) {
	repo, mock := newMockRepo(t)

	proID := uuid.New()
	now := time.Now()
	mock.ExpectQuery("WHERE a.phone = \\$1 AND a.date >= \\$2").
		WithArgs("549111", "2026-09-10").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "customer_name", "date", "time", "phone", "professional_id", "name", "created_at",
		}).
			AddRow(uuid.New(), "Ana", "2026-09-14", "10:30", "549111", &proID, "Laura", now).
			AddRow(uuid.New(), "Ana", "2026-09-15", "09:00", "549111", (*uuid.UUID)(nil), "", now))

	appts, err := repo.ListUpcomingByPhone(context.Background(), "549111", "2026-09-10")
	require.NoError(t, err)
	require.Len(t, appts, 2)
	assert.Equal(t, "Laura", appts[0].ProfessionalName)
	assert.Empty(t, appts[1].ProfessionalName)
	require.NoError(t, mock.ExpectationsWereMet())
}
