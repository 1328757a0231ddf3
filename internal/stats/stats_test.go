package stats

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummary(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2026, 9, 7, 9, 0, 0, 0, time.UTC)
	reader := NewReader(db).WithClock(func() time.Time { return now })

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM appointments WHERE date = $1`)).
		WithArgs("2026-09-07").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM appointments WHERE date >= $1`)).
		WithArgs("2026-09-07").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))
	mock.ExpectQuery(`SELECT date, COUNT\(\*\)`).
		WithArgs("2026-09-07", "2026-09-13").
		WillReturnRows(sqlmock.NewRows([]string{"date", "count"}).
			AddRow("2026-09-07", 3).
			AddRow("2026-09-08", 5))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM professionals WHERE active`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM notifications WHERE NOT sent`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	summary, err := reader.Summary(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Today)
	assert.Equal(t, 12, summary.Upcoming)
	assert.Equal(t, map[string]int{"2026-09-07": 3, "2026-09-08": 5}, summary.WeekByDate)
	assert.Equal(t, 2, summary.ActiveProfessionals)
	assert.Equal(t, 1, summary.PendingNotifications)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSummaryQueryError(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	reader := NewReader(db)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM appointments`).
		WillReturnError(assert.AnError)

	_, err = reader.Summary(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "count today")
}

func TestNewReaderNilDB(t *testing.T) {
	assert.Nil(t, NewReader(nil))
}
