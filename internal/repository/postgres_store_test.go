package repository_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SignalPilot/internal/domain/models"
	"SignalPilot/internal/repository"
	"SignalPilot/pkg/postgres"
)

func newMockStore(t *testing.T) (*repository.PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return repository.NewPostgresStore(postgres.Wrap(sqlx.NewDb(db, "postgres")), time.UTC), mock
}

func TestPostgresStore_Init(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS signals").WillReturnResult(sqlmock.NewResult(0, 0))
	for i := 0; i < 4; i++ {
		mock.ExpectExec("CREATE (UNIQUE )?INDEX IF NOT EXISTS").WillReturnResult(sqlmock.NewResult(0, 0))
	}
	require.NoError(t, store.Init(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveCountsOnlyNewRows(t *testing.T) {
	store, mock := newMockStore(t)
	ts := time.Date(2025, 6, 10, 20, 0, 0, 0, time.UTC)
	signals := []models.Signal{
		{Timestamp: ts, Asset: "EUR/USD", Result: models.ResultWin, Attempt: 2},
		{Timestamp: ts.Add(time.Minute), Asset: "EUR/USD", Result: models.ResultLoss},
	}

	insert := regexp.QuoteMeta("INSERT INTO signals (timestamp, asset, result, attempt)")
	mock.ExpectBegin()
	mock.ExpectQuery(insert).
		WithArgs(ts, "EUR/USD", "W", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectQuery(insert).
		WithArgs(ts.Add(time.Minute), "EUR/USD", "L", nil).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectCommit()

	n, err := store.Save(context.Background(), signals)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveRollsBackOnError(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO signals").WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, err := store.Save(context.Background(), []models.Signal{
		{Timestamp: time.Now(), Asset: "EUR/USD", Result: models.ResultWin, Attempt: 1},
	})
	require.ErrorIs(t, err, assert.AnError)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Load(t *testing.T) {
	store, mock := newMockStore(t)
	from := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)

	mock.ExpectQuery("SELECT timestamp, asset, result").
		WithArgs(from, to).
		WillReturnRows(sqlmock.NewRows([]string{"timestamp", "asset", "result", "attempt"}).
			AddRow(from.Add(17*time.Hour), "EUR/USD", "W", 1).
			AddRow(from.Add(18*time.Hour), "GBP/USD", "L", 0))

	got, err := store.Load(context.Background(), from, to)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, models.ResultWin, got[0].Result)
	assert.Equal(t, 1, got[0].Attempt)
	assert.Equal(t, 0, got[1].Attempt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Stats(t *testing.T) {
	store, mock := newMockStore(t)
	from := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) AS total").
		WithArgs(from, to).
		WillReturnRows(sqlmock.NewRows([]string{"total", "unique_assets", "first", "last", "wins", "losses"}).
			AddRow(5, 3, from.Add(16*time.Hour), from.Add(22*time.Hour), 4, 1))
	mock.ExpectQuery("SELECT attempt, COUNT").
		WithArgs(from, to).
		WillReturnRows(sqlmock.NewRows([]string{"attempt", "n"}).AddRow(1, 3).AddRow(3, 1))

	st, err := store.Stats(context.Background(), from, to)
	require.NoError(t, err)
	assert.Equal(t, 5, st.Total)
	assert.Equal(t, 3, st.UniqueAssets)
	assert.Equal(t, map[int]int{1: 3, 3: 1}, st.WinsByAttempt)
	require.NotNil(t, st.Last)
	assert.Equal(t, 22, st.Last.Hour())
	assert.NoError(t, mock.ExpectationsWereMet())
}
