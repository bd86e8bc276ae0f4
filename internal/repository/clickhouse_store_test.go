package repository_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SignalPilot/internal/domain/models"
	"SignalPilot/internal/repository"
	pkgch "SignalPilot/pkg/clickhouse"
)

func newMockCHStore(t *testing.T) (*repository.ClickHouseStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return repository.NewClickHouseStore(pkgch.Wrap(db, "signalpilot"), time.UTC), mock
}

func TestClickHouseStore_SaveReportsGrowth(t *testing.T) {
	store, mock := newMockCHStore(t)
	ts := time.Date(2025, 6, 10, 19, 0, 0, 0, time.UTC)
	signals := []models.Signal{
		{Timestamp: ts, Asset: "EUR/USD", Result: models.ResultWin, Attempt: 1},
		{Timestamp: ts.Add(time.Minute), Asset: "EUR/USD", Result: models.ResultLoss},
	}

	count := regexp.QuoteMeta("SELECT count() FROM signals FINAL")
	mock.ExpectQuery(count).WithArgs(ts, ts.Add(time.Minute)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectBegin()
	prep := mock.ExpectPrepare(regexp.QuoteMeta("INSERT INTO signals (ts, asset, result, attempt)"))
	prep.ExpectExec().WithArgs(ts, "EUR/USD", "W", uint8(1)).WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WithArgs(ts.Add(time.Minute), "EUR/USD", "L", uint8(0)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery(count).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	n, err := store.Save(context.Background(), signals)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClickHouseStore_Load(t *testing.T) {
	store, mock := newMockCHStore(t)
	from := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)

	mock.ExpectQuery("SELECT ts, asset, result, attempt FROM signals FINAL").
		WithArgs(from, to).
		WillReturnRows(sqlmock.NewRows([]string{"ts", "asset", "result", "attempt"}).
			AddRow(from.Add(20*time.Hour), "USD/JPY", "W", uint8(3)))

	got, err := store.Load(context.Background(), from, to)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 3, got[0].Attempt)
	assert.Equal(t, models.ResultWin, got[0].Result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClickHouseStore_StatsEmptyRange(t *testing.T) {
	store, mock := newMockCHStore(t)
	from := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)

	mock.ExpectQuery("SELECT count\\(\\) AS total").
		WillReturnRows(sqlmock.NewRows([]string{"total", "unique_assets", "first", "last", "wins", "losses"}).
			AddRow(uint64(0), uint64(0), time.Unix(0, 0), time.Unix(0, 0), uint64(0), uint64(0)))
	mock.ExpectQuery("SELECT attempt, count\\(\\)").
		WillReturnRows(sqlmock.NewRows([]string{"attempt", "n"}))

	st, err := store.Stats(context.Background(), from, to)
	require.NoError(t, err)
	assert.Zero(t, st.Total)
	assert.Nil(t, st.First)
	assert.Empty(t, st.WinsByAttempt)
	assert.NoError(t, mock.ExpectationsWereMet())
}
