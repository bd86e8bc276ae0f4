package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SignalPilot/internal/domain/models"
	"SignalPilot/internal/repository"
)

type failingStore struct {
	*repository.CSVStore
	saveErr error
}

func (f failingStore) Save(context.Context, []models.Signal) (int, error) { return 0, f.saveErr }

func TestMultiStore_WritesAllReadsPrimary(t *testing.T) {
	loc := time.UTC
	primary := repository.NewCSVStore(t.TempDir(), loc)
	secondary := repository.NewCSVStore(t.TempDir(), loc)
	multi := repository.NewMultiStore(primary, secondary)
	ctx := context.Background()
	require.NoError(t, multi.Init(ctx))

	ts := time.Date(2025, 6, 10, 18, 0, 0, 0, loc)
	n, err := multi.Save(ctx, []models.Signal{{Timestamp: ts, Asset: "EUR/USD", Result: models.ResultWin, Attempt: 1}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	for _, s := range []*repository.CSVStore{primary, secondary} {
		got, err := s.Load(ctx, ts, ts.Add(time.Second))
		require.NoError(t, err)
		assert.Len(t, got, 1)
	}
	require.NoError(t, multi.Health(ctx))
	require.NoError(t, multi.Close())
}

func TestMultiStore_SecondaryFailureStillSavesPrimary(t *testing.T) {
	primary := repository.NewCSVStore(t.TempDir(), time.UTC)
	broken := failingStore{CSVStore: repository.NewCSVStore(t.TempDir(), time.UTC), saveErr: assert.AnError}
	multi := repository.NewMultiStore(primary, broken)
	ctx := context.Background()
	require.NoError(t, multi.Init(ctx))

	ts := time.Date(2025, 6, 10, 18, 0, 0, 0, time.UTC)
	n, err := multi.Save(ctx, []models.Signal{{Timestamp: ts, Asset: "EUR/USD", Result: models.ResultLoss}})
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 1, n)

	st, err := multi.Stats(ctx, ts, ts.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, st.Losses)
}
