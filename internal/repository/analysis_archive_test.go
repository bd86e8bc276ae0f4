package repository_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SignalPilot/internal/domain/models"
	"SignalPilot/internal/repository"
)

func TestFileArchive_AppendAndRead(t *testing.T) {
	dir := t.TempDir()
	prod := &fakeProducer{}
	archive := repository.NewFileArchive(dir, time.UTC, repository.WithArchiveKafka(prod, "signals.analysis"))
	ctx := context.Background()

	ts := time.Date(2025, 6, 10, 18, 59, 0, 0, time.UTC)
	for i, id := range []string{"a1", "a2"} {
		entry := &models.AnalysisEntry{
			ID:        id,
			Timestamp: ts.Add(time.Duration(i) * time.Hour),
			Conditions: models.MarketConditions{
				TotalOperations:     14,
				RecommendedStrategy: models.StrategyMartingaleConservative,
				ConfidenceLevel:     82.5,
			},
			SessionStats: models.SessionStats{ID: "s1", AnalysisCount: i + 1},
		}
		require.NoError(t, archive.Append(ctx, entry))
	}

	got, err := archive.ReadAnalyses(ts)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a2", got[1].ID)
	assert.Equal(t, models.StrategyMartingaleConservative, got[0].Conditions.RecommendedStrategy)

	require.Len(t, prod.single, 2)
	assert.Equal(t, []byte("a1"), prod.single[0].Key)
	assert.Equal(t, "signals.analysis", prod.topics[0])

	empty, err := archive.ReadAnalyses(ts.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestFileArchive_PublishFailureKeepsFile(t *testing.T) {
	dir := t.TempDir()
	archive := repository.NewFileArchive(dir, time.UTC, repository.WithArchiveKafka(&fakeProducer{err: assert.AnError}, "t"))
	entry := &models.AnalysisEntry{ID: "x", Timestamp: time.Date(2025, 6, 10, 20, 0, 0, 0, time.UTC)}
	require.NoError(t, archive.Append(context.Background(), entry))
	_, err := os.Stat(filepath.Join(dir, "analysis_2025-06-10.jsonl"))
	require.NoError(t, err)
}

func TestFileArchive_SaveReport(t *testing.T) {
	dir := t.TempDir()
	archive := repository.NewFileArchive(dir, time.UTC)
	report := &models.SessionReport{
		SessionStats: models.SessionStats{ID: "sess-1", TotalSignals: 40, StrategyChanges: 2},
		Duration:     "6h0m0s",
	}
	require.NoError(t, archive.SaveReport(context.Background(), report))

	raw, err := os.ReadFile(filepath.Join(dir, "session_sess-1.json"))
	require.NoError(t, err)
	var back models.SessionReport
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, 40, back.TotalSignals)
}
