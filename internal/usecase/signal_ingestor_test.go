package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SignalPilot/internal/domain/models"
	drepo "SignalPilot/internal/domain/repository"
	"SignalPilot/internal/services/extractor"
)

type recordingPublisher struct {
	single  []*models.Signal
	batches [][]*models.Signal
	err     error
	closed  bool
}

func (p *recordingPublisher) Publish(_ context.Context, s *models.Signal) error {
	if p.err != nil {
		return p.err
	}
	p.single = append(p.single, s)
	return nil
}

func (p *recordingPublisher) PublishBatch(_ context.Context, sigs []*models.Signal) error {
	if p.err != nil {
		return p.err
	}
	p.batches = append(p.batches, sigs)
	return nil
}

func (p *recordingPublisher) Close() error {
	p.closed = true
	return nil
}

func rawAt(id int64, text string, hour, minute int) *models.RawMessage {
	return &models.RawMessage{ID: id, Text: text, Date: testDay.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)}
}

func TestSignalIngestor_Ingest(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	m := newFakeMetrics()
	sink := &recordingSink{}
	ing := NewSignalIngestor(extractor.NewParser(extractor.WithCollectionHours(16, 23)), nil, store, m, drepo.BackendCSV, nil)
	ing.SetSink(sink)

	tests := []struct {
		name      string
		msg       *models.RawMessage
		wantSaved int
	}{
		{"win", rawAt(1, "✅ WIN em `ADA/USDT` ✅", 17, 5), 1},
		{"duplicate", rawAt(2, "✅ WIN em `ADA/USDT` ✅", 17, 5), 1},
		{"loss", rawAt(3, "❎ STOP em `DOT/USDT` ❎", 17, 9), 2},
		{"noise", rawAt(4, "bom dia", 17, 10), 2},
		{"outside window", rawAt(5, "✅ WIN em `BTC/USDT` ✅", 9, 0), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, ing.Ingest(ctx, tt.msg))
			assert.Len(t, store.signals, tt.wantSaved)
		})
	}
	assert.Equal(t, 2, sink.len(), "duplicates are not forwarded")
	assert.Equal(t, 3, m.signals)
}

func TestSignalIngestor_StoreError(t *testing.T) {
	store := newMemStore()
	store.saveErr = errors.New("disk full")
	m := newFakeMetrics()
	ing := NewSignalIngestor(extractor.NewParser(), nil, store, m, drepo.BackendPostgres, nil)

	err := ing.Ingest(context.Background(), rawAt(1, "✅ WIN em `ADA/USDT` ✅", 18, 0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 1, m.errors["process"])
}

func TestSignalIngestor_KafkaBackendPublishes(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	sink := &recordingSink{}
	ing := NewSignalIngestor(extractor.NewParser(), pub, nil, newFakeMetrics(), drepo.BackendKafka, nil)
	ing.SetSink(sink)

	fresh, err := ing.Process(ctx, &hourWith(18, "2")[0])
	require.NoError(t, err)
	assert.True(t, fresh)
	assert.Len(t, pub.single, 1)
	assert.Zero(t, sink.len(), "the topic consumer feeds the sink")

	n, err := ing.ProcessBatch(ctx, hourWith(19, "1", "L", "3"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.Len(t, pub.batches, 1)
	assert.Len(t, pub.batches[0], 3)

	ing.Close()
	assert.True(t, pub.closed)
}

func TestSignalIngestor_ProcessBatch(t *testing.T) {
	store := newMemStore(hourWith(17, "1")...)
	ing := NewSignalIngestor(extractor.NewParser(), nil, store, newFakeMetrics(), drepo.BackendBoth, nil)

	n, err := ing.ProcessBatch(context.Background(), hourWith(17, "1", "L", "2"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = ing.ProcessBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = ing.Process(context.Background(), nil)
	assert.Error(t, err)
}

func TestSignalIngestor_UnknownBackend(t *testing.T) {
	ing := NewSignalIngestor(extractor.NewParser(), nil, newMemStore(), newFakeMetrics(), drepo.Backend("redis"), nil)
	_, err := ing.Process(context.Background(), &hourWith(17, "1")[0])
	assert.ErrorContains(t, err, "unknown backend")
}
