package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	drepo "SignalPilot/internal/domain/repository"
	pkgkafka "SignalPilot/pkg/kafka"
)

func TestKafkaSignalsHandler_Handle(t *testing.T) {
	sig := hourWith(18, "2")[0]
	valid, err := json.Marshal(sig)
	require.NoError(t, err)

	tests := []struct {
		name     string
		payload  []byte
		saveErr  error
		wantSkip bool
		wantErr  bool
		wantSink int
	}{
		{name: "valid", payload: valid, wantSink: 1},
		{name: "garbage", payload: []byte("{not json"), wantSkip: true, wantErr: true},
		{name: "invalid", payload: []byte(`{"timestamp":"2025-09-01T18:00:00Z","asset":"BTC","result":"X"}`), wantSkip: true, wantErr: true},
		{name: "store down", payload: valid, saveErr: errors.New("conn refused"), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			store.saveErr = tt.saveErr
			sink := &recordingSink{}
			h := NewKafkaSignalsHandler("signalpilot.signals", store, newFakeMetrics(), drepo.BackendPostgres)
			h.SetSink(sink)
			assert.Equal(t, "signalpilot.signals", h.Topic())

			err := h.Handle(context.Background(), tt.payload)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.wantSkip, errors.Is(err, pkgkafka.ErrSkip))
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantSink, sink.len())
		})
	}
}

func TestKafkaSignalsHandler_DuplicateNotForwarded(t *testing.T) {
	sig := hourWith(18, "1")[0]
	payload, err := json.Marshal(sig)
	require.NoError(t, err)

	sink := &recordingSink{}
	h := NewKafkaSignalsHandler("t", newMemStore(sig), newFakeMetrics(), drepo.BackendCSV)
	h.SetSink(sink)
	require.NoError(t, h.Handle(context.Background(), payload))
	assert.Zero(t, sink.len())
}
