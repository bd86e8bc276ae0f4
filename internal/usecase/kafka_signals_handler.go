package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"SignalPilot/internal/domain/models"
	domrepo "SignalPilot/internal/domain/repository"
	pkgkafka "SignalPilot/pkg/kafka"
)

// KafkaSignalsHandler consumes the signal topic, stores signals and feeds the live trader.
type KafkaSignalsHandler struct {
	topic   string
	store   domrepo.SignalStore
	metrics domrepo.Metrics
	sink    SignalSink
	backend string
}

var _ pkgkafka.MessageHandler = (*KafkaSignalsHandler)(nil)

func NewKafkaSignalsHandler(topic string, store domrepo.SignalStore, metrics domrepo.Metrics, backend domrepo.Backend) *KafkaSignalsHandler {
	return &KafkaSignalsHandler{topic: topic, store: store, metrics: metrics, backend: string(backend)}
}

// SetSink registers the consumer of new signals.
func (h *KafkaSignalsHandler) SetSink(s SignalSink) { h.sink = s }

func (h *KafkaSignalsHandler) Topic() string { return h.topic }

// Handle stores one signal. Undecodable or invalid payloads are skipped; store
// failures are returned so the consumer retries them.
func (h *KafkaSignalsHandler) Handle(ctx context.Context, b []byte) error {
	var s models.Signal
	if err := json.Unmarshal(b, &s); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return fmt.Errorf("%w: %v", pkgkafka.ErrSkip, err)
	}
	if err := s.Validate(); err != nil {
		h.metrics.RecordError("consumer_invalid")
		return fmt.Errorf("%w: %v", pkgkafka.ErrSkip, err)
	}
	// event time to now
	h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(s.Timestamp).Seconds())

	start := time.Now()
	n, err := h.store.Save(ctx, []models.Signal{s})
	h.metrics.RecordLatency("store_insert_seconds", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	h.metrics.RecordSignal(h.backend, s.Asset, string(s.Result))
	if n > 0 && h.sink != nil {
		h.sink.OnSignal(ctx, s)
	}
	return nil
}
