package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"SignalPilot/internal/domain/models"
	drepo "SignalPilot/internal/domain/repository"
	"SignalPilot/internal/services/extractor"
	applogger "SignalPilot/pkg/logger"
)

// SignalSink receives signals that were accepted for the first time.
type SignalSink interface {
	OnSignal(ctx context.Context, s models.Signal)
}

// SignalIngestor parses raw messages and routes signals to the configured backend.
type SignalIngestor struct {
	parser  *extractor.Parser
	pub     drepo.SignalPublisher
	store   drepo.SignalStore
	metrics drepo.Metrics
	backend drepo.Backend
	sink    SignalSink
	l       *applogger.Logger
}

// NewSignalIngestor creates a new SignalIngestor instance. pub may be nil
// unless backend is kafka; store may be nil when it is.
func NewSignalIngestor(
	parser *extractor.Parser,
	pub drepo.SignalPublisher,
	store drepo.SignalStore,
	metrics drepo.Metrics,
	backend drepo.Backend,
	l *applogger.Logger,
) *SignalIngestor {
	if l == nil {
		l = applogger.Nop()
	}
	return &SignalIngestor{parser: parser, pub: pub, store: store, metrics: metrics, backend: backend, l: l}
}

// SetSink registers the consumer of new signals, usually the live trader.
func (p *SignalIngestor) SetSink(s SignalSink) { p.sink = s }

// Backend is the configured destination.
func (p *SignalIngestor) Backend() drepo.Backend { return p.backend }

// Ingest parses msg and processes the signal it carries. Messages without a
// signal, outside the collection window or malformed are dropped without error
// so the pipeline does not retry them.
func (p *SignalIngestor) Ingest(ctx context.Context, msg *models.RawMessage) error {
	s, err := p.parser.Parse(msg)
	switch {
	case errors.Is(err, models.ErrOutsideTradingHours):
		p.l.Debug("signal outside collection window", applogger.Int64("id", msg.ID), applogger.Error(err))
		return nil
	case err != nil:
		p.metrics.RecordError("parse")
		p.l.Warn("malformed signal message", applogger.Int64("id", msg.ID), applogger.Error(err))
		return nil
	case s == nil:
		return nil
	}
	_, err = p.Process(ctx, s)
	return err
}

// Process routes one signal and reports whether it was new.
func (p *SignalIngestor) Process(ctx context.Context, s *models.Signal) (bool, error) {
	if s == nil {
		return false, fmt.Errorf("signal is nil")
	}
	start := time.Now()
	fresh := false
	var err error

	switch p.backend {
	case drepo.BackendKafka:
		// the topic consumer stores it and feeds the sink
		err = p.pub.Publish(ctx, s)
		fresh = err == nil
	case drepo.BackendCSV, drepo.BackendPostgres, drepo.BackendClickHouse, drepo.BackendBoth:
		var n int
		n, err = p.store.Save(ctx, []models.Signal{*s})
		fresh = n > 0
	default:
		err = fmt.Errorf("unknown backend: %s", p.backend)
	}

	if err != nil {
		p.metrics.RecordError("process")
		return false, fmt.Errorf("process signal: %w", err)
	}

	p.metrics.RecordSignal(string(p.backend), s.Asset, string(s.Result))
	p.metrics.RecordLatency("process", time.Since(start).Seconds())
	p.l.Info("signal received",
		applogger.String("asset", s.Asset),
		applogger.String("result", string(s.Result)),
		applogger.Int("attempt", s.Attempt),
		applogger.Bool("new", fresh),
	)
	if fresh && p.sink != nil && p.backend != drepo.BackendKafka {
		p.sink.OnSignal(ctx, *s)
	}
	return fresh, nil
}

// ProcessBatch routes many signals at once, as done by imports and backfills.
func (p *SignalIngestor) ProcessBatch(ctx context.Context, signals []models.Signal) (int, error) {
	if len(signals) == 0 {
		return 0, nil
	}

	start := time.Now()
	var (
		n   int
		err error
	)
	switch p.backend {
	case drepo.BackendKafka:
		ptrs := make([]*models.Signal, len(signals))
		for i := range signals {
			ptrs[i] = &signals[i]
		}
		err = p.pub.PublishBatch(ctx, ptrs)
		n = len(signals)
	case drepo.BackendCSV, drepo.BackendPostgres, drepo.BackendClickHouse, drepo.BackendBoth:
		n, err = p.store.Save(ctx, signals)
	default:
		err = fmt.Errorf("unknown backend: %s", p.backend)
	}

	if err != nil {
		p.metrics.RecordError("process_batch")
		return n, fmt.Errorf("process batch: %w", err)
	}

	for _, s := range signals {
		p.metrics.RecordSignal(string(p.backend), s.Asset, string(s.Result))
	}
	p.metrics.RecordLatency("process_batch", time.Since(start).Seconds())
	return n, nil
}

// Close closes underlying resources if available.
func (p *SignalIngestor) Close() {
	if p.pub != nil {
		_ = p.pub.Close()
	}
	if p.store != nil {
		_ = p.store.Close()
	}
}
