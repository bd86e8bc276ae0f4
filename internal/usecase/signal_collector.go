package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"SignalPilot/internal/domain/models"
	drepo "SignalPilot/internal/domain/repository"
	mid "SignalPilot/internal/middleware"
	applogger "SignalPilot/pkg/logger"
)

// SignalCollector reads the message source and feeds the ingest pipeline.
type SignalCollector struct {
	source  drepo.MessageSource
	pipe    *mid.IngestPipeline
	metrics drepo.Metrics
	l       *applogger.Logger

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewSignalCollector creates a new SignalCollector instance.
func NewSignalCollector(source drepo.MessageSource, pipe *mid.IngestPipeline, metrics drepo.Metrics, l *applogger.Logger) *SignalCollector {
	if l == nil {
		l = applogger.Nop()
	}
	return &SignalCollector{source: source, pipe: pipe, metrics: metrics, l: l}
}

// IsConnected returns true if the message source is connected.
func (c *SignalCollector) IsConnected() bool {
	return c.source.IsConnected()
}

func (c *SignalCollector) Start(ctx context.Context) error {
	if err := c.source.Connect(ctx); err != nil {
		return err
	}
	ctx, c.cancel = context.WithCancel(ctx)
	c.pipe.Start(ctx)
	c.wg.Add(1)
	go c.run(ctx)
	return nil
}

func (c *SignalCollector) run(ctx context.Context) {
	defer c.wg.Done()
	for {
		msgs, errs := c.source.Read(ctx)
		err := c.consume(ctx, msgs, errs)
		if ctx.Err() != nil {
			return
		}
		c.metrics.RecordError("stream")
		c.l.Warn("message source failed, reconnecting", applogger.Error(err))
		for {
			rerr := c.source.Reconnect(ctx)
			if rerr == nil {
				break
			}
			if ctx.Err() != nil {
				return
			}
			c.metrics.RecordError("reconnect")
			c.l.Error("reconnect failed", applogger.Error(rerr))
		}
	}
}

// consume drains one Read session and returns the error that ended it.
func (c *SignalCollector) consume(ctx context.Context, msgs <-chan *models.RawMessage, errs <-chan error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				return err
			}
		case m, ok := <-msgs:
			if !ok {
				return errors.New("message stream closed")
			}
			start := time.Now()
			if err := c.pipe.Process(ctx, m); err != nil && !errors.Is(err, mid.ErrDuplicate) {
				c.l.Warn("message not ingested", applogger.Int64("id", m.ID), applogger.Error(err))
			}
			c.metrics.RecordLatency("collect", time.Since(start).Seconds())
		}
	}
}

// Shutdown stops the pipeline and closes the source.
func (c *SignalCollector) Shutdown(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
	c.pipe.Stop()
	return c.source.Close()
}
