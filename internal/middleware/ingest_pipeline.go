package middleware

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"SignalPilot/internal/domain/models"
	domrepo "SignalPilot/internal/domain/repository"
	"SignalPilot/internal/service/ratelimit"
	"SignalPilot/pkg/cache"
	applogger "SignalPilot/pkg/logger"
)

var (
	ErrInvalidMessage = errors.New("invalid message")
	ErrDuplicate      = errors.New("duplicate message")
)

// Proc is the minimal processor interface the pipeline needs.
type Proc interface {
	Ingest(ctx context.Context, msg *models.RawMessage) error
}

// IngestPipeline sits between a message source and the ingestor.
// It validates, de-duplicates message IDs, throttles per chat, and buffers
// messages while the downstream fails.
type IngestPipeline struct {
	proc    Proc
	metrics domrepo.Metrics
	seen    cache.Service
	limiter *ratelimit.Limiter
	l       *applogger.Logger

	dedupTTL   time.Duration
	bufSize    int
	backoffMin time.Duration
	backoffMax time.Duration
	bufCh      chan *models.RawMessage

	mu      sync.Mutex
	started bool
	stopCh  chan struct{}
	done    chan struct{}
	sleep   func(context.Context, time.Duration) bool
}

type PipelineOption func(*IngestPipeline)

// WithDedup de-duplicates message IDs through c for ttl.
func WithDedup(c cache.Service, ttl time.Duration) PipelineOption {
	return func(p *IngestPipeline) {
		p.seen = c
		if ttl > 0 {
			p.dedupTTL = ttl
		}
	}
}

// WithThrottle limits accepted messages per chat.
func WithThrottle(l *ratelimit.Limiter) PipelineOption {
	return func(p *IngestPipeline) { p.limiter = l }
}

// WithBufferSize sets the temporary buffer size when downstream is unavailable.
func WithBufferSize(n int) PipelineOption {
	return func(p *IngestPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithBackoff bounds the retry delay of buffered messages.
func WithBackoff(min, max time.Duration) PipelineOption {
	return func(p *IngestPipeline) {
		if min > 0 {
			p.backoffMin = min
		}
		if max >= p.backoffMin {
			p.backoffMax = max
		}
	}
}

func WithPipelineLogger(l *applogger.Logger) PipelineOption {
	return func(p *IngestPipeline) { p.l = l }
}

// NewIngestPipeline creates a new pipeline.
func NewIngestPipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *IngestPipeline {
	p := &IngestPipeline{
		proc:       proc,
		metrics:    metrics,
		l:          applogger.Nop(),
		dedupTTL:   24 * time.Hour,
		bufSize:    1000,
		backoffMin: 50 * time.Millisecond,
		backoffMax: 2 * time.Second,
		sleep:      sleepCtx,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan *models.RawMessage, p.bufSize)
	return p
}

// Start launches background flushing of buffered messages.
func (p *IngestPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.stopCh = make(chan struct{})
	p.done = make(chan struct{})
	stop, done := p.stopCh, p.done
	p.mu.Unlock()

	go func() {
		defer close(done)
		backoff := p.backoffMin
		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case msg := <-p.bufCh:
				if err := p.proc.Ingest(ctx, msg); err != nil {
					p.metrics.RecordError("pipeline_flush")
					if backoff < p.backoffMax {
						backoff = min(backoff*2, p.backoffMax)
					}
					p.l.Warn("buffered message retry failed",
						applogger.Int64("id", msg.ID),
						applogger.Duration("backoff", backoff),
						applogger.Error(err),
					)
					if !p.sleep(ctx, backoff) {
						return
					}
					p.enqueue(msg)
					continue
				}
				backoff = p.backoffMin
				p.metrics.RecordLatency("pipeline_buffer_depth", float64(len(p.bufCh)))
			}
		}
	}()
}

// Stop stops the background flushing. Buffered messages are dropped.
func (p *IngestPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	close(p.stopCh)
	done := p.done
	p.mu.Unlock()
	<-done
	if n := len(p.bufCh); n > 0 {
		p.l.Warn("pipeline stopped with buffered messages", applogger.Int("buffered", n))
	}
}

// Buffered is the number of messages waiting for a retry.
func (p *IngestPipeline) Buffered() int { return len(p.bufCh) }

// Process validates, de-duplicates, throttles and forwards msg downstream,
// buffering it when the downstream fails.
func (p *IngestPipeline) Process(ctx context.Context, msg *models.RawMessage) error {
	start := time.Now()
	if err := validateMessage(msg); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if p.seen != nil {
		fresh, err := p.seen.SetNX(ctx, messageKey(msg), 1, p.dedupTTL)
		if err != nil {
			// a cache outage must not stop collection
			p.metrics.RecordError("pipeline_dedup")
		} else if !fresh {
			p.metrics.RecordError("pipeline_duplicate")
			return ErrDuplicate
		}
	}
	chat := strconv.FormatInt(msg.ChatID, 10)
	if p.limiter != nil && !p.limiter.Allow(chat) {
		p.metrics.RecordError("pipeline_throttle")
		p.l.Warn("message throttled", applogger.String("chat", chat), applogger.Int64("id", msg.ID))
		return nil
	}

	if err := p.proc.Ingest(ctx, msg); err != nil {
		p.metrics.RecordError("pipeline_process")
		p.enqueue(msg)
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	return nil
}

func (p *IngestPipeline) enqueue(msg *models.RawMessage) {
	select {
	case p.bufCh <- msg:
		p.metrics.RecordLatency("pipeline_buffer_depth", float64(len(p.bufCh)))
	default:
		p.metrics.RecordError("pipeline_buffer_full")
		p.l.Error("pipeline buffer full, message dropped", applogger.Int64("id", msg.ID))
	}
}

func messageKey(msg *models.RawMessage) string {
	return cache.Key("msg", strconv.FormatInt(msg.ChatID, 10), strconv.FormatInt(msg.ID, 10))
}

func validateMessage(msg *models.RawMessage) error {
	switch {
	case msg == nil:
		return fmt.Errorf("%w: nil", ErrInvalidMessage)
	case msg.ID <= 0:
		return fmt.Errorf("%w: id %d", ErrInvalidMessage, msg.ID)
	case strings.TrimSpace(msg.Text) == "":
		return fmt.Errorf("%w: empty text", ErrInvalidMessage)
	case msg.Date.IsZero():
		return fmt.Errorf("%w: missing date", ErrInvalidMessage)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
