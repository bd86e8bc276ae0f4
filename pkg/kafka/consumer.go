package kafka

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"

	"SignalPilot/pkg/logger"
)

// MessageHandler handles messages from one topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

type delivery struct {
	reader  *kafka.Reader
	handler MessageHandler
	km      kafka.Message
}

// Consumer reads registered topics in a consumer group. Messages of one
// partition always go to the same worker so their order is kept.
type Consumer struct {
	cfg      *ConsumerConfig
	logger   *logger.Logger
	handlers map[string]MessageHandler
	readers  map[string]*kafka.Reader
	dlq      *kafka.Writer
	hook     ConsumerHook
	sleep    func(context.Context, time.Duration) bool

	lanes    []chan delivery
	fetchWg  sync.WaitGroup
	workWg   sync.WaitGroup
	cancel   context.CancelFunc
	stopOnce sync.Once
}

// NewConsumer creates a consumer. Register handlers before Start.
func NewConsumer(lgr *logger.Logger, opts ...ConsumerOption) (*Consumer, error) {
	cfg := &ConsumerConfig{
		GroupID:    "signalpilot",
		Workers:    1,
		BufferSize: 64,
		RetryMax:   3,
		BackoffMin: 100 * time.Millisecond,
		BackoffMax: 5 * time.Second,
		MinBytes:   1,
		MaxBytes:   10 << 20,
		MaxWait:    time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka consumer: brokers are required")
	}

	c := &Consumer{
		cfg:      cfg,
		logger:   lgr,
		handlers: make(map[string]MessageHandler),
		readers:  make(map[string]*kafka.Reader),
		hook:     NoopHook{},
		sleep:    sleepCtx,
	}
	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{Addr: kafka.TCP(cfg.Brokers...), Topic: cfg.DLQTopic, Balancer: &kafka.LeastBytes{}}
	}
	initConsumerMetrics()
	return c, nil
}

// RegisterHandler routes handler.Topic() to handler.
func (c *Consumer) RegisterHandler(handler MessageHandler) {
	if _, ok := c.handlers[handler.Topic()]; ok {
		c.logger.Warn("kafka handler already registered", logger.String("topic", handler.Topic()))
		return
	}
	c.handlers[handler.Topic()] = handler
}

// SetHook installs a lifecycle hook.
func (c *Consumer) SetHook(h ConsumerHook) {
	if h != nil {
		c.hook = h
	}
}

// Start launches one fetch loop per topic and the worker pool.
func (c *Consumer) Start(ctx context.Context) error {
	if len(c.handlers) == 0 {
		return fmt.Errorf("kafka consumer: no handlers registered")
	}
	ctx, c.cancel = context.WithCancel(ctx)

	c.lanes = make([]chan delivery, c.cfg.Workers)
	for i := range c.lanes {
		c.lanes[i] = make(chan delivery, c.cfg.BufferSize)
		c.workWg.Add(1)
		go c.worker(ctx, c.lanes[i])
	}

	for topic, h := range c.handlers {
		r := kafka.NewReader(kafka.ReaderConfig{
			Brokers:  c.cfg.Brokers,
			GroupID:  c.cfg.GroupID,
			Topic:    topic,
			MinBytes: c.cfg.MinBytes,
			MaxBytes: c.cfg.MaxBytes,
			MaxWait:  c.cfg.MaxWait,
		})
		c.readers[topic] = r
		c.fetchWg.Add(1)
		go c.fetch(ctx, r, h)
	}

	c.logger.Info("kafka consumer started",
		logger.String("group", c.cfg.GroupID),
		logger.Int("topics", len(c.handlers)),
		logger.Int("workers", c.cfg.Workers))
	return nil
}

// Stop ends fetching, lets workers drain and closes readers.
func (c *Consumer) Stop(ctx context.Context) error {
	var err error
	c.stopOnce.Do(func() {
		if c.cancel == nil {
			return
		}
		c.cancel()

		done := make(chan struct{})
		go func() {
			c.fetchWg.Wait()
			for _, lane := range c.lanes {
				close(lane)
			}
			c.workWg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			err = fmt.Errorf("kafka consumer stop: %w", ctx.Err())
		}

		for topic, r := range c.readers {
			if cerr := r.Close(); cerr != nil {
				c.logger.Warn("close kafka reader", logger.String("topic", topic), logger.Error(cerr))
			}
		}
		if c.dlq != nil {
			_ = c.dlq.Close()
		}
		c.logger.Info("kafka consumer stopped")
	})
	return err
}

func (c *Consumer) fetch(ctx context.Context, r *kafka.Reader, h MessageHandler) {
	defer c.fetchWg.Done()
	for {
		km, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka fetch", logger.String("topic", h.Topic()), logger.Error(err))
			if !c.sleep(ctx, time.Second) {
				return
			}
			continue
		}
		lane := c.lanes[km.Partition%len(c.lanes)]
		select {
		case lane <- delivery{reader: r, handler: h, km: km}:
			consumerQueueDepth.WithLabelValues(h.Topic()).Set(float64(len(lane)))
		case <-ctx.Done():
			return
		}
	}
}

func (c *Consumer) worker(ctx context.Context, lane <-chan delivery) {
	defer c.workWg.Done()
	for d := range lane {
		c.deliver(ctx, d)
	}
}

func (c *Consumer) deliver(ctx context.Context, d delivery) {
	start := time.Now()
	attempts, err := c.handle(ctx, d.handler, d.km)
	consumerHandleLatency.WithLabelValues(d.km.Topic).Observe(time.Since(start).Seconds())

	if err != nil {
		if ctx.Err() != nil {
			// shutting down; the message is fetched again after rebalance
			return
		}
		consumerFailures.WithLabelValues(d.km.Topic).Inc()
		c.logger.Error("kafka message failed",
			logger.String("topic", d.km.Topic),
			logger.Int64("offset", d.km.Offset),
			logger.Int("attempts", attempts),
			logger.Error(err))
		if c.dlq == nil {
			return
		}
		if derr := c.dlq.WriteMessages(context.Background(), deadLetter(d.km, err)); derr != nil {
			c.logger.Error("kafka dlq write", logger.String("topic", c.cfg.DLQTopic), logger.Error(derr))
			return
		}
	}
	c.commit(d.reader, d.km)
}

// handle runs the hooks and the handler with retries and returns the number of attempts.
func (c *Consumer) handle(ctx context.Context, h MessageHandler, km kafka.Message) (int, error) {
	var err error
	attempt := 0
	for {
		attempt++
		err = c.attempt(ctx, h, km)
		if errors.Is(err, ErrSkip) {
			return attempt, nil
		}
		if err == nil || attempt > c.cfg.RetryMax || ctx.Err() != nil {
			return attempt, err
		}
		if !c.sleep(ctx, backoff(c.cfg.BackoffMin, c.cfg.BackoffMax, attempt)) {
			return attempt, err
		}
	}
}

func (c *Consumer) attempt(ctx context.Context, h MessageHandler, km kafka.Message) (err error) {
	hctx, data, err := c.hook.BeforeHandle(ctx, km, km.Value)
	if err == nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("handler panic: %v", r)
				}
			}()
			err = h.Handle(hctx, data)
		}()
	}
	c.hook.AfterHandle(hctx, km, err)
	return err
}

func (c *Consumer) commit(r *kafka.Reader, km kafka.Message) {
	var err error
	for attempt := 1; attempt <= 3; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = r.CommitMessages(ctx, km)
		cancel()
		if err == nil {
			return
		}
		time.Sleep(backoff(50*time.Millisecond, 500*time.Millisecond, attempt))
	}
	c.logger.Error("kafka commit", logger.String("topic", km.Topic), logger.Int64("offset", km.Offset), logger.Error(err))
}

func deadLetter(km kafka.Message, err error) kafka.Message {
	return kafka.Message{
		Key:   km.Key,
		Value: km.Value,
		Time:  time.Now().UTC(),
		Headers: append(km.Headers,
			kafka.Header{Key: "source_topic", Value: []byte(km.Topic)},
			kafka.Header{Key: "error", Value: []byte(err.Error())},
		),
	}
}

// backoff is exponential with up to 50% jitter.
func backoff(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	d := min << uint(attempt-1)
	if d > max || d <= 0 {
		d = max
	}
	if half := int64(d) / 2; half > 0 {
		d -= time.Duration(rand.Int63n(half))
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// ErrSkip may be returned by handlers for messages that should be committed without retry.
var ErrSkip = errors.New("kafka: skip message")

var (
	consumerOnce          sync.Once
	consumerQueueDepth    *prometheus.GaugeVec
	consumerHandleLatency *prometheus.HistogramVec
	consumerFailures      *prometheus.CounterVec
)

func initConsumerMetrics() {
	consumerOnce.Do(func() {
		consumerQueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "signalpilot_kafka_consumer_queue_depth",
			Help: "Messages waiting in a worker lane",
		}, []string{"topic"})
		consumerHandleLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name: "signalpilot_kafka_consumer_handle_seconds",
			Help: "Handling time per message, retries included",
		}, []string{"topic"})
		consumerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "signalpilot_kafka_consumer_failures_total",
			Help: "Messages that failed after all retries",
		}, []string{"topic"})
	})
}
