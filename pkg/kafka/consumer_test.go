package kafka

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SignalPilot/pkg/logger"
)

type flakyHandler struct {
	failures int
	calls    int
	err      error
	panics   bool
}

func (h *flakyHandler) Topic() string { return "signals.raw" }

func (h *flakyHandler) Handle(_ context.Context, _ []byte) error {
	h.calls++
	if h.panics {
		panic("bad payload")
	}
	if h.calls <= h.failures {
		return h.err
	}
	return nil
}

func newTestConsumer(t *testing.T, retries int) *Consumer {
	t.Helper()
	c, err := NewConsumer(logger.Nop(),
		WithConsumerBrokers([]string{"localhost:9092"}),
		WithConsumerRetry(retries, time.Millisecond, time.Millisecond))
	require.NoError(t, err)
	c.sleep = func(context.Context, time.Duration) bool { return true }
	return c
}

func TestConsumer_HandleRetries(t *testing.T) {
	km := kafka.Message{Topic: "signals.raw", Value: []byte(`{}`)}

	tests := []struct {
		name         string
		handler      *flakyHandler
		retries      int
		wantAttempts int
		wantErr      bool
	}{
		{"first try", &flakyHandler{}, 3, 1, false},
		{"recovers", &flakyHandler{failures: 2, err: errors.New("db down")}, 3, 3, false},
		{"gives up", &flakyHandler{failures: 10, err: errors.New("db down")}, 2, 3, true},
		{"skip is success", &flakyHandler{failures: 10, err: fmt.Errorf("bad json: %w", ErrSkip)}, 3, 1, false},
		{"panic is error", &flakyHandler{panics: true}, 0, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestConsumer(t, tt.retries)
			attempts, err := c.handle(context.Background(), tt.handler, km)
			assert.Equal(t, tt.wantAttempts, attempts)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConsumer_Hooks(t *testing.T) {
	c := newTestConsumer(t, 0)
	var after []string
	c.SetHook(HookChain{
		TraceHook(),
		HookFuncs{
			Before: func(ctx context.Context, km kafka.Message, data []byte) (context.Context, []byte, error) {
				assert.Equal(t, "abc", TraceID(ctx))
				return ctx, []byte(`{"replaced":true}`), nil
			},
			After: func(_ context.Context, _ kafka.Message, err error) { after = append(after, "inner") },
		},
		HookFuncs{After: func(context.Context, kafka.Message, error) { after = append(after, "outer") }},
	})

	var got []byte
	h := handlerFunc(func(_ context.Context, b []byte) error {
		got = b
		return nil
	})
	km := kafka.Message{Topic: "signals.raw", Value: []byte(`{}`), Headers: []kafka.Header{{Key: "trace_id", Value: []byte("abc")}}}
	_, err := c.handle(context.Background(), h, km)
	require.NoError(t, err)
	assert.JSONEq(t, `{"replaced":true}`, string(got))
	assert.Equal(t, []string{"outer", "inner"}, after)
}

func TestHookChain_PanicBecomesError(t *testing.T) {
	chain := HookChain{HookFuncs{Before: func(context.Context, kafka.Message, []byte) (context.Context, []byte, error) {
		panic("boom")
	}}}
	_, _, err := chain.BeforeHandle(context.Background(), kafka.Message{}, nil)
	assert.ErrorContains(t, err, "hook panic")
}

func TestBackoff(t *testing.T) {
	for attempt := 1; attempt <= 10; attempt++ {
		d := backoff(100*time.Millisecond, time.Second, attempt)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, time.Second)
	}
}

type handlerFunc func(context.Context, []byte) error

func (f handlerFunc) Topic() string { return "signals.raw" }
func (f handlerFunc) Handle(ctx context.Context, b []byte) error { return f(ctx, b) }
