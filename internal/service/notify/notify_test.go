package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SignalPilot/internal/domain/models"
	xhttp "SignalPilot/pkg/http"
)

func conditions() models.MarketConditions {
	return models.MarketConditions{
		TotalOperations:         20,
		FirstAttemptSuccessRate: 55,
		G1RecoveryRate:          70,
		G2PlusStopRate:          10,
		RecommendedStrategy:     models.StrategyMartingaleConservative,
		ConfidenceLevel:         84,
	}
}

func TestFormat(t *testing.T) {
	prev := models.StrategyPause
	text := Format(&prev, conditions())
	assert.Contains(t, text, "PAUSE → MARTINGALE")
	assert.Contains(t, text, "Confiança: 84.0%")
	assert.Contains(t, text, "Risco: $36.00")

	first := Format(nil, conditions())
	assert.Contains(t, first, "Estratégia inicial: MARTINGALE")
}

func TestWebhook_PostsEvent(t *testing.T) {
	var got Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	prev := models.StrategyPause
	wh := NewWebhook(nil, srv.URL, time.Second, 3, time.Minute)
	require.NoError(t, wh.NotifyStrategyChange(context.Background(), &prev, conditions()))
	assert.Equal(t, "strategy_change", got.Type)
	assert.Equal(t, models.StrategyMartingaleConservative, got.Current)
	require.NotNil(t, got.Previous)
	assert.Equal(t, models.StrategyPause, *got.Previous)
}

func TestWebhook_BreakerOpens(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	wh := NewWebhook(nil, srv.URL, time.Second, 2, time.Minute)
	for i := 0; i < 4; i++ {
		assert.Error(t, wh.NotifyStrategyChange(context.Background(), nil, conditions()))
	}
	assert.Equal(t, int32(2), hits.Load())
	err := wh.NotifyStrategyChange(context.Background(), nil, conditions())
	assert.ErrorIs(t, err, xhttp.ErrCircuitOpen)
}

type recordingSender struct {
	chat, text string
	err        error
}

func (r *recordingSender) SendMessage(_ context.Context, chatID, text string) error {
	r.chat, r.text = chatID, text
	return r.err
}

func TestChatAndMulti(t *testing.T) {
	ok := &recordingSender{}
	bad := &recordingSender{err: assert.AnError}
	m := Multi{NewChat(ok, "-100123"), NewChat(bad, "x")}

	err := m.NotifyStrategyChange(context.Background(), nil, conditions())
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, "-100123", ok.chat)
	assert.Contains(t, ok.text, "MARTINGALE")
}
