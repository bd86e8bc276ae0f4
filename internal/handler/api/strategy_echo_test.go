package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SignalPilot/internal/domain/models"
	drepo "SignalPilot/internal/domain/repository"
	"SignalPilot/internal/middleware"
	"SignalPilot/internal/repository"
	"SignalPilot/internal/service/ratelimit"
	"SignalPilot/internal/services/extractor"
	"SignalPilot/internal/services/strategy"
	"SignalPilot/internal/usecase"
	"SignalPilot/pkg/cache"
	"SignalPilot/pkg/metrics"
)

var testDay = time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)

type queued struct{ ids []string }

func (q *queued) EnqueueWithID(_ context.Context, id, _ string, _ interface{}) (string, error) {
	q.ids = append(q.ids, id)
	return id, nil
}

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

type fixture struct {
	e     *echo.Echo
	store *repository.CSVStore
	queue *queued
}

func newFixture(t *testing.T, live *usecase.LiveTrader, limiter *ratelimit.Limiter) *fixture {
	t.Helper()
	ctx := context.Background()
	store := repository.NewCSVStore(t.TempDir(), time.UTC)
	require.NoError(t, store.Init(ctx))

	var sigs []models.Signal
	assets := []string{"ADA/USDT", "BTC/USDT", "ETH/USDT", "DOT/USDT", "SOL/USDT", "XRP/USDT"}
	for h := 16; h <= 17; h++ {
		for i := 0; i < 12; i++ {
			sigs = append(sigs, models.Signal{
				Timestamp: testDay.Add(time.Duration(h)*time.Hour + time.Duration(i*5)*time.Minute),
				Asset:     assets[i%len(assets)],
				Result:    models.ResultWin,
				Attempt:   1,
			})
		}
	}
	_, err := store.Save(ctx, sigs)
	require.NoError(t, err)

	rec := metrics.NewWithRegistry(prometheus.NewRegistry())
	cfg := strategy.DefaultConfig()
	analyzer := strategy.NewAnalyzer(cfg, nil)
	mem := cache.NewMemoryCache()
	q := &queued{}

	ing := usecase.NewSignalIngestor(extractor.NewParser(), nil, store, rec, drepo.BackendCSV, nil)
	pipe := middleware.NewIngestPipeline(ing, rec, middleware.WithDedup(mem, time.Hour))
	analysis := usecase.NewMarketAnalysis(store, analyzer, mem, time.Minute, time.UTC)
	sims := usecase.NewSimulationService(store, strategy.NewSimulator(cfg, analyzer), mem, time.Hour, q, nil)

	h := NewStrategyEchoHandler(nil, pipe, analysis, sims, live, limiter)
	h.now = func() time.Time { return testDay.Add(18 * time.Hour) }
	e := echo.New()
	h.RegisterRoutes(e)
	return &fixture{e: e, store: store, queue: q}
}

func (f *fixture) do(t *testing.T, method, target, body string) (int, envelope) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func TestExtract(t *testing.T) {
	f := newFixture(t, nil, nil)
	tests := []struct {
		name    string
		body    string
		code    int
		matched bool
		asset   string
	}{
		{"win g1", `{"text":"✅ WIN (G1) em ` + "`BTC/USDT`" + ` ✅"}`, http.StatusOK, true, "BTC/USDT"},
		{"noise", `{"text":"bom dia"}`, http.StatusOK, false, ""},
		{"missing text", `{}`, http.StatusBadRequest, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := f.do(t, http.MethodPost, "/api/extract", tt.body)
			require.Equal(t, tt.code, code)
			if code != http.StatusOK {
				return
			}
			var res models.ExtractResult
			require.NoError(t, json.Unmarshal(env.Data, &res))
			assert.Equal(t, tt.matched, res.Matched)
			assert.Equal(t, tt.asset, res.Asset)
		})
	}
}

func TestIngestSignal(t *testing.T) {
	f := newFixture(t, nil, nil)
	body := `{"id":77,"text":"❎ STOP em ` + "`DOT/USDT`" + ` ❎","date":"2025-09-01T19:03:00Z"}`

	code, _ := f.do(t, http.MethodPost, "/api/signals", body)
	assert.Equal(t, http.StatusAccepted, code)

	code, env := f.do(t, http.MethodPost, "/api/signals", body)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"duplicate":true`)

	sigs, err := f.store.Load(context.Background(), testDay.Add(19*time.Hour), testDay.Add(20*time.Hour))
	require.NoError(t, err)
	require.Len(t, sigs, 1)
	assert.Equal(t, models.ResultLoss, sigs[0].Result)

	code, _ = f.do(t, http.MethodPost, "/api/signals", `{"text":"x","date":"yesterday"}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestSignalsAndHours(t *testing.T) {
	f := newFixture(t, nil, nil)

	code, env := f.do(t, http.MethodGet, "/api/signals?date=2025-09-01", "")
	require.Equal(t, http.StatusOK, code)
	var day models.DaySignals
	require.NoError(t, json.Unmarshal(env.Data, &day))
	assert.Len(t, day.Signals, 24)
	assert.Equal(t, 24, day.Stats.Wins)

	code, env = f.do(t, http.MethodGet, "/api/hours?date=2025-09-01", "")
	require.Equal(t, http.StatusOK, code)
	var hours struct {
		Rows  []models.HourStats `json:"rows"`
		Total int64              `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &hours))
	assert.EqualValues(t, 2, hours.Total)
	require.Len(t, hours.Rows, 2)
	assert.Equal(t, 12, hours.Rows[0].Total)
	assert.NotEmpty(t, hours.Rows[0].StrategyResult)
	assert.Equal(t, 12, hours.Rows[0].Operations)
	assert.InDelta(t, 48.0, hours.Rows[0].PnL, 1e-9)
	assert.InDelta(t, 48.0, hours.Rows[0].MaxRisk, 1e-9)

	code, _ = f.do(t, http.MethodGet, "/api/signals?date=01-09-2025", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestConditions(t *testing.T) {
	f := newFixture(t, nil, nil)

	code, env := f.do(t, http.MethodGet, "/api/conditions?date=2025-09-01&from_hour=16&to_hour=16", "")
	require.Equal(t, http.StatusOK, code)
	var rep models.ConditionsReport
	require.NoError(t, json.Unmarshal(env.Data, &rep))
	assert.Equal(t, 12, rep.Signals)
	assert.Equal(t, models.StrategyInfinityConservative, rep.Conditions.RecommendedStrategy)
	assert.False(t, rep.Cached)

	_, env = f.do(t, http.MethodGet, "/api/conditions?date=2025-09-01&from_hour=16&to_hour=16", "")
	require.NoError(t, json.Unmarshal(env.Data, &rep))
	assert.True(t, rep.Cached)

	code, _ = f.do(t, http.MethodGet, "/api/conditions?from_hour=20&to_hour=18", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestSimulate(t *testing.T) {
	f := newFixture(t, nil, nil)

	code, env := f.do(t, http.MethodPost, "/api/simulate", `{"date":"2025-09-01"}`)
	require.Equal(t, http.StatusOK, code)
	var rep models.SimulationReport
	require.NoError(t, json.Unmarshal(env.Data, &rep))
	assert.Equal(t, "2025-09-01", rep.Date)
	assert.NotEmpty(t, rep.ID)

	code, env = f.do(t, http.MethodGet, "/api/simulations/"+rep.ID, "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"status":"done"`)

	code, _ = f.do(t, http.MethodPost, "/api/simulate", `{"date":"2025-09-01","strategies":{"17":"yolo"}}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestEnqueueSimulation(t *testing.T) {
	f := newFixture(t, nil, nil)

	code, env := f.do(t, http.MethodPost, "/api/simulations", `{"date":"2025-09-01"}`)
	require.Equal(t, http.StatusAccepted, code)
	var job models.SimulationJob
	require.NoError(t, json.Unmarshal(env.Data, &job))
	assert.Equal(t, models.JobPending, job.Status)
	assert.Equal(t, []string{job.ID}, f.queue.ids)

	code, _ = f.do(t, http.MethodGet, "/api/simulations/3f1c1d2e-8a7b-4c1d-9e0f-123456789abc", "")
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = f.do(t, http.MethodGet, "/api/simulations/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestStrategy(t *testing.T) {
	code, _ := newFixture(t, nil, nil).do(t, http.MethodGet, "/api/strategy", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)

	live := usecase.NewLiveTrader(usecase.DefaultLiveConfig(), strategy.NewAnalyzer(strategy.DefaultConfig(), nil),
		strategy.NewState(70, 500), nil, nil, metrics.NewWithRegistry(prometheus.NewRegistry()), nil, nil)
	code, env := newFixture(t, live, nil).do(t, http.MethodGet, "/api/strategy", "")
	require.Equal(t, http.StatusOK, code)
	var st models.LiveStatus
	require.NoError(t, json.Unmarshal(env.Data, &st))
	assert.True(t, st.TradingHours)
	assert.Nil(t, st.Strategy.Strategy)
}

func TestStats(t *testing.T) {
	f := newFixture(t, nil, nil)

	code, env := f.do(t, http.MethodGet, "/api/stats?from=2025-09-01&to=2025-09-02", "")
	require.Equal(t, http.StatusOK, code)
	var st models.StoreStats
	require.NoError(t, json.Unmarshal(env.Data, &st))
	assert.Equal(t, 24, st.Total)

	code, _ = f.do(t, http.MethodGet, "/api/stats?from=2025-09-02&to=2025-09-01", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestThrottle(t *testing.T) {
	f := newFixture(t, nil, ratelimit.New(1, 1))
	body := `{"text":"bom dia","date":"2025-09-01T18:00:00Z"}`

	code, _ := f.do(t, http.MethodPost, "/api/signals", body)
	assert.Equal(t, http.StatusAccepted, code)
	code, _ = f.do(t, http.MethodPost, "/api/signals", strings.Replace(body, "bom dia", "boa tarde", 1))
	assert.Equal(t, http.StatusTooManyRequests, code)
}
