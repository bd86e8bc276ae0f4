package usecase

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SignalPilot/internal/domain/models"
	"SignalPilot/internal/services/strategy"
	"SignalPilot/pkg/cache"
	applogger "SignalPilot/pkg/logger"
)

type fakeEnqueuer struct {
	ids      []string
	payloads []interface{}
	err      error
}

func (q *fakeEnqueuer) EnqueueWithID(_ context.Context, id, msgType string, payload interface{}) (string, error) {
	if q.err != nil {
		return "", q.err
	}
	if msgType != SimulateDayJobType {
		return "", errors.New("unexpected type " + msgType)
	}
	q.ids = append(q.ids, id)
	q.payloads = append(q.payloads, payload)
	return id, nil
}

func newSimulation(store *memStore, c cache.Service, q JobEnqueuer) *SimulationService {
	cfg := strategy.DefaultConfig()
	svc := NewSimulationService(store, strategy.NewSimulator(cfg, nil), c, time.Hour, q, nil)
	svc.now = func() time.Time { return testDay.Add(12 * time.Hour) }
	return svc
}

func tradingDay() []models.Signal {
	sigs := firstWinHour(16)
	return append(sigs, hourWith(17, "1", "1", "2", "1", "L", "1")...)
}

func TestParseStrategyTable(t *testing.T) {
	tests := []struct {
		name    string
		raw     map[string]string
		want    map[int]models.StrategyType
		wantErr bool
	}{
		{name: "empty"},
		{
			name: "valid",
			raw:  map[string]string{"17": "infinity_conservative", "18": "pause"},
			want: map[int]models.StrategyType{17: models.StrategyInfinityConservative, 18: models.StrategyPause},
		},
		{name: "bad hour", raw: map[string]string{"25": "pause"}, wantErr: true},
		{name: "bad strategy", raw: map[string]string{"17": "yolo"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStrategyTable(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSimulationService_SimulateDayStoresReport(t *testing.T) {
	svc := newSimulation(newMemStore(tradingDay()...), cache.NewMemoryCache(), nil)
	ctx := context.Background()

	rep, err := svc.SimulateDay(ctx, testDay, nil)
	require.NoError(t, err)
	assert.Equal(t, "2025-09-01", rep.Date)
	require.NotNil(t, rep.Day)
	assert.Equal(t, 1, rep.Summary.HoursOperated)
	assert.Equal(t, 18, rep.Financial.Trades)

	job, err := svc.Get(ctx, rep.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobDone, job.Status)
	require.NotNil(t, job.Report)
	assert.Equal(t, rep.Summary.TotalPnL, job.Report.Summary.TotalPnL)

	_, err = svc.Get(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

type failingSetCache struct {
	cache.Service
	err error
}

func (c failingSetCache) Set(context.Context, string, interface{}, time.Duration) error { return c.err }

func TestSimulationService_LogsStoreFailure(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantLog bool
	}{
		{name: "set fails", err: errors.New("redis down"), wantLog: true},
		{name: "set ok"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			svc := newSimulation(newMemStore(tradingDay()...), failingSetCache{Service: cache.NewMemoryCache(), err: tt.err}, nil)
			svc.l = applogger.NewWriter(&buf, "debug")

			rep, err := svc.SimulateDay(context.Background(), testDay, nil)
			require.NoError(t, err)
			require.NotNil(t, rep)

			if tt.wantLog {
				assert.Contains(t, buf.String(), "store simulation failed")
				assert.Contains(t, buf.String(), "redis down")
				assert.Contains(t, buf.String(), rep.ID)
			} else {
				assert.NotContains(t, buf.String(), "store simulation failed")
			}
		})
	}
}

func TestSimulationService_SimulateWithTable(t *testing.T) {
	svc := newSimulation(newMemStore(tradingDay()...), nil, nil)
	rep, err := svc.SimulateDay(context.Background(), testDay, map[int]models.StrategyType{17: models.StrategyPause})
	require.NoError(t, err)
	assert.Zero(t, rep.Summary.HoursOperated)
	assert.Zero(t, rep.Summary.TotalPnL)
}

func TestSimulationService_EnqueueAndRun(t *testing.T) {
	ctx := context.Background()
	q := &fakeEnqueuer{}
	svc := newSimulation(newMemStore(tradingDay()...), cache.NewMemoryCache(), q)

	job, err := svc.Enqueue(ctx, models.SimulateRequest{Date: "2025-09-01"})
	require.NoError(t, err)
	assert.Equal(t, models.JobPending, job.Status)
	require.Equal(t, []string{job.ID}, q.ids)

	got, err := svc.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobPending, got.Status)

	payload := q.payloads[0].(SimulationPayload)
	require.NoError(t, svc.Run(ctx, payload))
	got, err = svc.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobDone, got.Status)
	assert.NotNil(t, got.Report)
}

func TestSimulationService_EnqueueErrors(t *testing.T) {
	ctx := context.Background()

	_, err := newSimulation(newMemStore(), cache.NewMemoryCache(), nil).Enqueue(ctx, models.SimulateRequest{Date: "2025-09-01"})
	assert.ErrorIs(t, err, ErrQueueDisabled)

	svc := newSimulation(newMemStore(), cache.NewMemoryCache(), &fakeEnqueuer{})
	_, err = svc.Enqueue(ctx, models.SimulateRequest{Date: "01/09/2025"})
	assert.Error(t, err)
	_, err = svc.Enqueue(ctx, models.SimulateRequest{Date: "2025-09-01", Strategies: map[string]string{"x": "pause"}})
	assert.Error(t, err)

	svc = newSimulation(newMemStore(), cache.NewMemoryCache(), &fakeEnqueuer{err: errors.New("redis down")})
	_, err = svc.Enqueue(ctx, models.SimulateRequest{Date: "2025-09-01"})
	assert.ErrorContains(t, err, "redis down")
}

func TestSimulationService_RunMarksFailed(t *testing.T) {
	ctx := context.Background()
	svc := newSimulation(newMemStore(), cache.NewMemoryCache(), nil)

	require.NoError(t, svc.Run(ctx, SimulationPayload{ID: "bad", Date: "yesterday"}))
	job, err := svc.Get(ctx, "bad")
	require.NoError(t, err)
	assert.Equal(t, models.JobFailed, job.Status)
	assert.Contains(t, job.Error, "invalid date")

	store := newMemStore()
	store.loadErr = errors.New("timeout")
	svc = newSimulation(store, cache.NewMemoryCache(), nil)
	assert.Error(t, svc.Run(ctx, SimulationPayload{ID: "io", Date: "2025-09-01"}))
	job, err = svc.Get(ctx, "io")
	require.NoError(t, err)
	assert.Equal(t, models.JobFailed, job.Status)
}

func TestSimulationService_SimulateRange(t *testing.T) {
	var sigs []models.Signal
	for d := 0; d < 3; d++ {
		for _, s := range tradingDay() {
			s.Timestamp = s.Timestamp.AddDate(0, 0, d)
			sigs = append(sigs, s)
		}
	}
	svc := newSimulation(newMemStore(sigs...), nil, nil)

	reports, sum, err := svc.SimulateRange(context.Background(), testDay, testDay.AddDate(0, 0, 3))
	require.NoError(t, err)
	require.Len(t, reports, 4)
	assert.Equal(t, "2025-09-01", reports[0].Date)
	assert.Equal(t, "2025-09-04", reports[3].Date)
	assert.Equal(t, 4, sum.Days)
	assert.Equal(t, 3, sum.TradedDays)
	assert.Equal(t, "2025-09-01", sum.From)
	assert.Equal(t, "2025-09-04", sum.To)
}

func TestSimulationJob_Handle(t *testing.T) {
	svc := newSimulation(newMemStore(tradingDay()...), cache.NewMemoryCache(), nil)
	job := NewSimulationJob(svc)
	assert.Equal(t, SimulateDayJobType, job.Type())

	require.NoError(t, job.Handle(context.Background(), []byte(`{"id":"j1","date":"2025-09-01"}`)))
	got, err := svc.Get(context.Background(), "j1")
	require.NoError(t, err)
	assert.Equal(t, models.JobDone, got.Status)

	assert.Error(t, job.Handle(context.Background(), []byte(`{`)))
}
