package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"SignalPilot/internal/domain/models"
)

type fakeMetrics struct {
	mu         sync.Mutex
	signals    int
	errors     map[string]int
	strategies []string
}

func newFakeMetrics() *fakeMetrics { return &fakeMetrics{errors: map[string]int{}} }

func (m *fakeMetrics) RecordSignal(string, string, string) {
	m.mu.Lock()
	m.signals++
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	m.errors[kind]++
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordStrategy(s string, _ float64) {
	m.mu.Lock()
	m.strategies = append(m.strategies, s)
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordLatency(string, float64) {}

// memStore is an in-memory SignalStore keyed like the CSV store.
type memStore struct {
	mu      sync.Mutex
	signals map[string]models.Signal
	saveErr error
	loadErr error
}

func newMemStore(sigs ...models.Signal) *memStore {
	s := &memStore{signals: map[string]models.Signal{}}
	_, _ = s.Save(context.Background(), sigs)
	return s
}

func (s *memStore) Init(context.Context) error { return nil }

func (s *memStore) Save(_ context.Context, sigs []models.Signal) (int, error) {
	if s.saveErr != nil {
		return 0, s.saveErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sig := range sigs {
		if _, ok := s.signals[sig.Key()]; ok {
			continue
		}
		s.signals[sig.Key()] = sig
		n++
	}
	return n, nil
}

func (s *memStore) Load(_ context.Context, from, to time.Time) ([]models.Signal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Signal
	for _, sig := range s.signals {
		if !sig.Timestamp.Before(from) && sig.Timestamp.Before(to) {
			out = append(out, sig)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, s.loadErr
}

func (s *memStore) Stats(ctx context.Context, from, to time.Time) (*models.StoreStats, error) {
	sigs, _ := s.Load(ctx, from, to)
	return &models.StoreStats{Total: len(sigs)}, nil
}

func (s *memStore) Health(context.Context) error { return nil }
func (s *memStore) Close() error                  { return nil }

var testDay = time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)

var testAssets = []string{
	"ADA/USDT", "BTC/USDT", "ETH/USDT", "DOT/USDT", "SOL/USDT",
	"XRP/USDT", "BNB/USDT", "LTC/USDT", "TRX/USDT", "AVAX/USDT",
	"LINK/USDT", "ATOM/USDT",
}

// hourWith builds signals in hour h on distinct assets, five minutes apart
// ("1", "2", "3" wins by attempt, "L" loss).
func hourWith(h int, pattern ...string) []models.Signal {
	out := make([]models.Signal, 0, len(pattern))
	for i, p := range pattern {
		s := models.Signal{
			Timestamp: testDay.Add(time.Duration(h)*time.Hour + time.Duration(i*5)*time.Minute),
			Asset:     testAssets[i%len(testAssets)],
			Result:    models.ResultWin,
			Attempt:   1,
		}
		switch p {
		case "L":
			s.Result, s.Attempt = models.ResultLoss, 0
		case "2":
			s.Attempt = 2
		case "3":
			s.Attempt = 3
		}
		out = append(out, s)
	}
	return out
}

type recordingSink struct {
	mu  sync.Mutex
	got []models.Signal
}

func (r *recordingSink) OnSignal(_ context.Context, s models.Signal) {
	r.mu.Lock()
	r.got = append(r.got, s)
	r.mu.Unlock()
}

func (r *recordingSink) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got)
}
