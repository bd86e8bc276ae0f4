package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	signals    *prometheus.CounterVec
	errors     *prometheus.CounterVec
	strategy   *prometheus.GaugeVec
	confidence prometheus.Gauge
	changes    prometheus.Counter
	latency    *prometheus.HistogramVec
	current    string
}

var (
	defaultOnce sync.Once
	defaultRec  *Recorder
)

// New returns the recorder of the default registry. Collectors register once
// per process, so every call returns the same recorder.
func New() *Recorder {
	defaultOnce.Do(func() { defaultRec = NewWithRegistry(prometheus.DefaultRegisterer) })
	return defaultRec
}

// NewWithRegistry creates a recorder on reg.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		signals: f.NewCounterVec(prometheus.CounterOpts{
			Name: "signalpilot_signals_total",
			Help: "Signals stored or published, by backend, asset and result",
		}, []string{"backend", "asset", "result"}),
		errors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "signalpilot_errors_total",
			Help: "Errors encountered, by kind",
		}, []string{"type"}),
		strategy: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "signalpilot_strategy_active",
			Help: "1 for the strategy currently selected by the live trader",
		}, []string{"strategy"}),
		confidence: f.NewGauge(prometheus.GaugeOpts{
			Name: "signalpilot_strategy_confidence",
			Help: "Confidence of the latest analysis (0-100)",
		}),
		changes: f.NewCounter(prometheus.CounterOpts{
			Name: "signalpilot_strategy_changes_total",
			Help: "Strategy changes applied by the live trader",
		}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "signalpilot_operation_duration_seconds",
			Help:    "Duration of operations in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}
}

// RecordSignal counts a signal handed to a backend.
func (r *Recorder) RecordSignal(backend, asset, result string) {
	r.signals.WithLabelValues(backend, asset, result).Inc()
}

func (r *Recorder) RecordError(kind string) {
	r.errors.WithLabelValues(kind).Inc()
}

// RecordStrategy marks strategy as active. Not safe for concurrent use; the live trader is the only caller.
func (r *Recorder) RecordStrategy(strategy string, confidence float64) {
	if r.current != strategy {
		if r.current != "" {
			r.strategy.WithLabelValues(r.current).Set(0)
			r.changes.Inc()
		}
		r.current = strategy
	}
	r.strategy.WithLabelValues(strategy).Set(1)
	r.confidence.Set(confidence)
}

func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
