package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	EngineLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "signalpilot",
			Subsystem: "engine",
			Name:      "latency_seconds",
			Help:      "Latency of analysis and simulation calls",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	EngineErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "signalpilot",
			Subsystem: "engine",
			Name:      "errors_total",
			Help:      "Failed analysis and simulation calls",
		},
		[]string{"op"},
	)

	SkippedRecords = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "signalpilot",
			Subsystem: "engine",
			Name:      "skipped_records_total",
			Help:      "Malformed signal records skipped by the engine",
		},
		[]string{"op"},
	)

	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "signalpilot",
			Subsystem: "engine",
			Name:      "cache_lookups_total",
			Help:      "Conditions and simulation cache lookups",
		},
		[]string{"kind", "outcome"},
	)
)

// Register adds the engine collectors to the default registry once.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(EngineLatency, EngineErrors, SkippedRecords, CacheLookups)
	})
}

// Observe records the outcome of one engine call started at start.
func Observe(op string, start time.Time, skipped int, err error) {
	EngineLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		EngineErrors.WithLabelValues(op).Inc()
	}
	if skipped > 0 {
		SkippedRecords.WithLabelValues(op).Add(float64(skipped))
	}
}

// CacheHit records a cache lookup outcome.
func CacheHit(kind string, hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	CacheLookups.WithLabelValues(kind, outcome).Inc()
}
