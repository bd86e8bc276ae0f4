package repository

import "strings"

// Backend selects where collected signals go.
type Backend string

const (
	BackendKafka      Backend = "kafka"
	BackendPostgres   Backend = "postgres"
	BackendClickHouse Backend = "clickhouse"
	BackendCSV        Backend = "csv"
	BackendBoth       Backend = "both"
)

// IsValidBackend returns true if b is a supported backend.
func IsValidBackend(b Backend) bool {
	switch b {
	case BackendKafka, BackendPostgres, BackendClickHouse, BackendCSV, BackendBoth:
		return true
	default:
		return false
	}
}

// DefaultBackend returns the default backend.
func DefaultBackend() Backend { return BackendCSV }

// NormalizeBackend converts a raw string to a valid backend (or default).
func NormalizeBackend(s string) Backend {
	b := Backend(strings.ToLower(strings.TrimSpace(s)))
	if IsValidBackend(b) {
		return b
	}
	return DefaultBackend()
}

// StoreBackend is the backend signals are persisted to when the collector
// publishes to Kafka; the consumer side writes to this store.
func (b Backend) StoreBackend(fallback Backend) Backend {
	if b == BackendKafka {
		return fallback
	}
	return b
}
