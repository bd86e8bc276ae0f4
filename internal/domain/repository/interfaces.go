package repository

import (
	"context"
	"time"

	"SignalPilot/internal/domain/models"
)

// MessageSource streams raw chat messages from the signal channel.
type MessageSource interface {
	Connect(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.RawMessage, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// SignalPublisher fans signals out to downstream consumers.
type SignalPublisher interface {
	Publish(ctx context.Context, s *models.Signal) error
	PublishBatch(ctx context.Context, signals []*models.Signal) error
	Close() error
}

// SignalStore persists signals.
type SignalStore interface {
	SignalReader
	Init(ctx context.Context) error
	// Save stores signals and returns how many were new.
	Save(ctx context.Context, signals []models.Signal) (int, error)
	Stats(ctx context.Context, from, to time.Time) (*models.StoreStats, error)
	Health(ctx context.Context) error
	Close() error
}

// AnalysisArchive keeps the history of live analyses.
type AnalysisArchive interface {
	Append(ctx context.Context, entry *models.AnalysisEntry) error
	SaveReport(ctx context.Context, report *models.SessionReport) error
}

// Notifier announces strategy changes.
type Notifier interface {
	NotifyStrategyChange(ctx context.Context, prev *models.StrategyType, c models.MarketConditions) error
}

// Metrics records collector and live trader activity.
type Metrics interface {
	RecordSignal(backend, asset, result string)
	RecordError(kind string)
	RecordStrategy(strategy string, confidence float64)
	RecordLatency(op string, seconds float64)
}
