package repository

import (
	"context"
	"time"

	"SignalPilot/internal/domain/models"
)

// SignalReader provides read-only access to stored signals for analysis.
type SignalReader interface {
	// Load returns signals with from <= timestamp < to ordered by timestamp.
	Load(ctx context.Context, from, to time.Time) ([]models.Signal, error)
}
