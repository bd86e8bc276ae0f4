package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"SignalPilot/internal/domain/models"
	"SignalPilot/internal/domain/repository"
)

// MultiStore writes to every store and reads from the first one.
type MultiStore struct {
	stores []repository.SignalStore
}

var _ repository.SignalStore = (*MultiStore)(nil)

func NewMultiStore(primary repository.SignalStore, others ...repository.SignalStore) *MultiStore {
	return &MultiStore{stores: append([]repository.SignalStore{primary}, others...)}
}

func (m *MultiStore) Init(ctx context.Context) error {
	for i, s := range m.stores {
		if err := s.Init(ctx); err != nil {
			return fmt.Errorf("store %d: %w", i, err)
		}
	}
	return nil
}

// Save returns the count reported by the primary store. A failure in a
// secondary store is returned after every store was attempted.
func (m *MultiStore) Save(ctx context.Context, signals []models.Signal) (int, error) {
	var (
		inserted int
		errs     []error
	)
	for i, s := range m.stores {
		n, err := s.Save(ctx, signals)
		if err != nil {
			errs = append(errs, fmt.Errorf("store %d: %w", i, err))
			continue
		}
		if i == 0 {
			inserted = n
		}
	}
	return inserted, errors.Join(errs...)
}

func (m *MultiStore) Load(ctx context.Context, from, to time.Time) ([]models.Signal, error) {
	return m.stores[0].Load(ctx, from, to)
}

func (m *MultiStore) Stats(ctx context.Context, from, to time.Time) (*models.StoreStats, error) {
	return m.stores[0].Stats(ctx, from, to)
}

func (m *MultiStore) Health(ctx context.Context) error {
	var errs []error
	for i, s := range m.stores {
		if err := s.Health(ctx); err != nil {
			errs = append(errs, fmt.Errorf("store %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

func (m *MultiStore) Close() error {
	var errs []error
	for _, s := range m.stores {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}
