package strategy

import (
	"sort"
	"time"

	"SignalPilot/internal/domain/models"
)

const maxAttempts = 3

// GroupOperations rebuilds operations from signals.
//
// A loss has no attempt in the feed, so its depth is estimated by counting the
// same-asset signals that precede it within window. Signals close in time are
// not guaranteed to belong to the same betting cycle; the estimate is kept for
// compatibility with historical reports.
func GroupOperations(signals []models.Signal, window time.Duration) []models.Operation {
	if len(signals) == 0 {
		return []models.Operation{}
	}
	sorted := make([]models.Signal, len(signals))
	copy(sorted, signals)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })

	var order []string
	byAsset := make(map[string][]models.Signal)
	for _, s := range sorted {
		if _, ok := byAsset[s.Asset]; !ok {
			order = append(order, s.Asset)
		}
		byAsset[s.Asset] = append(byAsset[s.Asset], s)
	}

	ops := make([]models.Operation, 0, len(sorted))
	for _, asset := range order {
		list := byAsset[asset]
		for i, s := range list {
			op := models.Operation{Asset: asset, Timestamp: s.Timestamp, Result: s.Result}
			if s.IsWin() {
				op.Attempts = s.Attempt
				if op.Attempts == 0 {
					op.Attempts = 1
				}
			} else {
				op.Attempts = 1
				for j := i - 1; j >= 0 && s.Timestamp.Sub(list[j].Timestamp) <= window; j-- {
					op.Attempts++
				}
			}
			if op.Attempts > maxAttempts {
				op.Attempts = maxAttempts
			}
			ops = append(ops, op)
		}
	}
	return ops
}
