package strategy

import (
	"sort"

	"SignalPilot/internal/domain/models"
)

const (
	martingaleWinsNeeded = 3
	infinityCycleWins    = 2
	infinityCyclesNeeded = 2
)

// RunSession replays signals (any order) under st and returns the session
// outcome along with the signals it consumed.
func RunSession(st models.StrategyType, signals []models.Signal) (models.SessionOutcome, models.SessionCounts) {
	ordered := chronological(signals)
	switch st {
	case models.StrategyMartingaleConservative:
		return martingaleSession(ordered)
	case models.StrategyInfinityConservative:
		return infinitySession(ordered)
	case models.StrategyPause:
		return models.OutcomeIncomplete, models.SessionCounts{}
	default:
		return models.OutcomeIncomplete, models.SessionCounts{}
	}
}

// martingaleSession needs three wins in a row; the first loss ends it.
func martingaleSession(signals []models.Signal) (models.SessionOutcome, models.SessionCounts) {
	var c models.SessionCounts
	streak := 0
	for _, s := range signals {
		c.Operations++
		if !s.IsWin() {
			c.Losses++
			return models.OutcomeDefeat, c
		}
		c.Wins++
		streak++
		if streak >= martingaleWinsNeeded {
			return models.OutcomeVictory, c
		}
	}
	return models.OutcomeIncomplete, c
}

// infinitySession needs two cycles of two wins in a row. A loss resets the
// running streak but not the completed cycles, and never ends the session.
func infinitySession(signals []models.Signal) (models.SessionOutcome, models.SessionCounts) {
	var c models.SessionCounts
	streak, cycles := 0, 0
	for _, s := range signals {
		c.Operations++
		if !s.IsWin() {
			c.Losses++
			streak = 0
			continue
		}
		c.Wins++
		streak++
		if streak >= infinityCycleWins {
			cycles++
			streak = 0
			if cycles >= infinityCyclesNeeded {
				return models.OutcomeVictory, c
			}
		}
	}
	return models.OutcomeIncomplete, c
}

func chronological(signals []models.Signal) []models.Signal {
	out := make([]models.Signal, len(signals))
	copy(out, signals)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}
