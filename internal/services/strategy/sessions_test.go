package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"SignalPilot/internal/domain/models"
)

func TestRunSession(t *testing.T) {
	tests := []struct {
		name     string
		strategy models.StrategyType
		pattern  []string
		outcome  models.SessionOutcome
		counts   models.SessionCounts
	}{
		{"martingale three wins", models.StrategyMartingaleConservative, []string{"1", "2", "1", "1"}, models.OutcomeVictory, models.SessionCounts{Operations: 3, Wins: 3}},
		{"martingale loss ends session", models.StrategyMartingaleConservative, []string{"1", "L", "1", "1"}, models.OutcomeDefeat, models.SessionCounts{Operations: 2, Wins: 1, Losses: 1}},
		{"martingale runs out", models.StrategyMartingaleConservative, []string{"1", "1"}, models.OutcomeIncomplete, models.SessionCounts{Operations: 2, Wins: 2}},
		{"infinity two cycles", models.StrategyInfinityConservative, []string{"1", "1", "1", "1"}, models.OutcomeVictory, models.SessionCounts{Operations: 4, Wins: 4}},
		{"infinity loss resets streak only", models.StrategyInfinityConservative, []string{"1", "L", "1", "1", "L", "1", "1"}, models.OutcomeVictory, models.SessionCounts{Operations: 7, Wins: 5, Losses: 2}},
		{"infinity one cycle", models.StrategyInfinityConservative, []string{"1", "1", "L", "1"}, models.OutcomeIncomplete, models.SessionCounts{Operations: 4, Wins: 3, Losses: 1}},
		{"infinity all losses", models.StrategyInfinityConservative, []string{"L", "L", "L"}, models.OutcomeIncomplete, models.SessionCounts{Operations: 3, Losses: 3}},
		{"pause never trades", models.StrategyPause, []string{"1", "1", "1"}, models.OutcomeIncomplete, models.SessionCounts{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome, counts := RunSession(tt.strategy, hourWith(18, tt.pattern...))
			assert.Equal(t, tt.outcome, outcome)
			assert.Equal(t, tt.counts, counts)
		})
	}
}

func TestRunSession_SortsByTime(t *testing.T) {
	in := []models.Signal{
		win(at(18, 3), "ADA/USDT", 1),
		loss(at(18, 0), "BTC/USDT"),
		win(at(18, 1), "ETH/USDT", 1),
	}
	outcome, counts := RunSession(models.StrategyMartingaleConservative, in)
	assert.Equal(t, models.OutcomeDefeat, outcome)
	assert.Equal(t, 1, counts.Operations)
}
