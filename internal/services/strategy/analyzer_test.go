package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SignalPilot/internal/domain/models"
)

func TestAnalyzer_Analyze(t *testing.T) {
	a := NewAnalyzer(DefaultConfig(), nil)

	t.Run("empty input", func(t *testing.T) {
		c := a.Analyze(nil)
		assert.Equal(t, models.StrategyPause, c.RecommendedStrategy)
		assert.Zero(t, c.ConfidenceLevel)
		assert.Zero(t, c.TotalOperations)
		assert.Equal(t, NoDataPeriod, c.AnalysisPeriod)
	})

	t.Run("first attempt dominated hour", func(t *testing.T) {
		c := a.Analyze(hourWith(17, "1", "1", "L", "1", "1", "L", "1", "1", "L", "1"))
		assert.Equal(t, 10, c.TotalOperations)
		assert.InDelta(t, 70, c.FirstAttemptSuccessRate, 1e-9)
		assert.InDelta(t, 0, c.G1RecoveryRate, 1e-9)
		assert.InDelta(t, 0, c.G2PlusStopRate, 1e-9)
		assert.Equal(t, models.StrategyInfinityConservative, c.RecommendedStrategy)
		assert.InDelta(t, 85, c.ConfidenceLevel, 1e-9)
		assert.Equal(t, "17:00-17:45", c.AnalysisPeriod)
	})

	t.Run("mixed rates fall through to scoring", func(t *testing.T) {
		c := a.Analyze(hourWith(18, "1", "1", "1", "1", "1", "2", "2", "3", "L", "L"))
		assert.InDelta(t, 50, c.FirstAttemptSuccessRate, 1e-9)
		assert.InDelta(t, 40, c.G1RecoveryRate, 1e-9)
		assert.InDelta(t, 10, c.G2PlusStopRate, 1e-9)
		assert.Equal(t, models.StrategyMartingaleConservative, c.RecommendedStrategy)
		assert.InDelta(t, 75, c.ConfidenceLevel, 1e-9)
	})

	t.Run("too few operations", func(t *testing.T) {
		c := a.Analyze(hourWith(18, "1", "1", "1"))
		assert.Equal(t, models.StrategyPause, c.RecommendedStrategy)
		assert.InDelta(t, 30, c.ConfidenceLevel, 1e-9)
	})

	t.Run("period uses trading timezone", func(t *testing.T) {
		loc := time.FixedZone("BRT", -3*3600)
		la := NewAnalyzer(NewConfig(WithLocation(loc)), nil)
		c := la.Analyze([]models.Signal{win(at(20, 0), "ADA/USDT", 1), win(at(21, 30), "BTC/USDT", 1)})
		assert.Equal(t, "17:00-18:30", c.AnalysisPeriod)
	})
}

func TestAnalyzer_RatesStayInRange(t *testing.T) {
	a := NewAnalyzer(DefaultConfig(), nil)
	patterns := [][]string{
		{"L", "L", "L", "L"},
		{"3", "3", "3", "L", "L"},
		{"2", "2", "2", "2", "2", "2", "2", "2", "2", "2", "2"},
		{"1"},
	}
	for _, p := range patterns {
		var in []models.Signal
		// Same asset, one minute apart, to push loss attempts up.
		for i, r := range p {
			if r == "L" {
				in = append(in, loss(at(17, i), "ADA/USDT"))
			} else {
				in = append(in, win(at(17, i), "ADA/USDT", int(r[0]-'0')))
			}
		}
		c := a.Analyze(in)
		for _, v := range []float64{c.FirstAttemptSuccessRate, c.G1RecoveryRate, c.G2PlusStopRate, c.ConfidenceLevel} {
			require.GreaterOrEqual(t, v, 0.0)
			require.LessOrEqual(t, v, 100.0)
		}
	}
}
