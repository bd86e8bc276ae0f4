package strategy

import (
	"math"

	"github.com/montanaflynn/stats"
	"github.com/shopspring/decimal"

	"SignalPilot/internal/domain/models"
)

// DefaultInitialCapital is the bankroll financial metrics are computed against.
const DefaultInitialCapital = 540.0

// Stakes by attempt: first try, G1 and G2. A loss costs the G2 stake.
var attemptStakes = map[int]int64{1: 4, 2: 8, 3: 16}

const tradingDaysPerYear = 252

// SignalPnL is the profit of one signal under the fixed attempt stakes.
func SignalPnL(s models.Signal) decimal.Decimal {
	if s.IsWin() {
		return decimal.NewFromInt(attemptStakes[s.Attempt])
	}
	return decimal.NewFromInt(-attemptStakes[maxAttempts])
}

// Financial replays signals in time order with the fixed stakes and
// computes portfolio statistics over the resulting equity curve.
func Financial(signals []models.Signal, initialCapital float64) models.FinancialMetrics {
	m := models.FinancialMetrics{InitialCapital: initialCapital, FinalCapital: initialCapital}
	ordered := chronological(signals)
	if len(ordered) == 0 {
		return m
	}

	capital0 := decimal.NewFromFloat(initialCapital)
	cum := decimal.Zero
	pnls := make(stats.Float64Data, 0, len(ordered))
	returns := make(stats.Float64Data, 0, len(ordered))
	runMax := math.Inf(-1)
	maxDD := 0.0
	winStreak, lossStreak := 0, 0

	for _, s := range ordered {
		pnl := SignalPnL(s)
		cum = cum.Add(pnl)
		capital := capital0.Add(cum).InexactFloat64()

		pnls = append(pnls, pnl.InexactFloat64())
		if initialCapital > 0 {
			returns = append(returns, pnl.Div(capital0).InexactFloat64())
		}

		if capital > runMax {
			runMax = capital
		}
		if runMax != 0 {
			if dd := (capital - runMax) / runMax * 100; dd < maxDD {
				maxDD = dd
			}
		}

		if s.IsWin() {
			winStreak++
			lossStreak = 0
		} else {
			lossStreak++
			winStreak = 0
		}
		if winStreak > m.MaxWinStreak {
			m.MaxWinStreak = winStreak
		}
		if lossStreak > m.MaxLossStreak {
			m.MaxLossStreak = lossStreak
		}
	}

	m.Trades = len(ordered)
	m.TotalPnL = cum.InexactFloat64()
	m.FinalCapital = capital0.Add(cum).InexactFloat64()
	if initialCapital > 0 {
		m.ROI = cum.Div(capital0).Mul(decimal.NewFromInt(100)).InexactFloat64()
	}
	m.MaxDrawdown = maxDD
	m.AvgPnLPerSignal, _ = stats.Mean(pnls)
	m.MedianPnL, _ = stats.Median(pnls)

	if len(returns) > 1 {
		mean, _ := stats.Mean(returns)
		sd, err := stats.StandardDeviationSample(returns)
		if err == nil && sd > 0 {
			m.SharpeRatio = mean / sd * math.Sqrt(tradingDaysPerYear)
		}
	}
	return m
}
