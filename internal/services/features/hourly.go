// Package features computes per-hour signal features used by reports.
package features

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"SignalPilot/internal/domain/models"
	"SignalPilot/internal/services/strategy"
)

// Quick recommendations of the hourly breakdown.
const (
	RecInsufficient = "Dados Insuficientes"
	RecPause        = "PAUSE"
	RecMartingale   = "Martingale Conservative"
	RecInfinity     = "Infinity Conservative"
	RecWait         = "Aguardar Mais Dados"

	// NoOperations is the strategy result of an hour whose recommendation does not trade.
	NoOperations = "Sem Operações"
)

// Thresholds of the quick hourly rule.
type Thresholds struct {
	MinSignals    int
	MaxLossRate   float64
	MinG1Rate     float64
	MaxFirstForG1 float64
	MinFirstRate  float64
	// Capital is the bankroll the hourly ROI is relative to.
	Capital float64
}

// DefaultThresholds returns the thresholds used by the hourly report.
func DefaultThresholds() Thresholds {
	return Thresholds{MinSignals: 5, MaxLossRate: 30, MinG1Rate: 15, MaxFirstForG1: 60, MinFirstRate: 50, Capital: strategy.DefaultInitialCapital}
}

// HourlyBreakdown computes stats for every clock hour that has signals, in
// ascending hour order. Rates are relative to the hour's signal count.
func HourlyBreakdown(signals []models.Signal, loc *time.Location, th Thresholds) []models.HourStats {
	if loc == nil {
		loc = time.UTC
	}
	byHour := make(map[int]*models.HourStats)
	hourSignals := make(map[int][]models.Signal)
	first := make(map[int]int)
	g1 := make(map[int]int)
	for _, s := range signals {
		h := s.Timestamp.In(loc).Hour()
		st, ok := byHour[h]
		if !ok {
			st = &models.HourStats{Hour: h}
			byHour[h] = st
		}
		st.Total++
		hourSignals[h] = append(hourSignals[h], s)
		if s.IsWin() {
			st.Wins++
			switch s.Attempt {
			case 1:
				first[h]++
			case 2:
				g1[h]++
			}
		} else {
			st.Losses++
		}
	}

	out := make([]models.HourStats, 0, len(byHour))
	for h, st := range byHour {
		n := float64(st.Total)
		st.WinRate = float64(st.Wins) / n * 100
		st.FirstRate = float64(first[h]) / n * 100
		st.G1Rate = float64(g1[h]) / n * 100
		st.LossRate = float64(st.Losses) / n * 100
		st.Recommendation = Recommend(*st, th)
		st.StrategyResult = StrategyResult(st.Recommendation, hourSignals[h])
		hourFinancials(st, hourSignals[h], th.Capital)
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hour < out[j].Hour })
	return out
}

// Recommend applies the quick hourly rule.
func Recommend(st models.HourStats, th Thresholds) string {
	switch {
	case st.Total < th.MinSignals:
		return RecInsufficient
	case st.LossRate > th.MaxLossRate:
		return RecPause
	case st.G1Rate > th.MinG1Rate && st.FirstRate < th.MaxFirstForG1:
		return RecMartingale
	case st.FirstRate > th.MinFirstRate:
		return RecInfinity
	default:
		return RecWait
	}
}

// StrategyResult replays the hour's signals under the strategy a quick
// recommendation names.
func StrategyResult(rec string, signals []models.Signal) string {
	var st models.StrategyType
	switch rec {
	case RecMartingale:
		st = models.StrategyMartingaleConservative
	case RecInfinity:
		st = models.StrategyInfinityConservative
	default:
		return NoOperations
	}
	outcome, _ := strategy.RunSession(st, signals)
	return string(outcome)
}

// hourFinancials fills the fixed-stake P&L of the hour. MaxRisk is the sum
// of the stakes at risk, a loss risking the G2 stake.
func hourFinancials(st *models.HourStats, signals []models.Signal, capital float64) {
	pnl, risk := decimal.Zero, decimal.Zero
	for _, s := range signals {
		p := strategy.SignalPnL(s)
		pnl = pnl.Add(p)
		risk = risk.Add(p.Abs())
	}
	st.PnL = pnl.InexactFloat64()
	st.MaxRisk = risk.InexactFloat64()
	st.Operations = len(signals)
	if capital > 0 {
		st.ROIPercent = pnl.Div(decimal.NewFromFloat(capital)).Mul(decimal.NewFromInt(100)).InexactFloat64()
	}
}

// LastHours returns the signals within d before now, keeping their order.
func LastHours(signals []models.Signal, now time.Time, d time.Duration) []models.Signal {
	cutoff := now.Add(-d)
	out := make([]models.Signal, 0, len(signals))
	for _, s := range signals {
		if !s.Timestamp.Before(cutoff) && !s.Timestamp.After(now) {
			out = append(out, s)
		}
	}
	return out
}
