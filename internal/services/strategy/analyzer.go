package strategy

import (
	"fmt"

	"SignalPilot/internal/domain/models"
	"SignalPilot/internal/domain/service"
)

// NoDataPeriod is the period label of an empty analysis.
const NoDataPeriod = "Sem dados"

var _ service.ConditionsAnalyzer = (*Analyzer)(nil)

// Analyzer computes market conditions over a window of signals.
type Analyzer struct {
	cfg    Config
	policy service.DecisionPolicy
}

// NewAnalyzer creates an analyzer that asks policy for the recommendation.
func NewAnalyzer(cfg Config, policy service.DecisionPolicy) *Analyzer {
	if policy == nil {
		policy = NewPolicy(cfg)
	}
	return &Analyzer{cfg: cfg, policy: policy}
}

// Policy returns the decision policy in use.
func (a *Analyzer) Policy() service.DecisionPolicy { return a.policy }

// Analyze groups signals into operations and computes the condition rates.
func (a *Analyzer) Analyze(signals []models.Signal) models.MarketConditions {
	if len(signals) == 0 {
		return models.MarketConditions{RecommendedStrategy: models.StrategyPause, AnalysisPeriod: NoDataPeriod}
	}
	ops := GroupOperations(signals, a.cfg.LossWindow)
	return a.AnalyzeOperations(ops, a.period(signals))
}

// AnalyzeOperations computes the condition rates of already grouped operations.
func (a *Analyzer) AnalyzeOperations(ops []models.Operation, period string) models.MarketConditions {
	total := len(ops)
	if total == 0 {
		return models.MarketConditions{RecommendedStrategy: models.StrategyPause, AnalysisPeriod: NoDataPeriod}
	}

	var first, g1, deep int
	for _, op := range ops {
		if op.Result == models.ResultWin && op.Attempts == 1 {
			first++
		}
		if op.Result == models.ResultWin && op.Attempts == 2 {
			g1++
		}
		if op.Attempts >= 3 {
			deep++
		}
	}

	retried := total - first
	if retried < 1 {
		retried = 1
	}
	c := models.MarketConditions{
		TotalOperations:         total,
		FirstAttemptSuccessRate: pct(first, total),
		G1RecoveryRate:          pct(g1, retried),
		G2PlusStopRate:          pct(deep, total),
		AnalysisPeriod:          period,
	}
	d := a.policy.Decide(total, c.FirstAttemptSuccessRate, c.G1RecoveryRate, c.G2PlusStopRate)
	c.RecommendedStrategy = d.Strategy
	c.ConfidenceLevel = d.Confidence
	return c
}

func (a *Analyzer) period(signals []models.Signal) string {
	lo, hi := signals[0].Timestamp, signals[0].Timestamp
	for _, s := range signals[1:] {
		if s.Timestamp.Before(lo) {
			lo = s.Timestamp
		}
		if s.Timestamp.After(hi) {
			hi = s.Timestamp
		}
	}
	return fmt.Sprintf("%s-%s", lo.In(a.cfg.Location).Format("15:04"), hi.In(a.cfg.Location).Format("15:04"))
}

func pct(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d) * 100
}
