package strategy

import (
	"math"

	"SignalPilot/internal/domain/models"
	"SignalPilot/internal/domain/service"
)

var _ service.DecisionPolicy = (*Policy)(nil)

// Policy is the ordered rule cascade that picks a strategy from condition rates.
// It holds no state: equal inputs always give equal decisions.
type Policy struct {
	cfg Config
}

// NewPolicy creates a policy from cfg.
func NewPolicy(cfg Config) *Policy {
	return &Policy{cfg: cfg}
}

// MinOperations is the sample size below which the policy always pauses.
func (p *Policy) MinOperations() int { return p.cfg.MinOperations }

// Decide evaluates the rules in priority order; the first match wins.
func (p *Policy) Decide(total int, firstRate, g1Rate, g2StopRate float64) service.Decision {
	switch {
	case total < p.cfg.MinOperations:
		return service.Decision{Strategy: models.StrategyPause, Confidence: 30}
	case g2StopRate > p.cfg.G2PauseRate:
		return service.Decision{Strategy: models.StrategyPause, Confidence: math.Min(95, g2StopRate*2)}
	case g1Rate > p.cfg.G1MartingaleRate:
		return service.Decision{Strategy: models.StrategyMartingaleConservative, Confidence: math.Min(90, g1Rate+20)}
	case firstRate > p.cfg.FirstInfinityRate:
		return service.Decision{Strategy: models.StrategyInfinityConservative, Confidence: math.Min(85, firstRate+15)}
	}

	martingale := Score(models.StrategyMartingaleConservative, firstRate, g1Rate, g2StopRate)
	infinity := Score(models.StrategyInfinityConservative, firstRate, g1Rate, g2StopRate)
	confidence := math.Min(75, math.Abs(martingale-infinity)*10+50)
	if martingale > infinity {
		return service.Decision{Strategy: models.StrategyMartingaleConservative, Confidence: confidence}
	}
	return service.Decision{Strategy: models.StrategyInfinityConservative, Confidence: confidence}
}

// Score is the expected-value score used when no rule of the cascade applies.
func Score(s models.StrategyType, firstRate, g1Rate, g2StopRate float64) float64 {
	var adjusted, penalty float64
	switch s {
	case models.StrategyMartingaleConservative:
		adjusted = firstRate + 0.7*g1Rate
		penalty = 0.5 * g2StopRate
	case models.StrategyInfinityConservative:
		adjusted = 1.2 * firstRate
		penalty = 0.3 * g2StopRate
	case models.StrategyPause:
		return 0
	default:
		return 0
	}
	return math.Max(0, models.StrategyCatalog[s].ROIMonthly*adjusted/100-penalty)
}
