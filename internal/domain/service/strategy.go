package service

import (
	"time"

	"SignalPilot/internal/domain/models"
)

// ConditionsAnalyzer derives market conditions from a window of signals.
type ConditionsAnalyzer interface {
	Analyze(signals []models.Signal) models.MarketConditions
}

// DecisionPolicy maps condition rates to a strategy and a confidence level.
type DecisionPolicy interface {
	Decide(total int, firstRate, g1Rate, g2StopRate float64) Decision
	MinOperations() int
}

// Decision is the output of a DecisionPolicy.
type Decision struct {
	Strategy   models.StrategyType
	Confidence float64
}

// DaySimulator replays one trading day.
type DaySimulator interface {
	SimulateDay(day time.Time, signals []models.Signal) (*models.DayResult, error)
}
