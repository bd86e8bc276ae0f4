package models

import (
	"fmt"
	"time"
)

// StrategyType is the closed set of strategies the policy can recommend.
type StrategyType int

const (
	StrategyPause StrategyType = iota
	StrategyMartingaleConservative
	StrategyInfinityConservative
)

// Strategies lists every strategy in declaration order.
var Strategies = []StrategyType{StrategyPause, StrategyMartingaleConservative, StrategyInfinityConservative}

func (s StrategyType) String() string {
	switch s {
	case StrategyPause:
		return "pause"
	case StrategyMartingaleConservative:
		return "martingale_conservative"
	case StrategyInfinityConservative:
		return "infinity_conservative"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// Label is the short upper-case name used in reports and logs.
func (s StrategyType) Label() string {
	switch s {
	case StrategyPause:
		return "PAUSE"
	case StrategyMartingaleConservative:
		return "MARTINGALE"
	case StrategyInfinityConservative:
		return "INFINITY"
	default:
		return "UNKNOWN"
	}
}

// Trades reports whether the strategy places operations at all.
func (s StrategyType) Trades() bool {
	return s == StrategyMartingaleConservative || s == StrategyInfinityConservative
}

func (s StrategyType) MarshalText() ([]byte, error) {
	switch s {
	case StrategyPause, StrategyMartingaleConservative, StrategyInfinityConservative:
		return []byte(s.String()), nil
	default:
		return nil, fmt.Errorf("unknown strategy %d", int(s))
	}
}

func (s *StrategyType) UnmarshalText(b []byte) error {
	v, err := ParseStrategy(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseStrategy accepts the text form or the short label.
func ParseStrategy(v string) (StrategyType, error) {
	switch v {
	case "pause", "PAUSE":
		return StrategyPause, nil
	case "martingale_conservative", "MARTINGALE", "martingale":
		return StrategyMartingaleConservative, nil
	case "infinity_conservative", "INFINITY", "infinity":
		return StrategyInfinityConservative, nil
	default:
		return StrategyPause, fmt.Errorf("unknown strategy %q", v)
	}
}

// StrategyMetrics are the static characteristics of a trading strategy.
type StrategyMetrics struct {
	WinRate        float64 `json:"win_rate"`
	ROIMonthly     float64 `json:"roi_monthly"`
	RiskPerSession float64 `json:"risk_per_session"`
	MaxAttempts    int     `json:"max_attempts"`
	ProfitPerWin   float64 `json:"profit_per_win"`
}

// StrategyCatalog holds the metrics of the strategies that trade.
var StrategyCatalog = map[StrategyType]StrategyMetrics{
	StrategyMartingaleConservative: {WinRate: 78.7, ROIMonthly: 56.0, RiskPerSession: 36.0, MaxAttempts: 2, ProfitPerWin: 4.0},
	StrategyInfinityConservative:   {WinRate: 92.3, ROIMonthly: 45.1, RiskPerSession: 49.0, MaxAttempts: 7, ProfitPerWin: 6.0},
}

// Operation is a grouped trading attempt derived from one or more signals.
type Operation struct {
	Asset     string    `json:"asset"`
	Timestamp time.Time `json:"timestamp"`
	Result    Result    `json:"result"`
	Attempts  int       `json:"attempts"`
}

// MarketConditions is the snapshot produced by one analysis.
type MarketConditions struct {
	TotalOperations         int          `json:"total_operations"`
	FirstAttemptSuccessRate float64      `json:"first_attempt_success_rate"`
	G1RecoveryRate          float64      `json:"g1_recovery_rate"`
	G2PlusStopRate          float64      `json:"g2_plus_stop_rate"`
	RecommendedStrategy     StrategyType `json:"recommended_strategy"`
	ConfidenceLevel         float64      `json:"confidence_level"`
	AnalysisPeriod          string       `json:"analysis_period"`
}

// AnalysisRecord is one entry of the strategy history.
type AnalysisRecord struct {
	Timestamp  time.Time        `json:"timestamp"`
	Conditions MarketConditions `json:"conditions"`
	Changed    bool             `json:"changed"`
}

// StrategyInfo describes the live strategy state.
type StrategyInfo struct {
	Strategy        *StrategyType    `json:"strategy"`
	Status          string           `json:"status"`
	LastAnalysis    *time.Time       `json:"last_analysis,omitempty"`
	Metrics         *StrategyMetrics `json:"metrics,omitempty"`
	RecentAnalyses  []AnalysisRecord `json:"recent_analyses"`
	TotalAnalyses   int              `json:"total_analyses"`
	StrategyChanges int              `json:"strategy_changes"`
}
