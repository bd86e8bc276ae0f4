package models

import "time"

// SessionOutcome is the result of replaying one hour under a strategy.
type SessionOutcome string

const (
	OutcomeVictory    SessionOutcome = "Vitória"
	OutcomeDefeat     SessionOutcome = "Derrota"
	OutcomeIncomplete SessionOutcome = "Incompleto"
)

// LogAction is what the simulator did in a given hour.
type LogAction string

const (
	ActionNoOperation LogAction = "Sem Operação"
	ActionDailyStop   LogAction = "Stop Diário"
	ActionNoSignals   LogAction = "Sem Sinais"
	ActionOperation   LogAction = "Operação"
)

// TradingLogEntry is one hour of a simulated day.
type TradingLogEntry struct {
	Hour          int            `json:"hour"`
	Strategy      StrategyType   `json:"strategy"`
	Action        LogAction      `json:"action"`
	Result        SessionOutcome `json:"result,omitempty"`
	PnL           float64        `json:"pnl"`
	CumulativePnL float64        `json:"cumulative_pnl"`
	Reason        string         `json:"reason"`
}

// DayResult is the outcome of simulating one trading day.
type DayResult struct {
	Date           string            `json:"date"`
	TradingLog     []TradingLogEntry `json:"trading_log"`
	FinalPnL       float64           `json:"final_pnl"`
	EndReason      string            `json:"end_reason"`
	HoursTraded    int               `json:"hours_traded"`
	TargetAchieved bool              `json:"target_achieved"`
	StoppedOut     bool              `json:"stopped_out"`
}

// DaySummary aggregates a simulated day.
type DaySummary struct {
	TotalPnL       float64        `json:"total_pnl"`
	HoursOperated  int            `json:"hours_operated"`
	TargetAchieved bool           `json:"target_achieved"`
	StopHit        bool           `json:"stop_hit"`
	EndReason      string         `json:"end_reason"`
	AvgPnLPerHour  float64        `json:"avg_pnl_per_hour"`
	StrategiesUsed map[string]int `json:"strategies_used"`
	WinRate        float64        `json:"win_rate"`
}

// OperationsStats counts the signals each strategy consumed during a day.
type OperationsStats struct {
	Martingale SessionCounts `json:"martingale"`
	Infinity   SessionCounts `json:"infinity"`
}

// SessionCounts are win/loss counts of consumed signals.
type SessionCounts struct {
	Operations int `json:"operations"`
	Wins       int `json:"wins"`
	Losses     int `json:"losses"`
}

// HourStats is the breakdown of a single clock hour.
type HourStats struct {
	Hour           int     `json:"hour"`
	Total          int     `json:"total"`
	Wins           int     `json:"wins"`
	Losses         int     `json:"losses"`
	WinRate        float64 `json:"win_rate"`
	FirstRate      float64 `json:"first_rate"`
	G1Rate         float64 `json:"g1_rate"`
	LossRate       float64 `json:"loss_rate"`
	Recommendation string  `json:"recommendation"`
	// StrategyResult is the hour replayed under its own recommendation:
	// a SessionOutcome, or "Sem Operações" when the recommendation does not trade.
	StrategyResult string `json:"strategy_result"`

	// fixed-stake P&L of every signal of the hour
	PnL        float64 `json:"pnl"`
	ROIPercent float64 `json:"roi_percent"`
	MaxRisk    float64 `json:"max_risk"`
	Operations int     `json:"operations"`
}

// FinancialMetrics are portfolio-style statistics of a signal sequence
// replayed with the fixed attempt stakes.
type FinancialMetrics struct {
	InitialCapital  float64 `json:"initial_capital"`
	FinalCapital    float64 `json:"final_capital"`
	TotalPnL        float64 `json:"total_pnl"`
	ROI             float64 `json:"roi"`
	MaxDrawdown     float64 `json:"max_drawdown"`
	SharpeRatio     float64 `json:"sharpe_ratio"`
	MaxWinStreak    int     `json:"max_win_streak"`
	MaxLossStreak   int     `json:"max_loss_streak"`
	AvgPnLPerSignal float64 `json:"avg_pnl_per_signal"`
	MedianPnL       float64 `json:"median_pnl"`
	Trades          int     `json:"trades"`
}

// SimulationReport bundles everything produced for one simulated day.
type SimulationReport struct {
	ID         string           `json:"id"`
	Date       string           `json:"date"`
	Day        *DayResult       `json:"day"`
	Summary    DaySummary       `json:"summary"`
	Operations OperationsStats  `json:"operations"`
	Financial  FinancialMetrics `json:"financial"`
	Skipped    int              `json:"skipped"`
	CreatedAt  time.Time        `json:"created_at"`
}

// JobStatus is the lifecycle state of an asynchronous simulation.
type JobStatus string

const (
	JobPending JobStatus = "pending"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

// SimulationJob tracks a simulation requested through the queue.
type SimulationJob struct {
	ID        string            `json:"id"`
	Date      string            `json:"date"`
	Status    JobStatus         `json:"status"`
	Error     string            `json:"error,omitempty"`
	Report    *SimulationReport `json:"report,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// RangeSummary aggregates the simulated days of a date range.
type RangeSummary struct {
	From        string  `json:"from"`
	To          string  `json:"to"`
	Days        int     `json:"days"`
	TradedDays  int     `json:"traded_days"`
	TotalPnL    float64 `json:"total_pnl"`
	AvgDailyPnL float64 `json:"avg_daily_pnl"`
	TargetDays  int     `json:"target_days"`
	StopDays    int     `json:"stop_days"`
	WinningDays int     `json:"winning_days"`
	LosingDays  int     `json:"losing_days"`
}
