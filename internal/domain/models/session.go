package models

import "time"

// SessionStats tracks a live trading session.
type SessionStats struct {
	ID              string        `json:"id"`
	StartTime       time.Time     `json:"start_time"`
	TotalSignals    int           `json:"total_signals"`
	StrategyChanges int           `json:"strategy_changes"`
	CurrentStrategy *StrategyType `json:"current_strategy"`
	AnalysisCount   int           `json:"analysis_count"`
}

// AnalysisEntry is what the archive keeps for every live analysis.
type AnalysisEntry struct {
	ID           string           `json:"id"`
	Timestamp    time.Time        `json:"timestamp"`
	Conditions   MarketConditions `json:"conditions"`
	SessionStats SessionStats     `json:"session_stats"`
}

// SessionReport is written when a live session ends.
type SessionReport struct {
	SessionStats
	EndTime     time.Time    `json:"end_time"`
	Duration    string       `json:"duration"`
	Strategy    StrategyInfo `json:"strategy"`
	SignalStats SignalStats  `json:"signal_stats"`
}

// StoreStats is the summary returned by signal stores.
type StoreStats struct {
	Total         int         `json:"total"`
	UniqueAssets  int         `json:"unique_assets"`
	First         *time.Time  `json:"first,omitempty"`
	Last          *time.Time  `json:"last,omitempty"`
	Wins          int         `json:"wins"`
	Losses        int         `json:"losses"`
	WinsByAttempt map[int]int `json:"wins_by_attempt"`
}

// LiveStatus is the live trader snapshot served by the API.
type LiveStatus struct {
	Strategy     StrategyInfo `json:"strategy"`
	Session      SessionStats `json:"session"`
	Buffered     int          `json:"buffered"`
	TradingHours bool         `json:"trading_hours"`
}
