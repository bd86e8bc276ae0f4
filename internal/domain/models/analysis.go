package models

import "time"

// ConditionsReport is the market condition analysis of an hour range of a day.
type ConditionsReport struct {
	Date       string           `json:"date"`
	FromHour   int              `json:"from_hour"`
	ToHour     int              `json:"to_hour"`
	Signals    int              `json:"signals"`
	Skipped    int              `json:"skipped"`
	Conditions MarketConditions `json:"conditions"`
	Status     string           `json:"status"`
	Cached     bool             `json:"cached"`
}

// DayOverview bundles the reports of one day. Sections that failed are
// listed in Errors and left empty.
type DayOverview struct {
	Date       string            `json:"date"`
	Timestamp  time.Time         `json:"timestamp"`
	Signals    *SignalStats      `json:"signals,omitempty"`
	Conditions *ConditionsReport `json:"conditions,omitempty"`
	Hours      []HourStats       `json:"hours,omitempty"`
	Financial  *FinancialMetrics `json:"financial,omitempty"`
	Errors     map[string]string `json:"errors,omitempty"`
}

// ExtractResult is the outcome of running the extractor on a text.
type ExtractResult struct {
	Matched bool   `json:"matched"`
	Pattern string `json:"pattern,omitempty"`
	Result  Result `json:"result,omitempty"`
	Attempt int    `json:"attempt,omitempty"`
	Asset   string `json:"asset,omitempty"`
}

// DaySignals is the stored signals of one day with their statistics.
type DaySignals struct {
	Date    string      `json:"date"`
	Signals []Signal    `json:"signals"`
	Stats   SignalStats `json:"stats"`
}
