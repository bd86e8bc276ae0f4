package models

import (
	"fmt"
	"strings"
	"time"
)

// Result is the outcome reported by a signal.
type Result string

const (
	ResultWin  Result = "W"
	ResultLoss Result = "L"
)

// IsValid reports whether r is one of the known outcomes.
func (r Result) IsValid() bool {
	return r == ResultWin || r == ResultLoss
}

// Signal is a single outcome posted in the signal channel.
// Attempt is 1 (first try), 2 (G1) or 3 (G2) for wins and 0 for losses.
type Signal struct {
	Timestamp time.Time `json:"timestamp" db:"timestamp" validate:"required"`
	Asset     string    `json:"asset" db:"asset" validate:"required,contains=/"`
	Result    Result    `json:"result" db:"result" validate:"required,oneof=W L"`
	Attempt   int       `json:"attempt,omitempty" db:"attempt" validate:"gte=0,lte=3"`
}

// IsWin reports whether the signal is a win.
func (s Signal) IsWin() bool { return s.Result == ResultWin }

// Key identifies a signal for de-duplication.
func (s Signal) Key() string {
	return fmt.Sprintf("%d|%s|%s|%d", s.Timestamp.Unix(), s.Asset, s.Result, s.Attempt)
}

// Validate checks the win/attempt invariant. Struct tags are checked by the
// validator in the HTTP layer; this method holds the cross-field rules.
func (s Signal) Validate() error {
	if s.Timestamp.IsZero() {
		return fmt.Errorf("%w: missing timestamp", ErrInvalidSignal)
	}
	if !strings.Contains(s.Asset, "/") {
		return fmt.Errorf("%w: asset %q", ErrInvalidSignal, s.Asset)
	}
	switch s.Result {
	case ResultWin:
		if s.Attempt < 1 || s.Attempt > 3 {
			return fmt.Errorf("%w: win with attempt %d", ErrInvalidSignal, s.Attempt)
		}
	case ResultLoss:
		if s.Attempt != 0 {
			return fmt.Errorf("%w: loss with attempt %d", ErrInvalidSignal, s.Attempt)
		}
	default:
		return fmt.Errorf("%w: result %q", ErrInvalidSignal, s.Result)
	}
	return nil
}

// AttemptLabel renders the attempt as used in the CSV/record shape: empty for losses.
func (s Signal) AttemptLabel() string {
	if s.Attempt == 0 {
		return ""
	}
	return fmt.Sprintf("%d", s.Attempt)
}

// RawMessage is a chat message as received from a message source.
type RawMessage struct {
	ID     int64     `json:"id"`
	ChatID int64     `json:"chat_id"`
	Text   string    `json:"text"`
	Date   time.Time `json:"date"`
}

// SignalStats summarizes a set of signals.
type SignalStats struct {
	Total        int         `json:"total"`
	Wins         int         `json:"wins"`
	Losses       int         `json:"losses"`
	WinRate      float64     `json:"win_rate"`
	Attempts     map[int]int `json:"attempts"`
	UniqueAssets int         `json:"unique_assets"`
	First        time.Time   `json:"first,omitempty"`
	Last         time.Time   `json:"last,omitempty"`
}
