package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidSignal       = errors.New("invalid signal")
	ErrOutsideTradingHours = errors.New("outside trading hours")
	ErrNoSignals           = errors.New("no signals")
	ErrNotFound            = errors.New("not found")
	ErrInvalidRequest      = errors.New("invalid request")
)

// RecordError describes one record that was skipped.
type RecordError struct {
	Index  int
	Signal Signal
	Err    error
}

func (e RecordError) Error() string {
	return fmt.Sprintf("record %d: %v", e.Index, e.Err)
}

func (e RecordError) Unwrap() error { return e.Err }

// RecordErrors collects skipped records. It is returned alongside a valid
// result so callers can report bad input without losing the rest of the day.
type RecordErrors struct {
	Records []RecordError
}

func (e *RecordErrors) Error() string {
	if len(e.Records) == 1 {
		return "1 malformed record skipped: " + e.Records[0].Error()
	}
	msgs := make([]string, 0, len(e.Records))
	for _, r := range e.Records {
		msgs = append(msgs, r.Error())
	}
	return fmt.Sprintf("%d malformed records skipped: %s", len(e.Records), strings.Join(msgs, "; "))
}

// Add appends a skipped record.
func (e *RecordErrors) Add(index int, s Signal, err error) {
	e.Records = append(e.Records, RecordError{Index: index, Signal: s, Err: err})
}

// OrNil returns nil when nothing was recorded so the result can be returned as error.
func (e *RecordErrors) OrNil() error {
	if e == nil || len(e.Records) == 0 {
		return nil
	}
	return e
}
