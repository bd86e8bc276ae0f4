package util

import (
	"fmt"
	"strconv"
	"time"
)

// DayLayout is the date format used in file names, queries and reports.
const DayLayout = "2006-01-02"

// ParseTime tries RFC3339, RFC3339Nano, "2006-01-02 15:04:05" (in loc) and unix seconds.
func ParseTime(s string, loc *time.Location) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	if t, err := time.ParseInLocation("2006-01-02 15:04:05", s, loc); err == nil {
		return t, true
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return time.Unix(ts, 0).In(loc), true
	}
	return time.Time{}, false
}

// ParseTimeDefault parses s or returns def.
func ParseTimeDefault(s string, loc *time.Location, def time.Time) time.Time {
	if t, ok := ParseTime(s, loc); ok {
		return t
	}
	return def
}

// ParseDay parses a YYYY-MM-DD date as midnight in loc. An empty string is today.
func ParseDay(s string, loc *time.Location, now time.Time) (time.Time, error) {
	if s == "" {
		return StartOfDay(now, loc), nil
	}
	d, err := time.ParseInLocation(DayLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	return d, nil
}

// StartOfDay is midnight of t's calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// DayBounds returns [start, end) of day in loc.
func DayBounds(day time.Time, loc *time.Location) (time.Time, time.Time) {
	start := StartOfDay(day, loc)
	return start, start.AddDate(0, 0, 1)
}

// HourBounds returns [from, to) covering whole hours fromHour..toHour of day.
func HourBounds(day time.Time, loc *time.Location, fromHour, toHour int) (time.Time, time.Time) {
	start := StartOfDay(day, loc)
	return start.Add(time.Duration(fromHour) * time.Hour), start.Add(time.Duration(toHour+1) * time.Hour)
}

// Days lists every calendar day from..to inclusive, at midnight in loc.
func Days(from, to time.Time, loc *time.Location) []time.Time {
	from, to = StartOfDay(from, loc), StartOfDay(to, loc)
	var out []time.Time
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}
