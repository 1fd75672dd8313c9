// Package dates holds the calendar-day helpers used by the transaction
// history filter. All ledger timestamps are written in UTC, so day
// boundaries are computed in UTC as well.
package dates

import (
	"fmt"
	"time"
)

const dayLayout = "2006-01-02"

// ParseDay parses a YYYY-MM-DD calendar date.
func ParseDay(s string) (time.Time, error) {
	t, err := time.Parse(dayLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing date %q: %w", s, err)
	}
	return t, nil
}

// DayBounds returns the half-open UTC interval [00:00, next day 00:00)
// containing t.
func DayBounds(t time.Time) (from, to time.Time) {
	t = t.UTC()
	from = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 0, 1)
}

// SameDay reports whether ts falls on the same UTC calendar day as day.
func SameDay(ts, day time.Time) bool {
	from, to := DayBounds(day)
	ts = ts.UTC()
	return !ts.Before(from) && ts.Before(to)
}
