package models

import (
	"fmt"
	"time"
)

// MonthLayout is the wire format for billing periods at API boundaries.
const MonthLayout = "2006-01"

// ParseMonth converts a YYYY-MM string into a first-of-month UTC date.
func ParseMonth(raw string) (time.Time, error) {
	t, err := time.Parse(MonthLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse month %q: %w", raw, err)
	}
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC), nil
}

// FormatMonth renders a period date back into YYYY-MM form.
func FormatMonth(t time.Time) string {
	return t.Format(MonthLayout)
}

// MonthStart normalises any timestamp to the first of its month in UTC.
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// NextMonth returns the exclusive upper bound of the month containing t.
func NextMonth(t time.Time) time.Time {
	return MonthStart(t).AddDate(0, 1, 0)
}

// DaysInMonth returns the calendar length of the month containing t.
func DaysInMonth(t time.Time) int {
	start := MonthStart(t)
	return int(NextMonth(t).Sub(start).Hours() / 24)
}

// MonthContains reports whether d falls inside the month starting at monthStart.
func MonthContains(monthStart, d time.Time) bool {
	start := MonthStart(monthStart)
	return !d.Before(start) && d.Before(NextMonth(start))
}

// IsFutureMonth reports whether month starts after the month containing asOf.
func IsFutureMonth(month, asOf time.Time) bool {
	return MonthStart(month).After(MonthStart(asOf))
}
