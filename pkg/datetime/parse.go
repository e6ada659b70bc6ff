// Package datetime provides date and time utility functions.
package datetime

import (
	"strings"
	"time"

	"github.com/iwvelando/top-planner/pkg/constants"
)

const (
	// DateLayout is the format exchanged with the backend.
	DateLayout = constants.DateLayout

	// DisplayLayout is the format shown in schedules and reports.
	DisplayLayout = constants.DisplayDateLayout
)

// MustParseTime parses a date string using the given layout and panics on error.
// This is intended for use in tests where the date string is known to be valid.
func MustParseTime(layout, dateStr string) time.Time {
	t, err := time.Parse(layout, dateStr)
	if err != nil {
		panic(err)
	}
	return t
}

// ParseDate parses a YYYY-MM-DD date. An empty string yields the date part of
// fallback.
func ParseDate(value string, fallback time.Time) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return StartOfDay(fallback), nil
	}
	// Backends sometimes send full timestamps; only the date part matters.
	if len(trimmed) > len(DateLayout) {
		trimmed = trimmed[:len(DateLayout)]
	}
	return time.Parse(DateLayout, trimmed)
}

// StartOfDay truncates a time to midnight UTC of the same calendar day.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// AddMonths offsets a date by the given number of months. Day overflow
// normalizes forward, so Jan 31 + 1 month is Mar 3 (or Mar 2 in a leap year).
func AddMonths(t time.Time, months int) time.Time {
	return t.AddDate(0, months, 0)
}

// FormatDate renders a date for backend submission.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// FormatDisplay renders a date for schedules (e.g., "Mar 05, 2026").
func FormatDisplay(t time.Time) string {
	return t.Format(DisplayLayout)
}

// MonthKey renders the YYYY-MM bucket a date falls into.
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}
