package utils

import (
	"fmt"
	"time"

	"github.com/julianstephens/habitmap/internal/constants"
)

// LoadLocation loads a timezone location from an IANA timezone name.
// If the timezone is "Local" or empty, it returns the system's local timezone.
func LoadLocation(timezone string) (*time.Location, error) {
	if timezone == "" || timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(timezone)
}

// DateKey formats t as YYYY-MM-DD using t's own wall clock, never UTC.
func DateKey(t time.Time) string {
	return t.Format(constants.DateFormat)
}

// ParseDate parses a YYYY-MM-DD key as midnight in loc.
func ParseDate(key string, loc *time.Location) (time.Time, error) {
	t, err := time.Parse(constants.DateFormat, key)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (expected YYYY-MM-DD): %w", key, err)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc), nil
}

// ValidDateKey reports whether key is a well-formed calendar date
func ValidDateKey(key string) bool {
	t, err := time.Parse(constants.DateFormat, key)
	return err == nil && t.Format(constants.DateFormat) == key
}

// StartOfDay truncates t to local midnight
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// AddDays moves a calendar date by n days. Uses AddDate so DST shifts never
// skip or repeat a date.
func AddDays(t time.Time, n int) time.Time {
	return StartOfDay(t).AddDate(0, 0, n)
}

// ShiftKey moves a date key by n days
func ShiftKey(key string, n int) (string, error) {
	t, err := ParseDate(key, time.UTC)
	if err != nil {
		return "", err
	}
	return DateKey(t.AddDate(0, 0, n)), nil
}

// WeekStart returns the Sunday on or before t
func WeekStart(t time.Time) time.Time {
	day := StartOfDay(t)
	return day.AddDate(0, 0, -int(day.Weekday()))
}

// DaysBetween counts whole calendar days from a to b (negative if b is before a)
func DaysBetween(a, b time.Time) int {
	ua := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	ub := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}

// EnumerateDays lists every date from start to end inclusive
func EnumerateDays(start, end time.Time) []time.Time {
	start = StartOfDay(start)
	end = StartOfDay(end)
	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}
