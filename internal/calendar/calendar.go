// Package calendar provides business-day date arithmetic for effective-date
// resolution and panel observation ranges. Weekends are the only non-trading
// days; exchange holidays are covered by the configurable safety buffer.
package calendar

import "time"

// Date builds a UTC civil date.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Normalize truncates a timestamp to its UTC civil date.
func Normalize(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// IsBusinessDay reports whether t falls on a weekday.
func IsBusinessDay(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// NextBusinessDay rolls t forward to the nearest weekday. A weekday is
// returned unchanged.
func NextBusinessDay(t time.Time) time.Time {
	t = Normalize(t)
	for !IsBusinessDay(t) {
		t = t.AddDate(0, 0, 1)
	}
	return t
}

// AddBusinessDays advances t by n weekdays. n = 0 returns the normalized
// input unchanged, weekend or not.
func AddBusinessDays(t time.Time, n int) time.Time {
	t = Normalize(t)
	for i := 0; i < n; i++ {
		t = t.AddDate(0, 0, 1)
		for !IsBusinessDay(t) {
			t = t.AddDate(0, 0, 1)
		}
	}
	return t
}

// Range returns every business day in [start, end] inclusive, ascending.
func Range(start, end time.Time) []time.Time {
	start = Normalize(start)
	end = Normalize(end)

	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if IsBusinessDay(d) {
			days = append(days, d)
		}
	}
	return days
}
