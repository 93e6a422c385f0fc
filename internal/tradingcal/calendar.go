// Package tradingcal answers one question for the synthetic data generator:
// is this calendar day a trading day. Weekends and a fixed holiday list are
// skipped so daily bars line up with a realistic exchange calendar.
package tradingcal

import "time"

// IsWeekday returns true if t is Mon-Fri.
func IsWeekday(t time.Time) bool {
	wd := t.UTC().Weekday()
	return wd >= time.Monday && wd <= time.Friday
}

// IsTradingDay returns true if t is a weekday and not a holiday.
func IsTradingDay(t time.Time) bool {
	return IsWeekday(t) && !IsHoliday(t)
}

// NextTradingDay returns the first trading day at or after t, at the same
// clock time.
func NextTradingDay(t time.Time) time.Time {
	d := t
	for i := 0; i < 10; i++ {
		if IsTradingDay(d) {
			return d
		}
		d = d.AddDate(0, 0, 1)
	}
	return d
}
