package tradingcal

import "time"

// US market holidays that fall on fixed dates. Floating holidays (Memorial
// Day, Thanksgiving, etc.) are approximated away; the generator only needs a
// calendar that looks right, not one that is exchange-exact.
var fixedHolidays = []struct {
	month time.Month
	day   int
}{
	{time.January, 1},   // New Year's Day
	{time.June, 19},     // Juneteenth
	{time.July, 4},      // Independence Day
	{time.December, 25}, // Christmas
}

var holidaySet map[[2]int]bool

func init() {
	holidaySet = make(map[[2]int]bool, len(fixedHolidays))
	for _, h := range fixedHolidays {
		holidaySet[[2]int{int(h.month), h.day}] = true
	}
}

// IsHoliday returns true if the date (in UTC) is a fixed-date market holiday.
func IsHoliday(t time.Time) bool {
	u := t.UTC()
	return holidaySet[[2]int{int(u.Month()), u.Day()}]
}
