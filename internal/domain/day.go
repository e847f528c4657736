package domain

import (
	"fmt"
	"time"
)

// CalendarDays is the number of day-of-year slots, leap day included.
const CalendarDays = 366

// DayIndexMode selects how a sample's date maps to a day-of-year slot.
type DayIndexMode string

const (
	// DayIndexOrdinal counts days since Jan 1 of the sample's year. Slot 365
	// is only reached by Dec 31 of leap years.
	DayIndexOrdinal DayIndexMode = "ordinal"

	// DayIndexCalendar keeps calendar dates aligned across years: Feb 29 is
	// slot 365 and later dates of a leap year use their non-leap slot.
	DayIndexCalendar DayIndexMode = "calendar"
)

// ParseDayIndexMode validates a mode name. Empty selects ordinal.
func ParseDayIndexMode(s string) (DayIndexMode, error) {
	switch DayIndexMode(s) {
	case "", DayIndexOrdinal:
		return DayIndexOrdinal, nil
	case DayIndexCalendar:
		return DayIndexCalendar, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrDayIndex, s)
	}
}

// Index returns the 0-based day-of-year slot for t.
func (m DayIndexMode) Index(t time.Time) int {
	ord := t.YearDay() - 1
	if m != DayIndexCalendar || !IsLeapYear(t.Year()) {
		return ord
	}
	switch {
	case t.Month() == time.February && t.Day() == 29:
		return CalendarDays - 1
	case ord > 59:
		return ord - 1
	default:
		return ord
	}
}

// IsLeapYear reports whether year has a Feb 29.
func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// DaysInYear returns 365 or 366.
func DaysInYear(year int) int {
	if IsLeapYear(year) {
		return 366
	}
	return 365
}

// YearDates returns every date of year at midnight UTC.
func YearDates(year int) []time.Time {
	n := DaysInYear(year)
	dates := make([]time.Time, n)
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	for i := range dates {
		dates[i] = start.AddDate(0, 0, i)
	}
	return dates
}

// wrapDay folds d into [0, CalendarDays).
func wrapDay(d int) int {
	d %= CalendarDays
	if d < 0 {
		d += CalendarDays
	}
	return d
}
