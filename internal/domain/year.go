package domain

import (
	"fmt"
	"time"
)

// Stack is an ordered run of daily grids with the calendar date of each band.
type Stack struct {
	Dates []time.Time
	Days  []Grid
}

// Len is the number of days in the stack.
func (s Stack) Len() int { return len(s.Days) }

// Head returns the first n days (or fewer if the stack is shorter).
func (s Stack) Head(n int) Stack {
	if n < 0 {
		n = 0
	}
	if n > len(s.Days) {
		n = len(s.Days)
	}
	return Stack{Dates: s.Dates[:n], Days: s.Days[:n]}
}

// check verifies dates line up with grids and every grid shares one shape.
// It returns the common shape, or a zero grid for an empty stack.
func (s Stack) check() (Grid, error) {
	if len(s.Dates) != len(s.Days) {
		return Grid{}, fmt.Errorf("%w: %d dates for %d grids", ErrShapeMismatch, len(s.Dates), len(s.Days))
	}
	if len(s.Days) == 0 {
		return Grid{}, nil
	}
	ref := s.Days[0]
	for i, g := range s.Days {
		if err := g.check(); err != nil {
			return Grid{}, fmt.Errorf("day %d: %w", i, err)
		}
		if !g.SameShape(ref) {
			return Grid{}, shapeError(fmt.Sprintf("day %d", i), ref, g)
		}
	}
	return ref, nil
}

// YearRecord is one calendar year of daily grids.
type YearRecord struct {
	Year int
	Stack
}

// NewYearRecord builds a record whose dates are the consecutive days of year.
func NewYearRecord(year int, days []Grid) YearRecord {
	return YearRecord{Year: year, Stack: Stack{Dates: YearDates(year)[:min(len(days), DaysInYear(year))], Days: days}}
}

// Validate checks the day count and that all grids are co-registered.
func (y YearRecord) Validate() (Grid, error) {
	if n := len(y.Days); n != 365 && n != 366 {
		return Grid{}, fmt.Errorf("%w: year %d has %d", ErrDayCount, y.Year, n)
	}
	ref, err := y.check()
	if err != nil {
		return Grid{}, fmt.Errorf("year %d: %w", y.Year, err)
	}
	return ref, nil
}
