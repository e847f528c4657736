package domain

import (
	"fmt"
	"math"
)

// CalendarParams describe how a threshold calendar is derived from a baseline.
type CalendarParams struct {
	// WindowRadius is the half-width of the centered day window; a 5-day
	// window has radius 2.
	WindowRadius int
	// Percentile in [0, 100].
	Percentile float64
	Method     QuantileMethod
	DayIndex   DayIndexMode
}

// Validate rejects parameters that cannot produce a calendar.
func (p CalendarParams) Validate() error {
	if p.WindowRadius < 0 || 2*p.WindowRadius+1 > CalendarDays {
		return fmt.Errorf("%w: %d", ErrWindowRadius, p.WindowRadius)
	}
	if math.IsNaN(p.Percentile) || p.Percentile < 0 || p.Percentile > 100 {
		return fmt.Errorf("%w: %g", ErrPercentile, p.Percentile)
	}
	if _, err := ParseQuantileMethod(string(p.Method)); err != nil {
		return err
	}
	if _, err := ParseDayIndexMode(string(p.DayIndex)); err != nil {
		return err
	}
	return nil
}

// Key is a stable identifier for the parameter set, used for caching.
func (p CalendarParams) Key() string {
	method, _ := ParseQuantileMethod(string(p.Method))
	mode, _ := ParseDayIndexMode(string(p.DayIndex))
	return fmt.Sprintf("r%d_p%g_%s_%s", p.WindowRadius, p.Percentile, method, mode)
}

// Calendar holds one percentile threshold grid per day-of-year slot. It is
// read-only once built.
type Calendar struct {
	Params CalendarParams
	Days   []Grid
}

// Threshold returns the grid for day-of-year slot d.
func (c *Calendar) Threshold(d int) Grid { return c.Days[d] }

// Shape returns a zero-valued grid carrying the calendar's dimensions.
func (c *Calendar) Shape() Grid {
	if len(c.Days) == 0 {
		return Grid{}
	}
	return Grid{Height: c.Days[0].Height, Width: c.Days[0].Width}
}

// Validate checks slot count and co-registration of every entry.
func (c *Calendar) Validate() error {
	if len(c.Days) != CalendarDays {
		return fmt.Errorf("%w: calendar has %d slots, want %d", ErrShapeMismatch, len(c.Days), CalendarDays)
	}
	ref := c.Days[0]
	for d, g := range c.Days {
		if err := g.check(); err != nil {
			return fmt.Errorf("calendar day %d: %w", d, err)
		}
		if !g.SameShape(ref) {
			return shapeError(fmt.Sprintf("calendar day %d", d), ref, g)
		}
	}
	return nil
}

// EmptySlots counts pixel-days whose threshold is no-data.
func (c *Calendar) EmptySlots() int {
	n := 0
	for _, g := range c.Days {
		for _, v := range g.Values {
			if IsNoData(v) {
				n++
			}
		}
	}
	return n
}
