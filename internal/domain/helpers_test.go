package domain

import (
	"math"
	"math/rand/v2"
	"testing"
)

// --- helpers ---

// bools turns a pattern like "..xxx." into hit flags ('x' = hit).
func bools(pattern string) []bool {
	out := make([]bool, len(pattern))
	for i, c := range pattern {
		out[i] = c == 'x'
	}
	return out
}

// repeat builds a series of n copies of v.
func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func concat(parts ...[]float64) []float64 {
	var out []float64
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// constYear returns a full year with every pixel of every day set to v.
func constYear(year, height, width int, v float64) YearRecord {
	days := make([]Grid, DaysInYear(year))
	for i := range days {
		days[i] = FilledGrid(height, width, v)
	}
	return NewYearRecord(year, days)
}

// pixelYear returns a 1x1 year whose daily samples are series.
func pixelYear(t *testing.T, year int, series []float64) YearRecord {
	t.Helper()
	if len(series) != DaysInYear(year) {
		t.Fatalf("series has %d days, year %d has %d", len(series), year, DaysInYear(year))
	}
	days := make([]Grid, len(series))
	for i, v := range series {
		days[i] = FilledGrid(1, 1, v)
	}
	return NewYearRecord(year, days)
}

// pixelHead returns the first len(series) days of year as a 1x1 stack.
func pixelHead(year int, series []float64) Stack {
	days := make([]Grid, len(series))
	for i, v := range series {
		days[i] = FilledGrid(1, 1, v)
	}
	return Stack{Dates: YearDates(year)[:len(series)], Days: days}
}

// constCalendar returns a calendar with every threshold set to v.
func constCalendar(height, width int, v float64) *Calendar {
	cal := &Calendar{
		Params: CalendarParams{WindowRadius: 2, Percentile: 10, Method: QuantileLinear, DayIndex: DayIndexOrdinal},
		Days:   make([]Grid, CalendarDays),
	}
	for d := range cal.Days {
		cal.Days[d] = FilledGrid(height, width, v)
	}
	return cal
}

// randomYear fills a year with seeded noise around 5 and optional holes.
func randomYear(rng *rand.Rand, year, height, width int, holeRate float64) YearRecord {
	days := make([]Grid, DaysInYear(year))
	for i := range days {
		g := NewGrid(height, width)
		for j := range g.Values {
			if rng.Float64() < holeRate {
				g.Values[j] = math.NaN()
				continue
			}
			g.Values[j] = 5 + rng.NormFloat64()
		}
		days[i] = g
	}
	return NewYearRecord(year, days)
}

func defaultSpellParams() SpellParams {
	return SpellParams{MinRun: 6, Comparison: LessThan, DayIndex: DayIndexOrdinal}
}
