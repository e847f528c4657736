package domain

import (
	"fmt"
	"sort"
)

// BuildCalendar derives a day-of-year percentile calendar from baseline years.
//
// For every slot d the samples of all baseline days whose slot lies in
// [d-WindowRadius, d+WindowRadius] (modulo 366) are pooled per pixel, no-data
// is dropped, and the requested percentile is taken. A pixel whose pool is
// empty gets a no-data threshold. Slot 365 is only fed by leap years.
//
// This is the one full pass over the baseline; callers should build once and
// reuse the result for every target year.
func BuildCalendar(baseline []YearRecord, params CalendarParams, tiling Tiling) (*Calendar, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if len(baseline) == 0 {
		return nil, ErrEmptyBaseline
	}
	params.Method, _ = ParseQuantileMethod(string(params.Method))
	params.DayIndex, _ = ParseDayIndexMode(string(params.DayIndex))

	var ref Grid
	bySlot := make([][]Grid, CalendarDays)
	for i, y := range baseline {
		shape, err := y.Validate()
		if err != nil {
			return nil, fmt.Errorf("baseline: %w", err)
		}
		if i == 0 {
			ref = shape
		} else if !shape.SameShape(ref) {
			return nil, shapeError(fmt.Sprintf("baseline year %d", y.Year), ref, shape)
		}
		for t, date := range y.Dates {
			d := params.DayIndex.Index(date)
			bySlot[d] = append(bySlot[d], y.Days[t])
		}
	}

	windows := make([][]Grid, CalendarDays)
	for d := range windows {
		for o := -params.WindowRadius; o <= params.WindowRadius; o++ {
			windows[d] = append(windows[d], bySlot[wrapDay(d+o)]...)
		}
	}

	height, width := ref.Height, ref.Width
	cal := &Calendar{Params: params, Days: make([]Grid, CalendarDays)}
	for d := range cal.Days {
		cal.Days[d] = NewGrid(height, width)
	}

	err := tiling.forEachTile(height, func(r0, r1 int) error {
		var pool []float64
		for d, grids := range windows {
			out := cal.Days[d].Values
			for idx := r0 * width; idx < r1*width; idx++ {
				pool = pool[:0]
				for _, g := range grids {
					if v := g.Values[idx]; !IsNoData(v) {
						pool = append(pool, v)
					}
				}
				sort.Float64s(pool)
				out[idx] = sortedPercentile(pool, params.Percentile, params.Method)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cal, nil
}
