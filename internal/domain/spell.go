package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Comparison is the direction a sample must beat its threshold to count as a hit.
type Comparison string

const (
	LessThan    Comparison = "less"
	GreaterThan Comparison = "greater"
)

// ParseComparison accepts "less"/"lt"/"<" and "greater"/"gt"/">".
func ParseComparison(s string) (Comparison, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "less", "lt", "<":
		return LessThan, nil
	case "greater", "gt", ">":
		return GreaterThan, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrComparison, s)
	}
}

// Hit reports whether sample beats threshold. Both must be valid.
func (c Comparison) Hit(sample, threshold float64) bool {
	if c == GreaterThan {
		return sample > threshold
	}
	return sample < threshold
}

// CarryState holds, per pixel, the length of a qualifying run that crossed the
// end of the previous year and must be absorbed by the next one. Zero means
// nothing is pending. The zero value is an empty state of any shape.
type CarryState struct {
	Height  int
	Width   int
	Pending []int
}

// NewCarryState returns an empty state for a height×width grid.
func NewCarryState(height, width int) CarryState {
	return CarryState{Height: height, Width: width, Pending: make([]int, height*width)}
}

// At returns the pending length for pixel idx.
func (c CarryState) At(idx int) int {
	if c.Pending == nil {
		return 0
	}
	return c.Pending[idx]
}

// Active counts pixels with a pending run.
func (c CarryState) Active() int {
	n := 0
	for _, v := range c.Pending {
		if v > 0 {
			n++
		}
	}
	return n
}

// SpellParams configure the spell-duration engine.
type SpellParams struct {
	MinRun     int
	Comparison Comparison
	DayIndex   DayIndexMode
	Tiling     Tiling
}

// Validate rejects unusable engine parameters.
func (p SpellParams) Validate() error {
	if p.MinRun < 1 {
		return fmt.Errorf("%w: %d", ErrMinRun, p.MinRun)
	}
	if p.Comparison != LessThan && p.Comparison != GreaterThan {
		return fmt.Errorf("%w: %q", ErrComparison, p.Comparison)
	}
	if _, err := ParseDayIndexMode(string(p.DayIndex)); err != nil {
		return err
	}
	return nil
}

// LookaheadDays is how many days of the following year the engine inspects.
func (p SpellParams) LookaheadDays() int { return p.MinRun - 1 }

// ScanSpell runs the per-pixel spell state machine over one year of hit flags.
//
// Runs of at least minRun consecutive hits add their length to total; shorter
// runs are dropped. When carryIn is non-zero, the first non-hit day instead
// adds carryIn and consumes it; this happens at most once. A run still open at
// year end is resolved against the leading hits of lookahead (at most minRun-1
// days are inspected): if the combined length reaches minRun the open run is
// credited here and carryOut is the number of lookahead hits, otherwise it is
// dropped and carryOut is zero.
func ScanSpell(hits []bool, carryIn, minRun int, lookahead []bool) (total, carryOut int) {
	run := 0
	pending := carryIn
	for _, hit := range hits {
		if hit {
			run++
			continue
		}
		if pending > 0 {
			total += pending
			pending = 0
			run = 0
			continue
		}
		if run >= minRun {
			total += run
		}
		run = 0
	}
	if run == 0 {
		return total, 0
	}

	if n := minRun - 1; len(lookahead) > n {
		lookahead = lookahead[:max(n, 0)]
	}
	lead := 0
	for _, hit := range lookahead {
		if !hit {
			break
		}
		lead++
	}
	if run+lead >= minRun {
		return total + run, lead
	}
	return total, 0
}

// YearResult is the engine output for one year.
type YearResult struct {
	Year int
	// Spell is the annual spell-duration index (days in qualifying runs).
	Spell Grid
	// Exceedance is the fraction of valid days that were hits.
	Exceedance Grid
	// Carry is handed to the next year's ComputeYear.
	Carry CarryState
	// NoDataPixels counts pixels whose Spell value is no-data.
	NoDataPixels int
}

// ComputeYear classifies each pixel-day of year against cal, runs ScanSpell
// per pixel and returns the annual index and the carry for the next year.
//
// A pixel is no-data in Spell if any day of the year, or any inspected
// lookahead day, has a no-data sample or threshold. Exceedance only counts
// days where both operands are valid and is no-data when there are none.
func ComputeYear(year YearRecord, cal *Calendar, carryIn CarryState, lookahead Stack, p SpellParams) (YearResult, error) {
	if err := p.Validate(); err != nil {
		return YearResult{}, err
	}
	ref, err := year.Validate()
	if err != nil {
		return YearResult{}, err
	}
	if cal == nil {
		return YearResult{}, fmt.Errorf("%w: nil calendar", ErrShapeMismatch)
	}
	if err := cal.Validate(); err != nil {
		return YearResult{}, err
	}
	if shape := cal.Shape(); !shape.SameShape(ref) {
		return YearResult{}, shapeError("calendar", ref, shape)
	}
	if carryIn.Pending != nil {
		if carryIn.Height != ref.Height || carryIn.Width != ref.Width || len(carryIn.Pending) != ref.Len() {
			return YearResult{}, fmt.Errorf("%w: carry state is %dx%d, want %dx%d",
				ErrShapeMismatch, carryIn.Height, carryIn.Width, ref.Height, ref.Width)
		}
	}
	lookahead = lookahead.Head(p.LookaheadDays())
	laShape, err := lookahead.check()
	if err != nil {
		return YearResult{}, fmt.Errorf("lookahead: %w", err)
	}
	if lookahead.Len() > 0 && !laShape.SameShape(ref) {
		return YearResult{}, shapeError("lookahead", ref, laShape)
	}

	mode, _ := ParseDayIndexMode(string(p.DayIndex))
	yearThr := thresholdsFor(cal, year.Dates, mode)
	laThr := thresholdsFor(cal, lookahead.Dates, mode)

	height, width := ref.Height, ref.Width
	res := YearResult{
		Year:       year.Year,
		Spell:      NewGrid(height, width),
		Exceedance: NewGrid(height, width),
		Carry:      NewCarryState(height, width),
	}
	nodata := make([]int, height)

	err = p.Tiling.forEachTile(height, func(r0, r1 int) error {
		hits := make([]bool, len(year.Days))
		laHits := make([]bool, len(lookahead.Days))
		for r := r0; r < r1; r++ {
			for idx := r * width; idx < (r+1)*width; idx++ {
				invalid := false
				valid, hitCount := 0, 0
				for t, g := range year.Days {
					v, thr := g.Values[idx], yearThr[t].Values[idx]
					if IsNoData(v) || IsNoData(thr) {
						invalid = true
						hits[t] = false
						continue
					}
					hits[t] = p.Comparison.Hit(v, thr)
					valid++
					if hits[t] {
						hitCount++
					}
				}
				for t, g := range lookahead.Days {
					v, thr := g.Values[idx], laThr[t].Values[idx]
					if IsNoData(v) || IsNoData(thr) {
						invalid = true
						break
					}
					laHits[t] = p.Comparison.Hit(v, thr)
				}

				if valid == 0 {
					res.Exceedance.Values[idx] = math.NaN()
				} else {
					res.Exceedance.Values[idx] = float64(hitCount) / float64(valid)
				}
				if invalid {
					res.Spell.Values[idx] = math.NaN()
					nodata[r]++
					continue
				}
				total, carry := ScanSpell(hits, carryIn.At(idx), p.MinRun, laHits)
				res.Spell.Values[idx] = float64(total)
				res.Carry.Pending[idx] = carry
			}
		}
		return nil
	})
	if err != nil {
		return YearResult{}, err
	}
	for _, n := range nodata {
		res.NoDataPixels += n
	}
	return res, nil
}

// thresholdsFor resolves the calendar grid for each date.
func thresholdsFor(cal *Calendar, dates []time.Time, mode DayIndexMode) []Grid {
	out := make([]Grid, len(dates))
	for i, d := range dates {
		out[i] = cal.Threshold(mode.Index(d))
	}
	return out
}
