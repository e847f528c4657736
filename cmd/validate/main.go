// Command validate re-derives a sample of the pipeline's outputs from the
// source grids with a deliberately naive, pixel-at-a-time implementation and
// compares them with what the file sink wrote. It reads the same environment
// as the pipeline (DATA_DIR, OUTPUT_DIR, VARIABLE, BASELINE_*, TARGET_*, ...).
//
// Usage:
//
//	go run ./cmd/validate -samples 64 -seed 7
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"sort"

	"github.com/couchcryptid/climate-extremes-etl/internal/adapter/gridfile"
	"github.com/couchcryptid/climate-extremes-etl/internal/config"
	"github.com/couchcryptid/climate-extremes-etl/internal/domain"
	"github.com/couchcryptid/climate-extremes-etl/internal/pipeline"
)

// tolerance for comparing recomputed floats against stored ones.
const tolerance = 1e-9

// phase tracks pass/fail for a validation phase.
type phase struct {
	name    string
	errors  []string
	skipped string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// inputs is everything loaded up front.
type inputs struct {
	cfg      *config.Config
	baseline []domain.YearRecord
	targets  map[int]domain.YearRecord
	calendar *domain.Calendar
	pixels   []int
	sink     *gridfile.Sink
}

func main() {
	samples := flag.Int("samples", 32, "number of pixels to recompute")
	seed := flag.Uint64("seed", 1, "random seed for pixel sampling")
	flag.Parse()

	if *samples < 1 {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*samples, *seed); code != 0 {
		os.Exit(code)
	}
}

func run(samples int, seed uint64) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load config: %v\n", err)
		return 1
	}

	fmt.Println("=== Climate Index Validation ===")
	fmt.Println()

	in, source := loadInputs(cfg, samples, seed)
	phases := []*phase{source}
	if source.passed() {
		phases = append(phases,
			validateCalendar(in),
			validateSpell(in),
			validateExceedance(in),
			validateSummaries(in),
		)
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		switch {
		case p.skipped != "":
			status = "\033[33mSKIP\033[0m (" + p.skipped + ")"
		case !p.passed():
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-32s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Years: %d baseline, %d target; %d sampled pixels\n",
		len(in.baseline), len(in.targets), len(in.pixels))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
			if i == 19 && len(p.errors) > 20 {
				fmt.Printf("  ... %d more\n", len(p.errors)-20)
				break
			}
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Data loading ──

func loadInputs(cfg *config.Config, samples int, seed uint64) (*inputs, *phase) {
	ctx := context.Background()
	p := &phase{name: "Source grids"}
	store := gridfile.NewStore(cfg.DataDir, cfg.Variable)
	in := &inputs{cfg: cfg, targets: make(map[int]domain.YearRecord), sink: gridfile.NewSink(cfg.OutputDir)}

	var ref domain.Grid
	check := func(year int) (domain.YearRecord, bool) {
		rec, err := store.LoadYear(ctx, year)
		if err != nil {
			p.errorf("year %d: %v", year, err)
			return rec, false
		}
		shape, _ := rec.Validate()
		if ref.Height == 0 {
			ref = shape
		} else if !shape.SameShape(ref) {
			p.errorf("year %d: grid is %dx%d, want %dx%d", year, shape.Height, shape.Width, ref.Height, ref.Width)
			return rec, false
		}
		return rec, true
	}
	for _, y := range cfg.BaselineYears() {
		if rec, ok := check(y); ok {
			in.baseline = append(in.baseline, rec)
		}
	}
	years := cfg.TargetYears()
	for _, y := range years {
		if rec, ok := check(y); ok {
			in.targets[y] = rec
		}
	}
	// The year after the last target only feeds the lookahead.
	if rec, err := store.LoadYear(ctx, years[len(years)-1]+1); err == nil {
		in.targets[rec.Year] = rec
	}

	key := pipeline.Baseline{Variable: cfg.Variable, Years: cfg.BaselineYears(), Params: cfg.Calendar}.Key()
	cal, err := gridfile.NewCalendarStore(cfg.OutputDir).LoadCalendar(ctx, key)
	switch {
	case errors.Is(err, domain.ErrCalendarNotFound):
		p.errorf("calendar %s has not been persisted; run the pipeline first", key)
	case err != nil:
		p.errorf("calendar %s: %v", key, err)
	default:
		in.calendar = cal
	}

	if ref.Height > 0 {
		in.pixels = samplePixels(ref.Len(), samples, seed)
	}
	return in, p
}

func samplePixels(n, samples int, seed uint64) []int {
	if samples >= n {
		all := make([]int, n)
		for i := range all {
			all[i] = i
		}
		return all
	}
	rng := rand.New(rand.NewPCG(seed, seed+1))
	picked := rng.Perm(n)[:samples]
	sort.Ints(picked)
	return picked
}

// ── Phases ──

func validateCalendar(in *inputs) *phase {
	p := &phase{name: "Threshold calendar"}
	params := in.cfg.Calendar
	if params.Method != domain.QuantileLinear {
		p.skipped = "naive check covers the linear method only"
		return p
	}
	mode := params.DayIndex
	for _, idx := range in.pixels {
		bySlot := make([][]float64, domain.CalendarDays)
		for _, y := range in.baseline {
			for t, d := range y.Dates {
				v := y.Days[t].Values[idx]
				if !math.IsNaN(v) {
					s := mode.Index(d)
					bySlot[s] = append(bySlot[s], v)
				}
			}
		}
		for slot := range domain.CalendarDays {
			var pool []float64
			for o := -params.WindowRadius; o <= params.WindowRadius; o++ {
				pool = append(pool, bySlot[((slot+o)%domain.CalendarDays+domain.CalendarDays)%domain.CalendarDays]...)
			}
			want := naivePercentile(pool, params.Percentile)
			got := in.calendar.Days[slot].Values[idx]
			if !sameValue(want, got) {
				p.errorf("pixel %d slot %d: threshold %g, recomputed %g", idx, slot, got, want)
			}
		}
	}
	return p
}

func validateSpell(in *inputs) *phase {
	p := &phase{name: "Spell index (" + in.cfg.IndexName + ")"}
	spell := in.cfg.Spell
	for _, idx := range in.pixels {
		carry := 0
		for _, year := range in.cfg.TargetYears() {
			hits, invalid := classify(in, in.targets[year].Stack, idx)
			// A missing next year is the zero record, whose head is empty.
			la, laInvalid := classify(in, in.targets[year+1].Head(spell.MinRun-1), idx)

			want := math.NaN()
			if invalid || laInvalid {
				carry = 0
			} else {
				var total int
				total, carry = countSpell(hits, la, carry, spell.MinRun)
				want = float64(total)
			}

			stored, err := in.sink.ReadAnnual(in.cfg.IndexName, year)
			if err != nil {
				p.errorf("year %d: %v", year, err)
				continue
			}
			if got := stored.Grid.Values[idx]; !sameValue(want, got) {
				p.errorf("year %d pixel %d: stored %g, recomputed %g", year, idx, got, want)
			}
		}
	}
	return p
}

func validateExceedance(in *inputs) *phase {
	p := &phase{name: "Exceedance (" + in.cfg.ExceedanceName + ")"}
	for _, year := range in.cfg.TargetYears() {
		stored, err := in.sink.ReadAnnual(in.cfg.ExceedanceName, year)
		if err != nil {
			p.errorf("year %d: %v", year, err)
			continue
		}
		rec := in.targets[year]
		for _, idx := range in.pixels {
			valid, hit := 0, 0
			for t, d := range rec.Dates {
				v := rec.Days[t].Values[idx]
				thr := in.calendar.Days[in.cfg.Spell.DayIndex.Index(d)].Values[idx]
				if math.IsNaN(v) || math.IsNaN(thr) {
					continue
				}
				valid++
				if beats(in.cfg.Spell.Comparison, v, thr) {
					hit++
				}
			}
			want := math.NaN()
			if valid > 0 {
				want = float64(hit) / float64(valid)
			}
			if got := stored.Grid.Values[idx]; !sameValue(want, got) {
				p.errorf("year %d pixel %d: stored %g, recomputed %g", year, idx, got, want)
			}
		}
	}
	return p
}

func validateSummaries(in *inputs) *phase {
	p := &phase{name: "Stored summaries"}
	for _, name := range []string{in.cfg.IndexName, in.cfg.ExceedanceName} {
		for _, year := range in.cfg.TargetYears() {
			stored, err := in.sink.ReadAnnual(name, year)
			if err != nil {
				continue
			}
			valid, noData := 0, 0
			for _, v := range stored.Grid.Values {
				if math.IsNaN(v) {
					noData++
				} else {
					valid++
				}
			}
			if stored.Summary.Valid != valid || stored.Summary.NoData != noData {
				p.errorf("%s %d: summary says %d valid / %d no-data, grid has %d / %d",
					name, year, stored.Summary.Valid, stored.Summary.NoData, valid, noData)
			}
		}
	}
	return p
}

// ── Naive reference ──

// classify returns the hit series for one pixel and whether any day was unusable.
func classify(in *inputs, rec domain.Stack, idx int) ([]bool, bool) {
	hits := make([]bool, len(rec.Days))
	invalid := false
	for t, d := range rec.Dates {
		v := rec.Days[t].Values[idx]
		thr := in.calendar.Days[in.cfg.Spell.DayIndex.Index(d)].Values[idx]
		if math.IsNaN(v) || math.IsNaN(thr) {
			invalid = true
			continue
		}
		hits[t] = beats(in.cfg.Spell.Comparison, v, thr)
	}
	return hits, invalid
}

func beats(c domain.Comparison, v, thr float64) bool {
	if c == domain.GreaterThan {
		return v > thr
	}
	return v < thr
}

// countSpell enumerates maximal hit segments. A pending carry replaces the
// segment closed by the first non-hit day; a segment touching the year end
// is kept when it reaches minRun together with the leading hits of next.
func countSpell(hits, next []bool, carry, minRun int) (total, carryOut int) {
	type segment struct{ start, length int }
	var segs []segment
	for t := 0; t < len(hits); {
		if !hits[t] {
			t++
			continue
		}
		s := t
		for t < len(hits) && hits[t] {
			t++
		}
		segs = append(segs, segment{s, t - s})
	}

	firstMiss := len(hits)
	for t, h := range hits {
		if !h {
			firstMiss = t
			break
		}
	}
	if carry > 0 && firstMiss < len(hits) {
		total += carry
	}

	for _, sg := range segs {
		end := sg.start + sg.length
		if end == len(hits) {
			lead := 0
			for lead < len(next) && lead < minRun-1 && next[lead] {
				lead++
			}
			if sg.length+lead >= minRun {
				total += sg.length
				carryOut = lead
			}
			continue
		}
		if carry > 0 && sg.start == 0 {
			continue
		}
		if sg.length >= minRun {
			total += sg.length
		}
	}
	return total, carryOut
}

func naivePercentile(pool []float64, pct float64) float64 {
	if len(pool) == 0 {
		return math.NaN()
	}
	sorted := append([]float64(nil), pool...)
	sort.Float64s(sorted)
	rank := pct / 100 * float64(len(sorted)-1)
	lo := int(rank)
	if lo+1 >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	return sorted[lo] + (rank-float64(lo))*(sorted[lo+1]-sorted[lo])
}

func sameValue(want, got float64) bool {
	if math.IsNaN(want) || math.IsNaN(got) {
		return math.IsNaN(want) && math.IsNaN(got)
	}
	return math.Abs(want-got) <= tolerance*math.Max(1, math.Abs(want))
}
