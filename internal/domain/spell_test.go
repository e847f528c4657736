package domain

import (
	"math"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanSpell(t *testing.T) {
	tests := []struct {
		name      string
		hits      string
		carryIn   int
		minRun    int
		lookahead string
		total     int
		carryOut  int
	}{
		{"exactly min run", "...xxxxxx...", 0, 6, "", 6, 0},
		{"one short of min run", "...xxxxx....", 0, 6, "", 0, 0},
		{"long and short runs", "xxxxxxx..xxx.", 0, 6, "", 7, 0},
		{"no hits", "..........", 0, 6, "xxxxx", 0, 0},
		{"carry absorbed on first non-hit", "xxx.......", 3, 6, "", 3, 0},
		{"carry absorbed once", "xx.xx.xx..", 2, 6, "", 2, 0},
		{"carry with leading non-hit", "..xxxxxx..", 3, 6, "", 9, 0},
		{"trailing run completed by lookahead", "....xxx", 0, 6, "xxx.x", 3, 3},
		{"trailing run too short", "....xx", 0, 6, "xx.", 0, 0},
		{"trailing run qualifies alone", "..xxxxxxx", 0, 6, "", 7, 0},
		{"trailing run qualifies with lookahead hits", "..xxxxxxx", 0, 6, "xx.", 7, 2},
		{"lookahead capped at min run minus one", ".x", 0, 6, "xxxxxxxx", 1, 5},
		{"min run one", "x.x", 0, 1, "xx", 2, 0},
		{"year of hits keeps carry unconsumed", "xxxxx", 2, 3, "", 5, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			total, carry := ScanSpell(bools(tt.hits), tt.carryIn, tt.minRun, bools(tt.lookahead))
			assert.Equal(t, tt.total, total, "total")
			assert.Equal(t, tt.carryOut, carry, "carry out")
		})
	}
}

func TestScanSpell_RunAcrossYearBoundary(t *testing.T) {
	// k = 3 hits close year A, j = 3 hits open year B: 3 + 3 >= 6.
	yearA := strings.Repeat(".", 20) + "xxx"
	yearB := "xxx" + strings.Repeat(".", 20)

	totalA, carry := ScanSpell(bools(yearA), 0, 6, bools(yearB[:5]))
	assert.Equal(t, 3, totalA)
	assert.Equal(t, 3, carry)

	totalB, carryB := ScanSpell(bools(yearB), carry, 6, nil)
	assert.Equal(t, 3, totalB)
	assert.Equal(t, 0, carryB)
	assert.Equal(t, 6, totalA+totalB, "run counted exactly once across the boundary")
}

func TestScanSpell_ShortBoundaryFragmentDiscarded(t *testing.T) {
	yearA := strings.Repeat(".", 10) + "xx"
	yearB := "xx" + strings.Repeat(".", 10)

	totalA, carry := ScanSpell(bools(yearA), 0, 6, bools(yearB[:5]))
	assert.Zero(t, totalA)
	assert.Zero(t, carry)

	totalB, _ := ScanSpell(bools(yearB), carry, 6, nil)
	assert.Zero(t, totalB)
}

// A carry is only ever produced when the December fragment plus the January
// lookahead already reached the minimum, so the unconditional merge on the
// next year's first non-hit never admits a too-short run.
func TestScanSpell_CarryOnlyForQualifyingRuns(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))

	for trial := 0; trial < 2000; trial++ {
		minRun := 1 + rng.IntN(8)
		years := make([][]bool, 4)
		for y := range years {
			years[y] = make([]bool, 40+rng.IntN(20))
			p := rng.Float64()
			for i := range years[y] {
				years[y][i] = rng.Float64() < p
			}
		}

		carry := 0
		counted, hitDays := 0, 0
		for y, hits := range years {
			var lookahead []bool
			if y+1 < len(years) {
				lookahead = years[y+1][:min(minRun-1, len(years[y+1]))]
			}
			total, out := ScanSpell(hits, carry, minRun, lookahead)

			trailing := 0
			for i := len(hits) - 1; i >= 0 && hits[i]; i-- {
				trailing++
			}
			if out > 0 {
				require.GreaterOrEqual(t, trailing+out, minRun, "carry from a too-short run")
				require.LessOrEqual(t, out, minRun-1)
				require.Equal(t, leadingHits(lookahead), out)
			}
			for _, h := range hits {
				if h {
					hitDays++
				}
			}
			counted += total
			carry = out
		}
		require.LessOrEqual(t, counted, hitDays, "days counted more than once")
	}
}

func leadingHits(hits []bool) int {
	n := 0
	for _, h := range hits {
		if !h {
			break
		}
		n++
	}
	return n
}

func TestComputeYear_ConstantBaselineScenario(t *testing.T) {
	baseline := []YearRecord{constYear(1961, 1, 1, 5), constYear(1962, 1, 1, 5), constYear(1963, 1, 1, 5)}
	cal, err := BuildCalendar(baseline, CalendarParams{WindowRadius: 2, Percentile: 10}, Tiling{})
	require.NoError(t, err)
	for d, g := range cal.Days {
		require.Equal(t, 5.0, g.Values[0], "slot %d", d)
	}

	target := pixelYear(t, 2001, concat(repeat(4, 10), repeat(6, 355)))
	res, err := ComputeYear(target, cal, CarryState{}, Stack{}, defaultSpellParams())
	require.NoError(t, err)

	assert.Equal(t, 10.0, res.Spell.Values[0])
	assert.Equal(t, 0, res.Carry.Pending[0])
	assert.InDelta(t, 10.0/365.0, res.Exceedance.Values[0], 1e-12)
	assert.Zero(t, res.NoDataPixels)
}

func TestComputeYear_CarryThreadsIntoNextYear(t *testing.T) {
	cal := constCalendar(1, 1, 5)
	params := defaultSpellParams()

	seriesA := concat(repeat(6, 362), repeat(4, 3))
	seriesB := concat(repeat(4, 3), repeat(6, 362))
	yearA := pixelYear(t, 2001, seriesA)
	yearB := pixelYear(t, 2002, seriesB)

	resA, err := ComputeYear(yearA, cal, CarryState{}, yearB.Head(params.LookaheadDays()), params)
	require.NoError(t, err)
	assert.Equal(t, 3.0, resA.Spell.Values[0])
	assert.Equal(t, 3, resA.Carry.Pending[0])

	resB, err := ComputeYear(yearB, cal, resA.Carry, Stack{}, params)
	require.NoError(t, err)
	assert.Equal(t, 3.0, resB.Spell.Values[0])
	assert.Equal(t, 0, resB.Carry.Pending[0])
}

func TestComputeYear_GreaterThan(t *testing.T) {
	cal := constCalendar(1, 1, 30)
	params := SpellParams{MinRun: 6, Comparison: GreaterThan}

	series := concat(repeat(20, 100), repeat(35, 8), repeat(20, 257))
	res, err := ComputeYear(pixelYear(t, 2001, series), cal, CarryState{}, Stack{}, params)
	require.NoError(t, err)
	assert.Equal(t, 8.0, res.Spell.Values[0])
}

func TestComputeYear_NoDataPropagation(t *testing.T) {
	const year = 2001
	n := DaysInYear(year)
	cal := constCalendar(1, 3, 5)

	days := make([]Grid, n)
	for i := range days {
		days[i] = FilledGrid(1, 3, 6)
	}
	// Pixel 0: one missing day mid-year, plus a qualifying run elsewhere.
	days[100].Values[0] = math.NaN()
	for i := 10; i < 20; i++ {
		days[i].Values[0] = 4
		days[i].Values[2] = 4
	}
	rec := NewYearRecord(year, days)

	// Pixel 1: missing day inside the lookahead window only.
	head := pixelHead(year+1, repeat(6, 5))
	for i := range head.Days {
		head.Days[i] = FilledGrid(1, 3, 6)
	}
	head.Days[2].Values[1] = math.NaN()

	res, err := ComputeYear(rec, cal, CarryState{}, head, defaultSpellParams())
	require.NoError(t, err)

	assert.True(t, IsNoData(res.Spell.Values[0]), "missing day in year")
	assert.True(t, IsNoData(res.Spell.Values[1]), "missing day in lookahead")
	assert.Equal(t, 10.0, res.Spell.Values[2])
	assert.Equal(t, 2, res.NoDataPixels)
	assert.Zero(t, res.Carry.Pending[0])

	assert.InDelta(t, 10.0/float64(n-1), res.Exceedance.Values[0], 1e-12, "exceedance counts valid days only")
	assert.Equal(t, 0.0, res.Exceedance.Values[1])
}

func TestComputeYear_NoDataThreshold(t *testing.T) {
	cal := constCalendar(1, 1, 5)
	cal.Days[40] = NewNoDataGrid(1, 1)

	res, err := ComputeYear(pixelYear(t, 2001, repeat(4, 365)), cal, CarryState{}, Stack{}, defaultSpellParams())
	require.NoError(t, err)
	assert.True(t, IsNoData(res.Spell.Values[0]))
}

func TestComputeYear_AllNoDataPixel(t *testing.T) {
	cal := constCalendar(1, 1, 5)
	res, err := ComputeYear(pixelYear(t, 2001, repeat(math.NaN(), 365)), cal, CarryState{}, Stack{}, defaultSpellParams())
	require.NoError(t, err)
	assert.True(t, IsNoData(res.Spell.Values[0]))
	assert.True(t, IsNoData(res.Exceedance.Values[0]))
}

func TestComputeYear_Errors(t *testing.T) {
	cal := constCalendar(2, 2, 5)
	good := constYear(2001, 2, 2, 4)

	t.Run("day count", func(t *testing.T) {
		short := good
		short.Stack = Stack{Dates: good.Dates[:364], Days: good.Days[:364]}
		_, err := ComputeYear(short, cal, CarryState{}, Stack{}, defaultSpellParams())
		assert.ErrorIs(t, err, ErrDayCount)
	})

	t.Run("calendar shape", func(t *testing.T) {
		_, err := ComputeYear(good, constCalendar(3, 2, 5), CarryState{}, Stack{}, defaultSpellParams())
		assert.ErrorIs(t, err, ErrShapeMismatch)
	})

	t.Run("calendar slot count", func(t *testing.T) {
		bad := &Calendar{Days: cal.Days[:365]}
		_, err := ComputeYear(good, bad, CarryState{}, Stack{}, defaultSpellParams())
		assert.ErrorIs(t, err, ErrShapeMismatch)
	})

	t.Run("carry shape", func(t *testing.T) {
		_, err := ComputeYear(good, cal, NewCarryState(1, 4), Stack{}, defaultSpellParams())
		assert.ErrorIs(t, err, ErrShapeMismatch)
	})

	t.Run("lookahead shape", func(t *testing.T) {
		_, err := ComputeYear(good, cal, CarryState{}, pixelHead(2002, repeat(4, 5)), defaultSpellParams())
		assert.ErrorIs(t, err, ErrShapeMismatch)
	})

	t.Run("day shape", func(t *testing.T) {
		days := append([]Grid(nil), good.Days...)
		days[7] = FilledGrid(2, 3, 4)
		_, err := ComputeYear(NewYearRecord(2001, days), cal, CarryState{}, Stack{}, defaultSpellParams())
		assert.ErrorIs(t, err, ErrShapeMismatch)
	})

	t.Run("min run", func(t *testing.T) {
		p := defaultSpellParams()
		p.MinRun = 0
		_, err := ComputeYear(good, cal, CarryState{}, Stack{}, p)
		assert.ErrorIs(t, err, ErrMinRun)
	})

	t.Run("comparison", func(t *testing.T) {
		p := defaultSpellParams()
		p.Comparison = "sideways"
		_, err := ComputeYear(good, cal, CarryState{}, Stack{}, p)
		assert.ErrorIs(t, err, ErrComparison)
	})
}

func TestComputeYear_TilingDoesNotChangeResult(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	baseline := []YearRecord{
		randomYear(rng, 1971, 7, 5, 0.001),
		randomYear(rng, 1972, 7, 5, 0.001),
	}
	target := randomYear(rng, 1980, 7, 5, 0.0005)
	next := randomYear(rng, 1981, 7, 5, 0)

	params := CalendarParams{WindowRadius: 2, Percentile: 10}
	serialCal, err := BuildCalendar(baseline, params, Tiling{TileRows: 100, Workers: 1})
	require.NoError(t, err)
	tiledCal, err := BuildCalendar(baseline, params, Tiling{TileRows: 1, Workers: 4})
	require.NoError(t, err)
	if diff := cmp.Diff(serialCal, tiledCal, cmpopts.EquateNaNs()); diff != "" {
		t.Fatalf("calendar differs by tiling (-serial +tiled):\n%s", diff)
	}

	serialParams := defaultSpellParams()
	serialParams.Tiling = Tiling{TileRows: 100, Workers: 1}
	tiledParams := defaultSpellParams()
	tiledParams.Tiling = Tiling{TileRows: 2, Workers: 3}

	serial, err := ComputeYear(target, serialCal, CarryState{}, next.Head(5), serialParams)
	require.NoError(t, err)
	tiled, err := ComputeYear(target, serialCal, CarryState{}, next.Head(5), tiledParams)
	require.NoError(t, err)
	if diff := cmp.Diff(serial, tiled, cmpopts.EquateNaNs()); diff != "" {
		t.Fatalf("year result differs by tiling (-serial +tiled):\n%s", diff)
	}
}

func TestParseComparison(t *testing.T) {
	for _, in := range []string{"less", "LT", "<", " less "} {
		c, err := ParseComparison(in)
		require.NoError(t, err, in)
		assert.Equal(t, LessThan, c)
	}
	for _, in := range []string{"greater", "gt", ">"} {
		c, err := ParseComparison(in)
		require.NoError(t, err, in)
		assert.Equal(t, GreaterThan, c)
	}
	_, err := ParseComparison("equal")
	assert.ErrorIs(t, err, ErrComparison)
}
