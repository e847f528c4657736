package domain

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ordinalYear is a 1x1 year whose sample on each day equals its ordinal slot.
func ordinalYear(t *testing.T, year int) YearRecord {
	t.Helper()
	series := make([]float64, DaysInYear(year))
	for i := range series {
		series[i] = float64(i)
	}
	return pixelYear(t, year, series)
}

func TestBuildCalendar_ConstantBaseline(t *testing.T) {
	baseline := []YearRecord{constYear(1961, 2, 3, 5), constYear(1962, 2, 3, 5), constYear(1963, 2, 3, 5)}

	cal, err := BuildCalendar(baseline, CalendarParams{WindowRadius: 2, Percentile: 10}, Tiling{})
	require.NoError(t, err)
	require.Len(t, cal.Days, CalendarDays)
	assert.Equal(t, QuantileLinear, cal.Params.Method)
	assert.Equal(t, DayIndexOrdinal, cal.Params.DayIndex)

	for d, g := range cal.Days {
		assert.Equal(t, 2, g.Height)
		assert.Equal(t, 3, g.Width)
		for _, v := range g.Values {
			require.Equal(t, 5.0, v, "slot %d", d)
		}
	}
	assert.Zero(t, cal.EmptySlots())
}

func TestBuildCalendar_EmptyPoolIsNoData(t *testing.T) {
	y := constYear(1961, 1, 2, 5)
	for _, g := range y.Days {
		g.Values[1] = math.NaN()
	}

	cal, err := BuildCalendar([]YearRecord{y}, CalendarParams{WindowRadius: 2, Percentile: 10}, Tiling{})
	require.NoError(t, err)
	for d, g := range cal.Days {
		assert.Equal(t, 5.0, g.Values[0], "slot %d", d)
		assert.True(t, IsNoData(g.Values[1]), "slot %d", d)
	}
	assert.Equal(t, CalendarDays, cal.EmptySlots())
}

func TestBuildCalendar_LeapSlot(t *testing.T) {
	params := CalendarParams{WindowRadius: 0, Percentile: 50}

	t.Run("fed only by leap years", func(t *testing.T) {
		cal, err := BuildCalendar([]YearRecord{constYear(2001, 1, 1, 1), constYear(2004, 1, 1, 3)}, params, Tiling{})
		require.NoError(t, err)
		assert.Equal(t, 3.0, cal.Days[365].Values[0])
		assert.Equal(t, 2.0, cal.Days[0].Values[0])
	})

	t.Run("no-data without leap years", func(t *testing.T) {
		cal, err := BuildCalendar([]YearRecord{constYear(2001, 1, 1, 1)}, params, Tiling{})
		require.NoError(t, err)
		assert.True(t, IsNoData(cal.Days[365].Values[0]))
		assert.Equal(t, 1, cal.EmptySlots())
	})
}

func TestBuildCalendar_WindowWrapsAroundYearEnd(t *testing.T) {
	cal, err := BuildCalendar([]YearRecord{ordinalYear(t, 2001)}, CalendarParams{WindowRadius: 1, Percentile: 50}, Tiling{})
	require.NoError(t, err)

	assert.InDelta(t, 0.5, cal.Days[0].Values[0], 1e-12, "slot 0 pools slots 365, 0, 1")
	assert.InDelta(t, 100.0, cal.Days[100].Values[0], 1e-12)
	assert.InDelta(t, 363.5, cal.Days[364].Values[0], 1e-12, "slot 364 pools 363, 364, 365")
	assert.InDelta(t, 182.0, cal.Days[365].Values[0], 1e-12, "slot 365 pools 364 and 0")
}

func TestBuildCalendar_CalendarDayIndex(t *testing.T) {
	params := CalendarParams{WindowRadius: 0, Percentile: 50, DayIndex: DayIndexCalendar}
	cal, err := BuildCalendar([]YearRecord{ordinalYear(t, 2004)}, params, Tiling{})
	require.NoError(t, err)

	assert.Equal(t, 58.0, cal.Days[58].Values[0], "Feb 28")
	assert.Equal(t, 59.0, cal.Days[365].Values[0], "Feb 29 lands on slot 365")
	assert.Equal(t, 60.0, cal.Days[59].Values[0], "Mar 1 shares the non-leap slot")
	assert.Equal(t, 365.0, cal.Days[364].Values[0], "Dec 31")
}

func TestBuildCalendar_PercentileOfPooledWindow(t *testing.T) {
	// Three years with distinct constants: the 10th percentile of
	// {1 x5, 2 x5, 3 x5} at rank 1.4 is 1.
	baseline := []YearRecord{constYear(1971, 1, 1, 3), constYear(1972, 1, 1, 1), constYear(1973, 1, 1, 2)}

	cal, err := BuildCalendar(baseline, CalendarParams{WindowRadius: 2, Percentile: 10}, Tiling{})
	require.NoError(t, err)
	assert.Equal(t, 1.0, cal.Days[100].Values[0])

	cal, err = BuildCalendar(baseline, CalendarParams{WindowRadius: 2, Percentile: 50}, Tiling{})
	require.NoError(t, err)
	assert.Equal(t, 2.0, cal.Days[100].Values[0])
}

func TestBuildCalendar_Idempotent(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	baseline := []YearRecord{
		randomYear(rng, 1961, 4, 4, 0.01),
		randomYear(rng, 1964, 4, 4, 0.01),
	}
	params := CalendarParams{WindowRadius: 2, Percentile: 90}

	first, err := BuildCalendar(baseline, params, Tiling{})
	require.NoError(t, err)
	second, err := BuildCalendar(baseline, params, Tiling{TileRows: 1})
	require.NoError(t, err)

	if diff := cmp.Diff(first, second, cmpopts.EquateNaNs()); diff != "" {
		t.Fatalf("calendar not reproducible (-first +second):\n%s", diff)
	}
}

func TestBuildCalendar_Errors(t *testing.T) {
	good := constYear(1961, 2, 2, 5)
	params := CalendarParams{WindowRadius: 2, Percentile: 10}

	tests := []struct {
		name     string
		baseline []YearRecord
		params   CalendarParams
		want     error
	}{
		{"empty baseline", nil, params, ErrEmptyBaseline},
		{"percentile above range", []YearRecord{good}, CalendarParams{WindowRadius: 2, Percentile: 101}, ErrPercentile},
		{"negative percentile", []YearRecord{good}, CalendarParams{WindowRadius: 2, Percentile: -1}, ErrPercentile},
		{"negative radius", []YearRecord{good}, CalendarParams{WindowRadius: -1, Percentile: 10}, ErrWindowRadius},
		{"radius wider than year", []YearRecord{good}, CalendarParams{WindowRadius: 183, Percentile: 10}, ErrWindowRadius},
		{"unknown method", []YearRecord{good}, CalendarParams{Percentile: 10, Method: "nearest"}, ErrQuantileMethod},
		{"unknown day index", []YearRecord{good}, CalendarParams{Percentile: 10, DayIndex: "julian"}, ErrDayIndex},
		{"shape mismatch across years", []YearRecord{good, constYear(1962, 2, 3, 5)}, params, ErrShapeMismatch},
		{"short year", []YearRecord{{Year: 1961, Stack: good.Head(300)}}, params, ErrDayCount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildCalendar(tt.baseline, tt.params, Tiling{})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCalendarParams_Key(t *testing.T) {
	a := CalendarParams{WindowRadius: 2, Percentile: 10}
	b := CalendarParams{WindowRadius: 2, Percentile: 10, Method: QuantileLinear, DayIndex: DayIndexOrdinal}
	assert.Equal(t, a.Key(), b.Key())
	assert.Equal(t, "r2_p10_linear_ordinal", a.Key())

	c := CalendarParams{WindowRadius: 2, Percentile: 90}
	assert.NotEqual(t, a.Key(), c.Key())
}
