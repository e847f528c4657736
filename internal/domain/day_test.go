package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDayIndexMode_Index(t *testing.T) {
	tests := []struct {
		name     string
		date     time.Time
		ordinal  int
		calendar int
	}{
		{"jan 1", date(2001, time.January, 1), 0, 0},
		{"dec 31 non-leap", date(2001, time.December, 31), 364, 364},
		{"feb 28 leap", date(2004, time.February, 28), 58, 58},
		{"feb 29", date(2004, time.February, 29), 59, 365},
		{"mar 1 leap", date(2004, time.March, 1), 60, 59},
		{"mar 1 non-leap", date(2001, time.March, 1), 59, 59},
		{"dec 31 leap", date(2004, time.December, 31), 365, 364},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.ordinal, DayIndexOrdinal.Index(tt.date))
			assert.Equal(t, tt.calendar, DayIndexCalendar.Index(tt.date))
		})
	}
}

func TestParseDayIndexMode(t *testing.T) {
	m, err := ParseDayIndexMode("")
	require.NoError(t, err)
	assert.Equal(t, DayIndexOrdinal, m)

	m, err = ParseDayIndexMode("calendar")
	require.NoError(t, err)
	assert.Equal(t, DayIndexCalendar, m)

	_, err = ParseDayIndexMode("doy")
	assert.ErrorIs(t, err, ErrDayIndex)
}

func TestLeapYears(t *testing.T) {
	assert.True(t, IsLeapYear(2000))
	assert.True(t, IsLeapYear(2004))
	assert.False(t, IsLeapYear(1900))
	assert.False(t, IsLeapYear(2001))

	assert.Equal(t, 366, DaysInYear(1964))
	assert.Equal(t, 365, DaysInYear(1965))
}

func TestYearDates(t *testing.T) {
	dates := YearDates(2004)
	require.Len(t, dates, 366)
	assert.Equal(t, date(2004, time.January, 1), dates[0])
	assert.Equal(t, date(2004, time.February, 29), dates[59])
	assert.Equal(t, date(2004, time.December, 31), dates[365])
}

func TestWrapDay(t *testing.T) {
	assert.Equal(t, 365, wrapDay(-1))
	assert.Equal(t, 0, wrapDay(366))
	assert.Equal(t, 1, wrapDay(367))
	assert.Equal(t, 364, wrapDay(-2))
}

func TestSummarize(t *testing.T) {
	g := Grid{Height: 2, Width: 2, Values: []float64{1, 3, math.NaN(), 8}}
	s := Summarize(g)
	assert.Equal(t, 3, s.Valid)
	assert.Equal(t, 1, s.NoData)
	assert.Equal(t, 1.0, s.Min)
	assert.Equal(t, 8.0, s.Max)
	assert.InDelta(t, 4.0, s.Mean, 1e-12)

	empty := Summarize(NewNoDataGrid(1, 2))
	assert.Zero(t, empty.Valid)
	assert.True(t, IsNoData(empty.Mean))
}
