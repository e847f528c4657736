package domain

import (
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

// clock stamps ProcessedAt on every AnnualIndex.
var clock = clockwork.NewRealClock()

// SetClock replaces the clock used for ProcessedAt; nil restores wall time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		c = clockwork.NewRealClock()
	}
	clock = c
}

// AnnualIndex is one year's output grid for one index, ready for the sinks.
type AnnualIndex struct {
	RunID       string
	Variable    string
	Index       string
	Year        int
	Grid        Grid
	Summary     Summary
	ProcessedAt time.Time
}

// NewAnnualIndex summarizes g and stamps it with the current clock time.
func NewAnnualIndex(runID, variable, index string, year int, g Grid) AnnualIndex {
	return AnnualIndex{
		RunID:       runID,
		Variable:    variable,
		Index:       index,
		Year:        year,
		Grid:        g,
		Summary:     Summarize(g),
		ProcessedAt: clock.Now().UTC(),
	}
}

// Key identifies the record independent of the run that produced it.
func (a AnnualIndex) Key() string {
	return fmt.Sprintf("%s/%s/%d", a.Variable, a.Index, a.Year)
}

// Label is the band description used when the grid is persisted,
// e.g. "CSDI_1961".
func (a AnnualIndex) Label() string {
	return fmt.Sprintf("%s_%d", a.Index, a.Year)
}
