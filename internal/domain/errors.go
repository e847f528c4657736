package domain

import "errors"

// Configuration errors. Any of these aborts the computation; they indicate a
// caller bug rather than a data artifact.
var (
	ErrShapeMismatch  = errors.New("grid shape mismatch")
	ErrDayCount       = errors.New("year must contain 365 or 366 daily grids")
	ErrMinRun         = errors.New("minimum run length must be at least 1")
	ErrPercentile     = errors.New("percentile must be within [0, 100]")
	ErrWindowRadius   = errors.New("window radius out of range")
	ErrEmptyBaseline  = errors.New("baseline contains no years")
	ErrComparison     = errors.New("unknown comparison")
	ErrQuantileMethod = errors.New("unknown quantile method")
	ErrDayIndex       = errors.New("unknown day index mode")
)

// ErrYearNotFound is returned by grid sources when a requested year has no
// backing data. Drivers treat it as "no lookahead" for the year after the last
// available one.
var ErrYearNotFound = errors.New("year not found")

// ErrCalendarNotFound is returned by calendar stores that hold no calendar
// for the requested key.
var ErrCalendarNotFound = errors.New("calendar not found")
