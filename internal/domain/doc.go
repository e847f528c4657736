// Package domain models daily gridded climate data and the percentile-based
// extreme indices derived from it.
//
// # Data Source
//
// Inputs are daily rasters (e.g. CN05.1 minimum/maximum temperature) split
// into one stack per calendar year. Each band carries its date as a
// "YYYY-MM-DD" label; the band position is never used to infer the date.
// Grids for one variable are co-registered: every year, every day and the
// threshold calendar share one height×width. No-data is NaN.
//
// # Day-of-Year Slots
//
// A date maps to one of 366 slots:
//
//	ordinal:  days since Jan 1 of that year (Dec 31 of a leap year is 365).
//	calendar: Feb 29 is 365; later leap-year dates reuse their non-leap slot.
//
// Windows around a slot wrap modulo 366, so slot 0 and slot 365 are adjacent.
//
// # Threshold Calendar
//
// For each slot d the samples of all baseline days in [d-r, d+r] are pooled
// per pixel and the requested percentile is taken (radius r = 2 gives the
// usual 5-day window). The default interpolation is linear between order
// statistics at rank (n-1)*p/100, so results do not depend on pooling order:
//
//	TN10p / CSDI:  10th percentile of daily minimum temperature
//	TX90p / WSDI:  90th percentile of daily maximum temperature
//
// # Spell Duration
//
// A pixel-day is a hit when its sample is below (or above) the calendar
// threshold for its slot. Days that belong to a run of at least MinRun
// consecutive hits are counted per year:
//
//	CSDI: tmin < TN10 calendar, MinRun 6
//	WSDI: tmax > TX90 calendar, MinRun 6
//
// A run still open on Dec 31 is resolved against the first MinRun-1 days of
// the next year. If the combined length qualifies, the December part is
// credited to the ending year and the January part is carried, as a
// CarryState, into the next year's computation, which credits it on its first
// non-hit day. Years must therefore be processed in order.
//
// # No-Data Propagation
//
// Any no-data sample or threshold in a pixel's year (or in the inspected
// lookahead days) makes that pixel's spell index no-data. This is not an
// error; other pixels are unaffected.
package domain
