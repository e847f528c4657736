package gridfile

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/couchcryptid/climate-extremes-etl/internal/domain"
)

// dateLayout is the band label format of year stacks.
const dateLayout = "2006-01-02"

type stackFile struct {
	Variable string `msgpack:"variable"`
	Year     int    `msgpack:"year"`
	Height   int    `msgpack:"height"`
	Width    int    `msgpack:"width"`
	Bands    []band `msgpack:"bands"`
}

// Store reads and writes one variable's year stacks under a directory, one
// file per year named "<variable>_<year>.msgpack".
// It implements pipeline.YearSource.
type Store struct {
	dir      string
	variable string
}

// NewStore creates a store rooted at dir.
func NewStore(dir, variable string) *Store {
	return &Store{dir: dir, variable: variable}
}

// Path returns the file backing year.
func (s *Store) Path(year int) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_%d%s", s.variable, year, ext))
}

// LoadYear reads a full year. Band dates come from the labels; bands are
// reordered by date, and a year missing days fails with domain.ErrDayCount.
// A year with no file fails with domain.ErrYearNotFound.
func (s *Store) LoadYear(ctx context.Context, year int) (domain.YearRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.YearRecord{}, err
	}
	path := s.Path(year)
	var f stackFile
	if err := readFile(path, &f, domain.ErrYearNotFound); err != nil {
		return domain.YearRecord{}, err
	}

	rec, err := decodeStack(f, year)
	if err != nil {
		return domain.YearRecord{}, fmt.Errorf("%s: %w", path, err)
	}
	if _, err := rec.Validate(); err != nil {
		return domain.YearRecord{}, fmt.Errorf("%s: %w", path, err)
	}
	return rec, nil
}

// WriteYear persists rec, labelling each band with its date.
func (s *Store) WriteYear(ctx context.Context, rec domain.YearRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ref, err := rec.Validate()
	if err != nil {
		return err
	}
	f := stackFile{
		Variable: s.variable,
		Year:     rec.Year,
		Height:   ref.Height,
		Width:    ref.Width,
		Bands:    make([]band, len(rec.Days)),
	}
	for i, g := range rec.Days {
		f.Bands[i] = toBand(rec.Dates[i].Format(dateLayout), g)
	}
	return writeFile(s.Path(rec.Year), f)
}

func decodeStack(f stackFile, year int) (domain.YearRecord, error) {
	type dated struct {
		date time.Time
		grid domain.Grid
	}
	days := make([]dated, 0, len(f.Bands))
	seen := make(map[time.Time]bool, len(f.Bands))
	for _, b := range f.Bands {
		d, err := time.Parse(dateLayout, b.Label)
		if err != nil {
			return domain.YearRecord{}, fmt.Errorf("band label %q is not a date", b.Label)
		}
		if d.Year() != year {
			return domain.YearRecord{}, fmt.Errorf("band %q does not belong to %d", b.Label, year)
		}
		if seen[d] {
			return domain.YearRecord{}, fmt.Errorf("duplicate band %q", b.Label)
		}
		seen[d] = true
		g, err := b.grid(f.Height, f.Width)
		if err != nil {
			return domain.YearRecord{}, err
		}
		days = append(days, dated{date: d, grid: g})
	}
	sort.Slice(days, func(i, j int) bool { return days[i].date.Before(days[j].date) })

	// Dates are unique and inside the year, so a full count means Jan 1
	// through Dec 31 with no gap. Bands are scanned as consecutive days.
	if want := domain.DaysInYear(year); len(days) != want {
		return domain.YearRecord{}, fmt.Errorf("%w: %d has %d dated bands, want %d", domain.ErrDayCount, year, len(days), want)
	}

	rec := domain.YearRecord{Year: year}
	rec.Dates = make([]time.Time, len(days))
	rec.Days = make([]domain.Grid, len(days))
	for i, d := range days {
		rec.Dates[i] = d.date
		rec.Days[i] = d.grid
	}
	return rec, nil
}
