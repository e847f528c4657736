package gridfile

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/couchcryptid/climate-extremes-etl/internal/domain"
)

type calendarFile struct {
	Key          string  `msgpack:"key"`
	WindowRadius int     `msgpack:"window_radius"`
	Percentile   float64 `msgpack:"percentile"`
	Method       string  `msgpack:"method"`
	DayIndex     string  `msgpack:"day_index"`
	Height       int     `msgpack:"height"`
	Width        int     `msgpack:"width"`
	Bands        []band  `msgpack:"bands"`
}

// CalendarStore persists threshold calendars under "<dir>/threshold", one
// 366-band file per key.
type CalendarStore struct {
	dir string
}

// NewCalendarStore creates a calendar store below the output directory.
func NewCalendarStore(outputDir string) *CalendarStore {
	return &CalendarStore{dir: filepath.Join(outputDir, "threshold")}
}

// Path returns the file backing key.
func (s *CalendarStore) Path(key string) string {
	return filepath.Join(s.dir, key+ext)
}

// LoadCalendar reads the calendar saved under key, or fails with
// domain.ErrCalendarNotFound.
func (s *CalendarStore) LoadCalendar(ctx context.Context, key string) (*domain.Calendar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := s.Path(key)
	var f calendarFile
	if err := readFile(path, &f, domain.ErrCalendarNotFound); err != nil {
		return nil, err
	}
	if f.Key != key {
		return nil, fmt.Errorf("%s: holds calendar %q, want %q", path, f.Key, key)
	}

	cal := &domain.Calendar{
		Params: domain.CalendarParams{
			WindowRadius: f.WindowRadius,
			Percentile:   f.Percentile,
			Method:       domain.QuantileMethod(f.Method),
			DayIndex:     domain.DayIndexMode(f.DayIndex),
		},
		Days: make([]domain.Grid, len(f.Bands)),
	}
	for d, b := range f.Bands {
		if want := slotLabel(d); b.Label != want {
			return nil, fmt.Errorf("%s: band %d is %q, want %q", path, d, b.Label, want)
		}
		g, err := b.grid(f.Height, f.Width)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		cal.Days[d] = g
	}
	if err := cal.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cal, nil
}

// SaveCalendar writes cal under key, replacing any previous file.
func (s *CalendarStore) SaveCalendar(ctx context.Context, key string, cal *domain.Calendar) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := cal.Validate(); err != nil {
		return err
	}
	shape := cal.Shape()
	f := calendarFile{
		Key:          key,
		WindowRadius: cal.Params.WindowRadius,
		Percentile:   cal.Params.Percentile,
		Method:       string(cal.Params.Method),
		DayIndex:     string(cal.Params.DayIndex),
		Height:       shape.Height,
		Width:        shape.Width,
		Bands:        make([]band, len(cal.Days)),
	}
	for d, g := range cal.Days {
		f.Bands[d] = toBand(slotLabel(d), g)
	}
	return writeFile(s.Path(key), f)
}

// slotLabel names calendar slot d; labels are 1-based.
func slotLabel(d int) string {
	return fmt.Sprintf("Day-%d", d+1)
}
