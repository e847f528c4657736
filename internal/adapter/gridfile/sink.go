package gridfile

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/couchcryptid/climate-extremes-etl/internal/domain"
)

// ErrAnnualNotFound is returned by ReadAnnual when no file exists.
var ErrAnnualNotFound = errors.New("annual index not found")

type annualFile struct {
	RunID       string         `msgpack:"run_id"`
	Variable    string         `msgpack:"variable"`
	Index       string         `msgpack:"index"`
	Year        int            `msgpack:"year"`
	ProcessedAt time.Time      `msgpack:"processed_at"`
	Height      int            `msgpack:"height"`
	Width       int            `msgpack:"width"`
	Summary     domain.Summary `msgpack:"summary"`
	Band        band           `msgpack:"band"`
}

// Sink writes annual index grids to "<dir>/<index>/<index>_<year>.msgpack".
// It implements pipeline.BatchLoader.
type Sink struct {
	dir string
}

// NewSink creates a file sink below the output directory.
func NewSink(outputDir string) *Sink {
	return &Sink{dir: outputDir}
}

// Name identifies the sink in logs and metrics.
func (s *Sink) Name() string { return "file" }

// Path returns the file for one index and year.
func (s *Sink) Path(index string, year int) string {
	return filepath.Join(s.dir, index, fmt.Sprintf("%s_%d%s", index, year, ext))
}

// LoadBatch writes each record to its own file, overwriting earlier runs.
func (s *Sink) LoadBatch(ctx context.Context, records []domain.AnnualIndex) error {
	for _, r := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		f := annualFile{
			RunID:       r.RunID,
			Variable:    r.Variable,
			Index:       r.Index,
			Year:        r.Year,
			ProcessedAt: r.ProcessedAt,
			Height:      r.Grid.Height,
			Width:       r.Grid.Width,
			Summary:     r.Summary,
			Band:        toBand(r.Label(), r.Grid),
		}
		if err := writeFile(s.Path(r.Index, r.Year), f); err != nil {
			return fmt.Errorf("write %s: %w", r.Key(), err)
		}
	}
	return nil
}

// ReadAnnual loads a record written by LoadBatch.
func (s *Sink) ReadAnnual(index string, year int) (domain.AnnualIndex, error) {
	path := s.Path(index, year)
	var f annualFile
	if err := readFile(path, &f, ErrAnnualNotFound); err != nil {
		return domain.AnnualIndex{}, err
	}
	g, err := f.Band.grid(f.Height, f.Width)
	if err != nil {
		return domain.AnnualIndex{}, fmt.Errorf("%s: %w", path, err)
	}
	return domain.AnnualIndex{
		RunID:       f.RunID,
		Variable:    f.Variable,
		Index:       f.Index,
		Year:        f.Year,
		Grid:        g,
		Summary:     f.Summary,
		ProcessedAt: f.ProcessedAt.UTC(),
	}, nil
}
