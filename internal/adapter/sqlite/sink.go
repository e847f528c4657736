package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/couchcryptid/climate-extremes-etl/internal/domain"
)

// schema.sql creates the annual summary table and the per-pixel value table.
//
//go:embed schema.sql
var schemaSQL string

// ErrNotFound is returned by ReadAnnual when no row matches.
var ErrNotFound = errors.New("annual index not found")

// Sink stores annual index grids in a SQLite database. Rewriting a
// variable/index/year replaces the earlier row and its pixels.
// It implements pipeline.BatchLoader.
type Sink struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open creates (or reuses) the database at path and applies the schema.
func Open(path string, logger *slog.Logger) (*Sink, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck,gosec // pragma error takes precedence
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close() //nolint:errcheck,gosec // schema error takes precedence
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	logger.Info("sqlite sink ready", "path", path)
	return &Sink{db: db, logger: logger}, nil
}

// Name identifies the sink in logs and metrics.
func (s *Sink) Name() string { return "sqlite" }

// LoadBatch writes all records in one transaction.
func (s *Sink) LoadBatch(ctx context.Context, records []domain.AnnualIndex) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	upsert, err := tx.PrepareContext(ctx, `
		INSERT INTO annual_index (variable, idx, year, run_id, processed_at, height, width,
			valid_pixels, nodata_pixels, min_value, max_value, mean_value)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (variable, idx, year) DO UPDATE SET
			run_id = excluded.run_id,
			processed_at = excluded.processed_at,
			height = excluded.height,
			width = excluded.width,
			valid_pixels = excluded.valid_pixels,
			nodata_pixels = excluded.nodata_pixels,
			min_value = excluded.min_value,
			max_value = excluded.max_value,
			mean_value = excluded.mean_value`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer upsert.Close()

	insertPixel, err := tx.PrepareContext(ctx, `
		INSERT INTO annual_index_pixel (variable, idx, year, row, col, value)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare pixel insert: %w", err)
	}
	defer insertPixel.Close()

	for _, r := range records {
		_, err := upsert.ExecContext(ctx, r.Variable, r.Index, r.Year, r.RunID,
			r.ProcessedAt.UTC().Format(time.RFC3339Nano), r.Grid.Height, r.Grid.Width,
			r.Summary.Valid, r.Summary.NoData,
			nullable(r.Summary.Min), nullable(r.Summary.Max), nullable(r.Summary.Mean))
		if err != nil {
			return fmt.Errorf("upsert %s: %w", r.Key(), err)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM annual_index_pixel WHERE variable = ? AND idx = ? AND year = ?`,
			r.Variable, r.Index, r.Year); err != nil {
			return fmt.Errorf("clear pixels %s: %w", r.Key(), err)
		}
		for i, v := range r.Grid.Values {
			row, col := i/r.Grid.Width, i%r.Grid.Width
			if _, err := insertPixel.ExecContext(ctx, r.Variable, r.Index, r.Year, row, col, nullable(v)); err != nil {
				return fmt.Errorf("insert pixel %s (%d,%d): %w", r.Key(), row, col, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ReadAnnual reconstructs one record, with NULL pixels restored as no-data.
func (s *Sink) ReadAnnual(ctx context.Context, variable, index string, year int) (domain.AnnualIndex, error) {
	r := domain.AnnualIndex{Variable: variable, Index: index, Year: year}
	var processedAt string
	var minV, maxV, meanV sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
		SELECT run_id, processed_at, height, width, valid_pixels, nodata_pixels,
			min_value, max_value, mean_value
		FROM annual_index WHERE variable = ? AND idx = ? AND year = ?`,
		variable, index, year).Scan(&r.RunID, &processedAt, &r.Grid.Height, &r.Grid.Width,
		&r.Summary.Valid, &r.Summary.NoData, &minV, &maxV, &meanV)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.AnnualIndex{}, fmt.Errorf("%w: %s/%s/%d", ErrNotFound, variable, index, year)
	}
	if err != nil {
		return domain.AnnualIndex{}, err
	}
	if r.ProcessedAt, err = time.Parse(time.RFC3339Nano, processedAt); err != nil {
		return domain.AnnualIndex{}, fmt.Errorf("parse processed_at: %w", err)
	}
	r.Summary.Min, r.Summary.Max, r.Summary.Mean = orNaN(minV), orNaN(maxV), orNaN(meanV)

	r.Grid = domain.NewNoDataGrid(r.Grid.Height, r.Grid.Width)
	rows, err := s.db.QueryContext(ctx, `
		SELECT row, col, value FROM annual_index_pixel
		WHERE variable = ? AND idx = ? AND year = ?`, variable, index, year)
	if err != nil {
		return domain.AnnualIndex{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var row, col int
		var v sql.NullFloat64
		if err := rows.Scan(&row, &col, &v); err != nil {
			return domain.AnnualIndex{}, err
		}
		r.Grid.Set(row, col, orNaN(v))
	}
	return r, rows.Err()
}

// Close releases the database handle.
func (s *Sink) Close() error {
	return s.db.Close()
}

// nullable maps no-data to SQL NULL; SQLite has no NaN.
func nullable(v float64) any {
	if math.IsNaN(v) {
		return nil
	}
	return v
}

func orNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
