// Package gridfile stores daily year stacks, threshold calendars and annual
// index grids as msgpack files on the local filesystem.
//
// Every file holds a list of labelled bands sharing one height×width. Year
// stacks label bands with their date ("1961-01-01"), calendars with their slot
// ("Day-1".."Day-366") and annual outputs with the index and year
// ("CSDI_1961"). No-data is stored as NaN.
package gridfile

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/couchcryptid/climate-extremes-etl/internal/domain"
)

const ext = ".msgpack"

type band struct {
	Label  string    `msgpack:"label"`
	Values []float64 `msgpack:"values"`
}

func toBand(label string, g domain.Grid) band {
	return band{Label: label, Values: g.Values}
}

func (b band) grid(height, width int) (domain.Grid, error) {
	if len(b.Values) != height*width {
		return domain.Grid{}, fmt.Errorf("%w: band %q has %d values, want %dx%d",
			domain.ErrShapeMismatch, b.Label, len(b.Values), height, width)
	}
	return domain.Grid{Height: height, Width: width, Values: b.Values}, nil
}

// writeFile encodes v into path through a temp file and rename, so readers
// never observe a partial file.
func writeFile(path string, v any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after a successful rename

	bw := bufio.NewWriter(tmp)
	if err := msgpack.NewEncoder(bw).Encode(v); err != nil {
		tmp.Close() //nolint:errcheck,gosec // encode error takes precedence
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := bw.Flush(); err != nil {
		tmp.Close() //nolint:errcheck,gosec // flush error takes precedence
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return os.Rename(tmp.Name(), path)
}

// readFile decodes path into v. A missing file is reported with notFound
// wrapped so callers can match it with errors.Is.
func readFile(path string, v any, notFound error) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", notFound, path)
		}
		return err
	}
	defer f.Close()

	if err := msgpack.NewDecoder(bufio.NewReader(f)).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
