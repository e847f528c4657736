package domain

import (
	"fmt"
	"math"
)

// Grid is a row-major raster of daily samples. NaN marks no-data.
type Grid struct {
	Height int
	Width  int
	Values []float64
}

// NewGrid allocates a zero-filled grid.
func NewGrid(height, width int) Grid {
	return Grid{Height: height, Width: width, Values: make([]float64, height*width)}
}

// NewNoDataGrid allocates a grid with every pixel set to no-data.
func NewNoDataGrid(height, width int) Grid {
	g := NewGrid(height, width)
	for i := range g.Values {
		g.Values[i] = math.NaN()
	}
	return g
}

// FilledGrid allocates a grid with every pixel set to v.
func FilledGrid(height, width int, v float64) Grid {
	g := NewGrid(height, width)
	for i := range g.Values {
		g.Values[i] = v
	}
	return g
}

// IsNoData reports whether v is the no-data sentinel.
func IsNoData(v float64) bool { return math.IsNaN(v) }

// Len is the number of pixels.
func (g Grid) Len() int { return g.Height * g.Width }

// Set stores v at (row, col).
func (g Grid) Set(row, col int, v float64) { g.Values[row*g.Width+col] = v }

// SameShape reports whether both grids have identical dimensions.
func (g Grid) SameShape(o Grid) bool { return g.Height == o.Height && g.Width == o.Width }

// check verifies the backing slice matches the declared dimensions.
func (g Grid) check() error {
	if g.Height < 0 || g.Width < 0 || len(g.Values) != g.Height*g.Width {
		return fmt.Errorf("%w: grid %dx%d backed by %d values", ErrShapeMismatch, g.Height, g.Width, len(g.Values))
	}
	return nil
}

func shapeError(what string, want, got Grid) error {
	return fmt.Errorf("%w: %s is %dx%d, want %dx%d", ErrShapeMismatch, what, got.Height, got.Width, want.Height, want.Width)
}
