package domain

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// DefaultTileRows is the row-block height used when Tiling.TileRows is unset.
const DefaultTileRows = 16

// Tiling controls how per-pixel work is split across workers. Pixels are
// independent, so any block size yields identical results.
type Tiling struct {
	// TileRows is the number of grid rows per block.
	TileRows int
	// Workers caps concurrent blocks. Zero means GOMAXPROCS.
	Workers int
}

// forEachTile calls fn once per row block [r0, r1) and waits for all blocks.
func (t Tiling) forEachTile(height int, fn func(r0, r1 int) error) error {
	rows := t.TileRows
	if rows <= 0 {
		rows = DefaultTileRows
	}
	workers := t.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for r0 := 0; r0 < height; r0 += rows {
		r1 := min(r0+rows, height)
		g.Go(func() error {
			return fn(r0, r1)
		})
	}
	return g.Wait()
}
