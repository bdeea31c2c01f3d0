package terrain

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Smooth runs iterations passes of a 3x3 box blur over a cols x rows height
// field in place. Each pass reads only the previous pass's values and moves
// every cell toward its neighbourhood average by strength. Cells on the border
// average over the neighbours that exist.
func Smooth(ctx context.Context, heights []float64, cols, rows, iterations int, strength float64, workers int) error {
	if iterations <= 0 || strength == 0 || cols <= 0 || rows <= 0 {
		return nil
	}
	workers = workerCount(workers, rows)

	src := heights
	dst := make([]float64, len(heights))
	for iteration := 0; iteration < iterations; iteration++ {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		for row := 0; row < rows; row++ {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				smoothRow(src, dst, cols, rows, row, strength)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		src, dst = dst, src
	}

	// After an odd number of passes the result sits in the scratch buffer.
	if iterations%2 == 1 {
		copy(heights, src)
	}
	return nil
}

func smoothRow(src, dst []float64, cols, rows, z int, strength float64) {
	for x := 0; x < cols; x++ {
		total := 0.0
		count := 0
		for dz := -1; dz <= 1; dz++ {
			nz := z + dz
			if nz < 0 || nz >= rows {
				continue
			}
			for dx := -1; dx <= 1; dx++ {
				nx := x + dx
				if nx < 0 || nx >= cols {
					continue
				}
				total += src[nz*cols+nx]
				count++
			}
		}
		i := z*cols + x
		dst[i] = lerp(src[i], total/float64(count), strength)
	}
}
