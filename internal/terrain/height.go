package terrain

import (
	"context"
	"math"
	"runtime"
	"sync"

	"terrainmesh/internal/config"
	"terrainmesh/internal/noise"
)

// minEdgeRadius keeps the falloff division finite when the radius is zero.
const minEdgeRadius = 0.0001

// falloff blends noise heights toward a flat target near the mesh boundary.
type falloff struct {
	maxRadius  float64
	edgeRadius float64
	power      float64
	target     float64
}

func newFalloff(mc config.MeshConfig, ec config.EdgeFlattenConfig) falloff {
	return falloff{
		maxRadius:  math.Min(mc.Width*0.5, mc.Depth*0.5),
		edgeRadius: math.Max(minEdgeRadius, ec.Radius),
		power:      ec.Power,
		target:     ec.TargetHeight,
	}
}

// factor is 0 on and beyond the inscribed circle and rises to 1 once the point
// is edgeRadius inside it.
func (f falloff) factor(x, z float64) float64 {
	distFromCenter := math.Sqrt(x*x + z*z)
	distFromEdge := f.maxRadius - distFromCenter
	t := clamp(distFromEdge/f.edgeRadius, 0, 1)
	return math.Pow(t, f.power)
}

func (f falloff) apply(x, z, height float64) float64 {
	return lerp(f.target, height, f.factor(x, z))
}

type rowTask struct {
	row int
}

type rowResult struct {
	row int
	err error
}

// displace samples the noise for every vertex, scales it by variation and runs
// the edge falloff. Rows are spread across a worker pool; each worker writes a
// disjoint slice of heights so the result does not depend on scheduling.
func (g *Generator) displace(ctx context.Context, job generationJob, xs, zs []float64, cols, rows int) ([]float64, error) {
	heights := make([]float64, cols*rows)
	if rows == 0 {
		return heights, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	workers := workerCount(job.cfg.Mesh.Workers, rows)
	tasks := make(chan rowTask, workers)
	results := make(chan rowResult, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range tasks {
				if err := ctx.Err(); err != nil {
					select {
					case results <- rowResult{err: err}:
					default:
					}
					return
				}

				z := zs[task.row]
				base := task.row * cols
				for col := 0; col < cols; col++ {
					heights[base+col] = sampleHeight(job.source, job.falloff, job.cfg.Mesh.Variation, xs[col], z)
				}

				select {
				case results <- rowResult{row: task.row}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	go func() {
		defer close(tasks)
		for row := 0; row < rows; row++ {
			select {
			case <-ctx.Done():
				return
			case tasks <- rowTask{row: row}:
			}
		}
	}()

	progress := newProgress(g.logger, job.seed, rows)
	for result := range results {
		if result.err != nil {
			cancel()
			return nil, result.err
		}
		progress.step()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	progress.finish()
	return heights, nil
}

// sampleHeight is the pre-smoothing height of a single point.
func sampleHeight(src noise.Source, f falloff, variation, x, z float64) float64 {
	return f.apply(x, z, src.Noise2D(x, z)*variation)
}

func workerCount(configured, rows int) int {
	if rows <= 0 {
		return 1
	}
	workers := configured
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0) * 2
	}
	if workers > rows {
		workers = rows
	}
	if workers <= 0 {
		workers = 1
	}
	return workers
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func lerp(a, b, t float64) float64 {
	return a + t*(b-a)
}
