package terrain

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"

	"terrainmesh/internal/config"
	"terrainmesh/internal/mesh"
	"terrainmesh/internal/noise"
)

// Generator turns the mesh, edge flatten, smoothing and noise settings into
// terrain meshes. It is safe for concurrent use; the noise seed can be swapped
// between generations.
type Generator struct {
	mu     sync.RWMutex
	cfg    config.Config
	source noise.Source
	logger *log.Logger
}

// generationJob is an immutable snapshot of the generator state for one run.
type generationJob struct {
	cfg     config.Config
	seed    int64
	source  noise.Source
	falloff falloff
}

// NewGenerator builds the noise source for cfg. A nil logger logs to the standard logger's writer.
func NewGenerator(cfg config.Config, logger *log.Logger) (*Generator, error) {
	if logger == nil {
		logger = log.New(log.Writer(), "terrain ", log.LstdFlags|log.Lmicroseconds)
	}
	source, err := noise.New(cfg.Noise)
	if err != nil {
		return nil, fmt.Errorf("build noise: %w", err)
	}
	return &Generator{cfg: cfg, source: source, logger: logger}, nil
}

// Seed returns the seed used by Generate.
func (g *Generator) Seed() int64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.cfg.Noise.Seed
}

// SetSeed rebuilds the noise source for seed.
func (g *Generator) SetSeed(seed int64) error {
	noiseCfg := g.Config().Noise
	noiseCfg.Seed = seed
	source, err := noise.New(noiseCfg)
	if err != nil {
		return fmt.Errorf("build noise: %w", err)
	}
	g.mu.Lock()
	g.cfg.Noise.Seed = seed
	g.source = source
	g.mu.Unlock()
	return nil
}

// RandomizeSeed picks a fresh 32-bit seed, installs it and returns it.
func (g *Generator) RandomizeSeed() (int64, error) {
	seed := RandomSeed()
	if err := g.SetSeed(seed); err != nil {
		return 0, err
	}
	g.logger.Printf("noise seed set to %d", seed)
	return seed, nil
}

// RandomSeed returns a random seed in the signed 32-bit range.
func RandomSeed() int64 {
	return int64(int32(rand.Uint32()))
}

// Config returns a copy of the generator configuration.
func (g *Generator) Config() config.Config {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.cfg
}

func (g *Generator) snapshot() generationJob {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return generationJob{
		cfg:     g.cfg,
		seed:    g.cfg.Noise.Seed,
		source:  g.source,
		falloff: newFalloff(g.cfg.Mesh, g.cfg.EdgeFlatten),
	}
}

// Generate builds a mesh with the current seed.
func (g *Generator) Generate(ctx context.Context) (*mesh.Mesh, error) {
	return g.run(ctx, g.snapshot())
}

// GenerateSeed builds a mesh with seed without changing the generator's seed.
func (g *Generator) GenerateSeed(ctx context.Context, seed int64) (*mesh.Mesh, error) {
	job := g.snapshot()
	job.cfg.Noise.Seed = seed
	source, err := noise.New(job.cfg.Noise)
	if err != nil {
		return nil, fmt.Errorf("build noise: %w", err)
	}
	job.seed = seed
	job.source = source
	return g.run(ctx, job)
}

// HeightAt reports the displaced and edge flattened height at world position
// (x, z) before smoothing.
func (g *Generator) HeightAt(x, z float64) float64 {
	job := g.snapshot()
	return sampleHeight(job.source, job.falloff, job.cfg.Mesh.Variation, x, z)
}

func (g *Generator) run(ctx context.Context, job generationJob) (*mesh.Mesh, error) {
	started := time.Now()
	cfg := job.cfg

	m := NewPlane(cfg.Mesh.Width, cfg.Mesh.Depth, cfg.Mesh.Subdivisions)
	m.ID = uuid.New()
	m.Seed = job.seed

	xs := make([]float64, m.Cols)
	for col := range xs {
		xs[col] = float64(m.Vertices[col].X())
	}
	zs := make([]float64, m.Rows)
	for row := range zs {
		zs[row] = float64(m.Vertices[m.Index(0, row)].Z())
	}

	heights, err := g.displace(ctx, job, xs, zs, m.Cols, m.Rows)
	if err != nil {
		return nil, fmt.Errorf("displace heights: %w", err)
	}

	if cfg.Smoothing.Enabled {
		if err := Smooth(ctx, heights, m.Cols, m.Rows, cfg.Smoothing.Iterations, cfg.Smoothing.Strength, cfg.Mesh.Workers); err != nil {
			return nil, fmt.Errorf("smooth heights: %w", err)
		}
	}

	for i, h := range heights {
		v := m.Vertices[i]
		m.Vertices[i] = mgl32.Vec3{v.X(), float32(h), v.Z()}
	}
	m.RecomputeNormals()
	m.CreatedAt = time.Now().UTC()

	g.logger.Printf("mesh %s seed %d: %dx%d vertices, %d triangles in %s",
		m.ID, m.Seed, m.Cols, m.Rows, len(m.Indices)/3, time.Since(started).Round(time.Millisecond))
	return m, nil
}

// progress logs generation progress in 10% steps.
type progress struct {
	logger   *log.Logger
	seed     int64
	total    int
	done     int
	nextLog  int
	complete bool
}

func newProgress(logger *log.Logger, seed int64, total int) *progress {
	logger.Printf("seed %d generation progress: 0%%", seed)
	return &progress{logger: logger, seed: seed, total: total, nextLog: 10}
}

func (p *progress) step() {
	p.done++
	percent := p.done * 100 / p.total
	if percent < p.nextLog {
		return
	}
	if percent > 100 {
		percent = 100
	}
	p.logger.Printf("seed %d generation progress: %d%%", p.seed, percent)
	if percent >= 100 {
		p.complete = true
		p.nextLog = 110
		return
	}
	p.nextLog = (percent/10 + 1) * 10
}

func (p *progress) finish() {
	if !p.complete {
		p.logger.Printf("seed %d generation progress: 100%%", p.seed)
		p.complete = true
	}
}
