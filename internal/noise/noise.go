// Package noise provides the coherent 2D noise sources used to displace
// terrain heights. Every source is deterministic for a given seed.
package noise

import (
	"fmt"
	"math"

	"github.com/aquilax/go-perlin"
	"github.com/ojrac/opensimplex-go"

	"terrainmesh/internal/config"
)

// Source samples a continuous noise field. Values are roughly within [-1, 1].
type Source interface {
	Noise2D(x, y float64) float64
}

// New builds the base source named by cfg.Type and layers fractal octaves on top.
func New(cfg config.NoiseConfig) (*Fractal, error) {
	var base Source
	switch cfg.Type {
	case config.NoiseOpenSimplex, "":
		base = NewOpenSimplex(cfg.Seed)
	case config.NoisePerlin:
		base = NewPerlin(cfg.Seed)
	case config.NoiseValue:
		base = NewValue(cfg.Seed)
	default:
		return nil, fmt.Errorf("unsupported noise type %q", cfg.Type)
	}
	return NewFractal(base, cfg), nil
}

type openSimplexSource struct {
	noise opensimplex.Noise
}

func NewOpenSimplex(seed int64) Source {
	return &openSimplexSource{noise: opensimplex.New(seed)}
}

func (s *openSimplexSource) Noise2D(x, y float64) float64 {
	return s.noise.Eval2(x, y)
}

type perlinSource struct {
	perlin *perlin.Perlin
}

// NewPerlin returns single octave gradient noise. Octaves are applied by Fractal
// so the library's own summation is kept at n=1.
func NewPerlin(seed int64) Source {
	return &perlinSource{perlin: perlin.NewPerlin(2, 2, 1, seed)}
}

func (s *perlinSource) Noise2D(x, y float64) float64 {
	return s.perlin.Noise2D(x, y)
}

// valueSource creates repeatable noise by hashing lattice points and smoothly
// interpolating between them.
type valueSource struct {
	seed int64
}

func NewValue(seed int64) Source {
	return &valueSource{seed: seed}
}

func (s *valueSource) Noise2D(x, y float64) float64 {
	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))
	x1 := x0 + 1
	y1 := y0 + 1

	sx := smooth(x - float64(x0))
	sy := smooth(y - float64(y0))

	n0 := random2D(x0, y0, s.seed)
	n1 := random2D(x1, y0, s.seed)
	ix0 := lerp(n0, n1, sx)

	n2 := random2D(x0, y1, s.seed)
	n3 := random2D(x1, y1, s.seed)
	ix1 := lerp(n2, n3, sx)

	return lerp(ix0, ix1, sy)
}

func smooth(t float64) float64 {
	return t * t * (3 - 2*t)
}

func lerp(a, b, t float64) float64 {
	return a + t*(b-a)
}

func random2D(x, y int, seed int64) float64 {
	return float64(hash3(x, y, int(seed))&0xFFFF)/0x8000 - 1.0
}

func hash3(x, y, z int) uint32 {
	h := uint32(x*374761393 + y*668265263 + z*2147483647)
	h = (h ^ (h >> 13)) * 1274126177
	return h ^ (h >> 16)
}

// Fractal sums octaves of a base source (fBm) and normalises the result by the
// total amplitude so the output stays in the base source's range.
type Fractal struct {
	base       Source
	frequency  float64
	octaves    int
	lacunarity float64
	gain       float64
}

func NewFractal(base Source, cfg config.NoiseConfig) *Fractal {
	octaves := cfg.Octaves
	if octaves <= 0 {
		octaves = 1
	}
	return &Fractal{
		base:       base,
		frequency:  cfg.Frequency,
		octaves:    octaves,
		lacunarity: cfg.Lacunarity,
		gain:       cfg.Gain,
	}
}

func (f *Fractal) Noise2D(x, y float64) float64 {
	frequency := f.frequency
	amplitude := 1.0
	noiseSum := 0.0
	maxAmplitude := 0.0

	for i := 0; i < f.octaves; i++ {
		noiseSum += f.base.Noise2D(x*frequency, y*frequency) * amplitude
		maxAmplitude += amplitude
		amplitude *= f.gain
		frequency *= f.lacunarity
	}

	if maxAmplitude == 0 {
		return 0
	}
	return noiseSum / maxAmplitude
}
