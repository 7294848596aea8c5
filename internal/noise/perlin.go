package noise

import (
	"github.com/aquilax/go-perlin"
)

// Source is a coherent 2D noise primitive returning values roughly in [0,1].
type Source interface {
	Noise2D(x, y float64) float64
}

// SourceFunc adapts a plain function to Source.
type SourceFunc func(x, y float64) float64

// Noise2D calls f(x, y).
func (f SourceFunc) Noise2D(x, y float64) float64 {
	return f(x, y)
}

// PerlinSource is the default Source backed by go-perlin.
type PerlinSource struct {
	p    *perlin.Perlin
	seed int64
}

// NewPerlinSource creates a single-octave Perlin source for the given seed.
// alpha and beta only matter for multi-octave sums; they are kept at the usual 2/2.
func NewPerlinSource(seed int64) *PerlinSource {
	return &PerlinSource{
		p:    perlin.NewPerlin(2.0, 2.0, 1, seed),
		seed: seed,
	}
}

// Noise2D maps go-perlin's [-1,1] output into [0,1].
func (s *PerlinSource) Noise2D(x, y float64) float64 {
	return (s.p.Noise2D(x, y) + 1.0) / 2.0
}

// Seed returns the seed the source was built with.
func (s *PerlinSource) Seed() int64 {
	return s.seed
}
