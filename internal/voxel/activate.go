package voxel

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Sampler returns the density at a world position.
type Sampler interface {
	Sample(pos mgl32.Vec3, maxHeight float64) float64
}

// SamplerFunc adapts a plain function to Sampler.
type SamplerFunc func(pos mgl32.Vec3, maxHeight float64) float64

// Sample calls f.
func (f SamplerFunc) Sample(pos mgl32.Vec3, maxHeight float64) float64 {
	return f(pos, maxHeight)
}

// Pending is the ordered list of voxel anchors awaiting triangulation.
// A coordinate is kept at its first enqueue position; later enqueues of the
// same coordinate are dropped.
type Pending struct {
	coords []Coord
	seen   []bool
	grid   *Grid
	dups   int
}

// NewPending creates an empty pending list bound to g.
func NewPending(g *Grid) *Pending {
	return &Pending{
		seen: make([]bool, g.dims.Count()),
		grid: g,
	}
}

// Push enqueues c unless it is already queued. Out-of-bounds coordinates are ignored.
func (p *Pending) Push(c Coord) {
	if !p.grid.InBounds(c) {
		return
	}
	i := p.grid.Index(c)
	if p.seen[i] {
		p.dups++
		return
	}
	p.seen[i] = true
	p.coords = append(p.coords, c)
}

// Coords returns the queued anchors in enqueue order.
func (p *Pending) Coords() []Coord {
	return p.coords
}

// Len returns the number of distinct queued anchors.
func (p *Pending) Len() int {
	return len(p.coords)
}

// Duplicates returns how many enqueues were dropped as repeats.
func (p *Pending) Duplicates() int {
	return p.dups
}

// Activate samples every corner of g in raster order, marks corners whose
// density exceeds minDensity as Active, and schedules every voxel that could
// use an active corner.
func Activate(g *Grid, s Sampler, maxHeight, minDensity float64) *Pending {
	pending := NewPending(g)

	g.Each(func(c Coord, corner *Corner) {
		density := s.Sample(g.ToWorld(c), maxHeight)
		corner.Density = density

		if density > minDensity {
			corner.State = Active
			for x := c.X - 1; x <= c.X+1; x++ {
				for y := c.Y - 1; y <= c.Y+1; y++ {
					for z := c.Z - 1; z <= c.Z+1; z++ {
						n := Coord{x, y, z}
						if g.Interior(n) {
							pending.Push(n)
						}
					}
				}
			}
			pending.Push(c)
		} else {
			corner.State = Inactive
		}
	})

	return pending
}
