// Package voxel holds the sampled corner lattice and the activation pass that
// schedules voxels for triangulation.
package voxel

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// CornerState tracks a lattice corner through one generation pass.
type CornerState uint8

const (
	Inactive CornerState = iota
	Active
	// Rendered marks an Active corner whose voxel has been triangulated.
	Rendered
)

func (s CornerState) String() string {
	switch s {
	case Inactive:
		return "inactive"
	case Active:
		return "active"
	case Rendered:
		return "rendered"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Solid reports whether the corner counts as inside the volume.
func (s CornerState) Solid() bool {
	return s == Active || s == Rendered
}

// Corner is the record stored per lattice point.
type Corner struct {
	Density float64
	State   CornerState
}

// Coord is an integer lattice coordinate.
type Coord struct {
	X, Y, Z int
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d,%d)", c.X, c.Y, c.Z)
}

// Dims is the lattice size per axis.
type Dims struct {
	X, Y, Z int
}

// Count returns the number of lattice points.
func (d Dims) Count() int {
	return d.X * d.Y * d.Z
}

// ConfigError reports generation parameters that cannot produce a grid.
// Err, when set, carries the underlying validation failure and Value is ignored.
type ConfigError struct {
	Field string
	Value float64
	Msg   string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid configuration: %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("invalid configuration: %s=%g: %s", e.Field, e.Value, e.Msg)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ComputeDims derives the lattice size from the world extents:
// X and Z span 2*radius, Y spans maxHeight, all divided by resolution.
func ComputeDims(radius, resolution, maxHeight float64) (Dims, error) {
	for _, p := range []struct {
		name string
		v    float64
	}{
		{"resolution", resolution},
		{"radius", radius},
		{"max_height", maxHeight},
	} {
		if !(p.v > 0) || math.IsInf(p.v, 0) {
			return Dims{}, &ConfigError{Field: p.name, Value: p.v, Msg: "must be a positive finite number"}
		}
	}

	d := Dims{
		X: int(math.Floor(2 * radius / resolution)),
		Y: int(math.Floor(maxHeight / resolution)),
		Z: int(math.Floor(2 * radius / resolution)),
	}
	if d.X <= 0 {
		return Dims{}, &ConfigError{Field: "radius", Value: radius, Msg: fmt.Sprintf("yields %d cells along x/z at resolution %g", d.X, resolution)}
	}
	if d.Y <= 0 {
		return Dims{}, &ConfigError{Field: "max_height", Value: maxHeight, Msg: fmt.Sprintf("yields %d cells along y at resolution %g", d.Y, resolution)}
	}
	return d, nil
}

// Grid is a flat, owned buffer of corners indexed by (x*dimY + y)*dimZ + z.
type Grid struct {
	dims       Dims
	resolution float64
	corners    []Corner
}

// NewGrid allocates a zeroed grid (all corners Inactive, density 0).
func NewGrid(dims Dims, resolution float64) (*Grid, error) {
	if dims.X <= 0 || dims.Y <= 0 || dims.Z <= 0 {
		return nil, &ConfigError{Field: "dims", Value: float64(dims.Count()), Msg: fmt.Sprintf("non-positive grid %dx%dx%d", dims.X, dims.Y, dims.Z)}
	}
	if !(resolution > 0) {
		return nil, &ConfigError{Field: "resolution", Value: resolution, Msg: "must be positive"}
	}
	return &Grid{
		dims:       dims,
		resolution: resolution,
		corners:    make([]Corner, dims.Count()),
	}, nil
}

// Dims returns the lattice size.
func (g *Grid) Dims() Dims { return g.dims }

// Resolution returns the world distance between neighbouring corners.
func (g *Grid) Resolution() float64 { return g.resolution }

// InBounds reports whether c addresses a stored corner.
func (g *Grid) InBounds(c Coord) bool {
	return c.X >= 0 && c.X < g.dims.X &&
		c.Y >= 0 && c.Y < g.dims.Y &&
		c.Z >= 0 && c.Z < g.dims.Z
}

// Interior reports whether c can anchor a complete 8-corner voxel.
func (g *Grid) Interior(c Coord) bool {
	return c.X >= 0 && c.X < g.dims.X-1 &&
		c.Y >= 0 && c.Y < g.dims.Y-1 &&
		c.Z >= 0 && c.Z < g.dims.Z-1
}

// Index returns the flat buffer index of c. c must be in bounds.
func (g *Grid) Index(c Coord) int {
	return (c.X*g.dims.Y+c.Y)*g.dims.Z + c.Z
}

// At returns a pointer into the buffer for c. c must be in bounds.
func (g *Grid) At(c Coord) *Corner {
	return &g.corners[g.Index(c)]
}

// Density returns the sampled density at c.
func (g *Grid) Density(c Coord) float64 {
	return g.corners[g.Index(c)].Density
}

// State returns the corner state at c.
func (g *Grid) State(c Coord) CornerState {
	return g.corners[g.Index(c)].State
}

// ToWorld maps a lattice coordinate to world space, centring x and z on the origin.
func (g *Grid) ToWorld(c Coord) mgl32.Vec3 {
	res := float32(g.resolution)
	return mgl32.Vec3{
		(float32(c.X) - float32(g.dims.X)/2.0) * res,
		float32(c.Y) * res,
		(float32(c.Z) - float32(g.dims.Z)/2.0) * res,
	}
}

// Each visits every corner in raster order (x outer, z inner).
func (g *Grid) Each(fn func(c Coord, corner *Corner)) {
	for x := 0; x < g.dims.X; x++ {
		for y := 0; y < g.dims.Y; y++ {
			for z := 0; z < g.dims.Z; z++ {
				c := Coord{x, y, z}
				fn(c, &g.corners[g.Index(c)])
			}
		}
	}
}

// CountState counts corners whose state is any of states.
func (g *Grid) CountState(states ...CornerState) int {
	n := 0
	for i := range g.corners {
		for _, s := range states {
			if g.corners[i].State == s {
				n++
				break
			}
		}
	}
	return n
}
