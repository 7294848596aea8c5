// Package mesher extracts a triangle mesh from an activated voxel grid with
// marching cubes.
package mesher

import (
	"image/color"
	"log/slog"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/MeKo-Tech/cavegen/internal/mesh"
	"github.com/MeKo-Tech/cavegen/internal/voxel"
)

// ColorMap maps a normalized height to a vertex color.
type ColorMap interface {
	At(t float64) color.RGBA
}

// Options configures one extraction pass.
type Options struct {
	Interpolate bool
	MinDensity  float64
	MaxHeight   float64
	ColorMap    ColorMap
}

// Stats summarizes a pass.
type Stats struct {
	Anchors   int // pending entries visited
	Skipped   int // already Rendered
	Empty     int // mask with no triangles
	Triangles int
	// Recovered counts edge components that fell back to the midpoint.
	Recovered int
}

// Mesher runs marching cubes over the pending anchors of a grid.
type Mesher struct {
	opts   Options
	logger *slog.Logger
}

// New creates a mesher. logger may be nil.
func New(opts Options, logger *slog.Logger) *Mesher {
	return &Mesher{opts: opts, logger: logger}
}

// Mesh triangulates every pending anchor in order and marks Active anchors Rendered.
func (m *Mesher) Mesh(g *voxel.Grid, pending *voxel.Pending) (*mesh.Mesh, Stats) {
	out := mesh.New(pending.Len())
	var stats Stats

	for _, c := range pending.Coords() {
		stats.Anchors++
		anchor := g.At(c)
		if anchor.State == voxel.Rendered {
			stats.Skipped++
			continue
		}

		row := &TriangulationTable[CornerMask(g, c)]
		if row[0] < 0 {
			stats.Empty++
		} else {
			base := g.ToWorld(c)
			offsets, recovered := EdgeOffsets(g, c, m.opts.Interpolate, m.opts.MinDensity)
			stats.Recovered += recovered

			for j := 0; j+2 < len(row) && row[j] >= 0; j += 3 {
				a := base.Add(offsets[row[j]])
				b := base.Add(offsets[row[j+1]])
				v := base.Add(offsets[row[j+2]])
				out.AddTriangle(a, b, v, m.triangleColor(a, b, v))
				stats.Triangles++
			}
		}

		if anchor.State == voxel.Active {
			anchor.State = voxel.Rendered
		}
	}

	m.log().Debug("Marching cubes pass complete",
		"anchors", stats.Anchors,
		"skipped", stats.Skipped,
		"triangles", stats.Triangles,
		"recovered_edges", stats.Recovered,
	)
	return out, stats
}

func (m *Mesher) triangleColor(a, b, c mgl32.Vec3) color.RGBA {
	centroid := a.Add(b).Add(c).Mul(1.0 / 3.0)
	if m.opts.ColorMap == nil {
		return color.RGBA{R: 255, G: 255, B: 255, A: 255}
	}
	return m.opts.ColorMap.At(float64(centroid.Y()) / m.opts.MaxHeight)
}

func (m *Mesher) log() *slog.Logger {
	if m.logger != nil {
		return m.logger
	}
	return slog.Default()
}
