// Package mesh holds triangle buffers and the derived data consumers need
// (bounds, normals, ray queries).
package mesh

import (
	"fmt"
	"image/color"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Mesh is three parallel buffers: positions, index triples and per-vertex colors.
// Indices are uint32 so meshes may exceed 65535 vertices.
type Mesh struct {
	Vertices  []mgl32.Vec3
	Triangles []uint32
	Colors    []color.RGBA
}

// New returns an empty mesh with room for n triangles.
func New(n int) *Mesh {
	return &Mesh{
		Vertices:  make([]mgl32.Vec3, 0, 3*n),
		Triangles: make([]uint32, 0, 3*n),
		Colors:    make([]color.RGBA, 0, 3*n),
	}
}

// AddTriangle appends three unshared vertices with a single flat color.
func (m *Mesh) AddTriangle(a, b, c mgl32.Vec3, col color.RGBA) {
	base := uint32(len(m.Vertices))
	m.Vertices = append(m.Vertices, a, b, c)
	m.Colors = append(m.Colors, col, col, col)
	m.Triangles = append(m.Triangles, base, base+1, base+2)
}

// TriangleCount returns the number of index triples.
func (m *Mesh) TriangleCount() int {
	if m == nil {
		return 0
	}
	return len(m.Triangles) / 3
}

// Empty reports whether the mesh has no triangles.
func (m *Mesh) Empty() bool {
	return m.TriangleCount() == 0
}

// Validate checks the buffer invariants.
func (m *Mesh) Validate() error {
	if len(m.Vertices) != len(m.Colors) {
		return fmt.Errorf("vertex/color count mismatch: %d vertices, %d colors", len(m.Vertices), len(m.Colors))
	}
	if len(m.Triangles)%3 != 0 {
		return fmt.Errorf("index count %d is not a multiple of 3", len(m.Triangles))
	}
	for i, idx := range m.Triangles {
		if int(idx) >= len(m.Vertices) {
			return fmt.Errorf("index %d at position %d out of range (%d vertices)", idx, i, len(m.Vertices))
		}
	}
	for i, v := range m.Vertices {
		for k := 0; k < 3; k++ {
			f := float64(v[k])
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return fmt.Errorf("vertex %d has a non-finite component", i)
			}
		}
	}
	return nil
}

// Triangle returns the three corner positions of triangle i.
func (m *Mesh) Triangle(i int) (mgl32.Vec3, mgl32.Vec3, mgl32.Vec3) {
	return m.Vertices[m.Triangles[3*i]], m.Vertices[m.Triangles[3*i+1]], m.Vertices[m.Triangles[3*i+2]]
}

// Bounds is an axis-aligned box.
type Bounds struct {
	Min, Max mgl32.Vec3
}

// Size returns Max-Min.
func (b Bounds) Size() mgl32.Vec3 {
	return b.Max.Sub(b.Min)
}

// Center returns the box midpoint.
func (b Bounds) Center() mgl32.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Bounds returns the box enclosing every vertex. ok is false for an empty mesh.
func (m *Mesh) Bounds() (b Bounds, ok bool) {
	if m == nil || len(m.Vertices) == 0 {
		return Bounds{}, false
	}
	b.Min, b.Max = m.Vertices[0], m.Vertices[0]
	for _, v := range m.Vertices[1:] {
		for k := 0; k < 3; k++ {
			if v[k] < b.Min[k] {
				b.Min[k] = v[k]
			}
			if v[k] > b.Max[k] {
				b.Max[k] = v[k]
			}
		}
	}
	return b, true
}

// Normals returns area-weighted per-vertex normals. Vertices of degenerate
// triangles get a zero normal.
func (m *Mesh) Normals() []mgl32.Vec3 {
	normals := make([]mgl32.Vec3, len(m.Vertices))
	for i := 0; i < m.TriangleCount(); i++ {
		a, b, c := m.Triangle(i)
		n := b.Sub(a).Cross(c.Sub(a))
		for k := 0; k < 3; k++ {
			idx := m.Triangles[3*i+k]
			normals[idx] = normals[idx].Add(n)
		}
	}
	for i, n := range normals {
		if l := n.Len(); l > 0 {
			normals[i] = n.Mul(1 / l)
		}
	}
	return normals
}
