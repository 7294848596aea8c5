package mesh

import (
	"image/color"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var grey = color.RGBA{R: 90, G: 90, B: 90, A: 255}

// quad builds two triangles covering [0,2]x[0,2] in the XZ plane at height y.
func quad(y float32) *Mesh {
	m := New(2)
	m.AddTriangle(mgl32.Vec3{0, y, 0}, mgl32.Vec3{0, y, 2}, mgl32.Vec3{2, y, 0}, grey)
	m.AddTriangle(mgl32.Vec3{2, y, 0}, mgl32.Vec3{0, y, 2}, mgl32.Vec3{2, y, 2}, grey)
	return m
}

func TestAddTriangle_Invariants(t *testing.T) {
	m := quad(1)

	assert.Equal(t, 2, m.TriangleCount())
	assert.Equal(t, []uint32{0, 1, 2, 3, 4, 5}, m.Triangles)
	assert.Len(t, m.Colors, len(m.Vertices))
	require.NoError(t, m.Validate())
	assert.False(t, m.Empty())
}

func TestValidate_Failures(t *testing.T) {
	m := quad(0)
	m.Colors = m.Colors[:5]
	assert.Error(t, m.Validate())

	m = quad(0)
	m.Triangles = append(m.Triangles, 1)
	assert.Error(t, m.Validate())

	m = quad(0)
	m.Triangles[0] = 99
	assert.Error(t, m.Validate())

	m = quad(0)
	m.Vertices[2][1] = float32(math.NaN())
	assert.Error(t, m.Validate())
}

func TestBounds(t *testing.T) {
	_, ok := (&Mesh{}).Bounds()
	assert.False(t, ok)

	m := quad(3)
	m.AddTriangle(mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 5, 0}, mgl32.Vec3{0, 0, -4}, grey)

	b, ok := m.Bounds()
	require.True(t, ok)
	assert.Equal(t, mgl32.Vec3{-1, 0, -4}, b.Min)
	assert.Equal(t, mgl32.Vec3{2, 5, 2}, b.Max)
	assert.Equal(t, mgl32.Vec3{3, 5, 6}, b.Size())
	assert.Equal(t, mgl32.Vec3{0.5, 2.5, -1}, b.Center())
}

func TestNormals_FlatQuadPointsUp(t *testing.T) {
	m := quad(0)

	for i, n := range m.Normals() {
		assert.InDelta(t, 0, n.X(), 1e-6, "vertex %d", i)
		assert.InDelta(t, 1, n.Y(), 1e-6, "vertex %d", i)
		assert.InDelta(t, 0, n.Z(), 1e-6, "vertex %d", i)
	}
}

func TestNormals_DegenerateTriangleIsZero(t *testing.T) {
	m := New(1)
	p := mgl32.Vec3{1, 1, 1}
	m.AddTriangle(p, p, p, grey)

	for _, n := range m.Normals() {
		assert.Equal(t, mgl32.Vec3{}, n)
	}
}

func TestRaycast(t *testing.T) {
	m := quad(1)
	m.AddTriangle(mgl32.Vec3{0, 3, 0}, mgl32.Vec3{0, 3, 2}, mgl32.Vec3{2, 3, 0}, grey)

	hit, ok := m.Raycast(mgl32.Vec3{0.5, 10, 0.5}, mgl32.Vec3{0, -1, 0}, 100)
	require.True(t, ok)
	assert.InDelta(t, 3, hit.Point.Y(), 1e-5, "nearest surface wins")
	assert.InDelta(t, 7, hit.Distance, 1e-5)
	assert.Equal(t, 2, hit.Triangle)

	// below the upper triangle only the quad is hit
	hit, ok = m.Raycast(mgl32.Vec3{0.5, 2, 0.5}, mgl32.Vec3{0, -2, 0}, 100)
	require.True(t, ok)
	assert.InDelta(t, 1, hit.Point.Y(), 1e-5)

	_, ok = m.Raycast(mgl32.Vec3{0.5, 10, 0.5}, mgl32.Vec3{0, -1, 0}, 5)
	assert.False(t, ok, "out of range")

	_, ok = m.Raycast(mgl32.Vec3{5, 10, 5}, mgl32.Vec3{0, -1, 0}, 100)
	assert.False(t, ok, "misses footprint")

	_, ok = m.Raycast(mgl32.Vec3{0.5, 10, 0.5}, mgl32.Vec3{0, 1, 0}, 100)
	assert.False(t, ok, "pointing away")

	_, ok = m.Raycast(mgl32.Vec3{0.5, 10, 0.5}, mgl32.Vec3{}, 100)
	assert.False(t, ok, "zero direction")
}
