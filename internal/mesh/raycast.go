package mesh

import (
	"github.com/go-gl/mathgl/mgl32"
)

const rayEpsilon = 1e-7

// Hit is the nearest surface intersection found by Raycast.
type Hit struct {
	Point    mgl32.Vec3
	Distance float32
	Triangle int
}

// Raycast returns the nearest intersection of the ray with any triangle within
// maxDistance. Both triangle faces are hit. dir need not be normalized.
func (m *Mesh) Raycast(origin, dir mgl32.Vec3, maxDistance float32) (Hit, bool) {
	if m == nil || dir.Len() == 0 {
		return Hit{}, false
	}
	dir = dir.Normalize()

	best := Hit{Distance: maxDistance, Triangle: -1}
	for i := 0; i < m.TriangleCount(); i++ {
		a, b, c := m.Triangle(i)
		if t, ok := intersect(origin, dir, a, b, c); ok && t <= best.Distance {
			best = Hit{Point: origin.Add(dir.Mul(t)), Distance: t, Triangle: i}
		}
	}
	if best.Triangle < 0 {
		return Hit{}, false
	}
	return best, true
}

// intersect is Möller–Trumbore; it returns the ray parameter t of the hit.
func intersect(origin, dir, a, b, c mgl32.Vec3) (float32, bool) {
	e1 := b.Sub(a)
	e2 := c.Sub(a)
	p := dir.Cross(e2)
	det := e1.Dot(p)
	if det > -rayEpsilon && det < rayEpsilon {
		return 0, false
	}
	inv := 1 / det

	s := origin.Sub(a)
	u := s.Dot(p) * inv
	if u < 0 || u > 1 {
		return 0, false
	}
	q := s.Cross(e1)
	v := dir.Dot(q) * inv
	if v < 0 || u+v > 1 {
		return 0, false
	}
	t := e2.Dot(q) * inv
	if t < 0 {
		return 0, false
	}
	return t, true
}
