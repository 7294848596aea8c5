package mesher

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/MeKo-Tech/cavegen/internal/voxel"
)

// CornerOffsets lists the voxel corners relative to the anchor; corner i is bit i of the mask.
var CornerOffsets = [8][3]int{
	{0, 0, 0},
	{1, 0, 0},
	{1, 0, 1},
	{0, 0, 1},
	{0, 1, 0},
	{1, 1, 0},
	{1, 1, 1},
	{0, 1, 1},
}

// EdgeCorners gives the (A, B) corner pair of each of the 12 voxel edges.
// Interpolation runs from A towards B.
var EdgeCorners = [12][2]int{
	{0, 1}, {1, 2}, {3, 2}, {0, 3},
	{4, 5}, {5, 6}, {7, 6}, {4, 7},
	{0, 4}, {1, 5}, {2, 6}, {3, 7},
}

func corner(anchor voxel.Coord, i int) voxel.Coord {
	o := CornerOffsets[i]
	return voxel.Coord{X: anchor.X + o[0], Y: anchor.Y + o[1], Z: anchor.Z + o[2]}
}

// CornerMask packs the solidity of the 8 corners of the voxel anchored at c.
// Boundary anchors have no complete voxel and always yield 0.
func CornerMask(g *voxel.Grid, c voxel.Coord) uint8 {
	if !g.Interior(c) {
		return 0
	}
	var mask uint8
	for i := 0; i < 8; i++ {
		if g.State(corner(c, i)).Solid() {
			mask |= 1 << i
		}
	}
	return mask
}

// MidpointOffsets returns the fixed edge midpoints of a voxel of size res.
func MidpointOffsets(res float32) [12]mgl32.Vec3 {
	var out [12]mgl32.Vec3
	for e, pair := range EdgeCorners {
		a, b := CornerOffsets[pair[0]], CornerOffsets[pair[1]]
		for k := 0; k < 3; k++ {
			out[e][k] = float32(a[k]+b[k]) * res / 2
		}
	}
	return out
}

// EdgeOffsets returns the surface crossing point on each edge relative to the
// anchor. With interpolation disabled, or for a boundary anchor, every edge
// uses its midpoint. Otherwise the crossing is placed linearly by density;
// any component that is NaN or leaves [0,res] falls back to res/2.
// The second result counts components that needed that fallback.
func EdgeOffsets(g *voxel.Grid, c voxel.Coord, interpolate bool, minDensity float64) ([12]mgl32.Vec3, int) {
	res := float32(g.Resolution())
	if !interpolate || !g.Interior(c) {
		return MidpointOffsets(res), 0
	}

	var out [12]mgl32.Vec3
	recovered := 0
	for e, pair := range EdgeCorners {
		a, b := CornerOffsets[pair[0]], CornerOffsets[pair[1]]
		dA := g.Density(corner(c, pair[0]))
		dB := g.Density(corner(c, pair[1]))
		frac := float32((minDensity - dA) / (dB - dA) * float64(res))

		for k := 0; k < 3; k++ {
			v := float32(a[k]) * res
			if a[k] != b[k] {
				v += float32(b[k]-a[k]) * frac
			}
			if math.IsNaN(float64(v)) || v < 0 || v > res {
				v = res / 2
				recovered++
			}
			out[e][k] = v
		}
	}
	return out, recovered
}
