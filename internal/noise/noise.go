// Package noise evaluates layered density fields built from a 2D noise primitive.
package noise

import (
	"math/rand"

	"github.com/go-gl/mathgl/mgl32"
)

// MaxOffset bounds the values produced by RandomizeOffset.
const MaxOffset = 100000.0

// Layer is one weighted noise contribution to the density field.
type Layer struct {
	Name              string
	Enabled           bool
	OverallDensity    float64
	DensityOverHeight Curve
	Zoom              float64
	Offset            mgl32.Vec3
}

// Noise3D approximates coherent 3D noise by averaging the 2D source over the
// three axis pairs and their swapped-argument variants.
func Noise3D(src Source, x, y, z float64) float64 {
	xy := src.Noise2D(x, y)
	yz := src.Noise2D(y, z)
	xz := src.Noise2D(x, z)
	yx := src.Noise2D(y, x)
	zy := src.Noise2D(z, y)
	zx := src.Noise2D(z, x)

	return (xy + yz + xz + yx + zy + zx) / 6.0
}

// Sample returns the layer's density contribution at pos. Disabled layers
// return 0 without touching the source or the curve.
func (l *Layer) Sample(src Source, pos mgl32.Vec3, maxHeight float64) float64 {
	if !l.Enabled {
		return 0
	}

	v := Noise3D(src,
		l.Zoom*float64(pos.X())+float64(l.Offset.X()),
		l.Zoom*float64(pos.Y())+float64(l.Offset.Y()),
		l.Zoom*float64(pos.Z())+float64(l.Offset.Z()),
	)
	v *= l.DensityOverHeight.Evaluate(float64(pos.Y()) / maxHeight)
	v *= l.OverallDensity

	return v
}

// RandomizeOffset assigns each offset component an independent value in [0, MaxOffset).
func (l *Layer) RandomizeOffset(rng *rand.Rand) {
	l.Offset = mgl32.Vec3{
		float32(rng.Float64() * MaxOffset),
		float32(rng.Float64() * MaxOffset),
		float32(rng.Float64() * MaxOffset),
	}
}

// Field is an ordered stack of layers sharing one noise source.
type Field struct {
	Layers []Layer
	Source Source
}

// NewField copies layers so later offset randomization does not alias the caller's slice.
func NewField(src Source, layers []Layer) *Field {
	cp := make([]Layer, len(layers))
	copy(cp, layers)
	return &Field{Layers: cp, Source: src}
}

// Sample sums every layer's contribution at pos.
func (f *Field) Sample(pos mgl32.Vec3, maxHeight float64) float64 {
	density := 0.0
	for i := range f.Layers {
		density += f.Layers[i].Sample(f.Source, pos, maxHeight)
	}
	return density
}

// RandomizeOffsets re-rolls the offset of every layer, enabled or not.
func (f *Field) RandomizeOffsets(rng *rand.Rand) {
	for i := range f.Layers {
		f.Layers[i].RandomizeOffset(rng)
	}
}

// Offsets returns a snapshot of the current layer offsets in layer order.
func (f *Field) Offsets() []mgl32.Vec3 {
	out := make([]mgl32.Vec3, len(f.Layers))
	for i := range f.Layers {
		out[i] = f.Layers[i].Offset
	}
	return out
}
