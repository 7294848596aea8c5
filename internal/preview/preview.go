// Package preview renders a top-down image of a mesh.
package preview

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"
	"os"

	"github.com/disintegration/gift"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/paulmach/orb"
	"golang.org/x/image/vector"

	"github.com/MeKo-Tech/cavegen/internal/mesh"
)

// Options controls the render.
type Options struct {
	Size        int // output width and height in pixels
	Bins        int // height layers painted low to high
	Supersample int // render scale before the Lanczos downscale
	Padding     float64
	Background  color.RGBA

	// Silhouette edge darkening; off when EdgeStrength is 0.
	EdgeRadius   float64 // in output pixels
	EdgeGamma    float64
	EdgeStrength float64 // 0..1
}

// DefaultOptions returns a 512px render with 24 height bins and light edge shading.
func DefaultOptions() Options {
	return Options{
		Size:        512,
		Bins:        24,
		Supersample: 2,
		Padding:     0.02,
		Background:  color.RGBA{R: 16, G: 16, B: 20, A: 255},

		EdgeRadius:   6,
		EdgeGamma:    2,
		EdgeStrength: 0.35,
	}
}

type bin struct {
	rings      []orb.Ring
	r, g, b, a float64
	n          int
}

// Render projects m onto the XZ plane. Triangles are grouped by centroid
// height and each group is filled with its mean color, lowest group first,
// so higher surfaces cover lower ones.
func Render(m *mesh.Mesh, opts Options) (*image.NRGBA, error) {
	if opts.Size <= 0 {
		return nil, fmt.Errorf("preview size must be positive")
	}
	if opts.Bins <= 0 {
		opts.Bins = 1
	}
	if opts.Supersample <= 0 {
		opts.Supersample = 1
	}

	out := image.NewNRGBA(image.Rect(0, 0, opts.Size, opts.Size))
	draw.Draw(out, out.Bounds(), image.NewUniform(opts.Background), image.Point{}, draw.Src)

	bounds, ok := m.Bounds()
	if !ok {
		return out, nil
	}

	canvas := opts.Size * opts.Supersample
	project := projector(bounds, opts.Padding, canvas)

	bins := make([]bin, opts.Bins)
	minY, spanY := float64(bounds.Min.Y()), float64(bounds.Size().Y())
	for i := 0; i < m.TriangleCount(); i++ {
		a, b, c := m.Triangle(i)
		ring := orb.Ring{project(a), project(b), project(c), project(a)}
		switch ring.Orientation() {
		case 0:
			continue
		case orb.CW:
			ring.Reverse()
		}

		h := 0.0
		if spanY > 0 {
			h = (float64(a.Y()+b.Y()+c.Y())/3 - minY) / spanY
		}
		k := int(h * float64(opts.Bins))
		if k >= opts.Bins {
			k = opts.Bins - 1
		}
		if k < 0 {
			k = 0
		}

		bn := &bins[k]
		bn.rings = append(bn.rings, ring)
		base := int(m.Triangles[3*i])
		col := m.Colors[base]
		bn.r += float64(col.R)
		bn.g += float64(col.G)
		bn.b += float64(col.B)
		bn.a += float64(col.A)
		bn.n++
	}

	big := image.NewNRGBA(image.Rect(0, 0, canvas, canvas))
	draw.Draw(big, big.Bounds(), image.NewUniform(opts.Background), image.Point{}, draw.Src)
	for k := range bins {
		fillBin(big, &bins[k])
	}
	if opts.EdgeStrength > 0 && opts.EdgeRadius > 0 {
		gamma := opts.EdgeGamma
		if gamma <= 0 {
			gamma = 1
		}
		cover := silhouette(bins, canvas, canvas)
		radius := opts.EdgeRadius * float64(opts.Supersample)
		multiplyByMask(big, edgeMask(cover, radius, gamma, math.Min(opts.EdgeStrength, 1)))
	}

	g := gift.New(gift.Resize(opts.Size, opts.Size, gift.LanczosResampling))
	g.Draw(out, big)
	return out, nil
}

// projector maps world XZ into canvas pixels, fitting a padded square around the bounds.
func projector(b mesh.Bounds, padding float64, canvas int) func(v mgl32.Vec3) orb.Point {
	ob := orb.Bound{
		Min: orb.Point{float64(b.Min.X()), float64(b.Min.Z())},
		Max: orb.Point{float64(b.Max.X()), float64(b.Max.Z())},
	}
	side := math.Max(ob.Right()-ob.Left(), ob.Top()-ob.Bottom())
	if side == 0 {
		side = 1
	}
	ob = ob.Pad(side * padding)
	side *= 1 + 2*padding
	center := ob.Center()
	scale := float64(canvas) / side

	return func(v mgl32.Vec3) orb.Point {
		return orb.Point{
			(float64(v[0])-center[0])*scale + float64(canvas)/2,
			(float64(v[2])-center[1])*scale + float64(canvas)/2,
		}
	}
}

func fillBin(dst *image.NRGBA, bn *bin) {
	if bn.n == 0 {
		return
	}
	n := float64(bn.n)
	col := color.NRGBA{
		R: uint8(math.Round(bn.r / n)),
		G: uint8(math.Round(bn.g / n)),
		B: uint8(math.Round(bn.b / n)),
		A: uint8(math.Round(bn.a / n)),
	}

	size := dst.Bounds().Size()
	ras := vector.NewRasterizer(size.X, size.Y)
	for _, ring := range bn.rings {
		addRing(ras, ring)
	}
	ras.Draw(dst, dst.Bounds(), image.NewUniform(col), image.Point{})
}

// EncodePNG writes img with the given compression level.
func EncodePNG(w io.Writer, img image.Image, level png.CompressionLevel) error {
	enc := png.Encoder{CompressionLevel: level}
	if err := enc.Encode(w, img); err != nil {
		return fmt.Errorf("failed to encode png: %w", err)
	}
	return nil
}

// ParseCompression maps "default", "speed", "best" or "none" to a png level.
func ParseCompression(s string) (png.CompressionLevel, error) {
	switch s {
	case "", "default":
		return png.DefaultCompression, nil
	case "speed":
		return png.BestSpeed, nil
	case "best":
		return png.BestCompression, nil
	case "none":
		return png.NoCompression, nil
	default:
		return 0, fmt.Errorf("invalid png compression %q: must be default, speed, best or none", s)
	}
}

// FileSink renders every applied mesh to a PNG file.
type FileSink struct {
	Path        string
	Options     Options
	Compression png.CompressionLevel
}

// ApplyMesh renders m and overwrites Path.
func (s *FileSink) ApplyMesh(m *mesh.Mesh) error {
	img, err := Render(m, s.Options)
	if err != nil {
		return err
	}

	f, err := os.Create(s.Path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", s.Path, err)
	}
	if err := EncodePNG(f, img, s.Compression); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", s.Path, err)
	}
	return nil
}

// Clear removes the preview file.
func (s *FileSink) Clear() error {
	if err := os.Remove(s.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", s.Path, err)
	}
	return nil
}
