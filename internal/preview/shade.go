package preview

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/gift"
	"github.com/paulmach/orb"
	"golang.org/x/image/vector"
)

// silhouette rasterizes every ring into a binary coverage mask: 255 where the
// mesh covers the pixel, 0 elsewhere.
func silhouette(bins []bin, w, h int) *image.Gray {
	ras := vector.NewRasterizer(w, h)
	for k := range bins {
		for _, ring := range bins[k].rings {
			addRing(ras, ring)
		}
	}
	cov := image.NewAlpha(image.Rect(0, 0, w, h))
	ras.Draw(cov, cov.Bounds(), image.Opaque, image.Point{})

	m := image.NewGray(cov.Bounds())
	for i, a := range cov.Pix {
		if a >= 128 {
			m.Pix[i] = 255
		}
	}
	return m
}

// edgeMask maps the distance of each covered pixel to the silhouette border
// onto a darkening mask: 255 leaves the pixel alone, lower values darken it.
// The falloff is strength*(1-d/radius)^gamma, softened by a small blur.
func edgeMask(cover *image.Gray, radius, gamma, strength float64) *image.Gray {
	dist := squaredDistances(cover, radius)

	out := image.NewGray(cover.Bounds())
	limit := radius * radius
	for i := range out.Pix {
		if cover.Pix[i] == 0 || dist[i] >= limit {
			out.Pix[i] = 255
			continue
		}
		falloff := math.Pow(1-math.Sqrt(dist[i])/radius, gamma)
		out.Pix[i] = uint8(math.Round(255 * (1 - strength*falloff)))
	}

	g := gift.New(gift.GaussianBlur(1))
	soft := image.NewGray(g.Bounds(out.Bounds()))
	g.Draw(soft, out)
	return soft
}

// squaredDistances is a separable Euclidean distance transform (parabola
// lower envelope) giving, per covered pixel, the squared distance to the
// nearest uncovered pixel. Values at or above radius² mean "far".
func squaredDistances(cover *image.Gray, radius float64) []float64 {
	b := cover.Bounds()
	w, h := b.Dx(), b.Dy()
	far := 2*radius*radius + 1

	d := make([]float64, w*h)
	for i, v := range cover.Pix[:w*h] {
		if v != 0 {
			d[i] = far
		}
	}

	n := max(w, h)
	in := make([]float64, n)
	out := make([]float64, n)
	v := make([]int, n)
	z := make([]float64, n+1)

	for y := 0; y < h; y++ {
		row := d[y*w : (y+1)*w]
		copy(in, row)
		transform1D(in[:w], out[:w], v, z)
		copy(row, out[:w])
	}
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			in[y] = d[y*w+x]
		}
		transform1D(in[:h], out[:h], v, z)
		for y := 0; y < h; y++ {
			d[y*w+x] = out[y]
		}
	}
	return d
}

// transform1D computes out[q] = min_i (q-i)² + in[i]. v and z are scratch
// buffers of at least len(in) and len(in)+1.
func transform1D(in, out []float64, v []int, z []float64) {
	n := len(in)
	if n == 0 {
		return
	}
	k := 0
	v[0] = 0
	z[0] = math.Inf(-1)
	z[1] = math.Inf(1)

	// z[0] is -Inf, so the envelope never empties.
	for q := 1; q < n; q++ {
		s := intersect(in, q, v[k])
		for s <= z[k] {
			k--
			s = intersect(in, q, v[k])
		}
		k++
		v[k] = q
		z[k] = s
		z[k+1] = math.Inf(1)
	}

	k = 0
	for q := 0; q < n; q++ {
		for z[k+1] < float64(q) {
			k++
		}
		dx := float64(q - v[k])
		out[q] = dx*dx + in[v[k]]
	}
}

// intersect returns where the parabolas rooted at q and p cross.
func intersect(in []float64, q, p int) float64 {
	return ((in[q] + float64(q*q)) - (in[p] + float64(p*p))) / float64(2*(q-p))
}

// multiplyByMask scales the RGB of dst by mask/255 in place.
func multiplyByMask(dst *image.NRGBA, mask *image.Gray) {
	b := dst.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			m := mask.GrayAt(x, y).Y
			if m == 255 {
				continue
			}
			f := float64(m) / 255
			c := dst.NRGBAAt(x, y)
			dst.SetNRGBA(x, y, color.NRGBA{
				R: uint8(math.Round(float64(c.R) * f)),
				G: uint8(math.Round(float64(c.G) * f)),
				B: uint8(math.Round(float64(c.B) * f)),
				A: c.A,
			})
		}
	}
}

func addRing(ras *vector.Rasterizer, ring orb.Ring) {
	ras.MoveTo(float32(ring[0][0]), float32(ring[0][1]))
	for _, pt := range ring[1:] {
		ras.LineTo(float32(pt[0]), float32(pt[1]))
	}
	ras.ClosePath()
}
