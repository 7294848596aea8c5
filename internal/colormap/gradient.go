// Package colormap maps normalized heights to vertex colors.
package colormap

import (
	"fmt"
	"image/color"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Stop is a color pinned at a position in [0,1].
type Stop struct {
	Offset float64
	Color  color.RGBA
}

// Gradient blends linearly between its stops and pads beyond the ends.
type Gradient struct {
	stops []Stop
}

// NewGradient sorts a copy of stops by offset.
func NewGradient(stops ...Stop) *Gradient {
	sorted := make([]Stop, len(stops))
	copy(sorted, stops)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Offset < sorted[j].Offset
	})
	return &Gradient{stops: sorted}
}

// Stops returns the sorted stops.
func (g *Gradient) Stops() []Stop {
	return g.stops
}

// At returns the color at t. An empty gradient is opaque white.
func (g *Gradient) At(t float64) color.RGBA {
	if g == nil || len(g.stops) == 0 {
		return color.RGBA{R: 255, G: 255, B: 255, A: 255}
	}
	if len(g.stops) == 1 {
		return g.stops[0].Color
	}

	if math.IsNaN(t) {
		t = 0
	}
	t = clamp01(t)

	idx := sort.Search(len(g.stops), func(i int) bool {
		return g.stops[i].Offset >= t
	})
	if idx == 0 {
		return g.stops[0].Color
	}
	if idx >= len(g.stops) {
		return g.stops[len(g.stops)-1].Color
	}

	s1, s2 := g.stops[idx-1], g.stops[idx]
	if s2.Offset == s1.Offset {
		return s1.Color
	}
	return lerpRGBA(s1.Color, s2.Color, (t-s1.Offset)/(s2.Offset-s1.Offset))
}

func lerpRGBA(a, b color.RGBA, t float64) color.RGBA {
	return color.RGBA{
		R: lerpU8(a.R, b.R, t),
		G: lerpU8(a.G, b.G, t),
		B: lerpU8(a.B, b.B, t),
		A: lerpU8(a.A, b.A, t),
	}
}

func lerpU8(a, b uint8, t float64) uint8 {
	v := float64(a) + (float64(b)-float64(a))*t
	return uint8(math.Round(math.Max(0, math.Min(255, v))))
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// ParseHex parses "#rrggbb" or "#rrggbbaa" (the leading '#' is optional).
func ParseHex(s string) (color.RGBA, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) != 6 && len(h) != 8 {
		return color.RGBA{}, fmt.Errorf("invalid color %q: expected 6 or 8 hex digits", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	if len(h) == 6 {
		return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
	}
	return color.RGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

// MustParseHex is ParseHex for literals; it panics on malformed input.
func MustParseHex(s string) color.RGBA {
	c, err := ParseHex(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Hex formats c as "#rrggbbaa".
func Hex(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}
