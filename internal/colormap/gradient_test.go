package colormap

import (
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	black = color.RGBA{A: 255}
	white = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	red   = color.RGBA{R: 255, A: 255}
)

func TestGradientAt(t *testing.T) {
	g := NewGradient(
		Stop{Offset: 1, Color: white},
		Stop{Offset: 0, Color: black},
	)

	tests := []struct {
		name string
		t    float64
		want color.RGBA
	}{
		{"start", 0, black},
		{"end", 1, white},
		{"middle", 0.5, color.RGBA{R: 128, G: 128, B: 128, A: 255}},
		{"pad below", -3, black},
		{"pad above", 7, white},
		{"NaN pads to start", math.NaN(), black},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, g.At(tt.t))
		})
	}
}

func TestGradientAt_EdgeCases(t *testing.T) {
	var nilGradient *Gradient
	assert.Equal(t, white, nilGradient.At(0.3))
	assert.Equal(t, white, NewGradient().At(0.3))
	assert.Equal(t, red, NewGradient(Stop{Offset: 0.4, Color: red}).At(0.9))

	coincident := NewGradient(Stop{Offset: 0.5, Color: red}, Stop{Offset: 0.5, Color: white})
	assert.Equal(t, red, coincident.At(0.5))
}

func TestParseHex(t *testing.T) {
	c, err := ParseHex("#4a3728")
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{R: 0x4a, G: 0x37, B: 0x28, A: 255}, c)

	c, err = ParseHex("10203080")
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{R: 0x10, G: 0x20, B: 0x30, A: 0x80}, c)
	assert.Equal(t, "#10203080", Hex(c))

	for _, bad := range []string{"", "#123", "#zzzzzz", "#1234567"} {
		_, err := ParseHex(bad)
		assert.Error(t, err, bad)
	}
}
