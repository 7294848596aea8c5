package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/cavegen/internal/generator"
	"github.com/MeKo-Tech/cavegen/internal/noise"
	"github.com/MeKo-Tech/cavegen/internal/voxel"
)

const sampleYAML = `
generation:
  resolution: 0.5
  radius: 6
  interpolate: false
layers:
  - name: only
    enabled: true
    overall_density: 0.8
    zoom: 0.1
    offset: [1, 2, 3]
    density_over_height:
      - {time: 0, value: 1, out_tangent: -1}
      - {time: 1, value: 0, in_tangent: -1}
colormap:
  - {offset: 0, color: "#000000"}
  - {offset: 1, color: "#ffffff80"}
`

func loadYAML(t *testing.T, body string) *viper.Viper {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())
	return v
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	dims, err := voxel.ComputeDims(cfg.Generation.Radius, cfg.Generation.Resolution, cfg.Generation.MaxHeight)
	require.NoError(t, err)
	assert.Equal(t, voxel.Dims{X: 48, Y: 32, Z: 48}, dims)
}

func TestLoad_EmptyViperGivesDefault(t *testing.T) {
	cfg, err := Load(viper.New())
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_OverlaysFile(t *testing.T) {
	cfg, err := Load(loadYAML(t, sampleYAML))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	def := Default().Generation
	assert.Equal(t, 0.5, cfg.Generation.Resolution)
	assert.Equal(t, 6.0, cfg.Generation.Radius)
	assert.False(t, cfg.Generation.Interpolate)
	assert.Equal(t, def.MaxHeight, cfg.Generation.MaxHeight, "unset keys keep their default")
	assert.Equal(t, def.Seed, cfg.Generation.Seed)

	require.Len(t, cfg.Layers, 1)
	l := cfg.Layers[0]
	assert.Equal(t, "only", l.Name)
	assert.Equal(t, [3]float64{1, 2, 3}, l.Offset)
	require.Len(t, l.DensityOverHeight, 2)
	assert.Equal(t, -1.0, l.DensityOverHeight[1].InTangent)

	require.Len(t, cfg.ColorMap, 2)
	assert.Equal(t, "#ffffff80", cfg.ColorMap[1].Color)
}

func TestLoad_ExplicitOverridesWin(t *testing.T) {
	v := loadYAML(t, sampleYAML)
	v.Set("generation.seed", 99)
	v.Set("generation.max_height", 8)

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, int64(99), cfg.Generation.Seed)
	assert.Equal(t, 8.0, cfg.Generation.MaxHeight)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"zero resolution", func(c *Config) { c.Generation.Resolution = 0 }, "resolution"},
		{"tiny radius", func(c *Config) { c.Generation.Radius = 0.1 }, "radius"},
		{"unsorted curve", func(c *Config) {
			c.Layers[0].DensityOverHeight = []noise.Keyframe{{Time: 1}, {Time: 0.5}}
		}, "layers[caverns].density_over_height"},
		{"NaN zoom", func(c *Config) { c.Layers[1].Zoom = math.NaN() }, "layers[tunnels].zoom"},
		{"infinite zoom", func(c *Config) { c.Layers[1].Zoom = math.Inf(1) }, "layers[tunnels].zoom"},
		{"bad color", func(c *Config) { c.ColorMap[0].Color = "#12" }, "colormap[0]"},
		{"offset out of range", func(c *Config) { c.ColorMap[1].Offset = 1.5 }, "colormap[1]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Layers = append([]Layer(nil), cfg.Layers...)
			cfg.ColorMap = append([]ColorStop(nil), cfg.ColorMap...)
			tt.mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

// Zoom is a plain frequency: zero and negative values are accepted here
// exactly as the controller accepts them.
func TestValidate_ZoomAgreesWithController(t *testing.T) {
	for _, zoom := range []float64{0, -0.05, 0.1} {
		cfg := Default()
		cfg.Layers = append([]Layer(nil), cfg.Layers...)
		cfg.Layers[1].Zoom = zoom
		require.True(t, cfg.Layers[1].Enabled)

		assert.NoError(t, cfg.Validate(), "zoom %g", zoom)

		opts, err := cfg.Options()
		require.NoError(t, err)
		_, err = generator.New(opts).Validate()
		assert.NoError(t, err, "zoom %g", zoom)
	}
}

func TestValidate_IgnoresDisabledLayers(t *testing.T) {
	cfg := Default()
	cfg.Layers = append([]Layer(nil), cfg.Layers...)
	cfg.Layers[2].DensityOverHeight = []noise.Keyframe{{Time: 1}, {Time: 0}}
	cfg.Layers[2].Zoom = 0
	require.False(t, cfg.Layers[2].Enabled)

	assert.NoError(t, cfg.Validate())
}

func TestConversions(t *testing.T) {
	cfg, err := Load(loadYAML(t, sampleYAML))
	require.NoError(t, err)

	s := cfg.Settings()
	assert.Equal(t, generator.Settings{MaxHeight: 32, Resolution: 0.5, Radius: 6, MinDensity: 0.55}, s)

	layers := cfg.NoiseLayers()
	require.Len(t, layers, 1)
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, layers[0].Offset)
	assert.InDelta(t, 0.5, layers[0].DensityOverHeight.Evaluate(0.5), 1e-9)

	grad, err := cfg.Gradient()
	require.NoError(t, err)
	mid := grad.At(0.5)
	assert.Equal(t, uint8(128), mid.R)
	assert.Equal(t, uint8(192), mid.A)
}

func TestGradient_EmptyIsNil(t *testing.T) {
	cfg := Default()
	cfg.ColorMap = nil

	grad, err := cfg.Gradient()
	require.NoError(t, err)
	assert.Nil(t, grad)

	opts, err := cfg.Options()
	require.NoError(t, err)
	assert.Nil(t, opts.ColorMap)
}

func TestOptions_SeededAndGenerates(t *testing.T) {
	cfg := Default()
	cfg.Generation.Radius = 4
	cfg.Generation.MaxHeight = 6

	optsA, err := cfg.Options()
	require.NoError(t, err)
	optsB, err := cfg.Options()
	require.NoError(t, err)

	a := generator.New(optsA)
	b := generator.New(optsB)
	a.RandomizeOffsets()
	b.RandomizeOffsets()
	assert.Equal(t, a.Offsets(), b.Offsets())

	resA, err := a.Generate()
	require.NoError(t, err)
	resB, err := b.Generate()
	require.NoError(t, err)
	assert.Equal(t, resA.Mesh, resB.Mesh)
}

func TestWithOffsets(t *testing.T) {
	cfg := Default()
	layers := cfg.NoiseLayers()
	layers[0].Offset = mgl32.Vec3{7, 8, 9}

	out := cfg.WithOffsets(layers)
	assert.Equal(t, [3]float64{7, 8, 9}, out.Layers[0].Offset)
	assert.Equal(t, [3]float64{}, cfg.Layers[0].Offset, "receiver untouched")
}

func TestJSON_RoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Generation.Seed = 99

	s, err := cfg.JSON()
	require.NoError(t, err)
	assert.Contains(t, s, `"min_noise_density":0.55`)

	back, err := ParseJSON(s)
	require.NoError(t, err)
	assert.Equal(t, cfg, back)

	_, err = ParseJSON("{")
	assert.Error(t, err)
}
