// Package config loads generation parameters, noise layers and the height
// gradient from viper and converts them into generator options.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/cavegen/internal/colormap"
	"github.com/MeKo-Tech/cavegen/internal/generator"
	"github.com/MeKo-Tech/cavegen/internal/noise"
	"github.com/MeKo-Tech/cavegen/internal/voxel"
)

// Generation holds the scalar pass parameters.
type Generation struct {
	MaxHeight       float64 `mapstructure:"max_height" json:"max_height"`
	Resolution      float64 `mapstructure:"resolution" json:"resolution"`
	Radius          float64 `mapstructure:"radius" json:"radius"`
	MinNoiseDensity float64 `mapstructure:"min_noise_density" json:"min_noise_density"`
	Interpolate     bool    `mapstructure:"interpolate" json:"interpolate"`
	Seed            int64   `mapstructure:"seed" json:"seed"`
}

// Layer is the file form of a noise layer.
type Layer struct {
	Name              string           `mapstructure:"name" json:"name"`
	Enabled           bool             `mapstructure:"enabled" json:"enabled"`
	OverallDensity    float64          `mapstructure:"overall_density" json:"overall_density"`
	Zoom              float64          `mapstructure:"zoom" json:"zoom"`
	Offset            [3]float64       `mapstructure:"offset" json:"offset"`
	DensityOverHeight []noise.Keyframe `mapstructure:"density_over_height" json:"density_over_height"`
}

// ColorStop is one gradient stop; Color is "#rrggbb" or "#rrggbbaa".
type ColorStop struct {
	Offset float64 `mapstructure:"offset" json:"offset"`
	Color  string  `mapstructure:"color" json:"color"`
}

// Config is everything a generation pass needs.
type Config struct {
	Generation Generation  `mapstructure:"generation" json:"generation"`
	Layers     []Layer     `mapstructure:"layers" json:"layers"`
	ColorMap   []ColorStop `mapstructure:"colormap" json:"colormap"`
}

// Default returns a cave preset: a large cavern layer thinning with height
// plus a finer tunnel layer.
func Default() Config {
	return Config{
		Generation: Generation{
			MaxHeight:       32,
			Resolution:      1,
			Radius:          24,
			MinNoiseDensity: 0.55,
			Interpolate:     true,
			Seed:            1337,
		},
		Layers: []Layer{
			{
				Name:           "caverns",
				Enabled:        true,
				OverallDensity: 1,
				Zoom:           0.05,
				DensityOverHeight: []noise.Keyframe{
					{Time: 0, Value: 1},
					{Time: 0.7, Value: 0.8, InTangent: -0.5, OutTangent: -0.5},
					{Time: 1, Value: 0.4},
				},
			},
			{
				Name:              "tunnels",
				Enabled:           true,
				OverallDensity:    0.35,
				Zoom:              0.12,
				Offset:            [3]float64{512, 256, 1024},
				DensityOverHeight: []noise.Keyframe{{Time: 0, Value: 1}},
			},
			{
				Name:              "overhangs",
				Enabled:           false,
				OverallDensity:    0.5,
				Zoom:              0.02,
				DensityOverHeight: noise.LinearCurve(0, 0, 1, 1).Keys,
			},
		},
		ColorMap: []ColorStop{
			{Offset: 0, Color: "#3b2f2f"},
			{Offset: 0.4, Color: "#6b5b4b"},
			{Offset: 0.75, Color: "#a89078"},
			{Offset: 1, Color: "#e8dcc8"},
		},
	}
}

var generationKeys = []struct {
	key string
	set func(*Generation, *viper.Viper, string)
}{
	{"generation.max_height", func(g *Generation, v *viper.Viper, k string) { g.MaxHeight = v.GetFloat64(k) }},
	{"generation.resolution", func(g *Generation, v *viper.Viper, k string) { g.Resolution = v.GetFloat64(k) }},
	{"generation.radius", func(g *Generation, v *viper.Viper, k string) { g.Radius = v.GetFloat64(k) }},
	{"generation.min_noise_density", func(g *Generation, v *viper.Viper, k string) { g.MinNoiseDensity = v.GetFloat64(k) }},
	{"generation.interpolate", func(g *Generation, v *viper.Viper, k string) { g.Interpolate = v.GetBool(k) }},
	{"generation.seed", func(g *Generation, v *viper.Viper, k string) { g.Seed = v.GetInt64(k) }},
}

// Load overlays whatever v has set on top of Default. Scalars are read key by
// key so bound flags and CAVEGEN_* environment variables take effect; layers
// and the color map replace the defaults wholesale when present.
func Load(v *viper.Viper) (Config, error) {
	cfg := Default()

	for _, gk := range generationKeys {
		if v.IsSet(gk.key) {
			gk.set(&cfg.Generation, v, gk.key)
		}
	}

	if v.IsSet("layers") {
		cfg.Layers = nil
		if err := v.UnmarshalKey("layers", &cfg.Layers); err != nil {
			return Config{}, fmt.Errorf("failed to decode layers: %w", err)
		}
	}
	if v.IsSet("colormap") {
		cfg.ColorMap = nil
		if err := v.UnmarshalKey("colormap", &cfg.ColorMap); err != nil {
			return Config{}, fmt.Errorf("failed to decode colormap: %w", err)
		}
	}

	return cfg, nil
}

// Validate reports every problem found. Curves of disabled layers are not checked.
func (c Config) Validate() error {
	var errs []error

	g := c.Generation
	if _, err := voxel.ComputeDims(g.Radius, g.Resolution, g.MaxHeight); err != nil {
		errs = append(errs, err)
	}
	if math.IsNaN(g.MinNoiseDensity) || math.IsInf(g.MinNoiseDensity, 0) {
		errs = append(errs, &voxel.ConfigError{Field: "min_noise_density", Value: g.MinNoiseDensity, Msg: "must be finite"})
	}

	for i, l := range c.Layers {
		if !l.Enabled {
			continue
		}
		field := fmt.Sprintf("layers[%d]", i)
		if l.Name != "" {
			field = fmt.Sprintf("layers[%s]", l.Name)
		}
		if err := (noise.Curve{Keys: l.DensityOverHeight}).Validate(); err != nil {
			errs = append(errs, &voxel.ConfigError{Field: field + ".density_over_height", Err: err})
		}
		if math.IsNaN(l.Zoom) || math.IsInf(l.Zoom, 0) {
			errs = append(errs, &voxel.ConfigError{Field: field + ".zoom", Value: l.Zoom, Msg: "must be finite"})
		}
	}

	for i, s := range c.ColorMap {
		if _, err := colormap.ParseHex(s.Color); err != nil {
			errs = append(errs, fmt.Errorf("colormap[%d]: %w", i, err))
		}
		if s.Offset < 0 || s.Offset > 1 || math.IsNaN(s.Offset) {
			errs = append(errs, fmt.Errorf("colormap[%d]: offset %g outside [0,1]", i, s.Offset))
		}
	}

	return errors.Join(errs...)
}

// Settings converts the scalar parameters.
func (c Config) Settings() generator.Settings {
	return generator.Settings{
		MaxHeight:   c.Generation.MaxHeight,
		Resolution:  c.Generation.Resolution,
		Radius:      c.Generation.Radius,
		MinDensity:  c.Generation.MinNoiseDensity,
		Interpolate: c.Generation.Interpolate,
	}
}

// NoiseLayers converts the layer list.
func (c Config) NoiseLayers() []noise.Layer {
	out := make([]noise.Layer, len(c.Layers))
	for i, l := range c.Layers {
		out[i] = noise.Layer{
			Name:              l.Name,
			Enabled:           l.Enabled,
			OverallDensity:    l.OverallDensity,
			DensityOverHeight: noise.Curve{Keys: append([]noise.Keyframe(nil), l.DensityOverHeight...)},
			Zoom:              l.Zoom,
			Offset:            mgl32.Vec3{float32(l.Offset[0]), float32(l.Offset[1]), float32(l.Offset[2])},
		}
	}
	return out
}

// Gradient builds the height color map. An empty list yields nil.
func (c Config) Gradient() (*colormap.Gradient, error) {
	if len(c.ColorMap) == 0 {
		return nil, nil
	}
	stops := make([]colormap.Stop, 0, len(c.ColorMap))
	for i, s := range c.ColorMap {
		col, err := colormap.ParseHex(s.Color)
		if err != nil {
			return nil, fmt.Errorf("colormap[%d]: %w", i, err)
		}
		stops = append(stops, colormap.Stop{Offset: s.Offset, Color: col})
	}
	return colormap.NewGradient(stops...), nil
}

// WithOffsets returns a copy of c whose layer offsets are taken from layers, matched by index.
func (c Config) WithOffsets(layers []noise.Layer) Config {
	out := c
	out.Layers = append([]Layer(nil), c.Layers...)
	for i := range out.Layers {
		if i >= len(layers) {
			break
		}
		o := layers[i].Offset
		out.Layers[i].Offset = [3]float64{float64(o.X()), float64(o.Y()), float64(o.Z())}
	}
	return out
}

// JSON encodes c for storage next to a generated mesh.
func (c Config) JSON() (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}
	return string(data), nil
}

// ParseJSON decodes a config written by JSON.
func ParseJSON(s string) (Config, error) {
	var c Config
	if err := json.Unmarshal([]byte(s), &c); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return c, nil
}

// Options builds controller options with a Perlin source and offset RNG
// seeded from Generation.Seed. Sinks and logger are left for the caller.
func (c Config) Options() (generator.Options, error) {
	grad, err := c.Gradient()
	if err != nil {
		return generator.Options{}, err
	}
	opts := generator.Options{
		Settings: c.Settings(),
		Layers:   c.NoiseLayers(),
		Source:   noise.NewPerlinSource(c.Generation.Seed),
		Rand:     rand.New(rand.NewSource(c.Generation.Seed)),
	}
	// A typed nil *Gradient would defeat the mesher's nil check.
	if grad != nil {
		opts.ColorMap = grad
	}
	return opts, nil
}
