// Package generator drives one synchronous generation pass: density
// sampling, corner activation and marching-cubes extraction, plus the
// reset/randomize/debug commands that operate on its result.
package generator

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/MeKo-Tech/cavegen/internal/mesh"
	"github.com/MeKo-Tech/cavegen/internal/mesher"
	"github.com/MeKo-Tech/cavegen/internal/noise"
	"github.com/MeKo-Tech/cavegen/internal/voxel"
)

// State is the pipeline phase of a Controller.
type State int

const (
	Idle State = iota
	Sampling
	Activating
	Meshing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Sampling:
		return "sampling"
	case Activating:
		return "activating"
	case Meshing:
		return "meshing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Settings are the scalar generation parameters.
type Settings struct {
	MaxHeight   float64
	Resolution  float64
	Radius      float64
	MinDensity  float64
	Interpolate bool
}

// Options configures a Controller.
type Options struct {
	Settings Settings
	Layers   []noise.Layer
	// Source defaults to a Perlin source with seed 0.
	Source   noise.Source
	ColorMap mesher.ColorMap

	MeshSink   MeshSink
	MarkerSink MarkerSink

	// Rand drives RandomizeOffsets. Defaults to a time-seeded generator.
	Rand *rand.Rand

	// OnStateChange, if set, observes every phase transition.
	OnStateChange func(State)

	Logger *slog.Logger
}

// Result describes a completed pass.
type Result struct {
	Mesh          *mesh.Mesh
	Dims          voxel.Dims
	Stats         mesher.Stats
	ActiveCorners int
	// Duplicates counts activation enqueues dropped because the voxel was already pending.
	Duplicates int
}

// Triggers are auto-resetting command flags consumed by Poll.
type Triggers struct {
	Generate         bool
	DisplayDebugMap  bool
	Reset            bool
	RandomizeOffsets bool
}

// Controller owns the grid, pending set and mesh of the most recent pass.
// It is not safe for concurrent use.
type Controller struct {
	Triggers Triggers

	settings      Settings
	field         *noise.Field
	colors        mesher.ColorMap
	meshSink      MeshSink
	markerSink    MarkerSink
	rng           *rand.Rand
	onStateChange func(State)
	logger        *slog.Logger

	state   State
	grid    *voxel.Grid
	pending *voxel.Pending
	mesh    *mesh.Mesh
}

// New creates an idle controller with no generated data.
func New(opts Options) *Controller {
	src := opts.Source
	if src == nil {
		src = noise.NewPerlinSource(0)
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	return &Controller{
		settings:      opts.Settings,
		field:         noise.NewField(src, opts.Layers),
		colors:        opts.ColorMap,
		meshSink:      opts.MeshSink,
		markerSink:    opts.MarkerSink,
		rng:           rng,
		onStateChange: opts.OnStateChange,
		logger:        opts.Logger,
	}
}

// State returns the current phase.
func (c *Controller) State() State { return c.state }

// Settings returns the scalar parameters.
func (c *Controller) Settings() Settings { return c.settings }

// Grid returns the grid of the last successful pass, or nil.
func (c *Controller) Grid() *voxel.Grid { return c.grid }

// Pending returns the anchors scheduled by the last successful pass, or nil.
func (c *Controller) Pending() *voxel.Pending { return c.pending }

// Mesh returns the mesh of the last successful pass, or nil.
func (c *Controller) Mesh() *mesh.Mesh { return c.mesh }

// Offsets returns the current noise layer offsets.
func (c *Controller) Offsets() []mgl32.Vec3 { return c.field.Offsets() }

// Layers returns a copy of the noise layers including their current offsets.
func (c *Controller) Layers() []noise.Layer {
	out := make([]noise.Layer, len(c.field.Layers))
	copy(out, c.field.Layers)
	return out
}

// Validate checks the settings and every enabled layer, returning the grid
// dimensions they produce. Failures are *voxel.ConfigError.
func (c *Controller) Validate() (voxel.Dims, error) {
	dims, err := voxel.ComputeDims(c.settings.Radius, c.settings.Resolution, c.settings.MaxHeight)
	if err != nil {
		return voxel.Dims{}, err
	}
	if math.IsNaN(c.settings.MinDensity) || math.IsInf(c.settings.MinDensity, 0) {
		return voxel.Dims{}, &voxel.ConfigError{Field: "min_noise_density", Value: c.settings.MinDensity, Msg: "must be finite"}
	}

	for i := range c.field.Layers {
		l := &c.field.Layers[i]
		if !l.Enabled {
			continue
		}
		if err := l.DensityOverHeight.Validate(); err != nil {
			return voxel.Dims{}, &voxel.ConfigError{Field: fmt.Sprintf("layers[%d].density_over_height", i), Err: err}
		}
		if math.IsNaN(l.Zoom) || math.IsInf(l.Zoom, 0) {
			return voxel.Dims{}, &voxel.ConfigError{Field: fmt.Sprintf("layers[%d].zoom", i), Value: l.Zoom, Msg: "must be finite"}
		}
		if math.IsNaN(l.OverallDensity) || math.IsInf(l.OverallDensity, 0) {
			return voxel.Dims{}, &voxel.ConfigError{Field: fmt.Sprintf("layers[%d].overall_density", i), Value: l.OverallDensity, Msg: "must be finite"}
		}
	}
	return dims, nil
}

// Generate runs a full pass and hands the mesh to the mesh sink.
//
// Invalid settings discard any previous result, send an empty mesh to the
// sink and return the *voxel.ConfigError. Calling Generate from inside a sink
// callback returns ErrBusy.
func (c *Controller) Generate() (Result, error) {
	if c.state != Idle {
		return Result{}, ErrBusy
	}

	dims, err := c.Validate()
	if err != nil {
		c.discard()
		c.log().Warn("Invalid generation settings; emitting empty mesh", "error", err)
		if c.meshSink != nil {
			if serr := c.meshSink.ApplyMesh(mesh.New(0)); serr != nil {
				return Result{}, errors.Join(err, fmt.Errorf("failed to apply empty mesh: %w", serr))
			}
		}
		return Result{}, err
	}
	defer c.setState(Idle)

	start := time.Now()
	c.setState(Sampling)
	grid, err := voxel.NewGrid(dims, c.settings.Resolution)
	if err != nil {
		c.discard()
		return Result{}, err
	}

	c.setState(Activating)
	pending := voxel.Activate(grid, c.field, c.settings.MaxHeight, c.settings.MinDensity)

	c.setState(Meshing)
	m, stats := mesher.New(mesher.Options{
		Interpolate: c.settings.Interpolate,
		MinDensity:  c.settings.MinDensity,
		MaxHeight:   c.settings.MaxHeight,
		ColorMap:    c.colors,
	}, c.logger).Mesh(grid, pending)

	c.grid, c.pending, c.mesh = grid, pending, m

	res := Result{
		Mesh:          m,
		Dims:          dims,
		Stats:         stats,
		ActiveCorners: grid.CountState(voxel.Active, voxel.Rendered),
		Duplicates:    pending.Duplicates(),
	}

	c.log().Info("Generation complete",
		"dims", fmt.Sprintf("%dx%dx%d", dims.X, dims.Y, dims.Z),
		"active_corners", res.ActiveCorners,
		"pending", pending.Len(),
		"vertices", len(m.Vertices),
		"triangles", m.TriangleCount(),
		"elapsed", time.Since(start).String(),
	)

	if c.meshSink != nil {
		if err := c.meshSink.ApplyMesh(m); err != nil {
			return res, fmt.Errorf("failed to apply mesh: %w", err)
		}
	}
	return res, nil
}

// Reset drops the grid, pending set and mesh and clears every sink that
// implements Clearer. A later Generate behaves like one on a fresh controller.
func (c *Controller) Reset() error {
	if c.state != Idle {
		return ErrBusy
	}
	c.discard()

	var errs []error
	if cl, ok := c.meshSink.(Clearer); ok {
		if err := cl.Clear(); err != nil {
			errs = append(errs, fmt.Errorf("failed to clear mesh sink: %w", err))
		}
	}
	if cl, ok := c.markerSink.(Clearer); ok {
		if err := cl.Clear(); err != nil {
			errs = append(errs, fmt.Errorf("failed to clear marker sink: %w", err))
		}
	}

	c.log().Info("Generator reset")
	return errors.Join(errs...)
}

// RandomizeOffsets re-rolls every layer offset. It does not regenerate.
func (c *Controller) RandomizeOffsets() {
	c.field.RandomizeOffsets(c.rng)
	c.log().Debug("Noise offsets randomized", "layers", len(c.field.Layers))
}

// DisplayDebugMap places one marker per Active or Rendered corner in raster
// order and returns how many were placed.
func (c *Controller) DisplayDebugMap() (int, error) {
	if c.grid == nil {
		return 0, &MissingDataError{Op: "display debug map"}
	}

	placed := 0
	var err error
	c.grid.Each(func(coord voxel.Coord, corner *voxel.Corner) {
		if err != nil || !corner.State.Solid() {
			return
		}
		if c.markerSink != nil {
			if perr := c.markerSink.PlaceMarker(c.grid.ToWorld(coord)); perr != nil {
				err = fmt.Errorf("failed to place marker at %s: %w", coord, perr)
				return
			}
		}
		placed++
	})

	c.log().Debug("Debug markers placed", "count", placed)
	return placed, err
}

// Raycast queries the current mesh for the nearest surface hit.
func (c *Controller) Raycast(origin, dir mgl32.Vec3, maxDistance float32) (mgl32.Vec3, bool) {
	if c.mesh == nil {
		return mgl32.Vec3{}, false
	}
	hit, ok := c.mesh.Raycast(origin, dir, maxDistance)
	return hit.Point, ok
}

// Poll consumes set triggers in the order Generate, DisplayDebugMap, Reset,
// RandomizeOffsets. Each flag is cleared before its handler runs. Failures are
// logged as warnings and never returned.
func (c *Controller) Poll() {
	if c.Triggers.Generate {
		c.Triggers.Generate = false
		if _, err := c.Generate(); err != nil {
			c.log().Warn("Generate failed", "error", err)
		}
	}
	if c.Triggers.DisplayDebugMap {
		c.Triggers.DisplayDebugMap = false
		if _, err := c.DisplayDebugMap(); err != nil {
			c.log().Warn("Display debug map failed", "error", err)
		}
	}
	if c.Triggers.Reset {
		c.Triggers.Reset = false
		if err := c.Reset(); err != nil {
			c.log().Warn("Reset failed", "error", err)
		}
	}
	if c.Triggers.RandomizeOffsets {
		c.Triggers.RandomizeOffsets = false
		c.RandomizeOffsets()
	}
}

func (c *Controller) discard() {
	c.grid = nil
	c.pending = nil
	c.mesh = nil
}

func (c *Controller) setState(s State) {
	c.state = s
	if c.onStateChange != nil {
		c.onStateChange(s)
	}
}

func (c *Controller) log() *slog.Logger {
	if c.logger != nil {
		return c.logger
	}
	return slog.Default()
}
