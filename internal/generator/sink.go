package generator

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/MeKo-Tech/cavegen/internal/mesh"
)

// MeshSink accepts finished geometry. The mesh is handed over and must not be
// mutated by the controller afterwards.
type MeshSink interface {
	ApplyMesh(m *mesh.Mesh) error
}

// MarkerSink places a debug marker at a world position.
type MarkerSink interface {
	PlaceMarker(pos mgl32.Vec3) error
}

// Clearer is implemented by sinks that can drop everything they received.
// Reset calls it on every configured sink.
type Clearer interface {
	Clear() error
}

// MeshSinkFunc adapts a function to MeshSink.
type MeshSinkFunc func(m *mesh.Mesh) error

// ApplyMesh calls f(m).
func (f MeshSinkFunc) ApplyMesh(m *mesh.Mesh) error { return f(m) }

// MarkerSinkFunc adapts a function to MarkerSink.
type MarkerSinkFunc func(pos mgl32.Vec3) error

// PlaceMarker calls f(pos).
func (f MarkerSinkFunc) PlaceMarker(pos mgl32.Vec3) error { return f(pos) }

// MultiMeshSink fans a mesh out to several sinks, stopping at the first error.
type MultiMeshSink []MeshSink

// ApplyMesh forwards m to every sink in order.
func (s MultiMeshSink) ApplyMesh(m *mesh.Mesh) error {
	for _, sink := range s {
		if err := sink.ApplyMesh(m); err != nil {
			return err
		}
	}
	return nil
}

// Clear clears every member that implements Clearer.
func (s MultiMeshSink) Clear() error {
	for _, sink := range s {
		if c, ok := sink.(Clearer); ok {
			if err := c.Clear(); err != nil {
				return err
			}
		}
	}
	return nil
}
