// Package export writes meshes and debug markers as Wavefront OBJ.
package export

import (
	"bufio"
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/MeKo-Tech/cavegen/internal/mesh"
)

// WriteOBJ writes m with per-vertex colors ("v x y z r g b", colors in
// [0,1]) and 1-based triangle faces.
func WriteOBJ(w io.Writer, m *mesh.Mesh, name string) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("failed to export mesh: %w", err)
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# cavegen mesh: %d vertices, %d triangles\n", len(m.Vertices), m.TriangleCount())
	if name != "" {
		fmt.Fprintf(bw, "o %s\n", name)
	}
	for i, v := range m.Vertices {
		writeVertex(bw, v, m.Colors[i])
	}
	for i := 0; i+2 < len(m.Triangles); i += 3 {
		fmt.Fprintf(bw, "f %d %d %d\n", m.Triangles[i]+1, m.Triangles[i+1]+1, m.Triangles[i+2]+1)
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write obj: %w", err)
	}
	return nil
}

func writeVertex(w io.Writer, v mgl32.Vec3, c color.RGBA) {
	fmt.Fprintf(w, "v %g %g %g %.4f %.4f %.4f\n", v.X(), v.Y(), v.Z(),
		float64(c.R)/255, float64(c.G)/255, float64(c.B)/255)
}

// WriteOBJFile writes m to path, creating parent directories.
func WriteOBJFile(path string, m *mesh.Mesh, name string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := WriteOBJ(f, m, name); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ObjSink writes every applied mesh to Path, overwriting the previous one.
type ObjSink struct {
	Path string
	Name string
}

// ApplyMesh writes m to the sink's file.
func (s *ObjSink) ApplyMesh(m *mesh.Mesh) error {
	return WriteOBJFile(s.Path, m, s.Name)
}

// Clear removes the file if it exists.
func (s *ObjSink) Clear() error {
	if err := os.Remove(s.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", s.Path, err)
	}
	return nil
}
