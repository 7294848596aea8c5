package export

import (
	"bufio"
	"fmt"
	"image/color"
	"io"
	"os"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
)

// markerColor is the vertex color of debug points.
var markerColor = color.RGBA{R: 255, G: 32, B: 32, A: 255}

// MarkerFile collects debug markers in memory and writes them as OBJ points
// on Flush.
type MarkerFile struct {
	Path string

	mu      sync.Mutex
	markers []mgl32.Vec3
}

// NewMarkerFile creates a marker sink that writes to path.
func NewMarkerFile(path string) *MarkerFile {
	return &MarkerFile{Path: path}
}

// PlaceMarker records pos.
func (f *MarkerFile) PlaceMarker(pos mgl32.Vec3) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markers = append(f.markers, pos)
	return nil
}

// Len returns the number of recorded markers.
func (f *MarkerFile) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.markers)
}

// Clear drops recorded markers and removes the file.
func (f *MarkerFile) Clear() error {
	f.mu.Lock()
	f.markers = nil
	f.mu.Unlock()

	if err := os.Remove(f.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", f.Path, err)
	}
	return nil
}

// Flush writes all markers as one "p" element per vertex.
func (f *MarkerFile) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	out, err := os.Create(f.Path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", f.Path, err)
	}
	if err := writeMarkers(out, f.markers); err != nil {
		out.Close()
		return fmt.Errorf("failed to write %s: %w", f.Path, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", f.Path, err)
	}
	return nil
}

func writeMarkers(w io.Writer, markers []mgl32.Vec3) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# cavegen debug markers: %d\n", len(markers))
	for _, p := range markers {
		writeVertex(bw, p, markerColor)
	}
	for i := range markers {
		fmt.Fprintf(bw, "p %d\n", i+1)
	}
	return bw.Flush()
}
