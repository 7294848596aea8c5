package meshstore

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"image/color"
	"io"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/MeKo-Tech/cavegen/internal/mesh"
)

var magic = [4]byte{'C', 'G', 'M', '1'}

// Encode serializes m as little-endian "CGM1": magic, vertex count, index
// count, xyz float32 per vertex, uint32 indices, then RGBA bytes per vertex.
func Encode(m *mesh.Mesh) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("failed to encode mesh: %w", err)
	}

	nv, ni := len(m.Vertices), len(m.Triangles)
	buf := make([]byte, 0, 12+nv*12+ni*4+nv*4)
	buf = append(buf, magic[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(nv))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(ni))
	for _, v := range m.Vertices {
		for k := 0; k < 3; k++ {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v[k]))
		}
	}
	for _, idx := range m.Triangles {
		buf = binary.LittleEndian.AppendUint32(buf, idx)
	}
	for _, c := range m.Colors {
		buf = append(buf, c.R, c.G, c.B, c.A)
	}
	return buf, nil
}

// Decode parses a blob produced by Encode.
func Decode(data []byte) (*mesh.Mesh, error) {
	if len(data) < 12 || !bytes.Equal(data[:4], magic[:]) {
		return nil, fmt.Errorf("not a CGM1 mesh blob")
	}
	nv := int(binary.LittleEndian.Uint32(data[4:]))
	ni := int(binary.LittleEndian.Uint32(data[8:]))
	want := 12 + nv*12 + ni*4 + nv*4
	if nv < 0 || ni < 0 || len(data) != want {
		return nil, fmt.Errorf("mesh blob size %d does not match %d vertices and %d indices", len(data), nv, ni)
	}

	m := &mesh.Mesh{
		Vertices:  make([]mgl32.Vec3, nv),
		Triangles: make([]uint32, ni),
		Colors:    make([]color.RGBA, nv),
	}
	p := data[12:]
	for i := range m.Vertices {
		for k := 0; k < 3; k++ {
			m.Vertices[i][k] = math.Float32frombits(binary.LittleEndian.Uint32(p))
			p = p[4:]
		}
	}
	for i := range m.Triangles {
		m.Triangles[i] = binary.LittleEndian.Uint32(p)
		p = p[4:]
	}
	for i := range m.Colors {
		m.Colors[i] = color.RGBA{R: p[0], G: p[1], B: p[2], A: p[3]}
		p = p[4:]
	}

	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("decoded mesh is invalid: %w", err)
	}
	return m, nil
}

// gzipCompress compresses data with gzip.
func gzipCompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)

	if _, err := gw.Write(data); err != nil {
		gw.Close()
		return nil, err
	}

	if err := gw.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// gzipDecompress decompresses gzip data.
func gzipDecompress(data []byte) ([]byte, error) {
	gr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer gr.Close()

	return io.ReadAll(gr)
}
