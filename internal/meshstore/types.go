// Package meshstore persists generated meshes in a SQLite database.
package meshstore

import (
	"errors"
	"strconv"
	"time"

	"github.com/MeKo-Tech/cavegen/internal/mesh"
	"github.com/MeKo-Tech/cavegen/internal/voxel"
)

// Format is the value of the "format" metadata key.
const Format = "cgm1"

// ErrNotFound is returned when no mesh is stored under a name.
var ErrNotFound = errors.New("mesh not found")

// Metadata describes a mesh database.
type Metadata struct {
	Name        string // Human-readable store identifier
	Description string
	Version     string
	Format      string // Blob encoding, Format when written by this package
	Seed        int64  // Base seed of the batch that filled the store
	Resolution  float64
	MaxHeight   float64
	Radius      float64
}

// ToMap converts Metadata to a map for database insertion.
func (m Metadata) ToMap() map[string]string {
	result := make(map[string]string)

	if m.Name != "" {
		result["name"] = m.Name
	}
	if m.Description != "" {
		result["description"] = m.Description
	}
	if m.Version != "" {
		result["version"] = m.Version
	}
	result["format"] = Format
	if m.Format != "" {
		result["format"] = m.Format
	}
	if m.Seed != 0 {
		result["seed"] = strconv.FormatInt(m.Seed, 10)
	}
	if m.Resolution > 0 {
		result["resolution"] = strconv.FormatFloat(m.Resolution, 'g', -1, 64)
	}
	if m.MaxHeight > 0 {
		result["max_height"] = strconv.FormatFloat(m.MaxHeight, 'g', -1, 64)
	}
	if m.Radius > 0 {
		result["radius"] = strconv.FormatFloat(m.Radius, 'g', -1, 64)
	}

	return result
}

func metadataFromMap(kv map[string]string) Metadata {
	meta := Metadata{
		Name:        kv["name"],
		Description: kv["description"],
		Version:     kv["version"],
		Format:      kv["format"],
	}
	if v, ok := kv["seed"]; ok {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			meta.Seed = i
		}
	}
	for key, dst := range map[string]*float64{
		"resolution": &meta.Resolution,
		"max_height": &meta.MaxHeight,
		"radius":     &meta.Radius,
	} {
		if v, ok := kv[key]; ok {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				*dst = f
			}
		}
	}
	return meta
}

// Info is a stored mesh without its geometry.
type Info struct {
	Name          string     `json:"name"`
	CreatedAt     time.Time  `json:"created_at"`
	VertexCount   int        `json:"vertex_count"`
	TriangleCount int        `json:"triangle_count"`
	Dims          voxel.Dims `json:"dims"`

	// Config is the generation config the mesh was built from, as JSON.
	Config string `json:"config,omitempty"`
}

// Entry is a mesh together with its catalogue information.
type Entry struct {
	Info
	Mesh *mesh.Mesh
}
