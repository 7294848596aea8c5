package meshstore

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MeKo-Tech/cavegen/internal/voxel"
)

// Reader reads meshes from a store.
type Reader struct {
	db   *sql.DB
	path string
}

// OpenReader opens a store for reading. The database is opened immutable, so
// it must not be written while the reader is open.
func OpenReader(path string) (*Reader, error) {
	db, err := sql.Open("sqlite", path+"?mode=ro&immutable=1")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	var count int
	err = db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='meshes'").Scan(&count)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to verify schema: %w", err)
	}
	if count == 0 {
		db.Close()
		return nil, fmt.Errorf("database does not contain meshes table")
	}

	return &Reader{
		db:   db,
		path: path,
	}, nil
}

// ReadMesh loads the mesh stored under name. Missing names yield ErrNotFound.
func (r *Reader) ReadMesh(name string) (*Entry, error) {
	var (
		e          Entry
		created    int64
		config     sql.NullString
		compressed []byte
	)
	err := r.db.QueryRow(
		`SELECT name, created_at, vertex_count, triangle_count, dim_x, dim_y, dim_z, config, mesh_data
		 FROM meshes WHERE name = ?`, name,
	).Scan(&e.Name, &created, &e.VertexCount, &e.TriangleCount, &e.Dims.X, &e.Dims.Y, &e.Dims.Z, &config, &compressed)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query mesh: %w", err)
	}

	raw, err := gzipDecompress(compressed)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress mesh %q: %w", name, err)
	}
	m, err := Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode mesh %q: %w", name, err)
	}

	e.CreatedAt = time.UnixMilli(created).UTC()
	e.Config = config.String
	e.Mesh = m
	return &e, nil
}

// List returns every stored mesh ordered by name, without geometry.
func (r *Reader) List() ([]Info, error) {
	rows, err := r.db.Query(`SELECT name, created_at, vertex_count, triangle_count, dim_x, dim_y, dim_z, config
		FROM meshes ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query meshes: %w", err)
	}
	defer rows.Close()

	var out []Info
	for rows.Next() {
		var (
			info    Info
			created int64
			config  sql.NullString
			dims    voxel.Dims
		)
		if err := rows.Scan(&info.Name, &created, &info.VertexCount, &info.TriangleCount,
			&dims.X, &dims.Y, &dims.Z, &config); err != nil {
			return nil, fmt.Errorf("failed to scan mesh row: %w", err)
		}
		info.CreatedAt = time.UnixMilli(created).UTC()
		info.Dims = dims
		info.Config = config.String
		out = append(out, info)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating meshes: %w", err)
	}
	return out, nil
}

// Metadata reads metadata from the database.
func (r *Reader) Metadata() (Metadata, error) {
	rows, err := r.db.Query("SELECT name, value FROM metadata")
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to query metadata: %w", err)
	}
	defer rows.Close()

	kv := make(map[string]string)
	for rows.Next() {
		var name string
		var value sql.NullString
		if err := rows.Scan(&name, &value); err != nil {
			return Metadata{}, fmt.Errorf("failed to scan metadata row: %w", err)
		}
		kv[name] = value.String
	}

	if err := rows.Err(); err != nil {
		return Metadata{}, fmt.Errorf("error iterating metadata: %w", err)
	}

	return metadataFromMap(kv), nil
}

// Close closes the database connection.
func (r *Reader) Close() error {
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}
