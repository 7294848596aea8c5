package meshstore

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/MeKo-Tech/cavegen/internal/mesh"
	"github.com/MeKo-Tech/cavegen/internal/voxel"
)

const (
	// DefaultBatchSize is the number of meshes to buffer before flushing to the database.
	DefaultBatchSize = 16
)

// Writer writes meshes to a store. It is safe for concurrent use.
type Writer struct {
	db        *sql.DB
	path      string
	batch     []Entry
	metadata  Metadata
	batchSize int
	now       func() time.Time
	mu        sync.Mutex
}

// New opens or creates the store at path and replaces its metadata.
func New(path string, metadata Metadata) (*Writer, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	if err := insertMetadata(db, metadata); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to insert metadata: %w", err)
	}

	return &Writer{
		db:        db,
		path:      path,
		batch:     make([]Entry, 0, DefaultBatchSize),
		batchSize: DefaultBatchSize,
		metadata:  metadata,
		now:       time.Now,
	}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS metadata (
			name TEXT NOT NULL,
			value TEXT
		);

		CREATE TABLE IF NOT EXISTS meshes (
			name TEXT NOT NULL PRIMARY KEY,
			created_at INTEGER NOT NULL,
			vertex_count INTEGER NOT NULL,
			triangle_count INTEGER NOT NULL,
			dim_x INTEGER NOT NULL,
			dim_y INTEGER NOT NULL,
			dim_z INTEGER NOT NULL,
			config TEXT,
			mesh_data BLOB NOT NULL
		);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	return nil
}

func insertMetadata(db *sql.DB, meta Metadata) error {
	if _, err := db.Exec("DELETE FROM metadata"); err != nil {
		return fmt.Errorf("failed to clear metadata: %w", err)
	}

	stmt, err := db.Prepare("INSERT INTO metadata (name, value) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare metadata insert: %w", err)
	}
	defer stmt.Close()

	for key, value := range meta.ToMap() {
		if _, err := stmt.Exec(key, value); err != nil {
			return fmt.Errorf("failed to insert metadata %q: %w", key, err)
		}
	}

	return nil
}

// WriteMesh buffers m under name, replacing any mesh already stored with that
// name. A full batch is flushed immediately.
func (w *Writer) WriteMesh(name string, m *mesh.Mesh, dims voxel.Dims, config string) error {
	if name == "" {
		return fmt.Errorf("mesh name must not be empty")
	}
	if m == nil {
		m = &mesh.Mesh{}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.batch = append(w.batch, Entry{
		Info: Info{
			Name:          name,
			CreatedAt:     w.now().UTC(),
			VertexCount:   len(m.Vertices),
			TriangleCount: m.TriangleCount(),
			Dims:          dims,
			Config:        config,
		},
		Mesh: m,
	})

	if len(w.batch) >= w.batchSize {
		return w.flushLocked()
	}

	return nil
}

// Delete removes name from the pending batch and from the database.
func (w *Writer) Delete(name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	kept := w.batch[:0]
	for _, e := range w.batch {
		if e.Name != name {
			kept = append(kept, e)
		}
	}
	w.batch = kept

	if _, err := w.db.Exec("DELETE FROM meshes WHERE name = ?", name); err != nil {
		return fmt.Errorf("failed to delete mesh %q: %w", name, err)
	}
	return nil
}

// Flush writes any buffered meshes to the database.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked()
}

// flushLocked writes buffered meshes in one transaction. Must be called with lock held.
func (w *Writer) flushLocked() error {
	if len(w.batch) == 0 {
		return nil
	}

	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck

	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO meshes
		(name, created_at, vertex_count, triangle_count, dim_x, dim_y, dim_z, config, mesh_data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range w.batch {
		raw, err := Encode(e.Mesh)
		if err != nil {
			return fmt.Errorf("failed to encode mesh %q: %w", e.Name, err)
		}
		compressed, err := gzipCompress(raw)
		if err != nil {
			return fmt.Errorf("failed to compress mesh %q: %w", e.Name, err)
		}

		if _, err := stmt.Exec(e.Name, e.CreatedAt.UnixMilli(), e.VertexCount, e.TriangleCount,
			e.Dims.X, e.Dims.Y, e.Dims.Z, e.Config, compressed); err != nil {
			return fmt.Errorf("failed to insert mesh %q: %w", e.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	w.batch = w.batch[:0]
	return nil
}

// Close flushes any remaining meshes and closes the database.
func (w *Writer) Close() error {
	if err := w.Flush(); err != nil {
		w.db.Close()
		return err
	}

	if err := w.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	return nil
}

// Sink returns a mesh sink storing every applied mesh under name.
func (w *Writer) Sink(name string, dims voxel.Dims, config string) *Sink {
	return &Sink{w: w, Name: name, Dims: dims, Config: config}
}

// Sink adapts a Writer to the generator's mesh sink. Clear deletes the stored mesh.
type Sink struct {
	w      *Writer
	Name   string
	Dims   voxel.Dims
	Config string
}

// ApplyMesh stores m under the sink's name.
func (s *Sink) ApplyMesh(m *mesh.Mesh) error {
	return s.w.WriteMesh(s.Name, m, s.Dims, s.Config)
}

// Clear removes the sink's mesh from the store.
func (s *Sink) Clear() error {
	return s.w.Delete(s.Name)
}
