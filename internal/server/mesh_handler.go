package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/MeKo-Tech/cavegen/internal/export"
	"github.com/MeKo-Tech/cavegen/internal/meshstore"
	"github.com/MeKo-Tech/cavegen/internal/preview"
)

// Store is the read side of a mesh catalogue.
type Store interface {
	ReadMesh(ctx context.Context, name string) (*meshstore.Entry, error)
	List(ctx context.Context) ([]meshstore.Info, error)
}

// ReaderStore serves a mesh database opened with meshstore.OpenReader.
type ReaderStore struct {
	Reader *meshstore.Reader
}

// ReadMesh implements Store.
func (s ReaderStore) ReadMesh(_ context.Context, name string) (*meshstore.Entry, error) {
	return s.Reader.ReadMesh(name)
}

// List implements Store.
func (s ReaderStore) List(context.Context) ([]meshstore.Info, error) {
	return s.Reader.List()
}

// MeshHandler serves meshes as OBJ, PNG previews and JSON info.
type MeshHandler struct {
	store        Store
	logger       *slog.Logger
	cacheControl string
	preview      preview.Options
	pngLevel     png.CompressionLevel
}

// MeshConfig configures the mesh handler.
type MeshConfig struct {
	CacheControl   string
	PNGCompression string
	Preview        preview.Options
}

// NewMeshHandler creates a handler over store.
func NewMeshHandler(store Store, cfg MeshConfig, logger *slog.Logger) (*MeshHandler, error) {
	level, err := preview.ParseCompression(cfg.PNGCompression)
	if err != nil {
		return nil, err
	}
	if cfg.CacheControl == "" {
		cfg.CacheControl = "no-store"
	}
	if cfg.Preview.Size <= 0 {
		cfg.Preview = preview.DefaultOptions()
	}

	return &MeshHandler{
		store:        store,
		logger:       logger,
		cacheControl: cfg.CacheControl,
		preview:      cfg.Preview,
		pngLevel:     level,
	}, nil
}

// Handler returns the HTTP handler for /meshes/.
func (h *MeshHandler) Handler() http.Handler {
	return http.HandlerFunc(h.serve)
}

func (h *MeshHandler) serve(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/meshes/" || r.URL.Path == "/meshes" {
		h.serveList(w, r)
		return
	}

	name, ext, ok := parseMeshPath(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}

	entry, err := h.store.ReadMesh(r.Context(), name)
	if err != nil {
		if errors.Is(err, meshstore.ErrNotFound) {
			http.Error(w, fmt.Sprintf("mesh not found: %s", name), http.StatusNotFound)
			return
		}
		h.log().Error("Failed to read mesh", "name", name, "error", err)
		http.Error(w, fmt.Sprintf("failed to read mesh %s: %v", name, err), http.StatusBadGateway)
		return
	}

	w.Header().Set("Cache-Control", h.cacheControl)

	var buf bytes.Buffer
	switch ext {
	case ".obj":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		err = export.WriteOBJ(&buf, entry.Mesh, entry.Name)
	case ".png":
		w.Header().Set("Content-Type", "image/png")
		img, rerr := preview.Render(entry.Mesh, h.preview)
		if rerr != nil {
			err = rerr
			break
		}
		err = preview.EncodePNG(&buf, img, h.pngLevel)
	case ".json":
		w.Header().Set("Content-Type", "application/json")
		err = json.NewEncoder(&buf).Encode(entry.Info)
	}
	if err != nil {
		h.log().Error("Failed to encode mesh", "name", name, "format", ext, "error", err)
		http.Error(w, "failed to encode mesh", http.StatusInternalServerError)
		return
	}

	if _, err := w.Write(buf.Bytes()); err != nil {
		h.log().Error("Failed to write response", "error", err)
	}
}

func (h *MeshHandler) serveList(w http.ResponseWriter, r *http.Request) {
	infos, err := h.store.List(r.Context())
	if err != nil {
		h.log().Error("Failed to list meshes", "error", err)
		http.Error(w, "failed to list meshes", http.StatusInternalServerError)
		return
	}
	if infos == nil {
		infos = []meshstore.Info{}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	if err := json.NewEncoder(w).Encode(infos); err != nil {
		h.log().Error("Failed to encode mesh list", "error", err)
	}
}

func (h *MeshHandler) log() *slog.Logger {
	if h.logger != nil {
		return h.logger
	}
	return slog.Default()
}

// parseMeshPath parses a path like /meshes/cave-003.obj into its name and extension.
func parseMeshPath(requestPath string) (string, string, bool) {
	if !strings.HasPrefix(requestPath, "/meshes/") {
		return "", "", false
	}
	base := path.Base(requestPath)
	ext := path.Ext(base)
	switch ext {
	case ".obj", ".png", ".json":
	default:
		return "", "", false
	}
	name := strings.TrimSuffix(base, ext)
	if name == "" || requestPath != "/meshes/"+base {
		return "", "", false
	}
	return name, ext, true
}

// WithCORS allows browser viewers on other origins to fetch meshes.
func WithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
