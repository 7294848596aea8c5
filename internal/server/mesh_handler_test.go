package server

import (
	"context"
	"encoding/json"
	"fmt"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/MeKo-Tech/cavegen/internal/mesh"
	"github.com/MeKo-Tech/cavegen/internal/meshstore"
	"github.com/MeKo-Tech/cavegen/internal/preview"
)

// memStore is an in-memory Store.
type memStore struct {
	mu      sync.Mutex
	entries map[string]*meshstore.Entry
	reads   int
}

func newMemStore(entries ...*meshstore.Entry) *memStore {
	s := &memStore{entries: make(map[string]*meshstore.Entry)}
	for _, e := range entries {
		s.entries[e.Name] = e
	}
	return s
}

func (s *memStore) ReadMesh(_ context.Context, name string) (*meshstore.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	e, ok := s.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", meshstore.ErrNotFound, name)
	}
	return e, nil
}

func (s *memStore) List(context.Context) ([]meshstore.Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []meshstore.Info
	for _, e := range s.entries {
		out = append(out, e.Info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func triangleEntry(name string) *meshstore.Entry {
	m := mesh.New(1)
	m.AddTriangle(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, 1}, color.RGBA{R: 255, A: 255})
	return &meshstore.Entry{
		Info: meshstore.Info{Name: name, VertexCount: 3, TriangleCount: 1},
		Mesh: m,
	}
}

func newTestHandler(t *testing.T, store Store) http.Handler {
	t.Helper()
	opts := preview.DefaultOptions()
	opts.Size = 32
	h, err := NewMeshHandler(store, MeshConfig{PNGCompression: "speed", Preview: opts}, nil)
	if err != nil {
		t.Fatalf("NewMeshHandler: %v", err)
	}
	return h.Handler()
}

func TestParseMeshPath(t *testing.T) {
	tests := []struct {
		path string
		name string
		ext  string
		ok   bool
	}{
		{"/meshes/cave-003.obj", "cave-003", ".obj", true},
		{"/meshes/seed-42.png", "seed-42", ".png", true},
		{"/meshes/a.b.json", "a.b", ".json", true},
		{"/meshes/cave.stl", "", "", false},
		{"/meshes/.obj", "", "", false},
		{"/meshes/nested/cave.obj", "", "", false},
		{"/tiles/cave.obj", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			name, ext, ok := parseMeshPath(tt.path)
			if ok != tt.ok || name != tt.name || ext != tt.ext {
				t.Fatalf("parseMeshPath(%q) = %q, %q, %v; want %q, %q, %v", tt.path, name, ext, ok, tt.name, tt.ext, tt.ok)
			}
		})
	}
}

func TestMeshHandler_List(t *testing.T) {
	h := newTestHandler(t, newMemStore(triangleEntry("b"), triangleEntry("a")))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/meshes/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var infos []meshstore.Info
	if err := json.Unmarshal(rec.Body.Bytes(), &infos); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(infos) != 2 || infos[0].Name != "a" || infos[1].Name != "b" {
		t.Fatalf("unexpected list: %+v", infos)
	}
}

func TestMeshHandler_EmptyListIsArray(t *testing.T) {
	h := newTestHandler(t, newMemStore())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/meshes/", nil))

	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("expected empty array, got %q", rec.Body.String())
	}
}

func TestMeshHandler_OBJ(t *testing.T) {
	h := newTestHandler(t, newMemStore(triangleEntry("cave")))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/meshes/cave.obj", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "o cave\n") || !strings.Contains(body, "f 1 2 3\n") {
		t.Fatalf("unexpected obj body:\n%s", body)
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-store" {
		t.Fatalf("expected default cache-control, got %q", got)
	}
}

func TestMeshHandler_PNG(t *testing.T) {
	h := newTestHandler(t, newMemStore(triangleEntry("cave")))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/meshes/cave.png", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("unexpected content type %q", ct)
	}
	img, err := png.Decode(rec.Body)
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if img.Bounds().Dx() != 32 {
		t.Fatalf("expected 32px preview, got %d", img.Bounds().Dx())
	}
}

func TestMeshHandler_JSON(t *testing.T) {
	h := newTestHandler(t, newMemStore(triangleEntry("cave")))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/meshes/cave.json", nil))

	var info meshstore.Info
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("decode info: %v", err)
	}
	if info.Name != "cave" || info.TriangleCount != 1 {
		t.Fatalf("unexpected info: %+v", info)
	}
}

func TestMeshHandler_NotFound(t *testing.T) {
	h := newTestHandler(t, newMemStore())

	for _, p := range []string{"/meshes/missing.obj", "/meshes/cave.stl"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, p, nil))
		if rec.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", p, rec.Code)
		}
	}
}

func TestNewMeshHandler_RejectsCompression(t *testing.T) {
	if _, err := NewMeshHandler(newMemStore(), MeshConfig{PNGCompression: "turbo"}, nil); err == nil {
		t.Fatal("expected error for unknown compression")
	}
}

func TestWithCORS(t *testing.T) {
	called := false
	h := WithCORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/meshes/", nil))
	if rec.Code != http.StatusNoContent || called {
		t.Fatalf("preflight: code %d, called %v", rec.Code, called)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("missing CORS header")
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/meshes/", nil))
	if !called {
		t.Fatal("expected GET to reach the wrapped handler")
	}
}
