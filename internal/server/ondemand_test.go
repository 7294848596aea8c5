package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MeKo-Tech/cavegen/internal/config"
	"github.com/MeKo-Tech/cavegen/internal/meshstore"
)

func TestParseSeedName(t *testing.T) {
	tests := []struct {
		name string
		seed int64
		ok   bool
	}{
		{"seed-42", 42, true},
		{"seed--7", -7, true},
		{"seed-", 0, false},
		{"seed-x1", 0, false},
		{"cave-001", 0, false},
	}
	for _, tt := range tests {
		seed, ok := ParseSeedName(tt.name)
		if seed != tt.seed || ok != tt.ok {
			t.Errorf("ParseSeedName(%q) = %d, %v; want %d, %v", tt.name, seed, ok, tt.seed, tt.ok)
		}
	}
}

func countingGenerator(calls *atomic.Int32) GenerateFunc {
	return func(ctx context.Context, name string, seed int64) (*meshstore.Entry, error) {
		calls.Add(1)
		time.Sleep(10 * time.Millisecond)
		return triangleEntry(name), nil
	}
}

func TestOnDemand_PrefersFallback(t *testing.T) {
	var calls atomic.Int32
	fallback := newMemStore(triangleEntry("seed-1"))
	o := NewOnDemandMeshes(fallback, countingGenerator(&calls), OnDemandConfig{GenerateMissing: true}, nil)

	e, err := o.ReadMesh(context.Background(), "seed-1")
	if err != nil {
		t.Fatalf("ReadMesh: %v", err)
	}
	if e.Name != "seed-1" || calls.Load() != 0 {
		t.Fatalf("expected fallback hit without generation, got %s after %d calls", e.Name, calls.Load())
	}
}

func TestOnDemand_GeneratesOnceAndCaches(t *testing.T) {
	var calls atomic.Int32
	o := NewOnDemandMeshes(nil, countingGenerator(&calls), OnDemandConfig{GenerateMissing: true, MaxConcurrentGenerations: 2}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := o.ReadMesh(context.Background(), "seed-9"); err != nil {
				t.Errorf("ReadMesh: %v", err)
			}
		}()
	}
	wg.Wait()

	if calls.Load() != 1 {
		t.Fatalf("expected a single generation, got %d", calls.Load())
	}

	infos, err := o.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(infos) != 1 || infos[0].Name != "seed-9" {
		t.Fatalf("unexpected list: %+v", infos)
	}

	st := o.Status()
	if st.TotalRendered != 1 || st.CachedMeshes != 1 || st.ActiveRenders != 0 {
		t.Fatalf("unexpected status: %+v", st)
	}
}

func TestOnDemand_MissingWithoutGeneration(t *testing.T) {
	var calls atomic.Int32
	o := NewOnDemandMeshes(newMemStore(), countingGenerator(&calls), OnDemandConfig{GenerateMissing: false}, nil)

	_, err := o.ReadMesh(context.Background(), "seed-3")
	if !errors.Is(err, meshstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	o = NewOnDemandMeshes(nil, countingGenerator(&calls), OnDemandConfig{GenerateMissing: true}, nil)
	if _, err := o.ReadMesh(context.Background(), "cave-3"); !errors.Is(err, meshstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for a non-seed name, got %v", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("expected no generation, got %d", calls.Load())
	}
}

func TestOnDemand_FailureCounted(t *testing.T) {
	boom := errors.New("boom")
	o := NewOnDemandMeshes(nil, func(context.Context, string, int64) (*meshstore.Entry, error) {
		return nil, boom
	}, OnDemandConfig{GenerateMissing: true}, nil)

	if _, err := o.ReadMesh(context.Background(), "seed-1"); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
	if o.Status().TotalFailed != 1 {
		t.Fatalf("expected one failure, got %+v", o.Status())
	}
}

func TestOnDemand_ServedThroughHandler(t *testing.T) {
	cfg := config.Default()
	cfg.Generation.MaxHeight = 6
	cfg.Generation.Radius = 4

	o := NewOnDemandMeshes(nil, VariantGenerator(cfg, false, nil), OnDemandConfig{GenerateMissing: true}, nil)
	h := newTestHandler(t, o)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/meshes/seed-5.json", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var info meshstore.Info
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("decode info: %v", err)
	}
	if info.Name != "seed-5" || info.VertexCount != 3*info.TriangleCount {
		t.Fatalf("unexpected info: %+v", info)
	}
	used, err := config.ParseJSON(info.Config)
	if err != nil {
		t.Fatalf("stored config: %v", err)
	}
	if used.Generation.Seed != 5 {
		t.Fatalf("expected seed 5 in stored config, got %d", used.Generation.Seed)
	}

	rec = httptest.NewRecorder()
	o.StatusHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	if !strings.Contains(rec.Body.String(), `"total_rendered":1`) {
		t.Fatalf("unexpected status body: %s", rec.Body.String())
	}
}

func lockCount(o *OnDemandMeshes) int {
	n := 0
	o.locks.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func instantGenerator(calls *atomic.Int32) GenerateFunc {
	return func(ctx context.Context, name string, seed int64) (*meshstore.Entry, error) {
		calls.Add(1)
		return triangleEntry(name), nil
	}
}

func TestOnDemand_CacheIsBounded(t *testing.T) {
	var calls atomic.Int32
	o := NewOnDemandMeshes(nil, instantGenerator(&calls), OnDemandConfig{GenerateMissing: true, MaxCachedMeshes: 16}, nil)

	for i := 0; i < 500; i++ {
		if _, err := o.ReadMesh(context.Background(), fmt.Sprintf("seed-%d", i)); err != nil {
			t.Fatalf("ReadMesh seed-%d: %v", i, err)
		}
	}

	st := o.Status()
	if st.CachedMeshes != 16 || st.MaxCached != 16 {
		t.Fatalf("expected 16 cached meshes, got %+v", st)
	}
	if st.Evictions != 500-16 {
		t.Fatalf("expected %d evictions, got %d", 500-16, st.Evictions)
	}
	if n := lockCount(o); n != 0 {
		t.Fatalf("expected generation locks to be released, %d left", n)
	}

	infos, err := o.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(infos) != 16 {
		t.Fatalf("expected 16 listed meshes, got %d", len(infos))
	}

	// The most recent mesh is still cached; the oldest one is regenerated.
	before := calls.Load()
	if _, err := o.ReadMesh(context.Background(), "seed-499"); err != nil {
		t.Fatalf("ReadMesh: %v", err)
	}
	if calls.Load() != before {
		t.Fatalf("expected seed-499 from cache")
	}
	if _, err := o.ReadMesh(context.Background(), "seed-0"); err != nil {
		t.Fatalf("ReadMesh: %v", err)
	}
	if calls.Load() != before+1 {
		t.Fatalf("expected seed-0 to be regenerated")
	}
}

func TestOnDemand_CacheKeepsRecentlyUsed(t *testing.T) {
	var calls atomic.Int32
	o := NewOnDemandMeshes(nil, instantGenerator(&calls), OnDemandConfig{GenerateMissing: true, MaxCachedMeshes: 2}, nil)
	ctx := context.Background()

	for _, name := range []string{"seed-1", "seed-2", "seed-1", "seed-3"} {
		if _, err := o.ReadMesh(ctx, name); err != nil {
			t.Fatalf("ReadMesh %s: %v", name, err)
		}
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 generations, got %d", calls.Load())
	}

	// seed-2 was least recently used and has been evicted.
	if _, err := o.ReadMesh(ctx, "seed-1"); err != nil {
		t.Fatalf("ReadMesh: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected seed-1 to stay cached, got %d generations", calls.Load())
	}
	if _, err := o.ReadMesh(ctx, "seed-2"); err != nil {
		t.Fatalf("ReadMesh: %v", err)
	}
	if calls.Load() != 4 {
		t.Fatalf("expected seed-2 to be regenerated, got %d generations", calls.Load())
	}
}

func TestOnDemand_DisableCache(t *testing.T) {
	var calls atomic.Int32
	o := NewOnDemandMeshes(nil, instantGenerator(&calls), OnDemandConfig{GenerateMissing: true, DisableCache: true}, nil)

	for i := 0; i < 3; i++ {
		if _, err := o.ReadMesh(context.Background(), "seed-4"); err != nil {
			t.Fatalf("ReadMesh: %v", err)
		}
	}
	if calls.Load() != 3 {
		t.Fatalf("expected a generation per request, got %d", calls.Load())
	}
	if st := o.Status(); st.CachedMeshes != 0 || st.TotalRendered != 3 {
		t.Fatalf("unexpected status: %+v", st)
	}
	if n := lockCount(o); n != 0 {
		t.Fatalf("expected generation locks to be released, %d left", n)
	}
}
