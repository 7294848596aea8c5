package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MeKo-Tech/cavegen/internal/config"
	"github.com/MeKo-Tech/cavegen/internal/generator"
	"github.com/MeKo-Tech/cavegen/internal/meshstore"
	"github.com/MeKo-Tech/cavegen/internal/worker"
)

// SeedPrefix marks mesh names that can be generated on demand: "seed-42".
const SeedPrefix = "seed-"

// GenerateFunc builds the mesh for one seed.
type GenerateFunc func(ctx context.Context, name string, seed int64) (*meshstore.Entry, error)

// OnDemandConfig configures on-demand generation.
type OnDemandConfig struct {
	MaxConcurrentGenerations int
	GenerationTimeout        time.Duration
	GenerateMissing          bool
	// MaxCachedMeshes bounds the in-memory LRU (DefaultMaxCachedMeshes when <= 0).
	MaxCachedMeshes int
	// DisableCache regenerates missing seed-N meshes on every request.
	DisableCache bool
}

// OnDemandMeshes is a Store that serves from a fallback store and generates
// missing seed-N meshes, keeping the most recently used ones in memory.
type OnDemandMeshes struct {
	fallback Store
	generate GenerateFunc
	logger   *slog.Logger
	sem      chan struct{}
	locks    sync.Map // name -> *sync.Mutex, only while generating
	cache    *meshCache
	cfg      OnDemandConfig

	activeRenders  atomic.Int32
	queuedRenders  atomic.Int32
	totalRendered  atomic.Int64
	totalFailed    atomic.Int64
	currentRenders sync.Map // name -> start time
}

// Status is the current state of on-demand generation.
type Status struct {
	ActiveRenders  int      `json:"active_renders"`
	QueuedRenders  int      `json:"queued_renders"`
	TotalRendered  int64    `json:"total_rendered"`
	TotalFailed    int64    `json:"total_failed"`
	CurrentMeshes  []string `json:"current_meshes"`
	MaxConcurrent  int      `json:"max_concurrent"`
	CachedMeshes   int      `json:"cached_meshes"`
	MaxCached      int      `json:"max_cached_meshes"`
	Evictions      int64    `json:"evictions"`
	GenerateOnMiss bool     `json:"generate_missing"`
}

// NewOnDemandMeshes creates the store. fallback may be nil.
func NewOnDemandMeshes(fallback Store, generate GenerateFunc, cfg OnDemandConfig, logger *slog.Logger) *OnDemandMeshes {
	if cfg.MaxConcurrentGenerations <= 0 {
		cfg.MaxConcurrentGenerations = 1
	}
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = 2 * time.Minute
	}
	if cfg.MaxCachedMeshes <= 0 {
		cfg.MaxCachedMeshes = DefaultMaxCachedMeshes
	}

	return &OnDemandMeshes{
		fallback: fallback,
		generate: generate,
		logger:   logger,
		sem:      make(chan struct{}, cfg.MaxConcurrentGenerations),
		cache:    newMeshCache(cfg.MaxCachedMeshes),
		cfg:      cfg,
	}
}

// ReadMesh implements Store.
func (o *OnDemandMeshes) ReadMesh(ctx context.Context, name string) (*meshstore.Entry, error) {
	if e, ok := o.cachedMesh(name); ok {
		return e, nil
	}

	if o.fallback != nil {
		e, err := o.fallback.ReadMesh(ctx, name)
		if err == nil || !errors.Is(err, meshstore.ErrNotFound) {
			return e, err
		}
	}

	seed, ok := ParseSeedName(name)
	if !ok || !o.cfg.GenerateMissing || o.generate == nil {
		return nil, fmt.Errorf("%w: %q", meshstore.ErrNotFound, name)
	}

	mu := o.getLock(name)
	mu.Lock()
	defer func() {
		o.locks.CompareAndDelete(name, mu)
		mu.Unlock()
	}()

	if e, ok := o.cachedMesh(name); ok {
		return e, nil
	}

	o.queuedRenders.Add(1)
	select {
	case o.sem <- struct{}{}:
		o.queuedRenders.Add(-1)
		defer func() { <-o.sem }()
	case <-ctx.Done():
		o.queuedRenders.Add(-1)
		return nil, ctx.Err()
	}

	ctx, cancel := context.WithTimeout(ctx, o.cfg.GenerationTimeout)
	defer cancel()

	start := time.Now()
	o.activeRenders.Add(1)
	o.currentRenders.Store(name, start)
	e, err := o.generate(ctx, name, seed)
	o.activeRenders.Add(-1)
	o.currentRenders.Delete(name)

	if err != nil {
		o.totalFailed.Add(1)
		o.log().Error("Failed to generate mesh", "name", name, "error", err)
		return nil, fmt.Errorf("failed to generate mesh %s: %w", name, err)
	}

	o.totalRendered.Add(1)
	if !o.cfg.DisableCache {
		o.cache.put(name, e)
	}
	o.log().Info("Mesh generated on-demand", "name", name, "triangles", e.TriangleCount, "ms", time.Since(start).Milliseconds())
	return e, nil
}

// List implements Store: the fallback's meshes plus the cached generated ones.
func (o *OnDemandMeshes) List(ctx context.Context) ([]meshstore.Info, error) {
	var out []meshstore.Info
	seen := make(map[string]bool)
	if o.fallback != nil {
		infos, err := o.fallback.List(ctx)
		if err != nil {
			return nil, err
		}
		for _, info := range infos {
			seen[info.Name] = true
			out = append(out, info)
		}
	}
	for _, info := range o.cache.infos() {
		if !seen[info.Name] {
			out = append(out, info)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Status returns a snapshot of the generation counters.
func (o *OnDemandMeshes) Status() Status {
	var current []string
	o.currentRenders.Range(func(key, _ any) bool {
		current = append(current, key.(string))
		return true
	})
	sort.Strings(current)

	return Status{
		ActiveRenders:  int(o.activeRenders.Load()),
		QueuedRenders:  int(o.queuedRenders.Load()),
		TotalRendered:  o.totalRendered.Load(),
		TotalFailed:    o.totalFailed.Load(),
		CurrentMeshes:  current,
		MaxConcurrent:  o.cfg.MaxConcurrentGenerations,
		CachedMeshes:   o.cache.len(),
		MaxCached:      o.cfg.MaxCachedMeshes,
		Evictions:      o.cache.evictions.Load(),
		GenerateOnMiss: o.cfg.GenerateMissing,
	}
}

// StatusHandler returns an HTTP handler for the status endpoint (JSON).
func (o *OnDemandMeshes) StatusHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Cache-Control", "no-store")

		if err := json.NewEncoder(w).Encode(o.Status()); err != nil {
			o.log().Error("failed to encode status", "error", err)
			http.Error(w, "failed to encode status", http.StatusInternalServerError)
		}
	})
}

// StatusStreamHandler pushes the status as Server-Sent Events every interval.
func (o *OnDemandMeshes) StatusStreamHandler(interval time.Duration) http.Handler {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("Access-Control-Allow-Origin", "*")

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "SSE not supported", http.StatusInternalServerError)
			return
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		o.sendStatusEvent(w, flusher)
		for {
			select {
			case <-r.Context().Done():
				return
			case <-ticker.C:
				o.sendStatusEvent(w, flusher)
			}
		}
	})
}

func (o *OnDemandMeshes) sendStatusEvent(w http.ResponseWriter, flusher http.Flusher) {
	data, err := json.Marshal(o.Status())
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}

func (o *OnDemandMeshes) cachedMesh(name string) (*meshstore.Entry, bool) {
	if o.cfg.DisableCache {
		return nil, false
	}
	return o.cache.get(name)
}

func (o *OnDemandMeshes) getLock(key string) *sync.Mutex {
	if v, ok := o.locks.Load(key); ok {
		return v.(*sync.Mutex)
	}
	mu := &sync.Mutex{}
	actual, _ := o.locks.LoadOrStore(key, mu)
	return actual.(*sync.Mutex)
}

func (o *OnDemandMeshes) log() *slog.Logger {
	if o.logger != nil {
		return o.logger
	}
	return slog.Default()
}

// ParseSeedName extracts N from "seed-N".
func ParseSeedName(name string) (int64, bool) {
	rest, ok := strings.CutPrefix(name, SeedPrefix)
	if !ok || rest == "" {
		return 0, false
	}
	seed, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0, false
	}
	return seed, true
}

// VariantGenerator returns a GenerateFunc that builds each seed from cfg on
// a private controller, optionally re-rolling the layer offsets.
func VariantGenerator(cfg config.Config, randomize bool, logger *slog.Logger) GenerateFunc {
	return func(ctx context.Context, name string, seed int64) (*meshstore.Entry, error) {
		var entry *meshstore.Entry
		v := &worker.Variants{
			Config: cfg,
			Logger: logger,
			Store: func(task worker.Task, res generator.Result, used config.Config) error {
				cfgJSON, err := used.JSON()
				if err != nil {
					return err
				}
				entry = &meshstore.Entry{
					Info: meshstore.Info{
						Name:          task.Name,
						CreatedAt:     time.Now().UTC(),
						VertexCount:   len(res.Mesh.Vertices),
						TriangleCount: res.Mesh.TriangleCount(),
						Dims:          res.Dims,
						Config:        cfgJSON,
					},
					Mesh: res.Mesh,
				}
				return nil
			},
		}

		if _, err := v.Generate(ctx, worker.Task{Name: name, Seed: seed, Randomize: randomize}); err != nil {
			return nil, err
		}
		return entry, nil
	}
}
