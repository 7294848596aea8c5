package server

import (
	"container/list"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/MeKo-Tech/cavegen/internal/meshstore"
)

// DefaultMaxCachedMeshes bounds the on-demand cache when no limit is configured.
const DefaultMaxCachedMeshes = 256

// meshCache is an LRU of generated meshes keyed by name.
type meshCache struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	lru     *list.List // front = most recent
	max     int

	evictions atomic.Int64
}

type cacheItem struct {
	name  string
	entry *meshstore.Entry
}

func newMeshCache(limit int) *meshCache {
	if limit <= 0 {
		limit = DefaultMaxCachedMeshes
	}
	return &meshCache{
		entries: make(map[string]*list.Element),
		lru:     list.New(),
		max:     limit,
	}
}

func (c *meshCache) get(name string) (*meshstore.Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[name]
	if !ok {
		return nil, false
	}
	c.lru.MoveToFront(el)
	return el.Value.(*cacheItem).entry, true
}

// put stores e and evicts the least recently used entries beyond the limit.
func (c *meshCache) put(name string, e *meshstore.Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[name]; ok {
		el.Value.(*cacheItem).entry = e
		c.lru.MoveToFront(el)
		return
	}
	c.entries[name] = c.lru.PushFront(&cacheItem{name: name, entry: e})

	for c.lru.Len() > c.max {
		oldest := c.lru.Back()
		c.lru.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheItem).name)
		c.evictions.Add(1)
	}
}

func (c *meshCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// infos returns the catalogue info of every cached mesh, sorted by name.
func (c *meshCache) infos() []meshstore.Info {
	c.mu.Lock()
	out := make([]meshstore.Info, 0, c.lru.Len())
	for el := c.lru.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(*cacheItem).entry.Info)
	}
	c.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
