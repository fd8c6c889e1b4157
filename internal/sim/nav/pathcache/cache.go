// Package pathcache is the process-wide route cache shared between agent
// controllers. Reads vastly outnumber writes; the backing store is safe for
// concurrent use even though per-agent navigation state is single-threaded.
package pathcache

import (
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"waymesh.ai/internal/sim/nav/engine"
	"waymesh.ai/internal/sim/nav/geom"
)

// Key identifies a route by quantized endpoints. Two requests in the same
// start and destination cells share a cache entry.
type Key struct {
	Start geom.Cell
	Dest  geom.Cell
}

// Entry is a cached validated route.
type Entry struct {
	Waypoints []geom.Vec3
	Type      engine.PathType
	Cost      float64
	Inserted  time.Time
}

type Cache struct {
	lru      *expirable.LRU[Key, Entry]
	cellSize float64

	hits   atomic.Uint64
	misses atomic.Uint64
}

// New builds a cache holding at most size entries, each expiring after ttl.
func New(size int, ttl time.Duration, cellSize float64) *Cache {
	if size <= 0 {
		size = 256
	}
	if cellSize <= 0 {
		cellSize = 1
	}
	return &Cache{
		lru:      expirable.NewLRU[Key, Entry](size, nil, ttl),
		cellSize: cellSize,
	}
}

func (c *Cache) KeyFor(start, dest geom.Vec3) Key {
	return Key{Start: geom.CellOf(start, c.cellSize), Dest: geom.CellOf(dest, c.cellSize)}
}

// Get returns a copy of the cached entry; callers own the returned waypoint
// slice and may not reach the shared one.
func (c *Cache) Get(k Key) (Entry, bool) {
	e, ok := c.lru.Get(k)
	if !ok {
		c.misses.Add(1)
		return Entry{}, false
	}
	c.hits.Add(1)
	out := e
	out.Waypoints = append([]geom.Vec3(nil), e.Waypoints...)
	return out, true
}

func (c *Cache) Put(k Key, e Entry) {
	e.Waypoints = append([]geom.Vec3(nil), e.Waypoints...)
	if e.Inserted.IsZero() {
		e.Inserted = time.Now()
	}
	c.lru.Add(k, e)
}

func (c *Cache) Len() int { return c.lru.Len() }

func (c *Cache) Purge() { c.lru.Purge() }

// Stats returns cumulative hit/miss counters.
func (c *Cache) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}
