package pathcache

import (
	"testing"
	"time"

	"waymesh.ai/internal/sim/nav/engine"
	"waymesh.ai/internal/sim/nav/geom"
)

func TestKeyQuantizesToCells(t *testing.T) {
	c := New(8, time.Minute, 2)
	a := c.KeyFor(geom.Vec3{X: 0.1, Z: 0.1}, geom.Vec3{X: 10.5, Z: 4.4})
	b := c.KeyFor(geom.Vec3{X: 1.9, Z: 1.2}, geom.Vec3{X: 11.9, Z: 5.9})
	if a != b {
		t.Fatalf("keys differ: %+v vs %+v", a, b)
	}
}

func TestGetReturnsDetachedCopy(t *testing.T) {
	c := New(8, time.Minute, 1)
	k := Key{Start: geom.Cell{X: 0, Z: 0}, Dest: geom.Cell{X: 5, Z: 5}}
	c.Put(k, Entry{Waypoints: []geom.Vec3{{X: 1}, {X: 2}}, Type: engine.PathTypeFull})

	got, ok := c.Get(k)
	if !ok {
		t.Fatalf("miss")
	}
	got.Waypoints[0].X = 99

	again, _ := c.Get(k)
	if again.Waypoints[0].X != 1 {
		t.Fatalf("cache entry mutated through returned slice: %+v", again.Waypoints)
	}
}

func TestTTLExpiry(t *testing.T) {
	c := New(8, 20*time.Millisecond, 1)
	k := Key{Dest: geom.Cell{X: 1, Z: 1}}
	c.Put(k, Entry{Waypoints: []geom.Vec3{{X: 1}}})
	if _, ok := c.Get(k); !ok {
		t.Fatalf("fresh entry missing")
	}
	time.Sleep(40 * time.Millisecond)
	if _, ok := c.Get(k); ok {
		t.Fatalf("entry survived past TTL")
	}
}

func TestHitMissCounters(t *testing.T) {
	c := New(8, time.Minute, 1)
	k := Key{Dest: geom.Cell{X: 2, Z: 2}}
	c.Get(k)
	c.Put(k, Entry{Waypoints: []geom.Vec3{{X: 1}}})
	c.Get(k)
	hits, misses := c.Stats()
	if hits != 1 || misses != 1 {
		t.Fatalf("hits=%d misses=%d want 1/1", hits, misses)
	}
}
