package indexdb

import (
	"path/filepath"
	"testing"

	"waymesh.ai/internal/sim/world"
)

func TestIndexRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")

	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	s.EnqueueTick(1, 2, 1)
	s.EnqueueTick(2, 2, 2)
	s.EnqueueTick(3, 2, 0)
	s.EnqueueStuck(2, "a1", "position", 0, "", false)
	s.EnqueueStuck(2, "a1", "position", 1, "repath", true)
	_ = s.WriteAudit(world.AuditEntry{
		Tick: 1, AgentID: "a1", Action: "MOVE_TO",
		Target: [3]float64{10, 0, 12}, Accepted: true,
	})
	// Close drains the queue and commits.
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s2, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = s2.Close() }()

	ticks, err := s2.Ticks(1, 4)
	if err != nil {
		t.Fatalf("ticks: %v", err)
	}
	if len(ticks) != 3 || ticks[1].Moving != 2 {
		t.Fatalf("ticks=%+v", ticks)
	}

	eps, err := s2.StuckEpisodes("a1", 10)
	if err != nil {
		t.Fatalf("episodes: %v", err)
	}
	if len(eps) != 2 {
		t.Fatalf("episodes=%+v want 2", eps)
	}
	// Newest-first: the resolved level-1 attempt precedes the raise.
	if !eps[0].Resolved || eps[0].Strategy != "repath" {
		t.Fatalf("first episode=%+v", eps[0])
	}

	trail, err := s2.AuditTrail("a1", 10)
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	if len(trail) != 1 || trail[0].Target != [3]float64{10, 0, 12} {
		t.Fatalf("trail=%+v", trail)
	}
}

func TestQueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqTick}

	s.EnqueueTick(2, 1, 0)
	s.EnqueueStuck(2, "a1", "position", 0, "", false)
	_ = s.WriteAudit(world.AuditEntry{Tick: 2})

	st := s.Stats()
	if st.DropTickTotal != 1 || st.DropStuckTotal != 1 || st.DropAuditTotal != 1 {
		t.Fatalf("drop stats=%+v", st)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats=%+v", st)
	}
}
