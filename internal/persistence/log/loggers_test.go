package log

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"

	"waymesh.ai/internal/sim/world"
)

func TestTickLoggerRoundTrip(t *testing.T) {
	dir := t.TempDir()
	l := NewTickLogger(dir)

	entries := []world.TickLogEntry{
		{Tick: 1, AgentID: "a1", Pos: [3]float64{1, 0, 2}, State: "ground"},
		{Tick: 2, AgentID: "a1", Pos: [3]float64{1.2, 0, 2}, State: "ground",
			Events: []world.TickEvent{{Type: "MOVE_DONE"}}},
	}
	for _, e := range entries {
		if err := l.WriteTick(e); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := filepath.Glob(filepath.Join(dir, "ticks", "*.jsonl.zst"))
	if err != nil || len(files) != 1 {
		t.Fatalf("files=%v err=%v", files, err)
	}
	f, err := os.Open(files[0])
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		t.Fatalf("zstd: %v", err)
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	var got []world.TickLogEntry
	for sc.Scan() {
		var e world.TickLogEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("line: %v", err)
		}
		got = append(got, e)
	}
	if len(got) != 2 {
		t.Fatalf("entries=%d want 2", len(got))
	}
	if got[0].Tick != 1 || got[1].AgentID != "a1" || len(got[1].Events) != 1 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestAuditLoggerWrites(t *testing.T) {
	dir := t.TempDir()
	l := NewAuditLogger(dir)
	err := l.WriteAudit(world.AuditEntry{
		Tick: 7, AgentID: "a2", Action: "MOVE_TO",
		Target: [3]float64{4, 0, 4}, Accepted: true,
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	files, _ := filepath.Glob(filepath.Join(dir, "audit", "*.jsonl.zst"))
	if len(files) != 1 {
		t.Fatalf("audit files=%v", files)
	}
}
