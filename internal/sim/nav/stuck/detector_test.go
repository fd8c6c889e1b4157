package stuck

import (
	"testing"

	"waymesh.ai/internal/sim/nav/geom"
)

func testCfg() Config {
	return Config{
		WindowTicks:         60, // 3000 ms at 20 Hz
		MinMove:             0.5,
		ProgressWindowTicks: 80,
		MaxFailures:         3,
		HistoryCap:          128,
	}
}

func TestPositionStagnationRaisesStuck(t *testing.T) {
	d := NewDetector(testCfg())
	p := geom.Vec3{X: 10, Z: 10}
	for tick := uint64(1); tick <= 60; tick++ {
		d.Observe(p, tick, 0, 5, true)
		if d.IsStuck() && tick < 61 {
			break
		}
	}
	// The window closes once a snapshot 60 ticks old exists.
	d.Observe(p, 61, 0, 5, true)
	if !d.IsStuck() {
		t.Fatalf("zero displacement over the window not detected")
	}
	if d.StuckType() != Position {
		t.Fatalf("type=%v want position", d.StuckType())
	}
}

func TestMovingAgentIsNotStuck(t *testing.T) {
	d := NewDetector(testCfg())
	for tick := uint64(1); tick <= 200; tick++ {
		p := geom.Vec3{X: float64(tick) * 0.2, Z: 0}
		d.Observe(p, tick, int(tick/10), 2, true)
	}
	if d.IsStuck() {
		t.Fatalf("agent with steady displacement flagged stuck (%v)", d.StuckType())
	}
}

func TestAdvancingWaypointsSuppressGeometrySignal(t *testing.T) {
	cfg := testCfg()
	cfg.WindowTicks = 0 // isolate the progress signal
	d := NewDetector(cfg)
	for tick := uint64(1); tick <= 300; tick++ {
		d.Observe(geom.Vec3{}, tick, int(tick/20), 2, true)
		if d.IsStuck() {
			t.Fatalf("tick %d: stuck while waypoint index advances", tick)
		}
	}
}

func TestWaypointStagnationIsGeometryStuck(t *testing.T) {
	cfg := testCfg()
	cfg.WindowTicks = 0
	d := NewDetector(cfg)
	for tick := uint64(1); tick <= 100; tick++ {
		// Oscillating position, frozen waypoint index.
		p := geom.Vec3{X: float64(tick % 7), Z: 0}
		d.Observe(p, tick, 3, 4, true)
	}
	if !d.IsStuck() || d.StuckType() != Geometry {
		t.Fatalf("stuck=%v type=%v want geometry", d.IsStuck(), d.StuckType())
	}
}

func TestApproachOnSingleWaypointIsNotGeometryStuck(t *testing.T) {
	cfg := testCfg()
	cfg.WindowTicks = 0
	d := NewDetector(cfg)
	// A smoothed straight route keeps index 0 the whole way; closing in on
	// the final waypoint still counts as progress.
	for tick := uint64(1); tick <= 300; tick++ {
		dist := 80.0 - float64(tick)*0.2
		d.Observe(geom.Vec3{X: float64(tick) * 0.2}, tick, 0, dist, true)
		if d.IsStuck() {
			t.Fatalf("tick %d: stuck while approaching the waypoint", tick)
		}
	}
}

func TestConsecutiveFailuresWithoutStagnation(t *testing.T) {
	d := NewDetector(testCfg())
	d.Observe(geom.Vec3{X: 1}, 1, 0, 9, true)
	d.RecordFailure(2, false)
	d.RecordFailure(3, false)
	if d.IsStuck() {
		t.Fatalf("stuck before reaching the failure threshold")
	}
	d.RecordFailure(4, false)
	if !d.IsStuck() || d.StuckType() != PathFailure {
		t.Fatalf("stuck=%v type=%v want path_failure", d.IsStuck(), d.StuckType())
	}
}

func TestUnreachableFailureKind(t *testing.T) {
	d := NewDetector(testCfg())
	for i := 0; i < 3; i++ {
		d.RecordFailure(uint64(i+1), true)
	}
	if d.StuckType() != Unreachable {
		t.Fatalf("type=%v want unreachable", d.StuckType())
	}
}

func TestSuccessResetsFailureStreak(t *testing.T) {
	d := NewDetector(testCfg())
	d.RecordFailure(1, false)
	d.RecordFailure(2, false)
	d.RecordSuccess()
	d.RecordFailure(3, false)
	if d.IsStuck() {
		t.Fatalf("interrupted streak raised stuck")
	}
}

func TestIdleAgentNeverStuck(t *testing.T) {
	d := NewDetector(testCfg())
	for tick := uint64(1); tick <= 200; tick++ {
		d.Observe(geom.Vec3{X: 5}, tick, 0, 0, false)
	}
	if d.IsStuck() {
		t.Fatalf("idle agent flagged stuck")
	}
}

func TestDurationAndAttempts(t *testing.T) {
	d := NewDetector(testCfg())
	for tick := uint64(1); tick <= 61; tick++ {
		d.Observe(geom.Vec3{}, tick, 0, 7, true)
	}
	if !d.IsStuck() {
		t.Fatalf("not stuck")
	}
	if got := d.Duration(71); got != 10 {
		t.Fatalf("duration=%d want 10", got)
	}
	d.RecordAttempt()
	d.RecordAttempt()
	if d.Attempts() != 2 {
		t.Fatalf("attempts=%d want 2", d.Attempts())
	}
	d.Reset()
	if d.IsStuck() || d.Attempts() != 0 || d.StuckType() != None {
		t.Fatalf("reset incomplete: %+v", d)
	}
}

func TestHistoryMonotonicTicks(t *testing.T) {
	d := NewDetector(testCfg())
	d.Observe(geom.Vec3{X: 1}, 5, 0, 1, true)
	d.Observe(geom.Vec3{X: 2}, 5, 0, 1, true) // duplicate tick dropped
	d.Observe(geom.Vec3{X: 3}, 4, 0, 1, true) // regression dropped
	h := d.History()
	if len(h) != 1 || h[0].Pos.X != 1 {
		t.Fatalf("history=%+v want single snapshot", h)
	}
}

func TestLastGoodRespectsMinAge(t *testing.T) {
	d := NewDetector(testCfg())
	for tick := uint64(1); tick <= 50; tick++ {
		d.Observe(geom.Vec3{X: float64(tick)}, tick, 0, 1, true)
	}
	s, ok := d.LastGood(50, 10)
	if !ok {
		t.Fatalf("no aged snapshot found")
	}
	if s.Tick != 40 {
		t.Fatalf("tick=%d want newest snapshot at least 10 old (40)", s.Tick)
	}
}

func TestRingBounded(t *testing.T) {
	cfg := testCfg()
	cfg.WindowTicks = 4
	cfg.ProgressWindowTicks = 4
	cfg.HistoryCap = 8
	d := NewDetector(cfg)
	for tick := uint64(1); tick <= 100; tick++ {
		d.Observe(geom.Vec3{X: float64(tick)}, tick, int(tick), 1, true)
	}
	if got := len(d.History()); got != 8 {
		t.Fatalf("history len=%d want 8", got)
	}
}
