package recovery

import (
	"testing"

	"waymesh.ai/internal/sim/nav/geom"
)

func testCfg() Config {
	return Config{StepBackDist: 2, WanderRadius: 4, LastGoodMinAge: 40}
}

// recorderEnv scripts every adapter and records relocations.
type recorderEnv struct {
	pos        geom.Vec3
	repathOK   bool
	stepBackOK bool
	wanderOK   bool
	lastGoodOK bool
	relocated  []geom.Vec3
	repaths    int
}

func (r *recorderEnv) env() Env {
	return Env{
		Pos: func() geom.Vec3 { return r.pos },
		Repath: func(from geom.Vec3) bool {
			r.repaths++
			return r.repathOK
		},
		StepBack: func(dist float64) (geom.Vec3, bool) {
			if !r.stepBackOK {
				return geom.Vec3{}, false
			}
			return r.pos.Add(geom.Vec3{X: -dist}), true
		},
		RandomNearby: func(center geom.Vec3, radius float64) (geom.Vec3, bool) {
			if !r.wanderOK {
				return geom.Vec3{}, false
			}
			return center.Add(geom.Vec3{X: radius / 2}), true
		},
		LastGood: func(minAge uint64) (geom.Vec3, bool) {
			if !r.lastGoodOK {
				return geom.Vec3{}, false
			}
			return geom.Vec3{X: 1, Z: 1}, true
		},
		Anchor: func() geom.Vec3 { return geom.Vec3{X: 100, Z: 100} },
		Relocate: func(to geom.Vec3) {
			r.relocated = append(r.relocated, to)
		},
	}
}

func TestEscalationOrderAndMonotonicLevels(t *testing.T) {
	r := &recorderEnv{pos: geom.Vec3{X: 10}}
	e := NewEscalator(testCfg())

	wantStrategies := []string{"repath", "step_back", "wander", "last_good", "reset_anchor"}
	prevLevel := 0
	for i, want := range wantStrategies {
		out := e.Next(r.env())
		if out.Strategy != want {
			t.Fatalf("attempt %d: strategy=%q want %q", i, out.Strategy, want)
		}
		if out.Level <= prevLevel {
			t.Fatalf("attempt %d: level %d not monotonic (prev %d)", i, out.Level, prevLevel)
		}
		prevLevel = out.Level
	}
}

func TestTerminalLevelAlwaysSucceeds(t *testing.T) {
	r := &recorderEnv{} // every strategy adapter fails
	e := NewEscalator(testCfg())
	var out Outcome
	for i := 0; i < e.Levels(); i++ {
		out = e.Next(r.env())
	}
	if !out.OK || !out.Terminal {
		t.Fatalf("final outcome=%+v want terminal success", out)
	}
	if out.Target != (geom.Vec3{X: 100, Z: 100}) {
		t.Fatalf("terminal target=%+v want anchor", out.Target)
	}
	// Past the end the terminal level repeats and still succeeds.
	if again := e.Next(r.env()); !again.OK || !again.Terminal {
		t.Fatalf("repeat terminal=%+v", again)
	}
}

func TestLevelOneIsPlainRepath(t *testing.T) {
	r := &recorderEnv{pos: geom.Vec3{X: 5}, repathOK: true}
	e := NewEscalator(testCfg())
	out := e.Next(r.env())
	if !out.OK || out.Strategy != "repath" {
		t.Fatalf("outcome=%+v", out)
	}
	if r.repaths != 1 || len(r.relocated) != 0 {
		t.Fatalf("repath should not relocate (repaths=%d relocated=%v)", r.repaths, r.relocated)
	}
}

func TestStepBackRetriesRoute(t *testing.T) {
	r := &recorderEnv{pos: geom.Vec3{X: 5}, stepBackOK: true, repathOK: true}
	e := NewEscalator(testCfg())
	e.Next(r.env()) // level 1
	out := e.Next(r.env())
	if !out.OK || out.Strategy != "step_back" {
		t.Fatalf("outcome=%+v", out)
	}
	if out.Target != (geom.Vec3{X: 3}) {
		t.Fatalf("target=%+v want stepped-back position", out.Target)
	}
}

func TestWanderRelocatesToValidatedPoint(t *testing.T) {
	r := &recorderEnv{pos: geom.Vec3{X: 5}, wanderOK: true}
	e := NewEscalator(testCfg())
	e.Next(r.env())
	e.Next(r.env())
	out := e.Next(r.env())
	if !out.OK || out.Strategy != "wander" {
		t.Fatalf("outcome=%+v", out)
	}
	if len(r.relocated) != 1 {
		t.Fatalf("relocations=%v want 1", r.relocated)
	}
}

func TestAttemptCapSkipsToTerminal(t *testing.T) {
	r := &recorderEnv{pos: geom.Vec3{X: 5}}
	cfg := testCfg()
	cfg.MaxAttempts = 2
	e := NewEscalator(cfg)

	out := e.Next(r.env())
	if out.Strategy != "repath" || out.Level != 1 {
		t.Fatalf("first attempt=%+v want level-1 repath", out)
	}
	out = e.Next(r.env())
	if !out.OK || !out.Terminal || out.Strategy != "reset_anchor" {
		t.Fatalf("capped attempt=%+v want terminal reset_anchor", out)
	}
	if out.Target != (geom.Vec3{X: 100, Z: 100}) {
		t.Fatalf("capped attempt target=%+v want anchor", out.Target)
	}
	// Past the cap the terminal level keeps repeating.
	if again := e.Next(r.env()); !again.Terminal {
		t.Fatalf("post-cap attempt=%+v", again)
	}
}

func TestResetStartsNewEpisode(t *testing.T) {
	r := &recorderEnv{repathOK: true}
	e := NewEscalator(testCfg())
	e.Next(r.env())
	e.Next(r.env())
	e.Reset()
	if e.Attempt() != 0 {
		t.Fatalf("attempt=%d after reset", e.Attempt())
	}
	if out := e.Next(r.env()); out.Level != 1 {
		t.Fatalf("level=%d want 1 after reset", out.Level)
	}
}
