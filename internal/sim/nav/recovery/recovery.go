// Package recovery escalates through an ordered table of strategies while an
// agent is stuck. Each level intervenes harder than the one before; the final
// level relocates unconditionally and always succeeds.
package recovery

import "waymesh.ai/internal/sim/nav/geom"

// Env is the set of world actions a strategy may take, bound to one agent by
// the controller. Strategies stay pure over this adapter so each level is
// independently testable.
type Env struct {
	// Pos is the agent's current position.
	Pos func() geom.Vec3

	// Repath requests a fresh route to the active destination from the
	// given origin; reports whether a valid route was produced.
	Repath func(from geom.Vec3) bool

	// StepBack walks the agent a short distance back along its recent
	// heading; reports the position it settled on.
	StepBack func(dist float64) (geom.Vec3, bool)

	// RandomNearby picks a validated random point within radius.
	RandomNearby func(center geom.Vec3, radius float64) (geom.Vec3, bool)

	// LastGood returns a known-good historic position at least minAge
	// ticks old.
	LastGood func(minAge uint64) (geom.Vec3, bool)

	// Anchor is the world's safe fallback position for this agent.
	Anchor func() geom.Vec3

	// Relocate moves the agent without pathing. Must not fail.
	Relocate func(to geom.Vec3)
}

// Outcome reports what a strategy did.
type Outcome struct {
	Level    int
	Strategy string
	OK       bool
	// Terminal marks the always-succeeding last level.
	Terminal bool
	// Target is where the agent was pointed or placed, when applicable.
	Target geom.Vec3
}

// Strategy is one recovery level.
type Strategy struct {
	Name string
	Run  func(Env) Outcome
}

// Config tunes the individual strategies.
type Config struct {
	// StepBackDist is the level-2 retreat distance.
	StepBackDist float64
	// WanderRadius bounds the level-3 random point search.
	WanderRadius float64
	// LastGoodMinAge ages the level-4 historic position by a safety
	// margin, so the agent does not return to the spot it got stuck at.
	LastGoodMinAge uint64
	// MaxAttempts caps attempts per episode; the attempt that reaches the
	// cap skips straight to the terminal level. Zero or out of range means
	// one attempt per level.
	MaxAttempts int
}

// Strategies builds the ordered table. Order is the escalation order.
func Strategies(cfg Config) []Strategy {
	return []Strategy{
		{Name: "repath", Run: func(e Env) Outcome {
			return Outcome{Strategy: "repath", OK: e.Repath(e.Pos())}
		}},
		{Name: "step_back", Run: func(e Env) Outcome {
			p, ok := e.StepBack(cfg.StepBackDist)
			if !ok {
				return Outcome{Strategy: "step_back"}
			}
			return Outcome{Strategy: "step_back", OK: e.Repath(p), Target: p}
		}},
		{Name: "wander", Run: func(e Env) Outcome {
			p, ok := e.RandomNearby(e.Pos(), cfg.WanderRadius)
			if !ok {
				return Outcome{Strategy: "wander"}
			}
			e.Relocate(p)
			return Outcome{Strategy: "wander", OK: true, Target: p}
		}},
		{Name: "last_good", Run: func(e Env) Outcome {
			p, ok := e.LastGood(cfg.LastGoodMinAge)
			if !ok {
				return Outcome{Strategy: "last_good"}
			}
			e.Relocate(p)
			return Outcome{Strategy: "last_good", OK: true, Target: p}
		}},
		{Name: "reset_anchor", Run: func(e Env) Outcome {
			p := e.Anchor()
			e.Relocate(p)
			return Outcome{Strategy: "reset_anchor", OK: true, Terminal: true, Target: p}
		}},
	}
}

// Escalator walks the strategy table. The level is monotonic within one stuck
// episode; Reset starts a fresh episode.
type Escalator struct {
	list    []Strategy
	max     int
	attempt int
}

func NewEscalator(cfg Config) *Escalator {
	list := Strategies(cfg)
	max := cfg.MaxAttempts
	if max <= 0 || max > len(list) {
		max = len(list)
	}
	return &Escalator{list: list, max: max}
}

// Attempt is the number of strategies tried this episode.
func (e *Escalator) Attempt() int { return e.attempt }

// Levels is the size of the strategy table.
func (e *Escalator) Levels() int { return len(e.list) }

// Next runs the strategy for the current attempt count and advances it.
// The attempt that reaches the episode cap, and every attempt past it, runs
// the terminal level.
func (e *Escalator) Next(env Env) Outcome {
	idx := e.attempt
	if idx >= e.max-1 || idx >= len(e.list)-1 {
		idx = len(e.list) - 1
	}
	e.attempt++
	out := e.list[idx].Run(env)
	out.Level = idx + 1
	return out
}

// Reset zeroes the attempt counter after a successful move.
func (e *Escalator) Reset() { e.attempt = 0 }
