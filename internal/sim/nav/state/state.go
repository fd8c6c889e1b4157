// Package state is the per-agent movement state machine. States form a closed
// tagged variant dispatched through a table of handler funcs; exactly one
// state is active and at most one transition happens per tick.
package state

type State uint8

const (
	Idle State = iota
	Ground
	Swimming
	Falling
	Stuck

	stateCount
)

var stateNames = [...]string{
	Idle:     "idle",
	Ground:   "ground",
	Swimming: "swimming",
	Falling:  "falling",
	Stuck:    "stuck",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Input is the per-tick observation the machine decides on. The controller
// assembles it from agent accessors and the stuck detector; the machine never
// queries the world itself.
type Input struct {
	Tick uint64

	// Moving reports an active movement task (path being followed).
	Moving bool

	// LiquidDepth is the liquid depth at the agent position; zero is dry.
	LiquidDepth float64

	// GroundClearance is the vertical distance to the supporting surface;
	// +Inf over a void.
	GroundClearance float64

	// OnTransport suppresses fall detection while the agent stands on a
	// moving platform the world vouches for.
	OnTransport bool

	// StuckSignal is the detector's OR-combined stuck condition.
	StuckSignal bool

	// RecoveryDone reports that a recovery action restored progress; only
	// meaningful while in Stuck.
	RecoveryDone bool
}

// Config carries the hysteresis bands and the breath budget. Enter thresholds
// must exceed their exit counterparts; the gap is the band that prevents
// oscillation at the boundary.
type Config struct {
	// SwimEnterDepth and SwimExitDepth bound the liquid hysteresis band.
	SwimEnterDepth float64
	SwimExitDepth  float64

	// FallEnterDrop and FallExitDrop bound the ground-support band.
	FallEnterDrop float64
	FallExitDrop  float64

	// SubmergeDepth is the depth past which the agent counts as
	// underwater and spends breath.
	SubmergeDepth float64

	// BreathTicks is the breath budget before the surface-for-air
	// sub-behavior engages.
	BreathTicks uint64
}

// Transition is the record of a single state change.
type Transition struct {
	From State
	To   State
	Tick uint64
}

type handler struct {
	enter func(m *Machine, in Input)
	exit  func(m *Machine, in Input)
	tick  func(m *Machine, in Input) State
}

// Machine holds the current state and per-state bookkeeping for one agent.
// Not safe for concurrent use; it lives on the world loop.
type Machine struct {
	cfg Config

	cur         State
	prev        State
	enteredTick uint64

	// Swimming bookkeeping.
	underwaterTicks uint64
	surfacing       bool

	handlers [stateCount]handler
	history  []Transition
}

func NewMachine(cfg Config) *Machine {
	m := &Machine{cfg: cfg, cur: Idle, prev: Idle}
	m.handlers = [stateCount]handler{
		Idle:     {tick: tickIdle},
		Ground:   {tick: tickGround},
		Swimming: {enter: enterSwimming, exit: exitSwimming, tick: tickSwimming},
		Falling:  {tick: tickFalling},
		Stuck:    {tick: tickStuck},
	}
	return m
}

func (m *Machine) State() State { return m.cur }

// Previous is the state before the current one; for Stuck it is the state
// recovery returns to.
func (m *Machine) Previous() State { return m.prev }

// Surfacing reports the active surface-for-air sub-behavior while Swimming.
func (m *Machine) Surfacing() bool { return m.cur == Swimming && m.surfacing }

// TicksIn is how long the machine has been in the current state.
func (m *Machine) TicksIn(nowTick uint64) uint64 {
	if nowTick < m.enteredTick {
		return 0
	}
	return nowTick - m.enteredTick
}

// History returns the recorded transitions, oldest first.
func (m *Machine) History() []Transition { return m.history }

// Step advances the machine one tick and returns the active state and whether
// a transition happened. The stuck signal preempts the per-state handler so
// any non-Stuck state can yield to Stuck; everything else is decided by the
// current state's tick func. At most one transition is applied.
func (m *Machine) Step(in Input) (State, bool) {
	next := m.cur
	if in.StuckSignal && m.cur != Stuck {
		next = Stuck
	} else if h := m.handlers[m.cur]; h.tick != nil {
		next = h.tick(m, in)
	}
	if next == m.cur {
		return m.cur, false
	}
	m.transition(next, in)
	return m.cur, true
}

func (m *Machine) transition(to State, in Input) {
	if h := m.handlers[m.cur]; h.exit != nil {
		h.exit(m, in)
	}
	m.prev = m.cur
	m.cur = to
	m.enteredTick = in.Tick
	m.history = append(m.history, Transition{From: m.prev, To: to, Tick: in.Tick})
	if h := m.handlers[to]; h.enter != nil {
		h.enter(m, in)
	}
}

func tickIdle(m *Machine, in Input) State {
	if !in.Moving {
		return Idle
	}
	// A move starting in deep liquid goes straight to Swimming.
	if in.LiquidDepth >= m.cfg.SwimEnterDepth {
		return Swimming
	}
	return Ground
}

func tickGround(m *Machine, in Input) State {
	if in.LiquidDepth >= m.cfg.SwimEnterDepth {
		return Swimming
	}
	if !in.OnTransport && in.LiquidDepth < m.cfg.SwimExitDepth && in.GroundClearance > m.cfg.FallEnterDrop {
		return Falling
	}
	if !in.Moving {
		return Idle
	}
	return Ground
}

func enterSwimming(m *Machine, in Input) {
	m.underwaterTicks = 0
	m.surfacing = false
}

func exitSwimming(m *Machine, in Input) {
	m.underwaterTicks = 0
	m.surfacing = false
}

func tickSwimming(m *Machine, in Input) State {
	if in.LiquidDepth <= m.cfg.SwimExitDepth {
		return Ground
	}
	// Breath accounting: submerged spends the budget, surfaced restores it.
	if in.LiquidDepth >= m.cfg.SubmergeDepth {
		m.underwaterTicks++
		if m.cfg.BreathTicks > 0 && m.underwaterTicks > m.cfg.BreathTicks {
			m.surfacing = true
		}
	} else {
		m.underwaterTicks = 0
		m.surfacing = false
	}
	return Swimming
}

func tickFalling(m *Machine, in Input) State {
	if in.LiquidDepth >= m.cfg.SwimEnterDepth {
		return Swimming
	}
	if in.GroundClearance <= m.cfg.FallExitDrop {
		return Ground
	}
	return Falling
}

func tickStuck(m *Machine, in Input) State {
	if !in.RecoveryDone {
		return Stuck
	}
	// Recovery succeeded: resume the pre-stuck state, or Idle when that
	// state no longer applies.
	switch m.prev {
	case Ground, Swimming, Falling:
		if in.Moving {
			return m.prev
		}
		return Idle
	default:
		return Idle
	}
}
