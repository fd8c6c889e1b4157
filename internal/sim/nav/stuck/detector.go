// Package stuck watches an agent's position and path progress and raises a
// stuck condition from three independent signals: position stagnation,
// waypoint stagnation, and repeated path failures. Windows are measured in
// ticks, not wall clock, so detection stays deterministic under variable tick
// rates.
package stuck

import "waymesh.ai/internal/sim/nav/geom"

// Type classifies what kind of stuck condition was raised.
type Type uint8

const (
	None Type = iota
	// Position: no net displacement inside the sampling window.
	Position
	// Geometry: the waypoint index stopped advancing while moving, which
	// in practice means wedged against level geometry.
	Geometry
	// PathFailure: consecutive path generation or validation failures.
	PathFailure
	// Unreachable: the destination itself keeps failing validation.
	Unreachable
)

var typeNames = [...]string{
	None:        "none",
	Position:    "position",
	Geometry:    "geometry",
	PathFailure: "path_failure",
	Unreachable: "unreachable",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "unknown"
}

// Snapshot is one observation in the bounded history ring.
type Snapshot struct {
	Pos      geom.Vec3
	Tick     uint64
	Waypoint int
	// WaypointDist is the remaining distance to the waypoint being
	// followed; routes smoothed down to a single waypoint still show
	// progress through it.
	WaypointDist float64
}

// Config holds the detection thresholds.
type Config struct {
	// WindowTicks is the position-stagnation window.
	WindowTicks uint64
	// MinMove is the net displacement below which the agent counts as not
	// having moved within the window.
	MinMove float64
	// ProgressWindowTicks is the waypoint-stagnation window.
	ProgressWindowTicks uint64
	// MaxFailures raises PathFailure after this many consecutive failures.
	MaxFailures int
	// HistoryCap bounds the snapshot ring. With one observation per tick
	// it must exceed the widest window or that signal never fires.
	HistoryCap int
}

// Detector tracks one agent. Not safe for concurrent use; it lives on the
// world loop next to the agent it watches.
type Detector struct {
	cfg Config

	ring []Snapshot
	head int
	size int

	failures    int
	failureType Type

	stuck     bool
	stuckType Type
	sinceTick uint64
	attempts  int
}

func NewDetector(cfg Config) *Detector {
	if cfg.HistoryCap <= 0 {
		cfg.HistoryCap = 128
	}
	if w := cfg.WindowTicks; w > 0 && uint64(cfg.HistoryCap) <= w {
		cfg.HistoryCap = int(w) + 1
	}
	if w := cfg.ProgressWindowTicks; w > 0 && uint64(cfg.HistoryCap) <= w {
		cfg.HistoryCap = int(w) + 1
	}
	return &Detector{cfg: cfg, ring: make([]Snapshot, cfg.HistoryCap)}
}

// Observe records the agent's position for this tick and re-evaluates the
// position and progress signals. moving must be true only while a movement
// task is active; an idle agent is never stuck.
func (d *Detector) Observe(pos geom.Vec3, tick uint64, waypoint int, waypointDist float64, moving bool) {
	if d.size > 0 {
		if last := d.ring[(d.head+d.size-1)%len(d.ring)]; tick <= last.Tick {
			return // history is strictly monotonic in tick
		}
	}
	d.push(Snapshot{Pos: pos, Tick: tick, Waypoint: waypoint, WaypointDist: waypointDist})
	if !moving {
		return
	}
	if d.stuck {
		return
	}
	if t := d.evaluate(tick); t != None {
		d.raise(t, tick)
	}
}

// RecordFailure feeds the failure-based signal. unreachable marks failures of
// the destination itself rather than the route.
func (d *Detector) RecordFailure(tick uint64, unreachable bool) {
	d.failures++
	if unreachable {
		d.failureType = Unreachable
	} else if d.failureType == None {
		d.failureType = PathFailure
	}
	if d.stuck || d.cfg.MaxFailures <= 0 || d.failures < d.cfg.MaxFailures {
		return
	}
	d.raise(d.failureType, tick)
}

// RecordSuccess clears the consecutive-failure counter.
func (d *Detector) RecordSuccess() {
	d.failures = 0
	d.failureType = None
}

// RecordAttempt counts a recovery attempt within the current episode.
func (d *Detector) RecordAttempt() {
	if d.stuck {
		d.attempts++
	}
}

func (d *Detector) IsStuck() bool { return d.stuck }

func (d *Detector) StuckType() Type {
	if !d.stuck {
		return None
	}
	return d.stuckType
}

// Duration is the tick span of the current stuck episode.
func (d *Detector) Duration(nowTick uint64) uint64 {
	if !d.stuck || nowTick < d.sinceTick {
		return 0
	}
	return nowTick - d.sinceTick
}

// Attempts is the recovery attempt count of the current episode.
func (d *Detector) Attempts() int { return d.attempts }

// Reset clears the episode and all signals; called on any successful movement
// start or explicit clear.
func (d *Detector) Reset() {
	d.stuck = false
	d.stuckType = None
	d.sinceTick = 0
	d.attempts = 0
	d.failures = 0
	d.failureType = None
	d.head = 0
	d.size = 0
}

// History returns the retained snapshots, oldest first.
func (d *Detector) History() []Snapshot {
	out := make([]Snapshot, 0, d.size)
	for i := 0; i < d.size; i++ {
		out = append(out, d.ring[(d.head+i)%len(d.ring)])
	}
	return out
}

// LastGood returns the most recent snapshot at least minAge ticks old,
// used by recovery to relocate to an aged known-good position.
func (d *Detector) LastGood(nowTick, minAge uint64) (Snapshot, bool) {
	for i := d.size - 1; i >= 0; i-- {
		s := d.ring[(d.head+i)%len(d.ring)]
		if nowTick-s.Tick >= minAge {
			return s, true
		}
	}
	return Snapshot{}, false
}

func (d *Detector) push(s Snapshot) {
	if d.size < len(d.ring) {
		d.ring[(d.head+d.size)%len(d.ring)] = s
		d.size++
		return
	}
	d.ring[d.head] = s
	d.head = (d.head + 1) % len(d.ring)
}

func (d *Detector) raise(t Type, tick uint64) {
	d.stuck = true
	d.stuckType = t
	d.sinceTick = tick
	d.attempts = 0
}

// evaluate checks the position and progress windows against history.
func (d *Detector) evaluate(nowTick uint64) Type {
	latest := d.ring[(d.head+d.size-1)%len(d.ring)]

	if d.cfg.WindowTicks > 0 {
		if ref, ok := d.at(nowTick, d.cfg.WindowTicks); ok {
			if geom.Dist(latest.Pos, ref.Pos) < d.cfg.MinMove {
				return Position
			}
		}
	}
	if d.cfg.ProgressWindowTicks > 0 {
		if ref, ok := d.at(nowTick, d.cfg.ProgressWindowTicks); ok {
			// Stagnant when the index has not advanced and the agent
			// is no closer to the waypoint it is on.
			if latest.Waypoint <= ref.Waypoint &&
				latest.WaypointDist > ref.WaypointDist-d.cfg.MinMove {
				return Geometry
			}
		}
	}
	return None
}

// at finds the newest snapshot at least window ticks older than now.
func (d *Detector) at(nowTick, window uint64) (Snapshot, bool) {
	for i := d.size - 1; i >= 0; i-- {
		s := d.ring[(d.head+i)%len(d.ring)]
		if nowTick-s.Tick >= window {
			return s, true
		}
	}
	return Snapshot{}, false
}
