package world

import "waymesh.ai/internal/sim/nav/geom"

// TickLogEntry is the per-tick movement record appended to the event log.
// One entry per agent that moved, changed state, or produced an event.
type TickLogEntry struct {
	Tick    uint64        `json:"tick"`
	AgentID string        `json:"agent_id"`
	Pos     [3]float64    `json:"pos"`
	State   string        `json:"state"`
	Events  []TickEvent   `json:"events,omitempty"`
	Route   *RouteSummary `json:"route,omitempty"`
}

type TickEvent struct {
	Type   string `json:"type"`
	Detail string `json:"detail,omitempty"`
}

// RouteSummary is the compact view of an active path for the tick log.
type RouteSummary struct {
	Dest      [3]float64 `json:"dest"`
	Waypoints int        `json:"waypoints"`
	Index     int        `json:"index"`
	Kind      string     `json:"kind"`
	Cached    bool       `json:"cached"`
}

// AuditEntry records an accepted or rejected command plus stuck episodes,
// for the audit trail and the off-thread index.
type AuditEntry struct {
	Tick     uint64     `json:"tick"`
	AgentID  string     `json:"agent_id"`
	Action   string     `json:"action"`
	Target   [3]float64 `json:"target,omitempty"`
	Accepted bool       `json:"accepted"`
	Reason   string     `json:"reason,omitempty"`
	Level    int        `json:"level,omitempty"`
	Strategy string     `json:"strategy,omitempty"`
}

// TickLogger and AuditLogger are implemented by internal/persistence/log.
// The world never blocks on them; write errors are logged and dropped.
type TickLogger interface {
	WriteTick(TickLogEntry) error
}

type AuditLogger interface {
	WriteAudit(AuditEntry) error
}

// IndexWriter receives tick summaries and stuck episodes for the sqlite
// index. Implementations must not block the caller.
type IndexWriter interface {
	EnqueueTick(tick uint64, agents int, moving int)
	EnqueueStuck(tick uint64, agentID string, kind string, level int, strategy string, resolved bool)
}

func vec3Arr(v geom.Vec3) [3]float64 { return [3]float64{v.X, v.Y, v.Z} }
