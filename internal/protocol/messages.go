package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	AgentName       string      `json:"agent_name"`
	MaxQueue        int         `json:"max_queue,omitempty"`
	Spawn           *[3]float64 `json:"spawn,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	AgentID         string     `json:"agent_id"`
	Pos             [3]float64 `json:"pos"`
	TickRateHz      int        `json:"tick_rate_hz"`
	WorldID         string     `json:"world_id"`
}

// ACT (client -> server): one request against the agent's navigator.
type ActMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	AgentID         string  `json:"agent_id"`
	RequestID       string  `json:"request_id,omitempty"`
	Act             ActBody `json:"act"`
}

// Act kinds.
const (
	ActMove    = "MOVE_TO"
	ActCancel  = "CANCEL"
	ActRecover = "RECOVER"
	ActQuery   = "QUERY"
	ActBypass  = "SET_BYPASS"
)

type ActBody struct {
	Kind string `json:"kind"`

	// MOVE_TO
	Target [3]float64 `json:"target,omitempty"`
	Force  bool       `json:"force,omitempty"`

	// SET_BYPASS: per-agent legacy mode, explicit opt-in only.
	Bypass bool `json:"bypass,omitempty"`
}

// Event is a loosely-typed server -> client notification, one JSON object per
// tick event. Keys always include "t" (tick) and "type".
type Event map[string]any

// Event types emitted by the world.
const (
	EvMoveAccepted = "MOVE_ACCEPTED"
	EvMoveRejected = "MOVE_REJECTED"
	EvMoveDone     = "MOVE_DONE"
	EvStateChange  = "STATE_CHANGE"
	EvStuck        = "STUCK"
	EvRecovery     = "RECOVERY"
	EvReset        = "RESET"
)
