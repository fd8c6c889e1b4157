package world

import (
	"waymesh.ai/internal/sim/nav/geom"
	"waymesh.ai/internal/sim/nav/state"
)

// Agent is the world-side record for one connected agent. All fields are
// owned by the world loop.
type Agent struct {
	ID    string
	Name  string
	Pos   geom.Vec3
	Alive bool

	// Bypass disables path validation for this agent (admin/debug).
	Bypass bool

	SpawnPos geom.Vec3
	Anchor   geom.Vec3

	nav *navigator

	// outbound events drained at end of tick
	events []Event
}

// Event is one outbound notification for an agent's client.
type Event struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

func (a *Agent) pushEvent(typ string, data map[string]any) {
	a.events = append(a.events, Event{Type: typ, Data: data})
}

func (a *Agent) drainEvents() []Event {
	if len(a.events) == 0 {
		return nil
	}
	evs := a.events
	a.events = nil
	return evs
}

// MoveState reports the agent's current movement state.
func (a *Agent) MoveState() state.State { return a.nav.machine.State() }
