// Package path wraps the external path engine with staged validation,
// smoothing, and caching. Callers must treat any failed request as "do not
// move"; the pipeline never returns a partially validated route as valid.
package path

import (
	"strings"

	"waymesh.ai/internal/sim/nav/geom"
	"waymesh.ai/internal/sim/nav/validate"
)

// Strictness trades validation rigor against legacy compatibility.
type Strictness uint8

const (
	// StrictnessNone bypasses validation entirely; engine output and
	// direct lines are taken verbatim.
	StrictnessNone Strictness = iota
	// StrictnessBasic validates segments only and allows a direct-line
	// fallback whenever it is collision-free.
	StrictnessBasic
	// StrictnessStandard validates waypoints and segments and allows a
	// direct fallback only when the full line validates.
	StrictnessStandard
	// StrictnessStrict validates everything and never falls back.
	StrictnessStrict
)

func (s Strictness) String() string {
	switch s {
	case StrictnessNone:
		return "none"
	case StrictnessBasic:
		return "basic"
	case StrictnessStrict:
		return "strict"
	default:
		return "standard"
	}
}

// ParseStrictness maps a config string onto a level; unknown values get
// Standard.
func ParseStrictness(s string) Strictness {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none":
		return StrictnessNone
	case "basic":
		return StrictnessBasic
	case "strict":
		return StrictnessStrict
	default:
		return StrictnessStandard
	}
}

// Type tags the provenance of a validated path.
type Type uint8

const (
	TypeNone Type = iota
	TypeDirect
	TypeNavmesh
	TypePartial
)

func (t Type) String() string {
	switch t {
	case TypeDirect:
		return "direct"
	case TypeNavmesh:
		return "navmesh"
	case TypePartial:
		return "partial"
	default:
		return "none"
	}
}

// ValidatedPath is the pipeline's product for one request. It is owned by the
// requesting controller and read-only after construction.
type ValidatedPath struct {
	Waypoints   []geom.Vec3
	Type        Type
	Transitions []validate.Transition
	Cost        float64
	Cached      bool

	// Destination is the endpoint actually routed to, which may differ
	// from the requested one when an alternative was substituted.
	Destination geom.Vec3
}

// End returns the final waypoint.
func (p ValidatedPath) End() (geom.Vec3, bool) {
	if len(p.Waypoints) == 0 {
		return geom.Vec3{}, false
	}
	return p.Waypoints[len(p.Waypoints)-1], true
}
