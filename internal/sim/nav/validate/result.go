package validate

import "waymesh.ai/internal/sim/nav/geom"

// Reason classifies why a validation failed. ReasonNone means the check passed.
type Reason uint8

const (
	ReasonNone Reason = iota
	ReasonOutOfBounds
	ReasonNoGround
	ReasonCollision
	ReasonUnsafeTerrain
	ReasonLiquidBlocking
	ReasonPathGenFailed
	ReasonPathTooLong
	ReasonUnreachable
)

var reasonNames = [...]string{
	ReasonNone:           "ok",
	ReasonOutOfBounds:    "out_of_bounds",
	ReasonNoGround:       "no_ground",
	ReasonCollision:      "collision",
	ReasonUnsafeTerrain:  "unsafe_terrain",
	ReasonLiquidBlocking: "liquid_blocking",
	ReasonPathGenFailed:  "path_gen_failed",
	ReasonPathTooLong:    "path_too_long",
	ReasonUnreachable:    "unreachable",
}

func (r Reason) String() string {
	if int(r) < len(reasonNames) {
		return reasonNames[r]
	}
	return "unknown"
}

// Result is the outcome of a single validation stage. Results are values and
// never mutated after construction.
type Result struct {
	Valid   bool
	Reason  Reason
	Message string

	// Alternative is a nearby position that passes the same check, offered
	// when the rejected point was close to valid. Nil when no suggestion.
	Alternative *geom.Vec3
}

func OK() Result { return Result{Valid: true} }

func Fail(reason Reason, msg string) Result {
	return Result{Reason: reason, Message: msg}
}

func FailWithAlternative(reason Reason, msg string, alt geom.Vec3) Result {
	return Result{Reason: reason, Message: msg, Alternative: &alt}
}
