package validate

import "waymesh.ai/internal/sim/nav/geom"

// LiquidClass is the liquid classification at a point.
type LiquidClass uint8

const (
	LiquidNone LiquidClass = iota
	LiquidShallow
	LiquidSwim
)

func (c LiquidClass) String() string {
	switch c {
	case LiquidShallow:
		return "shallow"
	case LiquidSwim:
		return "swim"
	default:
		return "dry"
	}
}

// Terrain is the world-truth query surface the validators run against.
// Implementations must be safe to call from the world loop every tick.
type Terrain interface {
	// InBounds reports whether the point lies inside the playable region.
	InBounds(p geom.Vec3) bool

	// SurfaceY returns the walkable surface height under (x,z), or false
	// when no supporting surface exists there (void, hole).
	SurfaceY(x, z float64) (float64, bool)

	// SegmentBlocked tests the straight segment a->b against static
	// geometry. When blocked it returns the first hit point.
	SegmentBlocked(a, b geom.Vec3) (geom.Vec3, bool)

	// LiquidDepth returns the liquid depth above the surface at (x,z);
	// zero means dry.
	LiquidDepth(x, z float64) float64
}

// Tolerances are the environment-specific thresholds for ground checks.
// There is no principled derivation for these; they are tuned per world.
type Tolerances struct {
	// GroundSnap is the max vertical distance between a point and the
	// surface for the point to count as supported (and be snappable).
	GroundSnap float64

	// CliffDrop is the max drop below the point before the terrain is
	// considered unsafe rather than merely unsupported.
	CliffDrop float64

	// SwimDepth is the liquid depth at which a point becomes swimmable;
	// anything shallower but wet is LiquidShallow.
	SwimDepth float64
}
