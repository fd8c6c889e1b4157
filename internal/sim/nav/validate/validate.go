package validate

import (
	"fmt"
	"math"

	"waymesh.ai/internal/sim/nav/geom"
)

// Position checks only that the point lies inside the world.
func Position(t Terrain, p geom.Vec3) Result {
	if !t.InBounds(p) {
		return Fail(ReasonOutOfBounds, fmt.Sprintf("position (%.1f,%.1f,%.1f) outside world bounds", p.X, p.Y, p.Z))
	}
	return OK()
}

// Ground checks that p has a supporting surface within tolerance. Points
// floating slightly above or below the surface are rejected with a snapped
// alternative; points over a drop larger than the cliff threshold are
// rejected as unsafe, and points over a void are rejected with no suggestion.
func Ground(t Terrain, p geom.Vec3, tol Tolerances) Result {
	if res := Position(t, p); !res.Valid {
		return res
	}
	surf, ok := t.SurfaceY(p.X, p.Z)
	if !ok {
		return Fail(ReasonNoGround, "no supporting surface under point")
	}
	dy := p.Y - surf
	if dy < -tol.GroundSnap {
		// Point is buried under the surface.
		return Fail(ReasonUnsafeTerrain, fmt.Sprintf("point %.2f below surface", -dy))
	}
	if dy <= tol.GroundSnap {
		return OK()
	}
	if dy > tol.CliffDrop {
		return Fail(ReasonUnsafeTerrain, fmt.Sprintf("drop of %.2f exceeds cliff threshold", dy))
	}
	// Close enough to suggest standing on the surface instead.
	alt := geom.Vec3{X: p.X, Y: surf, Z: p.Z}
	return FailWithAlternative(ReasonNoGround, fmt.Sprintf("point floats %.2f above surface", dy), alt)
}

// Segment tests the straight line a->b against static geometry.
func Segment(t Terrain, a, b geom.Vec3) Result {
	if hit, blocked := t.SegmentBlocked(a, b); blocked {
		return Fail(ReasonCollision, fmt.Sprintf("segment blocked at (%.1f,%.1f,%.1f)", hit.X, hit.Y, hit.Z))
	}
	return OK()
}

// Liquid classifies the point by liquid depth.
func Liquid(t Terrain, p geom.Vec3, tol Tolerances) LiquidClass {
	depth := t.LiquidDepth(p.X, p.Z)
	switch {
	case depth <= 0:
		return LiquidNone
	case depth < tol.SwimDepth:
		return LiquidShallow
	default:
		return LiquidSwim
	}
}

// Waypoints validates every waypoint's ground support and every consecutive
// segment of a polyline. The index of the first offending waypoint or
// segment start is reported in the message.
func Waypoints(t Terrain, pts []geom.Vec3, tol Tolerances) Result {
	for i, p := range pts {
		// Waypoints standing in swimmable liquid have no ground to
		// validate; the state machine handles them as swim legs.
		if Liquid(t, p, tol) == LiquidSwim {
			continue
		}
		if res := Ground(t, p, tol); !res.Valid {
			res.Message = fmt.Sprintf("waypoint %d: %s", i, res.Message)
			return res
		}
	}
	for i := 1; i < len(pts); i++ {
		if res := Segment(t, pts[i-1], pts[i]); !res.Valid {
			res.Message = fmt.Sprintf("segment %d: %s", i-1, res.Message)
			return res
		}
	}
	return OK()
}

// SnapToSurface drops p onto the walkable surface under it, if any.
func SnapToSurface(t Terrain, p geom.Vec3) (geom.Vec3, bool) {
	surf, ok := t.SurfaceY(p.X, p.Z)
	if !ok {
		return geom.Vec3{}, false
	}
	return geom.Vec3{X: p.X, Y: surf, Z: p.Z}, true
}

// GroundClearance is the vertical distance from p down to its supporting
// surface; +Inf when there is none.
func GroundClearance(t Terrain, p geom.Vec3) float64 {
	surf, ok := t.SurfaceY(p.X, p.Z)
	if !ok {
		return math.Inf(1)
	}
	d := p.Y - surf
	if d < 0 {
		return 0
	}
	return d
}
