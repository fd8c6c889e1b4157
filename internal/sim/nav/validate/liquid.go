package validate

import "waymesh.ai/internal/sim/nav/geom"

// liquidSampleStep is the spacing at which segments are probed for
// classification changes, so boundaries between waypoints are not missed.
const liquidSampleStep = 0.5

// Transition marks where the liquid classification changes along a polyline.
// The state machine uses these to pre-stage swim transitions before the agent
// reaches the boundary.
type Transition struct {
	// Index is the polyline index of the segment end at or before which
	// the change occurs (0 is the first polyline point).
	Index int
	// Pos is the first sampled point carrying the new classification.
	Pos  geom.Vec3
	From LiquidClass
	To   LiquidClass
}

// LiquidTransitions scans a polyline, sampling each segment, and returns all
// classification changes in traversal order.
func LiquidTransitions(t Terrain, pts []geom.Vec3, tol Tolerances) []Transition {
	if len(pts) < 2 {
		return nil
	}
	var out []Transition
	prev := Liquid(t, pts[0], tol)
	for i := 1; i < len(pts); i++ {
		a, b := pts[i-1], pts[i]
		steps := int(geom.Dist(a, b)/liquidSampleStep) + 1
		for s := 1; s <= steps; s++ {
			p := geom.Lerp(a, b, float64(s)/float64(steps))
			cur := Liquid(t, p, tol)
			if cur != prev {
				out = append(out, Transition{Index: i, Pos: p, From: prev, To: cur})
				prev = cur
			}
		}
	}
	return out
}

// CrossesSwimmable reports whether any sampled point of the polyline is
// swimmable.
func CrossesSwimmable(t Terrain, pts []geom.Vec3, tol Tolerances) bool {
	if len(pts) == 0 {
		return false
	}
	if Liquid(t, pts[0], tol) == LiquidSwim {
		return true
	}
	for _, tr := range LiquidTransitions(t, pts, tol) {
		if tr.To == LiquidSwim {
			return true
		}
	}
	return false
}
