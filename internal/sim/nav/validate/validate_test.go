package validate

import (
	"math"
	"testing"

	"waymesh.ai/internal/sim/nav/geom"
)

// flatTerrain is a flat world at y=0 with optional holes, walls, and pools.
type flatTerrain struct {
	bound  float64
	holes  map[geom.Cell]bool
	walls  map[geom.Cell]bool
	liquid map[geom.Cell]float64
}

func newFlatTerrain(bound float64) *flatTerrain {
	return &flatTerrain{
		bound:  bound,
		holes:  map[geom.Cell]bool{},
		walls:  map[geom.Cell]bool{},
		liquid: map[geom.Cell]float64{},
	}
}

func (f *flatTerrain) InBounds(p geom.Vec3) bool {
	return math.Abs(p.X) <= f.bound && math.Abs(p.Z) <= f.bound
}

func (f *flatTerrain) SurfaceY(x, z float64) (float64, bool) {
	if f.holes[geom.CellOf(geom.Vec3{X: x, Z: z}, 1)] {
		return 0, false
	}
	return 0, true
}

func (f *flatTerrain) SegmentBlocked(a, b geom.Vec3) (geom.Vec3, bool) {
	steps := int(geom.Dist(a, b)*4) + 1
	for i := 0; i <= steps; i++ {
		p := geom.Lerp(a, b, float64(i)/float64(steps))
		if f.walls[geom.CellOf(p, 1)] {
			return p, true
		}
	}
	return geom.Vec3{}, false
}

func (f *flatTerrain) LiquidDepth(x, z float64) float64 {
	return f.liquid[geom.CellOf(geom.Vec3{X: x, Z: z}, 1)]
}

var testTol = Tolerances{GroundSnap: 0.5, CliffDrop: 3.0, SwimDepth: 1.2}

func TestGroundAcceptsSupportedPoint(t *testing.T) {
	ter := newFlatTerrain(100)
	if res := Ground(ter, geom.Vec3{X: 5, Y: 0.2, Z: 5}, testTol); !res.Valid {
		t.Fatalf("supported point rejected: %s", res.Message)
	}
}

func TestGroundRejectsVoidWithNoGround(t *testing.T) {
	ter := newFlatTerrain(100)
	ter.holes[geom.Cell{X: 5, Z: 5}] = true
	res := Ground(ter, geom.Vec3{X: 5.5, Y: 0, Z: 5.5}, testTol)
	if res.Valid || res.Reason != ReasonNoGround {
		t.Fatalf("got %+v want NoGround failure", res)
	}
	if res.Alternative != nil {
		t.Fatalf("void should not offer an alternative, got %+v", res.Alternative)
	}
}

func TestGroundSuggestedAlternativePassesGround(t *testing.T) {
	ter := newFlatTerrain(100)
	res := Ground(ter, geom.Vec3{X: 2, Y: 1.5, Z: 2}, testTol)
	if res.Valid {
		t.Fatalf("floating point accepted")
	}
	if res.Alternative == nil {
		t.Fatalf("expected snapped alternative")
	}
	if alt := Ground(ter, *res.Alternative, testTol); !alt.Valid {
		t.Fatalf("suggested alternative fails ground validation: %s", alt.Message)
	}
}

func TestGroundRejectsCliffDrop(t *testing.T) {
	ter := newFlatTerrain(100)
	res := Ground(ter, geom.Vec3{X: 2, Y: 5, Z: 2}, testTol)
	if res.Valid || res.Reason != ReasonUnsafeTerrain {
		t.Fatalf("got %+v want UnsafeTerrain", res)
	}
}

func TestPositionOutOfBounds(t *testing.T) {
	ter := newFlatTerrain(10)
	res := Position(ter, geom.Vec3{X: 50, Z: 0})
	if res.Valid || res.Reason != ReasonOutOfBounds {
		t.Fatalf("got %+v want OutOfBounds", res)
	}
}

func TestSegmentBlockedByWall(t *testing.T) {
	ter := newFlatTerrain(100)
	ter.walls[geom.Cell{X: 5, Z: 0}] = true
	res := Segment(ter, geom.Vec3{X: 0.5, Z: 0.5}, geom.Vec3{X: 9.5, Z: 0.5})
	if res.Valid || res.Reason != ReasonCollision {
		t.Fatalf("got %+v want Collision", res)
	}
	if clear := Segment(ter, geom.Vec3{X: 0.5, Z: 3.5}, geom.Vec3{X: 9.5, Z: 3.5}); !clear.Valid {
		t.Fatalf("clear segment rejected: %s", clear.Message)
	}
}

func TestLiquidClassification(t *testing.T) {
	ter := newFlatTerrain(100)
	ter.liquid[geom.Cell{X: 1, Z: 0}] = 0.4
	ter.liquid[geom.Cell{X: 2, Z: 0}] = 2.0
	if got := Liquid(ter, geom.Vec3{X: 0.5, Z: 0.5}, testTol); got != LiquidNone {
		t.Fatalf("dry cell classified %v", got)
	}
	if got := Liquid(ter, geom.Vec3{X: 1.5, Z: 0.5}, testTol); got != LiquidShallow {
		t.Fatalf("shallow cell classified %v", got)
	}
	if got := Liquid(ter, geom.Vec3{X: 2.5, Z: 0.5}, testTol); got != LiquidSwim {
		t.Fatalf("deep cell classified %v", got)
	}
}

func TestLiquidTransitionsAlongPath(t *testing.T) {
	ter := newFlatTerrain(100)
	for x := 3; x <= 5; x++ {
		ter.liquid[geom.Cell{X: x, Z: 0}] = 2.0
	}
	pts := make([]geom.Vec3, 0, 8)
	for x := 0; x < 8; x++ {
		pts = append(pts, geom.Vec3{X: float64(x) + 0.5, Z: 0.5})
	}
	trs := LiquidTransitions(ter, pts, testTol)
	if len(trs) != 2 {
		t.Fatalf("transitions=%+v want 2", trs)
	}
	if trs[0].Index != 3 || trs[0].To != LiquidSwim {
		t.Fatalf("enter transition=%+v", trs[0])
	}
	if trs[1].Index != 6 || trs[1].To != LiquidNone {
		t.Fatalf("exit transition=%+v", trs[1])
	}
	if !CrossesSwimmable(ter, pts, testTol) {
		t.Fatalf("path should cross swimmable liquid")
	}
}

func TestWaypointsReportsFirstOffender(t *testing.T) {
	ter := newFlatTerrain(100)
	ter.walls[geom.Cell{X: 4, Z: 0}] = true
	pts := []geom.Vec3{{X: 0.5, Z: 0.5}, {X: 2.5, Z: 0.5}, {X: 6.5, Z: 0.5}}
	res := Waypoints(ter, pts, testTol)
	if res.Valid || res.Reason != ReasonCollision {
		t.Fatalf("got %+v want Collision", res)
	}
}

func TestWaypointsSkipsGroundCheckInSwimLeg(t *testing.T) {
	ter := newFlatTerrain(100)
	ter.liquid[geom.Cell{X: 2, Z: 0}] = 2.0
	pts := []geom.Vec3{{X: 0.5, Z: 0.5}, {X: 2.5, Y: 2.0, Z: 0.5}, {X: 4.5, Z: 0.5}}
	if res := Waypoints(ter, pts, testTol); !res.Valid {
		t.Fatalf("swim leg rejected: %s", res.Message)
	}
}

func TestGroundClearance(t *testing.T) {
	ter := newFlatTerrain(100)
	if got := GroundClearance(ter, geom.Vec3{X: 0, Y: 2.5, Z: 0}); got != 2.5 {
		t.Fatalf("clearance=%v want 2.5", got)
	}
	ter.holes[geom.Cell{X: 0, Z: 0}] = true
	if got := GroundClearance(ter, geom.Vec3{X: 0.5, Y: 2.5, Z: 0.5}); !math.IsInf(got, 1) {
		t.Fatalf("clearance over void=%v want +Inf", got)
	}
}
