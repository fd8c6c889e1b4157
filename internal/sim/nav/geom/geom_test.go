package geom

import (
	"math"
	"testing"
)

func TestStepTowardDoesNotOvershoot(t *testing.T) {
	a := Vec3{X: 0, Y: 0, Z: 0}
	b := Vec3{X: 10, Y: 0, Z: 0}
	got := StepToward(a, b, 4)
	if got != (Vec3{X: 4}) {
		t.Fatalf("step=%+v want {4 0 0}", got)
	}
	if got := StepToward(a, b, 100); got != b {
		t.Fatalf("step=%+v want target", got)
	}
	if got := StepToward(b, b, 1); got != b {
		t.Fatalf("zero-distance step=%+v want target", got)
	}
}

func TestLerpClamps(t *testing.T) {
	a := Vec3{X: 1}
	b := Vec3{X: 3}
	if got := Lerp(a, b, -0.5); got != a {
		t.Fatalf("t<0 got %+v", got)
	}
	if got := Lerp(a, b, 1.5); got != b {
		t.Fatalf("t>1 got %+v", got)
	}
	if got := Lerp(a, b, 0.5); got != (Vec3{X: 2}) {
		t.Fatalf("t=0.5 got %+v", got)
	}
}

func TestPathLength(t *testing.T) {
	pts := []Vec3{{X: 0}, {X: 3}, {X: 3, Z: 4}}
	if got := PathLength(pts); math.Abs(got-7) > 1e-9 {
		t.Fatalf("length=%v want 7", got)
	}
	if got := PathLength(nil); got != 0 {
		t.Fatalf("empty length=%v", got)
	}
}

func TestCellOfNegativeCoords(t *testing.T) {
	c := CellOf(Vec3{X: -0.5, Z: -3.2}, 1)
	if c != (Cell{X: -1, Z: -4}) {
		t.Fatalf("cell=%+v want {-1 -4}", c)
	}
}

func TestCellCenterRoundTrips(t *testing.T) {
	c := Cell{X: 3, Z: -2}
	p := c.Center(2)
	if CellOf(p, 2) != c {
		t.Fatalf("center %+v quantized to %+v", p, CellOf(p, 2))
	}
}

func TestChebyshevDist(t *testing.T) {
	if got := ChebyshevDist(Cell{0, 0}, Cell{3, -5}); got != 5 {
		t.Fatalf("dist=%d want 5", got)
	}
}
