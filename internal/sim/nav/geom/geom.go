package geom

import "math"

// Vec3 is a continuous world position. Y is up.
type Vec3 struct {
	X float64
	Y float64
	Z float64
}

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }

func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

func (v Vec3) Scale(s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }

func (v Vec3) Len() float64 { return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z) }

// LenXZ ignores the vertical component.
func (v Vec3) LenXZ() float64 { return math.Hypot(v.X, v.Z) }

func Dist(a, b Vec3) float64 { return a.Sub(b).Len() }

func DistXZ(a, b Vec3) float64 { return a.Sub(b).LenXZ() }

// Lerp interpolates linearly between a and b; t is clamped to [0,1].
func Lerp(a, b Vec3, t float64) Vec3 {
	if t <= 0 {
		return a
	}
	if t >= 1 {
		return b
	}
	return a.Add(b.Sub(a).Scale(t))
}

// StepToward moves from a toward b by at most maxStep, without overshooting.
func StepToward(a, b Vec3, maxStep float64) Vec3 {
	d := Dist(a, b)
	if d <= maxStep || d == 0 {
		return b
	}
	return a.Add(b.Sub(a).Scale(maxStep / d))
}

// PathLength sums the segment lengths of a polyline.
func PathLength(pts []Vec3) float64 {
	total := 0.0
	for i := 1; i < len(pts); i++ {
		total += Dist(pts[i-1], pts[i])
	}
	return total
}
