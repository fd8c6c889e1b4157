package geom

import "math"

// Cell is a horizontal grid coordinate. Vertical position is resolved by the
// terrain, so cells are 2D even though positions are 3D.
type Cell struct {
	X int
	Z int
}

// CellOf quantizes a position onto a grid of the given cell size.
func CellOf(p Vec3, size float64) Cell {
	if size <= 0 {
		size = 1
	}
	return Cell{
		X: int(math.Floor(p.X / size)),
		Z: int(math.Floor(p.Z / size)),
	}
}

// Center returns the world position at the middle of the cell, with Y zero.
func (c Cell) Center(size float64) Vec3 {
	if size <= 0 {
		size = 1
	}
	return Vec3{
		X: (float64(c.X) + 0.5) * size,
		Z: (float64(c.Z) + 0.5) * size,
	}
}

func AbsInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// ChebyshevDist is the board distance between two cells.
func ChebyshevDist(a, b Cell) int {
	dx := AbsInt(a.X - b.X)
	dz := AbsInt(a.Z - b.Z)
	if dx > dz {
		return dx
	}
	return dz
}
