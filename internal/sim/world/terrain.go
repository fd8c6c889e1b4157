package world

import (
	"waymesh.ai/internal/sim/nav/geom"
)

// terrainMap is the built-in world-truth provider: a heightmap of columns
// with solid (impassable) cells, holes (no surface), and liquid pools. It
// implements validate.Terrain for the validators and the WalkMap view for the
// grid engine.
type terrainMap struct {
	cols, rows int
	cellSize   float64

	height []float64
	solid  []bool
	hole   []bool
	liquid []float64

	// onEdit fires after any mutation; the world hangs cache invalidation
	// here so routes computed against the old geometry cannot be served.
	onEdit func()
}

func newTerrainMap(cols, rows int, cellSize float64) *terrainMap {
	if cols <= 0 {
		cols = 1
	}
	if rows <= 0 {
		rows = 1
	}
	if cellSize <= 0 {
		cellSize = 1
	}
	n := cols * rows
	return &terrainMap{
		cols:     cols,
		rows:     rows,
		cellSize: cellSize,
		height:   make([]float64, n),
		solid:    make([]bool, n),
		hole:     make([]bool, n),
		liquid:   make([]float64, n),
	}
}

func (t *terrainMap) inGrid(c geom.Cell) bool {
	return c.X >= 0 && c.Z >= 0 && c.X < t.cols && c.Z < t.rows
}

func (t *terrainMap) idx(c geom.Cell) int { return c.Z*t.cols + c.X }

func (t *terrainMap) cellAt(x, z float64) (geom.Cell, bool) {
	c := geom.CellOf(geom.Vec3{X: x, Z: z}, t.cellSize)
	return c, t.inGrid(c)
}

// Mutators, used by tests and by the procedural generator.

func (t *terrainMap) edited() {
	if t.onEdit != nil {
		t.onEdit()
	}
}

func (t *terrainMap) SetHeight(c geom.Cell, h float64) {
	if t.inGrid(c) {
		t.height[t.idx(c)] = h
		t.edited()
	}
}

func (t *terrainMap) SetWall(c geom.Cell) {
	if t.inGrid(c) {
		t.solid[t.idx(c)] = true
		t.edited()
	}
}

func (t *terrainMap) ClearWall(c geom.Cell) {
	if t.inGrid(c) {
		t.solid[t.idx(c)] = false
		t.edited()
	}
}

func (t *terrainMap) SetHole(c geom.Cell) {
	if t.inGrid(c) {
		t.hole[t.idx(c)] = true
		t.edited()
	}
}

func (t *terrainMap) SetLiquid(c geom.Cell, depth float64) {
	if t.inGrid(c) {
		t.liquid[t.idx(c)] = depth
		t.edited()
	}
}

// validate.Terrain implementation.

func (t *terrainMap) InBounds(p geom.Vec3) bool {
	_, ok := t.cellAt(p.X, p.Z)
	return ok
}

func (t *terrainMap) SurfaceY(x, z float64) (float64, bool) {
	c, ok := t.cellAt(x, z)
	if !ok {
		return 0, false
	}
	i := t.idx(c)
	if t.hole[i] || t.solid[i] {
		return 0, false
	}
	return t.height[i], true
}

func (t *terrainMap) SegmentBlocked(a, b geom.Vec3) (geom.Vec3, bool) {
	step := t.cellSize / 4
	steps := int(geom.Dist(a, b)/step) + 1
	for i := 0; i <= steps; i++ {
		p := geom.Lerp(a, b, float64(i)/float64(steps))
		c, ok := t.cellAt(p.X, p.Z)
		if !ok {
			return p, true
		}
		if t.solid[t.idx(c)] {
			return p, true
		}
	}
	return geom.Vec3{}, false
}

func (t *terrainMap) LiquidDepth(x, z float64) float64 {
	c, ok := t.cellAt(x, z)
	if !ok {
		return 0
	}
	return t.liquid[t.idx(c)]
}

// WalkMap view for the grid engine.

type walkView struct{ t *terrainMap }

func (w walkView) Walkable(c geom.Cell) bool {
	if !w.t.inGrid(c) {
		return false
	}
	i := w.t.idx(c)
	return !w.t.solid[i] && !w.t.hole[i]
}

// FloorY returns the travel height for a cell: the water surface over liquid
// so swim legs stay on top, the ground height otherwise.
func (w walkView) FloorY(c geom.Cell) float64 {
	if !w.t.inGrid(c) {
		return 0
	}
	i := w.t.idx(c)
	return w.t.height[i] + w.t.liquid[i]
}

func (w walkView) CellSize() float64 { return w.t.cellSize }

// travelY is the Y an agent rests at over (x,z): water surface in liquid,
// ground otherwise. ok is false over holes and walls.
func (t *terrainMap) travelY(x, z float64) (float64, bool) {
	surf, ok := t.SurfaceY(x, z)
	if !ok {
		return 0, false
	}
	return surf + t.LiquidDepth(x, z), true
}
