package engine

import (
	"container/heap"
	"math"

	"waymesh.ai/internal/sim/nav/geom"
)

// WalkMap is the precomputed walkability view the grid engine searches over.
type WalkMap interface {
	// Walkable reports whether an agent may stand in the cell. Cells
	// outside the map are not walkable.
	Walkable(c geom.Cell) bool
	// FloorY is the surface height at the cell center, used to lift
	// waypoints to 3D. Walkable cells always have a floor.
	FloorY(c geom.Cell) float64
	// CellSize is the horizontal cell edge length in world units.
	CellSize() float64
}

type gridNeighbor struct {
	dx       int
	dz       int
	cost     float64
	diagonal bool
}

var gridNeighbors = [...]gridNeighbor{
	{dx: 0, dz: -1, cost: 1},
	{dx: 1, dz: 0, cost: 1},
	{dx: 0, dz: 1, cost: 1},
	{dx: -1, dz: 0, cost: 1},
	{dx: 1, dz: -1, cost: math.Sqrt2, diagonal: true},
	{dx: 1, dz: 1, cost: math.Sqrt2, diagonal: true},
	{dx: -1, dz: 1, cost: math.Sqrt2, diagonal: true},
	{dx: -1, dz: -1, cost: math.Sqrt2, diagonal: true},
}

// GridEngine runs 8-connected A* over a WalkMap. When the destination cell is
// not walkable or not reachable it retargets the closest reachable cell and
// reports a partial path.
type GridEngine struct {
	wm WalkMap

	// MaxExpansions bounds a single search; zero means no bound.
	MaxExpansions int
	// SnapRadius bounds the closest-walkable search around bad endpoints.
	SnapRadius int
}

func NewGridEngine(wm WalkMap) *GridEngine {
	return &GridEngine{wm: wm, MaxExpansions: 65536, SnapRadius: 16}
}

func (e *GridEngine) FindPath(start, dest geom.Vec3) ([]geom.Vec3, PathType, error) {
	size := e.wm.CellSize()
	startCell := geom.CellOf(start, size)
	destCell := geom.CellOf(dest, size)

	partial := false
	if !e.wm.Walkable(startCell) {
		c, ok := e.closestWalkable(startCell)
		if !ok {
			return nil, PathTypeNone, nil
		}
		startCell = c
	}
	if !e.wm.Walkable(destCell) {
		c, ok := e.closestWalkable(destCell)
		if !ok {
			return nil, PathTypeNone, nil
		}
		destCell = c
		partial = true
	}

	cells, ok := e.astar(startCell, destCell)
	if !ok {
		return nil, PathTypeNone, nil
	}

	pts := e.toWaypoints(cells, dest, partial)
	if len(pts) == 0 {
		// Start and destination share a cell.
		pts = []geom.Vec3{dest}
		if partial {
			pts = []geom.Vec3{e.cellPos(destCell)}
		}
	}
	if partial {
		return pts, PathTypePartial, nil
	}
	return pts, PathTypeFull, nil
}

// canCutDiagonal forbids slipping between two blocking cells that share only
// a corner.
func (e *GridEngine) canCutDiagonal(from geom.Cell, n gridNeighbor) bool {
	if !n.diagonal {
		return true
	}
	return e.wm.Walkable(geom.Cell{X: from.X + n.dx, Z: from.Z}) &&
		e.wm.Walkable(geom.Cell{X: from.X, Z: from.Z + n.dz})
}

func (e *GridEngine) closestWalkable(c geom.Cell) (geom.Cell, bool) {
	if e.wm.Walkable(c) {
		return c, true
	}
	seen := map[geom.Cell]struct{}{c: {}}
	queue := []geom.Cell{c}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if e.wm.Walkable(cur) {
			return cur, true
		}
		if e.SnapRadius > 0 && geom.ChebyshevDist(c, cur) > e.SnapRadius {
			continue
		}
		for _, n := range gridNeighbors {
			next := geom.Cell{X: cur.X + n.dx, Z: cur.Z + n.dz}
			if _, ok := seen[next]; ok {
				continue
			}
			seen[next] = struct{}{}
			queue = append(queue, next)
		}
	}
	return geom.Cell{}, false
}

// Octile distance; admissible for the 8-connected move set.
func heuristic(a, b geom.Cell) float64 {
	dx := math.Abs(float64(a.X - b.X))
	dz := math.Abs(float64(a.Z - b.Z))
	if dx > dz {
		return dx + (math.Sqrt2-1)*dz
	}
	return dz + (math.Sqrt2-1)*dx
}

type searchNode struct {
	cell   geom.Cell
	g      float64
	f      float64
	index  int
	parent *searchNode
}

type searchQueue []*searchNode

func (q searchQueue) Len() int           { return len(q) }
func (q searchQueue) Less(i, j int) bool { return q[i].f < q[j].f }
func (q searchQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *searchQueue) Push(x any) {
	n := x.(*searchNode)
	n.index = len(*q)
	*q = append(*q, n)
}

func (q *searchQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*q = old[:n-1]
	return item
}

func (e *GridEngine) astar(start, goal geom.Cell) ([]geom.Cell, bool) {
	open := &searchQueue{}
	heap.Init(open)
	heap.Push(open, &searchNode{cell: start, f: heuristic(start, goal)})
	gScore := map[geom.Cell]float64{start: 0}
	closed := map[geom.Cell]struct{}{}

	expansions := 0
	for open.Len() > 0 {
		cur := heap.Pop(open).(*searchNode)
		if _, seen := closed[cur.cell]; seen {
			continue
		}
		closed[cur.cell] = struct{}{}
		if cur.cell == goal {
			return reconstruct(cur), true
		}
		expansions++
		if e.MaxExpansions > 0 && expansions > e.MaxExpansions {
			return nil, false
		}

		for _, n := range gridNeighbors {
			if !e.canCutDiagonal(cur.cell, n) {
				continue
			}
			next := geom.Cell{X: cur.cell.X + n.dx, Z: cur.cell.Z + n.dz}
			if !e.wm.Walkable(next) {
				continue
			}
			if _, seen := closed[next]; seen {
				continue
			}
			tentative := cur.g + n.cost
			if prev, ok := gScore[next]; ok && tentative >= prev {
				continue
			}
			gScore[next] = tentative
			heap.Push(open, &searchNode{
				cell:   next,
				g:      tentative,
				f:      tentative + heuristic(next, goal),
				parent: cur,
			})
		}
	}
	return nil, false
}

func reconstruct(end *searchNode) []geom.Cell {
	var cells []geom.Cell
	for n := end; n != nil; n = n.parent {
		cells = append(cells, n.cell)
	}
	for i, j := 0, len(cells)-1; i < j; i, j = i+1, j-1 {
		cells[i], cells[j] = cells[j], cells[i]
	}
	return cells
}

func (e *GridEngine) cellPos(c geom.Cell) geom.Vec3 {
	p := c.Center(e.wm.CellSize())
	p.Y = e.wm.FloorY(c)
	return p
}

// toWaypoints drops the start cell and terminates the polyline at the exact
// destination for full paths, or at the retargeted cell center for partial.
func (e *GridEngine) toWaypoints(cells []geom.Cell, dest geom.Vec3, partial bool) []geom.Vec3 {
	if len(cells) < 2 {
		return nil
	}
	pts := make([]geom.Vec3, 0, len(cells)-1)
	for _, c := range cells[1:] {
		pts = append(pts, e.cellPos(c))
	}
	if !partial {
		last := pts[len(pts)-1]
		if geom.DistXZ(last, dest) > e.wm.CellSize() {
			pts = append(pts, dest)
		} else {
			end := dest
			end.Y = last.Y
			pts[len(pts)-1] = end
		}
	}
	return pts
}
