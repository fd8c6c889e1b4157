// Package engine is the boundary to the walkable-surface path engine. The
// pipeline treats any Engine as a black box returning raw polylines; GridEngine
// is the built-in implementation over a walkability grid.
package engine

import "waymesh.ai/internal/sim/nav/geom"

// PathType classifies an engine result.
type PathType uint8

const (
	// PathTypeNone means no route exists at all.
	PathTypeNone PathType = iota
	// PathTypePartial means the polyline ends at the closest reachable
	// point instead of the requested destination.
	PathTypePartial
	// PathTypeFull means the polyline reaches the destination.
	PathTypeFull
)

func (t PathType) String() string {
	switch t {
	case PathTypePartial:
		return "partial"
	case PathTypeFull:
		return "full"
	default:
		return "none"
	}
}

// Engine produces raw waypoint polylines between two positions. The returned
// polyline excludes the start position and ends at (or near, for partial
// results) the destination. An error means the query itself failed, which is
// distinct from PathTypeNone (query succeeded, no route).
type Engine interface {
	FindPath(start, dest geom.Vec3) ([]geom.Vec3, PathType, error)
}
