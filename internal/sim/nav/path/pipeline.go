package path

import (
	"fmt"
	"math"
	"sync/atomic"

	"waymesh.ai/internal/sim/nav/engine"
	"waymesh.ai/internal/sim/nav/geom"
	"waymesh.ai/internal/sim/nav/pathcache"
	"waymesh.ai/internal/sim/nav/validate"
)

// Config holds the pipeline knobs. All distances are world units.
type Config struct {
	Strictness Strictness

	// DestSearchRadius bounds the alternative-destination search around a
	// rejected endpoint.
	DestSearchRadius float64

	// MaxLength rejects routes longer than this; zero disables the check.
	MaxLength float64

	// SmoothEpsilon is the fraction of extra traversal cost smoothing may
	// remove; corner cuts that change cost by more than this are kept out.
	SmoothEpsilon float64

	// CellSize matches the terrain quantization used for cache keys and
	// the alternative search ring.
	CellSize float64

	Tolerances validate.Tolerances
}

// Pipeline validates, smooths, and caches routes from an external engine.
// Safe for use from a single world loop; the cache it shares is safe for
// concurrent readers.
type Pipeline struct {
	terrain validate.Terrain
	eng     engine.Engine
	cache   *pathcache.Cache
	cfg     Config

	engineCalls atomic.Uint64
}

func NewPipeline(t validate.Terrain, e engine.Engine, c *pathcache.Cache, cfg Config) *Pipeline {
	if cfg.CellSize <= 0 {
		cfg.CellSize = 1
	}
	if cfg.SmoothEpsilon <= 0 {
		cfg.SmoothEpsilon = 0.05
	}
	return &Pipeline{terrain: t, eng: e, cache: c, cfg: cfg}
}

// EngineCalls is the cumulative number of engine queries issued.
func (p *Pipeline) EngineCalls() uint64 { return p.engineCalls.Load() }

// Request runs the full pipeline. On failure the returned path has TypeNone
// and the result explains the stage that rejected it; the caller must hold
// position.
func (p *Pipeline) Request(start, dest geom.Vec3, forceDest bool) (ValidatedPath, validate.Result) {
	if p.cfg.Strictness == StrictnessNone {
		// Legacy mode: straight line, no validation.
		direct := ValidatedPath{
			Waypoints:   []geom.Vec3{dest},
			Type:        TypeDirect,
			Cost:        geom.Dist(start, dest),
			Destination: dest,
		}
		return direct, validate.OK()
	}

	routed, res := p.resolveDestination(dest, forceDest)
	if !res.Valid {
		return ValidatedPath{Type: TypeNone}, res
	}

	if p.cache != nil {
		key := p.cache.KeyFor(start, routed)
		if e, ok := p.cache.Get(key); ok {
			return ValidatedPath{
				Waypoints:   e.Waypoints,
				Type:        typeFromEngine(e.Type),
				Transitions: validate.LiquidTransitions(p.terrain, append([]geom.Vec3{start}, e.Waypoints...), p.cfg.Tolerances),
				Cost:        e.Cost,
				Cached:      true,
				Destination: routed,
			}, validate.OK()
		}
	}

	raw, ptype, err := p.query(start, routed)
	if err != nil || ptype == engine.PathTypeNone {
		if fb, ok := p.directFallback(start, routed); ok {
			return fb, validate.OK()
		}
		msg := "engine returned no route"
		if err != nil {
			msg = fmt.Sprintf("engine query failed: %v", err)
		}
		return ValidatedPath{Type: TypeNone}, validate.Fail(validate.ReasonPathGenFailed, msg)
	}

	if p.cfg.MaxLength > 0 {
		if l := geom.PathLength(append([]geom.Vec3{start}, raw...)); l > p.cfg.MaxLength {
			return ValidatedPath{Type: TypeNone}, validate.Fail(validate.ReasonPathTooLong,
				fmt.Sprintf("route length %.1f exceeds limit %.1f", l, p.cfg.MaxLength))
		}
	}

	vres := p.validateRoute(start, raw)
	if !vres.Valid {
		// One re-route retry before giving up on the engine.
		raw2, ptype2, err2 := p.query(start, routed)
		if err2 == nil && ptype2 != engine.PathTypeNone {
			if vres2 := p.validateRoute(start, raw2); vres2.Valid {
				raw, ptype, vres = raw2, ptype2, vres2
			}
		}
	}
	if !vres.Valid {
		if fb, ok := p.directFallback(start, routed); ok {
			return fb, validate.OK()
		}
		return ValidatedPath{Type: TypeNone}, vres
	}

	smoothed := p.smooth(start, raw)
	out := ValidatedPath{
		Waypoints:   smoothed,
		Type:        typeFromEngine(ptype),
		Transitions: validate.LiquidTransitions(p.terrain, append([]geom.Vec3{start}, smoothed...), p.cfg.Tolerances),
		Cost:        geom.PathLength(append([]geom.Vec3{start}, smoothed...)),
		Destination: routed,
	}

	// Only engine-derived full routes are worth caching; direct and partial
	// ones are cheap or likely to change.
	if p.cache != nil && ptype == engine.PathTypeFull {
		p.cache.Put(p.cache.KeyFor(start, routed), pathcache.Entry{
			Waypoints: out.Waypoints,
			Type:      ptype,
			Cost:      out.Cost,
		})
	}
	return out, validate.OK()
}

func (p *Pipeline) query(start, dest geom.Vec3) ([]geom.Vec3, engine.PathType, error) {
	p.engineCalls.Add(1)
	return p.eng.FindPath(start, dest)
}

// resolveDestination validates the endpoint and substitutes a nearby valid
// alternative when the original is rejected and not forced.
func (p *Pipeline) resolveDestination(dest geom.Vec3, force bool) (geom.Vec3, validate.Result) {
	if validate.Liquid(p.terrain, dest, p.cfg.Tolerances) == validate.LiquidSwim {
		// Swimmable endpoints have no ground to validate.
		if res := validate.Position(p.terrain, dest); !res.Valid {
			return geom.Vec3{}, res
		}
		return dest, validate.OK()
	}
	res := validate.Ground(p.terrain, dest, p.cfg.Tolerances)
	if res.Valid {
		return dest, validate.OK()
	}
	if force {
		// Caller insists: out-of-bounds is still fatal, the rest passes.
		if res.Reason == validate.ReasonOutOfBounds {
			return geom.Vec3{}, res
		}
		return dest, validate.OK()
	}
	if res.Alternative != nil {
		return *res.Alternative, validate.OK()
	}
	if alt, ok := p.searchAlternative(dest); ok {
		return alt, validate.OK()
	}
	return geom.Vec3{}, validate.Fail(validate.ReasonUnreachable,
		fmt.Sprintf("destination invalid (%s) and no alternative within %.1f", res.Reason, p.cfg.DestSearchRadius))
}

// searchAlternative rings outward cell by cell until a snapped candidate
// passes ground validation.
func (p *Pipeline) searchAlternative(dest geom.Vec3) (geom.Vec3, bool) {
	if p.cfg.DestSearchRadius <= 0 {
		return geom.Vec3{}, false
	}
	size := p.cfg.CellSize
	maxRing := int(math.Ceil(p.cfg.DestSearchRadius / size))
	center := geom.CellOf(dest, size)
	for ring := 1; ring <= maxRing; ring++ {
		for dx := -ring; dx <= ring; dx++ {
			for dz := -ring; dz <= ring; dz++ {
				if geom.AbsInt(dx) != ring && geom.AbsInt(dz) != ring {
					continue
				}
				cand := geom.Cell{X: center.X + dx, Z: center.Z + dz}.Center(size)
				snapped, ok := validate.SnapToSurface(p.terrain, cand)
				if !ok {
					continue
				}
				if geom.DistXZ(snapped, dest) > p.cfg.DestSearchRadius {
					continue
				}
				if validate.Ground(p.terrain, snapped, p.cfg.Tolerances).Valid {
					return snapped, true
				}
			}
		}
	}
	return geom.Vec3{}, false
}

func (p *Pipeline) validateRoute(start geom.Vec3, pts []geom.Vec3) validate.Result {
	full := append([]geom.Vec3{start}, pts...)
	switch p.cfg.Strictness {
	case StrictnessBasic:
		for i := 1; i < len(full); i++ {
			if res := validate.Segment(p.terrain, full[i-1], full[i]); !res.Valid {
				return res
			}
		}
		return validate.OK()
	default:
		return validate.Waypoints(p.terrain, full, p.cfg.Tolerances)
	}
}

// directFallback builds a straight-line path when strictness allows and the
// line itself validates at the active level.
func (p *Pipeline) directFallback(start, dest geom.Vec3) (ValidatedPath, bool) {
	if p.cfg.Strictness == StrictnessStrict {
		return ValidatedPath{}, false
	}
	line := []geom.Vec3{dest}
	if res := p.validateRoute(start, line); !res.Valid {
		return ValidatedPath{}, false
	}
	return ValidatedPath{
		Waypoints:   line,
		Type:        TypeDirect,
		Transitions: validate.LiquidTransitions(p.terrain, []geom.Vec3{start, dest}, p.cfg.Tolerances),
		Cost:        geom.Dist(start, dest),
		Destination: dest,
	}, true
}

// smooth removes interior waypoints by corner cutting: a waypoint is dropped
// when the segment skipping it stays collision-free and the traversal cost of
// the shortcut does not deviate from the original by more than the epsilon.
func (p *Pipeline) smooth(start geom.Vec3, pts []geom.Vec3) []geom.Vec3 {
	if len(pts) < 2 {
		return pts
	}
	full := append([]geom.Vec3{start}, pts...)
	out := make([]geom.Vec3, 0, len(pts))
	i := 0
	for i < len(full)-1 {
		j := i + 1
		// Greedily extend the shortcut while it stays clear and keeps the
		// traversal cost within the epsilon of the original leg.
		for k := j + 1; k < len(full); k++ {
			if !validate.Segment(p.terrain, full[i], full[k]).Valid {
				break
			}
			orig := geom.PathLength(full[i : k+1])
			cut := geom.Dist(full[i], full[k])
			if orig > 0 && (orig-cut) > orig*p.cfg.SmoothEpsilon {
				break
			}
			j = k
		}
		out = append(out, full[j])
		i = j
	}
	return out
}

func typeFromEngine(t engine.PathType) Type {
	switch t {
	case engine.PathTypeFull:
		return TypeNavmesh
	case engine.PathTypePartial:
		return TypePartial
	default:
		return TypeNone
	}
}
