package world

import (
	"math"

	"waymesh.ai/internal/protocol"
	"waymesh.ai/internal/sim/nav/geom"
	"waymesh.ai/internal/sim/nav/path"
	"waymesh.ai/internal/sim/nav/recovery"
	"waymesh.ai/internal/sim/nav/state"
	"waymesh.ai/internal/sim/nav/stuck"
	"waymesh.ai/internal/sim/nav/validate"
	"waymesh.ai/internal/sim/tuning"
)

const (
	// Ticks between automatic repaths after a partial route runs out.
	recalcCooldownTicks = 10

	// Ticks between escalation attempts while stuck.
	recoveryRetryTicks = 20

	// Samples tried by the wander strategy before giving up.
	wanderSamples = 8
)

// moveRequest is a queued MOVE_TO; only the most recent one survives to the
// next tick.
type moveRequest struct {
	dest      geom.Vec3
	force     bool
	bypass    bool
	requestID string
}

// navigator is the per-agent movement controller. It composes the state
// machine, the stuck detector, and the recovery escalator, and is driven
// once per tick from the world loop.
type navigator struct {
	machine  *state.Machine
	detector *stuck.Detector
	esc      *recovery.Escalator

	route      path.ValidatedPath
	active     bool
	wpIndex    int
	finalDest  geom.Vec3
	finalForce bool

	pending       *moveRequest
	cooldownUntil uint64
	lastAttempt   uint64
	wasStuck      bool

	stats AgentStats
}

func newNavigator(t tuning.Tuning) *navigator {
	return &navigator{
		machine: state.NewMachine(state.Config{
			SwimEnterDepth: t.Liquid.SwimEnterDepth,
			SwimExitDepth:  t.Liquid.SwimExitDepth,
			FallEnterDrop:  t.Ground.FallEnterDrop,
			FallExitDrop:   t.Ground.FallExitDrop,
			SubmergeDepth:  t.Liquid.SubmergeDepth,
			BreathTicks:    t.Liquid.BreathTicks,
		}),
		detector: stuck.NewDetector(stuck.Config{
			WindowTicks:         t.Stuck.WindowTicks,
			MinMove:             t.Stuck.MinMove,
			ProgressWindowTicks: t.Stuck.ProgressWindowTicks,
			MaxFailures:         t.Stuck.MaxFailures,
			HistoryCap:          t.Stuck.HistoryCap,
		}),
		esc: recovery.NewEscalator(recovery.Config{
			StepBackDist:   t.Recovery.StepBackDist,
			WanderRadius:   t.Recovery.WanderRadius,
			LastGoodMinAge: t.Recovery.LastGoodMinAge,
			MaxAttempts:    t.Recovery.MaxAttempts,
		}),
	}
}

// queueMove replaces any still-unprocessed request; the newest order wins.
func (n *navigator) queueMove(dest geom.Vec3, force, bypass bool, requestID string) {
	n.stats.MoveRequests++
	n.pending = &moveRequest{dest: dest, force: force, bypass: bypass, requestID: requestID}
}

func (n *navigator) cancel() {
	n.pending = nil
	n.active = false
	n.route = path.ValidatedPath{}
	n.wpIndex = 0
	n.cooldownUntil = 0
	n.wasStuck = false
	n.detector.Reset()
	n.esc.Reset()
}

// tick runs the fixed per-agent sequence: observe the detector, escalate if
// stuck, step the state machine, resolve the pending request, then move.
func (n *navigator) tick(w *World, a *Agent, tick uint64) {
	pos := a.Pos
	var wpDist float64
	if n.active && n.wpIndex < len(n.route.Waypoints) {
		wpDist = geom.Dist(pos, n.route.Waypoints[n.wpIndex])
	}
	n.detector.Observe(pos, tick, n.wpIndex, wpDist, n.active)

	if n.detector.IsStuck() && !n.wasStuck {
		n.wasStuck = true
		n.stats.StuckEpisodes++
		w.stats.StuckEpisodes++
		a.pushEvent(protocol.EvStuck, map[string]any{
			"kind":     n.detector.StuckType().String(),
			"duration": n.detector.Duration(tick),
		})
		w.recordStuck(tick, a.ID, n.detector.StuckType().String(), 0, "", false)
	}

	recovered := n.maybeRecover(w, a, tick)
	if recovered {
		n.wasStuck = false
	}

	depth := w.terrain.LiquidDepth(pos.X, pos.Z)
	clearance := validate.GroundClearance(w.terrain, pos)
	st, changed := n.machine.Step(state.Input{
		Tick:            tick,
		Moving:          n.active,
		LiquidDepth:     depth,
		GroundClearance: clearance,
		StuckSignal:     n.detector.IsStuck(),
		RecoveryDone:    recovered,
	})
	if changed {
		a.pushEvent(protocol.EvStateChange, map[string]any{
			"from": n.machine.Previous().String(),
			"to":   st.String(),
		})
	}

	if n.pending != nil {
		n.processPending(w, a, tick)
	}

	n.applyMovement(w, a, tick, st)
}

// maybeRecover runs at most one escalation attempt per retry window while the
// detector reports stuck. Reports whether an attempt restored progress.
func (n *navigator) maybeRecover(w *World, a *Agent, tick uint64) bool {
	if !n.detector.IsStuck() {
		return false
	}
	if n.lastAttempt != 0 && tick-n.lastAttempt < recoveryRetryTicks {
		return false
	}
	n.lastAttempt = tick
	n.detector.RecordAttempt()

	out := n.esc.Next(n.env(w, a, tick))
	n.stats.Recoveries++
	if out.Level >= 1 && out.Level <= len(w.stats.RecoveryByLevel) {
		w.stats.RecoveryByLevel[out.Level-1]++
	}
	a.pushEvent(protocol.EvRecovery, map[string]any{
		"level":    out.Level,
		"strategy": out.Strategy,
		"ok":       out.OK,
	})
	w.recordStuck(tick, a.ID, n.detector.StuckType().String(), out.Level, out.Strategy, out.OK)

	if out.Terminal {
		n.stats.TerminalResets++
		w.stats.TerminalResets++
		n.cancel()
		a.pushEvent(protocol.EvReset, map[string]any{"pos": vec3Arr(a.Pos)})
	}
	if !out.OK {
		w.stats.RecoveryFailures++
		return false
	}
	w.stats.RecoverySuccess++
	n.detector.Reset()
	n.esc.Reset()
	n.lastAttempt = 0
	return true
}

// forceRecover runs one escalation attempt on operator request, regardless of
// the detector verdict or the retry window.
func (n *navigator) forceRecover(w *World, a *Agent, tick uint64) {
	n.lastAttempt = tick
	n.detector.RecordAttempt()

	out := n.esc.Next(n.env(w, a, tick))
	n.stats.Recoveries++
	a.pushEvent(protocol.EvRecovery, map[string]any{
		"level":    out.Level,
		"strategy": out.Strategy,
		"ok":       out.OK,
		"forced":   true,
	})
	if out.Terminal {
		n.stats.TerminalResets++
		w.stats.TerminalResets++
		n.cancel()
		a.pushEvent(protocol.EvReset, map[string]any{"pos": vec3Arr(a.Pos)})
		return
	}
	if out.OK {
		n.detector.Reset()
		n.esc.Reset()
		n.lastAttempt = 0
	}
}

// env binds the recovery strategies to this agent.
func (n *navigator) env(w *World, a *Agent, tick uint64) recovery.Env {
	return recovery.Env{
		Pos: func() geom.Vec3 { return a.Pos },
		Repath: func(from geom.Vec3) bool {
			if !n.active {
				return false
			}
			vp, res := w.pipeline.Request(from, n.finalDest, false)
			if !res.Valid || len(vp.Waypoints) == 0 {
				return false
			}
			n.setRoute(vp)
			return true
		},
		StepBack: func(dist float64) (geom.Vec3, bool) {
			heading := n.heading(a.Pos)
			if heading.Len() == 0 {
				return geom.Vec3{}, false
			}
			back := a.Pos.Sub(heading.Scale(dist))
			snapped, ok := validate.SnapToSurface(w.terrain, back)
			if !ok {
				return geom.Vec3{}, false
			}
			if res := validate.Ground(w.terrain, snapped, w.tolerances()); !res.Valid {
				return geom.Vec3{}, false
			}
			return snapped, true
		},
		RandomNearby: func(center geom.Vec3, radius float64) (geom.Vec3, bool) {
			for i := 0; i < wanderSamples; i++ {
				ang := w.rng.Float64() * 2 * math.Pi
				r := radius * math.Sqrt(w.rng.Float64())
				cand := geom.Vec3{
					X: center.X + r*math.Cos(ang),
					Y: center.Y,
					Z: center.Z + r*math.Sin(ang),
				}
				snapped, ok := validate.SnapToSurface(w.terrain, cand)
				if !ok {
					continue
				}
				if res := validate.Ground(w.terrain, snapped, w.tolerances()); res.Valid {
					return snapped, true
				}
			}
			return geom.Vec3{}, false
		},
		LastGood: func(minAge uint64) (geom.Vec3, bool) {
			s, ok := n.detector.LastGood(tick, minAge)
			if !ok {
				return geom.Vec3{}, false
			}
			return s.Pos, true
		},
		Anchor:   func() geom.Vec3 { return a.Anchor },
		Relocate: func(to geom.Vec3) { w.placeAgent(a, to) },
	}
}

// heading is the unit direction toward the current waypoint; zero when no
// route is active.
func (n *navigator) heading(pos geom.Vec3) geom.Vec3 {
	if !n.active || n.wpIndex >= len(n.route.Waypoints) {
		return geom.Vec3{}
	}
	d := n.route.Waypoints[n.wpIndex].Sub(pos)
	l := d.Len()
	if l == 0 {
		return geom.Vec3{}
	}
	return d.Scale(1 / l)
}

// startMove clears per-move history for an accepted request. Position samples
// gathered while idle must not count against the new move, so the detector
// restarts from scratch.
func (n *navigator) startMove(dest geom.Vec3, force bool) {
	n.finalDest = dest
	n.finalForce = force
	n.cooldownUntil = 0
	n.wasStuck = false
	n.detector.Reset()
}

func (n *navigator) setRoute(vp path.ValidatedPath) {
	n.route = vp
	n.wpIndex = 0
	n.active = len(vp.Waypoints) > 0
}

func (n *navigator) processPending(w *World, a *Agent, tick uint64) {
	req := *n.pending
	n.pending = nil
	n.request(w, a, tick, req)
}

// request resolves one MOVE_TO through the pipeline and installs the route.
func (n *navigator) request(w *World, a *Agent, tick uint64, req moveRequest) validate.Result {
	if req.bypass || a.Bypass {
		n.startMove(req.dest, req.force)
		n.setRoute(path.ValidatedPath{
			Waypoints:   []geom.Vec3{req.dest},
			Type:        path.TypeDirect,
			Destination: req.dest,
		})
		n.stats.MoveAccepted++
		w.stats.MoveAccepted++
		a.pushEvent(protocol.EvMoveAccepted, map[string]any{
			"request_id": req.requestID,
			"dest":       vec3Arr(req.dest),
			"kind":       "bypass",
		})
		return validate.OK()
	}

	vp, res := w.pipeline.Request(a.Pos, req.dest, req.force)
	if !res.Valid {
		n.detector.RecordFailure(tick, res.Reason == validate.ReasonUnreachable)
		n.stats.MoveRejected++
		w.stats.MoveRejected++
		a.pushEvent(protocol.EvMoveRejected, map[string]any{
			"request_id": req.requestID,
			"code":       reasonCode(res.Reason),
			"message":    res.Message,
		})
		return res
	}

	n.startMove(req.dest, req.force)
	n.setRoute(vp)
	n.stats.MoveAccepted++
	w.stats.MoveAccepted++
	a.pushEvent(protocol.EvMoveAccepted, map[string]any{
		"request_id": req.requestID,
		"dest":       vec3Arr(vp.Destination),
		"kind":       vp.Type.String(),
		"waypoints":  len(vp.Waypoints),
		"cached":     vp.Cached,
	})
	return res
}

func (n *navigator) applyMovement(w *World, a *Agent, tick uint64, st state.State) {
	if !n.active || st == state.Stuck {
		return
	}
	// A partial route can sit exhausted while the repath cooldown runs down;
	// there is no waypoint to walk toward until the next repath fires.
	if n.wpIndex >= len(n.route.Waypoints) {
		if n.route.Type == path.TypePartial {
			n.repathPartial(w, a, tick)
		} else {
			n.finish(w, a, true)
		}
		return
	}
	speed := w.tune.MoveSpeed
	if st == state.Swimming {
		speed = w.tune.SwimSpeed
	}
	stepLen := speed / float64(w.tune.TickRateHz)

	target := n.route.Waypoints[n.wpIndex]
	next := geom.StepToward(a.Pos, target, stepLen)
	if y, ok := w.terrain.travelY(next.X, next.Z); ok {
		next.Y = y
	}
	// Geometry that appeared after routing stops the agent in place; the
	// stuck detector picks it up from there.
	if !a.Bypass {
		if _, blocked := w.terrain.SegmentBlocked(a.Pos, next); blocked {
			return
		}
	}
	a.Pos = next

	if geom.Dist(a.Pos, target) > w.tune.ReachedEpsilon {
		return
	}
	n.wpIndex++
	if n.wpIndex < len(n.route.Waypoints) {
		return
	}

	if n.route.Type == path.TypePartial {
		n.repathPartial(w, a, tick)
		return
	}
	n.finish(w, a, true)
}

// repathPartial continues toward the original destination after a partial
// route runs out, throttled so an unreachable goal does not hammer the
// engine every tick.
func (n *navigator) repathPartial(w *World, a *Agent, tick uint64) {
	if tick < n.cooldownUntil {
		return
	}
	n.cooldownUntil = tick + recalcCooldownTicks

	vp, res := w.pipeline.Request(a.Pos, n.finalDest, n.finalForce)
	if res.Valid && len(vp.Waypoints) > 0 && vp.Type != path.TypePartial {
		n.setRoute(vp)
		return
	}
	if res.Valid && vp.Type == path.TypePartial {
		// Only keep chasing if the new fragment makes progress.
		if end, ok := vp.End(); ok && geom.DistXZ(end, a.Pos) > w.tune.ReachedEpsilon {
			n.setRoute(vp)
			return
		}
	}
	if !res.Valid {
		n.detector.RecordFailure(tick, res.Reason == validate.ReasonUnreachable)
	}
	n.finish(w, a, false)
}

func (n *navigator) finish(w *World, a *Agent, complete bool) {
	n.active = false
	n.wpIndex = 0
	n.route = path.ValidatedPath{}
	if complete {
		n.detector.Reset()
		n.esc.Reset()
	}
	n.stats.MovesCompleted++
	w.stats.MovesCompleted++
	a.pushEvent(protocol.EvMoveDone, map[string]any{
		"pos":      vec3Arr(a.Pos),
		"complete": complete,
	})
}

func reasonCode(r validate.Reason) string {
	switch r {
	case validate.ReasonOutOfBounds:
		return protocol.ErrOutOfBounds
	case validate.ReasonNoGround:
		return protocol.ErrNoGround
	case validate.ReasonCollision:
		return protocol.ErrCollision
	case validate.ReasonUnsafeTerrain:
		return protocol.ErrUnsafeTerrain
	case validate.ReasonLiquidBlocking:
		return protocol.ErrLiquidBlock
	case validate.ReasonPathGenFailed:
		return protocol.ErrPathGen
	case validate.ReasonPathTooLong:
		return protocol.ErrPathTooLong
	case validate.ReasonUnreachable:
		return protocol.ErrUnreachable
	default:
		return protocol.ErrInternal
	}
}
