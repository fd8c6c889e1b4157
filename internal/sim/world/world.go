package world

import (
	"context"
	"encoding/json"
	"log"
	"math/rand"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"waymesh.ai/internal/protocol"
	"waymesh.ai/internal/sim/nav/engine"
	"waymesh.ai/internal/sim/nav/geom"
	"waymesh.ai/internal/sim/nav/path"
	"waymesh.ai/internal/sim/nav/pathcache"
	"waymesh.ai/internal/sim/nav/validate"
	"waymesh.ai/internal/sim/tuning"
)

type Config struct {
	ID       string
	Cols     int
	Rows     int
	CellSize float64
	Seed     int64

	// Flat skips terrain generation, leaving a level walkable grid.
	Flat bool
}

type JoinRequest struct {
	Name  string
	Spawn *geom.Vec3
	Out   chan []byte
	Resp  chan JoinResponse
}

type JoinResponse struct {
	Welcome protocol.WelcomeMsg
}

type ActEnvelope struct {
	AgentID string
	Act     protocol.ActMsg
}

// AgentStatus is the QUERY snapshot for one agent.
type AgentStatus struct {
	AgentID   string        `json:"agent_id"`
	Pos       [3]float64    `json:"pos"`
	State     string        `json:"state"`
	Stuck     bool          `json:"stuck"`
	StuckKind string        `json:"stuck_kind,omitempty"`
	Attempts  int           `json:"attempts"`
	Bypass    bool          `json:"bypass,omitempty"`
	Route     *RouteSummary `json:"route,omitempty"`
	Stats     AgentStats    `json:"stats"`
}

type moveCommand struct {
	agentID string
	dest    geom.Vec3
	force   bool
	resp    chan validate.Result
}

type recoverCommand struct {
	agentID string
	resp    chan bool
}

type queryRequest struct {
	agentID string
	resp    chan queryResponse
}

type queryResponse struct {
	status AgentStatus
	ok     bool
}

// World is a single-threaded authoritative navigation simulation. All state
// must be accessed only from the world loop goroutine; external callers talk
// through the channel inboxes.
type World struct {
	cfg  Config
	tune tuning.Tuning

	tick atomic.Uint64

	terrain  *terrainMap
	eng      *engine.GridEngine
	cache    *pathcache.Cache
	pipeline *path.Pipeline
	rng      *rand.Rand

	agents  map[string]*Agent
	clients map[string]*clientState

	inbox    chan ActEnvelope
	join     chan JoinRequest
	leave    chan string
	queries  chan queryRequest
	metrics  chan chan WorldStats
	moves    chan moveCommand
	recovers chan recoverCommand
	stop     chan struct{}

	// Optional sinks (may be nil). Implemented in internal/persistence/*.
	tickLogger  TickLogger
	auditLogger AuditLogger
	index       IndexWriter

	// Diagnostic output, gated by tuning.DebugVerbosity.
	debugLog *log.Logger

	stats WorldStats
}

type clientState struct {
	Out chan []byte
}

func New(cfg Config, tune tuning.Tuning) *World {
	if cfg.Cols <= 0 {
		cfg.Cols = 256
	}
	if cfg.Rows <= 0 {
		cfg.Rows = 256
	}
	if cfg.CellSize <= 0 {
		cfg.CellSize = tune.CellSize
	}

	t := newTerrainMap(cfg.Cols, cfg.Rows, cfg.CellSize)
	if !cfg.Flat {
		t.generate(cfg.Seed)
	}

	eng := engine.NewGridEngine(walkView{t: t})
	cache := pathcache.New(tune.Cache.Size, time.Duration(tune.Cache.TTLSeconds)*time.Second, cfg.CellSize)
	t.onEdit = cache.Purge

	w := &World{
		cfg:      cfg,
		tune:     tune,
		terrain:  t,
		eng:      eng,
		cache:    cache,
		rng:      rand.New(rand.NewSource(cfg.Seed)),
		agents:   map[string]*Agent{},
		clients:  map[string]*clientState{},
		inbox:    make(chan ActEnvelope, 1024),
		join:     make(chan JoinRequest, 64),
		leave:    make(chan string, 64),
		queries:  make(chan queryRequest, 64),
		metrics:  make(chan chan WorldStats, 16),
		moves:    make(chan moveCommand, 64),
		recovers: make(chan recoverCommand, 16),
		stop:     make(chan struct{}),
	}
	w.pipeline = path.NewPipeline(t, eng, cache, path.Config{
		Strictness:       path.ParseStrictness(tune.ValidationStrictness),
		DestSearchRadius: tune.Path.DestSearchRadius,
		MaxLength:        tune.Path.MaxLength,
		SmoothEpsilon:    tune.Path.SmoothEpsilon,
		CellSize:         cfg.CellSize,
		Tolerances:       w.tolerances(),
	})
	return w
}

func (w *World) SetTickLogger(l TickLogger)    { w.tickLogger = l }
func (w *World) SetAuditLogger(l AuditLogger)  { w.auditLogger = l }
func (w *World) SetIndexWriter(iw IndexWriter) { w.index = iw }
func (w *World) SetDebugLogger(l *log.Logger)  { w.debugLog = l }

// debugf emits diagnostics at or below the configured verbosity. Level 1 is
// lifecycle and stuck traffic, level 2 adds per-event detail.
func (w *World) debugf(level int, format string, args ...any) {
	if w.debugLog == nil || w.tune.DebugVerbosity < level {
		return
	}
	w.debugLog.Printf(format, args...)
}

func (w *World) Inbox() chan<- ActEnvelope { return w.inbox }
func (w *World) Join() chan<- JoinRequest  { return w.join }
func (w *World) Leave() chan<- string      { return w.leave }

func (w *World) CurrentTick() uint64 { return w.tick.Load() }

func (w *World) tolerances() validate.Tolerances {
	return validate.Tolerances{
		GroundSnap: w.tune.Ground.SnapTolerance,
		CliffDrop:  w.tune.Ground.CliffDrop,
		SwimDepth:  w.tune.Liquid.SwimEnterDepth,
	}
}

func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.tune.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pendingActs []ActEnvelope
	var pendingJoins []JoinRequest
	var pendingLeaves []string

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.join:
			pendingJoins = append(pendingJoins, req)
		case id := <-w.leave:
			pendingLeaves = append(pendingLeaves, id)
		case env := <-w.inbox:
			pendingActs = append(pendingActs, env)
		case q := <-w.queries:
			w.handleQuery(q)
		case ch := <-w.metrics:
			w.handleMetrics(ch)
		case cmd := <-w.moves:
			w.handleMoveCommand(cmd)
		case cmd := <-w.recovers:
			w.handleRecoverCommand(cmd)
		case <-ticker.C:
			w.step(pendingJoins, pendingLeaves, pendingActs)
			pendingJoins = pendingJoins[:0]
			pendingLeaves = pendingLeaves[:0]
			pendingActs = pendingActs[:0]
		}
	}
}

func (w *World) Stop() { close(w.stop) }

// Query returns a status snapshot for one agent. Safe to call from any
// goroutine; answered between ticks on the world loop.
func (w *World) Query(agentID string) (AgentStatus, bool) {
	resp := make(chan queryResponse, 1)
	select {
	case w.queries <- queryRequest{agentID: agentID, resp: resp}:
	case <-w.stop:
		return AgentStatus{}, false
	}
	select {
	case r := <-resp:
		return r.status, r.ok
	case <-w.stop:
		return AgentStatus{}, false
	}
}

// Metrics returns a copy of the world counters.
func (w *World) Metrics() WorldStats {
	resp := make(chan WorldStats, 1)
	select {
	case w.metrics <- resp:
	case <-w.stop:
		return WorldStats{}
	}
	select {
	case s := <-resp:
		return s
	case <-w.stop:
		return WorldStats{}
	}
}

// RequestMove validates and installs a route synchronously, between ticks.
// Returns a failed result for unknown agents.
func (w *World) RequestMove(agentID string, dest geom.Vec3, force bool) validate.Result {
	resp := make(chan validate.Result, 1)
	select {
	case w.moves <- moveCommand{agentID: agentID, dest: dest, force: force, resp: resp}:
	case <-w.stop:
		return validate.Fail(validate.ReasonPathGenFailed, "world stopped")
	}
	select {
	case r := <-resp:
		return r
	case <-w.stop:
		return validate.Fail(validate.ReasonPathGenFailed, "world stopped")
	}
}

// GetState reports the agent's movement state name.
func (w *World) GetState(agentID string) (string, bool) {
	st, ok := w.Query(agentID)
	if !ok {
		return "", false
	}
	return st.State, true
}

// IsStuck reports the detector verdict for one agent.
func (w *World) IsStuck(agentID string) bool {
	st, ok := w.Query(agentID)
	return ok && st.Stuck
}

// TriggerRecovery forces one escalation attempt.
func (w *World) TriggerRecovery(agentID string) bool {
	resp := make(chan bool, 1)
	select {
	case w.recovers <- recoverCommand{agentID: agentID, resp: resp}:
	case <-w.stop:
		return false
	}
	select {
	case ok := <-resp:
		return ok
	case <-w.stop:
		return false
	}
}

func (w *World) handleMoveCommand(cmd moveCommand) {
	a := w.agents[cmd.agentID]
	if a == nil {
		cmd.resp <- validate.Fail(validate.ReasonUnreachable, "unknown agent")
		return
	}
	w.stats.MoveRequests++
	a.nav.stats.MoveRequests++
	if !w.tune.Enabled {
		cmd.resp <- validate.Fail(validate.ReasonPathGenFailed, "navigation disabled")
		w.stats.MoveRejected++
		return
	}
	cmd.resp <- a.nav.request(w, a, w.tick.Load(), moveRequest{dest: cmd.dest, force: cmd.force})
}

func (w *World) handleRecoverCommand(cmd recoverCommand) {
	a := w.agents[cmd.agentID]
	if a == nil {
		cmd.resp <- false
		return
	}
	a.nav.forceRecover(w, a, w.tick.Load())
	cmd.resp <- true
}

func (w *World) handleQuery(q queryRequest) {
	a := w.agents[q.agentID]
	if a == nil {
		q.resp <- queryResponse{}
		return
	}
	q.resp <- queryResponse{status: w.statusOf(a), ok: true}
}

func (w *World) handleMetrics(ch chan WorldStats) {
	s := w.stats
	s.Agents = len(w.agents)
	s.EngineCalls = w.pipeline.EngineCalls()
	s.CacheHits, s.CacheMisses = w.cache.Stats()
	ch <- s
}

func (w *World) statusOf(a *Agent) AgentStatus {
	st := AgentStatus{
		AgentID:  a.ID,
		Pos:      vec3Arr(a.Pos),
		State:    a.nav.machine.State().String(),
		Stuck:    a.nav.detector.IsStuck(),
		Attempts: a.nav.detector.Attempts(),
		Bypass:   a.Bypass,
		Stats:    a.nav.stats,
	}
	if st.Stuck {
		st.StuckKind = a.nav.detector.StuckType().String()
	}
	if a.nav.active {
		st.Route = &RouteSummary{
			Dest:      vec3Arr(a.nav.route.Destination),
			Waypoints: len(a.nav.route.Waypoints),
			Index:     a.nav.wpIndex,
			Kind:      a.nav.route.Type.String(),
			Cached:    a.nav.route.Cached,
		}
	}
	return st
}

func (w *World) joinAgent(name string, spawn *geom.Vec3, out chan []byte) JoinResponse {
	if name == "" {
		name = "agent"
	}
	agentID := uuid.NewString()

	pos := w.spawnPos(spawn)
	a := &Agent{
		ID:       agentID,
		Name:     name,
		Pos:      pos,
		Alive:    true,
		SpawnPos: pos,
		Anchor:   pos,
		nav:      newNavigator(w.tune),
	}
	w.agents[agentID] = a
	if out != nil {
		w.clients[agentID] = &clientState{Out: out}
	}
	w.debugf(1, "join agent=%s name=%s pos=%v", agentID, name, vec3Arr(pos))

	return JoinResponse{Welcome: protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		AgentID:         agentID,
		Pos:             vec3Arr(pos),
		TickRateHz:      w.tune.TickRateHz,
		WorldID:         w.cfg.ID,
	}}
}

// spawnPos places new agents on the surface near the grid center, or at the
// requested spot when it validates.
func (w *World) spawnPos(req *geom.Vec3) geom.Vec3 {
	if req != nil {
		if p, ok := validate.SnapToSurface(w.terrain, *req); ok {
			return p
		}
	}
	center := geom.Cell{X: w.cfg.Cols / 2, Z: w.cfg.Rows / 2}.Center(w.cfg.CellSize)
	p, ok := validate.SnapToSurface(w.terrain, center)
	if !ok {
		return center
	}
	return p
}

func (w *World) handleLeave(id string) {
	delete(w.agents, id)
	delete(w.clients, id)
	w.debugf(1, "leave agent=%s", id)
}

// placeAgent teleports without pathing; used by recovery relocations.
func (w *World) placeAgent(a *Agent, to geom.Vec3) {
	if p, ok := validate.SnapToSurface(w.terrain, to); ok {
		to = p
	}
	a.Pos = to
}

func (w *World) step(joins []JoinRequest, leaves []string, acts []ActEnvelope) {
	nowTick := w.tick.Load()

	for _, id := range leaves {
		if _, ok := w.agents[id]; ok {
			w.handleLeave(id)
		}
	}
	for _, req := range joins {
		resp := w.joinAgent(req.Name, req.Spawn, req.Out)
		if req.Resp != nil {
			req.Resp <- resp
		}
	}

	// Acts apply in server receive order.
	for _, env := range acts {
		a := w.agents[env.AgentID]
		if a == nil {
			continue
		}
		env.Act.AgentID = env.AgentID // trust session identity
		w.applyAct(a, env.Act, nowTick)
	}

	// Navigation runs in sorted agent order so replays are deterministic.
	for _, id := range w.sortedAgentIDs() {
		a := w.agents[id]
		a.nav.tick(w, a, nowTick)
	}

	w.flush(nowTick)
	if w.index != nil {
		moving := 0
		for _, a := range w.agents {
			if a.nav.active {
				moving++
			}
		}
		w.index.EnqueueTick(nowTick, len(w.agents), moving)
	}

	w.tick.Add(1)
}

// StepOnce advances one tick with the same ordering as the server loop.
// Intended for tests and replays.
func (w *World) StepOnce(joins []JoinRequest, leaves []string, acts []ActEnvelope) uint64 {
	t := w.tick.Load()
	w.step(joins, leaves, acts)
	return t
}

func (w *World) sortedAgentIDs() []string {
	ids := make([]string, 0, len(w.agents))
	for id := range w.agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (w *World) applyAct(a *Agent, act protocol.ActMsg, nowTick uint64) {
	if !a.Alive {
		a.pushEvent(protocol.EvMoveRejected, map[string]any{
			"request_id": act.RequestID,
			"code":       protocol.ErrAgentDead,
		})
		return
	}
	switch act.Act.Kind {
	case protocol.ActMove:
		w.stats.MoveRequests++
		if !w.tune.Enabled {
			a.pushEvent(protocol.EvMoveRejected, map[string]any{
				"request_id": act.RequestID,
				"code":       protocol.ErrDisabled,
			})
			w.stats.MoveRejected++
			return
		}
		dest := geom.Vec3{X: act.Act.Target[0], Y: act.Act.Target[1], Z: act.Act.Target[2]}
		a.nav.queueMove(dest, act.Act.Force, false, act.RequestID)
		w.audit(AuditEntry{
			Tick: nowTick, AgentID: a.ID, Action: protocol.ActMove,
			Target: act.Act.Target, Accepted: true,
		})

	case protocol.ActCancel:
		a.nav.cancel()
		a.pushEvent(protocol.EvMoveDone, map[string]any{
			"request_id": act.RequestID,
			"pos":        vec3Arr(a.Pos),
			"complete":   false,
			"canceled":   true,
		})
		w.audit(AuditEntry{Tick: nowTick, AgentID: a.ID, Action: protocol.ActCancel, Accepted: true})

	case protocol.ActRecover:
		a.nav.forceRecover(w, a, nowTick)
		w.audit(AuditEntry{Tick: nowTick, AgentID: a.ID, Action: protocol.ActRecover, Accepted: true})

	case protocol.ActQuery:
		st := w.statusOf(a)
		data, _ := json.Marshal(st)
		var m map[string]any
		_ = json.Unmarshal(data, &m)
		m["request_id"] = act.RequestID
		a.pushEvent("STATUS", m)

	case protocol.ActBypass:
		a.Bypass = act.Act.Bypass
		w.audit(AuditEntry{Tick: nowTick, AgentID: a.ID, Action: protocol.ActBypass, Accepted: true})

	default:
		a.pushEvent(protocol.EvMoveRejected, map[string]any{
			"request_id": act.RequestID,
			"code":       protocol.ErrProtoBadRequest,
			"message":    "unknown act kind",
		})
	}
}

// flush drains agent events to clients and the tick log.
func (w *World) flush(nowTick uint64) {
	for _, id := range w.sortedAgentIDs() {
		a := w.agents[id]
		evs := a.drainEvents()
		if len(evs) == 0 && !a.nav.active {
			continue
		}

		for _, ev := range evs {
			w.debugf(2, "event tick=%d agent=%s type=%s", nowTick, id, ev.Type)
		}

		if cl := w.clients[id]; cl != nil {
			for _, ev := range evs {
				msg := protocol.Event{"t": nowTick, "type": ev.Type}
				for k, v := range ev.Data {
					msg[k] = v
				}
				b, err := json.Marshal(msg)
				if err != nil {
					continue
				}
				sendLatest(cl.Out, b)
			}
		}

		if w.tickLogger != nil {
			entry := TickLogEntry{
				Tick:    nowTick,
				AgentID: id,
				Pos:     vec3Arr(a.Pos),
				State:   a.nav.machine.State().String(),
			}
			for _, ev := range evs {
				entry.Events = append(entry.Events, TickEvent{Type: ev.Type})
			}
			if a.nav.active {
				entry.Route = &RouteSummary{
					Dest:      vec3Arr(a.nav.route.Destination),
					Waypoints: len(a.nav.route.Waypoints),
					Index:     a.nav.wpIndex,
					Kind:      a.nav.route.Type.String(),
					Cached:    a.nav.route.Cached,
				}
			}
			_ = w.tickLogger.WriteTick(entry)
		}
	}
}

func (w *World) audit(e AuditEntry) {
	if w.auditLogger == nil {
		return
	}
	_ = w.auditLogger.WriteAudit(e)
}

func (w *World) recordStuck(tick uint64, agentID, kind string, level int, strategy string, resolved bool) {
	w.debugf(1, "stuck tick=%d agent=%s kind=%s level=%d strategy=%s resolved=%v",
		tick, agentID, kind, level, strategy, resolved)
	w.audit(AuditEntry{
		Tick: tick, AgentID: agentID, Action: "STUCK",
		Accepted: resolved, Reason: kind, Level: level, Strategy: strategy,
	})
	if w.index != nil {
		w.index.EnqueueStuck(tick, agentID, kind, level, strategy, resolved)
	}
}

func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
