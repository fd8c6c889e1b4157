package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"waymesh.ai/internal/persistence/indexdb"
	wlog "waymesh.ai/internal/persistence/log"
	"waymesh.ai/internal/sim/tuning"
	"waymesh.ai/internal/sim/world"
	"waymesh.ai/internal/transport/adminapi"
	"waymesh.ai/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		worldID    = flag.String("world", "world_1", "world id")
		seed       = flag.Int64("seed", 1337, "terrain seed")
		cols       = flag.Int("cols", 256, "grid columns")
		rows       = flag.Int("rows", 256, "grid rows")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite read-model index")
		pprofHTTP  = flag.Bool("pprof", false, "expose net/http/pprof handlers")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Printf("tuning not found (%s); using defaults", tp)
			tune = tuning.Defaults()
		} else {
			logger.Fatalf("load tuning: %v", err)
		}
	}

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	_ = os.MkdirAll(worldDir, 0o755)

	w := world.New(world.Config{
		ID:       *worldID,
		Cols:     *cols,
		Rows:     *rows,
		CellSize: tune.CellSize,
		Seed:     *seed,
	}, tune)
	w.SetDebugLogger(logger)

	// JSONL logs are the durable record; the sqlite index is a queryable
	// mirror and may be disabled without losing data.
	tickLog := wlog.NewTickLogger(worldDir)
	auditLog := wlog.NewAuditLogger(worldDir)
	defer tickLog.Close()
	defer auditLog.Close()
	w.SetTickLogger(tickLog)

	if *disableDB {
		w.SetAuditLogger(auditLog)
	} else {
		idx, err := indexdb.OpenSQLite(filepath.Join(worldDir, "index.db"))
		if err != nil {
			logger.Fatalf("open index: %v", err)
		}
		defer idx.Close()
		w.SetIndexWriter(idx)
		w.SetAuditLogger(multiAuditLogger{a: auditLog, b: idx})
	}

	ctx, cancel := signalContext()
	defer cancel()

	go func() {
		if err := w.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("world stopped: %v", err)
		}
	}()

	wsrv := ws.NewServer(w, logger)
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/ws", wsrv.Handler())
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		m := w.Metrics()
		fmt.Fprintf(rw, "# TYPE waymesh_world_tick gauge\n")
		fmt.Fprintf(rw, "waymesh_world_tick{world=%q} %d\n", *worldID, w.CurrentTick())
		fmt.Fprintf(rw, "# TYPE waymesh_world_agents gauge\n")
		fmt.Fprintf(rw, "waymesh_world_agents{world=%q} %d\n", *worldID, m.Agents)
		fmt.Fprintf(rw, "# TYPE waymesh_move_requests_total counter\n")
		fmt.Fprintf(rw, "waymesh_move_requests_total{world=%q,result=%q} %d\n", *worldID, "accepted", m.MoveAccepted)
		fmt.Fprintf(rw, "waymesh_move_requests_total{world=%q,result=%q} %d\n", *worldID, "rejected", m.MoveRejected)
		fmt.Fprintf(rw, "# TYPE waymesh_moves_completed_total counter\n")
		fmt.Fprintf(rw, "waymesh_moves_completed_total{world=%q} %d\n", *worldID, m.MovesCompleted)
		fmt.Fprintf(rw, "# TYPE waymesh_path_engine_calls_total counter\n")
		fmt.Fprintf(rw, "waymesh_path_engine_calls_total{world=%q} %d\n", *worldID, m.EngineCalls)
		fmt.Fprintf(rw, "# TYPE waymesh_path_cache_total counter\n")
		fmt.Fprintf(rw, "waymesh_path_cache_total{world=%q,outcome=%q} %d\n", *worldID, "hit", m.CacheHits)
		fmt.Fprintf(rw, "waymesh_path_cache_total{world=%q,outcome=%q} %d\n", *worldID, "miss", m.CacheMisses)
		fmt.Fprintf(rw, "# TYPE waymesh_stuck_episodes_total counter\n")
		fmt.Fprintf(rw, "waymesh_stuck_episodes_total{world=%q} %d\n", *worldID, m.StuckEpisodes)
		for i, n := range m.RecoveryByLevel {
			fmt.Fprintf(rw, "waymesh_recovery_attempts_total{world=%q,level=\"%d\"} %d\n", *worldID, i+1, n)
		}
		fmt.Fprintf(rw, "# TYPE waymesh_terminal_resets_total counter\n")
		fmt.Fprintf(rw, "waymesh_terminal_resets_total{world=%q} %d\n", *worldID, m.TerminalResets)
	})

	adminapi.NewServer(w, logger).Register(mux)

	if *pprofHTTP {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	srv := &http.Server{Addr: *addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, c := context.WithTimeout(context.Background(), 5*time.Second)
		defer c()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Printf("listening addr=%s world=%s seed=%d tick_rate=%d", *addr, *worldID, *seed, tune.TickRateHz)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("http: %v", err)
	}
}

// multiAuditLogger fans an audit entry out to the JSONL log and the index.
type multiAuditLogger struct {
	a world.AuditLogger
	b world.AuditLogger
}

func (m multiAuditLogger) WriteAudit(e world.AuditEntry) error {
	errA := m.a.WriteAudit(e)
	errB := m.b.WriteAudit(e)
	if errA != nil {
		return errA
	}
	return errB
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
