// Package indexdb maintains a queryable sqlite index next to the JSONL logs:
// per-tick agent counts, the audit trail, and stuck episodes. All writes go
// through a buffered channel to a single writer goroutine so the world loop
// never blocks on the database.
package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"waymesh.ai/internal/sim/world"
)

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropTick  atomic.Uint64
	dropStuck atomic.Uint64
	dropAudit atomic.Uint64
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqStuck
	reqAudit
)

type req struct {
	kind reqKind

	tick  tickRow
	stuck stuckRow
	audit world.AuditEntry
}

type tickRow struct {
	Tick   uint64
	Agents int
	Moving int
}

type stuckRow struct {
	Tick     uint64
	AgentID  string
	Kind     string
	Level    int
	Strategy string
	Resolved bool
}

// Stats reports queue health for the debug endpoint.
type Stats struct {
	QueueDepth     int
	QueueCapacity  int
	DropTickTotal  uint64
	DropStuckTotal uint64
	DropAuditTotal uint64
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		// Sized for bursts of stuck episodes across many agents without
		// stalling the sim.
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads.
	// NORMAL is a decent durability/perf tradeoff for a secondary index.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ticks (
			tick INTEGER PRIMARY KEY,
			agents INTEGER NOT NULL,
			moving INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS stuck_episodes (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			agent_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			level INTEGER NOT NULL,
			strategy TEXT,
			resolved INTEGER NOT NULL,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_stuck_agent_tick ON stuck_episodes(agent_id, tick);`,
		`CREATE TABLE IF NOT EXISTS audits (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			agent_id TEXT NOT NULL,
			action TEXT NOT NULL,
			tx REAL NOT NULL,
			ty REAL NOT NULL,
			tz REAL NOT NULL,
			accepted INTEGER NOT NULL,
			reason TEXT,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_agent_tick ON audits(agent_id, tick);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:     len(s.ch),
		QueueCapacity:  cap(s.ch),
		DropTickTotal:  s.dropTick.Load(),
		DropStuckTotal: s.dropStuck.Load(),
		DropAuditTotal: s.dropAudit.Load(),
	}
}

// EnqueueTick implements world.IndexWriter.
func (s *SQLiteIndex) EnqueueTick(tick uint64, agents int, moving int) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqTick, tick: tickRow{Tick: tick, Agents: agents, Moving: moving}}:
	default:
		// Drop if the indexer falls behind; JSONL logs remain the source
		// of truth.
		s.dropTick.Add(1)
	}
}

// EnqueueStuck implements world.IndexWriter.
func (s *SQLiteIndex) EnqueueStuck(tick uint64, agentID, kind string, level int, strategy string, resolved bool) {
	if s == nil || s.closed.Load() {
		return
	}
	r := stuckRow{Tick: tick, AgentID: agentID, Kind: kind, Level: level, Strategy: strategy, Resolved: resolved}
	select {
	case s.ch <- req{kind: reqStuck, stuck: r}:
	default:
		s.dropStuck.Add(1)
	}
}

// WriteAudit implements world.AuditLogger, mirroring the audit trail into a
// queryable table.
func (s *SQLiteIndex) WriteAudit(entry world.AuditEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqAudit, audit: entry}:
	default:
		s.dropAudit.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertTick, _ := s.db.Prepare(`INSERT OR REPLACE INTO ticks(tick,agents,moving) VALUES(?,?,?)`)
	insertStuck, _ := s.db.Prepare(`INSERT OR REPLACE INTO stuck_episodes(tick,seq,agent_id,kind,level,strategy,resolved) VALUES(?,?,?,?,?,?,?)`)
	insertAudit, _ := s.db.Prepare(`INSERT OR REPLACE INTO audits(tick,seq,agent_id,action,tx,ty,tz,accepted,reason,raw_json) VALUES(?,?,?,?,?,?,?,?,?,?)`)
	defer func() {
		if insertTick != nil {
			_ = insertTick.Close()
		}
		if insertStuck != nil {
			_ = insertStuck.Close()
		}
		if insertAudit != nil {
			_ = insertAudit.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second

		lastAuditTick uint64
		auditSeq      int
		lastStuckTick uint64
		stuckSeq      int
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqTick:
			if insertTick == nil {
				continue
			}
			if _, err := tx.Stmt(insertTick).Exec(int64(r.tick.Tick), r.tick.Agents, r.tick.Moving); err != nil {
				rollback()
				continue
			}
			opCount++

		case reqStuck:
			if insertStuck == nil {
				continue
			}
			e := r.stuck
			if e.Tick != lastStuckTick {
				lastStuckTick = e.Tick
				stuckSeq = 0
			}
			seq := stuckSeq
			stuckSeq++
			resolved := 0
			if e.Resolved {
				resolved = 1
			}
			if _, err := tx.Stmt(insertStuck).Exec(
				int64(e.Tick), seq, e.AgentID, e.Kind, e.Level, e.Strategy, resolved,
			); err != nil {
				rollback()
				continue
			}
			opCount++

		case reqAudit:
			if insertAudit == nil {
				continue
			}
			a := r.audit
			if a.Tick != lastAuditTick {
				lastAuditTick = a.Tick
				auditSeq = 0
			}
			seq := auditSeq
			auditSeq++
			accepted := 0
			if a.Accepted {
				accepted = 1
			}
			raw, _ := json.Marshal(a)
			if _, err := tx.Stmt(insertAudit).Exec(
				int64(a.Tick), seq, a.AgentID, a.Action,
				a.Target[0], a.Target[1], a.Target[2],
				accepted, a.Reason, string(raw),
			); err != nil {
				rollback()
				continue
			}
			opCount++
		}
		flushIfNeeded()
	}

	commit()
}
