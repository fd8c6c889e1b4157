package indexdb

import (
	"database/sql"

	"waymesh.ai/internal/sim/world"
)

// StuckEpisode is one recorded detector raise or escalation attempt.
type StuckEpisode struct {
	Tick     uint64
	AgentID  string
	Kind     string
	Level    int
	Strategy string
	Resolved bool
}

// TickSummary is one per-tick agent count row.
type TickSummary struct {
	Tick   uint64
	Agents int
	Moving int
}

// StuckEpisodes returns episodes newest-first, optionally filtered by agent.
func (s *SQLiteIndex) StuckEpisodes(agentID string, limit int) ([]StuckEpisode, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows *sql.Rows
	var err error
	if agentID != "" {
		rows, err = s.db.Query(`SELECT tick,agent_id,kind,level,strategy,resolved
			FROM stuck_episodes WHERE agent_id = ? ORDER BY tick DESC, seq DESC LIMIT ?`, agentID, limit)
	} else {
		rows, err = s.db.Query(`SELECT tick,agent_id,kind,level,strategy,resolved
			FROM stuck_episodes ORDER BY tick DESC, seq DESC LIMIT ?`, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StuckEpisode
	for rows.Next() {
		var e StuckEpisode
		var tick int64
		var resolved int
		var strategy sql.NullString
		if err := rows.Scan(&tick, &e.AgentID, &e.Kind, &e.Level, &strategy, &resolved); err != nil {
			return nil, err
		}
		e.Tick = uint64(tick)
		e.Strategy = strategy.String
		e.Resolved = resolved != 0
		out = append(out, e)
	}
	return out, rows.Err()
}

// Ticks returns per-tick summaries for the half-open range [from, to).
func (s *SQLiteIndex) Ticks(from, to uint64) ([]TickSummary, error) {
	rows, err := s.db.Query(`SELECT tick,agents,moving FROM ticks
		WHERE tick >= ? AND tick < ? ORDER BY tick`, int64(from), int64(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TickSummary
	for rows.Next() {
		var t TickSummary
		var tick int64
		if err := rows.Scan(&tick, &t.Agents, &t.Moving); err != nil {
			return nil, err
		}
		t.Tick = uint64(tick)
		out = append(out, t)
	}
	return out, rows.Err()
}

// AuditTrail returns audit entries newest-first for one agent.
func (s *SQLiteIndex) AuditTrail(agentID string, limit int) ([]world.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(`SELECT tick,agent_id,action,tx,ty,tz,accepted,reason
		FROM audits WHERE agent_id = ? ORDER BY tick DESC, seq DESC LIMIT ?`, agentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []world.AuditEntry
	for rows.Next() {
		var e world.AuditEntry
		var tick int64
		var accepted int
		var reason sql.NullString
		if err := rows.Scan(&tick, &e.AgentID, &e.Action,
			&e.Target[0], &e.Target[1], &e.Target[2], &accepted, &reason); err != nil {
			return nil, err
		}
		e.Tick = uint64(tick)
		e.Accepted = accepted != 0
		e.Reason = reason.String
		out = append(out, e)
	}
	return out, rows.Err()
}
