package world

// WorldStats are the process-wide navigation counters. Mutated only on the
// world loop; exported snapshots are value copies.
type WorldStats struct {
	MoveRequests   uint64 `json:"move_requests"`
	MoveAccepted   uint64 `json:"move_accepted"`
	MoveRejected   uint64 `json:"move_rejected"`
	MovesCompleted uint64 `json:"moves_completed"`

	EngineCalls uint64 `json:"engine_calls"`
	CacheHits   uint64 `json:"cache_hits"`
	CacheMisses uint64 `json:"cache_misses"`

	StuckEpisodes    uint64    `json:"stuck_episodes"`
	RecoveryByLevel  [5]uint64 `json:"recovery_by_level"`
	TerminalResets   uint64    `json:"terminal_resets"`
	RecoverySuccess  uint64    `json:"recovery_success"`
	RecoveryFailures uint64    `json:"recovery_failures"`

	Agents int `json:"agents"`
}

// AgentStats are the per-agent counters kept on the navigator.
type AgentStats struct {
	MoveRequests   uint64 `json:"move_requests"`
	MoveAccepted   uint64 `json:"move_accepted"`
	MoveRejected   uint64 `json:"move_rejected"`
	MovesCompleted uint64 `json:"moves_completed"`
	StuckEpisodes  uint64 `json:"stuck_episodes"`
	Recoveries     uint64 `json:"recoveries"`
	TerminalResets uint64 `json:"terminal_resets"`
}
