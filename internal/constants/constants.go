package constants

import "time"

const (
	ExternalAPITimeout = 10 * time.Second
	DatabaseTimeout    = 5 * time.Second
	RequestTimeout     = 30 * time.Second
)

const (
	// Bounded retry for reads gating a terminal transition (player stats).
	// Score polling and cosmetic updates are best-effort and never retried.
	CriticalRetryAttempts = 5
	CriticalRetryDelay    = 2 * time.Second
)

const (
	DefaultPollInterval = 30 * time.Second
	PollTickTimeout     = 15 * time.Second

	// Parallelism cap for the per-player Elo fan-out after a finished match.
	EloUpdateWorkers = 4
)

const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
)

const (
	ShutdownTimeout = 5 * time.Second
)

// Pre-match analysis is posted only when at least this many tracked users
// are on the roster, or when a tracked user is the faction captain.
const AnalysisMinTrackedPlayers = 2
