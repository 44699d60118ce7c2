package domain

import "time"

// Job types recorded in the collection-run ledger.
const (
	JobHistory       = "history"
	JobHistoryBackup = "history_backup"
	JobNews          = "news"
	JobSocial        = "social"
	JobLive          = "live"
	JobSentiment     = "sentiment"
)

// Run scopes.
const (
	ScopeUniverse    = "universe"
	ScopeIncremental = "incremental"
)

// CollectionRun is one dispatched collection job's outcome, persisted to the
// collection_runs ledger when a Postgres DSN is configured.
type CollectionRun struct {
	ID         int64
	JobType    string
	Scope      string
	Assets     int // number of assets the job covered
	Records    int // rows inserted across all merge stores
	StartedAt  time.Time
	FinishedAt time.Time
	Error      string // empty on success
}
