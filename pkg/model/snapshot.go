package model

import "time"

// SyncType classifies an orchestrated sync run.
type SyncType string

const (
	SyncIncremental SyncType = "incremental"
	SyncFull        SyncType = "full"
	SyncHistorical  SyncType = "historical"
	SyncRepair      SyncType = "repair"
	SyncBackfill    SyncType = "backfill"
)

// SyncStatus is the lifecycle state of a snapshot.
type SyncStatus string

const (
	SyncRunning   SyncStatus = "running"
	SyncCompleted SyncStatus = "completed"
	SyncFailed    SyncStatus = "failed"
)

// SyncSnapshot is the durable record of one orchestrated sync run. Progress
// counters are written as absolute values derived from the chain's offset,
// never as deltas.
type SyncSnapshot struct {
	ID             string
	SyncType       SyncType
	Congress       int
	Status         SyncStatus
	StartedAt      time.Time
	CompletedAt    *time.Time
	TotalProcessed int
	TotalSuccess   int
	TotalFailed    int
	ErrorDetails   string
}

// Completeness summarizes endpoint-bitmask coverage for observability.
type Completeness struct {
	Total    int `json:"total"`
	Complete int `json:"complete"`
	Partial  int `json:"partial"`
	Legacy   int `json:"legacy"`
}
