package sync

import (
	"time"

	"github.com/legisync/legisync/pkg/model"
)

// Job kinds dispatched through the durable queue.
const (
	JobSyncBatch    = "sync_batch"
	JobSyncCongress = "sync_congress"
	JobIncremental  = "incremental_sync"
	JobFull         = "full_sync"
	JobRepair       = "repair"
	JobBackfill     = "backfill"
	JobRecompute    = "recompute"
)

// BatchJob is one link of a per-bill-type page chain. Each executed batch
// schedules its successor, so the chain advances one page at a time and
// survives restarts between pages.
type BatchJob struct {
	SnapshotID   string         `json:"snapshotId"`
	Congress     int            `json:"congress"`
	BillType     model.BillType `json:"billType"`
	Offset       int            `json:"offset"`
	UpdatedSince *time.Time     `json:"updatedSince,omitempty"`
}

// CongressJob asks for a whole-congress crawl, used by the historical pull to
// space congresses hours apart.
type CongressJob struct {
	Congress int            `json:"congress"`
	SyncType model.SyncType `json:"syncType"`
}

// RepairJob re-fetches missing endpoints for incomplete bills. A nil congress
// repairs across all congresses.
type RepairJob struct {
	Congress *int `json:"congress,omitempty"`
}

// BackfillJob reconstructs endpoint bitmasks for legacy rows from child-table
// presence. No HTTP is involved.
type BackfillJob struct {
	Congress *int `json:"congress,omitempty"`
}

// RecomputeJob rebuilds the precomputed aggregates. Congress 0 means every
// congress present in the store.
type RecomputeJob struct {
	Congress int `json:"congress"`
}
