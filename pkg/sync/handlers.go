package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/legisync/legisync/pkg/sched"
)

// RegisterHandlers binds the sync job kinds to the dispatcher. The
// recompute kind belongs to the stats layer and is wired by the caller.
func (s *Service) RegisterHandlers(d *sched.Dispatcher) {
	d.Register(JobSyncBatch, func(ctx context.Context, payload json.RawMessage) error {
		var job BatchJob
		if err := json.Unmarshal(payload, &job); err != nil {
			return fmt.Errorf("decode batch job: %w", err)
		}
		return s.SyncBillBatch(ctx, job)
	})

	d.Register(JobSyncCongress, func(ctx context.Context, payload json.RawMessage) error {
		var job CongressJob
		if err := json.Unmarshal(payload, &job); err != nil {
			return fmt.Errorf("decode congress job: %w", err)
		}
		return s.RunCongressJob(ctx, job)
	})

	d.Register(JobIncremental, func(ctx context.Context, _ json.RawMessage) error {
		_, err := s.IncrementalSync(ctx)
		return err
	})

	d.Register(JobFull, func(ctx context.Context, _ json.RawMessage) error {
		_, err := s.FullSync(ctx)
		return err
	})

	d.Register(JobRepair, func(ctx context.Context, payload json.RawMessage) error {
		var job RepairJob
		if err := json.Unmarshal(payload, &job); err != nil {
			return fmt.Errorf("decode repair job: %w", err)
		}
		return s.RepairIncompleteBills(ctx, job)
	})

	d.Register(JobBackfill, func(ctx context.Context, payload json.RawMessage) error {
		var job BackfillJob
		if err := json.Unmarshal(payload, &job); err != nil {
			return fmt.Errorf("decode backfill job: %w", err)
		}
		return s.BackfillSyncStatus(ctx, job)
	})
}

// DefaultSchedule is the production cadence: a daily incremental crawl
// before business hours, a weekly full crawl, a weekly repair pass and a
// daily aggregate refresh.
func DefaultSchedule() []sched.Entry {
	return []sched.Entry{
		{Name: "daily-incremental", Hour: 1, Kind: JobIncremental, Payload: struct{}{}},
		{Name: "weekly-full", Hour: 2, Weekday: sched.Weekly(time.Sunday), Kind: JobFull, Payload: struct{}{}},
		{Name: "weekly-repair", Hour: 3, Weekday: sched.Weekly(time.Wednesday), Kind: JobRepair, Payload: RepairJob{}},
		{Name: "daily-stats", Hour: 4, Kind: JobRecompute, Payload: RecomputeJob{}},
	}
}
