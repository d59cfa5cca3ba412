package sync

import (
	"context"
	"fmt"
)

// BackfillSyncStatus reconstructs the endpoint bitmask for one page of
// legacy rows from child-table presence. The detail bit is implied by the
// bill row itself; the derived mask can only understate completeness, never
// overstate it, so repair remains safe to run afterwards. No HTTP happens
// here. A full page reschedules itself until no legacy rows remain.
func (s *Service) BackfillSyncStatus(ctx context.Context, job BackfillJob) error {
	rows, err := s.store.ListLegacyBills(ctx, job.Congress, s.tuning.BackfillBatchSize)
	if err != nil {
		return fmt.Errorf("list legacy: %w", err)
	}

	now := s.now()
	for _, b := range rows {
		presence, err := s.store.GetChildPresence(ctx, b.BillID)
		if err != nil {
			return fmt.Errorf("child presence %s: %w", b.BillID, err)
		}
		mask := presence.MaskFromChildren()
		if err := s.store.UpdateBillSyncStatus(ctx, b.BillID, mask, now); err != nil {
			return fmt.Errorf("backfill mask %s: %w", b.BillID, err)
		}
	}

	if len(rows) == s.tuning.BackfillBatchSize {
		runAt := s.now().Add(s.tuning.BackfillRescheduleDelay)
		if _, err := s.store.ScheduleJob(ctx, JobBackfill, job, runAt); err != nil {
			return fmt.Errorf("reschedule backfill: %w", err)
		}
	}
	s.logger.Info("backfill page done", "bills", len(rows))
	return nil
}
