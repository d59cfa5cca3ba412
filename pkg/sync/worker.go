package sync

import (
	"context"
	"fmt"
	"strconv"

	"github.com/legisync/legisync/pkg/model"
	"github.com/legisync/legisync/pkg/store"
)

func snapshotProgress(success, failed, processed int) store.SnapshotUpdate {
	return store.SnapshotUpdate{
		Status:         model.SyncRunning,
		TotalSuccess:   success,
		TotalFailed:    failed,
		TotalProcessed: processed,
	}
}

// SyncBillBatch processes one catalog page: list, assemble every bill on it,
// update the shared snapshot, and either schedule the next page or finish the
// chain. TotalProcessed is written as an absolute value derived from the page
// offset, so a re-delivered batch converges on it; the success and failure
// counters accumulate and will recount the page's bills on redelivery.
//
// Five consecutive bill failures trip the circuit breaker: the snapshot is
// failed and no successor is scheduled.
func (s *Service) SyncBillBatch(ctx context.Context, job BatchJob) error {
	log := s.logger.With("snapshot", job.SnapshotID,
		"congress", job.Congress, "billType", job.BillType, "offset", job.Offset)

	list, err := s.client.ListBills(ctx, job.Congress, job.BillType, job.Offset, s.tuning.BatchSize, job.UpdatedSince)
	if err != nil {
		s.failSnapshot(ctx, job.SnapshotID,
			fmt.Sprintf("list %s offset %d: %v", job.BillType, job.Offset, err))
		return fmt.Errorf("list %s/%d offset %d: %w", job.BillType, job.Congress, job.Offset, err)
	}

	var processed, succeeded, failed, consecutive int
	for _, lb := range list.Bills {
		number, convErr := strconv.Atoi(lb.Number)
		if convErr != nil {
			log.Warn("skipping non-numeric bill number", "number", lb.Number)
			continue
		}

		processed++
		_, err := s.AssembleBill(ctx, job.Congress, job.BillType, number)
		s.metrics.BillSynced(ctx, err == nil)
		if err != nil {
			failed++
			consecutive++
			log.Warn("bill sync failed", "number", number, "consecutiveFailures", consecutive, "error", err)
			if consecutive >= s.tuning.ConsecutiveFailLimit {
				detail := fmt.Sprintf("circuit breaker: %d consecutive failures at %s offset %d, last bill %d: %v",
					consecutive, job.BillType, job.Offset, number, err)
				s.recordProgress(ctx, job, processed, succeeded, failed, detail)
				return fmt.Errorf("batch %s/%d offset %d: %s", job.BillType, job.Congress, job.Offset, detail)
			}
			continue
		}
		succeeded++
		consecutive = 0
	}

	pageFull := len(list.Bills) >= s.tuning.BatchSize
	s.recordProgress(ctx, job, processed, succeeded, failed, "")

	if pageFull {
		next := job
		next.Offset += s.tuning.BatchSize
		runAt := s.now().Add(s.tuning.NextPageDelay)
		if _, err := s.store.ScheduleJob(ctx, JobSyncBatch, next, runAt); err != nil {
			return fmt.Errorf("schedule next page: %w", err)
		}
		log.Info("page done, successor scheduled", "processed", processed, "nextOffset", next.Offset)
		return nil
	}

	// Short or empty page ends this chain. Completion also refreshes the
	// congress aggregates.
	if err := s.completeSnapshot(ctx, job.SnapshotID); err != nil {
		return err
	}
	if _, err := s.store.ScheduleJob(ctx, JobRecompute, RecomputeJob{Congress: job.Congress}, s.now()); err != nil {
		return fmt.Errorf("schedule recompute: %w", err)
	}
	s.metrics.ChainCompleted(ctx, string(job.BillType))
	log.Info("chain complete", "processed", processed, "succeeded", succeeded, "failed", failed)
	return nil
}

// recordProgress folds this page's results into the snapshot. TotalProcessed
// is offset-derived and absolute; success and failure counters accumulate via
// read-modify-write, so a re-delivered page counts its outcomes again. An
// empty detail keeps the snapshot running, a non-empty one fails it.
func (s *Service) recordProgress(ctx context.Context, job BatchJob, processed, succeeded, failed int, detail string) {
	snap, err := s.store.GetSyncSnapshot(ctx, job.SnapshotID)
	if err != nil {
		s.logger.Warn("snapshot read failed", "snapshot", job.SnapshotID, "error", err)
		return
	}

	upd := snapshotProgress(snap.TotalSuccess+succeeded, snap.TotalFailed+failed, job.Offset+processed)
	if detail != "" {
		upd.Status = model.SyncFailed
		upd.ErrorDetails = detail
	}
	if err := s.store.UpdateSyncSnapshot(ctx, job.SnapshotID, upd); err != nil {
		s.logger.Warn("snapshot update failed", "snapshot", job.SnapshotID, "error", err)
	}
}

func (s *Service) failSnapshot(ctx context.Context, snapshotID, detail string) {
	snap, err := s.store.GetSyncSnapshot(ctx, snapshotID)
	if err != nil {
		s.logger.Warn("snapshot read failed", "snapshot", snapshotID, "error", err)
		return
	}
	upd := snapshotProgress(snap.TotalSuccess, snap.TotalFailed, snap.TotalProcessed)
	upd.Status = model.SyncFailed
	upd.ErrorDetails = detail
	if err := s.store.UpdateSyncSnapshot(ctx, snapshotID, upd); err != nil {
		s.logger.Warn("snapshot update failed", "snapshot", snapshotID, "error", err)
	}
}

func (s *Service) completeSnapshot(ctx context.Context, snapshotID string) error {
	snap, err := s.store.GetSyncSnapshot(ctx, snapshotID)
	if err != nil {
		return fmt.Errorf("snapshot read: %w", err)
	}
	upd := snapshotProgress(snap.TotalSuccess, snap.TotalFailed, snap.TotalProcessed)
	upd.Status = model.SyncCompleted
	if err := s.store.UpdateSyncSnapshot(ctx, snapshotID, upd); err != nil {
		return fmt.Errorf("snapshot complete: %w", err)
	}
	return nil
}
