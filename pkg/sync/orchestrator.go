package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/legisync/legisync/pkg/model"
)

// SyncCongress creates a snapshot and fans out one batch chain per bill
// type, staggered so eight chains do not hit the upstream at once. It only
// enqueues; the dispatcher does the crawling.
func (s *Service) SyncCongress(ctx context.Context, congressNum int, syncType model.SyncType, updatedSince *time.Time, stagger time.Duration) (string, error) {
	snapshotID, err := s.store.CreateSyncSnapshot(ctx, syncType, congressNum)
	if err != nil {
		return "", fmt.Errorf("create snapshot: %w", err)
	}

	now := s.now()
	for i, bt := range model.BillTypes {
		job := BatchJob{
			SnapshotID:   snapshotID,
			Congress:     congressNum,
			BillType:     bt,
			UpdatedSince: updatedSince,
		}
		runAt := now.Add(time.Duration(i) * stagger)
		if _, err := s.store.ScheduleJob(ctx, JobSyncBatch, job, runAt); err != nil {
			return "", fmt.Errorf("schedule %s chain: %w", bt, err)
		}
	}

	s.logger.Info("congress sync scheduled",
		"congress", congressNum, "syncType", syncType, "snapshot", snapshotID,
		"chains", len(model.BillTypes), "stagger", stagger)
	return snapshotID, nil
}

// IncrementalSync crawls the current congress for bills updated in the
// lookback window. The window overlaps the daily cadence by a couple of
// hours so a late run cannot open a gap.
func (s *Service) IncrementalSync(ctx context.Context) (string, error) {
	now := s.now()
	since := now.Add(-time.Duration(s.tuning.IncrementalLookbackHrs) * time.Hour)
	return s.SyncCongress(ctx, model.CurrentCongress(now), model.SyncIncremental, &since, s.tuning.IncrementalStagger)
}

// FullSync crawls the current congress with the wide lookback window.
func (s *Service) FullSync(ctx context.Context) (string, error) {
	now := s.now()
	since := now.AddDate(0, 0, -s.tuning.FullLookbackDays)
	return s.SyncCongress(ctx, model.CurrentCongress(now), model.SyncFull, &since, s.tuning.FullStagger)
}

// InitialHistoricalPull schedules unfiltered crawls of the current congress
// and its predecessors, spaced hours apart to respect the upstream quota.
func (s *Service) InitialHistoricalPull(ctx context.Context, congresses int) error {
	if congresses <= 0 {
		congresses = 3
	}
	now := s.now()
	current := model.CurrentCongress(now)

	for k := 0; k < congresses; k++ {
		job := CongressJob{Congress: current - k, SyncType: model.SyncHistorical}
		runAt := now.Add(time.Duration(k) * s.tuning.HistoricalCongressGap)
		if _, err := s.store.ScheduleJob(ctx, JobSyncCongress, job, runAt); err != nil {
			return fmt.Errorf("schedule historical congress %d: %w", job.Congress, err)
		}
	}
	s.logger.Info("historical pull scheduled", "congresses", congresses, "newest", current)
	return nil
}

// RunCongressJob executes a deferred whole-congress crawl. Historical crawls
// are unfiltered; anything else reuses the full-sync window.
func (s *Service) RunCongressJob(ctx context.Context, job CongressJob) error {
	var since *time.Time
	stagger := s.tuning.FullStagger
	if job.SyncType != model.SyncHistorical {
		t := s.now().AddDate(0, 0, -s.tuning.FullLookbackDays)
		since = &t
	}
	_, err := s.SyncCongress(ctx, job.Congress, job.SyncType, since, stagger)
	return err
}
