package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/legisync/legisync/pkg/congress"
	"github.com/legisync/legisync/pkg/model"
	"github.com/legisync/legisync/pkg/stage"
)

// RepairIncompleteBills processes one page of bills with missing endpoint
// bits, re-fetching only what each bill lacks. Legacy rows first get their
// mask reconstructed from child presence so repair does not re-fetch data
// that is already on disk. A full page reschedules itself; the same
// consecutive-failure breaker as batch sync aborts the pass.
func (s *Service) RepairIncompleteBills(ctx context.Context, job RepairJob) error {
	bills, err := s.store.ListIncompleteBills(ctx, job.Congress, s.tuning.RepairBatchSize)
	if err != nil {
		return fmt.Errorf("list incomplete: %w", err)
	}

	var repaired, consecutive int
	for _, b := range bills {
		if err := s.repairBill(ctx, b); err != nil {
			consecutive++
			s.logger.Warn("bill repair failed", "bill", b.BillID, "consecutiveFailures", consecutive, "error", err)
			if consecutive >= s.tuning.ConsecutiveFailLimit {
				return fmt.Errorf("repair aborted after %d consecutive failures, last bill %s: %w",
					consecutive, b.BillID, err)
			}
			continue
		}
		repaired++
		consecutive = 0
	}

	if len(bills) == s.tuning.RepairBatchSize {
		runAt := s.now().Add(s.tuning.RepairRescheduleDelay)
		if _, err := s.store.ScheduleJob(ctx, JobRepair, job, runAt); err != nil {
			return fmt.Errorf("reschedule repair: %w", err)
		}
	}
	s.logger.Info("repair page done", "examined", len(bills), "repaired", repaired)
	return nil
}

// repairBill ORs in whatever bits this pass could earn, then returns the
// first endpoint error if any. A bill missing its detail bit must re-fetch
// detail before any child endpoint is attempted.
func (s *Service) repairBill(ctx context.Context, b *model.Bill) error {
	mask := b.SyncedMask()
	if b.IsLegacy() {
		presence, err := s.store.GetChildPresence(ctx, b.BillID)
		if err != nil {
			return err
		}
		mask = presence.MaskFromChildren()
		if err := s.store.UpdateBillSyncStatus(ctx, b.BillID, mask, s.now()); err != nil {
			return err
		}
	}

	missing := model.EndpointsAll &^ mask
	if missing == 0 {
		return nil
	}

	var bits int
	var firstErr error

	if missing&model.EndpointDetail != 0 {
		if err := s.refetchDetail(ctx, b); err != nil {
			return err
		}
		bits |= model.EndpointDetail
	}

	if missing&model.EndpointActions != 0 {
		b2, err := s.refetchActions(ctx, b)
		bits |= b2
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if missing&model.EndpointSubjects != 0 {
		b2, err := s.syncSubjects(ctx, b.BillID, b.Congress, b.BillType, b.BillNumber)
		bits |= b2
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if missing&model.EndpointSummaries != 0 {
		b2, err := s.syncSummaries(ctx, b.BillID, b.Congress, b.BillType, b.BillNumber)
		bits |= b2
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if missing&model.EndpointText != 0 {
		b2, err := s.syncText(ctx, b.BillID, b.Congress, b.BillType, b.BillNumber)
		bits |= b2
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if bits != 0 {
		if err := s.store.UpdateBillSyncStatus(ctx, b.BillID, bits, s.now()); err != nil {
			return err
		}
	}
	return firstErr
}

// refetchDetail refreshes the bill row's descriptive fields in place,
// keeping the previously classified stage.
func (s *Service) refetchDetail(ctx context.Context, b *model.Bill) error {
	detail, err := s.client.GetBillDetail(ctx, b.Congress, b.BillType, b.BillNumber)
	if err != nil {
		return fmt.Errorf("detail %s: %w", b.BillID, err)
	}

	b.Title = detail.Title
	b.TitleWithoutNumber = TitleWithoutNumber(detail.Title)
	b.IntroducedDate = detail.IntroducedDate
	if len(detail.Sponsors) > 0 {
		sp := detail.Sponsors[0]
		b.SponsorFirstName = sp.FirstName
		b.SponsorLastName = sp.LastName
		b.SponsorParty = sp.Party
		b.SponsorState = sp.State
	}
	return s.store.UpsertBill(ctx, b)
}

// refetchActions pulls the action history, reclassifies the stage and
// refreshes the bill row along with the child rows.
func (s *Service) refetchActions(ctx context.Context, b *model.Bill) (int, error) {
	items, err := s.client.GetBillActions(ctx, b.Congress, b.BillType, b.BillNumber)
	if errors.Is(err, congress.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	if err := s.persistActions(ctx, b.BillID, items); err != nil {
		return 0, err
	}

	classified := make([]stage.Action, len(items))
	for i, a := range items {
		classified[i] = stage.Action{Text: a.Text, Type: a.Type, ActionCode: a.ActionCode}
	}
	b.Stage, b.StageDescription = stage.Classify(classified)
	if err := s.store.UpsertBill(ctx, b); err != nil {
		return 0, err
	}
	return model.EndpointActions, nil
}
