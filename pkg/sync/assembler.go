package sync

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/legisync/legisync/pkg/congress"
	"github.com/legisync/legisync/pkg/model"
	"github.com/legisync/legisync/pkg/stage"
)

// designatorRe strips the leading bill designator from a title, e.g.
// "H.R. 1234 - Lower Energy Costs Act" keeps only the act name. Longer
// alternatives come first so "S.J.Res." is not eaten by "S.".
var designatorRe = regexp.MustCompile(
	`^(H\.R\.|H\.J\.Res\.|H\.Con\.Res\.|H\.Res\.|S\.J\.Res\.|S\.Con\.Res\.|S\.Res\.|S\.)\s*\d+\s*[-–:]\s*`)

// TitleWithoutNumber returns the title with its bill designator prefix
// removed, or the title unchanged when no designator is present.
func TitleWithoutNumber(title string) string {
	return strings.TrimSpace(designatorRe.ReplaceAllString(title, ""))
}

// AssembleBill fetches the five endpoints of one bill in sequence, persists
// what each contributed, and ORs the earned bits into the bill's endpoint
// bitmask. A detail failure fails the bill; a child endpoint failure only
// withholds that endpoint's bit. Returns the bits earned this pass.
func (s *Service) AssembleBill(ctx context.Context, congressNum int, billType model.BillType, number int) (int, error) {
	billID := model.BillID(congressNum, billType, number)
	log := s.logger.With("bill", billID)

	detail, err := s.client.GetBillDetail(ctx, congressNum, billType, number)
	if err != nil {
		return 0, fmt.Errorf("detail %s: %w", billID, err)
	}

	// Actions feed both the child table and the stage classifier, so they
	// are fetched before the bill row is written. A 404 leaves the bill at
	// Introduced without the actions bit.
	items, actionsErr := s.client.GetBillActions(ctx, congressNum, billType, number)
	actionsAbsent := errors.Is(actionsErr, congress.ErrNotFound)
	if actionsAbsent {
		items, actionsErr = nil, nil
	}

	classified := make([]stage.Action, len(items))
	for i, a := range items {
		classified[i] = stage.Action{Text: a.Text, Type: a.Type, ActionCode: a.ActionCode}
	}
	st, desc := stage.Classify(classified)

	bill := &model.Bill{
		BillID:             billID,
		Congress:           congressNum,
		BillType:           billType,
		BillNumber:         number,
		Title:              detail.Title,
		TitleWithoutNumber: TitleWithoutNumber(detail.Title),
		IntroducedDate:     detail.IntroducedDate,
		Stage:              st,
		StageDescription:   desc,
	}
	if len(detail.Sponsors) > 0 {
		sp := detail.Sponsors[0]
		bill.SponsorFirstName = sp.FirstName
		bill.SponsorLastName = sp.LastName
		bill.SponsorParty = sp.Party
		bill.SponsorState = sp.State
	}
	if err := s.store.UpsertBill(ctx, bill); err != nil {
		return 0, fmt.Errorf("upsert bill %s: %w", billID, err)
	}
	bits := model.EndpointDetail

	switch {
	case actionsErr != nil:
		log.Warn("actions fetch failed", "error", actionsErr)
	case actionsAbsent:
		// no bit
	default:
		if err := s.persistActions(ctx, billID, items); err != nil {
			log.Warn("actions persist failed", "error", err)
		} else {
			bits |= model.EndpointActions
		}
	}

	if b, err := s.syncSubjects(ctx, billID, congressNum, billType, number); err != nil {
		log.Warn("subjects sync failed", "error", err)
	} else {
		bits |= b
	}

	if b, err := s.syncSummaries(ctx, billID, congressNum, billType, number); err != nil {
		log.Warn("summaries sync failed", "error", err)
	} else {
		bits |= b
	}

	if b, err := s.syncText(ctx, billID, congressNum, billType, number); err != nil {
		log.Warn("text sync failed", "error", err)
	} else {
		bits |= b
	}

	if err := s.store.UpdateBillSyncStatus(ctx, billID, bits, s.now()); err != nil {
		return bits, fmt.Errorf("sync status %s: %w", billID, err)
	}
	return bits, nil
}

func (s *Service) persistActions(ctx context.Context, billID string, items []congress.ActionItem) error {
	actions := make([]model.BillAction, 0, len(items))
	for _, a := range items {
		actions = append(actions, model.BillAction{
			BillID:           billID,
			ActionCode:       a.ActionCode,
			ActionDate:       a.ActionDate,
			SourceSystemCode: a.SourceSystem.Code,
			SourceSystemName: a.SourceSystem.Name,
			Text:             a.Text,
			Type:             a.Type,
		})
	}
	return s.store.UpsertBillActions(ctx, billID, actions)
}

// syncSubjects earns the subjects bit on a successful fetch, whether or not a
// policy area is present. A 404 earns nothing and is not an error.
func (s *Service) syncSubjects(ctx context.Context, billID string, congressNum int, billType model.BillType, number int) (int, error) {
	pa, err := s.client.GetBillSubjects(ctx, congressNum, billType, number)
	if errors.Is(err, congress.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if pa != nil {
		subj := &model.BillSubject{
			BillID:               billID,
			PolicyAreaName:       pa.Name,
			PolicyAreaUpdateDate: pa.UpdateDate,
		}
		if err := s.store.UpsertBillSubject(ctx, subj); err != nil {
			return 0, err
		}
	}
	return model.EndpointSubjects, nil
}

func (s *Service) syncSummaries(ctx context.Context, billID string, congressNum int, billType model.BillType, number int) (int, error) {
	items, err := s.client.GetBillSummaries(ctx, congressNum, billType, number)
	if errors.Is(err, congress.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	for _, item := range items {
		sum := &model.BillSummary{
			BillID:      billID,
			VersionCode: item.VersionCode,
			ActionDate:  item.ActionDate,
			ActionDesc:  item.ActionDesc,
			Text:        item.Text,
			UpdateDate:  item.UpdateDate,
		}
		if err := s.store.UpsertBillSummary(ctx, sum); err != nil {
			return 0, err
		}
	}
	return model.EndpointSummaries, nil
}

// syncText stores only the latest text version; upstream orders the list
// oldest first. The rendition body is archived when an archive is configured.
func (s *Service) syncText(ctx context.Context, billID string, congressNum int, billType model.BillType, number int) (int, error) {
	versions, err := s.client.GetBillTextVersions(ctx, congressNum, billType, number)
	if errors.Is(err, congress.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(versions) == 0 {
		return model.EndpointText, nil
	}

	latest := versions[len(versions)-1]
	txt := &model.BillText{
		BillID:  billID,
		Date:    latest.Date,
		Type:    latest.Type,
		TextURL: latest.URLFor(congress.FormatText),
		PDFURL:  latest.URLFor(congress.FormatPDF),
	}
	if err := s.store.UpsertBillText(ctx, txt); err != nil {
		return 0, err
	}

	if s.archive != nil && txt.TextURL != "" {
		// Archival is best effort; a failure here does not withhold the
		// text bit since the version row is already persisted.
		if body, err := s.client.FetchTextDocument(ctx, txt.TextURL); err != nil {
			s.logger.Warn("text archive fetch failed", "bill", billID, "error", err)
		} else if hash, err := s.archive.Put(ctx, body); err != nil {
			s.logger.Warn("text archive put failed", "bill", billID, "error", err)
		} else {
			s.logger.Debug("text archived", "bill", billID, "hash", hash)
		}
	}
	return model.EndpointText, nil
}
