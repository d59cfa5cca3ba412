package store

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/legisync/legisync/pkg/model"
)

// UpsertBill creates or replaces the descriptive fields of a bill row. The
// sync bookkeeping columns (synced_endpoints, last_sync_attempt) are owned
// by UpdateBillSyncStatus and left untouched on conflict; created_at is
// preserved.
func (s *Store) UpsertBill(ctx context.Context, b *model.Bill) error {
	now := time.Now().UTC()
	query := `
		INSERT INTO bills (
			bill_id, congress, bill_type, bill_number,
			title, title_without_number, introduced_date,
			sponsor_first_name, sponsor_last_name, sponsor_party, sponsor_state,
			stage, stage_description, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14)
		ON CONFLICT (bill_id) DO UPDATE SET
			title = excluded.title,
			title_without_number = excluded.title_without_number,
			introduced_date = excluded.introduced_date,
			sponsor_first_name = excluded.sponsor_first_name,
			sponsor_last_name = excluded.sponsor_last_name,
			sponsor_party = excluded.sponsor_party,
			sponsor_state = excluded.sponsor_state,
			stage = excluded.stage,
			stage_description = excluded.stage_description,
			updated_at = excluded.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		b.BillID, b.Congress, b.BillType, b.BillNumber,
		b.Title, b.TitleWithoutNumber, b.IntroducedDate,
		b.SponsorFirstName, b.SponsorLastName, b.SponsorParty, b.SponsorState,
		b.Stage, b.StageDescription, now,
	)
	return err
}

// UpdateBillSyncStatus ORs bits into the bill's endpoint bitmask and stamps
// the last sync attempt. Legacy NULL masks are treated as zero, which keeps
// the mask monotone non-decreasing across overlapping passes.
func (s *Store) UpdateBillSyncStatus(ctx context.Context, billID string, bits int, lastAttempt time.Time) error {
	query := `
		UPDATE bills
		SET synced_endpoints = COALESCE(synced_endpoints, 0) | $2,
		    last_sync_attempt = $3,
		    updated_at = $3
		WHERE bill_id = $1
	`
	_, err := s.db.ExecContext(ctx, query, billID, bits, lastAttempt.UTC())
	return err
}

// GetBill returns one bill row, or ErrNotFound.
func (s *Store) GetBill(ctx context.Context, billID string) (*model.Bill, error) {
	query := `
		SELECT bill_id, congress, bill_type, bill_number,
			title, title_without_number, introduced_date,
			sponsor_first_name, sponsor_last_name, sponsor_party, sponsor_state,
			stage, stage_description, synced_endpoints, last_sync_attempt,
			created_at, updated_at
		FROM bills WHERE bill_id = $1
	`
	return scanBill(s.db.QueryRowContext(ctx, query, billID))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBill(row rowScanner) (*model.Bill, error) {
	var b model.Bill
	var synced sql.NullInt64
	var lastAttempt sql.NullTime
	err := row.Scan(
		&b.BillID, &b.Congress, &b.BillType, &b.BillNumber,
		&b.Title, &b.TitleWithoutNumber, &b.IntroducedDate,
		&b.SponsorFirstName, &b.SponsorLastName, &b.SponsorParty, &b.SponsorState,
		&b.Stage, &b.StageDescription, &synced, &lastAttempt,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if synced.Valid {
		v := int(synced.Int64)
		b.SyncedEndpoints = &v
	}
	if lastAttempt.Valid {
		b.LastSyncAttempt = lastAttempt.Time
	}
	return &b, nil
}

// UpsertBillActions inserts or replaces the given actions. Rows without an
// action code are dropped; they cannot be keyed.
func (s *Store) UpsertBillActions(ctx context.Context, billID string, actions []model.BillAction) error {
	now := time.Now().UTC()
	query := `
		INSERT INTO bill_actions (
			bill_id, action_date, action_code,
			source_system_code, source_system_name, text, type,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		ON CONFLICT (bill_id, action_date, action_code) DO UPDATE SET
			source_system_code = excluded.source_system_code,
			source_system_name = excluded.source_system_name,
			text = excluded.text,
			type = excluded.type,
			updated_at = excluded.updated_at
	`
	for _, a := range actions {
		if a.ActionCode == "" {
			continue
		}
		_, err := s.db.ExecContext(ctx, query,
			billID, a.ActionDate, a.ActionCode,
			a.SourceSystemCode, a.SourceSystemName, a.Text, a.Type, now,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// UpsertBillSubject creates or replaces the single policy area row of a
// bill.
func (s *Store) UpsertBillSubject(ctx context.Context, subj *model.BillSubject) error {
	now := time.Now().UTC()
	query := `
		INSERT INTO bill_subjects (
			bill_id, policy_area_name, policy_area_update_date, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (bill_id) DO UPDATE SET
			policy_area_name = excluded.policy_area_name,
			policy_area_update_date = excluded.policy_area_update_date,
			updated_at = excluded.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		subj.BillID, subj.PolicyAreaName, subj.PolicyAreaUpdateDate, now)
	return err
}

// UpsertBillSummary inserts the summary, or replaces the stored version iff
// the new update date is strictly greater.
func (s *Store) UpsertBillSummary(ctx context.Context, sum *model.BillSummary) error {
	now := time.Now().UTC()
	query := `
		INSERT INTO bill_summaries (
			bill_id, version_code, action_date, action_desc, text, update_date,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (bill_id, version_code) DO UPDATE SET
			action_date = excluded.action_date,
			action_desc = excluded.action_desc,
			text = excluded.text,
			update_date = excluded.update_date,
			updated_at = excluded.updated_at
		WHERE excluded.update_date > bill_summaries.update_date
	`
	_, err := s.db.ExecContext(ctx, query,
		sum.BillID, sum.VersionCode, sum.ActionDate, sum.ActionDesc,
		sum.Text, sum.UpdateDate, now)
	return err
}

// UpsertBillText stores one text version. Versions are immutable once
// stored; a conflicting insert is a no-op.
func (s *Store) UpsertBillText(ctx context.Context, txt *model.BillText) error {
	now := time.Now().UTC()
	query := `
		INSERT INTO bill_texts (
			bill_id, date, type, text_url, pdf_url, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (bill_id, date, type) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query,
		txt.BillID, txt.Date, txt.Type, txt.TextURL, txt.PDFURL, now)
	return err
}

// GetBillTexts lists the stored text versions of a bill, oldest first.
func (s *Store) GetBillTexts(ctx context.Context, billID string) ([]model.BillText, error) {
	query := `
		SELECT bill_id, date, type, text_url, pdf_url, created_at, updated_at
		FROM bill_texts WHERE bill_id = $1 ORDER BY date
	`
	rows, err := s.db.QueryContext(ctx, query, billID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []model.BillText
	for rows.Next() {
		var t model.BillText
		if err := rows.Scan(&t.BillID, &t.Date, &t.Type, &t.TextURL, &t.PDFURL, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ChildPresence reports which child tables hold at least one row for the
// bill. Used by backfill to reconstruct the endpoint bitmask without HTTP.
type ChildPresence struct {
	HasActions   bool
	HasSubject   bool
	HasSummaries bool
	HasText      bool
}

// GetChildPresence reads the four child tables for one bill.
func (s *Store) GetChildPresence(ctx context.Context, billID string) (ChildPresence, error) {
	query := `
		SELECT
			EXISTS (SELECT 1 FROM bill_actions WHERE bill_id = $1),
			EXISTS (SELECT 1 FROM bill_subjects WHERE bill_id = $1),
			EXISTS (SELECT 1 FROM bill_summaries WHERE bill_id = $1),
			EXISTS (SELECT 1 FROM bill_texts WHERE bill_id = $1)
	`
	var p ChildPresence
	err := s.db.QueryRowContext(ctx, query, billID).Scan(
		&p.HasActions, &p.HasSubject, &p.HasSummaries, &p.HasText)
	return p, err
}

// MaskFromChildren converts child presence into an endpoint bitmask. The
// detail bit is implied by the bill row's existence.
func (p ChildPresence) MaskFromChildren() int {
	mask := model.EndpointDetail
	if p.HasActions {
		mask |= model.EndpointActions
	}
	if p.HasSubject {
		mask |= model.EndpointSubjects
	}
	if p.HasSummaries {
		mask |= model.EndpointSummaries
	}
	if p.HasText {
		mask |= model.EndpointText
	}
	return mask
}

// ListIncompleteBills returns up to limit bills whose endpoint bitmask is
// incomplete, legacy NULL rows first. A nil congress means all congresses.
func (s *Store) ListIncompleteBills(ctx context.Context, congress *int, limit int) ([]*model.Bill, error) {
	query := `
		SELECT bill_id, congress, bill_type, bill_number,
			title, title_without_number, introduced_date,
			sponsor_first_name, sponsor_last_name, sponsor_party, sponsor_state,
			stage, stage_description, synced_endpoints, last_sync_attempt,
			created_at, updated_at
		FROM bills
		WHERE (synced_endpoints IS NULL OR synced_endpoints < $1)
	`
	args := []any{model.EndpointsAll}
	if congress != nil {
		query += ` AND congress = $2`
		args = append(args, *congress)
	}
	query += `
		ORDER BY CASE WHEN synced_endpoints IS NULL THEN 0 ELSE 1 END, bill_id
		LIMIT ` + itoa(limit)

	return s.queryBills(ctx, query, args...)
}

// ListLegacyBills returns up to limit bills with no endpoint bitmask at all.
func (s *Store) ListLegacyBills(ctx context.Context, congress *int, limit int) ([]*model.Bill, error) {
	query := `
		SELECT bill_id, congress, bill_type, bill_number,
			title, title_without_number, introduced_date,
			sponsor_first_name, sponsor_last_name, sponsor_party, sponsor_state,
			stage, stage_description, synced_endpoints, last_sync_attempt,
			created_at, updated_at
		FROM bills
		WHERE synced_endpoints IS NULL
	`
	var args []any
	if congress != nil {
		query += ` AND congress = $1`
		args = append(args, *congress)
	}
	query += ` ORDER BY bill_id LIMIT ` + itoa(limit)

	return s.queryBills(ctx, query, args...)
}

// ListBillsByCongress scans all bills of one congress.
func (s *Store) ListBillsByCongress(ctx context.Context, congress int) ([]*model.Bill, error) {
	query := `
		SELECT bill_id, congress, bill_type, bill_number,
			title, title_without_number, introduced_date,
			sponsor_first_name, sponsor_last_name, sponsor_party, sponsor_state,
			stage, stage_description, synced_endpoints, last_sync_attempt,
			created_at, updated_at
		FROM bills WHERE congress = $1 ORDER BY bill_id
	`
	return s.queryBills(ctx, query, congress)
}

// ListCongresses returns the distinct congress numbers present in the bill
// table.
func (s *Store) ListCongresses(ctx context.Context) ([]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT congress FROM bills ORDER BY congress`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []int
	for rows.Next() {
		var c int
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) queryBills(ctx context.Context, query string, args ...any) ([]*model.Bill, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var bills []*model.Bill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		bills = append(bills, b)
	}
	return bills, rows.Err()
}

func itoa(n int) string {
	if n < 0 {
		n = 0
	}
	return strconv.Itoa(n)
}
