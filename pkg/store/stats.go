package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/legisync/legisync/pkg/model"
)

// ReplaceCongressStats writes the aggregate for one congress in a single
// transaction. Readers see either the previous payload or the new one,
// never a torn row.
func (s *Store) ReplaceCongressStats(ctx context.Context, stats *model.CongressStats) error {
	payload, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("store: marshal congress stats: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		INSERT INTO congress_stats (congress, payload, computed_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (congress) DO UPDATE SET
			payload = excluded.payload,
			computed_at = excluded.computed_at
	`
	if _, err := tx.ExecContext(ctx, query, stats.Congress, string(payload), time.Now().UTC()); err != nil {
		return err
	}
	return tx.Commit()
}

// GetCongressStats reads the aggregate for one congress, or ErrNotFound.
func (s *Store) GetCongressStats(ctx context.Context, congress int) (*model.CongressStats, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM congress_stats WHERE congress = $1`, congress).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var stats model.CongressStats
	if err := json.Unmarshal([]byte(payload), &stats); err != nil {
		return nil, fmt.Errorf("store: corrupt stats payload for congress %d: %w", congress, err)
	}
	return &stats, nil
}

// PolicyAreaCount is one group of the policy-area ranking query.
type PolicyAreaCount struct {
	Name  string
	Count int
}

// TopPolicyAreas groups the congress's bill subjects by policy area, top n
// by count, ties broken alphabetically.
func (s *Store) TopPolicyAreas(ctx context.Context, congress, n int) ([]PolicyAreaCount, error) {
	query := `
		SELECT s.policy_area_name, COUNT(*) AS cnt
		FROM bill_subjects s
		JOIN bills b ON b.bill_id = s.bill_id
		WHERE b.congress = $1 AND s.policy_area_name <> ''
		GROUP BY s.policy_area_name
		ORDER BY cnt DESC, s.policy_area_name ASC
		LIMIT ` + itoa(n)
	rows, err := s.db.QueryContext(ctx, query, congress)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []PolicyAreaCount
	for rows.Next() {
		var p PolicyAreaCount
		if err := rows.Scan(&p.Name, &p.Count); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SponsorCount is one group of the sponsor ranking query.
type SponsorCount struct {
	Name  string
	Party string
	State string
	Count int
}

// TopSponsors groups the congress's bills by sponsor full name, top n by
// count, ties broken alphabetically. Party and state come from any
// representative row of the group.
func (s *Store) TopSponsors(ctx context.Context, congress, n int) ([]SponsorCount, error) {
	query := `
		SELECT sponsor_first_name || ' ' || sponsor_last_name AS name,
			MAX(sponsor_party), MAX(sponsor_state), COUNT(*) AS cnt
		FROM bills
		WHERE congress = $1 AND sponsor_last_name <> ''
		GROUP BY name
		ORDER BY cnt DESC, name ASC
		LIMIT ` + itoa(n)
	rows, err := s.db.QueryContext(ctx, query, congress)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []SponsorCount
	for rows.Next() {
		var sp SponsorCount
		if err := rows.Scan(&sp.Name, &sp.Party, &sp.State, &sp.Count); err != nil {
			return nil, err
		}
		out = append(out, sp)
	}
	return out, rows.Err()
}

// ActionDates lists (bill_id, action_date, action_code, text, type) for all
// actions of a congress, ordered by bill then date. Feeds the timeline
// recompute.
func (s *Store) ActionDates(ctx context.Context, congress int) ([]model.BillAction, error) {
	query := `
		SELECT a.bill_id, a.action_date, a.action_code, a.text, a.type
		FROM bill_actions a
		JOIN bills b ON b.bill_id = a.bill_id
		WHERE b.congress = $1
		ORDER BY a.bill_id, a.action_date
	`
	rows, err := s.db.QueryContext(ctx, query, congress)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []model.BillAction
	for rows.Next() {
		var a model.BillAction
		if err := rows.Scan(&a.BillID, &a.ActionDate, &a.ActionCode, &a.Text, &a.Type); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Completeness summarizes endpoint-bitmask coverage, optionally scoped to
// one congress.
func (s *Store) Completeness(ctx context.Context, congress *int) (model.Completeness, error) {
	query := `
		SELECT COUNT(*),
			COUNT(CASE WHEN synced_endpoints = $1 THEN 1 END),
			COUNT(CASE WHEN synced_endpoints IS NOT NULL AND synced_endpoints < $1 THEN 1 END),
			COUNT(CASE WHEN synced_endpoints IS NULL THEN 1 END)
		FROM bills
	`
	args := []any{model.EndpointsAll}
	if congress != nil {
		query += ` WHERE congress = $2`
		args = append(args, *congress)
	}

	var c model.Completeness
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&c.Total, &c.Complete, &c.Partial, &c.Legacy)
	return c, err
}
