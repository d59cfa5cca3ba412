// Package stats rebuilds the precomputed per-congress aggregates from the
// bill tables. The aggregates are pure projections; recomputing is always
// safe and the serving layer reads only the stored payload.
package stats

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/legisync/legisync/pkg/model"
	"github.com/legisync/legisync/pkg/stage"
	"github.com/legisync/legisync/pkg/store"
)

// DefaultTopN is the ranking depth for policy areas and sponsors.
const DefaultTopN = 10

// Recomputer rebuilds congress aggregates.
type Recomputer struct {
	store  *store.Store
	topN   int
	logger *slog.Logger
	now    func() time.Time
}

// RecomputerOption configures the Recomputer.
type RecomputerOption func(*Recomputer)

// WithTopN overrides the ranking depth.
func WithTopN(n int) RecomputerOption {
	return func(r *Recomputer) {
		if n > 0 {
			r.topN = n
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) RecomputerOption {
	return func(r *Recomputer) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) RecomputerOption {
	return func(r *Recomputer) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRecomputer builds a recomputer.
func NewRecomputer(st *store.Store, opts ...RecomputerOption) *Recomputer {
	r := &Recomputer{
		store:  st,
		topN:   DefaultTopN,
		logger: slog.Default().With("component", "stats"),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RecomputeCongress rebuilds and stores the aggregate for one congress.
func (r *Recomputer) RecomputeCongress(ctx context.Context, congressNum int) error {
	bills, err := r.store.ListBillsByCongress(ctx, congressNum)
	if err != nil {
		return fmt.Errorf("stats: list bills: %w", err)
	}

	agg := &model.CongressStats{
		Congress:   congressNum,
		TotalCount: len(bills),
		ComputedAt: r.now(),
	}
	for _, b := range bills {
		if b.BillType.IsHouse() {
			agg.HouseCount++
		} else {
			agg.SenateCount++
		}
		countStage(&agg.StageCounts, b.Stage)
	}

	areas, err := r.store.TopPolicyAreas(ctx, congressNum, r.topN)
	if err != nil {
		return fmt.Errorf("stats: top policy areas: %w", err)
	}
	for _, a := range areas {
		agg.TopPolicyAreas = append(agg.TopPolicyAreas, model.TopPolicyArea{Name: a.Name, Count: a.Count})
	}

	sponsors, err := r.store.TopSponsors(ctx, congressNum, r.topN)
	if err != nil {
		return fmt.Errorf("stats: top sponsors: %w", err)
	}
	for _, sp := range sponsors {
		agg.TopSponsors = append(agg.TopSponsors, model.TopSponsor{
			Name: sp.Name, Party: sp.Party, State: sp.State, Count: sp.Count,
		})
	}

	timeline, err := r.timelineMetrics(ctx, congressNum)
	if err != nil {
		return fmt.Errorf("stats: timeline: %w", err)
	}
	agg.TimelineMetrics = timeline

	if err := r.store.ReplaceCongressStats(ctx, agg); err != nil {
		return fmt.Errorf("stats: replace aggregate: %w", err)
	}
	r.logger.Info("aggregate recomputed",
		"congress", congressNum, "bills", agg.TotalCount, "timelineStages", len(timeline))
	return nil
}

// RecomputeAll rebuilds aggregates for every congress present in the store.
func (r *Recomputer) RecomputeAll(ctx context.Context) error {
	congresses, err := r.store.ListCongresses(ctx)
	if err != nil {
		return fmt.Errorf("stats: list congresses: %w", err)
	}
	for _, c := range congresses {
		if err := r.RecomputeCongress(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func countStage(sc *model.StageCounts, st int) {
	switch st {
	case stage.Introduced:
		sc.Introduced++
	case stage.InCommittee:
		sc.InCommittee++
	case stage.PassedOneChamber:
		sc.PassedOneChamber++
	case stage.PassedBothChambers:
		sc.PassedBothChamber++
	case stage.Vetoed:
		sc.Vetoed++
	case stage.ToPresident:
		sc.ToPresident++
	case stage.Signed:
		sc.Signed++
	case stage.BecameLaw:
		sc.BecameLaw++
	default:
		sc.Introduced++
	}
}
