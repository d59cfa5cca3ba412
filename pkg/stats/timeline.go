package stats

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/legisync/legisync/pkg/model"
	"github.com/legisync/legisync/pkg/stage"
)

// billProgress tracks one bill's earliest trigger dates while walking its
// action history.
type billProgress struct {
	start    time.Time
	reached  map[int]time.Time
	houseAt  time.Time
	senateAt time.Time
}

// timelineMetrics computes, for each stage, the mean days from a bill's
// earliest action to its earliest action carrying that stage's trigger.
// Bills that never reach a stage contribute nothing to it.
func (r *Recomputer) timelineMetrics(ctx context.Context, congressNum int) ([]model.TimelineMetric, error) {
	actions, err := r.store.ActionDates(ctx, congressNum)
	if err != nil {
		return nil, fmt.Errorf("action dates: %w", err)
	}

	sums := make(map[int]float64)
	counts := make(map[int]int)

	var cur string
	var prog *billProgress
	flush := func() {
		if prog == nil {
			return
		}
		prog.resolveChambers()
		for st, at := range prog.reached {
			days := at.Sub(prog.start).Hours() / 24
			if days < 0 {
				continue
			}
			sums[st] += days
			counts[st]++
		}
		prog = nil
	}

	// Rows arrive ordered by bill then date.
	for _, a := range actions {
		if a.BillID != cur {
			flush()
			cur = a.BillID
			prog = &billProgress{reached: make(map[int]time.Time)}
		}
		d, ok := parseActionDate(a.ActionDate)
		if !ok {
			continue
		}
		prog.observe(d, stage.Inspect(stage.Action{Text: a.Text, Type: a.Type, ActionCode: a.ActionCode}))
	}
	flush()

	stages := make([]int, 0, len(counts))
	for st := range counts {
		stages = append(stages, st)
	}
	sort.Ints(stages)

	out := make([]model.TimelineMetric, 0, len(stages))
	for _, st := range stages {
		out = append(out, model.TimelineMetric{Stage: st, AvgDays: sums[st] / float64(counts[st])})
	}
	return out, nil
}

func (p *billProgress) observe(d time.Time, sig stage.Signals) {
	if p.start.IsZero() || d.Before(p.start) {
		p.start = d
	}

	switch {
	case sig.BecameLaw:
		p.mark(stage.BecameLaw, d)
	case sig.Signed:
		p.mark(stage.Signed, d)
	case sig.Vetoed:
		p.mark(stage.Vetoed, d)
	case sig.ToPresident:
		p.mark(stage.ToPresident, d)
	case sig.PassedHouse:
		if p.houseAt.IsZero() || d.Before(p.houseAt) {
			p.houseAt = d
		}
		p.mark(stage.PassedOneChamber, d)
	case sig.PassedSenate:
		if p.senateAt.IsZero() || d.Before(p.senateAt) {
			p.senateAt = d
		}
		p.mark(stage.PassedOneChamber, d)
	case sig.Committee:
		p.mark(stage.InCommittee, d)
	}
}

func (p *billProgress) mark(st int, d time.Time) {
	if prev, ok := p.reached[st]; !ok || d.Before(prev) {
		p.reached[st] = d
	}
}

// resolveChambers derives the both-chambers stage: it is reached when the
// second chamber passes, so the trigger date is the later of the two first
// passages.
func (p *billProgress) resolveChambers() {
	if p.houseAt.IsZero() || p.senateAt.IsZero() {
		return
	}
	at := p.houseAt
	if p.senateAt.After(at) {
		at = p.senateAt
	}
	p.mark(stage.PassedBothChambers, at)
}

var actionDateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05Z",
	time.RFC3339,
}

func parseActionDate(s string) (time.Time, bool) {
	for _, layout := range actionDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
