package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the ingestion counters. A nil *Metrics is valid and records
// nothing, so callers never need to branch on whether telemetry is on.
type Metrics struct {
	billsSynced     metric.Int64Counter
	chainsCompleted metric.Int64Counter
	jobsExecuted    metric.Int64Counter
}

// NewMetrics registers the ingestion counters on the provider's meter.
func NewMetrics(p *Provider) (*Metrics, error) {
	meter := p.Meter()
	m := &Metrics{}

	var err error
	m.billsSynced, err = meter.Int64Counter("legisync.bills.synced",
		metric.WithDescription("Bills assembled, by outcome"),
		metric.WithUnit("{bill}"),
	)
	if err != nil {
		return nil, err
	}

	m.chainsCompleted, err = meter.Int64Counter("legisync.chains.completed",
		metric.WithDescription("Batch chains run to completion, by bill type"),
		metric.WithUnit("{chain}"),
	)
	if err != nil {
		return nil, err
	}

	m.jobsExecuted, err = meter.Int64Counter("legisync.jobs.executed",
		metric.WithDescription("Durable jobs executed, by kind and outcome"),
		metric.WithUnit("{job}"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// BillSynced counts one assembled bill.
func (m *Metrics) BillSynced(ctx context.Context, success bool) {
	if m == nil || m.billsSynced == nil {
		return
	}
	m.billsSynced.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", success)))
}

// ChainCompleted counts one finished batch chain.
func (m *Metrics) ChainCompleted(ctx context.Context, billType string) {
	if m == nil || m.chainsCompleted == nil {
		return
	}
	m.chainsCompleted.Add(ctx, 1, metric.WithAttributes(attribute.String("bill_type", billType)))
}

// JobExecuted counts one dispatched job.
func (m *Metrics) JobExecuted(ctx context.Context, kind string, success bool) {
	if m == nil || m.jobsExecuted == nil {
		return
	}
	m.jobsExecuted.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.Bool("success", success),
	))
}
