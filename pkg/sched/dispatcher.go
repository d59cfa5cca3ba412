// Package sched executes durable jobs and fires the wall-clock schedule.
// The dispatcher polls the queue for due jobs; cron only enqueues, so a
// missed tick at worst delays work that the next poll still finds.
package sched

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/legisync/legisync/pkg/observability"
	"github.com/legisync/legisync/pkg/store"
)

// Handler executes one job payload.
type Handler func(ctx context.Context, payload json.RawMessage) error

// Dispatcher claims due jobs from the store and runs their handlers. Claims
// are atomic, so several dispatchers can share a queue without double
// execution; claims abandoned by a crashed process are re-pended once their
// lease expires, so delivery is at least once.
type Dispatcher struct {
	store    *store.Store
	handlers map[string]Handler
	poll     time.Duration
	claim    int
	lease    time.Duration
	metrics  *observability.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// DispatcherOption configures the Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithPollInterval sets how often the queue is polled.
func WithPollInterval(d time.Duration) DispatcherOption {
	return func(dp *Dispatcher) {
		if d > 0 {
			dp.poll = d
		}
	}
}

// WithClaimLimit caps how many jobs one poll claims.
func WithClaimLimit(n int) DispatcherOption {
	return func(dp *Dispatcher) {
		if n > 0 {
			dp.claim = n
		}
	}
}

// WithLease sets how long a claimed job may stay running before it is
// considered abandoned and re-pended.
func WithLease(d time.Duration) DispatcherOption {
	return func(dp *Dispatcher) {
		if d > 0 {
			dp.lease = d
		}
	}
}

// WithMetrics wires the job execution counter.
func WithMetrics(m *observability.Metrics) DispatcherOption {
	return func(dp *Dispatcher) { dp.metrics = m }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) DispatcherOption {
	return func(dp *Dispatcher) {
		if l != nil {
			dp.logger = l
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) DispatcherOption {
	return func(dp *Dispatcher) {
		if now != nil {
			dp.now = now
		}
	}
}

// NewDispatcher builds a dispatcher with no handlers registered.
func NewDispatcher(st *store.Store, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		store:    st,
		handlers: make(map[string]Handler),
		poll:     time.Second,
		claim:    10,
		lease:    5 * time.Minute,
		logger:   slog.Default().With("component", "dispatcher"),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register binds a handler to a job kind. Later registrations replace
// earlier ones.
func (d *Dispatcher) Register(kind string, h Handler) {
	d.handlers[kind] = h
}

// RunOnce re-pends claims whose lease has expired, then claims one batch of
// due jobs and executes them in run-at order. Handler errors fail the job but
// not the poll; the count of executed jobs is returned.
func (d *Dispatcher) RunOnce(ctx context.Context) (int, error) {
	requeued, err := d.store.RequeueStaleJobs(ctx, d.now().Add(-d.lease))
	if err != nil {
		return 0, fmt.Errorf("sched: requeue stale jobs: %w", err)
	}
	if requeued > 0 {
		d.logger.Warn("re-pended abandoned jobs", "count", requeued)
	}

	jobs, err := d.store.ClaimDueJobs(ctx, d.now(), d.claim)
	if err != nil {
		return 0, fmt.Errorf("sched: claim jobs: %w", err)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].RunAt.Before(jobs[j].RunAt) })

	for _, job := range jobs {
		d.execute(ctx, job)
	}
	return len(jobs), nil
}

func (d *Dispatcher) execute(ctx context.Context, job store.Job) {
	h, ok := d.handlers[job.Kind]
	if !ok {
		d.logger.Error("no handler for job kind", "kind", job.Kind, "job", job.ID)
		if err := d.store.MarkJobFailed(ctx, job.ID, fmt.Errorf("sched: unknown job kind %q", job.Kind)); err != nil {
			d.logger.Warn("mark failed errored", "job", job.ID, "error", err)
		}
		return
	}

	err := h(ctx, job.Payload)
	d.metrics.JobExecuted(ctx, job.Kind, err == nil)
	if err != nil {
		d.logger.Warn("job failed", "kind", job.Kind, "job", job.ID, "error", err)
		if merr := d.store.MarkJobFailed(ctx, job.ID, err); merr != nil {
			d.logger.Warn("mark failed errored", "job", job.ID, "error", merr)
		}
		return
	}

	if err := d.store.MarkJobDone(ctx, job.ID); err != nil {
		d.logger.Warn("mark done errored", "job", job.ID, "error", err)
	}
}

// Run polls until the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info("dispatcher started", "poll", d.poll, "claimLimit", d.claim)
	ticker := time.NewTicker(d.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("dispatcher stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := d.RunOnce(ctx); err != nil {
				d.logger.Warn("poll failed", "error", err)
			}
		}
	}
}
