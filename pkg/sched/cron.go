package sched

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/legisync/legisync/pkg/store"
)

// Entry is one wall-clock schedule line: fire at Hour:00 UTC daily, or
// weekly when Weekday is set. Firing only enqueues a job; the dispatcher
// does the work.
type Entry struct {
	Name    string
	Hour    int
	Weekday *time.Weekday
	Kind    string
	Payload any
}

// NextFire returns the first time strictly after now at which the entry
// fires.
func (e Entry) NextFire(now time.Time) time.Time {
	now = now.UTC()
	candidate := time.Date(now.Year(), now.Month(), now.Day(), e.Hour, 0, 0, 0, time.UTC)

	if e.Weekday == nil {
		if !candidate.After(now) {
			candidate = candidate.AddDate(0, 0, 1)
		}
		return candidate
	}

	for candidate.Weekday() != *e.Weekday || !candidate.After(now) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}

// Cron sleeps until the next entry is due and enqueues its job. Entries due
// at the same instant fire together.
type Cron struct {
	store   *store.Store
	entries []Entry
	logger  *slog.Logger
	now     func() time.Time
}

// NewCron builds the scheduler over the given entries.
func NewCron(st *store.Store, entries []Entry, logger *slog.Logger) *Cron {
	if logger == nil {
		logger = slog.Default().With("component", "cron")
	}
	return &Cron{
		store:   st,
		entries: entries,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Next computes the earliest upcoming fire time and the entries firing then.
func (c *Cron) Next(now time.Time) (time.Time, []Entry) {
	var at time.Time
	var due []Entry
	for _, e := range c.entries {
		fire := e.NextFire(now)
		switch {
		case at.IsZero() || fire.Before(at):
			at = fire
			due = []Entry{e}
		case fire.Equal(at):
			due = append(due, e)
		}
	}
	return at, due
}

// Run fires entries until the context is cancelled.
func (c *Cron) Run(ctx context.Context) error {
	if len(c.entries) == 0 {
		<-ctx.Done()
		return ctx.Err()
	}
	c.logger.Info("cron started", "entries", len(c.entries))

	for {
		now := c.now()
		at, due := c.Next(now)

		timer := time.NewTimer(at.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			c.logger.Info("cron stopped")
			return ctx.Err()
		case <-timer.C:
		}

		for _, e := range due {
			if _, err := c.store.ScheduleJob(ctx, e.Kind, e.Payload, c.now()); err != nil {
				c.logger.Error("cron enqueue failed", "entry", e.Name, "error", err)
				continue
			}
			c.logger.Info("cron fired", "entry", e.Name, "kind", e.Kind)
		}
	}
}

// Weekly is a convenience for building weekly entries.
func Weekly(d time.Weekday) *time.Weekday { return &d }

// String describes the entry's schedule for logs.
func (e Entry) String() string {
	if e.Weekday != nil {
		return fmt.Sprintf("%s %s %02d:00 UTC", e.Name, e.Weekday, e.Hour)
	}
	return fmt.Sprintf("%s daily %02d:00 UTC", e.Name, e.Hour)
}
