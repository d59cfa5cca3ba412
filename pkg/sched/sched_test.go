package sched

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/legisync/legisync/pkg/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestDispatcherRunsDueJobsInOrder(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

	_, err := st.ScheduleJob(ctx, "echo", map[string]string{"v": "second"}, now.Add(-time.Minute))
	require.NoError(t, err)
	_, err = st.ScheduleJob(ctx, "echo", map[string]string{"v": "first"}, now.Add(-time.Hour))
	require.NoError(t, err)
	_, err = st.ScheduleJob(ctx, "echo", map[string]string{"v": "future"}, now.Add(time.Hour))
	require.NoError(t, err)

	var got []string
	d := NewDispatcher(st, WithClock(func() time.Time { return now }))
	d.Register("echo", func(_ context.Context, payload json.RawMessage) error {
		var p map[string]string
		if err := json.Unmarshal(payload, &p); err != nil {
			return err
		}
		got = append(got, p["v"])
		return nil
	})

	n, err := d.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"first", "second"}, got)

	// The future job is untouched.
	pending, err := st.PendingJobCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, pending)
}

func TestDispatcherMarksFailures(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	now := time.Now().UTC()

	_, err := st.ScheduleJob(ctx, "boom", struct{}{}, now.Add(-time.Second))
	require.NoError(t, err)

	d := NewDispatcher(st)
	d.Register("boom", func(context.Context, json.RawMessage) error {
		return errors.New("handler exploded")
	})

	n, err := d.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Failed jobs are not retried by the dispatcher.
	n, err = d.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDispatcherUnknownKindFails(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	_, err := st.ScheduleJob(ctx, "mystery", struct{}{}, time.Now().UTC().Add(-time.Second))
	require.NoError(t, err)

	d := NewDispatcher(st)
	n, err := d.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	pending, err := st.PendingJobCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestDispatcherRedeliversAbandonedJobs(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	now := time.Now().UTC()

	_, err := st.ScheduleJob(ctx, "echo", map[string]string{"v": "orphan"}, now.Add(-time.Minute))
	require.NoError(t, err)

	// Another process claims the job and dies before reporting back.
	claimed, err := st.ClaimDueJobs(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	var runs int
	d := NewDispatcher(st,
		WithLease(time.Minute),
		WithClock(func() time.Time { return time.Now().UTC().Add(time.Hour) }))
	d.Register("echo", func(context.Context, json.RawMessage) error {
		runs++
		return nil
	})

	n, err := d.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, runs, "the abandoned claim must run after its lease expires")
}

func TestEntryNextFireDaily(t *testing.T) {
	e := Entry{Name: "daily", Hour: 1}

	// Before today's fire time.
	now := time.Date(2026, 8, 24, 0, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 8, 24, 1, 0, 0, 0, time.UTC), e.NextFire(now))

	// Exactly at the fire time rolls to tomorrow.
	now = time.Date(2026, 8, 24, 1, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 8, 25, 1, 0, 0, 0, time.UTC), e.NextFire(now))

	// After it, also tomorrow.
	now = time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 8, 25, 1, 0, 0, 0, time.UTC), e.NextFire(now))
}

func TestEntryNextFireWeekly(t *testing.T) {
	e := Entry{Name: "weekly", Hour: 2, Weekday: Weekly(time.Sunday)}

	// 2026-08-24 is a Monday; the next Sunday is the 30th.
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 8, 30, 2, 0, 0, 0, time.UTC), e.NextFire(now))

	// On Sunday before the hour it fires the same day.
	now = time.Date(2026, 8, 30, 1, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 8, 30, 2, 0, 0, 0, time.UTC), e.NextFire(now))

	// On Sunday after the hour it waits a week.
	now = time.Date(2026, 8, 30, 3, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 9, 6, 2, 0, 0, 0, time.UTC), e.NextFire(now))
}

func TestCronNextPicksEarliest(t *testing.T) {
	st := newTestStore(t)
	entries := []Entry{
		{Name: "incremental", Hour: 1, Kind: "incremental_sync"},
		{Name: "stats", Hour: 4, Kind: "recompute"},
		{Name: "full", Hour: 2, Weekday: Weekly(time.Sunday), Kind: "full_sync"},
	}
	c := NewCron(st, entries, nil)

	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	at, due := c.Next(now)
	assert.Equal(t, time.Date(2026, 8, 25, 1, 0, 0, 0, time.UTC), at)
	require.Len(t, due, 1)
	assert.Equal(t, "incremental", due[0].Name)
}
