package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Job statuses. Claimed jobs that never report back are re-pended by
// RequeueStaleJobs once their lease expires, so a crash between claim and
// completion only delays the job instead of losing it.
const (
	JobPending = "pending"
	JobRunning = "running"
	JobDone    = "done"
	JobFailed  = "failed"
)

// Job is one deferred invocation in the durable queue. The queue survives
// restarts, so a chain that schedules its successor and then crashes does
// not lose the successor.
type Job struct {
	ID      string
	Kind    string
	Payload json.RawMessage
	RunAt   time.Time
}

// ScheduleJob enqueues a job of the given kind to run at runAt. The payload
// is marshalled to JSON.
func (s *Store) ScheduleJob(ctx context.Context, kind string, payload any, runAt time.Time) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("store: marshal job payload: %w", err)
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	query := `
		INSERT INTO jobs (id, kind, payload, run_at, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
	`
	_, err = s.db.ExecContext(ctx, query, id, kind, string(body), runAt.UTC(), JobPending, now)
	if err != nil {
		return "", err
	}
	return id, nil
}

// ClaimDueJobs atomically moves up to limit due pending jobs to running and
// returns them. RETURNING order is driver-dependent; the dispatcher sorts by
// run time before executing.
func (s *Store) ClaimDueJobs(ctx context.Context, now time.Time, limit int) ([]Job, error) {
	query := `
		UPDATE jobs
		SET status = $1, updated_at = $2
		WHERE id IN (
			SELECT id FROM jobs
			WHERE status = $3 AND run_at <= $2
			ORDER BY run_at
			LIMIT ` + itoa(limit) + `
		)
		RETURNING id, kind, payload, run_at
	`
	rows, err := s.db.QueryContext(ctx, query, JobRunning, now.UTC(), JobPending)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var jobs []Job
	for rows.Next() {
		var j Job
		var payload string
		if err := rows.Scan(&j.ID, &j.Kind, &payload, &j.RunAt); err != nil {
			return nil, err
		}
		j.Payload = json.RawMessage(payload)
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// RequeueStaleJobs re-pends running jobs last touched at or before cutoff.
// A job claimed by a process that died before reporting back becomes due
// again once its lease expires; delivery is therefore at least once and
// handlers must tolerate re-execution. Returns how many jobs were re-pended.
func (s *Store) RequeueStaleJobs(ctx context.Context, cutoff time.Time) (int, error) {
	query := `
		UPDATE jobs
		SET status = $1, updated_at = $2
		WHERE status = $3 AND updated_at <= $4
	`
	res, err := s.db.ExecContext(ctx, query, JobPending, time.Now().UTC(), JobRunning, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// MarkJobDone finishes a claimed job.
func (s *Store) MarkJobDone(ctx context.Context, id string) error {
	query := `UPDATE jobs SET status = $2, updated_at = $3 WHERE id = $1`
	_, err := s.db.ExecContext(ctx, query, id, JobDone, time.Now().UTC())
	return err
}

// MarkJobFailed records a job failure with its error text.
func (s *Store) MarkJobFailed(ctx context.Context, id string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	query := `
		UPDATE jobs
		SET status = $2, attempts = attempts + 1, last_error = $3, updated_at = $4
		WHERE id = $1
	`
	_, err := s.db.ExecContext(ctx, query, id, JobFailed, msg, time.Now().UTC())
	return err
}

// PendingJobCount reports how many jobs are waiting, for observability.
func (s *Store) PendingJobCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM jobs WHERE status = $1`, JobPending).Scan(&n)
	return n, err
}
