package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/legisync/legisync/pkg/model"
)

// CreateSyncSnapshot inserts a running snapshot and returns its id.
func (s *Store) CreateSyncSnapshot(ctx context.Context, syncType model.SyncType, congress int) (string, error) {
	id := uuid.NewString()
	query := `
		INSERT INTO sync_snapshots (id, sync_type, congress, status, started_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.db.ExecContext(ctx, query, id, syncType, congress, model.SyncRunning, time.Now().UTC())
	if err != nil {
		return "", err
	}
	return id, nil
}

// SnapshotUpdate carries the counter values for one snapshot update.
// TotalProcessed is absolute, derived from the chain's offset; the success
// and failure counters are running totals maintained by the workers.
type SnapshotUpdate struct {
	Status         model.SyncStatus
	TotalProcessed int
	TotalSuccess   int
	TotalFailed    int
	ErrorDetails   string
}

// UpdateSyncSnapshot applies the update; a terminal status stamps
// completed_at.
func (s *Store) UpdateSyncSnapshot(ctx context.Context, id string, u SnapshotUpdate) error {
	var completedAt any
	if u.Status == model.SyncCompleted || u.Status == model.SyncFailed {
		completedAt = time.Now().UTC()
	}
	query := `
		UPDATE sync_snapshots
		SET status = $2,
		    total_processed = $3,
		    total_success = $4,
		    total_failed = $5,
		    error_details = $6,
		    completed_at = COALESCE($7, completed_at)
		WHERE id = $1
	`
	_, err := s.db.ExecContext(ctx, query, id,
		u.Status, u.TotalProcessed, u.TotalSuccess, u.TotalFailed, u.ErrorDetails, completedAt)
	return err
}

// GetSyncSnapshot returns one snapshot, or ErrNotFound.
func (s *Store) GetSyncSnapshot(ctx context.Context, id string) (*model.SyncSnapshot, error) {
	query := `
		SELECT id, sync_type, congress, status, started_at, completed_at,
			total_processed, total_success, total_failed, error_details
		FROM sync_snapshots WHERE id = $1
	`
	var snap model.SyncSnapshot
	var completed sql.NullTime
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&snap.ID, &snap.SyncType, &snap.Congress, &snap.Status,
		&snap.StartedAt, &completed,
		&snap.TotalProcessed, &snap.TotalSuccess, &snap.TotalFailed, &snap.ErrorDetails,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if completed.Valid {
		t := completed.Time
		snap.CompletedAt = &t
	}
	return &snap, nil
}
