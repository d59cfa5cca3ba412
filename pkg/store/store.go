// Package store is the durable layer under the ingestion core: bill and
// child-record upserts, sync snapshots, precomputed congress stats, and the
// scheduled-job outbox. It runs on SQLite by default and Postgres when a
// DATABASE_URL is configured; all statements use $n placeholders, which both
// drivers accept.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by point reads that match no row.
var ErrNotFound = errors.New("store: not found")

// Store wraps the SQL database. All writes are single-row upserts; the only
// multi-statement transaction is the per-congress stats replacement.
type Store struct {
	db *sql.DB
}

// New wraps an already-open database handle and runs migrations.
func New(ctx context.Context, db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return s, nil
}

// OpenSQLite opens (or creates) the SQLite store at path.
func OpenSQLite(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	// The ingestion chains share one connection pool; sqlite needs writes
	// serialized.
	db.SetMaxOpenConns(1)
	return New(ctx, db)
}

// OpenPostgres opens the Postgres store at dsn.
func OpenPostgres(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open postgres: %w", err)
	}
	return New(ctx, db)
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

const schema = `
CREATE TABLE IF NOT EXISTS bills (
	bill_id TEXT PRIMARY KEY,
	congress INTEGER NOT NULL,
	bill_type TEXT NOT NULL,
	bill_number INTEGER NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	title_without_number TEXT NOT NULL DEFAULT '',
	introduced_date TEXT NOT NULL DEFAULT '',
	sponsor_first_name TEXT NOT NULL DEFAULT '',
	sponsor_last_name TEXT NOT NULL DEFAULT '',
	sponsor_party TEXT NOT NULL DEFAULT '',
	sponsor_state TEXT NOT NULL DEFAULT '',
	stage INTEGER NOT NULL DEFAULT 20,
	stage_description TEXT NOT NULL DEFAULT 'Introduced',
	synced_endpoints INTEGER,
	last_sync_attempt TIMESTAMP,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_bills_congress ON bills (congress);
CREATE INDEX IF NOT EXISTS idx_bills_congress_type ON bills (congress, bill_type);
CREATE INDEX IF NOT EXISTS idx_bills_synced ON bills (synced_endpoints);

CREATE TABLE IF NOT EXISTS bill_actions (
	bill_id TEXT NOT NULL,
	action_date TEXT NOT NULL,
	action_code TEXT NOT NULL,
	source_system_code TEXT NOT NULL DEFAULT '',
	source_system_name TEXT NOT NULL DEFAULT '',
	text TEXT NOT NULL DEFAULT '',
	type TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	PRIMARY KEY (bill_id, action_date, action_code)
);
CREATE INDEX IF NOT EXISTS idx_actions_bill ON bill_actions (bill_id);

CREATE TABLE IF NOT EXISTS bill_subjects (
	bill_id TEXT PRIMARY KEY,
	policy_area_name TEXT NOT NULL DEFAULT '',
	policy_area_update_date TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS bill_summaries (
	bill_id TEXT NOT NULL,
	version_code TEXT NOT NULL,
	action_date TEXT NOT NULL DEFAULT '',
	action_desc TEXT NOT NULL DEFAULT '',
	text TEXT NOT NULL DEFAULT '',
	update_date TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	PRIMARY KEY (bill_id, version_code)
);

CREATE TABLE IF NOT EXISTS bill_texts (
	bill_id TEXT NOT NULL,
	date TEXT NOT NULL,
	type TEXT NOT NULL,
	text_url TEXT NOT NULL DEFAULT '',
	pdf_url TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	PRIMARY KEY (bill_id, date, type)
);

CREATE TABLE IF NOT EXISTS sync_snapshots (
	id TEXT PRIMARY KEY,
	sync_type TEXT NOT NULL,
	congress INTEGER NOT NULL,
	status TEXT NOT NULL,
	started_at TIMESTAMP NOT NULL,
	completed_at TIMESTAMP,
	total_processed INTEGER NOT NULL DEFAULT 0,
	total_success INTEGER NOT NULL DEFAULT 0,
	total_failed INTEGER NOT NULL DEFAULT 0,
	error_details TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS congress_stats (
	congress INTEGER PRIMARY KEY,
	payload TEXT NOT NULL,
	computed_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS jobs (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	payload TEXT NOT NULL DEFAULT '{}',
	run_at TIMESTAMP NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	attempts INTEGER NOT NULL DEFAULT 0,
	last_error TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_jobs_due ON jobs (status, run_at);
`

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}
