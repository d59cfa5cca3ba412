// Package sync drives bill ingestion: the per-bill assembler, the
// self-scheduling batch workers, the sync orchestrator, and the repair and
// backfill passes. All long-running work is expressed as durable jobs so a
// restart never loses a chain.
package sync

import (
	"log/slog"
	"time"

	"github.com/legisync/legisync/pkg/archive"
	"github.com/legisync/legisync/pkg/config"
	"github.com/legisync/legisync/pkg/congress"
	"github.com/legisync/legisync/pkg/observability"
	"github.com/legisync/legisync/pkg/store"
)

// Service bundles the client, store and tuning knobs the sync workers share.
type Service struct {
	client  *congress.Client
	store   *store.Store
	archive archive.Store
	tuning  config.Tuning
	metrics *observability.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// ServiceOption configures the Service.
type ServiceOption func(*Service)

// WithArchive enables text rendition archival.
func WithArchive(a archive.Store) ServiceOption {
	return func(s *Service) { s.archive = a }
}

// WithMetrics wires the ingestion counters.
func WithMetrics(m *observability.Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService builds the sync service.
func NewService(client *congress.Client, st *store.Store, tuning config.Tuning, opts ...ServiceOption) *Service {
	s := &Service{
		client: client,
		store:  st,
		tuning: tuning,
		logger: slog.Default().With("component", "sync"),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
