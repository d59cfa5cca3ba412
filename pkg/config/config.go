// Package config loads ingestion configuration from the environment, with an
// optional YAML tuning profile overriding the sync knobs.
package config

import (
	"errors"
	"os"
	"strconv"
	"time"
)

// ErrMissingAPIKey is returned when CONGRESS_API_KEY is unset. The upstream
// client refuses to construct without it.
var ErrMissingAPIKey = errors.New("config: CONGRESS_API_KEY is required")

// Tuning holds the sync pipeline knobs. Defaults respect the upstream rate
// limits and keep one full page under typical invocation deadlines.
type Tuning struct {
	BatchSize               int
	RepairBatchSize         int
	BackfillBatchSize       int
	InterRequestDelay       time.Duration
	MaxRetries              int
	InitialBackoff          time.Duration
	ConsecutiveFailLimit    int
	IncrementalLookbackHrs  int
	FullLookbackDays        int
	IncrementalStagger      time.Duration
	FullStagger             time.Duration
	NextPageDelay           time.Duration
	RepairRescheduleDelay   time.Duration
	BackfillRescheduleDelay time.Duration
	HistoricalCongressGap   time.Duration
}

// DefaultTuning returns the canonical knob values.
func DefaultTuning() Tuning {
	return Tuning{
		BatchSize:               50,
		RepairBatchSize:         20,
		BackfillBatchSize:       200,
		InterRequestDelay:       750 * time.Millisecond,
		MaxRetries:              3,
		InitialBackoff:          10 * time.Second,
		ConsecutiveFailLimit:    5,
		IncrementalLookbackHrs:  26,
		FullLookbackDays:        7,
		IncrementalStagger:      2 * time.Minute,
		FullStagger:             10 * time.Minute,
		NextPageDelay:           5 * time.Second,
		RepairRescheduleDelay:   10 * time.Second,
		BackfillRescheduleDelay: 2 * time.Second,
		HistoricalCongressGap:   2 * time.Hour,
	}
}

// Config holds the full service configuration.
type Config struct {
	CongressAPIKey string
	SyncAuthToken  string

	// DatabaseURL selects the Postgres store when set; otherwise the
	// SQLite store at SQLitePath is used.
	DatabaseURL string
	SQLitePath  string

	LogLevel string

	// ArchiveDir enables the filesystem text archive; ArchiveBucket the S3
	// one. Both empty means archival is off.
	ArchiveDir    string
	ArchiveBucket string
	ArchiveRegion string
	ArchivePrefix string

	OTLPEndpoint string
	TelemetryOn  bool

	DispatchPoll time.Duration
	ProfilePath  string
	Tuning       Tuning
}

// Load reads configuration from environment variables, applying defaults and
// the optional YAML tuning profile named by LEGISYNC_PROFILE.
func Load() (*Config, error) {
	cfg := &Config{
		CongressAPIKey: os.Getenv("CONGRESS_API_KEY"),
		SyncAuthToken:  os.Getenv("SYNC_AUTH_TOKEN"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		SQLitePath:     os.Getenv("LEGISYNC_DB"),
		LogLevel:       os.Getenv("LOG_LEVEL"),
		ArchiveDir:     os.Getenv("ARCHIVE_DIR"),
		ArchiveBucket:  os.Getenv("ARCHIVE_BUCKET"),
		ArchiveRegion:  os.Getenv("ARCHIVE_REGION"),
		ArchivePrefix:  os.Getenv("ARCHIVE_PREFIX"),
		OTLPEndpoint:   os.Getenv("OTLP_ENDPOINT"),
		TelemetryOn:    os.Getenv("TELEMETRY_ENABLED") == "true",
		ProfilePath:    os.Getenv("LEGISYNC_PROFILE"),
		Tuning:         DefaultTuning(),
	}

	if cfg.CongressAPIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.SQLitePath == "" {
		cfg.SQLitePath = "legisync.db"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "INFO"
	}
	cfg.DispatchPoll = time.Second
	if v := os.Getenv("DISPATCH_POLL_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			cfg.DispatchPoll = time.Duration(ms) * time.Millisecond
		}
	}

	if cfg.ProfilePath != "" {
		if err := ApplyProfile(cfg.ProfilePath, &cfg.Tuning); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}
