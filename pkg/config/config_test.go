package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresAPIKey(t *testing.T) {
	t.Setenv("CONGRESS_API_KEY", "")
	_, err := Load()
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONGRESS_API_KEY", "test-key")
	t.Setenv("LEGISYNC_DB", "")
	t.Setenv("LOG_LEVEL", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "test-key", cfg.CongressAPIKey)
	assert.Equal(t, "legisync.db", cfg.SQLitePath)
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Equal(t, 50, cfg.Tuning.BatchSize)
	assert.Equal(t, 750*time.Millisecond, cfg.Tuning.InterRequestDelay)
	assert.Equal(t, 3, cfg.Tuning.MaxRetries)
	assert.Equal(t, 10*time.Second, cfg.Tuning.InitialBackoff)
	assert.Equal(t, 5, cfg.Tuning.ConsecutiveFailLimit)
	assert.Equal(t, 26, cfg.Tuning.IncrementalLookbackHrs)
	assert.Equal(t, 7, cfg.Tuning.FullLookbackDays)
}

func TestApplyProfileOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.yaml")
	body := "batch_size: 25\ninter_request_delay_ms: 100\nconsecutive_fail_limit: 3\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	tuning := DefaultTuning()
	require.NoError(t, ApplyProfile(path, &tuning))

	assert.Equal(t, 25, tuning.BatchSize)
	assert.Equal(t, 100*time.Millisecond, tuning.InterRequestDelay)
	assert.Equal(t, 3, tuning.ConsecutiveFailLimit)
	// Untouched knobs keep their defaults.
	assert.Equal(t, 20, tuning.RepairBatchSize)
	assert.Equal(t, 10*time.Second, tuning.InitialBackoff)
}

func TestApplyProfileMissingFile(t *testing.T) {
	tuning := DefaultTuning()
	err := ApplyProfile(filepath.Join(t.TempDir(), "absent.yaml"), &tuning)
	assert.Error(t, err)
}
