package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// profileOverlay is the YAML shape of a tuning profile. Durations are plain
// millisecond integers so profiles stay trivially parseable. Zero values
// leave the corresponding knob untouched, so a profile only needs to name
// the knobs it changes.
type profileOverlay struct {
	BatchSize                 int `yaml:"batch_size"`
	RepairBatchSize           int `yaml:"repair_batch_size"`
	BackfillBatchSize         int `yaml:"backfill_batch_size"`
	InterRequestDelayMs       int `yaml:"inter_request_delay_ms"`
	MaxRetries                int `yaml:"max_retries"`
	InitialBackoffMs          int `yaml:"initial_backoff_ms"`
	ConsecutiveFailLimit      int `yaml:"consecutive_fail_limit"`
	IncrementalLookbackHours  int `yaml:"incremental_lookback_hours"`
	FullLookbackDays          int `yaml:"full_lookback_days"`
	IncrementalStaggerMs      int `yaml:"incremental_stagger_ms"`
	FullStaggerMs             int `yaml:"full_stagger_ms"`
	NextPageDelayMs           int `yaml:"next_page_delay_ms"`
	RepairRescheduleDelayMs   int `yaml:"repair_reschedule_delay_ms"`
	BackfillRescheduleDelayMs int `yaml:"backfill_reschedule_delay_ms"`
	HistoricalCongressGapMs   int `yaml:"historical_congress_gap_ms"`
}

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

// ApplyProfile overlays the tuning knobs from a YAML profile onto t.
func ApplyProfile(path string, t *Tuning) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("load profile %q: %w", path, err)
	}

	var o profileOverlay
	if err := yaml.Unmarshal(data, &o); err != nil {
		return fmt.Errorf("parse profile %q: %w", path, err)
	}

	if o.BatchSize > 0 {
		t.BatchSize = o.BatchSize
	}
	if o.RepairBatchSize > 0 {
		t.RepairBatchSize = o.RepairBatchSize
	}
	if o.BackfillBatchSize > 0 {
		t.BackfillBatchSize = o.BackfillBatchSize
	}
	if o.InterRequestDelayMs > 0 {
		t.InterRequestDelay = ms(o.InterRequestDelayMs)
	}
	if o.MaxRetries > 0 {
		t.MaxRetries = o.MaxRetries
	}
	if o.InitialBackoffMs > 0 {
		t.InitialBackoff = ms(o.InitialBackoffMs)
	}
	if o.ConsecutiveFailLimit > 0 {
		t.ConsecutiveFailLimit = o.ConsecutiveFailLimit
	}
	if o.IncrementalLookbackHours > 0 {
		t.IncrementalLookbackHrs = o.IncrementalLookbackHours
	}
	if o.FullLookbackDays > 0 {
		t.FullLookbackDays = o.FullLookbackDays
	}
	if o.IncrementalStaggerMs > 0 {
		t.IncrementalStagger = ms(o.IncrementalStaggerMs)
	}
	if o.FullStaggerMs > 0 {
		t.FullStagger = ms(o.FullStaggerMs)
	}
	if o.NextPageDelayMs > 0 {
		t.NextPageDelay = ms(o.NextPageDelayMs)
	}
	if o.RepairRescheduleDelayMs > 0 {
		t.RepairRescheduleDelay = ms(o.RepairRescheduleDelayMs)
	}
	if o.BackfillRescheduleDelayMs > 0 {
		t.BackfillRescheduleDelay = ms(o.BackfillRescheduleDelayMs)
	}
	if o.HistoricalCongressGapMs > 0 {
		t.HistoricalCongressGap = ms(o.HistoricalCongressGapMs)
	}

	return nil
}
