package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunHelp(t *testing.T) {
	var stdout, stderr strings.Builder
	code := Run([]string{"legisync", "help"}, &stdout, &stderr)
	assert.Zero(t, code)
	assert.Contains(t, stdout.String(), "sync-incremental")
	assert.Empty(t, stderr.String())
}

func TestRunUnknownCommand(t *testing.T) {
	var stdout, stderr strings.Builder
	code := Run([]string{"legisync", "frobnicate"}, &stdout, &stderr)
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr.String(), "unknown command")
}

func TestRunNoArgs(t *testing.T) {
	var stdout, stderr strings.Builder
	code := Run([]string{"legisync"}, &stdout, &stderr)
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr.String(), "Usage")
}

func TestRunMissingAPIKey(t *testing.T) {
	t.Setenv("CONGRESS_API_KEY", "")

	var stdout, stderr strings.Builder
	code := Run([]string{"legisync", "completeness"}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "CONGRESS_API_KEY")
}
