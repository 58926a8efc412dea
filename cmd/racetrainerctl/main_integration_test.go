//go:build sqlite

package main

import (
	"context"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	runIDPattern    = regexp.MustCompile(`run_id=(\S+)`)
	snapshotPattern = regexp.MustCompile(`snapshot_id=(\S+)`)
)

func TestSQLiteEvolveBestHistory(t *testing.T) {
	ctx := context.Background()
	cfgPath := writeTemp(t, "config.yaml", smallConfigYAML)
	trackPath := writeTemp(t, "lane.yaml", laneYAML)
	dbPath := filepath.Join(t.TempDir(), "racetrainer.db")
	store := []string{"--store", "sqlite", "--db-path", dbPath, "--config", cfgPath}

	out, err := captureStdout(func() error {
		return run(ctx, append([]string{"track-import", "--name", "lane", "--file", trackPath}, store...))
	})
	require.NoError(t, err)
	assert.Contains(t, out, "imported track=lane")

	out, err = captureStdout(func() error {
		return run(ctx, append([]string{"track-show", "--list"}, store...))
	})
	require.NoError(t, err)
	assert.Equal(t, "lane", strings.TrimSpace(out))

	out, err = captureStdout(func() error {
		return run(ctx, append([]string{"evolve", "--track-name", "lane", "--generations", "2", "--ticks", "5000", "--save"}, store...))
	})
	require.NoError(t, err)
	runID := runIDPattern.FindStringSubmatch(out)
	snapID := snapshotPattern.FindStringSubmatch(out)
	require.Len(t, runID, 2)
	require.Len(t, snapID, 2)

	out, err = captureStdout(func() error {
		return run(ctx, append([]string{"best", "--id", snapID[1]}, store...))
	})
	require.NoError(t, err)
	assert.Contains(t, out, "run_id="+runID[1])
	assert.Contains(t, out, "dimensions=[12 4 9]")

	out, err = captureStdout(func() error {
		return run(ctx, append([]string{"history", "--run-id", runID[1]}, store...))
	})
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "best_score="))

	out, err = captureStdout(func() error {
		return run(ctx, append([]string{"evolve", "--track-name", "lane", "--load", snapID[1], "--generations", "1", "--ticks", "5000", "--save"}, store...))
	})
	require.NoError(t, err)
	assert.Contains(t, out, "run_id="+runID[1])
	assert.Contains(t, out, "restored=true")

	out, err = captureStdout(func() error {
		return run(ctx, append([]string{"history", "--run-id", runID[1], "--limit", "0"}, store...))
	})
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(out, "best_score="))
}
