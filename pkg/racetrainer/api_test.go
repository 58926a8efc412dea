package racetrainer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"racetrainer/internal/config"
	"racetrainer/internal/geom"
	"racetrainer/internal/sim"
	"racetrainer/internal/stats"
	"racetrainer/internal/track"
)

func shortLane() *track.Layout {
	layout := track.NewLayout()
	layout.SetBoundaries([][]geom.Point{
		{{X: 0, Y: 50}, {X: 400, Y: 50}},
		{{X: 0, Y: 150}, {X: 400, Y: 150}},
		{{X: 200, Y: 50}, {X: 200, Y: 150}},
		{{X: 0, Y: 50}, {X: 0, Y: 150}},
	})
	layout.SetCheckpoints([]geom.Segment{{A: geom.Point{X: 150, Y: 50}, B: geom.Point{X: 150, Y: 150}}})
	layout.SetStartLine(geom.Segment{A: geom.Point{X: 50, Y: 50}, B: geom.Point{X: 50, Y: 150}})
	layout.SetStart(geom.Point{X: 100, Y: 100}, 0)
	return layout
}

func smallConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.Sim.Rate = 0
	cfg.Scoring.StarvationFrames = 30
	cfg.Evolution.PopulationSize = 10
	cfg.Evolution.EliteCount = 2
	cfg.Evolution.BlanksPerGeneration = 2
	cfg.Evolution.MutantsPerGeneration = 2
	cfg.Evolution.HiddenLayers = []int{4}
	cfg.Evolution.Seed = 3
	cfg.Replay.HiddenLayers = []int{8}
	cfg.Replay.StepsBetweenTrain = 5
	cfg.Replay.BatchSize = 8
	cfg.Replay.MinReplaySize = 8
	cfg.Replay.Capacity = 64
	cfg.Replay.Seed = 3
	require.NoError(t, cfg.Validate())
	return cfg
}

type countingSink struct {
	frames int
}

func (s *countingSink) Publish(sim.Frame) {
	s.frames++
}

func newClient(t *testing.T) *Client {
	t.Helper()
	c, err := New(Options{StoreKind: "memory"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	require.NoError(t, c.Init(context.Background()))
	return c
}

func TestEvolveSavesAndResumes(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)
	sink := &countingSink{}

	first, err := c.Evolve(ctx, EvolveRequest{
		RunOptions:  RunOptions{Config: smallConfig(t), Track: shortLane(), MaxTicks: 5000, Sink: sink, Save: true},
		Generations: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, first.Generation)
	assert.Len(t, first.History, 2)
	assert.NotEmpty(t, first.SnapshotID)
	assert.False(t, first.Restored)
	assert.Equal(t, first.Ticks, sink.frames)
	assert.Equal(t, 10, first.LastPlan.Total())

	best, err := c.Best(ctx, first.SnapshotID)
	require.NoError(t, err)
	assert.Equal(t, first.RunID, best.RunID)
	assert.Equal(t, first.BestScore, best.BestScore)
	assert.Equal(t, []int{12, 4, 9}, best.Dimensions)
	assert.NotZero(t, best.Fingerprint)

	second, err := c.Evolve(ctx, EvolveRequest{
		RunOptions:  RunOptions{Config: smallConfig(t), Track: shortLane(), LoadID: first.SnapshotID, MaxTicks: 5000, Save: true},
		Generations: 1,
	})
	require.NoError(t, err)
	assert.True(t, second.Restored)
	assert.Equal(t, first.RunID, second.RunID)
	assert.GreaterOrEqual(t, second.BestScore, first.BestScore)

	history, err := c.History(ctx, first.RunID)
	require.NoError(t, err)
	assert.Len(t, history, 3)
	assert.Equal(t, first.History, history[:2])
}

func TestEvolveMissingSnapshotStartsFresh(t *testing.T) {
	c := newClient(t)
	summary, err := c.Evolve(context.Background(), EvolveRequest{
		RunOptions: RunOptions{Config: smallConfig(t), Track: shortLane(), LoadID: "absent", MaxTicks: 10},
	})
	require.NoError(t, err)
	assert.False(t, summary.Restored)
	assert.Equal(t, 10, summary.Ticks)
	assert.Empty(t, summary.SnapshotID)
}

func TestReplaySavesAndResumes(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)

	first, err := c.Replay(ctx, ReplayRequest{
		RunOptions: RunOptions{Config: smallConfig(t), Track: shortLane(), MaxTicks: 5000, Save: true},
		Episodes:   3,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, first.Stats.Episode)
	assert.Len(t, first.History, 3)
	assert.NotEmpty(t, first.SnapshotID)

	second, err := c.Replay(ctx, ReplayRequest{
		RunOptions: RunOptions{Config: smallConfig(t), Track: shortLane(), LoadID: first.SnapshotID, MaxTicks: 5000, Save: true},
		Episodes:   2,
	})
	require.NoError(t, err)
	assert.True(t, second.Restored)
	assert.Equal(t, first.RunID, second.RunID)
	assert.Equal(t, 5, second.Stats.Episode)

	history, err := c.History(ctx, first.RunID)
	require.NoError(t, err)
	assert.Len(t, history, 5)
}

func TestTrackImportAndLookup(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)

	path := filepath.Join(t.TempDir(), "lane.json")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, track.EncodeJSON(f, shortLane()))
	require.NoError(t, f.Close())

	require.NoError(t, c.ImportTrack(ctx, "lane", path))
	names, err := c.Tracks(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"lane"}, names)

	got, err := c.Track(ctx, "lane")
	require.NoError(t, err)
	assert.Equal(t, shortLane().Boundaries(), got.Boundaries())
	assert.Equal(t, shortLane().StartPosition(), got.StartPosition())

	_, err = c.Track(ctx, "other")
	assert.ErrorIs(t, err, ErrTrackNotFound)

	cfg := smallConfig(t)
	cfg.Track.Name = "lane"
	summary, err := c.Evolve(ctx, EvolveRequest{RunOptions: RunOptions{Config: cfg, MaxTicks: 5}})
	require.NoError(t, err)
	assert.Equal(t, 5, summary.Ticks)
}

func TestLookupsReportMissing(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)
	_, err := c.Best(ctx, "nope")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
	_, err = c.History(ctx, "nope")
	assert.ErrorIs(t, err, ErrHistoryNotFound)
	assert.Error(t, c.ImportTrack(ctx, "", "x.json"))
}

func TestRunsRecordArtifacts(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	c, err := New(Options{StoreKind: "memory", ArtifactsDir: dir})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	evolved, err := c.Evolve(ctx, EvolveRequest{
		RunOptions:  RunOptions{Config: smallConfig(t), Track: shortLane(), MaxTicks: 5000},
		Generations: 1,
	})
	require.NoError(t, err)
	replayed, err := c.Replay(ctx, ReplayRequest{
		RunOptions: RunOptions{Config: smallConfig(t), Track: shortLane(), MaxTicks: 5000},
		Episodes:   1,
	})
	require.NoError(t, err)

	runs, err := c.Runs(0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	byID := map[string]stats.RunIndexEntry{}
	for _, r := range runs {
		byID[r.RunID] = r
	}
	assert.Equal(t, "evolution", byID[evolved.RunID].Trainer)
	assert.Equal(t, "replay", byID[replayed.RunID].Trainer)
	assert.Equal(t, "custom", byID[evolved.RunID].Track)

	history, ok, err := stats.ReadHistory(dir, evolved.RunID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, evolved.History, history)

	fresh, err := New(Options{StoreKind: "memory", ArtifactsDir: dir})
	require.NoError(t, err)
	t.Cleanup(func() { _ = fresh.Close() })
	fromDisk, err := fresh.History(ctx, evolved.RunID)
	require.NoError(t, err)
	assert.Equal(t, evolved.History, fromDisk)
	_, err = fresh.History(ctx, "missing-run")
	assert.ErrorIs(t, err, ErrHistoryNotFound)

	limited, err := c.Runs(1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	_, err = newClient(t).Runs(0)
	assert.Error(t, err)
}
