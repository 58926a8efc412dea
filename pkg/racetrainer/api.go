package racetrainer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"racetrainer/internal/config"
	"racetrainer/internal/evo"
	"racetrainer/internal/model"
	"racetrainer/internal/policy"
	"racetrainer/internal/replay"
	"racetrainer/internal/sim"
	"racetrainer/internal/stats"
	"racetrainer/internal/storage"
	"racetrainer/internal/track"
)

const defaultDBPath = "racetrainer.db"

var (
	ErrSnapshotNotFound = errors.New("snapshot not found")
	ErrTrackNotFound    = errors.New("track not found")
	ErrHistoryNotFound  = errors.New("fitness history not found")
)

type Options struct {
	StoreKind string
	DBPath    string
	// ArtifactsDir receives per-run JSON results and a run index when set.
	ArtifactsDir string
	Logger       *zap.Logger
}

// Client runs trainers against a store. It is safe for sequential use by one
// caller; runs are not meant to overlap.
type Client struct {
	store        storage.Store
	logger       *zap.Logger
	artifactsDir string

	initMu      sync.Mutex
	initialized bool
}

// RunOptions are shared by evolution and replay runs.
type RunOptions struct {
	Config config.Config
	// Track overrides the config's track section when set.
	Track track.Track
	// LoadID names a stored snapshot to resume from. A missing or unusable
	// snapshot is logged and the run starts from scratch.
	LoadID string
	// MaxTicks bounds the run; zero falls back to the config.
	MaxTicks int
	// Rate overrides the config's tick rate when positive; negative runs
	// unthrottled.
	Rate int
	Sink sim.FrameSink
	Save bool
}

type EvolveRequest struct {
	RunOptions
	// Generations stops the run after that many generation boundaries; zero
	// leaves only the tick bound.
	Generations int
}

type EvolveSummary struct {
	RunID      string
	SnapshotID string
	Restored   bool
	Ticks      int
	Generation int
	BestScore  float64
	History    []float64
	LastPlan   evo.GenerationPlan
}

type ReplayRequest struct {
	RunOptions
	Episodes int
}

type ReplaySummary struct {
	RunID      string
	SnapshotID string
	Restored   bool
	Ticks      int
	Stats      replay.Stats
	History    []float64
}

type BestSummary struct {
	ID          string
	RunID       string
	Generation  int
	BestScore   float64
	Dimensions  []int
	Fingerprint uint64
}

func New(opts Options) (*Client, error) {
	kind := opts.StoreKind
	if kind == "" {
		kind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	store, err := storage.NewStore(kind, dbPath)
	if err != nil {
		return nil, err
	}
	return &Client{store: store, logger: logger, artifactsDir: opts.ArtifactsDir}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.ensureInit(ctx)
}

func (c *Client) ensureInit(ctx context.Context) error {
	c.initMu.Lock()
	defer c.initMu.Unlock()
	if c.initialized {
		return nil
	}
	if err := c.store.Init(ctx); err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	c.initialized = true
	return nil
}

func (c *Client) resolveTrack(ctx context.Context, opts RunOptions) (track.Track, error) {
	if opts.Track != nil {
		return opts.Track, nil
	}
	return opts.Config.LoadTrack(func(name string) (*track.Layout, bool, error) {
		rec, ok, err := c.store.GetTrack(ctx, name)
		if err != nil || !ok {
			return nil, ok, err
		}
		return rec.Layout.Layout(), true, nil
	})
}

func (c *Client) runner(opts RunOptions, stop func() bool) sim.Runner {
	rate := opts.Config.Sim.Rate
	if opts.Rate != 0 {
		rate = opts.Rate
	}
	maxTicks := opts.Config.Sim.MaxTicks
	if opts.MaxTicks > 0 {
		maxTicks = opts.MaxTicks
	}
	return sim.Runner{
		Rate:     float64(rate),
		MaxTicks: maxTicks,
		Stop:     stop,
		Sink:     opts.Sink,
		Logger:   c.logger,
	}
}

// priorHistory loads the stored history of a resumed run so the saved
// history stays continuous.
func (c *Client) priorHistory(ctx context.Context, runID string) []float64 {
	history, ok, err := c.store.GetFitnessHistory(ctx, runID)
	if err != nil {
		c.logger.Warn("load fitness history", zap.String("run_id", runID), zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}
	return history
}

func (c *Client) Evolve(ctx context.Context, req EvolveRequest) (EvolveSummary, error) {
	if req.Generations < 0 || req.MaxTicks < 0 {
		return EvolveSummary{}, errors.New("generations and ticks must be >= 0")
	}
	if err := c.ensureInit(ctx); err != nil {
		return EvolveSummary{}, err
	}
	t, err := c.resolveTrack(ctx, req.RunOptions)
	if err != nil {
		return EvolveSummary{}, err
	}
	cfg, err := req.Config.EvolutionConfig(c.logger)
	if err != nil {
		return EvolveSummary{}, err
	}

	var (
		snap  model.EvolutionSnapshot
		found bool
	)
	if req.LoadID != "" {
		snap, found, err = c.store.GetEvolutionSnapshot(ctx, req.LoadID)
		if err != nil || !found {
			c.logger.Warn("evolution snapshot unavailable, starting from scratch",
				zap.String("snapshot_id", req.LoadID), zap.Error(err))
			found = false
		} else {
			cfg.RunID = snap.RunID
		}
	}

	tr, err := evo.NewTrainer(t, cfg)
	if err != nil {
		return EvolveSummary{}, err
	}
	restored := false
	var prior []float64
	if found {
		if err := tr.Restore(snap); err != nil {
			c.logger.Warn("evolution snapshot rejected, starting from scratch",
				zap.String("snapshot_id", req.LoadID), zap.Error(err))
		} else {
			restored = true
			prior = c.priorHistory(ctx, tr.RunID())
		}
	}

	var stop func() bool
	if req.Generations > 0 {
		stop = func() bool { return tr.Generation() >= req.Generations }
	}
	result, err := c.runner(req.RunOptions, stop).Run(ctx, tr)
	if err != nil {
		return EvolveSummary{}, fmt.Errorf("evolve: %w", err)
	}

	summary := EvolveSummary{
		RunID:      tr.RunID(),
		Restored:   restored,
		Ticks:      result.Ticks,
		Generation: tr.Generation(),
		BestScore:  tr.BestScore(),
		History:    append(prior, tr.History()...),
		LastPlan:   tr.LastPlan(),
	}
	c.logger.Info("evolution run finished",
		zap.String("run_id", summary.RunID),
		zap.Int("ticks", summary.Ticks),
		zap.Int("generation", summary.Generation),
		zap.Float64("best_score", summary.BestScore),
	)
	record := func() error {
		return c.recordRun(req.RunOptions, stats.RunConfig{
			RunID:    summary.RunID,
			Trainer:  "evolution",
			Seed:     cfg.Seed,
			Hidden:   cfg.HiddenLayers,
			Settings: req.Config.Evolution,
		}, summary.History, summary.BestScore, summary.Ticks, summary.SnapshotID, summary.LastPlan)
	}
	if !req.Save {
		return summary, record()
	}

	out := tr.Snapshot()
	// Save with a background context so an interrupted run still persists.
	saveCtx := context.WithoutCancel(ctx)
	if out.BestPolicy != nil {
		if err := c.store.SaveEvolutionSnapshot(saveCtx, out); err != nil {
			return summary, fmt.Errorf("save evolution snapshot: %w", err)
		}
		summary.SnapshotID = out.ID
	} else {
		c.logger.Warn("no finished generation yet, snapshot skipped", zap.String("run_id", summary.RunID))
	}
	if len(summary.History) > 0 {
		if err := c.store.SaveFitnessHistory(saveCtx, summary.RunID, summary.History); err != nil {
			return summary, fmt.Errorf("save fitness history: %w", err)
		}
	}
	return summary, record()
}

func (c *Client) Replay(ctx context.Context, req ReplayRequest) (ReplaySummary, error) {
	if req.Episodes < 0 || req.MaxTicks < 0 {
		return ReplaySummary{}, errors.New("episodes and ticks must be >= 0")
	}
	if err := c.ensureInit(ctx); err != nil {
		return ReplaySummary{}, err
	}
	t, err := c.resolveTrack(ctx, req.RunOptions)
	if err != nil {
		return ReplaySummary{}, err
	}
	cfg, err := req.Config.ReplayConfig(c.logger)
	if err != nil {
		return ReplaySummary{}, err
	}

	var (
		snap  model.ReplaySnapshot
		found bool
	)
	if req.LoadID != "" {
		snap, found, err = c.store.GetReplaySnapshot(ctx, req.LoadID)
		if err != nil || !found {
			c.logger.Warn("replay snapshot unavailable, starting from scratch",
				zap.String("snapshot_id", req.LoadID), zap.Error(err))
			found = false
		} else {
			cfg.RunID = snap.RunID
		}
	}

	tr, err := replay.NewTrainer(t, cfg)
	if err != nil {
		return ReplaySummary{}, err
	}
	restored := false
	var prior []float64
	if found {
		if err := tr.Restore(snap); err != nil {
			c.logger.Warn("replay snapshot rejected, starting from scratch",
				zap.String("snapshot_id", req.LoadID), zap.Error(err))
		} else {
			restored = true
			prior = c.priorHistory(ctx, tr.RunID())
		}
	}

	start := tr.Generation()
	var stop func() bool
	if req.Episodes > 0 {
		stop = func() bool { return tr.Generation()-start >= req.Episodes }
	}
	result, err := c.runner(req.RunOptions, stop).Run(ctx, tr)
	if err != nil {
		return ReplaySummary{}, fmt.Errorf("replay: %w", err)
	}

	summary := ReplaySummary{
		RunID:    tr.RunID(),
		Restored: restored,
		Ticks:    result.Ticks,
		Stats:    tr.Stats(),
		History:  append(prior, tr.History()...),
	}
	c.logger.Info("replay run finished",
		zap.String("run_id", summary.RunID),
		zap.Int("ticks", summary.Ticks),
		zap.Int("episode", summary.Stats.Episode),
		zap.Float64("epsilon", summary.Stats.Epsilon),
	)
	record := func() error {
		return c.recordRun(req.RunOptions, stats.RunConfig{
			RunID:    summary.RunID,
			Trainer:  "replay",
			Seed:     cfg.Seed,
			Hidden:   cfg.HiddenLayers,
			Settings: req.Config.Replay,
		}, summary.History, summary.Stats.CurrentScore, summary.Ticks, summary.SnapshotID, summary.Stats)
	}
	if !req.Save {
		return summary, record()
	}

	out := tr.Snapshot()
	saveCtx := context.WithoutCancel(ctx)
	if err := c.store.SaveReplaySnapshot(saveCtx, out); err != nil {
		return summary, fmt.Errorf("save replay snapshot: %w", err)
	}
	summary.SnapshotID = out.ID
	if len(summary.History) > 0 {
		if err := c.store.SaveFitnessHistory(saveCtx, summary.RunID, summary.History); err != nil {
			return summary, fmt.Errorf("save fitness history: %w", err)
		}
	}
	return summary, record()
}

// recordRun writes the run's artifacts and index entry when an artifacts
// directory is configured.
func (c *Client) recordRun(opts RunOptions, cfg stats.RunConfig, history []float64, final float64, ticks int, snapshotID string, details any) error {
	if c.artifactsDir == "" {
		return nil
	}
	cfg.Track = trackLabel(opts)
	cfg.SensorMode = opts.Config.Sensors.Mode
	cfg.Resumed = opts.LoadID
	dir, err := stats.WriteRunArtifacts(c.artifactsDir, stats.RunArtifacts{
		Config:     cfg,
		History:    history,
		FinalScore: final,
		Ticks:      ticks,
		SnapshotID: snapshotID,
		Details:    details,
	})
	if err != nil {
		return fmt.Errorf("write run artifacts: %w", err)
	}
	if err := stats.AppendRunIndex(c.artifactsDir, stats.RunIndexEntry{
		RunID:        cfg.RunID,
		Trainer:      cfg.Trainer,
		Track:        cfg.Track,
		Seed:         cfg.Seed,
		Entries:      len(history),
		Ticks:        ticks,
		FinalScore:   final,
		SnapshotID:   snapshotID,
		CreatedAtUTC: time.Now().UTC().Format(time.RFC3339Nano),
	}); err != nil {
		return fmt.Errorf("append run index: %w", err)
	}
	c.logger.Debug("wrote run artifacts", zap.String("run_id", cfg.RunID), zap.String("dir", dir))
	return nil
}

func trackLabel(opts RunOptions) string {
	switch {
	case opts.Track != nil:
		return "custom"
	case opts.Config.Track.Path != "":
		return opts.Config.Track.Path
	case opts.Config.Track.Name != "":
		return opts.Config.Track.Name
	default:
		return "default"
	}
}

// Runs lists recorded runs newest first. It needs an artifacts directory.
func (c *Client) Runs(limit int) ([]stats.RunIndexEntry, error) {
	if c.artifactsDir == "" {
		return nil, errors.New("no artifacts directory configured")
	}
	entries, err := stats.ListRunIndex(c.artifactsDir)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Best describes a stored evolution snapshot.
func (c *Client) Best(ctx context.Context, id string) (BestSummary, error) {
	if err := c.ensureInit(ctx); err != nil {
		return BestSummary{}, err
	}
	snap, ok, err := c.store.GetEvolutionSnapshot(ctx, id)
	if err != nil {
		return BestSummary{}, err
	}
	if !ok {
		return BestSummary{}, fmt.Errorf("%w: %s", ErrSnapshotNotFound, id)
	}
	out := BestSummary{
		ID:         snap.ID,
		RunID:      snap.RunID,
		Generation: snap.Generation,
		BestScore:  snap.BestScore,
	}
	if snap.BestPolicy != nil {
		net, err := policy.FromRecord(*snap.BestPolicy)
		if err != nil {
			return BestSummary{}, fmt.Errorf("decode best policy: %w", err)
		}
		out.Dimensions = net.Dimensions()
		out.Fingerprint = net.Fingerprint()
	}
	return out, nil
}

func (c *Client) History(ctx context.Context, runID string) ([]float64, error) {
	if err := c.ensureInit(ctx); err != nil {
		return nil, err
	}
	history, ok, err := c.store.GetFitnessHistory(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok && c.artifactsDir != "" {
		history, ok, err = stats.ReadHistory(c.artifactsDir, runID)
		if err != nil {
			return nil, fmt.Errorf("read run artifacts: %w", err)
		}
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrHistoryNotFound, runID)
	}
	return history, nil
}

// ImportTrack reads a JSON or YAML track file and stores it under name.
func (c *Client) ImportTrack(ctx context.Context, name, path string) error {
	if name == "" {
		return errors.New("track name is required")
	}
	if err := c.ensureInit(ctx); err != nil {
		return err
	}
	layout, err := track.Load(path)
	if err != nil {
		return err
	}
	return c.SaveTrack(ctx, name, layout)
}

func (c *Client) SaveTrack(ctx context.Context, name string, t track.Track) error {
	if err := c.ensureInit(ctx); err != nil {
		return err
	}
	file, err := track.FileOf(t)
	if err != nil {
		return err
	}
	return c.store.SaveTrack(ctx, model.TrackRecord{
		VersionedRecord: model.VersionedRecord{SchemaVersion: storage.CurrentSchemaVersion, CodecVersion: storage.CurrentCodecVersion},
		Name:            name,
		Layout:          file,
	})
}

func (c *Client) Track(ctx context.Context, name string) (*track.Layout, error) {
	if err := c.ensureInit(ctx); err != nil {
		return nil, err
	}
	rec, ok, err := c.store.GetTrack(ctx, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTrackNotFound, name)
	}
	return rec.Layout.Layout(), nil
}

func (c *Client) Tracks(ctx context.Context) ([]string, error) {
	if err := c.ensureInit(ctx); err != nil {
		return nil, err
	}
	return c.store.ListTracks(ctx)
}
