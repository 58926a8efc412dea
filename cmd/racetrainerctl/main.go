package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"racetrainer/internal/config"
	"racetrainer/internal/logging"
	"racetrainer/internal/sim"
	"racetrainer/internal/stats"
	"racetrainer/internal/track"
	"racetrainer/internal/viewfeed"
	api "racetrainer/pkg/racetrainer"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:])
	case "evolve":
		return runEvolve(ctx, args[1:])
	case "replay":
		return runReplay(ctx, args[1:])
	case "best":
		return runBest(ctx, args[1:])
	case "history":
		return runHistory(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "track-import":
		return runTrackImport(ctx, args[1:])
	case "track-show":
		return runTrackShow(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: racetrainerctl <init|evolve|replay|best|history|runs|track-import|track-show> [flags]", msg)
}

// session is the config, logger and client shared by one command.
type session struct {
	cfg    config.Config
	logger *zap.Logger
	client *api.Client
}

func openSession(cfg config.Config) (*session, error) {
	if _, err := logging.ParseLevel(cfg.Log.Level); err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	client, err := api.New(api.Options{
		StoreKind:    cfg.Storage.Kind,
		DBPath:       cfg.Storage.Path,
		ArtifactsDir: cfg.Storage.ArtifactsDir,
		Logger:       logger,
	})
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return &session{cfg: cfg, logger: logger, client: client}, nil
}

func (s *session) Close() {
	_ = s.client.Close()
	_ = s.logger.Sync()
}

func runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	common := addCommonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := common.load(fs)
	if err != nil {
		return err
	}

	s, err := openSession(cfg)
	if err != nil {
		return err
	}
	defer s.Close()
	if err := s.client.Init(ctx); err != nil {
		return err
	}

	fmt.Printf("initialized store=%s\n", cfg.Storage.Kind)
	return nil
}

func runEvolve(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("evolve", flag.ContinueOnError)
	common := addCommonFlags(fs)
	runOpts := addRunFlags(fs)
	generations := fs.Int("generations", 0, "stop after this many generations (0 = tick bound only)")
	population := fs.Int("pop", 0, "population size")
	workers := fs.Int("workers", 0, "parallel car workers")
	selection := fs.String("selection", "", "parent selection strategy: elite|tournament")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := common.load(fs)
	if err != nil {
		return err
	}
	set := visited(fs)
	runOpts.apply(&cfg, set, func(seed int64) { cfg.Evolution.Seed = seed })
	if set["pop"] {
		cfg.Evolution.PopulationSize = *population
	}
	if set["workers"] {
		cfg.Evolution.Workers = *workers
	}
	if set["selection"] {
		cfg.Evolution.Selection = *selection
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	s, err := openSession(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	sink, shutdown, err := s.serveViewfeed(cfg.Viewfeed.Addr)
	if err != nil {
		return err
	}
	defer shutdown()

	summary, err := s.client.Evolve(ctx, api.EvolveRequest{
		RunOptions: api.RunOptions{
			Config: cfg,
			LoadID: runOpts.load,
			Sink:   sink,
			Save:   runOpts.save,
		},
		Generations: *generations,
	})
	if err != nil {
		return err
	}

	fmt.Printf("run_id=%s generations=%d ticks=%d best_score=%.6f restored=%t\n",
		summary.RunID, summary.Generation, summary.Ticks, summary.BestScore, summary.Restored)
	if summary.SnapshotID != "" {
		fmt.Printf("snapshot_id=%s\n", summary.SnapshotID)
	}
	return nil
}

func runReplay(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("replay", flag.ContinueOnError)
	common := addCommonFlags(fs)
	runOpts := addRunFlags(fs)
	episodes := fs.Int("episodes", 0, "stop after this many episodes (0 = tick bound only)")
	syncMode := fs.String("sync-mode", "", "target network sync: hard|soft")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := common.load(fs)
	if err != nil {
		return err
	}
	set := visited(fs)
	runOpts.apply(&cfg, set, func(seed int64) { cfg.Replay.Seed = seed })
	if set["sync-mode"] {
		cfg.Replay.SyncMode = replaySyncMode(*syncMode)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	s, err := openSession(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	sink, shutdown, err := s.serveViewfeed(cfg.Viewfeed.Addr)
	if err != nil {
		return err
	}
	defer shutdown()

	summary, err := s.client.Replay(ctx, api.ReplayRequest{
		RunOptions: api.RunOptions{
			Config: cfg,
			LoadID: runOpts.load,
			Sink:   sink,
			Save:   runOpts.save,
		},
		Episodes: *episodes,
	})
	if err != nil {
		return err
	}

	fmt.Printf("run_id=%s episodes=%d ticks=%d epsilon=%.6f train_steps=%d syncs=%d restored=%t\n",
		summary.RunID, summary.Stats.Episode, summary.Ticks, summary.Stats.Epsilon,
		summary.Stats.TrainSteps, summary.Stats.Syncs, summary.Restored)
	if summary.SnapshotID != "" {
		fmt.Printf("snapshot_id=%s\n", summary.SnapshotID)
	}
	return nil
}

// serveViewfeed starts the websocket frame feed when addr is set. The
// returned sink is nil when the feed is disabled.
func (s *session) serveViewfeed(addr string) (sim.FrameSink, func(), error) {
	if addr == "" {
		return nil, func() {}, nil
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("listen viewfeed: %w", err)
	}

	hub := viewfeed.NewHub(s.logger)
	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("viewfeed server", zap.Error(err))
		}
	}()
	s.logger.Info("viewfeed listening", zap.String("addr", ln.Addr().String()))
	fmt.Printf("viewfeed=ws://%s/ws\n", ln.Addr().String())

	shutdown := func() {
		hub.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		s.logger.Info("viewfeed stopped",
			zap.Uint64("published", hub.Published()),
			zap.Uint64("dropped", hub.Dropped()),
		)
	}
	return hub, shutdown, nil
}

func runBest(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("best", flag.ContinueOnError)
	common := addCommonFlags(fs)
	id := fs.String("id", "", "evolution snapshot id")
	jsonOut := fs.Bool("json", false, "emit the summary as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return errors.New("best requires --id")
	}
	cfg, err := common.load(fs)
	if err != nil {
		return err
	}

	s, err := openSession(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	best, err := s.client.Best(ctx, *id)
	if err != nil {
		return err
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(best)
	}
	fmt.Printf("id=%s run_id=%s generation=%d best_score=%.6f dimensions=%v fingerprint=%016x\n",
		best.ID, best.RunID, best.Generation, best.BestScore, best.Dimensions, best.Fingerprint)
	return nil
}

func runHistory(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	common := addCommonFlags(fs)
	runID := fs.String("run-id", "", "run id")
	limit := fs.Int("limit", 50, "max entries to print, most recent last (<=0 for all)")
	jsonOut := fs.Bool("json", false, "emit fitness history as JSON")
	window := fs.Int("window", 0, "moving average window; also prints the running best (0 to disable)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID == "" {
		return errors.New("history requires --run-id")
	}
	if *window < 0 {
		return fmt.Errorf("--window must be >= 0, got %d", *window)
	}
	cfg, err := common.load(fs)
	if err != nil {
		return err
	}

	s, err := openSession(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	history, err := s.client.History(ctx, *runID)
	if err != nil {
		return err
	}
	offset := 0
	if *limit > 0 && len(history) > *limit {
		offset = len(history) - *limit
	}
	summary := stats.Summarize(history)
	var (
		trend []stats.PlotPoint
		peaks []float64
	)
	if *window > 0 {
		trend = stats.MovingAverage(history, *window, 1)[offset:]
		peaks = stats.RunningBest(history)[offset:]
	}
	history = history[offset:]
	if *jsonOut {
		payload := map[string]any{"history": history, "summary": summary}
		if *window > 0 {
			payload["moving_average"] = trend
			payload["running_best"] = peaks
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(payload)
	}
	if len(history) == 0 {
		fmt.Println("no fitness history")
		return nil
	}
	for i, best := range history {
		if *window > 0 {
			fmt.Printf("index=%d best_score=%.6f moving_average=%.6f running_best=%.6f\n",
				offset+i+1, best, trend[i].Value, peaks[i])
			continue
		}
		fmt.Printf("index=%d best_score=%.6f\n", offset+i+1, best)
	}
	fmt.Printf("count=%d mean=%.6f std=%.6f max=%.6f min=%.6f improvement=%.6f\n",
		summary.Count, summary.Mean, summary.Std, summary.Max, summary.Min, summary.Improvement)
	return nil
}

func runRuns(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	common := addCommonFlags(fs)
	limit := fs.Int("limit", 20, "max runs to list (<=0 for all)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := common.load(fs)
	if err != nil {
		return err
	}

	s, err := openSession(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	entries, err := s.client.Runs(*limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("no runs")
		return nil
	}
	for _, e := range entries {
		fmt.Printf("run_id=%s trainer=%s track=%s entries=%d ticks=%d final_score=%.6f created_at=%s\n",
			e.RunID, e.Trainer, e.Track, e.Entries, e.Ticks, e.FinalScore, e.CreatedAtUTC)
	}
	return nil
}

func runTrackImport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("track-import", flag.ContinueOnError)
	common := addCommonFlags(fs)
	name := fs.String("name", "", "name to store the track under")
	file := fs.String("file", "", "track file (.json or .yaml)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *name == "" || *file == "" {
		return errors.New("track-import requires --name and --file")
	}
	cfg, err := common.load(fs)
	if err != nil {
		return err
	}

	s, err := openSession(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.client.ImportTrack(ctx, *name, *file); err != nil {
		return err
	}
	fmt.Printf("imported track=%s store=%s\n", *name, cfg.Storage.Kind)
	return nil
}

// runTrackShow prints a stored track, or the built-in track when no name is
// given, in the requested encoding.
func runTrackShow(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("track-show", flag.ContinueOnError)
	common := addCommonFlags(fs)
	name := fs.String("name", "", "stored track name (empty = built-in track)")
	format := fs.String("format", "json", "output format: json|yaml")
	list := fs.Bool("list", false, "list stored track names instead")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := common.load(fs)
	if err != nil {
		return err
	}

	s, err := openSession(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	if *list {
		names, err := s.client.Tracks(ctx)
		if err != nil {
			return err
		}
		if len(names) == 0 {
			fmt.Println("no tracks")
		}
		for _, n := range names {
			fmt.Println(n)
		}
		return nil
	}

	var layout *track.Layout
	if *name == "" {
		layout, err = track.Default()
	} else {
		layout, err = s.client.Track(ctx, *name)
	}
	if err != nil {
		return err
	}
	switch strings.ToLower(*format) {
	case "json":
		return track.EncodeJSON(os.Stdout, layout)
	case "yaml", "yml":
		return track.EncodeYAML(os.Stdout, layout)
	default:
		return fmt.Errorf("unsupported format: %s", *format)
	}
}
