package main

import (
	"flag"

	"racetrainer/internal/config"
	"racetrainer/internal/replay"
)

// commonFlags are accepted by every command and override the config file.
type commonFlags struct {
	configPath *string
	storeKind  *string
	dbPath     *string
	artifacts  *string
	logLevel   *string
	logFormat  *string
}

func addCommonFlags(fs *flag.FlagSet) commonFlags {
	return commonFlags{
		configPath: fs.String("config", "", "optional YAML config path (overlays built-in defaults)"),
		storeKind:  fs.String("store", "", "store backend: memory|sqlite"),
		dbPath:     fs.String("db-path", "", "sqlite database path"),
		artifacts:  fs.String("artifacts-dir", "", "directory for per-run JSON results and the run index"),
		logLevel:   fs.String("log-level", "", "log level: debug|info|warn|error"),
		logFormat:  fs.String("log-format", "", "log encoding: json|console"),
	}
}

func visited(fs *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	return set
}

func (c commonFlags) load(fs *flag.FlagSet) (config.Config, error) {
	cfg, err := config.Load(*c.configPath)
	if err != nil {
		return config.Config{}, err
	}
	set := visited(fs)
	if set["store"] {
		cfg.Storage.Kind = *c.storeKind
	}
	if set["db-path"] {
		cfg.Storage.Path = *c.dbPath
	}
	if set["artifacts-dir"] {
		cfg.Storage.ArtifactsDir = *c.artifacts
	}
	if set["log-level"] {
		cfg.Log.Level = *c.logLevel
	}
	if set["log-format"] {
		cfg.Log.Format = *c.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// runFlags are shared by the training commands.
type runFlags struct {
	trackPath *string
	trackName *string
	ticks     *int
	rate      *int
	viewAddr  *string
	viewRays  *bool
	seed      *int64

	load string
	save bool
}

func addRunFlags(fs *flag.FlagSet) *runFlags {
	r := &runFlags{
		trackPath: fs.String("track", "", "track file (.json or .yaml)"),
		trackName: fs.String("track-name", "", "stored track name"),
		ticks:     fs.Int("ticks", 0, "stop after this many ticks (0 = unbounded)"),
		rate:      fs.Int("rate", 0, "ticks per second (0 = unthrottled)"),
		viewAddr:  fs.String("view-addr", "", "serve the websocket frame feed on this address"),
		viewRays:  fs.Bool("view-rays", false, "include sensor rays in feed frames"),
		seed:      fs.Int64("seed", 0, "rng seed (0 = time based)"),
	}
	fs.StringVar(&r.load, "load", "", "snapshot id to resume from")
	fs.BoolVar(&r.save, "save", false, "save a snapshot and fitness history when the run ends")
	return r
}

func (r *runFlags) apply(cfg *config.Config, set map[string]bool, setSeed func(int64)) {
	if set["track"] {
		cfg.Track.Path = *r.trackPath
	}
	if set["track-name"] {
		cfg.Track.Name = *r.trackName
	}
	if set["ticks"] {
		cfg.Sim.MaxTicks = *r.ticks
	}
	if set["rate"] {
		cfg.Sim.Rate = *r.rate
	}
	if set["view-addr"] {
		cfg.Viewfeed.Addr = *r.viewAddr
	}
	if set["view-rays"] {
		cfg.Viewfeed.Rays = *r.viewRays
	}
	if set["seed"] {
		setSeed(*r.seed)
	}
}

func replaySyncMode(name string) replay.SyncMode {
	return replay.SyncMode(name)
}
