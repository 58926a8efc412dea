package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"racetrainer/internal/car"
	"racetrainer/internal/evo"
	"racetrainer/internal/logging"
	"racetrainer/internal/replay"
	"racetrainer/internal/sensor"
	"racetrainer/internal/track"
	"racetrainer/internal/vehicle"
)

//go:embed defaults.yaml
var defaultsYAML []byte

var ErrInvalidConfig = errors.New("invalid configuration")

// TrackConfig picks the track: a file path, else a stored track name, else
// the built-in ring.
type TrackConfig struct {
	Path string `yaml:"path"`
	Name string `yaml:"name"`
}

type SensorConfig struct {
	Mode  string  `yaml:"mode"`
	Range float64 `yaml:"range"`
}

type SimConfig struct {
	// Rate is ticks per second; 0 runs unthrottled.
	Rate     int `yaml:"rate"`
	MaxTicks int `yaml:"max_ticks"`
}

type StorageConfig struct {
	Kind string `yaml:"kind"`
	Path string `yaml:"path"`
	// ArtifactsDir receives per-run JSON results and a run index; empty
	// disables them.
	ArtifactsDir string `yaml:"artifacts_dir"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type ViewfeedConfig struct {
	// Addr is the listen address of the websocket feed; empty disables it.
	Addr string `yaml:"addr"`
	Rays bool   `yaml:"rays"`
}

type Config struct {
	Track     TrackConfig    `yaml:"track"`
	Vehicle   vehicle.Params `yaml:"vehicle"`
	Controls  car.Controls   `yaml:"controls"`
	Sensors   SensorConfig   `yaml:"sensors"`
	Scoring   car.Scoring    `yaml:"scoring"`
	Evolution evo.Config     `yaml:"evolution"`
	Replay    replay.Config  `yaml:"replay"`
	Sim       SimConfig      `yaml:"sim"`
	Storage   StorageConfig  `yaml:"storage"`
	Log       LogConfig      `yaml:"log"`
	Viewfeed  ViewfeedConfig `yaml:"viewfeed"`
}

// Default returns the embedded defaults.
func Default() (Config, error) {
	var cfg Config
	if err := decode(defaultsYAML, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode defaults: %w", err)
	}
	return cfg, nil
}

// Load decodes the file at path on top of the defaults and validates the
// result. An empty path yields the defaults.
func Load(path string) (Config, error) {
	cfg, err := Default()
	if err != nil {
		return Config{}, err
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := decode(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("decode %s: %w", path, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(cfg)
}

func (c Config) Validate() error {
	if _, err := sensor.ParseMode(c.Sensors.Mode); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Sensors.Range < 0 {
		return fmt.Errorf("%w: sensor range must be >= 0", ErrInvalidConfig)
	}
	if c.Vehicle.Width <= 0 || c.Vehicle.Height <= 0 {
		return fmt.Errorf("%w: vehicle size must be positive", ErrInvalidConfig)
	}
	if c.Vehicle.Friction != 0 && c.Vehicle.Friction < 1 {
		return fmt.Errorf("%w: friction must be 0 or >= 1", ErrInvalidConfig)
	}
	if c.Scoring.StarvationFrames < 0 {
		return fmt.Errorf("%w: starvation frames must be >= 0", ErrInvalidConfig)
	}
	if c.Sim.Rate < 0 || c.Sim.MaxTicks < 0 {
		return fmt.Errorf("%w: sim rate and max ticks must be >= 0", ErrInvalidConfig)
	}
	switch c.Storage.Kind {
	case "", "memory":
	case "sqlite":
		if c.Storage.Path == "" {
			return fmt.Errorf("%w: sqlite storage needs a path", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown storage kind %q", ErrInvalidConfig, c.Storage.Kind)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := c.Evolution.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, err := evo.SelectorByName(c.Evolution.Selection); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := c.Replay.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// CarOptions assembles the per-car settings shared by both trainers. Trained
// cars are always mortal and never respawn, so those options stay unset.
func (c Config) CarOptions() (car.Options, error) {
	mode, err := sensor.ParseMode(c.Sensors.Mode)
	if err != nil {
		return car.Options{}, err
	}
	return car.Options{
		SensorMode:  mode,
		SensorRange: c.Sensors.Range,
		Vehicle:     c.Vehicle,
		Controls:    c.Controls,
		Scoring:     c.Scoring,
	}, nil
}

func (c Config) EvolutionConfig(logger *zap.Logger) (evo.Config, error) {
	opts, err := c.CarOptions()
	if err != nil {
		return evo.Config{}, err
	}
	cfg := c.Evolution
	cfg.HiddenLayers = append([]int(nil), c.Evolution.HiddenLayers...)
	cfg.Car = opts
	cfg.Logger = logger
	cfg.ViewRays = c.Viewfeed.Rays
	return cfg, nil
}

func (c Config) ReplayConfig(logger *zap.Logger) (replay.Config, error) {
	opts, err := c.CarOptions()
	if err != nil {
		return replay.Config{}, err
	}
	cfg := c.Replay
	cfg.HiddenLayers = append([]int(nil), c.Replay.HiddenLayers...)
	cfg.Car = opts
	cfg.Logger = logger
	cfg.ViewRays = c.Viewfeed.Rays
	return cfg, nil
}

// LoadTrack resolves the track section against the file system and the
// store lookup. lookup may be nil.
func (c Config) LoadTrack(lookup func(name string) (*track.Layout, bool, error)) (*track.Layout, error) {
	switch {
	case c.Track.Path != "":
		return track.Load(c.Track.Path)
	case c.Track.Name != "" && lookup != nil:
		layout, ok, err := lookup(c.Track.Name)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("track %q not found", c.Track.Name)
		}
		return layout, nil
	default:
		return track.Default()
	}
}
