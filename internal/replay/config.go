package replay

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"racetrainer/internal/car"
)

var (
	ErrInvalidConfig        = errors.New("invalid replay config")
	ErrIncompatibleSnapshot = errors.New("snapshot does not fit this trainer")
)

// SyncMode selects how the target network follows the online network.
type SyncMode string

const (
	// SyncHard copies the online parameters at an episode boundary once
	// StepsBetweenSync ticks have passed since the last copy.
	SyncHard SyncMode = "hard"
	// SyncSoft blends Alpha of the online parameters into the target every tick.
	SyncSoft SyncMode = "soft"
)

type Config struct {
	Gamma             float64  `yaml:"gamma"`
	MaxEpsilon        float64  `yaml:"max_epsilon"`
	MinEpsilon        float64  `yaml:"min_epsilon"`
	EpsilonDecay      float64  `yaml:"epsilon_decay"`
	SyncMode          SyncMode `yaml:"sync_mode"`
	Alpha             float64  `yaml:"alpha"`
	StepsBetweenTrain int      `yaml:"steps_between_train"`
	BatchSize         int      `yaml:"batch_size"`
	StepsBetweenSync  int      `yaml:"steps_between_sync"`
	LearningRate      float64  `yaml:"learning_rate"`
	MinReplaySize     int      `yaml:"min_replay_size"`
	Capacity          int      `yaml:"capacity"`
	GradClip          float64  `yaml:"grad_clip"`
	HiddenLayers      []int    `yaml:"hidden_layers"`
	Seed              int64    `yaml:"seed"`

	RunID    string      `yaml:"-"`
	Car      car.Options `yaml:"-"`
	Logger   *zap.Logger `yaml:"-"`
	ViewRays bool        `yaml:"-"`
}

func DefaultConfig() Config {
	return Config{
		Gamma:             0.97,
		MaxEpsilon:        1,
		MinEpsilon:        0.02,
		EpsilonDecay:      0.0005,
		SyncMode:          SyncHard,
		Alpha:             0.005,
		StepsBetweenTrain: 750,
		BatchSize:         1024,
		StepsBetweenSync:  100,
		LearningRate:      0.001,
		MinReplaySize:     1024,
		Capacity:          20000,
		GradClip:          100,
		HiddenLayers:      []int{128, 128},
		Car:               car.DefaultOptions(),
	}
}

func (c Config) Validate() error {
	switch {
	case c.Gamma < 0 || c.Gamma > 1:
		return fmt.Errorf("%w: gamma must be in [0, 1]", ErrInvalidConfig)
	case c.MinEpsilon < 0 || c.MaxEpsilon > 1 || c.MinEpsilon > c.MaxEpsilon:
		return fmt.Errorf("%w: need 0 <= min epsilon <= max epsilon <= 1", ErrInvalidConfig)
	case c.EpsilonDecay < 0:
		return fmt.Errorf("%w: epsilon decay must be >= 0", ErrInvalidConfig)
	case c.SyncMode != SyncHard && c.SyncMode != SyncSoft:
		return fmt.Errorf("%w: unknown sync mode %q", ErrInvalidConfig, c.SyncMode)
	case c.SyncMode == SyncSoft && (c.Alpha <= 0 || c.Alpha > 1):
		return fmt.Errorf("%w: alpha must be in (0, 1]", ErrInvalidConfig)
	case c.StepsBetweenTrain <= 0 || c.StepsBetweenSync < 0:
		return fmt.Errorf("%w: step intervals must be positive", ErrInvalidConfig)
	case c.BatchSize <= 0:
		return fmt.Errorf("%w: batch size must be > 0", ErrInvalidConfig)
	case c.Capacity < c.BatchSize || c.Capacity < c.MinReplaySize:
		return fmt.Errorf("%w: capacity %d cannot hold a batch of %d or %d warm-up experiences",
			ErrInvalidConfig, c.Capacity, c.BatchSize, c.MinReplaySize)
	case c.LearningRate <= 0:
		return fmt.Errorf("%w: learning rate must be > 0", ErrInvalidConfig)
	case c.GradClip < 0:
		return fmt.Errorf("%w: gradient clip must be >= 0", ErrInvalidConfig)
	case c.Car.Immortal || c.Car.AutoRespawn:
		return fmt.Errorf("%w: the learning car must be mortal and must not respawn", ErrInvalidConfig)
	}
	for _, width := range c.HiddenLayers {
		if width <= 0 {
			return fmt.Errorf("%w: hidden layer widths must be > 0", ErrInvalidConfig)
		}
	}
	return nil
}

// Epsilon is the exploration rate for an episode; it never increases with
// the episode count.
func (c Config) Epsilon(episode int) float64 {
	return c.MinEpsilon + (c.MaxEpsilon-c.MinEpsilon)*math.Exp(-c.EpsilonDecay*float64(episode))
}
