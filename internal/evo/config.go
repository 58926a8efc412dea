package evo

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"racetrainer/internal/car"
)

var (
	ErrInvalidConfig        = errors.New("invalid evolution config")
	ErrIncompatibleSnapshot = errors.New("snapshot does not fit this population")
)

type Config struct {
	PopulationSize       int     `yaml:"population_size"`
	EliteCount           int     `yaml:"elite_count"`
	BlanksPerGeneration  int     `yaml:"blanks_per_generation"`
	MutantsPerGeneration int     `yaml:"mutants_per_generation"`
	MutationRate         float64 `yaml:"mutation_rate"`
	MutationSigma        float64 `yaml:"mutation_sigma"`
	CrossoverRate        float64 `yaml:"crossover_rate"`
	// ActionEpsilon is the per-tick chance a car ignores its policy and acts randomly.
	ActionEpsilon    float64 `yaml:"action_epsilon"`
	HiddenLayers     []int   `yaml:"hidden_layers"`
	InitialBestScore float64 `yaml:"initial_best_score"`
	Workers          int     `yaml:"workers"`
	Seed             int64   `yaml:"seed"`
	Selection        string  `yaml:"selection"`

	RunID    string      `yaml:"-"`
	Car      car.Options `yaml:"-"`
	Selector Selector    `yaml:"-"`
	Logger   *zap.Logger `yaml:"-"`
	ViewRays bool        `yaml:"-"`
}

func DefaultConfig() Config {
	return Config{
		PopulationSize:       50,
		EliteCount:           7,
		BlanksPerGeneration:  5,
		MutantsPerGeneration: 7,
		MutationRate:         0.1,
		MutationSigma:        0.1,
		CrossoverRate:        0.7,
		ActionEpsilon:        0.02,
		HiddenLayers:         []int{32, 32},
		InitialBestScore:     -100,
		Workers:              1,
		Car:                  car.DefaultOptions(),
	}
}

// Validate checks that every generation has room for crossbred children.
func (c Config) Validate() error {
	switch {
	case c.PopulationSize <= 0:
		return fmt.Errorf("%w: population size must be > 0", ErrInvalidConfig)
	case c.EliteCount <= 0:
		return fmt.Errorf("%w: elite count must be > 0", ErrInvalidConfig)
	case c.BlanksPerGeneration < 0 || c.MutantsPerGeneration < 0:
		return fmt.Errorf("%w: blanks and mutants must be >= 0", ErrInvalidConfig)
	case c.EliteCount+c.BlanksPerGeneration+c.MutantsPerGeneration >= c.PopulationSize:
		return fmt.Errorf("%w: elites(%d)+blanks(%d)+mutants(%d) must be < population(%d)",
			ErrInvalidConfig, c.EliteCount, c.BlanksPerGeneration, c.MutantsPerGeneration, c.PopulationSize)
	case c.MutationRate < 0 || c.MutationRate > 1:
		return fmt.Errorf("%w: mutation rate must be in [0, 1]", ErrInvalidConfig)
	case c.CrossoverRate < 0 || c.CrossoverRate > 1:
		return fmt.Errorf("%w: crossover rate must be in [0, 1]", ErrInvalidConfig)
	case c.ActionEpsilon < 0 || c.ActionEpsilon > 1:
		return fmt.Errorf("%w: action epsilon must be in [0, 1]", ErrInvalidConfig)
	case c.MutationSigma < 0:
		return fmt.Errorf("%w: mutation sigma must be >= 0", ErrInvalidConfig)
	case c.Car.Immortal || c.Car.AutoRespawn:
		return fmt.Errorf("%w: population cars must be mortal and must not respawn", ErrInvalidConfig)
	}
	for _, width := range c.HiddenLayers {
		if width <= 0 {
			return fmt.Errorf("%w: hidden layer widths must be > 0", ErrInvalidConfig)
		}
	}
	return nil
}
