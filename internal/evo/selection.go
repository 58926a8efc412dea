package evo

import (
	"fmt"
	"math/rand"

	"racetrainer/internal/policy"
)

// Candidate is a policy with the score it earned in the generation it was
// ranked in.
type Candidate struct {
	Policy *policy.Network
	Score  float64
}

// Selector chooses a parent from the first eliteCount ranked candidates.
type Selector interface {
	Name() string
	PickParent(rng *rand.Rand, ranked []Candidate, eliteCount int) (Candidate, error)
}

// EliteSelector picks uniformly from the top elite set.
type EliteSelector struct{}

func (EliteSelector) Name() string {
	return "elite"
}

func (EliteSelector) PickParent(rng *rand.Rand, ranked []Candidate, eliteCount int) (Candidate, error) {
	if rng == nil {
		return Candidate{}, fmt.Errorf("random source is required")
	}
	if eliteCount <= 0 || eliteCount > len(ranked) {
		return Candidate{}, fmt.Errorf("invalid elite count: %d", eliteCount)
	}
	return ranked[rng.Intn(eliteCount)], nil
}

// TournamentSelector samples TournamentSize elites and keeps the highest score.
type TournamentSelector struct {
	TournamentSize int
}

func (TournamentSelector) Name() string {
	return "tournament"
}

func (s TournamentSelector) PickParent(rng *rand.Rand, ranked []Candidate, eliteCount int) (Candidate, error) {
	if rng == nil {
		return Candidate{}, fmt.Errorf("random source is required")
	}
	if eliteCount <= 0 || eliteCount > len(ranked) {
		return Candidate{}, fmt.Errorf("invalid elite count: %d", eliteCount)
	}

	size := s.TournamentSize
	if size <= 0 {
		size = 3
	}
	if size > eliteCount {
		size = eliteCount
	}

	best := ranked[rng.Intn(eliteCount)]
	for i := 1; i < size; i++ {
		candidate := ranked[rng.Intn(eliteCount)]
		if candidate.Score > best.Score {
			best = candidate
		}
	}
	return best, nil
}

// SelectorByName resolves the selection strategy named in configuration.
func SelectorByName(name string) (Selector, error) {
	switch name {
	case "", "elite":
		return EliteSelector{}, nil
	case "tournament":
		return TournamentSelector{}, nil
	default:
		return nil, fmt.Errorf("unknown selector: %s", name)
	}
}
