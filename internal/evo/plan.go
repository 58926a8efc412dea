package evo

import (
	"racetrainer/internal/policy"
)

// GenerationPlan records how the next generation was assembled.
type GenerationPlan struct {
	Generation     int     `json:"generation"`
	GenerationBest float64 `json:"generation_best"`
	NewBest        bool    `json:"new_best"`
	Carried        int     `json:"carried"`
	Elites         int     `json:"elites"`
	Blanks         int     `json:"blanks"`
	Mutants        int     `json:"mutants"`
	Crossbred      int     `json:"crossbred"`
}

func (p GenerationPlan) Total() int {
	return p.Carried + p.Elites + p.Blanks + p.Mutants + p.Crossbred
}

func containsPolicy(pool []Candidate, fingerprint uint64) bool {
	for _, c := range pool {
		if c.Policy.Fingerprint() == fingerprint {
			return true
		}
	}
	return false
}

// buildNextGeneration turns a ranking (best first) into the next
// population: carried best-ever, elites, blanks, mutants of elites, then
// crossbred children until the population is full. It also updates the
// best-ever policy.
func (tr *Trainer) buildNextGeneration(ranked []Candidate) ([]*policy.Network, GenerationPlan, error) {
	k := min(tr.cfg.EliteCount, len(ranked))
	top := ranked[:k]
	plan := GenerationPlan{Generation: tr.generation, GenerationBest: top[0].Score}

	pool := make([]Candidate, 0, k+1)
	if top[0].Score > tr.bestScore {
		tr.bestScore = top[0].Score
		tr.bestPolicy = top[0].Policy.Clone()
		plan.NewBest = true
	} else if tr.bestPolicy != nil && !containsPolicy(top, tr.bestPolicy.Fingerprint()) {
		pool = append(pool, Candidate{Policy: tr.bestPolicy.Clone(), Score: tr.bestScore})
		plan.Carried = 1
	}
	pool = append(pool, top...)
	plan.Elites = k

	next := make([]*policy.Network, 0, tr.cfg.PopulationSize)
	for _, c := range pool {
		next = append(next, c.Policy)
	}

	for i := 0; i < tr.cfg.BlanksPerGeneration; i++ {
		p, err := tr.fresh()
		if err != nil {
			return nil, plan, err
		}
		next = append(next, p)
		plan.Blanks++
	}

	for i := 0; i < tr.cfg.MutantsPerGeneration; i++ {
		parent, err := tr.selector.PickParent(tr.rng, pool, len(pool))
		if err != nil {
			return nil, plan, err
		}
		mutant := parent.Policy.Clone()
		mutant.Mutate(tr.cfg.MutationRate, tr.cfg.MutationSigma, tr.rng)
		next = append(next, mutant)
		plan.Mutants++
	}

	for len(next) < tr.cfg.PopulationSize {
		parent, err := tr.selector.PickParent(tr.rng, pool, len(pool))
		if err != nil {
			return nil, plan, err
		}
		other := next[tr.rng.Intn(len(next))]
		child, err := policy.Crossover(parent.Policy, other, tr.cfg.CrossoverRate, tr.rng)
		if err != nil {
			return nil, plan, err
		}
		child.Mutate(tr.cfg.MutationRate, tr.cfg.MutationSigma, tr.rng)
		next = append(next, child)
		plan.Crossbred++
	}
	return next, plan, nil
}
