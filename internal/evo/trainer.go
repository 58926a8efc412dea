package evo

import (
	"context"
	"fmt"
	"math/rand"
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"racetrainer/internal/car"
	"racetrainer/internal/model"
	"racetrainer/internal/policy"
	"racetrainer/internal/sim"
	"racetrainer/internal/storage"
	"racetrainer/internal/track"
)

type slot struct {
	car    *car.Car
	policy *policy.Network
	ctl    *car.Controller
	rng    *rand.Rand
}

// Trainer evolves a fixed-size population of policies, one car each. A
// generation ends once every car in it is dead.
type Trainer struct {
	cfg      Config
	track    track.Track
	dims     []int
	rng      *rand.Rand
	selector Selector
	logger   *zap.Logger

	slots      []slot
	generation int
	bestPolicy *policy.Network
	bestScore  float64
	history    []float64
	lastPlan   GenerationPlan
}

func NewTrainer(t track.Track, cfg Config) (*Trainer, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: track is required", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Selector == nil {
		selector, err := SelectorByName(cfg.Selection)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		cfg.Selector = selector
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &Trainer{
		cfg:       cfg,
		track:     t,
		dims:      policy.Layers(car.FeatureWidth(cfg.Car.SensorMode), cfg.HiddenLayers, car.ActionCount),
		rng:       rand.New(rand.NewSource(seed)),
		selector:  cfg.Selector,
		logger:    cfg.Logger.With(zap.String("run_id", cfg.RunID), zap.String("trainer", "evolution")),
		bestScore: cfg.InitialBestScore,
	}, nil
}

func (tr *Trainer) RunID() string {
	return tr.cfg.RunID
}

// Generation is the index of the generation currently driving, starting at 0.
func (tr *Trainer) Generation() int {
	return tr.generation
}

func (tr *Trainer) BestScore() float64 {
	return tr.bestScore
}

// Best returns a copy of the best policy seen so far, or nil.
func (tr *Trainer) Best() *policy.Network {
	if tr.bestPolicy == nil {
		return nil
	}
	return tr.bestPolicy.Clone()
}

// History is the best score of every finished generation.
func (tr *Trainer) History() []float64 {
	return slices.Clone(tr.history)
}

func (tr *Trainer) LastPlan() GenerationPlan {
	return tr.lastPlan
}

// PopulationSize is the number of cars currently on track; zero before the
// first Advance.
func (tr *Trainer) PopulationSize() int {
	return len(tr.slots)
}

// Advance steps every live car once and starts the next generation when the
// whole population is dead.
func (tr *Trainer) Advance(ctx context.Context) error {
	if tr.slots == nil {
		if err := tr.bootstrap(); err != nil {
			return err
		}
	}

	err := sim.StepAll(ctx, tr.cfg.Workers, len(tr.slots), func(_ context.Context, i int) error {
		s := &tr.slots[i]
		_, err := s.ctl.Drive(tr.cfg.ActionEpsilon, s.rng)
		return err
	})
	if err != nil {
		return fmt.Errorf("step generation %d: %w", tr.generation, err)
	}

	for _, s := range tr.slots {
		if s.car.Alive() {
			return nil
		}
	}
	return tr.advanceGeneration()
}

func (tr *Trainer) fresh() (*policy.Network, error) {
	return policy.New(tr.dims, policy.ReLU, policy.Softmax, tr.rng)
}

// bootstrap seeds generation 0 with the restored best policy, if any, and
// random policies for the remaining slots.
func (tr *Trainer) bootstrap() error {
	policies := make([]*policy.Network, 0, tr.cfg.PopulationSize)
	if tr.bestPolicy != nil {
		policies = append(policies, tr.bestPolicy.Clone())
	}
	for len(policies) < tr.cfg.PopulationSize {
		p, err := tr.fresh()
		if err != nil {
			return err
		}
		policies = append(policies, p)
	}
	tr.populate(policies)
	tr.logger.Info("population seeded",
		zap.Int("generation", tr.generation),
		zap.Int("population", len(policies)),
		zap.Bool("from_snapshot", tr.bestPolicy != nil),
	)
	return nil
}

func (tr *Trainer) populate(policies []*policy.Network) {
	tr.slots = make([]slot, len(policies))
	for i, p := range policies {
		c := car.New(tr.track, tr.cfg.Car)
		tr.slots[i] = slot{
			car:    c,
			policy: p,
			ctl:    &car.Controller{Car: c, Policy: p},
			rng:    rand.New(rand.NewSource(tr.rng.Int63())),
		}
	}
}

func (tr *Trainer) rank() []Candidate {
	ranked := make([]Candidate, len(tr.slots))
	for i, s := range tr.slots {
		ranked[i] = Candidate{Policy: s.policy, Score: s.car.Score()}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

func (tr *Trainer) advanceGeneration() error {
	next, plan, err := tr.buildNextGeneration(tr.rank())
	if err != nil {
		return fmt.Errorf("build generation %d: %w", tr.generation+1, err)
	}
	tr.history = append(tr.history, plan.GenerationBest)
	tr.lastPlan = plan

	if plan.NewBest {
		tr.logger.Info("new best policy",
			zap.Int("generation", tr.generation),
			zap.Float64("score", tr.bestScore),
			zap.String("fingerprint", fmt.Sprintf("%016x", tr.bestPolicy.Fingerprint())),
		)
	}
	tr.logger.Info("generation finished",
		zap.Int("generation", tr.generation),
		zap.Float64("best_score", plan.GenerationBest),
		zap.Float64("best_ever", tr.bestScore),
		zap.Int("elites", plan.Elites),
		zap.Bool("carried_best", plan.Carried > 0),
		zap.Int("crossbred", plan.Crossbred),
	)

	tr.generation++
	tr.populate(next)
	return nil
}

// Views reports every car of the current generation for rendering.
func (tr *Trainer) Views() []car.View {
	views := make([]car.View, len(tr.slots))
	for i, s := range tr.slots {
		views[i] = s.car.View(tr.cfg.ViewRays)
	}
	return views
}

// Snapshot captures the best policy and score.
func (tr *Trainer) Snapshot() model.EvolutionSnapshot {
	snap := model.EvolutionSnapshot{
		VersionedRecord: model.VersionedRecord{SchemaVersion: storage.CurrentSchemaVersion, CodecVersion: storage.CurrentCodecVersion},
		ID:              uuid.NewString(),
		RunID:           tr.cfg.RunID,
		Generation:      tr.generation,
		BestScore:       tr.bestScore,
		SavedAt:         time.Now().UTC(),
	}
	if tr.bestPolicy != nil {
		rec := tr.bestPolicy.ToRecord()
		snap.BestPolicy = &rec
	}
	return snap
}

// Restore adopts a snapshot's best policy and score. It is seeded into
// generation 0 when called before the first Advance, and carried into the
// next generation boundary otherwise.
func (tr *Trainer) Restore(snap model.EvolutionSnapshot) error {
	if snap.BestPolicy == nil {
		return fmt.Errorf("%w: no best policy", ErrIncompatibleSnapshot)
	}
	best, err := policy.FromRecord(*snap.BestPolicy)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIncompatibleSnapshot, err)
	}
	if !slices.Equal(best.Dimensions(), tr.dims) {
		return fmt.Errorf("%w: policy dimensions %v, population uses %v", ErrIncompatibleSnapshot, best.Dimensions(), tr.dims)
	}
	tr.bestPolicy = best
	tr.bestScore = snap.BestScore
	tr.logger.Info("restored best policy",
		zap.String("snapshot_id", snap.ID),
		zap.Float64("best_score", snap.BestScore),
	)
	return nil
}
