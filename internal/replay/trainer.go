package replay

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"racetrainer/internal/car"
	"racetrainer/internal/model"
	"racetrainer/internal/policy"
	"racetrainer/internal/storage"
	"racetrainer/internal/track"
)

// Stats summarizes a replay run.
type Stats struct {
	Episode      int     `json:"episode"`
	Epsilon      float64 `json:"epsilon"`
	Steps        int     `json:"steps"`
	TrainSteps   int     `json:"train_steps"`
	Syncs        int     `json:"syncs"`
	BufferLen    int     `json:"buffer_len"`
	LastLoss     float64 `json:"last_loss"`
	CurrentScore float64 `json:"current_score"`
}

// Trainer learns action values for a single car from replayed experience.
// The online network drives the car; the target network only supplies
// bootstrap values.
type Trainer struct {
	cfg    Config
	track  track.Track
	rng    *rand.Rand
	logger *zap.Logger

	car       *car.Car
	ctl       *car.Controller
	online    *policy.Network
	target    *policy.Network
	optimizer *policy.Adam
	buffer    *Buffer

	epsilon    float64
	episode    int
	sinceSync  int
	steps      int
	trainSteps int
	syncs      int
	lastLoss   float64
	history    []float64
	editing    bool
}

func NewTrainer(t track.Track, cfg Config) (*Trainer, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: track is required", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	dims := policy.Layers(car.FeatureWidth(cfg.Car.SensorMode), cfg.HiddenLayers, car.ActionCount)
	online, err := policy.New(dims, policy.ReLU, policy.Identity, rng)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	c := car.New(t, cfg.Car)
	tr := &Trainer{
		cfg:     cfg,
		track:   t,
		rng:     rng,
		logger:  cfg.Logger.With(zap.String("run_id", cfg.RunID), zap.String("trainer", "replay")),
		car:     c,
		ctl:     &car.Controller{Car: c},
		buffer:  NewBuffer(cfg.Capacity),
		epsilon: cfg.Epsilon(0),
	}
	tr.adopt(online)
	return tr, nil
}

func (tr *Trainer) adopt(online *policy.Network) {
	tr.online = online
	tr.target = online.Clone()
	tr.optimizer = policy.NewAdam(tr.cfg.LearningRate)
	tr.ctl.Policy = online
}

func (tr *Trainer) RunID() string {
	return tr.cfg.RunID
}

// Generation reports the episode counter.
func (tr *Trainer) Generation() int {
	return tr.episode
}

func (tr *Trainer) Epsilon() float64 {
	return tr.epsilon
}

func (tr *Trainer) LastLoss() float64 {
	return tr.lastLoss
}

// Policy returns a copy of the online network.
func (tr *Trainer) Policy() *policy.Network {
	return tr.online.Clone()
}

// History is the final score of every finished episode.
func (tr *Trainer) History() []float64 {
	return slices.Clone(tr.history)
}

func (tr *Trainer) Buffer() *Buffer {
	return tr.buffer
}

func (tr *Trainer) Stats() Stats {
	return Stats{
		Episode:      tr.episode,
		Epsilon:      tr.epsilon,
		Steps:        tr.steps,
		TrainSteps:   tr.trainSteps,
		Syncs:        tr.syncs,
		BufferLen:    tr.buffer.Len(),
		LastLoss:     tr.lastLoss,
		CurrentScore: tr.car.Score(),
	}
}

func (tr *Trainer) Views() []car.View {
	return []car.View{tr.car.View(tr.cfg.ViewRays)}
}

// Advance runs one tick: act, record the transition, train when due, and
// close the episode if the car died.
func (tr *Trainer) Advance(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if tr.track.Editing() {
		if !tr.editing {
			tr.logger.Debug("track edit started, car held at start", zap.Int("episode", tr.episode))
			tr.editing = true
		}
		tr.car.Reset()
		return nil
	}
	tr.editing = false

	state := tr.car.State()
	before := tr.car.Score()
	action, err := tr.ctl.Act(tr.epsilon, tr.rng)
	if err != nil {
		return fmt.Errorf("select action: %w", err)
	}
	tr.car.Step(action)

	tr.buffer.Push(Experience{
		State:    state,
		Action:   action,
		Next:     tr.car.State(),
		Reward:   tr.car.Score() - before,
		Terminal: !tr.car.Alive(),
	})
	tr.steps++
	tr.sinceSync++

	if tr.steps%tr.cfg.StepsBetweenTrain == 0 && tr.buffer.Len() >= tr.cfg.MinReplaySize {
		if err := tr.train(); err != nil {
			return fmt.Errorf("train step %d: %w", tr.trainSteps+1, err)
		}
	}
	if tr.cfg.SyncMode == SyncSoft {
		if err := tr.target.Blend(tr.online, tr.cfg.Alpha); err != nil {
			return fmt.Errorf("soft sync: %w", err)
		}
	}
	tr.epsilon = tr.cfg.Epsilon(tr.episode)

	if !tr.car.Alive() {
		return tr.endEpisode()
	}
	return nil
}

func (tr *Trainer) endEpisode() error {
	score := tr.car.Score()
	tr.history = append(tr.history, score)

	if tr.cfg.SyncMode == SyncHard && tr.sinceSync >= tr.cfg.StepsBetweenSync {
		if err := tr.target.CopyFrom(tr.online); err != nil {
			return fmt.Errorf("hard sync: %w", err)
		}
		tr.sinceSync = 0
		tr.syncs++
		tr.logger.Debug("target network synced", zap.String("mode", string(SyncHard)), zap.Int("syncs", tr.syncs))
	}

	tr.logger.Info("episode finished",
		zap.Int("episode", tr.episode),
		zap.Float64("score", score),
		zap.Float64("epsilon", tr.epsilon),
		zap.Int("buffer", tr.buffer.Len()),
		zap.Float64("last_loss", tr.lastLoss),
	)
	tr.car.Reset()
	tr.episode++
	tr.epsilon = tr.cfg.Epsilon(tr.episode)
	return nil
}

// train fits the online network to one sampled batch of bootstrap targets.
func (tr *Trainer) train() error {
	batch, err := tr.buffer.Sample(tr.cfg.BatchSize, tr.rng)
	if errors.Is(err, ErrBufferUnderflow) {
		return nil
	}
	if err != nil {
		return err
	}

	width := tr.online.InputWidth()
	states := mat.NewDense(len(batch), width, nil)
	nexts := mat.NewDense(len(batch), width, nil)
	for i, e := range batch {
		states.SetRow(i, e.State)
		nexts.SetRow(i, e.Next)
	}

	targetTrace, err := tr.target.ForwardBatch(nexts)
	if err != nil {
		return err
	}
	onlineTrace, err := tr.online.ForwardBatch(states)
	if err != nil {
		return err
	}

	q := onlineTrace.Output()
	nextQ := targetTrace.Output()
	pred := make([]float64, len(batch))
	targets := make([]float64, len(batch))
	for i, e := range batch {
		pred[i] = q.At(i, int(e.Action))
		targets[i] = e.Reward
		if !e.Terminal {
			targets[i] += tr.cfg.Gamma * floats.Max(nextQ.RawRowView(i))
		}
	}

	loss, grad := policy.SmoothL1(pred, targets)
	gradOut := mat.NewDense(len(batch), tr.online.OutputWidth(), nil)
	for i, e := range batch {
		gradOut.Set(i, int(e.Action), grad[i])
	}
	grads, err := tr.online.Backward(onlineTrace, gradOut)
	if err != nil {
		return err
	}
	grads.ClipValues(tr.cfg.GradClip)
	if err := tr.optimizer.Step(tr.online, grads); err != nil {
		return err
	}

	tr.lastLoss = loss
	tr.trainSteps++
	tr.logger.Debug("trained on replay batch",
		zap.Int("train_step", tr.trainSteps),
		zap.Int("batch", len(batch)),
		zap.Float64("loss", loss),
	)
	return nil
}

// Snapshot captures the online network, exploration state and buffer.
func (tr *Trainer) Snapshot() model.ReplaySnapshot {
	items := tr.buffer.Items()
	records := make([]model.ExperienceRecord, len(items))
	for i, e := range items {
		records[i] = e.toRecord()
	}
	return model.ReplaySnapshot{
		VersionedRecord: model.VersionedRecord{SchemaVersion: storage.CurrentSchemaVersion, CodecVersion: storage.CurrentCodecVersion},
		ID:              uuid.NewString(),
		RunID:           tr.cfg.RunID,
		Policy:          tr.online.ToRecord(),
		Epsilon:         tr.epsilon,
		Episode:         tr.episode,
		Buffer:          records,
		SavedAt:         time.Now().UTC(),
	}
}

// Restore replaces the networks, exploration state and buffer. The target
// network restarts as a copy of the restored online network.
func (tr *Trainer) Restore(snap model.ReplaySnapshot) error {
	online, err := policy.FromRecord(snap.Policy)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIncompatibleSnapshot, err)
	}
	if !slices.Equal(online.Dimensions(), tr.online.Dimensions()) {
		return fmt.Errorf("%w: policy dimensions %v, trainer uses %v",
			ErrIncompatibleSnapshot, online.Dimensions(), tr.online.Dimensions())
	}
	if snap.Episode < 0 {
		return fmt.Errorf("%w: negative episode %d", ErrIncompatibleSnapshot, snap.Episode)
	}

	width := online.InputWidth()
	buffer := NewBuffer(tr.cfg.Capacity)
	for i, rec := range snap.Buffer {
		if len(rec.State) != width || len(rec.Next) != width || !car.Action(rec.Action).Valid() {
			return fmt.Errorf("%w: malformed experience %d", ErrIncompatibleSnapshot, i)
		}
		buffer.Push(experienceFromRecord(rec))
	}

	tr.adopt(online)
	tr.buffer = buffer
	tr.epsilon = snap.Epsilon
	tr.episode = snap.Episode
	tr.sinceSync = 0
	tr.car.Reset()
	tr.logger.Info("restored replay state",
		zap.String("snapshot_id", snap.ID),
		zap.Int("episode", snap.Episode),
		zap.Int("buffer", buffer.Len()),
	)
	return nil
}
