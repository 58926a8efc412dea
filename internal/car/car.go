package car

import (
	"github.com/google/uuid"

	"racetrainer/internal/geom"
	"racetrainer/internal/sensor"
	"racetrainer/internal/track"
	"racetrainer/internal/vehicle"
)

// Scoring holds the reward schedule applied while a car drives.
type Scoring struct {
	ForwardReward    float64 `yaml:"forward_reward"`
	TurnReward       float64 `yaml:"turn_reward"`
	BackwardsReward  float64 `yaml:"backwards_reward"`
	CheckpointReward float64 `yaml:"checkpoint_reward"`
	LapReward        float64 `yaml:"lap_reward"`
	TickPenalty      float64 `yaml:"tick_penalty"`
	CrashPenalty     float64 `yaml:"crash_penalty"`
	// StarvationFrames kills a car that earns no checkpoint or lap reward
	// for that many ticks. Zero disables the cutoff.
	StarvationFrames int `yaml:"starvation_frames"`
}

func DefaultScoring() Scoring {
	return Scoring{
		ForwardReward:    0.2,
		TurnReward:       0,
		BackwardsReward:  -0.3,
		CheckpointReward: 20,
		LapReward:        20,
		TickPenalty:      -0.1,
		CrashPenalty:     -50,
		StarvationFrames: 100,
	}
}

type Options struct {
	// Immortal cars take the crash penalty but are never killed or moved.
	Immortal bool
	// AutoRespawn cars are teleported to the start pose on a crash instead of dying.
	AutoRespawn bool
	SensorMode  sensor.Mode
	SensorRange float64
	Vehicle     vehicle.Params
	Controls    Controls
	Scoring     Scoring
}

// DefaultOptions are the settings of a trained car: mortal, no respawn,
// full sensor layout.
func DefaultOptions() Options {
	return Options{
		SensorMode:  sensor.Full,
		SensorRange: sensor.DefaultRange,
		Vehicle:     vehicle.DefaultParams(),
		Controls:    DefaultControls(),
		Scoring:     DefaultScoring(),
	}
}

// Car is one simulated agent bound to a track it does not own.
type Car struct {
	ID string

	opts    Options
	track   track.Track
	vehicle *vehicle.Vehicle
	sensors *sensor.Array

	alive             bool
	score             float64
	laps              int
	checkpoints       int
	framesSinceReward int
}

func New(t track.Track, opts Options) *Car {
	c := &Car{
		ID:      uuid.NewString(),
		opts:    opts,
		track:   t,
		vehicle: vehicle.New(opts.Vehicle, t.StartPosition(), t.StartHeading()),
		sensors: sensor.NewArray(opts.SensorMode, opts.SensorRange),
	}
	c.Reset()
	return c
}

// FeatureWidth is the length of State for a car using mode.
func FeatureWidth(mode sensor.Mode) int {
	return sensor.Count(mode) + 1
}

// Step advances the car by one tick under action.
func (c *Car) Step(action Action) {
	if c.track.Editing() {
		c.Reset()
		return
	}
	if !c.alive {
		return
	}

	c.score += c.apply(action)

	c.framesSinceReward++
	if limit := c.opts.Scoring.StarvationFrames; limit > 0 && c.framesSinceReward >= limit {
		c.Kill()
		return
	}

	c.vehicle.Integrate()
	c.vehicle.UpdateHitbox()
	c.vehicle.ClampRest()

	c.score += c.opts.Scoring.TickPenalty

	if c.crashed() {
		c.Kill()
		return
	}

	checkpoints := c.track.Checkpoints()
	if c.checkpoints < len(checkpoints) && c.vehicle.Touches(checkpoints[c.checkpoints]) {
		c.checkpoints++
		c.score += c.opts.Scoring.CheckpointReward
		c.framesSinceReward = 0
	}
	if c.checkpoints == len(checkpoints) && c.vehicle.Touches(c.track.StartLine()) {
		c.laps++
		c.checkpoints = 0
		c.score += c.opts.Scoring.LapReward
		c.framesSinceReward = 0
	}

	c.sense()
}

func (c *Car) crashed() bool {
	for _, boundary := range c.track.Boundaries() {
		for _, edge := range geom.Edges(boundary) {
			if c.vehicle.Touches(edge) {
				return true
			}
		}
	}
	return false
}

func (c *Car) sense() {
	c.sensors.Update(c.vehicle.Hitbox(), c.vehicle.Position, c.vehicle.Heading)
	c.sensors.Scan(c.track)
}

// Kill applies the crash penalty. An immortal car keeps driving where it is;
// any other car goes back to the start pose, and dies unless it auto-respawns.
func (c *Car) Kill() {
	c.score += c.opts.Scoring.CrashPenalty
	c.framesSinceReward = 0
	if c.opts.Immortal {
		return
	}
	c.respawn()
	if !c.opts.AutoRespawn {
		c.alive = false
	}
}

func (c *Car) respawn() {
	c.vehicle.Place(c.track.StartPosition(), c.track.StartHeading())
	c.checkpoints = 0
	c.framesSinceReward = 0
	c.sense()
}

// Reset returns the car to a fresh, live state at the start pose.
func (c *Car) Reset() {
	c.respawn()
	c.alive = true
	c.score = 0
	c.laps = 0
}

func (c *Car) Alive() bool {
	return c.alive
}

func (c *Car) Score() float64 {
	return c.score
}

func (c *Car) Laps() int {
	return c.laps
}

// Checkpoints is the number of gates passed on the current lap.
func (c *Car) Checkpoints() int {
	return c.checkpoints
}

func (c *Car) Speed() float64 {
	return c.vehicle.Speed()
}

func (c *Car) Position() geom.Point {
	return c.vehicle.Position
}

func (c *Car) Heading() float64 {
	return c.vehicle.Heading
}

func (c *Car) Options() Options {
	return c.opts
}

// State is the policy feature vector: sensor distances followed by speed.
func (c *Car) State() []float64 {
	return append(c.sensors.Distances(), c.vehicle.Speed())
}

// View is what a renderer needs to draw one car.
type View struct {
	ID          string           `json:"id"`
	Hitbox      [4]geom.Point    `json:"hitbox"`
	Alive       bool             `json:"alive"`
	Score       float64          `json:"score"`
	Laps        int              `json:"laps"`
	Checkpoints int              `json:"checkpoints"`
	Rays        []sensor.Reading `json:"rays,omitempty"`
}

func (c *Car) View(withRays bool) View {
	v := View{
		ID:          c.ID,
		Hitbox:      c.vehicle.Hitbox(),
		Alive:       c.alive,
		Score:       c.score,
		Laps:        c.laps,
		Checkpoints: c.checkpoints,
	}
	if withRays {
		v.Rays = c.sensors.Readings()
	}
	return v
}
