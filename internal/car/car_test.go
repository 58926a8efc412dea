package car

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"racetrainer/internal/geom"
	"racetrainer/internal/sensor"
	"racetrainer/internal/track"
)

func gateAt(x float64) geom.Segment {
	return geom.Segment{A: geom.Point{X: x, Y: 50}, B: geom.Point{X: x, Y: 150}}
}

// corridor is a straight east-facing lane between y=50 and y=150 with the
// car starting at (100, 100).
func corridor(checkpointsX []float64, startLineX float64, extraWalls ...[]geom.Point) *track.Layout {
	layout := track.NewLayout()
	walls := [][]geom.Point{
		{{X: 0, Y: 50}, {X: 3000, Y: 50}},
		{{X: 0, Y: 150}, {X: 3000, Y: 150}},
	}
	layout.SetBoundaries(append(walls, extraWalls...))
	gates := make([]geom.Segment, 0, len(checkpointsX))
	for _, x := range checkpointsX {
		gates = append(gates, gateAt(x))
	}
	layout.SetCheckpoints(gates)
	layout.SetStartLine(gateAt(startLineX))
	layout.SetStart(geom.Point{X: 100, Y: 100}, 0)
	return layout
}

func driveUntil(c *Car, maxTicks int, done func() bool) int {
	for i := 1; i <= maxTicks; i++ {
		c.Step(Throttle)
		if done() {
			return i
		}
	}
	return -1
}

func TestNewCarStartsAliveAtStartPose(t *testing.T) {
	layout := corridor(nil, 50)
	c := New(layout, DefaultOptions())

	assert.True(t, c.Alive())
	assert.Equal(t, geom.Point{X: 100, Y: 100}, c.Position())
	assert.Equal(t, 0.0, c.Score())
	assert.NotEmpty(t, c.ID)
	assert.Len(t, c.State(), FeatureWidth(sensor.Full))

	simple := DefaultOptions()
	simple.SensorMode = sensor.Simple
	assert.Len(t, New(layout, simple).State(), 8)
}

func TestStateEndsWithSpeed(t *testing.T) {
	c := New(corridor(nil, 50), DefaultOptions())
	c.Step(Throttle)
	state := c.State()
	assert.InDelta(t, c.Speed(), state[len(state)-1], 1e-12)
	assert.Greater(t, c.Speed(), 0.0)
}

func TestActionRewards(t *testing.T) {
	opts := DefaultOptions()
	opts.Scoring.TickPenalty = 0

	cases := []struct {
		action Action
		want   float64
	}{
		{Throttle, 0.2},
		{Left, 0},
		{Brake, -0.3},
		{ThrottleBrake, -0.1},
		{ThrottleBrakeRight, -0.1},
		{NoAction, 0},
	}
	for _, tc := range cases {
		t.Run(tc.action.String(), func(t *testing.T) {
			c := New(corridor(nil, 50), opts)
			c.Step(tc.action)
			assert.InDelta(t, tc.want, c.Score(), 1e-12)
		})
	}
}

func TestSteeringDirection(t *testing.T) {
	c := New(corridor(nil, 50), DefaultOptions())
	c.Step(Throttle)
	c.Step(ThrottleRight)
	assert.Greater(t, c.Heading(), 0.0)

	c = New(corridor(nil, 50), DefaultOptions())
	c.Step(Throttle)
	c.Step(ThrottleLeft)
	assert.Less(t, c.Heading(), 0.0)
}

func TestCheckpointOnlyCountsNextExpectedGate(t *testing.T) {
	// Gate 1 sits before gate 0 along the lane.
	layout := corridor([]float64{400, 200}, 50)
	c := New(layout, DefaultOptions())

	passedSecond := driveUntil(c, 20, func() bool { return c.Position().X > 220 })
	require.Positive(t, passedSecond)
	assert.Equal(t, 0, c.Checkpoints())

	passedFirst := driveUntil(c, 40, func() bool { return c.Position().X > 420 })
	require.Positive(t, passedFirst)
	assert.Equal(t, 1, c.Checkpoints())
	assert.True(t, c.Alive())
}

func TestLapAfterAllCheckpoints(t *testing.T) {
	layout := corridor([]float64{200}, 400)
	c := New(layout, DefaultOptions())

	require.Positive(t, driveUntil(c, 60, func() bool { return c.Position().X > 500 }))
	assert.Equal(t, 1, c.Laps())
	assert.Equal(t, 0, c.Checkpoints())
	assert.Greater(t, c.Score(), 30.0)
}

func TestCrashKillsMortalCarPermanently(t *testing.T) {
	layout := corridor(nil, 50, []geom.Point{{X: 300, Y: 50}, {X: 300, Y: 150}})
	c := New(layout, DefaultOptions())

	require.Positive(t, driveUntil(c, 60, func() bool { return !c.Alive() }))
	assert.Equal(t, geom.Point{X: 100, Y: 100}, c.Position())
	assert.Less(t, c.Score(), -40.0)

	score := c.Score()
	for i := 0; i < 50; i++ {
		c.Step(Throttle)
	}
	assert.False(t, c.Alive())
	assert.Equal(t, score, c.Score())
}

func TestImmortalCarNeverDies(t *testing.T) {
	layout := corridor(nil, 50, []geom.Point{{X: 300, Y: 50}, {X: 300, Y: 150}})
	opts := DefaultOptions()
	opts.Immortal = true
	c := New(layout, opts)

	for i := 0; i < 500; i++ {
		c.Step(Throttle)
		require.True(t, c.Alive(), "tick %d", i)
	}
	assert.Less(t, c.Score(), -50.0)
}

func TestAutoRespawnTeleportsInsteadOfDying(t *testing.T) {
	layout := corridor(nil, 50, []geom.Point{{X: 300, Y: 50}, {X: 300, Y: 150}})
	opts := DefaultOptions()
	opts.AutoRespawn = true
	c := New(layout, opts)

	crashes := 0
	prevX := c.Position().X
	for i := 0; i < 300; i++ {
		c.Step(Throttle)
		require.True(t, c.Alive())
		if c.Position().X < prevX {
			crashes++
		}
		prevX = c.Position().X
	}
	assert.Greater(t, crashes, 1)
}

func TestStarvationCutoff(t *testing.T) {
	c := New(corridor(nil, 50), DefaultOptions())
	for i := 0; i < 99; i++ {
		c.Step(NoAction)
	}
	require.True(t, c.Alive())
	c.Step(NoAction)
	assert.False(t, c.Alive())
	assert.InDelta(t, 99*-0.1-50, c.Score(), 1e-9)
}

func TestStarvationDisabled(t *testing.T) {
	opts := DefaultOptions()
	opts.Scoring.StarvationFrames = 0
	c := New(corridor(nil, 50), opts)
	for i := 0; i < 500; i++ {
		c.Step(NoAction)
	}
	assert.True(t, c.Alive())
}

func TestTrackEditForcesReset(t *testing.T) {
	layout := corridor(nil, 50)
	c := New(layout, DefaultOptions())
	for i := 0; i < 100; i++ {
		c.Step(NoAction)
	}
	require.False(t, c.Alive())

	layout.SetEditing(true)
	c.Step(Throttle)
	assert.True(t, c.Alive())
	assert.Equal(t, 0.0, c.Score())
	assert.Equal(t, geom.Point{X: 100, Y: 100}, c.Position())

	// Held at the start while the edit lasts.
	c.Step(Throttle)
	assert.Equal(t, geom.Point{X: 100, Y: 100}, c.Position())

	layout.SetEditing(false)
	c.Step(Throttle)
	assert.Greater(t, c.Position().X, 100.0)
}

func TestResetClearsProgress(t *testing.T) {
	c := New(corridor([]float64{200}, 400), DefaultOptions())
	require.Positive(t, driveUntil(c, 60, func() bool { return c.Laps() == 1 }))

	c.Reset()
	assert.Equal(t, 0, c.Laps())
	assert.Equal(t, 0, c.Checkpoints())
	assert.Equal(t, 0.0, c.Score())
	assert.Equal(t, 0.0, c.Speed())
}

func TestView(t *testing.T) {
	c := New(corridor(nil, 50), DefaultOptions())
	v := c.View(true)
	assert.Equal(t, c.ID, v.ID)
	assert.Len(t, v.Rays, 11)
	assert.True(t, v.Alive)
	assert.Nil(t, c.View(false).Rays)
}

type fixedPolicy struct {
	scores []float64
	err    error
}

func (p fixedPolicy) Forward([]float64) ([]float64, error) {
	return p.scores, p.err
}

func TestControllerRequiresPolicy(t *testing.T) {
	ctl := &Controller{Car: New(corridor(nil, 50), DefaultOptions())}
	_, err := ctl.Act(0, rand.New(rand.NewSource(1)))
	assert.True(t, errors.Is(err, ErrMissingPolicy))
	_, err = ctl.Drive(0, rand.New(rand.NewSource(1)))
	assert.True(t, errors.Is(err, ErrMissingPolicy))
}

func TestControllerGreedyAndRandom(t *testing.T) {
	scores := make([]float64, ActionCount)
	scores[ThrottleRight] = 3
	ctl := &Controller{Car: New(corridor(nil, 50), DefaultOptions()), Policy: fixedPolicy{scores: scores}}
	rng := rand.New(rand.NewSource(5))

	action, err := ctl.Act(0, rng)
	require.NoError(t, err)
	assert.Equal(t, ThrottleRight, action)

	seen := map[Action]bool{}
	for i := 0; i < 200; i++ {
		action, err := ctl.Act(1, rng)
		require.NoError(t, err)
		require.True(t, action.Valid())
		seen[action] = true
	}
	assert.Greater(t, len(seen), 5)

	ctl.Policy = fixedPolicy{err: errors.New("boom")}
	_, err = ctl.Act(0, rng)
	assert.Error(t, err)
}

func TestControllerSkipsDeadCar(t *testing.T) {
	c := New(corridor(nil, 50), DefaultOptions())
	c.Kill()
	require.False(t, c.Alive())

	ctl := &Controller{Car: c, Policy: fixedPolicy{scores: make([]float64, ActionCount)}}
	action, err := ctl.Drive(0, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.Equal(t, NoAction, action)
}

func TestArgmax(t *testing.T) {
	assert.Equal(t, 2, Argmax([]float64{0.1, 0.5, 0.9, 0.2}))
	assert.Equal(t, 0, Argmax([]float64{1, 1, 1}))
	assert.Equal(t, 0, Argmax(nil))
}

func TestDefaultTrackFirstStraight(t *testing.T) {
	layout, err := track.Default()
	require.NoError(t, err)
	c := New(layout, DefaultOptions())
	require.False(t, c.crashed())

	ticks := driveUntil(c, 60, func() bool { return c.Checkpoints() == 1 })
	assert.Positive(t, ticks)
	assert.True(t, c.Alive())
}
