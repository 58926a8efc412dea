package car

import "fmt"

// Action is one of the discrete driving commands a policy can emit.
type Action int

// NoAction leaves the controls untouched for one tick.
const NoAction Action = -1

const (
	Throttle Action = iota
	Left
	Brake
	Right
	ThrottleLeft
	ThrottleRight
	ThrottleBrake
	ThrottleBrakeLeft
	ThrottleBrakeRight
)

// ActionCount is the width of a policy's output layer.
const ActionCount = 9

var actionNames = [ActionCount]string{
	"throttle",
	"left",
	"brake",
	"right",
	"throttle+left",
	"throttle+right",
	"throttle+brake",
	"throttle+brake+left",
	"throttle+brake+right",
}

func (a Action) String() string {
	if a == NoAction {
		return "none"
	}
	if a < 0 || int(a) >= ActionCount {
		return fmt.Sprintf("action(%d)", int(a))
	}
	return actionNames[a]
}

func (a Action) Valid() bool {
	return a >= 0 && int(a) < ActionCount
}

// Controls are the control authorities behind the action table.
type Controls struct {
	Acceleration float64 `yaml:"acceleration"`
	Brake        float64 `yaml:"brake"`
	TurningPower float64 `yaml:"turning_power"`
}

func DefaultControls() Controls {
	return Controls{
		Acceleration: 1.3,
		Brake:        0.7,
		TurningPower: 1.5 * 0.08726646,
	}
}

type command struct {
	throttle bool
	brake    bool
	steer    int
}

var commands = [ActionCount]command{
	Throttle:           {throttle: true},
	Left:               {steer: -1},
	Brake:              {brake: true},
	Right:              {steer: 1},
	ThrottleLeft:       {throttle: true, steer: -1},
	ThrottleRight:      {throttle: true, steer: 1},
	ThrottleBrake:      {throttle: true, brake: true},
	ThrottleBrakeLeft:  {throttle: true, brake: true, steer: -1},
	ThrottleBrakeRight: {throttle: true, brake: true, steer: 1},
}

// apply drives the vehicle for one action and returns the action reward.
// Thrust is applied before steering so the turn sees the new speed.
func (c *Car) apply(a Action) float64 {
	if !a.Valid() {
		return 0
	}
	cmd := commands[a]
	reward := 0.0

	boost := 0.0
	if cmd.throttle {
		boost += c.opts.Controls.Acceleration
		reward += c.opts.Scoring.ForwardReward
	}
	if cmd.brake {
		boost -= c.opts.Controls.Brake
		reward += c.opts.Scoring.BackwardsReward
	}
	if cmd.throttle || cmd.brake {
		c.vehicle.Accelerate(boost)
	}
	if cmd.steer != 0 {
		c.vehicle.Turn(float64(cmd.steer) * c.opts.Controls.TurningPower)
		reward += c.opts.Scoring.TurnReward
	}
	return reward
}
