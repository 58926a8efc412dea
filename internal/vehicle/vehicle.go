package vehicle

import (
	"math"

	"racetrainer/internal/geom"
)

// Params are the fixed body and drag constants of one vehicle.
type Params struct {
	Width     float64 `yaml:"width"`
	Height    float64 `yaml:"height"`
	Friction  float64 `yaml:"friction"`
	RestSpeed float64 `yaml:"rest_speed"`
}

func DefaultParams() Params {
	return Params{
		Width:     15,
		Height:    30,
		Friction:  1.1,
		RestSpeed: 0.1,
	}
}

// Vehicle is the kinematic state of one car. Heading is in radians measured
// clockwise from +x (screen coordinates).
type Vehicle struct {
	Params

	Position geom.Point
	Heading  float64
	Velocity geom.Point

	hitbox [4]geom.Point
}

func New(params Params, position geom.Point, heading float64) *Vehicle {
	v := &Vehicle{Params: params}
	v.Place(position, heading)
	return v
}

// Place puts the vehicle at rest at the given pose.
func (v *Vehicle) Place(position geom.Point, heading float64) {
	v.Position = position
	v.Heading = heading
	v.Velocity = geom.Point{}
	v.UpdateHitbox()
}

func (v *Vehicle) Speed() float64 {
	return math.Hypot(v.Velocity.X, v.Velocity.Y)
}

// Turn rotates the heading by ln(speed+1)/3 * rad; a stationary car does not turn.
func (v *Vehicle) Turn(rad float64) {
	v.Heading += math.Log(v.Speed()+1) / 3 * rad
}

// Accelerate adds thrust along the current heading. Negative boost brakes.
func (v *Vehicle) Accelerate(boost float64) {
	sin, cos := math.Sincos(v.Heading)
	v.Velocity.X += boost * cos
	v.Velocity.Y += boost * sin
}

// Integrate applies friction and then advances the position by the velocity.
// Callers must call UpdateHitbox before any collision test.
func (v *Vehicle) Integrate() {
	if v.Friction != 0 {
		v.Velocity = geom.Scale(v.Velocity, 1/v.Friction)
	}
	v.Position = geom.Translate(v.Position, v.Velocity)
}

// ClampRest zeroes the velocity once the speed drops below RestSpeed.
func (v *Vehicle) ClampRest() {
	if v.Speed() < v.RestSpeed {
		v.Velocity = geom.Point{}
	}
}

// UpdateHitbox recomputes the body rectangle from the current pose.
func (v *Vehicle) UpdateHitbox() {
	halfH, halfW := v.Height/2, v.Width/2
	corners := [4]geom.Point{
		{X: halfH, Y: -halfW},
		{X: halfH, Y: halfW},
		{X: -halfH, Y: halfW},
		{X: -halfH, Y: -halfW},
	}
	for i, c := range corners {
		v.hitbox[i] = geom.Translate(v.Position, geom.RotateClockwise(c, v.Heading))
	}
}

// Hitbox returns the rectangle A, B, C, D: A is front-left and the points
// run clockwise on screen.
func (v *Vehicle) Hitbox() [4]geom.Point {
	return v.hitbox
}

// HitboxEdges returns AB, BC, CD and DA.
func (v *Vehicle) HitboxEdges() [4]geom.Segment {
	h := v.hitbox
	return [4]geom.Segment{
		{A: h[0], B: h[1]},
		{A: h[1], B: h[2]},
		{A: h[2], B: h[3]},
		{A: h[3], B: h[0]},
	}
}

// Touches reports whether any hitbox edge intersects gate.
func (v *Vehicle) Touches(gate geom.Segment) bool {
	for _, edge := range v.HitboxEdges() {
		if edge.Intersects(gate) {
			return true
		}
	}
	return false
}
