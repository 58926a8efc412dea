package car

import (
	"errors"
	"fmt"
	"math/rand"
)

var ErrMissingPolicy = errors.New("car controller has no policy")

// Policy scores every action for a feature vector.
type Policy interface {
	Forward(x []float64) ([]float64, error)
}

// Controller drives a Car with a Policy.
type Controller struct {
	Car    *Car
	Policy Policy
}

// Argmax returns the index of the largest score; ties go to the lowest index.
func Argmax(scores []float64) int {
	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[best] {
			best = i
		}
	}
	return best
}

// Greedy returns the policy's highest scoring action for the car's current state.
func (c *Controller) Greedy() (Action, error) {
	if c.Policy == nil {
		return NoAction, ErrMissingPolicy
	}
	scores, err := c.Policy.Forward(c.Car.State())
	if err != nil {
		return NoAction, fmt.Errorf("policy forward: %w", err)
	}
	if len(scores) == 0 {
		return NoAction, fmt.Errorf("policy returned no action scores")
	}
	return Action(Argmax(scores)), nil
}

// Act picks an action: uniformly random with probability epsilon, greedy otherwise.
func (c *Controller) Act(epsilon float64, rng *rand.Rand) (Action, error) {
	if c.Policy == nil {
		return NoAction, ErrMissingPolicy
	}
	if epsilon > 0 && rng.Float64() < epsilon {
		return Action(rng.Intn(ActionCount)), nil
	}
	return c.Greedy()
}

// Drive acts and steps the car once. Dead cars are left alone.
func (c *Controller) Drive(epsilon float64, rng *rand.Rand) (Action, error) {
	if !c.Car.Alive() && !c.Car.track.Editing() {
		return NoAction, nil
	}
	action, err := c.Act(epsilon, rng)
	if err != nil {
		return NoAction, err
	}
	c.Car.Step(action)
	return action, nil
}
