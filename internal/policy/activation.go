package policy

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

type Activation int

const (
	Identity Activation = iota
	ReLU
	Tanh
	Softmax
)

var activationNames = map[Activation]string{
	Identity: "identity",
	ReLU:     "relu",
	Tanh:     "tanh",
	Softmax:  "softmax",
}

func (a Activation) String() string {
	if name, ok := activationNames[a]; ok {
		return name
	}
	return fmt.Sprintf("activation(%d)", int(a))
}

func ParseActivation(name string) (Activation, error) {
	for a, n := range activationNames {
		if n == name {
			return a, nil
		}
	}
	return Identity, fmt.Errorf("unknown activation: %s", name)
}

// apply transforms one row of pre-activations in place.
func (a Activation) apply(v []float64) {
	switch a {
	case ReLU:
		for i, x := range v {
			if x < 0 {
				v[i] = 0
			}
		}
	case Tanh:
		for i, x := range v {
			v[i] = math.Tanh(x)
		}
	case Softmax:
		if len(v) == 0 {
			return
		}
		peak := floats.Max(v)
		for i, x := range v {
			v[i] = math.Exp(x - peak)
		}
		floats.Scale(1/floats.Sum(v), v)
	}
}

// backprop turns dL/d(post) into dL/d(pre) in place for one row.
func (a Activation) backprop(pre, post, grad []float64) {
	switch a {
	case ReLU:
		for i, x := range pre {
			if x <= 0 {
				grad[i] = 0
			}
		}
	case Tanh:
		for i, y := range post {
			grad[i] *= 1 - y*y
		}
	case Softmax:
		dot := floats.Dot(grad, post)
		for i, s := range post {
			grad[i] = s * (grad[i] - dot)
		}
	}
}
