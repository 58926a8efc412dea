package policy

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"slices"

	"gonum.org/v1/gonum/mat"

	"racetrainer/internal/model"
	"racetrainer/internal/storage"
)

var (
	ErrShapeMismatch = errors.New("policy shape mismatch")
	ErrInputWidth    = errors.New("policy input width mismatch")
)

// Layer is one dense layer computing W*x + B. W has one row per output unit.
type Layer struct {
	W *mat.Dense
	B *mat.VecDense
}

// Network is a feed-forward layered function with a fixed dimension list
// [input, hidden..., output]. Hidden layers share one activation; the last
// layer uses the output activation.
type Network struct {
	dims   []int
	hidden Activation
	output Activation
	layers []Layer
}

func validateDims(dims []int) error {
	if len(dims) < 2 {
		return fmt.Errorf("%w: need at least input and output widths, got %v", ErrShapeMismatch, dims)
	}
	for _, d := range dims {
		if d <= 0 {
			return fmt.Errorf("%w: non-positive width in %v", ErrShapeMismatch, dims)
		}
	}
	return nil
}

func zeroNetwork(dims []int, hidden, output Activation) *Network {
	n := &Network{
		dims:   slices.Clone(dims),
		hidden: hidden,
		output: output,
		layers: make([]Layer, 0, len(dims)-1),
	}
	for i := 1; i < len(dims); i++ {
		n.layers = append(n.layers, Layer{
			W: mat.NewDense(dims[i], dims[i-1], nil),
			B: mat.NewVecDense(dims[i], nil),
		})
	}
	return n
}

// New builds a network with weights and biases drawn from
// U(-1/sqrt(fanIn), 1/sqrt(fanIn)).
func New(dims []int, hidden, output Activation, rng *rand.Rand) (*Network, error) {
	if err := validateDims(dims); err != nil {
		return nil, err
	}
	if rng == nil {
		return nil, fmt.Errorf("random source is required")
	}
	n := zeroNetwork(dims, hidden, output)
	for _, l := range n.layers {
		_, in := l.W.Dims()
		bound := 1 / math.Sqrt(float64(in))
		for _, tensor := range [][]float64{l.W.RawMatrix().Data, l.B.RawVector().Data} {
			for i := range tensor {
				tensor[i] = (rng.Float64()*2 - 1) * bound
			}
		}
	}
	return n, nil
}

// Layers builds the dimension list [input, hidden..., output].
func Layers(input int, hidden []int, output int) []int {
	dims := make([]int, 0, len(hidden)+2)
	dims = append(dims, input)
	dims = append(dims, hidden...)
	return append(dims, output)
}

func (n *Network) Dimensions() []int {
	return slices.Clone(n.dims)
}

func (n *Network) InputWidth() int {
	return n.dims[0]
}

func (n *Network) OutputWidth() int {
	return n.dims[len(n.dims)-1]
}

func (n *Network) HiddenActivation() Activation {
	return n.hidden
}

func (n *Network) OutputActivation() Activation {
	return n.output
}

// Compatible reports whether n and other have identical dimension lists.
func (n *Network) Compatible(other *Network) bool {
	return other != nil && slices.Equal(n.dims, other.dims)
}

func (n *Network) activation(layer int) Activation {
	if layer == len(n.layers)-1 {
		return n.output
	}
	return n.hidden
}

// Forward evaluates the network on one feature vector.
func (n *Network) Forward(x []float64) ([]float64, error) {
	if len(x) != n.dims[0] {
		return nil, fmt.Errorf("%w: got %d want %d", ErrInputWidth, len(x), n.dims[0])
	}
	a := mat.NewVecDense(len(x), slices.Clone(x))
	for i, l := range n.layers {
		out, _ := l.W.Dims()
		z := mat.NewVecDense(out, nil)
		z.MulVec(l.W, a)
		z.AddVec(z, l.B)
		n.activation(i).apply(z.RawVector().Data)
		a = z
	}
	return slices.Clone(a.RawVector().Data), nil
}

// tensors lists every weight matrix and bias vector, in layer order, as
// slices aliasing the network's storage.
func (n *Network) tensors() [][]float64 {
	out := make([][]float64, 0, 2*len(n.layers))
	for _, l := range n.layers {
		out = append(out, l.W.RawMatrix().Data, l.B.RawVector().Data)
	}
	return out
}

// NumTensors is the number of independently inherited tensors.
func (n *Network) NumTensors() int {
	return 2 * len(n.layers)
}

func (n *Network) Clone() *Network {
	c := zeroNetwork(n.dims, n.hidden, n.output)
	for i, l := range n.layers {
		c.layers[i].W.Copy(l.W)
		c.layers[i].B.CopyVec(l.B)
	}
	return c
}

// CopyFrom overwrites every parameter of n with src's.
func (n *Network) CopyFrom(src *Network) error {
	if !n.Compatible(src) {
		return fmt.Errorf("%w: copy into %v", ErrShapeMismatch, n.dims)
	}
	for i, l := range src.layers {
		n.layers[i].W.Copy(l.W)
		n.layers[i].B.CopyVec(l.B)
	}
	return nil
}

// Blend moves n toward src: n = alpha*src + (1-alpha)*n.
func (n *Network) Blend(src *Network, alpha float64) error {
	if !n.Compatible(src) {
		return fmt.Errorf("%w: blend into %v", ErrShapeMismatch, n.dims)
	}
	dst, from := n.tensors(), src.tensors()
	for i := range dst {
		for j := range dst[i] {
			dst[i][j] = alpha*from[i][j] + (1-alpha)*dst[i][j]
		}
	}
	return nil
}

func (n *Network) ToRecord() model.PolicyRecord {
	rec := model.PolicyRecord{
		VersionedRecord: model.VersionedRecord{SchemaVersion: storage.CurrentSchemaVersion, CodecVersion: storage.CurrentCodecVersion},
		Dimensions:      slices.Clone(n.dims),
		Hidden:          n.hidden.String(),
		Output:          n.output.String(),
		Layers:          make([]model.LayerRecord, 0, len(n.layers)),
	}
	for _, l := range n.layers {
		rows, _ := l.W.Dims()
		weights := make([][]float64, rows)
		for r := range weights {
			weights[r] = slices.Clone(l.W.RawRowView(r))
		}
		rec.Layers = append(rec.Layers, model.LayerRecord{
			Weights: weights,
			Bias:    slices.Clone(l.B.RawVector().Data),
		})
	}
	return rec
}

// FromRecord rebuilds a network, rejecting records whose tensors disagree
// with their dimension list.
func FromRecord(rec model.PolicyRecord) (*Network, error) {
	if err := validateDims(rec.Dimensions); err != nil {
		return nil, err
	}
	hidden, err := ParseActivation(rec.Hidden)
	if err != nil {
		return nil, err
	}
	output, err := ParseActivation(rec.Output)
	if err != nil {
		return nil, err
	}
	if len(rec.Layers) != len(rec.Dimensions)-1 {
		return nil, fmt.Errorf("%w: %d layers for dimensions %v", ErrShapeMismatch, len(rec.Layers), rec.Dimensions)
	}
	n := zeroNetwork(rec.Dimensions, hidden, output)
	for i, lr := range rec.Layers {
		out, in := rec.Dimensions[i+1], rec.Dimensions[i]
		if len(lr.Weights) != out || len(lr.Bias) != out {
			return nil, fmt.Errorf("%w: layer %d expects %d outputs", ErrShapeMismatch, i, out)
		}
		for r, row := range lr.Weights {
			if len(row) != in {
				return nil, fmt.Errorf("%w: layer %d row %d expects %d inputs", ErrShapeMismatch, i, r, in)
			}
			n.layers[i].W.SetRow(r, row)
		}
		copy(n.layers[i].B.RawVector().Data, lr.Bias)
	}
	return n, nil
}
