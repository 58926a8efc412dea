package policy

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Trace keeps the per-layer values of a batched forward pass for Backward.
type Trace struct {
	inputs []*mat.Dense
	pre    []*mat.Dense
	post   []*mat.Dense
}

// Output is the batch output, one row per sample.
func (t *Trace) Output() *mat.Dense {
	return t.post[len(t.post)-1]
}

// ForwardBatch evaluates every row of x.
func (n *Network) ForwardBatch(x *mat.Dense) (*Trace, error) {
	rows, cols := x.Dims()
	if cols != n.dims[0] {
		return nil, fmt.Errorf("%w: got %d want %d", ErrInputWidth, cols, n.dims[0])
	}
	tr := &Trace{}
	a := x
	for i, l := range n.layers {
		out, _ := l.W.Dims()
		z := mat.NewDense(rows, out, nil)
		z.Mul(a, l.W.T())
		bias := l.B.RawVector().Data
		for r := 0; r < rows; r++ {
			floats.Add(z.RawRowView(r), bias)
		}
		h := mat.DenseCopyOf(z)
		act := n.activation(i)
		for r := 0; r < rows; r++ {
			act.apply(h.RawRowView(r))
		}
		tr.inputs = append(tr.inputs, a)
		tr.pre = append(tr.pre, z)
		tr.post = append(tr.post, h)
		a = h
	}
	return tr, nil
}

// Gradients mirrors a network's parameters.
type Gradients struct {
	W []*mat.Dense
	B []*mat.VecDense
}

func (n *Network) zeroGradients() *Gradients {
	g := &Gradients{}
	for _, l := range n.layers {
		out, in := l.W.Dims()
		g.W = append(g.W, mat.NewDense(out, in, nil))
		g.B = append(g.B, mat.NewVecDense(out, nil))
	}
	return g
}

func (g *Gradients) tensors() [][]float64 {
	out := make([][]float64, 0, 2*len(g.W))
	for i := range g.W {
		out = append(out, g.W[i].RawMatrix().Data, g.B[i].RawVector().Data)
	}
	return out
}

// ClipValues clamps every gradient element to [-limit, limit].
func (g *Gradients) ClipValues(limit float64) {
	if limit <= 0 {
		return
	}
	for _, tensor := range g.tensors() {
		for i, v := range tensor {
			tensor[i] = math.Max(-limit, math.Min(limit, v))
		}
	}
}

// Backward returns the parameter gradients given dLoss/dOutput for the
// batch recorded in tr.
func (n *Network) Backward(tr *Trace, gradOut *mat.Dense) (*Gradients, error) {
	if tr == nil || len(tr.post) != len(n.layers) {
		return nil, fmt.Errorf("%w: trace does not match network", ErrShapeMismatch)
	}
	outRows, outCols := tr.Output().Dims()
	if r, c := gradOut.Dims(); r != outRows || c != outCols {
		return nil, fmt.Errorf("%w: output gradient %dx%d, want %dx%d", ErrShapeMismatch, r, c, outRows, outCols)
	}

	g := n.zeroGradients()
	delta := mat.DenseCopyOf(gradOut)
	for i := len(n.layers) - 1; i >= 0; i-- {
		act := n.activation(i)
		for r := 0; r < outRows; r++ {
			act.backprop(tr.pre[i].RawRowView(r), tr.post[i].RawRowView(r), delta.RawRowView(r))
		}
		g.W[i].Mul(delta.T(), tr.inputs[i])
		bias := g.B[i].RawVector().Data
		for r := 0; r < outRows; r++ {
			floats.Add(bias, delta.RawRowView(r))
		}
		if i > 0 {
			prev := mat.NewDense(outRows, n.dims[i], nil)
			prev.Mul(delta, n.layers[i].W)
			delta = prev
		}
	}
	return g, nil
}

// SmoothL1 is the mean Huber loss with beta 1, and its gradient with
// respect to pred.
func SmoothL1(pred, target []float64) (float64, []float64) {
	grad := make([]float64, len(pred))
	if len(pred) == 0 {
		return 0, grad
	}
	size := float64(len(pred))
	loss := 0.0
	for i := range pred {
		d := pred[i] - target[i]
		if math.Abs(d) < 1 {
			loss += 0.5 * d * d
			grad[i] = d / size
		} else {
			loss += math.Abs(d) - 0.5
			grad[i] = math.Copysign(1, d) / size
		}
	}
	return loss / size, grad
}

// Adam is the Adam optimizer. Moment estimates are allocated on the first Step.
type Adam struct {
	LR    float64
	Beta1 float64
	Beta2 float64
	Eps   float64

	steps int
	m, v  [][]float64
}

func NewAdam(lr float64) *Adam {
	return &Adam{LR: lr, Beta1: 0.9, Beta2: 0.999, Eps: 1e-8}
}

func (a *Adam) Step(n *Network, g *Gradients) error {
	params, grads := n.tensors(), g.tensors()
	if len(params) != len(grads) {
		return fmt.Errorf("%w: %d gradient tensors for %d parameters", ErrShapeMismatch, len(grads), len(params))
	}
	for i := range params {
		if len(params[i]) != len(grads[i]) {
			return fmt.Errorf("%w: gradient tensor %d", ErrShapeMismatch, i)
		}
	}
	if a.m == nil {
		a.m = make([][]float64, len(params))
		a.v = make([][]float64, len(params))
		for i := range params {
			a.m[i] = make([]float64, len(params[i]))
			a.v[i] = make([]float64, len(params[i]))
		}
	}

	a.steps++
	correct1 := 1 - math.Pow(a.Beta1, float64(a.steps))
	correct2 := 1 - math.Pow(a.Beta2, float64(a.steps))
	for i := range params {
		m, v := a.m[i], a.v[i]
		for j, gj := range grads[i] {
			m[j] = a.Beta1*m[j] + (1-a.Beta1)*gj
			v[j] = a.Beta2*v[j] + (1-a.Beta2)*gj*gj
			params[i][j] -= a.LR * (m[j] / correct1) / (math.Sqrt(v[j]/correct2) + a.Eps)
		}
	}
	return nil
}
