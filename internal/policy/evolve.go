package policy

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/rand"

	"github.com/cespare/xxhash/v2"
)

// Crossover builds a child of a and b. Each tensor is inherited whole:
// from a with probability rate, otherwise from b.
func Crossover(a, b *Network, rate float64, rng *rand.Rand) (*Network, error) {
	if a == nil || !a.Compatible(b) {
		return nil, fmt.Errorf("%w: crossover of incompatible parents", ErrShapeMismatch)
	}
	child := a.Clone()
	childTensors, donor := child.tensors(), b.tensors()
	for i := range childTensors {
		if rng.Float64() >= rate {
			copy(childTensors[i], donor[i])
		}
	}
	return child, nil
}

// Mutate perturbs n in place: each tensor, with probability rate, gets
// N(0, sigma) noise added to every element.
func (n *Network) Mutate(rate, sigma float64, rng *rand.Rand) {
	for _, tensor := range n.tensors() {
		if rng.Float64() >= rate {
			continue
		}
		for i := range tensor {
			tensor[i] += rng.NormFloat64() * sigma
		}
	}
}

// Fingerprint hashes the dimension list and every parameter. Equal
// fingerprints mean equal networks for deduplication purposes.
func (n *Network) Fingerprint() uint64 {
	d := xxhash.New()
	var buf [8]byte
	for _, dim := range n.dims {
		binary.LittleEndian.PutUint64(buf[:], uint64(dim))
		_, _ = d.Write(buf[:])
	}
	for _, tensor := range n.tensors() {
		for _, v := range tensor {
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
			_, _ = d.Write(buf[:])
		}
	}
	return d.Sum64()
}
