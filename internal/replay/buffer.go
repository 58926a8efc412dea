package replay

import (
	"errors"
	"fmt"
	"math/rand"
	"slices"

	"racetrainer/internal/car"
	"racetrainer/internal/model"
)

var ErrBufferUnderflow = errors.New("replay buffer holds fewer experiences than requested")

// Experience is one observed transition.
type Experience struct {
	State    []float64
	Action   car.Action
	Next     []float64
	Reward   float64
	Terminal bool
}

func (e Experience) toRecord() model.ExperienceRecord {
	return model.ExperienceRecord{
		State:    slices.Clone(e.State),
		Action:   int(e.Action),
		Next:     slices.Clone(e.Next),
		Reward:   e.Reward,
		Terminal: e.Terminal,
	}
}

func experienceFromRecord(rec model.ExperienceRecord) Experience {
	return Experience{
		State:    slices.Clone(rec.State),
		Action:   car.Action(rec.Action),
		Next:     slices.Clone(rec.Next),
		Reward:   rec.Reward,
		Terminal: rec.Terminal,
	}
}

// Buffer is a fixed-capacity FIFO of experiences. Pushing into a full
// buffer evicts the oldest entry.
type Buffer struct {
	items []Experience
	head  int
	size  int
}

func NewBuffer(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{items: make([]Experience, capacity)}
}

func (b *Buffer) Len() int {
	return b.size
}

func (b *Buffer) Cap() int {
	return len(b.items)
}

func (b *Buffer) Push(e Experience) {
	if b.size < len(b.items) {
		b.items[(b.head+b.size)%len(b.items)] = e
		b.size++
		return
	}
	b.items[b.head] = e
	b.head = (b.head + 1) % len(b.items)
}

// Sample draws n distinct experiences uniformly at random.
func (b *Buffer) Sample(n int, rng *rand.Rand) ([]Experience, error) {
	if n > b.size {
		return nil, fmt.Errorf("%w: have %d, want %d", ErrBufferUnderflow, b.size, n)
	}
	out := make([]Experience, 0, n)
	for _, idx := range rng.Perm(b.size)[:n] {
		out = append(out, b.items[(b.head+idx)%len(b.items)])
	}
	return out, nil
}

// Items returns the buffered experiences oldest first.
func (b *Buffer) Items() []Experience {
	out := make([]Experience, 0, b.size)
	for i := 0; i < b.size; i++ {
		out = append(out, b.items[(b.head+i)%len(b.items)])
	}
	return out
}
