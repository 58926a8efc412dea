package sim

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"racetrainer/internal/car"
)

func TestStepAllVisitsEveryIndexOnce(t *testing.T) {
	for _, workers := range []int{0, 1, 4, 64} {
		counts := make([]int32, 50)
		err := StepAll(context.Background(), workers, len(counts), func(_ context.Context, i int) error {
			atomic.AddInt32(&counts[i], 1)
			return nil
		})
		require.NoError(t, err)
		for i, c := range counts {
			require.Equal(t, int32(1), c, "workers=%d index=%d", workers, i)
		}
	}
}

func TestStepAllRespectsWorkerLimit(t *testing.T) {
	var running, peak int32
	err := StepAll(context.Background(), 3, 30, func(_ context.Context, _ int) error {
		now := atomic.AddInt32(&running, 1)
		for {
			old := atomic.LoadInt32(&peak)
			if now <= old || atomic.CompareAndSwapInt32(&peak, old, now) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		atomic.AddInt32(&running, -1)
		return nil
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))
}

func TestStepAllReturnsError(t *testing.T) {
	boom := errors.New("boom")
	err := StepAll(context.Background(), 4, 20, func(_ context.Context, i int) error {
		if i == 7 {
			return boom
		}
		return nil
	})
	assert.True(t, errors.Is(err, boom))

	err = StepAll(context.Background(), 1, 20, func(_ context.Context, i int) error {
		if i == 3 {
			return boom
		}
		return nil
	})
	assert.True(t, errors.Is(err, boom))
}

type countingTarget struct {
	ticks int
	err   error
}

func (c *countingTarget) Advance(context.Context) error {
	c.ticks++
	if c.err != nil && c.ticks == 3 {
		return c.err
	}
	return nil
}

func (c *countingTarget) Views() []car.View {
	return []car.View{{ID: "a", Alive: true}}
}

func (c *countingTarget) Generation() int {
	return c.ticks / 2
}

type recordingSink struct {
	mu     sync.Mutex
	frames []Frame
}

func (s *recordingSink) Publish(f Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, f)
}

func TestRunnerMaxTicksAndFrames(t *testing.T) {
	target := &countingTarget{}
	sink := &recordingSink{}
	result, err := Runner{MaxTicks: 10, Sink: sink}.Run(context.Background(), target)
	require.NoError(t, err)
	assert.Equal(t, 10, result.Ticks)
	assert.Equal(t, 10, target.ticks)
	require.Len(t, sink.frames, 10)
	assert.Equal(t, 10, sink.frames[9].Tick)
	assert.Equal(t, 5, sink.frames[9].Generation)
	assert.Len(t, sink.frames[0].Cars, 1)
}

func TestRunnerStopFunc(t *testing.T) {
	target := &countingTarget{}
	result, err := Runner{Stop: func() bool { return target.ticks >= 4 }}.Run(context.Background(), target)
	require.NoError(t, err)
	assert.Equal(t, 4, result.Ticks)
}

func TestRunnerPropagatesAdvanceError(t *testing.T) {
	boom := errors.New("boom")
	result, err := Runner{MaxTicks: 10}.Run(context.Background(), &countingTarget{err: boom})
	assert.True(t, errors.Is(err, boom))
	assert.Equal(t, 2, result.Ticks)
}

func TestRunnerThrottledStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	target := &countingTarget{}
	result, err := Runner{Rate: 1000}.Run(ctx, target)
	require.NoError(t, err)
	assert.Positive(t, result.Ticks)
	assert.Less(t, result.Ticks, 1000)
}
