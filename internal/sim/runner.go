package sim

import (
	"context"
	"time"

	"go.uber.org/zap"

	"racetrainer/internal/car"
)

// DefaultRate is the nominal tick rate in ticks per second.
const DefaultRate = 60

// Advancer moves a trainer forward by exactly one simulated frame.
type Advancer interface {
	Advance(ctx context.Context) error
}

// Viewer exposes what a renderer draws each tick.
type Viewer interface {
	Views() []car.View
	Generation() int
}

// Frame is one tick's worth of renderer data.
type Frame struct {
	Tick       int        `json:"tick"`
	Generation int        `json:"generation"`
	Cars       []car.View `json:"cars"`
}

type FrameSink interface {
	Publish(Frame)
}

// Runner calls Advance once per tick. Rate <= 0 runs unthrottled.
type Runner struct {
	Rate     float64
	MaxTicks int
	// Stop is polled after every tick; returning true ends the run.
	Stop   func() bool
	Sink   FrameSink
	Logger *zap.Logger
}

// RunResult summarizes a finished run.
type RunResult struct {
	Ticks    int
	Duration time.Duration
}

// Run drives target until ctx is done, MaxTicks is reached or Stop reports
// true. Context cancellation is not an error.
func (r Runner) Run(ctx context.Context, target Advancer) (RunResult, error) {
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	viewer, _ := target.(Viewer)

	var tickC <-chan time.Time
	if r.Rate > 0 {
		ticker := time.NewTicker(time.Duration(float64(time.Second) / r.Rate))
		defer ticker.Stop()
		tickC = ticker.C
	}

	start := time.Now()
	result := RunResult{}
	for r.MaxTicks <= 0 || result.Ticks < r.MaxTicks {
		if tickC != nil {
			select {
			case <-ctx.Done():
				result.Duration = time.Since(start)
				return result, nil
			case <-tickC:
			}
		} else if ctx.Err() != nil {
			break
		}

		if err := target.Advance(ctx); err != nil {
			result.Duration = time.Since(start)
			if ctx.Err() != nil {
				return result, nil
			}
			return result, err
		}
		result.Ticks++

		if r.Sink != nil && viewer != nil {
			r.Sink.Publish(Frame{
				Tick:       result.Ticks,
				Generation: viewer.Generation(),
				Cars:       viewer.Views(),
			})
		}
		if r.Stop != nil && r.Stop() {
			break
		}
	}
	result.Duration = time.Since(start)
	logger.Debug("simulation stopped",
		zap.Int("ticks", result.Ticks),
		zap.Duration("elapsed", result.Duration),
	)
	return result, nil
}
