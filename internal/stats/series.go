package stats

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// SeriesSummary describes a score history.
type SeriesSummary struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
	Std   float64 `json:"std"`
	Max   float64 `json:"max"`
	Min   float64 `json:"min"`
	Last  float64 `json:"last"`
	// Improvement is the last value minus the first.
	Improvement float64 `json:"improvement"`
}

func Summarize(values []float64) SeriesSummary {
	if len(values) == 0 {
		return SeriesSummary{}
	}
	out := SeriesSummary{
		Count:       len(values),
		Max:         floats.Max(values),
		Min:         floats.Min(values),
		Last:        values[len(values)-1],
		Improvement: values[len(values)-1] - values[0],
	}
	if len(values) == 1 {
		out.Mean = values[0]
		return out
	}
	out.Mean, out.Std = stat.MeanStdDev(values, nil)
	return out
}

type PlotPoint struct {
	Index int     `json:"index"`
	Value float64 `json:"value"`
}

// MovingAverage averages values over a trailing window, emitting one point
// every step entries and always one for the final entry.
func MovingAverage(values []float64, window, step int) []PlotPoint {
	if window <= 0 {
		window = 1
	}
	if step <= 0 {
		step = 1
	}
	out := make([]PlotPoint, 0, len(values)/step+1)
	for i := step - 1; i < len(values); i += step {
		lo := max(0, i-window+1)
		out = append(out, PlotPoint{Index: i + 1, Value: stat.Mean(values[lo:i+1], nil)})
	}
	if n := len(values); n > 0 && (len(out) == 0 || out[len(out)-1].Index != n) {
		lo := max(0, n-window)
		out = append(out, PlotPoint{Index: n, Value: stat.Mean(values[lo:], nil)})
	}
	return out
}

// RunningBest is the best value seen up to each index.
func RunningBest(values []float64) []float64 {
	out := make([]float64, len(values))
	best := math.Inf(-1)
	for i, v := range values {
		best = math.Max(best, v)
		out[i] = best
	}
	return out
}
