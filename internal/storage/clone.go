package storage

import (
	"slices"

	"racetrainer/internal/model"
	"racetrainer/internal/track"
)

func clonePolicy(p model.PolicyRecord) model.PolicyRecord {
	out := p
	out.Dimensions = slices.Clone(p.Dimensions)
	out.Layers = make([]model.LayerRecord, len(p.Layers))
	for i, l := range p.Layers {
		weights := make([][]float64, len(l.Weights))
		for r, row := range l.Weights {
			weights[r] = slices.Clone(row)
		}
		out.Layers[i] = model.LayerRecord{Weights: weights, Bias: slices.Clone(l.Bias)}
	}
	return out
}

func cloneEvolution(s model.EvolutionSnapshot) model.EvolutionSnapshot {
	out := s
	if s.BestPolicy != nil {
		best := clonePolicy(*s.BestPolicy)
		out.BestPolicy = &best
	}
	return out
}

func cloneReplay(s model.ReplaySnapshot) model.ReplaySnapshot {
	out := s
	out.Policy = clonePolicy(s.Policy)
	out.Buffer = make([]model.ExperienceRecord, len(s.Buffer))
	for i, e := range s.Buffer {
		e.State = slices.Clone(e.State)
		e.Next = slices.Clone(e.Next)
		out.Buffer[i] = e
	}
	return out
}

func cloneTrack(t model.TrackRecord) model.TrackRecord {
	out := t
	out.Layout = cloneFile(t.Layout)
	return out
}

func cloneFile(f track.File) track.File {
	out := f
	out.Trackpoints = make([][][2]float64, len(f.Trackpoints))
	for i, boundary := range f.Trackpoints {
		out.Trackpoints[i] = slices.Clone(boundary)
	}
	out.Checkpoints = slices.Clone(f.Checkpoints)
	return out
}
