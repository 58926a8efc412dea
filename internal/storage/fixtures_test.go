package storage

import (
	"time"

	"racetrainer/internal/model"
	"racetrainer/internal/track"
)

func current() model.VersionedRecord {
	return model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}

func samplePolicy() model.PolicyRecord {
	return model.PolicyRecord{
		VersionedRecord: current(),
		Dimensions:      []int{2, 3, 1},
		Hidden:          "relu",
		Output:          "identity",
		Layers: []model.LayerRecord{
			{Weights: [][]float64{{0.1, 0.2}, {0.3, 0.4}, {-0.5, 0.6}}, Bias: []float64{0, 0.1, -0.1}},
			{Weights: [][]float64{{1, -1, 0.5}}, Bias: []float64{0.25}},
		},
	}
}

func sampleEvolution() model.EvolutionSnapshot {
	best := samplePolicy()
	return model.EvolutionSnapshot{
		VersionedRecord: current(),
		ID:              "evo-1",
		RunID:           "run-1",
		Generation:      12,
		BestScore:       431.5,
		BestPolicy:      &best,
		SavedAt:         time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func sampleReplay() model.ReplaySnapshot {
	return model.ReplaySnapshot{
		VersionedRecord: current(),
		ID:              "dql-1",
		RunID:           "run-2",
		Policy:          samplePolicy(),
		Epsilon:         0.37,
		Episode:         88,
		Buffer: []model.ExperienceRecord{
			{State: []float64{1, 2}, Action: 3, Next: []float64{1.5, 2.5}, Reward: 0.1},
			{State: []float64{1.5, 2.5}, Action: 8, Next: []float64{0, 0}, Reward: -50, Terminal: true},
		},
		SavedAt: time.Date(2024, 3, 2, 8, 30, 0, 0, time.UTC),
	}
}

func sampleTrack() model.TrackRecord {
	return model.TrackRecord{
		VersionedRecord: current(),
		Name:            "oval",
		Layout: track.File{
			StartPos:    [2]float64{100, 100},
			StartDir:    3.14,
			Trackpoints: [][][2]float64{{{0, 0}, {500, 0}, {500, 300}}, {{50, 50}, {450, 50}}},
			Checkpoints: [][2][2]float64{{{200, 0}, {200, 50}}},
			StartLine:   [2][2]float64{{80, 0}, {80, 50}},
		},
	}
}
