package storage

import (
	"context"

	"racetrainer/internal/model"
)

// Store persists trainer snapshots, fitness history and tracks. Get methods
// report a missing record with ok=false and a nil error.
type Store interface {
	Init(ctx context.Context) error
	SaveEvolutionSnapshot(ctx context.Context, snap model.EvolutionSnapshot) error
	GetEvolutionSnapshot(ctx context.Context, id string) (model.EvolutionSnapshot, bool, error)
	SaveReplaySnapshot(ctx context.Context, snap model.ReplaySnapshot) error
	GetReplaySnapshot(ctx context.Context, id string) (model.ReplaySnapshot, bool, error)
	SaveFitnessHistory(ctx context.Context, runID string, history []float64) error
	GetFitnessHistory(ctx context.Context, runID string) ([]float64, bool, error)
	SaveTrack(ctx context.Context, rec model.TrackRecord) error
	GetTrack(ctx context.Context, name string) (model.TrackRecord, bool, error)
	ListTracks(ctx context.Context) ([]string, error)
}
