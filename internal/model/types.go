package model

import (
	"time"

	"racetrainer/internal/track"
)

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// LayerRecord is one dense layer; Weights is row-major, one row per output unit.
type LayerRecord struct {
	Weights [][]float64 `json:"weights"`
	Bias    []float64   `json:"bias"`
}

type PolicyRecord struct {
	VersionedRecord
	Dimensions []int         `json:"dimensions"`
	Hidden     string        `json:"hidden"`
	Output     string        `json:"output"`
	Layers     []LayerRecord `json:"layers"`
}

// EvolutionSnapshot is the persisted state of an evolutionary run.
type EvolutionSnapshot struct {
	VersionedRecord
	ID         string        `json:"id"`
	RunID      string        `json:"run_id"`
	Generation int           `json:"generation"`
	BestScore  float64       `json:"best_score"`
	BestPolicy *PolicyRecord `json:"best_policy,omitempty"`
	SavedAt    time.Time     `json:"saved_at"`
}

type ExperienceRecord struct {
	State    []float64 `json:"state"`
	Action   int       `json:"action"`
	Next     []float64 `json:"next"`
	Reward   float64   `json:"reward"`
	Terminal bool      `json:"terminal"`
}

// ReplaySnapshot is the persisted state of a replay run. Buffer is oldest first.
type ReplaySnapshot struct {
	VersionedRecord
	ID      string             `json:"id"`
	RunID   string             `json:"run_id"`
	Policy  PolicyRecord       `json:"policy"`
	Epsilon float64            `json:"epsilon"`
	Episode int                `json:"episode"`
	Buffer  []ExperienceRecord `json:"buffer"`
	SavedAt time.Time          `json:"saved_at"`
}

type TrackRecord struct {
	VersionedRecord
	Name   string     `json:"name"`
	Layout track.File `json:"layout"`
}
