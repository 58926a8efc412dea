package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"racetrainer/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var (
	ErrVersionMismatch = errors.New("record version mismatch")
	ErrInvalidRecord   = errors.New("invalid record")
)

func EncodeEvolutionSnapshot(s model.EvolutionSnapshot) ([]byte, error) {
	return json.Marshal(s)
}

func DecodeEvolutionSnapshot(data []byte) (model.EvolutionSnapshot, error) {
	var snap model.EvolutionSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return model.EvolutionSnapshot{}, err
	}
	if err := checkVersion(snap.VersionedRecord); err != nil {
		return model.EvolutionSnapshot{}, err
	}
	if snap.BestPolicy != nil {
		if err := checkVersion(snap.BestPolicy.VersionedRecord); err != nil {
			return model.EvolutionSnapshot{}, fmt.Errorf("best policy: %w", err)
		}
	}
	return snap, nil
}

func EncodeReplaySnapshot(s model.ReplaySnapshot) ([]byte, error) {
	return json.Marshal(s)
}

func DecodeReplaySnapshot(data []byte) (model.ReplaySnapshot, error) {
	var snap model.ReplaySnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return model.ReplaySnapshot{}, err
	}
	if err := checkVersion(snap.VersionedRecord); err != nil {
		return model.ReplaySnapshot{}, err
	}
	if err := checkVersion(snap.Policy.VersionedRecord); err != nil {
		return model.ReplaySnapshot{}, fmt.Errorf("policy: %w", err)
	}
	return snap, nil
}

func EncodeTrack(t model.TrackRecord) ([]byte, error) {
	return json.Marshal(t)
}

func DecodeTrack(data []byte) (model.TrackRecord, error) {
	var rec model.TrackRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return model.TrackRecord{}, err
	}
	if err := checkVersion(rec.VersionedRecord); err != nil {
		return model.TrackRecord{}, err
	}
	return rec, nil
}

func EncodeFitnessHistory(history []float64) ([]byte, error) {
	return json.Marshal(history)
}

func DecodeFitnessHistory(data []byte) ([]float64, error) {
	var history []float64
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, err
	}
	return history, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}

func requireID(kind, id string) error {
	if id == "" {
		return fmt.Errorf("%w: %s id is required", ErrInvalidRecord, kind)
	}
	return nil
}
