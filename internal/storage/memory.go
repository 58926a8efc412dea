package storage

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"

	"racetrainer/internal/model"
)

var errNotInitialized = errors.New("store is not initialized")

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	evolution   map[string]model.EvolutionSnapshot
	replay      map[string]model.ReplaySnapshot
	history     map[string][]float64
	tracks      map[string]model.TrackRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.evolution = make(map[string]model.EvolutionSnapshot)
	s.replay = make(map[string]model.ReplaySnapshot)
	s.history = make(map[string][]float64)
	s.tracks = make(map[string]model.TrackRecord)
	return nil
}

func (s *MemoryStore) SaveEvolutionSnapshot(_ context.Context, snap model.EvolutionSnapshot) error {
	if err := requireID("evolution snapshot", snap.ID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return errNotInitialized
	}

	s.evolution[snap.ID] = cloneEvolution(snap)
	return nil
}

func (s *MemoryStore) GetEvolutionSnapshot(_ context.Context, id string) (model.EvolutionSnapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.evolution[id]
	if !ok {
		return model.EvolutionSnapshot{}, false, nil
	}
	return cloneEvolution(snap), true, nil
}

func (s *MemoryStore) SaveReplaySnapshot(_ context.Context, snap model.ReplaySnapshot) error {
	if err := requireID("replay snapshot", snap.ID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return errNotInitialized
	}

	s.replay[snap.ID] = cloneReplay(snap)
	return nil
}

func (s *MemoryStore) GetReplaySnapshot(_ context.Context, id string) (model.ReplaySnapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.replay[id]
	if !ok {
		return model.ReplaySnapshot{}, false, nil
	}
	return cloneReplay(snap), true, nil
}

func (s *MemoryStore) SaveFitnessHistory(_ context.Context, runID string, history []float64) error {
	if err := requireID("run", runID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return errNotInitialized
	}

	s.history[runID] = slices.Clone(history)
	return nil
}

func (s *MemoryStore) GetFitnessHistory(_ context.Context, runID string) ([]float64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.history[runID]
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(history), true, nil
}

func (s *MemoryStore) SaveTrack(_ context.Context, rec model.TrackRecord) error {
	if err := requireID("track", rec.Name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return errNotInitialized
	}

	s.tracks[rec.Name] = cloneTrack(rec)
	return nil
}

func (s *MemoryStore) GetTrack(_ context.Context, name string) (model.TrackRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.tracks[name]
	if !ok {
		return model.TrackRecord{}, false, nil
	}
	return cloneTrack(rec), true, nil
}

func (s *MemoryStore) ListTracks(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.tracks))
	for name := range s.tracks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
