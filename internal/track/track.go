package track

import (
	"errors"
	"math"
	"sync"

	"racetrainer/internal/geom"
)

var (
	ErrEditInProgress    = errors.New("track edit in progress")
	ErrInvalidTransition = errors.New("invalid edit transition")
	ErrNothingToUndo     = errors.New("nothing to undo")
)

var (
	DefaultStartPosition = geom.Point{X: 20, Y: 20}
	DefaultStartHeading  = math.Pi
)

// Track is the read-only view the simulation needs. Implementations must be
// safe for concurrent readers and must never mutate a slice they returned.
type Track interface {
	Boundaries() [][]geom.Point
	Checkpoints() []geom.Segment
	StartLine() geom.Segment
	StartPosition() geom.Point
	StartHeading() float64
	Editing() bool
}

// Layout is the in-memory track. Writers replace slices instead of mutating
// them, so boundary data handed to a running tick stays valid.
type Layout struct {
	mu sync.RWMutex

	boundaries    [][]geom.Point
	checkpoints   []geom.Segment
	startLine     geom.Segment
	startPosition geom.Point
	startHeading  float64
	editing       bool
}

var _ Track = (*Layout)(nil)

func NewLayout() *Layout {
	return &Layout{
		startPosition: DefaultStartPosition,
		startHeading:  DefaultStartHeading,
	}
}

func (l *Layout) Boundaries() [][]geom.Point {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.boundaries
}

func (l *Layout) Checkpoints() []geom.Segment {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.checkpoints
}

func (l *Layout) StartLine() geom.Segment {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.startLine
}

func (l *Layout) StartPosition() geom.Point {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.startPosition
}

func (l *Layout) StartHeading() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.startHeading
}

func (l *Layout) Editing() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.editing
}

func (l *Layout) SetEditing(editing bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.editing = editing
}

func (l *Layout) SetBoundaries(boundaries [][]geom.Point) {
	copied := make([][]geom.Point, len(boundaries))
	for i, boundary := range boundaries {
		copied[i] = append([]geom.Point(nil), boundary...)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.boundaries = copied
}

func (l *Layout) AddBoundary(points []geom.Point) {
	l.mu.Lock()
	defer l.mu.Unlock()
	next := make([][]geom.Point, len(l.boundaries), len(l.boundaries)+1)
	copy(next, l.boundaries)
	l.boundaries = append(next, append([]geom.Point(nil), points...))
}

func (l *Layout) SetCheckpoints(checkpoints []geom.Segment) {
	copied := append([]geom.Segment(nil), checkpoints...)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.checkpoints = copied
}

func (l *Layout) AddCheckpoint(gate geom.Segment) {
	l.mu.Lock()
	defer l.mu.Unlock()
	next := make([]geom.Segment, len(l.checkpoints), len(l.checkpoints)+1)
	copy(next, l.checkpoints)
	l.checkpoints = append(next, gate)
}

func (l *Layout) SetStartLine(gate geom.Segment) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.startLine = gate
}

func (l *Layout) SetStart(position geom.Point, heading float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.startPosition = position
	l.startHeading = heading
}

func (l *Layout) removeLastBoundary() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.boundaries) == 0 {
		return false
	}
	l.boundaries = l.boundaries[:len(l.boundaries)-1:len(l.boundaries)-1]
	return true
}

func (l *Layout) removeLastCheckpoint() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.checkpoints) == 0 {
		return false
	}
	l.checkpoints = l.checkpoints[:len(l.checkpoints)-1 : len(l.checkpoints)-1]
	return true
}
