package track

import (
	"fmt"
	"math"

	"racetrainer/internal/geom"
)

// Phase is the edit session state. Any phase other than Idle marks the
// bound layout as being edited.
type Phase int

const (
	Idle Phase = iota
	StartLineFirst
	StartLineSecond
	CheckpointFirst
	CheckpointSecond
	BoundaryPoints
	StartPosition
	StartHeading
)

var phaseNames = map[Phase]string{
	Idle:             "idle",
	StartLineFirst:   "start_line_first",
	StartLineSecond:  "start_line_second",
	CheckpointFirst:  "checkpoint_first",
	CheckpointSecond: "checkpoint_second",
	BoundaryPoints:   "boundary_points",
	StartPosition:    "start_position",
	StartHeading:     "start_heading",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

type Event int

const (
	BeginStartLine Event = iota
	BeginCheckpoint
	BeginBoundary
	BeginStart
	Place
	Finish
	Cancel
)

var transitions = map[Phase]map[Event]Phase{
	Idle: {
		BeginStartLine:  StartLineFirst,
		BeginCheckpoint: CheckpointFirst,
		BeginBoundary:   BoundaryPoints,
		BeginStart:      StartPosition,
	},
	StartLineFirst:   {Place: StartLineSecond, Cancel: Idle},
	StartLineSecond:  {Place: Idle, Cancel: Idle},
	CheckpointFirst:  {Place: CheckpointSecond, Cancel: Idle},
	CheckpointSecond: {Place: Idle, Cancel: Idle},
	BoundaryPoints:   {Place: BoundaryPoints, Finish: Idle, Cancel: Idle},
	StartPosition:    {Place: StartHeading, Cancel: Idle},
	StartHeading:     {Place: Idle, Cancel: Idle},
}

type featureKind int

const (
	featureStartLine featureKind = iota
	featureCheckpoint
	featureBoundary
	featureStart
)

type undoEntry struct {
	kind          featureKind
	prevStartLine geom.Segment
	prevPosition  geom.Point
	prevHeading   float64
}

// Session drives stepwise edits of a Layout: each Apply feeds one event
// (usually a click) through the transition table.
type Session struct {
	layout  *Layout
	phase   Phase
	pending []geom.Point
	undo    []undoEntry
}

func NewSession(layout *Layout) *Session {
	return &Session{layout: layout}
}

func (s *Session) Phase() Phase {
	return s.phase
}

// Pending returns the points placed for the feature under construction.
func (s *Session) Pending() []geom.Point {
	return append([]geom.Point(nil), s.pending...)
}

// Apply feeds one event. Place events carry the clicked point; other events ignore it.
func (s *Session) Apply(event Event, at geom.Point) error {
	next, ok := transitions[s.phase][event]
	if !ok {
		return fmt.Errorf("%w: phase=%s event=%d", ErrInvalidTransition, s.phase, event)
	}

	switch {
	case event == Cancel:
		s.pending = s.pending[:0]
	case event == Place:
		s.pending = append(s.pending, at)
		if next == Idle {
			s.commit()
		}
	case event == Finish:
		if len(s.pending) >= 2 {
			s.commit()
		}
		s.pending = s.pending[:0]
	}

	s.phase = next
	s.layout.SetEditing(next != Idle)
	return nil
}

func (s *Session) commit() {
	switch s.phase {
	case StartLineSecond:
		s.undo = append(s.undo, undoEntry{kind: featureStartLine, prevStartLine: s.layout.StartLine()})
		s.layout.SetStartLine(geom.Segment{A: s.pending[0], B: s.pending[1]})
	case CheckpointSecond:
		s.undo = append(s.undo, undoEntry{kind: featureCheckpoint})
		s.layout.AddCheckpoint(geom.Segment{A: s.pending[0], B: s.pending[1]})
	case BoundaryPoints:
		s.undo = append(s.undo, undoEntry{kind: featureBoundary})
		s.layout.AddBoundary(s.pending)
	case StartHeading:
		s.undo = append(s.undo, undoEntry{
			kind:         featureStart,
			prevPosition: s.layout.StartPosition(),
			prevHeading:  s.layout.StartHeading(),
		})
		origin, toward := s.pending[0], s.pending[1]
		s.layout.SetStart(origin, math.Atan2(toward.Y-origin.Y, toward.X-origin.X))
	}
	s.pending = s.pending[:0]
}

// Undo reverts the most recently committed feature. Only valid while idle.
func (s *Session) Undo() error {
	if s.phase != Idle {
		return fmt.Errorf("%w: undo while %s", ErrInvalidTransition, s.phase)
	}
	if len(s.undo) == 0 {
		return ErrNothingToUndo
	}
	last := s.undo[len(s.undo)-1]
	s.undo = s.undo[:len(s.undo)-1]

	switch last.kind {
	case featureStartLine:
		s.layout.SetStartLine(last.prevStartLine)
	case featureCheckpoint:
		s.layout.removeLastCheckpoint()
	case featureBoundary:
		s.layout.removeLastBoundary()
	case featureStart:
		s.layout.SetStart(last.prevPosition, last.prevHeading)
	}
	return nil
}
