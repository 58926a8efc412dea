package track

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"racetrainer/internal/geom"
)

const sampleJSON = `{
  "startPos": [100, 50],
  "startDir": 0,
  "trackpoints": [[[0, 0], [400, 0], [400, 200], [0, 200]], [[60, 60], [340, 60]]],
  "checkpoints": [[[200, 0], [200, 60]], [[200, 140], [200, 200]]],
  "startLine": [[100, 0], [100, 60]]
}`

func TestDecodeJSON(t *testing.T) {
	layout, err := DecodeJSON(strings.NewReader(sampleJSON))
	require.NoError(t, err)

	assert.Equal(t, geom.Point{X: 100, Y: 50}, layout.StartPosition())
	assert.Equal(t, 0.0, layout.StartHeading())
	require.Len(t, layout.Boundaries(), 2)
	assert.Len(t, layout.Boundaries()[0], 4)
	require.Len(t, layout.Checkpoints(), 2)
	assert.Equal(t, geom.Segment{A: geom.Point{X: 200, Y: 140}, B: geom.Point{X: 200, Y: 200}}, layout.Checkpoints()[1])
	assert.Equal(t, geom.Segment{A: geom.Point{X: 100}, B: geom.Point{X: 100, Y: 60}}, layout.StartLine())
	assert.False(t, layout.Editing())
}

func TestJSONAndYAMLRoundTrip(t *testing.T) {
	layout, err := DecodeJSON(strings.NewReader(sampleJSON))
	require.NoError(t, err)
	want, err := FileOf(layout)
	require.NoError(t, err)

	var jsonBuf bytes.Buffer
	require.NoError(t, EncodeJSON(&jsonBuf, layout))
	fromJSON, err := DecodeJSON(&jsonBuf)
	require.NoError(t, err)
	gotJSON, err := FileOf(fromJSON)
	require.NoError(t, err)
	assert.Equal(t, want, gotJSON)

	var yamlBuf bytes.Buffer
	require.NoError(t, EncodeYAML(&yamlBuf, layout))
	fromYAML, err := DecodeYAML(&yamlBuf)
	require.NoError(t, err)
	gotYAML, err := FileOf(fromYAML)
	require.NoError(t, err)
	assert.Equal(t, want, gotYAML)
}

func TestLoadPicksDecoderByExtension(t *testing.T) {
	layout, err := DecodeJSON(strings.NewReader(sampleJSON))
	require.NoError(t, err)

	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "oval.yaml")
	var buf bytes.Buffer
	require.NoError(t, EncodeYAML(&buf, layout))
	require.NoError(t, os.WriteFile(yamlPath, buf.Bytes(), 0o644))

	loaded, err := Load(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, layout.StartLine(), loaded.StartLine())

	_, err = Load(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestEncodeRefusesWhileEditing(t *testing.T) {
	layout := NewLayout()
	layout.SetEditing(true)
	err := EncodeJSON(&bytes.Buffer{}, layout)
	assert.True(t, errors.Is(err, ErrEditInProgress))
}

func TestLayoutReadersKeepTheirSnapshot(t *testing.T) {
	layout := NewLayout()
	layout.AddBoundary([]geom.Point{{X: 0, Y: 0}, {X: 10, Y: 0}})
	before := layout.Boundaries()

	layout.AddBoundary([]geom.Point{{X: 0, Y: 5}, {X: 10, Y: 5}})
	layout.removeLastBoundary()
	layout.AddBoundary([]geom.Point{{X: 0, Y: 9}, {X: 10, Y: 9}})

	require.Len(t, before, 1)
	assert.Equal(t, geom.Point{X: 10, Y: 0}, before[0][1])
	assert.Len(t, layout.Boundaries(), 2)
}

func TestSessionBuildsFeatures(t *testing.T) {
	layout := NewLayout()
	s := NewSession(layout)

	require.NoError(t, s.Apply(BeginStartLine, geom.Point{}))
	assert.True(t, layout.Editing())
	require.NoError(t, s.Apply(Place, geom.Point{X: 1, Y: 2}))
	assert.Equal(t, StartLineSecond, s.Phase())
	require.NoError(t, s.Apply(Place, geom.Point{X: 1, Y: 8}))
	assert.Equal(t, Idle, s.Phase())
	assert.False(t, layout.Editing())
	assert.Equal(t, geom.Segment{A: geom.Point{X: 1, Y: 2}, B: geom.Point{X: 1, Y: 8}}, layout.StartLine())

	require.NoError(t, s.Apply(BeginBoundary, geom.Point{}))
	for _, p := range []geom.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}} {
		require.NoError(t, s.Apply(Place, p))
	}
	assert.Equal(t, BoundaryPoints, s.Phase())
	assert.Len(t, s.Pending(), 3)
	require.NoError(t, s.Apply(Finish, geom.Point{}))
	require.Len(t, layout.Boundaries(), 1)
	assert.Len(t, layout.Boundaries()[0], 3)

	require.NoError(t, s.Apply(BeginCheckpoint, geom.Point{}))
	require.NoError(t, s.Apply(Place, geom.Point{X: 5, Y: 0}))
	require.NoError(t, s.Apply(Place, geom.Point{X: 5, Y: 4}))
	assert.Len(t, layout.Checkpoints(), 1)

	require.NoError(t, s.Apply(BeginStart, geom.Point{}))
	require.NoError(t, s.Apply(Place, geom.Point{X: 3, Y: 3}))
	require.NoError(t, s.Apply(Place, geom.Point{X: 3, Y: 9}))
	assert.Equal(t, geom.Point{X: 3, Y: 3}, layout.StartPosition())
	assert.InDelta(t, math.Pi/2, layout.StartHeading(), 1e-12)
}

func TestSessionRejectsInvalidTransitions(t *testing.T) {
	s := NewSession(NewLayout())
	err := s.Apply(Place, geom.Point{})
	assert.True(t, errors.Is(err, ErrInvalidTransition))

	require.NoError(t, s.Apply(BeginCheckpoint, geom.Point{}))
	err = s.Apply(BeginBoundary, geom.Point{})
	assert.True(t, errors.Is(err, ErrInvalidTransition))
	assert.True(t, errors.Is(s.Undo(), ErrInvalidTransition))

	require.NoError(t, s.Apply(Cancel, geom.Point{}))
	assert.Equal(t, Idle, s.Phase())
	assert.Empty(t, s.Pending())
}

func TestSessionShortBoundaryIsDropped(t *testing.T) {
	layout := NewLayout()
	s := NewSession(layout)
	require.NoError(t, s.Apply(BeginBoundary, geom.Point{}))
	require.NoError(t, s.Apply(Place, geom.Point{X: 1, Y: 1}))
	require.NoError(t, s.Apply(Finish, geom.Point{}))
	assert.Empty(t, layout.Boundaries())
	assert.True(t, errors.Is(s.Undo(), ErrNothingToUndo))
}

func TestSessionUndo(t *testing.T) {
	layout := NewLayout()
	s := NewSession(layout)

	require.NoError(t, s.Apply(BeginCheckpoint, geom.Point{}))
	require.NoError(t, s.Apply(Place, geom.Point{X: 5, Y: 0}))
	require.NoError(t, s.Apply(Place, geom.Point{X: 5, Y: 4}))
	require.NoError(t, s.Apply(BeginStart, geom.Point{}))
	require.NoError(t, s.Apply(Place, geom.Point{X: 3, Y: 3}))
	require.NoError(t, s.Apply(Place, geom.Point{X: 9, Y: 3}))

	require.NoError(t, s.Undo())
	assert.Equal(t, DefaultStartPosition, layout.StartPosition())
	assert.Equal(t, DefaultStartHeading, layout.StartHeading())

	require.NoError(t, s.Undo())
	assert.Empty(t, layout.Checkpoints())
	assert.True(t, errors.Is(s.Undo(), ErrNothingToUndo))
}

func TestDefaultTrack(t *testing.T) {
	layout, err := Default()
	require.NoError(t, err)

	assert.Equal(t, geom.Point{X: 700, Y: 225}, layout.StartPosition())
	require.Len(t, layout.Boundaries(), 2)
	assert.Len(t, layout.Checkpoints(), 8)
	for _, boundary := range layout.Boundaries() {
		assert.Equal(t, boundary[0], boundary[len(boundary)-1], "ring boundaries are closed")
	}

	again, err := Default()
	require.NoError(t, err)
	again.SetCheckpoints(nil)
	assert.Len(t, layout.Checkpoints(), 8)
}
