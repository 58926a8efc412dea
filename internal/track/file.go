package track

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"racetrainer/internal/geom"
)

// File is the on-disk track shape shared by the JSON and YAML encodings.
// Points are [x, y] pairs.
type File struct {
	StartPos    [2]float64      `json:"startPos" yaml:"startPos"`
	StartDir    float64         `json:"startDir" yaml:"startDir"`
	Trackpoints [][][2]float64  `json:"trackpoints" yaml:"trackpoints"`
	Checkpoints [][2][2]float64 `json:"checkpoints" yaml:"checkpoints"`
	StartLine   [2][2]float64   `json:"startLine" yaml:"startLine"`
}

// FileOf captures t. It refuses to capture a track that is mid-edit.
func FileOf(t Track) (File, error) {
	if t.Editing() {
		return File{}, ErrEditInProgress
	}
	f := File{
		StartPos:  pair(t.StartPosition()),
		StartDir:  t.StartHeading(),
		StartLine: gatePair(t.StartLine()),
	}
	for _, boundary := range t.Boundaries() {
		points := make([][2]float64, 0, len(boundary))
		for _, p := range boundary {
			points = append(points, pair(p))
		}
		f.Trackpoints = append(f.Trackpoints, points)
	}
	for _, gate := range t.Checkpoints() {
		f.Checkpoints = append(f.Checkpoints, gatePair(gate))
	}
	return f, nil
}

// Layout builds a fresh track from the file contents.
func (f File) Layout() *Layout {
	l := NewLayout()
	boundaries := make([][]geom.Point, 0, len(f.Trackpoints))
	for _, raw := range f.Trackpoints {
		points := make([]geom.Point, 0, len(raw))
		for _, p := range raw {
			points = append(points, point(p))
		}
		boundaries = append(boundaries, points)
	}
	checkpoints := make([]geom.Segment, 0, len(f.Checkpoints))
	for _, raw := range f.Checkpoints {
		checkpoints = append(checkpoints, gate(raw))
	}
	l.boundaries = boundaries
	l.checkpoints = checkpoints
	l.startLine = gate(f.StartLine)
	l.startPosition = point(f.StartPos)
	l.startHeading = f.StartDir
	return l
}

func DecodeJSON(r io.Reader) (*Layout, error) {
	var f File
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode track json: %w", err)
	}
	return f.Layout(), nil
}

func DecodeYAML(r io.Reader) (*Layout, error) {
	var f File
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode track yaml: %w", err)
	}
	return f.Layout(), nil
}

func EncodeJSON(w io.Writer, t Track) error {
	f, err := FileOf(t)
	if err != nil {
		return err
	}
	return json.NewEncoder(w).Encode(f)
}

func EncodeYAML(w io.Writer, t Track) error {
	f, err := FileOf(t)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(f)
}

// Load reads a track file, choosing the decoder by extension (.yaml/.yml, else JSON).
func Load(path string) (*Layout, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return DecodeYAML(file)
	default:
		return DecodeJSON(file)
	}
}

func pair(p geom.Point) [2]float64 {
	return [2]float64{p.X, p.Y}
}

func point(p [2]float64) geom.Point {
	return geom.Point{X: p[0], Y: p[1]}
}

func gatePair(s geom.Segment) [2][2]float64 {
	return [2][2]float64{pair(s.A), pair(s.B)}
}

func gate(raw [2][2]float64) geom.Segment {
	return geom.Segment{A: point(raw[0]), B: point(raw[1])}
}
