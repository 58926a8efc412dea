package sensor

import (
	"fmt"
	"math"

	"racetrainer/internal/geom"
	"racetrainer/internal/track"
)

// Mode selects the sensor layout.
type Mode int

const (
	// Full uses the front bumper rays plus the rearview and sideview mirrors.
	Full Mode = iota
	// Simple uses only the front bumper rays.
	Simple
)

const DefaultRange = 800.0

func (m Mode) String() string {
	if m == Simple {
		return "simple"
	}
	return "full"
}

func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "full":
		return Full, nil
	case "simple":
		return Simple, nil
	default:
		return Full, fmt.Errorf("unknown sensor mode: %s", s)
	}
}

// Count is the number of rays, and so the number of distance features, in mode m.
func Count(m Mode) int {
	if m == Simple {
		return len(frontAngles)
	}
	return len(frontAngles) + 4
}

var frontAngles = [...]float64{
	-math.Pi / 5,
	-math.Pi / 3,
	-math.Pi / 2,
	0,
	math.Pi / 2,
	math.Pi / 3,
	math.Pi / 5,
}

// Mirror placement ratios. A larger rear/front ratio moves the mirrors forward.
const (
	mirrorRear  = 2.0
	mirrorFront = 3.0
)

// Reading is the outcome of one ray scan. Hit equals Ray.B when nothing was
// within range.
type Reading struct {
	Ray      geom.Segment `json:"ray"`
	Hit      geom.Point   `json:"hit"`
	Distance float64      `json:"distance"`
}

// Array is the fixed sensor layout of one car.
type Array struct {
	Mode  Mode
	Range float64

	readings []Reading
}

func NewArray(mode Mode, maxRange float64) *Array {
	if maxRange <= 0 {
		maxRange = DefaultRange
	}
	return &Array{
		Mode:     mode,
		Range:    maxRange,
		readings: make([]Reading, Count(mode)),
	}
}

type anchor struct {
	origin geom.Point
	angle  float64
}

func (a *Array) anchors(hitbox [4]geom.Point, position geom.Point) []anchor {
	// A and B span the front bumper, B-C is the right side, D-A the left side.
	ha, hb, hc, hd := hitbox[0], hitbox[1], hitbox[2], hitbox[3]
	bumper := geom.Midpoint(ha, hb)

	out := make([]anchor, 0, Count(a.Mode))
	for _, angle := range frontAngles {
		out = append(out, anchor{origin: bumper, angle: angle})
	}
	if a.Mode == Simple {
		return out
	}

	sideSpan := (mirrorFront + mirrorRear) * 2
	rearview := geom.Weighted(bumper, mirrorFront, position, mirrorRear)
	rightMirror := geom.Weighted(hc, mirrorRear, hb, sideSpan-mirrorRear)
	leftMirror := geom.Weighted(hd, mirrorRear, ha, sideSpan-mirrorRear)
	return append(out,
		anchor{origin: rearview, angle: 13 * math.Pi / 12},
		anchor{origin: rearview, angle: 11 * math.Pi / 12},
		anchor{origin: rightMirror, angle: 5 * math.Pi / 6},
		anchor{origin: leftMirror, angle: 7 * math.Pi / 6},
	)
}

// Update recomputes the rays from the current hitbox and pose. Readings are
// reset to full range until the next Scan.
func (a *Array) Update(hitbox [4]geom.Point, position geom.Point, heading float64) {
	base := geom.Point{X: a.Range}
	for i, an := range a.anchors(hitbox, position) {
		end := geom.Translate(an.origin, geom.RotateClockwise(base, heading+an.angle))
		a.readings[i] = Reading{
			Ray:      geom.Segment{A: an.origin, B: end},
			Hit:      end,
			Distance: geom.Distance(an.origin, end),
		}
	}
}

// Scan finds, for every ray, the closest boundary hit on t.
func (a *Array) Scan(t track.Track) {
	boundaries := t.Boundaries()
	for i := range a.readings {
		a.readings[i] = Cast(a.readings[i].Ray, boundaries)
	}
}

// Cast returns the closest intersection of ray with any boundary edge,
// defaulting to the ray's own endpoint.
func Cast(ray geom.Segment, boundaries [][]geom.Point) Reading {
	best := Reading{Ray: ray, Hit: ray.B, Distance: geom.Distance(ray.A, ray.B)}
	for _, boundary := range boundaries {
		for _, edge := range geom.Edges(boundary) {
			if !ray.Intersects(edge) {
				continue
			}
			hit := geom.IntersectionPoint(ray.A, ray.B, edge.A, edge.B)
			if d := geom.Distance(ray.A, hit); d < best.Distance {
				best.Hit = hit
				best.Distance = d
			}
		}
	}
	return best
}

func (a *Array) Readings() []Reading {
	return append([]Reading(nil), a.readings...)
}

// Distances returns the closest-hit distance of every ray in layout order.
func (a *Array) Distances() []float64 {
	out := make([]float64, len(a.readings))
	for i, r := range a.readings {
		out[i] = r.Distance
	}
	return out
}
