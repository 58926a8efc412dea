package geom

import "math"

// Point is a 2D coordinate. Screen convention: y grows downwards, so positive
// angles rotate clockwise.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Segment is an ordered pair of points: a boundary edge, checkpoint gate or start line.
type Segment struct {
	A Point `json:"a"`
	B Point `json:"b"`
}

// FarPoint is returned by IntersectionPoint when the two lines never meet.
// It is a marker for "no finite intersection", not a coordinate.
var FarPoint = Point{X: 1e9, Y: 1e9}

type Orientation int

const (
	Collinear Orientation = iota
	Clockwise
	CounterClockwise
)

func (o Orientation) String() string {
	switch o {
	case Clockwise:
		return "clockwise"
	case CounterClockwise:
		return "counterclockwise"
	default:
		return "collinear"
	}
}

// Orient classifies the ordered triple (p, q, r) by the sign of the cross product.
func Orient(p, q, r Point) Orientation {
	val := (q.Y-p.Y)*(r.X-q.X) - (q.X-p.X)*(r.Y-q.Y)
	switch {
	case val > 0:
		return Clockwise
	case val < 0:
		return CounterClockwise
	default:
		return Collinear
	}
}

// OnSegment reports whether q lies inside the bounding box of p and r.
// Callers establish collinearity first.
func OnSegment(p, q, r Point) bool {
	return q.X <= math.Max(p.X, r.X) && q.X >= math.Min(p.X, r.X) &&
		q.Y <= math.Max(p.Y, r.Y) && q.Y >= math.Min(p.Y, r.Y)
}

// SegmentsIntersect reports whether p1q1 and p2q2 share at least one point,
// touching and collinear-overlapping cases included.
func SegmentsIntersect(p1, q1, p2, q2 Point) bool {
	o1 := Orient(p1, q1, p2)
	o2 := Orient(p1, q1, q2)
	o3 := Orient(p2, q2, p1)
	o4 := Orient(p2, q2, q1)

	if o1 != o2 && o3 != o4 {
		return true
	}
	if o1 == Collinear && OnSegment(p1, p2, q1) {
		return true
	}
	if o2 == Collinear && OnSegment(p1, q2, q1) {
		return true
	}
	if o3 == Collinear && OnSegment(p2, p1, q2) {
		return true
	}
	if o4 == Collinear && OnSegment(p2, q1, q2) {
		return true
	}
	return false
}

// Intersects is SegmentsIntersect over Segment values.
func (s Segment) Intersects(o Segment) bool {
	return SegmentsIntersect(s.A, s.B, o.A, o.B)
}

// IntersectionPoint solves for the crossing of the infinite lines AB and CD.
// Parallel or coincident lines yield FarPoint. Boundedness is not checked.
func IntersectionPoint(a, b, c, d Point) Point {
	a1 := b.Y - a.Y
	b1 := a.X - b.X
	c1 := a1*a.X + b1*a.Y

	a2 := d.Y - c.Y
	b2 := c.X - d.X
	c2 := a2*c.X + b2*c.Y

	det := a1*b2 - a2*b1
	if det == 0 {
		return FarPoint
	}
	return Point{
		X: (b2*c1 - b1*c2) / det,
		Y: (a1*c2 - a2*c1) / det,
	}
}

// Distance is the Euclidean distance between a and b.
func Distance(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// RotateClockwise rotates p about the origin by theta radians (clockwise on screen).
func RotateClockwise(p Point, theta float64) Point {
	sin, cos := math.Sincos(theta)
	return Point{
		X: p.X*cos - p.Y*sin,
		Y: p.X*sin + p.Y*cos,
	}
}

func Translate(p, by Point) Point {
	return Point{X: p.X + by.X, Y: p.Y + by.Y}
}

func Scale(p Point, c float64) Point {
	return Point{X: p.X * c, Y: p.Y * c}
}

// Weighted returns (wa*a + wb*b) / (wa + wb).
func Weighted(a Point, wa float64, b Point, wb float64) Point {
	total := wa + wb
	return Point{
		X: (wa*a.X + wb*b.X) / total,
		Y: (wa*a.Y + wb*b.Y) / total,
	}
}

func Midpoint(a, b Point) Point {
	return Weighted(a, 1, b, 1)
}

// Edges lists the segments of a boundary polyline. Boundaries with more than
// two points are closed (the last point connects back to the first); a
// two-point boundary is a single wall; shorter boundaries have no edges.
func Edges(points []Point) []Segment {
	switch {
	case len(points) < 2:
		return nil
	case len(points) == 2:
		return []Segment{{A: points[0], B: points[1]}}
	}
	edges := make([]Segment, 0, len(points))
	prev := points[len(points)-1]
	for _, p := range points {
		edges = append(edges, Segment{A: prev, B: p})
		prev = p
	}
	return edges
}
