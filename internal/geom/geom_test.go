package geom

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrient(t *testing.T) {
	cases := []struct {
		name    string
		p, q, r Point
		want    Orientation
	}{
		{"collinear", Point{0, 0}, Point{1, 1}, Point{2, 2}, Collinear},
		{"clockwise on screen", Point{0, 0}, Point{4, 4}, Point{2, 1}, Clockwise},
		{"counterclockwise on screen", Point{0, 0}, Point{4, 4}, Point{1, 2}, CounterClockwise},
		{"repeated point", Point{3, 3}, Point{3, 3}, Point{5, 1}, Collinear},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Orient(tc.p, tc.q, tc.r))
		})
	}
}

func TestOrientIsAntisymmetricAndZeroOnlyOnExactCrossProduct(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		p := Point{rng.Float64()*20 - 10, rng.Float64()*20 - 10}
		q := Point{rng.Float64()*20 - 10, rng.Float64()*20 - 10}
		r := Point{rng.Float64()*20 - 10, rng.Float64()*20 - 10}

		forward := Orient(p, q, r)
		backward := Orient(r, q, p)
		switch forward {
		case Clockwise:
			require.Equal(t, CounterClockwise, backward)
		case CounterClockwise:
			require.Equal(t, Clockwise, backward)
		default:
			require.Equal(t, Collinear, backward)
		}

		cross := (q.Y-p.Y)*(r.X-q.X) - (q.X-p.X)*(r.Y-q.Y)
		require.Equal(t, cross == 0, forward == Collinear)
	}
}

func TestSegmentsIntersect(t *testing.T) {
	cases := []struct {
		name           string
		p1, q1, p2, q2 Point
		want           bool
	}{
		{"crossing", Point{0, 0}, Point{10, 10}, Point{0, 10}, Point{10, 0}, true},
		{"disjoint", Point{0, 0}, Point{1, 1}, Point{3, 3}, Point{4, 5}, false},
		{"parallel apart", Point{0, 0}, Point{10, 0}, Point{0, 1}, Point{10, 1}, false},
		{"p2 touches p1q1", Point{0, 0}, Point{10, 0}, Point{5, 0}, Point{5, 5}, true},
		{"q2 touches p1q1", Point{0, 0}, Point{10, 0}, Point{5, 5}, Point{5, 0}, true},
		{"p1 touches p2q2", Point{5, 0}, Point{5, 5}, Point{0, 0}, Point{10, 0}, true},
		{"q1 touches p2q2", Point{5, 5}, Point{5, 0}, Point{0, 0}, Point{10, 0}, true},
		{"collinear overlap", Point{0, 0}, Point{6, 0}, Point{4, 0}, Point{10, 0}, true},
		{"collinear gap", Point{0, 0}, Point{3, 0}, Point{4, 0}, Point{10, 0}, false},
		{"shared endpoint", Point{0, 0}, Point{2, 2}, Point{2, 2}, Point{4, 0}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, SegmentsIntersect(tc.p1, tc.q1, tc.p2, tc.q2))
		})
	}
}

func TestSegmentsIntersectSymmetry(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	randomPoint := func() Point {
		// Integer grid coordinates make collinear cases common.
		return Point{float64(rng.Intn(7)), float64(rng.Intn(7))}
	}
	for i := 0; i < 2000; i++ {
		p1, q1, p2, q2 := randomPoint(), randomPoint(), randomPoint(), randomPoint()
		want := SegmentsIntersect(p1, q1, p2, q2)
		require.Equal(t, want, SegmentsIntersect(p2, q2, p1, q1), "swap segments %v %v %v %v", p1, q1, p2, q2)
		require.Equal(t, want, SegmentsIntersect(q1, p1, p2, q2), "reverse first %v %v %v %v", p1, q1, p2, q2)
		require.Equal(t, want, SegmentsIntersect(p1, q1, q2, p2), "reverse second %v %v %v %v", p1, q1, p2, q2)
	}
}

func TestIntersectionPointSingleWall(t *testing.T) {
	wall := Segment{A: Point{0, 0}, B: Point{10, 0}}
	ray := Segment{A: Point{5, -5}, B: Point{5, 5}}

	require.True(t, ray.Intersects(wall))
	hit := IntersectionPoint(ray.A, ray.B, wall.A, wall.B)
	assert.InDelta(t, 5.0, hit.X, 1e-12)
	assert.InDelta(t, 0.0, hit.Y, 1e-12)
	assert.InDelta(t, 5.0, Distance(ray.A, hit), 1e-12)
}

func TestIntersectionPointLiesWithinBothSegments(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	const tol = 1e-6
	checked := 0
	for checked < 300 {
		a := Point{rng.Float64() * 100, rng.Float64() * 100}
		b := Point{rng.Float64() * 100, rng.Float64() * 100}
		c := Point{rng.Float64() * 100, rng.Float64() * 100}
		d := Point{rng.Float64() * 100, rng.Float64() * 100}
		if !SegmentsIntersect(a, b, c, d) {
			continue
		}
		// Nearly parallel pairs amplify rounding; they are covered by the sentinel test.
		cross := (b.X-a.X)*(d.Y-c.Y) - (b.Y-a.Y)*(d.X-c.X)
		if math.Abs(cross) < 1 {
			continue
		}
		hit := IntersectionPoint(a, b, c, d)
		require.NotEqual(t, FarPoint, hit)
		for _, s := range []Segment{{a, b}, {c, d}} {
			require.GreaterOrEqual(t, hit.X, math.Min(s.A.X, s.B.X)-tol)
			require.LessOrEqual(t, hit.X, math.Max(s.A.X, s.B.X)+tol)
			require.GreaterOrEqual(t, hit.Y, math.Min(s.A.Y, s.B.Y)-tol)
			require.LessOrEqual(t, hit.Y, math.Max(s.A.Y, s.B.Y)+tol)
		}
		checked++
	}
}

func TestIntersectionPointParallel(t *testing.T) {
	assert.Equal(t, FarPoint, IntersectionPoint(Point{0, 0}, Point{10, 0}, Point{0, 1}, Point{10, 1}))
	assert.False(t, SegmentsIntersect(Point{0, 0}, Point{10, 0}, Point{0, 1}, Point{10, 1}))

	// Coincident lines are parallel too; only the boolean predicate sees the overlap.
	assert.Equal(t, FarPoint, IntersectionPoint(Point{0, 0}, Point{10, 0}, Point{5, 0}, Point{15, 0}))
	assert.True(t, SegmentsIntersect(Point{0, 0}, Point{10, 0}, Point{5, 0}, Point{15, 0}))
}

func TestRotateClockwise(t *testing.T) {
	p := RotateClockwise(Point{1, 0}, math.Pi/2)
	assert.InDelta(t, 0, p.X, 1e-12)
	assert.InDelta(t, 1, p.Y, 1e-12)
}

func TestEdges(t *testing.T) {
	assert.Empty(t, Edges(nil))
	assert.Empty(t, Edges([]Point{{1, 1}}))
	assert.Equal(t, []Segment{{Point{0, 0}, Point{1, 0}}}, Edges([]Point{{0, 0}, {1, 0}}))

	square := Edges([]Point{{0, 0}, {1, 0}, {1, 1}, {0, 1}})
	require.Len(t, square, 4)
	assert.Equal(t, Segment{Point{0, 1}, Point{0, 0}}, square[0])
	assert.Equal(t, Segment{Point{1, 1}, Point{0, 1}}, square[3])
}
