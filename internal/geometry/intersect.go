package geometry

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// segHit is the outcome of intersecting two planar segments.
type segHit int

const (
	hitNone segHit = iota
	hitPoint
	hitOverlap
)

// cross2 is the z component of the cross product of (b-a) and (c-a).
func cross2(ax, ay, bx, by, cx, cy float64) float64 {
	return (bx-ax)*(cy-ay) - (by-ay)*(cx-ax)
}

// segIntersect intersects segments a0-a1 and b0-b1 in the plane. Point hits
// return the hit parameter t on a; overlap hits return the overlapping
// sub-span [t0, t1] of a. Parameters are fractions of the a segment.
func segIntersect(a0, a1, b0, b1 geom.Coord) (segHit, float64, float64) {
	rx, ry := a1[0]-a0[0], a1[1]-a0[1]
	sx, sy := b1[0]-b0[0], b1[1]-b0[1]
	denom := rx*sy - ry*sx
	qpx, qpy := b0[0]-a0[0], b0[1]-a0[1]
	qpCrossR := qpx*ry - qpy*rx

	if math.Abs(denom) <= epsilon {
		if math.Abs(qpCrossR) > epsilon {
			// Parallel, disjoint.
			return hitNone, 0, 0
		}
		// Collinear: project b onto a's parameter space.
		rLen2 := rx*rx + ry*ry
		if rLen2 == 0 {
			// a is degenerate; treat as a point test against b.
			if onSegment(b0, b1, a0) {
				return hitPoint, 0, 0
			}
			return hitNone, 0, 0
		}
		t0 := (qpx*rx + qpy*ry) / rLen2
		t1 := ((b1[0]-a0[0])*rx + (b1[1]-a0[1])*ry) / rLen2
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		lo, hi := math.Max(t0, 0), math.Min(t1, 1)
		if hi < lo-epsilon {
			return hitNone, 0, 0
		}
		if hi-lo <= epsilon {
			// Endpoints touch.
			return hitPoint, clampT(lo), 0
		}
		return hitOverlap, lo, hi
	}

	t := (qpx*sy - qpy*sx) / denom
	u := qpCrossR / denom
	if t < -epsilon || t > 1+epsilon || u < -epsilon || u > 1+epsilon {
		return hitNone, 0, 0
	}
	return hitPoint, clampT(t), 0
}

// onSegment reports whether point p lies on segment a-b.
func onSegment(a, b, p geom.Coord) bool {
	if math.Abs(cross2(a[0], a[1], b[0], b[1], p[0], p[1])) > epsilon {
		return false
	}
	return p[0] >= math.Min(a[0], b[0])-epsilon && p[0] <= math.Max(a[0], b[0])+epsilon &&
		p[1] >= math.Min(a[1], b[1])-epsilon && p[1] <= math.Max(a[1], b[1])+epsilon
}

// Interval is a span of a line between two fractions of its planar length.
type Interval struct {
	T0 float64
	T1 float64
}

// Width is the parameter-space extent of the interval.
func (iv Interval) Width() float64 { return iv.T1 - iv.T0 }

// Mid is the interval midpoint parameter.
func (iv Interval) Mid() float64 { return (iv.T0 + iv.T1) / 2 }

// mergeIntervals unions overlapping or touching intervals in place.
func mergeIntervals(ivs []Interval) []Interval {
	if len(ivs) == 0 {
		return ivs
	}
	sort.Slice(ivs, func(i, j int) bool { return ivs[i].T0 < ivs[j].T0 })
	out := ivs[:1]
	for _, iv := range ivs[1:] {
		last := &out[len(out)-1]
		if iv.T0 <= last.T1+epsilon {
			if iv.T1 > last.T1 {
				last.T1 = iv.T1
			}
			continue
		}
		out = append(out, iv)
	}
	return out
}

// overlay is the exact planar intersection of lines a and b expressed in a's
// parameter space: shared spans as intervals on a, plus isolated crossing
// or touching parameters not absorbed by a span.
func overlay(a, b *geom.LineString) ([]Interval, []float64) {
	cumA, totalA := cumulative(a)
	if totalA == 0 {
		return nil, nil
	}
	var spans []Interval
	var points []float64
	for i := 1; i < a.NumCoords(); i++ {
		a0, a1 := a.Coord(i-1), a.Coord(i)
		segLen := cumA[i] - cumA[i-1]
		if segLen == 0 {
			continue
		}
		toLineT := func(t float64) float64 {
			return clampT((cumA[i-1] + t*segLen) / totalA)
		}
		for j := 1; j < b.NumCoords(); j++ {
			hit, t0, t1 := segIntersect(a0, a1, b.Coord(j-1), b.Coord(j))
			switch hit {
			case hitPoint:
				points = append(points, toLineT(t0))
			case hitOverlap:
				spans = append(spans, Interval{toLineT(t0), toLineT(t1)})
			}
		}
	}
	spans = mergeIntervals(spans)

	// Points swallowed by a span contribute nothing.
	keep := points[:0]
	for _, t := range points {
		inside := false
		for _, sp := range spans {
			if t >= sp.T0-epsilon && t <= sp.T1+epsilon {
				inside = true
				break
			}
		}
		if !inside {
			keep = append(keep, t)
		}
	}
	sort.Float64s(keep)
	points = keep[:0]
	for _, t := range keep {
		if len(points) > 0 && t-points[len(points)-1] <= epsilon {
			continue
		}
		points = append(points, t)
	}
	return spans, points
}

// SharesLinearPart reports whether two lines share a section of positive
// length. Touching or crossing at isolated points does not count.
func SharesLinearPart(a, b *geom.LineString) (bool, error) {
	if err := validLine(a); err != nil {
		return false, err
	}
	if err := validLine(b); err != nil {
		return false, err
	}
	if !boundsOverlap(a.Bounds(), b.Bounds()) {
		return false, nil
	}
	for i := 1; i < a.NumCoords(); i++ {
		for j := 1; j < b.NumCoords(); j++ {
			hit, t0, t1 := segIntersect(a.Coord(i-1), a.Coord(i), b.Coord(j-1), b.Coord(j))
			if hit == hitOverlap && t1-t0 > epsilon {
				return true, nil
			}
		}
	}
	return false, nil
}

func boundsOverlap(a, b *geom.Bounds) bool {
	return a.Min(0) <= b.Max(0) && b.Min(0) <= a.Max(0) &&
		a.Min(1) <= b.Max(1) && b.Min(1) <= a.Max(1)
}

// Intersection computes the exact planar intersection of two lines. The
// result is nil for disjoint lines, a Point or MultiPoint for isolated
// contacts, a LineString or MultiLineString for shared sections, and a
// GeometryCollection when both occur. Shared sections inherit a's vertices
// and Z values.
func Intersection(a, b *geom.LineString) (geom.T, error) {
	if err := validLine(a); err != nil {
		return nil, err
	}
	if err := validLine(b); err != nil {
		return nil, err
	}
	spans, points := overlay(a, b)

	var lines []*geom.LineString
	for _, sp := range spans {
		if sp.Width() <= epsilon {
			points = append(points, sp.T0)
			continue
		}
		sub, err := SubLine(a, sp.T0, sp.T1)
		if err != nil {
			return nil, err
		}
		lines = append(lines, sub)
	}

	var pts []*geom.Point
	for _, t := range points {
		c, err := PointAt(a, t)
		if err != nil {
			return nil, err
		}
		p := geom.NewPoint(a.Layout())
		if _, err := p.SetCoords(c); err != nil {
			return nil, eris.Wrap(err, "geometry: intersection point")
		}
		pts = append(pts, p)
	}

	switch {
	case len(lines) == 0 && len(pts) == 0:
		return nil, nil
	case len(lines) == 0 && len(pts) == 1:
		return pts[0], nil
	case len(lines) == 0:
		mp := geom.NewMultiPoint(a.Layout())
		for _, p := range pts {
			if err := mp.Push(p); err != nil {
				return nil, eris.Wrap(err, "geometry: intersection")
			}
		}
		return mp, nil
	case len(pts) == 0 && len(lines) == 1:
		return lines[0], nil
	case len(pts) == 0:
		ml := geom.NewMultiLineString(a.Layout())
		for _, ls := range lines {
			if err := ml.Push(ls); err != nil {
				return nil, eris.Wrap(err, "geometry: intersection")
			}
		}
		return ml, nil
	default:
		gc := geom.NewGeometryCollection()
		for _, ls := range lines {
			if err := gc.Push(ls); err != nil {
				return nil, eris.Wrap(err, "geometry: intersection")
			}
		}
		for _, p := range pts {
			if err := gc.Push(p); err != nil {
				return nil, eris.Wrap(err, "geometry: intersection")
			}
		}
		return gc, nil
	}
}

// IsSimple reports whether a line neither self-intersects nor retraces
// itself. The shared vertex of consecutive segments is allowed, as is a
// closed line touching itself exactly at its two ends.
func IsSimple(ls *geom.LineString) (bool, error) {
	if err := validLine(ls); err != nil {
		return false, err
	}
	n := ls.NumCoords()
	closed := samePoint(ls.Coord(0), ls.Coord(n-1))
	for i := 1; i < n; i++ {
		a0, a1 := ls.Coord(i-1), ls.Coord(i)
		for j := i + 1; j < n; j++ {
			b0, b1 := ls.Coord(j-1), ls.Coord(j)
			hit, t0, t1 := segIntersect(a0, a1, b0, b1)
			if hit == hitNone {
				continue
			}
			if hit == hitOverlap && t1-t0 > epsilon {
				return false, nil
			}
			if j == i+1 {
				// Consecutive segments meet at their shared vertex only.
				if hit == hitPoint && math.Abs(t0-1) <= epsilon {
					continue
				}
				return false, nil
			}
			if closed && i == 1 && j == n-1 {
				// A ring's first and last segments share the closure point.
				if hit == hitPoint && math.Abs(t0) <= epsilon {
					continue
				}
			}
			return false, nil
		}
	}
	return true, nil
}
