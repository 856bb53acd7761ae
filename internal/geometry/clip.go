package geometry

import (
	"sort"

	"github.com/twpayne/go-geom"
)

// ringContains reports whether a point is inside a linear ring by even-odd
// ray casting. Points exactly on the ring count as inside.
func ringContains(ring *geom.LinearRing, pt geom.Coord) bool {
	n := ring.NumCoords()
	if n < 3 {
		return false
	}
	px, py := pt[0], pt[1]
	inside := false
	for i := 1; i < n; i++ {
		a, b := ring.Coord(i-1), ring.Coord(i)
		if onSegment(a, b, pt) {
			return true
		}
		if (a[1] > py) != (b[1] > py) {
			x := a[0] + (py-a[1])/(b[1]-a[1])*(b[0]-a[0])
			if px < x {
				inside = !inside
			}
		}
	}
	return inside
}

// polygonContains reports whether a point is inside a polygon, holes
// excluded. The boundary, hole rims included, counts as inside.
func polygonContains(poly *geom.Polygon, pt geom.Coord) bool {
	if poly.NumLinearRings() == 0 {
		return false
	}
	if !ringContains(poly.LinearRing(0), pt) {
		return false
	}
	for i := 1; i < poly.NumLinearRings(); i++ {
		hole := poly.LinearRing(i)
		if onRing(hole, pt) {
			return true
		}
		if ringContains(hole, pt) {
			return false
		}
	}
	return true
}

func onRing(ring *geom.LinearRing, pt geom.Coord) bool {
	for i := 1; i < ring.NumCoords(); i++ {
		if onSegment(ring.Coord(i-1), ring.Coord(i), pt) {
			return true
		}
	}
	return false
}

// Contains reports whether the point is inside the multipolygon, boundary
// included.
func Contains(mp *geom.MultiPolygon, pt geom.Coord) bool {
	for i := 0; i < mp.NumPolygons(); i++ {
		if polygonContains(mp.Polygon(i), pt) {
			return true
		}
	}
	return false
}

// ClipLineByPolygon returns the maximal spans of the line that lie inside
// the multipolygon, as sorted disjoint intervals of the line's planar
// length. Spans running along the boundary count as inside. Isolated
// boundary touches yield nothing.
func ClipLineByPolygon(ls *geom.LineString, mp *geom.MultiPolygon) ([]Interval, error) {
	if err := validLine(ls); err != nil {
		return nil, err
	}
	if mp == nil || mp.NumPolygons() == 0 {
		return nil, nil
	}
	if !boundsOverlap(ls.Bounds(), mp.Bounds()) {
		return nil, nil
	}
	cum, total := cumulative(ls)
	if total == 0 {
		return nil, nil
	}

	// Cut the line's parameter space wherever it meets a ring edge, then
	// keep the pieces whose midpoints fall inside.
	cuts := []float64{0, 1}
	for i := 1; i < ls.NumCoords(); i++ {
		a0, a1 := ls.Coord(i-1), ls.Coord(i)
		segLen := cum[i] - cum[i-1]
		if segLen == 0 {
			continue
		}
		toLineT := func(t float64) float64 {
			return clampT((cum[i-1] + t*segLen) / total)
		}
		for p := 0; p < mp.NumPolygons(); p++ {
			poly := mp.Polygon(p)
			for r := 0; r < poly.NumLinearRings(); r++ {
				ring := poly.LinearRing(r)
				for j := 1; j < ring.NumCoords(); j++ {
					hit, t0, t1 := segIntersect(a0, a1, ring.Coord(j-1), ring.Coord(j))
					switch hit {
					case hitPoint:
						cuts = append(cuts, toLineT(t0))
					case hitOverlap:
						cuts = append(cuts, toLineT(t0), toLineT(t1))
					}
				}
			}
		}
	}
	sort.Float64s(cuts)

	var spans []Interval
	prev := cuts[0]
	for _, t := range cuts[1:] {
		if t-prev <= epsilon {
			continue
		}
		mid, err := PointAt(ls, (prev+t)/2)
		if err != nil {
			return nil, err
		}
		if Contains(mp, mid) {
			spans = append(spans, Interval{prev, t})
		}
		prev = t
	}
	return mergeIntervals(spans), nil
}

// IntersectsPolygon reports whether any positive-length part of the line
// lies inside the multipolygon.
func IntersectsPolygon(ls *geom.LineString, mp *geom.MultiPolygon) (bool, error) {
	spans, err := ClipLineByPolygon(ls, mp)
	if err != nil {
		return false, err
	}
	return len(spans) > 0, nil
}
