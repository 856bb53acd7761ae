package geometry

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// Length2D returns the planar arc length of a line. Positions along a line
// are always fractions of this length, whatever the layout.
func Length2D(ls *geom.LineString) float64 {
	var total float64
	for i := 1; i < ls.NumCoords(); i++ {
		a, b := ls.Coord(i-1), ls.Coord(i)
		total += math.Hypot(b[0]-a[0], b[1]-a[1])
	}
	return total
}

// Length3D returns the slope-corrected arc length of a line. Lines without a
// Z dimension measure the same as Length2D.
func Length3D(ls *geom.LineString) float64 {
	if ls.Layout().ZIndex() < 0 {
		return Length2D(ls)
	}
	zi := ls.Layout().ZIndex()
	var total float64
	for i := 1; i < ls.NumCoords(); i++ {
		a, b := ls.Coord(i-1), ls.Coord(i)
		dx, dy, dz := b[0]-a[0], b[1]-a[1], b[zi]-a[zi]
		total += math.Sqrt(dx*dx + dy*dy + dz*dz)
	}
	return total
}

// cumulative returns the running planar length at every vertex, plus the
// total. cum[0] is always 0 and cum[len-1] the total length.
func cumulative(ls *geom.LineString) ([]float64, float64) {
	n := ls.NumCoords()
	cum := make([]float64, n)
	for i := 1; i < n; i++ {
		a, b := ls.Coord(i-1), ls.Coord(i)
		cum[i] = cum[i-1] + math.Hypot(b[0]-a[0], b[1]-a[1])
	}
	return cum, cum[n-1]
}

// clampT forces a fraction into [0, 1].
func clampT(t float64) float64 {
	if t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}

// interpolate returns the coordinate at parameter s in [0, 1] between a and
// b, interpolating every dimension the line carries.
func interpolate(a, b geom.Coord, s float64, stride int) geom.Coord {
	c := make(geom.Coord, stride)
	for d := 0; d < stride; d++ {
		c[d] = a[d] + (b[d]-a[d])*s
	}
	return c
}

// PointAt returns the coordinate at fraction t of the line's planar length.
// t is clamped to [0, 1].
func PointAt(ls *geom.LineString, t float64) (geom.Coord, error) {
	if err := validLine(ls); err != nil {
		return nil, err
	}
	t = clampT(t)
	cum, total := cumulative(ls)
	if total == 0 {
		return append(geom.Coord{}, ls.Coord(0)...), nil
	}
	target := t * total
	// Find the first vertex at or past the target distance.
	i := sort.SearchFloat64s(cum, target)
	if i == 0 {
		return append(geom.Coord{}, ls.Coord(0)...), nil
	}
	if i >= len(cum) {
		i = len(cum) - 1
	}
	a, b := ls.Coord(i-1), ls.Coord(i)
	segLen := cum[i] - cum[i-1]
	if segLen == 0 {
		return append(geom.Coord{}, b...), nil
	}
	s := (target - cum[i-1]) / segLen
	return interpolate(a, b, s, ls.Stride()), nil
}

// LocateAlong returns the fraction of the line's planar length at which the
// point projects onto the line. The result is always in [0, 1].
func LocateAlong(ls *geom.LineString, pt geom.Coord) (float64, error) {
	t, _, err := Project(ls, pt)
	return t, err
}

// Project locates a point against a line. It returns the fraction of the
// line's planar length at the closest point, and the signed planar distance
// from the line to the point: positive on the left of the line's direction
// of travel, negative on the right.
func Project(ls *geom.LineString, pt geom.Coord) (float64, float64, error) {
	if err := validLine(ls); err != nil {
		return 0, 0, err
	}
	if len(pt) < 2 {
		return 0, 0, eris.New("geometry: project: point needs x and y")
	}
	px, py := pt[0], pt[1]

	best := math.Inf(1)
	var bestAlong, bestSign float64
	var run float64
	for i := 1; i < ls.NumCoords(); i++ {
		a, b := ls.Coord(i-1), ls.Coord(i)
		dx, dy := b[0]-a[0], b[1]-a[1]
		segLen2 := dx*dx + dy*dy
		var s float64
		if segLen2 > 0 {
			s = ((px-a[0])*dx + (py-a[1])*dy) / segLen2
			s = clampT(s)
		}
		cx, cy := a[0]+s*dx, a[1]+s*dy
		d2 := (px-cx)*(px-cx) + (py-cy)*(py-cy)
		if d2 < best {
			best = d2
			segLen := math.Sqrt(segLen2)
			bestAlong = run + s*segLen
			// Cross product of the segment direction with the vector to the
			// point decides the side.
			cross := dx*(py-a[1]) - dy*(px-a[0])
			switch {
			case cross > 0:
				bestSign = 1
			case cross < 0:
				bestSign = -1
			default:
				bestSign = 0
			}
		}
		run += math.Sqrt(segLen2)
	}
	if run == 0 {
		return 0, math.Sqrt(best) * bestSign, nil
	}
	return clampT(bestAlong / run), math.Sqrt(best) * bestSign, nil
}

// OffsetPointAt returns the point at fraction t displaced laterally by
// offset: positive offsets land on the left of the direction of travel.
// The Z of the on-line point, if any, is preserved.
func OffsetPointAt(ls *geom.LineString, t, offset float64) (geom.Coord, error) {
	c, err := PointAt(ls, t)
	if err != nil {
		return nil, err
	}
	if offset == 0 {
		return c, nil
	}
	dx, dy, err := directionAt(ls, t)
	if err != nil {
		return nil, err
	}
	c[0] += -dy * offset
	c[1] += dx * offset
	return c, nil
}

// directionAt returns the unit direction vector of the segment containing
// fraction t. Degenerate lines with no planar extent have no direction.
func directionAt(ls *geom.LineString, t float64) (float64, float64, error) {
	cum, total := cumulative(ls)
	if total == 0 {
		return 0, 0, eris.New("geometry: direction of zero-length line")
	}
	target := clampT(t) * total
	for i := 1; i < ls.NumCoords(); i++ {
		if cum[i] >= target && cum[i] > cum[i-1] {
			a, b := ls.Coord(i-1), ls.Coord(i)
			segLen := cum[i] - cum[i-1]
			return (b[0] - a[0]) / segLen, (b[1] - a[1]) / segLen, nil
		}
	}
	// Fell off the end: reuse the last non-degenerate segment.
	for i := ls.NumCoords() - 1; i >= 1; i-- {
		if cum[i] > cum[i-1] {
			a, b := ls.Coord(i-1), ls.Coord(i)
			segLen := cum[i] - cum[i-1]
			return (b[0] - a[0]) / segLen, (b[1] - a[1]) / segLen, nil
		}
	}
	return 0, 0, eris.New("geometry: direction of zero-length line")
}

// SubLine extracts the part of the line between fractions t0 and t1 of its
// planar length, keeping every interior vertex. The fractions are swapped if
// given in reverse and clamped to [0, 1]; extracting a zero-length span is
// an error, callers represent those as points.
func SubLine(ls *geom.LineString, t0, t1 float64) (*geom.LineString, error) {
	if err := validLine(ls); err != nil {
		return nil, err
	}
	t0, t1 = clampT(t0), clampT(t1)
	if t0 > t1 {
		t0, t1 = t1, t0
	}
	if t1-t0 <= epsilon {
		return nil, eris.New("geometry: subline span is empty")
	}
	cum, total := cumulative(ls)
	if total == 0 {
		return nil, eris.New("geometry: subline of zero-length line")
	}
	start, err := PointAt(ls, t0)
	if err != nil {
		return nil, err
	}
	end, err := PointAt(ls, t1)
	if err != nil {
		return nil, err
	}
	lo, hi := t0*total, t1*total
	coords := []geom.Coord{start}
	for i := 1; i < ls.NumCoords()-1; i++ {
		if cum[i] > lo+epsilon*total && cum[i] < hi-epsilon*total {
			coords = append(coords, append(geom.Coord{}, ls.Coord(i)...))
		}
	}
	coords = append(coords, end)
	coords = dedupeCoords(coords)
	if len(coords) < 2 {
		return nil, eris.New("geometry: subline span is empty")
	}
	out := geom.NewLineString(ls.Layout())
	if _, err := out.SetCoords(coords); err != nil {
		return nil, eris.Wrap(err, "geometry: subline")
	}
	return out, nil
}

// dedupeCoords removes consecutive planar duplicates.
func dedupeCoords(coords []geom.Coord) []geom.Coord {
	out := coords[:0]
	for _, c := range coords {
		if len(out) > 0 && samePoint(out[len(out)-1], c) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func samePoint(a, b geom.Coord) bool {
	return math.Abs(a[0]-b[0]) <= epsilon && math.Abs(a[1]-b[1]) <= epsilon
}

// MergeLines chains lines that share endpoints into as few lines as
// possible. A single chain comes back as a LineString, anything else as a
// MultiLineString. Chains never reverse the input orientation of the first
// line they grow from; later lines are flipped as needed to connect.
func MergeLines(lines []*geom.LineString) (geom.T, error) {
	parts := make([]*geom.LineString, 0, len(lines))
	for _, ls := range lines {
		if ls == nil || ls.NumCoords() < 2 {
			continue
		}
		parts = append(parts, ls)
	}
	if len(parts) == 0 {
		return nil, eris.New("geometry: merge of no lines")
	}
	layout := parts[0].Layout()

	chains := make([][]geom.Coord, 0, len(parts))
	used := make([]bool, len(parts))
	for i := range parts {
		if used[i] {
			continue
		}
		used[i] = true
		chain := coordsOf(parts[i])
		for extended := true; extended; {
			extended = false
			for j := range parts {
				if used[j] {
					continue
				}
				c := coordsOf(parts[j])
				switch {
				case samePoint(chain[len(chain)-1], c[0]):
					chain = append(chain, c[1:]...)
				case samePoint(chain[len(chain)-1], c[len(c)-1]):
					chain = append(chain, reverseCoords(c)[1:]...)
				case samePoint(chain[0], c[len(c)-1]):
					chain = append(c[:len(c)-1:len(c)-1], chain...)
				case samePoint(chain[0], c[0]):
					chain = append(reverseCoords(c)[:len(c)-1:len(c)-1], chain...)
				default:
					continue
				}
				used[j] = true
				extended = true
			}
		}
		chains = append(chains, dedupeCoords(chain))
	}

	if len(chains) == 1 {
		out := geom.NewLineString(layout)
		if _, err := out.SetCoords(chains[0]); err != nil {
			return nil, eris.Wrap(err, "geometry: merge lines")
		}
		return out, nil
	}
	out := geom.NewMultiLineString(layout)
	for _, chain := range chains {
		ls := geom.NewLineString(layout)
		if _, err := ls.SetCoords(chain); err != nil {
			return nil, eris.Wrap(err, "geometry: merge lines")
		}
		if err := out.Push(ls); err != nil {
			return nil, eris.Wrap(err, "geometry: merge lines")
		}
	}
	return out, nil
}

func coordsOf(ls *geom.LineString) []geom.Coord {
	coords := make([]geom.Coord, ls.NumCoords())
	for i := range coords {
		coords[i] = append(geom.Coord{}, ls.Coord(i)...)
	}
	return coords
}

func reverseCoords(coords []geom.Coord) []geom.Coord {
	out := make([]geom.Coord, len(coords))
	for i, c := range coords {
		out[len(coords)-1-i] = c
	}
	return out
}
