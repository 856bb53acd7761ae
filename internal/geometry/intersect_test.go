package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

func TestIntersectionDisjoint(t *testing.T) {
	t.Parallel()
	got, err := Intersection(lineXY(t, 0, 0, 10, 0), lineXY(t, 0, 5, 10, 5))
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, TypeEmpty, TypeOf(got))
}

func TestIntersectionSingleCrossing(t *testing.T) {
	t.Parallel()
	got, err := Intersection(lineXY(t, 0, 0, 10, 0), lineXY(t, 5, -5, 5, 5))
	require.NoError(t, err)
	p, ok := got.(*geom.Point)
	require.True(t, ok)
	assertCoord(t, geom.Coord{5, 0}, p.Coords())
}

func TestIntersectionEndpointTouch(t *testing.T) {
	t.Parallel()
	got, err := Intersection(lineXY(t, 0, 0, 10, 0), lineXY(t, 10, 0, 15, 5))
	require.NoError(t, err)
	p, ok := got.(*geom.Point)
	require.True(t, ok)
	assertCoord(t, geom.Coord{10, 0}, p.Coords())
}

func TestIntersectionTwoCrossings(t *testing.T) {
	t.Parallel()
	got, err := Intersection(lineXY(t, 0, 0, 10, 0), lineXY(t, 2, -2, 4, 2, 6, -2))
	require.NoError(t, err)
	mp, ok := got.(*geom.MultiPoint)
	require.True(t, ok)
	require.Equal(t, 2, mp.NumPoints())
	assertCoord(t, geom.Coord{3, 0}, mp.Point(0).Coords())
	assertCoord(t, geom.Coord{5, 0}, mp.Point(1).Coords())
}

func TestIntersectionSharedSpan(t *testing.T) {
	t.Parallel()
	got, err := Intersection(lineXY(t, 0, 0, 10, 0), lineXY(t, 4, 0, 6, 0))
	require.NoError(t, err)
	ls, ok := got.(*geom.LineString)
	require.True(t, ok)
	assertCoord(t, geom.Coord{4, 0}, ls.Coord(0))
	assertCoord(t, geom.Coord{6, 0}, ls.Coord(ls.NumCoords()-1))
}

func TestIntersectionOppositeDirectionSpan(t *testing.T) {
	t.Parallel()
	// The shared span follows the first line's orientation regardless of the
	// second line's direction of travel.
	got, err := Intersection(lineXY(t, 0, 0, 10, 0), lineXY(t, 6, 0, 4, 0))
	require.NoError(t, err)
	ls, ok := got.(*geom.LineString)
	require.True(t, ok)
	assertCoord(t, geom.Coord{4, 0}, ls.Coord(0))
	assertCoord(t, geom.Coord{6, 0}, ls.Coord(ls.NumCoords()-1))
}

func TestIntersectionTwoSpans(t *testing.T) {
	t.Parallel()
	b := lineXY(t, 1, 0, 3, 0, 3, 5, 7, 5, 7, 0, 9, 0)
	got, err := Intersection(lineXY(t, 0, 0, 10, 0), b)
	require.NoError(t, err)
	ml, ok := got.(*geom.MultiLineString)
	require.True(t, ok)
	require.Equal(t, 2, ml.NumLineStrings())
	assertCoord(t, geom.Coord{1, 0}, ml.LineString(0).Coord(0))
	assertCoord(t, geom.Coord{3, 0}, ml.LineString(0).Coord(ml.LineString(0).NumCoords()-1))
	assertCoord(t, geom.Coord{7, 0}, ml.LineString(1).Coord(0))
	assertCoord(t, geom.Coord{9, 0}, ml.LineString(1).Coord(ml.LineString(1).NumCoords()-1))
}

func TestIntersectionMixed(t *testing.T) {
	t.Parallel()
	// One shared span plus one isolated crossing yields a collection.
	b := lineXY(t, 2, 0, 4, 0, 5, 5, 6, -5)
	got, err := Intersection(lineXY(t, 0, 0, 10, 0), b)
	require.NoError(t, err)
	gc, ok := got.(*geom.GeometryCollection)
	require.True(t, ok)
	require.Equal(t, 2, gc.NumGeoms())
	assert.Equal(t, TypeOther, TypeOf(got))

	var linear, points int
	for _, g := range gc.Geoms() {
		switch TypeOf(g) {
		case TypeLineString:
			linear++
		case TypePoint:
			points++
		}
	}
	assert.Equal(t, 1, linear)
	assert.Equal(t, 1, points)
}

func TestIntersectionTouchOnSpanIsAbsorbed(t *testing.T) {
	t.Parallel()
	// The second line leaves the first at (4,0): that contact sits on the
	// shared span and must not surface as a separate point.
	b := lineXY(t, 2, 0, 4, 0, 4, 5)
	got, err := Intersection(lineXY(t, 0, 0, 10, 0), b)
	require.NoError(t, err)
	_, ok := got.(*geom.LineString)
	assert.True(t, ok)
}

func TestSharesLinearPart(t *testing.T) {
	t.Parallel()
	a := lineXY(t, 0, 0, 10, 0)

	tests := []struct {
		name string
		b    *geom.LineString
		want bool
	}{
		{"collinear overlap", lineXY(t, 4, 0, 6, 0), true},
		{"partial end overlap", lineXY(t, 8, 0, 15, 0), true},
		{"identical line", lineXY(t, 0, 0, 10, 0), true},
		{"crossing only", lineXY(t, 5, -5, 5, 5), false},
		{"endpoint touch", lineXY(t, 10, 0, 15, 0), false},
		{"collinear but disjoint", lineXY(t, 11, 0, 15, 0), false},
		{"far away", lineXY(t, 0, 50, 10, 50), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := SharesLinearPart(a, tt.b)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsSimple(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ls   *geom.LineString
		want bool
	}{
		{"straight", lineXY(t, 0, 0, 10, 0), true},
		{"bent", lineXY(t, 0, 0, 10, 0, 10, 10), true},
		{"closed ring", lineXY(t, 0, 0, 10, 0, 10, 10, 0, 10, 0, 0), true},
		{"self crossing", lineXY(t, 0, 0, 10, 10, 10, 0, 0, 10), false},
		{"backtrack", lineXY(t, 0, 0, 10, 0, 5, 0), false},
		{"touches own start", lineXY(t, 0, 0, 10, 0, 10, 10, 0, 10, 0, -10), false},
		{"lands on own interior", lineXY(t, 0, 0, 10, 0, 10, 10, 5, 0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := IsSimple(tt.ls)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := IsSimple(nil)
	assert.Error(t, err)
}
