package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

func assertIntervals(t *testing.T, want []Interval, got []Interval) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.InDelta(t, want[i].T0, got[i].T0, 1e-9, "interval %d start", i)
		assert.InDelta(t, want[i].T1, got[i].T1, 1e-9, "interval %d end", i)
	}
}

func TestContains(t *testing.T) {
	t.Parallel()
	mp := multi(t, square(0, 0, 10, 10))

	tests := []struct {
		name string
		pt   geom.Coord
		want bool
	}{
		{"interior", geom.Coord{5, 5}, true},
		{"edge", geom.Coord{10, 5}, true},
		{"corner", geom.Coord{0, 0}, true},
		{"outside", geom.Coord{15, 5}, false},
		{"just outside edge", geom.Coord{10.001, 5}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Contains(mp, tt.pt))
		})
	}
}

func TestContainsHole(t *testing.T) {
	t.Parallel()
	hole := []geom.Coord{{4, 4}, {6, 4}, {6, 6}, {4, 6}, {4, 4}}
	mp := multi(t, square(0, 0, 10, 10, hole))

	assert.False(t, Contains(mp, geom.Coord{5, 5}), "inside the hole")
	assert.True(t, Contains(mp, geom.Coord{4, 5}), "on the hole rim")
	assert.True(t, Contains(mp, geom.Coord{2, 2}), "between rim and hole")
}

func TestContainsMultipleParts(t *testing.T) {
	t.Parallel()
	mp := multi(t, square(0, 0, 4, 10), square(6, 0, 10, 10))

	assert.True(t, Contains(mp, geom.Coord{2, 5}))
	assert.True(t, Contains(mp, geom.Coord{8, 5}))
	assert.False(t, Contains(mp, geom.Coord{5, 5}), "in the gap")
}

func TestClipLineByPolygon(t *testing.T) {
	t.Parallel()

	t.Run("line crossing through", func(t *testing.T) {
		t.Parallel()
		spans, err := ClipLineByPolygon(lineXY(t, -5, 5, 15, 5), multi(t, square(0, 0, 10, 10)))
		require.NoError(t, err)
		assertIntervals(t, []Interval{{0.25, 0.75}}, spans)
	})

	t.Run("line fully inside", func(t *testing.T) {
		t.Parallel()
		spans, err := ClipLineByPolygon(lineXY(t, 2, 5, 8, 5), multi(t, square(0, 0, 10, 10)))
		require.NoError(t, err)
		assertIntervals(t, []Interval{{0, 1}}, spans)
	})

	t.Run("line fully outside", func(t *testing.T) {
		t.Parallel()
		spans, err := ClipLineByPolygon(lineXY(t, 20, 0, 30, 0), multi(t, square(0, 0, 10, 10)))
		require.NoError(t, err)
		assert.Empty(t, spans)
	})

	t.Run("line through two parts", func(t *testing.T) {
		t.Parallel()
		mp := multi(t, square(0, 0, 4, 10), square(6, 0, 10, 10))
		spans, err := ClipLineByPolygon(lineXY(t, 0, 5, 10, 5), mp)
		require.NoError(t, err)
		assertIntervals(t, []Interval{{0, 0.4}, {0.6, 1}}, spans)
	})

	t.Run("line through a hole", func(t *testing.T) {
		t.Parallel()
		hole := []geom.Coord{{4, 4}, {6, 4}, {6, 6}, {4, 6}, {4, 4}}
		spans, err := ClipLineByPolygon(lineXY(t, 0, 5, 10, 5), multi(t, square(0, 0, 10, 10, hole)))
		require.NoError(t, err)
		assertIntervals(t, []Interval{{0, 0.4}, {0.6, 1}}, spans)
	})

	t.Run("line along the boundary counts as inside", func(t *testing.T) {
		t.Parallel()
		spans, err := ClipLineByPolygon(lineXY(t, 0, 0, 10, 0), multi(t, square(0, 0, 10, 10)))
		require.NoError(t, err)
		assertIntervals(t, []Interval{{0, 1}}, spans)
	})

	t.Run("corner touch yields nothing", func(t *testing.T) {
		t.Parallel()
		spans, err := ClipLineByPolygon(lineXY(t, -5, -5, 0, 0), multi(t, square(0, 0, 10, 10)))
		require.NoError(t, err)
		assert.Empty(t, spans)
	})

	t.Run("vertex inside keeps one span", func(t *testing.T) {
		t.Parallel()
		// A bend inside the polygon must not split the span.
		spans, err := ClipLineByPolygon(lineXY(t, -5, 2, 5, 2, 5, 8, 15, 8), multi(t, square(0, 0, 10, 10)))
		require.NoError(t, err)
		require.Len(t, spans, 1)
		assert.Greater(t, spans[0].Width(), 0.0)
	})

	t.Run("no polygon", func(t *testing.T) {
		t.Parallel()
		spans, err := ClipLineByPolygon(lineXY(t, 0, 0, 10, 0), nil)
		require.NoError(t, err)
		assert.Empty(t, spans)
	})
}

func TestIntersectsPolygon(t *testing.T) {
	t.Parallel()
	mp := multi(t, square(0, 0, 10, 10))

	in, err := IntersectsPolygon(lineXY(t, -5, 5, 15, 5), mp)
	require.NoError(t, err)
	assert.True(t, in)

	in, err = IntersectsPolygon(lineXY(t, -5, -5, 0, 0), mp)
	require.NoError(t, err)
	assert.False(t, in, "corner touch is not an intersection")
}
