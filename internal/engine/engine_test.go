package engine

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/trailworks/trailnet/internal/dem"
	"github.com/trailworks/trailnet/internal/geometry"
	"github.com/trailworks/trailnet/internal/model"
	"github.com/trailworks/trailnet/internal/store"
)

// rampSampler returns z = x, a deterministic slope for elevation assertions.
type rampSampler struct{}

func (rampSampler) SampleZ(_ context.Context, coords []geom.Coord) ([]float64, error) {
	zs := make([]float64, len(coords))
	for i, c := range coords {
		zs[i] = c[0]
	}
	return zs, nil
}

// failSampler simulates an elevation service outage.
type failSampler struct{}

func (failSampler) SampleZ(context.Context, []geom.Coord) ([]float64, error) {
	return nil, eris.New("elevation service unavailable")
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func newTestEngine(t *testing.T, sampler dem.Sampler) (*Engine, store.Store) {
	t.Helper()
	st := newTestStore(t)
	return New(st, sampler), st
}

func line(t *testing.T, xy ...float64) *geom.LineString {
	t.Helper()
	require.Zero(t, len(xy)%2)
	coords := make([]geom.Coord, 0, len(xy)/2)
	for i := 0; i < len(xy); i += 2 {
		coords = append(coords, geom.Coord{xy[i], xy[i+1]})
	}
	ls := geom.NewLineString(geom.XY)
	_, err := ls.SetCoords(coords)
	require.NoError(t, err)
	return ls
}

func square(t *testing.T, minX, minY, maxX, maxY float64) *geom.MultiPolygon {
	t.Helper()
	poly := geom.NewPolygon(geom.XY)
	_, err := poly.SetCoords([][]geom.Coord{{
		{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}, {minX, minY},
	}})
	require.NoError(t, err)
	mp := geom.NewMultiPolygon(geom.XY)
	require.NoError(t, mp.Push(poly))
	return mp
}

func seedArea(t *testing.T, st store.Store, layer model.Layer, code, name string, mp *geom.MultiPolygon) *model.AdminArea {
	t.Helper()
	area := &model.AdminArea{Code: code, Name: name, Geom: mp}
	require.NoError(t, st.WithTx(context.Background(), func(tx store.Tx) error {
		return tx.InsertArea(context.Background(), layer, area)
	}))
	return area
}

func insertSegment(t *testing.T, e *Engine, ls *geom.LineString) *model.PathSegment {
	t.Helper()
	seg := &model.PathSegment{Name: "seg", Geom: ls}
	require.NoError(t, e.InsertSegment(context.Background(), seg))
	return seg
}

func TestInsertSegmentInsideOneCity(t *testing.T) {
	ctx := context.Background()
	e, st := newTestEngine(t, dem.Flat(0))
	area := seedArea(t, st, model.LayerCity, "A", "City A", square(t, -5, -5, 15, 15))

	seg := insertSegment(t, e, line(t, 0, 0, 10, 0))
	require.NotZero(t, seg.ID)

	events, err := st.EventsForSegment(ctx, seg.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.KindCityEdge, events[0].Kind)
	assert.Equal(t, model.StateActive, events[0].State)
	assert.Equal(t, "City A", events[0].Label)

	links, err := st.LinksForEvent(ctx, events[0].ID)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, seg.ID, links[0].SegmentID)
	assert.InDelta(t, 0, links[0].StartPos, 1e-9)
	assert.InDelta(t, 1, links[0].EndPos, 1e-9)

	areaIDs, err := st.AreaIDsForEvent(ctx, model.LayerCity, events[0].ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{area.ID}, areaIDs)
}

func TestUpdateRegeneratesBoundaryEventsWithFreshIDs(t *testing.T) {
	ctx := context.Background()
	e, st := newTestEngine(t, dem.Flat(0))
	area := seedArea(t, st, model.LayerCity, "A", "City A", square(t, -5, -5, 15, 15))

	seg := insertSegment(t, e, line(t, 0, 0, 10, 0))
	before, err := st.EventsForSegment(ctx, seg.ID)
	require.NoError(t, err)
	require.Len(t, before, 1)
	e1 := before[0].ID

	_, err = e.UpdateSegmentGeometry(ctx, seg.ID, line(t, 0, 0, 5, 0))
	require.NoError(t, err)

	after, err := st.EventsForSegment(ctx, seg.ID)
	require.NoError(t, err)
	require.Len(t, after, 1)
	e2 := after[0].ID

	// Same logical content, different identity.
	assert.NotEqual(t, e1, e2)
	assert.Equal(t, model.KindCityEdge, after[0].Kind)

	links, err := st.LinksForEvent(ctx, e2)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.InDelta(t, 0, links[0].StartPos, 1e-9)
	assert.InDelta(t, 1, links[0].EndPos, 1e-9)

	areaIDs, err := st.AreaIDsForEvent(ctx, model.LayerCity, e2)
	require.NoError(t, err)
	assert.Equal(t, []int64{area.ID}, areaIDs)

	// The discarded event is gone, not tombstoned.
	_, err = st.GetEvent(ctx, e1)
	assert.True(t, eris.Is(err, store.ErrNotFound))
}

func TestSegmentCrossingTwoRestrictedAreas(t *testing.T) {
	ctx := context.Background()
	e, st := newTestEngine(t, dem.Flat(0))
	seedArea(t, st, model.LayerRestrictedArea, "R1", "Reserve 1", square(t, 1, -2, 3, 2))
	seedArea(t, st, model.LayerRestrictedArea, "R2", "Reserve 2", square(t, 5, -2, 7, 2))

	seg := insertSegment(t, e, line(t, 0, 0, 12, 0))
	events, err := st.EventsForSegment(ctx, seg.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)

	var spans [][2]float64
	for _, ev := range events {
		assert.Equal(t, model.KindRestrictedAreaEdge, ev.Kind)
		links, err := st.LinksForEvent(ctx, ev.ID)
		require.NoError(t, err)
		require.Len(t, links, 1)
		spans = append(spans, [2]float64{links[0].StartPos, links[0].EndPos})
	}
	// Fractions measured along the original segment line.
	assert.InDelta(t, 1.0/12, spans[0][0], 1e-9)
	assert.InDelta(t, 3.0/12, spans[0][1], 1e-9)
	assert.InDelta(t, 5.0/12, spans[1][0], 1e-9)
	assert.InDelta(t, 7.0/12, spans[1][1], 1e-9)
}

func TestPartialEntrySpan(t *testing.T) {
	ctx := context.Background()
	e, st := newTestEngine(t, dem.Flat(0))
	seedArea(t, st, model.LayerDistrict, "D", "District", square(t, -5, -5, 5, 5))

	seg := insertSegment(t, e, line(t, 0, 0, 10, 0))
	events, err := st.EventsForSegment(ctx, seg.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.KindDistrictEdge, events[0].Kind)

	links, err := st.LinksForEvent(ctx, events[0].ID)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.InDelta(t, 0, links[0].StartPos, 1e-9)
	assert.InDelta(t, 0.5, links[0].EndPos, 1e-9)
}

func TestOverlapRejected(t *testing.T) {
	ctx := context.Background()
	e, st := newTestEngine(t, dem.Flat(0))
	insertSegment(t, e, line(t, 0, 0, 10, 0))

	err := e.InsertSegment(ctx, &model.PathSegment{Geom: line(t, 5, 0, 15, 0)})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrOverlap))

	// Fail-closed: nothing was persisted.
	segs, err := st.ListSegments(ctx, store.SegmentFilter{})
	require.NoError(t, err)
	assert.Len(t, segs, 1)
}

func TestCrossingAndTouchingAccepted(t *testing.T) {
	e, _ := newTestEngine(t, dem.Flat(0))
	insertSegment(t, e, line(t, 0, 0, 10, 0))

	// Interior crossing is a point intersection: legal.
	insertSegment(t, e, line(t, 5, -5, 5, 5))
	// Endpoint touch is legal too.
	insertSegment(t, e, line(t, 10, 0, 20, 0))
}

func TestNonSimpleRejected(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, dem.Flat(0))

	err := e.InsertSegment(ctx, &model.PathSegment{
		Geom: line(t, 0, 0, 10, 0, 10, 5, 5, -5),
	})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotSimple))
}

func TestElevationFailureAbortsInsert(t *testing.T) {
	ctx := context.Background()
	e, st := newTestEngine(t, failSampler{})

	err := e.InsertSegment(ctx, &model.PathSegment{Geom: line(t, 0, 0, 10, 0)})
	require.Error(t, err)

	segs, err := st.ListSegments(ctx, store.SegmentFilter{})
	require.NoError(t, err)
	assert.Empty(t, segs)
}

func TestElevationIndicators(t *testing.T) {
	e, _ := newTestEngine(t, rampSampler{})

	seg := insertSegment(t, e, line(t, 0, 0, 10, 0))
	assert.Equal(t, 0, seg.ElevationMin)
	assert.Equal(t, 10, seg.ElevationMax)
	assert.Equal(t, 10, seg.Ascent)
	assert.Equal(t, 0, seg.Descent)

	// Slope-corrected length strictly exceeds the planar length on a ramp.
	assert.Greater(t, seg.Length3D, geometry.Length2D(seg.Geom))
}

func TestFlatElevationLengthEquality(t *testing.T) {
	e, _ := newTestEngine(t, dem.Flat(450))

	seg := insertSegment(t, e, line(t, 0, 0, 10, 0))
	assert.InDelta(t, geometry.Length2D(seg.Geom), seg.Length3D, 1e-9)
	assert.Equal(t, 450, seg.ElevationMin)
	assert.Equal(t, 450, seg.ElevationMax)
}

func TestResyncPositionSticky(t *testing.T) {
	ctx := context.Background()
	e, st := newTestEngine(t, dem.Flat(0))
	seg := insertSegment(t, e, line(t, 0, 0, 10, 0))

	ev, err := e.AddEvent(ctx, seg.ID, "waypoint", 0.5, 0.5, 0)
	require.NoError(t, err)
	pt := ev.Geom.(*geom.Point)
	assert.InDelta(t, 5, pt.Coords()[0], 1e-9)

	_, err = e.UpdateSegmentGeometry(ctx, seg.ID, line(t, 0, 0, 20, 0))
	require.NoError(t, err)

	// The stored fractional position wins: the point moved with the line.
	got, err := st.GetEvent(ctx, ev.ID)
	require.NoError(t, err)
	pt = got.Geom.(*geom.Point)
	assert.InDelta(t, 10, pt.Coords()[0], 1e-9)
	assert.InDelta(t, 0, pt.Coords()[1], 1e-9)

	links, err := st.LinksForEvent(ctx, ev.ID)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.InDelta(t, 0.5, links[0].StartPos, 1e-9)
}

func TestResyncPositionStickyLinearExtent(t *testing.T) {
	ctx := context.Background()
	e, st := newTestEngine(t, dem.Flat(0))
	seg := insertSegment(t, e, line(t, 0, 0, 10, 0))

	ev, err := e.AddEvent(ctx, seg.ID, "surface gravel", 0.25, 0.75, 0)
	require.NoError(t, err)

	_, err = e.UpdateSegmentGeometry(ctx, seg.ID, line(t, 0, 0, 20, 0))
	require.NoError(t, err)

	got, err := st.GetEvent(ctx, ev.ID)
	require.NoError(t, err)
	ls := got.Geom.(*geom.LineString)
	assert.InDelta(t, 5, ls.Coord(0)[0], 1e-9)
	assert.InDelta(t, 15, ls.Coord(ls.NumCoords()-1)[0], 1e-9)
	assert.InDelta(t, 10, got.Length3D, 1e-9)
}

func TestResyncLocationSticky(t *testing.T) {
	ctx := context.Background()
	e, st := newTestEngine(t, dem.Flat(0))
	seg := insertSegment(t, e, line(t, 0, 0, 10, 0))

	ev, err := e.AddEvent(ctx, seg.ID, "bench", 0.3, 0.3, 2)
	require.NoError(t, err)
	pt := ev.Geom.(*geom.Point)
	assert.InDelta(t, 3, pt.Coords()[0], 1e-9)
	assert.InDelta(t, 2, pt.Coords()[1], 1e-9)

	_, err = e.UpdateSegmentGeometry(ctx, seg.ID, line(t, 0, 0, 20, 0))
	require.NoError(t, err)

	// The bench stays where it physically is; position and offset move.
	got, err := st.GetEvent(ctx, ev.ID)
	require.NoError(t, err)
	pt = got.Geom.(*geom.Point)
	assert.InDelta(t, 3, pt.Coords()[0], 1e-9)
	assert.InDelta(t, 2, pt.Coords()[1], 1e-9)
	assert.InDelta(t, 2, got.LateralOffset, 1e-9)

	links, err := st.LinksForEvent(ctx, ev.ID)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.InDelta(t, 0.15, links[0].StartPos, 1e-9)
	assert.InDelta(t, 0.15, links[0].EndPos, 1e-9)
}

func TestDeleteOrphansLastLinkOnly(t *testing.T) {
	ctx := context.Background()
	e, st := newTestEngine(t, dem.Flat(0))
	s1 := insertSegment(t, e, line(t, 0, 0, 10, 0))
	s2 := insertSegment(t, e, line(t, 10, 0, 20, 0))

	solo, err := e.AddEvent(ctx, s1.ID, "solo", 0.25, 0.5, 0)
	require.NoError(t, err)
	shared, err := e.AddEvent(ctx, s1.ID, "shared", 0.5, 1, 0)
	require.NoError(t, err)
	require.NoError(t, e.LinkEvent(ctx, shared.ID, s2.ID, 0, 0.5))

	require.NoError(t, e.DeleteSegment(ctx, s1.ID))

	got, err := st.GetEvent(ctx, solo.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateOrphaned, got.State)
	assert.True(t, got.Deleted())

	got, err = st.GetEvent(ctx, shared.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateActive, got.State)

	_, err = st.GetSegment(ctx, s1.ID)
	assert.True(t, eris.Is(err, store.ErrNotFound))
}

func TestDeleteUnpublishesRoutesUnconditionally(t *testing.T) {
	ctx := context.Background()
	e, st := newTestEngine(t, dem.Flat(0))
	s1 := insertSegment(t, e, line(t, 0, 0, 10, 0))
	s2 := insertSegment(t, e, line(t, 10, 0, 20, 0))

	shared, err := e.AddEvent(ctx, s1.ID, "shared", 0.5, 1, 0)
	require.NoError(t, err)
	require.NoError(t, e.LinkEvent(ctx, shared.ID, s2.ID, 0, 0.5))

	rt := &model.Route{Name: "loop", EventID: shared.ID, Published: true}
	require.NoError(t, st.WithTx(ctx, func(tx store.Tx) error {
		return tx.InsertRoute(ctx, rt)
	}))

	require.NoError(t, e.DeleteSegment(ctx, s1.ID))

	// The event survives with its other link, but the route's derived
	// routing is stale either way.
	got, err := st.GetEvent(ctx, shared.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateActive, got.State)

	gotRt, err := st.GetRoute(ctx, rt.ID)
	require.NoError(t, err)
	assert.False(t, gotRt.Published)
}

func TestOrphanedEventIsNeverResurrected(t *testing.T) {
	ctx := context.Background()
	e, st := newTestEngine(t, dem.Flat(0))
	s1 := insertSegment(t, e, line(t, 0, 0, 10, 0))

	ev, err := e.AddEvent(ctx, s1.ID, "solo", 0, 1, 0)
	require.NoError(t, err)
	require.NoError(t, e.DeleteSegment(ctx, s1.ID))

	s2 := insertSegment(t, e, line(t, 0, 0, 10, 0))
	err = e.LinkEvent(ctx, ev.ID, s2.ID, 0, 1)
	require.Error(t, err)

	got, err := st.GetEvent(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateOrphaned, got.State)
}

func TestUpdateMissingSegment(t *testing.T) {
	e, _ := newTestEngine(t, dem.Flat(0))
	_, err := e.UpdateSegmentGeometry(context.Background(), 9999, line(t, 0, 0, 1, 0))
	assert.True(t, eris.Is(err, ErrSegmentNotFound))
}

func TestAddEventValidation(t *testing.T) {
	ctx := context.Background()
	e, st := newTestEngine(t, dem.Flat(0))
	seg := insertSegment(t, e, line(t, 0, 0, 10, 0))

	_, err := e.AddEvent(ctx, seg.ID, "bad", -0.1, 0.5, 0)
	require.Error(t, err)

	// Reversed arguments still hit the range check after normalization.
	_, err = e.AddEvent(ctx, seg.ID, "bad", 1.2, 0.3, 0)
	require.Error(t, err)
	_, err = e.AddEvent(ctx, seg.ID, "bad", 0.5, -0.1, 0)
	require.Error(t, err)

	_, err = e.AddEvent(ctx, seg.ID, "bad", 0.2, 0.8, 3)
	require.Error(t, err)

	_, err = e.AddEvent(ctx, 9999, "bad", 0, 1, 0)
	assert.True(t, eris.Is(err, ErrSegmentNotFound))

	links, err := st.LinksForSegment(ctx, seg.ID)
	require.NoError(t, err)
	assert.Empty(t, links)
}

func TestLinkEventValidation(t *testing.T) {
	ctx := context.Background()
	e, st := newTestEngine(t, dem.Flat(0))
	s1 := insertSegment(t, e, line(t, 0, 0, 10, 0))
	s2 := insertSegment(t, e, line(t, 0, 5, 10, 5))

	ev, err := e.AddEvent(ctx, s1.ID, "shared", 0.5, 1, 0)
	require.NoError(t, err)

	require.Error(t, e.LinkEvent(ctx, ev.ID, s2.ID, -0.5, 2))
	require.Error(t, e.LinkEvent(ctx, ev.ID, s2.ID, 2, -0.5))

	links, err := st.LinksForSegment(ctx, s2.ID)
	require.NoError(t, err)
	assert.Empty(t, links)

	require.NoError(t, e.LinkEvent(ctx, ev.ID, s2.ID, 0, 0.5))
}
