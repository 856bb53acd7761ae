package store

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/trailworks/trailnet/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testLine(t *testing.T, xyz ...float64) *geom.LineString {
	t.Helper()
	require.Zero(t, len(xyz)%3)
	coords := make([]geom.Coord, 0, len(xyz)/3)
	for i := 0; i < len(xyz); i += 3 {
		coords = append(coords, geom.Coord{xyz[i], xyz[i+1], xyz[i+2]})
	}
	ls := geom.NewLineString(geom.XYZ)
	_, err := ls.SetCoords(coords)
	require.NoError(t, err)
	return ls
}

func testSquare(t *testing.T, minX, minY, maxX, maxY float64) *geom.MultiPolygon {
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

func insertTestSegment(t *testing.T, st *SQLiteStore, ls *geom.LineString) *model.PathSegment {
	t.Helper()
	seg := &model.PathSegment{Name: "trail", Geom: ls, Length3D: 10}
	require.NoError(t, st.WithTx(context.Background(), func(tx Tx) error {
		return tx.InsertSegment(context.Background(), seg)
	}))
	return seg
}

func TestSQLiteSegmentRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := newTestSQLite(t)

	seg := insertTestSegment(t, st, testLine(t, 0, 0, 100, 10, 0, 120))
	require.NotZero(t, seg.ID)
	require.NotZero(t, seg.UUID)

	got, err := st.GetSegment(ctx, seg.ID)
	require.NoError(t, err)
	assert.Equal(t, seg.UUID, got.UUID)
	assert.Equal(t, "trail", got.Name)
	require.NotNil(t, got.Geom)
	assert.Equal(t, geom.XYZ, got.Geom.Layout())
	assert.Equal(t, []float64{0, 0, 100}, []float64(got.Geom.Coord(0)))
	assert.Nil(t, got.GeomCadastre)

	_, err = st.GetSegment(ctx, 9999)
	assert.True(t, eris.Is(err, ErrNotFound))
}

func TestSQLiteSegmentUpdateAndBBox(t *testing.T) {
	ctx := context.Background()
	st := newTestSQLite(t)
	seg := insertTestSegment(t, st, testLine(t, 0, 0, 0, 10, 0, 0))

	seg.Geom = testLine(t, 50, 50, 0, 60, 50, 0)
	seg.Name = "moved"
	require.NoError(t, st.WithTx(ctx, func(tx Tx) error {
		return tx.UpdateSegment(ctx, seg)
	}))

	// The bbox columns follow the geometry.
	b := geom.NewBounds(geom.XY)
	b.Set(0, 0, 20, 20)
	hits, err := st.SegmentsIntersecting(ctx, b, 0)
	require.NoError(t, err)
	assert.Empty(t, hits)

	b = geom.NewBounds(geom.XY)
	b.Set(55, 45, 65, 55)
	hits, err = st.SegmentsIntersecting(ctx, b, 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "moved", hits[0].Name)

	// The candidate's own row is excluded.
	hits, err = st.SegmentsIntersecting(ctx, b, seg.ID)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSQLiteListSegmentsFilter(t *testing.T) {
	ctx := context.Background()
	st := newTestSQLite(t)
	insertTestSegment(t, st, testLine(t, 0, 0, 0, 10, 0, 0))
	insertTestSegment(t, st, testLine(t, 100, 100, 0, 110, 100, 0))

	all, err := st.ListSegments(ctx, SegmentFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	bbox := [4]float64{-1, -1, 11, 1}
	some, err := st.ListSegments(ctx, SegmentFilter{BBox: &bbox})
	require.NoError(t, err)
	assert.Len(t, some, 1)

	limited, err := st.ListSegments(ctx, SegmentFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.InDelta(t, 100, limited[0].Geom.Coord(0)[0], 1e-9)
}

func TestSQLiteEventLifecycle(t *testing.T) {
	ctx := context.Background()
	st := newTestSQLite(t)
	seg := insertTestSegment(t, st, testLine(t, 0, 0, 0, 10, 0, 0))

	ev := &model.Event{Kind: model.KindManual, Label: "picnic table", LateralOffset: 1.5}
	link := &model.SegmentEventLink{SegmentID: seg.ID, StartPos: 0.7, EndPos: 0.3}
	require.NoError(t, st.WithTx(ctx, func(tx Tx) error {
		if err := tx.InsertEvent(ctx, ev); err != nil {
			return err
		}
		link.EventID = ev.ID
		return tx.InsertLink(ctx, link)
	}))
	assert.Equal(t, model.StateActive, ev.State)

	// Links are normalized on insert.
	links, err := st.LinksForEvent(ctx, ev.ID)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.InDelta(t, 0.3, links[0].StartPos, 1e-9)
	assert.InDelta(t, 0.7, links[0].EndPos, 1e-9)

	require.NoError(t, st.WithTx(ctx, func(tx Tx) error {
		return tx.SetEventState(ctx, ev.ID, model.StateOrphaned)
	}))
	got, err := st.GetEvent(ctx, ev.ID)
	require.NoError(t, err)
	assert.True(t, got.Deleted())

	byState, err := st.ListEvents(ctx, EventFilter{State: model.StateOrphaned})
	require.NoError(t, err)
	assert.Len(t, byState, 1)
	byKind, err := st.ListEvents(ctx, EventFilter{Kind: model.KindCityEdge})
	require.NoError(t, err)
	assert.Empty(t, byKind)
}

func TestSQLiteDeleteEventsCascadesLinks(t *testing.T) {
	ctx := context.Background()
	st := newTestSQLite(t)
	seg := insertTestSegment(t, st, testLine(t, 0, 0, 0, 10, 0, 0))
	area := &model.AdminArea{Code: "C1", Name: "City", Geom: testSquare(t, -5, -5, 15, 15)}

	ev := &model.Event{Kind: model.KindCityEdge}
	require.NoError(t, st.WithTx(ctx, func(tx Tx) error {
		if err := tx.InsertArea(ctx, model.LayerCity, area); err != nil {
			return err
		}
		if err := tx.InsertEvent(ctx, ev); err != nil {
			return err
		}
		if err := tx.InsertLink(ctx, &model.SegmentEventLink{
			SegmentID: seg.ID, EventID: ev.ID, StartPos: 0, EndPos: 1,
		}); err != nil {
			return err
		}
		return tx.InsertAdminLink(ctx, model.LayerCity, model.AdminLink{EventID: ev.ID, AreaID: area.ID})
	}))

	ids, err := st.SystemEventIDs(ctx, seg.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{ev.ID}, ids)

	require.NoError(t, st.WithTx(ctx, func(tx Tx) error {
		return tx.DeleteEvents(ctx, ids)
	}))

	_, err = st.GetEvent(ctx, ev.ID)
	assert.True(t, eris.Is(err, ErrNotFound))
	links, err := st.LinksForSegment(ctx, seg.ID)
	require.NoError(t, err)
	assert.Empty(t, links)
	areaIDs, err := st.AreaIDsForEvent(ctx, model.LayerCity, ev.ID)
	require.NoError(t, err)
	assert.Empty(t, areaIDs)
}

func TestSQLiteAreasPerLayer(t *testing.T) {
	ctx := context.Background()
	st := newTestSQLite(t)

	require.NoError(t, st.WithTx(ctx, func(tx Tx) error {
		if err := tx.InsertArea(ctx, model.LayerCity, &model.AdminArea{
			Name: "City", Geom: testSquare(t, 0, 0, 10, 10),
		}); err != nil {
			return err
		}
		return tx.InsertArea(ctx, model.LayerDistrict, &model.AdminArea{
			Name: "District", Geom: testSquare(t, 100, 100, 200, 200),
		})
	}))

	n, err := st.CountAreas(ctx, model.LayerCity)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	n, err = st.CountAreas(ctx, model.LayerRestrictedArea)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	b := geom.NewBounds(geom.XY)
	b.Set(5, 5, 6, 6)
	hits, err := st.AreasIntersecting(ctx, model.LayerCity, b)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "City", hits[0].Name)
	hits, err = st.AreasIntersecting(ctx, model.LayerDistrict, b)
	require.NoError(t, err)
	assert.Empty(t, hits)

	_, err = st.ListAreas(ctx, model.Layer("unknown"))
	require.Error(t, err)
}

func TestSQLiteUpsertAreas(t *testing.T) {
	ctx := context.Background()
	st := newTestSQLite(t)

	areas := []model.AdminArea{
		{Code: "A", Name: "Alpha", Geom: testSquare(t, 0, 0, 10, 10)},
		{Code: "B", Name: "Beta", Geom: testSquare(t, 20, 0, 30, 10)},
	}
	require.NoError(t, st.WithTx(ctx, func(tx Tx) error {
		n, err := tx.UpsertAreas(ctx, model.LayerCity, areas)
		assert.EqualValues(t, 2, n)
		return err
	}))

	// Re-upserting the same codes updates in place.
	areas[0].Name = "Alpha v2"
	require.NoError(t, st.WithTx(ctx, func(tx Tx) error {
		_, err := tx.UpsertAreas(ctx, model.LayerCity, areas)
		return err
	}))
	all, err := st.ListAreas(ctx, model.LayerCity)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Alpha v2", all[0].Name)

	// A code is required for the conflict target.
	err = st.WithTx(ctx, func(tx Tx) error {
		_, err := tx.UpsertAreas(ctx, model.LayerCity, []model.AdminArea{
			{Name: "anon", Geom: testSquare(t, 0, 0, 1, 1)},
		})
		return err
	})
	require.Error(t, err)
}

func TestSQLiteRoutes(t *testing.T) {
	ctx := context.Background()
	st := newTestSQLite(t)
	seg := insertTestSegment(t, st, testLine(t, 0, 0, 0, 10, 0, 0))

	ev := &model.Event{Kind: model.KindManual}
	rt := &model.Route{Name: "summit loop", Published: true}
	require.NoError(t, st.WithTx(ctx, func(tx Tx) error {
		if err := tx.InsertEvent(ctx, ev); err != nil {
			return err
		}
		if err := tx.InsertLink(ctx, &model.SegmentEventLink{
			SegmentID: seg.ID, EventID: ev.ID, StartPos: 0, EndPos: 1,
		}); err != nil {
			return err
		}
		rt.EventID = ev.ID
		return tx.InsertRoute(ctx, rt)
	}))

	published := true
	got, err := st.ListRoutes(ctx, RouteFilter{Published: &published})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	var n int64
	require.NoError(t, st.WithTx(ctx, func(tx Tx) error {
		var err error
		n, err = tx.UnpublishRoutesForEvents(ctx, []int64{ev.ID})
		return err
	}))
	assert.EqualValues(t, 1, n)

	gotRt, err := st.GetRoute(ctx, rt.ID)
	require.NoError(t, err)
	assert.False(t, gotRt.Published)

	// Already-unpublished routes do not count again.
	require.NoError(t, st.WithTx(ctx, func(tx Tx) error {
		n, err = tx.UnpublishRoutesForEvents(ctx, []int64{ev.ID})
		return err
	}))
	assert.Zero(t, n)
}

func TestSQLiteTxRollback(t *testing.T) {
	ctx := context.Background()
	st := newTestSQLite(t)

	sentinel := eris.New("boom")
	err := st.WithTx(ctx, func(tx Tx) error {
		seg := &model.PathSegment{Geom: testLine(t, 0, 0, 0, 10, 0, 0)}
		if err := tx.InsertSegment(ctx, seg); err != nil {
			return err
		}
		return sentinel
	})
	assert.True(t, eris.Is(err, sentinel))

	segs, err := st.ListSegments(ctx, SegmentFilter{})
	require.NoError(t, err)
	assert.Empty(t, segs)
}
