package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/trailworks/trailnet/internal/model"
	"github.com/trailworks/trailnet/internal/store"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type fixture struct {
	srv     *httptest.Server
	segment *model.PathSegment
	event   *model.Event
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	st, err := store.NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(ctx))

	ls := geom.NewLineString(geom.XYZ)
	_, err = ls.SetCoords([]geom.Coord{{0, 0, 100}, {10, 0, 110}})
	require.NoError(t, err)

	seg := &model.PathSegment{Name: "ridge", Geom: ls, Length3D: 14.1,
		ElevationMin: 100, ElevationMax: 110, Ascent: 10}
	pt := geom.NewPoint(geom.XYZ)
	_, err = pt.SetCoords(geom.Coord{5, 0, 105})
	require.NoError(t, err)
	ev := &model.Event{Kind: model.KindCityEdge, Label: "Springdale", Geom: pt}
	require.NoError(t, st.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.InsertSegment(ctx, seg); err != nil {
			return err
		}
		if err := tx.InsertEvent(ctx, ev); err != nil {
			return err
		}
		if err := tx.InsertLink(ctx, &model.SegmentEventLink{
			SegmentID: seg.ID, EventID: ev.ID, StartPos: 0.5, EndPos: 0.5,
		}); err != nil {
			return err
		}
		return tx.InsertRoute(ctx, &model.Route{Name: "loop", EventID: ev.ID, Published: true})
	}))

	srv := httptest.NewServer(NewRouter(st))
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, segment: seg, event: ev}
}

func getJSON(t *testing.T, url string, wantStatus int) map[string]any {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, wantStatus, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	body := getJSON(t, f.srv.URL+"/health", http.StatusOK)
	assert.Equal(t, "ok", body["status"])
}

func TestListSegments(t *testing.T) {
	f := newFixture(t)
	body := getJSON(t, f.srv.URL+"/v1/segments", http.StatusOK)
	assert.Equal(t, "FeatureCollection", body["type"])
	features := body["features"].([]any)
	require.Len(t, features, 1)

	feature := features[0].(map[string]any)
	assert.Equal(t, "Feature", feature["type"])
	props := feature["properties"].(map[string]any)
	assert.Equal(t, "ridge", props["name"])
	geometry := feature["geometry"].(map[string]any)
	assert.Equal(t, "LineString", geometry["type"])
}

func TestListSegmentsBBox(t *testing.T) {
	f := newFixture(t)

	body := getJSON(t, f.srv.URL+"/v1/segments?bbox=100,100,200,200", http.StatusOK)
	assert.Empty(t, body["features"])

	body = getJSON(t, f.srv.URL+"/v1/segments?bbox=-1,-1,11,1", http.StatusOK)
	assert.Len(t, body["features"], 1)

	getJSON(t, f.srv.URL+"/v1/segments?bbox=1,2,3", http.StatusBadRequest)
	getJSON(t, f.srv.URL+"/v1/segments?bbox=5,5,1,1", http.StatusBadRequest)
}

func TestGetSegment(t *testing.T) {
	f := newFixture(t)

	body := getJSON(t, f.srv.URL+"/v1/segments/1", http.StatusOK)
	assert.Equal(t, "1", body["id"])

	getJSON(t, f.srv.URL+"/v1/segments/999", http.StatusNotFound)
	getJSON(t, f.srv.URL+"/v1/segments/zero", http.StatusBadRequest)
}

func TestSegmentEvents(t *testing.T) {
	f := newFixture(t)

	body := getJSON(t, f.srv.URL+"/v1/segments/1/events", http.StatusOK)
	features := body["features"].([]any)
	require.Len(t, features, 1)
	props := features[0].(map[string]any)["properties"].(map[string]any)
	assert.Equal(t, "city_edge", props["kind"])
	assert.Equal(t, "active", props["state"])

	getJSON(t, f.srv.URL+"/v1/segments/999/events", http.StatusNotFound)
}

func TestGetEvent(t *testing.T) {
	f := newFixture(t)

	body := getJSON(t, f.srv.URL+"/v1/events/1", http.StatusOK)
	props := body["properties"].(map[string]any)
	assert.Equal(t, "Springdale", props["label"])
	geometry := body["geometry"].(map[string]any)
	assert.Equal(t, "Point", geometry["type"])

	getJSON(t, f.srv.URL+"/v1/events/999", http.StatusNotFound)
}

func TestListRoutes(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.srv.URL + "/v1/routes?published=true")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var routes []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&routes))
	require.Len(t, routes, 1)
	assert.Equal(t, "loop", routes[0]["name"])

	resp, err = http.Get(f.srv.URL + "/v1/routes?published=false")
	require.NoError(t, err)
	defer resp.Body.Close()
	var none []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&none))
	assert.Empty(t, none)

	getJSON(t, f.srv.URL+"/v1/routes?published=maybe", http.StatusBadRequest)
}
