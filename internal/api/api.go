// Package api exposes the path network read-only over HTTP. Geometries go
// out as GeoJSON; mutations stay on the CLI.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/trailworks/trailnet/internal/model"
	"github.com/trailworks/trailnet/internal/store"
)

type handler struct {
	q   store.Queries
	log *zap.Logger
}

// NewRouter builds the HTTP router over a read-only store view.
func NewRouter(q store.Queries) http.Handler {
	h := &handler{q: q, log: zap.L().With(zap.String("component", "api"))}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		MaxAge:         300,
	}))

	r.Get("/health", h.health)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/segments", h.listSegments)
		r.Get("/segments/{id}", h.getSegment)
		r.Get("/segments/{id}/events", h.segmentEvents)
		r.Get("/events/{id}", h.getEvent)
		r.Get("/routes", h.listRoutes)
	})
	return r
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) listSegments(w http.ResponseWriter, r *http.Request) {
	var filter store.SegmentFilter
	if raw := r.URL.Query().Get("bbox"); raw != "" {
		bbox, err := parseBBox(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.BBox = bbox
	}
	filter.Limit = queryInt(r, "limit")
	filter.Offset = queryInt(r, "offset")

	segs, err := h.q.ListSegments(r.Context(), filter)
	if err != nil {
		h.serverError(w, err)
		return
	}
	fc := geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(segs))}
	for i := range segs {
		fc.Features = append(fc.Features, segmentFeature(&segs[i]))
	}
	writeJSON(w, http.StatusOK, &fc)
}

func (h *handler) getSegment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	seg, err := h.q.GetSegment(r.Context(), id)
	if err != nil {
		h.lookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, segmentFeature(seg))
}

func (h *handler) segmentEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if _, err := h.q.GetSegment(r.Context(), id); err != nil {
		h.lookupError(w, err)
		return
	}
	events, err := h.q.EventsForSegment(r.Context(), id)
	if err != nil {
		h.serverError(w, err)
		return
	}
	fc := geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(events))}
	for i := range events {
		fc.Features = append(fc.Features, eventFeature(&events[i]))
	}
	writeJSON(w, http.StatusOK, &fc)
}

func (h *handler) getEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	ev, err := h.q.GetEvent(r.Context(), id)
	if err != nil {
		h.lookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, eventFeature(ev))
}

func (h *handler) listRoutes(w http.ResponseWriter, r *http.Request) {
	var filter store.RouteFilter
	if raw := r.URL.Query().Get("published"); raw != "" {
		published, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "published must be a boolean")
			return
		}
		filter.Published = &published
	}
	routes, err := h.q.ListRoutes(r.Context(), filter)
	if err != nil {
		h.serverError(w, err)
		return
	}
	if routes == nil {
		routes = []model.Route{}
	}
	writeJSON(w, http.StatusOK, routes)
}

func segmentFeature(seg *model.PathSegment) *geojson.Feature {
	var g geom.T
	if seg.Geom != nil {
		g = seg.Geom
	}
	return &geojson.Feature{
		ID:       strconv.FormatInt(seg.ID, 10),
		Geometry: g,
		Properties: map[string]any{
			"uuid":          seg.UUID.String(),
			"name":          seg.Name,
			"comment":       seg.Comment,
			"length_3d":     seg.Length3D,
			"elevation_min": seg.ElevationMin,
			"elevation_max": seg.ElevationMax,
			"ascent":        seg.Ascent,
			"descent":       seg.Descent,
		},
	}
}

func eventFeature(ev *model.Event) *geojson.Feature {
	return &geojson.Feature{
		ID:       strconv.FormatInt(ev.ID, 10),
		Geometry: ev.Geom,
		Properties: map[string]any{
			"uuid":           ev.UUID.String(),
			"kind":           string(ev.Kind),
			"state":          string(ev.State),
			"label":          ev.Label,
			"lateral_offset": ev.LateralOffset,
			"length_3d":      ev.Length3D,
		},
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func parseBBox(raw string) (*[4]float64, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return nil, eris.New("bbox must be minx,miny,maxx,maxy")
	}
	var bbox [4]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, eris.Errorf("bbox coordinate %d is not a number", i+1)
		}
		bbox[i] = v
	}
	if bbox[0] > bbox[2] || bbox[1] > bbox[3] {
		return nil, eris.New("bbox min exceeds max")
	}
	return &bbox, nil
}

func queryInt(r *http.Request, key string) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v < 0 {
		return 0
	}
	return v
}

func (h *handler) lookupError(w http.ResponseWriter, err error) {
	if eris.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	h.serverError(w, err)
}

func (h *handler) serverError(w http.ResponseWriter, err error) {
	h.log.Error("request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
