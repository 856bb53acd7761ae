// Package store persists the path network: segments, events, segment-event
// links, administrative areas and routes. Two backends implement the same
// interface, Postgres (pgx, PostGIS geometry columns) and SQLite
// (modernc.org/sqlite, EWKB blobs with explicit bbox columns). Engine
// mutations go through WithTx so every derived write of a segment mutation
// commits or rolls back as one unit.
package store

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/trailworks/trailnet/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = eris.New("store: not found")

// SegmentFilter narrows a segment listing. BBox is (minx, miny, maxx, maxy)
// in the working coordinate system.
type SegmentFilter struct {
	BBox   *[4]float64
	Limit  int
	Offset int
}

// EventFilter narrows an event listing.
type EventFilter struct {
	Kind   model.EventKind
	State  model.EventState
	Limit  int
	Offset int
}

// RouteFilter narrows a route listing.
type RouteFilter struct {
	Published *bool
}

// Queries is the read surface, available both on the store root and inside
// a transaction.
type Queries interface {
	GetSegment(ctx context.Context, id int64) (*model.PathSegment, error)
	ListSegments(ctx context.Context, f SegmentFilter) ([]model.PathSegment, error)
	// SegmentsIntersecting returns segments whose bounding box overlaps b,
	// excluding excludeID. This is the prefilter for the overlap validator;
	// the exact check happens in the geometry package.
	SegmentsIntersecting(ctx context.Context, b *geom.Bounds, excludeID int64) ([]model.PathSegment, error)

	GetEvent(ctx context.Context, id int64) (*model.Event, error)
	ListEvents(ctx context.Context, f EventFilter) ([]model.Event, error)
	EventsForSegment(ctx context.Context, segmentID int64) ([]model.Event, error)
	LinksForSegment(ctx context.Context, segmentID int64) ([]model.SegmentEventLink, error)
	LinksForEvent(ctx context.Context, eventID int64) ([]model.SegmentEventLink, error)
	// SystemEventIDs returns the ids of auto-generated boundary events
	// linked to the segment, the set the auto-linker discards before a
	// regeneration.
	SystemEventIDs(ctx context.Context, segmentID int64) ([]int64, error)

	GetArea(ctx context.Context, layer model.Layer, id int64) (*model.AdminArea, error)
	ListAreas(ctx context.Context, layer model.Layer) ([]model.AdminArea, error)
	CountAreas(ctx context.Context, layer model.Layer) (int64, error)
	// AreasIntersecting returns areas of the layer whose bounding box
	// overlaps b. Exact clipping happens in the geometry package.
	AreasIntersecting(ctx context.Context, layer model.Layer, b *geom.Bounds) ([]model.AdminArea, error)
	AreaIDsForEvent(ctx context.Context, layer model.Layer, eventID int64) ([]int64, error)

	GetRoute(ctx context.Context, id int64) (*model.Route, error)
	ListRoutes(ctx context.Context, f RouteFilter) ([]model.Route, error)
}

// Tx carries every entity mutation. All writes of one engine operation run
// on a single Tx; any error rolls the whole derivation back.
type Tx interface {
	Queries

	InsertSegment(ctx context.Context, seg *model.PathSegment) error
	UpdateSegment(ctx context.Context, seg *model.PathSegment) error
	DeleteSegment(ctx context.Context, id int64) error

	InsertEvent(ctx context.Context, ev *model.Event) error
	UpdateEvent(ctx context.Context, ev *model.Event) error
	SetEventState(ctx context.Context, id int64, state model.EventState) error
	// DeleteEvents hard-deletes events; their segment links and admin links
	// go with them. Only the auto-linker uses this, when regenerating a
	// segment's boundary events.
	DeleteEvents(ctx context.Context, ids []int64) error

	InsertLink(ctx context.Context, link *model.SegmentEventLink) error
	UpdateLinkPositions(ctx context.Context, id int64, start, end float64) error
	DeleteLinksBySegment(ctx context.Context, segmentID int64) error

	InsertArea(ctx context.Context, layer model.Layer, area *model.AdminArea) error
	UpsertAreas(ctx context.Context, layer model.Layer, areas []model.AdminArea) (int64, error)
	InsertAdminLink(ctx context.Context, layer model.Layer, link model.AdminLink) error

	InsertRoute(ctx context.Context, rt *model.Route) error
	SetRoutePublished(ctx context.Context, id int64, published bool) error
	// UnpublishRoutesForEvents clears the published flag of every route
	// keyed by one of the events, returning how many rows changed.
	UnpublishRoutesForEvents(ctx context.Context, eventIDs []int64) (int64, error)
}

// Store is the persistence interface of the path network.
type Store interface {
	Queries

	// WithTx runs fn inside one transaction, committing on nil and rolling
	// back on error.
	WithTx(ctx context.Context, fn func(Tx) error) error
	Migrate(ctx context.Context) error
	Close() error
}

// areaTables maps a layer to its polygon table.
var areaTables = map[model.Layer]string{
	model.LayerCity:           "cities",
	model.LayerDistrict:       "districts",
	model.LayerRestrictedArea: "restricted_areas",
}

// adminLinkTables maps a layer to its event back-reference table.
var adminLinkTables = map[model.Layer]string{
	model.LayerCity:           "city_events",
	model.LayerDistrict:       "district_events",
	model.LayerRestrictedArea: "restricted_area_events",
}

func areaTable(layer model.Layer) (string, error) {
	t, ok := areaTables[layer]
	if !ok {
		return "", eris.Errorf("store: unknown layer %q", layer)
	}
	return t, nil
}

func adminLinkTable(layer model.Layer) (string, error) {
	t, ok := adminLinkTables[layer]
	if !ok {
		return "", eris.Errorf("store: unknown layer %q", layer)
	}
	return t, nil
}
