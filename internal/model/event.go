package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/twpayne/go-geom"
)

// EventKind tags an event with its origin. System kinds are owned by the
// auto-linker and regenerated wholesale on segment geometry updates; manual
// events are created by callers and resynchronized in place.
type EventKind string

const (
	KindManual             EventKind = "manual"
	KindCityEdge           EventKind = "city_edge"
	KindDistrictEdge       EventKind = "district_edge"
	KindRestrictedAreaEdge EventKind = "restricted_area_edge"
)

// System reports whether the kind is owned by the auto-linker.
func (k EventKind) System() bool {
	return k == KindCityEdge || k == KindDistrictEdge || k == KindRestrictedAreaEdge
}

// EventState is the lifecycle state of an event. An event whose last segment
// link disappears becomes an orphaned tombstone; tombstones are kept for
// audit and never resurrected.
type EventState string

const (
	StateActive   EventState = "active"
	StateOrphaned EventState = "orphaned"
)

// Event is a feature located on one or more segments by linear referencing.
// LateralOffset is the signed perpendicular displacement of a point event
// from its reference line (positive = left of line direction); zero for
// on-line events and linear extents.
type Event struct {
	ID            int64      `json:"id"`
	UUID          uuid.UUID  `json:"uuid"`
	Kind          EventKind  `json:"kind"`
	State         EventState `json:"state"`
	Label         string     `json:"label,omitempty"`
	LateralOffset float64    `json:"lateral_offset"`
	Length3D      float64    `json:"length_3d"`
	Geom          geom.T     `json:"-"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Deleted reports whether the event has been tombstoned.
func (e *Event) Deleted() bool { return e.State == StateOrphaned }

// PointEvent reports whether the event is located at a single position
// rather than spanning a linear extent.
func (e *Event) PointEvent() bool {
	_, ok := e.Geom.(*geom.Point)
	return ok
}
