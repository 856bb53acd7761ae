// Package model defines the entities of the path network: segments, events,
// segment-event links, administrative areas, and published routes.
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/twpayne/go-geom"
)

// PathSegment is an atomic polyline forming one edge of the path network.
// Geom is stored with elevation (XYZ) once the segment has been profiled;
// linear positions on the segment are always fractions of its 2-D arc length.
type PathSegment struct {
	ID           int64            `json:"id"`
	UUID         uuid.UUID        `json:"uuid"`
	Name         string           `json:"name"`
	Comment      string           `json:"comment,omitempty"`
	Geom         *geom.LineString `json:"-"`
	GeomCadastre *geom.LineString `json:"-"` // surveyed cadastral variant, not maintained by the engine
	Length3D     float64          `json:"length_3d"`
	ElevationMin int              `json:"elevation_min"`
	ElevationMax int              `json:"elevation_max"`
	Ascent       int              `json:"ascent"`
	Descent      int              `json:"descent"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}
