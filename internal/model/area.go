package model

import "github.com/twpayne/go-geom"

// Layer identifies one of the administrative polygon layers the auto-linker
// derives boundary events against.
type Layer string

const (
	LayerCity           Layer = "city"
	LayerDistrict       Layer = "district"
	LayerRestrictedArea Layer = "restricted_area"
)

// Layers lists every administrative layer in auto-link order.
func Layers() []Layer {
	return []Layer{LayerCity, LayerDistrict, LayerRestrictedArea}
}

// EventKind returns the system event kind derived from this layer.
func (l Layer) EventKind() EventKind {
	switch l {
	case LayerCity:
		return KindCityEdge
	case LayerDistrict:
		return KindDistrictEdge
	case LayerRestrictedArea:
		return KindRestrictedAreaEdge
	}
	return KindManual
}

// AdminArea is one polygon of an administrative layer. Code carries the
// external identifier (INSEE code for cities); it may be empty for layers
// without one.
type AdminArea struct {
	ID   int64              `json:"id"`
	Code string             `json:"code,omitempty"`
	Name string             `json:"name"`
	Geom *geom.MultiPolygon `json:"-"`
}

// AdminLink ties a system-generated boundary event to the polygon that
// produced it.
type AdminLink struct {
	EventID int64 `json:"event_id"`
	AreaID  int64 `json:"area_id"`
}
