// Package geometry implements the spatial primitives the segmentation engine
// needs: linear referencing along polylines, exact polyline overlay
// classification, simplicity checks, and line-by-polygon clipping. All
// linear positions are fractions of a line's 2-D arc length; Z coordinates
// ride along through linear interpolation and never influence positions.
package geometry

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// epsilon absorbs floating-point noise in parameter-space comparisons. It is
// not a distance tolerance: overlap and containment decisions remain exact.
const epsilon = 1e-12

// Type classifies a geometry the way the overlap validator needs it.
type Type string

const (
	TypeEmpty           Type = "empty"
	TypePoint           Type = "point"
	TypeMultiPoint      Type = "multipoint"
	TypeLineString      Type = "linestring"
	TypeMultiLineString Type = "multilinestring"
	TypeOther           Type = "other"
)

// Linear reports whether the type carries one-dimensional extent.
func (t Type) Linear() bool {
	return t == TypeLineString || t == TypeMultiLineString
}

// TypeOf classifies a geometry. Anything that is not point-like or
// line-like (polygons, collections) classifies as TypeOther.
func TypeOf(g geom.T) Type {
	switch g := g.(type) {
	case nil:
		return TypeEmpty
	case *geom.Point:
		return TypePoint
	case *geom.MultiPoint:
		if g.NumPoints() == 0 {
			return TypeEmpty
		}
		return TypeMultiPoint
	case *geom.LineString:
		if g.NumCoords() == 0 {
			return TypeEmpty
		}
		return TypeLineString
	case *geom.MultiLineString:
		if g.NumLineStrings() == 0 {
			return TypeEmpty
		}
		return TypeMultiLineString
	default:
		return TypeOther
	}
}

// Decompose flattens a multi-geometry or collection into its single-geometry
// parts. Single geometries decompose to themselves.
func Decompose(g geom.T) []geom.T {
	switch g := g.(type) {
	case nil:
		return nil
	case *geom.MultiPoint:
		parts := make([]geom.T, 0, g.NumPoints())
		for i := 0; i < g.NumPoints(); i++ {
			parts = append(parts, g.Point(i))
		}
		return parts
	case *geom.MultiLineString:
		parts := make([]geom.T, 0, g.NumLineStrings())
		for i := 0; i < g.NumLineStrings(); i++ {
			parts = append(parts, g.LineString(i))
		}
		return parts
	case *geom.MultiPolygon:
		parts := make([]geom.T, 0, g.NumPolygons())
		for i := 0; i < g.NumPolygons(); i++ {
			parts = append(parts, g.Polygon(i))
		}
		return parts
	case *geom.GeometryCollection:
		parts := make([]geom.T, 0, g.NumGeoms())
		for i := 0; i < g.NumGeoms(); i++ {
			parts = append(parts, g.Geom(i))
		}
		return parts
	default:
		return []geom.T{g}
	}
}

// StartPoint returns the first coordinate of a line.
func StartPoint(ls *geom.LineString) (geom.Coord, error) {
	if ls == nil || ls.NumCoords() == 0 {
		return nil, eris.New("geometry: start point of empty line")
	}
	return ls.Coord(0), nil
}

// EndPoint returns the last coordinate of a line.
func EndPoint(ls *geom.LineString) (geom.Coord, error) {
	if ls == nil || ls.NumCoords() == 0 {
		return nil, eris.New("geometry: end point of empty line")
	}
	return ls.Coord(ls.NumCoords() - 1), nil
}

// validLine rejects lines the engine cannot reference against.
func validLine(ls *geom.LineString) error {
	if ls == nil || ls.NumCoords() < 2 {
		return eris.New("geometry: line must have at least two points")
	}
	return nil
}
