package store

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
)

// encodeGeom marshals a geometry to EWKB bytes, the on-disk format of both
// backends. Nil geometries encode to nil.
func encodeGeom(g geom.T) ([]byte, error) {
	if g == nil {
		return nil, nil
	}
	data, err := ewkb.Marshal(g, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "store: encode geometry")
	}
	return data, nil
}

// decodeGeom unmarshals EWKB bytes. Nil or empty input decodes to nil.
func decodeGeom(data []byte) (geom.T, error) {
	if len(data) == 0 {
		return nil, nil
	}
	g, err := ewkb.Unmarshal(data)
	if err != nil {
		return nil, eris.Wrap(err, "store: decode geometry")
	}
	return g, nil
}

// decodeLineString unmarshals EWKB bytes that must hold a LineString.
func decodeLineString(data []byte) (*geom.LineString, error) {
	g, err := decodeGeom(data)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, nil
	}
	ls, ok := g.(*geom.LineString)
	if !ok {
		return nil, eris.Errorf("store: expected LineString, got %T", g)
	}
	return ls, nil
}

// decodeMultiPolygon unmarshals EWKB bytes that must hold a MultiPolygon.
// A bare Polygon is promoted.
func decodeMultiPolygon(data []byte) (*geom.MultiPolygon, error) {
	g, err := decodeGeom(data)
	if err != nil {
		return nil, err
	}
	switch g := g.(type) {
	case nil:
		return nil, nil
	case *geom.MultiPolygon:
		return g, nil
	case *geom.Polygon:
		mp := geom.NewMultiPolygon(g.Layout())
		if err := mp.Push(g); err != nil {
			return nil, eris.Wrap(err, "store: promote polygon")
		}
		return mp, nil
	default:
		return nil, eris.Errorf("store: expected MultiPolygon, got %T", g)
	}
}

// bboxOf returns the planar bounding box of a geometry as
// (minx, miny, maxx, maxy), the shape of the SQLite bbox columns.
func bboxOf(g geom.T) (float64, float64, float64, float64) {
	b := g.Bounds()
	return b.Min(0), b.Min(1), b.Max(0), b.Max(1)
}
