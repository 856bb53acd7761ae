package layers

import (
	"fmt"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"

	"github.com/trailworks/trailnet/internal/model"
)

// ParseShapefile reads polygon records and their attributes into areas.
// Records without a usable polygon are skipped; a record without a code gets
// a synthetic one so the upsert has a stable conflict key on reload.
func ParseShapefile(shpPath string, src LayerSource) ([]model.AdminArea, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "layers: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	fieldIdx := make(map[string]int, len(fields))
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToLower(name)] = i
	}
	nameIdx, ok := fieldIdx[strings.ToLower(src.NameField)]
	if !ok {
		return nil, eris.Errorf("layers: shapefile %s has no field %q", shpPath, src.NameField)
	}
	codeIdx := -1
	if src.CodeField != "" {
		if codeIdx, ok = fieldIdx[strings.ToLower(src.CodeField)]; !ok {
			return nil, eris.Errorf("layers: shapefile %s has no field %q", shpPath, src.CodeField)
		}
	}

	var areas []model.AdminArea
	var skipped, record int
	for reader.Next() {
		_, shape := reader.Shape()
		record++

		mp, err := polygonShape(shape)
		if err != nil || mp == nil {
			skipped++
			continue
		}

		name, err := decodeAttr(reader.Attribute(nameIdx), src.Encoding)
		if err != nil {
			return nil, eris.Wrapf(err, "layers: decode name of record %d", record)
		}
		code := fmt.Sprintf("%s-%04d", src.Layer, record)
		if codeIdx >= 0 {
			val, err := decodeAttr(reader.Attribute(codeIdx), src.Encoding)
			if err != nil {
				return nil, eris.Wrapf(err, "layers: decode code of record %d", record)
			}
			if val != "" {
				code = val
			}
		}

		areas = append(areas, model.AdminArea{Code: code, Name: name, Geom: mp})
	}

	if skipped > 0 {
		zap.L().Debug("layers: skipped shapefile records",
			zap.String("layer", string(src.Layer)),
			zap.Int("skipped", skipped),
		)
	}
	return areas, nil
}

func decodeAttr(raw, encoding string) (string, error) {
	val := strings.TrimSpace(strings.TrimRight(raw, "\x00"))
	switch encoding {
	case "latin1", "iso-8859-1":
		decoded, err := charmap.ISO8859_1.NewDecoder().String(val)
		if err != nil {
			return "", eris.Wrap(err, "layers: latin1 decode")
		}
		return decoded, nil
	default:
		return val, nil
	}
}

// polygonShape converts a shapefile polygon to a MultiPolygon. Rings with
// clockwise winding open a new polygon; counterclockwise rings are holes of
// the polygon they follow, per the shapefile convention.
func polygonShape(shape shp.Shape) (*geom.MultiPolygon, error) {
	var points []shp.Point
	var parts []int32
	switch s := shape.(type) {
	case *shp.Polygon:
		points, parts = s.Points, s.Parts
	case *shp.PolygonZ:
		points, parts = s.Points, s.Parts
	default:
		return nil, eris.Errorf("layers: unsupported shape type %T", shape)
	}
	if len(points) == 0 || len(parts) == 0 {
		return nil, nil
	}

	mp := geom.NewMultiPolygon(geom.XY)
	var current [][]geom.Coord
	flush := func() error {
		if current == nil {
			return nil
		}
		poly := geom.NewPolygon(geom.XY)
		if _, err := poly.SetCoords(current); err != nil {
			return eris.Wrap(err, "layers: build polygon")
		}
		current = nil
		return mp.Push(poly)
	}

	for i, start := range parts {
		end := len(points)
		if i+1 < len(parts) {
			end = int(parts[i+1])
		}
		ring := make([]geom.Coord, 0, end-int(start))
		for _, p := range points[start:end] {
			ring = append(ring, geom.Coord{p.X, p.Y})
		}
		if len(ring) < 4 {
			continue
		}
		if clockwise(ring) || current == nil {
			if err := flush(); err != nil {
				return nil, err
			}
			current = [][]geom.Coord{ring}
		} else {
			current = append(current, ring)
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}
	if mp.NumPolygons() == 0 {
		return nil, nil
	}
	return mp, nil
}

func clockwise(ring []geom.Coord) bool {
	var area float64
	for i := 0; i < len(ring)-1; i++ {
		area += ring[i][0]*ring[i+1][1] - ring[i+1][0]*ring[i][1]
	}
	return area < 0
}
