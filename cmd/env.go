package main

import (
	"context"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/encoding/wkt"

	"github.com/trailworks/trailnet/internal/dem"
	"github.com/trailworks/trailnet/internal/engine"
	"github.com/trailworks/trailnet/internal/store"
	"github.com/trailworks/trailnet/pkg/elevation"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		path := cfg.Store.Path
		if path == "" {
			path = "trailnet.db"
		}
		return store.NewSQLite(path)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, cfg.Store.Pool)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initSampler() (dem.Sampler, error) {
	switch cfg.Elevation.Provider {
	case "flat":
		return dem.Flat(0), nil
	case "grid":
		return dem.LoadGrid(cfg.Elevation.GridPath)
	case "remote":
		client := elevation.NewClient(
			elevation.WithBaseURL(cfg.Elevation.BaseURL),
			elevation.WithDataset(cfg.Elevation.Dataset),
			elevation.WithRateLimit(cfg.Elevation.RateLimit),
		)
		// Segments in the remote case are stored in lon/lat order.
		return dem.NewRemote(client, func(x, y float64) (lat, lon float64) {
			return y, x
		}), nil
	default:
		return nil, eris.Errorf("unsupported elevation provider: %s", cfg.Elevation.Provider)
	}
}

func initEngine(ctx context.Context) (*engine.Engine, store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	sampler, err := initSampler()
	if err != nil {
		_ = st.Close()
		return nil, nil, err
	}
	eng := engine.New(st, sampler, dem.WithStep(cfg.Elevation.StepM))
	return eng, st, nil
}

// readLineGeometry parses the segment geometry flags: an inline WKT string or
// a GeoJSON file holding one LineString feature or geometry.
func readLineGeometry(wktStr, geojsonPath string) (*geom.LineString, error) {
	switch {
	case wktStr != "" && geojsonPath != "":
		return nil, eris.New("pass --wkt or --geojson, not both")
	case wktStr != "":
		g, err := wkt.Unmarshal(wktStr)
		if err != nil {
			return nil, eris.Wrap(err, "parse wkt")
		}
		ls, ok := g.(*geom.LineString)
		if !ok {
			return nil, eris.Errorf("geometry must be a LineString, got %T", g)
		}
		return ls, nil
	case geojsonPath != "":
		data, err := os.ReadFile(geojsonPath)
		if err != nil {
			return nil, eris.Wrap(err, "read geojson file")
		}
		return parseGeoJSONLine(data)
	default:
		return nil, eris.New("segment geometry required: --wkt or --geojson")
	}
}

func parseGeoJSONLine(data []byte) (*geom.LineString, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.Contains(trimmed, `"Feature"`) {
		var f geojson.Feature
		if err := f.UnmarshalJSON(data); err != nil {
			return nil, eris.Wrap(err, "parse geojson feature")
		}
		ls, ok := f.Geometry.(*geom.LineString)
		if !ok {
			return nil, eris.Errorf("feature geometry must be a LineString, got %T", f.Geometry)
		}
		return ls, nil
	}
	var g geom.T
	if err := geojson.Unmarshal(data, &g); err != nil {
		return nil, eris.Wrap(err, "parse geojson geometry")
	}
	ls, ok := g.(*geom.LineString)
	if !ok {
		return nil, eris.Errorf("geometry must be a LineString, got %T", g)
	}
	return ls, nil
}
