package dem

import (
	"context"
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/trailworks/trailnet/pkg/elevation"
)

// Remote samples elevation through a lookup service client. The transform
// converts working coordinates to WGS84; passing nil assumes the working
// system already is lon/lat.
type Remote struct {
	client    elevation.Client
	transform func(x, y float64) (lat, lon float64)
}

// NewRemote wraps an elevation client as a Sampler.
func NewRemote(client elevation.Client, transform func(x, y float64) (lat, lon float64)) *Remote {
	if transform == nil {
		transform = func(x, y float64) (float64, float64) { return y, x }
	}
	return &Remote{client: client, transform: transform}
}

// SampleZ resolves each coordinate through the service. Positions without
// coverage sample as 0.
func (r *Remote) SampleZ(ctx context.Context, coords []geom.Coord) ([]float64, error) {
	if len(coords) == 0 {
		return nil, nil
	}
	pts := make([]elevation.Point, len(coords))
	for i, c := range coords {
		lat, lon := r.transform(c[0], c[1])
		pts[i] = elevation.Point{Lat: lat, Lon: lon}
	}
	zs, err := r.client.Lookup(ctx, pts)
	if err != nil {
		return nil, eris.Wrap(err, "dem: remote lookup")
	}
	for i, z := range zs {
		if math.IsNaN(z) {
			zs[i] = 0
		}
	}
	return zs, nil
}
