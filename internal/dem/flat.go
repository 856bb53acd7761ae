package dem

import (
	"context"

	"github.com/twpayne/go-geom"
)

// Flat is a constant-elevation sampler. It stands in when no elevation
// source is configured, leaving every profile at the given altitude.
type Flat float64

// SampleZ returns the constant altitude for every coordinate.
func (f Flat) SampleZ(_ context.Context, coords []geom.Coord) ([]float64, error) {
	zs := make([]float64, len(coords))
	for i := range zs {
		zs[i] = float64(f)
	}
	return zs, nil
}
