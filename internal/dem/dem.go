// Package dem samples terrain elevation and derives the elevation profile
// of a line: draped Z values, slope-corrected length, min/max altitude and
// cumulative ascent/descent. Elevation comes from a pluggable Sampler, so
// the engine runs the same against a raster file, a remote lookup service
// or a constant surface in tests.
package dem

import (
	"context"
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/trailworks/trailnet/internal/geometry"
)

// DefaultStep is the sampling interval along a line, in the units of the
// working coordinate system, used when no step is configured.
const DefaultStep = 25.0

// Sampler resolves terrain elevation at planar positions. Implementations
// return one Z per input coordinate, in input order, and 0 where they have
// no coverage.
type Sampler interface {
	SampleZ(ctx context.Context, coords []geom.Coord) ([]float64, error)
}

// Profile holds the elevation indicators of a draped line.
type Profile struct {
	Length3D     float64 `json:"length_3d"`
	ElevationMin int     `json:"elevation_min"`
	ElevationMax int     `json:"elevation_max"`
	Ascent       int     `json:"ascent"`
	Descent      int     `json:"descent"` // never positive
}

// Profiler drapes lines over a Sampler and computes their Profile.
type Profiler struct {
	sampler Sampler
	step    float64
}

// Option configures a Profiler.
type Option func(*Profiler)

// WithStep sets the sampling interval along the line. Steps must be
// positive; zero or negative values keep the default.
func WithStep(step float64) Option {
	return func(p *Profiler) {
		if step > 0 {
			p.step = step
		}
	}
}

// NewProfiler builds a Profiler over the given sampler.
func NewProfiler(s Sampler, opts ...Option) *Profiler {
	p := &Profiler{sampler: s, step: DefaultStep}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Drape returns the line with the Z of every vertex replaced by the sampled
// elevation at that vertex's planar position. The result always carries an
// XYZ layout, whatever the input layout.
func (p *Profiler) Drape(ctx context.Context, ls *geom.LineString) (*geom.LineString, error) {
	if ls == nil || ls.NumCoords() < 2 {
		return nil, eris.New("dem: drape needs a line with at least two points")
	}
	coords := make([]geom.Coord, ls.NumCoords())
	for i := range coords {
		coords[i] = ls.Coord(i)
	}
	zs, err := p.sampler.SampleZ(ctx, coords)
	if err != nil {
		return nil, eris.Wrap(err, "dem: sample vertices")
	}
	if len(zs) != len(coords) {
		return nil, eris.Errorf("dem: sampler returned %d values for %d points", len(zs), len(coords))
	}
	draped := make([]geom.Coord, len(coords))
	for i, c := range coords {
		z := zs[i]
		if math.IsNaN(z) {
			z = 0
		}
		draped[i] = geom.Coord{c[0], c[1], z}
	}
	out := geom.NewLineString(geom.XYZ)
	if _, err := out.SetCoords(draped); err != nil {
		return nil, eris.Wrap(err, "dem: drape")
	}
	return out, nil
}

// Stats walks the line at the configured step, sampling elevation at each
// position, and aggregates the profile indicators. Both endpoints are always
// sampled. The 3-D length is measured on the draped vertices, not on the
// step samples.
func (p *Profiler) Stats(ctx context.Context, draped *geom.LineString) (Profile, error) {
	if draped == nil || draped.NumCoords() < 2 {
		return Profile{}, eris.New("dem: stats need a line with at least two points")
	}
	total := geometry.Length2D(draped)
	if total == 0 {
		return Profile{Length3D: 0}, nil
	}

	steps := int(math.Ceil(total / p.step))
	if steps < 1 {
		steps = 1
	}
	coords := make([]geom.Coord, 0, steps+1)
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		c, err := geometry.PointAt(draped, t)
		if err != nil {
			return Profile{}, err
		}
		coords = append(coords, c)
	}
	zs, err := p.sampler.SampleZ(ctx, coords)
	if err != nil {
		return Profile{}, eris.Wrap(err, "dem: sample profile")
	}
	if len(zs) != len(coords) {
		return Profile{}, eris.Errorf("dem: sampler returned %d values for %d points", len(zs), len(coords))
	}

	prof := Profile{Length3D: geometry.Length3D(draped)}
	minZ, maxZ := math.Inf(1), math.Inf(-1)
	var ascent, descent float64
	prev := math.NaN()
	for _, z := range zs {
		if math.IsNaN(z) {
			z = 0
		}
		minZ = math.Min(minZ, z)
		maxZ = math.Max(maxZ, z)
		if !math.IsNaN(prev) {
			delta := z - prev
			if delta > 0 {
				ascent += delta
			} else {
				descent += delta
			}
		}
		prev = z
	}
	prof.ElevationMin = int(math.Round(minZ))
	prof.ElevationMax = int(math.Round(maxZ))
	prof.Ascent = int(math.Round(ascent))
	prof.Descent = int(math.Round(descent))
	return prof, nil
}

// ProfileLine drapes the line and computes its profile in one pass. This is
// what the segment pipeline calls whenever a geometry is written.
func (p *Profiler) ProfileLine(ctx context.Context, ls *geom.LineString) (*geom.LineString, Profile, error) {
	draped, err := p.Drape(ctx, ls)
	if err != nil {
		return nil, Profile{}, err
	}
	prof, err := p.Stats(ctx, draped)
	if err != nil {
		return nil, Profile{}, err
	}
	return draped, prof, nil
}
