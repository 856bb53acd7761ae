// Package engine keeps linear-referenced events consistent across segment
// mutations. Every entry point runs an ordered pipeline inside one store
// transaction: validate, drape and profile, write the segment row,
// regenerate boundary events, resynchronize the remaining events. Any
// failure along the way rolls the whole derivation back.
package engine

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/trailworks/trailnet/internal/dem"
	"github.com/trailworks/trailnet/internal/model"
	"github.com/trailworks/trailnet/internal/store"
)

// ErrNotSimple rejects self-intersecting or retracing segment geometry.
var ErrNotSimple = eris.New("engine: segment geometry is not simple")

// ErrOverlap rejects a segment geometry sharing a linear sub-path with
// another segment. Crossing and endpoint touching are legal.
var ErrOverlap = eris.New("engine: segment geometry overlaps another segment")

// ErrSegmentNotFound is returned when a mutation targets a missing segment.
var ErrSegmentNotFound = eris.New("engine: segment not found")

// Engine runs the segment mutation pipeline.
type Engine struct {
	store    store.Store
	profiler *dem.Profiler
	log      *zap.Logger
}

// New builds an Engine over the store and an elevation sampler.
func New(st store.Store, sampler dem.Sampler, opts ...dem.Option) *Engine {
	return &Engine{
		store:    st,
		profiler: dem.NewProfiler(sampler, opts...),
		log:      zap.L().With(zap.String("component", "engine")),
	}
}

// InsertSegment validates, drapes and persists a new segment, then derives
// its boundary events. seg.Geom holds the proposed 2-D line on input and
// the draped 3-D line on return; ID and elevation indicators are filled in.
func (e *Engine) InsertSegment(ctx context.Context, seg *model.PathSegment) error {
	return e.store.WithTx(ctx, func(tx store.Tx) error {
		if err := e.validate(ctx, tx, 0, seg.Geom); err != nil {
			return err
		}
		if err := e.profile(ctx, seg); err != nil {
			return err
		}
		if err := tx.InsertSegment(ctx, seg); err != nil {
			return err
		}
		if err := e.autoLink(ctx, tx, seg); err != nil {
			return err
		}
		e.log.Info("segment inserted",
			zap.Int64("segment", seg.ID),
			zap.Float64("length_3d", seg.Length3D),
		)
		return nil
	})
}

// UpdateSegmentGeometry replaces a segment's line, regenerates its boundary
// events and resynchronizes every other linked event. It returns the
// segment as persisted.
func (e *Engine) UpdateSegmentGeometry(ctx context.Context, id int64, line *geom.LineString) (*model.PathSegment, error) {
	var seg *model.PathSegment
	err := e.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		seg, err = tx.GetSegment(ctx, id)
		if eris.Is(err, store.ErrNotFound) {
			return eris.Wrapf(ErrSegmentNotFound, "%d", id)
		}
		if err != nil {
			return err
		}
		if err := e.validate(ctx, tx, id, line); err != nil {
			return err
		}
		seg.Geom = line
		if err := e.profile(ctx, seg); err != nil {
			return err
		}
		if err := tx.UpdateSegment(ctx, seg); err != nil {
			return err
		}
		if err := e.autoLink(ctx, tx, seg); err != nil {
			return err
		}
		if err := e.resync(ctx, tx, seg); err != nil {
			return err
		}
		e.log.Info("segment geometry updated",
			zap.Int64("segment", seg.ID),
			zap.Float64("length_3d", seg.Length3D),
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return seg, nil
}

// DeleteSegment tombstones events losing their last link, unpublishes every
// route supported by a linked event, then removes the segment and its links.
func (e *Engine) DeleteSegment(ctx context.Context, id int64) error {
	return e.store.WithTx(ctx, func(tx store.Tx) error {
		if _, err := tx.GetSegment(ctx, id); eris.Is(err, store.ErrNotFound) {
			return eris.Wrapf(ErrSegmentNotFound, "%d", id)
		} else if err != nil {
			return err
		}
		return e.cascadeDelete(ctx, tx, id)
	})
}

// profile drapes the segment's line over the elevation sampler and fills in
// the cached indicators. Sampler failure aborts the enclosing transaction.
func (e *Engine) profile(ctx context.Context, seg *model.PathSegment) error {
	draped, prof, err := e.profiler.ProfileLine(ctx, seg.Geom)
	if err != nil {
		return err
	}
	seg.Geom = draped
	seg.Length3D = prof.Length3D
	seg.ElevationMin = prof.ElevationMin
	seg.ElevationMax = prof.ElevationMax
	seg.Ascent = prof.Ascent
	seg.Descent = prof.Descent
	return nil
}
