package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/trailworks/trailnet/internal/geometry"
	"github.com/trailworks/trailnet/internal/model"
	"github.com/trailworks/trailnet/internal/store"
)

// autoLink regenerates the segment's boundary events against every
// administrative layer. Previous auto-generated events are discarded first;
// ids are never reused, so a geometry edit always yields fresh event
// identities even when the derived extents are identical.
func (e *Engine) autoLink(ctx context.Context, tx store.Tx, seg *model.PathSegment) error {
	stale, err := tx.SystemEventIDs(ctx, seg.ID)
	if err != nil {
		return err
	}
	if err := tx.DeleteEvents(ctx, stale); err != nil {
		return err
	}

	var created int
	for _, layer := range model.Layers() {
		n, err := e.linkLayer(ctx, tx, seg, layer)
		if err != nil {
			return err
		}
		created += n
	}
	e.log.Debug("boundary events regenerated",
		zap.Int64("segment", seg.ID),
		zap.Int("discarded", len(stale)),
		zap.Int("created", created),
	)
	return nil
}

// linkLayer derives the boundary events of one layer: clip the segment's
// line by every bbox-candidate polygon, then turn each resulting span into
// an event, a segment link and a polygon back-reference. Spans are measured
// on the original, undecomposed segment line.
func (e *Engine) linkLayer(ctx context.Context, tx store.Tx, seg *model.PathSegment, layer model.Layer) (int, error) {
	areas, err := tx.AreasIntersecting(ctx, layer, seg.Geom.Bounds())
	if err != nil {
		return 0, err
	}

	var created int
	for i := range areas {
		area := &areas[i]
		spans, err := geometry.ClipLineByPolygon(seg.Geom, area.Geom)
		if err != nil {
			return created, err
		}
		for _, span := range spans {
			ev := &model.Event{
				Kind:  layer.EventKind(),
				State: model.StateActive,
				Label: area.Name,
				Geom:  seg.Geom,
			}
			sub, err := geometry.SubLine(seg.Geom, span.T0, span.T1)
			if err != nil {
				return created, err
			}
			ev.Length3D = geometry.Length3D(sub)
			if err := tx.InsertEvent(ctx, ev); err != nil {
				return created, err
			}
			link := &model.SegmentEventLink{
				SegmentID: seg.ID,
				EventID:   ev.ID,
				StartPos:  span.T0,
				EndPos:    span.T1,
			}
			if err := tx.InsertLink(ctx, link); err != nil {
				return created, err
			}
			if err := tx.InsertAdminLink(ctx, layer, model.AdminLink{
				EventID: ev.ID,
				AreaID:  area.ID,
			}); err != nil {
				return created, err
			}
			created++
		}
	}
	return created, nil
}
