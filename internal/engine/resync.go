package engine

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/trailworks/trailnet/internal/geometry"
	"github.com/trailworks/trailnet/internal/model"
	"github.com/trailworks/trailnet/internal/store"
)

// resync brings every still-linked event's cached geometry back into
// agreement with the segment's new line. Two policies apply per event:
//
//   - Position-sticky: linear extents and on-line point events keep their
//     stored fractional positions; the geometry is rebuilt from the new
//     line, so the event's absolute location may shift.
//   - Location-sticky: a point event with a nonzero lateral offset marks
//     something physically fixed beside the path. Its old absolute point is
//     re-projected onto the new line, updating its stored position and
//     offset while the geometry stays put.
//
// Boundary events are skipped here; the auto-linker has already recreated
// them against the new line.
func (e *Engine) resync(ctx context.Context, tx store.Tx, seg *model.PathSegment) error {
	links, err := tx.LinksForSegment(ctx, seg.ID)
	if err != nil {
		return err
	}

	seen := make(map[int64]bool, len(links))
	for _, link := range links {
		if seen[link.EventID] {
			continue
		}
		seen[link.EventID] = true

		ev, err := tx.GetEvent(ctx, link.EventID)
		if err != nil {
			return err
		}
		if ev.Kind.System() || ev.Deleted() {
			continue
		}

		if link.Point() && ev.LateralOffset != 0 {
			err = e.resyncLocationSticky(ctx, tx, seg, ev, link)
		} else {
			err = e.resyncPositionSticky(ctx, tx, ev)
		}
		if err != nil {
			return eris.Wrapf(err, "engine: resync event %d", ev.ID)
		}
	}
	return nil
}

// resyncLocationSticky preserves the event's physical location: the old
// point re-projects onto the new line, yielding a new linear position and
// lateral offset.
func (e *Engine) resyncLocationSticky(ctx context.Context, tx store.Tx, seg *model.PathSegment, ev *model.Event, link model.SegmentEventLink) error {
	pt, ok := ev.Geom.(*geom.Point)
	if !ok || pt == nil {
		// No cached point to hold on to; fall back to the stored position.
		return e.resyncPositionSticky(ctx, tx, ev)
	}
	t, offset, err := geometry.Project(seg.Geom, pt.Coords())
	if err != nil {
		return err
	}
	if err := tx.UpdateLinkPositions(ctx, link.ID, t, t); err != nil {
		return err
	}
	ev.LateralOffset = offset
	if err := tx.UpdateEvent(ctx, ev); err != nil {
		return err
	}
	e.log.Debug("event reprojected in place",
		zap.Int64("event", ev.ID),
		zap.Float64("position", t),
		zap.Float64("offset", offset),
	)
	return nil
}

// resyncPositionSticky rebuilds the event's geometry purely from its stored
// link positions against the current geometry of every linked segment.
func (e *Engine) resyncPositionSticky(ctx context.Context, tx store.Tx, ev *model.Event) error {
	g, length, err := deriveEventGeometry(ctx, tx, ev)
	if err != nil {
		return err
	}
	ev.Geom = g
	ev.Length3D = length
	return tx.UpdateEvent(ctx, ev)
}

// deriveEventGeometry renders an event from its link set plus the geometry
// of the segments it references: sublines for linear links, on-line or
// offset points for point links. Contiguous sublines of multi-segment
// extents chain into a single line.
func deriveEventGeometry(ctx context.Context, tx store.Queries, ev *model.Event) (geom.T, float64, error) {
	links, err := tx.LinksForEvent(ctx, ev.ID)
	if err != nil {
		return nil, 0, err
	}
	if len(links) == 0 {
		return nil, 0, eris.Errorf("engine: event %d has no links", ev.ID)
	}

	var lines []*geom.LineString
	var point geom.Coord
	for _, link := range links {
		seg, err := tx.GetSegment(ctx, link.SegmentID)
		if err != nil {
			return nil, 0, err
		}
		if link.Point() {
			c, err := geometry.OffsetPointAt(seg.Geom, link.StartPos, ev.LateralOffset)
			if err != nil {
				return nil, 0, err
			}
			point = c
			continue
		}
		sub, err := geometry.SubLine(seg.Geom, link.StartPos, link.EndPos)
		if err != nil {
			return nil, 0, err
		}
		lines = append(lines, sub)
	}

	if len(lines) == 0 {
		p := geom.NewPoint(geom.XYZ)
		if len(point) < 3 {
			point = append(point, 0)
		}
		if _, err := p.SetCoords(point); err != nil {
			return nil, 0, eris.Wrap(err, "engine: event point")
		}
		return p, 0, nil
	}

	merged, err := geometry.MergeLines(lines)
	if err != nil {
		return nil, 0, err
	}
	var length float64
	for _, ls := range lines {
		length += geometry.Length3D(ls)
	}
	return merged, length, nil
}
