package engine

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/trailworks/trailnet/internal/model"
	"github.com/trailworks/trailnet/internal/store"
)

// AddEvent creates a manual event on a segment at the given fractional
// position range. start == end pins a point event; offset displaces a point
// event laterally from the line. The cached geometry is derived from the
// link set immediately.
func (e *Engine) AddEvent(ctx context.Context, segmentID int64, label string, start, end, offset float64) (*model.Event, error) {
	if start > end {
		start, end = end, start
	}
	if start < 0 || end > 1 {
		return nil, eris.Errorf("engine: event positions must be in [0,1], got (%g, %g)", start, end)
	}
	if offset != 0 && start != end {
		return nil, eris.New("engine: only point events take a lateral offset")
	}

	var ev *model.Event
	err := e.store.WithTx(ctx, func(tx store.Tx) error {
		if _, err := tx.GetSegment(ctx, segmentID); eris.Is(err, store.ErrNotFound) {
			return eris.Wrapf(ErrSegmentNotFound, "%d", segmentID)
		} else if err != nil {
			return err
		}
		ev = &model.Event{
			Kind:          model.KindManual,
			State:         model.StateActive,
			Label:         label,
			LateralOffset: offset,
		}
		if err := tx.InsertEvent(ctx, ev); err != nil {
			return err
		}
		link := &model.SegmentEventLink{
			SegmentID: segmentID,
			EventID:   ev.ID,
			StartPos:  start,
			EndPos:    end,
		}
		if err := tx.InsertLink(ctx, link); err != nil {
			return err
		}
		g, length, err := deriveEventGeometry(ctx, tx, ev)
		if err != nil {
			return err
		}
		ev.Geom = g
		ev.Length3D = length
		if err := tx.UpdateEvent(ctx, ev); err != nil {
			return err
		}
		e.log.Info("event created",
			zap.Int64("event", ev.ID),
			zap.Int64("segment", segmentID),
			zap.Float64("start", start),
			zap.Float64("end", end),
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ev, nil
}

// LinkEvent attaches an existing active event to another segment, growing a
// multi-segment extent, and re-derives the event's cached geometry.
// Tombstoned events are never resurrected.
func (e *Engine) LinkEvent(ctx context.Context, eventID, segmentID int64, start, end float64) error {
	if start > end {
		start, end = end, start
	}
	if start < 0 || end > 1 {
		return eris.Errorf("engine: event positions must be in [0,1], got (%g, %g)", start, end)
	}
	return e.store.WithTx(ctx, func(tx store.Tx) error {
		ev, err := tx.GetEvent(ctx, eventID)
		if err != nil {
			return err
		}
		if ev.Deleted() {
			return eris.Errorf("engine: event %d is orphaned", eventID)
		}
		if _, err := tx.GetSegment(ctx, segmentID); eris.Is(err, store.ErrNotFound) {
			return eris.Wrapf(ErrSegmentNotFound, "%d", segmentID)
		} else if err != nil {
			return err
		}
		link := &model.SegmentEventLink{
			SegmentID: segmentID,
			EventID:   eventID,
			StartPos:  start,
			EndPos:    end,
		}
		if err := tx.InsertLink(ctx, link); err != nil {
			return err
		}
		g, length, err := deriveEventGeometry(ctx, tx, ev)
		if err != nil {
			return err
		}
		ev.Geom = g
		ev.Length3D = length
		return tx.UpdateEvent(ctx, ev)
	})
}
