package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/trailworks/trailnet/internal/model"
	"github.com/trailworks/trailnet/internal/store"
)

// cascadeDelete runs before a segment row is removed, in the same
// transaction. Events whose link set would become empty are tombstoned, not
// deleted; every route supported by a linked event loses its published flag
// unconditionally, because the route's derived routing is stale whether or
// not the event survives.
func (e *Engine) cascadeDelete(ctx context.Context, tx store.Tx, segmentID int64) error {
	links, err := tx.LinksForSegment(ctx, segmentID)
	if err != nil {
		return err
	}

	eventIDs := make([]int64, 0, len(links))
	seen := make(map[int64]bool, len(links))
	for _, link := range links {
		if !seen[link.EventID] {
			seen[link.EventID] = true
			eventIDs = append(eventIDs, link.EventID)
		}
	}

	var orphaned int
	for _, eventID := range eventIDs {
		evLinks, err := tx.LinksForEvent(ctx, eventID)
		if err != nil {
			return err
		}
		remaining := 0
		for _, l := range evLinks {
			if l.SegmentID != segmentID {
				remaining++
			}
		}
		if remaining > 0 {
			continue
		}
		ev, err := tx.GetEvent(ctx, eventID)
		if err != nil {
			return err
		}
		if ev.Deleted() {
			continue
		}
		if err := tx.SetEventState(ctx, eventID, model.StateOrphaned); err != nil {
			return err
		}
		orphaned++
	}

	unpublished, err := tx.UnpublishRoutesForEvents(ctx, eventIDs)
	if err != nil {
		return err
	}

	if err := tx.DeleteLinksBySegment(ctx, segmentID); err != nil {
		return err
	}
	if err := tx.DeleteSegment(ctx, segmentID); err != nil {
		return err
	}

	e.log.Info("segment deleted",
		zap.Int64("segment", segmentID),
		zap.Int("events_orphaned", orphaned),
		zap.Int64("routes_unpublished", unpublished),
	)
	return nil
}
