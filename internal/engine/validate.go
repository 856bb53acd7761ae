package engine

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/trailworks/trailnet/internal/geometry"
	"github.com/trailworks/trailnet/internal/store"
)

// validate gatekeeps a candidate segment geometry: it must be a real line,
// simple, and must not share a linear sub-path with any other segment.
// Point crossings and endpoint touches are legal; the check is exact, no
// distance tolerance is applied. candidateID excludes the segment's own row
// on update (0 on insert).
func (e *Engine) validate(ctx context.Context, tx store.Tx, candidateID int64, line *geom.LineString) error {
	if line == nil || line.NumCoords() < 2 {
		return eris.New("engine: segment geometry must have at least two points")
	}
	simple, err := geometry.IsSimple(line)
	if err != nil {
		return err
	}
	if !simple {
		return eris.Wrapf(ErrNotSimple, "segment %d", candidateID)
	}

	// Bbox prefilter in SQL, exact overlay here.
	others, err := tx.SegmentsIntersecting(ctx, line.Bounds(), candidateID)
	if err != nil {
		return err
	}
	for i := range others {
		shared, err := geometry.SharesLinearPart(line, others[i].Geom)
		if err != nil {
			return err
		}
		if shared {
			return eris.Wrapf(ErrOverlap, "segment %d overlaps segment %d", candidateID, others[i].ID)
		}
	}
	return nil
}
