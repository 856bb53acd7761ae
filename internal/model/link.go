package model

// SegmentEventLink ties an event to a segment over a fractional position
// range. Positions are fractions in [0,1] of the segment's 2-D arc length
// and are stored normalized with StartPos <= EndPos. A point event has
// StartPos == EndPos.
type SegmentEventLink struct {
	ID        int64   `json:"id"`
	SegmentID int64   `json:"segment_id"`
	EventID   int64   `json:"event_id"`
	StartPos  float64 `json:"start_pos"`
	EndPos    float64 `json:"end_pos"`
}

// Normalize orders the position range as (min, max).
func (l *SegmentEventLink) Normalize() {
	if l.StartPos > l.EndPos {
		l.StartPos, l.EndPos = l.EndPos, l.StartPos
	}
}

// Point reports whether the link pins a single position.
func (l *SegmentEventLink) Point() bool { return l.StartPos == l.EndPos }
