package model

import "time"

// Route is an externally published itinerary keyed by an event. The engine
// only ever writes its Published flag: deleting any supporting segment
// invalidates the derived routing, so the cascade handler clears the flag
// unconditionally.
type Route struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	EventID   int64     `json:"event_id"`
	Published bool      `json:"published"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
