package models

import "time"

// Refresh event types.
const (
	EventStart   = "START"
	EventStop    = "STOP"
	EventRefresh = "REFRESH"
	EventMiss    = "MISS"
)

// RefreshEvent is a single entry of the refresh log.
type RefreshEvent struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`        // START | STOP | REFRESH | MISS
	Description string    `json:"description"` // human-readable
	Metadata    any       `json:"metadata,omitempty"`
}
