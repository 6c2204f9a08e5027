package models

import "time"

// RefreshState is the persisted snapshot of the refresh controller.
type RefreshState struct {
	ID                int       `json:"id"`
	IsRunning         bool      `json:"is_running"`
	IntervalMs        int64     `json:"interval_ms"`
	LastAttemptAt     time.Time `json:"last_attempt_at,omitempty"`
	LastSuccessAt     time.Time `json:"last_success_at,omitempty"`
	ConsecutiveMisses int       `json:"consecutive_misses"`
	UpdatedAt         time.Time `json:"updated_at"`
}
