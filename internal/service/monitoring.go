package service

import (
	"context"
	"time"

	"sensor_overlay/internal/models"
	"sensor_overlay/internal/repository"
)

type MonitoringService struct {
	stateRepo repository.StateRepo
	interval  time.Duration
}

func NewMonitoringService(stateRepo repository.StateRepo, interval time.Duration) *MonitoringService {
	return &MonitoringService{stateRepo: stateRepo, interval: interval}
}

// GetState returns the latest persisted refresh status.
// If nothing is persisted yet, returns a stopped baseline snapshot.
func (s *MonitoringService) GetState(ctx context.Context) (models.RefreshState, error) {
	state, err := s.stateRepo.Load(ctx)
	if err != nil {
		return models.RefreshState{}, err
	}
	if state.ID == 0 {
		return s.baselineState(), nil
	}
	state.LastAttemptAt = toUTC(state.LastAttemptAt)
	state.LastSuccessAt = toUTC(state.LastSuccessAt)
	state.UpdatedAt = toUTC(state.UpdatedAt)
	return state, nil
}

func (s *MonitoringService) baselineState() models.RefreshState {
	return models.RefreshState{
		ID:         1, // single-row table
		IsRunning:  false,
		IntervalMs: s.interval.Milliseconds(),
		UpdatedAt:  time.Now().UTC(),
	}
}

// toUTC normalizes non-zero time to UTC, preserving zero values.
func toUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}
