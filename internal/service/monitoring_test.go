package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"sensor_overlay/internal/models"
)

// stateRepoStub satisfies repository.StateRepo.
type stateRepoStub struct {
	mu       sync.Mutex
	loadResp models.RefreshState
	loadErr  error
	saveErr  error
	saved    []models.RefreshState
}

func (s *stateRepoStub) Load(ctx context.Context) (models.RefreshState, error) {
	return s.loadResp, s.loadErr
}

func (s *stateRepoStub) Save(ctx context.Context, state models.RefreshState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, state)
	return s.saveErr
}

func (s *stateRepoStub) last() (models.RefreshState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.saved) == 0 {
		return models.RefreshState{}, false
	}
	return s.saved[len(s.saved)-1], true
}

func TestMonitoringService_GetState(t *testing.T) {
	t.Parallel()

	minus3 := time.FixedZone("UTC-3", -3*3600)

	cases := []struct {
		name     string
		repoResp models.RefreshState
		repoErr  error
		check    func(t *testing.T, got models.RefreshState, err error)
	}{
		{
			name:    "propagates repository error",
			repoErr: errors.New("db down"),
			check: func(t *testing.T, got models.RefreshState, err error) {
				if err == nil {
					t.Fatalf("expected error, got nil")
				}
				if got.ID != 0 {
					t.Errorf("expected zero state, got ID %d", got.ID)
				}
			},
		},
		{
			name: "baseline when nothing persisted",
			check: func(t *testing.T, got models.RefreshState, err error) {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if got.ID != 1 || got.IsRunning {
					t.Errorf("unexpected baseline: %+v", got)
				}
				if got.IntervalMs != 30000 {
					t.Errorf("baseline IntervalMs = %d; want 30000", got.IntervalMs)
				}
				if got.UpdatedAt.IsZero() || got.UpdatedAt.Location() != time.UTC {
					t.Errorf("baseline UpdatedAt must be set in UTC, got %v", got.UpdatedAt)
				}
			},
		},
		{
			name: "normalizes stored times to UTC",
			repoResp: models.RefreshState{
				ID:                1,
				IsRunning:         true,
				IntervalMs:        5000,
				LastAttemptAt:     time.Date(2025, 1, 2, 3, 4, 5, 0, minus3),
				ConsecutiveMisses: 2,
				UpdatedAt:         time.Date(2025, 1, 2, 3, 4, 6, 0, minus3),
			},
			check: func(t *testing.T, got models.RefreshState, err error) {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if !got.IsRunning || got.IntervalMs != 5000 || got.ConsecutiveMisses != 2 {
					t.Errorf("unexpected fields: %+v", got)
				}
				want := time.Date(2025, 1, 2, 6, 4, 5, 0, time.UTC)
				if got.LastAttemptAt.Location() != time.UTC || !got.LastAttemptAt.Equal(want) {
					t.Errorf("LastAttemptAt = %v; want %v", got.LastAttemptAt, want)
				}
				if !got.LastSuccessAt.IsZero() {
					t.Errorf("LastSuccessAt should stay zero, got %v", got.LastSuccessAt)
				}
			},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			repo := &stateRepoStub{loadResp: tc.repoResp, loadErr: tc.repoErr}
			svc := NewMonitoringService(repo, 30*time.Second)

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			got, err := svc.GetState(ctx)
			tc.check(t, got, err)
		})
	}
}
