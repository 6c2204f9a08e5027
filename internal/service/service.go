package service

import (
	"context"
	"time"

	"sensor_overlay/internal/models"
	"sensor_overlay/internal/repository"
)

type Authorization interface {
	GenerateToken(password string) (string, error)
	ParseToken(accessToken string) (string, error)
}

// Refresh exposes the operator controls of the refresh timer.
type Refresh interface {
	Start(ctx context.Context)
	Stop(ctx context.Context)
	ForceRefresh(ctx context.Context) *models.Reading
	Running() bool
	Cached() *models.Reading
	Interval() time.Duration
}

// Monitoring exposes the persisted refresh status.
type Monitoring interface {
	GetState(ctx context.Context) (models.RefreshState, error)
}

// EventLog exposes the refresh log with filtering access.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.RefreshEvent, error)
}

type Service struct {
	Refresh
	Monitoring
	EventLog
	Authorization
}

// NewService wires the repository layer and the process-wide controller into
// the operator-facing services.
func NewService(repos *repository.Repository, ctrl *RefreshController, auth *AuthService) *Service {
	return &Service{
		Refresh:       ctrl,
		Monitoring:    NewMonitoringService(repos.StateRepo, ctrl.Interval()),
		EventLog:      NewEventLogService(repos.EventRepo),
		Authorization: auth,
	}
}
