package repository

import (
	"context"
	"database/sql"
	"time"

	"sensor_overlay/internal/models"
	"sensor_overlay/internal/repository/db"
)

// StateRepo persists the single refresh status row.
type StateRepo interface {
	Save(ctx context.Context, s models.RefreshState) error
	Load(ctx context.Context) (models.RefreshState, error)
}

// EventRepo is the append-only refresh log.
type EventRepo interface {
	Append(ctx context.Context, e models.RefreshEvent) error
	List(ctx context.Context, from, to time.Time, typ string) ([]models.RefreshEvent, error)
}

type Repository struct {
	StateRepo StateRepo
	EventRepo EventRepo
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		StateRepo: NewStateSQLite(db),
		EventRepo: NewEventSQLite(db),
	}
}

// InitDB opens the sqlite file at path and applies the schema.
func InitDB(path string) (*sql.DB, error) {
	return db.InitDB(path)
}
