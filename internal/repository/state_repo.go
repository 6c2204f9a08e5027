package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"sensor_overlay/internal/models"
)

type StateSQLite struct {
	db *sql.DB
}

func NewStateSQLite(db *sql.DB) *StateSQLite {
	return &StateSQLite{db: db}
}

const (
	refreshStateRowID = 1

	upsertStateSQL = `
		INSERT INTO refresh_state (id, running, interval_ms, last_attempt_at, last_success_at, consecutive_misses, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			running=excluded.running,
			interval_ms=excluded.interval_ms,
			last_attempt_at=excluded.last_attempt_at,
			last_success_at=excluded.last_success_at,
			consecutive_misses=excluded.consecutive_misses,
			updated_at=excluded.updated_at
	`

	selectStateSQL = `
		SELECT id, running, interval_ms, last_attempt_at, last_success_at, consecutive_misses, updated_at
		FROM refresh_state WHERE id=?
	`
)

// nullUTC maps the zero time to NULL.
func nullUTC(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

// Save upserts the refresh_state row (id always 1).
func (r *StateSQLite) Save(ctx context.Context, state models.RefreshState) error {
	updated := state.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}

	_, err := r.db.ExecContext(ctx, upsertStateSQL,
		refreshStateRowID,
		state.IsRunning,
		state.IntervalMs,
		nullUTC(state.LastAttemptAt),
		nullUTC(state.LastSuccessAt),
		state.ConsecutiveMisses,
		updated.UTC(),
	)
	return err
}

// Load returns the refresh_state row, or the zero value when none was saved yet.
func (r *StateSQLite) Load(ctx context.Context) (models.RefreshState, error) {
	row := r.db.QueryRowContext(ctx, selectStateSQL, refreshStateRowID)

	var (
		s                    models.RefreshState
		lastAttempt, lastSuc sql.NullTime
	)
	if err := row.Scan(
		&s.ID,
		&s.IsRunning,
		&s.IntervalMs,
		&lastAttempt,
		&lastSuc,
		&s.ConsecutiveMisses,
		&s.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.RefreshState{}, nil
		}
		return models.RefreshState{}, err
	}

	if lastAttempt.Valid {
		s.LastAttemptAt = lastAttempt.Time.UTC()
	}
	if lastSuc.Valid {
		s.LastSuccessAt = lastSuc.Time.UTC()
	}
	s.UpdatedAt = s.UpdatedAt.UTC()
	return s, nil
}
