package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"irrigation_controller/internal/models"
)

type StateSQLite struct {
	db  *sql.DB
	now func() time.Time
}

func NewStateSQLite(db *sql.DB) *StateSQLite {
	return &StateSQLite{db: db, now: time.Now}
}

const (
	programStateRowID = 1

	upsertStateSQL = `
		INSERT INTO program_state (id, running, current_program_id, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			running=excluded.running,
			current_program_id=excluded.current_program_id,
			updated_at=excluded.updated_at
	`

	selectStateSQL = `SELECT running, current_program_id FROM program_state WHERE id=?`
)

// Save writes the single program_state row. An idle state stores a NULL program id.
func (r *StateSQLite) Save(ctx context.Context, s models.ExecutionState) error {
	var current sql.NullString
	if s.Running && s.CurrentProgramID != "" {
		current = sql.NullString{String: s.CurrentProgramID, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, upsertStateSQL,
		programStateRowID,
		s.Running,
		current,
		formatTimestamp(r.now()),
	)
	if err != nil {
		return fmt.Errorf("save program state: %w", err)
	}
	return nil
}

// Load returns the persisted state, or an idle state if nothing was saved yet.
func (r *StateSQLite) Load(ctx context.Context) (models.ExecutionState, error) {
	var (
		s       models.ExecutionState
		current sql.NullString
	)
	err := r.db.QueryRowContext(ctx, selectStateSQL, programStateRowID).Scan(&s.Running, &current)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ExecutionState{}, nil
		}
		return models.ExecutionState{}, fmt.Errorf("load program state: %w", err)
	}
	s.CurrentProgramID = current.String
	return s, nil
}
