package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"irrigation_controller/internal/models"
)

type ProgramSQLite struct {
	db *sql.DB
}

func NewProgramSQLite(db *sql.DB) *ProgramSQLite {
	return &ProgramSQLite{db: db}
}

const (
	programColumns = `id, name, months, activation_time, recurrence, interval_days, steps, last_run_date`

	selectProgramsSQL = `SELECT ` + programColumns + ` FROM programs ORDER BY id`
	selectProgramSQL  = `SELECT ` + programColumns + ` FROM programs WHERE id=?`

	upsertProgramSQL = `
		INSERT INTO programs (` + programColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name=excluded.name,
			months=excluded.months,
			activation_time=excluded.activation_time,
			recurrence=excluded.recurrence,
			interval_days=excluded.interval_days,
			steps=excluded.steps,
			last_run_date=excluded.last_run_date
	`

	selectProgramBlobsSQL = `SELECT id, months, steps FROM programs ORDER BY id`

	deleteProgramSQL     = `DELETE FROM programs WHERE id=?`
	updateLastRunDateSQL = `UPDATE programs SET last_run_date=? WHERE id=?`
	clearProgramsSQL     = `DELETE FROM programs`
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProgram(row rowScanner) (models.Program, error) {
	var (
		p        models.Program
		months   string
		steps    string
		lastRun  sql.NullString
		interval int
	)
	if err := row.Scan(&p.ID, &p.Name, &months, &p.ActivationTime, &p.Recurrence, &interval, &steps, &lastRun); err != nil {
		return models.Program{}, err
	}
	if err := json.Unmarshal([]byte(months), &p.Months); err != nil {
		return models.Program{}, fmt.Errorf("%w: program %q months: %v", ErrCorruptProgram, p.ID, err)
	}
	if err := json.Unmarshal([]byte(steps), &p.Steps); err != nil {
		return models.Program{}, fmt.Errorf("%w: program %q steps: %v", ErrCorruptProgram, p.ID, err)
	}
	p.IntervalDays = interval
	p.LastRunDate = lastRun.String
	return p, nil
}

// List returns all programs ordered by id.
func (r *ProgramSQLite) List(ctx context.Context) ([]models.Program, error) {
	rows, err := r.db.QueryContext(ctx, selectProgramsSQL)
	if err != nil {
		return nil, fmt.Errorf("select programs: %w", err)
	}
	defer rows.Close()

	out := make([]models.Program, 0, 8)
	for rows.Next() {
		p, err := scanProgram(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate programs: %w", err)
	}
	return out, nil
}

func (r *ProgramSQLite) Get(ctx context.Context, id string) (models.Program, error) {
	p, err := scanProgram(r.db.QueryRowContext(ctx, selectProgramSQL, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Program{}, fmt.Errorf("%w: %q", ErrProgramNotFound, id)
		}
		return models.Program{}, err
	}
	return p, nil
}

// Save inserts or replaces the program with p.ID.
func (r *ProgramSQLite) Save(ctx context.Context, p models.Program) error {
	months, err := json.Marshal(nonNilInts(p.Months))
	if err != nil {
		return fmt.Errorf("marshal months: %w", err)
	}
	steps, err := json.Marshal(nonNilSteps(p.Steps))
	if err != nil {
		return fmt.Errorf("marshal steps: %w", err)
	}
	var lastRun sql.NullString
	if p.LastRunDate != "" {
		lastRun = sql.NullString{String: p.LastRunDate, Valid: true}
	}
	_, err = r.db.ExecContext(ctx, upsertProgramSQL,
		p.ID, p.Name, string(months), p.ActivationTime, p.Recurrence, p.IntervalDays, string(steps), lastRun,
	)
	if err != nil {
		return fmt.Errorf("save program %q: %w", p.ID, err)
	}
	return nil
}

func (r *ProgramSQLite) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, deleteProgramSQL, id)
	if err != nil {
		return fmt.Errorf("delete program %q: %w", id, err)
	}
	return requireAffected(res, id)
}

func (r *ProgramSQLite) SetLastRunDate(ctx context.Context, id, date string) error {
	res, err := r.db.ExecContext(ctx, updateLastRunDateSQL, date, id)
	if err != nil {
		return fmt.Errorf("update last run date of %q: %w", id, err)
	}
	return requireAffected(res, id)
}

// DeleteCorrupt removes every row whose months or steps cannot be decoded and returns the
// removed ids.
func (r *ProgramSQLite) DeleteCorrupt(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, selectProgramBlobsSQL)
	if err != nil {
		return nil, fmt.Errorf("select programs: %w", err)
	}
	var bad []string
	for rows.Next() {
		var id, months, steps string
		if err := rows.Scan(&id, &months, &steps); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan program: %w", err)
		}
		var m []int
		var st []models.Step
		if json.Unmarshal([]byte(months), &m) != nil || json.Unmarshal([]byte(steps), &st) != nil {
			bad = append(bad, id)
		}
	}
	err = rows.Err()
	_ = rows.Close()
	if err != nil {
		return nil, fmt.Errorf("iterate programs: %w", err)
	}

	// single connection: rows must be closed before deleting
	for _, id := range bad {
		if _, err := r.db.ExecContext(ctx, deleteProgramSQL, id); err != nil {
			return nil, fmt.Errorf("delete corrupt program %q: %w", id, err)
		}
	}
	return bad, nil
}

func (r *ProgramSQLite) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, clearProgramsSQL); err != nil {
		return fmt.Errorf("clear programs: %w", err)
	}
	return nil
}

func requireAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for %q: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %q", ErrProgramNotFound, id)
	}
	return nil
}

func nonNilInts(v []int) []int {
	if v == nil {
		return []int{}
	}
	return v
}

func nonNilSteps(v []models.Step) []models.Step {
	if v == nil {
		return []models.Step{}
	}
	return v
}
