package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"irrigation_controller/internal/models"
)

// Timestamps are stored as fixed-width UTC text so that string order equals time order.
const timestampLayout = "2006-01-02 15:04:05.000"

var (
	// ErrNoSettings means the settings row has never been written.
	ErrNoSettings = errors.New("settings not found")
	// ErrCorruptSettings means the stored settings could not be decoded.
	ErrCorruptSettings = errors.New("settings data corrupted")
	// ErrProgramNotFound is returned for an unknown program id.
	ErrProgramNotFound = errors.New("program not found")
	// ErrCorruptProgram means a stored program row could not be decoded.
	ErrCorruptProgram = errors.New("program data corrupted")
	// ErrUserExists is returned when the operator name is already taken.
	ErrUserExists = errors.New("operator name already taken")
)

type Authorization interface {
	Create(ctx context.Context, username, hash string) (int, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

// SettingsRepo is the settings store.
type SettingsRepo interface {
	Load(ctx context.Context) (models.Settings, error)
	Save(ctx context.Context, s models.Settings) error
}

// ProgramRepo is the program store keyed by string id.
type ProgramRepo interface {
	List(ctx context.Context) ([]models.Program, error)
	Get(ctx context.Context, id string) (models.Program, error)
	Save(ctx context.Context, p models.Program) error
	Delete(ctx context.Context, id string) error
	SetLastRunDate(ctx context.Context, id, date string) error
	// DeleteCorrupt drops rows that cannot be decoded and returns their ids.
	DeleteCorrupt(ctx context.Context) ([]string, error)
	Clear(ctx context.Context) error
}

// StateRepo is the execution-state store.
type StateRepo interface {
	Save(ctx context.Context, s models.ExecutionState) error
	Load(ctx context.Context) (models.ExecutionState, error)
}

type EventRepo interface {
	Append(ctx context.Context, e models.Event) error
	List(ctx context.Context, from, to time.Time, level string) ([]models.Event, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
	Clear(ctx context.Context) error
}

type Repository struct {
	SettingsRepo SettingsRepo
	ProgramRepo  ProgramRepo
	StateRepo    StateRepo
	EventRepo    EventRepo
	Auth         Authorization
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		SettingsRepo: NewSettingsSQLite(db),
		ProgramRepo:  NewProgramSQLite(db),
		StateRepo:    NewStateSQLite(db),
		EventRepo:    NewEventSQLite(db),
		Auth:         NewOperatorSQLite(db),
	}
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(s string) (time.Time, error) {
	return time.ParseInLocation(timestampLayout, s, time.UTC)
}
