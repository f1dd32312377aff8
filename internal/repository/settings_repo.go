package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"irrigation_controller/internal/models"
)

type SettingsSQLite struct {
	db  *sql.DB
	now func() time.Time
}

func NewSettingsSQLite(db *sql.DB) *SettingsSQLite {
	return &SettingsSQLite{db: db, now: time.Now}
}

const (
	settingsRowID = 1

	upsertSettingsSQL = `
		INSERT INTO user_settings (id, data, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			data=excluded.data,
			updated_at=excluded.updated_at
	`

	selectSettingsSQL = `SELECT data FROM user_settings WHERE id=?`
)

// Load returns the stored settings as written. Callers normalize.
// Returns ErrNoSettings if the row is missing and ErrCorruptSettings if it cannot be decoded.
func (r *SettingsSQLite) Load(ctx context.Context) (models.Settings, error) {
	var data string
	if err := r.db.QueryRowContext(ctx, selectSettingsSQL, settingsRowID).Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Settings{}, ErrNoSettings
		}
		return models.Settings{}, fmt.Errorf("select settings: %w", err)
	}

	var s models.Settings
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return models.Settings{}, fmt.Errorf("%w: %v", ErrCorruptSettings, err)
	}
	return s, nil
}

func (r *SettingsSQLite) Save(ctx context.Context, s models.Settings) error {
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, upsertSettingsSQL, settingsRowID, string(b), formatTimestamp(r.now())); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
