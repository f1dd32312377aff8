package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"irrigation_controller/internal/models"
)

// OperatorSQLite stores the accounts allowed to drive the controller API.
type OperatorSQLite struct {
	db *sql.DB
}

func NewOperatorSQLite(db *sql.DB) *OperatorSQLite {
	return &OperatorSQLite{db: db}
}

var _ Authorization = (*OperatorSQLite)(nil)

const (
	insertOperatorSQL       = `INSERT INTO users (username, password_hash) VALUES (?, ?)`
	selectOperatorByNameSQL = `SELECT id, username, password_hash FROM users WHERE username = ?`
)

// Create registers an operator and returns the new account id.
func (r *OperatorSQLite) Create(ctx context.Context, username, passwordHash string) (int, error) {
	res, err := r.db.ExecContext(ctx, insertOperatorSQL, username, passwordHash)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("register operator %q: %w", username, ErrUserExists)
		}
		return 0, fmt.Errorf("register operator %q: %w", username, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read id of operator %q: %w", username, err)
	}
	return int(id), nil
}

// GetByUsername loads an operator account. An unknown name yields (nil, nil).
func (r *OperatorSQLite) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	err := r.db.QueryRowContext(ctx, selectOperatorByNameSQL, username).Scan(&u.ID, &u.Username, &u.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load operator %q: %w", username, err)
	}
	return &u, nil
}

// sqlite reports constraint failures only through the message text
func isUniqueViolation(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint")
}
