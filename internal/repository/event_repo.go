package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"irrigation_controller/internal/models"
)

type EventSQLite struct {
	db *sql.DB
}

func NewEventSQLite(db *sql.DB) *EventSQLite { return &EventSQLite{db: db} }

const (
	insertEventSQL = `
		INSERT INTO events (id, occurred_at, level, message, meta)
		VALUES (?, ?, ?, ?, ?)
	`
	deleteEventsBeforeSQL = `DELETE FROM events WHERE occurred_at < ?`
	clearEventsSQL        = `DELETE FROM events`
)

// Append inserts a new event. Missing EventID and OccurredAt are filled in.
func (r *EventSQLite) Append(ctx context.Context, e models.Event) error {
	if e.EventID == "" {
		e.EventID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now()
	}

	var metaPtr *string
	if e.Metadata != nil {
		if b, err := json.Marshal(e.Metadata); err == nil {
			s := string(b)
			metaPtr = &s
		}
	}

	_, err := r.db.ExecContext(ctx, insertEventSQL,
		e.EventID,
		formatTimestamp(e.OccurredAt),
		strings.ToUpper(strings.TrimSpace(e.Level)),
		e.Message,
		metaPtr,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// List returns events in [from, to] (zero bounds are open) with an optional level, oldest first.
func (r *EventSQLite) List(ctx context.Context, from, to time.Time, level string) ([]models.Event, error) {
	var (
		conds []string
		args  []any
	)
	if !from.IsZero() {
		conds = append(conds, "occurred_at >= ?")
		args = append(args, formatTimestamp(from))
	}
	if !to.IsZero() {
		conds = append(conds, "occurred_at <= ?")
		args = append(args, formatTimestamp(to))
	}
	if level = strings.ToUpper(strings.TrimSpace(level)); level != "" {
		conds = append(conds, "level = ?")
		args = append(args, level)
	}

	q := `SELECT id, occurred_at, level, message, meta FROM events`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY occurred_at ASC"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("select events: %w", err)
	}
	defer rows.Close()

	out := make([]models.Event, 0, 64)
	for rows.Next() {
		var (
			ev       models.Event
			occurred string
			metaStr  sql.NullString
		)
		if err := rows.Scan(&ev.EventID, &occurred, &ev.Level, &ev.Message, &metaStr); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if ev.OccurredAt, err = parseTimestamp(occurred); err != nil {
			return nil, fmt.Errorf("parse event time %q: %w", occurred, err)
		}
		if metaStr.Valid && metaStr.String != "" {
			var v any
			if err := json.Unmarshal([]byte(metaStr.String), &v); err == nil {
				ev.Metadata = v
			} else {
				ev.Metadata = metaStr.String
			}
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}

// DeleteBefore removes events older than before and reports how many were removed.
func (r *EventSQLite) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, deleteEventsBeforeSQL, formatTimestamp(before))
	if err != nil {
		return 0, fmt.Errorf("prune events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune events rows affected: %w", err)
	}
	return n, nil
}

func (r *EventSQLite) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, clearEventsSQL); err != nil {
		return fmt.Errorf("clear events: %w", err)
	}
	return nil
}
