package repository

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"irrigation_controller/internal/models"
)

func TestEventSQLite_Append_FillsDefaults(t *testing.T) {
	conn, mock := newMock(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO events")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "WARNING", "zone 3 not found", `{"zone_id":3}`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := NewEventSQLite(conn).Append(testCtx(t), models.Event{
		Level:    " warning ",
		Message:  "zone 3 not found",
		Metadata: map[string]any{"zone_id": 3},
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
}

func TestEventSQLite_Append_DBError(t *testing.T) {
	conn, mock := newMock(t)
	mock.ExpectExec("INSERT INTO events").WillReturnError(errors.New("readonly"))

	if err := NewEventSQLite(conn).Append(testCtx(t), models.Event{Level: "INFO", Message: "x"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestEventSQLite_List_BuildsFilters(t *testing.T) {
	conn, mock := newMock(t)
	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "occurred_at", "level", "message", "meta"}).
		AddRow("e1", "2025-06-01 06:00:00.000", "ERROR", "relay fault", `{"pin":13}`).
		AddRow("e2", "2025-06-01 07:00:00.000", "ERROR", "raw meta", "not-json")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, occurred_at, level, message, meta FROM events WHERE occurred_at >= ? AND occurred_at <= ? AND level = ? ORDER BY occurred_at ASC")).
		WithArgs("2025-06-01 00:00:00.000", "2025-06-02 00:00:00.000", "ERROR").
		WillReturnRows(rows)

	events, err := NewEventSQLite(conn).List(testCtx(t), from, to, "error")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events", len(events))
	}
	if !events[0].OccurredAt.Equal(time.Date(2025, 6, 1, 6, 0, 0, 0, time.UTC)) {
		t.Fatalf("bad time: %v", events[0].OccurredAt)
	}
	if m, ok := events[0].Metadata.(map[string]any); !ok || m["pin"] != float64(13) {
		t.Fatalf("bad metadata: %#v", events[0].Metadata)
	}
	if events[1].Metadata != "not-json" {
		t.Fatalf("malformed metadata should be kept raw, got %#v", events[1].Metadata)
	}
}

func TestEventSQLite_RetentionRoundTrip(t *testing.T) {
	repo := NewEventSQLite(newSQLite(t))
	ctx := testCtx(t)
	now := time.Date(2025, 6, 20, 12, 0, 0, 0, time.UTC)

	for i, age := range []time.Duration{15 * 24 * time.Hour, 11 * 24 * time.Hour, 2 * time.Hour} {
		err := repo.Append(ctx, models.Event{
			OccurredAt: now.Add(-age),
			Level:      models.LevelInfo,
			Message:    "event",
		})
		if err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}

	n, err := repo.DeleteBefore(ctx, now.Add(-10*24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteBefore: %v", err)
	}
	if n != 2 {
		t.Fatalf("pruned %d events, want 2", n)
	}

	left, err := repo.List(ctx, time.Time{}, time.Time{}, "")
	if err != nil || len(left) != 1 {
		t.Fatalf("List after prune: %d, %v", len(left), err)
	}

	if err := repo.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	left, _ = repo.List(ctx, time.Time{}, time.Time{}, "")
	if len(left) != 0 {
		t.Fatalf("expected no events after Clear")
	}
}
