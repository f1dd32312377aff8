package repository

import (
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"irrigation_controller/internal/models"
)

func sampleProgram(id string) models.Program {
	return models.Program{
		ID:             id,
		Name:           "Lawn",
		Months:         []int{5, 6, 7},
		ActivationTime: "06:00",
		Recurrence:     models.RecurrenceCustom,
		IntervalDays:   3,
		Steps:          []models.Step{{ZoneID: 0, DurationMinutes: 10}, {ZoneID: 2, DurationMinutes: 5}},
	}
}

func TestProgramSQLite_Save_EncodesJSONColumns(t *testing.T) {
	conn, mock := newMock(t)
	p := sampleProgram("p1")

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO programs")).
		WithArgs("p1", "Lawn", "[5,6,7]", "06:00", "custom", 3,
			`[{"zone_id":0,"duration_minutes":10},{"zone_id":2,"duration_minutes":5}]`, nil).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := NewProgramSQLite(conn).Save(testCtx(t), p); err != nil {
		t.Fatalf("Save: %v", err)
	}
}

func TestProgramSQLite_Get_NotFound(t *testing.T) {
	conn, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(selectProgramSQL)).WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "months", "activation_time", "recurrence", "interval_days", "steps", "last_run_date"}))

	_, err := NewProgramSQLite(conn).Get(testCtx(t), "nope")
	if !errors.Is(err, ErrProgramNotFound) {
		t.Fatalf("expected ErrProgramNotFound, got %v", err)
	}
}

func TestProgramSQLite_List_CorruptRow(t *testing.T) {
	conn, mock := newMock(t)
	rows := sqlmock.NewRows([]string{"id", "name", "months", "activation_time", "recurrence", "interval_days", "steps", "last_run_date"}).
		AddRow("p1", "Broken", "not-json", "06:00", "daily", 0, "[]", nil)
	mock.ExpectQuery(regexp.QuoteMeta(selectProgramsSQL)).WillReturnRows(rows)

	_, err := NewProgramSQLite(conn).List(testCtx(t))
	if !errors.Is(err, ErrCorruptProgram) {
		t.Fatalf("expected ErrCorruptProgram, got %v", err)
	}
}

func TestProgramSQLite_Delete_NotFound(t *testing.T) {
	conn, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta(deleteProgramSQL)).WithArgs("ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := NewProgramSQLite(conn).Delete(testCtx(t), "ghost"); !errors.Is(err, ErrProgramNotFound) {
		t.Fatalf("expected ErrProgramNotFound, got %v", err)
	}
}

func TestProgramSQLite_RoundTrip(t *testing.T) {
	repo := NewProgramSQLite(newSQLite(t))
	ctx := testCtx(t)

	if err := repo.Save(ctx, sampleProgram("b")); err != nil {
		t.Fatalf("Save b: %v", err)
	}
	a := sampleProgram("a")
	a.Months = []int{1}
	a.Recurrence = models.RecurrenceDaily
	a.IntervalDays = 0
	if err := repo.Save(ctx, a); err != nil {
		t.Fatalf("Save a: %v", err)
	}

	list, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].ID != "a" || list[1].ID != "b" {
		t.Fatalf("unexpected list order: %+v", list)
	}

	if err := repo.SetLastRunDate(ctx, "b", "2025-06-01"); err != nil {
		t.Fatalf("SetLastRunDate: %v", err)
	}
	got, err := repo.Get(ctx, "b")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.LastRunDate != "2025-06-01" || got.IntervalDays != 3 || len(got.Steps) != 2 || got.Steps[1].ZoneID != 2 {
		t.Fatalf("unexpected program: %+v", got)
	}

	// saving again without a last run date keeps the row but clears the date
	got.Name = "Lawn (front)"
	got.LastRunDate = ""
	if err := repo.Save(ctx, got); err != nil {
		t.Fatalf("re-Save: %v", err)
	}
	got, _ = repo.Get(ctx, "b")
	if got.Name != "Lawn (front)" || got.LastRunDate != "" {
		t.Fatalf("update not applied: %+v", got)
	}

	if err := repo.SetLastRunDate(ctx, "missing", "2025-06-01"); !errors.Is(err, ErrProgramNotFound) {
		t.Fatalf("expected ErrProgramNotFound, got %v", err)
	}
	if err := repo.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := repo.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	list, _ = repo.List(ctx)
	if len(list) != 0 {
		t.Fatalf("expected empty store, got %d", len(list))
	}
}

func TestProgramSQLite_DeleteCorrupt(t *testing.T) {
	conn := newSQLite(t)
	repo := NewProgramSQLite(conn)
	ctx := testCtx(t)

	if err := repo.Save(ctx, sampleProgram("good")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	for _, q := range []string{
		`INSERT INTO programs (id, name, months, activation_time, recurrence, steps) VALUES ('bad-months', 'A', 'not-json', '06:00', 'daily', '[]')`,
		`INSERT INTO programs (id, name, months, activation_time, recurrence, steps) VALUES ('bad-steps', 'B', '[1]', '06:00', 'daily', '{')`,
	} {
		if _, err := conn.ExecContext(ctx, q); err != nil {
			t.Fatalf("insert corrupt row: %v", err)
		}
	}

	if _, err := repo.List(ctx); !errors.Is(err, ErrCorruptProgram) {
		t.Fatalf("List before repair: expected ErrCorruptProgram, got %v", err)
	}

	removed, err := repo.DeleteCorrupt(ctx)
	if err != nil {
		t.Fatalf("DeleteCorrupt: %v", err)
	}
	if len(removed) != 2 || removed[0] != "bad-months" || removed[1] != "bad-steps" {
		t.Fatalf("removed = %v", removed)
	}

	list, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List after repair: %v", err)
	}
	if len(list) != 1 || list[0].ID != "good" {
		t.Fatalf("unexpected programs after repair: %+v", list)
	}

	removed, err = repo.DeleteCorrupt(ctx)
	if err != nil || len(removed) != 0 {
		t.Fatalf("second DeleteCorrupt = %v, %v; want nothing removed", removed, err)
	}
}
