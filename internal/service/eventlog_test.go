package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"irrigation_controller/internal/models"
)

// fakeEventRepo is a minimal stub that satisfies the repository.EventRepo interface.
type fakeEventRepo struct {
	mu sync.Mutex

	// captured inputs
	appended  []models.Event
	gotFrom   time.Time
	gotTo     time.Time
	gotLevel  string
	gotBefore time.Time

	// configured outputs
	events    []models.Event
	err       error
	appendErr error

	calls   int
	cleared bool
}

func (f *fakeEventRepo) List(ctx context.Context, from, to time.Time, level string) ([]models.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.gotFrom = from
	f.gotTo = to
	f.gotLevel = level
	return f.events, f.err
}

func (f *fakeEventRepo) Append(ctx context.Context, e models.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	f.appended = append(f.appended, e)
	return nil
}

func (f *fakeEventRepo) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotBefore = before
	return 3, f.err
}

func (f *fakeEventRepo) Clear(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = true
	return f.err
}

func Test_normalizeLevel(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in  string
		exp string
	}{
		{"", models.LevelInfo},
		{"info", models.LevelInfo},
		{" warning ", models.LevelWarning},
		{"warn", models.LevelWarning},
		{"Error", models.LevelError},
		{"debug", models.LevelInfo},
	}

	for _, c := range cases {
		c := c
		t.Run(c.in, func(t *testing.T) {
			t.Parallel()
			if got := normalizeLevel(c.in); got != c.exp {
				t.Fatalf("normalizeLevel(%q) = %q; want %q", c.in, got, c.exp)
			}
		})
	}
}

func TestEventLogService_Record_PersistsWithMetadata(t *testing.T) {
	frepo := &fakeEventRepo{}
	svc := NewEventLogService(frepo, nil)
	fixed := time.Date(2025, time.June, 1, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	svc.Record(context.Background(), "warning", "zone 2 skipped", "zone_id", 2, "err", errors.New("boom"))

	if len(frepo.appended) != 1 {
		t.Fatalf("expected one appended event, got %d", len(frepo.appended))
	}
	ev := frepo.appended[0]
	if ev.Level != models.LevelWarning || ev.Message != "zone 2 skipped" || !ev.OccurredAt.Equal(fixed) {
		t.Fatalf("unexpected event %+v", ev)
	}
	meta, ok := ev.Metadata.(map[string]any)
	if !ok {
		t.Fatalf("metadata has type %T", ev.Metadata)
	}
	if meta["zone_id"] != 2 || meta["err"] != "boom" {
		t.Fatalf("unexpected metadata %v", meta)
	}
}

func TestEventLogService_Record_SwallowsStoreErrors(t *testing.T) {
	frepo := &fakeEventRepo{appendErr: errors.New("db locked")}
	svc := NewEventLogService(frepo, nil)

	// must not panic or surface the error
	svc.Record(context.Background(), models.LevelError, "relay fault")
}

func TestEventLogService_Record_SurvivesCancelledContext(t *testing.T) {
	frepo := &fakeEventRepo{}
	svc := NewEventLogService(frepo, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc.Record(ctx, models.LevelInfo, "shutdown")
	if len(frepo.appended) != 1 {
		t.Fatal("events recorded during shutdown should still be stored")
	}
}

func TestEventLogService_List_DelegatesNormalizedParams(t *testing.T) {
	t.Parallel()

	frepo := &fakeEventRepo{
		events: []models.Event{
			{EventID: "1"},
		},
	}
	svc := NewEventLogService(frepo, nil)

	from := time.Date(2025, time.October, 1, 10, 0, 0, 0, time.UTC)
	to := time.Date(2025, time.October, 1, 12, 30, 0, 0, time.UTC)

	out, err := svc.List(context.Background(), LogFilter{From: from, To: to, Level: "  error "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || out[0].EventID != "1" {
		t.Fatalf("unexpected events: %+v", out)
	}
	if frepo.calls != 1 {
		t.Fatalf("repo List should be called once, got %d", frepo.calls)
	}
	if !frepo.gotFrom.Equal(from) || !frepo.gotTo.Equal(to) {
		t.Fatalf("repo got range %v..%v", frepo.gotFrom, frepo.gotTo)
	}
	if frepo.gotLevel != models.LevelError {
		t.Fatalf("repo gotLevel=%q; want %q", frepo.gotLevel, models.LevelError)
	}
}

func TestEventLogService_List_ValidationError(t *testing.T) {
	t.Parallel()

	frepo := &fakeEventRepo{}
	svc := NewEventLogService(frepo, nil)

	_, err := svc.List(context.Background(), LogFilter{
		From: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2025, 1, 1, 23, 0, 0, 0, time.UTC),
	})
	if !errors.Is(err, errInvalidTimeRange) {
		t.Fatalf("expected errInvalidTimeRange; got %v", err)
	}
	if frepo.calls != 0 {
		t.Fatalf("repo should not be called on validation error, calls=%d", frepo.calls)
	}
}

func TestEventLogService_List_RepoErrorPropagation(t *testing.T) {
	t.Parallel()

	frepo := &fakeEventRepo{err: errors.New("db down")}
	svc := NewEventLogService(frepo, nil)

	_, err := svc.List(context.Background(), LogFilter{})
	if !errors.Is(err, frepo.err) {
		t.Fatalf("expected repo error to propagate; got %v", err)
	}
}

func TestEventLogService_List_ZeroBoundsPassedAsZero(t *testing.T) {
	t.Parallel()

	frepo := &fakeEventRepo{}
	svc := NewEventLogService(frepo, nil)

	if _, err := svc.List(context.Background(), LogFilter{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !frepo.gotFrom.IsZero() || !frepo.gotTo.IsZero() || frepo.gotLevel != "" {
		t.Fatalf("expected zero bounds and empty level; got from=%v to=%v level=%q", frepo.gotFrom, frepo.gotTo, frepo.gotLevel)
	}
}

func TestEventLogService_Prune(t *testing.T) {
	frepo := &fakeEventRepo{}
	svc := NewEventLogService(frepo, nil)
	fixed := time.Date(2025, time.June, 11, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	n, err := svc.Prune(context.Background(), 10*24*time.Hour)
	if err != nil || n != 3 {
		t.Fatalf("Prune = %d, %v", n, err)
	}
	if want := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC); !frepo.gotBefore.Equal(want) {
		t.Fatalf("cutoff = %v, want %v", frepo.gotBefore, want)
	}
}
