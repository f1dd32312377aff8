package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"irrigation_controller/internal/clock"
	"irrigation_controller/internal/models"
	"irrigation_controller/internal/relay"
	"irrigation_controller/internal/repository"
)

// ---- settings ----

type staticSettings struct {
	mu sync.Mutex
	s  models.Settings
}

func newStaticSettings(s models.Settings) *staticSettings {
	return &staticSettings{s: s.Normalize()}
}

func (f *staticSettings) Current() models.Settings {
	f.mu.Lock()
	defer f.mu.Unlock()
	return cloneSettings(f.s)
}

func (f *staticSettings) update(fn func(*models.Settings)) {
	f.mu.Lock()
	fn(&f.s)
	f.mu.Unlock()
}

// testSettings returns factory settings with the given cap and no activation delay.
func testSettings(maxActive int) models.Settings {
	s := models.FactorySettings()
	s.MaxActiveZones = maxActive
	s.ActivationDelay = 0
	return s
}

func zonePin(t *testing.T, s SettingsProvider, id int) int {
	t.Helper()
	z, ok := s.Current().Zone(id)
	if !ok {
		t.Fatalf("zone %d not configured", id)
	}
	return *z.Pin
}

// ---- event recorder ----

type recordedEvent struct {
	level   string
	message string
}

type fakeRecorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (f *fakeRecorder) Record(ctx context.Context, level, message string, kv ...any) {
	f.mu.Lock()
	f.events = append(f.events, recordedEvent{level: level, message: message})
	f.mu.Unlock()
}

func (f *fakeRecorder) has(level, substr string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.events {
		if e.level == level && strings.Contains(e.message, substr) {
			return true
		}
	}
	return false
}

// ---- stores ----

type fakeProgramRepo struct {
	mu       sync.Mutex
	programs map[string]models.Program
	corrupt  map[string]bool
	listErr  error
}

func newFakeProgramRepo(ps ...models.Program) *fakeProgramRepo {
	r := &fakeProgramRepo{programs: make(map[string]models.Program), corrupt: make(map[string]bool)}
	for _, p := range ps {
		r.programs[p.ID] = p
	}
	return r
}

func (r *fakeProgramRepo) List(ctx context.Context) ([]models.Program, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	if len(r.corrupt) > 0 {
		return nil, fmt.Errorf("%w: undecodable row", repository.ErrCorruptProgram)
	}
	out := make([]models.Program, 0, len(r.programs))
	for _, p := range r.programs {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeProgramRepo) Get(ctx context.Context, id string) (models.Program, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.corrupt[id] {
		return models.Program{}, fmt.Errorf("%w: program %q", repository.ErrCorruptProgram, id)
	}
	p, ok := r.programs[id]
	if !ok {
		return models.Program{}, repository.ErrProgramNotFound
	}
	return p, nil
}

func (r *fakeProgramRepo) Save(ctx context.Context, p models.Program) error {
	r.mu.Lock()
	r.programs[p.ID] = p
	r.mu.Unlock()
	return nil
}

func (r *fakeProgramRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.programs[id]; !ok {
		return repository.ErrProgramNotFound
	}
	delete(r.programs, id)
	return nil
}

func (r *fakeProgramRepo) SetLastRunDate(ctx context.Context, id, date string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.programs[id]
	if !ok {
		return repository.ErrProgramNotFound
	}
	p.LastRunDate = date
	r.programs[id] = p
	return nil
}

func (r *fakeProgramRepo) DeleteCorrupt(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.corrupt))
	for id := range r.corrupt {
		ids = append(ids, id)
		delete(r.programs, id)
	}
	sort.Strings(ids)
	r.corrupt = make(map[string]bool)
	return ids, nil
}

// markCorrupt makes id undecodable, as a damaged row would be.
func (r *fakeProgramRepo) markCorrupt(id string) {
	r.mu.Lock()
	r.corrupt[id] = true
	r.mu.Unlock()
}

func (r *fakeProgramRepo) Clear(ctx context.Context) error {
	r.mu.Lock()
	r.programs = make(map[string]models.Program)
	r.mu.Unlock()
	return nil
}

func (r *fakeProgramRepo) lastRun(id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.programs[id].LastRunDate
}

type fakeStateRepo struct {
	mu      sync.Mutex
	state   models.ExecutionState
	saves   []models.ExecutionState
	saveErr error
}

func (r *fakeStateRepo) Save(ctx context.Context, s models.ExecutionState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves = append(r.saves, s)
	if r.saveErr != nil {
		return r.saveErr
	}
	r.state = s
	return nil
}

func (r *fakeStateRepo) Load(ctx context.Context) (models.ExecutionState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state, nil
}

func (r *fakeStateRepo) current() models.ExecutionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *fakeStateRepo) sawRunning(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.saves {
		if s.Running && s.CurrentProgramID == id {
			return true
		}
	}
	return false
}

// ---- relay ----

// panicDriver panics on the first write to pin, then behaves like the wrapped board.
type panicDriver struct {
	*relay.Board
	pin  int
	once sync.Once
}

func (d *panicDriver) Set(ctx context.Context, pin int, active bool) error {
	if pin == d.pin && active {
		fire := false
		d.once.Do(func() { fire = true })
		if fire {
			panic(fmt.Sprintf("driver exploded on pin %d", pin))
		}
	}
	return d.Board.Set(ctx, pin, active)
}

// ---- harness ----

var testNow = time.Date(2025, time.June, 15, 6, 0, 0, 0, time.Local)

type harness struct {
	settings *staticSettings
	board    *relay.Board
	clock    *clock.Fake
	events   *fakeRecorder
	zones    *ZoneController
	engine   *ProgramEngine
	programs *fakeProgramRepo
	state    *fakeStateRepo
}

func newHarness(t *testing.T, s models.Settings, driver relay.Driver, programs ...models.Program) *harness {
	t.Helper()
	h := &harness{
		settings: newStaticSettings(s),
		board:    relay.NewBoard(),
		clock:    clock.NewFake(testNow),
		events:   &fakeRecorder{},
		programs: newFakeProgramRepo(programs...),
		state:    &fakeStateRepo{},
	}
	if driver == nil {
		driver = h.board
	}
	h.zones = NewZoneController(h.settings, driver, h.clock, h.events, nil, nil)
	h.engine = NewProgramEngine(h.programs, h.state, h.zones, h.settings, h.clock, h.events, nil, nil, EngineTiming{
		StepTick:     time.Millisecond,
		PreemptGrace: 20 * time.Millisecond,
	})
	t.Cleanup(func() {
		_ = h.engine.Shutdown(context.Background())
	})
	return h
}

func activeIDs(z *ZoneController) []int {
	var ids []int
	for _, az := range z.ActiveZones() {
		ids = append(ids, az.ZoneID)
	}
	return ids
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

type fakeGuard struct{ running bool }

func (g fakeGuard) IsRunning() bool { return g.running }
