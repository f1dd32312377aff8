package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"irrigation_controller/internal/clock"
	"irrigation_controller/internal/logger"
	"irrigation_controller/internal/metrics"
	"irrigation_controller/internal/models"
	"irrigation_controller/internal/repository"

	"github.com/google/uuid"
)

// Run outcomes reported to metrics and the event log.
const (
	outcomeCompleted = "completed"
	outcomeStopped   = "stopped"
	outcomeFailed    = "failed"
)

// EngineTiming tunes how a running program waits.
type EngineTiming struct {
	// StepTick is the wait granularity; a stop request is observed within one tick.
	StepTick time.Duration
	// PreemptGrace is the pause after an automatic program stops manual zones.
	PreemptGrace time.Duration
}

// programRun is one claim of the system by a program. The engine's current run pointer is the
// ownership token: a run that is no longer current must not touch zones or execution state.
type programRun struct {
	program models.Program
	manual  bool
	stop    chan struct{}
	once    sync.Once
	// done is closed when the run's cleanup, including last_run_date, is complete.
	done chan struct{}
}

func (r *programRun) signalStop() {
	r.once.Do(func() { close(r.stop) })
}

func (r *programRun) stopped() bool {
	select {
	case <-r.stop:
		return true
	default:
		return false
	}
}

func (r *programRun) trigger() string {
	if r.manual {
		return metrics.TriggerManual
	}
	return metrics.TriggerAutomatic
}

// ProgramEngine owns program CRUD and the Idle -> Running -> Idle state machine.
type ProgramEngine struct {
	programs repository.ProgramRepo
	state    repository.StateRepo
	zones    *ZoneController
	settings SettingsProvider
	clock    clock.Clock
	events   Recorder
	metrics  *metrics.Metrics
	log      *logger.Logger
	timing   EngineTiming

	// mu serializes ownership changes and the zone operations a run performs.
	mu      sync.Mutex
	run     *programRun
	running atomic.Bool

	crudMu sync.Mutex
	wg     sync.WaitGroup
}

func NewProgramEngine(
	programs repository.ProgramRepo,
	state repository.StateRepo,
	zones *ZoneController,
	settings SettingsProvider,
	clk clock.Clock,
	events Recorder,
	m *metrics.Metrics,
	log *logger.Logger,
	timing EngineTiming,
) *ProgramEngine {
	if log == nil {
		log = logger.Nop()
	}
	if timing.StepTick <= 0 {
		timing.StepTick = time.Second
	}
	e := &ProgramEngine{
		programs: programs,
		state:    state,
		zones:    zones,
		settings: settings,
		clock:    clk,
		events:   events,
		metrics:  m,
		log:      log,
		timing:   timing,
	}
	zones.SetGuard(e)
	return e
}

var _ ProgramGuard = (*ProgramEngine)(nil)

// IsRunning reports whether a program owns the system.
func (e *ProgramEngine) IsRunning() bool {
	return e.running.Load()
}

// State returns the in-memory execution state.
func (e *ProgramEngine) State() models.ExecutionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.run == nil {
		return models.ExecutionState{}
	}
	return models.ExecutionState{Running: true, CurrentProgramID: e.run.program.ID}
}

// ---- CRUD ----

func (e *ProgramEngine) ListPrograms(ctx context.Context) ([]models.Program, error) {
	return e.listPrograms(ctx)
}

func (e *ProgramEngine) GetProgram(ctx context.Context, id string) (models.Program, error) {
	p, err := e.programs.Get(ctx, id)
	if errors.Is(err, repository.ErrCorruptProgram) {
		if rerr := e.RepairPrograms(ctx); rerr != nil {
			return models.Program{}, rerr
		}
		err = repository.ErrProgramNotFound
	}
	if errors.Is(err, repository.ErrProgramNotFound) {
		return models.Program{}, fmt.Errorf("%w: program %q", ErrNotFound, id)
	}
	return p, err
}

// listPrograms reads every stored program. Rows that cannot be decoded are removed first.
func (e *ProgramEngine) listPrograms(ctx context.Context) ([]models.Program, error) {
	programs, err := e.programs.List(ctx)
	if !errors.Is(err, repository.ErrCorruptProgram) {
		return programs, err
	}
	if err := e.RepairPrograms(ctx); err != nil {
		return nil, err
	}
	return e.programs.List(ctx)
}

// RepairPrograms deletes stored programs that cannot be decoded, recording a warning for each.
func (e *ProgramEngine) RepairPrograms(ctx context.Context) error {
	removed, err := e.programs.DeleteCorrupt(ctx)
	if err != nil {
		return fmt.Errorf("remove corrupt programs: %w", err)
	}
	for _, id := range removed {
		e.events.Record(ctx, models.LevelWarning, fmt.Sprintf("corrupted program %q removed", id), "program_id", id)
	}
	return nil
}

// CreateProgram validates p, rejects month overlaps with stored programs and stores it under a
// fresh id when none is given.
func (e *ProgramEngine) CreateProgram(ctx context.Context, p models.Program) (models.Program, error) {
	p = normalizeProgram(p)
	if err := validateProgram(p); err != nil {
		return models.Program{}, err
	}

	e.crudMu.Lock()
	defer e.crudMu.Unlock()

	existing, err := e.listPrograms(ctx)
	if err != nil {
		return models.Program{}, err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	} else {
		for _, other := range existing {
			if other.ID == p.ID {
				return models.Program{}, fmt.Errorf("%w: program %q already exists", ErrConflict, p.ID)
			}
		}
	}
	if err := checkMonthConflict(p, existing); err != nil {
		return models.Program{}, err
	}
	if err := e.programs.Save(ctx, p); err != nil {
		return models.Program{}, err
	}
	e.events.Record(ctx, models.LevelInfo, fmt.Sprintf("program %q created", p.Name), "program_id", p.ID)
	return p, nil
}

// UpdateProgram replaces program id. A running program is stopped first.
func (e *ProgramEngine) UpdateProgram(ctx context.Context, id string, p models.Program) (models.Program, error) {
	p.ID = id
	p = normalizeProgram(p)
	if err := validateProgram(p); err != nil {
		return models.Program{}, err
	}

	e.crudMu.Lock()
	defer e.crudMu.Unlock()

	existing, err := e.listPrograms(ctx)
	if err != nil {
		return models.Program{}, err
	}
	var current *models.Program
	for i := range existing {
		if existing[i].ID == id {
			current = &existing[i]
			break
		}
	}
	if current == nil {
		return models.Program{}, fmt.Errorf("%w: program %q", ErrNotFound, id)
	}
	if err := checkMonthConflict(p, existing); err != nil {
		return models.Program{}, err
	}
	keepLastRun := p.LastRunDate == ""
	if keepLastRun {
		p.LastRunDate = current.LastRunDate
	}

	if e.stopIfCurrent(ctx, id) && keepLastRun {
		// the stopped run has just written today's date
		if fresh, err := e.programs.Get(ctx, id); err == nil {
			p.LastRunDate = fresh.LastRunDate
		}
	}
	if err := e.programs.Save(ctx, p); err != nil {
		return models.Program{}, err
	}
	e.events.Record(ctx, models.LevelInfo, fmt.Sprintf("program %q updated", p.Name), "program_id", p.ID)
	return p, nil
}

// DeleteProgram removes program id, stopping it first if it is running.
func (e *ProgramEngine) DeleteProgram(ctx context.Context, id string) error {
	e.crudMu.Lock()
	defer e.crudMu.Unlock()

	if _, err := e.GetProgram(ctx, id); err != nil {
		return err
	}
	e.stopIfCurrent(ctx, id)
	if err := e.programs.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrProgramNotFound) {
			return fmt.Errorf("%w: program %q", ErrNotFound, id)
		}
		return err
	}
	e.events.Record(ctx, models.LevelInfo, "program deleted", "program_id", id)
	return nil
}

// stopIfCurrent stops program id if it owns the system and waits for its cleanup, bounded by
// ctx. It reports whether a run was stopped.
func (e *ProgramEngine) stopIfCurrent(ctx context.Context, id string) bool {
	e.mu.Lock()
	run := e.run
	if run == nil || run.program.ID != id {
		e.mu.Unlock()
		return false
	}
	e.stopLocked(ctx, run)
	e.mu.Unlock()

	select {
	case <-run.done:
	case <-ctx.Done():
		e.log.Warnw("program_cleanup_wait_aborted", "program_id", id, "err", ctx.Err())
	}
	return true
}

// ---- execution ----

// ExecuteProgram runs p to completion on the calling goroutine. It fails with ErrConcurrency,
// without side effects, when another program owns the system.
func (e *ProgramEngine) ExecuteProgram(ctx context.Context, p models.Program, manual bool) error {
	run, err := e.claim(ctx, p, manual)
	if err != nil {
		return err
	}
	e.wg.Add(1)
	defer e.wg.Done()
	return e.execute(ctx, run)
}

// RunProgram claims the system for program id and executes it in the background.
func (e *ProgramEngine) RunProgram(ctx context.Context, id string) error {
	p, err := e.GetProgram(ctx, id)
	if err != nil {
		return err
	}
	return e.launch(ctx, p, true)
}

func (e *ProgramEngine) launch(ctx context.Context, p models.Program, manual bool) error {
	run, err := e.claim(ctx, p, manual)
	if err != nil {
		return err
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		// the run outlives the request that started it
		if err := e.execute(context.WithoutCancel(ctx), run); err != nil {
			e.log.Errorw("program_run_failed", "program_id", p.ID, "err", err)
		}
	}()
	return nil
}

// claim makes run the owner of the system. Ownership is taken before any zone is touched so
// manual starts are rejected from this point on.
func (e *ProgramEngine) claim(ctx context.Context, p models.Program, manual bool) (*programRun, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.run != nil {
		return nil, fmt.Errorf("%w: program %q is running", ErrConcurrency, e.run.program.ID)
	}
	run := &programRun{program: p, manual: manual, stop: make(chan struct{}), done: make(chan struct{})}
	e.run = run
	e.running.Store(true)
	e.metrics.SetProgramRunning(true)
	return run, nil
}

func (e *ProgramEngine) execute(ctx context.Context, run *programRun) (err error) {
	p := run.program
	outcome := outcomeCompleted
	defer func() {
		if r := recover(); r != nil {
			outcome = outcomeFailed
			err = fmt.Errorf("program %q aborted: %v", p.ID, r)
		}
		if outcome == outcomeCompleted && (run.stopped() || ctx.Err() != nil) {
			outcome = outcomeStopped
		}
		e.finish(ctx, run, outcome)
	}()

	if !run.manual && e.zones.ActiveZoneCount() > 0 {
		e.events.Record(ctx, models.LevelInfo, "automatic program preempts manual zones", "program_id", p.ID)
		err := e.owned(run, func() error { return e.zones.StopAllZones(ctx) })
		if errors.Is(err, errRunReleased) {
			return nil
		}
		if err != nil {
			e.log.Errorw("preempt_stop_failed", "program_id", p.ID, "err", err)
		}
		if !e.sleep(ctx, run, e.timing.PreemptGrace) {
			return nil
		}
	}
	err = e.owned(run, func() error {
		if err := e.zones.StopAllZones(ctx); err != nil {
			e.log.Errorw("zones_stop_failed", "program_id", p.ID, "err", err)
		}
		e.persist(ctx, models.ExecutionState{Running: true, CurrentProgramID: p.ID})
		return nil
	})
	if err != nil {
		return nil
	}
	e.events.Record(ctx, models.LevelInfo, fmt.Sprintf("program %q started", p.Name), "program_id", p.ID, "trigger", run.trigger())

	for i, step := range p.Steps {
		if run.stopped() || ctx.Err() != nil {
			break
		}
		if !e.runStep(ctx, run, i, step) {
			break
		}
		if i < len(p.Steps)-1 {
			delay := e.settings.Current().ActivationDelay
			if delay > 0 && !e.wait(ctx, run, delay*60) {
				break
			}
		}
	}
	return nil
}

// runStep opens one zone for its duration. It returns false once the run must end.
func (e *ProgramEngine) runStep(ctx context.Context, run *programRun, idx int, step models.Step) bool {
	p := run.program
	if _, ok := e.settings.Current().Zone(step.ZoneID); !ok || step.DurationMinutes <= 0 {
		e.events.Record(ctx, models.LevelWarning, fmt.Sprintf("program %q step %d skipped: zone %d unavailable", p.Name, idx+1, step.ZoneID),
			"program_id", p.ID, "zone_id", step.ZoneID)
		return true
	}

	err := e.owned(run, func() error {
		return e.zones.startZone(ctx, step.ZoneID, step.DurationMinutes, false)
	})
	if errors.Is(err, errRunReleased) {
		return false
	}
	if err != nil {
		e.events.Record(ctx, models.LevelError, fmt.Sprintf("program %q step %d failed", p.Name, idx+1),
			"program_id", p.ID, "zone_id", step.ZoneID, "err", err)
		return true
	}

	completed := e.wait(ctx, run, step.DurationMinutes*60)
	err = e.owned(run, func() error {
		return e.zones.StopZone(context.WithoutCancel(ctx), step.ZoneID)
	})
	if err != nil && !errors.Is(err, errRunReleased) {
		e.log.Errorw("step_zone_stop_failed", "program_id", p.ID, "zone_id", step.ZoneID, "err", err)
	}
	return completed
}

var errRunReleased = errors.New("run no longer owns the system")

// owned runs fn only while run is still the current owner.
func (e *ProgramEngine) owned(run *programRun, fn func() error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.run != run || run.stopped() {
		return errRunReleased
	}
	return fn()
}

// wait blocks for the given number of seconds in step ticks. It reports false when the run
// was stopped or ctx ended first.
func (e *ProgramEngine) wait(ctx context.Context, run *programRun, seconds int) bool {
	ticker := time.NewTicker(e.timing.StepTick)
	defer ticker.Stop()
	for i := 0; i < seconds; i++ {
		select {
		case <-run.stop:
			return false
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
	return !run.stopped()
}

func (e *ProgramEngine) sleep(ctx context.Context, run *programRun, d time.Duration) bool {
	if d <= 0 {
		return !run.stopped()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-run.stop:
		return false
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// finish is the cleanup every run goes through. If run still owns the system it closes all
// zones and returns to Idle; a run released by StopProgram was already cleaned up there.
func (e *ProgramEngine) finish(ctx context.Context, run *programRun, outcome string) {
	defer close(run.done)
	ctx = context.WithoutCancel(ctx)
	p := run.program

	e.mu.Lock()
	if e.run == run {
		e.safeStopAll(ctx, p.ID)
		e.release()
		e.persist(ctx, models.ExecutionState{})
	}
	e.mu.Unlock()

	today := e.clock.Now().Format(models.LastRunDateLayout)
	if err := e.programs.SetLastRunDate(ctx, p.ID, today); err != nil {
		if errors.Is(err, repository.ErrProgramNotFound) {
			e.log.Infow("last_run_date_skipped", "program_id", p.ID, "reason", "program deleted")
		} else {
			e.log.Errorw("last_run_date_failed", "program_id", p.ID, "err", err)
		}
	}

	e.metrics.ProgramFinished(run.trigger(), outcome)
	level := models.LevelInfo
	if outcome == outcomeFailed {
		level = models.LevelError
	}
	e.events.Record(ctx, level, fmt.Sprintf("program %q %s", p.Name, outcome), "program_id", p.ID, "outcome", outcome)
}

func (e *ProgramEngine) safeStopAll(ctx context.Context, programID string) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Errorw("zones_stop_panic", "program_id", programID, "panic", r)
		}
	}()
	if err := e.zones.StopAllZones(ctx); err != nil {
		e.log.Errorw("zones_stop_failed", "program_id", programID, "err", err)
	}
}

// release clears ownership. Callers hold mu.
func (e *ProgramEngine) release() {
	e.run = nil
	e.running.Store(false)
	e.metrics.SetProgramRunning(false)
}

func (e *ProgramEngine) persist(ctx context.Context, st models.ExecutionState) {
	if err := e.state.Save(ctx, st); err != nil {
		e.log.Errorw("execution_state_save_failed", "running", st.Running, "err", err)
	}
}

// StopProgram signals the running program, returns to Idle and closes every zone. The run's
// loop notices the signal within one step tick.
func (e *ProgramEngine) StopProgram(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	run := e.run
	if run == nil {
		return ErrNotRunning
	}
	e.stopLocked(ctx, run)
	return nil
}

// stopLocked releases run and closes every zone. Callers hold mu and run is current.
func (e *ProgramEngine) stopLocked(ctx context.Context, run *programRun) {
	run.signalStop()
	e.release()
	e.persist(ctx, models.ExecutionState{})
	e.safeStopAll(ctx, run.program.ID)
	e.events.Record(ctx, models.LevelInfo, fmt.Sprintf("program %q stop requested", run.program.Name), "program_id", run.program.ID)
}

// ResetProgramState forces Idle and persists it. An interrupted program is not resumed.
func (e *ProgramEngine) ResetProgramState(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.run != nil {
		e.run.signalStop()
	}
	e.release()
	e.persist(ctx, models.ExecutionState{})

	e.events.Record(ctx, models.LevelInfo, "program state reset")
}

// RecoverState loads the persisted execution state, logs an interrupted run and resets to Idle.
func (e *ProgramEngine) RecoverState(ctx context.Context) {
	st, err := e.state.Load(ctx)
	if err != nil {
		e.log.Errorw("execution_state_load_failed", "err", err)
	} else if st.Running {
		e.events.Record(ctx, models.LevelWarning, "program was running at shutdown and will not be resumed", "program_id", st.CurrentProgramID)
	}
	e.ResetProgramState(ctx)
}

// ScanDuePrograms starts the first due program in the background when automatic scheduling is
// enabled. Due programs that find the system busy are skipped.
func (e *ProgramEngine) ScanDuePrograms(ctx context.Context) error {
	if !e.settings.Current().AutomaticProgramsEnabled {
		return nil
	}
	programs, err := e.listPrograms(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrCorruptProgram) {
			e.events.Record(ctx, models.LevelWarning, "stored programs unreadable, scan skipped", "err", err)
			return nil
		}
		return fmt.Errorf("list programs: %w", err)
	}

	now := e.clock.Now()
	for _, p := range programs {
		if !IsDue(p, now) {
			continue
		}
		if err := e.launch(ctx, p, false); err != nil {
			e.events.Record(ctx, models.LevelInfo, fmt.Sprintf("program %q due but skipped", p.Name), "program_id", p.ID, "reason", err.Error())
		}
	}
	return nil
}

// Wait blocks until every launched run has finished.
func (e *ProgramEngine) Wait() {
	e.wg.Wait()
}

// Shutdown stops the running program and waits for its cleanup, bounded by ctx.
func (e *ProgramEngine) Shutdown(ctx context.Context) error {
	if err := e.StopProgram(ctx); err != nil && !errors.Is(err, ErrNotRunning) {
		return err
	}
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ---- validation ----

func normalizeProgram(p models.Program) models.Program {
	p.Name = strings.TrimSpace(p.Name)
	p.ActivationTime = strings.TrimSpace(p.ActivationTime)
	if p.Recurrence == "" {
		p.Recurrence = models.RecurrenceDaily
	}
	seen := make(map[int]bool, len(p.Months))
	months := make([]int, 0, len(p.Months))
	for _, m := range p.Months {
		if !seen[m] {
			seen[m] = true
			months = append(months, m)
		}
	}
	sort.Ints(months)
	p.Months = months
	if p.Recurrence != models.RecurrenceCustom {
		p.IntervalDays = 0
	}
	return p
}

func validateProgram(p models.Program) error {
	if p.Name == "" {
		return fmt.Errorf("%w: program name is required", ErrValidation)
	}
	if len(p.Months) == 0 {
		return fmt.Errorf("%w: at least one month is required", ErrValidation)
	}
	for _, m := range p.Months {
		if m < 1 || m > 12 {
			return fmt.Errorf("%w: month %d out of range", ErrValidation, m)
		}
	}
	if _, err := time.Parse(models.ActivationTimeLayout, p.ActivationTime); err != nil || len(p.ActivationTime) != 5 {
		return fmt.Errorf("%w: activation_time must be HH:MM", ErrValidation)
	}
	switch p.Recurrence {
	case models.RecurrenceDaily, models.RecurrenceEveryOther:
	case models.RecurrenceCustom:
		if p.IntervalDays < 1 {
			return fmt.Errorf("%w: custom recurrence needs interval_days >= 1", ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unknown recurrence %q", ErrValidation, p.Recurrence)
	}
	if len(p.Steps) == 0 {
		return fmt.Errorf("%w: at least one step is required", ErrValidation)
	}
	for i, s := range p.Steps {
		if s.DurationMinutes <= 0 {
			return fmt.Errorf("%w: step %d duration must be positive", ErrValidation, i+1)
		}
	}
	if p.LastRunDate != "" {
		if _, err := time.Parse(models.LastRunDateLayout, p.LastRunDate); err != nil {
			return fmt.Errorf("%w: last_run_date must be YYYY-MM-DD", ErrValidation)
		}
	}
	return nil
}

// checkMonthConflict rejects p when it shares a month with any other stored program.
func checkMonthConflict(p models.Program, others []models.Program) error {
	for _, other := range others {
		if other.ID == p.ID {
			continue
		}
		var shared []string
		for _, m := range p.Months {
			if other.HasMonth(m) {
				shared = append(shared, time.Month(m).String())
			}
		}
		if len(shared) > 0 {
			return fmt.Errorf("%w: months %s already used by program %q", ErrConflict, strings.Join(shared, ", "), other.Name)
		}
	}
	return nil
}
