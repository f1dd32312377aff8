package service

import (
	"context"
	"time"

	"irrigation_controller/internal/logger"
)

const pruneEvery = time.Hour

// DueScanner is the part of the program engine the scheduler drives.
type DueScanner interface {
	ScanDuePrograms(ctx context.Context) error
}

// EventPruner drops expired event-log entries.
type EventPruner interface {
	Prune(ctx context.Context, retention time.Duration) (int64, error)
}

// Scheduler is the host loop: it scans for due programs on every tick and prunes the event log.
type Scheduler struct {
	scanner   DueScanner
	pruner    EventPruner
	retention time.Duration
	log       *logger.Logger

	lastPrune time.Time
}

// NewScheduler returns a scheduler keeping retentionDays of events.
func NewScheduler(scanner DueScanner, pruner EventPruner, retentionDays int, log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.Nop()
	}
	return &Scheduler{
		scanner:   scanner,
		pruner:    pruner,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		log:       log,
	}
}

// Run ticks at the given interval until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context, tick time.Duration) {
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			s.tick(ctx, now)
		}
	}
}

// tick never lets a failure escape: errors and panics are logged and the loop carries on.
func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorw("scheduler_tick_panic", "panic", r)
		}
	}()

	if err := s.scanner.ScanDuePrograms(ctx); err != nil {
		s.log.Errorw("due_scan_failed", "err", err)
	}

	if s.pruner == nil || s.retention <= 0 || now.Sub(s.lastPrune) < pruneEvery {
		return
	}
	s.lastPrune = now
	n, err := s.pruner.Prune(ctx, s.retention)
	if err != nil {
		s.log.Errorw("event_prune_failed", "err", err)
		return
	}
	if n > 0 {
		s.log.Infow("events_pruned", "count", n)
	}
}
