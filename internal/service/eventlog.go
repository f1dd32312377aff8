package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"irrigation_controller/internal/logger"
	"irrigation_controller/internal/models"
	"irrigation_controller/internal/repository"
)

// LogFilter narrows an event-log listing. Zero times are open bounds.
type LogFilter struct {
	From  time.Time
	To    time.Time
	Level string // "", INFO, WARNING, ERROR
}

// Recorder is the fire-and-forget event log used by the controller core.
type Recorder interface {
	Record(ctx context.Context, level, message string, kv ...any)
}

type EventLogService struct {
	eventRepo repository.EventRepo
	log       *logger.Logger
	now       func() time.Time
}

func NewEventLogService(eventRepo repository.EventRepo, log *logger.Logger) *EventLogService {
	if log == nil {
		log = logger.Nop()
	}
	return &EventLogService{eventRepo: eventRepo, log: log, now: time.Now}
}

var _ Recorder = (*EventLogService)(nil)

var errInvalidTimeRange = errors.New("invalid time range: from must be <= to")

// Record mirrors the entry to the process log and appends it to the event store.
// Store failures are logged and swallowed. kv are key/value pairs kept as metadata.
func (s *EventLogService) Record(ctx context.Context, level, message string, kv ...any) {
	level = normalizeLevel(level)
	switch level {
	case models.LevelError:
		s.log.Errorw(message, kv...)
	case models.LevelWarning:
		s.log.Warnw(message, kv...)
	default:
		s.log.Infow(message, kv...)
	}

	ev := models.Event{
		OccurredAt: s.now(),
		Level:      level,
		Message:    message,
	}
	if meta := kvToMap(kv); len(meta) > 0 {
		ev.Metadata = meta
	}
	// entries written during shutdown or cleanup must still land
	if err := s.eventRepo.Append(context.WithoutCancel(ctx), ev); err != nil {
		s.log.Errorw("event_append_failed", "err", err, "message", message)
	}
}

// List returns events matching f, oldest first.
func (s *EventLogService) List(ctx context.Context, f LogFilter) ([]models.Event, error) {
	from, to := f.From, f.To
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return nil, errInvalidTimeRange
	}
	level := strings.TrimSpace(f.Level)
	if level != "" {
		level = normalizeLevel(level)
	}
	return s.eventRepo.List(ctx, from, to, level)
}

func (s *EventLogService) Clear(ctx context.Context) error {
	return s.eventRepo.Clear(ctx)
}

// Prune drops entries older than retention.
func (s *EventLogService) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	return s.eventRepo.DeleteBefore(ctx, s.now().Add(-retention))
}

func normalizeLevel(level string) string {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case models.LevelError:
		return models.LevelError
	case models.LevelWarning, "WARN":
		return models.LevelWarning
	default:
		return models.LevelInfo
	}
}

func kvToMap(kv []any) map[string]any {
	if len(kv) < 2 {
		return nil
	}
	out := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		if err, isErr := kv[i+1].(error); isErr {
			out[key] = err.Error()
			continue
		}
		out[key] = kv[i+1]
	}
	return out
}
