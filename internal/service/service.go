package service

import (
	"context"
	"time"

	"irrigation_controller/internal/clock"
	"irrigation_controller/internal/logger"
	"irrigation_controller/internal/metrics"
	"irrigation_controller/internal/models"
	"irrigation_controller/internal/relay"
	"irrigation_controller/internal/repository"
)

type Authorization interface {
	SignUp(ctx context.Context, username, password string) (int, error)
	GenerateToken(ctx context.Context, username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
}

// Zones exposes manual valve control and status.
type Zones interface {
	StartZone(ctx context.Context, zoneID, minutes int) error
	StopZone(ctx context.Context, zoneID int) error
	StopAllZones(ctx context.Context) error
	ZonesStatus() []models.ZoneStatus
	ActiveZoneCount() int
}

// Programs exposes program CRUD and the run/stop state machine.
type Programs interface {
	ListPrograms(ctx context.Context) ([]models.Program, error)
	GetProgram(ctx context.Context, id string) (models.Program, error)
	CreateProgram(ctx context.Context, p models.Program) (models.Program, error)
	UpdateProgram(ctx context.Context, id string, p models.Program) (models.Program, error)
	DeleteProgram(ctx context.Context, id string) error
	RunProgram(ctx context.Context, id string) error
	StopProgram(ctx context.Context) error
	State() models.ExecutionState
}

// Settings exposes the controller settings.
type Settings interface {
	Get(ctx context.Context) models.Settings
	Update(ctx context.Context, s models.Settings) (models.Settings, error)
	FactoryReset(ctx context.Context) (models.Settings, error)
}

// EventLog exposes the persisted event log with filtering access.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.Event, error)
	Clear(ctx context.Context) error
}

type Maintenance interface {
	ResetAllData(ctx context.Context) error
}

// Service aggregates the sub-services used by the HTTP layer plus the concrete core the host
// process drives directly.
type Service struct {
	Zones
	Programs
	Settings
	EventLog
	Maintenance
	Authorization

	Controller    *ZoneController
	Engine        *ProgramEngine
	Scheduler     *Scheduler
	SettingsStore *SettingsService
	Events        *EventLogService
}

// Deps are the process-level collaborators of the core.
type Deps struct {
	Driver        relay.Driver
	Clock         clock.Clock
	Metrics       *metrics.Metrics
	Log           *logger.Logger
	Timing        EngineTiming
	RetentionDays int
	SigningKey    string
	TokenTTL      time.Duration
}

// NewService wires the repository layer into concrete services.
func NewService(repos *repository.Repository, deps Deps) *Service {
	if deps.Clock == nil {
		deps.Clock = clock.System{}
	}
	events := NewEventLogService(repos.EventRepo, deps.Log)
	settings := NewSettingsService(repos.SettingsRepo, events, deps.Log)
	zones := NewZoneController(settings, deps.Driver, deps.Clock, events, deps.Metrics, deps.Log)
	engine := NewProgramEngine(repos.ProgramRepo, repos.StateRepo, zones, settings, deps.Clock, events, deps.Metrics, deps.Log, deps.Timing)

	return &Service{
		Zones:         zones,
		Programs:      engine,
		Settings:      settings,
		EventLog:      events,
		Maintenance:   NewMaintenanceService(engine, zones, settings, repos.ProgramRepo, events, deps.Log),
		Authorization: NewAuthService(repos.Auth, deps.SigningKey, deps.TokenTTL),

		Controller:    zones,
		Engine:        engine,
		Scheduler:     NewScheduler(engine, events, deps.RetentionDays, deps.Log),
		SettingsStore: settings,
		Events:        events,
	}
}

// Start brings the core into a safe state: settings loaded, unreadable programs removed, every
// output closed and the execution state reset to Idle.
func (s *Service) Start(ctx context.Context) error {
	if err := s.SettingsStore.Load(ctx); err != nil {
		s.Events.Record(ctx, models.LevelError, "settings unavailable, running on factory defaults", "err", err)
	}
	s.Engine.RecoverState(ctx)
	if err := s.Engine.RepairPrograms(ctx); err != nil {
		s.Events.Record(ctx, models.LevelError, "stored programs could not be checked", "err", err)
	}
	return s.Controller.Initialize(ctx)
}

// Shutdown stops any running program and closes every valve.
func (s *Service) Shutdown(ctx context.Context) error {
	err := s.Engine.Shutdown(ctx)
	if zerr := s.Controller.StopAllZones(context.WithoutCancel(ctx)); zerr != nil && err == nil {
		err = zerr
	}
	return err
}
