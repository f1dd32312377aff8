package service

import (
	"context"
	"errors"
	"fmt"

	"irrigation_controller/internal/logger"
	"irrigation_controller/internal/models"
	"irrigation_controller/internal/repository"
)

// MaintenanceService wipes user data back to a fresh install.
type MaintenanceService struct {
	engine   *ProgramEngine
	zones    *ZoneController
	settings *SettingsService
	programs repository.ProgramRepo
	events   Recorder
	log      *logger.Logger
}

func NewMaintenanceService(engine *ProgramEngine, zones *ZoneController, settings *SettingsService, programs repository.ProgramRepo, events Recorder, log *logger.Logger) *MaintenanceService {
	if log == nil {
		log = logger.Nop()
	}
	return &MaintenanceService{
		engine:   engine,
		zones:    zones,
		settings: settings,
		programs: programs,
		events:   events,
		log:      log,
	}
}

// ResetAllData stops everything, deletes all programs and restores factory settings.
func (s *MaintenanceService) ResetAllData(ctx context.Context) error {
	if err := s.engine.StopProgram(ctx); err != nil && !errors.Is(err, ErrNotRunning) {
		return err
	}
	if err := s.zones.StopAllZones(ctx); err != nil {
		s.log.Errorw("zones_stop_failed", "err", err)
	}
	s.engine.ResetProgramState(ctx)

	if err := s.programs.Clear(ctx); err != nil {
		return fmt.Errorf("clear programs: %w", err)
	}
	if _, err := s.settings.FactoryReset(ctx); err != nil {
		return fmt.Errorf("restore factory settings: %w", err)
	}
	s.events.Record(ctx, models.LevelWarning, "all data reset to factory state")
	return nil
}
