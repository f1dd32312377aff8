package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"irrigation_controller/internal/logger"
	"irrigation_controller/internal/models"
	"irrigation_controller/internal/repository"
)

// SettingsProvider hands out the current controller settings.
type SettingsProvider interface {
	Current() models.Settings
}

// SettingsService owns the cached, normalized controller settings.
type SettingsService struct {
	repo   repository.SettingsRepo
	events Recorder
	log    *logger.Logger

	mu      sync.RWMutex
	current models.Settings
}

func NewSettingsService(repo repository.SettingsRepo, events Recorder, log *logger.Logger) *SettingsService {
	if log == nil {
		log = logger.Nop()
	}
	return &SettingsService{
		repo:    repo,
		events:  events,
		log:     log,
		current: models.FactorySettings(),
	}
}

var _ SettingsProvider = (*SettingsService)(nil)

// Load reads the store into the cache. Missing or corrupted settings are replaced by factory
// defaults, which are written back. A store read failure leaves factory defaults in memory
// and is returned.
func (s *SettingsService) Load(ctx context.Context) error {
	loaded, err := s.repo.Load(ctx)
	switch {
	case err == nil:
		s.set(loaded.Normalize())
		return nil
	case errors.Is(err, repository.ErrNoSettings):
		s.events.Record(ctx, models.LevelInfo, "no settings stored, writing factory defaults")
	case errors.Is(err, repository.ErrCorruptSettings):
		s.events.Record(ctx, models.LevelWarning, "settings corrupted, restoring factory defaults", "err", err)
	default:
		s.set(models.FactorySettings())
		return fmt.Errorf("%w: load settings: %w", ErrConfig, err)
	}

	factory := models.FactorySettings()
	s.set(factory)
	if err := s.repo.Save(ctx, factory); err != nil {
		s.log.Errorw("settings_save_failed", "err", err)
	}
	return nil
}

// Current returns a copy of the cached settings.
func (s *SettingsService) Current() models.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSettings(s.current)
}

func (s *SettingsService) Get(ctx context.Context) models.Settings {
	return s.Current()
}

// Update validates, persists, then publishes new settings.
func (s *SettingsService) Update(ctx context.Context, in models.Settings) (models.Settings, error) {
	if err := validateSettings(in); err != nil {
		return models.Settings{}, err
	}
	next := in.Normalize()
	if err := s.repo.Save(ctx, next); err != nil {
		return models.Settings{}, err
	}
	s.set(next)
	s.events.Record(ctx, models.LevelInfo, "settings updated")
	return cloneSettings(next), nil
}

// FactoryReset restores factory settings.
func (s *SettingsService) FactoryReset(ctx context.Context) (models.Settings, error) {
	factory := models.FactorySettings()
	if err := s.repo.Save(ctx, factory); err != nil {
		return models.Settings{}, err
	}
	s.set(factory)
	s.events.Record(ctx, models.LevelInfo, "factory settings restored")
	return cloneSettings(factory), nil
}

func (s *SettingsService) set(v models.Settings) {
	s.mu.Lock()
	s.current = v
	s.mu.Unlock()
}

func validateSettings(in models.Settings) error {
	if in.MaxActiveZones < 1 {
		return fmt.Errorf("%w: max_active_zones must be at least 1", ErrValidation)
	}
	if in.ActivationDelay < 0 {
		return fmt.Errorf("%w: activation_delay must not be negative", ErrValidation)
	}
	if in.MaxZoneDuration < 1 {
		return fmt.Errorf("%w: max_zone_duration must be at least 1", ErrValidation)
	}

	ids := make(map[int]bool, len(in.Zones))
	pins := make(map[int]int, len(in.Zones))
	if in.SafetyRelayPin != nil {
		if *in.SafetyRelayPin < 0 {
			return fmt.Errorf("%w: safety_relay_pin must not be negative", ErrValidation)
		}
		pins[*in.SafetyRelayPin] = -1
	}
	for _, z := range in.Zones {
		if ids[z.ID] {
			return fmt.Errorf("%w: duplicate zone id %d", ErrValidation, z.ID)
		}
		ids[z.ID] = true
		if z.Pin == nil || *z.Pin < 0 {
			return fmt.Errorf("%w: zone %d has no valid pin", ErrValidation, z.ID)
		}
		if owner, taken := pins[*z.Pin]; taken {
			if owner == -1 {
				return fmt.Errorf("%w: zone %d uses the safety relay pin %d", ErrValidation, z.ID, *z.Pin)
			}
			return fmt.Errorf("%w: zones %d and %d share pin %d", ErrValidation, owner, z.ID, *z.Pin)
		}
		pins[*z.Pin] = z.ID
	}
	return nil
}

func cloneSettings(s models.Settings) models.Settings {
	out := s
	out.Zones = make([]models.ZoneConfig, len(s.Zones))
	for i, z := range s.Zones {
		if z.Pin != nil {
			pin := *z.Pin
			z.Pin = &pin
		}
		out.Zones[i] = z
	}
	if s.SafetyRelayPin != nil {
		pin := *s.SafetyRelayPin
		out.SafetyRelayPin = &pin
	}
	return out
}
