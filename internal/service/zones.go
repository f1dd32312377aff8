package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"irrigation_controller/internal/clock"
	"irrigation_controller/internal/logger"
	"irrigation_controller/internal/metrics"
	"irrigation_controller/internal/models"
	"irrigation_controller/internal/relay"
)

// ProgramGuard reports whether a program currently owns the zones.
type ProgramGuard interface {
	IsRunning() bool
}

type activeZone struct {
	models.ActiveZone
	timer clock.Timer
}

// ZoneController owns the active-zone set, the safety relay and the per-zone auto-off timers.
// Every mutation happens under mu.
type ZoneController struct {
	settings SettingsProvider
	driver   relay.Driver
	clock    clock.Clock
	events   Recorder
	metrics  *metrics.Metrics
	log      *logger.Logger

	mu           sync.Mutex
	active       map[int]*activeZone
	guard        ProgramGuard
	relayEngaged bool
	relayPin     int
}

func NewZoneController(settings SettingsProvider, driver relay.Driver, clk clock.Clock, events Recorder, m *metrics.Metrics, log *logger.Logger) *ZoneController {
	if log == nil {
		log = logger.Nop()
	}
	return &ZoneController{
		settings: settings,
		driver:   driver,
		clock:    clk,
		events:   events,
		metrics:  m,
		log:      log,
		active:   make(map[int]*activeZone),
	}
}

// SetGuard installs the program-ownership check consulted by manual starts.
func (z *ZoneController) SetGuard(g ProgramGuard) {
	z.mu.Lock()
	z.guard = g
	z.mu.Unlock()
}

// StartZone opens a zone for a manual run. Starting an active zone re-arms its timer with the
// new duration without counting against the cap.
func (z *ZoneController) StartZone(ctx context.Context, zoneID, minutes int) error {
	limit := z.settings.Current().MaxZoneDuration
	if minutes <= 0 || minutes > limit {
		return fmt.Errorf("%w: duration must be between 1 and %d minutes", ErrValidation, limit)
	}
	return z.startZone(ctx, zoneID, minutes, true)
}

func (z *ZoneController) startZone(ctx context.Context, zoneID, minutes int, manual bool) error {
	z.mu.Lock()
	defer z.mu.Unlock()

	if manual && z.guard != nil && z.guard.IsRunning() {
		return fmt.Errorf("%w: a program is running", ErrConcurrency)
	}

	settings := z.settings.Current()
	cfg, ok := settings.Zone(zoneID)
	if !ok {
		return fmt.Errorf("%w: zone %d", ErrNotFound, zoneID)
	}
	existing := z.active[zoneID]
	if existing == nil && len(z.active) >= settings.MaxActiveZones {
		return fmt.Errorf("%w: %d of %d zones already active", ErrConcurrency, len(z.active), settings.MaxActiveZones)
	}

	engagedNow, err := z.engageRelayLocked(ctx, settings.SafetyRelayPin)
	if err != nil {
		return fmt.Errorf("%w: engage safety relay: %w", ErrHardware, err)
	}

	pin := *cfg.Pin
	if err := z.driver.Set(ctx, pin, true); err != nil {
		z.hardwareFault(ctx, "valve open failed", "zone_id", zoneID, "pin", pin, "err", err)
		if engagedNow && len(z.active) == 0 {
			if rerr := z.releaseRelayLocked(ctx); rerr != nil {
				err = errors.Join(err, rerr)
			}
		}
		return fmt.Errorf("%w: open zone %d: %w", ErrHardware, zoneID, err)
	}

	if existing != nil {
		existing.timer.Stop()
	}
	az := &activeZone{ActiveZone: models.ActiveZone{
		ZoneID:          zoneID,
		Pin:             pin,
		StartTime:       z.clock.Now(),
		DurationMinutes: minutes,
	}}
	az.timer = z.clock.AfterFunc(time.Duration(minutes)*time.Minute, func() { z.expire(az) })
	z.active[zoneID] = az

	trigger := metrics.TriggerManual
	if !manual {
		trigger = metrics.TriggerProgram
	}
	z.metrics.ZoneStarted(trigger)
	z.metrics.SetActiveZones(len(z.active))
	if existing != nil {
		z.events.Record(ctx, models.LevelInfo, fmt.Sprintf("zone %d restarted for %d minutes", zoneID, minutes), "zone_id", zoneID, "trigger", trigger)
	} else {
		z.events.Record(ctx, models.LevelInfo, fmt.Sprintf("zone %d started for %d minutes", zoneID, minutes), "zone_id", zoneID, "trigger", trigger)
	}
	return nil
}

// expire is the auto-off callback. It only acts if az is still the zone's current entry, so a
// timer racing a stop or a re-arm has no effect.
func (z *ZoneController) expire(az *activeZone) {
	z.mu.Lock()
	defer z.mu.Unlock()
	if z.active[az.ZoneID] != az {
		return
	}
	ctx := context.Background()
	if err := z.stopLocked(ctx, az.ZoneID); err != nil {
		z.log.Errorw("zone_auto_off_failed", "zone_id", az.ZoneID, "err", err)
		return
	}
	z.events.Record(ctx, models.LevelInfo, fmt.Sprintf("zone %d switched off by timer", az.ZoneID), "zone_id", az.ZoneID)
}

// StopZone closes a zone. Stopping a configured zone that is not active still drives its valve
// closed.
func (z *ZoneController) StopZone(ctx context.Context, zoneID int) error {
	z.mu.Lock()
	defer z.mu.Unlock()
	if err := z.stopLocked(ctx, zoneID); err != nil {
		return err
	}
	z.events.Record(ctx, models.LevelInfo, fmt.Sprintf("zone %d stopped", zoneID), "zone_id", zoneID)
	return nil
}

func (z *ZoneController) stopLocked(ctx context.Context, zoneID int) error {
	az := z.active[zoneID]
	var pin int
	if az != nil {
		pin = az.Pin
	} else {
		cfg, ok := z.settings.Current().Zone(zoneID)
		if !ok {
			return fmt.Errorf("%w: zone %d", ErrNotFound, zoneID)
		}
		pin = *cfg.Pin
	}

	if err := z.driver.Set(ctx, pin, false); err != nil {
		z.hardwareFault(ctx, "valve close failed", "zone_id", zoneID, "pin", pin, "err", err)
		return fmt.Errorf("%w: close zone %d: %w", ErrHardware, zoneID, err)
	}
	if az != nil {
		az.timer.Stop()
		delete(z.active, zoneID)
		z.metrics.SetActiveZones(len(z.active))
	}
	if len(z.active) == 0 {
		if err := z.releaseRelayLocked(ctx); err != nil {
			return fmt.Errorf("%w: release safety relay: %w", ErrHardware, err)
		}
	}
	return nil
}

// StopAllZones closes every active zone. Zones whose valve could not be closed stay active and
// are reported in the joined error.
func (z *ZoneController) StopAllZones(ctx context.Context) error {
	z.mu.Lock()
	defer z.mu.Unlock()

	ids := make([]int, 0, len(z.active))
	for id := range z.active {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var errs []error
	for _, id := range ids {
		if err := z.stopLocked(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	if len(z.active) == 0 {
		if err := z.releaseRelayLocked(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%w: release safety relay: %w", ErrHardware, err))
		}
	}
	if len(ids) > 0 {
		z.events.Record(ctx, models.LevelInfo, "all zones stopped", "count", len(ids))
	}
	return errors.Join(errs...)
}

// engageRelayLocked drives the configured safety relay on before a valve opens. The relay may
// have been configured, or moved to another pin, while zones were already running; a moved
// relay is switched on at the new pin before the old one is released. It reports whether it
// switched a pin on.
func (z *ZoneController) engageRelayLocked(ctx context.Context, pin *int) (bool, error) {
	if pin == nil || (z.relayEngaged && z.relayPin == *pin) {
		return false, nil
	}
	if err := z.driver.Set(ctx, *pin, true); err != nil {
		z.hardwareFault(ctx, "safety relay engage failed", "pin", *pin, "err", err)
		return false, err
	}
	if z.relayEngaged {
		old := z.relayPin
		if err := z.driver.Set(ctx, old, false); err != nil {
			z.hardwareFault(ctx, "safety relay release failed", "pin", old, "err", err)
		}
		z.log.Infow("safety_relay_moved", "from_pin", old, "to_pin", *pin)
	}
	z.relayEngaged, z.relayPin = true, *pin
	return true, nil
}

func (z *ZoneController) releaseRelayLocked(ctx context.Context) error {
	if !z.relayEngaged {
		return nil
	}
	if err := z.driver.Set(ctx, z.relayPin, false); err != nil {
		z.hardwareFault(ctx, "safety relay release failed", "pin", z.relayPin, "err", err)
		return err
	}
	z.relayEngaged = false
	return nil
}

// Initialize drives every configured valve and the safety relay closed and forgets any
// in-memory activations. Used on startup, when hardware may still hold its last level.
func (z *ZoneController) Initialize(ctx context.Context) error {
	z.mu.Lock()
	defer z.mu.Unlock()

	for id, az := range z.active {
		az.timer.Stop()
		delete(z.active, id)
	}
	z.metrics.SetActiveZones(0)

	settings := z.settings.Current()
	var errs []error
	for _, cfg := range settings.Zones {
		if err := z.driver.Set(ctx, *cfg.Pin, false); err != nil {
			z.hardwareFault(ctx, "valve close failed during startup", "zone_id", cfg.ID, "pin", *cfg.Pin, "err", err)
			errs = append(errs, fmt.Errorf("%w: close zone %d: %w", ErrHardware, cfg.ID, err))
		}
	}
	if settings.SafetyRelayPin != nil {
		pin := *settings.SafetyRelayPin
		if err := z.driver.Set(ctx, pin, false); err != nil {
			z.hardwareFault(ctx, "safety relay release failed during startup", "pin", pin, "err", err)
			errs = append(errs, fmt.Errorf("%w: release safety relay: %w", ErrHardware, err))
		}
	}
	z.relayEngaged = false
	z.events.Record(ctx, models.LevelInfo, "zone outputs initialized", "zones", len(settings.Zones))
	return errors.Join(errs...)
}

// ZonesStatus lists configured zones with their remaining run time, computed from wall-clock
// elapsed time.
func (z *ZoneController) ZonesStatus() []models.ZoneStatus {
	z.mu.Lock()
	defer z.mu.Unlock()

	now := z.clock.Now()
	zones := z.settings.Current().Zones
	out := make([]models.ZoneStatus, 0, len(zones))
	for _, cfg := range zones {
		st := models.ZoneStatus{ID: cfg.ID, Name: cfg.Name, Visible: cfg.Visible}
		if az, ok := z.active[cfg.ID]; ok {
			st.Active = true
			left := az.DurationMinutes*60 - int(now.Sub(az.StartTime).Seconds())
			if left < 0 {
				left = 0
			}
			st.RemainingSeconds = left
		}
		out = append(out, st)
	}
	return out
}

func (z *ZoneController) ActiveZoneCount() int {
	z.mu.Lock()
	defer z.mu.Unlock()
	return len(z.active)
}

// ActiveZones returns a snapshot of the active set ordered by zone id.
func (z *ZoneController) ActiveZones() []models.ActiveZone {
	z.mu.Lock()
	defer z.mu.Unlock()
	out := make([]models.ActiveZone, 0, len(z.active))
	for _, az := range z.active {
		out = append(out, az.ActiveZone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ZoneID < out[j].ZoneID })
	return out
}

// SafetyRelayEngaged reports the controller's view of the safety relay.
func (z *ZoneController) SafetyRelayEngaged() bool {
	z.mu.Lock()
	defer z.mu.Unlock()
	return z.relayEngaged
}

func (z *ZoneController) hardwareFault(ctx context.Context, msg string, kv ...any) {
	z.metrics.RelayError()
	z.events.Record(ctx, models.LevelError, msg, kv...)
}
