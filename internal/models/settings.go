package models

import "strconv"

// Factory defaults, applied once at load time by Normalize.
const (
	DefaultMaxActiveZones  = 3
	DefaultActivationDelay = 5   // minutes
	DefaultMaxZoneDuration = 180 // minutes
	DefaultSafetyRelayPin  = 13
)

// Settings is the controller configuration owned by the settings store.
type Settings struct {
	Zones                    []ZoneConfig `json:"zones"`
	MaxActiveZones           int          `json:"max_active_zones"`
	ActivationDelay          int          `json:"activation_delay"`
	SafetyRelayPin           *int         `json:"safety_relay_pin"`
	AutomaticProgramsEnabled bool         `json:"automatic_programs_enabled"`
	MaxZoneDuration          int          `json:"max_zone_duration"`
}

// FactorySettings returns the out-of-the-box configuration: eight zones on pins 14..21.
func FactorySettings() Settings {
	zones := make([]ZoneConfig, 0, 8)
	for i := 0; i < 8; i++ {
		pin := 14 + i
		zones = append(zones, ZoneConfig{
			ID:      i,
			Pin:     &pin,
			Name:    zoneDefaultName(i),
			Visible: true,
		})
	}
	relay := DefaultSafetyRelayPin
	return Settings{
		Zones:                    zones,
		MaxActiveZones:           DefaultMaxActiveZones,
		ActivationDelay:          DefaultActivationDelay,
		SafetyRelayPin:           &relay,
		AutomaticProgramsEnabled: false,
		MaxZoneDuration:          DefaultMaxZoneDuration,
	}
}

// Normalize repairs out-of-range values in place and returns the repaired settings.
// Zones without a pin and zones with a duplicate id are dropped.
func (s Settings) Normalize() Settings {
	if s.MaxActiveZones <= 0 {
		s.MaxActiveZones = DefaultMaxActiveZones
	}
	if s.ActivationDelay < 0 {
		s.ActivationDelay = 0
	}
	if s.MaxZoneDuration <= 0 {
		s.MaxZoneDuration = DefaultMaxZoneDuration
	}
	if s.SafetyRelayPin != nil && *s.SafetyRelayPin < 0 {
		s.SafetyRelayPin = nil
	}

	seen := make(map[int]bool, len(s.Zones))
	zones := make([]ZoneConfig, 0, len(s.Zones))
	for _, z := range s.Zones {
		if z.Pin == nil || *z.Pin < 0 || seen[z.ID] {
			continue
		}
		seen[z.ID] = true
		if z.Name == "" {
			z.Name = zoneDefaultName(z.ID)
		}
		zones = append(zones, z)
	}
	s.Zones = zones
	return s
}

// Zone looks up a configured zone by id.
func (s Settings) Zone(id int) (ZoneConfig, bool) {
	for _, z := range s.Zones {
		if z.ID == id {
			return z, true
		}
	}
	return ZoneConfig{}, false
}

func zoneDefaultName(id int) string {
	return "Zone " + strconv.Itoa(id+1)
}
