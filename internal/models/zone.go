package models

import "time"

// ZoneConfig is a valve circuit as configured in the settings store.
type ZoneConfig struct {
	ID      int    `json:"id"`
	Pin     *int   `json:"pin"`
	Name    string `json:"name"`
	Visible bool   `json:"visible"`
}

// ActiveZone records a running valve. One entry per zone id.
type ActiveZone struct {
	ZoneID          int       `json:"zone_id"`
	Pin             int       `json:"pin"`
	StartTime       time.Time `json:"start_time"`
	DurationMinutes int       `json:"duration_minutes"`
}

// ZoneStatus is the read model returned to API callers.
type ZoneStatus struct {
	ID               int    `json:"id"`
	Name             string `json:"name"`
	Visible          bool   `json:"visible"`
	Active           bool   `json:"active"`
	RemainingSeconds int    `json:"remaining_seconds"`
}
