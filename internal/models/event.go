package models

import "time"

// Event levels.
const (
	LevelInfo    = "INFO"
	LevelWarning = "WARNING"
	LevelError   = "ERROR"
)

// Event is a single event-log entry.
type Event struct {
	EventID    string    `json:"event_id"`
	OccurredAt time.Time `json:"occurred_at"`
	Level      string    `json:"level"`
	Message    string    `json:"message"`
	Metadata   any       `json:"metadata,omitempty"`
}
