// Package clock is the controller's time source. Production code uses System; tests drive a
// Fake so that minute-long zone timers can expire instantly.
package clock

import "time"

// Timer is a cancellable deferred action.
type Timer interface {
	// Stop prevents the action from running. It reports false if the action already ran or
	// was already stopped.
	Stop() bool
}

// Clock supplies local wall-clock time and deferred actions.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// System is the real clock in the host's local time zone.
type System struct{}

func (System) Now() time.Time { return time.Now() }

func (System) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// EpochDay returns the number of calendar days between 1970-01-01 and t's local date.
func EpochDay(t time.Time) int {
	y, m, d := t.Date()
	return int(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400)
}
