// Package relay drives the valve and safety relays. Relays are active-low: energizing a
// relay means driving its pin to logic level 0.
package relay

import (
	"context"
	"errors"
)

// Logic levels for an active-low relay.
const (
	LevelEnergized   = 0
	LevelDeenergized = 1
)

// ErrPinFault is returned by the simulated board for pins marked as faulty.
var ErrPinFault = errors.New("relay: pin fault")

// Driver sets a relay pin's logical state.
type Driver interface {
	Set(ctx context.Context, pin int, active bool) error
}

// Level converts a logical state to the active-low pin level.
func Level(active bool) int {
	if active {
		return LevelEnergized
	}
	return LevelDeenergized
}
