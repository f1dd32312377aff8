package relay

import (
	"context"
	"fmt"
	"sync"
)

// Board is an in-memory relay board. It backs relay.driver=simulated and the tests.
type Board struct {
	mu     sync.Mutex
	levels map[int]int
	faults map[int]bool
	writes int
}

func NewBoard() *Board {
	return &Board{
		levels: make(map[int]int),
		faults: make(map[int]bool),
	}
}

var _ Driver = (*Board)(nil)

func (b *Board) Set(ctx context.Context, pin int, active bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.faults[pin] {
		return fmt.Errorf("set pin %d: %w", pin, ErrPinFault)
	}
	b.levels[pin] = Level(active)
	b.writes++
	return nil
}

// FailPin makes every subsequent write to pin fail until ClearFault.
func (b *Board) FailPin(pin int) {
	b.mu.Lock()
	b.faults[pin] = true
	b.mu.Unlock()
}

func (b *Board) ClearFault(pin int) {
	b.mu.Lock()
	delete(b.faults, pin)
	b.mu.Unlock()
}

// Level returns the last driven level of pin and whether it was ever driven.
func (b *Board) Level(pin int) (int, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	lvl, ok := b.levels[pin]
	return lvl, ok
}

// Active reports whether pin is currently energized.
func (b *Board) Active(pin int) bool {
	lvl, ok := b.Level(pin)
	return ok && lvl == LevelEnergized
}

// Writes counts successful pin writes.
func (b *Board) Writes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.writes
}
