package testutil

import (
	"context"
	"sync"

	"github.com/roach88/memostore/internal/clock"
)

// DefaultUnixTimestamp is the wall time reported by a DeterministicClock
// unless another is given.
const DefaultUnixTimestamp int64 = 1_700_000_000

// DeterministicClock is a clock.Clock for tests and the harness.
//
// Slots count up from 1 and the timestamp never moves, so the same scenario
// always produces the same records and events. Unlike clock.Logical it can
// be reset for reuse.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicClock struct {
	mu   sync.Mutex
	slot uint64
	unix int64
}

var _ clock.Clock = (*DeterministicClock)(nil)

// NewDeterministicClock creates a clock at slot 0 reporting
// DefaultUnixTimestamp.
//
// The first call to Now() returns slot 1.
func NewDeterministicClock() *DeterministicClock {
	return NewDeterministicClockAt(DefaultUnixTimestamp)
}

// NewDeterministicClockAt creates a clock reporting unix as its timestamp.
func NewDeterministicClockAt(unix int64) *DeterministicClock {
	return &DeterministicClock{unix: unix}
}

// Now advances the slot and returns it with the fixed timestamp.
func (c *DeterministicClock) Now(context.Context) (clock.Tick, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slot++
	return clock.Tick{Slot: c.slot, UnixTimestamp: c.unix}, nil
}

// Current returns the last issued slot without advancing.
func (c *DeterministicClock) Current() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slot
}

// Reset resets the slot to 0.
//
// After Reset(), the next call to Now() returns slot 1.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slot = 0
}
