// Package clock supplies the logical time stamped on memo records and
// creation events.
//
// A Tick pairs a strictly increasing slot with wall-clock seconds. Ordering
// uses the slot; the timestamp is informational and may repeat or step back
// with the system clock.
package clock

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// Tick is one reading of the clock.
type Tick struct {
	Slot          uint64
	UnixTimestamp int64
}

// Clock returns the current tick. Every call advances the slot.
type Clock interface {
	Now(ctx context.Context) (Tick, error)
}

// Logical is an in-process clock. Slots start after the configured value
// and are unique across goroutines.
type Logical struct {
	slot atomic.Uint64
	wall func() time.Time
}

// NewLogical creates a clock whose first slot is 1.
func NewLogical() *Logical {
	return NewLogicalAt(0, time.Now)
}

// NewLogicalAt creates a clock whose first slot is start+1, reading wall
// seconds from wall. Used to resume from a known slot and in tests.
func NewLogicalAt(start uint64, wall func() time.Time) *Logical {
	c := &Logical{wall: wall}
	c.slot.Store(start)
	return c
}

// Now advances the slot and returns it with the wall time.
func (c *Logical) Now(context.Context) (Tick, error) {
	return Tick{Slot: c.slot.Add(1), UnixTimestamp: c.wall().Unix()}, nil
}

// Current returns the last issued slot without advancing.
func (c *Logical) Current() uint64 {
	return c.slot.Load()
}

// SlotSource hands out slots that survive restarts.
// The storage backends implement it.
type SlotSource interface {
	NextSlot(ctx context.Context) (uint64, error)
}

// Persistent reads slots from a SlotSource.
type Persistent struct {
	src  SlotSource
	wall func() time.Time
}

// NewPersistent creates a clock backed by src.
func NewPersistent(src SlotSource, wall func() time.Time) *Persistent {
	if wall == nil {
		wall = time.Now
	}
	return &Persistent{src: src, wall: wall}
}

// Now advances the persisted slot and returns it with the wall time.
func (c *Persistent) Now(ctx context.Context) (Tick, error) {
	slot, err := c.src.NextSlot(ctx)
	if err != nil {
		return Tick{}, fmt.Errorf("next slot: %w", err)
	}
	return Tick{Slot: slot, UnixTimestamp: c.wall().Unix()}, nil
}
