package clock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Unix(1700000000, 0)

func fixedWall() time.Time { return epoch }

func TestLogical_StartsAtOne(t *testing.T) {
	c := NewLogicalAt(0, fixedWall)
	assert.Equal(t, uint64(0), c.Current())

	tick, err := c.Now(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Tick{Slot: 1, UnixTimestamp: 1700000000}, tick)
	assert.Equal(t, uint64(1), c.Current())
}

func TestLogical_ResumesFromStart(t *testing.T) {
	c := NewLogicalAt(100, fixedWall)

	tick, err := c.Now(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(101), tick.Slot)
}

func TestLogical_ThreadSafe(t *testing.T) {
	c := NewLogical()
	const goroutines = 50
	const calls = 100

	var mu sync.Mutex
	seen := make(map[uint64]bool)
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < calls; j++ {
				tick, _ := c.Now(context.Background())
				mu.Lock()
				seen[tick.Slot] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, goroutines*calls, "slots must be unique")
	assert.Equal(t, uint64(goroutines*calls), c.Current())
}

type stubSource struct {
	next uint64
	err  error
}

func (s *stubSource) NextSlot(context.Context) (uint64, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.next++
	return s.next, nil
}

func TestPersistent_UsesSource(t *testing.T) {
	src := &stubSource{next: 41}
	c := NewPersistent(src, fixedWall)

	tick, err := c.Now(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Tick{Slot: 42, UnixTimestamp: 1700000000}, tick)
}

func TestPersistent_SourceError(t *testing.T) {
	boom := errors.New("locked")
	c := NewPersistent(&stubSource{err: boom}, nil)

	_, err := c.Now(context.Background())
	assert.ErrorIs(t, err, boom)
}
