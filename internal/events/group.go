package events

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

var (
	// ErrGroupClosed indicates the group is closed.
	ErrGroupClosed = errors.New("events/group: closed")
	// ErrNilSink indicates a nil or unnamed sink was provided.
	ErrNilSink = errors.New("events/group: nil sink")
	// ErrDuplicate indicates a duplicate sink name.
	ErrDuplicate = errors.New("events/group: duplicate sink name")
	// ErrSinkNotFound indicates the sink was not found.
	ErrSinkNotFound = errors.New("events/group: sink not found")
)

// Group fans events out to its sinks concurrently and implements Publisher.
//
// Writes go to a snapshot of the current sinks so no lock is held during
// I/O. Errors from individual sinks are joined; one failing sink does not
// stop delivery to the others.
type Group struct {
	mu     sync.RWMutex
	byName map[string]Sink
	order  []string
	closed atomic.Bool
}

var _ Publisher = (*Group)(nil)

// NewGroup builds a group. Nil sinks and duplicate names are skipped.
func NewGroup(sinks ...Sink) *Group {
	g := &Group{byName: make(map[string]Sink, len(sinks))}
	for _, s := range sinks {
		_ = g.Add(s)
	}
	return g
}

// Add registers a sink.
func (g *Group) Add(s Sink) error {
	if s == nil || s.Name() == "" {
		return ErrNilSink
	}
	if g.closed.Load() {
		return ErrGroupClosed
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.byName[s.Name()]; exists {
		return ErrDuplicate
	}
	g.byName[s.Name()] = s
	g.order = append(g.order, s.Name())
	return nil
}

// Remove deletes a sink by name without closing it.
func (g *Group) Remove(name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.byName[name]; !ok {
		return ErrSinkNotFound
	}
	delete(g.byName, name)
	for i, n := range g.order {
		if n == name {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
	return nil
}

// List returns sink names in registration order.
func (g *Group) List() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	names := make([]string, len(g.order))
	copy(names, g.order)
	return names
}

// Publish writes payload to every sink.
func (g *Group) Publish(ctx context.Context, payload []byte) error {
	if g.closed.Load() {
		return ErrGroupClosed
	}
	return g.each(func(s Sink) error { return s.Write(ctx, payload) })
}

// Close closes every sink and marks the group closed.
func (g *Group) Close(ctx context.Context) error {
	if g.closed.Swap(true) {
		return nil
	}
	return g.each(func(s Sink) error { return s.Close(ctx) })
}

func (g *Group) each(fn func(Sink) error) error {
	sinks := g.snapshot()
	if len(sinks) == 0 {
		return nil
	}

	errs := make(chan error, len(sinks))
	var wg sync.WaitGroup
	wg.Add(len(sinks))
	for _, s := range sinks {
		go func(s Sink) {
			defer wg.Done()
			if err := fn(s); err != nil {
				errs <- err
			}
		}(s)
	}
	wg.Wait()
	close(errs)

	var agg error
	for err := range errs {
		agg = errors.Join(agg, err)
	}
	return agg
}

func (g *Group) snapshot() []Sink {
	g.mu.RLock()
	defer g.mu.RUnlock()

	sinks := make([]Sink, 0, len(g.order))
	for _, n := range g.order {
		sinks = append(sinks, g.byName[n])
	}
	return sinks
}
