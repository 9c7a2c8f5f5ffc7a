package events

import (
	"context"
	"sync"
)

// Recorder keeps decoded events in memory. Used by tests and the harness.
// It implements both Sink and Publisher.
type Recorder struct {
	mu     sync.Mutex
	events []MemoCreated
	err    error
}

var (
	_ Sink      = (*Recorder)(nil)
	_ Publisher = (*Recorder)(nil)
)

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Name() string { return "recorder" }

// FailWith makes every later Write return err. Pass nil to recover.
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *Recorder) Write(_ context.Context, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	ev, err := Decode(payload)
	if err != nil {
		return err
	}
	r.events = append(r.events, ev)
	return nil
}

func (r *Recorder) Publish(ctx context.Context, payload []byte) error {
	return r.Write(ctx, payload)
}

func (r *Recorder) Close(context.Context) error { return nil }

// Events returns a copy of the recorded events in publish order.
func (r *Recorder) Events() []MemoCreated {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]MemoCreated, len(r.events))
	copy(out, r.events)
	return out
}

// Reset drops recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
