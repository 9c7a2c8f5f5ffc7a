package events

import (
	"context"
	"log/slog"
)

// Publisher delivers encoded events. Delivery is best effort; the caller
// does not wait for acknowledgment beyond the returned error.
type Publisher interface {
	Publish(ctx context.Context, payload []byte) error
}

// Emitter encodes events and publishes them. Publish failures are logged
// and dropped so they never fail the operation that produced the event.
type Emitter struct {
	pub    Publisher
	logger *slog.Logger
}

// NewEmitter creates an Emitter. A nil logger uses slog.Default().
func NewEmitter(pub Publisher, logger *slog.Logger) *Emitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Emitter{pub: pub, logger: logger}
}

// EmitMemoCreated publishes ev.
func (e *Emitter) EmitMemoCreated(ctx context.Context, ev MemoCreated) {
	if e == nil || e.pub == nil {
		return
	}
	if err := e.pub.Publish(ctx, ev.Encode()); err != nil {
		e.logger.Warn("event publish failed",
			"event", "MemoCreated",
			"memo", ev.Memo.String(),
			"slot", ev.Slot,
			"error", err)
	}
}
