package events

import "context"

// Sink is a named destination for encoded events.
type Sink interface {
	Name() string
	Write(ctx context.Context, payload []byte) error
	Close(ctx context.Context) error
}
