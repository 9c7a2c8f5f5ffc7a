package events

import (
	"context"
	"log/slog"
)

// LogSink logs each event at info level.
type LogSink struct {
	logger *slog.Logger
}

var _ Sink = (*LogSink)(nil)

// NewLogSink creates a sink logging through logger, or slog.Default() if nil.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Write(ctx context.Context, payload []byte) error {
	ev, err := Decode(payload)
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "memo created",
		"slot", ev.Slot,
		"unix_timestamp", ev.UnixTimestamp,
		"memo", ev.Memo.String(),
		"author", ev.Author.String(),
		"text_len", len(ev.Text))
	return nil
}

func (s *LogSink) Close(context.Context) error { return nil }
