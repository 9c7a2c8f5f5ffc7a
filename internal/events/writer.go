package events

import (
	"context"
	"fmt"
	"io"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/roach88/memostore/internal/canonical"
)

// WriterSink writes each event as one canonical JSON line: sorted keys,
// no insignificant whitespace.
type WriterSink struct {
	name string
	mu   sync.Mutex
	w    io.Writer
}

var _ Sink = (*WriterSink)(nil)

// NewWriterSink creates a sink writing JSON lines to w. If w is an
// io.Closer it is closed with the sink.
func NewWriterSink(name string, w io.Writer) *WriterSink {
	return &WriterSink{name: name, w: w}
}

// RotateOptions configures NewFileSink.
type RotateOptions struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// NewFileSink creates a WriterSink over a size-rotated file.
func NewFileSink(path string, opts RotateOptions) *WriterSink {
	return NewWriterSink("file:"+path, &lumberjack.Logger{
		Filename:   path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
	})
}

func (s *WriterSink) Name() string { return s.name }

func (s *WriterSink) Write(_ context.Context, payload []byte) error {
	ev, err := Decode(payload)
	if err != nil {
		return fmt.Errorf("%s: %w", s.name, err)
	}
	line, err := canonical.Marshal(ev.fields())
	if err != nil {
		return fmt.Errorf("%s: encode: %w", s.name, err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(line); err != nil {
		return fmt.Errorf("%s: %w", s.name, err)
	}
	return nil
}

func (s *WriterSink) Close(context.Context) error {
	if c, ok := s.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
