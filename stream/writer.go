package stream

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/hupe1980/marketingmesh/core"
)

// WriterSink renders a run on a terminal: tokens are written as they
// arrive, progress is written on its own line and a final answer that was
// not streamed is written in full.
type WriterSink struct {
	mu       sync.Mutex
	w        io.Writer
	streamed bool
}

// NewWriterSink returns a sink writing to w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// Token implements Sink.
func (s *WriterSink) Token(_ context.Context, _ string, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.streamed = true
	_, err := io.WriteString(s.w, text)
	return err
}

// Progress implements Sink.
func (s *WriterSink) Progress(_ context.Context, p core.Progress) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefix := ""
	if s.streamed {
		prefix = "\n"
	}

	_, err := fmt.Fprintf(s.w, "%s[%s] %s\n", prefix, p.Tool, p.Text)
	return err
}

// Message implements Sink. Only final assistant answers are printed.
func (s *WriterSink) Message(_ context.Context, _ string, msg core.Message) error {
	if !msg.IsFinalResponse() {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if s.streamed {
		_, err = io.WriteString(s.w, "\n")
	} else {
		_, err = fmt.Fprintln(s.w, msg.Text())
	}
	s.streamed = false

	return err
}
