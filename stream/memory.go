package stream

import (
	"context"
	"strings"
	"sync"

	"github.com/hupe1980/marketingmesh/core"
)

// MemorySink records everything it receives. It backs the HTTP transport's
// synchronous responses and is handy in tests.
type MemorySink struct {
	mu       sync.Mutex
	tokens   []string
	progress []core.Progress
	messages []core.Message
}

// NewMemorySink returns an empty recorder.
func NewMemorySink() *MemorySink { return &MemorySink{} }

// Token implements Sink.
func (s *MemorySink) Token(_ context.Context, _ string, text string) error {
	s.mu.Lock()
	s.tokens = append(s.tokens, text)
	s.mu.Unlock()
	return nil
}

// Progress implements Sink.
func (s *MemorySink) Progress(_ context.Context, p core.Progress) error {
	s.mu.Lock()
	s.progress = append(s.progress, p)
	s.mu.Unlock()
	return nil
}

// Message implements Sink.
func (s *MemorySink) Message(_ context.Context, _ string, msg core.Message) error {
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
	return nil
}

// Tokens returns the recorded deltas.
func (s *MemorySink) Tokens() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.tokens...)
}

// Streamed returns the concatenated deltas.
func (s *MemorySink) Streamed() string { return strings.Join(s.Tokens(), "") }

// ProgressEvents returns the recorded progress notifications.
func (s *MemorySink) ProgressEvents() []core.Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Progress(nil), s.progress...)
}

// Messages returns the recorded messages.
func (s *MemorySink) Messages() []core.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Message(nil), s.messages...)
}
