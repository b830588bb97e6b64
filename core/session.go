package core

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrSessionNotFound is returned by SessionStore.Resume for a thread id that
// has never been seen.
var ErrSessionNotFound = errors.New("session not found")

// Session represents a conversational container tracking an ordered,
// append-only message history. It is safe for concurrent access.
//
// Contract:
//   - Messages are never reordered or mutated after append
//   - GetMessages returns a defensive copy
//   - Clone performs deep copies of slices for safe divergence
type Session struct {
	ID       string    `json:"id"`
	Messages []Message `json:"messages"`
	Created  time.Time `json:"created"`
	Updated  time.Time `json:"updated"`
	mu       sync.RWMutex
}

// NewSession creates a new empty session with the given ID.
func NewSession(id string) *Session {
	now := time.Now()
	return &Session{ID: id, Messages: []Message{}, Created: now, Updated: now}
}

// AddMessage appends a message to the history updating the Updated timestamp.
func (s *Session) AddMessage(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Messages = append(s.Messages, msg.Clone())
	s.Updated = time.Now()
}

// GetMessages returns a defensive copy of the full message slice.
func (s *Session) GetMessages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := make([]Message, len(s.Messages))
	for i, m := range s.Messages {
		msgs[i] = m.Clone()
	}
	return msgs
}

// Len returns the number of messages in the session.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.Messages)
}

// Clone returns a deep copy of the session safe for independent mutation.
func (s *Session) Clone() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clone := &Session{ID: s.ID, Messages: make([]Message, len(s.Messages)), Created: s.Created, Updated: s.Updated}
	for i, m := range s.Messages {
		clone.Messages[i] = m.Clone()
	}
	return clone
}

// SessionStore is the conversation memory contract. Implementations must keep
// per-session append order equal to arrival order.
//
// Resume reconstructs a previously seen session and returns
// ErrSessionNotFound otherwise. Credentials are deliberately absent from the
// contract: tokens are short-lived and resolved per session at resume time.
type SessionStore interface {
	Append(ctx context.Context, sessionID string, msg Message) error
	Load(ctx context.Context, sessionID string) ([]Message, error)
	Resume(ctx context.Context, sessionID string) (*Session, error)
}
