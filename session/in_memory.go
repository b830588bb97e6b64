package session

import (
	"context"
	"sync"

	"github.com/hupe1980/marketingmesh/core"
)

// InMemoryStore is a volatile SessionStore implementation storing
// sessions in a process local map. It is safe for concurrent access and
// suited for tests or single-process deployments. Every returned session or
// message slice is cloned to prevent external mutation of internal state.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*core.Session
}

// NewInMemoryStore constructs an empty in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]*core.Session)}
}

// Append adds a message, creating the session on first use.
func (s *InMemoryStore) Append(_ context.Context, sessionID string, msg core.Message) error {
	if err := validateAppend(sessionID, msg); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = s.createSessionLocked(sessionID)
	}
	sess.AddMessage(msg)

	return nil
}

// Load returns the ordered history; unknown sessions yield an empty slice.
func (s *InMemoryStore) Load(_ context.Context, sessionID string) ([]core.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return []core.Message{}, nil
	}

	return sess.GetMessages(), nil
}

// Resume returns a clone of a previously seen session or core.ErrSessionNotFound.
func (s *InMemoryStore) Resume(_ context.Context, sessionID string) (*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, core.ErrSessionNotFound
	}

	return sess.Clone(), nil
}

// Len returns the number of known sessions.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// createSessionLocked allocates and stores a new session; caller must already
// hold the write lock.
func (s *InMemoryStore) createSessionLocked(sessionID string) *core.Session {
	sess := core.NewSession(sessionID)
	s.sessions[sessionID] = sess
	return sess
}
