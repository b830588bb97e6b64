// Package credential keeps short-lived per-user bearer tokens outside the
// conversation log. Tokens are keyed by authenticated user identity (one
// entry per user) and expire after a fixed TTL.
package credential

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hupe1980/marketingmesh/logging"
)

// DefaultTTL is how long a token stays valid after Put.
const DefaultTTL = time.Hour

// Options configures a Store.
type Options struct {
	TTL    time.Duration
	Now    func() time.Time
	Logger logging.Logger
}

type entry struct {
	token     string
	expiresAt time.Time
}

// Store is a concurrency-safe token map with TTL expiry.
type Store struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
	logger  logging.Logger
}

// NewStore creates an empty store.
func NewStore(optFns ...func(o *Options)) *Store {
	opts := Options{
		TTL:    DefaultTTL,
		Now:    time.Now,
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}

	return &Store{
		entries: make(map[string]entry),
		ttl:     opts.TTL,
		now:     opts.Now,
		logger:  opts.Logger,
	}
}

// Put stores (or replaces) the token of userID and restarts its TTL.
func (s *Store) Put(userID, token string) {
	if userID == "" || token == "" {
		return
	}

	s.mu.Lock()
	s.entries[userID] = entry{token: token, expiresAt: s.now().Add(s.ttl)}
	s.mu.Unlock()

	s.logger.Debug("credential.put", "user", userID)
}

// ErrTokenConflict is returned by Claim when userID already holds a
// different unexpired token.
var ErrTokenConflict = errors.New("user already holds a different token")

// Claim stores token for userID unless the user holds a different unexpired
// token. Presenting the same token again restarts its TTL.
func (s *Store) Claim(userID, token string) error {
	if userID == "" || token == "" {
		return nil
	}

	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.entries[userID]; ok && cur.token != token && now.Before(cur.expiresAt) {
		s.logger.Warn("credential.claim.conflict", "user", userID)
		return ErrTokenConflict
	}

	s.entries[userID] = entry{token: token, expiresAt: now.Add(s.ttl)}

	return nil
}

// Token returns the unexpired token of userID. Expired entries are removed
// on access.
func (s *Store) Token(userID string) (string, bool) {
	s.mu.RLock()
	e, ok := s.entries[userID]
	s.mu.RUnlock()

	if !ok {
		return "", false
	}

	if !s.now().Before(e.expiresAt) {
		s.mu.Lock()
		if cur, ok := s.entries[userID]; ok && cur == e {
			delete(s.entries, userID)
		}
		s.mu.Unlock()

		s.logger.Debug("credential.expired", "user", userID)

		return "", false
	}

	return e.token, true
}

// Lookup has the core.CredentialLookup signature so s.Lookup can be
// handed to a RunContext.
func (s *Store) Lookup(userID string) (string, bool) { return s.Token(userID) }

// Delete removes the token of userID.
func (s *Store) Delete(userID string) {
	s.mu.Lock()
	delete(s.entries, userID)
	s.mu.Unlock()
}

// Sweep evicts every expired entry and returns how many were removed.
func (s *Store) Sweep() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for user, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, user)
			removed++
		}
	}

	if removed > 0 {
		s.logger.Info("credential.sweep", "removed", removed, "remaining", len(s.entries))
	}

	return removed
}

// Len returns the number of stored entries, expired or not.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// RunJanitor calls Sweep every interval until ctx is cancelled.
func (s *Store) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = s.ttl
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}
