package credential

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/marketingmesh/core"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestStore(clock *fakeClock) *Store {
	return NewStore(func(o *Options) {
		o.TTL = time.Minute
		o.Now = clock.Now
	})
}

func TestStore_PutAndToken(t *testing.T) {
	s := newTestStore(&fakeClock{now: time.Unix(0, 0)})

	s.Put("alice", "tok-a")
	s.Put("bob", "tok-b")
	s.Put("alice", "tok-a2")

	tok, ok := s.Token("alice")
	assert.True(t, ok)
	assert.Equal(t, "tok-a2", tok)
	assert.Equal(t, 2, s.Len())

	_, ok = s.Token("carol")
	assert.False(t, ok)

	s.Put("", "ignored")
	s.Put("dave", "")
	assert.Equal(t, 2, s.Len())
}

func TestStore_ClaimRefusesForeignToken(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	s := newTestStore(clock)

	assert.NoError(t, s.Claim("alice", "alice-token"))
	assert.ErrorIs(t, s.Claim("alice", "mallory-token"), ErrTokenConflict)

	token, ok := s.Token("alice")
	assert.True(t, ok)
	assert.Equal(t, "alice-token", token)

	clock.Advance(50 * time.Second)
	assert.NoError(t, s.Claim("alice", "alice-token"))
	clock.Advance(50 * time.Second)
	_, ok = s.Token("alice")
	assert.True(t, ok, "re-claiming the same token restarts the TTL")

	clock.Advance(time.Minute)
	assert.NoError(t, s.Claim("alice", "rotated-token"))
	token, _ = s.Token("alice")
	assert.Equal(t, "rotated-token", token)
}

func TestStore_Expiry(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	s := newTestStore(clock)

	s.Put("alice", "tok")
	clock.Advance(59 * time.Second)
	_, ok := s.Token("alice")
	assert.True(t, ok)

	clock.Advance(time.Second)
	_, ok = s.Token("alice")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
}

func TestStore_Sweep(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	s := newTestStore(clock)

	s.Put("old", "1")
	clock.Advance(30 * time.Second)
	s.Put("new", "2")
	clock.Advance(45 * time.Second)

	assert.Equal(t, 1, s.Sweep())
	assert.Equal(t, 1, s.Len())

	_, ok := s.Token("new")
	assert.True(t, ok)
}

func TestStore_LookupAndDelete(t *testing.T) {
	s := NewStore()
	s.Put("alice", "tok")

	var lookup core.CredentialLookup = s.Lookup
	tok, ok := lookup("alice")
	assert.True(t, ok)
	assert.Equal(t, "tok", tok)

	s.Delete("alice")
	_, ok = lookup("alice")
	assert.False(t, ok)
}

func TestStore_ConcurrentUsers(t *testing.T) {
	s := NewStore()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user := fmt.Sprintf("user-%d", i)
			s.Put(user, "tok-"+user)
			tok, ok := s.Token(user)
			assert.True(t, ok)
			assert.Equal(t, "tok-"+user, tok)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 32, s.Len())
}

func TestStore_RunJanitorStopsOnCancel(t *testing.T) {
	s := NewStore(func(o *Options) { o.TTL = time.Millisecond })
	s.Put("alice", "tok")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.RunJanitor(ctx, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return s.Len() == 0 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}
