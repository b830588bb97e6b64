package core

import (
	"errors"
	"fmt"
	"sync"
)

// ErrStepLimitExceeded is returned by StepLimiter.Increment once the
// configured maximum number of tool-calling steps has been used up.
var ErrStepLimitExceeded = errors.New("step limit exceeded")

// StepLimiter enforces a maximum number of tool-calling steps per run.
type StepLimiter struct {
	max   int
	count int
	mu    sync.Mutex
}

// NewStepLimiter creates a new limiter with a max number of steps.
// If max == 0, unlimited steps are allowed.
func NewStepLimiter(max int) *StepLimiter {
	return &StepLimiter{max: max}
}

// Increment increases the step counter and returns an error if the limit is exceeded.
func (sl *StepLimiter) Increment() error {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	sl.count++
	if sl.max > 0 && sl.count > sl.max {
		return fmt.Errorf("%w: %d", ErrStepLimitExceeded, sl.max)
	}

	return nil
}

// Count returns the current number of steps taken.
func (sl *StepLimiter) Count() int {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	return sl.count
}

// Max returns the configured limit (0 means unlimited).
func (sl *StepLimiter) Max() int { return sl.max }

// Remaining returns how many steps are left before hitting the limit.
func (sl *StepLimiter) Remaining() int {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	if sl.max == 0 {
		return -1 // unlimited
	}

	return sl.max - sl.count
}
