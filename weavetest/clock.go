package weavetest

import (
	"sync"
	"time"

	"github.com/iov-one/microchan"
)

// Clock is a manually controlled clock. It never moves on its own.
type Clock struct {
	mu  sync.Mutex
	now microchan.UnixTime
}

var _ microchan.Clock = (*Clock)(nil)

// NewClock returns a clock stopped at given time.
func NewClock(start microchan.UnixTime) *Clock {
	return &Clock{now: start}
}

// Now returns the current clock time.
func (c *Clock) Now() microchan.UnixTime {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward. Negative durations are ignored, the
// clock is monotonic.
func (c *Clock) Advance(d time.Duration) microchan.UnixTime {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d > 0 {
		c.now = c.now.Add(d)
	}
	return c.now
}

// Set moves the clock to t if t is not in the past.
func (c *Clock) Set(t microchan.UnixTime) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t > c.now {
		c.now = t
	}
}
