package microchan

import (
	"sync"
	"time"
)

// Clock provides the current time. Implementations must be monotonic: a
// call never returns a value lower than one returned before.
type Clock interface {
	Now() UnixTime
}

// SystemClock is a Clock backed by the wall clock. A wall clock moving
// backward (NTP adjustment) is absorbed by returning the highest value
// seen so far.
type SystemClock struct {
	mu   sync.Mutex
	last UnixTime
	now  func() time.Time
}

var _ Clock = (*SystemClock)(nil)

// NewSystemClock returns a clock reading the operating system time.
func NewSystemClock() *SystemClock {
	return &SystemClock{now: time.Now}
}

// Now returns the current time.
func (c *SystemClock) Now() UnixTime {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := AsUnixTime(c.now())
	if now < c.last {
		return c.last
	}
	c.last = now
	return now
}
