package wsprbeacon

import (
	"sync"
	"time"
)

// Clock is a free running monotonic time source.  Values are only
// meaningful relative to each other.
type Clock interface {
	Now() time.Duration
}

// SystemClock measures from its creation using the monotonic reading
// carried by time.Time, so wall clock steps do not disturb it.
type SystemClock struct {
	start time.Time
}

func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now()}
}

func (c *SystemClock) Now() time.Duration {
	return time.Since(c.start)
}

// ManualClock only moves when told to.
type ManualClock struct {
	mu  sync.Mutex
	now time.Duration
}

func (c *ManualClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *ManualClock) Set(now time.Duration) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

func (c *ManualClock) Advance(d time.Duration) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now += d

	return c.now
}
