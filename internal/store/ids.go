package store

import (
	"sync"
	"time"
)

// IDGenerator issues entity ids.
type IDGenerator interface {
	NewID() int64
}

// MonotonicClock issues millisecond timestamps as ids. When the clock has
// not advanced past the last issued id it returns last+1, so successive
// calls never repeat.
type MonotonicClock struct {
	now func() time.Time

	mu   sync.Mutex
	last int64
}

// NewMonotonicClock creates a generator over now. A nil now uses time.Now.
func NewMonotonicClock(now func() time.Time) *MonotonicClock {
	if now == nil {
		now = time.Now
	}
	return &MonotonicClock{now: now}
}

// NewID implements IDGenerator.
func (c *MonotonicClock) NewID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.now().UnixMilli()
	if id <= c.last {
		id = c.last + 1
	}
	c.last = id
	return id
}
