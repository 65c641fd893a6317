package docstore

import (
	"sync"
	"time"
)

// clock hands out strictly increasing timestamps with microsecond spacing.
type clock struct {
	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

func newClock(now func() time.Time) *clock {
	if now == nil {
		now = time.Now
	}
	return &clock{now: now}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now().UTC().Truncate(time.Microsecond)
	if !t.After(c.last) {
		t = c.last.Add(time.Microsecond)
	}
	c.last = t
	return t
}
