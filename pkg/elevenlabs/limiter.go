package elevenlabs

import (
	"sync"
	"time"
)

// SlidingWindowCounter counts events inside a moving time window.
type SlidingWindowCounter struct {
	mu     sync.Mutex
	events []time.Time
	now    func() time.Time
}

func NewSlidingWindowCounter() *SlidingWindowCounter {
	return &SlidingWindowCounter{now: time.Now}
}

// TryConsume records one event and reports true when fewer than limit events
// happened in the last window. An event exactly one window old still counts.
// A refused event is not recorded.
func (c *SlidingWindowCounter) TryConsume(limit int, window time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.now()
	cutoff := t.Add(-window)
	i := 0
	for i < len(c.events) && c.events[i].Before(cutoff) {
		i++
	}
	c.events = c.events[i:]

	if len(c.events) >= limit {
		return false
	}
	c.events = append(c.events, t)
	return true
}

// Len returns the number of events currently inside the window.
func (c *SlidingWindowCounter) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

// Limiter keeps one counter per key.
type Limiter struct {
	mu       sync.Mutex
	counters map[string]*SlidingWindowCounter
	limit    int
	window   time.Duration
	now      func() time.Time
}

// NewLimiter allows limit events per key in each window. A limit <= 0 disables limiting.
func NewLimiter(limit int, window time.Duration) *Limiter {
	return &Limiter{counters: make(map[string]*SlidingWindowCounter), limit: limit, window: window, now: time.Now}
}

func (l *Limiter) Allow(key string) bool {
	if l == nil || l.limit <= 0 {
		return true
	}
	l.mu.Lock()
	c, ok := l.counters[key]
	if !ok {
		c = &SlidingWindowCounter{now: l.now}
		l.counters[key] = c
	}
	l.mu.Unlock()
	return c.TryConsume(l.limit, l.window)
}
