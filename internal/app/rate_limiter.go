package app

import (
	"sync"
	"time"
)

const (
	DefaultJoinAttempts = 5
	DefaultJoinWindow   = 60 * time.Second
)

type bucket struct {
	count   int
	resetAt time.Time
}

// SourceRateLimiter counts join attempts per source address in a fixed window.
// A bucket is reset lazily by the first check after its window has elapsed.
type SourceRateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   int
	window  time.Duration
	now     func() time.Time
}

func NewSourceRateLimiter(limit int, window time.Duration) *SourceRateLimiter {
	if limit <= 0 {
		limit = DefaultJoinAttempts
	}
	if window <= 0 {
		window = DefaultJoinWindow
	}
	return &SourceRateLimiter{
		buckets: make(map[string]*bucket),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
}

// WithClock swaps the time source; tests only.
func (rl *SourceRateLimiter) WithClock(now func() time.Time) *SourceRateLimiter {
	rl.now = now
	return rl
}

// Allow records one attempt from addr and reports whether it is within the limit.
func (rl *SourceRateLimiter) Allow(addr string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.buckets[addr]
	if !ok || now.After(b.resetAt) {
		b = &bucket{resetAt: now.Add(rl.window)}
		rl.buckets[addr] = b
	}
	b.count++
	return b.count <= rl.limit
}

// Sweep drops buckets whose window is over. It returns how many were dropped.
func (rl *SourceRateLimiter) Sweep() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	n := 0
	for addr, b := range rl.buckets {
		if now.After(b.resetAt) {
			delete(rl.buckets, addr)
			n++
		}
	}
	return n
}
