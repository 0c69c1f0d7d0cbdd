package lumaapi

import (
	"context"
	"sync"
	"time"
)

// RateLimiter implements per-key sliding window throttling of outgoing
// requests. One limiter is shared by every client of a process, so clients
// built for the same API key draw from the same window.
type RateLimiter struct {
	maxRequests int
	window      time.Duration
	now         func() time.Time
	mu          sync.Mutex
	keys        map[string]*keyWindow
}

type keyWindow struct {
	timestamps []time.Time
}

// NewRateLimiter allows maxRequests per window for each key. A
// non-positive maxRequests disables throttling.
func NewRateLimiter(maxRequests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		maxRequests: maxRequests,
		window:      window,
		now:         time.Now,
		keys:        make(map[string]*keyWindow),
	}
}

// reserve records a request for key when the window has room and returns
// zero; otherwise it returns how long until the oldest request leaves it.
func (rl *RateLimiter) reserve(key string) time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	kw, ok := rl.keys[key]
	if !ok {
		kw = &keyWindow{}
		rl.keys[key] = kw
	}

	// Remove timestamps outside the window
	cutoff := now.Add(-rl.window)
	start := 0
	for start < len(kw.timestamps) && !kw.timestamps[start].After(cutoff) {
		start++
	}
	kw.timestamps = kw.timestamps[start:]

	if len(kw.timestamps) >= rl.maxRequests {
		return kw.timestamps[0].Add(rl.window).Sub(now)
	}
	kw.timestamps = append(kw.timestamps, now)
	return 0
}

// Allow reports whether key may send a request now, recording it if so.
func (rl *RateLimiter) Allow(key string) bool {
	if rl == nil || rl.maxRequests <= 0 {
		return true
	}
	return rl.reserve(key) <= 0
}

// Wait blocks until key may send a request or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context, key string) error {
	if rl == nil || rl.maxRequests <= 0 {
		return nil
	}
	for {
		d := rl.reserve(key)
		if d <= 0 {
			return nil
		}
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// WithRateLimiter throttles the client's requests through rl.
func WithRateLimiter(rl *RateLimiter) Option {
	return func(c *Client) { c.limiter = rl }
}
