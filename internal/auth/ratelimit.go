package auth

import (
	"context"
	"sync"
	"time"
)

// rateLimitSweepInterval is how often idle keys are reclaimed.
const rateLimitSweepInterval = 1 * time.Minute

// RateLimiter admits at most limit requests per key within a sliding window
// ending at now. It is a true sliding window, not fixed buckets: a burst
// straddling a bucket boundary cannot exceed the limit.
type RateLimiter struct {
	requests    map[string][]time.Time
	mu          sync.Mutex
	limit       int
	window      time.Duration
	behindProxy bool
}

// NewRateLimiter creates a rate limiter and starts its sweep goroutine, which
// stops when ctx is cancelled. Set behindProxy to true only when the process
// runs behind a trusted reverse proxy that sets forwarded-address headers.
func NewRateLimiter(ctx context.Context, limit int, window time.Duration, behindProxy bool) *RateLimiter {
	limiter := &RateLimiter{
		requests:    make(map[string][]time.Time),
		limit:       limit,
		window:      window,
		behindProxy: behindProxy,
	}

	go limiter.sweep(ctx)

	return limiter
}

// BehindProxy reports whether forwarded-address headers should be trusted
// when deriving the limiter key for a request.
func (rl *RateLimiter) BehindProxy() bool {
	return rl.behindProxy
}

// Allow trims the key's history to the active window and admits the request
// if the trimmed count is below the limit, recording it. Rejected requests
// are not recorded; only admitted traffic counts against the window.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-rl.window)

	// Trim in place, reusing the existing slice
	requests := rl.requests[key]
	n := 0
	for _, t := range requests {
		if t.After(cutoff) {
			requests[n] = t
			n++
		}
	}
	requests = requests[:n]

	if len(requests) >= rl.limit {
		rl.requests[key] = requests
		return false
	}

	rl.requests[key] = append(requests, now)

	return true
}

// sweep trims every key and drops those with no live entries so memory stays
// bounded by active traffic, not by the total set of addresses ever seen.
// Each pass holds the lock once and does bounded work.
func (rl *RateLimiter) sweep(ctx context.Context) {
	ticker := time.NewTicker(rateLimitSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-rl.window)

			rl.mu.Lock()
			for key, requests := range rl.requests {
				n := 0
				for _, t := range requests {
					if t.After(cutoff) {
						requests[n] = t
						n++
					}
				}
				if n == 0 {
					delete(rl.requests, key)
				} else {
					rl.requests[key] = requests[:n]
				}
			}
			rl.mu.Unlock()
		}
	}
}
