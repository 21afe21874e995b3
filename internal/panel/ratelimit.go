package panel

import (
	"sync"
	"time"
)

// rateLimiter is a token bucket guarding the request endpoint.
type rateLimiter struct {
	mu     sync.Mutex
	tokens float64
	max    float64
	rate   float64 // tokens per second
	last   time.Time
	now    func() time.Time
}

func newRateLimiter(burst int, perSecond float64) *rateLimiter {
	if burst <= 0 {
		burst = 20
	}
	if perSecond <= 0 {
		perSecond = 10
	}
	rl := &rateLimiter{
		tokens: float64(burst),
		max:    float64(burst),
		rate:   perSecond,
		now:    time.Now,
	}
	rl.last = rl.now()
	return rl
}

// Allow takes a token if one is available.
func (rl *rateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.tokens += now.Sub(rl.last).Seconds() * rl.rate
	if rl.tokens > rl.max {
		rl.tokens = rl.max
	}
	rl.last = now

	if rl.tokens < 1 {
		return false
	}
	rl.tokens--
	return true
}
