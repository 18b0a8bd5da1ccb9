package memo

import (
	"sync"
	"time"
)

// RateLimiter throttles mutating workflow commands per actor over a rolling
// window. A zero limit disables limiting.
type RateLimiter struct {
	mu       sync.Mutex
	perActor map[string]*actorRate
	limit    int
	window   time.Duration
}

type actorRate struct {
	count       int
	windowStart time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		return &RateLimiter{limit: 0}
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		perActor: map[string]*actorRate{},
		limit:    limit,
		window:   window,
	}
}

func (r *RateLimiter) Allow(actor string) (bool, time.Duration) {
	if r == nil || r.limit == 0 {
		return true, 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	state, ok := r.perActor[actor]
	if !ok {
		state = &actorRate{windowStart: now}
		r.perActor[actor] = state
	}
	if now.Sub(state.windowStart) >= r.window {
		state.windowStart = now
		state.count = 0
	}
	if state.count >= r.limit {
		return false, state.windowStart.Add(r.window).Sub(now)
	}
	state.count++
	return true, 0
}
