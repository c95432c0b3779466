package util

import (
	"sync"
	"time"
)

const defaultLimiterTTL = 10 * time.Minute

// LimiterRegistry hands out one Limiter per client key, normally the remote
// address of an MCP HTTP client. Limiters idle for longer than ttl are evicted
// by a background sweep that runs until Stop.
type LimiterRegistry struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	rate     float64
	burst    int
	ttl      time.Duration
	now      func() time.Time

	done     chan struct{}
	stopOnce sync.Once
}

type limiterEntry struct {
	limiter  *Limiter
	lastUsed time.Time
}

// NewLimiterRegistry starts a registry whose limiters admit r requests per
// second with burst b. A ttl of zero or less uses ten minutes.
func NewLimiterRegistry(r float64, b int, ttl time.Duration) *LimiterRegistry {
	if ttl <= 0 {
		ttl = defaultLimiterTTL
	}
	reg := &LimiterRegistry{
		limiters: make(map[string]*limiterEntry),
		rate:     r,
		burst:    b,
		ttl:      ttl,
		now:      time.Now,
		done:     make(chan struct{}),
	}
	go reg.sweepLoop()
	return reg
}

// Get returns the limiter for key, creating it on first use.
func (r *LimiterRegistry) Get(key string) *Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.limiters[key]
	if !ok {
		entry = &limiterEntry{limiter: NewLimiter(r.rate, r.burst)}
		r.limiters[key] = entry
	}
	entry.lastUsed = r.now()
	return entry.limiter
}

// Len reports how many client limiters are currently held.
func (r *LimiterRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.limiters)
}

// Stop ends the sweep goroutine. It is safe to call more than once.
func (r *LimiterRegistry) Stop() {
	r.stopOnce.Do(func() { close(r.done) })
}

func (r *LimiterRegistry) sweepLoop() {
	interval := r.ttl / 2
	if interval <= 0 {
		interval = r.ttl
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

func (r *LimiterRegistry) sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-r.ttl)
	evicted := 0
	for key, entry := range r.limiters {
		if entry.lastUsed.Before(cutoff) {
			delete(r.limiters, key)
			evicted++
		}
	}
	return evicted
}
