// internal/bridge/ratelimit.go
package bridge

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultCleanupInterval = 5 * time.Minute
	defaultEntryTTL        = 10 * time.Minute
)

// RateLimiterConfig tunes the per-IP limiter. Zero values for the
// cleanup fields fall back to defaults.
type RateLimiterConfig struct {
	// RPS is the rate limit in connections per second per IP.
	RPS float64

	// Burst is the maximum burst size per IP.
	Burst int

	// CleanupInterval is how often idle entries are swept.
	CleanupInterval time.Duration

	// EntryTTL is how long an entry is kept after its last use.
	EntryTTL time.Duration
}

// RateLimiter provides per-IP rate limiting for connection attempts
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rateLimiterEntry

	config RateLimiterConfig

	// stopCleanup signals the cleanup goroutine to stop
	stopCleanup chan struct{}
}

// rateLimiterEntry holds a rate limiter and its last access time
type rateLimiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// NewRateLimiter creates a new per-IP rate limiter
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = defaultCleanupInterval
	}
	if config.EntryTTL <= 0 {
		config.EntryTTL = defaultEntryTTL
	}

	rl := &RateLimiter{
		limiters:    make(map[string]*rateLimiterEntry),
		config:      config,
		stopCleanup: make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Allow checks if a connection from the given IP is allowed
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, ok := rl.limiters[ip]
	if !ok {
		entry = &rateLimiterEntry{
			limiter:    rate.NewLimiter(rate.Limit(rl.config.RPS), rl.config.Burst),
			lastAccess: time.Now(),
		}
		rl.limiters[ip] = entry
	} else {
		entry.lastAccess = time.Now()
	}

	return entry.limiter.Allow()
}

// cleanupLoop periodically removes expired rate limiter entries
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanup removes entries that haven't been accessed recently
func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-rl.config.EntryTTL)
	for ip, entry := range rl.limiters {
		if entry.lastAccess.Before(cutoff) {
			delete(rl.limiters, ip)
		}
	}
}

// Stop stops the rate limiter's cleanup goroutine
func (rl *RateLimiter) Stop() {
	close(rl.stopCleanup)
}

// Count returns the number of tracked IPs
func (rl *RateLimiter) Count() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}
