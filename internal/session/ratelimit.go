// internal/session/ratelimit.go
package session

import (
	"context"
	"sync"
	"time"

	"device-link/internal/config"
)

// rateLimiter spaces outbound commands to protect constrained firmware.
// Excess calls queue oldest-first up to MaxWaiters; beyond that they are
// rejected with ErrRateLimited. Disabled, acquire is a no-op.
type rateLimiter struct {
	mutex      sync.Mutex
	enabled    bool
	interval   time.Duration
	next       time.Time
	waiters    int
	maxWaiters int
}

// newRateLimiter builds a limiter from config
func newRateLimiter(cfg config.RateLimitConfig) *rateLimiter {
	rl := &rateLimiter{
		enabled:    cfg.Enabled && cfg.MaxPerSecond > 0,
		maxWaiters: cfg.MaxWaiters,
	}
	if rl.enabled {
		rl.interval = time.Second / time.Duration(cfg.MaxPerSecond)
	}
	if rl.maxWaiters <= 0 {
		rl.maxWaiters = 32
	}
	return rl
}

// acquire blocks until the caller may dispatch. Slots are handed out in
// arrival order; a full queue or an expired context rejects the call.
func (rl *rateLimiter) acquire(ctx context.Context) error {
	if !rl.enabled {
		return nil
	}

	rl.mutex.Lock()
	now := time.Now()
	if rl.next.Before(now) {
		rl.next = now
	}
	wait := rl.next.Sub(now)
	if wait > 0 {
		if rl.waiters >= rl.maxWaiters {
			rl.mutex.Unlock()
			return ErrRateLimited
		}
		rl.waiters++
	}
	rl.next = rl.next.Add(rl.interval)
	rl.mutex.Unlock()

	if wait == 0 {
		return nil
	}

	defer func() {
		rl.mutex.Lock()
		rl.waiters--
		rl.mutex.Unlock()
	}()

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
