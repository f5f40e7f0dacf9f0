// internal/session/ratelimit_test.go
package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"device-link/internal/config"
)

func TestRateLimiterDisabledIsNoop(t *testing.T) {
	rl := newRateLimiter(config.RateLimitConfig{Enabled: false})

	start := time.Now()
	for i := 0; i < 100; i++ {
		if err := rl.acquire(context.Background()); err != nil {
			t.Fatalf("acquire failed: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("disabled limiter blocked for %v", elapsed)
	}
}

func TestRateLimiterFirstCallImmediate(t *testing.T) {
	rl := newRateLimiter(config.RateLimitConfig{Enabled: true, MaxPerSecond: 1})

	start := time.Now()
	if err := rl.acquire(context.Background()); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("first acquire waited %v", elapsed)
	}
}

func TestRateLimiterSpacing(t *testing.T) {
	rl := newRateLimiter(config.RateLimitConfig{Enabled: true, MaxPerSecond: 100, MaxWaiters: 10})

	start := time.Now()
	for i := 0; i < 5; i++ {
		if err := rl.acquire(context.Background()); err != nil {
			t.Fatalf("acquire %d failed: %v", i, err)
		}
	}
	// 100/sec means 10ms spacing: 5 sequential calls need at least 40ms.
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("5 acquires finished in %v", elapsed)
	}
}

func TestRateLimiterQueueFull(t *testing.T) {
	rl := newRateLimiter(config.RateLimitConfig{Enabled: true, MaxPerSecond: 1, MaxWaiters: 1})

	if err := rl.acquire(context.Background()); err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}

	// Second occupies the single waiter slot.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- rl.acquire(ctx) }()
	time.Sleep(10 * time.Millisecond)

	// Third finds the queue full and must be rejected, not queued.
	if err := rl.acquire(context.Background()); !errors.Is(err, ErrRateLimited) {
		t.Errorf("err = %v, want ErrRateLimited", err)
	}

	if err := <-done; !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("queued waiter err = %v, want DeadlineExceeded", err)
	}
}

func TestRateLimiterContextCancel(t *testing.T) {
	rl := newRateLimiter(config.RateLimitConfig{Enabled: true, MaxPerSecond: 1, MaxWaiters: 5})

	if err := rl.acquire(context.Background()); err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rl.acquire(ctx) }()
	time.Sleep(10 * time.Millisecond)
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
