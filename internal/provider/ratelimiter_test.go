package provider

import (
	"context"
	"testing"
	"time"
)

func TestRateLimiterAllowsUpToBurst(t *testing.T) {
	t.Parallel()

	limiter := NewRateLimiter(3, time.Hour)
	for i := 0; i < 3; i++ {
		if !limiter.Allow() {
			t.Fatalf("call %d should be allowed", i)
		}
	}
	if limiter.Allow() {
		t.Fatal("bucket should be empty after burst")
	}
}

func TestRateLimiterRefills(t *testing.T) {
	t.Parallel()

	limiter := NewRateLimiter(1, 10*time.Millisecond)
	if !limiter.Allow() {
		t.Fatal("first call should be allowed")
	}
	time.Sleep(25 * time.Millisecond)
	if !limiter.Allow() {
		t.Fatal("token should have refilled")
	}
}

func TestRateLimiterWaitRespectsContext(t *testing.T) {
	t.Parallel()

	limiter := NewRateLimiter(1, time.Hour)
	if err := limiter.Wait(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := limiter.Wait(ctx); err == nil {
		t.Fatal("expected context deadline error while bucket is empty")
	}
}
