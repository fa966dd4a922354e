package services

import (
	"context"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/hitcklife/yoryor-last-sub008/internal/core/domain"
)

// Retry-after is never negative and never exceeds the configured window,
// whatever the elapsed time inside the window.
func TestProperty_RetryAfterBounds(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		maxAttempts := rapid.IntRange(1, 20).Draw(t, "max_attempts")
		windowSeconds := rapid.IntRange(1, 3600).Draw(t, "window_seconds")
		elapsedMillis := rapid.IntRange(0, windowSeconds*1000-1).Draw(t, "elapsed_ms")
		ordering := rapid.SampledFrom(orderings).Draw(t, "ordering")

		clock := newFakeClock()
		service, err := NewRateLimiterService(newMockStorage(clock), Config{Ordering: ordering, Now: clock.Now})
		if err != nil {
			t.Fatalf("failed to create rate limiter service: %v", err)
		}

		rule := domain.RateLimitRule{Operation: "op", MaxAttempts: maxAttempts, Window: time.Duration(windowSeconds) * time.Second}
		ctx := context.Background()

		for i := 0; i < maxAttempts; i++ {
			if _, err := service.Decide(ctx, rule, "k"); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}
		clock.Advance(time.Duration(elapsedMillis) * time.Millisecond)

		decision, err := service.Decide(ctx, rule, "k")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if decision.Allowed {
			t.Fatalf("request %d inside the window must be denied", maxAttempts+1)
		}
		if decision.RetryAfter < 0 || decision.RetryAfter > rule.Window {
			t.Fatalf("retry after %s outside [0, %s]", decision.RetryAfter, rule.Window)
		}
	})
}

// On the k-th allowed request remaining == N - k.
func TestProperty_RemainingArithmetic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		maxAttempts := rapid.IntRange(1, 50).Draw(t, "max_attempts")
		ordering := rapid.SampledFrom(orderings).Draw(t, "ordering")

		clock := newFakeClock()
		service, err := NewRateLimiterService(newMockStorage(clock), Config{Ordering: ordering, Now: clock.Now})
		if err != nil {
			t.Fatalf("failed to create rate limiter service: %v", err)
		}
		rule := domain.RateLimitRule{Operation: "op", MaxAttempts: maxAttempts, Window: time.Minute}

		for k := 1; k <= maxAttempts; k++ {
			decision, err := service.Decide(context.Background(), rule, "k")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !decision.Allowed {
				t.Fatalf("request %d of %d must be allowed", k, maxAttempts)
			}
			if decision.Remaining != maxAttempts-k {
				t.Fatalf("request %d: expected remaining %d, got %d", k, maxAttempts-k, decision.Remaining)
			}
			if decision.Limit != maxAttempts {
				t.Fatalf("expected limit %d, got %d", maxAttempts, decision.Limit)
			}
		}
	})
}
