package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T) (*LoginLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewLoginLimiter(client), mr
}

func TestLoginLimiterBlocksAfterMaxFailures(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	ctx := context.Background()

	if err := limiter.Check(ctx, "alice"); err != nil {
		t.Fatalf("Check on fresh identifier returned error: %v", err)
	}
	for i := 0; i < loginMaxAttempts-1; i++ {
		if err := limiter.RecordFailure(ctx, "alice"); err != nil {
			t.Fatalf("RecordFailure %d returned error: %v", i+1, err)
		}
	}
	if err := limiter.RecordFailure(ctx, "alice"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited on attempt %d, got %v", loginMaxAttempts, err)
	}
	if err := limiter.Check(ctx, "alice"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected Check to report rate limit, got %v", err)
	}
	// Other identifiers are unaffected.
	if err := limiter.Check(ctx, "bob"); err != nil {
		t.Fatalf("Check for other identifier returned error: %v", err)
	}
}

func TestLoginLimiterNormalizesIdentifier(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	ctx := context.Background()
	for i := 0; i < loginMaxAttempts; i++ {
		_ = limiter.RecordFailure(ctx, "Alice")
	}
	if err := limiter.Check(ctx, "  alice "); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected case and whitespace variants to share a counter, got %v", err)
	}
}

func TestLoginLimiterResetAndCooldown(t *testing.T) {
	limiter, mr := newTestLimiter(t)
	ctx := context.Background()
	for i := 0; i < loginMaxAttempts; i++ {
		_ = limiter.RecordFailure(ctx, "alice")
	}
	if err := limiter.Reset(ctx, "alice"); err != nil {
		t.Fatalf("Reset returned error: %v", err)
	}
	if err := limiter.Check(ctx, "alice"); err != nil {
		t.Fatalf("expected Check to pass after reset, got %v", err)
	}

	for i := 0; i < loginMaxAttempts; i++ {
		_ = limiter.RecordFailure(ctx, "alice")
	}
	mr.FastForward(loginCooldown)
	if err := limiter.Check(ctx, "alice"); err != nil {
		t.Fatalf("expected Check to pass after cooldown, got %v", err)
	}
}

func TestLoginLimiterFailsOpenWithoutRedis(t *testing.T) {
	var limiter *LoginLimiter
	ctx := context.Background()
	if err := limiter.Check(ctx, "alice"); err != nil {
		t.Fatalf("nil limiter Check returned error: %v", err)
	}
	if err := limiter.RecordFailure(ctx, "alice"); err != nil {
		t.Fatalf("nil limiter RecordFailure returned error: %v", err)
	}
	if err := limiter.Reset(ctx, "alice"); err != nil {
		t.Fatalf("nil limiter Reset returned error: %v", err)
	}
}
