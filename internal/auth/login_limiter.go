package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	loginMaxAttempts = 10
	loginCooldown    = 15 * time.Minute
)

// LoginLimiter counts failed login attempts per identifier in Redis so that
// the cap holds across API replicas. A successful login resets the counter.
// Redis outages fail open; losing the brake is preferable to locking every
// account out.
type LoginLimiter struct {
	redis *redis.Client
}

// NewLoginLimiter wraps the provided Redis client.
func NewLoginLimiter(redisClient *redis.Client) *LoginLimiter {
	return &LoginLimiter{redis: redisClient}
}

func (l *LoginLimiter) key(identifier string) string {
	return "login:att:" + strings.ToLower(strings.TrimSpace(identifier))
}

// Check returns ErrRateLimited once the identifier has exhausted its failed
// attempts for the current window.
func (l *LoginLimiter) Check(ctx context.Context, identifier string) error {
	if l == nil || l.redis == nil {
		return nil
	}
	count, err := l.redis.Get(ctx, l.key(identifier)).Int64()
	if err != nil {
		// redis.Nil means no failures recorded; anything else fails open.
		return nil
	}
	if count >= loginMaxAttempts {
		return fmt.Errorf("%w: try again later", ErrRateLimited)
	}
	return nil
}

// RecordFailure increments the counter and starts the cooldown window on the
// first failure.
func (l *LoginLimiter) RecordFailure(ctx context.Context, identifier string) error {
	if l == nil || l.redis == nil {
		return nil
	}
	count, err := l.redis.Incr(ctx, l.key(identifier)).Result()
	if err != nil {
		return nil
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, l.key(identifier), loginCooldown).Err(); err != nil {
			return nil
		}
	}
	if count >= loginMaxAttempts {
		return fmt.Errorf("%w: try again later", ErrRateLimited)
	}
	return nil
}

// Reset clears the counter after a successful login.
func (l *LoginLimiter) Reset(ctx context.Context, identifier string) error {
	if l == nil || l.redis == nil {
		return nil
	}
	if err := l.redis.Del(ctx, l.key(identifier)).Err(); err != nil {
		return nil
	}
	return nil
}
