// internal/pkg/session/rate_limiter.go
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RateLimiter struct {
	client *redis.Client
}

func NewRateLimiter(client *redis.Client) *RateLimiter {
	return &RateLimiter{client: client}
}

// CheckLoginAttempt limits OAuth callback sign-ins per IP+device. Allows up
// to 10 attempts per 15 minutes; a legitimate user retrying a stuck handoff
// stays well under that.
func (r *RateLimiter) CheckLoginAttempt(ctx context.Context, ip, deviceID string) (bool, int64, error) {
	key := fmt.Sprintf("ratelimit:login:%s:%s", ip, deviceID)

	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, fmt.Errorf("failed to increment login attempt: %w", err)
	}

	// Set expiration on first attempt
	if count == 1 {
		r.client.Expire(ctx, key, 15*time.Minute)
	}

	maxAttempts := int64(10)
	remaining := maxAttempts - count
	if remaining < 0 {
		remaining = 0
	}

	return count <= maxAttempts, remaining, nil
}

// ResetLoginAttempts resets the login attempt counter
func (r *RateLimiter) ResetLoginAttempts(ctx context.Context, ip, deviceID string) error {
	key := fmt.Sprintf("ratelimit:login:%s:%s", ip, deviceID)
	return r.client.Del(ctx, key).Err()
}

// CheckAPIRateLimit checks general API rate limiting. Used on the pending
// lookup endpoint so a misbehaving poller cannot hammer the store.
func (r *RateLimiter) CheckAPIRateLimit(ctx context.Context, subject, endpoint string, maxRequests int64, window time.Duration) (bool, error) {
	key := fmt.Sprintf("ratelimit:api:%s:%s", subject, endpoint)

	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment API rate limit: %w", err)
	}

	if count == 1 {
		r.client.Expire(ctx, key, window)
	}

	return count <= maxRequests, nil
}
