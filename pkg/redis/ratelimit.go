package redis

import (
	"context"
	"errors"
	"time"
)

// RateLimiter exposes the fixed-window limiter used by the session endpoint.
type RateLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// FixedWindowAllow counts a hit in the window containing now. Windows are
// aligned to the epoch, so every instance shares the same counter key.
func (c *Client) FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error) {
	if c.store == nil {
		return false, 0, errNotInitialized
	}
	if window <= 0 {
		return false, 0, errors.New("rate limit window must be positive")
	}

	start := c.clock().Truncate(window)
	key := c.RateLimitKey(scope, start.Unix())
	count, err := c.store.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, err
	}
	if count == 1 {
		// the key outlives its window slightly so late hits still see it
		if err := c.store.Expire(ctx, key, window+time.Second).Err(); err != nil {
			return false, count, err
		}
	}
	return count <= limit, count, nil
}
