package app

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Fixed-window counter: the first INCR in a window arms the expiry, PTTL
// tells the caller how long until the window resets.
var rateLimitScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  ttl = tonumber(ARGV[1])
end
return {current, ttl}
`)

// RateLimiter caps how many transactions a user may create within a window.
type RateLimiter interface {
	ConsumeRateLimit(ctx context.Context, userID uuid.UUID, limit int, window time.Duration) (count int, retryAfterSeconds int, err error)
}

// RedisRateLimiter implements the per-user transaction rate limit on Redis,
// so the limit holds across service replicas.
type RedisRateLimiter struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisRateLimiter(client redis.UniversalClient, prefix string) *RedisRateLimiter {
	p := strings.TrimSpace(prefix)
	if p == "" {
		p = "ledger:rate_limit"
	}
	return &RedisRateLimiter{
		client: client,
		prefix: strings.TrimSuffix(p, ":"),
	}
}

// ConsumeRateLimit counts one transaction attempt for the user and returns
// the attempts seen in the current window plus the seconds until it resets.
// A limiter without a client, or a non-positive limit or window, counts
// nothing and never blocks.
func (r *RedisRateLimiter) ConsumeRateLimit(ctx context.Context, userID uuid.UUID, limit int, window time.Duration) (count int, retryAfterSeconds int, err error) {
	if r == nil || r.client == nil || limit <= 0 || window <= 0 {
		return 0, 0, nil
	}

	windowMs := window.Milliseconds()
	if windowMs < 1000 {
		windowMs = 1000
	}

	key := fmt.Sprintf("%s:transactions:%s", r.prefix, userID)
	raw, err := rateLimitScript.Run(ctx, r.client, []string{key}, windowMs).Result()
	if err != nil {
		return 0, 0, err
	}

	values, ok := raw.([]interface{})
	if !ok || len(values) != 2 {
		return 0, 0, fmt.Errorf("unexpected redis limiter response shape: %T", raw)
	}
	current, ok := values[0].(int64)
	if !ok {
		return 0, 0, fmt.Errorf("unexpected redis limiter count type: %T", values[0])
	}
	ttlMs, ok := values[1].(int64)
	if !ok {
		return int(current), 0, fmt.Errorf("unexpected redis limiter ttl type: %T", values[1])
	}
	if ttlMs < 0 {
		ttlMs = windowMs
	}

	retryAfter := int(math.Ceil(float64(ttlMs) / 1000.0))
	if retryAfter < 1 {
		retryAfter = 1
	}
	return int(current), retryAfter, nil
}
