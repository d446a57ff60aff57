package app

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestRedisRateLimiterDisabledWithoutClient(t *testing.T) {
	limiter := NewRedisRateLimiter(nil, "")

	count, retryAfter, err := limiter.ConsumeRateLimit(context.Background(), uuid.New(), 60, time.Minute)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if count != 0 || retryAfter != 0 {
		t.Fatalf("expected limiter to count nothing without a client, got count=%d retryAfter=%d", count, retryAfter)
	}
}

func TestRedisRateLimiterIgnoresNonPositiveLimit(t *testing.T) {
	limiter := NewRedisRateLimiter(nil, "ledger:rate_limit")

	for _, limit := range []int{0, -1} {
		count, retryAfter, err := limiter.ConsumeRateLimit(context.Background(), uuid.New(), limit, time.Minute)
		if err != nil || count != 0 || retryAfter != 0 {
			t.Fatalf("limit %d: expected no-op, got count=%d retryAfter=%d err=%v", limit, count, retryAfter, err)
		}
	}
}
