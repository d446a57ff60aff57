package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

type stubRateLimiter struct {
	count      int
	retryAfter int
	err        error
}

func (s *stubRateLimiter) ConsumeRateLimit(ctx context.Context, userID uuid.UUID, limit int, window time.Duration) (int, int, error) {
	return s.count, s.retryAfter, s.err
}

func TestCreateTransactionHandlerRateLimited(t *testing.T) {
	h := NewLedgerHandlers(nil)
	h.SetRateLimiter(&stubRateLimiter{count: 61, retryAfter: 42}, 60)

	req := httptest.NewRequest(http.MethodPost, "/transactions", strings.NewReader(`{}`))
	req = req.WithContext(context.WithValue(req.Context(), userIDKey, uuid.New()))
	rec := httptest.NewRecorder()

	h.CreateTransactionHandler(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "42" {
		t.Fatalf("expected Retry-After 42, got %q", got)
	}
}

func TestCreateTransactionHandlerAllowsUnderLimit(t *testing.T) {
	h := NewLedgerHandlers(nil)
	h.SetRateLimiter(&stubRateLimiter{count: 3, retryAfter: 10}, 60)

	req := httptest.NewRequest(http.MethodPost, "/transactions", strings.NewReader(`not json`))
	req = req.WithContext(context.WithValue(req.Context(), userIDKey, uuid.New()))
	rec := httptest.NewRecorder()

	// The malformed body stops the request right after the limiter check,
	// so an under-limit call must reach body parsing, not 429.
	h.CreateTransactionHandler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", rec.Code)
	}
}
