package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func TestAuthMiddleware(t *testing.T) {
	userID := uuid.New()
	var gotUserID uuid.UUID
	var called bool
	handler := AuthMiddleware(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		gotUserID, _ = GetUserID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{
			name:       "valid token",
			authHeader: "Bearer " + signToken(t, testSecret, jwt.MapClaims{"sub": userID.String(), "exp": time.Now().Add(time.Hour).Unix()}),
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing header",
			authHeader: "",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "not a bearer token",
			authHeader: "Basic abc123",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "wrong signing secret",
			authHeader: "Bearer " + signToken(t, "other-secret", jwt.MapClaims{"sub": userID.String()}),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "expired token",
			authHeader: "Bearer " + signToken(t, testSecret, jwt.MapClaims{"sub": userID.String(), "exp": time.Now().Add(-time.Hour).Unix()}),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "sub is not a uuid",
			authHeader: "Bearer " + signToken(t, testSecret, jwt.MapClaims{"sub": "user-42"}),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "missing sub claim",
			authHeader: "Bearer " + signToken(t, testSecret, jwt.MapClaims{"aud": "ledger"}),
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			called = false
			req := httptest.NewRequest(http.MethodGet, "/transactions", nil)
			if tc.authHeader != "" {
				req.Header.Set("Authorization", tc.authHeader)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("expected status %d, got %d", tc.wantStatus, rec.Code)
			}
			if tc.wantStatus == http.StatusOK {
				if !called {
					t.Fatal("expected inner handler to be called")
				}
				if gotUserID != userID {
					t.Fatalf("expected user id %s on context, got %s", userID, gotUserID)
				}
			} else if called {
				t.Fatal("expected inner handler not to be called")
			}
		})
	}
}
