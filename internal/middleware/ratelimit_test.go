package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLimited(t *testing.T, cfg RateLimitConfig) (*RateLimiter, http.Handler) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	rl := NewRateLimiter(ctx, cfg)
	return rl, rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func requestFrom(addr string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/execute", nil)
	req.RemoteAddr = addr
	return req
}

func TestRateLimiter_AllowsWithinLimit(t *testing.T) {
	_, handler := newLimited(t, RateLimitConfig{RequestsPerSecond: 100, Burst: 10})

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, requestFrom("10.0.0.1:1234"))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "10", rec.Header().Get("X-RateLimit-Limit"))
	}
}

func TestRateLimiter_RejectsOverBurst(t *testing.T) {
	_, handler := newLimited(t, RateLimitConfig{RequestsPerSecond: 1, Burst: 2})

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, requestFrom("10.0.0.1:1234"))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestFrom("10.0.0.1:1234"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "rate limit exceeded", body["message"])
}

func TestRateLimiter_PerClientIsolation(t *testing.T) {
	_, handler := newLimited(t, RateLimitConfig{RequestsPerSecond: 1, Burst: 1})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestFrom("10.0.0.1:1234"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, requestFrom("10.0.0.2:1234"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimiter_IgnoresForwardedFor(t *testing.T) {
	_, handler := newLimited(t, RateLimitConfig{RequestsPerSecond: 1, Burst: 1})

	first := requestFrom("10.0.0.1:1234")
	first.Header.Set("X-Forwarded-For", "1.1.1.1")
	handler.ServeHTTP(httptest.NewRecorder(), first)

	second := requestFrom("10.0.0.1:5678")
	second.Header.Set("X-Forwarded-For", "2.2.2.2")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, second)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRateLimiter_SweepsIdleClients(t *testing.T) {
	rl, handler := newLimited(t, RateLimitConfig{RequestsPerSecond: 1, Burst: 1})
	now := time.Now()
	rl.now = func() time.Time { return now }

	handler.ServeHTTP(httptest.NewRecorder(), requestFrom("10.0.0.1:1234"))
	require.Len(t, rl.clients, 1)

	now = now.Add(limiterIdleTTL + time.Second)
	rl.sweep()
	assert.Empty(t, rl.clients)
}
