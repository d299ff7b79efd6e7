package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T) Limiter {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return Limiter{Client: client, Prefix: "rl:coupon:"}
}

func TestAllowWithinLimit(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		allowed, _, _, err := l.Allow(ctx, "cart-1", time.Minute, 3)
		require.NoError(t, err)
		require.True(t, allowed)
	}
	allowed, remaining, _, err := l.Allow(ctx, "cart-1", time.Minute, 3)
	require.NoError(t, err)
	require.False(t, allowed)
	require.Equal(t, 0, remaining)
}

func TestAllowSeparateKeys(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()
	_, _, _, err := l.Allow(ctx, "cart-1", time.Minute, 1)
	require.NoError(t, err)
	allowed, _, _, err := l.Allow(ctx, "cart-2", time.Minute, 1)
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestAllowDisabledWithoutClient(t *testing.T) {
	allowed, _, _, err := Limiter{}.Allow(context.Background(), "x", time.Minute, 5)
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestMiddlewareBlocksOverLimit(t *testing.T) {
	l := newTestLimiter(t)
	h := Handler{
		Limiter: l,
		Config: Config{
			Key:    func(r *http.Request) string { return r.Header.Get("X-Cart-ID") },
			Window: time.Minute,
			Max:    1,
		},
	}
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	wrapped := h.Middleware(next)

	req := httptest.NewRequest(http.MethodPost, "/carts/1/apply-coupon", nil)
	req.Header.Set("X-Cart-ID", "cart-1")

	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))
}
