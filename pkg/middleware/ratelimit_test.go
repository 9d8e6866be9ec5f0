package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupLimiter(t *testing.T, limit int) *RateLimiter {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRateLimiter(client, &RateLimitConfig{
		RequestsPerWindow: limit,
		WindowDuration:    time.Minute,
	}, "test")
}

func TestRateLimiterAllow(t *testing.T) {
	ctx := context.Background()

	t.Run("allows up to the limit", func(t *testing.T) {
		rl := setupLimiter(t, 3)
		for i := 0; i < 3; i++ {
			allowed, err := rl.Allow(ctx, "caller")
			require.NoError(t, err)
			assert.True(t, allowed)
		}
		allowed, err := rl.Allow(ctx, "caller")
		require.NoError(t, err)
		assert.False(t, allowed)
	})

	t.Run("keys are independent", func(t *testing.T) {
		rl := setupLimiter(t, 1)
		allowed, err := rl.Allow(ctx, "a")
		require.NoError(t, err)
		assert.True(t, allowed)

		allowed, err = rl.Allow(ctx, "b")
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("reset clears the window", func(t *testing.T) {
		rl := setupLimiter(t, 1)
		_, err := rl.Allow(ctx, "caller")
		require.NoError(t, err)

		require.NoError(t, rl.Reset(ctx, "caller"))
		allowed, err := rl.Allow(ctx, "caller")
		require.NoError(t, err)
		assert.True(t, allowed)
	})
}

func TestRateLimiterHandler(t *testing.T) {
	rl := setupLimiter(t, 1)
	handler := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}
