package middleware

import (
	"context"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cliora-storefront/internal/config"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func cacheCfg() config.CacheConfig {
	return config.CacheConfig{
		Enabled: true, Methods: []string{"get"}, TTL: time.Minute,
		KeyStrategy: "route_query", Prefix: "cache", MaxBodyBytes: 1 << 20,
	}
}

func TestCacheHitAndPurge(t *testing.T) {
	_, rdb := newRedis(t)
	calls := 0
	e := echo.New()
	e.GET("/products/:id", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusOK, echo.Map{"id": c.Param("id"), "n": calls})
	}, NewRedisCache(cacheCfg(), rdb))

	first := do(e, http.MethodGet, "/products/1?x=1", "")
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
	second := do(e, http.MethodGet, "/products/1?x=1", "")
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, echo.MIMEApplicationJSON, second.Header().Get(echo.HeaderContentType))
	assert.Equal(t, 1, calls)

	other := do(e, http.MethodGet, "/products/2?x=1", "")
	assert.Equal(t, "MISS", other.Header().Get("X-Cache"))
	assert.Equal(t, 2, calls)

	require.NoError(t, PurgeCache(rdb, "cache")(context.Background()))
	again := do(e, http.MethodGet, "/products/1?x=1", "")
	assert.Equal(t, "MISS", again.Header().Get("X-Cache"))
	assert.Equal(t, 3, calls)
}

func TestCacheSkipsErrorsAndOtherMethods(t *testing.T) {
	_, rdb := newRedis(t)
	calls := 0
	e := echo.New()
	mw := NewRedisCache(cacheCfg(), rdb)
	e.GET("/missing", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusNotFound, echo.Map{"message": "Not found"})
	}, mw)
	e.POST("/write", func(c echo.Context) error {
		calls++
		return c.NoContent(http.StatusOK)
	}, mw)

	do(e, http.MethodGet, "/missing", "")
	do(e, http.MethodGet, "/missing", "")
	do(e, http.MethodPost, "/write", "")
	do(e, http.MethodPost, "/write", "")
	assert.Equal(t, 4, calls)
}

func TestCacheDisabledWithoutRedis(t *testing.T) {
	calls := 0
	e := echo.New()
	e.GET("/", func(c echo.Context) error { calls++; return c.NoContent(http.StatusOK) }, NewRedisCache(cacheCfg(), nil))
	do(e, http.MethodGet, "/", "")
	do(e, http.MethodGet, "/", "")
	assert.Equal(t, 2, calls)
	assert.NoError(t, PurgeCache(nil, "cache")(context.Background()))
}

func TestTokenBucket(t *testing.T) {
	_, rdb := newRedis(t)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := config.RateLimitConfig{
		Enabled: true, Capacity: 2, RefillTokens: 1, RefillInterval: 3 * time.Second,
		TTL: time.Minute, KeyStrategy: "ip_route", Prefix: "rl",
	}
	e := echo.New()
	e.POST("/api/auth/login", func(c echo.Context) error { return c.NoContent(http.StatusOK) },
		NewTokenBucket(cfg, rdb, func() time.Time { return now }))

	assert.Equal(t, http.StatusOK, do(e, http.MethodPost, "/api/auth/login", "").Code)
	rec := do(e, http.MethodPost, "/api/auth/login", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = do(e, http.MethodPost, "/api/auth/login", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	retry, err := strconv.Atoi(rec.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.Equal(t, 3, retry)

	now = now.Add(3 * time.Second)
	assert.Equal(t, http.StatusOK, do(e, http.MethodPost, "/api/auth/login", "").Code)
}

func TestTokenBucketFailsOpen(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	cfg := config.RateLimitConfig{Enabled: true, Capacity: 1, RefillTokens: 1, RefillInterval: time.Second, TTL: time.Minute, Prefix: "rl"}
	e := echo.New()
	e.GET("/", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, NewTokenBucket(cfg, rdb, nil))
	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/", "").Code)
	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/", "").Code)
}
