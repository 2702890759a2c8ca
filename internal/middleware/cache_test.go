package middleware

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/resource-api/internal/config"
)

func cacheServer(t *testing.T, cfg config.ResponseCacheConfig) (*echo.Echo, *int, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	hits := 0
	e := echo.New()
	mw := NewResponseCache(cfg, rdb, "products")
	e.GET("/products/:id", func(c echo.Context) error {
		hits++
		return c.JSON(http.StatusOK, map[string]any{"id": c.Param("id"), "n": hits})
	}, mw)
	e.GET("/missing", func(c echo.Context) error {
		hits++
		return c.JSON(http.StatusNotFound, map[string]any{"message": "nope"})
	}, mw)
	e.PUT("/products/:id", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{"ok": true})
	}, mw)
	return e, &hits, mr
}

func cacheCfg() config.ResponseCacheConfig {
	return config.ResponseCacheConfig{Enabled: true, TTL: time.Minute, Prefix: "cache", MaxBodyBytes: 1 << 20}
}

func TestResponseCacheHitAndInvalidate(t *testing.T) {
	e, hits, _ := cacheServer(t, cacheCfg())

	first := serve(e, http.MethodGet, "/products/1", "")
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
	second := serve(e, http.MethodGet, "/products/1", "")
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Contains(t, second.Header().Get(echo.HeaderContentType), "application/json")
	assert.Equal(t, 1, *hits)

	serve(e, http.MethodGet, "/products/2", "")
	assert.Equal(t, 2, *hits, "distinct ids are distinct entries")

	assert.Equal(t, http.StatusOK, serve(e, http.MethodPut, "/products/1", "").Code)
	third := serve(e, http.MethodGet, "/products/1", "")
	assert.Equal(t, "MISS", third.Header().Get("X-Cache"))
	assert.Contains(t, third.Body.String(), `"n":3`)
}

func TestResponseCacheSkipsErrorsAndLargeBodies(t *testing.T) {
	e, hits, _ := cacheServer(t, cacheCfg())
	serve(e, http.MethodGet, "/missing", "")
	serve(e, http.MethodGet, "/missing", "")
	assert.Equal(t, 2, *hits)

	cfg := cacheCfg()
	cfg.MaxBodyBytes = 8
	e, hits, _ = cacheServer(t, cfg)
	serve(e, http.MethodGet, "/products/1", "")
	rec := serve(e, http.MethodGet, "/products/1", "")
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Equal(t, 2, *hits)
}

func TestResponseCacheFallsThroughWithoutRedis(t *testing.T) {
	e, hits, mr := cacheServer(t, cacheCfg())
	mr.Close()
	for i := 0; i < 2; i++ {
		rec := serve(e, http.MethodGet, "/products/1", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Equal(t, 2, *hits)

	disabled := NewResponseCache(config.ResponseCacheConfig{}, nil, "x")
	called := false
	require.NoError(t, disabled(func(echo.Context) error { called = true; return nil })(nil))
	assert.True(t, called)
}

func TestPayloadRoundTrip(t *testing.T) {
	h := http.Header{"Content-Type": {"application/json"}}
	bs, err := encodePayload(http.StatusOK, h, []byte(`{"a":1}`))
	require.NoError(t, err)
	status, hdr, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, h, hdr)
	assert.Equal(t, `{"a":1}`, string(body))

	_, _, _, ok = decodePayload([]byte{0, 0, 0, 200, 0, 0, 0, 99})
	assert.False(t, ok)
	assert.True(t, strings.HasPrefix(generationKey(cacheCfg(), "products"), "cache:gen:"))
}
