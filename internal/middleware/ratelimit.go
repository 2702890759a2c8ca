package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/resource-api/internal/config"
	"github.com/iliyamo/resource-api/internal/logging"
)

// gcraScript is a token bucket expressed as GCRA: the key holds the
// theoretical arrival time (ms) of the next request.  A request is let
// through while that time is less than burst*period ahead of now.
//
// ARGV: now_ms, period_ms, burst, ttl_ms.
// Returns {allowed, remaining, retry_after_ms}.
var gcraScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local period = tonumber(ARGV[2])
local burst = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local tat = tonumber(redis.call('GET', KEYS[1])) or now
if tat < now then
  tat = now
end

local window = burst * period
if tat + period - window > now then
  return {0, 0, tat + period - window - now}
end

tat = tat + period
redis.call('SET', KEYS[1], tat, 'PX', math.max(ttl, tat - now))
return {1, math.floor((now + window - tat) / period), 0}
`)

// NewTokenBucket limits requests per key to cfg.Capacity in a burst,
// refilled at cfg.RefillTokens per cfg.RefillInterval.  It is a no-op when
// disabled or without Redis, and lets requests through when Redis fails.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	period := cfg.RefillInterval.Milliseconds() / int64(max(cfg.RefillTokens, 1))
	if period < 1 {
		period = 1
	}
	burst := max(cfg.Capacity, 1)
	limit := strconv.Itoa(burst)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			key := rateKey(cfg, c)
			res, err := gcraScript.Run(ctx, rdb, []string{key},
				time.Now().UnixMilli(), period, burst, cfg.TTL.Milliseconds()).Int64Slice()
			if err != nil || len(res) != 3 {
				logging.FromContext(ctx).Warn("rate_limit_unavailable", "key", key, "error", err)
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(res[1], 10))
			if res[0] == 1 {
				return next(c)
			}

			secs := (res[2] + 999) / 1000
			h.Set("Retry-After", strconv.FormatInt(secs, 10))
			logging.FromContext(ctx).Info("rate_limited", "key", key, "retry_ms", res[2])
			return c.JSON(http.StatusTooManyRequests, echo.Map{
				"success":     false,
				"message":     "rate limit exceeded",
				"retry_after": secs,
			})
		}
	}
}

// rateKey buckets callers by client IP, optionally narrowed to the route
// and to the authenticated user.
func rateKey(cfg config.RateLimitConfig, c echo.Context) string {
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	key := cfg.Prefix + ":ip:" + ip
	switch strings.ToLower(cfg.KeyStrategy) {
	case "ip":
		return key
	case "ip_route":
	default:
		key += ":user:" + userID(c)
	}
	return key + ":route:" + c.Request().Method + " " + c.Path()
}
