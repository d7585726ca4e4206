package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Eursukkul/studio-ledger/config"
	"github.com/Eursukkul/studio-ledger/internal/dto"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// fixed window: first hit in a window sets the expiry
var windowScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return {n, redis.call('PTTL', KEYS[1])}
`)

// RateLimit caps requests per client and route within cfg.Window. Redis
// failures let the request through.
func RateLimit(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil || cfg.Requests <= 0 || cfg.Window <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := rateKey(c)
			vals, err := windowScript.Run(c.Request().Context(), rdb, []string{key}, cfg.Window.Milliseconds()).Int64Slice()
			if err != nil || len(vals) != 2 {
				logrus.WithError(err).WithField("key", key).Warn("rate limiter unavailable")
				return next(c)
			}

			count, ttl := vals[0], time.Duration(vals[1])*time.Millisecond
			remaining := int64(cfg.Requests) - count
			if remaining < 0 {
				remaining = 0
			}
			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Requests))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

			if count > int64(cfg.Requests) {
				secs := int((ttl + time.Second - 1) / time.Second)
				if secs < 1 {
					secs = 1
				}
				h.Set("Retry-After", strconv.Itoa(secs))
				return echo.NewHTTPError(http.StatusTooManyRequests, dto.ErrorResponse{Error: "rate limit exceeded", Code: "RATE_LIMITED"})
			}
			return next(c)
		}
	}
}

func rateKey(c echo.Context) string {
	who := "ip:" + c.RealIP()
	if id, ok := UserID(c); ok {
		who = "user:" + strconv.FormatUint(uint64(id), 10)
	}
	return "ratelimit:" + who + ":" + c.Request().Method + " " + c.Path()
}
