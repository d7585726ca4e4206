package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Eursukkul/studio-ledger/config"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimit_DisabledPassesThrough(t *testing.T) {
	mw := RateLimit(config.RateLimitConfig{Enabled: false, Requests: 1, Window: time.Minute}, nil)
	c, rec := newAuthContext("")

	for i := 0; i < 3; i++ {
		require.NoError(t, mw(okHandler)(c))
	}
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit_FailsOpenWithoutRedis(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	mw := RateLimit(config.RateLimitConfig{Enabled: true, Requests: 1, Window: time.Minute}, rdb)

	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/discount/validate", nil), rec)

	require.NoError(t, mw(okHandler)(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/discount/validate", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.9")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/discount/validate")

	assert.Equal(t, "ratelimit:ip:10.0.0.9:POST /discount/validate", rateKey(c))

	c.Set(ctxUserID, uint(12))
	assert.Equal(t, "ratelimit:user:12:POST /discount/validate", rateKey(c))
}
