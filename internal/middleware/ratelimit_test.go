package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"widget-backend/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newRouter(rl *RateLimiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(rl.Middleware())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return r
}

func TestMiddlewareRejectsAfterBurst(t *testing.T) {
	r := newRouter(NewRateLimiter(config.RateLimitConfig{RequestsPerMinute: 1, Burst: 2}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestLimiterIsPerClient(t *testing.T) {
	rl := NewRateLimiter(config.RateLimitConfig{RequestsPerMinute: 1, Burst: 1})

	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"))
}

func TestStaleLimitersAreDropped(t *testing.T) {
	rl := NewRateLimiter(config.RateLimitConfig{RequestsPerMinute: 60, Burst: 1})
	now := time.Now()

	rl.get("old", now)
	rl.get("new", now.Add(2*staleLimiterAge))

	assert.Len(t, rl.clients, 1)
	assert.Contains(t, rl.clients, "new")
}

func TestNonPositiveRateDisablesLimiting(t *testing.T) {
	for _, rpm := range []int{0, -5} {
		rl := NewRateLimiter(config.RateLimitConfig{RequestsPerMinute: rpm, Burst: 1})
		for i := 0; i < 10; i++ {
			assert.True(t, rl.Allow("a"), "rpm=%d request %d", rpm, i)
		}
	}
}
