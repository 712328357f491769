package middleware

import (
	"net/http"
	"sync"
	"time"

	"widget-backend/internal/config"
	"widget-backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const staleLimiterAge = 10 * time.Minute

type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter 按客户端 IP 限流，长时间未访问的限流器会被清理
type RateLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	clients  map[string]*clientLimiter
	lastScan time.Time
}

// NewRateLimiter 的 requests_per_minute 不大于 0 时放行所有请求
func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	// 非正数视为不限流，避免令牌桶耗尽后永久拒绝
	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Limit(float64(cfg.RequestsPerMinute) / 60)
	} else {
		logger.Warnf("rate_limit.requests_per_minute is %d, rate limiting disabled", cfg.RequestsPerMinute)
	}
	return &RateLimiter{
		limit:    limit,
		burst:    burst,
		clients:  make(map[string]*clientLimiter),
		lastScan: time.Now(),
	}
}

func (r *RateLimiter) Allow(clientIP string) bool {
	return r.get(clientIP, time.Now()).Allow()
}

func (r *RateLimiter) get(clientIP string, now time.Time) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	if now.Sub(r.lastScan) > staleLimiterAge {
		for ip, c := range r.clients {
			if now.Sub(c.lastAccess) > staleLimiterAge {
				delete(r.clients, ip)
			}
		}
		r.lastScan = now
	}

	c, ok := r.clients[clientIP]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(r.limit, r.burst)}
		r.clients[clientIP] = c
	}
	c.lastAccess = now
	return c.limiter
}

// Middleware 超出限额时返回 429
func (r *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !r.Allow(c.ClientIP()) {
			logger.Warnf("Rate limit exceeded for %s %s", c.ClientIP(), c.FullPath())
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
