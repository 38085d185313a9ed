package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"fincore-agent-api/internal/infrastructure/persistence/redis"
	"fincore-agent-api/internal/interfaces/http/dto"
	"fincore-agent-api/pkg/logger"
)

// RateLimiter 限流器接口
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RateLimit 按客户端 IP 与路由的每秒限流；限流器故障时放行
func RateLimit(requestsPerSecond int, limiter RateLimiter) gin.HandlerFunc {
	if limiter == nil || requestsPerSecond <= 0 {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		key := redis.BuildRateLimitKey(c.ClientIP(), route)

		allowed, err := limiter.Allow(c.Request.Context(), key, requestsPerSecond, time.Second)
		if err != nil {
			logger.Warn(c.Request.Context(), "rate limiter unavailable, allowing request", "error", err.Error())
			c.Next()
			return
		}
		if !allowed {
			dto.TooManyRequests(c)
			c.Abort()
			return
		}

		c.Next()
	}
}
