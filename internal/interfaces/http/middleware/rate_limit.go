package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/certgate/internal/application/dto"
	"github.com/turtacn/certgate/internal/domain/service"
	"github.com/turtacn/certgate/pkg/errors"
	"github.com/turtacn/certgate/pkg/logger"
)

// RateLimitMiddleware limits requests per client IP. Limiter failures let the request through.
// RateLimitMiddleware 按客户端 IP 限流，限流器故障时放行。
func RateLimitMiddleware(limiter service.RateLimitService, metrics service.Metrics, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		allowed, remaining, resetAt, err := limiter.Allow(c.Request.Context(), "ip:"+ip)
		if err != nil {
			log.Error(c.Request.Context(), "rate limiter failed", err, logger.String("client_ip", ip))
			c.Next() // Fail open
			return
		}

		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if !resetAt.IsZero() {
			c.Header("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
		}

		if !allowed {
			metrics.RecordRateLimitHit("ip")
			log.Warn(c.Request.Context(), "rate limit exceeded", logger.String("client_ip", ip))
			dto.SendError(c, errors.RateLimitExceeded())
			return
		}
		c.Next()
	}
}
