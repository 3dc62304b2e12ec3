package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/mintgate/mintgate/internal/config"
)

func RateLimitMiddleware(cfg *config.Config) gin.HandlerFunc {
	rps := 50.0
	burst := 100
	if cfg != nil && cfg.RateLimit.RequestsPerSecond > 0 {
		rps = cfg.RateLimit.RequestsPerSecond
		if cfg.RateLimit.Burst > 0 {
			burst = cfg.RateLimit.Burst
		}
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)

	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": "1s",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
