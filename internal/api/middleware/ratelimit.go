package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/576576/hadesstar-bot/pkg/logger"
	"github.com/576576/hadesstar-bot/pkg/ratelimit"
	"github.com/gin-gonic/gin"
)

// DefaultKeyFunc 인증된 플레이어면 플레이어 ID, 아니면 IP
func DefaultKeyFunc(c *gin.Context) string {
	if playerID := c.GetString(PlayerIDKey); playerID != "" {
		return "player:" + playerID
	}
	return "ip:" + c.ClientIP()
}

// RateLimit 플레이어별 명령 제한. limiter 오류 시에는 요청을 통과시킨다 (fail-open).
func RateLimit(limiter ratelimit.Limiter, keyFunc func(*gin.Context) string) gin.HandlerFunc {
	if keyFunc == nil {
		keyFunc = DefaultKeyFunc
	}

	return func(c *gin.Context) {
		key := keyFunc(c)

		decision, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			logger.Warn("Rate limit check failed", "key", key, "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(decision.ResetTime.Unix(), 10))

		if !decision.Allowed {
			retryAfter := int(time.Until(decision.ResetTime).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))

			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"message":     fmt.Sprintf("Too many requests. Limit: %d per minute", decision.Limit),
				"retry_after": retryAfter,
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
