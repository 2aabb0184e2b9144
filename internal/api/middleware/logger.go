package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RequestLogger 요청 로그. 5xx 는 Error, 4xx 는 Warn, 나머지는 Info.
// skip 경로(헬스체크, 메트릭 스크랩)는 성공하면 남기지 않는다.
func RequestLogger(log *zap.Logger, skip ...string) gin.HandlerFunc {
	quiet := make(map[string]struct{}, len(skip))
	for _, p := range skip {
		quiet[p] = struct{}{}
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		if _, ok := quiet[path]; ok && status < 400 {
			return
		}

		level := zapcore.InfoLevel
		switch {
		case status >= 500:
			level = zapcore.ErrorLevel
		case status >= 400:
			level = zapcore.WarnLevel
		}

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		}
		if playerID := c.GetString(PlayerIDKey); playerID != "" {
			fields = append(fields, zap.String("playerId", playerID))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		log.Check(level, "HTTP request").Write(fields...)
	}
}
