package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Logger returns a zap-based request logging middleware. Server errors are
// logged at error level, the websocket endpoint and health checks at debug.
func Logger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("client_ip", c.ClientIP()),
		}
		if login, ok := c.Get(ContextAdminLogin); ok {
			fields = append(fields, zap.Any("admin", login))
		}
		switch {
		case status >= 500:
			logger.Error("request", fields...)
		case path == "/health" || path == "/ws":
			logger.Debug("request", fields...)
		default:
			logger.Info("request", fields...)
		}
	}
}
