// internal/middleware/logging_middleware.go
package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"device-link/internal/utils"
)

// LoggingMiddleware logs one line per completed request. WebSocket
// upgrades under /ws are skipped; the feed logs its own client
// lifecycle and a multi-hour connection duration is not a useful
// request metric.
func LoggingMiddleware(logger *utils.ServiceLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		c.Next()

		if strings.HasPrefix(c.Request.URL.Path, "/ws/") {
			return
		}

		logger.LogAPIRequest(
			c.Request.Method,
			c.Request.URL.Path,
			c.Request.UserAgent(),
			c.ClientIP(),
			c.Writer.Status(),
			time.Since(startTime),
		)
	}
}
