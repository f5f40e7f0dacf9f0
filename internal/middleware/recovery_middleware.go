// internal/middleware/recovery_middleware.go
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"device-link/internal/utils"
)

// RecoveryMiddleware converts a handler panic into a logged 500 with
// the request id attached, so a crashing device command can be traced
// back from the response envelope.
func RecoveryMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.Error("Panic recovered",
			zap.Any("panic", recovered),
			zap.String("path", c.Request.URL.Path),
			zap.String("method", c.Request.Method),
			zap.String("request_id", c.GetString("request_id")),
			zap.Stack("stacktrace"),
		)

		utils.ErrorResponse(c, http.StatusInternalServerError, "Internal server error", nil)
	})
}
