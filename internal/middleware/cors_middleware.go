// internal/middleware/cors_middleware.go
package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"device-link/internal/config"
)

// CORSMiddleware builds the CORS policy for the browser IDE. Origins
// come from configuration (the IDE dev servers by default); an empty
// list opens the service up, which is only sensible on a loopback
// deployment.
func CORSMiddleware(config *config.SecurityConfig) gin.HandlerFunc {
	corsConfig := cors.DefaultConfig()

	if len(config.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = config.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}

	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID", "X-Requested-With"}
	corsConfig.ExposeHeaders = []string{"Content-Length", "X-Request-ID"}
	corsConfig.AllowCredentials = true
	corsConfig.MaxAge = 12 * time.Hour

	return cors.New(corsConfig)
}
