// internal/handler/health_handler.go
package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"device-link/internal/config"
	"device-link/internal/database"
	"device-link/internal/service"
	"device-link/internal/utils"
)

// HealthHandler handles health check requests. The database is
// optional; without it the database check reports "disabled" and does
// not affect overall health.
type HealthHandler struct {
	db             *database.DB
	sessionService *service.SessionService
	config         *config.Config
	logger         *utils.ServiceLogger
	startedAt      time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db *database.DB, sessionService *service.SessionService, cfg *config.Config, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		db:             db,
		sessionService: sessionService,
		config:         cfg,
		logger:         utils.NewServiceLogger(logger, "health-handler"),
		startedAt:      time.Now(),
	}
}

// RegisterRoutes registers health check routes
func (h *HealthHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/health", h.HealthCheck)
	router.GET("/ready", h.ReadinessCheck)
	router.GET("/live", h.LivenessCheck)
}

// HealthCheck performs general health check
// @Summary Health check
// @Description Get overall service health including session counts and history store connectivity
// @Tags Health
// @Produce json
// @Success 200 {object} HealthResponse "Service is healthy"
// @Failure 503 {object} HealthResponse "Service is unhealthy"
// @Router /health [get]
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	health := &HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Service:   h.config.App.Name,
		Version:   h.config.App.Version,
		Uptime:    time.Since(h.startedAt).String(),
		Checks:    make(map[string]CheckResult),
	}

	if h.db == nil {
		health.Checks["database"] = CheckResult{
			Status:  "disabled",
			Message: "History persistence is not enabled",
		}
	} else if err := h.db.HealthCheck(c.Request.Context()); err != nil {
		health.Status = "unhealthy"
		health.Checks["database"] = CheckResult{
			Status:  "unhealthy",
			Message: err.Error(),
		}
	} else {
		stats := h.db.Stats()
		health.Checks["database"] = CheckResult{
			Status: "healthy",
			Data: map[string]interface{}{
				"open_connections": stats.OpenConnections,
				"in_use":           stats.InUse,
				"idle":             stats.Idle,
			},
		}
	}

	devices := h.sessionService.ListDevices()
	connected := 0
	for _, device := range devices {
		if device.IsConnected() {
			connected++
		}
	}
	health.Checks["sessions"] = CheckResult{
		Status: "healthy",
		Data: map[string]interface{}{
			"registered": len(devices),
			"connected":  connected,
		},
	}

	statusCode := http.StatusOK
	if health.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, health)
}

// ReadinessCheck for Kubernetes readiness probe
// @Summary Readiness check
// @Description Check if service is ready to accept traffic
// @Tags Health
// @Produce json
// @Success 200 {object} object{status=string,timestamp=string} "Service is ready"
// @Failure 503 {object} object{status=string,reason=string} "Service is not ready"
// @Router /ready [get]
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	if h.db != nil {
		if err := h.db.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not ready",
				"reason": "database not available",
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"timestamp": time.Now(),
	})
}

// LivenessCheck for Kubernetes liveness probe
// @Summary Liveness check
// @Description Check if service is alive
// @Tags Health
// @Produce json
// @Success 200 {object} object{status=string,timestamp=string} "Service is alive"
// @Router /live [get]
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now(),
	})
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Service   string                 `json:"service"`
	Version   string                 `json:"version"`
	Uptime    string                 `json:"uptime"`
	Checks    map[string]CheckResult `json:"checks"`
}

// CheckResult represents individual check result
type CheckResult struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}
