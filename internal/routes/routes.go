// internal/routes/routes.go
package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerfiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"device-link/internal/config"
	"device-link/internal/database"
	"device-link/internal/discovery"
	"device-link/internal/handler"
	"device-link/internal/middleware"
	"device-link/internal/service"
	"device-link/internal/utils"
)

// Router holds all dependencies for routing
type Router struct {
	config         *config.Config
	logger         *zap.Logger
	db             *database.DB
	sessionService *service.SessionService
	scanners       *discovery.ScannerManager
}

// NewRouter creates a new router instance
func NewRouter(
	config *config.Config,
	logger *zap.Logger,
	db *database.DB,
	sessionService *service.SessionService,
	scanners *discovery.ScannerManager,
) *Router {
	return &Router{
		config:         config,
		logger:         logger,
		db:             db,
		sessionService: sessionService,
		scanners:       scanners,
	}
}

// SetupRouter creates and configures the Gin router
func (r *Router) SetupRouter() *gin.Engine {
	if r.config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()

	r.addMiddleware(router)
	r.addRoutes(router)

	return router
}

// addMiddleware adds middleware to the router
func (r *Router) addMiddleware(router *gin.Engine) {
	router.Use(middleware.RecoveryMiddleware(r.logger))
	router.Use(middleware.RequestIDMiddleware())

	serviceLogger := utils.NewServiceLogger(r.logger, "http-server")
	router.Use(middleware.LoggingMiddleware(serviceLogger))

	router.Use(middleware.CORSMiddleware(&r.config.Security))

	r.logger.Info("Middleware configured")
}

// addRoutes sets up all application routes
func (r *Router) addRoutes(router *gin.Engine) {
	healthHandler := handler.NewHealthHandler(r.db, r.sessionService, r.config, r.logger)
	deviceHandler := handler.NewDeviceHandler(r.sessionService, r.logger)
	discoveryHandler := handler.NewDiscoveryHandler(r.scanners, r.logger)
	wsHandler := handler.NewWebSocketHandler(r.sessionService, r.logger)

	// Health check routes (no auth required)
	healthHandler.RegisterRoutes(router.Group(""))

	// API v1 routes
	apiV1 := router.Group("/api/v1")
	deviceHandler.RegisterRoutes(apiV1)
	discoveryHandler.RegisterRoutes(apiV1)

	// WebSocket routes
	wsHandler.RegisterRoutes(router.Group("/ws"))

	// Documentation routes
	r.addDocumentationRoutes(router)

	r.logger.Info("All routes configured successfully")
}

// addDocumentationRoutes sets up documentation routes
func (r *Router) addDocumentationRoutes(router *gin.Engine) {
	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerfiles.Handler))

	// Swagger redirect for convenience
	router.GET("/docs", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
	})
}
