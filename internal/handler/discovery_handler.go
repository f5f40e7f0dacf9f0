// internal/handler/discovery_handler.go
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"device-link/internal/discovery"
	"device-link/internal/utils"
)

// DiscoveryHandler handles board discovery HTTP requests
type DiscoveryHandler struct {
	scanners *discovery.ScannerManager
	logger   *utils.ServiceLogger
}

// NewDiscoveryHandler creates a new discovery handler
func NewDiscoveryHandler(scanners *discovery.ScannerManager, logger *zap.Logger) *DiscoveryHandler {
	return &DiscoveryHandler{
		scanners: scanners,
		logger:   utils.NewServiceLogger(logger, "discovery-handler"),
	}
}

// RegisterRoutes registers discovery routes
func (h *DiscoveryHandler) RegisterRoutes(router *gin.RouterGroup) {
	disc := router.Group("/discovery")
	{
		disc.GET("/scan", h.ScanAll)
		disc.GET("/scan/:type", h.ScanByType)
		disc.GET("/scanners", h.ListScanners)
	}
}

// ScanAll runs every available scanner
// @Summary Scan for boards
// @Description Run every available scanner and return discovered development boards
// @Tags Discovery
// @Produce json
// @Success 200 {object} utils.APIResponse{data=[]discovery.DiscoveredBoard} "Scan completed"
// @Router /discovery/scan [get]
func (h *DiscoveryHandler) ScanAll(c *gin.Context) {
	boards, err := h.scanners.ScanAll(c.Request.Context())
	if err != nil {
		h.logger.Error("Board scan failed", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Scan failed", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Scan completed", boards)
}

// ScanByType runs one specific scanner
// @Summary Scan with one scanner
// @Description Run a single scanner type (serial, usb)
// @Tags Discovery
// @Produce json
// @Param type path string true "Scanner type" Enums(serial, usb)
// @Success 200 {object} utils.APIResponse{data=[]discovery.DiscoveredBoard} "Scan completed"
// @Failure 404 {object} utils.APIResponse "Scanner not found"
// @Router /discovery/scan/{type} [get]
func (h *DiscoveryHandler) ScanByType(c *gin.Context) {
	scannerType := c.Param("type")
	boards, err := h.scanners.ScanByType(c.Request.Context(), scannerType)
	if err != nil {
		utils.ErrorResponse(c, http.StatusNotFound, "Scanner not available", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Scan completed", boards)
}

// ListScanners lists available scanner types
// @Summary List scanners
// @Description List the scanner types that can run on this host
// @Tags Discovery
// @Produce json
// @Success 200 {object} utils.APIResponse{data=[]string} "Scanners retrieved"
// @Router /discovery/scanners [get]
func (h *DiscoveryHandler) ListScanners(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Scanners retrieved", h.scanners.GetAvailableScanners())
}
