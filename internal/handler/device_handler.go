// internal/handler/device_handler.go
package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"device-link/internal/model"
	"device-link/internal/repository"
	"device-link/internal/service"
	"device-link/internal/session"
	"device-link/internal/utils"
)

// maxFirmwareBytes bounds OTA upload size (8 MB covers every supported
// board's flash)
const maxFirmwareBytes = 8 << 20

// DeviceHandler handles device-related HTTP requests
type DeviceHandler struct {
	sessionService *service.SessionService
	logger         *utils.ServiceLogger
}

// NewDeviceHandler creates a new device handler
func NewDeviceHandler(sessionService *service.SessionService, logger *zap.Logger) *DeviceHandler {
	return &DeviceHandler{
		sessionService: sessionService,
		logger:         utils.NewServiceLogger(logger, "device-handler"),
	}
}

// RegisterRoutes registers device-related routes
func (h *DeviceHandler) RegisterRoutes(router *gin.RouterGroup) {
	devices := router.Group("/devices")
	{
		devices.POST("", h.RegisterDevice)
		devices.GET("", h.ListDevices)

		deviceRoutes := devices.Group("/:device_id")
		{
			deviceRoutes.GET("", h.GetDevice)
			deviceRoutes.DELETE("", h.UnregisterDevice)
			deviceRoutes.POST("/connect", h.ConnectDevice)
			deviceRoutes.POST("/disconnect", h.DisconnectDevice)
			deviceRoutes.GET("/session", h.GetSessionStatus)
			deviceRoutes.POST("/commands", h.ExecuteCommand)
			deviceRoutes.POST("/ping", h.PingDevice)
			deviceRoutes.GET("/version", h.GetVersion)
			deviceRoutes.GET("/system", h.GetSystemInfo)
			deviceRoutes.GET("/gpio/:pin", h.ReadGPIO)
			deviceRoutes.POST("/gpio/:pin", h.WriteGPIO)
			deviceRoutes.GET("/adc/:pin", h.ReadADC)
			deviceRoutes.POST("/i2c/scan", h.ScanI2C)
			deviceRoutes.POST("/wifi/scan", h.ScanWiFi)
			deviceRoutes.GET("/files", h.ListFiles)
			deviceRoutes.DELETE("/files/*name", h.DeleteFile)
			deviceRoutes.POST("/reboot", h.RebootDevice)
			deviceRoutes.POST("/streams/adc", h.StartADCStream)
			deviceRoutes.DELETE("/streams/adc", h.StopADCStream)
			deviceRoutes.POST("/heartbeat", h.StartHeartbeat)
			deviceRoutes.DELETE("/heartbeat", h.StopHeartbeat)
			deviceRoutes.POST("/ota", h.OTAUpdate)
			deviceRoutes.GET("/history/commands", h.GetCommandHistory)
			deviceRoutes.GET("/history/telemetry", h.GetTelemetryHistory)
			deviceRoutes.GET("/history/ota", h.GetOTAHistory)
			deviceRoutes.GET("/stats/commands", h.GetCommandStats)
		}
	}

	history := router.Group("/history")
	{
		history.GET("/commands", h.ListCommandRecords)
		history.GET("/commands/:id", h.GetCommandRecord)
	}
}

// RegisterDevice registers a new device
// @Summary Register a new device
// @Description Register a device and prepare its session
// @Tags Devices
// @Accept json
// @Produce json
// @Param request body service.RegisterDeviceRequest true "Device registration request"
// @Success 201 {object} utils.APIResponse{data=model.Device} "Device registered successfully"
// @Failure 400 {object} utils.APIResponse "Invalid request"
// @Failure 409 {object} utils.APIResponse "Device already exists"
// @Router /devices [post]
func (h *DeviceHandler) RegisterDevice(c *gin.Context) {
	var req service.RegisterDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	device, err := h.sessionService.RegisterDevice(&req)
	if err != nil {
		if strings.Contains(err.Error(), "already exists") {
			utils.ErrorResponse(c, http.StatusConflict, "Device already exists", err)
			return
		}
		utils.ErrorResponse(c, http.StatusBadRequest, "Failed to register device", err)
		return
	}

	h.logger.Info("Device registered successfully", zap.String("device_id", device.DeviceID))
	utils.SuccessResponse(c, http.StatusCreated, "Device registered successfully", device)
}

// ListDevices lists all registered devices
// @Summary List devices
// @Description Get all registered devices with their live session state
// @Tags Devices
// @Produce json
// @Success 200 {object} utils.APIResponse{data=[]model.Device} "Devices retrieved successfully"
// @Router /devices [get]
func (h *DeviceHandler) ListDevices(c *gin.Context) {
	devices := h.sessionService.ListDevices()
	utils.SuccessResponse(c, http.StatusOK, "Devices retrieved successfully", devices)
}

// GetDevice returns one device
// @Summary Get device
// @Description Get a registered device with its live session state
// @Tags Devices
// @Produce json
// @Param device_id path string true "Device ID"
// @Success 200 {object} utils.APIResponse{data=model.Device} "Device retrieved successfully"
// @Failure 404 {object} utils.APIResponse "Device not found"
// @Router /devices/{device_id} [get]
func (h *DeviceHandler) GetDevice(c *gin.Context) {
	device, err := h.sessionService.GetDevice(c.Param("device_id"))
	if err != nil {
		utils.ErrorResponse(c, http.StatusNotFound, "Device not found", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Device retrieved successfully", device)
}

// UnregisterDevice removes a device
// @Summary Unregister device
// @Description Disconnect and remove a registered device
// @Tags Devices
// @Produce json
// @Param device_id path string true "Device ID"
// @Success 200 {object} utils.APIResponse "Device unregistered successfully"
// @Failure 404 {object} utils.APIResponse "Device not found"
// @Router /devices/{device_id} [delete]
func (h *DeviceHandler) UnregisterDevice(c *gin.Context) {
	if err := h.sessionService.UnregisterDevice(c.Param("device_id")); err != nil {
		utils.ErrorResponse(c, http.StatusNotFound, "Device not found", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Device unregistered successfully", nil)
}

// ConnectDevice establishes the device session
// @Summary Connect device
// @Description Open the transport and establish the device session
// @Tags Sessions
// @Produce json
// @Param device_id path string true "Device ID"
// @Success 200 {object} utils.APIResponse "Device connected successfully"
// @Failure 409 {object} utils.APIResponse "Already connected"
// @Failure 502 {object} utils.APIResponse "Connection failed"
// @Router /devices/{device_id}/connect [post]
func (h *DeviceHandler) ConnectDevice(c *gin.Context) {
	deviceID := c.Param("device_id")
	if err := h.sessionService.Connect(c.Request.Context(), deviceID); err != nil {
		if errors.Is(err, session.ErrAlreadyConnected) {
			utils.ErrorResponse(c, http.StatusConflict, "Device already connected", err)
			return
		}
		h.logger.Error("Failed to connect device", zap.String("device_id", deviceID), zap.Error(err))
		utils.ErrorResponse(c, http.StatusBadGateway, "Failed to connect device", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Device connected successfully", nil)
}

// DisconnectDevice tears the device session down
// @Summary Disconnect device
// @Description Close the device session and its transport
// @Tags Sessions
// @Produce json
// @Param device_id path string true "Device ID"
// @Success 200 {object} utils.APIResponse "Device disconnected successfully"
// @Failure 404 {object} utils.APIResponse "Device not found"
// @Router /devices/{device_id}/disconnect [post]
func (h *DeviceHandler) DisconnectDevice(c *gin.Context) {
	if err := h.sessionService.Disconnect(c.Param("device_id")); err != nil {
		utils.ErrorResponse(c, http.StatusNotFound, "Device not found", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Device disconnected successfully", nil)
}

// GetSessionStatus returns a live session snapshot
// @Summary Get session status
// @Description Get the live state of a device session
// @Tags Sessions
// @Produce json
// @Param device_id path string true "Device ID"
// @Success 200 {object} utils.APIResponse{data=service.SessionStatus} "Session status retrieved"
// @Failure 404 {object} utils.APIResponse "Device not found"
// @Router /devices/{device_id}/session [get]
func (h *DeviceHandler) GetSessionStatus(c *gin.Context) {
	status, err := h.sessionService.GetSessionStatus(c.Param("device_id"))
	if err != nil {
		utils.ErrorResponse(c, http.StatusNotFound, "Device not found", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Session status retrieved", status)
}

// ExecuteCommandRequest describes a raw command dispatch
type ExecuteCommandRequest struct {
	Command string                 `json:"command" binding:"required"`
	Params  map[string]interface{} `json:"params"`
}

// ExecuteCommand dispatches a raw command on the device session
// @Summary Execute device command
// @Description Send a command to the device and wait for the correlated response
// @Tags Commands
// @Accept json
// @Produce json
// @Param device_id path string true "Device ID"
// @Param request body ExecuteCommandRequest true "Command request"
// @Success 200 {object} utils.APIResponse "Command executed successfully"
// @Failure 408 {object} utils.APIResponse "Device did not respond in time"
// @Failure 429 {object} utils.APIResponse "Command rate limit exceeded"
// @Failure 503 {object} utils.APIResponse "Device not connected"
// @Router /devices/{device_id}/commands [post]
func (h *DeviceHandler) ExecuteCommand(c *gin.Context) {
	var req ExecuteCommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result, err := h.sessionService.ExecuteCommand(c.Request.Context(), c.Param("device_id"), req.Command, req.Params)
	if err != nil {
		h.respondCommandError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Command executed successfully", result)
}

// PingDevice checks device liveness
// @Summary Ping device
// @Description Check device liveness and report firmware uptime
// @Tags Commands
// @Produce json
// @Param device_id path string true "Device ID"
// @Success 200 {object} utils.APIResponse{data=protocol.PingResult} "Pong received"
// @Failure 503 {object} utils.APIResponse "Device not connected"
// @Router /devices/{device_id}/ping [post]
func (h *DeviceHandler) PingDevice(c *gin.Context) {
	result, err := h.sessionService.Ping(c.Request.Context(), c.Param("device_id"))
	if err != nil {
		h.respondCommandError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Pong received", result)
}

// GetVersion reports the device firmware version
// @Summary Get firmware version
// @Tags Commands
// @Produce json
// @Param device_id path string true "Device ID"
// @Success 200 {object} utils.APIResponse{data=protocol.VersionInfo} "Version retrieved"
// @Failure 503 {object} utils.APIResponse "Device not connected"
// @Router /devices/{device_id}/version [get]
func (h *DeviceHandler) GetVersion(c *gin.Context) {
	result, err := h.sessionService.Version(c.Request.Context(), c.Param("device_id"))
	if err != nil {
		h.respondCommandError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Version retrieved", result)
}

// GetSystemInfo reports chip model, heap and flash figures
// @Summary Get system info
// @Tags Commands
// @Produce json
// @Param device_id path string true "Device ID"
// @Success 200 {object} utils.APIResponse{data=protocol.SystemInfo} "System info retrieved"
// @Failure 503 {object} utils.APIResponse "Device not connected"
// @Router /devices/{device_id}/system [get]
func (h *DeviceHandler) GetSystemInfo(c *gin.Context) {
	result, err := h.sessionService.SystemInfo(c.Request.Context(), c.Param("device_id"))
	if err != nil {
		h.respondCommandError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "System info retrieved", result)
}

// ReadGPIO reads a digital pin
// @Summary Read GPIO pin
// @Tags Commands
// @Produce json
// @Param device_id path string true "Device ID"
// @Param pin path int true "Pin number"
// @Success 200 {object} utils.APIResponse{data=protocol.GPIOState} "Pin read"
// @Failure 422 {object} utils.APIResponse "Device rejected command"
// @Router /devices/{device_id}/gpio/{pin} [get]
func (h *DeviceHandler) ReadGPIO(c *gin.Context) {
	pin, err := strconv.Atoi(c.Param("pin"))
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid pin", err)
		return
	}

	result, err := h.sessionService.GPIORead(c.Request.Context(), c.Param("device_id"), pin)
	if err != nil {
		h.respondCommandError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Pin read", result)
}

// GPIOWriteRequest describes a digital pin write
type GPIOWriteRequest struct {
	Value *int `json:"value" binding:"required"`
}

// WriteGPIO sets a digital pin
// @Summary Write GPIO pin
// @Tags Commands
// @Accept json
// @Produce json
// @Param device_id path string true "Device ID"
// @Param pin path int true "Pin number"
// @Param request body GPIOWriteRequest true "Pin value (0 or 1)"
// @Success 200 {object} utils.APIResponse{data=protocol.GPIOState} "Pin written"
// @Failure 422 {object} utils.APIResponse "Device rejected command"
// @Router /devices/{device_id}/gpio/{pin} [post]
func (h *DeviceHandler) WriteGPIO(c *gin.Context) {
	pin, err := strconv.Atoi(c.Param("pin"))
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid pin", err)
		return
	}

	var req GPIOWriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result, err := h.sessionService.GPIOWrite(c.Request.Context(), c.Param("device_id"), pin, *req.Value)
	if err != nil {
		h.respondCommandError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Pin written", result)
}

// ReadADC samples an analog pin once
// @Summary Read ADC pin
// @Tags Commands
// @Produce json
// @Param device_id path string true "Device ID"
// @Param pin path int true "Pin number"
// @Success 200 {object} utils.APIResponse{data=protocol.ADCReading} "Pin sampled"
// @Failure 422 {object} utils.APIResponse "Device rejected command"
// @Router /devices/{device_id}/adc/{pin} [get]
func (h *DeviceHandler) ReadADC(c *gin.Context) {
	pin, err := strconv.Atoi(c.Param("pin"))
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid pin", err)
		return
	}

	result, err := h.sessionService.ADCRead(c.Request.Context(), c.Param("device_id"), pin)
	if err != nil {
		h.respondCommandError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Pin sampled", result)
}

// ScanI2C lists responding I2C bus addresses
// @Summary Scan I2C bus
// @Tags Commands
// @Produce json
// @Param device_id path string true "Device ID"
// @Success 200 {object} utils.APIResponse{data=protocol.I2CScanResult} "Bus scanned"
// @Failure 503 {object} utils.APIResponse "Device not connected"
// @Router /devices/{device_id}/i2c/scan [post]
func (h *DeviceHandler) ScanI2C(c *gin.Context) {
	result, err := h.sessionService.I2CScan(c.Request.Context(), c.Param("device_id"))
	if err != nil {
		h.respondCommandError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Bus scanned", result)
}

// ScanWiFi lists the access points the device can see
// @Summary Scan WiFi networks
// @Tags Commands
// @Produce json
// @Param device_id path string true "Device ID"
// @Success 200 {object} utils.APIResponse{data=protocol.WiFiScanResult} "Networks scanned"
// @Failure 503 {object} utils.APIResponse "Device not connected"
// @Router /devices/{device_id}/wifi/scan [post]
func (h *DeviceHandler) ScanWiFi(c *gin.Context) {
	result, err := h.sessionService.WiFiScan(c.Request.Context(), c.Param("device_id"))
	if err != nil {
		h.respondCommandError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Networks scanned", result)
}

// ListFiles lists files on the device filesystem
// @Summary List device files
// @Tags Files
// @Produce json
// @Param device_id path string true "Device ID"
// @Success 200 {object} utils.APIResponse{data=protocol.FileListResult} "Files listed"
// @Failure 503 {object} utils.APIResponse "Device not connected"
// @Router /devices/{device_id}/files [get]
func (h *DeviceHandler) ListFiles(c *gin.Context) {
	result, err := h.sessionService.FileList(c.Request.Context(), c.Param("device_id"))
	if err != nil {
		h.respondCommandError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Files listed", result)
}

// DeleteFile removes a file from the device filesystem
// @Summary Delete device file
// @Tags Files
// @Produce json
// @Param device_id path string true "Device ID"
// @Param name path string true "File path on the device"
// @Success 200 {object} utils.APIResponse "File deleted"
// @Failure 422 {object} utils.APIResponse "Device rejected command"
// @Router /devices/{device_id}/files/{name} [delete]
func (h *DeviceHandler) DeleteFile(c *gin.Context) {
	name := strings.TrimPrefix(c.Param("name"), "/")
	if name == "" {
		utils.ErrorResponse(c, http.StatusBadRequest, "file name is required", nil)
		return
	}

	if err := h.sessionService.FileDelete(c.Request.Context(), c.Param("device_id"), name); err != nil {
		h.respondCommandError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "File deleted", nil)
}

// RebootDevice restarts the device
// @Summary Reboot device
// @Description Restart the device. The link drops after the acknowledgement.
// @Tags Commands
// @Produce json
// @Param device_id path string true "Device ID"
// @Success 200 {object} utils.APIResponse "Reboot acknowledged"
// @Failure 503 {object} utils.APIResponse "Device not connected"
// @Router /devices/{device_id}/reboot [post]
func (h *DeviceHandler) RebootDevice(c *gin.Context) {
	if err := h.sessionService.Reboot(c.Request.Context(), c.Param("device_id")); err != nil {
		h.respondCommandError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Reboot acknowledged", nil)
}

// StreamRequest describes analog stream settings
type StreamRequest struct {
	Pin        int `json:"pin" binding:"required"`
	IntervalMs int `json:"interval_ms"`
}

// StartADCStream starts the analog sampling stream
// @Summary Start ADC stream
// @Description Start periodic analog sampling of one pin
// @Tags Streams
// @Accept json
// @Produce json
// @Param device_id path string true "Device ID"
// @Param request body StreamRequest true "Stream settings"
// @Success 200 {object} utils.APIResponse "ADC stream started"
// @Failure 404 {object} utils.APIResponse "Device not found"
// @Router /devices/{device_id}/streams/adc [post]
func (h *DeviceHandler) StartADCStream(c *gin.Context) {
	var req StreamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	interval := time.Duration(req.IntervalMs) * time.Millisecond
	if err := h.sessionService.StartADCStream(c.Param("device_id"), req.Pin, interval); err != nil {
		utils.ErrorResponse(c, http.StatusNotFound, "Device not found", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "ADC stream started", nil)
}

// StopADCStream stops the analog sampling stream
// @Summary Stop ADC stream
// @Tags Streams
// @Produce json
// @Param device_id path string true "Device ID"
// @Success 200 {object} utils.APIResponse "ADC stream stopped"
// @Failure 404 {object} utils.APIResponse "Device not found"
// @Router /devices/{device_id}/streams/adc [delete]
func (h *DeviceHandler) StopADCStream(c *gin.Context) {
	if err := h.sessionService.StopADCStream(c.Param("device_id")); err != nil {
		utils.ErrorResponse(c, http.StatusNotFound, "Device not found", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "ADC stream stopped", nil)
}

// HeartbeatRequest describes liveness probe settings
type HeartbeatRequest struct {
	IntervalMs       int `json:"interval_ms"`
	FailureThreshold int `json:"failure_threshold"`
}

// StartHeartbeat starts the liveness probe
// @Summary Start heartbeat
// @Description Start the periodic liveness ping on a device session
// @Tags Streams
// @Accept json
// @Produce json
// @Param device_id path string true "Device ID"
// @Param request body HeartbeatRequest true "Heartbeat settings"
// @Success 200 {object} utils.APIResponse "Heartbeat started"
// @Failure 404 {object} utils.APIResponse "Device not found"
// @Router /devices/{device_id}/heartbeat [post]
func (h *DeviceHandler) StartHeartbeat(c *gin.Context) {
	var req HeartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	interval := time.Duration(req.IntervalMs) * time.Millisecond
	if err := h.sessionService.StartHeartbeat(c.Param("device_id"), interval, req.FailureThreshold); err != nil {
		utils.ErrorResponse(c, http.StatusNotFound, "Device not found", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Heartbeat started", nil)
}

// StopHeartbeat stops the liveness probe
// @Summary Stop heartbeat
// @Tags Streams
// @Produce json
// @Param device_id path string true "Device ID"
// @Success 200 {object} utils.APIResponse "Heartbeat stopped"
// @Failure 404 {object} utils.APIResponse "Device not found"
// @Router /devices/{device_id}/heartbeat [delete]
func (h *DeviceHandler) StopHeartbeat(c *gin.Context) {
	if err := h.sessionService.StopHeartbeat(c.Param("device_id")); err != nil {
		utils.ErrorResponse(c, http.StatusNotFound, "Device not found", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Heartbeat stopped", nil)
}

// OTAUpdate pushes a firmware image to the device
// @Summary OTA firmware update
// @Description Upload a firmware image and push it to the device in acknowledged chunks
// @Tags OTA
// @Accept multipart/form-data
// @Produce json
// @Param device_id path string true "Device ID"
// @Param firmware formData file true "Firmware image"
// @Success 200 {object} utils.APIResponse "Firmware transferred successfully"
// @Failure 409 {object} utils.APIResponse "Transfer already in progress"
// @Failure 503 {object} utils.APIResponse "Device not connected"
// @Router /devices/{device_id}/ota [post]
func (h *DeviceHandler) OTAUpdate(c *gin.Context) {
	file, header, err := c.Request.FormFile("firmware")
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "firmware file is required", err)
		return
	}
	defer file.Close()

	if header.Size > maxFirmwareBytes {
		utils.ErrorResponse(c, http.StatusBadRequest, "firmware image too large", nil)
		return
	}

	content, err := io.ReadAll(io.LimitReader(file, maxFirmwareBytes+1))
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "failed to read firmware image", err)
		return
	}
	if len(content) > maxFirmwareBytes {
		utils.ErrorResponse(c, http.StatusBadRequest, "firmware image too large", nil)
		return
	}

	deviceID := c.Param("device_id")
	if err := h.sessionService.OTAUpdate(c.Request.Context(), deviceID, header.Filename, content); err != nil {
		if errors.Is(err, session.ErrOTAInProgress) {
			utils.ErrorResponse(c, http.StatusConflict, "Transfer already in progress", err)
			return
		}
		h.respondCommandError(c, err)
		return
	}

	h.logger.Info("Firmware transferred",
		zap.String("device_id", deviceID),
		zap.String("file", header.Filename),
		zap.Int("size", len(content)),
	)
	utils.SuccessResponse(c, http.StatusOK, "Firmware transferred successfully", nil)
}

// GetCommandHistory returns recent command records
// @Summary Get command history
// @Tags History
// @Produce json
// @Param device_id path string true "Device ID"
// @Param limit query int false "Maximum records" default(50)
// @Success 200 {object} utils.APIResponse{data=[]model.CommandRecord} "Command history retrieved"
// @Failure 503 {object} utils.APIResponse "History not enabled"
// @Router /devices/{device_id}/history/commands [get]
func (h *DeviceHandler) GetCommandHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	records, err := h.sessionService.GetCommandHistory(c.Request.Context(), c.Param("device_id"), limit)
	if err != nil {
		utils.ErrorResponse(c, http.StatusServiceUnavailable, "Command history unavailable", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Command history retrieved", records)
}

// GetTelemetryHistory returns recent telemetry samples
// @Summary Get telemetry history
// @Tags History
// @Produce json
// @Param device_id path string true "Device ID"
// @Param since query string false "RFC3339 lower bound (default 1h ago)"
// @Param limit query int false "Maximum samples" default(200)
// @Success 200 {object} utils.APIResponse{data=[]model.TelemetrySample} "Telemetry history retrieved"
// @Failure 503 {object} utils.APIResponse "History not enabled"
// @Router /devices/{device_id}/history/telemetry [get]
func (h *DeviceHandler) GetTelemetryHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "200"))

	since := time.Now().Add(-time.Hour)
	if raw := c.Query("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			utils.ErrorResponse(c, http.StatusBadRequest, "invalid since timestamp", err)
			return
		}
		since = parsed
	}

	samples, err := h.sessionService.GetTelemetryHistory(c.Request.Context(), c.Param("device_id"), since, limit)
	if err != nil {
		utils.ErrorResponse(c, http.StatusServiceUnavailable, "Telemetry history unavailable", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Telemetry history retrieved", samples)
}

// GetOTAHistory returns recent firmware transfers
// @Summary Get OTA history
// @Tags History
// @Produce json
// @Param device_id path string true "Device ID"
// @Param limit query int false "Maximum records" default(20)
// @Success 200 {object} utils.APIResponse{data=[]model.OTATransferRecord} "OTA history retrieved"
// @Failure 503 {object} utils.APIResponse "History not enabled"
// @Router /devices/{device_id}/history/ota [get]
func (h *DeviceHandler) GetOTAHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	records, err := h.sessionService.GetOTAHistory(c.Request.Context(), c.Param("device_id"), limit)
	if err != nil {
		utils.ErrorResponse(c, http.StatusServiceUnavailable, "OTA history unavailable", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "OTA history retrieved", records)
}

// GetCommandStats aggregates command outcomes for a device
// @Summary Get command statistics
// @Description Aggregate command outcomes for a device over a period
// @Tags History
// @Produce json
// @Param device_id path string true "Device ID"
// @Param period query string false "Aggregation period (Go duration)" default(24h)
// @Success 200 {object} utils.APIResponse{data=repository.CommandStats} "Command statistics retrieved"
// @Failure 503 {object} utils.APIResponse "History not enabled"
// @Router /devices/{device_id}/stats/commands [get]
func (h *DeviceHandler) GetCommandStats(c *gin.Context) {
	period := 24 * time.Hour
	if raw := c.Query("period"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			utils.ErrorResponse(c, http.StatusBadRequest, "invalid period", err)
			return
		}
		period = parsed
	}

	stats, err := h.sessionService.GetCommandStats(c.Request.Context(), c.Param("device_id"), period)
	if err != nil {
		utils.ErrorResponse(c, http.StatusServiceUnavailable, "Command statistics unavailable", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Command statistics retrieved", stats)
}

// ListCommandRecords lists command records across devices
// @Summary List command records
// @Description List command records across all devices with filters and pagination
// @Tags History
// @Produce json
// @Param device_id query string false "Filter by device ID"
// @Param command query string false "Filter by command name"
// @Param status query string false "Filter by status" Enums(SUCCESS, FAILED, TIMEOUT)
// @Param start_date query string false "RFC3339 lower bound"
// @Param end_date query string false "RFC3339 upper bound"
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Records per page" default(50)
// @Success 200 {object} utils.APIResponse "Command records retrieved"
// @Failure 503 {object} utils.APIResponse "History not enabled"
// @Router /history/commands [get]
func (h *DeviceHandler) ListCommandRecords(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "50"))

	filter := &repository.CommandFilter{
		Page:      page,
		PerPage:   perPage,
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	if v := c.Query("device_id"); v != "" {
		filter.DeviceID = &v
	}
	if v := c.Query("command"); v != "" {
		filter.Command = &v
	}
	if v := c.Query("status"); v != "" {
		status := model.CommandStatus(v)
		filter.Status = &status
	}
	if v := c.Query("start_date"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			utils.ErrorResponse(c, http.StatusBadRequest, "invalid start_date", err)
			return
		}
		filter.StartDate = &parsed
	}
	if v := c.Query("end_date"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			utils.ErrorResponse(c, http.StatusBadRequest, "invalid end_date", err)
			return
		}
		filter.EndDate = &parsed
	}

	records, total, err := h.sessionService.ListCommandRecords(c.Request.Context(), filter)
	if err != nil {
		utils.ErrorResponse(c, http.StatusServiceUnavailable, "Command history unavailable", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Command records retrieved", gin.H{
		"records":  records,
		"total":    total,
		"page":     page,
		"per_page": perPage,
	})
}

// GetCommandRecord returns one command record
// @Summary Get command record
// @Tags History
// @Produce json
// @Param id path string true "Command record UUID"
// @Success 200 {object} utils.APIResponse{data=model.CommandRecord} "Command record retrieved"
// @Failure 404 {object} utils.APIResponse "Record not found"
// @Router /history/commands/{id} [get]
func (h *DeviceHandler) GetCommandRecord(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid record id", err)
		return
	}

	record, err := h.sessionService.GetCommandRecord(c.Request.Context(), id)
	if err != nil {
		utils.ErrorResponse(c, http.StatusNotFound, "Command record not found", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Command record retrieved", record)
}

// respondCommandError maps session errors onto HTTP statuses
func (h *DeviceHandler) respondCommandError(c *gin.Context, err error) {
	var deviceErr *session.DeviceError
	switch {
	case errors.Is(err, session.ErrNotConnected):
		utils.ErrorResponse(c, http.StatusServiceUnavailable, "Device not connected", err)
	case errors.Is(err, session.ErrTimeout):
		utils.ErrorResponse(c, http.StatusRequestTimeout, "Device did not respond in time", err)
	case errors.Is(err, session.ErrRateLimited):
		utils.ErrorResponse(c, http.StatusTooManyRequests, "Command rate limit exceeded", err)
	case errors.Is(err, session.ErrConnectionLost):
		utils.ErrorResponse(c, http.StatusBadGateway, "Connection lost during command", err)
	case errors.As(err, &deviceErr):
		utils.ErrorResponse(c, http.StatusUnprocessableEntity, "Device rejected command", err)
	default:
		utils.ErrorResponse(c, http.StatusInternalServerError, "Command failed", err)
	}
}
