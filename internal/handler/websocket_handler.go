// internal/handler/websocket_handler.go
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"device-link/internal/service"
	"device-link/internal/utils"
)

// WebSocketHandler manages WebSocket connections for the UI feed
type WebSocketHandler struct {
	upgrader       websocket.Upgrader
	connections    *ConnectionManager
	sessionService *service.SessionService
	logger         *utils.ServiceLogger
	eventBus       *EventBus
}

// NewWebSocketHandler creates a new WebSocket handler and wires it as
// the session service's event sink
func NewWebSocketHandler(sessionService *service.SessionService, logger *zap.Logger) *WebSocketHandler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	handler := &WebSocketHandler{
		upgrader:       upgrader,
		connections:    NewConnectionManager(),
		sessionService: sessionService,
		logger:         utils.NewServiceLogger(logger, "websocket-handler"),
		eventBus:       NewEventBus(logger),
	}

	sessionService.SetEventSink(handler.eventBus.Publish)

	go handler.eventBus.Start()
	go handler.distributeSessionEvents()

	return handler
}

// RegisterRoutes registers WebSocket routes
func (h *WebSocketHandler) RegisterRoutes(router *gin.RouterGroup) {
	// Per-device feed: status, pushes, samples and OTA progress
	router.GET("/devices/:device_id", h.HandleDeviceConnection)

	// All-device event feed
	router.GET("/events", h.HandleEventConnection)
}

// HandleDeviceConnection handles device-specific WebSocket connections
func (h *WebSocketHandler) HandleDeviceConnection(c *gin.Context) {
	deviceID := c.Param("device_id")
	if deviceID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "device_id is required"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}

	client := &Client{
		ID:          uuid.New().String(),
		Connection:  conn,
		Send:        make(chan []byte, 256),
		Type:        "device",
		DeviceID:    &deviceID,
		UserAgent:   c.Request.UserAgent(),
		RemoteAddr:  c.Request.RemoteAddr,
		ConnectedAt: time.Now(),
	}

	h.connections.Register(client)
	h.logger.Info("Device WebSocket client connected",
		zap.String("client_id", client.ID),
		zap.String("device_id", deviceID),
		zap.String("remote_addr", client.RemoteAddr),
	)

	go h.sendInitialStatus(client, deviceID)
	go h.handleClientRead(client)
	go h.handleClientWrite(client)
}

// HandleEventConnection handles all-device event feed connections
func (h *WebSocketHandler) HandleEventConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}

	client := &Client{
		ID:          uuid.New().String(),
		Connection:  conn,
		Send:        make(chan []byte, 256),
		Type:        "events",
		UserAgent:   c.Request.UserAgent(),
		RemoteAddr:  c.Request.RemoteAddr,
		ConnectedAt: time.Now(),
	}

	h.connections.Register(client)
	h.logger.Info("Event WebSocket client connected",
		zap.String("client_id", client.ID),
	)

	go h.handleClientRead(client)
	go h.handleClientWrite(client)
}

// GetConnectionStats returns statistics about the UI feed
func (h *WebSocketHandler) GetConnectionStats() *ConnectionStats {
	return h.connections.GetStats()
}

// distributeSessionEvents forwards session events to the clients that
// should see them
func (h *WebSocketHandler) distributeSessionEvents() {
	events := h.eventBus.Subscribe()
	for event := range events {
		message := &WebSocketMessage{
			Type:      event.Type,
			Data:      event,
			Timestamp: event.Timestamp,
		}

		for _, client := range h.connections.GetDeviceClients(event.DeviceID) {
			h.sendMessage(client, message)
		}
		for _, client := range h.connections.GetEventClients() {
			h.sendMessage(client, message)
		}
	}
}

// sendInitialStatus pushes the current session state to a freshly
// connected device client
func (h *WebSocketHandler) sendInitialStatus(client *Client, deviceID string) {
	status, err := h.sessionService.GetSessionStatus(deviceID)
	if err != nil {
		h.sendError(client, err.Error())
		return
	}

	h.sendMessage(client, &WebSocketMessage{
		Type:      "session_status",
		Data:      status,
		Timestamp: time.Now(),
	})
}

// handleClientRead handles reading messages from WebSocket client
func (h *WebSocketHandler) handleClientRead(client *Client) {
	defer func() {
		h.connections.Unregister(client)
		client.Connection.Close()
	}()

	client.Connection.SetReadDeadline(time.Now().Add(60 * time.Second))
	client.Connection.SetPongHandler(func(string) error {
		client.Connection.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, messageBytes, err := client.Connection.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Error("WebSocket read error",
					zap.Error(err),
					zap.String("client_id", client.ID),
				)
			}
			break
		}

		var message WebSocketMessage
		if err := json.Unmarshal(messageBytes, &message); err != nil {
			h.logger.Error("Failed to parse WebSocket message",
				zap.Error(err),
				zap.String("client_id", client.ID),
			)
			continue
		}

		h.handleClientMessage(client, &message)
	}
}

// handleClientWrite handles writing messages to WebSocket client
func (h *WebSocketHandler) handleClientWrite(client *Client) {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		client.Connection.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			client.Connection.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				client.Connection.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := client.Connection.WriteMessage(websocket.TextMessage, message); err != nil {
				h.logger.Error("WebSocket write error",
					zap.Error(err),
					zap.String("client_id", client.ID),
				)
				return
			}

		case <-ticker.C:
			client.Connection.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.Connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleClientMessage handles incoming client messages
func (h *WebSocketHandler) handleClientMessage(client *Client, message *WebSocketMessage) {
	switch message.Type {
	case "device_command":
		h.handleDeviceCommand(client, message)
	case "ping":
		h.sendMessage(client, &WebSocketMessage{
			Type:      "pong",
			Timestamp: time.Now(),
		})
	default:
		h.logger.Warn("Unknown message type",
			zap.String("type", message.Type),
			zap.String("client_id", client.ID),
		)
	}
}

// handleDeviceCommand dispatches a raw device command from a device
// feed client
func (h *WebSocketHandler) handleDeviceCommand(client *Client, message *WebSocketMessage) {
	if client.DeviceID == nil {
		h.sendError(client, "device_command only available on device connections")
		return
	}

	data, ok := message.Data.(map[string]interface{})
	if !ok {
		h.sendError(client, "invalid command data")
		return
	}

	command, ok := data["command"].(string)
	if !ok {
		h.sendError(client, "command is required")
		return
	}

	params, _ := data["params"].(map[string]interface{})

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		result, err := h.sessionService.ExecuteCommand(ctx, *client.DeviceID, command, params)
		if err != nil {
			h.sendMessage(client, &WebSocketMessage{
				Type: "command_failed",
				Data: map[string]interface{}{
					"command": command,
					"error":   err.Error(),
				},
				Timestamp: time.Now(),
				RequestID: message.RequestID,
			})
			return
		}

		h.sendMessage(client, &WebSocketMessage{
			Type: "command_result",
			Data: map[string]interface{}{
				"command": command,
				"result":  result,
			},
			Timestamp: time.Now(),
			RequestID: message.RequestID,
		})
	}()
}

// sendMessage queues a message to a client; a slow client drops it
func (h *WebSocketHandler) sendMessage(client *Client, message *WebSocketMessage) {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("Failed to marshal WebSocket message", zap.Error(err))
		return
	}

	select {
	case client.Send <- data:
	default:
		h.logger.Warn("Client send buffer full, dropping message",
			zap.String("client_id", client.ID),
		)
	}
}

// sendError sends an error message to a client
func (h *WebSocketHandler) sendError(client *Client, errorMessage string) {
	h.sendMessage(client, &WebSocketMessage{
		Type: "error",
		Data: map[string]interface{}{
			"error": errorMessage,
		},
		Timestamp: time.Now(),
	})
}
