// internal/model/device.go
package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// BoardFamily represents the microcontroller family of a device
type BoardFamily string

const (
	BoardFamilyESP32   BoardFamily = "ESP32"
	BoardFamilyESP8266 BoardFamily = "ESP8266"
	BoardFamilyRP2040  BoardFamily = "RP2040"
	BoardFamilyAVR     BoardFamily = "AVR"
	BoardFamilySTM32   BoardFamily = "STM32"
	BoardFamilyGeneric BoardFamily = "GENERIC"
)

// ConnectionType represents how the device channel is carried
type ConnectionType string

const (
	ConnectionTypeSerial ConnectionType = "SERIAL"
	ConnectionTypeSocket ConnectionType = "SOCKET"
	ConnectionTypeCloud  ConnectionType = "CLOUD"
)

// ConnectionState represents the state of a device session
type ConnectionState string

const (
	StateDisconnected ConnectionState = "DISCONNECTED"
	StateConnecting   ConnectionState = "CONNECTING"
	StateConnected    ConnectionState = "CONNECTED"
	StateReconnecting ConnectionState = "RECONNECTING"
	StateError        ConnectionState = "ERROR"
)

// JSONObject type for PostgreSQL JSONB objects
type JSONObject map[string]interface{}

func (j *JSONObject) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, j)
}

func (j JSONObject) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Device represents a registered device session target
type Device struct {
	ID               uuid.UUID       `json:"id" db:"id"`
	DeviceID         string          `json:"device_id" db:"device_id"`
	Name             string          `json:"name" db:"name"`
	BoardFamily      BoardFamily     `json:"board_family" db:"board_family"`
	FirmwareVersion  *string         `json:"firmware_version" db:"firmware_version"`
	ConnectionType   ConnectionType  `json:"connection_type" db:"connection_type"`
	ConnectionConfig JSONObject      `json:"connection_config" db:"connection_config"`
	State            ConnectionState `json:"state" db:"state"`
	LastSeen         *time.Time      `json:"last_seen" db:"last_seen"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at" db:"updated_at"`
}

// IsConnected checks if the device session is currently established
func (d *Device) IsConnected() bool {
	return d.State == StateConnected
}
