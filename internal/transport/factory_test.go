// internal/transport/factory_test.go
package transport

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"device-link/internal/model"
)

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name           string
		connectionType model.ConnectionType
		config         map[string]interface{}
		wantErr        bool
	}{
		{
			name:           "valid serial",
			connectionType: model.ConnectionTypeSerial,
			config:         map[string]interface{}{"port": "/dev/ttyUSB0", "baud_rate": float64(115200)},
			wantErr:        false,
		},
		{
			name:           "serial missing port",
			connectionType: model.ConnectionTypeSerial,
			config:         map[string]interface{}{"baud_rate": float64(115200)},
			wantErr:        true,
		},
		{
			name:           "serial nonstandard baud rate",
			connectionType: model.ConnectionTypeSerial,
			config:         map[string]interface{}{"port": "/dev/ttyUSB0", "baud_rate": float64(123456)},
			wantErr:        true,
		},
		{
			name:           "valid websocket url",
			connectionType: model.ConnectionTypeSocket,
			config:         map[string]interface{}{"url": "ws://192.168.4.1:8266/repl"},
			wantErr:        false,
		},
		{
			name:           "valid tcp url",
			connectionType: model.ConnectionTypeSocket,
			config:         map[string]interface{}{"url": "tcp://192.168.4.1:23"},
			wantErr:        false,
		},
		{
			name:           "socket missing url",
			connectionType: model.ConnectionTypeSocket,
			config:         map[string]interface{}{},
			wantErr:        true,
		},
		{
			name:           "valid cloud",
			connectionType: model.ConnectionTypeCloud,
			config:         map[string]interface{}{"broker_url": "tcp://broker:1883", "device_id": "board-1"},
			wantErr:        false,
		},
		{
			name:           "cloud missing device id",
			connectionType: model.ConnectionTypeCloud,
			config:         map[string]interface{}{"broker_url": "tcp://broker:1883"},
			wantErr:        true,
		},
		{
			name:           "unsupported type",
			connectionType: model.ConnectionType("carrier_pigeon"),
			config:         map[string]interface{}{},
			wantErr:        true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConfig(tt.connectionType, tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreateAppliesDefaults(t *testing.T) {
	logger := zap.NewNop()

	tr, err := Create(model.ConnectionTypeSerial, map[string]interface{}{
		"port": "/dev/ttyACM0",
	}, logger)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if tr.Type() != model.ConnectionTypeSerial {
		t.Errorf("Type() = %v, want %v", tr.Type(), model.ConnectionTypeSerial)
	}
	if tr.IsOpen() {
		t.Error("transport reports open before Open()")
	}

	serialTr, ok := tr.(*SerialTransport)
	if !ok {
		t.Fatalf("Create() returned %T, want *SerialTransport", tr)
	}
	if serialTr.config.BaudRate != 115200 {
		t.Errorf("default baud rate = %d, want 115200", serialTr.config.BaudRate)
	}
	if serialTr.config.Timeout != 5*time.Second {
		t.Errorf("default timeout = %v, want 5s", serialTr.config.Timeout)
	}
}

func TestCreateParsesOverrides(t *testing.T) {
	logger := zap.NewNop()

	tr, err := Create(model.ConnectionTypeCloud, map[string]interface{}{
		"broker_url":      "ssl://broker.example.com:8883",
		"device_id":       "bench-esp32",
		"topic_prefix":    "lab",
		"qos":             float64(2),
		"connect_timeout": "30s",
	}, logger)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	cloudTr, ok := tr.(*CloudTransport)
	if !ok {
		t.Fatalf("Create() returned %T, want *CloudTransport", tr)
	}
	if cloudTr.config.TopicPrefix != "lab" {
		t.Errorf("topic prefix = %q, want %q", cloudTr.config.TopicPrefix, "lab")
	}
	if cloudTr.config.QoS != 2 {
		t.Errorf("qos = %d, want 2", cloudTr.config.QoS)
	}
	if cloudTr.config.ConnectTimeout != 30*time.Second {
		t.Errorf("connect timeout = %v, want 30s", cloudTr.config.ConnectTimeout)
	}
}

func TestCreateRejectsMissingRequiredFields(t *testing.T) {
	logger := zap.NewNop()

	if _, err := Create(model.ConnectionTypeSerial, map[string]interface{}{}, logger); err == nil {
		t.Error("serial Create() without port should fail")
	}
	if _, err := Create(model.ConnectionTypeSocket, map[string]interface{}{}, logger); err == nil {
		t.Error("socket Create() without url should fail")
	}
	if _, err := Create(model.ConnectionTypeCloud, map[string]interface{}{"broker_url": "tcp://b:1883"}, logger); err == nil {
		t.Error("cloud Create() without device_id should fail")
	}
}
