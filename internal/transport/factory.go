// internal/transport/factory.go
package transport

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"device-link/internal/model"
)

// Create builds a transport for the given connection type from a loosely
// typed connection config (as stored on the device record)
func Create(connectionType model.ConnectionType, config map[string]interface{}, logger *zap.Logger) (Transport, error) {
	switch connectionType {
	case model.ConnectionTypeSerial:
		return createSerialTransport(config, logger)
	case model.ConnectionTypeSocket:
		return createSocketTransport(config, logger)
	case model.ConnectionTypeCloud:
		return createCloudTransport(config, logger)
	default:
		return nil, fmt.Errorf("unsupported connection type: %s", connectionType)
	}
}

// createSerialTransport builds a serial transport
func createSerialTransport(config map[string]interface{}, logger *zap.Logger) (Transport, error) {
	serialConfig := &SerialConfig{
		BaudRate: 115200,
		DataBits: 8,
		StopBits: 1,
		Parity:   "none",
		Timeout:  5 * time.Second,
	}

	if port, ok := config["port"].(string); ok {
		serialConfig.Port = port
	} else {
		return nil, fmt.Errorf("serial port is required")
	}

	if baudRate, ok := intValue(config["baud_rate"]); ok {
		serialConfig.BaudRate = baudRate
	}
	if dataBits, ok := intValue(config["data_bits"]); ok {
		serialConfig.DataBits = dataBits
	}
	if stopBits, ok := intValue(config["stop_bits"]); ok {
		serialConfig.StopBits = stopBits
	}
	if parity, ok := config["parity"].(string); ok {
		serialConfig.Parity = parity
	}
	if timeout, ok := durationValue(config["timeout"]); ok {
		serialConfig.Timeout = timeout
	}

	logger.Info("Creating serial transport",
		zap.String("port", serialConfig.Port),
		zap.Int("baud_rate", serialConfig.BaudRate),
	)

	return NewSerialTransport(serialConfig, logger), nil
}

// createSocketTransport builds a WebSocket/TCP transport
func createSocketTransport(config map[string]interface{}, logger *zap.Logger) (Transport, error) {
	socketConfig := &SocketConfig{
		ConnectTimeout: 10 * time.Second,
		WriteTimeout:   10 * time.Second,
	}

	if rawURL, ok := config["url"].(string); ok {
		socketConfig.URL = rawURL
	} else {
		return nil, fmt.Errorf("socket url is required")
	}

	if timeout, ok := durationValue(config["connect_timeout"]); ok {
		socketConfig.ConnectTimeout = timeout
	}
	if timeout, ok := durationValue(config["write_timeout"]); ok {
		socketConfig.WriteTimeout = timeout
	}

	logger.Info("Creating socket transport", zap.String("url", socketConfig.URL))

	return NewSocketTransport(socketConfig, logger), nil
}

// createCloudTransport builds an MQTT relay transport
func createCloudTransport(config map[string]interface{}, logger *zap.Logger) (Transport, error) {
	cloudConfig := &CloudConfig{
		TopicPrefix:    "devices",
		QoS:            1,
		ConnectTimeout: 10 * time.Second,
	}

	if broker, ok := config["broker_url"].(string); ok {
		cloudConfig.BrokerURL = broker
	} else {
		return nil, fmt.Errorf("cloud broker_url is required")
	}
	if deviceID, ok := config["device_id"].(string); ok {
		cloudConfig.DeviceID = deviceID
	} else {
		return nil, fmt.Errorf("cloud device_id is required")
	}

	if username, ok := config["username"].(string); ok {
		cloudConfig.Username = username
	}
	if password, ok := config["password"].(string); ok {
		cloudConfig.Password = password
	}
	if prefix, ok := config["topic_prefix"].(string); ok {
		cloudConfig.TopicPrefix = prefix
	}
	if qos, ok := intValue(config["qos"]); ok {
		cloudConfig.QoS = byte(qos)
	}
	if timeout, ok := durationValue(config["connect_timeout"]); ok {
		cloudConfig.ConnectTimeout = timeout
	}

	logger.Info("Creating cloud transport",
		zap.String("broker", cloudConfig.BrokerURL),
		zap.String("device_id", cloudConfig.DeviceID),
	)

	return NewCloudTransport(cloudConfig, logger), nil
}

// ValidateConfig validates a connection config for a given type without
// constructing the transport
func ValidateConfig(connectionType model.ConnectionType, config map[string]interface{}) error {
	switch connectionType {
	case model.ConnectionTypeSerial:
		if _, ok := config["port"].(string); !ok {
			return fmt.Errorf("serial port is required")
		}
		if rate, ok := intValue(config["baud_rate"]); ok {
			validRates := []int{1200, 2400, 4800, 9600, 19200, 38400, 57600, 115200, 230400, 460800, 921600}
			valid := false
			for _, validRate := range validRates {
				if rate == validRate {
					valid = true
					break
				}
			}
			if !valid {
				return fmt.Errorf("invalid baud rate: %d", rate)
			}
		}
		return nil
	case model.ConnectionTypeSocket:
		if _, ok := config["url"].(string); !ok {
			return fmt.Errorf("socket url is required")
		}
		return nil
	case model.ConnectionTypeCloud:
		if _, ok := config["broker_url"].(string); !ok {
			return fmt.Errorf("cloud broker_url is required")
		}
		if _, ok := config["device_id"].(string); !ok {
			return fmt.Errorf("cloud device_id is required")
		}
		return nil
	default:
		return fmt.Errorf("unsupported connection type: %s", connectionType)
	}
}

// intValue extracts an int from a decoded JSON value
func intValue(v interface{}) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	}
	return 0, false
}

// durationValue extracts a duration from a decoded JSON value
func durationValue(v interface{}) (time.Duration, bool) {
	if s, ok := v.(string); ok {
		if dur, err := time.ParseDuration(s); err == nil {
			return dur, true
		}
	}
	return 0, false
}
