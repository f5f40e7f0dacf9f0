// internal/transport/config.go
package transport

import "time"

// SerialConfig represents serial link configuration
type SerialConfig struct {
	Port     string        `json:"port"`
	BaudRate int           `json:"baud_rate"`
	DataBits int           `json:"data_bits"`
	StopBits int           `json:"stop_bits"`
	Parity   string        `json:"parity"`
	Timeout  time.Duration `json:"timeout"`
}

// SocketConfig represents WebSocket/TCP link configuration. URL scheme
// selects the carrier: ws:// and wss:// dial a WebSocket, tcp:// dials a
// plain stream socket.
type SocketConfig struct {
	URL            string        `json:"url"`
	ConnectTimeout time.Duration `json:"connect_timeout"`
	WriteTimeout   time.Duration `json:"write_timeout"`
}

// CloudConfig represents MQTT relay link configuration. Each device owns a
// topic pair under TopicPrefix: <prefix>/<device_id>/in for host-to-device
// frames and <prefix>/<device_id>/out for device-to-host frames.
type CloudConfig struct {
	BrokerURL      string        `json:"broker_url"`
	Username       string        `json:"username"`
	Password       string        `json:"password"`
	TopicPrefix    string        `json:"topic_prefix"`
	DeviceID       string        `json:"device_id"`
	QoS            byte          `json:"qos"`
	ConnectTimeout time.Duration `json:"connect_timeout"`
}
