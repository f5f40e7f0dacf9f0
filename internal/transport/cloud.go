// internal/transport/cloud.go
package transport

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"device-link/internal/model"
)

// CloudTransport implements Transport over an MQTT relay. The device and
// the service never talk directly; frames are exchanged on a per-device
// topic pair at the broker.
type CloudTransport struct {
	config *CloudConfig
	logger *zap.Logger

	mutex   sync.RWMutex
	client  mqtt.Client
	chunks  chan []byte
	readErr error
	isOpen  bool
	stats   LinkStats
}

// NewCloudTransport creates a new MQTT relay transport
func NewCloudTransport(config *CloudConfig, logger *zap.Logger) *CloudTransport {
	return &CloudTransport{
		config: config,
		logger: logger.With(
			zap.String("transport", "cloud"),
			zap.String("broker", config.BrokerURL),
			zap.String("device_id", config.DeviceID),
		),
	}
}

// inboundTopic is the device-to-host topic
func (ct *CloudTransport) inboundTopic() string {
	return fmt.Sprintf("%s/%s/out", ct.config.TopicPrefix, ct.config.DeviceID)
}

// outboundTopic is the host-to-device topic
func (ct *CloudTransport) outboundTopic() string {
	return fmt.Sprintf("%s/%s/in", ct.config.TopicPrefix, ct.config.DeviceID)
}

// Open connects to the broker and subscribes to the device's outbound
// topic
func (ct *CloudTransport) Open(ctx context.Context) error {
	ct.mutex.Lock()
	defer ct.mutex.Unlock()

	if ct.isOpen {
		return nil
	}

	timeout := ct.config.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	ct.logger.Info("Connecting to MQTT relay")

	opts := mqtt.NewClientOptions().
		AddBroker(ct.config.BrokerURL).
		SetClientID(fmt.Sprintf("device-link-%s", ct.config.DeviceID)).
		SetCleanSession(true).
		SetConnectTimeout(timeout).
		// The session state machine owns retry; the MQTT client must not
		// reconnect behind its back.
		SetAutoReconnect(false)

	if ct.config.Username != "" {
		opts.SetUsername(ct.config.Username)
		opts.SetPassword(ct.config.Password)
	}

	chunks := make(chan []byte, 64)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		ct.relayLost(err)
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		return NewConnectError(ReasonTimeout, fmt.Errorf("broker connect timed out after %s", timeout))
	}
	if err := token.Error(); err != nil {
		ct.logger.Error("Broker connect failed", zap.Error(err))
		return classifyBrokerError(err)
	}

	subToken := client.Subscribe(ct.inboundTopic(), ct.config.QoS, func(_ mqtt.Client, msg mqtt.Message) {
		payload := msg.Payload()
		// The lock orders this send against close(chunks) in Close and
		// relayLost; a message racing a teardown is dropped, not sent on
		// a closed channel.
		ct.mutex.Lock()
		defer ct.mutex.Unlock()
		if !ct.isOpen || ct.chunks != chunks {
			return
		}
		select {
		case chunks <- payload:
			ct.stats.BytesRead += int64(len(payload))
			ct.stats.LastActivity = time.Now()
		default:
			ct.logger.Warn("Inbound relay buffer full, dropping message")
		}
	})
	if !subToken.WaitTimeout(timeout) || subToken.Error() != nil {
		client.Disconnect(250)
		err := subToken.Error()
		if err == nil {
			err = fmt.Errorf("subscribe timed out after %s", timeout)
		}
		return NewConnectError(ReasonUnknown, fmt.Errorf("failed to subscribe to %s: %w", ct.inboundTopic(), err))
	}

	ct.client = client
	ct.chunks = chunks
	ct.readErr = nil
	ct.isOpen = true
	ct.stats.IsConnected = true
	ct.stats.LastActivity = time.Now()

	ct.logger.Info("MQTT relay connected",
		zap.String("inbound_topic", ct.inboundTopic()),
		zap.String("outbound_topic", ct.outboundTopic()),
	)
	return nil
}

// relayLost handles an unexpected broker disconnect
func (ct *CloudTransport) relayLost(err error) {
	ct.mutex.Lock()
	defer ct.mutex.Unlock()

	if !ct.isOpen {
		return
	}

	ct.readErr = fmt.Errorf("relay connection lost: %w", err)
	ct.stats.ErrorCount++
	ct.isOpen = false
	ct.stats.IsConnected = false
	ct.client = nil
	close(ct.chunks)
	ct.logger.Warn("MQTT relay lost", zap.Error(err))
}

// Write publishes one frame on the device's inbound topic
func (ct *CloudTransport) Write(ctx context.Context, data []byte) error {
	ct.mutex.RLock()
	client := ct.client
	open := ct.isOpen
	ct.mutex.RUnlock()

	if !open || client == nil {
		return ErrNotOpen
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	token := client.Publish(ct.outboundTopic(), ct.config.QoS, false, data)
	timeout := ct.config.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("publish timed out after %s", timeout)
	}
	if err := token.Error(); err != nil {
		ct.mutex.Lock()
		ct.stats.ErrorCount++
		ct.mutex.Unlock()
		ct.logger.Error("Relay publish failed", zap.Error(err))
		return fmt.Errorf("failed to publish to relay: %w", err)
	}

	ct.mutex.Lock()
	ct.stats.BytesWritten += int64(len(data))
	ct.stats.LastActivity = time.Now()
	ct.mutex.Unlock()

	return nil
}

// Chunks returns the inbound stream for the current open cycle
func (ct *CloudTransport) Chunks() <-chan []byte {
	ct.mutex.RLock()
	defer ct.mutex.RUnlock()
	return ct.chunks
}

// Err returns the terminal read error after the chunk stream closes
func (ct *CloudTransport) Err() error {
	ct.mutex.RLock()
	defer ct.mutex.RUnlock()
	return ct.readErr
}

// Close disconnects from the broker. Safe to call on an already-closed
// transport.
func (ct *CloudTransport) Close() error {
	ct.mutex.Lock()
	defer ct.mutex.Unlock()

	if !ct.isOpen || ct.client == nil {
		return nil
	}

	ct.isOpen = false
	ct.stats.IsConnected = false
	ct.client.Unsubscribe(ct.inboundTopic())
	ct.client.Disconnect(250)
	ct.client = nil
	close(ct.chunks)

	ct.logger.Info("MQTT relay disconnected")
	return nil
}

// IsOpen returns whether the link is open
func (ct *CloudTransport) IsOpen() bool {
	ct.mutex.RLock()
	defer ct.mutex.RUnlock()
	return ct.isOpen && ct.client != nil
}

// Type returns the connection type
func (ct *CloudTransport) Type() model.ConnectionType {
	return model.ConnectionTypeCloud
}

// Stats returns a snapshot of link statistics
func (ct *CloudTransport) Stats() LinkStats {
	ct.mutex.RLock()
	defer ct.mutex.RUnlock()
	return ct.stats
}

// classifyBrokerError maps paho connect errors to typed connect failures
func classifyBrokerError(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "not authorized") || strings.Contains(msg, "bad user name or password"):
		return NewConnectError(ReasonPermissionDenied, err)
	case strings.Contains(msg, "connection refused") || strings.Contains(msg, "no such host"):
		return NewConnectError(ReasonNotFound, err)
	case strings.Contains(msg, "timeout"):
		return NewConnectError(ReasonTimeout, err)
	}
	return NewConnectError(ReasonUnknown, err)
}
