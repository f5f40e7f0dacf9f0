// internal/session/session.go
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"device-link/internal/config"
	"device-link/internal/model"
	"device-link/internal/protocol"
	"device-link/internal/transport"
)

// reconnectOpenTimeout bounds transport opens performed by the
// reconnect path, where no caller context is available
const reconnectOpenTimeout = 30 * time.Second

// Config holds per-session behavior. Zero values fall back to the
// service-wide defaults applied by the service layer.
type Config struct {
	DeviceID       string
	RequestTimeout time.Duration
	Reconnect      config.ReconnectConfig
	RateLimit      config.RateLimitConfig
	Heartbeat      config.HeartbeatConfig
	ADCStream      config.ADCStreamConfig
	OTA            config.OTAConfig
}

// StatusListener observes connection state transitions
type StatusListener func(previous, current model.ConnectionState)

// EventListener observes unsolicited pushes from the device
type EventListener func(event protocol.Event)

// ADCListener observes analog samples from the sampling stream
type ADCListener func(sample protocol.ADCReading)

// Session owns one device channel: the transport handle, the pending
// call map, the subscription set and the connection state machine.
// Multiple devices mean multiple sessions; there is no shared state
// between them.
type Session struct {
	config    Config
	transport transport.Transport
	logger    *zap.Logger
	decoder   *protocol.Decoder
	calls     *correlator
	limiter   *rateLimiter

	mutex            sync.Mutex
	state            model.ConnectionState
	reconnectTimer   *time.Timer
	reconnectAttempt int

	statusListeners []StatusListener
	eventListeners  []EventListener
	adcListeners    []ADCListener

	heartbeat *heartbeatSub
	adcStream *adcStreamSub

	otaActive bool
	otaStatus *OTAStatus
}

// New creates a session over the given transport. The session starts
// disconnected; nothing touches the link until Connect.
func New(cfg Config, t transport.Transport, logger *zap.Logger) *Session {
	sessionLogger := logger.With(zap.String("device_id", cfg.DeviceID))

	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 5 * time.Second
	}

	return &Session{
		config:    cfg,
		transport: t,
		logger:    sessionLogger,
		decoder:   protocol.NewDecoder(sessionLogger),
		calls:     newCorrelator(sessionLogger),
		limiter:   newRateLimiter(cfg.RateLimit),
		state:     model.StateDisconnected,
	}
}

// DeviceID returns the device this session is bound to
func (s *Session) DeviceID() string {
	return s.config.DeviceID
}

// State returns the current connection state
func (s *Session) State() model.ConnectionState {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.state
}

// TransportType returns the carrier type of the underlying link
func (s *Session) TransportType() model.ConnectionType {
	return s.transport.Type()
}

// PendingCalls reports the number of in-flight requests
func (s *Session) PendingCalls() int {
	return s.calls.pendingCount()
}

// OnStatusChange registers a state transition listener. Listeners are
// invoked synchronously in registration order.
func (s *Session) OnStatusChange(listener StatusListener) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.statusListeners = append(s.statusListeners, listener)
}

// OnEvent registers a listener for unsolicited device pushes
func (s *Session) OnEvent(listener EventListener) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.eventListeners = append(s.eventListeners, listener)
}

// OnADCSample registers a listener for the analog sampling stream
func (s *Session) OnADCSample(listener ADCListener) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.adcListeners = append(s.adcListeners, listener)
}

// Connect opens the transport and enters the connected state. Only one
// connect may be in flight; a concurrent call while connecting,
// connected or reconnecting is rejected without opening a second handle.
func (s *Session) Connect(ctx context.Context) error {
	s.mutex.Lock()
	switch s.state {
	case model.StateConnecting, model.StateConnected, model.StateReconnecting:
		s.mutex.Unlock()
		return ErrAlreadyConnected
	}
	prev := s.setStateLocked(model.StateConnecting)
	s.mutex.Unlock()
	s.notifyStatus(prev, model.StateConnecting)

	err := s.transport.Open(ctx)

	s.mutex.Lock()
	if s.state != model.StateConnecting {
		// Disconnect raced the open; make sure no handle survives.
		s.mutex.Unlock()
		if err == nil {
			s.transport.Close()
		}
		return ErrNotConnected
	}

	if err != nil {
		prev := s.setStateLocked(model.StateError)
		s.mutex.Unlock()
		s.notifyStatus(prev, model.StateError)
		return err
	}

	s.decoder.Reset()
	s.reconnectAttempt = 0
	s.armConfiguredSubscriptionsLocked()
	chunks := s.transport.Chunks()
	prev = s.setStateLocked(model.StateConnected)
	s.resumeSubscriptionsLocked()
	s.mutex.Unlock()

	s.notifyStatus(prev, model.StateConnected)
	go s.readLoop(chunks)

	s.logger.Info("Session connected",
		zap.String("transport", string(s.transport.Type())),
	)
	return nil
}

// Disconnect tears the session down: it halts any reconnect in flight,
// cancels all subscriptions and their timers, fails pending calls and
// closes the transport. Idempotent and safe to call from any state.
func (s *Session) Disconnect() error {
	s.mutex.Lock()
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
		s.reconnectTimer = nil
	}
	s.pauseSubscriptionsLocked()
	s.heartbeat = nil
	s.adcStream = nil
	s.otaActive = false
	prev := s.setStateLocked(model.StateDisconnected)
	s.mutex.Unlock()

	s.transport.Close()
	s.calls.failAll(ErrConnectionLost)

	if prev != model.StateDisconnected {
		s.notifyStatus(prev, model.StateDisconnected)
		s.logger.Info("Session disconnected")
	}
	return nil
}

// Request issues a command with the session's default timeout
func (s *Session) Request(ctx context.Context, command string, params map[string]interface{}) (interface{}, error) {
	return s.RequestWithTimeout(ctx, command, params, s.config.RequestTimeout)
}

// RequestWithTimeout issues a command and waits for the correlated
// response. Calls made while not connected fail immediately with
// ErrNotConnected; no I/O is attempted. Concurrent requests are
// independent and may complete out of issue order.
func (s *Session) RequestWithTimeout(ctx context.Context, command string, params map[string]interface{}, timeout time.Duration) (interface{}, error) {
	result, _, err := s.requestTimed(ctx, command, params, timeout)
	return result, err
}

// RequestTraced issues a command with the session's default timeout and
// also returns the envelope id that went over the wire, so history rows
// can be matched against device-side logs. The id is empty when the
// call was rejected before anything was sent.
func (s *Session) RequestTraced(ctx context.Context, command string, params map[string]interface{}) (interface{}, string, error) {
	return s.requestTimed(ctx, command, params, s.config.RequestTimeout)
}

func (s *Session) requestTimed(ctx context.Context, command string, params map[string]interface{}, timeout time.Duration) (interface{}, string, error) {
	raw, id, err := s.roundTrip(ctx, command, params, timeout)
	if err != nil {
		return nil, id, err
	}
	result, err := protocol.DecodePayload(command, raw)
	return result, id, err
}

// roundTrip performs the wire exchange and returns the raw payload
// along with the envelope id it was issued under
func (s *Session) roundTrip(ctx context.Context, command string, params map[string]interface{}, timeout time.Duration) (json.RawMessage, string, error) {
	if s.State() != model.StateConnected {
		return nil, "", ErrNotConnected
	}

	if err := s.limiter.acquire(ctx); err != nil {
		return nil, "", err
	}

	// The link may have dropped while the call was queued at the limiter.
	if s.State() != model.StateConnected {
		return nil, "", ErrNotConnected
	}

	req := protocol.NewRequest(command, params)
	call := s.calls.register(req, timeout)

	data, err := protocol.EncodeRequest(req)
	if err != nil {
		s.calls.fail(req.ID, err)
		<-call.done
		return nil, req.ID, err
	}

	if err := s.transport.Write(ctx, data); err != nil {
		s.calls.fail(req.ID, err)
		<-call.done
		return nil, req.ID, fmt.Errorf("failed to send %s: %w", command, err)
	}

	select {
	case result := <-call.done:
		return result.payload, req.ID, result.err
	case <-ctx.Done():
		// Settle the call ourselves unless a response won the race; the
		// done channel carries the single authoritative result either way.
		s.calls.fail(req.ID, ctx.Err())
		result := <-call.done
		return result.payload, req.ID, result.err
	}
}

// readLoop drains the transport's chunk stream for one open cycle
func (s *Session) readLoop(chunks <-chan []byte) {
	for chunk := range chunks {
		for _, msg := range s.decoder.Push(chunk) {
			s.dispatch(msg)
		}
	}
	s.linkDown(s.transport.Err())
}

// dispatch routes one inbound message
func (s *Session) dispatch(msg protocol.Message) {
	switch {
	case msg.Response != nil:
		s.calls.resolve(msg.Response)
	case msg.Event != nil:
		s.dispatchEvent(*msg.Event)
	}
}

// dispatchEvent fans an unsolicited push out to listeners in
// registration order
func (s *Session) dispatchEvent(event protocol.Event) {
	s.mutex.Lock()
	eventListeners := make([]EventListener, len(s.eventListeners))
	copy(eventListeners, s.eventListeners)
	adcListeners := make([]ADCListener, len(s.adcListeners))
	copy(adcListeners, s.adcListeners)
	s.mutex.Unlock()

	if event.Type == protocol.EventTypeData && event.Topic == "adc" && len(event.Payload) > 0 {
		var sample protocol.ADCReading
		if err := json.Unmarshal(event.Payload, &sample); err == nil {
			for _, listener := range adcListeners {
				listener(sample)
			}
		} else {
			s.logger.Warn("Dropping malformed adc push", zap.Error(err))
		}
	}

	for _, listener := range eventListeners {
		listener(event)
	}
}

// linkDown handles the end of a read cycle. A user-initiated disconnect
// has already moved the state machine on; only an unexpected loss while
// connected triggers recovery.
func (s *Session) linkDown(cause error) {
	s.mutex.Lock()
	if s.state != model.StateConnected {
		s.mutex.Unlock()
		return
	}
	s.beginRecoveryLocked(cause)
}

// linkFailure forces the unexpected-loss path from inside the session
// (heartbeat liveness failures take this route)
func (s *Session) linkFailure(cause error) {
	s.mutex.Lock()
	if s.state != model.StateConnected {
		s.mutex.Unlock()
		return
	}
	s.beginRecoveryLocked(cause)
}

// beginRecoveryLocked transitions out of connected after a loss. Pending
// calls are failed immediately with ErrConnectionLost; subscriptions are
// paused but kept so they resume after a successful retry. Called with
// the mutex held; releases it.
func (s *Session) beginRecoveryLocked(cause error) {
	s.logger.Warn("Device link lost", zap.Error(cause))

	s.pauseSubscriptionsLocked()
	s.otaActive = false

	var next model.ConnectionState
	if s.config.Reconnect.Enabled && s.config.Reconnect.MaxAttempts > 0 {
		next = model.StateReconnecting
	} else {
		next = model.StateError
	}
	prev := s.setStateLocked(next)
	if next == model.StateReconnecting {
		s.scheduleReconnectLocked()
	}
	s.mutex.Unlock()

	s.transport.Close()
	s.calls.failAll(ErrConnectionLost)
	s.notifyStatus(prev, next)
}

// scheduleReconnectLocked arms the retry timer for the next attempt
func (s *Session) scheduleReconnectLocked() {
	delay := s.reconnectDelay(s.reconnectAttempt)
	s.logger.Info("Scheduling reconnect",
		zap.Int("attempt", s.reconnectAttempt+1),
		zap.Duration("delay", delay),
	)
	s.reconnectTimer = time.AfterFunc(delay, s.attemptReconnect)
}

// reconnectDelay computes the delay before the given attempt number,
// fixed or multiplied per attempt depending on the backoff factor
func (s *Session) reconnectDelay(attempt int) time.Duration {
	delay := s.config.Reconnect.Delay
	if delay <= 0 {
		delay = time.Second
	}
	factor := s.config.Reconnect.BackoffFactor
	if factor > 1.0 && attempt > 0 {
		delay = time.Duration(float64(delay) * math.Pow(factor, float64(attempt)))
	}
	return delay
}

// attemptReconnect runs one retry attempt
func (s *Session) attemptReconnect() {
	s.mutex.Lock()
	if s.state != model.StateReconnecting {
		s.mutex.Unlock()
		return
	}
	s.reconnectTimer = nil
	s.mutex.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), reconnectOpenTimeout)
	err := s.transport.Open(ctx)
	cancel()

	s.mutex.Lock()
	if s.state != model.StateReconnecting {
		// Disconnect raced the retry; do not keep a stray handle.
		s.mutex.Unlock()
		if err == nil {
			s.transport.Close()
		}
		return
	}

	if err != nil {
		s.reconnectAttempt++
		s.logger.Warn("Reconnect attempt failed",
			zap.Int("attempt", s.reconnectAttempt),
			zap.Int("max_attempts", s.config.Reconnect.MaxAttempts),
			zap.Error(err),
		)
		if s.reconnectAttempt >= s.config.Reconnect.MaxAttempts {
			prev := s.setStateLocked(model.StateError)
			s.mutex.Unlock()
			s.notifyStatus(prev, model.StateError)
			s.logger.Error("Reconnect attempts exhausted")
			return
		}
		s.scheduleReconnectLocked()
		s.mutex.Unlock()
		return
	}

	s.decoder.Reset()
	s.reconnectAttempt = 0
	chunks := s.transport.Chunks()
	prev := s.setStateLocked(model.StateConnected)
	s.resumeSubscriptionsLocked()
	s.mutex.Unlock()

	s.notifyStatus(prev, model.StateConnected)
	go s.readLoop(chunks)

	s.logger.Info("Session reconnected")
}

// setStateLocked records a transition and returns the previous state
func (s *Session) setStateLocked(next model.ConnectionState) model.ConnectionState {
	prev := s.state
	s.state = next
	return prev
}

// notifyStatus invokes status listeners in registration order
func (s *Session) notifyStatus(prev, next model.ConnectionState) {
	if prev == next {
		return
	}
	s.mutex.Lock()
	listeners := make([]StatusListener, len(s.statusListeners))
	copy(listeners, s.statusListeners)
	s.mutex.Unlock()

	for _, listener := range listeners {
		listener(prev, next)
	}
}
