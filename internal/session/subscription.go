// internal/session/subscription.go
package session

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"device-link/internal/model"
	"device-link/internal/protocol"
)

// heartbeatSub is the liveness probe subscription. While the session is
// connected it pings on a fixed interval; a run of consecutive failures
// reaching the threshold is treated as a dead link.
type heartbeatSub struct {
	interval  time.Duration
	threshold int
	stop      chan struct{} // non-nil while the runner goroutine is live
}

// adcStreamSub is the analog sampling subscription: a repeating read of
// one pin, fanned out to ADC listeners
type adcStreamSub struct {
	pin      int
	interval time.Duration
	stop     chan struct{}
}

// StartHeartbeat arms the liveness probe. If the session is connected
// the runner starts immediately; otherwise it starts on the next
// successful connect. Calling again replaces the previous settings.
func (s *Session) StartHeartbeat(interval time.Duration, failureThreshold int) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if failureThreshold <= 0 {
		failureThreshold = 3
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.stopHeartbeatLocked()
	s.heartbeat = &heartbeatSub{interval: interval, threshold: failureThreshold}
	if s.state == model.StateConnected {
		s.startHeartbeatLocked()
	}
}

// StopHeartbeat cancels the liveness probe. Idempotent.
func (s *Session) StopHeartbeat() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.stopHeartbeatLocked()
	s.heartbeat = nil
}

// StartADCStream arms the analog sampling stream for one pin. Calling
// again replaces the previous pin and interval.
func (s *Session) StartADCStream(pin int, interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.stopADCStreamLocked()
	s.adcStream = &adcStreamSub{pin: pin, interval: interval}
	if s.state == model.StateConnected {
		s.startADCStreamLocked()
	}
}

// StopADCStream cancels the analog sampling stream. Idempotent.
func (s *Session) StopADCStream() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.stopADCStreamLocked()
	s.adcStream = nil
}

// armConfiguredSubscriptionsLocked installs the subscriptions the
// session config enables, unless the caller already armed them
func (s *Session) armConfiguredSubscriptionsLocked() {
	if s.config.Heartbeat.Enabled && s.heartbeat == nil {
		s.heartbeat = &heartbeatSub{
			interval:  s.config.Heartbeat.Interval,
			threshold: s.config.Heartbeat.FailureThreshold,
		}
		if s.heartbeat.interval <= 0 {
			s.heartbeat.interval = 5 * time.Second
		}
		if s.heartbeat.threshold <= 0 {
			s.heartbeat.threshold = 3
		}
	}
	if s.config.ADCStream.Enabled && s.adcStream == nil {
		s.adcStream = &adcStreamSub{
			pin:      s.config.ADCStream.Pin,
			interval: s.config.ADCStream.Interval,
		}
		if s.adcStream.interval <= 0 {
			s.adcStream.interval = time.Second
		}
	}
}

// resumeSubscriptionsLocked starts runner goroutines for every armed
// subscription. Called on connect and after a successful reconnect.
func (s *Session) resumeSubscriptionsLocked() {
	s.startHeartbeatLocked()
	s.startADCStreamLocked()
}

// pauseSubscriptionsLocked stops runner goroutines but keeps the
// subscription settings, so a reconnect resumes them
func (s *Session) pauseSubscriptionsLocked() {
	s.stopHeartbeatLocked()
	s.stopADCStreamLocked()
}

func (s *Session) startHeartbeatLocked() {
	if s.heartbeat == nil || s.heartbeat.stop != nil {
		return
	}
	stop := make(chan struct{})
	s.heartbeat.stop = stop
	go s.heartbeatLoop(s.heartbeat.interval, s.heartbeat.threshold, stop)
}

func (s *Session) stopHeartbeatLocked() {
	if s.heartbeat != nil && s.heartbeat.stop != nil {
		close(s.heartbeat.stop)
		s.heartbeat.stop = nil
	}
}

func (s *Session) startADCStreamLocked() {
	if s.adcStream == nil || s.adcStream.stop != nil {
		return
	}
	stop := make(chan struct{})
	s.adcStream.stop = stop
	go s.adcStreamLoop(s.adcStream.pin, s.adcStream.interval, stop)
}

func (s *Session) stopADCStreamLocked() {
	if s.adcStream != nil && s.adcStream.stop != nil {
		close(s.adcStream.stop)
		s.adcStream.stop = nil
	}
}

// heartbeatLoop pings until stopped. The failure counter resets on any
// success; reaching the threshold forces the link-loss path.
func (s *Session) heartbeatLoop(interval time.Duration, threshold int, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), interval)
		_, err := s.Request(ctx, protocol.CmdPing, nil)
		cancel()

		if err == nil {
			failures = 0
			continue
		}

		failures++
		s.logger.Warn("Heartbeat ping failed",
			zap.Int("consecutive_failures", failures),
			zap.Int("threshold", threshold),
			zap.Error(err),
		)
		if failures >= threshold {
			s.linkFailure(fmt.Errorf("%d consecutive heartbeat failures: %w", failures, err))
			return
		}
	}
}

// adcStreamLoop samples one pin until stopped. Individual read failures
// are logged and skipped; liveness is the heartbeat's job.
func (s *Session) adcStreamLoop(pin int, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), interval)
		result, err := s.Request(ctx, protocol.CmdADCRead, map[string]interface{}{"pin": pin})
		cancel()

		if err != nil {
			s.logger.Debug("ADC sample failed",
				zap.Int("pin", pin),
				zap.Error(err),
			)
			continue
		}

		sample, ok := result.(*protocol.ADCReading)
		if !ok {
			continue
		}

		s.mutex.Lock()
		listeners := make([]ADCListener, len(s.adcListeners))
		copy(listeners, s.adcListeners)
		s.mutex.Unlock()

		for _, listener := range listeners {
			listener(*sample)
		}
	}
}
