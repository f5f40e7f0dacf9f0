// internal/session/session_test.go
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"device-link/internal/config"
	"device-link/internal/model"
	"device-link/internal/protocol"
	"device-link/internal/transport"
)

// fakeTransport is an in-memory link with a scriptable device on the
// other end
type fakeTransport struct {
	mutex     sync.Mutex
	open      bool
	chunks    chan []byte
	err       error
	opens     int
	failOpens int
	requests  []protocol.Request
	respond   func(req *protocol.Request) *protocol.Response
}

func (f *fakeTransport) Open(ctx context.Context) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.opens++
	if f.failOpens > 0 {
		f.failOpens--
		return errors.New("open failed")
	}
	f.open = true
	f.err = nil
	f.chunks = make(chan []byte, 64)
	return nil
}

func (f *fakeTransport) Write(ctx context.Context, data []byte) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if !f.open {
		return transport.ErrNotOpen
	}

	var req protocol.Request
	if err := json.Unmarshal(bytes.TrimSpace(data), &req); err != nil {
		return err
	}
	f.requests = append(f.requests, req)

	if f.respond != nil {
		if resp := f.respond(&req); resp != nil {
			line, _ := json.Marshal(resp)
			f.chunks <- append(line, '\n')
		}
	}
	return nil
}

func (f *fakeTransport) Chunks() <-chan []byte {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.chunks
}

func (f *fakeTransport) Err() error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.err
}

func (f *fakeTransport) Close() error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if f.open {
		f.open = false
		close(f.chunks)
	}
	return nil
}

func (f *fakeTransport) IsOpen() bool {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.open
}

func (f *fakeTransport) Type() model.ConnectionType {
	return model.ConnectionTypeSerial
}

// dropLink simulates the remote end going away
func (f *fakeTransport) dropLink(err error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if f.open {
		f.open = false
		f.err = err
		close(f.chunks)
	}
}

// inject pushes raw bytes to the session as if the device sent them
func (f *fakeTransport) inject(data []byte) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if f.open {
		f.chunks <- data
	}
}

func (f *fakeTransport) requestCount(command string) int {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	count := 0
	for _, req := range f.requests {
		if req.Command == command {
			count++
		}
	}
	return count
}

func echoResponder(req *protocol.Request) *protocol.Response {
	payload, _ := json.Marshal(map[string]interface{}{"uptime": 42})
	return &protocol.Response{ID: req.ID, Success: true, Payload: payload}
}

func newTestSession(t *testing.T, cfg Config, ft *fakeTransport) *Session {
	t.Helper()
	if cfg.DeviceID == "" {
		cfg.DeviceID = "test-device"
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 500 * time.Millisecond
	}
	return New(cfg, ft, zap.NewNop())
}

func waitForState(t *testing.T, s *Session, want model.ConnectionState) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("state = %s, want %s", s.State(), want)
}

func TestConnectAndPing(t *testing.T) {
	ft := &fakeTransport{respond: echoResponder}
	s := newTestSession(t, Config{}, ft)

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer s.Disconnect()

	if s.State() != model.StateConnected {
		t.Fatalf("state = %s, want CONNECTED", s.State())
	}

	ping, err := s.Ping(context.Background())
	if err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	if ping.Uptime != 42 {
		t.Errorf("uptime = %d, want 42", ping.Uptime)
	}
}

func TestConnectRejectsConcurrent(t *testing.T) {
	ft := &fakeTransport{}
	s := newTestSession(t, Config{}, ft)

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer s.Disconnect()

	if err := s.Connect(context.Background()); !errors.Is(err, ErrAlreadyConnected) {
		t.Errorf("second Connect = %v, want ErrAlreadyConnected", err)
	}
	if ft.opens != 1 {
		t.Errorf("opens = %d, want 1", ft.opens)
	}
}

func TestRequestWhileDisconnected(t *testing.T) {
	ft := &fakeTransport{}
	s := newTestSession(t, Config{}, ft)

	start := time.Now()
	_, err := s.Request(context.Background(), protocol.CmdPing, nil)
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("err = %v, want ErrNotConnected", err)
	}
	if time.Since(start) > 50*time.Millisecond {
		t.Error("rejection was not synchronous")
	}
	if len(ft.requests) != 0 {
		t.Error("no bytes should reach the transport")
	}
}

func TestConcurrentRequestsDistinctIDs(t *testing.T) {
	ft := &fakeTransport{respond: echoResponder}
	s := newTestSession(t, Config{}, ft)

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer s.Disconnect()

	const n = 50
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.Request(context.Background(), protocol.CmdPing, nil)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("request %d failed: %v", i, err)
		}
	}

	seen := make(map[string]bool)
	ft.mutex.Lock()
	defer ft.mutex.Unlock()
	for _, req := range ft.requests {
		if seen[req.ID] {
			t.Fatalf("duplicate correlation id %s", req.ID)
		}
		seen[req.ID] = true
	}
	if len(seen) != n {
		t.Errorf("distinct ids = %d, want %d", len(seen), n)
	}
}

func TestRequestTimeoutAndLateResponse(t *testing.T) {
	ft := &fakeTransport{} // silent device
	s := newTestSession(t, Config{RequestTimeout: 50 * time.Millisecond}, ft)

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer s.Disconnect()

	_, err := s.Request(context.Background(), protocol.CmdPing, nil)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if s.PendingCalls() != 0 {
		t.Errorf("pending = %d after timeout, want 0", s.PendingCalls())
	}

	// A response arriving after the timeout must be dropped silently.
	ft.mutex.Lock()
	lateID := ft.requests[0].ID
	ft.mutex.Unlock()
	line, _ := json.Marshal(protocol.Response{ID: lateID, Success: true})
	ft.inject(append(line, '\n'))

	// The session must still work afterwards.
	ft.mutex.Lock()
	ft.respond = echoResponder
	ft.mutex.Unlock()
	if _, err := s.Request(context.Background(), protocol.CmdPing, nil); err != nil {
		t.Errorf("request after late response failed: %v", err)
	}
}

func TestRequestTracedReturnsWireID(t *testing.T) {
	ft := &fakeTransport{respond: echoResponder}
	s := newTestSession(t, Config{}, ft)

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer s.Disconnect()

	_, id, err := s.RequestTraced(context.Background(), protocol.CmdPing, nil)
	if err != nil {
		t.Fatalf("RequestTraced failed: %v", err)
	}
	if id == "" {
		t.Fatal("no envelope id returned")
	}

	// The returned id must be the one that actually went over the wire.
	ft.mutex.Lock()
	wireID := ft.requests[0].ID
	ft.mutex.Unlock()
	if id != wireID {
		t.Errorf("returned id %q, wire carried %q", id, wireID)
	}
}

func TestRequestTracedNoIDWhenNothingSent(t *testing.T) {
	ft := &fakeTransport{}
	s := newTestSession(t, Config{}, ft)

	_, id, err := s.RequestTraced(context.Background(), protocol.CmdPing, nil)
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("err = %v, want ErrNotConnected", err)
	}
	if id != "" {
		t.Errorf("id = %q for a call that never hit the wire, want empty", id)
	}
}

func TestDeviceErrorSurfaced(t *testing.T) {
	ft := &fakeTransport{respond: func(req *protocol.Request) *protocol.Response {
		return &protocol.Response{ID: req.ID, Success: false, Error: "pin out of range"}
	}}
	s := newTestSession(t, Config{}, ft)

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer s.Disconnect()

	_, err := s.GPIORead(context.Background(), 99)
	var deviceErr *DeviceError
	if !errors.As(err, &deviceErr) {
		t.Fatalf("err = %v, want DeviceError", err)
	}
	if deviceErr.Message != "pin out of range" {
		t.Errorf("message = %q", deviceErr.Message)
	}
}

func TestConnectionLossFailsAllPending(t *testing.T) {
	ft := &fakeTransport{} // silent device keeps calls pending
	s := newTestSession(t, Config{RequestTimeout: 5 * time.Second}, ft)

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	const k = 8
	var wg sync.WaitGroup
	errs := make([]error, k)
	for i := 0; i < k; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.Request(context.Background(), protocol.CmdPing, nil)
		}(i)
	}

	deadline := time.Now().Add(2 * time.Second)
	for s.PendingCalls() < k && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if s.PendingCalls() != k {
		t.Fatalf("pending = %d, want %d", s.PendingCalls(), k)
	}

	ft.dropLink(errors.New("cable yanked"))
	wg.Wait()

	for i, err := range errs {
		if !errors.Is(err, ErrConnectionLost) {
			t.Errorf("request %d: err = %v, want ErrConnectionLost", i, err)
		}
	}

	// No reconnect policy configured, so the loss is terminal.
	waitForState(t, s, model.StateError)
}

func TestDisconnectIdempotent(t *testing.T) {
	ft := &fakeTransport{}
	s := newTestSession(t, Config{}, ft)

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if err := s.Disconnect(); err != nil {
		t.Fatalf("first Disconnect failed: %v", err)
	}
	if err := s.Disconnect(); err != nil {
		t.Fatalf("second Disconnect failed: %v", err)
	}
	if s.State() != model.StateDisconnected {
		t.Errorf("state = %s, want DISCONNECTED", s.State())
	}
}

func TestReconnectSucceeds(t *testing.T) {
	ft := &fakeTransport{respond: echoResponder}
	s := newTestSession(t, Config{
		Reconnect: config.ReconnectConfig{
			Enabled:     true,
			MaxAttempts: 3,
			Delay:       10 * time.Millisecond,
		},
	}, ft)

	var transitions []model.ConnectionState
	var transitionsMu sync.Mutex
	s.OnStatusChange(func(prev, cur model.ConnectionState) {
		transitionsMu.Lock()
		transitions = append(transitions, cur)
		transitionsMu.Unlock()
	})

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer s.Disconnect()

	ft.mutex.Lock()
	ft.failOpens = 1
	ft.mutex.Unlock()
	ft.dropLink(errors.New("link reset"))

	// The session is still in the pre-drop CONNECTED state until the read
	// loop observes the closed link; wait for RECONNECTING first so the
	// subsequent CONNECTED wait sees the recovered state.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		transitionsMu.Lock()
		seen := false
		for _, state := range transitions {
			if state == model.StateReconnecting {
				seen = true
			}
		}
		transitionsMu.Unlock()
		if seen {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	waitForState(t, s, model.StateConnected)

	if ft.opens < 3 {
		t.Errorf("opens = %d, want at least 3 (initial + failed retry + retry)", ft.opens)
	}

	transitionsMu.Lock()
	sawReconnecting := false
	for _, state := range transitions {
		if state == model.StateReconnecting {
			sawReconnecting = true
		}
	}
	transitionsMu.Unlock()
	if !sawReconnecting {
		t.Error("never observed RECONNECTING")
	}

	// The restored link must carry requests again.
	if _, err := s.Ping(context.Background()); err != nil {
		t.Errorf("ping after reconnect failed: %v", err)
	}
}

func TestReconnectExhaustsAttempts(t *testing.T) {
	ft := &fakeTransport{}
	s := newTestSession(t, Config{
		Reconnect: config.ReconnectConfig{
			Enabled:     true,
			MaxAttempts: 3,
			Delay:       10 * time.Millisecond,
		},
	}, ft)

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	ft.mutex.Lock()
	ft.failOpens = 100 // every retry fails
	ft.mutex.Unlock()
	ft.dropLink(errors.New("device unplugged"))

	waitForState(t, s, model.StateError)

	// initial open + exactly MaxAttempts retries
	ft.mutex.Lock()
	opens := ft.opens
	ft.mutex.Unlock()
	if opens != 4 {
		t.Errorf("opens = %d, want 4", opens)
	}
}

func TestDisconnectCancelsReconnect(t *testing.T) {
	ft := &fakeTransport{}
	s := newTestSession(t, Config{
		Reconnect: config.ReconnectConfig{
			Enabled:     true,
			MaxAttempts: 10,
			Delay:       time.Hour, // never fires
		},
	}, ft)

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	ft.dropLink(errors.New("gone"))
	waitForState(t, s, model.StateReconnecting)

	if err := s.Disconnect(); err != nil {
		t.Fatalf("Disconnect failed: %v", err)
	}
	if s.State() != model.StateDisconnected {
		t.Errorf("state = %s, want DISCONNECTED", s.State())
	}
}

func TestRateLimitSpacesRequests(t *testing.T) {
	ft := &fakeTransport{respond: echoResponder}
	s := newTestSession(t, Config{
		RateLimit: config.RateLimitConfig{
			Enabled:      true,
			MaxPerSecond: 100,
			MaxWaiters:   32,
		},
	}, ft)

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer s.Disconnect()

	const n = 10
	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Request(context.Background(), protocol.CmdPing, nil); err != nil {
				t.Errorf("request failed: %v", err)
			}
		}()
	}
	wg.Wait()

	// 100/sec means 10ms spacing: 10 calls need at least 90ms.
	if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
		t.Errorf("10 requests finished in %v, limiter not spacing", elapsed)
	}
}

func TestRateLimitRejectsWhenQueueFull(t *testing.T) {
	ft := &fakeTransport{respond: echoResponder}
	s := newTestSession(t, Config{
		RateLimit: config.RateLimitConfig{
			Enabled:      true,
			MaxPerSecond: 2, // 500ms spacing keeps waiters queued
			MaxWaiters:   3,
		},
	}, ft)

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer s.Disconnect()

	var rejected int32
	var wg sync.WaitGroup
	var rejectedMu sync.Mutex
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()
			_, err := s.Request(ctx, protocol.CmdPing, nil)
			if errors.Is(err, ErrRateLimited) {
				rejectedMu.Lock()
				rejected++
				rejectedMu.Unlock()
			}
		}()
	}
	wg.Wait()

	if rejected == 0 {
		t.Error("expected some requests to be rejected with ErrRateLimited")
	}
}

func TestHeartbeatDetectsDeadLink(t *testing.T) {
	var silent bool
	var silentMu sync.Mutex
	ft := &fakeTransport{}
	ft.respond = func(req *protocol.Request) *protocol.Response {
		silentMu.Lock()
		defer silentMu.Unlock()
		if silent {
			return nil
		}
		return echoResponder(req)
	}
	s := newTestSession(t, Config{
		RequestTimeout: 50 * time.Millisecond,
		Heartbeat: config.HeartbeatConfig{
			Enabled:          true,
			Interval:         30 * time.Millisecond,
			FailureThreshold: 2,
		},
	}, ft)

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer s.Disconnect()

	// Let a few heartbeats succeed, then mute the device.
	time.Sleep(100 * time.Millisecond)
	if got := ft.requestCount(protocol.CmdPing); got == 0 {
		t.Fatal("heartbeat never pinged")
	}

	silentMu.Lock()
	silent = true
	silentMu.Unlock()

	// Two consecutive failures must tear the link down; no reconnect
	// policy means terminal error.
	waitForState(t, s, model.StateError)
}

func TestADCStreamFansOutSamples(t *testing.T) {
	ft := &fakeTransport{}
	ft.respond = func(req *protocol.Request) *protocol.Response {
		if req.Command != protocol.CmdADCRead {
			return echoResponder(req)
		}
		payload, _ := json.Marshal(protocol.ADCReading{Pin: 34, RawValue: 2048, Voltage: 1.65})
		return &protocol.Response{ID: req.ID, Success: true, Payload: payload}
	}
	s := newTestSession(t, Config{}, ft)

	var samples []protocol.ADCReading
	var samplesMu sync.Mutex
	s.OnADCSample(func(sample protocol.ADCReading) {
		samplesMu.Lock()
		samples = append(samples, sample)
		samplesMu.Unlock()
	})

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer s.Disconnect()

	s.StartADCStream(34, 20*time.Millisecond)
	defer s.StopADCStream()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		samplesMu.Lock()
		count := len(samples)
		samplesMu.Unlock()
		if count >= 3 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	samplesMu.Lock()
	defer samplesMu.Unlock()
	if len(samples) < 3 {
		t.Fatalf("samples = %d, want at least 3", len(samples))
	}
	if samples[0].Pin != 34 || samples[0].RawValue != 2048 {
		t.Errorf("unexpected sample: %+v", samples[0])
	}
}

func TestUnsolicitedEventsReachListeners(t *testing.T) {
	ft := &fakeTransport{}
	s := newTestSession(t, Config{}, ft)

	var events []protocol.Event
	var eventsMu sync.Mutex
	s.OnEvent(func(event protocol.Event) {
		eventsMu.Lock()
		events = append(events, event)
		eventsMu.Unlock()
	})

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer s.Disconnect()

	line, _ := json.Marshal(protocol.Event{Type: protocol.EventTypeLog, Level: "info", Message: "boot complete"})
	ft.inject(append(line, '\n'))

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		eventsMu.Lock()
		count := len(events)
		eventsMu.Unlock()
		if count > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	eventsMu.Lock()
	defer eventsMu.Unlock()
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	if events[0].Message != "boot complete" {
		t.Errorf("message = %q", events[0].Message)
	}
}

func TestOTATransferChunking(t *testing.T) {
	ft := &fakeTransport{respond: func(req *protocol.Request) *protocol.Response {
		return &protocol.Response{ID: req.ID, Success: true}
	}}
	s := newTestSession(t, Config{
		OTA: config.OTAConfig{ChunkSize: 512},
	}, ft)

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer s.Disconnect()

	content := make([]byte, 10*1024)
	for i := range content {
		content[i] = byte(i)
	}

	var progress []int
	err := s.OTAUpdate(context.Background(), "firmware.bin", content, func(percent int) {
		progress = append(progress, percent)
	})
	if err != nil {
		t.Fatalf("OTAUpdate failed: %v", err)
	}

	if got := ft.requestCount(protocol.CmdOTABegin); got != 1 {
		t.Errorf("ota_begin count = %d, want 1", got)
	}
	if got := ft.requestCount(protocol.CmdOTAChunk); got != 20 {
		t.Errorf("ota_chunk count = %d, want 20", got)
	}
	if got := ft.requestCount(protocol.CmdOTAComplete); got != 1 {
		t.Errorf("ota_complete count = %d, want 1", got)
	}

	if len(progress) == 0 {
		t.Fatal("no progress reported")
	}
	for i := 1; i < len(progress); i++ {
		if progress[i] <= progress[i-1] {
			t.Errorf("progress not strictly increasing: %v", progress)
		}
	}
	if progress[len(progress)-1] != 100 {
		t.Errorf("final progress = %d, want 100", progress[len(progress)-1])
	}

	status := s.OTAStatusSnapshot()
	if status == nil || status.State != "complete" {
		t.Errorf("status = %+v, want complete", status)
	}
}

func TestOTARejectsConcurrentTransfer(t *testing.T) {
	ft := &fakeTransport{respond: func(req *protocol.Request) *protocol.Response {
		if req.Command == protocol.CmdOTAChunk {
			time.Sleep(20 * time.Millisecond)
		}
		return &protocol.Response{ID: req.ID, Success: true}
	}}
	s := newTestSession(t, Config{
		OTA: config.OTAConfig{ChunkSize: 64},
	}, ft)

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer s.Disconnect()

	content := make([]byte, 1024)
	firstDone := make(chan error, 1)
	go func() {
		firstDone <- s.OTAUpdate(context.Background(), "a.bin", content, nil)
	}()

	time.Sleep(30 * time.Millisecond)
	if err := s.OTAUpdate(context.Background(), "b.bin", content, nil); !errors.Is(err, ErrOTAInProgress) {
		t.Errorf("concurrent OTA = %v, want ErrOTAInProgress", err)
	}

	if err := <-firstDone; err != nil {
		t.Errorf("first OTA failed: %v", err)
	}
}

func TestOTAFailureSendsAbort(t *testing.T) {
	ft := &fakeTransport{respond: func(req *protocol.Request) *protocol.Response {
		if req.Command == protocol.CmdOTAChunk {
			var params struct {
				Index int `json:"index"`
			}
			raw, _ := json.Marshal(req.Params)
			json.Unmarshal(raw, &params)
			if params.Index == 2 {
				return &protocol.Response{ID: req.ID, Success: false, Error: "flash write failed"}
			}
		}
		return &protocol.Response{ID: req.ID, Success: true}
	}}
	s := newTestSession(t, Config{
		OTA: config.OTAConfig{ChunkSize: 64},
	}, ft)

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer s.Disconnect()

	err := s.OTAUpdate(context.Background(), "bad.bin", make([]byte, 1024), nil)
	var otaErr *OTAError
	if !errors.As(err, &otaErr) {
		t.Fatalf("err = %v, want OTAError", err)
	}
	if otaErr.Stage != "chunk" || otaErr.Chunk != 2 {
		t.Errorf("failed at %s/%d, want chunk/2", otaErr.Stage, otaErr.Chunk)
	}

	if got := ft.requestCount(protocol.CmdOTAAbort); got != 1 {
		t.Errorf("ota_abort count = %d, want 1", got)
	}
	if status := s.OTAStatusSnapshot(); status == nil || status.State != "failed" {
		t.Errorf("status = %+v, want failed", status)
	}
}

func TestVoltagePayloadDecodedForADC(t *testing.T) {
	ft := &fakeTransport{respond: func(req *protocol.Request) *protocol.Response {
		payload, _ := json.Marshal(protocol.ADCReading{Pin: 36, RawValue: 4095, Voltage: 3.3})
		return &protocol.Response{ID: req.ID, Success: true, Payload: payload}
	}}
	s := newTestSession(t, Config{}, ft)

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer s.Disconnect()

	reading, err := s.ADCRead(context.Background(), 36)
	if err != nil {
		t.Fatalf("ADCRead failed: %v", err)
	}
	if reading.Pin != 36 || reading.RawValue != 4095 {
		t.Errorf("unexpected reading: %+v", reading)
	}
	if fmt.Sprintf("%.1f", reading.Voltage) != "3.3" {
		t.Errorf("voltage = %v, want 3.3", reading.Voltage)
	}
}
