// internal/session/correlator_test.go
package session

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"device-link/internal/protocol"
)

func TestCorrelatorResolveDeliversPayload(t *testing.T) {
	c := newCorrelator(zap.NewNop())
	req := protocol.NewRequest(protocol.CmdPing, nil)
	call := c.register(req, time.Second)

	payload := json.RawMessage(`{"uptime":7}`)
	c.resolve(&protocol.Response{ID: req.ID, Success: true, Payload: payload})

	result := <-call.done
	if result.err != nil {
		t.Fatalf("err = %v", result.err)
	}
	if string(result.payload) != string(payload) {
		t.Errorf("payload = %s", result.payload)
	}
	if c.pendingCount() != 0 {
		t.Errorf("pending = %d, want 0", c.pendingCount())
	}
}

func TestCorrelatorTimeoutSettlesOnce(t *testing.T) {
	c := newCorrelator(zap.NewNop())
	req := protocol.NewRequest(protocol.CmdPing, nil)
	call := c.register(req, 20*time.Millisecond)

	result := <-call.done
	if !errors.Is(result.err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", result.err)
	}

	// A response after the timeout must not deliver a second result.
	c.resolve(&protocol.Response{ID: req.ID, Success: true})
	select {
	case extra := <-call.done:
		t.Fatalf("unexpected second delivery: %+v", extra)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCorrelatorResponseRacingTimeout(t *testing.T) {
	c := newCorrelator(zap.NewNop())

	// Hammer the race between resolve and the timeout; every call must be
	// settled exactly once whichever side wins.
	const n = 200
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		req := protocol.NewRequest(protocol.CmdPing, nil)
		call := c.register(req, time.Duration(i%5)*time.Millisecond)
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			c.resolve(&protocol.Response{ID: id, Success: true})
		}(req.ID)
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-call.done
		}()
	}
	wg.Wait()

	if c.pendingCount() != 0 {
		t.Errorf("pending = %d, want 0", c.pendingCount())
	}
}

func TestCorrelatorFailAll(t *testing.T) {
	c := newCorrelator(zap.NewNop())

	calls := make([]*pendingCall, 5)
	for i := range calls {
		calls[i] = c.register(protocol.NewRequest(protocol.CmdPing, nil), time.Minute)
	}

	cause := errors.New("link gone")
	if count := c.failAll(cause); count != 5 {
		t.Errorf("failAll = %d, want 5", count)
	}

	for i, call := range calls {
		result := <-call.done
		if !errors.Is(result.err, cause) {
			t.Errorf("call %d err = %v, want %v", i, result.err, cause)
		}
	}
	if c.pendingCount() != 0 {
		t.Errorf("pending = %d, want 0", c.pendingCount())
	}
}

func TestCorrelatorUnmatchedResponseIgnored(t *testing.T) {
	c := newCorrelator(zap.NewNop())
	c.resolve(&protocol.Response{ID: "never-issued", Success: true})
	if c.pendingCount() != 0 {
		t.Errorf("pending = %d, want 0", c.pendingCount())
	}
}
