// internal/session/correlator.go
package session

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"device-link/internal/protocol"
)

// callResult carries the outcome of one correlated call
type callResult struct {
	payload json.RawMessage
	err     error
}

// pendingCall tracks one in-flight request until its response, timeout
// or connection loss
type pendingCall struct {
	id       string
	command  string
	issuedAt time.Time
	timer    *time.Timer
	done     chan callResult
}

// correlator matches inbound responses to pending callers by id. Every
// registered call is settled exactly once: the settling path removes the
// entry from the map under the lock, so a response racing a timeout (or
// a connection loss) cannot deliver twice.
type correlator struct {
	mutex   sync.Mutex
	pending map[string]*pendingCall
	logger  *zap.Logger
}

// newCorrelator creates a correlator
func newCorrelator(logger *zap.Logger) *correlator {
	return &correlator{
		pending: make(map[string]*pendingCall),
		logger:  logger.With(zap.String("component", "correlator")),
	}
}

// register creates a pending call for the given envelope and arms its
// timeout
func (c *correlator) register(req *protocol.Request, timeout time.Duration) *pendingCall {
	call := &pendingCall{
		id:       req.ID,
		command:  req.Command,
		issuedAt: time.Now(),
		done:     make(chan callResult, 1),
	}

	c.mutex.Lock()
	c.pending[call.id] = call
	c.mutex.Unlock()

	call.timer = time.AfterFunc(timeout, func() {
		if c.settle(call.id, callResult{err: ErrTimeout}) {
			c.logger.Debug("Request timed out",
				zap.String("id", call.id),
				zap.String("command", call.command),
			)
		}
	})

	return call
}

// resolve settles the pending call matching an inbound response. An
// unmatched response (late after timeout, or never ours) is logged and
// dropped.
func (c *correlator) resolve(resp *protocol.Response) {
	var result callResult
	if resp.Success {
		result.payload = resp.Payload
	} else {
		c.mutex.Lock()
		call, ok := c.pending[resp.ID]
		c.mutex.Unlock()
		if ok {
			result.err = &DeviceError{Command: call.command, Message: resp.Error}
		}
	}

	if !c.settle(resp.ID, result) {
		c.logger.Debug("Dropping response with no pending call",
			zap.String("id", resp.ID),
		)
	}
}

// fail settles one pending call with an error
func (c *correlator) fail(id string, err error) bool {
	return c.settle(id, callResult{err: err})
}

// failAll settles every pending call with the same error. Used when the
// transport drops so no caller is left awaiting a response that cannot
// arrive.
func (c *correlator) failAll(err error) int {
	c.mutex.Lock()
	calls := make([]*pendingCall, 0, len(c.pending))
	for _, call := range c.pending {
		calls = append(calls, call)
	}
	c.pending = make(map[string]*pendingCall)
	c.mutex.Unlock()

	for _, call := range calls {
		call.timer.Stop()
		call.done <- callResult{err: err}
	}

	if len(calls) > 0 {
		c.logger.Warn("Failed all pending calls",
			zap.Int("count", len(calls)),
			zap.Error(err),
		)
	}
	return len(calls)
}

// settle removes the call and delivers its result; returns false if the
// call was already settled
func (c *correlator) settle(id string, result callResult) bool {
	c.mutex.Lock()
	call, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mutex.Unlock()

	if !ok {
		return false
	}

	call.timer.Stop()
	call.done <- result
	return true
}

// pendingCount reports the number of in-flight calls
func (c *correlator) pendingCount() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.pending)
}
