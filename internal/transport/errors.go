// internal/transport/errors.go
package transport

import (
	"errors"
	"fmt"
)

// ConnectReason classifies why opening a link failed
type ConnectReason string

const (
	ReasonPermissionDenied ConnectReason = "permission_denied"
	ReasonBusy             ConnectReason = "busy"
	ReasonNotFound         ConnectReason = "not_found"
	ReasonTimeout          ConnectReason = "timeout"
	ReasonUnknown          ConnectReason = "unknown"
)

// ConnectError is returned when Open fails. Open never retries
// internally; retry policy belongs to the session state machine.
type ConnectError struct {
	Reason ConnectReason
	Err    error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect failed (%s): %v", e.Reason, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// NewConnectError wraps err with a classified connect failure
func NewConnectError(reason ConnectReason, err error) *ConnectError {
	return &ConnectError{Reason: reason, Err: err}
}

// ErrNotOpen is returned by Write on a transport that is not open
var ErrNotOpen = errors.New("transport not open")
