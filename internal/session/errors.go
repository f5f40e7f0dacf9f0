// internal/session/errors.go
package session

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned synchronously when a command is issued
	// on a session that is not connected. No I/O is attempted.
	ErrNotConnected = errors.New("session not connected")

	// ErrAlreadyConnected is returned by Connect while a connect is in
	// flight or the session is already established
	ErrAlreadyConnected = errors.New("session already connected or connecting")

	// ErrConnectionLost fails every pending call when the transport
	// drops unexpectedly
	ErrConnectionLost = errors.New("connection lost")

	// ErrTimeout fails a call whose response did not arrive in time
	ErrTimeout = errors.New("request timed out")

	// ErrRateLimited rejects a call when the outbound rate limit queue
	// is full
	ErrRateLimited = errors.New("command rate limit exceeded")

	// ErrOTAInProgress rejects a second OTA transfer on the same session
	ErrOTAInProgress = errors.New("ota transfer already in progress")
)

// DeviceError is a firmware-side rejection: the device answered the
// request but reported failure
type DeviceError struct {
	Command string
	Message string
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("device rejected %s: %s", e.Command, e.Message)
}

// OTAError wraps a failure during a firmware transfer with the stage it
// occurred in
type OTAError struct {
	Stage string // "begin", "chunk", "complete"
	Chunk int
	Err   error
}

func (e *OTAError) Error() string {
	if e.Stage == "chunk" {
		return fmt.Sprintf("ota transfer failed at chunk %d: %v", e.Chunk, e.Err)
	}
	return fmt.Sprintf("ota transfer failed (%s): %v", e.Stage, e.Err)
}

func (e *OTAError) Unwrap() error {
	return e.Err
}
