// internal/transport/serial.go
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"device-link/internal/model"
)

const serialReadBufferSize = 4096

// SerialTransport implements Transport over a USB serial port
type SerialTransport struct {
	config *SerialConfig
	logger *zap.Logger

	mutex   sync.RWMutex
	port    serial.Port
	chunks  chan []byte
	done    chan struct{}
	readErr error
	isOpen  bool
	stats   LinkStats
}

// NewSerialTransport creates a new serial transport
func NewSerialTransport(config *SerialConfig, logger *zap.Logger) *SerialTransport {
	return &SerialTransport{
		config: config,
		logger: logger.With(
			zap.String("transport", "serial"),
			zap.String("port", config.Port),
		),
	}
}

// Open opens the serial port and starts the read pump
func (st *SerialTransport) Open(ctx context.Context) error {
	st.mutex.Lock()
	defer st.mutex.Unlock()

	if st.isOpen {
		return nil
	}

	st.logger.Info("Opening serial port",
		zap.Int("baud_rate", st.config.BaudRate),
	)

	mode := &serial.Mode{
		BaudRate: st.config.BaudRate,
		DataBits: st.config.DataBits,
	}

	switch st.config.StopBits {
	case 2:
		mode.StopBits = serial.TwoStopBits
	default:
		mode.StopBits = serial.OneStopBit
	}

	switch st.config.Parity {
	case "odd":
		mode.Parity = serial.OddParity
	case "even":
		mode.Parity = serial.EvenParity
	default:
		mode.Parity = serial.NoParity
	}

	port, err := serial.Open(st.config.Port, mode)
	if err != nil {
		st.logger.Error("Failed to open serial port", zap.Error(err))
		return classifySerialError(err)
	}

	st.port = port
	st.isOpen = true
	st.readErr = nil
	st.chunks = make(chan []byte, 64)
	st.done = make(chan struct{})
	st.stats.IsConnected = true
	st.stats.LastActivity = time.Now()

	go st.readPump(port, st.chunks, st.done)

	st.logger.Info("Serial port opened successfully")
	return nil
}

// readPump pumps raw bytes from the port into the chunk channel until the
// port fails or is closed. The done channel keeps a send from blocking
// forever when the transport is torn down before a reader attaches.
func (st *SerialTransport) readPump(port serial.Port, chunks chan<- []byte, done <-chan struct{}) {
	defer close(chunks)

	buffer := make([]byte, serialReadBufferSize)
	for {
		n, err := port.Read(buffer)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buffer[:n])
			select {
			case chunks <- chunk:
			case <-done:
				return
			}

			st.mutex.Lock()
			st.stats.BytesRead += int64(n)
			st.stats.LastActivity = time.Now()
			st.mutex.Unlock()
		}
		if err != nil {
			st.finishRead(err)
			return
		}
	}
}

// finishRead records the terminal read error and tears the port down
func (st *SerialTransport) finishRead(err error) {
	st.mutex.Lock()
	defer st.mutex.Unlock()

	if !st.isOpen {
		// Local Close already ran; the read error is the expected
		// port-closed result, not a link failure.
		return
	}

	if errors.Is(err, io.EOF) {
		st.readErr = io.EOF
	} else {
		st.readErr = fmt.Errorf("serial read failed: %w", err)
	}
	st.stats.ErrorCount++
	st.isOpen = false
	st.stats.IsConnected = false
	st.port.Close()
	st.port = nil
	close(st.done)
	st.logger.Warn("Serial link lost", zap.Error(err))
}

// Write writes data to the serial port
func (st *SerialTransport) Write(ctx context.Context, data []byte) error {
	st.mutex.RLock()
	port := st.port
	open := st.isOpen
	st.mutex.RUnlock()

	if !open || port == nil {
		return ErrNotOpen
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	n, err := port.Write(data)
	if err != nil {
		st.mutex.Lock()
		st.stats.ErrorCount++
		st.mutex.Unlock()
		st.logger.Error("Serial write failed", zap.Error(err))
		return fmt.Errorf("failed to write to serial port: %w", err)
	}
	if n != len(data) {
		return fmt.Errorf("incomplete write: wrote %d of %d bytes", n, len(data))
	}

	st.mutex.Lock()
	st.stats.BytesWritten += int64(n)
	st.stats.LastActivity = time.Now()
	st.mutex.Unlock()

	return nil
}

// Chunks returns the inbound stream for the current open cycle
func (st *SerialTransport) Chunks() <-chan []byte {
	st.mutex.RLock()
	defer st.mutex.RUnlock()
	return st.chunks
}

// Err returns the terminal read error after the chunk stream closes
func (st *SerialTransport) Err() error {
	st.mutex.RLock()
	defer st.mutex.RUnlock()
	return st.readErr
}

// Close closes the serial port. Safe to call on an already-closed
// transport.
func (st *SerialTransport) Close() error {
	st.mutex.Lock()
	defer st.mutex.Unlock()

	if !st.isOpen || st.port == nil {
		return nil
	}

	st.isOpen = false
	st.stats.IsConnected = false
	close(st.done)
	if err := st.port.Close(); err != nil {
		st.logger.Error("Failed to close serial port", zap.Error(err))
		st.port = nil
		return fmt.Errorf("failed to close serial port: %w", err)
	}
	st.port = nil

	st.logger.Info("Serial port closed")
	return nil
}

// IsOpen returns whether the link is open
func (st *SerialTransport) IsOpen() bool {
	st.mutex.RLock()
	defer st.mutex.RUnlock()
	return st.isOpen && st.port != nil
}

// Type returns the connection type
func (st *SerialTransport) Type() model.ConnectionType {
	return model.ConnectionTypeSerial
}

// Stats returns a snapshot of link statistics
func (st *SerialTransport) Stats() LinkStats {
	st.mutex.RLock()
	defer st.mutex.RUnlock()
	return st.stats
}

// classifySerialError maps go.bug.st/serial errors to typed connect
// failures
func classifySerialError(err error) error {
	var portErr *serial.PortError
	if errors.As(err, &portErr) {
		switch portErr.Code() {
		case serial.PortNotFound:
			return NewConnectError(ReasonNotFound, err)
		case serial.PortBusy:
			return NewConnectError(ReasonBusy, err)
		case serial.PermissionDenied:
			return NewConnectError(ReasonPermissionDenied, err)
		}
	}
	return NewConnectError(ReasonUnknown, err)
}
