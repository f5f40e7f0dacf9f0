// internal/transport/socket.go
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"device-link/internal/model"
)

const socketReadBufferSize = 4096

// SocketTransport implements Transport over a WebSocket or plain TCP
// connection to a device on the local network
type SocketTransport struct {
	config *SocketConfig
	logger *zap.Logger

	mutex   sync.RWMutex
	ws      *websocket.Conn
	tcp     net.Conn
	chunks  chan []byte
	done    chan struct{}
	readErr error
	isOpen  bool
	stats   LinkStats
}

// NewSocketTransport creates a new socket transport
func NewSocketTransport(config *SocketConfig, logger *zap.Logger) *SocketTransport {
	return &SocketTransport{
		config: config,
		logger: logger.With(
			zap.String("transport", "socket"),
			zap.String("url", config.URL),
		),
	}
}

// Open dials the device and starts the read pump
func (st *SocketTransport) Open(ctx context.Context) error {
	st.mutex.Lock()
	defer st.mutex.Unlock()

	if st.isOpen {
		return nil
	}

	parsed, err := url.Parse(st.config.URL)
	if err != nil {
		return NewConnectError(ReasonUnknown, fmt.Errorf("invalid socket url: %w", err))
	}

	dialCtx := ctx
	if st.config.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, st.config.ConnectTimeout)
		defer cancel()
	}

	st.logger.Info("Dialing device socket", zap.String("scheme", parsed.Scheme))

	switch parsed.Scheme {
	case "ws", "wss":
		conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, st.config.URL, nil)
		if err != nil {
			st.logger.Error("WebSocket dial failed", zap.Error(err))
			return classifyDialError(err)
		}
		st.ws = conn
	case "tcp":
		dialer := &net.Dialer{}
		conn, err := dialer.DialContext(dialCtx, "tcp", parsed.Host)
		if err != nil {
			st.logger.Error("TCP dial failed", zap.Error(err))
			return classifyDialError(err)
		}
		st.tcp = conn
	default:
		return NewConnectError(ReasonUnknown, fmt.Errorf("unsupported socket scheme: %s", parsed.Scheme))
	}

	st.isOpen = true
	st.readErr = nil
	st.chunks = make(chan []byte, 64)
	st.done = make(chan struct{})
	st.stats.IsConnected = true
	st.stats.LastActivity = time.Now()

	if st.ws != nil {
		go st.wsReadPump(st.ws, st.chunks, st.done)
	} else {
		go st.tcpReadPump(st.tcp, st.chunks, st.done)
	}

	st.logger.Info("Device socket connected")
	return nil
}

// wsReadPump delivers each WebSocket message as one raw chunk. The done
// channel keeps a send from blocking forever when the transport is torn
// down before a reader attaches.
func (st *SocketTransport) wsReadPump(conn *websocket.Conn, chunks chan<- []byte, done <-chan struct{}) {
	defer close(chunks)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			st.finishRead(err)
			return
		}
		select {
		case chunks <- message:
		case <-done:
			return
		}

		st.mutex.Lock()
		st.stats.BytesRead += int64(len(message))
		st.stats.LastActivity = time.Now()
		st.mutex.Unlock()
	}
}

// tcpReadPump pumps raw bytes from the TCP stream
func (st *SocketTransport) tcpReadPump(conn net.Conn, chunks chan<- []byte, done <-chan struct{}) {
	defer close(chunks)

	buffer := make([]byte, socketReadBufferSize)
	for {
		n, err := conn.Read(buffer)
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

// finishRead records the terminal read error and tears the socket down
func (st *SocketTransport) finishRead(err error) {
	st.mutex.Lock()
	defer st.mutex.Unlock()

	if !st.isOpen {
		return
	}

	if errors.Is(err, io.EOF) || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		st.readErr = io.EOF
	} else {
		st.readErr = fmt.Errorf("socket read failed: %w", err)
	}
	st.stats.ErrorCount++
	st.closeLocked()
	st.logger.Warn("Device socket lost", zap.Error(err))
}

// Write writes one frame to the socket
func (st *SocketTransport) Write(ctx context.Context, data []byte) error {
	st.mutex.RLock()
	ws, tcp := st.ws, st.tcp
	open := st.isOpen
	st.mutex.RUnlock()

	if !open {
		return ErrNotOpen
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	deadline := time.Time{}
	if st.config.WriteTimeout > 0 {
		deadline = time.Now().Add(st.config.WriteTimeout)
	}

	var err error
	switch {
	case ws != nil:
		ws.SetWriteDeadline(deadline)
		err = ws.WriteMessage(websocket.TextMessage, data)
	case tcp != nil:
		tcp.SetWriteDeadline(deadline)
		_, err = tcp.Write(data)
	default:
		return ErrNotOpen
	}

	if err != nil {
		st.mutex.Lock()
		st.stats.ErrorCount++
		st.mutex.Unlock()
		st.logger.Error("Socket write failed", zap.Error(err))
		return fmt.Errorf("failed to write to socket: %w", err)
	}

	st.mutex.Lock()
	st.stats.BytesWritten += int64(len(data))
	st.stats.LastActivity = time.Now()
	st.mutex.Unlock()

	return nil
}

// Chunks returns the inbound stream for the current open cycle
func (st *SocketTransport) Chunks() <-chan []byte {
	st.mutex.RLock()
	defer st.mutex.RUnlock()
	return st.chunks
}

// Err returns the terminal read error after the chunk stream closes
func (st *SocketTransport) Err() error {
	st.mutex.RLock()
	defer st.mutex.RUnlock()
	return st.readErr
}

// Close closes the socket. Safe to call on an already-closed transport.
func (st *SocketTransport) Close() error {
	st.mutex.Lock()
	defer st.mutex.Unlock()

	if !st.isOpen {
		return nil
	}

	st.closeLocked()
	st.logger.Info("Device socket closed")
	return nil
}

func (st *SocketTransport) closeLocked() {
	st.isOpen = false
	st.stats.IsConnected = false
	close(st.done)
	if st.ws != nil {
		st.ws.Close()
		st.ws = nil
	}
	if st.tcp != nil {
		st.tcp.Close()
		st.tcp = nil
	}
}

// IsOpen returns whether the link is open
func (st *SocketTransport) IsOpen() bool {
	st.mutex.RLock()
	defer st.mutex.RUnlock()
	return st.isOpen
}

// Type returns the connection type
func (st *SocketTransport) Type() model.ConnectionType {
	return model.ConnectionTypeSocket
}

// Stats returns a snapshot of link statistics
func (st *SocketTransport) Stats() LinkStats {
	st.mutex.RLock()
	defer st.mutex.RUnlock()
	return st.stats
}

// classifyDialError maps dial errors to typed connect failures
func classifyDialError(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err):
		return NewConnectError(ReasonTimeout, err)
	case errors.Is(err, os.ErrPermission):
		return NewConnectError(ReasonPermissionDenied, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewConnectError(ReasonTimeout, err)
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return NewConnectError(ReasonNotFound, err)
	}
	if strings.Contains(err.Error(), "connection refused") {
		return NewConnectError(ReasonNotFound, err)
	}

	return NewConnectError(ReasonUnknown, err)
}
