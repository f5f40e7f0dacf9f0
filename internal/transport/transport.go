// internal/transport/transport.go
package transport

import (
	"context"
	"time"

	"device-link/internal/model"
)

// Transport abstracts a full-duplex link to a device. Implementations own
// the underlying handle; it is never exposed to higher layers.
//
// Chunks returns the inbound raw stream for the current open cycle. The
// channel is closed when the link is closed or fails; after that Err
// reports the terminal read error (nil for a local Close). A closed
// transport must be re-opened to obtain a fresh stream.
type Transport interface {
	Open(ctx context.Context) error
	Write(ctx context.Context, data []byte) error
	Chunks() <-chan []byte
	Err() error
	Close() error
	IsOpen() bool
	Type() model.ConnectionType
}

// LinkStats provides link-level statistics
type LinkStats struct {
	BytesWritten int64     `json:"bytes_written"`
	BytesRead    int64     `json:"bytes_read"`
	ErrorCount   int64     `json:"error_count"`
	LastActivity time.Time `json:"last_activity"`
	IsConnected  bool      `json:"is_connected"`
}
