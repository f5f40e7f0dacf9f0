// internal/transport/socket_test.go
package transport

import (
	"bytes"
	"context"
	"net"
	"runtime"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestSocketCloseUnblocksReadPump(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	defer ln.Close()

	before := runtime.NumGoroutine()

	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		// Push far more data than the transport buffers so the read pump
		// ends up blocked on a send nobody receives.
		junk := bytes.Repeat([]byte("y"), socketReadBufferSize)
		for i := 0; i < 512; i++ {
			if _, err := conn.Write(junk); err != nil {
				return
			}
		}
	}()

	st := NewSocketTransport(&SocketConfig{
		URL:            "tcp://" + ln.Addr().String(),
		ConnectTimeout: 2 * time.Second,
	}, zap.NewNop())
	if err := st.Open(context.Background()); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	// Nothing ever reads Chunks(); give the pump time to fill the channel
	// buffer and block on the next send.
	time.Sleep(200 * time.Millisecond)

	if err := st.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	<-serverDone

	// The pump must exit even though nothing drained its stream.
	deadline := time.Now().Add(2 * time.Second)
	for runtime.NumGoroutine() > before && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if n := runtime.NumGoroutine(); n > before {
		t.Fatalf("read pump leaked: %d goroutines running, started with %d", n, before)
	}
}
