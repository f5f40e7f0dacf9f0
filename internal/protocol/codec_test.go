// internal/protocol/codec_test.go
package protocol

import (
	"bytes"
	"encoding/json"
	"reflect"
	"testing"

	"go.uber.org/zap"
)

func TestEncodeRequestRoundTrip(t *testing.T) {
	req := NewRequest(CmdGPIOWrite, map[string]interface{}{
		"pin":   float64(2),
		"value": float64(1),
	})

	data, err := EncodeRequest(req)
	if err != nil {
		t.Fatalf("EncodeRequest failed: %v", err)
	}
	if !bytes.HasSuffix(data, []byte("\n")) {
		t.Fatalf("encoded request must end with newline, got %q", data)
	}

	var decoded Request
	if err := json.Unmarshal(bytes.TrimSuffix(data, []byte("\n")), &decoded); err != nil {
		t.Fatalf("failed to decode encoded request: %v", err)
	}
	if !reflect.DeepEqual(req, &decoded) {
		t.Errorf("round trip mismatch: sent %+v, got %+v", req, &decoded)
	}
}

func TestNewRequestIDsAreDistinct(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		req := NewRequest(CmdPing, nil)
		if seen[req.ID] {
			t.Fatalf("duplicate id generated: %s", req.ID)
		}
		seen[req.ID] = true
	}
}

func TestDecoderSplitsLines(t *testing.T) {
	d := NewDecoder(zap.NewNop())

	input := `{"id":"a","success":true}` + "\n" +
		`{"type":"event","topic":"status","timestamp":123}` + "\n"

	messages := d.Push([]byte(input))
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	if messages[0].Response == nil || messages[0].Response.ID != "a" {
		t.Errorf("first message should be response a, got %+v", messages[0])
	}
	if messages[1].Event == nil || messages[1].Event.Topic != "status" {
		t.Errorf("second message should be status event, got %+v", messages[1])
	}
}

func TestDecoderReassemblesPartialRecords(t *testing.T) {
	d := NewDecoder(zap.NewNop())

	record := `{"id":"split-record","success":true,"payload":{"uptime":42}}` + "\n"

	// Feed the record one byte at a time; only the final byte completes it.
	var messages []Message
	for i := 0; i < len(record); i++ {
		got := d.Push([]byte{record[i]})
		messages = append(messages, got...)
		if i < len(record)-1 && len(got) != 0 {
			t.Fatalf("message produced before delimiter at byte %d", i)
		}
	}

	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}
	if messages[0].Response == nil || messages[0].Response.ID != "split-record" {
		t.Errorf("unexpected message: %+v", messages[0])
	}
}

func TestDecoderDropsMalformedRecords(t *testing.T) {
	d := NewDecoder(zap.NewNop())

	input := "not json at all\n" +
		`{"id":"ok","success":true}` + "\n" +
		`{"neither":"shape"}` + "\n" +
		`{"type":"log","message":"boot","timestamp":1}` + "\n"

	messages := d.Push([]byte(input))
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages after dropping malformed records, got %d", len(messages))
	}
	if messages[0].Response == nil || messages[0].Response.ID != "ok" {
		t.Errorf("first surviving message should be response ok, got %+v", messages[0])
	}
	if messages[1].Event == nil || messages[1].Event.Type != EventTypeLog {
		t.Errorf("second surviving message should be log event, got %+v", messages[1])
	}
}

func TestDecoderDropsOversizedRecord(t *testing.T) {
	d := NewDecoder(zap.NewNop())

	// A record larger than the line bound, never delimited until the end.
	big := bytes.Repeat([]byte("x"), maxLineBytes+1024)
	if got := d.Push(big); len(got) != 0 {
		t.Fatalf("oversized partial should produce no messages, got %d", len(got))
	}

	// Terminate the junk, then send a valid record: only the valid one
	// survives.
	messages := d.Push([]byte("tail\n" + `{"id":"after","success":false,"error":"nope"}` + "\n"))
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}
	resp := messages[0].Response
	if resp == nil || resp.ID != "after" || resp.Success || resp.Error != "nope" {
		t.Errorf("unexpected message: %+v", messages[0])
	}
}

func TestDecoderOversizedStreamStaysBounded(t *testing.T) {
	d := NewDecoder(zap.NewNop())

	// A delimiter-free stream far longer than the line bound, as produced
	// by a baud mismatch or a binary crash dump. The decoder must keep
	// discarding, not accumulate until a newline shows up.
	chunk := bytes.Repeat([]byte("x"), 64*1024)
	for i := 0; i < 300; i++ {
		if got := d.Push(chunk); len(got) != 0 {
			t.Fatalf("delimiter-free stream produced %d messages at chunk %d", len(got), i)
		}
		if d.buffer.Len() > maxLineBytes {
			t.Fatalf("buffer grew to %d bytes after %d chunks (bound %d)", d.buffer.Len(), i+1, maxLineBytes)
		}
	}

	// Once the junk finally terminates, the next record decodes cleanly.
	messages := d.Push([]byte("tail\n" + `{"id":"after","success":true}` + "\n"))
	if len(messages) != 1 || messages[0].Response == nil || messages[0].Response.ID != "after" {
		t.Fatalf("record after the junk should decode cleanly, got %+v", messages)
	}
}

func TestDecoderReset(t *testing.T) {
	d := NewDecoder(zap.NewNop())

	// Buffer a torn record, then reset as on reconnect.
	d.Push([]byte(`{"id":"torn","succ`))
	d.Reset()

	messages := d.Push([]byte(`{"id":"fresh","success":true}` + "\n"))
	if len(messages) != 1 || messages[0].Response == nil || messages[0].Response.ID != "fresh" {
		t.Fatalf("record after reset should decode cleanly, got %+v", messages)
	}
}
