// internal/protocol/codec.go
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// maxLineBytes bounds a single record; anything longer is dropped as
// malformed rather than buffered without limit.
const maxLineBytes = 256 * 1024

// EncodeRequest serializes a request envelope to its wire form, one JSON
// object terminated by a newline
func EncodeRequest(req *Request) ([]byte, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	return append(data, '\n'), nil
}

// Decoder turns the transport's raw chunk stream into discrete inbound
// messages. Records are newline-delimited JSON objects; a record that
// fails to parse is logged and dropped without disturbing later records.
type Decoder struct {
	buffer    bytes.Buffer
	logger    *zap.Logger
	oversized bool
}

// NewDecoder creates a decoder
func NewDecoder(logger *zap.Logger) *Decoder {
	return &Decoder{
		logger: logger.With(zap.String("component", "decoder")),
	}
}

// Push appends one raw chunk and returns all complete messages it
// yielded, in wire order
func (d *Decoder) Push(chunk []byte) []Message {
	d.buffer.Write(chunk)

	var messages []Message
	for {
		line, ok := d.nextLine()
		if !ok {
			break
		}
		if msg, ok := d.decodeLine(line); ok {
			messages = append(messages, msg)
		}
	}
	return messages
}

// nextLine extracts one newline-terminated record from the buffer
func (d *Decoder) nextLine() ([]byte, bool) {
	data := d.buffer.Bytes()
	idx := bytes.IndexByte(data, '\n')
	if idx < 0 {
		// No complete record yet. If the partial already exceeds the
		// line bound, discard it and skip until the next delimiter. The
		// discard repeats every time the delimiter-free stream refills
		// the bound, so the buffer never grows past it; the warning is
		// logged once per record.
		if d.buffer.Len() > maxLineBytes {
			if !d.oversized {
				d.logger.Warn("Dropping oversized record", zap.Int("buffered", d.buffer.Len()))
				d.oversized = true
			}
			d.buffer.Reset()
		}
		return nil, false
	}

	line := make([]byte, idx)
	copy(line, data[:idx])
	d.buffer.Next(idx + 1)

	if d.oversized {
		// Tail of the discarded oversized record.
		d.oversized = false
		return nil, true
	}
	return line, true
}

// decodeLine parses one record into a response or event
func (d *Decoder) decodeLine(line []byte) (Message, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return Message{}, false
	}

	// Probe for the discriminating fields before committing to a shape.
	var probe struct {
		Type string `json:"type"`
		ID   string `json:"id"`
	}
	if err := json.Unmarshal(line, &probe); err != nil {
		d.logger.Warn("Dropping malformed record",
			zap.Error(err),
			zap.ByteString("record", truncate(line, 200)),
		)
		return Message{}, false
	}

	switch {
	case probe.Type != "":
		var event Event
		if err := json.Unmarshal(line, &event); err != nil {
			d.logger.Warn("Dropping malformed event", zap.Error(err))
			return Message{}, false
		}
		return Message{Event: &event}, true
	case probe.ID != "":
		var response Response
		if err := json.Unmarshal(line, &response); err != nil {
			d.logger.Warn("Dropping malformed response", zap.Error(err))
			return Message{}, false
		}
		return Message{Response: &response}, true
	default:
		d.logger.Warn("Dropping record with neither type nor id",
			zap.ByteString("record", truncate(line, 200)),
		)
		return Message{}, false
	}
}

// Reset discards any buffered partial record. Called when the link is
// re-established so a torn record from the old connection cannot corrupt
// the first record of the new one.
func (d *Decoder) Reset() {
	d.buffer.Reset()
	d.oversized = false
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
