// internal/protocol/envelope.go
package protocol

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Request is the outbound wire unit for one command
type Request struct {
	Command   string                 `json:"command"`
	Params    map[string]interface{} `json:"params"`
	ID        string                 `json:"id"`
	Timestamp int64                  `json:"timestamp"`
}

// Response is the inbound wire unit correlated to a request by id
type Response struct {
	ID      string          `json:"id"`
	Success bool            `json:"success"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Event is an unsolicited inbound push (telemetry, log lines, status
// changes). Type is "event", "log" or "data".
type Event struct {
	Type      string          `json:"type"`
	Topic     string          `json:"topic,omitempty"`
	Level     string          `json:"level,omitempty"`
	Message   string          `json:"message,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// Message is one decoded inbound record; exactly one field is non-nil
type Message struct {
	Response *Response
	Event    *Event
}

// NewRequest builds a request envelope with a fresh correlation id and
// the current timestamp in Unix milliseconds
func NewRequest(command string, params map[string]interface{}) *Request {
	if params == nil {
		params = map[string]interface{}{}
	}
	return &Request{
		Command:   command,
		Params:    params,
		ID:        uuid.New().String(),
		Timestamp: time.Now().UnixMilli(),
	}
}
