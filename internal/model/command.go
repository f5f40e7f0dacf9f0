// internal/model/command.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// CommandStatus represents the outcome of a dispatched command
type CommandStatus string

const (
	CommandStatusSuccess CommandStatus = "SUCCESS"
	CommandStatusFailed  CommandStatus = "FAILED"
	CommandStatusTimeout CommandStatus = "TIMEOUT"
)

// CommandRecord is a persisted record of one command round trip
type CommandRecord struct {
	ID            uuid.UUID     `json:"id" db:"id"`
	DeviceID      string        `json:"device_id" db:"device_id"`
	Command       string        `json:"command" db:"command"`
	Params        JSONObject    `json:"params" db:"params"`
	Status        CommandStatus `json:"status" db:"status"`
	DurationMs    int           `json:"duration_ms" db:"duration_ms"`
	ErrorMessage  *string       `json:"error_message" db:"error_message"`
	CorrelationID string        `json:"correlation_id" db:"correlation_id"`
	Result        JSONObject    `json:"result" db:"result"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
}

// IsFailure checks whether the command did not complete successfully
func (cr *CommandRecord) IsFailure() bool {
	return cr.Status != CommandStatusSuccess
}

// OTATransferRecord is a persisted record of one firmware transfer
type OTATransferRecord struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	DeviceID     string     `json:"device_id" db:"device_id"`
	FileName     string     `json:"file_name" db:"file_name"`
	TotalBytes   int        `json:"total_bytes" db:"total_bytes"`
	ChunkSize    int        `json:"chunk_size" db:"chunk_size"`
	Succeeded    bool       `json:"succeeded" db:"succeeded"`
	ErrorMessage *string    `json:"error_message" db:"error_message"`
	StartedAt    time.Time  `json:"started_at" db:"started_at"`
	CompletedAt  *time.Time `json:"completed_at" db:"completed_at"`
}
