// internal/repository/interfaces.go
package repository

import (
	"context"
	"time"

	"device-link/internal/model"

	"github.com/google/uuid"
)

// CommandRepository defines command history data access operations
type CommandRepository interface {
	Create(ctx context.Context, record *model.CommandRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.CommandRecord, error)
	ListByDevice(ctx context.Context, deviceID string, limit int) ([]*model.CommandRecord, error)
	List(ctx context.Context, filter *CommandFilter) ([]*model.CommandRecord, int, error)

	GetCommandStats(ctx context.Context, deviceID string, period time.Duration) (*CommandStats, error)
	DeleteOldRecords(ctx context.Context, olderThan time.Time) (int64, error)
}

// TelemetryRepository defines telemetry history data access operations
type TelemetryRepository interface {
	Create(ctx context.Context, sample *model.TelemetrySample) error
	CreateBatch(ctx context.Context, samples []*model.TelemetrySample) error
	ListByDevice(ctx context.Context, deviceID string, since time.Time, limit int) ([]*model.TelemetrySample, error)
	DeleteOldSamples(ctx context.Context, olderThan time.Time) (int64, error)
}

// OTARepository defines firmware transfer history data access operations
type OTARepository interface {
	Create(ctx context.Context, record *model.OTATransferRecord) error
	Complete(ctx context.Context, id uuid.UUID, succeeded bool, errorMessage *string) error
	ListByDevice(ctx context.Context, deviceID string, limit int) ([]*model.OTATransferRecord, error)
}

// CommandFilter represents command history listing filters
type CommandFilter struct {
	DeviceID  *string              `json:"device_id,omitempty"`
	Command   *string              `json:"command,omitempty"`
	Status    *model.CommandStatus `json:"status,omitempty"`
	StartDate *time.Time           `json:"start_date,omitempty"`
	EndDate   *time.Time           `json:"end_date,omitempty"`
	Page      int                  `json:"page"`
	PerPage   int                  `json:"per_page"`
	SortBy    string               `json:"sort_by"`
	SortOrder string               `json:"sort_order"`
}

// CommandStats represents command statistics for a device
type CommandStats struct {
	DeviceID      string        `json:"device_id"`
	Period        time.Duration `json:"period"`
	TotalCommands int           `json:"total_commands"`
	SuccessfulOps int           `json:"successful_commands"`
	FailedOps     int           `json:"failed_commands"`
	TimedOutOps   int           `json:"timed_out_commands"`
	AvgDurationMs float64       `json:"average_duration_ms"`
	SuccessRate   float64       `json:"success_rate"`
}
