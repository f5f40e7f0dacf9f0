// internal/repository/ota_repository.go
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"device-link/internal/database"
	"device-link/internal/model"
)

// otaRepository implements OTARepository interface
type otaRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewOTARepository creates a new firmware transfer history repository
func NewOTARepository(db *database.DB, logger *zap.Logger) OTARepository {
	return &otaRepository{
		db:     db,
		logger: logger,
	}
}

// Create records the start of a firmware transfer
func (r *otaRepository) Create(ctx context.Context, record *model.OTATransferRecord) error {
	query := `
		INSERT INTO ota_transfers (
			id, device_id, file_name, total_bytes, chunk_size, succeeded, started_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		record.ID, record.DeviceID, record.FileName, record.TotalBytes,
		record.ChunkSize, record.Succeeded, record.StartedAt,
	)

	if err != nil {
		r.logger.Error("Failed to create OTA record",
			zap.Error(err),
			zap.String("device_id", record.DeviceID),
			zap.String("file", record.FileName),
		)
		return fmt.Errorf("failed to create ota record: %w", err)
	}

	return nil
}

// Complete records the outcome of a firmware transfer
func (r *otaRepository) Complete(ctx context.Context, id uuid.UUID, succeeded bool, errorMessage *string) error {
	query := `
		UPDATE ota_transfers
		SET succeeded = $2, error_message = $3, completed_at = $4
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query, id, succeeded, errorMessage, time.Now())
	if err != nil {
		return fmt.Errorf("failed to complete ota record: %w", err)
	}
	return nil
}

// ListByDevice retrieves the most recent transfers for a device
func (r *otaRepository) ListByDevice(ctx context.Context, deviceID string, limit int) ([]*model.OTATransferRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, device_id, file_name, total_bytes, chunk_size,
			   succeeded, error_message, started_at, completed_at
		FROM ota_transfers
		WHERE device_id = $1
		ORDER BY started_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list ota records: %w", err)
	}
	defer rows.Close()

	var records []*model.OTATransferRecord
	for rows.Next() {
		record := &model.OTATransferRecord{}
		err := rows.Scan(
			&record.ID, &record.DeviceID, &record.FileName, &record.TotalBytes,
			&record.ChunkSize, &record.Succeeded, &record.ErrorMessage,
			&record.StartedAt, &record.CompletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ota record: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
