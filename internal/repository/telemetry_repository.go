// internal/repository/telemetry_repository.go
package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"device-link/internal/database"
	"device-link/internal/model"
)

// telemetryRepository implements TelemetryRepository interface
type telemetryRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewTelemetryRepository creates a new telemetry history repository
func NewTelemetryRepository(db *database.DB, logger *zap.Logger) TelemetryRepository {
	return &telemetryRepository{
		db:     db,
		logger: logger,
	}
}

// Create persists one telemetry sample
func (r *telemetryRepository) Create(ctx context.Context, sample *model.TelemetrySample) error {
	query := `
		INSERT INTO telemetry_samples (
			id, device_id, topic, pin, raw_value, voltage, payload, recorded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		sample.ID, sample.DeviceID, sample.Topic, sample.Pin,
		sample.RawValue, sample.Voltage, sample.Payload, sample.RecordedAt,
	)

	if err != nil {
		r.logger.Error("Failed to create telemetry sample",
			zap.Error(err),
			zap.String("device_id", sample.DeviceID),
			zap.String("topic", sample.Topic),
		)
		return fmt.Errorf("failed to create telemetry sample: %w", err)
	}

	return nil
}

// CreateBatch persists telemetry samples in one statement. High-rate
// streams would overwhelm the pool with per-sample inserts.
func (r *telemetryRepository) CreateBatch(ctx context.Context, samples []*model.TelemetrySample) error {
	if len(samples) == 0 {
		return nil
	}

	valueStrings := make([]string, 0, len(samples))
	args := make([]interface{}, 0, len(samples)*8)
	for i, sample := range samples {
		base := i * 8
		valueStrings = append(valueStrings, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8,
		))
		args = append(args,
			sample.ID, sample.DeviceID, sample.Topic, sample.Pin,
			sample.RawValue, sample.Voltage, sample.Payload, sample.RecordedAt,
		)
	}

	query := fmt.Sprintf(`
		INSERT INTO telemetry_samples (
			id, device_id, topic, pin, raw_value, voltage, payload, recorded_at
		) VALUES %s
	`, strings.Join(valueStrings, ", "))

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.Error("Failed to create telemetry batch",
			zap.Error(err),
			zap.Int("count", len(samples)),
		)
		return fmt.Errorf("failed to create telemetry batch: %w", err)
	}

	return nil
}

// ListByDevice retrieves samples for a device recorded after the given
// time, newest first
func (r *telemetryRepository) ListByDevice(ctx context.Context, deviceID string, since time.Time, limit int) ([]*model.TelemetrySample, error) {
	if limit <= 0 || limit > 1000 {
		limit = 200
	}

	query := `
		SELECT id, device_id, topic, pin, raw_value, voltage, payload, recorded_at
		FROM telemetry_samples
		WHERE device_id = $1 AND recorded_at >= $2
		ORDER BY recorded_at DESC
		LIMIT $3
	`

	rows, err := r.db.QueryContext(ctx, query, deviceID, since, limit)
	if err != nil {
		r.logger.Error("Failed to list telemetry samples", zap.Error(err), zap.String("device_id", deviceID))
		return nil, fmt.Errorf("failed to list telemetry samples: %w", err)
	}
	defer rows.Close()

	var samples []*model.TelemetrySample
	for rows.Next() {
		sample := &model.TelemetrySample{}
		err := rows.Scan(
			&sample.ID, &sample.DeviceID, &sample.Topic, &sample.Pin,
			&sample.RawValue, &sample.Voltage, &sample.Payload, &sample.RecordedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan telemetry sample: %w", err)
		}
		samples = append(samples, sample)
	}
	return samples, rows.Err()
}

// DeleteOldSamples removes samples older than the given time
func (r *telemetryRepository) DeleteOldSamples(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM telemetry_samples WHERE recorded_at < $1", olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old telemetry samples: %w", err)
	}
	deleted, _ := result.RowsAffected()
	if deleted > 0 {
		r.logger.Info("Deleted old telemetry samples", zap.Int64("count", deleted))
	}
	return deleted, nil
}
