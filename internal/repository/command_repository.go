// internal/repository/command_repository.go
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"device-link/internal/database"
	"device-link/internal/model"
)

// commandRepository implements CommandRepository interface
type commandRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewCommandRepository creates a new command history repository
func NewCommandRepository(db *database.DB, logger *zap.Logger) CommandRepository {
	return &commandRepository{
		db:     db,
		logger: logger,
	}
}

// Create persists one command round trip
func (r *commandRepository) Create(ctx context.Context, record *model.CommandRecord) error {
	query := `
		INSERT INTO command_log (
			id, device_id, command, params, status, duration_ms,
			error_message, correlation_id, result
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		record.ID, record.DeviceID, record.Command, record.Params,
		record.Status, record.DurationMs, record.ErrorMessage,
		record.CorrelationID, record.Result,
	)

	if err != nil {
		r.logger.Error("Failed to create command record",
			zap.Error(err),
			zap.String("device_id", record.DeviceID),
			zap.String("command", record.Command),
		)
		return fmt.Errorf("failed to create command record: %w", err)
	}

	return nil
}

// GetByID retrieves a command record by its UUID
func (r *commandRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.CommandRecord, error) {
	query := `
		SELECT id, device_id, command, params, status, duration_ms,
			   error_message, correlation_id, result, created_at
		FROM command_log WHERE id = $1
	`

	record := &model.CommandRecord{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&record.ID, &record.DeviceID, &record.Command, &record.Params,
		&record.Status, &record.DurationMs, &record.ErrorMessage,
		&record.CorrelationID, &record.Result, &record.CreatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("command record not found with id: %s", id)
		}
		r.logger.Error("Failed to get command record", zap.Error(err), zap.String("id", id.String()))
		return nil, fmt.Errorf("failed to get command record: %w", err)
	}

	return record, nil
}

// ListByDevice retrieves the most recent command records for a device
func (r *commandRepository) ListByDevice(ctx context.Context, deviceID string, limit int) ([]*model.CommandRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, device_id, command, params, status, duration_ms,
			   error_message, correlation_id, result, created_at
		FROM command_log
		WHERE device_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, deviceID, limit)
	if err != nil {
		r.logger.Error("Failed to list command records", zap.Error(err), zap.String("device_id", deviceID))
		return nil, fmt.Errorf("failed to list command records: %w", err)
	}
	defer rows.Close()

	return scanCommandRows(rows)
}

// List retrieves command records matching the filter with pagination
func (r *commandRepository) List(ctx context.Context, filter *CommandFilter) ([]*model.CommandRecord, int, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	argIndex := 1

	if filter.DeviceID != nil {
		conditions = append(conditions, fmt.Sprintf("device_id = $%d", argIndex))
		args = append(args, *filter.DeviceID)
		argIndex++
	}
	if filter.Command != nil {
		conditions = append(conditions, fmt.Sprintf("command = $%d", argIndex))
		args = append(args, *filter.Command)
		argIndex++
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, *filter.Status)
		argIndex++
	}
	if filter.StartDate != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argIndex))
		args = append(args, *filter.StartDate)
		argIndex++
	}
	if filter.EndDate != nil {
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", argIndex))
		args = append(args, *filter.EndDate)
		argIndex++
	}

	whereClause := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM command_log WHERE %s", whereClause)
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count command records: %w", err)
	}

	sortBy := "created_at"
	if filter.SortBy != "" {
		allowed := map[string]bool{"created_at": true, "command": true, "status": true, "duration_ms": true}
		if allowed[filter.SortBy] {
			sortBy = filter.SortBy
		}
	}
	sortOrder := "DESC"
	if strings.EqualFold(filter.SortOrder, "asc") {
		sortOrder = "ASC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	perPage := filter.PerPage
	if perPage <= 0 || perPage > 200 {
		perPage = 50
	}

	query := fmt.Sprintf(`
		SELECT id, device_id, command, params, status, duration_ms,
			   error_message, correlation_id, result, created_at
		FROM command_log
		WHERE %s
		ORDER BY %s %s
		LIMIT $%d OFFSET $%d
	`, whereClause, sortBy, sortOrder, argIndex, argIndex+1)
	args = append(args, perPage, (page-1)*perPage)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list command records: %w", err)
	}
	defer rows.Close()

	records, err := scanCommandRows(rows)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// GetCommandStats aggregates command outcomes for a device over a period
func (r *commandRepository) GetCommandStats(ctx context.Context, deviceID string, period time.Duration) (*CommandStats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'SUCCESS'),
			COUNT(*) FILTER (WHERE status = 'FAILED'),
			COUNT(*) FILTER (WHERE status = 'TIMEOUT'),
			COALESCE(AVG(duration_ms), 0)
		FROM command_log
		WHERE device_id = $1 AND created_at >= $2
	`

	stats := &CommandStats{DeviceID: deviceID, Period: period}
	since := time.Now().Add(-period)
	err := r.db.QueryRowContext(ctx, query, deviceID, since).Scan(
		&stats.TotalCommands, &stats.SuccessfulOps, &stats.FailedOps,
		&stats.TimedOutOps, &stats.AvgDurationMs,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get command stats: %w", err)
	}

	if stats.TotalCommands > 0 {
		stats.SuccessRate = float64(stats.SuccessfulOps) / float64(stats.TotalCommands)
	}
	return stats, nil
}

// DeleteOldRecords removes command records older than the given time
func (r *commandRepository) DeleteOldRecords(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM command_log WHERE created_at < $1", olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old command records: %w", err)
	}
	deleted, _ := result.RowsAffected()
	if deleted > 0 {
		r.logger.Info("Deleted old command records", zap.Int64("count", deleted))
	}
	return deleted, nil
}

func scanCommandRows(rows *sql.Rows) ([]*model.CommandRecord, error) {
	var records []*model.CommandRecord
	for rows.Next() {
		record := &model.CommandRecord{}
		err := rows.Scan(
			&record.ID, &record.DeviceID, &record.Command, &record.Params,
			&record.Status, &record.DurationMs, &record.ErrorMessage,
			&record.CorrelationID, &record.Result, &record.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan command record: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
