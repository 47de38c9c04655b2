package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/surgeonmatch/surgeonmatch/internal/shared/models"
)

const metricColumns = `id, surgeon_id, metric_name, metric_value, metric_unit,
	       start_date, end_date, procedure_code, calculated_at`

func scanMetric(row interface{ Scan(...interface{}) error }) (*models.QualityMetric, error) {
	var m models.QualityMetric
	err := row.Scan(
		&m.ID, &m.SurgeonID, &m.MetricName, &m.MetricValue, &m.MetricUnit,
		&m.StartDate, &m.EndDate, &m.ProcedureCode, &m.CalculatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// CreateQualityMetric persists a new quality metric.
func (db *DB) CreateQualityMetric(ctx context.Context, m *models.QualityMetric) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.CalculatedAt = time.Now().UTC()

	query := `
		INSERT INTO quality_metrics
			(id, surgeon_id, metric_name, metric_value, metric_unit,
			 start_date, end_date, procedure_code, calculated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := db.conn.ExecContext(ctx, query,
		m.ID, m.SurgeonID, m.MetricName, m.MetricValue, m.MetricUnit,
		m.StartDate, m.EndDate, m.ProcedureCode, m.CalculatedAt)
	if err != nil {
		return fmt.Errorf("failed to create quality metric: %w", err)
	}
	return nil
}

// GetQualityMetric retrieves a quality metric by id.
func (db *DB) GetQualityMetric(ctx context.Context, id string) (*models.QualityMetric, error) {
	query := `SELECT ` + metricColumns + ` FROM quality_metrics WHERE id = $1`

	m, err := scanMetric(db.conn.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return m, nil
}

// ListQualityMetrics returns metrics, optionally filtered by surgeon.
func (db *DB) ListQualityMetrics(ctx context.Context, surgeonID string, limit, offset int) ([]*models.QualityMetric, error) {
	query := `SELECT ` + metricColumns + ` FROM quality_metrics`
	args := []interface{}{}
	if surgeonID != "" {
		args = append(args, surgeonID)
		query += " WHERE surgeon_id = $1"
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY calculated_at DESC LIMIT $%d", len(args))
	args = append(args, offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	defer rows.Close()

	var metrics []*models.QualityMetric
	for rows.Next() {
		m, err := scanMetric(rows)
		if err != nil {
			return nil, fmt.Errorf("database error: %w", err)
		}
		metrics = append(metrics, m)
	}
	return metrics, rows.Err()
}

// UpdateQualityMetric updates an existing quality metric record.
func (db *DB) UpdateQualityMetric(ctx context.Context, m *models.QualityMetric) error {
	query := `
		UPDATE quality_metrics
		SET metric_name = $2, metric_value = $3, metric_unit = $4,
		    start_date = $5, end_date = $6, procedure_code = $7, calculated_at = NOW()
		WHERE id = $1
	`
	res, err := db.conn.ExecContext(ctx, query,
		m.ID, m.MetricName, m.MetricValue, m.MetricUnit,
		m.StartDate, m.EndDate, m.ProcedureCode)
	if err != nil {
		return fmt.Errorf("failed to update quality metric: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteQualityMetric removes a quality metric by id.
func (db *DB) DeleteQualityMetric(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM quality_metrics WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete quality metric: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
