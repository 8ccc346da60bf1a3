package storage

import (
	"context"
	"fmt"
	"time"

	"FleetGuard/internal/backend/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type reportStore struct {
	pool *pgxpool.Pool
}

func NewReportStore(pool *pgxpool.Pool) ReportStore {
	return &reportStore{pool: pool}
}

func (s *reportStore) Create(ctx context.Context, report *models.DeviceReport) error {
	if report.Timestamp.IsZero() {
		report.Timestamp = time.Now()
	}

	query := `
		INSERT INTO device_reports (device_id, hostname, os, ip, status, cpu, ram, disk, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	err := s.pool.QueryRow(ctx, query,
		report.DeviceID,
		report.Hostname,
		report.OS,
		report.IP,
		report.Status,
		report.CPU,
		report.RAM,
		report.Disk,
		report.Timestamp,
	).Scan(&report.ID)

	if err != nil {
		return fmt.Errorf("failed to create device report: %w", err)
	}

	return nil
}

// возвращает последние N отчетов устройства, новые первыми
func (s *reportStore) GetByDevice(ctx context.Context, deviceID string, limit int) ([]*models.DeviceReport, error) {
	query := `
		SELECT id, device_id, hostname, os, ip, status, cpu, ram, disk, created_at
		FROM device_reports
		WHERE device_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, query, deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query device reports: %w", err)
	}
	defer rows.Close()

	return s.scanReports(rows)
}

func (s *reportStore) DeleteOldReports(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := s.pool.Exec(ctx, `DELETE FROM device_reports WHERE created_at < $1`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old reports: %w", err)
	}

	return result.RowsAffected(), nil
}

func (s *reportStore) scanReports(rows pgx.Rows) ([]*models.DeviceReport, error) {
	reports := []*models.DeviceReport{}

	for rows.Next() {
		var report models.DeviceReport
		err := rows.Scan(
			&report.ID,
			&report.DeviceID,
			&report.Hostname,
			&report.OS,
			&report.IP,
			&report.Status,
			&report.CPU,
			&report.RAM,
			&report.Disk,
			&report.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report row: %w", err)
		}
		reports = append(reports, &report)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating report rows: %w", err)
	}

	return reports, nil
}
