package storage

import (
	"context"
	"fmt"
	"time"

	"FleetGuard/internal/backend/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type auditStore struct {
	pool *pgxpool.Pool
}

func NewAuditStore(pool *pgxpool.Pool) AuditStore {
	return &auditStore{pool: pool}
}

func (s *auditStore) Create(ctx context.Context, entry *models.CommandLog) error {
	if entry.Time.IsZero() {
		entry.Time = time.Now()
	}

	query := `
		INSERT INTO command_logs (actor, action, device_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	err := s.pool.QueryRow(ctx, query,
		entry.User,
		entry.Action,
		entry.Device,
		entry.Details,
		entry.Time,
	).Scan(&entry.ID)

	if err != nil {
		return fmt.Errorf("failed to create command log: %w", err)
	}

	return nil
}

func (s *auditStore) ListRecent(ctx context.Context, limit int) ([]*models.CommandLog, error) {
	query := `
		SELECT id, actor, action, device_id, details, created_at
		FROM command_logs
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query command logs: %w", err)
	}
	defer rows.Close()

	return scanCommandLogs(rows)
}

func (s *auditStore) ListByDevice(ctx context.Context, deviceID string, limit int) ([]*models.CommandLog, error) {
	query := `
		SELECT id, actor, action, device_id, details, created_at
		FROM command_logs
		WHERE device_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, query, deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query device command logs: %w", err)
	}
	defer rows.Close()

	return scanCommandLogs(rows)
}

func scanCommandLogs(rows pgx.Rows) ([]*models.CommandLog, error) {
	logs := []*models.CommandLog{}

	for rows.Next() {
		var entry models.CommandLog
		if err := rows.Scan(
			&entry.ID,
			&entry.User,
			&entry.Action,
			&entry.Device,
			&entry.Details,
			&entry.Time,
		); err != nil {
			return nil, fmt.Errorf("failed to scan command log row: %w", err)
		}
		logs = append(logs, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating command log rows: %w", err)
	}

	return logs, nil
}
