package storage

import (
	"context"
	"fmt"

	shared "FleetGuard/internal/shared/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type policyStore struct {
	pool *pgxpool.Pool
}

func NewPolicyStore(pool *pgxpool.Pool) PolicyStore {
	return &policyStore{pool: pool}
}

func (s *policyStore) GetLists(ctx context.Context, deviceID string, mode PolicyMode) (shared.ExtensionLists, error) {
	query := `
		SELECT category, entry
		FROM extension_policies
		WHERE device_id = $1 AND mode = $2
		ORDER BY category, entry
	`

	rows, err := s.pool.Query(ctx, query, deviceID, string(mode))
	if err != nil {
		return nil, fmt.Errorf("failed to query extension policy: %w", err)
	}
	defer rows.Close()

	lists := shared.ExtensionLists{}
	for rows.Next() {
		var category, entry string
		if err := rows.Scan(&category, &entry); err != nil {
			return nil, fmt.Errorf("failed to scan extension policy row: %w", err)
		}
		lists[category] = append(lists[category], entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating extension policy rows: %w", err)
	}

	return lists, nil
}

// ReplaceLists заменяет все списки режима одной транзакцией
func (s *policyStore) ReplaceLists(ctx context.Context, deviceID string, mode PolicyMode, lists shared.ExtensionLists) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin policy transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM extension_policies WHERE device_id = $1 AND mode = $2`, deviceID, string(mode))

	for category, entries := range lists {
		for _, entry := range entries {
			batch.Queue(`
				INSERT INTO extension_policies (device_id, mode, category, entry)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT DO NOTHING
			`, deviceID, string(mode), category, entry)
		}
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to replace extension policy: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit extension policy: %w", err)
	}

	return nil
}
