package postgres

import (
	"context"
	"fmt"

	"curvesync/internal/storage"
)

// CheckpointStore implements storage.CheckpointStore using PostgreSQL.
type CheckpointStore struct {
	pool *Pool
}

// NewCheckpointStore creates a new CheckpointStore.
func NewCheckpointStore(pool *Pool) *CheckpointStore {
	return &CheckpointStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CheckpointStore = (*CheckpointStore)(nil)

// Get returns the last processed block for a scope.
func (s *CheckpointStore) Get(ctx context.Context, scope string) (uint64, error) {
	query := `SELECT last_block FROM sync_checkpoints WHERE scope = $1`

	var block int64
	err := s.pool.QueryRow(ctx, query, scope).Scan(&block)
	if err != nil {
		if isNotFoundError(err) {
			return 0, storage.ErrNotFound
		}
		return 0, fmt.Errorf("get checkpoint: %w", err)
	}
	return uint64(block), nil
}

// Set advances the checkpoint for a scope. A concurrent scan of the same
// scope never moves the checkpoint backwards.
func (s *CheckpointStore) Set(ctx context.Context, scope string, block uint64) error {
	query := `
		INSERT INTO sync_checkpoints (scope, last_block)
		VALUES ($1, $2)
		ON CONFLICT (scope) DO UPDATE
		SET last_block = GREATEST(sync_checkpoints.last_block, EXCLUDED.last_block),
		    updated_at = (EXTRACT(EPOCH FROM now()) * 1000)::BIGINT
	`

	if _, err := s.pool.Exec(ctx, query, scope, int64(block)); err != nil {
		return fmt.Errorf("set checkpoint: %w", err)
	}
	return nil
}
