package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/roster/internal/ports/secondary"
)

// SyncCheckpointRepository implements secondary.SyncCheckpointRepository with SQLite.
type SyncCheckpointRepository struct {
	db *sql.DB
}

// NewSyncCheckpointRepository creates a new SQLite checkpoint repository.
func NewSyncCheckpointRepository(db *sql.DB) *SyncCheckpointRepository {
	return &SyncCheckpointRepository{db: db}
}

// Get retrieves a checkpoint by scope and key.
func (r *SyncCheckpointRepository) Get(ctx context.Context, scope, key string) (*secondary.SyncCheckpoint, error) {
	var lastSeen, updated string
	err := r.db.QueryRowContext(ctx,
		"SELECT last_seen_at, updated_at FROM sync_checkpoints WHERE scope = ? AND key = ?",
		scope, key,
	).Scan(&lastSeen, &updated)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("checkpoint %s/%s: %w", scope, key, secondary.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get checkpoint: %w", err)
	}

	cp := &secondary.SyncCheckpoint{Scope: scope, Key: key}
	if cp.LastSeenAt, err = parseTime(lastSeen); err != nil {
		return nil, err
	}
	if cp.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return cp, nil
}

// Upsert writes a checkpoint, keeping the later of the stored and new position.
func (r *SyncCheckpointRepository) Upsert(ctx context.Context, cp *secondary.SyncCheckpoint) error {
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sync_checkpoints (scope, key, last_seen_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(scope, key) DO UPDATE SET
			last_seen_at = MAX(last_seen_at, excluded.last_seen_at),
			updated_at = excluded.updated_at`,
		cp.Scope, cp.Key, formatTime(cp.LastSeenAt), formatTime(cp.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert checkpoint: %w", err)
	}
	return nil
}

var _ secondary.SyncCheckpointRepository = (*SyncCheckpointRepository)(nil)
