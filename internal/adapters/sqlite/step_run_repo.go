package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/roster/internal/ports/secondary"
)

// StepRunRepository implements secondary.StepRunRepository with SQLite.
type StepRunRepository struct {
	db *sql.DB
}

// NewStepRunRepository creates a new SQLite step run repository.
func NewStepRunRepository(db *sql.DB) *StepRunRepository {
	return &StepRunRepository{db: db}
}

// Get retrieves a completed step by idempotency key.
func (r *StepRunRepository) Get(ctx context.Context, key string) (*secondary.StepRun, error) {
	var completedAt string
	run := &secondary.StepRun{Key: key}
	err := r.db.QueryRowContext(ctx,
		"SELECT cycle_id, result, completed_at FROM step_runs WHERE key = ?", key,
	).Scan(&run.CycleID, &run.Result, &completedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("step %s: %w", key, secondary.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get step run: %w", err)
	}
	if run.CompletedAt, err = parseTime(completedAt); err != nil {
		return nil, err
	}
	return run, nil
}

// Save records a completed step. The first recorded result wins.
func (r *StepRunRepository) Save(ctx context.Context, run *secondary.StepRun) error {
	if run.CompletedAt.IsZero() {
		run.CompletedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO step_runs (key, cycle_id, result, completed_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO NOTHING`,
		run.Key, run.CycleID, run.Result, formatTime(run.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save step run: %w", err)
	}
	return nil
}

var _ secondary.StepRunRepository = (*StepRunRepository)(nil)
