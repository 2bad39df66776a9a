package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/roster/internal/ports/secondary"
)

// CycleRepository implements secondary.CycleRepository with SQLite.
type CycleRepository struct {
	db *sql.DB
}

// NewCycleRepository creates a new SQLite cycle repository.
func NewCycleRepository(db *sql.DB) *CycleRepository {
	return &CycleRepository{db: db}
}

const cycleColumns = `id, persona_id, status, force, started_at, completed_at, inbound_count,
	channel_message_count, followup_count, actions_planned, actions_executed, actions_succeeded,
	cost_spent, oracle_latency_ms, prompt_tokens, completion_tokens, fallback, skip_reason, error`

// Create persists a new cycle record. An existing ID is left untouched.
func (r *CycleRepository) Create(ctx context.Context, record *secondary.CycleRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cycles (id, persona_id, status, force, started_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		record.ID, record.PersonaID, record.Status, boolInt(record.Force), formatTime(record.StartedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create cycle: %w", err)
	}
	return nil
}

// Update overwrites the mutable fields of a cycle record.
func (r *CycleRepository) Update(ctx context.Context, record *secondary.CycleRecord) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE cycles SET status = ?, completed_at = ?, inbound_count = ?, channel_message_count = ?,
			followup_count = ?, actions_planned = ?, actions_executed = ?, actions_succeeded = ?,
			cost_spent = ?, oracle_latency_ms = ?, prompt_tokens = ?, completion_tokens = ?,
			fallback = ?, skip_reason = ?, error = ?
		WHERE id = ?`,
		record.Status, formatNullTime(record.CompletedAt), record.InboundCount, record.ChannelMessageCount,
		record.FollowupCount, record.ActionsPlanned, record.ActionsExecuted, record.ActionsSucceeded,
		record.CostSpent, record.OracleLatencyMs, record.PromptTokens, record.CompletionTokens,
		boolInt(record.Fallback), nullString(record.SkipReason), nullString(record.Error),
		record.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update cycle: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("cycle %s: %w", record.ID, secondary.ErrNotFound)
	}
	return nil
}

// GetByID retrieves a cycle record by its ID.
func (r *CycleRepository) GetByID(ctx context.Context, id string) (*secondary.CycleRecord, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+cycleColumns+" FROM cycles WHERE id = ?", id)
	record, err := scanCycle(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("cycle %s: %w", id, secondary.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cycle: %w", err)
	}
	return record, nil
}

// List retrieves cycle records, newest first.
func (r *CycleRepository) List(ctx context.Context, filters secondary.CycleFilters) ([]*secondary.CycleRecord, error) {
	query := "SELECT " + cycleColumns + " FROM cycles WHERE 1=1"
	var args []any

	if filters.PersonaID != "" {
		query += " AND persona_id = ?"
		args = append(args, filters.PersonaID)
	}
	if filters.Status != "" {
		query += " AND status = ?"
		args = append(args, filters.Status)
	}

	query += " ORDER BY started_at DESC, id"

	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list cycles: %w", err)
	}
	defer rows.Close()

	var records []*secondary.CycleRecord
	for rows.Next() {
		record, err := scanCycle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cycle: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func scanCycle(row rowScanner) (*secondary.CycleRecord, error) {
	var (
		force       int
		startedAt   string
		completedAt sql.NullString
		fallback    int
		skipReason  sql.NullString
		errMsg      sql.NullString
	)

	record := &secondary.CycleRecord{}
	err := row.Scan(&record.ID, &record.PersonaID, &record.Status, &force, &startedAt, &completedAt,
		&record.InboundCount, &record.ChannelMessageCount, &record.FollowupCount,
		&record.ActionsPlanned, &record.ActionsExecuted, &record.ActionsSucceeded,
		&record.CostSpent, &record.OracleLatencyMs, &record.PromptTokens, &record.CompletionTokens,
		&fallback, &skipReason, &errMsg)
	if err != nil {
		return nil, err
	}

	if record.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, err
	}
	if record.CompletedAt, err = parseNullTime(completedAt); err != nil {
		return nil, err
	}
	record.Force = force == 1
	record.Fallback = fallback == 1
	record.SkipReason = skipReason.String
	record.Error = errMsg.String
	return record, nil
}

var _ secondary.CycleRepository = (*CycleRepository)(nil)
