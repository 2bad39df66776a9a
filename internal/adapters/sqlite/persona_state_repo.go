package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/roster/internal/ports/secondary"
)

// PersonaStateRepository implements secondary.PersonaStateRepository with SQLite.
type PersonaStateRepository struct {
	db *sql.DB
}

// NewPersonaStateRepository creates a new SQLite persona state repository.
func NewPersonaStateRepository(db *sql.DB) *PersonaStateRepository {
	return &PersonaStateRepository{db: db}
}

const personaStateColumns = `persona_id, last_cycle_at, last_cycle_id, budget_remaining, budget_reset_date,
	memory, memory_updated_at, active, version, updated_at`

// Get retrieves the state for a persona.
func (r *PersonaStateRepository) Get(ctx context.Context, personaID string) (*secondary.PersonaStateRecord, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+personaStateColumns+" FROM persona_state WHERE persona_id = ?", personaID)

	record, err := scanPersonaState(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("persona state %s: %w", personaID, secondary.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get persona state: %w", err)
	}
	return record, nil
}

// Upsert writes the state conditionally on the stored version.
func (r *PersonaStateRepository) Upsert(ctx context.Context, record *secondary.PersonaStateRecord, expectedVersion int) error {
	memory, err := encodeList(record.Memory)
	if err != nil {
		return fmt.Errorf("failed to encode memory: %w", err)
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = time.Now()
	}
	newVersion := expectedVersion + 1

	args := []any{
		formatNullTime(record.LastCycleAt),
		nullString(record.LastCycleID),
		record.BudgetRemaining,
		record.BudgetResetDate,
		memory,
		formatNullTime(record.MemoryUpdatedAt),
		boolInt(record.Active),
		newVersion,
		formatTime(record.UpdatedAt),
	}

	var result sql.Result
	if expectedVersion == 0 {
		result, err = r.db.ExecContext(ctx, `
			INSERT INTO persona_state (last_cycle_at, last_cycle_id, budget_remaining, budget_reset_date,
				memory, memory_updated_at, active, version, updated_at, persona_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(persona_id) DO NOTHING`,
			append(args, record.PersonaID)...)
	} else {
		result, err = r.db.ExecContext(ctx, `
			UPDATE persona_state SET last_cycle_at = ?, last_cycle_id = ?, budget_remaining = ?,
				budget_reset_date = ?, memory = ?, memory_updated_at = ?, active = ?, version = ?, updated_at = ?
			WHERE persona_id = ? AND version = ?`,
			append(args, record.PersonaID, expectedVersion)...)
	}
	if err != nil {
		return fmt.Errorf("failed to upsert persona state: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("persona state %s at version %d: %w", record.PersonaID, expectedVersion, secondary.ErrVersionConflict)
	}

	record.Version = newVersion
	return nil
}

// List retrieves all persona states ordered by persona ID.
func (r *PersonaStateRepository) List(ctx context.Context) ([]*secondary.PersonaStateRecord, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+personaStateColumns+" FROM persona_state ORDER BY persona_id")
	if err != nil {
		return nil, fmt.Errorf("failed to list persona state: %w", err)
	}
	defer rows.Close()

	var records []*secondary.PersonaStateRecord
	for rows.Next() {
		record, err := scanPersonaState(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan persona state: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPersonaState(row rowScanner) (*secondary.PersonaStateRecord, error) {
	var (
		lastCycleAt     sql.NullString
		lastCycleID     sql.NullString
		memory          string
		memoryUpdatedAt sql.NullString
		active          int
		updatedAt       string
	)

	record := &secondary.PersonaStateRecord{}
	err := row.Scan(&record.PersonaID, &lastCycleAt, &lastCycleID, &record.BudgetRemaining, &record.BudgetResetDate,
		&memory, &memoryUpdatedAt, &active, &record.Version, &updatedAt)
	if err != nil {
		return nil, err
	}

	if record.LastCycleAt, err = parseNullTime(lastCycleAt); err != nil {
		return nil, err
	}
	if record.MemoryUpdatedAt, err = parseNullTime(memoryUpdatedAt); err != nil {
		return nil, err
	}
	if record.Memory, err = decodeList(memory); err != nil {
		return nil, err
	}
	if record.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	record.LastCycleID = lastCycleID.String
	record.Active = active == 1
	return record, nil
}

var _ secondary.PersonaStateRepository = (*PersonaStateRepository)(nil)
