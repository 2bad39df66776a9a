package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/roster/internal/ports/secondary"
)

// FollowupRepository implements secondary.FollowupRepository with SQLite.
type FollowupRepository struct {
	db *sql.DB
}

// NewFollowupRepository creates a new SQLite follow-up repository.
func NewFollowupRepository(db *sql.DB) *FollowupRepository {
	return &FollowupRepository{db: db}
}

const followupColumns = `id, owner_id, title, notes, status, due_at, deferred_until, related_message_id,
	source_cycle_id, completion_note, created_at, updated_at, completed_at`

// Upsert writes a follow-up keyed by ID. created_at is kept from the first write.
func (r *FollowupRepository) Upsert(ctx context.Context, record *secondary.FollowupRecord) error {
	now := time.Now()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = now
	}
	if record.Status == "" {
		record.Status = secondary.FollowupOpen
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO followups (`+followupColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title, notes = excluded.notes, status = excluded.status,
			due_at = excluded.due_at, deferred_until = excluded.deferred_until,
			related_message_id = excluded.related_message_id, completion_note = excluded.completion_note,
			updated_at = excluded.updated_at, completed_at = excluded.completed_at`,
		record.ID, record.OwnerID, record.Title, nullString(record.Notes), record.Status,
		formatNullTime(record.DueAt), formatNullTime(record.DeferredUntil), nullString(record.RelatedMessageID),
		nullString(record.SourceCycleID), nullString(record.CompletionNote),
		formatTime(record.CreatedAt), formatTime(record.UpdatedAt), formatNullTime(record.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert followup: %w", err)
	}
	return nil
}

// GetByID retrieves a follow-up by its ID.
func (r *FollowupRepository) GetByID(ctx context.Context, id string) (*secondary.FollowupRecord, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+followupColumns+" FROM followups WHERE id = ?", id)
	record, err := scanFollowup(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("followup %s: %w", id, secondary.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get followup: %w", err)
	}
	return record, nil
}

// ListOpen retrieves the owner's open follow-ups plus deferred ones that are due again.
func (r *FollowupRepository) ListOpen(ctx context.Context, ownerID string, now time.Time, limit int) ([]*secondary.FollowupRecord, error) {
	query := `
		SELECT ` + followupColumns + `
		FROM followups
		WHERE owner_id = ?
			AND (status = 'open' OR (status = 'deferred' AND deferred_until <= ?))
		ORDER BY due_at IS NULL, due_at, created_at`
	args := []any{ownerID, formatTime(now)}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list followups: %w", err)
	}
	defer rows.Close()

	var records []*secondary.FollowupRecord
	for rows.Next() {
		record, err := scanFollowup(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan followup: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func scanFollowup(row rowScanner) (*secondary.FollowupRecord, error) {
	var (
		notes, related, source, note      sql.NullString
		dueAt, deferredUntil, completedAt sql.NullString
		createdAt, updatedAt              string
	)

	record := &secondary.FollowupRecord{}
	err := row.Scan(&record.ID, &record.OwnerID, &record.Title, &notes, &record.Status, &dueAt, &deferredUntil,
		&related, &source, &note, &createdAt, &updatedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	if record.DueAt, err = parseNullTime(dueAt); err != nil {
		return nil, err
	}
	if record.DeferredUntil, err = parseNullTime(deferredUntil); err != nil {
		return nil, err
	}
	if record.CompletedAt, err = parseNullTime(completedAt); err != nil {
		return nil, err
	}
	if record.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if record.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	record.Notes = notes.String
	record.RelatedMessageID = related.String
	record.SourceCycleID = source.String
	record.CompletionNote = note.String
	return record, nil
}

var _ secondary.FollowupRepository = (*FollowupRepository)(nil)
