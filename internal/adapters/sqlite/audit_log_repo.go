package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/roster/internal/ports/secondary"
)

// AuditLogRepository implements secondary.AuditLogRepository with SQLite.
type AuditLogRepository struct {
	db *sql.DB
}

// NewAuditLogRepository creates a new SQLite audit log repository.
func NewAuditLogRepository(db *sql.DB) *AuditLogRepository {
	return &AuditLogRepository{db: db}
}

// Append writes an audit entry. Re-appending an existing ID is a no-op.
func (r *AuditLogRepository) Append(ctx context.Context, entry *secondary.AuditEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, persona_id, cycle_id, kind, outcome, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		entry.ID, entry.PersonaID, nullString(entry.CycleID), entry.Kind, entry.Outcome,
		nullString(entry.Detail), formatTime(entry.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// List retrieves audit entries, newest first.
func (r *AuditLogRepository) List(ctx context.Context, filters secondary.AuditFilters) ([]*secondary.AuditEntry, error) {
	query := "SELECT id, persona_id, cycle_id, kind, outcome, detail, created_at FROM audit_log WHERE 1=1"
	var args []any

	if filters.PersonaID != "" {
		query += " AND persona_id = ?"
		args = append(args, filters.PersonaID)
	}
	if filters.CycleID != "" {
		query += " AND cycle_id = ?"
		args = append(args, filters.CycleID)
	}

	query += " ORDER BY created_at DESC, id"

	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit log: %w", err)
	}
	defer rows.Close()

	var entries []*secondary.AuditEntry
	for rows.Next() {
		var (
			cycleID   sql.NullString
			detail    sql.NullString
			createdAt string
		)
		entry := &secondary.AuditEntry{}
		if err := rows.Scan(&entry.ID, &entry.PersonaID, &cycleID, &entry.Kind, &entry.Outcome, &detail, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		if entry.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		entry.CycleID = cycleID.String
		entry.Detail = detail.String
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

var _ secondary.AuditLogRepository = (*AuditLogRepository)(nil)
