package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/example/roster/internal/ports/secondary"
)

// ActionResultRepository implements secondary.ActionResultRepository with SQLite.
type ActionResultRepository struct {
	db *sql.DB
}

// NewActionResultRepository creates a new SQLite action result repository.
func NewActionResultRepository(db *sql.DB) *ActionResultRepository {
	return &ActionResultRepository{db: db}
}

const actionResultColumns = `id, cycle_id, persona_id, idx, kind, payload, success, error, security, cost, metadata, created_at`

// Record persists an action result keyed by ID.
func (r *ActionResultRepository) Record(ctx context.Context, record *secondary.ActionResultRecord) error {
	metadata := record.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	meta, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to encode action metadata: %w", err)
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO action_results (`+actionResultColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			success = excluded.success, error = excluded.error, security = excluded.security,
			cost = excluded.cost, metadata = excluded.metadata`,
		record.ID, record.CycleID, record.PersonaID, record.Index, record.Kind, record.Payload,
		boolInt(record.Success), nullString(record.Error), boolInt(record.Security), record.Cost,
		string(meta), formatTime(record.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to record action result: %w", err)
	}
	return nil
}

// ListByCycle retrieves the results of one cycle in execution order.
func (r *ActionResultRepository) ListByCycle(ctx context.Context, cycleID string) ([]*secondary.ActionResultRecord, error) {
	return r.query(ctx, "SELECT "+actionResultColumns+" FROM action_results WHERE cycle_id = ? ORDER BY idx", cycleID)
}

// ListRecentByPersona retrieves a persona's most recent results, newest first.
func (r *ActionResultRepository) ListRecentByPersona(ctx context.Context, personaID string, limit int) ([]*secondary.ActionResultRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	return r.query(ctx,
		"SELECT "+actionResultColumns+" FROM action_results WHERE persona_id = ? ORDER BY created_at DESC, idx DESC LIMIT ?",
		personaID, limit)
}

func (r *ActionResultRepository) query(ctx context.Context, query string, args ...any) ([]*secondary.ActionResultRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list action results: %w", err)
	}
	defer rows.Close()

	var records []*secondary.ActionResultRecord
	for rows.Next() {
		var (
			success   int
			errMsg    sql.NullString
			security  int
			metadata  string
			createdAt string
		)
		record := &secondary.ActionResultRecord{}
		err := rows.Scan(&record.ID, &record.CycleID, &record.PersonaID, &record.Index, &record.Kind, &record.Payload,
			&success, &errMsg, &security, &record.Cost, &metadata, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan action result: %w", err)
		}
		if record.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if metadata != "" {
			if err := json.Unmarshal([]byte(metadata), &record.Metadata); err != nil {
				return nil, fmt.Errorf("invalid stored metadata: %w", err)
			}
		}
		record.Success = success == 1
		record.Security = security == 1
		record.Error = errMsg.String
		records = append(records, record)
	}
	return records, rows.Err()
}

var _ secondary.ActionResultRepository = (*ActionResultRepository)(nil)
