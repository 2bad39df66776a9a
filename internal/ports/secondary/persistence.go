// Package secondary defines the secondary ports (driven adapters) for the application.
// These are the interfaces through which the application drives external systems.
package secondary

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by keyed lookups when no row exists.
	ErrNotFound = errors.New("not found")

	// ErrVersionConflict is returned by conditional writes when the stored
	// version no longer matches the expected one.
	ErrVersionConflict = errors.New("version conflict")
)

// PersonaStateRepository defines the secondary port for persona state persistence.
type PersonaStateRepository interface {
	// Get retrieves the state for a persona. Returns ErrNotFound when the
	// persona has never cycled.
	Get(ctx context.Context, personaID string) (*PersonaStateRecord, error)

	// Upsert writes the state if the stored version equals expectedVersion
	// (0 means the row must not exist yet). On success record.Version is
	// advanced. Returns ErrVersionConflict otherwise.
	Upsert(ctx context.Context, record *PersonaStateRecord, expectedVersion int) error

	// List retrieves all persona states.
	List(ctx context.Context) ([]*PersonaStateRecord, error)
}

// PersonaStateRecord represents a persona's mutable state as stored in persistence.
type PersonaStateRecord struct {
	PersonaID       string
	LastCycleAt     *time.Time
	LastCycleID     string
	BudgetRemaining int
	BudgetResetDate string // YYYY-MM-DD, UTC
	Memory          []string
	MemoryUpdatedAt *time.Time
	Active          bool
	Version         int
	UpdatedAt       time.Time
}

// CycleRepository defines the secondary port for cycle record persistence.
type CycleRepository interface {
	// Create persists a new cycle record. Re-creating an existing ID is a no-op.
	Create(ctx context.Context, record *CycleRecord) error

	// Update overwrites the mutable fields of a cycle record.
	Update(ctx context.Context, record *CycleRecord) error

	// GetByID retrieves a cycle record by its ID.
	GetByID(ctx context.Context, id string) (*CycleRecord, error)

	// List retrieves cycle records, newest first.
	List(ctx context.Context, filters CycleFilters) ([]*CycleRecord, error)
}

// CycleRecord represents one tick attempt as stored in persistence.
type CycleRecord struct {
	ID                  string
	PersonaID           string
	Status              string
	Force               bool
	StartedAt           time.Time
	CompletedAt         *time.Time
	InboundCount        int
	ChannelMessageCount int
	FollowupCount       int
	ActionsPlanned      int
	ActionsExecuted     int
	ActionsSucceeded    int
	CostSpent           int
	OracleLatencyMs     int64
	PromptTokens        int
	CompletionTokens    int
	Fallback            bool
	SkipReason          string
	Error               string
}

// CycleFilters contains filter options for querying cycles.
type CycleFilters struct {
	PersonaID string
	Status    string
	Limit     int
}

// ActionResultRepository defines the secondary port for action result persistence.
type ActionResultRepository interface {
	// Record persists an action result. Keyed by ID; re-recording overwrites.
	Record(ctx context.Context, record *ActionResultRecord) error

	// ListByCycle retrieves the results of one cycle in execution order.
	ListByCycle(ctx context.Context, cycleID string) ([]*ActionResultRecord, error)

	// ListRecentByPersona retrieves a persona's most recent results, newest first.
	ListRecentByPersona(ctx context.Context, personaID string, limit int) ([]*ActionResultRecord, error)
}

// ActionResultRecord represents one attempted action as stored in persistence.
type ActionResultRecord struct {
	ID        string
	CycleID   string
	PersonaID string
	Index     int
	Kind      string
	Payload   string // JSON encoding of the action
	Success   bool
	Error     string
	Security  bool
	Cost      int
	Metadata  map[string]string
	CreatedAt time.Time
}

// AuditLogRepository defines the secondary port for the append-only audit trail.
type AuditLogRepository interface {
	// Append writes an audit entry. Keyed by ID; re-appending is a no-op.
	Append(ctx context.Context, entry *AuditEntry) error

	// List retrieves audit entries, newest first.
	List(ctx context.Context, filters AuditFilters) ([]*AuditEntry, error)
}

// AuditEntry represents one audit log row.
type AuditEntry struct {
	ID        string
	PersonaID string
	CycleID   string
	Kind      string
	Outcome   string // success, failed, blocked
	Detail    string
	CreatedAt time.Time
}

// AuditFilters contains filter options for querying the audit log.
type AuditFilters struct {
	PersonaID string
	CycleID   string
	Limit     int
}

// FollowupRepository defines the secondary port for follow-up persistence.
type FollowupRepository interface {
	// Upsert writes a follow-up keyed by ID.
	Upsert(ctx context.Context, record *FollowupRecord) error

	// GetByID retrieves a follow-up by its ID.
	GetByID(ctx context.Context, id string) (*FollowupRecord, error)

	// ListOpen retrieves the owner's open follow-ups, including deferred ones
	// whose defer time has passed at now. Ordered by due date, undated last.
	ListOpen(ctx context.Context, ownerID string, now time.Time, limit int) ([]*FollowupRecord, error)
}

// FollowupRecord represents a follow-up item as stored in persistence.
type FollowupRecord struct {
	ID               string
	OwnerID          string
	Title            string
	Notes            string
	Status           string // open, deferred, done
	DueAt            *time.Time
	DeferredUntil    *time.Time
	RelatedMessageID string
	SourceCycleID    string
	CompletionNote   string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	CompletedAt      *time.Time
}

// Follow-up statuses.
const (
	FollowupOpen     = "open"
	FollowupDeferred = "deferred"
	FollowupDone     = "done"
)

// SyncCheckpointRepository defines the secondary port for per-identity and
// per-channel read positions.
type SyncCheckpointRepository interface {
	// Get retrieves a checkpoint. Returns ErrNotFound when none is stored.
	Get(ctx context.Context, scope, key string) (*SyncCheckpoint, error)

	// Upsert writes a checkpoint keyed by scope and key. A checkpoint never
	// moves backwards.
	Upsert(ctx context.Context, checkpoint *SyncCheckpoint) error
}

// SyncCheckpoint marks the newest item an identity has seen from a source.
type SyncCheckpoint struct {
	Scope      string
	Key        string
	LastSeenAt time.Time
	UpdatedAt  time.Time
}

// Checkpoint scopes.
const (
	ScopeInbox   = "inbox"
	ScopeChannel = "channel"
)

// StepRunRepository defines the secondary port for step deduplication.
type StepRunRepository interface {
	// Get retrieves a completed step by idempotency key. Returns ErrNotFound
	// when the step has not completed.
	Get(ctx context.Context, key string) (*StepRun, error)

	// Save records a completed step. Saving an existing key is a no-op.
	Save(ctx context.Context, run *StepRun) error
}

// StepRun is the recorded outcome of one idempotent step.
type StepRun struct {
	Key         string
	CycleID     string
	Result      string // JSON
	CompletedAt time.Time
}
