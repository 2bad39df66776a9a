// Package primary defines the primary ports (driving adapters) for the application.
package primary

import (
	"context"
	"time"
)

// TickService defines the primary port for running persona cycles.
type TickService interface {
	// RunCycle runs one gated cycle for a persona. A gated-out cycle is not
	// an error. A failed cycle returns its result together with the error
	// so the trigger surface can apply a retry policy.
	RunCycle(ctx context.Context, req CycleRequest) (*CycleResult, error)

	// TickAll fans out one cycle per configured persona under the dispatch
	// concurrency ceiling. A failing persona does not stop the others.
	TickAll(ctx context.Context, req TickAllRequest) (*TickAllResult, error)
}

// CycleRequest is the per-persona fan-out event.
type CycleRequest struct {
	PersonaID string
	Force     bool
}

// CycleResult summarizes one cycle attempt.
type CycleResult struct {
	PersonaID        string
	CycleID          string // empty when gated out
	Outcome          string // gated-out, completed, failed, skipped-budget
	SkipReason       string
	Detail           string
	ActionsPlanned   int
	ActionsSucceeded int
	CostSpent        int
	BudgetRemaining  int
	Fallback         bool
	Error            string
}

// TickAllRequest is the fan-out-to-everyone event.
type TickAllRequest struct {
	Force bool
}

// TickAllResult collects per-persona results in directory order.
type TickAllResult struct {
	Results []*CycleResult
	Failed  int
}

// CycleQueryService defines the primary port for reading the audit trail.
type CycleQueryService interface {
	// ListCycles lists cycle records, newest first.
	ListCycles(ctx context.Context, filters CycleFilters) ([]*Cycle, error)

	// GetCycle retrieves a cycle with its action results.
	GetCycle(ctx context.Context, cycleID string) (*CycleDetail, error)
}

// CycleFilters contains filter options for listing cycles.
type CycleFilters struct {
	PersonaID string
	Status    string
	Limit     int
}

// Cycle represents a cycle record at the port boundary.
type Cycle struct {
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
	OracleLatency       time.Duration
	PromptTokens        int
	CompletionTokens    int
	Fallback            bool
	SkipReason          string
	Error               string
}

// CycleDetail is a cycle plus its action results.
type CycleDetail struct {
	Cycle   *Cycle
	Actions []*ActionOutcome
}

// ActionOutcome represents one action result at the port boundary.
type ActionOutcome struct {
	Index    int
	Kind     string
	Payload  string
	Success  bool
	Security bool
	Error    string
	Cost     int
	Metadata map[string]string
}
