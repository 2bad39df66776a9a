// Package cycle contains the pure lifecycle rules for cycle records.
// This is part of the Functional Core - no I/O, only pure functions.
package cycle

import (
	"fmt"
	"time"
)

// Status represents the persisted states of a cycle record.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// Outcome is the orchestrator-level result of a cycle attempt. GatedOut
// never has a record; all others do.
type Outcome string

const (
	OutcomeGatedOut      Outcome = "gated-out"
	OutcomeCompleted     Outcome = "completed"
	OutcomeFailed        Outcome = "failed"
	OutcomeSkippedBudget Outcome = "skipped-budget"
)

// IsTerminal reports whether s is a final status.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusSkipped
}

// InitialStatus returns the status of a freshly created cycle record.
func InitialStatus() Status {
	return StatusRunning
}

// TransitionResult captures the new status and the completion stamp.
type TransitionResult struct {
	NewStatus   Status
	CompletedAt time.Time
}

// Finalize moves a running record into a terminal status. A record is
// finalized exactly once; finalizing a terminal record is an error.
func Finalize(current, next Status, now time.Time) (TransitionResult, error) {
	if current != StatusRunning {
		return TransitionResult{}, fmt.Errorf("cannot finalize cycle in status %s", current)
	}
	if !next.IsTerminal() {
		return TransitionResult{}, fmt.Errorf("%s is not a terminal status", next)
	}
	return TransitionResult{NewStatus: next, CompletedAt: now}, nil
}

// OutcomeFor maps a terminal record status to the orchestrator outcome.
func OutcomeFor(s Status) Outcome {
	switch s {
	case StatusCompleted:
		return OutcomeCompleted
	case StatusSkipped:
		return OutcomeSkippedBudget
	default:
		return OutcomeFailed
	}
}
