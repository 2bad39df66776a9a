package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/example/roster/internal/core/cycle"
	"github.com/example/roster/internal/ports/primary"
)

// badge colors a cycle status or outcome for terminal output.
func badge(s string) string {
	switch s {
	case string(cycle.StatusCompleted):
		return color.New(color.FgGreen).Sprint(s)
	case string(cycle.StatusFailed):
		return color.New(color.FgRed).Sprint(s)
	case string(cycle.StatusRunning):
		return color.New(color.FgCyan).Sprint(s)
	case string(cycle.StatusSkipped), string(cycle.OutcomeSkippedBudget):
		return color.New(color.FgYellow).Sprint(s)
	case string(cycle.OutcomeGatedOut):
		return color.New(color.Faint).Sprint(s)
	default:
		return s
	}
}

// outcomeMark is the per-action marker in cycle detail output.
func outcomeMark(a *primary.ActionOutcome) string {
	switch {
	case a.Success:
		return color.New(color.FgGreen).Sprint("✓")
	case a.Security:
		return color.New(color.FgRed, color.Bold).Sprint("⛔")
	default:
		return color.New(color.FgRed).Sprint("✗")
	}
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

// writeCycleResult prints the one-line summary of a cycle attempt.
func writeCycleResult(w io.Writer, r *primary.CycleResult) {
	switch r.Outcome {
	case string(cycle.OutcomeGatedOut):
		fmt.Fprintf(w, "%s %s (%s)\n", r.PersonaID, badge(r.Outcome), r.SkipReason)
	case string(cycle.OutcomeSkippedBudget):
		fmt.Fprintf(w, "%s %s cycle %s (%s)\n", r.PersonaID, badge(r.Outcome), r.CycleID, r.SkipReason)
	case string(cycle.OutcomeFailed):
		fmt.Fprintf(w, "%s %s cycle %s: %s\n", r.PersonaID, badge(r.Outcome), r.CycleID, r.Error)
	default:
		fallback := ""
		if r.Fallback {
			fallback = " [fallback]"
		}
		fmt.Fprintf(w, "%s %s cycle %s: %d/%d actions succeeded, cost %d, budget %d%s\n",
			r.PersonaID, badge(r.Outcome), r.CycleID,
			r.ActionsSucceeded, r.ActionsPlanned, r.CostSpent, r.BudgetRemaining, fallback)
	}
}
