// Package gate contains the pure business logic deciding whether a persona cycle runs.
// Guards are pure functions that evaluate preconditions without side effects.
package gate

import (
	"fmt"
	"time"
)

// SkipReason is the closed set of reasons a cycle is not run.
type SkipReason string

const (
	ReasonDisabled           SkipReason = "disabled"
	ReasonOutsideWindow      SkipReason = "outside-active-window"
	ReasonIntervalNotElapsed SkipReason = "interval-not-elapsed"
	ReasonInactive           SkipReason = "inactive"
	ReasonBudgetExhausted    SkipReason = "budget-exhausted"
)

// GuardResult represents the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool
	Reason  SkipReason
	Detail  string
}

// Error converts the guard result to an error if not allowed.
func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	if r.Detail == "" {
		return fmt.Errorf("%s", r.Reason)
	}
	return fmt.Errorf("%s: %s", r.Reason, r.Detail)
}

// ActiveWindow is the time-of-day and weekday range in which personas act.
// StartHour is inclusive and EndHour exclusive; StartHour > EndHour wraps past
// midnight and StartHour == EndHour means all day. Empty Weekdays means every day.
type ActiveWindow struct {
	StartHour int
	EndHour   int
	Location  *time.Location
	Weekdays  []time.Weekday
}

// Local converts now into the window's timezone.
func (w ActiveWindow) Local(now time.Time) time.Time {
	if w.Location == nil {
		return now.UTC()
	}
	return now.In(w.Location)
}

// Contains reports whether now falls inside the window.
func (w ActiveWindow) Contains(now time.Time) bool {
	local := w.Local(now)

	if len(w.Weekdays) > 0 {
		found := false
		for _, d := range w.Weekdays {
			if d == local.Weekday() {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	h := local.Hour()
	switch {
	case w.StartHour == w.EndHour:
		return true
	case w.StartHour < w.EndHour:
		return h >= w.StartHour && h < w.EndHour
	default:
		return h >= w.StartHour || h < w.EndHour
	}
}

// CycleContext provides context for the cycle start guard.
type CycleContext struct {
	PersonaID   string
	Force       bool
	Now         time.Time
	Disabled    bool
	Window      ActiveWindow
	MinInterval time.Duration
	HasState    bool
	LastCycleAt *time.Time
	Active      bool
}

// CanStartCycle evaluates whether a cycle may begin, before any record exists.
// Rules (first match wins):
// - Persona must not be on the disabled list
// - Now must fall inside the active window (skipped when forced)
// - The class minimum interval must have elapsed since the last cycle (skipped when forced)
// - Persona state must be active
func CanStartCycle(ctx CycleContext) GuardResult {
	// Rule 1: disabled list
	if ctx.Disabled {
		return GuardResult{
			Reason: ReasonDisabled,
			Detail: fmt.Sprintf("persona %s is disabled", ctx.PersonaID),
		}
	}

	// Rule 2: active window
	if !ctx.Force && !ctx.Window.Contains(ctx.Now) {
		local := ctx.Window.Local(ctx.Now)
		return GuardResult{
			Reason: ReasonOutsideWindow,
			Detail: fmt.Sprintf("%s %02d:00 is outside %02d:00-%02d:00",
				local.Weekday(), local.Hour(), ctx.Window.StartHour, ctx.Window.EndHour),
		}
	}

	// Rule 3: minimum interval
	if !ctx.Force && ctx.HasState && ctx.LastCycleAt != nil && ctx.MinInterval > 0 {
		elapsed := ctx.Now.Sub(*ctx.LastCycleAt)
		if elapsed < ctx.MinInterval {
			return GuardResult{
				Reason: ReasonIntervalNotElapsed,
				Detail: fmt.Sprintf("%s since last cycle, need %s",
					elapsed.Truncate(time.Second), ctx.MinInterval),
			}
		}
	}

	// Rule 4: inactive
	if ctx.HasState && !ctx.Active {
		return GuardResult{
			Reason: ReasonInactive,
			Detail: fmt.Sprintf("persona %s is inactive", ctx.PersonaID),
		}
	}

	return GuardResult{Allowed: true}
}

// BudgetContext provides context for the budget guard, evaluated after the
// cycle record exists and the daily rollover has been applied.
type BudgetContext struct {
	Force           bool
	BudgetRemaining int
}

// CanSpend evaluates whether the persona has budget left for this cycle.
// Forced cycles bypass the check.
func CanSpend(ctx BudgetContext) GuardResult {
	if !ctx.Force && ctx.BudgetRemaining <= 0 {
		return GuardResult{
			Reason: ReasonBudgetExhausted,
			Detail: "no budget remaining today",
		}
	}
	return GuardResult{Allowed: true}
}
