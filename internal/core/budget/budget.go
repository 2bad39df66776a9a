// Package budget contains the pure business logic for the per-persona daily action budget.
// This is part of the Functional Core - no I/O, only pure functions.
package budget

import "time"

// DateLayout is the layout of budget reset dates (calendar date, UTC).
const DateLayout = "2006-01-02"

// DefaultDaily is used when no daily default is configured.
const DefaultDaily = 100

// State is the budget portion of a persona's state.
type State struct {
	Remaining int
	ResetDate string
}

// Today returns the UTC calendar date for now in DateLayout.
func Today(now time.Time) string {
	return now.UTC().Format(DateLayout)
}

// RollOver resets the budget to dailyDefault when the reset date is not today.
// Returns the (possibly) new state and whether a reset happened.
// Running it twice on the same day is a no-op the second time.
func RollOver(s State, now time.Time, dailyDefault int) (State, bool) {
	if dailyDefault < 0 {
		dailyDefault = 0
	}
	today := Today(now)
	if s.ResetDate == today {
		return s, false
	}
	return State{Remaining: dailyDefault, ResetDate: today}, true
}

// Exhausted reports whether no budget remains.
func Exhausted(s State) bool {
	return s.Remaining <= 0
}

// Debit subtracts cost from the remaining budget, flooring at zero.
// A negative cost is ignored so the budget never increases here.
func Debit(s State, cost int) State {
	if cost <= 0 {
		return s
	}
	remaining := s.Remaining - cost
	if remaining < 0 {
		remaining = 0
	}
	return State{Remaining: remaining, ResetDate: s.ResetDate}
}
