// Package decision holds the decision snapshot handed to the oracle, the typed
// decision it returns, and the parsing rules that turn raw oracle text into a
// decision. Parsing never fails from the caller's view: unusable output turns
// into the fallback decision.
package decision

import (
	"time"

	"github.com/example/roster/internal/core/action"
	"github.com/example/roster/internal/core/memory"
	"github.com/example/roster/internal/models"
)

// Decision is the oracle's proposal for one cycle.
type Decision struct {
	Reasoning string
	Actions   []action.Action
	Memory    memory.Update
	// Fallback is set when the decision was substituted for unusable output.
	Fallback bool
}

// Fallback returns the safe decision used when oracle output is unusable:
// a single noop with reason parse_failure.
func Fallback(reason string) Decision {
	return Decision{
		Reasoning: "oracle output could not be used: " + reason,
		Actions:   []action.Action{action.Noop{Reason: action.ReasonParseFailure}},
		Fallback:  true,
	}
}

// Integrations lists which optional channels are wired up for this process.
type Integrations struct {
	Mail       bool
	Channels   bool
	Escalation bool
}

// Allows reports whether an action kind can be carried out with these integrations.
func (i Integrations) Allows(k action.Kind) bool {
	switch k {
	case action.KindSendMessage:
		return i.Mail
	case action.KindChannelPost:
		return i.Channels
	case action.KindEscalate:
		return i.Escalation
	case action.KindCreateFollowup, action.KindCompleteFollowup, action.KindDeferFollowup, action.KindNoop:
		return true
	default:
		return false
	}
}

// ChannelDigest is the recent traffic of one reachable channel.
type ChannelDigest struct {
	Channel  string
	Messages []models.ChannelMessage
}

// FollowupItem is an open follow-up owned by the persona.
type FollowupItem struct {
	ID     string
	Title  string
	Notes  string
	DueAt  *time.Time
	Status string
}

// HistoryEntry is one of the persona's own recent actions.
type HistoryEntry struct {
	At      time.Time
	Kind    action.Kind
	Summary string
	Success bool
	Error   string
}

// Snapshot is the bounded decision context for one cycle.
type Snapshot struct {
	PersonaID       string
	Now             time.Time
	Local           time.Time
	DayName         string
	InActiveWindow  bool
	Inbound         []models.Message
	Channels        []ChannelDigest
	Sent            []models.Message
	Followups       []FollowupItem
	History         []HistoryEntry
	Memory          []string
	BudgetRemaining int
	Integrations    Integrations
}

// ChannelMessageCount returns the total number of channel messages in the snapshot.
func (s Snapshot) ChannelMessageCount() int {
	n := 0
	for _, c := range s.Channels {
		n += len(c.Messages)
	}
	return n
}
