// Package action defines the tagged union of actions a persona can take,
// their fixed costs, and the structural validation applied before dispatch.
package action

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind is the discriminant of an action.
type Kind string

const (
	KindSendMessage      Kind = "send_message"
	KindChannelPost      Kind = "channel_post"
	KindCreateFollowup   Kind = "create_followup"
	KindCompleteFollowup Kind = "complete_followup"
	KindDeferFollowup    Kind = "defer_followup"
	KindEscalate         Kind = "escalate"
	KindNoop             Kind = "noop"
)

// Kinds lists every action kind in presentation order.
var Kinds = []Kind{
	KindSendMessage,
	KindChannelPost,
	KindCreateFollowup,
	KindCompleteFollowup,
	KindDeferFollowup,
	KindEscalate,
	KindNoop,
}

// ReasonParseFailure is the noop reason used by the fallback decision.
const ReasonParseFailure = "parse_failure"

// Action is one proposed step. The concrete types below are the only implementations.
type Action interface {
	Kind() Kind
	Validate() error
	isAction()
}

// SendMessage sends a mail message from the persona.
type SendMessage struct {
	To      []string `json:"to"`
	Cc      []string `json:"cc,omitempty"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
	ReplyTo string   `json:"reply_to,omitempty"`
}

// ChannelPost posts text into a named channel.
type ChannelPost struct {
	Channel string `json:"channel"`
	Text    string `json:"text"`
	ReplyTo string `json:"reply_to,omitempty"`
}

// CreateFollowup opens a follow-up item owned by the persona.
type CreateFollowup struct {
	Title            string `json:"title"`
	Notes            string `json:"notes,omitempty"`
	DueAt            string `json:"due_at,omitempty"`
	RelatedMessageID string `json:"related_message_id,omitempty"`
}

// CompleteFollowup closes an open follow-up.
type CompleteFollowup struct {
	FollowupID string `json:"followup_id"`
	Note       string `json:"note,omitempty"`
}

// DeferFollowup hides a follow-up until a later time.
type DeferFollowup struct {
	FollowupID string `json:"followup_id"`
	Until      string `json:"until"`
	Reason     string `json:"reason,omitempty"`
}

// Escalate sends a private message to the overseer over a direct channel.
type Escalate struct {
	Text    string `json:"text"`
	Urgency string `json:"urgency,omitempty"`
}

// Noop records a deliberate decision to do nothing.
type Noop struct {
	Reason string `json:"reason,omitempty"`
}

func (SendMessage) Kind() Kind      { return KindSendMessage }
func (ChannelPost) Kind() Kind      { return KindChannelPost }
func (CreateFollowup) Kind() Kind   { return KindCreateFollowup }
func (CompleteFollowup) Kind() Kind { return KindCompleteFollowup }
func (DeferFollowup) Kind() Kind    { return KindDeferFollowup }
func (Escalate) Kind() Kind         { return KindEscalate }
func (Noop) Kind() Kind             { return KindNoop }

func (SendMessage) isAction()      {}
func (ChannelPost) isAction()      {}
func (CreateFollowup) isAction()   {}
func (CompleteFollowup) isAction() {}
func (DeferFollowup) isAction()    {}
func (Escalate) isAction()         {}
func (Noop) isAction()             {}

// Cost returns the fixed budget cost of an action kind.
// Costs are accrued only for actions that succeed.
func Cost(k Kind) int {
	switch k {
	case KindSendMessage:
		return 10
	case KindChannelPost:
		return 5
	case KindCreateFollowup:
		return 3
	case KindCompleteFollowup, KindDeferFollowup:
		return 1
	case KindEscalate:
		return 5
	case KindNoop:
		return 0
	default:
		return 0
	}
}

// Validate checks required fields and address syntax.
func (a SendMessage) Validate() error {
	if len(a.To) == 0 {
		return fmt.Errorf("send_message: at least one recipient is required")
	}
	for _, addr := range append(append([]string{}, a.To...), a.Cc...) {
		if _, err := mail.ParseAddress(addr); err != nil {
			return fmt.Errorf("send_message: invalid address %q", addr)
		}
	}
	if strings.TrimSpace(a.Body) == "" {
		return fmt.Errorf("send_message: body is required")
	}
	return nil
}

// Recipients returns To and Cc combined.
func (a SendMessage) Recipients() []string {
	all := make([]string, 0, len(a.To)+len(a.Cc))
	all = append(all, a.To...)
	return append(all, a.Cc...)
}

// Validate checks required fields.
func (a ChannelPost) Validate() error {
	if strings.TrimSpace(a.Channel) == "" {
		return fmt.Errorf("channel_post: channel is required")
	}
	if strings.TrimSpace(a.Text) == "" {
		return fmt.Errorf("channel_post: text is required")
	}
	return nil
}

// Validate checks required fields and the optional due time.
func (a CreateFollowup) Validate() error {
	if strings.TrimSpace(a.Title) == "" {
		return fmt.Errorf("create_followup: title is required")
	}
	if a.DueAt != "" {
		if _, err := ParseTime(a.DueAt); err != nil {
			return fmt.Errorf("create_followup: %w", err)
		}
	}
	return nil
}

// Validate checks the referenced follow-up id.
func (a CompleteFollowup) Validate() error {
	return validateFollowupID("complete_followup", a.FollowupID)
}

// Validate checks the referenced follow-up id and defer time.
func (a DeferFollowup) Validate() error {
	if err := validateFollowupID("defer_followup", a.FollowupID); err != nil {
		return err
	}
	if strings.TrimSpace(a.Until) == "" {
		return fmt.Errorf("defer_followup: until is required")
	}
	if _, err := ParseTime(a.Until); err != nil {
		return fmt.Errorf("defer_followup: %w", err)
	}
	return nil
}

// Validate checks required fields.
func (a Escalate) Validate() error {
	if strings.TrimSpace(a.Text) == "" {
		return fmt.Errorf("escalate: text is required")
	}
	return nil
}

// Validate always succeeds.
func (Noop) Validate() error { return nil }

func validateFollowupID(kind, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%s: followup_id is required", kind)
	}
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%s: malformed followup_id %q", kind, id)
	}
	return nil
}

// ParseTime accepts RFC3339 timestamps or plain dates (UTC midnight).
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid time %q (want RFC3339 or YYYY-MM-DD)", s)
}
