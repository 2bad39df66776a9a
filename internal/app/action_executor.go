package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/example/roster/internal/core/action"
	"github.com/example/roster/internal/core/decision"
	"github.com/example/roster/internal/logging"
	"github.com/example/roster/internal/models"
	"github.com/example/roster/internal/ports/secondary"
)

var (
	// resultNamespace derives action result and audit ids from cycle id and index.
	resultNamespace = uuid.MustParse("6f1c1f0e-7a53-4c55-9d40-6a3c2f0d8b21")
	// followupNamespace derives follow-up ids so a replayed create is an upsert.
	followupNamespace = uuid.MustParse("0b8f7d2a-3e61-4f0c-8a59-2c7e4d9b1a06")
)

// Audit outcomes.
const (
	auditSuccess = "success"
	auditFailed  = "failed"
	auditBlocked = "blocked"
)

const (
	reasonDryRun        = "dry run"
	reasonNotConfigured = "integration not configured"
)

// ExecutorConfig holds the guardrail settings of the executor.
type ExecutorConfig struct {
	AllowedSuffix    string
	OverseerHandle   string
	OverseerIdentity string
	Integrations     decision.Integrations
}

// ExecutorDeps holds the collaborators the executor dispatches through.
// Sink and Channels may be nil when the integration is not configured.
type ExecutorDeps struct {
	Sink          secondary.OutboundSink
	Channels      secondary.ChannelSource
	Conversations secondary.ConversationStore
	Followups     secondary.FollowupRepository
	Results       secondary.ActionResultRepository
	Audit         secondary.AuditLogRepository
	Steps         StepRunner
}

// ExecutionReport totals one cycle's action results.
type ExecutionReport struct {
	Results   []*secondary.ActionResultRecord
	Executed  int
	Succeeded int
	// Cost is the sum of costs of recorded successful actions.
	Cost int
}

// ActionExecutor applies guardrails and dispatches actions in order.
type ActionExecutor struct {
	sink          secondary.OutboundSink
	channels      secondary.ChannelSource
	conversations secondary.ConversationStore
	followups     secondary.FollowupRepository
	results       secondary.ActionResultRepository
	audit         secondary.AuditLogRepository
	steps         StepRunner
	cfg           ExecutorConfig
	logger        *slog.Logger
	metrics       *Metrics
	now           func() time.Time
}

// NewActionExecutor creates a new action executor.
func NewActionExecutor(deps ExecutorDeps, cfg ExecutorConfig, logger *slog.Logger, metrics *Metrics) *ActionExecutor {
	steps := deps.Steps
	if steps == nil {
		steps = InlineSteps{}
	}
	return &ActionExecutor{
		sink:          deps.Sink,
		channels:      deps.Channels,
		conversations: deps.Conversations,
		followups:     deps.Followups,
		results:       deps.Results,
		audit:         deps.Audit,
		steps:         steps,
		cfg:           cfg,
		logger:        logger.With("component", "action_executor"),
		metrics:       metrics,
		now:           time.Now,
	}
}

// outcome is the stored result of one dispatch step.
type outcome struct {
	Success  bool              `json:"success"`
	Error    string            `json:"error,omitempty"`
	Security bool              `json:"security,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func succeeded(meta map[string]string) outcome {
	return outcome{Success: true, Metadata: meta}
}

func failed(format string, args ...any) outcome {
	return outcome{Error: fmt.Sprintf(format, args...)}
}

func blocked(reason string) outcome {
	return outcome{Error: reason, Security: true}
}

// Execute runs actions strictly in order. A failing action never stops the
// ones after it. The returned error is a persistence failure writing results
// or audit entries; the report then covers only what was recorded.
func (e *ActionExecutor) Execute(ctx context.Context, p models.Persona, cycleID string, actions []action.Action) (*ExecutionReport, error) {
	log := logging.FromContext(ctx, e.logger)
	report := &ExecutionReport{}

	for i, a := range actions {
		out, err := e.runStep(ctx, p, cycleID, i, a)
		if err != nil {
			return report, err
		}

		payload, encErr := action.Encode(a)
		if encErr != nil {
			payload = []byte(fmt.Sprintf(`{"type":%q}`, a.Kind()))
		}

		cost := 0
		if out.Success {
			cost = action.Cost(a.Kind())
		}

		id := uuid.NewSHA1(resultNamespace, []byte(cycleID+"/"+strconv.Itoa(i))).String()
		rec := &secondary.ActionResultRecord{
			ID:        id,
			CycleID:   cycleID,
			PersonaID: p.ID,
			Index:     i,
			Kind:      string(a.Kind()),
			Payload:   string(payload),
			Success:   out.Success,
			Error:     out.Error,
			Security:  out.Security,
			Cost:      cost,
			Metadata:  out.Metadata,
			CreatedAt: e.now().UTC(),
		}
		if err := e.results.Record(ctx, rec); err != nil {
			return report, fmt.Errorf("failed to record action %d: %w", i, err)
		}

		result := auditSuccess
		switch {
		case out.Security:
			result = auditBlocked
		case !out.Success:
			result = auditFailed
		}
		if e.audit != nil {
			if err := e.audit.Append(ctx, &secondary.AuditEntry{
				ID:        id,
				PersonaID: p.ID,
				CycleID:   cycleID,
				Kind:      string(a.Kind()),
				Outcome:   result,
				Detail:    auditDetail(a, out),
				CreatedAt: rec.CreatedAt,
			}); err != nil {
				return report, fmt.Errorf("failed to append audit entry for action %d: %w", i, err)
			}
		}

		report.Results = append(report.Results, rec)
		report.Executed++
		if out.Success {
			report.Succeeded++
			report.Cost += cost
		}
		e.metrics.ObserveAction(string(a.Kind()), result)

		switch {
		case out.Security:
			log.Warn("action blocked", "index", i, "kind", a.Kind(), "security", true, "reason", out.Error)
		case !out.Success:
			log.Info("action failed", "index", i, "kind", a.Kind(), "error", out.Error)
		default:
			log.Info("action succeeded", "index", i, "kind", a.Kind(), "cost", cost)
		}
	}

	return report, nil
}

func (e *ActionExecutor) runStep(ctx context.Context, p models.Persona, cycleID string, i int, a action.Action) (outcome, error) {
	key := cycleID + "/" + strconv.Itoa(i)
	raw, err := e.steps.Run(ctx, key, func(ctx context.Context) (string, error) {
		data, err := json.Marshal(e.dispatch(ctx, p, cycleID, i, a))
		if err != nil {
			return "", fmt.Errorf("failed to encode step result: %w", err)
		}
		return string(data), nil
	})
	if err != nil {
		return outcome{}, err
	}

	var out outcome
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return outcome{}, fmt.Errorf("failed to decode step %s: %w", key, err)
	}
	return out, nil
}

// dispatch applies guardrails and carries out one action. Panics are
// converted into a failed outcome.
func (e *ActionExecutor) dispatch(ctx context.Context, p models.Persona, cycleID string, i int, a action.Action) (out outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = failed("panic: %v", r)
		}
	}()

	if !e.cfg.Integrations.Allows(a.Kind()) {
		return failed(reasonNotConfigured)
	}
	if err := a.Validate(); err != nil {
		return failed("%v", err)
	}

	switch v := a.(type) {
	case action.SendMessage:
		return e.sendMessage(ctx, p, v)
	case action.ChannelPost:
		return e.channelPost(ctx, p, v)
	case action.CreateFollowup:
		return e.createFollowup(ctx, p, cycleID, i, v)
	case action.CompleteFollowup:
		return e.completeFollowup(ctx, p, v)
	case action.DeferFollowup:
		return e.deferFollowup(ctx, p, v)
	case action.Escalate:
		return e.escalate(ctx, p, v)
	case action.Noop:
		return succeeded(map[string]string{"reason": v.Reason})
	default:
		return failed("unsupported action %T", a)
	}
}

func (e *ActionExecutor) sendMessage(ctx context.Context, p models.Persona, a action.SendMessage) outcome {
	if g := action.CheckRecipients(action.RecipientContext{
		Recipients:    a.Recipients(),
		AllowedSuffix: e.cfg.AllowedSuffix,
	}); !g.Allowed {
		return blocked(g.Reason)
	}
	if e.sink == nil {
		return failed(reasonNotConfigured)
	}

	receipt, err := e.sink.Send(ctx, secondary.SendRequest{
		From:    p.Address,
		To:      a.To,
		Cc:      a.Cc,
		Subject: a.Subject,
		Body:    a.Body,
		ReplyTo: a.ReplyTo,
	})
	if err != nil {
		return failed("send failed: %v", err)
	}
	meta := map[string]string{"message_id": receipt.MessageID}
	if receipt.Simulated {
		return outcome{Error: reasonDryRun, Metadata: meta}
	}
	meta["thread_id"] = receipt.ThreadID

	if e.conversations != nil {
		if err := e.conversations.RecordSent(ctx, p.ID, models.Message{
			ID:       receipt.MessageID,
			ThreadID: receipt.ThreadID,
			Sender:   p.Address,
			To:       a.To,
			Cc:       a.Cc,
			Subject:  a.Subject,
			Body:     a.Body,
			SentAt:   receipt.SentAt,
		}); err != nil {
			logging.FromContext(ctx, e.logger).Warn("failed to write back sent message", "message_id", receipt.MessageID, "error", err)
			meta["writeback"] = "failed"
		}
	}
	return succeeded(meta)
}

func (e *ActionExecutor) channelPost(ctx context.Context, p models.Persona, a action.ChannelPost) outcome {
	if g := action.CheckReachable(action.ReachableContext{
		Channel:   a.Channel,
		Reachable: p.Channels,
	}); !g.Allowed {
		if g.Security {
			return blocked(g.Reason)
		}
		return failed("%s", g.Reason)
	}
	if g := action.CheckBroadcast(action.BroadcastContext{
		Text:           a.Text,
		OverseerHandle: e.cfg.OverseerHandle,
	}); !g.Allowed {
		return blocked(g.Reason)
	}
	if e.channels == nil {
		return failed(reasonNotConfigured)
	}

	h, err := e.channels.ResolveByName(ctx, a.Channel)
	if err != nil {
		if errors.Is(err, secondary.ErrNotFound) {
			return failed("unresolvable channel %q", a.Channel)
		}
		return failed("resolve channel %q: %v", a.Channel, err)
	}
	if h.Direct {
		return failed("channel %q is a direct channel", a.Channel)
	}

	return e.post(ctx, p, *h, a.Text, a.ReplyTo)
}

func (e *ActionExecutor) escalate(ctx context.Context, p models.Persona, a action.Escalate) outcome {
	if e.channels == nil || e.cfg.OverseerIdentity == "" {
		return failed(reasonNotConfigured)
	}

	h, err := e.channels.OpenDirect(ctx, p.Address, e.cfg.OverseerIdentity)
	if err != nil {
		return failed("open direct channel: %v", err)
	}

	text := a.Text
	if u := strings.TrimSpace(a.Urgency); u != "" {
		text = "[" + strings.ToUpper(u) + "] " + text
	}
	return e.post(ctx, p, *h, text, "")
}

func (e *ActionExecutor) post(ctx context.Context, p models.Persona, h models.ChannelHandle, text, replyTo string) outcome {
	receipt, err := e.channels.Post(ctx, p.Address, h, text, replyTo)
	if err != nil {
		return failed("post failed: %v", err)
	}
	meta := map[string]string{"message_id": receipt.MessageID, "channel_id": h.ID}
	if receipt.Simulated {
		return outcome{Error: reasonDryRun, Metadata: meta}
	}

	if e.conversations != nil {
		if err := e.conversations.RecordPost(ctx, p.ID, models.ChannelMessage{
			ID:        receipt.MessageID,
			ChannelID: h.ID,
			Channel:   h.Name,
			Author:    p.Address,
			Text:      text,
			ReplyTo:   replyTo,
			PostedAt:  receipt.PostedAt,
		}); err != nil {
			logging.FromContext(ctx, e.logger).Warn("failed to write back channel post", "message_id", receipt.MessageID, "error", err)
			meta["writeback"] = "failed"
		}
	}
	return succeeded(meta)
}

func (e *ActionExecutor) createFollowup(ctx context.Context, p models.Persona, cycleID string, i int, a action.CreateFollowup) outcome {
	now := e.now().UTC()
	rec := &secondary.FollowupRecord{
		ID:               uuid.NewSHA1(followupNamespace, []byte(cycleID+"/"+strconv.Itoa(i))).String(),
		OwnerID:          p.ID,
		Title:            a.Title,
		Notes:            a.Notes,
		Status:           secondary.FollowupOpen,
		RelatedMessageID: a.RelatedMessageID,
		SourceCycleID:    cycleID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if a.DueAt != "" {
		due, err := action.ParseTime(a.DueAt)
		if err != nil {
			return failed("%v", err)
		}
		rec.DueAt = &due
	}

	if err := e.followups.Upsert(ctx, rec); err != nil {
		return failed("create followup: %v", err)
	}
	return succeeded(map[string]string{"followup_id": rec.ID})
}

func (e *ActionExecutor) ownedFollowup(ctx context.Context, p models.Persona, id string) (*secondary.FollowupRecord, *outcome) {
	rec, err := e.followups.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, secondary.ErrNotFound) {
			out := failed("followup %s not found", id)
			return nil, &out
		}
		out := failed("load followup %s: %v", id, err)
		return nil, &out
	}
	if rec.OwnerID != p.ID {
		out := failed("followup %s is not owned by %s", id, p.ID)
		return nil, &out
	}
	if rec.Status == secondary.FollowupDone {
		out := failed("followup %s is already done", id)
		return nil, &out
	}
	return rec, nil
}

func (e *ActionExecutor) completeFollowup(ctx context.Context, p models.Persona, a action.CompleteFollowup) outcome {
	rec, fail := e.ownedFollowup(ctx, p, a.FollowupID)
	if fail != nil {
		return *fail
	}

	now := e.now().UTC()
	rec.Status = secondary.FollowupDone
	rec.CompletionNote = a.Note
	rec.CompletedAt = &now
	rec.DeferredUntil = nil
	rec.UpdatedAt = now
	if err := e.followups.Upsert(ctx, rec); err != nil {
		return failed("complete followup: %v", err)
	}
	return succeeded(map[string]string{"followup_id": rec.ID})
}

func (e *ActionExecutor) deferFollowup(ctx context.Context, p models.Persona, a action.DeferFollowup) outcome {
	until, err := action.ParseTime(a.Until)
	if err != nil {
		return failed("%v", err)
	}
	rec, fail := e.ownedFollowup(ctx, p, a.FollowupID)
	if fail != nil {
		return *fail
	}

	rec.Status = secondary.FollowupDeferred
	rec.DeferredUntil = &until
	if a.Reason != "" {
		if rec.Notes != "" {
			rec.Notes += "\n"
		}
		rec.Notes += "deferred: " + a.Reason
	}
	rec.UpdatedAt = e.now().UTC()
	if err := e.followups.Upsert(ctx, rec); err != nil {
		return failed("defer followup: %v", err)
	}
	return succeeded(map[string]string{"followup_id": rec.ID, "until": until.UTC().Format(time.RFC3339)})
}

func auditDetail(a action.Action, out outcome) string {
	if out.Error != "" {
		return out.Error
	}
	if id := out.Metadata["message_id"]; id != "" {
		return fmt.Sprintf("%s %s", a.Kind(), id)
	}
	if id := out.Metadata["followup_id"]; id != "" {
		return fmt.Sprintf("%s %s", a.Kind(), id)
	}
	return string(a.Kind())
}
