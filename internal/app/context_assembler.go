package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/roster/internal/core/action"
	"github.com/example/roster/internal/core/decision"
	"github.com/example/roster/internal/core/gate"
	"github.com/example/roster/internal/logging"
	"github.com/example/roster/internal/models"
	"github.com/example/roster/internal/ports/secondary"
)

// AssemblerConfig bounds what goes into a decision snapshot.
type AssemblerConfig struct {
	Window          gate.ActiveWindow
	Integrations    decision.Integrations
	InboundLookback time.Duration
	InboundLimit    int
	ChannelLookback time.Duration
	ChannelLimit    int
	HistoryLimit    int
	FollowupLimit   int
}

// ContextAssembler builds the bounded decision snapshot for one cycle.
// Every source degrades to empty on failure; Assemble never fails.
type ContextAssembler struct {
	inbound       secondary.InboundMessageSource
	channels      secondary.ChannelSource
	conversations secondary.ConversationStore
	followups     secondary.FollowupRepository
	results       secondary.ActionResultRepository
	checkpoints   secondary.SyncCheckpointRepository
	cfg           AssemblerConfig
	logger        *slog.Logger
}

// AssemblerDeps holds the sources read by the assembler. Inbound and
// Channels may be nil when the integration is not configured.
type AssemblerDeps struct {
	Inbound       secondary.InboundMessageSource
	Channels      secondary.ChannelSource
	Conversations secondary.ConversationStore
	Followups     secondary.FollowupRepository
	Results       secondary.ActionResultRepository
	Checkpoints   secondary.SyncCheckpointRepository
}

// NewContextAssembler creates a new context assembler.
func NewContextAssembler(deps AssemblerDeps, cfg AssemblerConfig, logger *slog.Logger) *ContextAssembler {
	if cfg.FollowupLimit <= 0 {
		cfg.FollowupLimit = 20
	}
	return &ContextAssembler{
		inbound:       deps.Inbound,
		channels:      deps.Channels,
		conversations: deps.Conversations,
		followups:     deps.Followups,
		results:       deps.Results,
		checkpoints:   deps.Checkpoints,
		cfg:           cfg,
		logger:        logger.With("component", "context_assembler"),
	}
}

// Assembly is a snapshot plus the sync checkpoints it moves forward once the
// cycle that read it commits.
type Assembly struct {
	Snapshot decision.Snapshot
	marks    []syncMark
}

type syncMark struct {
	scope  string
	key    string
	newest time.Time
}

// Assemble gathers the snapshot for persona p at now. Checkpoints are not
// touched; call Commit after the cycle's state is reconciled.
func (a *ContextAssembler) Assemble(ctx context.Context, p models.Persona, state *secondary.PersonaStateRecord, now time.Time) *Assembly {
	log := logging.FromContext(ctx, a.logger)
	asm := &Assembly{}
	local := a.cfg.Window.Local(now)

	s := decision.Snapshot{
		PersonaID:      p.ID,
		Now:            now,
		Local:          local,
		DayName:        local.Weekday().String(),
		InActiveWindow: a.cfg.Window.Contains(now),
		Integrations:   a.cfg.Integrations,
	}
	if state != nil {
		s.Memory = append([]string(nil), state.Memory...)
		s.BudgetRemaining = state.BudgetRemaining
	}

	s.Inbound = a.inboundMessages(ctx, log, asm, p, now)
	s.Channels = a.channelDigests(ctx, log, asm, p, now)
	s.Sent = a.sentMessages(ctx, log, p, now)
	s.Followups = a.openFollowups(ctx, log, p, now)
	s.History = a.history(ctx, log, p)

	asm.Snapshot = s
	return asm
}

// Commit advances the sync checkpoints read by asm, so the messages it
// marked unread are seen. Failures are logged; a later cycle sees them
// unread again.
func (a *ContextAssembler) Commit(ctx context.Context, asm *Assembly, now time.Time) {
	if asm == nil || a.checkpoints == nil {
		return
	}
	log := logging.FromContext(ctx, a.logger)
	for _, m := range asm.marks {
		if err := a.checkpoints.Upsert(ctx, &secondary.SyncCheckpoint{
			Scope:      m.scope,
			Key:        m.key,
			LastSeenAt: m.newest,
			UpdatedAt:  now,
		}); err != nil {
			log.Warn("failed to advance sync checkpoint", "scope", m.scope, "key", m.key, "error", err)
		}
	}
}

func (a *ContextAssembler) inboundMessages(ctx context.Context, log *slog.Logger, asm *Assembly, p models.Persona, now time.Time) []models.Message {
	if a.inbound == nil || !a.cfg.Integrations.Mail {
		return nil
	}

	msgs, err := a.inbound.ListRecent(ctx, p.Address, now.Add(-a.cfg.InboundLookback), a.cfg.InboundLimit)
	if err != nil {
		log.Warn("inbound source degraded", "error", err)
		return nil
	}

	seen := a.lastSeen(ctx, log, secondary.ScopeInbox, p.ID)
	var newest time.Time
	for i := range msgs {
		msgs[i].Unread = seen.IsZero() || msgs[i].SentAt.After(seen)
		if msgs[i].SentAt.After(newest) {
			newest = msgs[i].SentAt
		}
	}
	asm.mark(secondary.ScopeInbox, p.ID, newest)
	return msgs
}

func (a *ContextAssembler) channelDigests(ctx context.Context, log *slog.Logger, asm *Assembly, p models.Persona, now time.Time) []decision.ChannelDigest {
	if a.channels == nil || !a.cfg.Integrations.Channels || len(p.Channels) == 0 {
		return nil
	}

	handles, err := a.channels.ListChannelsFor(ctx, p.Address)
	if err != nil {
		log.Warn("channel source degraded", "error", err)
		return nil
	}

	allowed := make(map[string]bool, len(p.Channels))
	for _, name := range p.Channels {
		allowed[channelKey(name)] = true
	}

	var digests []decision.ChannelDigest
	for _, h := range handles {
		if h.Direct || !allowed[channelKey(h.Name)] {
			continue
		}

		msgs, err := a.channels.ListRecent(ctx, h, now.Add(-a.cfg.ChannelLookback), a.cfg.ChannelLimit)
		if err != nil {
			log.Warn("channel fetch degraded", "channel", h.Name, "error", err)
			continue
		}
		if len(msgs) == 0 {
			continue
		}

		key := p.ID + ":" + h.ID
		seen := a.lastSeen(ctx, log, secondary.ScopeChannel, key)
		var newest time.Time
		for i := range msgs {
			msgs[i].Unread = seen.IsZero() || msgs[i].PostedAt.After(seen)
			if msgs[i].PostedAt.After(newest) {
				newest = msgs[i].PostedAt
			}
		}
		asm.mark(secondary.ScopeChannel, key, newest)

		if a.conversations != nil {
			if err := a.conversations.CacheChannelMessages(ctx, msgs); err != nil {
				log.Warn("failed to cache channel messages", "channel", h.Name, "error", err)
			}
		}

		digests = append(digests, decision.ChannelDigest{Channel: h.Name, Messages: msgs})
	}
	return digests
}

func (a *ContextAssembler) sentMessages(ctx context.Context, log *slog.Logger, p models.Persona, now time.Time) []models.Message {
	if a.conversations == nil {
		return nil
	}
	sent, err := a.conversations.ListSent(ctx, p.ID, now.Add(-a.cfg.InboundLookback), a.cfg.HistoryLimit)
	if err != nil {
		log.Warn("conversation store degraded", "error", err)
		return nil
	}
	return sent
}

func (a *ContextAssembler) openFollowups(ctx context.Context, log *slog.Logger, p models.Persona, now time.Time) []decision.FollowupItem {
	if a.followups == nil {
		return nil
	}
	records, err := a.followups.ListOpen(ctx, p.ID, now, a.cfg.FollowupLimit)
	if err != nil {
		log.Warn("followup store degraded", "error", err)
		return nil
	}

	items := make([]decision.FollowupItem, 0, len(records))
	for _, r := range records {
		items = append(items, decision.FollowupItem{
			ID:     r.ID,
			Title:  r.Title,
			Notes:  r.Notes,
			DueAt:  r.DueAt,
			Status: r.Status,
		})
	}
	return items
}

func (a *ContextAssembler) history(ctx context.Context, log *slog.Logger, p models.Persona) []decision.HistoryEntry {
	if a.results == nil || a.cfg.HistoryLimit <= 0 {
		return nil
	}
	records, err := a.results.ListRecentByPersona(ctx, p.ID, a.cfg.HistoryLimit)
	if err != nil {
		log.Warn("action history degraded", "error", err)
		return nil
	}

	entries := make([]decision.HistoryEntry, 0, len(records))
	for _, r := range records {
		entries = append(entries, decision.HistoryEntry{
			At:      r.CreatedAt,
			Kind:    action.Kind(r.Kind),
			Summary: summarizePayload(r.Kind, r.Payload),
			Success: r.Success,
			Error:   r.Error,
		})
	}
	return entries
}

func (a *ContextAssembler) lastSeen(ctx context.Context, log *slog.Logger, scope, key string) time.Time {
	if a.checkpoints == nil {
		return time.Time{}
	}
	cp, err := a.checkpoints.Get(ctx, scope, key)
	if err != nil {
		if !errors.Is(err, secondary.ErrNotFound) {
			log.Warn("failed to read sync checkpoint", "scope", scope, "key", key, "error", err)
		}
		return time.Time{}
	}
	return cp.LastSeenAt
}

func (asm *Assembly) mark(scope, key string, newest time.Time) {
	if newest.IsZero() {
		return
	}
	asm.marks = append(asm.marks, syncMark{scope: scope, key: key, newest: newest})
}

// summarizePayload renders a one-line description of a stored action.
func summarizePayload(kind, payload string) string {
	a, err := action.Decode([]byte(payload))
	if err != nil {
		return kind
	}

	switch v := a.(type) {
	case action.SendMessage:
		return fmt.Sprintf("to %s: %s", strings.Join(v.Recipients(), ", "), v.Subject)
	case action.ChannelPost:
		return fmt.Sprintf("in %s: %s", v.Channel, truncate(v.Text, 80))
	case action.CreateFollowup:
		return "opened " + v.Title
	case action.CompleteFollowup:
		return "completed " + v.FollowupID
	case action.DeferFollowup:
		return fmt.Sprintf("deferred %s until %s", v.FollowupID, v.Until)
	case action.Escalate:
		return "escalated: " + truncate(v.Text, 80)
	case action.Noop:
		if v.Reason != "" {
			return "noop: " + v.Reason
		}
		return "noop"
	default:
		return kind
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func channelKey(name string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "#"))
}
