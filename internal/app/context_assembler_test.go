package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/roster/internal/core/decision"
	"github.com/example/roster/internal/logging"
	"github.com/example/roster/internal/models"
	"github.com/example/roster/internal/ports/secondary"
)

type assemblerFixture struct {
	inbound       *mockInbound
	channels      *mockChannels
	conversations *mockConversations
	followups     *mockFollowupRepository
	results       *mockActionResultRepository
	checkpoints   *mockSyncCheckpointRepository
	assembler     *ContextAssembler
}

func newAssemblerFixture(integrations decision.Integrations) *assemblerFixture {
	f := &assemblerFixture{
		inbound:       &mockInbound{},
		channels:      newMockChannels("#eng", "#random"),
		conversations: newMockConversations(),
		followups:     newMockFollowupRepository(),
		results:       newMockActionResultRepository(),
		checkpoints:   newMockSyncCheckpointRepository(),
	}
	f.assembler = NewContextAssembler(AssemblerDeps{
		Inbound:       f.inbound,
		Channels:      f.channels,
		Conversations: f.conversations,
		Followups:     f.followups,
		Results:       f.results,
		Checkpoints:   f.checkpoints,
	}, AssemblerConfig{
		Window:          testWindow(),
		Integrations:    integrations,
		InboundLookback: 48 * time.Hour,
		InboundLimit:    20,
		ChannelLookback: 24 * time.Hour,
		ChannelLimit:    10,
		HistoryLimit:    10,
	}, logging.Discard())
	return f
}

func TestAssemble_UnreadTracking(t *testing.T) {
	f := newAssemblerFixture(allIntegrations())
	f.inbound.messages = []models.Message{
		{ID: "m1", Sender: "bob@corp.example", SentAt: testNow.Add(-3 * time.Hour)},
		{ID: "m2", Sender: "bob@corp.example", SentAt: testNow.Add(-time.Hour)},
	}
	f.checkpoints.checkpoints[secondary.ScopeInbox+"/dana"] = &secondary.SyncCheckpoint{
		Scope: secondary.ScopeInbox, Key: "dana", LastSeenAt: testNow.Add(-2 * time.Hour),
	}

	ctx := context.Background()
	asm := f.assembler.Assemble(ctx, dana, nil, testNow)
	s := asm.Snapshot

	if len(s.Inbound) != 2 {
		t.Fatalf("got %d inbound, want 2", len(s.Inbound))
	}
	if s.Inbound[0].Unread || !s.Inbound[1].Unread {
		t.Errorf("unread = %v/%v, want false/true", s.Inbound[0].Unread, s.Inbound[1].Unread)
	}
	cp := f.checkpoints.checkpoints[secondary.ScopeInbox+"/dana"]
	if !cp.LastSeenAt.Equal(testNow.Add(-2 * time.Hour)) {
		t.Errorf("checkpoint moved to %v before commit", cp.LastSeenAt)
	}

	uncommitted := f.assembler.Assemble(ctx, dana, nil, testNow).Snapshot
	if !uncommitted.Inbound[1].Unread {
		t.Error("message m2 should stay unread until the assembly is committed")
	}

	f.assembler.Commit(ctx, asm, testNow)
	cp = f.checkpoints.checkpoints[secondary.ScopeInbox+"/dana"]
	if !cp.LastSeenAt.Equal(testNow.Add(-time.Hour)) {
		t.Errorf("checkpoint = %v, want newest message time", cp.LastSeenAt)
	}

	again := f.assembler.Assemble(ctx, dana, nil, testNow).Snapshot
	for _, m := range again.Inbound {
		if m.Unread {
			t.Errorf("message %s unread on second pass", m.ID)
		}
	}
}

func TestAssemble_ChannelsLimitedToAllowList(t *testing.T) {
	f := newAssemblerFixture(allIntegrations())
	f.channels.messages["#eng"] = []models.ChannelMessage{{ID: "c1", ChannelID: "ch-eng", Channel: "#eng", Text: "build green", PostedAt: testNow}}
	f.channels.messages["#random"] = []models.ChannelMessage{{ID: "c2", ChannelID: "ch-random", Channel: "#random", Text: "lunch?", PostedAt: testNow}}

	s := f.assembler.Assemble(context.Background(), dana, nil, testNow).Snapshot

	if len(s.Channels) != 1 || s.Channels[0].Channel != "#eng" {
		t.Fatalf("Channels = %+v, want only #eng", s.Channels)
	}
	if !s.Channels[0].Messages[0].Unread {
		t.Error("first sighting should be unread")
	}
	if len(f.conversations.cached) != 1 || f.conversations.cached[0].ID != "c1" {
		t.Errorf("cached = %+v, want c1 written through", f.conversations.cached)
	}
	if s.ChannelMessageCount() != 1 {
		t.Errorf("ChannelMessageCount = %d, want 1", s.ChannelMessageCount())
	}
}

func TestAssemble_CacheFailureIsAbsorbed(t *testing.T) {
	f := newAssemblerFixture(allIntegrations())
	f.conversations.cacheErr = errors.New("disk full")
	f.channels.messages["#eng"] = []models.ChannelMessage{{ID: "c1", Channel: "#eng", PostedAt: testNow}}

	s := f.assembler.Assemble(context.Background(), dana, nil, testNow).Snapshot
	if len(s.Channels) != 1 {
		t.Errorf("Channels = %+v, want digest despite cache failure", s.Channels)
	}
}

func TestAssemble_SkipsUnwiredIntegrations(t *testing.T) {
	f := newAssemblerFixture(decision.Integrations{})
	f.inbound.messages = []models.Message{{ID: "m1", SentAt: testNow}}
	f.channels.messages["#eng"] = []models.ChannelMessage{{ID: "c1", PostedAt: testNow}}

	s := f.assembler.Assemble(context.Background(), dana, nil, testNow).Snapshot
	if len(s.Inbound) != 0 || len(s.Channels) != 0 {
		t.Errorf("snapshot read unwired sources: %d inbound %d channels", len(s.Inbound), len(s.Channels))
	}
	if f.inbound.calls != 0 {
		t.Error("inbound source was called without mail integration")
	}
}

func TestAssemble_EnvironmentAndHistory(t *testing.T) {
	f := newAssemblerFixture(allIntegrations())
	f.conversations.sent["dana"] = []models.Message{{ID: "s1", To: []string{"bob@corp.example"}, Subject: "Re: plan"}}
	due := testNow.Add(24 * time.Hour)
	f.followups.followups["f1"] = &secondary.FollowupRecord{ID: "f1", OwnerID: "dana", Title: "Chase", Status: secondary.FollowupOpen, DueAt: &due}
	f.followups.followups["f2"] = &secondary.FollowupRecord{ID: "f2", OwnerID: "erin", Title: "Other", Status: secondary.FollowupOpen}
	f.results.results["r1"] = &secondary.ActionResultRecord{
		ID: "r1", PersonaID: "dana", Kind: "send_message", Success: false, Error: "SECURITY: blocked",
		Payload: `{"type":"send_message","to":["eve@evil.example"],"subject":"hi","body":"x"}`,
	}
	state := &secondary.PersonaStateRecord{PersonaID: "dana", BudgetRemaining: 42, Memory: []string{"Board meeting Thursday"}}

	s := f.assembler.Assemble(context.Background(), dana, state, testNow).Snapshot

	if s.DayName != "Tuesday" || !s.InActiveWindow {
		t.Errorf("environment = %s/%v", s.DayName, s.InActiveWindow)
	}
	if s.BudgetRemaining != 42 || len(s.Memory) != 1 {
		t.Errorf("state facts = %d/%v", s.BudgetRemaining, s.Memory)
	}
	if len(s.Sent) != 1 || len(s.Followups) != 1 || s.Followups[0].ID != "f1" {
		t.Errorf("sent=%d followups=%+v", len(s.Sent), s.Followups)
	}
	if len(s.History) != 1 || s.History[0].Summary != "to eve@evil.example: hi" || s.History[0].Success {
		t.Errorf("History = %+v", s.History)
	}
	if !s.Integrations.Mail || !s.Integrations.Escalation {
		t.Errorf("Integrations = %+v", s.Integrations)
	}
}

func TestSummarizePayload(t *testing.T) {
	tests := []struct {
		kind, payload, want string
	}{
		{"channel_post", `{"type":"channel_post","channel":"#eng","text":"ship it"}`, "in #eng: ship it"},
		{"noop", `{"type":"noop","reason":"parse_failure"}`, "noop: parse_failure"},
		{"escalate", `{"type":"escalate","text":"help"}`, "escalated: help"},
		{"send_message", `not json`, "send_message"},
	}
	for _, tt := range tests {
		if got := summarizePayload(tt.kind, tt.payload); got != tt.want {
			t.Errorf("summarizePayload(%s) = %q, want %q", tt.payload, got, tt.want)
		}
	}
}
