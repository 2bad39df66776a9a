package decision

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/roster/internal/core/action"
	"github.com/example/roster/internal/models"
)

func TestRenderInstructions_OmitsUnwiredActions(t *testing.T) {
	p := models.Persona{
		ID:         "dana",
		Name:       "Dana Ortiz",
		Address:    "dana@corp.example",
		Role:       "VP Engineering",
		Priorities: []string{"ship Q3 roadmap"},
		Channels:   []string{"#eng"},
	}

	out, err := RenderInstructions(p, InstructionOptions{
		AllowedSuffix:  "@corp.example",
		OverseerHandle: "@overseer",
		Integrations:   Integrations{Mail: true},
	})
	require.NoError(t, err)

	assert.Contains(t, out, "Dana Ortiz, VP Engineering")
	assert.Contains(t, out, "- ship Q3 roadmap")
	assert.Contains(t, out, "- "+string(action.KindSendMessage)+"\n")
	assert.NotContains(t, out, "- "+string(action.KindChannelPost)+"\n")
	assert.NotContains(t, out, "- "+string(action.KindEscalate)+"\n")
	assert.Contains(t, out, "- "+string(action.KindNoop))
}

func TestRenderContext(t *testing.T) {
	now := time.Date(2026, 3, 10, 14, 5, 0, 0, time.UTC)
	due := now.Add(48 * time.Hour)

	s := Snapshot{
		PersonaID:       "dana",
		Now:             now,
		Local:           now,
		DayName:         "Tuesday",
		InActiveWindow:  true,
		BudgetRemaining: 42,
		Memory:          []string{"Board meeting Thursday"},
		Inbound: []models.Message{
			{ID: "m1", Sender: "bob@corp.example", Subject: "Numbers?", Body: "Need them by EOD", SentAt: now, Unread: true},
		},
		Channels: []ChannelDigest{
			{Channel: "#eng", Messages: []models.ChannelMessage{{ID: "c1", Author: "erin@corp.example", Text: "build is green", PostedAt: now}}},
		},
		Sent: []models.Message{
			{To: []string{"bob@corp.example", "carol@corp.example"}, Subject: "Re: plan", SentAt: now},
		},
		Followups: []FollowupItem{{ID: "f1", Title: "Chase numbers", DueAt: &due}},
		History: []HistoryEntry{
			{At: now, Kind: action.KindSendMessage, Summary: "to bob", Success: false, Error: "SECURITY: blocked"},
		},
	}

	out, err := RenderContext(s)
	require.NoError(t, err)

	for _, want := range []string{
		"(Tuesday)",
		"Budget remaining today: 42",
		"- Board meeting Thursday",
		"[m1] (unread)",
		"## Channel #eng (1)",
		"to bob@corp.example, carol@corp.example: Re: plan",
		"[f1] Chase numbers (due 2026-03-12)",
		"FAILED (SECURITY: blocked)",
	} {
		assert.True(t, strings.Contains(out, want), "context missing %q:\n%s", want, out)
	}
	assert.NotContains(t, out, "outside working hours")
}
