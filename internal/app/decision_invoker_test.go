package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/example/roster/internal/core/action"
	"github.com/example/roster/internal/core/decision"
	"github.com/example/roster/internal/logging"
)

func TestInvoke_OutputHandling(t *testing.T) {
	tests := []struct {
		name         string
		raw          string
		err          error
		wantFallback bool
		wantKind     action.Kind
	}{
		{"valid fenced decision", "```json\n{\"actions\":[{\"type\":\"channel_post\",\"channel\":\"#eng\",\"text\":\"hi\"}]}\n```", nil, false, action.KindChannelPost},
		{"not json", "I would rather not.", nil, true, action.KindNoop},
		{"missing actions", `{"reasoning": "hmm"}`, nil, true, action.KindNoop},
		{"wrong shape", `{"actions": [{"type": "launch_rockets"}]}`, nil, true, action.KindNoop},
		{"transport error", "", errors.New("connection refused"), true, action.KindNoop},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oracle := &mockOracle{raw: tt.raw, err: tt.err}
			inv := NewDecisionInvoker(oracle, decision.InstructionOptions{AllowedSuffix: "@corp.example"}, time.Second, logging.Discard(), nil)

			got := inv.Invoke(context.Background(), dana, decision.Snapshot{PersonaID: "dana", Now: testNow})

			if got.Decision.Fallback != tt.wantFallback {
				t.Errorf("Fallback = %v, want %v", got.Decision.Fallback, tt.wantFallback)
			}
			if len(got.Decision.Actions) != 1 || got.Decision.Actions[0].Kind() != tt.wantKind {
				t.Errorf("Actions = %+v", got.Decision.Actions)
			}
			if oracle.calls != 1 {
				t.Errorf("oracle called %d times, want exactly once", oracle.calls)
			}
		})
	}
}

func TestInvoke_PassesContextAndNumbers(t *testing.T) {
	oracle := &mockOracle{raw: `{"actions": []}`}
	inv := NewDecisionInvoker(oracle, decision.InstructionOptions{}, 0, logging.Discard(), nil)

	got := inv.Invoke(context.Background(), dana, decision.Snapshot{
		PersonaID:       "dana",
		Now:             testNow,
		DayName:         "Tuesday",
		BudgetRemaining: 42,
	})

	if got.PromptTokens != 900 || got.CompletionTokens != 80 || got.Latency != 120*time.Millisecond {
		t.Errorf("numbers = %d/%d/%v", got.PromptTokens, got.CompletionTokens, got.Latency)
	}
	if !strings.Contains(oracle.lastContext, "Budget remaining today: 42") {
		t.Errorf("context block missing budget:\n%s", oracle.lastContext)
	}
}

func TestInvoke_NoOracle(t *testing.T) {
	inv := NewDecisionInvoker(nil, decision.InstructionOptions{}, time.Second, logging.Discard(), nil)
	got := inv.Invoke(context.Background(), dana, decision.Snapshot{})
	if !got.Decision.Fallback {
		t.Error("expected fallback without an oracle")
	}
}

func TestInvoke_RecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := MustNewMetrics(reg)
	inv := NewDecisionInvoker(&mockOracle{raw: "garbage"}, decision.InstructionOptions{}, time.Second, logging.Discard(), metrics)

	inv.Invoke(context.Background(), dana, decision.Snapshot{})

	if got := testutil.ToFloat64(metrics.fallbacks); got != 1 {
		t.Errorf("fallbacks = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.oracleTokens.WithLabelValues("prompt")); got != 900 {
		t.Errorf("prompt tokens = %v, want 900", got)
	}
}
