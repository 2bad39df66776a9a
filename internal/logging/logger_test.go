package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/example/roster/internal/ctxutil"
)

func TestNew_JSONRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "warn", Format: "json", Output: &buf})

	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, `"msg":"shown"`) || !strings.Contains(out, `"k":"v"`) {
		t.Errorf("expected JSON warn line, got: %s", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestFromContext_AddsIDs(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Format: "text", Output: &buf})

	ctx := ctxutil.WithCycleID(ctxutil.WithPersonaID(context.Background(), "dana"), "cyc-9")
	FromContext(ctx, base).Info("cycle started")

	out := buf.String()
	if !strings.Contains(out, "persona_id=dana") || !strings.Contains(out, "cycle_id=cyc-9") {
		t.Errorf("expected persona and cycle ids, got: %s", out)
	}
}

func TestMaskSecret(t *testing.T) {
	if got := MaskSecret("short"); got != "***" {
		t.Errorf("MaskSecret(short) = %q, want ***", got)
	}
	if got := MaskSecret("sk-abcdefghijklmnop"); got != "sk-a...mnop" {
		t.Errorf("MaskSecret = %q, want sk-a...mnop", got)
	}
}
