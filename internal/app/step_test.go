package app

import (
	"context"
	"errors"
	"testing"

	"github.com/example/roster/internal/ctxutil"
	"github.com/example/roster/internal/logging"
)

func TestDurableSteps_RunsOnce(t *testing.T) {
	repo := newMockStepRunRepository()
	steps := NewDurableSteps(repo, logging.Discard())
	ctx := ctxutil.WithCycleID(context.Background(), "c1")

	calls := 0
	fn := func(ctx context.Context) (string, error) {
		calls++
		return `{"success":true}`, nil
	}

	for i := 0; i < 3; i++ {
		got, err := steps.Run(ctx, "c1/0", fn)
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if got != `{"success":true}` {
			t.Errorf("result = %q", got)
		}
	}

	if calls != 1 {
		t.Errorf("fn called %d times, want 1", calls)
	}
	if repo.runs["c1/0"].CycleID != "c1" {
		t.Errorf("CycleID = %q, want c1 from context", repo.runs["c1/0"].CycleID)
	}
}

func TestDurableSteps_FailedStepIsRetried(t *testing.T) {
	repo := newMockStepRunRepository()
	steps := NewDurableSteps(repo, logging.Discard())

	_, err := steps.Run(context.Background(), "k", func(ctx context.Context) (string, error) {
		return "", errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if _, ok := repo.runs["k"]; ok {
		t.Fatal("failed step must not be stored")
	}

	got, err := steps.Run(context.Background(), "k", func(ctx context.Context) (string, error) {
		return "ok", nil
	})
	if err != nil || got != "ok" {
		t.Errorf("retry = %q, %v", got, err)
	}
}

func TestDurableSteps_LookupError(t *testing.T) {
	repo := newMockStepRunRepository()
	repo.getErr = errors.New("database is locked")
	steps := NewDurableSteps(repo, logging.Discard())

	called := false
	_, err := steps.Run(context.Background(), "k", func(ctx context.Context) (string, error) {
		called = true
		return "ok", nil
	})
	if err == nil {
		t.Fatal("expected lookup error")
	}
	if called {
		t.Error("step must not run when its dedup state is unknown")
	}
}

func TestInlineSteps(t *testing.T) {
	calls := 0
	for i := 0; i < 2; i++ {
		_, _ = InlineSteps{}.Run(context.Background(), "k", func(ctx context.Context) (string, error) {
			calls++
			return "", nil
		})
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}
