package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/roster/internal/ctxutil"
	"github.com/example/roster/internal/ports/secondary"
)

// StepFunc is one unit of externally visible work. It returns a JSON
// encoded result that is stored against the step key.
type StepFunc func(ctx context.Context) (string, error)

// StepRunner executes StepFuncs under an idempotency key. A runner backed
// by durable storage must not re-run a key whose result is already stored.
type StepRunner interface {
	Run(ctx context.Context, key string, fn StepFunc) (string, error)
}

// InlineSteps runs every step directly with no deduplication.
type InlineSteps struct{}

// Run calls fn.
func (InlineSteps) Run(ctx context.Context, _ string, fn StepFunc) (string, error) {
	return fn(ctx)
}

// DurableSteps stores each completed step result so that a redelivered
// cycle replays the stored result instead of dispatching twice.
type DurableSteps struct {
	repo   secondary.StepRunRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewDurableSteps creates a step runner over repo.
func NewDurableSteps(repo secondary.StepRunRepository, logger *slog.Logger) *DurableSteps {
	return &DurableSteps{repo: repo, logger: logger, now: time.Now}
}

// Run returns the stored result for key, or runs fn and stores its result.
// A failed fn is not stored so the step can be retried.
func (s *DurableSteps) Run(ctx context.Context, key string, fn StepFunc) (string, error) {
	run, err := s.repo.Get(ctx, key)
	if err == nil {
		s.logger.DebugContext(ctx, "replaying completed step", "step", key)
		return run.Result, nil
	}
	if !errors.Is(err, secondary.ErrNotFound) {
		return "", fmt.Errorf("failed to look up step %s: %w", key, err)
	}

	result, err := fn(ctx)
	if err != nil {
		return "", err
	}

	if err := s.repo.Save(ctx, &secondary.StepRun{
		Key:         key,
		CycleID:     ctxutil.CycleFromContext(ctx),
		Result:      result,
		CompletedAt: s.now().UTC(),
	}); err != nil {
		return "", fmt.Errorf("failed to save step %s: %w", key, err)
	}
	return result, nil
}

var (
	_ StepRunner = InlineSteps{}
	_ StepRunner = (*DurableSteps)(nil)
)
