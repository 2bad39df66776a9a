package app

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/example/roster/internal/core/cycle"
	"github.com/example/roster/internal/ports/primary"
	"github.com/example/roster/internal/ports/secondary"
)

// cycleRunner runs a single persona cycle.
type cycleRunner interface {
	RunCycle(ctx context.Context, req primary.CycleRequest) (*primary.CycleResult, error)
}

// TickServiceImpl implements the TickService interface.
type TickServiceImpl struct {
	runner      cycleRunner
	directory   secondary.PersonaDirectory
	concurrency int
	logger      *slog.Logger
}

// NewTickService creates a new TickService with injected dependencies.
func NewTickService(runner cycleRunner, directory secondary.PersonaDirectory, concurrency int, logger *slog.Logger) *TickServiceImpl {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &TickServiceImpl{
		runner:      runner,
		directory:   directory,
		concurrency: concurrency,
		logger:      logger.With("component", "dispatcher"),
	}
}

// RunCycle runs one cycle for a persona.
func (s *TickServiceImpl) RunCycle(ctx context.Context, req primary.CycleRequest) (*primary.CycleResult, error) {
	return s.runner.RunCycle(ctx, req)
}

// TickAll issues one cycle request per configured persona with at most
// concurrency cycles in flight. Results keep directory order.
func (s *TickServiceImpl) TickAll(ctx context.Context, req primary.TickAllRequest) (*primary.TickAllResult, error) {
	personas := s.directory.List()
	results := make([]*primary.CycleResult, len(personas))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, p := range personas {
		g.Go(func() error {
			res, err := s.runner.RunCycle(ctx, primary.CycleRequest{PersonaID: p.ID, Force: req.Force})
			if res == nil {
				res = &primary.CycleResult{PersonaID: p.ID, Outcome: string(cycle.OutcomeFailed)}
			}
			if err != nil {
				res.Outcome = string(cycle.OutcomeFailed)
				res.Error = err.Error()
				s.logger.Warn("persona cycle failed", "persona_id", p.ID, "error", err)
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	out := &primary.TickAllResult{Results: results}
	for _, r := range results {
		if r.Outcome == string(cycle.OutcomeFailed) {
			out.Failed++
		}
	}
	s.logger.Info("tick-all finished", "personas", len(personas), "failed", out.Failed)
	return out, ctx.Err()
}

var _ primary.TickService = (*TickServiceImpl)(nil)
