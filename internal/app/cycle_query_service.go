package app

import (
	"context"
	"fmt"
	"time"

	"github.com/example/roster/internal/ports/primary"
	"github.com/example/roster/internal/ports/secondary"
)

// CycleQueryServiceImpl implements the CycleQueryService interface.
type CycleQueryServiceImpl struct {
	cycles  secondary.CycleRepository
	results secondary.ActionResultRepository
}

// NewCycleQueryService creates a new CycleQueryService with injected dependencies.
func NewCycleQueryService(cycles secondary.CycleRepository, results secondary.ActionResultRepository) *CycleQueryServiceImpl {
	return &CycleQueryServiceImpl{cycles: cycles, results: results}
}

// ListCycles lists cycles matching filters, newest first.
func (s *CycleQueryServiceImpl) ListCycles(ctx context.Context, filters primary.CycleFilters) ([]*primary.Cycle, error) {
	records, err := s.cycles.List(ctx, secondary.CycleFilters{
		PersonaID: filters.PersonaID,
		Status:    filters.Status,
		Limit:     filters.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list cycles: %w", err)
	}

	cycles := make([]*primary.Cycle, 0, len(records))
	for _, r := range records {
		cycles = append(cycles, recordToCycle(r))
	}
	return cycles, nil
}

// GetCycle retrieves a cycle with its action results.
func (s *CycleQueryServiceImpl) GetCycle(ctx context.Context, cycleID string) (*primary.CycleDetail, error) {
	record, err := s.cycles.GetByID(ctx, cycleID)
	if err != nil {
		return nil, err
	}

	results, err := s.results.ListByCycle(ctx, cycleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list action results: %w", err)
	}

	detail := &primary.CycleDetail{Cycle: recordToCycle(record)}
	for _, r := range results {
		detail.Actions = append(detail.Actions, &primary.ActionOutcome{
			Index:    r.Index,
			Kind:     r.Kind,
			Payload:  r.Payload,
			Success:  r.Success,
			Security: r.Security,
			Error:    r.Error,
			Cost:     r.Cost,
			Metadata: r.Metadata,
		})
	}
	return detail, nil
}

func recordToCycle(r *secondary.CycleRecord) *primary.Cycle {
	return &primary.Cycle{
		ID:                  r.ID,
		PersonaID:           r.PersonaID,
		Status:              r.Status,
		Force:               r.Force,
		StartedAt:           r.StartedAt,
		CompletedAt:         r.CompletedAt,
		InboundCount:        r.InboundCount,
		ChannelMessageCount: r.ChannelMessageCount,
		FollowupCount:       r.FollowupCount,
		ActionsPlanned:      r.ActionsPlanned,
		ActionsExecuted:     r.ActionsExecuted,
		ActionsSucceeded:    r.ActionsSucceeded,
		CostSpent:           r.CostSpent,
		OracleLatency:       time.Duration(r.OracleLatencyMs) * time.Millisecond,
		PromptTokens:        r.PromptTokens,
		CompletionTokens:    r.CompletionTokens,
		Fallback:            r.Fallback,
		SkipReason:          r.SkipReason,
		Error:               r.Error,
	}
}

var _ primary.CycleQueryService = (*CycleQueryServiceImpl)(nil)
