package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/roster/internal/core/budget"
	"github.com/example/roster/internal/core/memory"
	"github.com/example/roster/internal/logging"
	"github.com/example/roster/internal/ports/secondary"
)

// StateReconciler is the only writer of persona state.
type StateReconciler struct {
	repo         secondary.PersonaStateRepository
	dailyDefault int
	memoryLimit  int
	logger       *slog.Logger
	metrics      *Metrics
	now          func() time.Time
}

// NewStateReconciler creates a new state reconciler.
func NewStateReconciler(repo secondary.PersonaStateRepository, dailyDefault, memoryLimit int, logger *slog.Logger, metrics *Metrics) *StateReconciler {
	return &StateReconciler{
		repo:         repo,
		dailyDefault: dailyDefault,
		memoryLimit:  memoryLimit,
		logger:       logger.With("component", "state_reconciler"),
		metrics:      metrics,
		now:          time.Now,
	}
}

// Load returns the persona's state, or nil when none has been written yet.
func (r *StateReconciler) Load(ctx context.Context, personaID string) (*secondary.PersonaStateRecord, error) {
	rec, err := r.repo.Get(ctx, personaID)
	if errors.Is(err, secondary.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load persona state: %w", err)
	}
	return rec, nil
}

// Ensure returns persisted state for the persona with the daily rollover
// applied. Missing state is created active with the default budget.
func (r *StateReconciler) Ensure(ctx context.Context, personaID string, current *secondary.PersonaStateRecord, now time.Time) (*secondary.PersonaStateRecord, error) {
	for attempt := 0; attempt < 2; attempt++ {
		next, expected, changed := r.rolled(personaID, current, now)
		if !changed {
			return current, nil
		}

		err := r.repo.Upsert(ctx, next, expected)
		if err == nil {
			return next, nil
		}
		if !errors.Is(err, secondary.ErrVersionConflict) {
			return nil, fmt.Errorf("failed to write persona state: %w", err)
		}

		// Someone else wrote first; roll over their state instead.
		if current, err = r.Load(ctx, personaID); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("persona state %s: %w", personaID, secondary.ErrVersionConflict)
}

func (r *StateReconciler) rolled(personaID string, current *secondary.PersonaStateRecord, now time.Time) (*secondary.PersonaStateRecord, int, bool) {
	if current == nil {
		return &secondary.PersonaStateRecord{
			PersonaID:       personaID,
			BudgetRemaining: max(r.dailyDefault, 0),
			BudgetResetDate: budget.Today(now),
			Active:          true,
			UpdatedAt:       now,
		}, 0, true
	}

	b, reset := budget.RollOver(budget.State{
		Remaining: current.BudgetRemaining,
		ResetDate: current.BudgetResetDate,
	}, now, r.dailyDefault)
	if !reset {
		return current, current.Version, false
	}

	next := *current
	next.BudgetRemaining = b.Remaining
	next.BudgetResetDate = b.ResetDate
	next.UpdatedAt = now
	return &next, current.Version, true
}

// Reconcile debits cost, merges the memory update and stamps the cycle.
// Reconciling the same cycle twice is a no-op. A version conflict is a lost
// update: it is logged and counted, and the prior state is returned.
func (r *StateReconciler) Reconcile(ctx context.Context, prior *secondary.PersonaStateRecord, cycleID string, cost int, upd memory.Update, cycleAt time.Time) (*secondary.PersonaStateRecord, error) {
	if prior.LastCycleID == cycleID {
		return prior, nil
	}
	log := logging.FromContext(ctx, r.logger)
	now := r.now().UTC()

	next := *prior
	b := budget.Debit(budget.State{Remaining: prior.BudgetRemaining, ResetDate: prior.BudgetResetDate}, cost)
	next.BudgetRemaining = b.Remaining
	if !upd.Empty() {
		next.Memory = memory.Merge(prior.Memory, upd, r.memoryLimit)
		next.MemoryUpdatedAt = &now
	}
	stamp := cycleAt.UTC()
	next.LastCycleAt = &stamp
	next.LastCycleID = cycleID
	next.UpdatedAt = now

	err := r.repo.Upsert(ctx, &next, prior.Version)
	if errors.Is(err, secondary.ErrVersionConflict) {
		r.metrics.IncStateConflict()
		log.Warn("persona state changed concurrently, update lost", "cost", cost)
		return prior, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to write persona state: %w", err)
	}

	r.metrics.AddBudgetSpent(prior.BudgetRemaining - next.BudgetRemaining)
	return &next, nil
}

// SetActive flips the persona's active flag, creating state if needed.
func (r *StateReconciler) SetActive(ctx context.Context, personaID string, active bool) error {
	for attempt := 0; attempt < 2; attempt++ {
		current, err := r.Load(ctx, personaID)
		if err != nil {
			return err
		}

		now := r.now().UTC()
		next, expected, _ := r.rolled(personaID, current, now)
		if next == current {
			copied := *current
			next = &copied
		}
		next.Active = active
		next.UpdatedAt = now

		err = r.repo.Upsert(ctx, next, expected)
		if err == nil {
			r.logger.Info("persona state updated", "persona_id", personaID, "active", active)
			return nil
		}
		if !errors.Is(err, secondary.ErrVersionConflict) {
			return fmt.Errorf("failed to write persona state: %w", err)
		}
	}
	return fmt.Errorf("persona state %s: %w", personaID, secondary.ErrVersionConflict)
}
