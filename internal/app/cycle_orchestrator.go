package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/roster/internal/core/cycle"
	"github.com/example/roster/internal/core/gate"
	"github.com/example/roster/internal/core/memory"
	"github.com/example/roster/internal/ctxutil"
	"github.com/example/roster/internal/logging"
	"github.com/example/roster/internal/models"
	"github.com/example/roster/internal/ports/primary"
	"github.com/example/roster/internal/ports/secondary"
)

// CyclePolicy is the gating configuration shared by every persona.
type CyclePolicy struct {
	Window gate.ActiveWindow
	// MinIntervals maps persona class to minimum time between cycles.
	// The "default" entry applies to classes without one.
	MinIntervals map[string]time.Duration
	Disabled     []string
}

// MinInterval returns the minimum interval for a persona class.
func (p CyclePolicy) MinInterval(class string) time.Duration {
	if d, ok := p.MinIntervals[strings.ToLower(class)]; ok {
		return d
	}
	return p.MinIntervals["default"]
}

// IsDisabled reports whether the persona id is on the disabled list.
func (p CyclePolicy) IsDisabled(id string) bool {
	for _, d := range p.Disabled {
		if strings.EqualFold(d, id) {
			return true
		}
	}
	return false
}

// CycleOrchestrator runs one cycle end to end: gate, record, budget check,
// context, decision, actions, reconcile, finalize.
type CycleOrchestrator struct {
	directory secondary.PersonaDirectory
	cycles    secondary.CycleRepository
	state     *StateReconciler
	assembler *ContextAssembler
	invoker   *DecisionInvoker
	executor  *ActionExecutor
	policy    CyclePolicy
	logger    *slog.Logger
	metrics   *Metrics
	now       func() time.Time
	newID     func() string
}

// OrchestratorDeps holds the orchestrator's collaborators.
type OrchestratorDeps struct {
	Directory secondary.PersonaDirectory
	Cycles    secondary.CycleRepository
	State     *StateReconciler
	Assembler *ContextAssembler
	Invoker   *DecisionInvoker
	Executor  *ActionExecutor
}

// NewCycleOrchestrator creates a new cycle orchestrator.
func NewCycleOrchestrator(deps OrchestratorDeps, policy CyclePolicy, logger *slog.Logger, metrics *Metrics) *CycleOrchestrator {
	return &CycleOrchestrator{
		directory: deps.Directory,
		cycles:    deps.Cycles,
		state:     deps.State,
		assembler: deps.Assembler,
		invoker:   deps.Invoker,
		executor:  deps.Executor,
		policy:    policy,
		logger:    logger.With("component", "cycle_orchestrator"),
		metrics:   metrics,
		now:       time.Now,
		newID:     func() string { return uuid.NewString() },
	}
}

// RunCycle runs one gated cycle for req.PersonaID.
func (o *CycleOrchestrator) RunCycle(ctx context.Context, req primary.CycleRequest) (*primary.CycleResult, error) {
	p, ok := o.directory.Get(req.PersonaID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPersona, req.PersonaID)
	}
	ctx = ctxutil.WithPersonaID(ctx, p.ID)
	now := o.now().UTC()

	st, err := o.state.Load(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	gc := gate.CycleContext{
		PersonaID:   p.ID,
		Force:       req.Force,
		Now:         now,
		Disabled:    o.policy.IsDisabled(p.ID),
		Window:      o.policy.Window,
		MinInterval: o.policy.MinInterval(p.Class),
		HasState:    st != nil,
	}
	if st != nil {
		gc.LastCycleAt = st.LastCycleAt
		gc.Active = st.Active
	}
	if g := gate.CanStartCycle(gc); !g.Allowed {
		o.metrics.ObserveSkip(string(g.Reason))
		o.metrics.ObserveCycle(string(cycle.OutcomeGatedOut))
		logging.FromContext(ctx, o.logger).Debug("cycle gated out", "reason", g.Reason, "detail", g.Detail)
		return &primary.CycleResult{
			PersonaID:  p.ID,
			Outcome:    string(cycle.OutcomeGatedOut),
			SkipReason: string(g.Reason),
			Detail:     g.Detail,
		}, nil
	}

	rec := &secondary.CycleRecord{
		ID:        o.newID(),
		PersonaID: p.ID,
		Status:    string(cycle.InitialStatus()),
		Force:     req.Force,
		StartedAt: now,
	}
	ctx = ctxutil.WithCycleID(ctx, rec.ID)
	if err := o.cycles.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to create cycle record: %w", err)
	}

	o.metrics.IncActiveCycles()
	defer o.metrics.DecActiveCycles()

	return o.run(ctx, p, st, rec, now)
}

// run carries a cycle from a created record to a terminal status.
func (o *CycleOrchestrator) run(ctx context.Context, p models.Persona, st *secondary.PersonaStateRecord, rec *secondary.CycleRecord, now time.Time) (result *primary.CycleResult, err error) {
	log := logging.FromContext(ctx, o.logger)
	result = &primary.CycleResult{PersonaID: p.ID, CycleID: rec.ID}
	var report *ExecutionReport

	defer func() {
		if r := recover(); r != nil {
			result, err = o.fail(ctx, log, rec, result, st, report, fmt.Errorf("panic: %v", r))
		}
	}()

	st, err = o.state.Ensure(ctx, p.ID, st, now)
	if err != nil {
		return o.fail(ctx, log, rec, result, nil, nil, err)
	}
	result.BudgetRemaining = st.BudgetRemaining

	if g := gate.CanSpend(gate.BudgetContext{Force: rec.Force, BudgetRemaining: st.BudgetRemaining}); !g.Allowed {
		rec.SkipReason = string(g.Reason)
		o.metrics.ObserveSkip(string(g.Reason))
		log.Info("cycle skipped", "reason", g.Reason)
		if err := o.finalize(ctx, rec, cycle.StatusSkipped); err != nil {
			return o.fail(ctx, log, rec, result, nil, nil, err)
		}
		result.Outcome = string(cycle.OutcomeSkippedBudget)
		result.SkipReason = rec.SkipReason
		result.Detail = g.Detail
		return result, nil
	}

	asm := o.assembler.Assemble(ctx, p, st, now)
	snap := asm.Snapshot
	rec.InboundCount = len(snap.Inbound)
	rec.ChannelMessageCount = snap.ChannelMessageCount()
	rec.FollowupCount = len(snap.Followups)

	inv := o.invoker.Invoke(ctx, p, snap)
	rec.OracleLatencyMs = inv.Latency.Milliseconds()
	rec.PromptTokens = inv.PromptTokens
	rec.CompletionTokens = inv.CompletionTokens
	rec.Fallback = inv.Decision.Fallback
	rec.ActionsPlanned = len(inv.Decision.Actions)
	result.ActionsPlanned = rec.ActionsPlanned
	result.Fallback = rec.Fallback

	if err := o.cycles.Update(ctx, rec); err != nil {
		return o.fail(ctx, log, rec, result, st, nil, fmt.Errorf("failed to update cycle record: %w", err))
	}

	report, err = o.executor.Execute(ctx, p, rec.ID, inv.Decision.Actions)
	o.applyReport(rec, result, report)
	if err != nil {
		return o.fail(ctx, log, rec, result, st, report, err)
	}

	next, err := o.state.Reconcile(ctx, st, rec.ID, report.Cost, inv.Decision.Memory, now)
	if err != nil {
		return o.fail(ctx, log, rec, result, nil, nil, err)
	}
	result.BudgetRemaining = next.BudgetRemaining
	o.assembler.Commit(ctx, asm, now)

	if err := o.finalize(ctx, rec, cycle.StatusCompleted); err != nil {
		return o.fail(ctx, log, rec, result, nil, nil, err)
	}
	result.Outcome = string(cycle.OutcomeCompleted)

	log.Info("cycle completed",
		"actions_planned", rec.ActionsPlanned,
		"actions_succeeded", rec.ActionsSucceeded,
		"cost", rec.CostSpent,
		"budget_remaining", result.BudgetRemaining,
		"fallback", rec.Fallback)
	return result, nil
}

func (o *CycleOrchestrator) applyReport(rec *secondary.CycleRecord, result *primary.CycleResult, report *ExecutionReport) {
	if report == nil {
		return
	}
	rec.ActionsExecuted = report.Executed
	rec.ActionsSucceeded = report.Succeeded
	rec.CostSpent = report.Cost
	result.ActionsSucceeded = report.Succeeded
	result.CostSpent = report.Cost
}

// fail finalizes rec as failed. When st is set, the cost of already
// recorded successful actions is still debited so spent budget is never
// lost; the memory update is dropped.
func (o *CycleOrchestrator) fail(ctx context.Context, log *slog.Logger, rec *secondary.CycleRecord, result *primary.CycleResult, st *secondary.PersonaStateRecord, report *ExecutionReport, cause error) (*primary.CycleResult, error) {
	if st != nil && report != nil && report.Cost > 0 {
		if next, err := o.state.Reconcile(ctx, st, rec.ID, report.Cost, memory.Update{}, rec.StartedAt); err != nil {
			log.Error("failed to debit budget for failed cycle", "cost", report.Cost, "error", err)
		} else {
			result.BudgetRemaining = next.BudgetRemaining
		}
	}

	rec.Error = cause.Error()
	if rec.Status == string(cycle.StatusRunning) {
		if err := o.finalize(ctx, rec, cycle.StatusFailed); err != nil {
			log.Error("failed to finalize failed cycle", "error", err)
		}
	}

	result.Outcome = string(cycle.OutcomeFailed)
	result.Error = rec.Error
	log.Error("cycle failed", "error", cause)
	return result, &CycleError{CycleID: rec.ID, PersonaID: rec.PersonaID, Err: cause}
}

func (o *CycleOrchestrator) finalize(ctx context.Context, rec *secondary.CycleRecord, next cycle.Status) error {
	tr, err := cycle.Finalize(cycle.Status(rec.Status), next, o.now().UTC())
	if err != nil {
		return err
	}
	prev := rec.Status
	rec.Status = string(tr.NewStatus)
	rec.CompletedAt = &tr.CompletedAt
	if err := o.cycles.Update(ctx, rec); err != nil {
		rec.Status = prev
		rec.CompletedAt = nil
		return fmt.Errorf("failed to finalize cycle record: %w", err)
	}
	o.metrics.ObserveCycle(string(cycle.OutcomeFor(tr.NewStatus)))
	return nil
}
