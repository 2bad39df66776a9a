package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/example/roster/internal/core/decision"
	"github.com/example/roster/internal/logging"
	"github.com/example/roster/internal/models"
	"github.com/example/roster/internal/ports/secondary"
)

// Invocation is the outcome of one oracle round trip.
type Invocation struct {
	Decision         decision.Decision
	Latency          time.Duration
	PromptTokens     int
	CompletionTokens int
}

// DecisionInvoker renders the prompt blocks, calls the oracle once and
// parses its output. It never returns an error: any failure becomes the
// fallback decision.
type DecisionInvoker struct {
	oracle  secondary.Oracle
	opts    decision.InstructionOptions
	timeout time.Duration
	logger  *slog.Logger
	metrics *Metrics
	now     func() time.Time
}

// NewDecisionInvoker creates a new decision invoker. A zero timeout leaves
// the call bounded only by ctx.
func NewDecisionInvoker(oracle secondary.Oracle, opts decision.InstructionOptions, timeout time.Duration, logger *slog.Logger, metrics *Metrics) *DecisionInvoker {
	return &DecisionInvoker{
		oracle:  oracle,
		opts:    opts,
		timeout: timeout,
		logger:  logger.With("component", "decision_invoker"),
		metrics: metrics,
		now:     time.Now,
	}
}

// Invoke asks the oracle what p should do given s.
func (i *DecisionInvoker) Invoke(ctx context.Context, p models.Persona, s decision.Snapshot) Invocation {
	log := logging.FromContext(ctx, i.logger)

	inv := i.invoke(ctx, log, p, s)
	i.metrics.ObserveOracle(inv.Latency, inv.PromptTokens, inv.CompletionTokens, inv.Decision.Fallback)
	return inv
}

func (i *DecisionInvoker) invoke(ctx context.Context, log *slog.Logger, p models.Persona, s decision.Snapshot) Invocation {
	if i.oracle == nil {
		return Invocation{Decision: decision.Fallback("oracle not configured")}
	}

	opts := i.opts
	opts.Integrations = s.Integrations
	instructions, err := decision.RenderInstructions(p, opts)
	if err != nil {
		log.Error("failed to render instructions", "error", err)
		return Invocation{Decision: decision.Fallback("instructions could not be rendered")}
	}
	contextBlock, err := decision.RenderContext(s)
	if err != nil {
		log.Error("failed to render context", "error", err)
		return Invocation{Decision: decision.Fallback("context could not be rendered")}
	}

	callCtx := ctx
	if i.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}

	start := i.now()
	resp, err := i.oracle.Decide(callCtx, instructions, contextBlock)
	elapsed := i.now().Sub(start)
	if err != nil {
		reason := "oracle call failed"
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			reason = "oracle timed out"
		}
		log.Warn("oracle call failed, using fallback decision", "error", err, "latency", elapsed)
		return Invocation{Decision: decision.Fallback(reason), Latency: elapsed}
	}

	inv := Invocation{
		Latency:          resp.Latency,
		PromptTokens:     resp.PromptTokens,
		CompletionTokens: resp.CompletionTokens,
	}
	if inv.Latency == 0 {
		inv.Latency = elapsed
	}

	d, perr := decision.ParseOrFallback(resp.Raw)
	if perr != nil {
		log.Warn("oracle output unusable, using fallback decision", "error", perr)
	}
	inv.Decision = d

	log.Debug("oracle decided",
		"actions", len(d.Actions),
		"fallback", d.Fallback,
		"latency", inv.Latency,
		"prompt_tokens", inv.PromptTokens,
		"completion_tokens", inv.CompletionTokens)
	return inv
}
