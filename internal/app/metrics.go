package app

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "roster"

// Metrics exposes Prometheus collectors for cycle activity.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	cycles         *prometheus.CounterVec
	gateSkips      *prometheus.CounterVec
	actions        *prometheus.CounterVec
	oracleLatency  prometheus.Histogram
	oracleTokens   *prometheus.CounterVec
	fallbacks      prometheus.Counter
	budgetSpent    prometheus.Counter
	stateConflicts prometheus.Counter
	cyclesActive   prometheus.Gauge
}

// MustNewMetrics constructs Metrics on reg, reusing collectors that are
// already registered under the same name. Any other registration error panics.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	return &Metrics{
		cycles: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "cycle",
			Name:      "runs_total",
			Help:      "Cycle attempts by outcome.",
		}, []string{"outcome"})),
		gateSkips: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "cycle",
			Name:      "skips_total",
			Help:      "Cycles not run, by skip reason.",
		}, []string{"reason"})),
		actions: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "action",
			Name:      "results_total",
			Help:      "Executed actions by kind and result.",
		}, []string{"kind", "result"})),
		oracleLatency: register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "oracle",
			Name:      "latency_seconds",
			Help:      "Latency of oracle decision calls.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
		})),
		oracleTokens: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "oracle",
			Name:      "tokens_total",
			Help:      "Tokens reported by the oracle, by direction.",
		}, []string{"direction"})),
		fallbacks: register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "oracle",
			Name:      "fallbacks_total",
			Help:      "Decisions replaced by the fallback noop.",
		})),
		budgetSpent: register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "budget",
			Name:      "spent_total",
			Help:      "Budget units debited across all personas.",
		})),
		stateConflicts: register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "state",
			Name:      "version_conflicts_total",
			Help:      "Persona state writes lost to a concurrent update.",
		})),
		cyclesActive: register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "cycle",
			Name:      "active",
			Help:      "Cycles currently running in this process.",
		})),
	}
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// ObserveCycle counts a finished cycle attempt.
func (m *Metrics) ObserveCycle(outcome string) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(outcome).Inc()
}

// ObserveSkip counts a gated-out or budget-skipped cycle.
func (m *Metrics) ObserveSkip(reason string) {
	if m == nil {
		return
	}
	m.gateSkips.WithLabelValues(reason).Inc()
}

// ObserveAction counts one executed action. result is success, failed or blocked.
func (m *Metrics) ObserveAction(kind, result string) {
	if m == nil {
		return
	}
	m.actions.WithLabelValues(kind, result).Inc()
}

// ObserveOracle records one oracle call.
func (m *Metrics) ObserveOracle(latency time.Duration, promptTokens, completionTokens int, fallback bool) {
	if m == nil {
		return
	}
	m.oracleLatency.Observe(latency.Seconds())
	if promptTokens > 0 {
		m.oracleTokens.WithLabelValues("prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		m.oracleTokens.WithLabelValues("completion").Add(float64(completionTokens))
	}
	if fallback {
		m.fallbacks.Inc()
	}
}

// AddBudgetSpent adds debited budget units.
func (m *Metrics) AddBudgetSpent(cost int) {
	if m == nil || cost <= 0 {
		return
	}
	m.budgetSpent.Add(float64(cost))
}

// IncStateConflict counts a lost persona state update.
func (m *Metrics) IncStateConflict() {
	if m == nil {
		return
	}
	m.stateConflicts.Inc()
}

// IncActiveCycles marks a cycle as running.
func (m *Metrics) IncActiveCycles() {
	if m == nil {
		return
	}
	m.cyclesActive.Inc()
}

// DecActiveCycles marks a cycle as finished.
func (m *Metrics) DecActiveCycles() {
	if m == nil {
		return
	}
	m.cyclesActive.Dec()
}
