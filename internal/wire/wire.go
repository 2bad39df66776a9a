// Package wire provides dependency injection for the roster engine.
// It creates singleton services with lazy initialization.
package wire

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/example/roster/internal/adapters/dryrun"
	"github.com/example/roster/internal/adapters/oracle"
	"github.com/example/roster/internal/adapters/persistence"
	"github.com/example/roster/internal/adapters/sqlite"
	"github.com/example/roster/internal/app"
	"github.com/example/roster/internal/config"
	"github.com/example/roster/internal/core/decision"
	"github.com/example/roster/internal/core/gate"
	"github.com/example/roster/internal/db"
	"github.com/example/roster/internal/logging"
	"github.com/example/roster/internal/models"
	"github.com/example/roster/internal/ports/primary"
	"github.com/example/roster/internal/ports/secondary"
)

var (
	configPath string

	cfg               *config.Config
	logger            *slog.Logger
	tickService       primary.TickService
	cycleQueryService primary.CycleQueryService
	personaService    primary.PersonaService
	once              sync.Once
)

// SetConfigPath selects the config file. It must be called before the first
// service accessor; an empty path uses the default search locations.
func SetConfigPath(path string) {
	configPath = path
}

// Config returns the loaded configuration.
func Config() *config.Config {
	once.Do(initServices)
	return cfg
}

// Logger returns the process logger.
func Logger() *slog.Logger {
	once.Do(initServices)
	return logger
}

// TickService returns the singleton TickService instance.
func TickService() primary.TickService {
	once.Do(initServices)
	return tickService
}

// CycleQueryService returns the singleton CycleQueryService instance.
func CycleQueryService() primary.CycleQueryService {
	once.Do(initServices)
	return cycleQueryService
}

// PersonaService returns the singleton PersonaService instance.
func PersonaService() primary.PersonaService {
	once.Do(initServices)
	return personaService
}

// initServices initializes all services and their dependencies.
// This is called once via sync.Once.
func initServices() {
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		fatal("failed to load config", err)
	}

	logger = logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	slog.SetDefault(logger)

	db.SetPath(cfg.Database.Path)
	database, err := db.GetDB()
	if err != nil {
		fatal("failed to initialize database", err)
	}

	directory, err := persistence.LoadDirectory(cfg.PersonasFile)
	if err != nil {
		fatal("failed to load personas", err)
	}

	window, err := cfg.Window()
	if err != nil {
		fatal("invalid schedule", err)
	}

	metrics := app.MustNewMetrics(prometheus.DefaultRegisterer)

	// Repository adapters (secondary ports) over the shared connection
	stateRepo := sqlite.NewPersonaStateRepository(database)
	cycleRepo := sqlite.NewCycleRepository(database)
	resultRepo := sqlite.NewActionResultRepository(database)
	auditRepo := sqlite.NewAuditLogRepository(database)
	followupRepo := sqlite.NewFollowupRepository(database)
	checkpointRepo := sqlite.NewSyncCheckpointRepository(database)
	stepRepo := sqlite.NewStepRunRepository(database)
	conversations := sqlite.NewConversationStore(database)

	// Local transports
	mailbox := sqlite.NewMailbox(database)
	board, err := sqlite.NewChannelBoard(database)
	if err != nil {
		fatal("failed to create channel board", err)
	}
	if err := seedChannels(context.Background(), board, directory.List()); err != nil {
		fatal("failed to seed channels", err)
	}

	var sink secondary.OutboundSink = mailbox
	var channels secondary.ChannelSource = board
	if cfg.DryRun {
		sink = dryrun.NewSink(logger)
		channels = dryrun.NewChannels(board, logger)
		logger.Info("dry run enabled; outbound sends and posts are simulated")
	}

	integrations := decision.Integrations{
		Mail:       true,
		Channels:   true,
		Escalation: cfg.Guardrails.OverseerIdentity != "",
	}

	reconciler := app.NewStateReconciler(stateRepo, cfg.Budget.DailyDefault, cfg.Memory.Limit, logger, metrics)

	assembler := app.NewContextAssembler(app.AssemblerDeps{
		Inbound:       mailbox,
		Channels:      channels,
		Conversations: conversations,
		Followups:     followupRepo,
		Results:       resultRepo,
		Checkpoints:   checkpointRepo,
	}, app.AssemblerConfig{
		Window:          window,
		Integrations:    integrations,
		InboundLookback: cfg.Context.InboundLookback,
		InboundLimit:    cfg.Context.InboundLimit,
		ChannelLookback: cfg.Context.ChannelLookback,
		ChannelLimit:    cfg.Context.ChannelLimit,
		HistoryLimit:    cfg.Context.HistoryLimit,
	}, logger)

	invoker := app.NewDecisionInvoker(newOracle(), decision.InstructionOptions{
		AllowedSuffix:  cfg.Guardrails.AllowedEmailSuffix,
		OverseerHandle: cfg.Guardrails.OverseerHandle,
		Integrations:   integrations,
	}, cfg.Oracle.Timeout, logger, metrics)

	executor := app.NewActionExecutor(app.ExecutorDeps{
		Sink:          sink,
		Channels:      channels,
		Conversations: conversations,
		Followups:     followupRepo,
		Results:       resultRepo,
		Audit:         auditRepo,
		Steps:         app.NewDurableSteps(stepRepo, logger),
	}, app.ExecutorConfig{
		AllowedSuffix:    cfg.Guardrails.AllowedEmailSuffix,
		OverseerHandle:   cfg.Guardrails.OverseerHandle,
		OverseerIdentity: cfg.Guardrails.OverseerIdentity,
		Integrations:     integrations,
	}, logger, metrics)

	policy := cyclePolicy(window)

	orchestrator := app.NewCycleOrchestrator(app.OrchestratorDeps{
		Directory: directory,
		Cycles:    cycleRepo,
		State:     reconciler,
		Assembler: assembler,
		Invoker:   invoker,
		Executor:  executor,
	}, policy, logger, metrics)

	// Create services (primary ports implementation)
	tickService = app.NewTickService(orchestrator, directory, cfg.Dispatch.Concurrency, logger)
	cycleQueryService = app.NewCycleQueryService(cycleRepo, resultRepo)
	personaService = app.NewPersonaService(directory, stateRepo, reconciler, policy)
}

// newOracle returns the HTTP oracle, or nil when no API key is set. A nil
// oracle makes every cycle fall back to a no-op decision.
func newOracle() secondary.Oracle {
	key := os.Getenv(cfg.Oracle.APIKeyEnv)
	if key == "" {
		logger.Warn("oracle API key not set; cycles will fall back to noop", "env", cfg.Oracle.APIKeyEnv)
		return nil
	}
	return oracle.NewClient(oracle.Config{
		BaseURL:     cfg.Oracle.BaseURL,
		Model:       cfg.Oracle.Model,
		APIKey:      key,
		Timeout:     cfg.Oracle.Timeout,
		MaxTokens:   cfg.Oracle.MaxTokens,
		Temperature: cfg.Oracle.Temperature,
	}, nil, logger)
}

func cyclePolicy(window gate.ActiveWindow) app.CyclePolicy {
	intervals := make(map[string]time.Duration, len(cfg.Intervals))
	for class := range cfg.Intervals {
		intervals[strings.ToLower(class)] = cfg.MinInterval(class)
	}
	return app.CyclePolicy{
		Window:       window,
		MinIntervals: intervals,
		Disabled:     cfg.Disabled,
	}
}

// seedChannels creates every channel named in the roster with the personas
// that list it as members.
func seedChannels(ctx context.Context, board *sqlite.ChannelBoard, personas []models.Persona) error {
	members := make(map[string][]string)
	for _, p := range personas {
		for _, ch := range p.Channels {
			name := sqlite.ChannelName(ch)
			members[name] = append(members[name], p.Address)
		}
	}

	names := make([]string, 0, len(members))
	for name := range members {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if _, err := board.EnsureChannel(ctx, name, members[name]...); err != nil {
			return fmt.Errorf("channel %s: %w", name, err)
		}
	}
	return nil
}

func fatal(msg string, err error) {
	fmt.Fprintf(os.Stderr, "roster: %s: %v\n", msg, err)
	os.Exit(1)
}
