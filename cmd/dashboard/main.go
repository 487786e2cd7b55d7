package main

import (
	"context"
	"fmt"
	"os"

	"bot-dashboard/internal/cache"
	"bot-dashboard/internal/config"
	"bot-dashboard/internal/configtree"
	"bot-dashboard/internal/domain"
	"bot-dashboard/internal/job"
	"bot-dashboard/internal/logging"
	"bot-dashboard/internal/provider"
	"bot-dashboard/internal/resolve"
	"bot-dashboard/internal/retry"
	"bot-dashboard/internal/service"
	"bot-dashboard/internal/synchronizer"
	"bot-dashboard/internal/synth"
	"bot-dashboard/internal/tui"
	"bot-dashboard/pkg/tracing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const serviceName = "bot-dashboard-tui"

var (
	loadEnvFunc      = godotenv.Load
	loadConfigFunc   = config.Load
	newLoggerFunc    = logging.NewFile
	initRedisFunc    = cache.InitRedis
	initTracerFunc   = tracing.InitTracer
	loadDefaultsFunc = configtree.LoadDefaults
	newFetcherFunc   = func(tracer trace.Tracer, cfg *config.Config) provider.Fetcher {
		return provider.NewClient(tracer, cfg.BackendURL, cfg.BackendTimeout(), cfg.BackendRateLimitPerSec)
	}
	runProgramFunc = func(m tea.Model) error {
		_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
		return err
	}
)

func main() {
	_ = loadEnvFunc()
	cfg := loadConfigFunc()

	logger, err := newLoggerFunc(cfg.LogLevel, cfg.TUILogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Error("dashboard failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "dashboard: %v\n", err)
		os.Exit(1)
	}
}

// run polls the backend in-process and renders the states until the user
// quits.
func run(cfg *config.Config, logger *zap.Logger) error {
	for _, w := range cfg.Warnings {
		logger.Warn("config", zap.String("warning", w))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, tracer, err := initTracerFunc(ctx, serviceName)
	if err != nil {
		return fmt.Errorf("initialize tracer: %w", err)
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	// The mirror only serves keys this process does not poll itself.
	var mirror service.StateMirror
	if err := initRedisFunc(ctx, cfg.RedisURL, logger); err != nil {
		logger.Warn("redis unavailable, state mirror disabled", zap.Error(err))
	} else if cache.Client != nil {
		mirror = cache.NewStateMirror(cache.Client, cfg.StateCacheTTL(), logger)
	}

	defaults, err := loadDefaultsFunc(cfg.DefaultConfigPath)
	if err != nil {
		return fmt.Errorf("load default config: %w", err)
	}

	backend := provider.NewBackend(newFetcherFunc(tracer, cfg))
	controller := retry.NewController(tracer, logger, cfg.RetryDelay())
	syncer := synchronizer.New(ctx, logger, controller, job.NewPoller(logger))
	defer syncer.Close()

	dashboard := service.NewDashboardService(tracer, logger, syncer, mirror, service.DashboardOptions{
		Symbols:  cfg.Symbols,
		Policies: resolve.MarketPolicies(backend),
		Interval: cfg.PollInterval,
		Synthesize: func(r domain.Resource) synth.Func {
			return synth.For(r, defaults)
		},
	})
	if err := dashboard.Start(); err != nil {
		return fmt.Errorf("start dashboard: %w", err)
	}
	defer dashboard.Close()

	return runProgramFunc(tui.NewModel(dashboard))
}
