package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bot-dashboard/internal/bot"
	"bot-dashboard/internal/cache"
	"bot-dashboard/internal/config"
	"bot-dashboard/internal/configtree"
	"bot-dashboard/internal/db"
	"bot-dashboard/internal/domain"
	"bot-dashboard/internal/handler"
	"bot-dashboard/internal/job"
	"bot-dashboard/internal/logging"
	"bot-dashboard/internal/provider"
	"bot-dashboard/internal/repository"
	"bot-dashboard/internal/resolve"
	"bot-dashboard/internal/retry"
	"bot-dashboard/internal/service"
	"bot-dashboard/internal/stream"
	"bot-dashboard/internal/synchronizer"
	"bot-dashboard/internal/synth"
	"bot-dashboard/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	_ "bot-dashboard/docs"
)

const serviceName = "bot-dashboard"

var (
	loadEnvFunc      = godotenv.Load
	loadConfigFunc   = config.Load
	newLoggerFunc    = logging.New
	initPostgresFunc = db.InitPostgres
	initRedisFunc    = cache.InitRedis
	initTracerFunc   = tracing.InitTracer
	loadDefaultsFunc = configtree.LoadDefaults
	newFetcherFunc   = func(tracer trace.Tracer, cfg *config.Config) provider.Fetcher {
		return provider.NewClient(tracer, cfg.BackendURL, cfg.BackendTimeout(), cfg.BackendRateLimitPerSec)
	}
	startTelegramBotFunc   = bot.StartTelegramBot
	newRouterFunc          = gin.Default
	setupSignalNotify      = signal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
)

// @title           Bot Dashboard API
// @version         1.0
// @description     Backend-for-frontend of the trading bot dashboard: synchronized bot state, configuration form and live stream.

// @host      localhost:8080
// @BasePath  /
func main() {
	_ = loadEnvFunc()

	cfg := loadConfigFunc()

	logger, err := newLoggerFunc(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
	logger.Info("server exiting")
}

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
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.Error("error shutting down tracer provider", zap.Error(err))
		}
	}()

	// Postgres backs the config history; without it the rest still runs.
	var history service.HistoryRepository
	if err := initPostgresFunc(ctx, cfg.DatabaseURL, logger); err != nil {
		logger.Warn("postgres unavailable, config history disabled", zap.Error(err))
	} else if db.Pool != nil {
		repo := repository.NewConfigHistoryRepository(db.Pool, tracer)
		if err := repo.RunMigrations(ctx); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		history = repo
		defer db.Close()
	}

	var mirror *cache.StateMirror
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

	hub := stream.NewHub(logger)
	go hub.Run(ctx)
	syncer.AddListener(hub)

	var dashboardMirror service.StateMirror
	if mirror != nil {
		syncer.AddListener(mirror)
		dashboardMirror = mirror
	}

	dashboard := service.NewDashboardService(tracer, logger, syncer, dashboardMirror, service.DashboardOptions{
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

	forms := service.NewConfigFormService(
		tracer,
		logger,
		syncer,
		backend,
		history,
		defaults,
		configtree.ParsePath(cfg.RecommendationField),
		cfg.PollInterval(domain.ResourceConfig),
	)
	defer forms.CloseAll()

	alerter, err := startTelegramBotFunc(cfg.TelegramBotToken, cfg.TelegramAlertChatID, dashboard, logger)
	if err != nil {
		logger.Warn("telegram bot unavailable", zap.Error(err))
	} else if alerter != nil {
		syncer.AddListener(alerter)
	}

	h := handler.New(tracer, dashboard, forms, hub)

	r := newRouterFunc()
	r.Use(otelgin.Middleware(serviceName))

	h.RegisterRoutes(r)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: r,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := startHTTPServerFunc(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)

	stopped := make(chan struct{})
	go func() {
		waitForSignalFunc(quit)
		close(stopped)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("listen: %w", err)
	case <-stopped:
	}
	logger.Info("shutting down server")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}
