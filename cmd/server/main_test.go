package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"bot-dashboard/internal/bot"
	"bot-dashboard/internal/config"
	"bot-dashboard/internal/domain"
	"bot-dashboard/internal/provider"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type stubFetcher struct {
	gets atomic.Int32
}

func (f *stubFetcher) Get(ctx context.Context, resource string) ([]byte, error) {
	f.gets.Add(1)
	return nil, &provider.NotFoundError{Resource: resource}
}

func (f *stubFetcher) Post(ctx context.Context, resource string, body any) ([]byte, error) {
	return []byte("{}"), nil
}

func testConfig() *config.Config {
	return &config.Config{
		BackendURL:       "http://backend.invalid/api",
		Symbols:          []string{"BTCUSDT"},
		TickerPollSecs:   60,
		AnalysisPollSecs: 60,
		StatusPollSecs:   60,
		ConfigPollSecs:   60,
		RetryDelayMs:     1,
		HTTPPort:         "0",
		LogLevel:         "info",
		Warnings:         []string{"SYMBOLS empty, using defaults"},
	}
}

func stubServerDeps(t *testing.T, fetcher *stubFetcher) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	origLoadEnv := loadEnvFunc
	origLoadConfig := loadConfigFunc
	origNewLogger := newLoggerFunc
	origInitPostgres := initPostgresFunc
	origInitRedis := initRedisFunc
	origInitTracer := initTracerFunc
	origLoadDefaults := loadDefaultsFunc
	origNewFetcher := newFetcherFunc
	origStartTelegram := startTelegramBotFunc
	origNewRouter := newRouterFunc
	origSetupSignal := setupSignalNotify
	origWait := waitForSignalFunc
	origStartHTTP := startHTTPServerFunc
	origShutdownHTTP := shutdownHTTPServerFunc

	loadEnvFunc = func(...string) error { return nil }
	loadConfigFunc = testConfig
	newLoggerFunc = func(string) (*zap.Logger, error) { return zap.NewNop(), nil }
	initPostgresFunc = func(context.Context, string, *zap.Logger) error { return nil }
	initRedisFunc = func(context.Context, string, *zap.Logger) error { return errors.New("redis down") }
	initTracerFunc = func(ctx context.Context, name string) (*sdktrace.TracerProvider, trace.Tracer, error) {
		tp := sdktrace.NewTracerProvider()
		return tp, tp.Tracer("test"), nil
	}
	newFetcherFunc = func(trace.Tracer, *config.Config) provider.Fetcher { return fetcher }
	startTelegramBotFunc = func(string, int64, bot.StateReader, *zap.Logger) (*bot.Alerter, error) { return nil, nil }
	newRouterFunc = func(...gin.OptionFunc) *gin.Engine { return gin.New() }
	setupSignalNotify = func(c chan<- os.Signal, sig ...os.Signal) {}
	waitForSignalFunc = func(<-chan os.Signal) {}
	startHTTPServerFunc = func(*http.Server) error { return http.ErrServerClosed }
	shutdownHTTPServerFunc = func(*http.Server, context.Context) error { return nil }

	t.Cleanup(func() {
		loadEnvFunc = origLoadEnv
		loadConfigFunc = origLoadConfig
		newLoggerFunc = origNewLogger
		initPostgresFunc = origInitPostgres
		initRedisFunc = origInitRedis
		initTracerFunc = origInitTracer
		loadDefaultsFunc = origLoadDefaults
		newFetcherFunc = origNewFetcher
		startTelegramBotFunc = origStartTelegram
		newRouterFunc = origNewRouter
		setupSignalNotify = origSetupSignal
		waitForSignalFunc = origWait
		startHTTPServerFunc = origStartHTTP
		shutdownHTTPServerFunc = origShutdownHTTP
	})
}

func TestMainBootstrap(t *testing.T) {
	stubServerDeps(t, &stubFetcher{})

	done := make(chan struct{})
	go func() {
		main()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("main did not exit")
	}
}

func TestRunPollsBackendUntilSignal(t *testing.T) {
	fetcher := &stubFetcher{}
	stubServerDeps(t, fetcher)

	release := make(chan struct{})
	waitForSignalFunc = func(<-chan os.Signal) { <-release }

	readers := make(chan bot.StateReader, 1)
	startTelegramBotFunc = func(token string, chat int64, d bot.StateReader, logger *zap.Logger) (*bot.Alerter, error) {
		readers <- d
		return nil, nil
	}

	errc := make(chan error, 1)
	go func() { errc <- run(testConfig(), zap.NewNop()) }()

	var dashboard bot.StateReader
	select {
	case dashboard = <-readers:
	case <-time.After(2 * time.Second):
		t.Fatal("dashboard was not handed to the telegram bot")
	}
	assert.Eventually(t, func() bool { return fetcher.gets.Load() >= 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"BTCUSDT"}, dashboard.Symbols())
	assert.Eventually(t, func() bool {
		for _, s := range dashboard.States(context.Background()) {
			if s.Key == domain.NewKey(domain.ResourceTicker, "BTCUSDT") {
				return s.Origin == domain.OriginSynthetic
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)

	close(release)
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return")
	}
}

func TestRunFailsOnBadDefaults(t *testing.T) {
	stubServerDeps(t, &stubFetcher{})
	loadDefaultsFunc = func(string) (domain.ConfigTree, error) { return nil, errors.New("bad yaml") }

	err := run(testConfig(), zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load default config")
}

func TestRunReportsListenError(t *testing.T) {
	stubServerDeps(t, &stubFetcher{})
	startHTTPServerFunc = func(*http.Server) error { return errors.New("address in use") }
	waitForSignalFunc = func(quit <-chan os.Signal) { <-quit }

	err := run(testConfig(), zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "address in use")
}
