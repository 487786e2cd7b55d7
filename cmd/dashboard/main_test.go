package main

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"bot-dashboard/internal/config"
	"bot-dashboard/internal/domain"
	"bot-dashboard/internal/provider"
	"bot-dashboard/internal/tui"

	tea "github.com/charmbracelet/bubbletea"
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

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		Symbols:          []string{"ETHUSDT"},
		TickerPollSecs:   60,
		AnalysisPollSecs: 60,
		StatusPollSecs:   60,
		RetryDelayMs:     1,
		LogLevel:         "info",
		TUILogPath:       filepath.Join(t.TempDir(), "dashboard.log"),
	}
}

func stubDashboardDeps(t *testing.T, fetcher *stubFetcher) {
	t.Helper()

	origLoadEnv := loadEnvFunc
	origLoadConfig := loadConfigFunc
	origInitRedis := initRedisFunc
	origInitTracer := initTracerFunc
	origLoadDefaults := loadDefaultsFunc
	origNewFetcher := newFetcherFunc
	origRunProgram := runProgramFunc

	loadEnvFunc = func(...string) error { return nil }
	loadConfigFunc = func() *config.Config { return testConfig(t) }
	initRedisFunc = func(context.Context, string, *zap.Logger) error { return errors.New("redis down") }
	initTracerFunc = func(ctx context.Context, name string) (*sdktrace.TracerProvider, trace.Tracer, error) {
		tp := sdktrace.NewTracerProvider()
		return tp, tp.Tracer("test"), nil
	}
	newFetcherFunc = func(trace.Tracer, *config.Config) provider.Fetcher { return fetcher }
	runProgramFunc = func(tea.Model) error { return nil }

	t.Cleanup(func() {
		loadEnvFunc = origLoadEnv
		loadConfigFunc = origLoadConfig
		initRedisFunc = origInitRedis
		initTracerFunc = origInitTracer
		loadDefaultsFunc = origLoadDefaults
		newFetcherFunc = origNewFetcher
		runProgramFunc = origRunProgram
	})
}

func TestMainBootstrap(t *testing.T) {
	stubDashboardDeps(t, &stubFetcher{})

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

func TestRunRendersPolledStates(t *testing.T) {
	fetcher := &stubFetcher{}
	stubDashboardDeps(t, fetcher)

	var model tea.Model
	runProgramFunc = func(m tea.Model) error {
		model = m
		assert.Eventually(t, func() bool { return fetcher.gets.Load() >= 3 }, time.Second, 5*time.Millisecond)
		return nil
	}

	require.NoError(t, run(testConfig(t), zap.NewNop()))
	assert.IsType(t, tui.Model{}, model)
}

func TestRunPropagatesProgramError(t *testing.T) {
	stubDashboardDeps(t, &stubFetcher{})
	runProgramFunc = func(tea.Model) error { return errors.New("no tty") }

	assert.EqualError(t, run(testConfig(t), zap.NewNop()), "no tty")
}

func TestRunFailsOnBadDefaults(t *testing.T) {
	stubDashboardDeps(t, &stubFetcher{})
	loadDefaultsFunc = func(string) (domain.ConfigTree, error) { return nil, errors.New("bad yaml") }

	err := run(testConfig(t), zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load default config")
}
