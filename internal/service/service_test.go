package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"bot-dashboard/internal/domain"
	"bot-dashboard/internal/job"
	"bot-dashboard/internal/provider"
	"bot-dashboard/internal/retry"
	"bot-dashboard/internal/synchronizer"

	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

var testTracer = noop.NewTracerProvider().Tracer("test")

func newSynchronizer(t *testing.T) *synchronizer.Synchronizer {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	s := synchronizer.New(ctx, zap.NewNop(), retry.NewController(testTracer, nil, time.Millisecond), job.NewPoller(nil))
	t.Cleanup(s.Close)
	return s
}

// fakeBackend is an in-memory bot backend. A saved config becomes the
// persisted config.
type fakeBackend struct {
	mu        sync.Mutex
	status    *domain.BotStatus
	config    domain.ConfigTree
	saved     []domain.ConfigTree
	saveErr   error
	tickerErr error
}

func (f *fakeBackend) FetchStatus(ctx context.Context, symbol string) (*domain.BotStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status == nil {
		return nil, &provider.NotFoundError{Resource: provider.StatusResource(symbol)}
	}
	return f.status, nil
}

func (f *fakeBackend) FetchConfig(ctx context.Context, symbol string) (domain.ConfigTree, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.config == nil {
		return nil, &provider.NotFoundError{Resource: provider.ConfigResource(symbol)}
	}
	return f.config, nil
}

func (f *fakeBackend) SaveConfig(ctx context.Context, symbol string, tree domain.ConfigTree) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, tree)
	f.config = tree
	return nil
}

func (f *fakeBackend) FetchTicker(ctx context.Context, symbol string) (*domain.Ticker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tickerErr != nil {
		return nil, f.tickerErr
	}
	return &domain.Ticker{Symbol: symbol, Last: "100.00"}, nil
}

func (f *fakeBackend) FetchAnalysis(ctx context.Context, symbol string) (*domain.MarketAnalysis, error) {
	return &domain.MarketAnalysis{Symbol: symbol, Trend: "sideways"}, nil
}

var errBackendDown = errors.New("backend down")
