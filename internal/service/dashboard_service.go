package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"bot-dashboard/internal/domain"
	"bot-dashboard/internal/resolve"
	"bot-dashboard/internal/synchronizer"
	"bot-dashboard/internal/synth"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrUnknownKey is returned for keys the dashboard neither polls nor finds
// in the mirror.
var ErrUnknownKey = errors.New("unknown state key")

// StateMirror serves last known states written by any dashboard instance.
type StateMirror interface {
	Load(ctx context.Context, key domain.Key) (domain.ResolvedState, bool, error)
}

// KeyedState is a state together with the key it belongs to.
type KeyedState struct {
	Key domain.Key `json:"key"`
	domain.ResolvedState
}

// DashboardOptions choose what the dashboard polls and how.
type DashboardOptions struct {
	Symbols    []string
	Resources  []domain.Resource
	Policies   map[domain.Resource]resolve.Policy
	Interval   func(domain.Resource) time.Duration
	Synthesize func(domain.Resource) synth.Func
}

// DashboardService keeps one subscription per symbol and dashboard resource.
type DashboardService struct {
	tracer trace.Tracer
	logger *zap.Logger
	sync   *synchronizer.Synchronizer
	mirror StateMirror
	opts   DashboardOptions

	mu      sync.RWMutex
	handles map[domain.Key]*synchronizer.Handle
}

func NewDashboardService(
	tracer trace.Tracer,
	logger *zap.Logger,
	syncer *synchronizer.Synchronizer,
	mirror StateMirror,
	opts DashboardOptions,
) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(opts.Resources) == 0 {
		opts.Resources = domain.DashboardResources
	}
	return &DashboardService{
		tracer:  tracer,
		logger:  logger,
		sync:    syncer,
		mirror:  mirror,
		opts:    opts,
		handles: make(map[domain.Key]*synchronizer.Handle),
	}
}

// Start subscribes every symbol to every resource. Resources without a
// policy are skipped.
func (s *DashboardService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, symbol := range s.opts.Symbols {
		for _, resource := range s.opts.Resources {
			policy, ok := s.opts.Policies[resource]
			if !ok {
				s.logger.Warn("no policy for resource, skipping", zap.String("resource", string(resource)))
				continue
			}
			key := domain.NewKey(resource, symbol)
			if _, exists := s.handles[key]; exists {
				continue
			}

			opts := synchronizer.Options{Policy: policy, Interval: s.interval(resource)}
			if s.opts.Synthesize != nil {
				opts.Synthesize = s.opts.Synthesize(resource)
			}
			h, err := s.sync.Subscribe(key, opts)
			if err != nil {
				return fmt.Errorf("start dashboard: %w", err)
			}
			s.handles[key] = h
		}
	}
	s.logger.Info("dashboard started",
		zap.Strings("symbols", s.opts.Symbols),
		zap.Int("subscriptions", len(s.handles)),
	)
	return nil
}

func (s *DashboardService) interval(resource domain.Resource) time.Duration {
	if s.opts.Interval == nil {
		return 10 * time.Second
	}
	return s.opts.Interval(resource)
}

func (s *DashboardService) Symbols() []string {
	return append([]string(nil), s.opts.Symbols...)
}

func (s *DashboardService) handle(key domain.Key) (*synchronizer.Handle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.handles[key]
	return h, ok
}

// State returns the current state for key. Until the local subscription has
// a value, a mirrored state is served instead, marked stale.
func (s *DashboardService) State(ctx context.Context, key domain.Key) (domain.ResolvedState, error) {
	ctx, span := s.tracer.Start(ctx, "dashboard-service.state")
	defer span.End()
	span.SetAttributes(attribute.String("key", key.String()))

	h, ok := s.handle(key)
	if ok {
		state := h.State()
		if state.Resolved() {
			return state, nil
		}
		if mirrored, found := s.loadMirror(ctx, key); found {
			return mirrored, nil
		}
		return state, nil
	}

	if mirrored, found := s.loadMirror(ctx, key); found {
		return mirrored, nil
	}
	return domain.ResolvedState{}, fmt.Errorf("%w: %s", ErrUnknownKey, key)
}

func (s *DashboardService) loadMirror(ctx context.Context, key domain.Key) (domain.ResolvedState, bool) {
	if s.mirror == nil {
		return domain.ResolvedState{}, false
	}
	state, ok, err := s.mirror.Load(ctx, key)
	if err != nil {
		s.logger.Warn("state mirror read failed", zap.String("key", key.String()), zap.Error(err))
		return domain.ResolvedState{}, false
	}
	if !ok {
		return domain.ResolvedState{}, false
	}
	state.IsStale = true
	return state, true
}

// States returns every local state ordered by symbol then resource.
func (s *DashboardService) States(ctx context.Context) []KeyedState {
	_, span := s.tracer.Start(ctx, "dashboard-service.states")
	defer span.End()

	s.mu.RLock()
	out := make([]KeyedState, 0, len(s.handles))
	for key, h := range s.handles {
		out = append(out, KeyedState{Key: key, ResolvedState: h.State()})
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Key.Symbol != out[j].Key.Symbol {
			return out[i].Key.Symbol < out[j].Key.Symbol
		}
		return out[i].Key.Resource < out[j].Key.Resource
	})
	return out
}

// Refresh resolves key out of band and returns the new state.
func (s *DashboardService) Refresh(ctx context.Context, key domain.Key) (domain.ResolvedState, error) {
	ctx, span := s.tracer.Start(ctx, "dashboard-service.refresh")
	defer span.End()
	span.SetAttributes(attribute.String("key", key.String()))

	h, ok := s.handle(key)
	if !ok {
		return domain.ResolvedState{}, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return h.ForceRefresh(ctx), nil
}

// RefreshAll refreshes every subscription concurrently.
func (s *DashboardService) RefreshAll(ctx context.Context) []KeyedState {
	ctx, span := s.tracer.Start(ctx, "dashboard-service.refresh-all")
	defer span.End()

	s.mu.RLock()
	handles := make([]*synchronizer.Handle, 0, len(s.handles))
	for _, h := range s.handles {
		handles = append(handles, h)
	}
	s.mu.RUnlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, h := range handles {
		h := h
		g.Go(func() error {
			h.ForceRefresh(gctx)
			return nil
		})
	}
	_ = g.Wait()

	return s.States(ctx)
}

// Close unsubscribes every dashboard subscription.
func (s *DashboardService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, h := range s.handles {
		h.Unsubscribe()
		delete(s.handles, key)
	}
}
