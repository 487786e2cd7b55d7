// Package synchronizer keeps remote values fresh for consumers: it owns the
// polling lifecycle of every subscription, runs each tick through the retry
// controller and publishes the resulting state.
package synchronizer

import (
	"context"
	"errors"
	"sync"
	"time"

	"bot-dashboard/internal/domain"
	"bot-dashboard/internal/job"
	"bot-dashboard/internal/metrics"
	"bot-dashboard/internal/resolve"
	"bot-dashboard/internal/retry"
	"bot-dashboard/internal/synth"

	"go.uber.org/zap"
)

// Options configure one subscription.
type Options struct {
	Interval time.Duration
	Policy   resolve.Policy
	// Synthesize produces placeholders when both attempts fail. When nil,
	// the first failure of the subscription is surfaced as an error state.
	Synthesize synth.Func
}

// Listener is notified after every committed state change.
type Listener interface {
	StateChanged(h *Handle, prev, next domain.ResolvedState)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(h *Handle, prev, next domain.ResolvedState)

func (f ListenerFunc) StateChanged(h *Handle, prev, next domain.ResolvedState) {
	f(h, prev, next)
}

// Synchronizer is the entry point consumers subscribe through.
type Synchronizer struct {
	ctx        context.Context
	logger     *zap.Logger
	poller     *job.Poller
	controller *retry.Controller
	now        func() time.Time

	mu        sync.RWMutex
	handles   map[string]*Handle
	listeners []Listener
}

// New creates a synchronizer whose timers stop when ctx is cancelled.
func New(ctx context.Context, logger *zap.Logger, controller *retry.Controller, poller *job.Poller) *Synchronizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synchronizer{
		ctx:        ctx,
		logger:     logger,
		poller:     poller,
		controller: controller,
		now:        time.Now,
		handles:    make(map[string]*Handle),
	}
}

// AddListener registers l for all current and future subscriptions.
func (s *Synchronizer) AddListener(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Subscribe starts polling key. The first tick fires immediately on a
// background goroutine; State reports the initial stale state until it
// completes.
func (s *Synchronizer) Subscribe(key domain.Key, opts Options) (*Handle, error) {
	if opts.Policy == nil {
		return nil, errors.New("subscribe " + key.String() + ": policy is required")
	}
	sub, err := job.NewSubscription(key, opts.Interval)
	if err != nil {
		return nil, err
	}

	h := &Handle{
		sync:  s,
		sub:   sub,
		opts:  opts,
		state: domain.InitialState(),
	}
	h.ctx, h.stop = context.WithCancel(s.ctx)

	metrics.SubscriptionStarted()
	h.cancel = s.poller.Start(s.ctx, sub, h.tick)

	s.mu.Lock()
	s.handles[sub.ID] = h
	s.mu.Unlock()
	go h.watch()

	s.logger.Info("subscribed",
		zap.String("subscription", sub.ID),
		zap.String("key", key.String()),
		zap.Duration("interval", opts.Interval),
	)
	return h, nil
}

// Lookup returns an active handle for key, if any.
func (s *Synchronizer) Lookup(key domain.Key) (*Handle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, h := range s.handles {
		if h.sub.Key == key {
			return h, true
		}
	}
	return nil, false
}

// Handles returns every active handle.
func (s *Synchronizer) Handles() []*Handle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Handle, 0, len(s.handles))
	for _, h := range s.handles {
		out = append(out, h)
	}
	return out
}

// Close unsubscribes everything.
func (s *Synchronizer) Close() {
	for _, h := range s.Handles() {
		h.Unsubscribe()
	}
}

func (s *Synchronizer) remove(h *Handle) {
	s.mu.Lock()
	delete(s.handles, h.sub.ID)
	s.mu.Unlock()
}

func (s *Synchronizer) notify(h *Handle, prev, next domain.ResolvedState) {
	s.mu.RLock()
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.RUnlock()

	for _, l := range listeners {
		l.StateChanged(h, prev, next)
	}
}
