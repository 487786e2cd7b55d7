package synchronizer

import (
	"context"
	"sync"

	"bot-dashboard/internal/domain"
	"bot-dashboard/internal/job"
	"bot-dashboard/internal/metrics"
	"bot-dashboard/internal/retry"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Handle is a consumer's view of one subscription.
type Handle struct {
	sync   *Synchronizer
	sub    *job.Subscription
	opts   Options
	cancel job.CancelFunc

	// ctx scopes shared resolutions to the subscription rather than to
	// whichever caller started them.
	ctx  context.Context
	stop context.CancelFunc

	// flight joins overlapping ticks onto the in-flight resolution.
	flight singleflight.Group
	once   sync.Once

	mu          sync.Mutex
	state       domain.ResolvedState
	resolutions int
}

func (h *Handle) ID() string { return h.sub.ID }

func (h *Handle) Key() domain.Key { return h.sub.Key }

// Active reports whether the subscription is still polling.
func (h *Handle) Active() bool { return h.sub.Active() }

// State returns the latest state. After Unsubscribe it is frozen.
func (h *Handle) State() domain.ResolvedState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Unsubscribe stops polling. In-flight results are discarded. Safe to call
// more than once.
func (h *Handle) Unsubscribe() {
	h.once.Do(func() {
		h.mu.Lock()
		if h.cancel != nil {
			h.cancel()
		}
		h.sub.Cancel()
		h.stop()
		h.mu.Unlock()

		h.sync.remove(h)
		metrics.SubscriptionStopped()
		h.sync.logger.Info("unsubscribed",
			zap.String("subscription", h.sub.ID),
			zap.String("key", h.sub.Key.String()),
		)
	})
}

// ForceRefresh resolves out of band without touching the timer and returns
// the resulting state. If a tick is already in flight the call joins it.
// Cancelling ctx stops the wait, not the resolution.
func (h *Handle) ForceRefresh(ctx context.Context) domain.ResolvedState {
	if !h.Active() {
		return h.State()
	}
	h.resolve(ctx)
	return h.State()
}

func (h *Handle) tick(ctx context.Context) {
	h.resolve(ctx)
}

// resolve runs at most one resolution at a time. The resolution is committed
// once by the flight itself; joined callers only wait for it.
func (h *Handle) resolve(ctx context.Context) {
	ch := h.flight.DoChan("resolve", func() (any, error) {
		h.commit(h.sync.controller.ResolveOnce(h.ctx, h.sub.Key, h.opts.Policy, h.opts.Synthesize))
		return nil, nil
	})
	select {
	case <-ch:
	case <-ctx.Done():
	}
}

func (h *Handle) commit(attempt domain.FetchAttempt) {
	logger := h.sync.logger.With(
		zap.String("subscription", h.sub.ID),
		zap.String("key", h.sub.Key.String()),
	)

	h.mu.Lock()
	if !h.sub.Active() || h.ctx.Err() != nil {
		h.mu.Unlock()
		logger.Debug("discarding result for inactive subscription")
		return
	}

	prev := h.state
	first := h.resolutions == 0
	h.resolutions++
	next := retry.Apply(prev, attempt, h.sync.now())
	h.state = next
	h.mu.Unlock()

	switch attempt.Outcome.Kind {
	case domain.OutcomeFailure:
		if first {
			logger.Warn("initial load failed", zap.Error(attempt.Outcome.Err))
		} else {
			logger.Debug("resolution failed, keeping previous value", zap.Error(attempt.Outcome.Err))
		}
	case domain.OutcomeFallback:
		logger.Debug("using synthetic value", zap.Error(attempt.Outcome.Err))
	}

	h.sync.notify(h, prev, next)
}

// watch releases the handle once its timer loop exits, which also happens
// when the synchronizer's context is cancelled.
func (h *Handle) watch() {
	<-h.sub.Done()
	h.Unsubscribe()
}
