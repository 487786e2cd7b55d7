package job

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// TickFunc handles one tick. ctx is cancelled when the subscription is.
type TickFunc func(ctx context.Context)

// CancelFunc stops a subscription's timer. It is idempotent.
type CancelFunc func()

// Poller drives subscription timers.
type Poller struct {
	logger *zap.Logger
}

func NewPoller(logger *zap.Logger) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{logger: logger}
}

// Start fires onTick immediately and then every sub.Interval until the
// subscription or parent is cancelled. Each tick runs on its own goroutine
// so a slow tick never holds back the timer. Starting a subscription that
// is already running or cancelled returns a no-op CancelFunc.
func (p *Poller) Start(parent context.Context, sub *Subscription, onTick TickFunc) CancelFunc {
	ctx, ok := sub.begin(parent)
	if !ok {
		p.logger.Debug("subscription not idle, ignoring start",
			zap.String("subscription", sub.ID),
			zap.Stringer("lifecycle", sub.Lifecycle()),
		)
		return func() {}
	}

	go p.pollLoop(ctx, sub, onTick)
	return sub.Cancel
}

func (p *Poller) pollLoop(ctx context.Context, sub *Subscription, onTick TickFunc) {
	defer close(sub.done)
	defer sub.Cancel()

	p.logger.Debug("poller started",
		zap.String("subscription", sub.ID),
		zap.String("key", sub.Key.String()),
		zap.Duration("interval", sub.Interval),
	)

	// Run immediately on start
	go onTick(ctx)

	ticker := time.NewTicker(sub.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Debug("poller stopped", zap.String("subscription", sub.ID))
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			go onTick(ctx)
		}
	}
}
