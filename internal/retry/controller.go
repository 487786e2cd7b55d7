// Package retry wraps one resolution with a single delayed retry and a
// synthetic fallback.
package retry

import (
	"context"
	"errors"
	"time"

	"bot-dashboard/internal/domain"
	"bot-dashboard/internal/metrics"
	"bot-dashboard/internal/resolve"
	"bot-dashboard/internal/synth"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// DefaultDelay is the wait between the first attempt and the retry.
const DefaultDelay = time.Second

// Controller runs a policy with one retry and converts persistent failure
// into a synthetic fallback when a synthesizer is available.
type Controller struct {
	tracer trace.Tracer
	logger *zap.Logger
	delay  time.Duration
}

func NewController(tracer trace.Tracer, logger *zap.Logger, delay time.Duration) *Controller {
	if delay <= 0 {
		delay = DefaultDelay
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{tracer: tracer, logger: logger, delay: delay}
}

// Delay is the configured retry delay.
func (c *Controller) Delay() time.Duration {
	return c.delay
}

// ResolveOnce executes policy for key. On failure it waits the retry delay
// and tries exactly once more. If both attempts fail the outcome is
// Fallback(synthesize(key)), or Failure when synthesize is nil. It never
// panics on policy errors. A context cancelled before or during the retry
// delay yields Failure(ctx.Err()) without a second attempt.
func (c *Controller) ResolveOnce(ctx context.Context, key domain.Key, policy resolve.Policy, synthesize synth.Func) domain.FetchAttempt {
	ctx, span := c.tracer.Start(ctx, "retry.resolve-once")
	defer span.End()
	span.SetAttributes(attribute.String("key", key.String()))

	start := time.Now()
	attempt := domain.FetchAttempt{Key: key}
	defer func() {
		span.SetAttributes(
			attribute.Int("attempts", attempt.Attempts),
			attribute.String("outcome", string(attempt.Outcome.Kind)),
		)
		metrics.RecordResolution(string(key.Resource), string(attempt.Outcome.Kind), time.Since(start).Seconds())
	}()

	err := c.try(ctx, key, policy, &attempt)
	if err == nil {
		return attempt
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		attempt.Outcome = domain.Failure(ctxErr)
		return attempt
	}

	c.logger.Debug("resolution failed, retrying",
		zap.String("key", key.String()),
		zap.Duration("delay", c.delay),
		zap.Error(err),
	)
	metrics.RecordRetry(string(key.Resource))

	timer := time.NewTimer(c.delay)
	select {
	case <-ctx.Done():
		timer.Stop()
		attempt.Outcome = domain.Failure(ctx.Err())
		return attempt
	case <-timer.C:
	}

	err = c.try(ctx, key, policy, &attempt)
	if err == nil {
		return attempt
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		attempt.Outcome = domain.Failure(ctxErr)
		return attempt
	}

	if synthesize == nil {
		attempt.Outcome = domain.Failure(err)
		return attempt
	}
	attempt.SourcesTried = append(attempt.SourcesTried, domain.SourceSynthetic)
	attempt.Outcome = domain.Fallback(synthesize(key), err)
	return attempt
}

func (c *Controller) try(ctx context.Context, key domain.Key, policy resolve.Policy, attempt *domain.FetchAttempt) (err error) {
	attempt.Attempts++
	defer func() {
		if r := recover(); r != nil {
			err = errors.New("policy panicked")
			c.logger.Error("policy panicked", zap.String("key", key.String()), zap.Any("panic", r))
		}
	}()

	res, err := policy.Resolve(ctx, key)
	attempt.SourcesTried = append(attempt.SourcesTried, res.Sources...)
	if err != nil {
		return err
	}
	attempt.Outcome = domain.Success(res.Value, res.Origin)
	return nil
}

// Apply folds an attempt into the previous state. Success replaces the value
// and clears staleness. Fallback replaces the value with the synthetic one
// and marks it stale. Failure keeps the previous value, marks it stale and
// records the error.
func Apply(prev domain.ResolvedState, attempt domain.FetchAttempt, now time.Time) domain.ResolvedState {
	switch attempt.Outcome.Kind {
	case domain.OutcomeSuccess:
		return domain.ResolvedState{
			Value:       attempt.Outcome.Value,
			Origin:      attempt.Outcome.Origin,
			IsStale:     false,
			LastUpdated: now,
		}
	case domain.OutcomeFallback:
		return domain.ResolvedState{
			Value:       attempt.Outcome.Value,
			Origin:      domain.OriginSynthetic,
			IsStale:     true,
			LastUpdated: now,
			Error:       errString(attempt.Outcome.Err),
		}
	default:
		next := prev
		next.IsStale = true
		next.Error = errString(attempt.Outcome.Err)
		return next
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
