// Package resolve decides which backend sources are queried for a key and
// which one's value is authoritative.
package resolve

import (
	"context"
	"fmt"

	"bot-dashboard/internal/domain"
)

// Policy resolves a key into a value and the origin tier that produced it.
// Errors are transport or shape failures; NotFound never escapes a policy
// that has a further tier to fall through to.
type Policy interface {
	Resolve(ctx context.Context, key domain.Key) (domain.Resolution, error)
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc func(ctx context.Context, key domain.Key) (domain.Resolution, error)

func (f PolicyFunc) Resolve(ctx context.Context, key domain.Key) (domain.Resolution, error) {
	return f(ctx, key)
}

type StatusSource interface {
	FetchStatus(ctx context.Context, symbol string) (*domain.BotStatus, error)
}

type ConfigStore interface {
	FetchConfig(ctx context.Context, symbol string) (domain.ConfigTree, error)
}

type TickerSource interface {
	FetchTicker(ctx context.Context, symbol string) (*domain.Ticker, error)
}

type AnalysisSource interface {
	FetchAnalysis(ctx context.Context, symbol string) (*domain.MarketAnalysis, error)
}

// Backend is everything the standard policies need.
type Backend interface {
	StatusSource
	ConfigStore
	TickerSource
	AnalysisSource
}

// Live queries one remote source once. There is no persisted or recommended
// tier: failures go straight back to the caller.
func Live[T any](source domain.Source, fetch func(ctx context.Context, symbol string) (T, error)) Policy {
	return PolicyFunc(func(ctx context.Context, key domain.Key) (domain.Resolution, error) {
		v, err := fetch(ctx, key.Symbol)
		if err != nil {
			return domain.Resolution{Sources: []domain.Source{source}}, fmt.Errorf("resolve %s: %w", key, err)
		}
		return domain.Resolution{Value: v, Origin: domain.OriginLive, Sources: []domain.Source{source}}, nil
	})
}

func NewTickerPolicy(src TickerSource) Policy {
	return Live(domain.SourceTicker, src.FetchTicker)
}

func NewAnalysisPolicy(src AnalysisSource) Policy {
	return Live(domain.SourceAnalysis, src.FetchAnalysis)
}

func NewStatusPolicy(src StatusSource) Policy {
	return Live(domain.SourceStatus, src.FetchStatus)
}

// MarketPolicies returns the live policies for the dashboard resources.
func MarketPolicies(b Backend) map[domain.Resource]Policy {
	return map[domain.Resource]Policy{
		domain.ResourceTicker:   NewTickerPolicy(b),
		domain.ResourceAnalysis: NewAnalysisPolicy(b),
		domain.ResourceStatus:   NewStatusPolicy(b),
	}
}
