// Package synth produces placeholder values for keys whose backend could not
// be reached. Every generator is total: it returns a usable value for any key.
package synth

import (
	"bot-dashboard/internal/domain"

	"github.com/shopspring/decimal"
)

// Func produces a placeholder value for key.
type Func func(key domain.Key) any

var (
	placeholderPrice = decimal.NewFromInt(50000)
	bandUp           = decimal.RequireFromString("1.02")
	bandDown         = decimal.RequireFromString("0.98")
)

// Ticker returns a flat placeholder ticker priced at 50000.
func Ticker(key domain.Key) any {
	return &domain.Ticker{
		Symbol:    key.Symbol,
		Last:      placeholderPrice.StringFixed(2),
		High:      placeholderPrice.Mul(bandUp).StringFixed(2),
		Low:       placeholderPrice.Mul(bandDown).StringFixed(2),
		Change24h: decimal.Zero.StringFixed(2),
		Volume:    decimal.Zero.String(),
	}
}

// Analysis returns a neutral market read.
func Analysis(key domain.Key) any {
	return &domain.MarketAnalysis{
		Symbol:              key.Symbol,
		Trend:               "neutral",
		RecommendedStrategy: "DCA",
	}
}

// Status reports the bot as not running.
func Status(key domain.Key) any {
	return &domain.BotStatus{
		Symbol: key.Symbol,
		State:  "unknown",
	}
}

// Config returns a generator yielding defaults.
func Config(defaults domain.ConfigTree) Func {
	return func(domain.Key) any { return defaults }
}

// Generic marks an arbitrary key as a placeholder.
func Generic(key domain.Key) any {
	return map[string]any{
		"symbol":      key.Symbol,
		"placeholder": true,
	}
}

// For returns the generator for resource.
func For(resource domain.Resource, defaults domain.ConfigTree) Func {
	switch resource {
	case domain.ResourceTicker:
		return Ticker
	case domain.ResourceAnalysis:
		return Analysis
	case domain.ResourceStatus:
		return Status
	case domain.ResourceConfig:
		if defaults == nil {
			defaults = domain.ConfigTree{}
		}
		return Config(defaults)
	default:
		return Generic
	}
}
