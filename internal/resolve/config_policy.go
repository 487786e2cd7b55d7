package resolve

import (
	"context"
	"fmt"

	"bot-dashboard/internal/configtree"
	"bot-dashboard/internal/domain"
	"bot-dashboard/internal/provider"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultRecommendationField is the decision field a recommendation may set.
var DefaultRecommendationField = []string{"activeStrategy"}

// ConfigPolicy resolves which configuration a form should show:
//
//  1. the config embedded in the live status of a running bot,
//  2. the persisted config,
//  3. the recommendation's decision field merged into the defaults,
//  4. the defaults.
type ConfigPolicy struct {
	status StatusSource
	store  ConfigStore
	tracer trace.Tracer

	// Defaults returns the caller's current default tree.
	Defaults func() domain.ConfigTree
	// Recommend returns the latest recommendation, or nil.
	Recommend func() *domain.Recommendation
	// Field is the path the recommendation writes to.
	Field []string
}

func NewConfigPolicy(tracer trace.Tracer, status StatusSource, store ConfigStore, defaults domain.ConfigTree) *ConfigPolicy {
	return &ConfigPolicy{
		status:    status,
		store:     store,
		tracer:    tracer,
		Defaults:  func() domain.ConfigTree { return defaults },
		Recommend: func() *domain.Recommendation { return nil },
		Field:     DefaultRecommendationField,
	}
}

func (p *ConfigPolicy) Resolve(ctx context.Context, key domain.Key) (domain.Resolution, error) {
	ctx, span := p.tracer.Start(ctx, "resolve.config")
	defer span.End()
	span.SetAttributes(attribute.String("symbol", key.Symbol))

	res := domain.Resolution{}

	res.Sources = append(res.Sources, domain.SourceStatus)
	status, err := p.status.FetchStatus(ctx, key.Symbol)
	switch {
	case err == nil && status != nil && status.Running && status.Config != nil:
		res.Value = status.Config
		res.Origin = domain.OriginLive
		span.SetAttributes(attribute.String("origin", string(res.Origin)))
		return res, nil
	case err != nil && !provider.IsNotFound(err):
		return res, fmt.Errorf("resolve %s: status: %w", key, err)
	}

	res.Sources = append(res.Sources, domain.SourceConfig)
	persisted, err := p.store.FetchConfig(ctx, key.Symbol)
	switch {
	case err == nil:
		res.Value = persisted
		res.Origin = domain.OriginPersisted
		span.SetAttributes(attribute.String("origin", string(res.Origin)))
		return res, nil
	case !provider.IsNotFound(err):
		return res, fmt.Errorf("resolve %s: persisted config: %w", key, err)
	}

	defaults := p.Defaults()
	res.Origin = domain.OriginRecommended
	if rec := p.Recommend(); rec != nil && rec.Strategy != "" {
		res.Sources = append(res.Sources, domain.SourceRecommendation)
		res.Value = MergeRecommendation(defaults, p.Field, rec)
	} else {
		res.Sources = append(res.Sources, domain.SourceDefault)
		res.Value = defaults
	}
	span.SetAttributes(attribute.String("origin", string(res.Origin)))
	return res, nil
}

// MergeRecommendation writes only the recommendation's decision field into
// defaults, returning a new tree.
func MergeRecommendation(defaults domain.ConfigTree, field []string, rec *domain.Recommendation) domain.ConfigTree {
	if rec == nil || rec.Strategy == "" {
		return defaults
	}
	if len(field) == 0 {
		field = DefaultRecommendationField
	}
	return configtree.Update(defaults, field, rec.Strategy)
}
