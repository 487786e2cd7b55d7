package resolve

import (
	"context"
	"errors"
	"testing"

	"bot-dashboard/internal/configtree"
	"bot-dashboard/internal/domain"
	"bot-dashboard/internal/provider"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

var testTracer = noop.NewTracerProvider().Tracer("test")

type stubBackend struct {
	status    *domain.BotStatus
	statusErr error
	config    domain.ConfigTree
	configErr error
	ticker    *domain.Ticker
	tickerErr error

	statusCalls int
	configCalls int
}

func (s *stubBackend) FetchStatus(ctx context.Context, symbol string) (*domain.BotStatus, error) {
	s.statusCalls++
	return s.status, s.statusErr
}

func (s *stubBackend) FetchConfig(ctx context.Context, symbol string) (domain.ConfigTree, error) {
	s.configCalls++
	if s.configErr != nil {
		return nil, s.configErr
	}
	if s.config == nil {
		return nil, &provider.NotFoundError{Resource: "config"}
	}
	return s.config, nil
}

func (s *stubBackend) FetchTicker(ctx context.Context, symbol string) (*domain.Ticker, error) {
	return s.ticker, s.tickerErr
}

func (s *stubBackend) FetchAnalysis(ctx context.Context, symbol string) (*domain.MarketAnalysis, error) {
	return &domain.MarketAnalysis{Symbol: symbol, Trend: "sideways"}, nil
}

var btcConfig = domain.NewKey(domain.ResourceConfig, "BTCUSDT")

func TestConfigPolicyLiveWinsOverPersisted(t *testing.T) {
	b := &stubBackend{
		status: &domain.BotStatus{Running: true, Config: domain.ConfigTree{"activeStrategy": "DCA"}},
		config: domain.ConfigTree{"activeStrategy": "SCALPING"},
	}
	p := NewConfigPolicy(testTracer, b, b, configtree.MustDefaults())

	res, err := p.Resolve(context.Background(), btcConfig)
	require.NoError(t, err)
	assert.Equal(t, domain.OriginLive, res.Origin)
	assert.Equal(t, "DCA", res.Value.(domain.ConfigTree)["activeStrategy"])
	assert.Equal(t, []domain.Source{domain.SourceStatus}, res.Sources)
	assert.Zero(t, b.configCalls, "persisted store must not be queried when live config is authoritative")
}

func TestConfigPolicyRunningWithoutConfigUsesPersisted(t *testing.T) {
	b := &stubBackend{
		status: &domain.BotStatus{Running: true},
		config: domain.ConfigTree{"activeStrategy": "GRID"},
	}
	p := NewConfigPolicy(testTracer, b, b, configtree.MustDefaults())

	res, err := p.Resolve(context.Background(), btcConfig)
	require.NoError(t, err)
	assert.Equal(t, domain.OriginPersisted, res.Origin)
	assert.Equal(t, domain.ConfigTree{"activeStrategy": "GRID"}, res.Value)
	assert.Equal(t, []domain.Source{domain.SourceStatus, domain.SourceConfig}, res.Sources)
}

func TestConfigPolicyStoppedIgnoresEmbeddedConfig(t *testing.T) {
	b := &stubBackend{
		status: &domain.BotStatus{Running: false, Config: domain.ConfigTree{"activeStrategy": "DCA"}},
		config: domain.ConfigTree{"activeStrategy": "GRID"},
	}
	p := NewConfigPolicy(testTracer, b, b, configtree.MustDefaults())

	res, err := p.Resolve(context.Background(), btcConfig)
	require.NoError(t, err)
	assert.Equal(t, domain.OriginPersisted, res.Origin)
}

func TestConfigPolicyStatusNotFoundFallsThrough(t *testing.T) {
	b := &stubBackend{
		statusErr: &provider.NotFoundError{Resource: "status"},
		config:    domain.ConfigTree{"activeStrategy": "GRID"},
	}
	p := NewConfigPolicy(testTracer, b, b, configtree.MustDefaults())

	res, err := p.Resolve(context.Background(), btcConfig)
	require.NoError(t, err)
	assert.Equal(t, domain.OriginPersisted, res.Origin)
}

func TestConfigPolicyRecommendationMergesDecisionFieldOnly(t *testing.T) {
	defaults := configtree.MustDefaults()
	b := &stubBackend{status: &domain.BotStatus{Running: false}}
	p := NewConfigPolicy(testTracer, b, b, defaults)
	p.Recommend = func() *domain.Recommendation { return &domain.Recommendation{Strategy: "GRID"} }

	res, err := p.Resolve(context.Background(), btcConfig)
	require.NoError(t, err)
	assert.Equal(t, domain.OriginRecommended, res.Origin)
	assert.Equal(t, []domain.Source{domain.SourceStatus, domain.SourceConfig, domain.SourceRecommendation}, res.Sources)

	tree := res.Value.(domain.ConfigTree)
	assert.Equal(t, "GRID", tree["activeStrategy"])
	assert.Equal(t, defaults["common"], tree["common"])
	assert.Equal(t, "DCA", defaults["activeStrategy"], "defaults must not be mutated")
}

func TestConfigPolicyRecommendationNeverOverridesPersisted(t *testing.T) {
	b := &stubBackend{
		status: &domain.BotStatus{Running: false},
		config: domain.ConfigTree{"activeStrategy": "SCALPING"},
	}
	p := NewConfigPolicy(testTracer, b, b, configtree.MustDefaults())
	p.Recommend = func() *domain.Recommendation { return &domain.Recommendation{Strategy: "GRID"} }

	res, err := p.Resolve(context.Background(), btcConfig)
	require.NoError(t, err)
	assert.Equal(t, domain.OriginPersisted, res.Origin)
	assert.Equal(t, "SCALPING", res.Value.(domain.ConfigTree)["activeStrategy"])
}

func TestConfigPolicyDefaultAsRecommendation(t *testing.T) {
	defaults := domain.ConfigTree{"activeStrategy": "DCA"}
	b := &stubBackend{status: &domain.BotStatus{}}
	p := NewConfigPolicy(testTracer, b, b, defaults)

	res, err := p.Resolve(context.Background(), btcConfig)
	require.NoError(t, err)
	assert.Equal(t, domain.OriginRecommended, res.Origin)
	assert.Equal(t, defaults, res.Value)
	assert.Equal(t, domain.SourceDefault, res.Sources[len(res.Sources)-1])
}

func TestConfigPolicyPropagatesTransportErrors(t *testing.T) {
	transport := &provider.TransportError{Resource: "status", StatusCode: 502, Err: errors.New("bad gateway")}
	b := &stubBackend{statusErr: transport}
	p := NewConfigPolicy(testTracer, b, b, configtree.MustDefaults())

	_, err := p.Resolve(context.Background(), btcConfig)
	require.Error(t, err)
	assert.True(t, provider.IsTransport(err))
	assert.Zero(t, b.configCalls)

	b = &stubBackend{
		status:    &domain.BotStatus{},
		configErr: &provider.MalformedResponseError{Resource: "config", Reason: "bad"},
	}
	p = NewConfigPolicy(testTracer, b, b, configtree.MustDefaults())
	_, err = p.Resolve(context.Background(), btcConfig)
	assert.True(t, provider.IsMalformed(err))
}

func TestLivePolicy(t *testing.T) {
	b := &stubBackend{ticker: &domain.Ticker{Symbol: "BTCUSDT", Last: "1"}}
	p := NewTickerPolicy(b)

	res, err := p.Resolve(context.Background(), domain.NewKey(domain.ResourceTicker, "BTCUSDT"))
	require.NoError(t, err)
	assert.Equal(t, domain.OriginLive, res.Origin)
	assert.Equal(t, b.ticker, res.Value)

	b.tickerErr = &provider.TransportError{Resource: "ticker", Err: errors.New("down")}
	_, err = p.Resolve(context.Background(), domain.NewKey(domain.ResourceTicker, "BTCUSDT"))
	assert.True(t, provider.IsTransport(err))
}

func TestMarketPolicies(t *testing.T) {
	policies := MarketPolicies(&stubBackend{})
	for _, r := range domain.DashboardResources {
		assert.Contains(t, policies, r)
	}
	res, err := policies[domain.ResourceAnalysis].Resolve(context.Background(), domain.NewKey(domain.ResourceAnalysis, "ETHUSDT"))
	require.NoError(t, err)
	assert.Equal(t, "ETHUSDT", res.Value.(*domain.MarketAnalysis).Symbol)
}

func TestMergeRecommendationNil(t *testing.T) {
	defaults := domain.ConfigTree{"activeStrategy": "DCA"}
	assert.Equal(t, defaults, MergeRecommendation(defaults, nil, nil))
	assert.Equal(t, "GRID", MergeRecommendation(defaults, nil, &domain.Recommendation{Strategy: "GRID"})["activeStrategy"])
}
