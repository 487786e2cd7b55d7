package provider

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"bot-dashboard/internal/domain"

	"github.com/tidwall/gjson"
)

// Backend decodes the bot backend resources into typed values. Shape checks
// happen here so resolution logic only sees validated structs or one of the
// typed errors in errors.go.
type Backend struct {
	fetcher Fetcher
}

func NewBackend(fetcher Fetcher) *Backend {
	return &Backend{fetcher: fetcher}
}

func StatusResource(symbol string) string {
	return "status?symbol=" + url.QueryEscape(symbol)
}

func ConfigResource(symbol string) string {
	return "config?symbol=" + url.QueryEscape(symbol)
}

func TickerResource(symbol string) string {
	return "ticker/" + url.PathEscape(symbol)
}

func AnalysisResource(symbol string) string {
	return "market-analysis?symbol=" + url.QueryEscape(symbol)
}

// FetchStatus returns the running status of the bot for symbol.
func (b *Backend) FetchStatus(ctx context.Context, symbol string) (*domain.BotStatus, error) {
	resource := StatusResource(symbol)
	body, err := b.fetcher.Get(ctx, resource)
	if err != nil {
		return nil, err
	}
	doc, err := object(resource, body)
	if err != nil {
		return nil, err
	}

	status := &domain.BotStatus{Symbol: symbol}
	switch running := doc.Get("running"); {
	case running.Exists() && (running.Type == gjson.True || running.Type == gjson.False):
		status.Running = running.Bool()
	case doc.Get("status").Type == gjson.String:
		status.Running = strings.EqualFold(doc.Get("status").String(), "running")
	default:
		return nil, &MalformedResponseError{Resource: resource, Reason: "missing boolean field running"}
	}
	status.State = doc.Get("state").String()
	if status.State == "" {
		status.State = doc.Get("status").String()
	}
	status.Uptime = doc.Get("uptime").Float()

	if cfg := doc.Get("config"); cfg.IsObject() {
		tree, err := decodeTree(resource, cfg.Raw)
		if err != nil {
			return nil, err
		}
		status.Config = tree
	}
	return status, nil
}

// FetchConfig returns the persisted configuration for symbol. A null or empty
// body is reported as NotFoundError.
func (b *Backend) FetchConfig(ctx context.Context, symbol string) (domain.ConfigTree, error) {
	resource := ConfigResource(symbol)
	body, err := b.fetcher.Get(ctx, resource)
	if err != nil {
		return nil, err
	}
	doc, err := object(resource, body)
	if err != nil {
		return nil, err
	}

	raw := doc.Raw
	if cfg := doc.Get("config"); cfg.Exists() {
		if cfg.Type == gjson.Null {
			return nil, &NotFoundError{Resource: resource}
		}
		if !cfg.IsObject() {
			return nil, &MalformedResponseError{Resource: resource, Reason: "config is not an object"}
		}
		raw = cfg.Raw
	}

	tree, err := decodeTree(resource, raw)
	if err != nil {
		return nil, err
	}
	if len(tree) == 0 {
		return nil, &NotFoundError{Resource: resource}
	}
	return tree, nil
}

// SaveConfig persists tree as the configuration for symbol.
func (b *Backend) SaveConfig(ctx context.Context, symbol string, tree domain.ConfigTree) error {
	_, err := b.fetcher.Post(ctx, "config", map[string]any{
		"symbol": symbol,
		"config": tree,
	})
	return err
}

// FetchTicker returns the 24h ticker for symbol.
func (b *Backend) FetchTicker(ctx context.Context, symbol string) (*domain.Ticker, error) {
	resource := TickerResource(symbol)
	body, err := b.fetcher.Get(ctx, resource)
	if err != nil {
		return nil, err
	}
	doc, err := object(resource, body)
	if err != nil {
		return nil, err
	}

	last := first(doc, "last", "lastPrice", "price")
	if !last.Exists() || last.String() == "" {
		return nil, &MalformedResponseError{Resource: resource, Reason: "missing field last"}
	}

	t := &domain.Ticker{
		Symbol:    doc.Get("symbol").String(),
		Last:      last.String(),
		High:      first(doc, "high", "highPrice24h", "highPrice").String(),
		Low:       first(doc, "low", "lowPrice24h", "lowPrice").String(),
		Change24h: first(doc, "change24h", "price24hPcnt", "priceChangePercent").String(),
		Volume:    first(doc, "volume", "volume24h").String(),
	}
	if t.Symbol == "" {
		t.Symbol = symbol
	}
	return t, nil
}

// FetchAnalysis returns the market analysis for symbol.
func (b *Backend) FetchAnalysis(ctx context.Context, symbol string) (*domain.MarketAnalysis, error) {
	resource := AnalysisResource(symbol)
	body, err := b.fetcher.Get(ctx, resource)
	if err != nil {
		return nil, err
	}
	doc, err := object(resource, body)
	if err != nil {
		return nil, err
	}

	if data := doc.Get("data"); data.IsObject() {
		doc = data
	}
	trend := first(doc, "trend", "marketTrend")
	if !trend.Exists() {
		return nil, &MalformedResponseError{Resource: resource, Reason: "missing field trend"}
	}

	a := &domain.MarketAnalysis{
		Symbol:              doc.Get("symbol").String(),
		Trend:               trend.String(),
		Volatility:          doc.Get("volatility").Float(),
		Volume24h:           first(doc, "volume24h", "volume").Float(),
		RecommendedStrategy: first(doc, "recommendedStrategy", "recommendation.strategy").String(),
		Confidence:          first(doc, "confidence", "recommendation.confidence").Float(),
	}
	if a.Symbol == "" {
		a.Symbol = symbol
	}
	return a, nil
}

func object(resource string, body []byte) (gjson.Result, error) {
	doc := gjson.ParseBytes(body)
	if doc.Type == gjson.Null {
		return doc, &NotFoundError{Resource: resource}
	}
	if !doc.IsObject() {
		return doc, &MalformedResponseError{Resource: resource, Reason: "expected a JSON object"}
	}
	return doc, nil
}

func first(doc gjson.Result, paths ...string) gjson.Result {
	for _, p := range paths {
		if r := doc.Get(p); r.Exists() {
			return r
		}
	}
	return gjson.Result{}
}

func decodeTree(resource, raw string) (domain.ConfigTree, error) {
	tree := domain.ConfigTree{}
	if err := json.Unmarshal([]byte(raw), &tree); err != nil {
		return nil, &MalformedResponseError{Resource: resource, Reason: "decode config", Err: err}
	}
	return tree, nil
}
