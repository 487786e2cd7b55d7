package domain

import (
	"fmt"
	"strings"
	"time"
)

// Resource names one kind of pollable backend value.
type Resource string

const (
	ResourceStatus   Resource = "status"
	ResourceConfig   Resource = "config"
	ResourceTicker   Resource = "ticker"
	ResourceAnalysis Resource = "analysis"
)

// DashboardResources are polled for every dashboard symbol.
var DashboardResources = []Resource{ResourceTicker, ResourceAnalysis, ResourceStatus}

func (r Resource) IsValid() bool {
	switch r {
	case ResourceStatus, ResourceConfig, ResourceTicker, ResourceAnalysis:
		return true
	}
	return false
}

// Key identifies one pollable remote value.
type Key struct {
	Resource Resource `json:"resource"`
	Symbol   string   `json:"symbol"`
}

func NewKey(resource Resource, symbol string) Key {
	return Key{Resource: resource, Symbol: strings.ToUpper(strings.TrimSpace(symbol))}
}

func (k Key) String() string {
	return string(k.Resource) + ":" + k.Symbol
}

// ParseKey parses the "<resource>:<symbol>" form produced by Key.String.
func ParseKey(s string) (Key, error) {
	resource, symbol, ok := strings.Cut(s, ":")
	if !ok || symbol == "" {
		return Key{}, fmt.Errorf("invalid key %q", s)
	}
	k := NewKey(Resource(resource), symbol)
	if !k.Resource.IsValid() {
		return Key{}, fmt.Errorf("unknown resource %q", resource)
	}
	return k, nil
}

// Origin records which precedence tier produced a resolved value.
type Origin string

const (
	OriginNone        Origin = ""
	OriginLive        Origin = "live"
	OriginPersisted   Origin = "persisted"
	OriginRecommended Origin = "recommended"
	OriginSynthetic   Origin = "synthetic"
)

// Source is a candidate backend source queried during a resolution.
type Source string

const (
	SourceStatus         Source = "status"
	SourceConfig         Source = "config"
	SourceRecommendation Source = "recommendation"
	SourceDefault        Source = "default"
	SourceTicker         Source = "ticker"
	SourceAnalysis       Source = "market-analysis"
	SourceSynthetic      Source = "synthetic"
)

// ConfigTree is a nested mapping of setting name to value. Trees are
// treated as immutable once published.
type ConfigTree = map[string]any

// Resolution is what a policy produces on success.
type Resolution struct {
	Value   any
	Origin  Origin
	Sources []Source
}

type OutcomeKind string

const (
	OutcomeSuccess  OutcomeKind = "success"
	OutcomeFallback OutcomeKind = "fallback"
	OutcomeFailure  OutcomeKind = "failure"
)

// Outcome is the tagged result of one resolution cycle. Origin is only
// meaningful for success, Err only for failure and fallback.
type Outcome struct {
	Kind   OutcomeKind
	Value  any
	Origin Origin
	Err    error
}

func Success(value any, origin Origin) Outcome {
	return Outcome{Kind: OutcomeSuccess, Value: value, Origin: origin}
}

func Fallback(value any, cause error) Outcome {
	return Outcome{Kind: OutcomeFallback, Value: value, Origin: OriginSynthetic, Err: cause}
}

func Failure(err error) Outcome {
	return Outcome{Kind: OutcomeFailure, Err: err}
}

// FetchAttempt is the ephemeral record of one resolution cycle.
type FetchAttempt struct {
	Key          Key
	SourcesTried []Source
	Attempts     int
	Outcome      Outcome
}

// ResolvedState is the consumer-visible view of a subscription.
type ResolvedState struct {
	Value       any       `json:"value"`
	Origin      Origin    `json:"origin"`
	IsStale     bool      `json:"isStale"`
	LastUpdated time.Time `json:"lastUpdated"`
	Error       string    `json:"error,omitempty"`
}

// InitialState is the state of a subscription before its first tick completes.
func InitialState() ResolvedState {
	return ResolvedState{IsStale: true}
}

// Resolved reports whether a first resolution has assigned a value.
func (s ResolvedState) Resolved() bool {
	return s.Value != nil
}

// Age is the time since the value was last assigned, zero if never.
func (s ResolvedState) Age(now time.Time) time.Duration {
	if s.LastUpdated.IsZero() {
		return 0
	}
	return now.Sub(s.LastUpdated)
}
