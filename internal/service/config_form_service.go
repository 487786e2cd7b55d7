package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"bot-dashboard/internal/configtree"
	"bot-dashboard/internal/domain"
	"bot-dashboard/internal/resolve"
	"bot-dashboard/internal/synchronizer"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var (
	ErrFormNotOpen     = errors.New("config form not open")
	ErrNoDraft         = errors.New("config form has no draft yet")
	ErrHistoryDisabled = errors.New("config history disabled")
)

// ConfigBackend is what the form needs from the bot backend.
type ConfigBackend interface {
	resolve.StatusSource
	resolve.ConfigStore
	SaveConfig(ctx context.Context, symbol string, tree domain.ConfigTree) error
}

type HistoryRepository interface {
	Record(ctx context.Context, symbol string, base domain.Origin, config domain.ConfigTree) (domain.ConfigSave, error)
	List(ctx context.Context, symbol string, limit int) ([]domain.ConfigSave, error)
}

// ConfigForm is the consumer view of an open configuration form.
type ConfigForm struct {
	Symbol string               `json:"symbol"`
	Draft  domain.ConfigTree    `json:"draft"`
	Dirty  bool                 `json:"dirty"`
	Base   domain.ResolvedState `json:"base"`
}

type configForm struct {
	handle *synchronizer.Handle
	rec    *domain.Recommendation
	draft  domain.ConfigTree
	dirty  bool
	edits  int
}

// ConfigFormService backs the bot configuration form: the initial content
// comes from a config subscription, edits produce new draft trees and saves
// go back to the backend.
type ConfigFormService struct {
	tracer   trace.Tracer
	logger   *zap.Logger
	sync     *synchronizer.Synchronizer
	backend  ConfigBackend
	history  HistoryRepository
	defaults domain.ConfigTree
	field    []string
	interval time.Duration

	mu    sync.Mutex
	forms map[string]*configForm
}

func NewConfigFormService(
	tracer trace.Tracer,
	logger *zap.Logger,
	syncer *synchronizer.Synchronizer,
	backend ConfigBackend,
	history HistoryRepository,
	defaults domain.ConfigTree,
	field []string,
	interval time.Duration,
) *ConfigFormService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(field) == 0 {
		field = resolve.DefaultRecommendationField
	}
	return &ConfigFormService{
		tracer:   tracer,
		logger:   logger,
		sync:     syncer,
		backend:  backend,
		history:  history,
		defaults: defaults,
		field:    field,
		interval: interval,
		forms:    make(map[string]*configForm),
	}
}

// Open subscribes the symbol's config, or reuses the open form, and waits for
// the first resolution. rec replaces any earlier recommendation.
func (s *ConfigFormService) Open(ctx context.Context, symbol string, rec *domain.Recommendation) (ConfigForm, error) {
	ctx, span := s.tracer.Start(ctx, "config-form-service.open")
	defer span.End()
	key := domain.NewKey(domain.ResourceConfig, symbol)
	span.SetAttributes(attribute.String("symbol", key.Symbol))

	s.mu.Lock()
	form, ok := s.forms[key.Symbol]
	if ok {
		form.rec = rec
		s.mu.Unlock()
		if rec != nil {
			form.handle.ForceRefresh(ctx)
		}
		return s.Draft(key.Symbol)
	}

	form = &configForm{rec: rec}
	policy := resolve.NewConfigPolicy(s.tracer, s.backend, s.backend, s.defaults)
	policy.Field = s.field
	policy.Recommend = func() *domain.Recommendation {
		s.mu.Lock()
		defer s.mu.Unlock()
		return form.rec
	}

	h, err := s.sync.Subscribe(key, synchronizer.Options{Interval: s.interval, Policy: policy})
	if err != nil {
		s.mu.Unlock()
		return ConfigForm{}, fmt.Errorf("open config form %s: %w", key.Symbol, err)
	}
	form.handle = h
	s.forms[key.Symbol] = form
	s.mu.Unlock()

	state := h.ForceRefresh(ctx)
	if !state.Resolved() {
		s.logger.Warn("config form opened without a value",
			zap.String("symbol", key.Symbol),
			zap.String("error", state.Error),
		)
	}
	return s.Draft(key.Symbol)
}

// Draft returns the current draft. A clean form follows the first resolved
// value of its subscription.
func (s *ConfigFormService) Draft(symbol string) (ConfigForm, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	form, ok := s.forms[domain.NewKey(domain.ResourceConfig, symbol).Symbol]
	if !ok {
		return ConfigForm{}, fmt.Errorf("%w: %s", ErrFormNotOpen, symbol)
	}
	return s.viewLocked(form), nil
}

func (s *ConfigFormService) viewLocked(form *configForm) ConfigForm {
	base := form.handle.State()
	if form.draft == nil && !form.dirty {
		if tree, ok := base.Value.(domain.ConfigTree); ok {
			form.draft = tree
		}
	}
	return ConfigForm{
		Symbol: form.handle.Key().Symbol,
		Draft:  form.draft,
		Dirty:  form.dirty,
		Base:   base,
	}
}

// Edit sets the value at a dotted path in the draft. The previous draft is
// left untouched.
func (s *ConfigFormService) Edit(symbol, path string, value any) (ConfigForm, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	form, ok := s.forms[domain.NewKey(domain.ResourceConfig, symbol).Symbol]
	if !ok {
		return ConfigForm{}, fmt.Errorf("%w: %s", ErrFormNotOpen, symbol)
	}
	view := s.viewLocked(form)
	if view.Draft == nil {
		return view, fmt.Errorf("%w: %s", ErrNoDraft, symbol)
	}

	segments := configtree.ParsePath(path)
	if len(segments) == 0 {
		return view, nil
	}
	form.draft = configtree.Update(form.draft, segments, value)
	form.dirty = true
	form.edits++
	return s.viewLocked(form), nil
}

// Save posts the draft, records it and refreshes the config subscription so
// the form's base reflects the saved tree.
func (s *ConfigFormService) Save(ctx context.Context, symbol string) (domain.ConfigSave, error) {
	ctx, span := s.tracer.Start(ctx, "config-form-service.save")
	defer span.End()
	span.SetAttributes(attribute.String("symbol", symbol))

	s.mu.Lock()
	form, ok := s.forms[domain.NewKey(domain.ResourceConfig, symbol).Symbol]
	if !ok {
		s.mu.Unlock()
		return domain.ConfigSave{}, fmt.Errorf("%w: %s", ErrFormNotOpen, symbol)
	}
	view := s.viewLocked(form)
	edits := form.edits
	s.mu.Unlock()

	if view.Draft == nil {
		return domain.ConfigSave{}, fmt.Errorf("%w: %s", ErrNoDraft, view.Symbol)
	}

	tree := configtree.Clone(view.Draft)
	if err := s.backend.SaveConfig(ctx, view.Symbol, tree); err != nil {
		return domain.ConfigSave{}, fmt.Errorf("save config %s: %w", view.Symbol, err)
	}

	save := domain.ConfigSave{
		Symbol:     view.Symbol,
		BaseOrigin: view.Base.Origin,
		Config:     tree,
		SavedAt:    time.Now().UTC(),
	}
	if s.history != nil {
		recorded, err := s.history.Record(ctx, view.Symbol, view.Base.Origin, tree)
		if err != nil {
			s.logger.Error("record config history failed", zap.String("symbol", view.Symbol), zap.Error(err))
		} else {
			save = recorded
		}
	}

	// The refresh may join a tick that read the config before the post, so
	// the draft is set to the saved tree rather than the refreshed value.
	form.handle.ForceRefresh(ctx)

	s.mu.Lock()
	if form.edits == edits {
		form.draft = tree
		form.dirty = false
	}
	s.mu.Unlock()

	s.logger.Info("config saved",
		zap.String("symbol", view.Symbol),
		zap.String("base_origin", string(view.Base.Origin)),
	)
	return save, nil
}

func (s *ConfigFormService) History(ctx context.Context, symbol string, limit int) ([]domain.ConfigSave, error) {
	if s.history == nil {
		return nil, ErrHistoryDisabled
	}
	return s.history.List(ctx, domain.NewKey(domain.ResourceConfig, symbol).Symbol, limit)
}

// Close unsubscribes the form's config subscription.
func (s *ConfigFormService) Close(symbol string) {
	s.mu.Lock()
	key := domain.NewKey(domain.ResourceConfig, symbol)
	form, ok := s.forms[key.Symbol]
	delete(s.forms, key.Symbol)
	s.mu.Unlock()

	if ok {
		form.handle.Unsubscribe()
	}
}

// CloseAll closes every open form.
func (s *ConfigFormService) CloseAll() {
	s.mu.Lock()
	symbols := make([]string, 0, len(s.forms))
	for symbol := range s.forms {
		symbols = append(symbols, symbol)
	}
	s.mu.Unlock()

	for _, symbol := range symbols {
		s.Close(symbol)
	}
}
