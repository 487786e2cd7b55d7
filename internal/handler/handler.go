package handler

import (
	"context"
	"net/http"

	"bot-dashboard/internal/domain"
	"bot-dashboard/internal/metrics"
	"bot-dashboard/internal/service"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

type DashboardAPI interface {
	Symbols() []string
	State(ctx context.Context, key domain.Key) (domain.ResolvedState, error)
	States(ctx context.Context) []service.KeyedState
	Refresh(ctx context.Context, key domain.Key) (domain.ResolvedState, error)
}

type ConfigFormAPI interface {
	Open(ctx context.Context, symbol string, rec *domain.Recommendation) (service.ConfigForm, error)
	Draft(symbol string) (service.ConfigForm, error)
	Edit(symbol, path string, value any) (service.ConfigForm, error)
	Save(ctx context.Context, symbol string) (domain.ConfigSave, error)
	History(ctx context.Context, symbol string, limit int) ([]domain.ConfigSave, error)
}

type Handler struct {
	tracer    trace.Tracer
	dashboard DashboardAPI
	forms     ConfigFormAPI
	stream    http.Handler
}

func New(tracer trace.Tracer, dashboard DashboardAPI, forms ConfigFormAPI, stream http.Handler) *Handler {
	return &Handler{
		tracer:    tracer,
		dashboard: dashboard,
		forms:     forms,
		stream:    stream,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	if h.stream != nil {
		r.GET("/ws", gin.WrapH(h.stream))
	}

	api := r.Group("/api")
	api.GET("/symbols", h.GetSymbols)
	api.GET("/state", h.GetStates)
	api.GET("/state/:resource/:symbol", h.GetState)
	api.POST("/state/:resource/:symbol/refresh", h.RefreshState)

	cfg := api.Group("/config/:symbol")
	cfg.POST("/open", h.OpenConfig)
	cfg.GET("/draft", h.GetDraft)
	cfg.PATCH("/draft", h.EditDraft)
	cfg.POST("/save", h.SaveConfig)
	cfg.GET("/history", h.GetConfigHistory)
}

func (h *Handler) supported(symbol string) bool {
	for _, s := range h.dashboard.Symbols() {
		if s == symbol {
			return true
		}
	}
	return false
}

func (h *Handler) rejectSymbol(c *gin.Context, symbol string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":             "unsupported symbol: " + symbol,
		"supported_symbols": h.dashboard.Symbols(),
	})
}
