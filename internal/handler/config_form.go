package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"bot-dashboard/internal/domain"
	"bot-dashboard/internal/service"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

type editDraftRequest struct {
	Path  string `json:"path" binding:"required"`
	Value any    `json:"value"`
}

// OpenConfig godoc
// @Summary      Open the configuration form
// @Description  Resolves the initial config (live, persisted, then recommended default) and starts a draft
// @Tags         config
// @Accept       json
// @Produce      json
// @Param        symbol  path  string                 true   "Trading pair (e.g., BTCUSDT)"
// @Param        body    body  domain.Recommendation  false  "Optional strategy recommendation"
// @Success      200  {object}  service.ConfigForm
// @Failure      400  {object}  map[string]string
// @Router       /api/config/{symbol}/open [post]
func (h *Handler) OpenConfig(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.open-config")
	defer span.End()

	symbol, ok := h.formSymbol(c)
	if !ok {
		return
	}
	span.SetAttributes(attribute.String("symbol", symbol))

	var rec *domain.Recommendation
	if c.Request.ContentLength > 0 {
		var body domain.Recommendation
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid recommendation: " + err.Error()})
			return
		}
		if body.Strategy != "" {
			rec = &body
		}
	}

	form, err := h.forms.Open(ctx, symbol, rec)
	if err != nil {
		h.formError(c, err)
		return
	}
	c.JSON(http.StatusOK, form)
}

// GetDraft godoc
// @Summary      Get the configuration draft
// @Tags         config
// @Produce      json
// @Param        symbol  path  string  true  "Trading pair (e.g., BTCUSDT)"
// @Success      200  {object}  service.ConfigForm
// @Failure      409  {object}  map[string]string
// @Router       /api/config/{symbol}/draft [get]
func (h *Handler) GetDraft(c *gin.Context) {
	symbol, ok := h.formSymbol(c)
	if !ok {
		return
	}

	form, err := h.forms.Draft(symbol)
	if err != nil {
		h.formError(c, err)
		return
	}
	c.JSON(http.StatusOK, form)
}

// EditDraft godoc
// @Summary      Edit one setting in the draft
// @Description  Sets the value at a dotted path, producing a new draft tree
// @Tags         config
// @Accept       json
// @Produce      json
// @Param        symbol  path  string            true  "Trading pair (e.g., BTCUSDT)"
// @Param        body    body  editDraftRequest  true  "Path and value"
// @Success      200  {object}  service.ConfigForm
// @Failure      400  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /api/config/{symbol}/draft [patch]
func (h *Handler) EditDraft(c *gin.Context) {
	symbol, ok := h.formSymbol(c)
	if !ok {
		return
	}

	var req editDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid edit: " + err.Error()})
		return
	}

	form, err := h.forms.Edit(symbol, req.Path, req.Value)
	if err != nil {
		h.formError(c, err)
		return
	}
	c.JSON(http.StatusOK, form)
}

// SaveConfig godoc
// @Summary      Save the configuration draft
// @Description  Posts the draft to the bot backend, records it in history and refreshes the form
// @Tags         config
// @Produce      json
// @Param        symbol  path  string  true  "Trading pair (e.g., BTCUSDT)"
// @Success      200  {object}  domain.ConfigSave
// @Failure      409  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/config/{symbol}/save [post]
func (h *Handler) SaveConfig(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.save-config")
	defer span.End()

	symbol, ok := h.formSymbol(c)
	if !ok {
		return
	}
	span.SetAttributes(attribute.String("symbol", symbol))

	save, err := h.forms.Save(ctx, symbol)
	if err != nil {
		h.formError(c, err)
		return
	}
	c.JSON(http.StatusOK, save)
}

// GetConfigHistory godoc
// @Summary      List saved configurations
// @Tags         config
// @Produce      json
// @Param        symbol  path   string  true   "Trading pair (e.g., BTCUSDT)"
// @Param        limit   query  int     false  "Number of saves (default 20, max 100)"  default(20)
// @Success      200  {object}  map[string]interface{}
// @Failure      503  {object}  map[string]string
// @Router       /api/config/{symbol}/history [get]
func (h *Handler) GetConfigHistory(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-config-history")
	defer span.End()

	symbol, ok := h.formSymbol(c)
	if !ok {
		return
	}

	limit := 20
	if l := c.Query("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	saves, err := h.forms.History(ctx, symbol, limit)
	if err != nil {
		h.formError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "saves": saves})
}

func (h *Handler) formSymbol(c *gin.Context) (string, bool) {
	symbol := strings.ToUpper(strings.TrimSpace(c.Param("symbol")))
	if !h.supported(symbol) {
		h.rejectSymbol(c, symbol)
		return "", false
	}
	return symbol, true
}

func (h *Handler) formError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrFormNotOpen), errors.Is(err, service.ErrNoDraft):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrHistoryDisabled):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	}
}
