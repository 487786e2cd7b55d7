package handler

import (
	"errors"
	"net/http"

	"bot-dashboard/internal/domain"
	"bot-dashboard/internal/service"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// GetSymbols godoc
// @Summary      List dashboard symbols
// @Tags         state
// @Produce      json
// @Success      200  {object}  map[string][]string
// @Router       /api/symbols [get]
func (h *Handler) GetSymbols(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"symbols": h.dashboard.Symbols()})
}

// GetStates godoc
// @Summary      Get every synchronized state
// @Description  Returns the resolved state of every dashboard subscription
// @Tags         state
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /api/state [get]
func (h *Handler) GetStates(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-states")
	defer span.End()

	c.JSON(http.StatusOK, gin.H{"states": h.dashboard.States(ctx)})
}

// GetState godoc
// @Summary      Get one synchronized state
// @Description  Returns value, origin, staleness and last error for a resource and symbol
// @Tags         state
// @Produce      json
// @Param        resource  path  string  true  "Resource (ticker, analysis, status, config)"
// @Param        symbol    path  string  true  "Trading pair (e.g., BTCUSDT)"
// @Success      200  {object}  domain.ResolvedState
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/state/{resource}/{symbol} [get]
func (h *Handler) GetState(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-state")
	defer span.End()

	key, ok := h.stateKey(c)
	if !ok {
		return
	}
	span.SetAttributes(attribute.String("key", key.String()))

	state, err := h.dashboard.State(ctx, key)
	if err != nil {
		h.stateError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// RefreshState godoc
// @Summary      Force a refresh
// @Description  Resolves the state immediately without resetting the polling timer
// @Tags         state
// @Produce      json
// @Param        resource  path  string  true  "Resource (ticker, analysis, status)"
// @Param        symbol    path  string  true  "Trading pair (e.g., BTCUSDT)"
// @Success      200  {object}  domain.ResolvedState
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/state/{resource}/{symbol}/refresh [post]
func (h *Handler) RefreshState(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.refresh-state")
	defer span.End()

	key, ok := h.stateKey(c)
	if !ok {
		return
	}
	span.SetAttributes(attribute.String("key", key.String()))

	state, err := h.dashboard.Refresh(ctx, key)
	if err != nil {
		h.stateError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (h *Handler) stateKey(c *gin.Context) (domain.Key, bool) {
	key := domain.NewKey(domain.Resource(c.Param("resource")), c.Param("symbol"))
	if !key.Resource.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported resource: " + string(key.Resource)})
		return key, false
	}
	return key, true
}

func (h *Handler) stateError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrUnknownKey) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
