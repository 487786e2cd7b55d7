package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Health godoc
// @Summary      Health check
// @Description  Returns the health status of the service and the number of tracked symbols
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /health [get]
func (h *Handler) Health(c *gin.Context) {
	body := gin.H{"status": "healthy"}
	if h.dashboard != nil {
		body["symbols"] = len(h.dashboard.Symbols())
	}
	c.JSON(http.StatusOK, body)
}
