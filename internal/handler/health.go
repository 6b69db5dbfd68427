package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Health godoc
// @Summary      Health check
// @Description  Reports liveness and whether this instance can run ingestion
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) Health(c *gin.Context) {
	ingestion := "disabled"
	switch {
	case h.runner != nil && h.runner.Running():
		ingestion = "running"
	case h.runner != nil:
		ingestion = "idle"
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "ingestion": ingestion})
}
