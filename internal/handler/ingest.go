package handler

import (
	"errors"
	"net/http"

	"github.com/mico/crypto-sentiment-analysis/internal/ingest"
	"github.com/mico/crypto-sentiment-analysis/internal/storage"

	"github.com/gin-gonic/gin"
)

// TriggerIngestRun godoc
// @Summary      Run ingestion now
// @Description  Fetches every configured source once and stores new records
// @Tags         ingest
// @Produce      json
// @Security     ApiKeyAuth
// @Success      200  {object}  map[string]interface{}
// @Failure      409  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/ingest/run [post]
func (h *Handler) TriggerIngestRun(c *gin.Context) {
	if h.runner == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "ingestion is not configured"})
		return
	}
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.trigger-ingest-run")
	defer span.End()

	result, err := h.runner.RunOnce(ctx)
	if errors.Is(err, ingest.ErrRunInProgress) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, storage.ErrPersistenceConflict) {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": err.Error(), "run_id": result.RunID})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"run_id":   result.RunID,
		"summary":  result.Summary(),
		"fetched":  result.Fetched,
		"unique":   result.Unique,
		"inserted": result.Inserted,
		"positive": result.Positive,
		"neutral":  result.Neutral,
		"negative": result.Negative,
		"errors":   result.Errors,
	})
}
