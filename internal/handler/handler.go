package handler

import (
	"context"

	"github.com/mico/crypto-sentiment-analysis/internal/analytics"
	"github.com/mico/crypto-sentiment-analysis/internal/domain"
	"github.com/mico/crypto-sentiment-analysis/internal/sentiment"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

type AnalyticsReader interface {
	Summary(ctx context.Context, q analytics.Query) (*analytics.Summary, error)
	Coin(ctx context.Context, symbol string, q analytics.Query) (*analytics.CoinSummary, error)
	Articles(ctx context.Context, q analytics.Query, coin string, category sentiment.Category, limit int) ([]analytics.Article, error)
}

// IngestRunner is shared with the scheduled job so both see one in-flight
// run; see ingest.ExclusiveRunner.
type IngestRunner interface {
	RunOnce(ctx context.Context) (domain.RunResult, error)
	Running() bool
}

type Handler struct {
	tracer    trace.Tracer
	analytics AnalyticsReader
	runner    IngestRunner
	apiKey    string
}

func New(tracer trace.Tracer, analytics AnalyticsReader) *Handler {
	return &Handler{
		tracer:    tracer,
		analytics: analytics,
	}
}

// SetIngestRunner enables the manual run endpoint, guarded by apiKey when set.
func (h *Handler) SetIngestRunner(runner IngestRunner, apiKey string) {
	h.runner = runner
	h.apiKey = apiKey
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)

	api := r.Group("/api")
	api.GET("/sentiment/summary", h.GetSummary)
	api.GET("/sentiment/hourly", h.GetHourly)
	api.GET("/sentiment/coins/:symbol", h.GetCoin)
	api.GET("/articles", h.GetArticles)
	api.POST("/ingest/run", APIKeyAuth(h.apiKey), h.TriggerIngestRun)
}
