package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mico/crypto-sentiment-analysis/internal/analytics"
	"github.com/mico/crypto-sentiment-analysis/internal/sentiment"

	"github.com/gin-gonic/gin"
)

const (
	dateLayout          = "2006-01-02"
	defaultArticleLimit = 50
	maxArticleLimit     = 500
)

func parseQuery(c *gin.Context) (analytics.Query, error) {
	src, err := analytics.ParseSource(c.Query("source"))
	if err != nil {
		return analytics.Query{}, err
	}
	q := analytics.Query{Source: src}
	if v := strings.TrimSpace(c.Query("from")); v != "" {
		if q.From, err = time.Parse(dateLayout, v); err != nil {
			return analytics.Query{}, fmt.Errorf("invalid from date %q, expected YYYY-MM-DD", v)
		}
	}
	if v := strings.TrimSpace(c.Query("to")); v != "" {
		if q.To, err = time.Parse(dateLayout, v); err != nil {
			return analytics.Query{}, fmt.Errorf("invalid to date %q, expected YYYY-MM-DD", v)
		}
	}
	if !q.From.IsZero() && !q.To.IsZero() && q.To.Before(q.From) {
		return analytics.Query{}, fmt.Errorf("to must not be before from")
	}
	return q, nil
}

func parseCategory(v string) (sentiment.Category, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "":
		return "", nil
	case "positive":
		return sentiment.Positive, nil
	case "neutral":
		return sentiment.Neutral, nil
	case "negative":
		return sentiment.Negative, nil
	}
	return "", fmt.Errorf("unknown category %q", v)
}

// GetSummary godoc
// @Summary      Sentiment dashboard summary
// @Description  Category counts, coin mentions, per-coin sentiment and hourly series
// @Tags         sentiment
// @Produce      json
// @Param        source  query     string  false  "all, cryptopanic or reddit"
// @Param        from    query     string  false  "Start date (YYYY-MM-DD, inclusive)"
// @Param        to      query     string  false  "End date (YYYY-MM-DD, inclusive)"
// @Success      200     {object}  analytics.Summary
// @Failure      400     {object}  map[string]string
// @Failure      500     {object}  map[string]string
// @Router       /api/sentiment/summary [get]
func (h *Handler) GetSummary(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-summary")
	defer span.End()

	q, err := parseQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	summary, err := h.analytics.Summary(ctx, q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}

// GetHourly godoc
// @Summary      Hourly article counts
// @Description  Per-category article counts for the 24 hours before each category's latest article
// @Tags         sentiment
// @Produce      json
// @Param        source  query     string  false  "all, cryptopanic or reddit"
// @Success      200     {object}  map[string]interface{}
// @Failure      400     {object}  map[string]string
// @Router       /api/sentiment/hourly [get]
func (h *Handler) GetHourly(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-hourly")
	defer span.End()

	q, err := parseQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	summary, err := h.analytics.Summary(ctx, q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"source": summary.Source, "hourly": summary.Hourly})
}

// GetCoin godoc
// @Summary      Sentiment for one coin
// @Tags         sentiment
// @Produce      json
// @Param        symbol  path      string  true   "Coin symbol (e.g. BTC)"
// @Param        source  query     string  false  "all, cryptopanic or reddit"
// @Success      200     {object}  analytics.CoinSummary
// @Failure      400     {object}  map[string]string
// @Router       /api/sentiment/coins/{symbol} [get]
func (h *Handler) GetCoin(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-coin")
	defer span.End()

	q, err := parseQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	symbol := strings.ToUpper(strings.TrimSpace(c.Param("symbol")))
	out, err := h.analytics.Coin(ctx, symbol, q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, out)
}

// GetArticles godoc
// @Summary      List articles
// @Description  Articles newest first with resolved links, optionally filtered by coin and category
// @Tags         sentiment
// @Produce      json
// @Param        coin      query     string  false  "Coin symbol"
// @Param        category  query     string  false  "positive, neutral or negative"
// @Param        limit     query     int     false  "Maximum number of articles (default 50)"
// @Success      200       {object}  map[string]interface{}
// @Failure      400       {object}  map[string]string
// @Router       /api/articles [get]
func (h *Handler) GetArticles(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-articles")
	defer span.End()

	q, err := parseQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	category, err := parseCategory(c.Query("category"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	limit := defaultArticleLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxArticleLimit)
	}

	articles, err := h.analytics.Articles(ctx, q, c.Query("coin"), category, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"articles": articles, "count": len(articles)})
}
