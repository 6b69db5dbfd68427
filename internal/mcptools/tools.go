// Package mcptools exposes sentiment analytics and manual ingestion as
// Model Context Protocol tools.
package mcptools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mico/crypto-sentiment-analysis/internal/analytics"
	"github.com/mico/crypto-sentiment-analysis/internal/domain"
	"github.com/mico/crypto-sentiment-analysis/internal/logger"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const dateLayout = "2006-01-02"

type Analytics interface {
	Summary(ctx context.Context, q analytics.Query) (*analytics.Summary, error)
	Coin(ctx context.Context, symbol string, q analytics.Query) (*analytics.CoinSummary, error)
}

type IngestRunner interface {
	RunOnce(ctx context.Context) (domain.RunResult, error)
}

type FilterInput struct {
	Source string `json:"source,omitempty" jsonschema:"all, cryptopanic or reddit; defaults to all"`
	From   string `json:"from,omitempty" jsonschema:"inclusive start date, YYYY-MM-DD"`
	To     string `json:"to,omitempty" jsonschema:"inclusive end date, YYYY-MM-DD"`
}

type CoinSentimentInput struct {
	Symbol string `json:"symbol" jsonschema:"coin symbol such as BTC"`
	Source string `json:"source,omitempty" jsonschema:"all, cryptopanic or reddit; defaults to all"`
	From   string `json:"from,omitempty" jsonschema:"inclusive start date, YYYY-MM-DD"`
	To     string `json:"to,omitempty" jsonschema:"inclusive end date, YYYY-MM-DD"`
}

type CoinSentimentOutput struct {
	Symbol           string   `json:"symbol"`
	Positive         int      `json:"positive_count"`
	Neutral          int      `json:"neutral_count"`
	Negative         int      `json:"negative_count"`
	Total            int      `json:"total"`
	AverageSentiment float64  `json:"average_sentiment"`
	Headlines        []string `json:"headlines"`
}

type SummaryOutput struct {
	Total       int            `json:"total"`
	Categories  map[string]int `json:"categories"`
	TopMentions []string       `json:"top_mentions"`
	TopPositive []string       `json:"top_positive"`
	TopNegative []string       `json:"top_negative"`
}

type RunIngestionInput struct{}

type RunIngestionOutput struct {
	RunID    string   `json:"run_id"`
	Summary  string   `json:"summary"`
	Fetched  int      `json:"fetched"`
	Unique   int      `json:"unique"`
	Inserted int      `json:"inserted"`
	Errors   []string `json:"errors"`
}

type Tools struct {
	analytics Analytics
	runner    IngestRunner
	log       logger.Logger
}

func New(a Analytics, runner IngestRunner, log logger.Logger) *Tools {
	if log == nil {
		log = logger.Nop()
	}
	return &Tools{analytics: a, runner: runner, log: log}
}

// NewServer registers the tools on a fresh MCP server. run_ingestion is only
// offered when a runner is configured.
func (t *Tools) NewServer(version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "crypto-sentiment-analysis", Version: version}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "coin_sentiment",
		Description: "Positive, neutral and negative mention counts for one coin, plus its latest headlines.",
	}, t.CoinSentiment)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "sentiment_summary",
		Description: "Article totals per sentiment category and the most mentioned, most positive and most negative coins.",
	}, t.SentimentSummary)
	if t.runner != nil {
		mcp.AddTool(server, &mcp.Tool{
			Name:        "run_ingestion",
			Description: "Fetch every configured source once and store new records.",
		}, t.RunIngestion)
	}
	return server
}

func (t *Tools) CoinSentiment(ctx context.Context, _ *mcp.CallToolRequest, in CoinSentimentInput) (*mcp.CallToolResult, CoinSentimentOutput, error) {
	symbol := strings.ToUpper(strings.TrimSpace(in.Symbol))
	if symbol == "" {
		return nil, CoinSentimentOutput{}, fmt.Errorf("symbol is required")
	}
	q, err := FilterInput{Source: in.Source, From: in.From, To: in.To}.query()
	if err != nil {
		return nil, CoinSentimentOutput{}, err
	}
	s, err := t.analytics.Coin(ctx, symbol, q)
	if err != nil {
		return nil, CoinSentimentOutput{}, err
	}

	out := CoinSentimentOutput{
		Symbol:           s.Symbol,
		Positive:         s.Positive,
		Neutral:          s.Neutral,
		Negative:         s.Negative,
		Total:            s.Total,
		AverageSentiment: s.AverageSentiment,
		Headlines:        make([]string, 0, len(s.Latest)),
	}
	for _, a := range s.Latest {
		out.Headlines = append(out.Headlines, a.Title)
	}
	return nil, out, nil
}

func (t *Tools) SentimentSummary(ctx context.Context, _ *mcp.CallToolRequest, in FilterInput) (*mcp.CallToolResult, SummaryOutput, error) {
	q, err := in.query()
	if err != nil {
		return nil, SummaryOutput{}, err
	}
	s, err := t.analytics.Summary(ctx, q)
	if err != nil {
		return nil, SummaryOutput{}, err
	}

	out := SummaryOutput{
		Total:       s.Total,
		Categories:  make(map[string]int, len(s.Categories)),
		TopMentions: s.TopMentions,
		TopPositive: s.TopPositive,
		TopNegative: s.TopNegative,
	}
	for cat, n := range s.Categories {
		out.Categories[string(cat)] = n
	}
	return nil, out, nil
}

func (t *Tools) RunIngestion(ctx context.Context, _ *mcp.CallToolRequest, _ RunIngestionInput) (*mcp.CallToolResult, RunIngestionOutput, error) {
	if t.runner == nil {
		return nil, RunIngestionOutput{}, fmt.Errorf("ingestion is not configured")
	}
	result, err := t.runner.RunOnce(ctx)
	if err != nil {
		t.log.Error("mcp ingestion run failed", "run_id", result.RunID, "err", err)
		return nil, RunIngestionOutput{}, err
	}
	return nil, RunIngestionOutput{
		RunID:    result.RunID,
		Summary:  result.Summary(),
		Fetched:  result.Fetched,
		Unique:   result.Unique,
		Inserted: result.Inserted,
		Errors:   result.Errors,
	}, nil
}

func (in FilterInput) query() (analytics.Query, error) {
	src, err := analytics.ParseSource(in.Source)
	if err != nil {
		return analytics.Query{}, err
	}
	q := analytics.Query{Source: src}
	if in.From != "" {
		if q.From, err = time.Parse(dateLayout, in.From); err != nil {
			return analytics.Query{}, fmt.Errorf("invalid from date %q", in.From)
		}
	}
	if in.To != "" {
		if q.To, err = time.Parse(dateLayout, in.To); err != nil {
			return analytics.Query{}, fmt.Errorf("invalid to date %q", in.To)
		}
	}
	return q, nil
}
