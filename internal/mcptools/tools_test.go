package mcptools

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mico/crypto-sentiment-analysis/internal/analytics"
	"github.com/mico/crypto-sentiment-analysis/internal/domain"
	"github.com/mico/crypto-sentiment-analysis/internal/sentiment"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type analyticsStub struct {
	summary *analytics.Summary
	coin    *analytics.CoinSummary
	err     error
	query   analytics.Query
	symbol  string
}

func (s *analyticsStub) Summary(_ context.Context, q analytics.Query) (*analytics.Summary, error) {
	s.query = q
	return s.summary, s.err
}

func (s *analyticsStub) Coin(_ context.Context, symbol string, q analytics.Query) (*analytics.CoinSummary, error) {
	s.query = q
	s.symbol = symbol
	return s.coin, s.err
}

type runnerStub struct {
	result domain.RunResult
	err    error
}

func (r runnerStub) RunOnce(context.Context) (domain.RunResult, error) { return r.result, r.err }

func TestCoinSentiment(t *testing.T) {
	stub := &analyticsStub{coin: &analytics.CoinSummary{
		Symbol: "BTC", Positive: 2, Neutral: 1, Total: 3, AverageSentiment: 0.2,
		Latest: []analytics.Article{{Title: "BTC breaks out"}, {Title: "Bitcoin ETF flows"}},
	}}
	tools := New(stub, nil, nil)

	_, out, err := tools.CoinSentiment(context.Background(), nil, CoinSentimentInput{
		Symbol: " btc ",
		Source: "reddit",
		From:   "2024-01-02",
	})
	require.NoError(t, err)
	assert.Equal(t, "BTC", stub.symbol)
	assert.Equal(t, analytics.SourceReddit, stub.query.Source)
	assert.True(t, stub.query.From.Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 3, out.Total)
	assert.Equal(t, []string{"BTC breaks out", "Bitcoin ETF flows"}, out.Headlines)
}

func TestCoinSentimentValidation(t *testing.T) {
	tools := New(&analyticsStub{}, nil, nil)

	_, _, err := tools.CoinSentiment(context.Background(), nil, CoinSentimentInput{})
	assert.Error(t, err)

	_, _, err = tools.CoinSentiment(context.Background(), nil, CoinSentimentInput{
		Symbol: "BTC", Source: "twitter",
	})
	assert.Error(t, err)

	_, _, err = tools.CoinSentiment(context.Background(), nil, CoinSentimentInput{
		Symbol: "BTC", To: "yesterday",
	})
	assert.Error(t, err)
}

func TestSentimentSummary(t *testing.T) {
	stub := &analyticsStub{summary: &analytics.Summary{
		Total: 5,
		Categories: map[sentiment.Category]int{
			sentiment.Positive: 3, sentiment.Neutral: 1, sentiment.Negative: 1,
		},
		TopMentions: []string{"ETH"},
	}}
	_, out, err := New(stub, nil, nil).SentimentSummary(context.Background(), nil, FilterInput{})
	require.NoError(t, err)
	assert.Equal(t, analytics.SourceAll, stub.query.Source)
	assert.Equal(t, 5, out.Total)
	assert.Equal(t, map[string]int{"Positive": 3, "Neutral": 1, "Negative": 1}, out.Categories)
	assert.Equal(t, []string{"ETH"}, out.TopMentions)
}

func TestSentimentSummaryError(t *testing.T) {
	_, _, err := New(&analyticsStub{err: errors.New("db down")}, nil, nil).SentimentSummary(context.Background(), nil, FilterInput{})
	assert.EqualError(t, err, "db down")
}

func TestRunIngestion(t *testing.T) {
	runner := runnerStub{result: domain.RunResult{RunID: "r1", Fetched: 4, Unique: 3, Inserted: 2}}
	_, out, err := New(&analyticsStub{}, runner, nil).RunIngestion(context.Background(), nil, RunIngestionInput{})
	require.NoError(t, err)
	assert.Equal(t, "r1", out.RunID)
	assert.Equal(t, "fetched 4, unique 3, new 2", out.Summary)

	_, _, err = New(&analyticsStub{}, nil, nil).RunIngestion(context.Background(), nil, RunIngestionInput{})
	assert.Error(t, err)
}

func TestServerListsTools(t *testing.T) {
	ctx := context.Background()
	server := New(&analyticsStub{}, runnerStub{}, nil).NewServer("test")

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	serverSession, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	defer serverSession.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "test"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	defer session.Close()

	res, err := session.ListTools(ctx, nil)
	require.NoError(t, err)
	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"coin_sentiment", "sentiment_summary", "run_ingestion"}, names)
}
