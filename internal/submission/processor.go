// Package submission turns raw source items into scored, coin-tagged records.
package submission

import (
	"context"
	"fmt"
	"strings"

	"github.com/mico/crypto-sentiment-analysis/internal/coins"
	"github.com/mico/crypto-sentiment-analysis/internal/domain"
	"github.com/mico/crypto-sentiment-analysis/internal/sentiment"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const defaultPermalinkBase = "https://www.reddit.com"

type Processor struct {
	tracer        trace.Tracer
	scorer        sentiment.PolarityScorer
	table         *coins.Table
	permalinkBase string
}

func NewProcessor(tracer trace.Tracer, scorer sentiment.PolarityScorer, table *coins.Table) *Processor {
	if scorer == nil {
		scorer = sentiment.NewVaderScorer()
	}
	return &Processor{
		tracer:        tracer,
		scorer:        scorer,
		table:         table,
		permalinkBase: defaultPermalinkBase,
	}
}

// Process scores "title body", tags coins mentioned in title and body and
// assembles the record. The score is kept continuous.
func (p *Processor) Process(ctx context.Context, item domain.RawItem) (domain.ProcessedSubmission, error) {
	ctx, span := p.tracer.Start(ctx, "submission.process")
	defer span.End()
	span.SetAttributes(attribute.String("item.id", item.NativeID))

	fullText := item.Title + " " + item.Body
	score, err := p.scorer.Compound(ctx, fullText)
	if err != nil {
		return domain.ProcessedSubmission{}, fmt.Errorf("score %s%s: %w", item.IDPrefix, item.NativeID, err)
	}
	if score > 1 {
		score = 1
	} else if score < -1 {
		score = -1
	}

	return domain.ProcessedSubmission{
		ID:          item.IDPrefix + item.NativeID,
		Domain:      item.Domain,
		Title:       item.Title,
		Coins:       coins.ExtractMentionedCoins(item.Title, item.Body, p.table),
		PublishedAt: item.PublishedAt(),
		URL:         p.resolveURL(item),
		Sentiment:   score,
	}, nil
}

func (p *Processor) resolveURL(item domain.RawItem) string {
	permalink := strings.TrimSpace(item.Permalink)
	switch {
	case permalink == "":
		return strings.TrimSpace(item.URL)
	case strings.HasPrefix(permalink, "http://"), strings.HasPrefix(permalink, "https://"):
		return permalink
	default:
		return strings.TrimRight(p.permalinkBase, "/") + permalink
	}
}
