// Package analytics derives dashboard data from stored sentiment rows. It
// never writes to the table.
package analytics

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mico/crypto-sentiment-analysis/internal/domain"
	"github.com/mico/crypto-sentiment-analysis/internal/sentiment"
)

type Source string

const (
	SourceAll         Source = "all"
	SourceCryptoPanic Source = "cryptopanic"
	SourceReddit      Source = "reddit"
)

var DefaultNoiseSymbols = []string{"OG", "U"}

// ParseSource accepts the API spelling of a source filter; empty means all.
func ParseSource(v string) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "all", "all sources":
		return SourceAll, nil
	case "cryptopanic":
		return SourceCryptoPanic, nil
	case "reddit":
		return SourceReddit, nil
	}
	return "", fmt.Errorf("unknown source %q", v)
}

// Row is a stored record with its analytics category and split coin list.
type Row struct {
	domain.PersistedRecord
	Category sentiment.Category
	Coins    []string
}

func Prepare(records []domain.PersistedRecord, c sentiment.AnalyticsClassifier) []Row {
	rows := make([]Row, 0, len(records))
	for _, r := range records {
		r.PublishedAt = r.PublishedAt.UTC()
		rows = append(rows, Row{
			PersistedRecord: r,
			Category:        c.Classify(r.Sentiment),
			Coins:           r.CoinList(),
		})
	}
	return rows
}

// isNewsDomain decides what counts as aggregator news everywhere in the read
// side: the news domain exactly, or no domain at all.
func isNewsDomain(d string) bool {
	d = strings.TrimSpace(d)
	return d == "" || d == domain.NewsDomain
}

func FilterSource(rows []Row, src Source) []Row {
	if src == SourceAll || src == "" {
		return rows
	}
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		switch src {
		case SourceCryptoPanic:
			if isNewsDomain(r.Domain) {
				out = append(out, r)
			}
		case SourceReddit:
			if r.Domain == domain.RedditDomain {
				out = append(out, r)
			}
		}
	}
	return out
}

// FilterDateRange keeps rows whose UTC calendar date lies in [from, to].
// A zero bound is open.
func FilterDateRange(rows []Row, from, to time.Time) []Row {
	if from.IsZero() && to.IsZero() {
		return rows
	}
	fromDay, toDay := truncateDay(from), truncateDay(to)
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		day := truncateDay(r.PublishedAt)
		if !from.IsZero() && day.Before(fromDay) {
			continue
		}
		if !to.IsZero() && day.After(toDay) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func truncateDay(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

type CoinCount struct {
	Symbol string `json:"symbol"`
	Count  int    `json:"count"`
}

func noiseSet(noise []string) map[string]struct{} {
	set := make(map[string]struct{}, len(noise))
	for _, n := range noise {
		set[strings.ToUpper(strings.TrimSpace(n))] = struct{}{}
	}
	return set
}

// CoinMentions counts coin mentions across rows, most mentioned first.
// Ties are ordered by symbol.
func CoinMentions(rows []Row, noise []string) []CoinCount {
	skip := noiseSet(noise)
	counts := make(map[string]int)
	for _, r := range rows {
		for _, c := range r.Coins {
			if _, ok := skip[c]; ok {
				continue
			}
			counts[c]++
		}
	}
	out := make([]CoinCount, 0, len(counts))
	for sym, n := range counts {
		out = append(out, CoinCount{Symbol: sym, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

type CoinSentiment struct {
	Symbol   string `json:"symbol"`
	Positive int    `json:"positive_count"`
	Neutral  int    `json:"neutral_count"`
	Negative int    `json:"negative_count"`
	Total    int    `json:"total"`
}

// CoinSentiments tallies categories per coin, highest total first.
func CoinSentiments(rows []Row, noise []string) []CoinSentiment {
	skip := noiseSet(noise)
	byCoin := make(map[string]*CoinSentiment)
	for _, r := range rows {
		for _, c := range uniqueCoins(r.Coins) {
			if _, ok := skip[c]; ok {
				continue
			}
			cs := byCoin[c]
			if cs == nil {
				cs = &CoinSentiment{Symbol: c}
				byCoin[c] = cs
			}
			switch r.Category {
			case sentiment.Positive:
				cs.Positive++
			case sentiment.Negative:
				cs.Negative++
			default:
				cs.Neutral++
			}
			cs.Total++
		}
	}
	out := make([]CoinSentiment, 0, len(byCoin))
	for _, cs := range byCoin {
		out = append(out, *cs)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

func uniqueCoins(list []string) []string {
	if len(list) < 2 {
		return list
	}
	seen := make(map[string]struct{}, len(list))
	out := make([]string, 0, len(list))
	for _, c := range list {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// TopBy returns up to n symbols ordered by metric, descending.
func TopBy(list []CoinSentiment, n int, metric func(CoinSentiment) int) []string {
	sorted := append([]CoinSentiment(nil), list...)
	sort.SliceStable(sorted, func(i, j int) bool { return metric(sorted[i]) > metric(sorted[j]) })
	if n > 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	out := make([]string, 0, len(sorted))
	for _, cs := range sorted {
		out = append(out, cs.Symbol)
	}
	return out
}

func CategoryCounts(rows []Row) map[sentiment.Category]int {
	out := make(map[sentiment.Category]int, len(sentiment.Categories))
	for _, c := range sentiment.Categories {
		out[c] = 0
	}
	for _, r := range rows {
		out[r.Category]++
	}
	return out
}

type HourlyPoint struct {
	Hour  time.Time `json:"hour"`
	Count int       `json:"count"`
}

// Hourly builds one series per category covering the 24 hours before that
// category's latest hour. Hours without rows inside the covered span are
// zero-filled.
func Hourly(rows []Row) map[sentiment.Category][]HourlyPoint {
	buckets := make(map[sentiment.Category]map[time.Time]int)
	for _, r := range rows {
		hour := r.PublishedAt.UTC().Truncate(time.Hour)
		if buckets[r.Category] == nil {
			buckets[r.Category] = make(map[time.Time]int)
		}
		buckets[r.Category][hour]++
	}

	out := make(map[sentiment.Category][]HourlyPoint, len(sentiment.Categories))
	for _, cat := range sentiment.Categories {
		counts := buckets[cat]
		if len(counts) == 0 {
			out[cat] = []HourlyPoint{}
			continue
		}
		var maxHour time.Time
		for h := range counts {
			if h.After(maxHour) {
				maxHour = h
			}
		}
		windowStart := maxHour.Add(-24 * time.Hour)
		minHour := maxHour
		for h := range counts {
			if !h.Before(windowStart) && h.Before(minHour) {
				minHour = h
			}
		}
		series := make([]HourlyPoint, 0, int(maxHour.Sub(minHour)/time.Hour)+1)
		for h := minHour; !h.After(maxHour); h = h.Add(time.Hour) {
			series = append(series, HourlyPoint{Hour: h, Count: counts[h]})
		}
		out[cat] = series
	}
	return out
}

const newsClickURL = "https://cryptopanic.com/news/click/%s/"

// ArticleLink resolves the URL shown for a record. Aggregator rows and rows
// without a domain link through the aggregator's click endpoint.
func ArticleLink(r domain.PersistedRecord) string {
	if isNewsDomain(r.Domain) {
		return fmt.Sprintf(newsClickURL, strings.TrimPrefix(r.ID, domain.NewsIDPrefix))
	}
	return r.URL
}

type Article struct {
	ID          string             `json:"id"`
	Title       string             `json:"title"`
	URL         string             `json:"url"`
	Domain      string             `json:"domain"`
	Coins       []string           `json:"coins"`
	Category    sentiment.Category `json:"category"`
	Sentiment   float64            `json:"sentiment"`
	PublishedAt time.Time          `json:"published_at"`
}

// Articles lists rows mentioning coin (all rows when coin is empty) in the
// given category (all when empty), newest first.
func Articles(rows []Row, coin string, category sentiment.Category) []Article {
	coin = strings.ToUpper(strings.TrimSpace(coin))
	out := make([]Article, 0)
	for _, r := range rows {
		if category != "" && r.Category != category {
			continue
		}
		if coin != "" && !containsCoin(r.Coins, coin) {
			continue
		}
		out = append(out, Article{
			ID:          r.ID,
			Title:       r.Title,
			URL:         ArticleLink(r.PersistedRecord),
			Domain:      r.Domain,
			Coins:       r.Coins,
			Category:    r.Category,
			Sentiment:   r.Sentiment,
			PublishedAt: r.PublishedAt,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PublishedAt.After(out[j].PublishedAt) })
	return out
}

func containsCoin(list []string, coin string) bool {
	for _, c := range list {
		if c == coin {
			return true
		}
	}
	return false
}
