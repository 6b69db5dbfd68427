package analytics

import (
	"strings"
	"testing"
	"time"

	"github.com/mico/crypto-sentiment-analysis/internal/domain"
	"github.com/mico/crypto-sentiment-analysis/internal/sentiment"
)

var base = time.Date(2025, 4, 14, 12, 30, 0, 0, time.UTC)

func rec(id, dom, coins string, score float64, at time.Time) domain.PersistedRecord {
	return domain.PersistedRecord{
		ID:          id,
		Domain:      dom,
		Title:       "title " + id,
		Coins:       coins,
		PublishedAt: at,
		URL:         "https://www.reddit.com/r/x/" + id,
		Sentiment:   score,
	}
}

func sampleRows() []Row {
	return Prepare([]domain.PersistedRecord{
		rec("RD_1", "reddit.com", "BTC,ETH", 0.8, base),
		rec("RD_2", "reddit.com", "BTC", 0.1, base.Add(-2*time.Hour)),
		rec("RD_3", "reddit.com", "ETH,OG", -0.7, base.Add(-26*time.Hour)),
		rec("CP_4", "cryptopanic.com", "BTC,U", 0.3, base.Add(-time.Hour)),
		rec("CP_5", "", "SOL", -0.3, base.Add(-48*time.Hour)),
		rec("RD_6", "reddit.com", "", 0.31, base),
	}, sentiment.DefaultAnalyticsClassifier())
}

func TestPrepareUsesAnalyticsBins(t *testing.T) {
	rows := sampleRows()
	want := []sentiment.Category{
		sentiment.Positive, sentiment.Neutral, sentiment.Negative,
		sentiment.Neutral, sentiment.Negative, sentiment.Positive,
	}
	for i, r := range rows {
		if r.Category != want[i] {
			t.Fatalf("row %s: expected %s, got %s", r.ID, want[i], r.Category)
		}
	}
	if len(rows[0].Coins) != 2 || rows[5].Coins != nil {
		t.Fatalf("unexpected coin split: %v / %v", rows[0].Coins, rows[5].Coins)
	}
}

func TestParseSource(t *testing.T) {
	cases := map[string]Source{"": SourceAll, "All Sources": SourceAll, "CryptoPanic": SourceCryptoPanic, "reddit": SourceReddit}
	for in, want := range cases {
		got, err := ParseSource(in)
		if err != nil || got != want {
			t.Fatalf("ParseSource(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseSource("twitter"); err == nil {
		t.Fatal("expected error for unknown source")
	}
}

func TestFilterSource(t *testing.T) {
	rows := sampleRows()
	if got := FilterSource(rows, SourceAll); len(got) != 6 {
		t.Fatalf("all: expected 6, got %d", len(got))
	}
	news := FilterSource(rows, SourceCryptoPanic)
	if len(news) != 2 || news[0].ID != "CP_4" || news[1].ID != "CP_5" {
		t.Fatalf("cryptopanic filter must include empty domains, got %+v", news)
	}
	if got := FilterSource(rows, SourceReddit); len(got) != 4 {
		t.Fatalf("reddit: expected 4, got %d", len(got))
	}
}

func TestNewsSourceAndLinkAgree(t *testing.T) {
	rows := []Row{
		{PersistedRecord: rec("CP_1", "cryptopanic.com", "", 0, base)},
		{PersistedRecord: rec("CP_2", " ", "", 0, base)},
		{PersistedRecord: rec("RD_3", "news.cryptopanic.io", "", 0, base)},
		{PersistedRecord: rec("RD_4", "reddit.com", "", 0, base)},
	}
	news := FilterSource(rows, SourceCryptoPanic)
	if len(news) != 2 || news[0].ID != "CP_1" || news[1].ID != "CP_2" {
		t.Fatalf("unexpected news rows: %+v", news)
	}
	for _, r := range rows {
		inNews := false
		for _, n := range news {
			inNews = inNews || n.ID == r.ID
		}
		clickLink := strings.Contains(ArticleLink(r.PersistedRecord), "/news/click/")
		if inNews != clickLink {
			t.Fatalf("%s: news filter %v but click link %v", r.ID, inNews, clickLink)
		}
	}
}

func TestFilterDateRangeIsInclusiveByDate(t *testing.T) {
	rows := sampleRows()
	day := time.Date(2025, 4, 14, 0, 0, 0, 0, time.UTC)

	got := FilterDateRange(rows, day, day)
	if len(got) != 4 {
		t.Fatalf("expected 4 rows on 2025-04-14, got %d", len(got))
	}
	got = FilterDateRange(rows, day.Add(-24*time.Hour), time.Time{})
	if len(got) != 5 {
		t.Fatalf("expected 5 rows since 2025-04-13, got %d", len(got))
	}
}

func TestCoinMentionsExcludesNoise(t *testing.T) {
	mentions := CoinMentions(sampleRows(), DefaultNoiseSymbols)
	var parts []string
	for _, m := range mentions {
		parts = append(parts, m.Symbol)
	}
	if strings.Join(parts, ",") != "BTC,ETH,SOL" {
		t.Fatalf("unexpected mention order: %v", parts)
	}
	if mentions[0].Count != 3 || mentions[1].Count != 2 {
		t.Fatalf("unexpected counts: %+v", mentions)
	}
}

func TestCoinSentiments(t *testing.T) {
	list := CoinSentiments(sampleRows(), DefaultNoiseSymbols)
	if len(list) != 3 {
		t.Fatalf("expected 3 coins, got %d", len(list))
	}
	btc := list[0]
	if btc.Symbol != "BTC" || btc.Positive != 1 || btc.Neutral != 2 || btc.Negative != 0 || btc.Total != 3 {
		t.Fatalf("unexpected BTC tally: %+v", btc)
	}
	eth := list[1]
	if eth.Symbol != "ETH" || eth.Positive != 1 || eth.Negative != 1 {
		t.Fatalf("unexpected ETH tally: %+v", eth)
	}

	neg := TopBy(list, 2, func(c CoinSentiment) int { return c.Negative })
	if len(neg) != 2 || neg[0] != "ETH" || neg[1] != "SOL" {
		t.Fatalf("unexpected top negative: %v", neg)
	}
}

func TestCoinSentimentsDoesNotMatchSubstrings(t *testing.T) {
	rows := Prepare([]domain.PersistedRecord{rec("RD_1", "reddit.com", "ETHW", 0.9, base)}, sentiment.DefaultAnalyticsClassifier())
	for _, cs := range CoinSentiments(rows, nil) {
		if cs.Symbol == "ETH" {
			t.Fatal("ETHW must not count towards ETH")
		}
	}
	if got := Articles(rows, "ETH", ""); len(got) != 0 {
		t.Fatalf("expected no ETH articles, got %d", len(got))
	}
}

func TestHourlyZeroFillsWithinWindow(t *testing.T) {
	hourly := Hourly(sampleRows())

	pos := hourly[sentiment.Positive]
	if len(pos) != 1 || pos[0].Count != 2 || !pos[0].Hour.Equal(base.Truncate(time.Hour)) {
		t.Fatalf("unexpected positive series: %+v", pos)
	}

	neutral := hourly[sentiment.Neutral]
	if len(neutral) != 2 {
		t.Fatalf("expected 2 neutral hours, got %+v", neutral)
	}
	if neutral[0].Count != 1 || neutral[1].Count != 1 {
		t.Fatalf("unexpected neutral counts: %+v", neutral)
	}

	// the two negative rows are 22h apart, so both fall inside the window
	neg := hourly[sentiment.Negative]
	if len(neg) != 23 {
		t.Fatalf("expected 23 negative hours, got %d", len(neg))
	}
	zeros := 0
	for _, p := range neg {
		if p.Count == 0 {
			zeros++
		}
	}
	if zeros != 21 || neg[0].Count != 1 || neg[22].Count != 1 {
		t.Fatalf("unexpected zero fill: %+v", neg)
	}
}

func TestHourlyDropsHoursOutsideWindow(t *testing.T) {
	rows := Prepare([]domain.PersistedRecord{
		rec("RD_1", "reddit.com", "BTC", 0.9, base),
		rec("RD_2", "reddit.com", "BTC", 0.9, base.Add(-30*time.Hour)),
	}, sentiment.DefaultAnalyticsClassifier())
	pos := Hourly(rows)[sentiment.Positive]
	if len(pos) != 1 {
		t.Fatalf("expected only the latest hour, got %+v", pos)
	}
	if got := Hourly(nil)[sentiment.Negative]; got == nil || len(got) != 0 {
		t.Fatalf("empty input should give empty series, got %+v", got)
	}
}

func TestArticleLink(t *testing.T) {
	cases := []struct {
		rec  domain.PersistedRecord
		want string
	}{
		{rec("CP_20731495", "cryptopanic.com", "", 0, base), "https://cryptopanic.com/news/click/20731495/"},
		{rec("CP_77", "", "", 0, base), "https://cryptopanic.com/news/click/77/"},
		{rec("RD_abc", "reddit.com", "", 0, base), "https://www.reddit.com/r/x/RD_abc"},
	}
	for _, tc := range cases {
		if got := ArticleLink(tc.rec); got != tc.want {
			t.Fatalf("ArticleLink(%s) = %q, want %q", tc.rec.ID, got, tc.want)
		}
	}
}

func TestArticlesNewestFirst(t *testing.T) {
	got := Articles(sampleRows(), "btc", "")
	if len(got) != 3 {
		t.Fatalf("expected 3 BTC articles, got %d", len(got))
	}
	if got[0].ID != "RD_1" || got[1].ID != "CP_4" || got[2].ID != "RD_2" {
		t.Fatalf("unexpected order: %s %s %s", got[0].ID, got[1].ID, got[2].ID)
	}
	if got[1].URL != "https://cryptopanic.com/news/click/4/" {
		t.Fatalf("unexpected news link: %s", got[1].URL)
	}

	neg := Articles(sampleRows(), "", sentiment.Negative)
	if len(neg) != 2 {
		t.Fatalf("expected 2 negative articles, got %d", len(neg))
	}
}

func TestCategoryCountsIncludesEmptyCategories(t *testing.T) {
	counts := CategoryCounts(nil)
	if len(counts) != 3 {
		t.Fatalf("expected all categories, got %v", counts)
	}
	counts = CategoryCounts(sampleRows())
	if counts[sentiment.Positive] != 2 || counts[sentiment.Neutral] != 2 || counts[sentiment.Negative] != 2 {
		t.Fatalf("unexpected counts: %v", counts)
	}
}
