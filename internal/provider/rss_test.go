package provider

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/trace"
)

const feedBody = `<?xml version="1.0"?><rss version="2.0"><channel><title>CryptoPanic News</title>
<item><title>ETH adoption rises</title><link>https://cryptopanic.com/news/20731495/eth-adoption-rises</link><description><![CDATA[<p>Ethereum growth continues</p>]]></description><guid>https://cryptopanic.com/news/20731495/eth-adoption-rises</guid><pubDate>Fri, 13 Feb 2026 10:00:00 +0000</pubDate><author>Reporter</author></item>
<item><title>Second story</title><link>https://other.example/story</link><guid>guid-2</guid><pubDate>Fri, 13 Feb 2026 11:00:00 +0000</pubDate></item>
<item><title></title><link>https://other.example/untitled</link></item>
<item><title>Third story</title><guid>guid-3</guid></item>
</channel></rss>`

func newTestNewsProvider(rt roundTripFunc) *NewsProvider {
	p := NewNewsProvider(trace.NewNoopTracerProvider().Tracer("test"), "", time.Second)
	p.client = &http.Client{Transport: rt}
	p.now = func() time.Time { return time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC) }
	return p
}

func TestNewsList(t *testing.T) {
	p := newTestNewsProvider(func(req *http.Request) (*http.Response, error) {
		if req.URL.String() != "https://cryptopanic.com/news/rss/" {
			t.Fatalf("unexpected url: %s", req.URL)
		}
		return jsonResponse(http.StatusOK, feedBody), nil
	})

	items, err := p.List(context.Background(), "https://cryptopanic.com/news/rss/", Query{Limit: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}

	first := items[0]
	if first.NativeID != "20731495" || first.IDPrefix != "CP_" || first.Domain != "cryptopanic.com" {
		t.Fatalf("unexpected ids: %+v", first)
	}
	if first.Body != "Ethereum growth continues" {
		t.Fatalf("expected html stripped body, got %q", first.Body)
	}
	if !first.IsSelf || first.Channel != "CryptoPanic News" || first.Author != "Reporter" {
		t.Fatalf("unexpected item: %+v", first)
	}
	if got := first.PublishedAt(); !got.Equal(time.Date(2026, 2, 13, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected published time: %v", got)
	}

	if items[1].NativeID != "guid-2" {
		t.Fatalf("expected guid fallback, got %q", items[1].NativeID)
	}
	if got := items[2].PublishedAt(); !got.Equal(time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("missing pubDate should fall back to now, got %v", got)
	}
}

func TestNewsListHonorsLimit(t *testing.T) {
	p := newTestNewsProvider(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, feedBody), nil
	})
	items, err := p.List(context.Background(), "https://cryptopanic.com/news/rss/", Query{Limit: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
}

func TestNewsListStatusError(t *testing.T) {
	p := newTestNewsProvider(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusBadGateway, "upstream down"), nil
	})
	if _, err := p.List(context.Background(), "https://cryptopanic.com/news/rss/", Query{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewsNativeIDHashFallback(t *testing.T) {
	ts := time.Date(2026, 2, 13, 10, 0, 0, 0, time.UTC)
	a := newsNativeID(rssItem{Title: "same"}, ts)
	b := newsNativeID(rssItem{Title: "same"}, ts)
	if a == "" || a != b || len(a) != 40 {
		t.Fatalf("expected stable sha1 id, got %q and %q", a, b)
	}
}

func TestNewsNativeIDLongGUIDsStayDistinct(t *testing.T) {
	prefix := "https://feeds.example/item?ref=" + strings.Repeat("x", 300)
	a := newsNativeID(rssItem{GUID: prefix + "-a"}, time.Time{})
	b := newsNativeID(rssItem{GUID: prefix + "-b"}, time.Time{})
	if a == b {
		t.Fatal("guids sharing a long prefix must not collide")
	}
	if len(a) != 40 || a != newsNativeID(rssItem{GUID: prefix + "-a"}, time.Time{}) {
		t.Fatalf("expected a stable hash for an over-long guid, got %q", a)
	}

	short := newsNativeID(rssItem{GUID: " guid-2 "}, time.Time{})
	if short != "guid-2" {
		t.Fatalf("short guids are kept as is, got %q", short)
	}
	link := newsNativeID(rssItem{Link: prefix}, time.Time{})
	if len(link) != 40 {
		t.Fatalf("over-long links are hashed too, got %q", link)
	}
}

func TestSanitizeTextKeepsRunesWhole(t *testing.T) {
	got := sanitizeText("  Ξthereum   ünd  €uro ", 1)
	if got != "" {
		t.Fatalf("a cut inside the first rune drops it, got %q", got)
	}
	got = sanitizeText("aé€", 4)
	if got != "aé" || !utf8.ValidString(got) {
		t.Fatalf("expected aé, got %q", got)
	}
	got = sanitizeText("  many   spaces\there ", 0)
	if got != "many spaces here" {
		t.Fatalf("unexpected whitespace folding: %q", got)
	}
	long := strings.Repeat("日本", 100)
	if got := sanitizeText(long, 120); !utf8.ValidString(got) || len(got) > 120 || len(got)%3 != 0 {
		t.Fatalf("truncation split a rune: %d bytes", len(got))
	}
}

func TestParseRSSDate(t *testing.T) {
	if parseRSSDate("not a date") != (time.Time{}) {
		t.Fatal("expected zero time for invalid date")
	}
	got := parseRSSDate("2026-02-13T10:00:00+02:00")
	if !got.Equal(time.Date(2026, 2, 13, 8, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected time: %v", got)
	}
}
