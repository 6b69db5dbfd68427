package provider

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/mico/crypto-sentiment-analysis/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var newsIDPattern = regexp.MustCompile(`/news/(?:click/)?(\d+)`)

// NewsProvider reads an aggregator's RSS feeds. Each configured feed URL is
// one channel.
type NewsProvider struct {
	client   *http.Client
	tracer   trace.Tracer
	domain   string
	idPrefix string
	now      func() time.Time
}

func NewNewsProvider(tracer trace.Tracer, newsDomain string, timeout time.Duration) *NewsProvider {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	if newsDomain == "" {
		newsDomain = domain.NewsDomain
	}
	return &NewsProvider{
		client:   &http.Client{Timeout: timeout},
		tracer:   tracer,
		domain:   newsDomain,
		idPrefix: domain.NewsIDPrefix,
		now:      time.Now,
	}
}

type rssDocument struct {
	Channel struct {
		Title string    `xml:"title"`
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	GUID        string `xml:"guid"`
	PubDate     string `xml:"pubDate"`
	Creator     string `xml:"creator"`
	Author      string `xml:"author"`
}

// List fetches one feed. Sort and Term are ignored; Limit bounds the item count.
func (p *NewsProvider) List(ctx context.Context, feedURL string, q Query) ([]domain.RawItem, error) {
	ctx, span := p.tracer.Start(ctx, "news.list")
	defer span.End()

	feedURL = strings.TrimSpace(feedURL)
	if feedURL == "" {
		return nil, fmt.Errorf("feed url is required")
	}
	span.SetAttributes(attribute.String("news.feed", feedURL))
	maxItems := q.Limit
	if maxItems <= 0 {
		maxItems = 40
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/rss+xml, application/xml, text/xml")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{Service: "rss", Code: resp.StatusCode, Body: string(body)}
	}

	var doc rssDocument
	if err := xml.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode rss payload: %w", err)
	}

	channel := sanitizeText(doc.Channel.Title, 120)
	items := make([]domain.RawItem, 0, min(maxItems, len(doc.Channel.Items)))
	for _, row := range doc.Channel.Items {
		if len(items) >= maxItems {
			break
		}
		title := strings.TrimSpace(row.Title)
		if title == "" {
			continue
		}
		publishedAt := parseRSSDate(row.PubDate)
		if publishedAt.IsZero() {
			publishedAt = p.now().UTC()
		}
		author := sanitizeText(row.Creator, 120)
		if author == "" {
			author = sanitizeText(row.Author, 120)
		}
		link := strings.TrimSpace(row.Link)

		items = append(items, domain.RawItem{
			NativeID:   newsNativeID(row, publishedAt),
			IDPrefix:   p.idPrefix,
			Domain:     p.domain,
			Channel:    channel,
			Title:      title,
			Body:       sanitizeText(htmlStrip(row.Description), 0),
			IsSelf:     true,
			URL:        link,
			Author:     author,
			CreatedUTC: float64(publishedAt.Unix()),
		})
	}
	span.SetAttributes(attribute.Int("news.items", len(items)))
	return items, nil
}

const maxNativeIDLen = 250

// newsNativeID prefers the aggregator's numeric post id so links can be
// rebuilt from the stored id alone. GUIDs and links longer than
// maxNativeIDLen are hashed whole, never cut, so distinct ids stay distinct.
func newsNativeID(row rssItem, publishedAt time.Time) string {
	for _, candidate := range []string{row.Link, row.GUID} {
		if m := newsIDPattern.FindStringSubmatch(candidate); m != nil {
			return m[1]
		}
	}
	for _, candidate := range []string{row.GUID, row.Link} {
		id := sanitizeText(candidate, 0)
		if id == "" {
			continue
		}
		if len(id) > maxNativeIDLen {
			return sha1Hex(id)
		}
		return id
	}
	return sha1Hex(strings.TrimSpace(row.Title) + "|" + publishedAt.Format(time.RFC3339Nano))
}

func sha1Hex(s string) string {
	h := sha1.Sum([]byte(s))
	return hex.EncodeToString(h[:])
}

func parseRSSDate(v string) time.Time {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}
	}
	layouts := []string{time.RFC1123Z, time.RFC1123, time.RFC822Z, time.RFC822, time.RFC3339}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func htmlStrip(in string) string {
	if strings.TrimSpace(in) == "" {
		return ""
	}
	var b strings.Builder
	inside := false
	for _, r := range in {
		switch r {
		case '<':
			inside = true
			continue
		case '>':
			inside = false
			continue
		}
		if !inside {
			b.WriteRune(r)
		}
	}
	return b.String()
}
