package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mico/crypto-sentiment-analysis/internal/config"
	"github.com/mico/crypto-sentiment-analysis/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	redditOAuthURL    = "https://oauth.reddit.com"
	redditTokenURL    = "https://www.reddit.com/api/v1/access_token"
	defaultRedditSize = 100
)

type RedditOptions struct {
	BaseURL           string
	TokenURL          string
	Timeout           time.Duration
	RequestsPerMinute int
}

type RedditProvider struct {
	client    *http.Client
	baseURL   string
	userAgent string
	limiter   *RateLimiter
	tracer    trace.Tracer
}

// NewRedditProvider builds an application-only OAuth client. Tokens are
// fetched lazily on the first request and refreshed when they expire.
func NewRedditProvider(ctx context.Context, tracer trace.Tracer, creds config.Credentials, opts RedditOptions) *RedditProvider {
	if opts.BaseURL == "" {
		opts.BaseURL = redditOAuthURL
	}
	if opts.TokenURL == "" {
		opts.TokenURL = redditTokenURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.RequestsPerMinute <= 0 {
		opts.RequestsPerMinute = 60
	}

	base := &http.Client{
		Timeout:   opts.Timeout,
		Transport: &userAgentTransport{userAgent: creds.UserAgent, base: http.DefaultTransport},
	}
	cc := clientcredentials.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		TokenURL:     opts.TokenURL,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	client := cc.Client(context.WithValue(ctx, oauth2.HTTPClient, base))
	client.Timeout = opts.Timeout

	return &RedditProvider{
		client:    client,
		baseURL:   opts.BaseURL,
		userAgent: creds.UserAgent,
		limiter:   NewPerMinuteLimiter(opts.RequestsPerMinute),
		tracer:    tracer,
	}
}

// List runs one listing (hot/new/top/rising) or, when q.Term is set, one
// subreddit-restricted search.
func (p *RedditProvider) List(ctx context.Context, subreddit string, q Query) ([]domain.RawItem, error) {
	ctx, span := p.tracer.Start(ctx, "reddit.list")
	defer span.End()

	subreddit = strings.TrimSpace(subreddit)
	if subreddit == "" {
		return nil, fmt.Errorf("subreddit is required")
	}
	span.SetAttributes(
		attribute.String("reddit.subreddit", subreddit),
		attribute.String("reddit.sort", q.Sort),
		attribute.String("reddit.term", q.Term),
	)

	u, err := p.listingURL(subreddit, q)
	if err != nil {
		return nil, err
	}
	items, err := p.fetchListing(ctx, u)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("reddit.items", len(items)))
	return items, nil
}

// FetchSubmission loads a single submission by its base36 id.
func (p *RedditProvider) FetchSubmission(ctx context.Context, id string) (domain.RawItem, error) {
	ctx, span := p.tracer.Start(ctx, "reddit.fetch-submission")
	defer span.End()

	id = strings.TrimPrefix(strings.TrimSpace(id), domain.RedditIDPrefix)
	id = strings.TrimPrefix(id, "t3_")
	if id == "" {
		return domain.RawItem{}, fmt.Errorf("submission id is required")
	}

	u := fmt.Sprintf("%s/by_id/t3_%s?raw_json=1", strings.TrimRight(p.baseURL, "/"), url.PathEscape(id))
	items, err := p.fetchListing(ctx, u)
	if err != nil {
		return domain.RawItem{}, err
	}
	if len(items) == 0 {
		return domain.RawItem{}, fmt.Errorf("submission %s not found", id)
	}
	return items[0], nil
}

func (p *RedditProvider) listingURL(subreddit string, q Query) (string, error) {
	base := strings.TrimRight(p.baseURL, "/")
	limit := clampLimit(q.Limit, defaultRedditSize)
	values := url.Values{}
	values.Set("limit", strconv.Itoa(limit))
	values.Set("raw_json", "1")

	if q.Term != "" || q.Sort == SortSearch {
		if strings.TrimSpace(q.Term) == "" {
			return "", fmt.Errorf("search term is required")
		}
		values.Set("q", q.Term)
		values.Set("restrict_sr", "1")
		if q.TimeWindow != "" {
			values.Set("t", q.TimeWindow)
		}
		return fmt.Sprintf("%s/r/%s/search?%s", base, url.PathEscape(subreddit), values.Encode()), nil
	}

	switch q.Sort {
	case SortHot, SortNew, SortRising:
	case SortTop:
		if q.TimeWindow != "" {
			values.Set("t", q.TimeWindow)
		}
	default:
		return "", fmt.Errorf("unknown sort %q", q.Sort)
	}
	return fmt.Sprintf("%s/r/%s/%s?%s", base, url.PathEscape(subreddit), q.Sort, values.Encode()), nil
}

type redditListing struct {
	Data struct {
		Children []struct {
			Data redditSubmission `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditSubmission struct {
	ID          string  `json:"id"`
	Subreddit   string  `json:"subreddit"`
	Title       string  `json:"title"`
	SelfText    string  `json:"selftext"`
	IsSelf      bool    `json:"is_self"`
	Author      string  `json:"author"`
	CreatedUTC  float64 `json:"created_utc"`
	Permalink   string  `json:"permalink"`
	URL         string  `json:"url"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	UpvoteRatio float64 `json:"upvote_ratio"`
}

func (p *RedditProvider) fetchListing(ctx context.Context, u string) ([]domain.RawItem, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{Service: "reddit", Code: resp.StatusCode, Body: string(body)}
	}

	var payload redditListing
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode reddit response: %w", err)
	}

	items := make([]domain.RawItem, 0, len(payload.Data.Children))
	for _, row := range payload.Data.Children {
		data := row.Data
		if strings.TrimSpace(data.ID) == "" {
			continue
		}
		items = append(items, domain.RawItem{
			NativeID:    data.ID,
			IDPrefix:    domain.RedditIDPrefix,
			Domain:      domain.RedditDomain,
			Channel:     strings.TrimSpace(data.Subreddit),
			Title:       data.Title,
			Body:        data.SelfText,
			IsSelf:      data.IsSelf,
			Permalink:   strings.TrimSpace(data.Permalink),
			URL:         strings.TrimSpace(data.URL),
			Author:      normalizeAuthor(data.Author),
			CreatedUTC:  data.CreatedUTC,
			Score:       data.Score,
			NumComments: data.NumComments,
			UpvoteRatio: data.UpvoteRatio,
		})
	}
	return items, nil
}

type userAgentTransport struct {
	userAgent string
	base      http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.userAgent)
	}
	return t.base.RoundTrip(req)
}
