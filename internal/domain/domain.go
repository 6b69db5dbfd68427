package domain

import (
	"fmt"
	"math"
	"time"

	"github.com/mico/crypto-sentiment-analysis/internal/coins"
)

const (
	RedditIDPrefix = "RD_"
	RedditDomain   = "reddit.com"
	NewsIDPrefix   = "CP_"
	NewsDomain     = "cryptopanic.com"
)

// RawItem is one item as delivered by a source provider. Every field has a
// usable zero value; providers substitute defaults for missing fields.
type RawItem struct {
	NativeID    string  `json:"id" yaml:"id"`
	IDPrefix    string  `json:"-" yaml:"-"`
	Domain      string  `json:"-" yaml:"-"`
	Channel     string  `json:"subreddit" yaml:"subreddit"`
	Title       string  `json:"title" yaml:"title"`
	Body        string  `json:"selftext" yaml:"selftext"`
	IsSelf      bool    `json:"is_self" yaml:"is_self"`
	Permalink   string  `json:"permalink" yaml:"permalink"`
	URL         string  `json:"url" yaml:"url"`
	Author      string  `json:"author" yaml:"author"`
	CreatedUTC  float64 `json:"created_utc" yaml:"created_utc"`
	Score       int     `json:"score" yaml:"score"`
	NumComments int     `json:"num_comments" yaml:"num_comments"`
	UpvoteRatio float64 `json:"upvote_ratio" yaml:"upvote_ratio"`
}

// PublishedAt converts the epoch-seconds creation time to UTC.
func (r RawItem) PublishedAt() time.Time {
	sec, frac := math.Modf(r.CreatedUTC)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC()
}

// ProcessedSubmission is the normalized record built from one RawItem.
type ProcessedSubmission struct {
	ID          string    `json:"id"`
	Domain      string    `json:"domain"`
	Title       string    `json:"title"`
	Coins       []string  `json:"coins"`
	PublishedAt time.Time `json:"published_at"`
	URL         string    `json:"url"`
	Sentiment   float64   `json:"sentiment"`
}

// Record converts the submission to its row form.
func (s ProcessedSubmission) Record() PersistedRecord {
	return PersistedRecord{
		ID:          s.ID,
		Domain:      s.Domain,
		Title:       s.Title,
		Coins:       coins.Join(s.Coins),
		PublishedAt: s.PublishedAt,
		URL:         s.URL,
		Sentiment:   s.Sentiment,
	}
}

// PersistedRecord is one row of the sentiment_data table.
type PersistedRecord struct {
	ID          string    `json:"id"`
	Domain      string    `json:"domain"`
	Title       string    `json:"title"`
	Coins       string    `json:"coins"`
	PublishedAt time.Time `json:"published_at"`
	URL         string    `json:"url"`
	Sentiment   float64   `json:"sentiment"`
}

// CoinList splits the stored coin column.
func (r PersistedRecord) CoinList() []string {
	return coins.Split(r.Coins)
}

// SourceProgress reports one channel pass of an ingestion run.
type SourceProgress struct {
	Source  string `json:"source"`
	Channel string `json:"channel"`
	Pass    string `json:"pass"`
	Fetched int    `json:"fetched"`
	Failed  int    `json:"failed_units"`
}

// RunResult summarizes one ingestion run.
type RunResult struct {
	RunID      string           `json:"run_id"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Fetched    int              `json:"fetched"`
	Unique     int              `json:"unique"`
	Inserted   int              `json:"inserted"`
	Positive   int              `json:"positive"`
	Neutral    int              `json:"neutral"`
	Negative   int              `json:"negative"`
	Sources    []SourceProgress `json:"sources"`
	Errors     []string         `json:"errors,omitempty"`
}

// Summary is the one-line outcome printed at the end of a run.
func (r RunResult) Summary() string {
	return fmt.Sprintf("fetched %d, unique %d, new %d", r.Fetched, r.Unique, r.Inserted)
}

// Duration is the wall time of the run.
func (r RunResult) Duration() time.Duration {
	if r.FinishedAt.IsZero() || r.StartedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
