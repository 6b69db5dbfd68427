// Package fixture reads and writes recorded Reddit submissions as YAML so
// processing can be replayed without network access.
package fixture

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mico/crypto-sentiment-analysis/internal/domain"

	"gopkg.in/yaml.v3"
)

const DefaultDir = "testdata/submissions"

// Submission mirrors the fields captured for one submission. Author is nil
// for deleted accounts.
type Submission struct {
	ID          string  `yaml:"id"`
	Title       string  `yaml:"title"`
	Selftext    string  `yaml:"selftext"`
	CreatedUTC  float64 `yaml:"created_utc"`
	Permalink   string  `yaml:"permalink"`
	URL         string  `yaml:"url"`
	Author      *string `yaml:"author"`
	Subreddit   string  `yaml:"subreddit"`
	Score       int     `yaml:"score"`
	UpvoteRatio float64 `yaml:"upvote_ratio"`
	NumComments int     `yaml:"num_comments"`
	IsSelf      *bool   `yaml:"is_self,omitempty"`
}

// FromRawItem captures a fetched item.
func FromRawItem(item domain.RawItem) Submission {
	s := Submission{
		ID:          item.NativeID,
		Title:       item.Title,
		Selftext:    item.Body,
		CreatedUTC:  item.CreatedUTC,
		Permalink:   item.Permalink,
		URL:         item.URL,
		Subreddit:   item.Channel,
		Score:       item.Score,
		UpvoteRatio: item.UpvoteRatio,
		NumComments: item.NumComments,
	}
	if item.Author != "" {
		author := item.Author
		s.Author = &author
	}
	isSelf := item.IsSelf
	s.IsSelf = &isSelf
	return s
}

// RawItem converts the fixture back into a Reddit raw item. Fixtures without
// is_self are treated as text posts.
func (s Submission) RawItem() domain.RawItem {
	item := domain.RawItem{
		NativeID:    s.ID,
		IDPrefix:    domain.RedditIDPrefix,
		Domain:      domain.RedditDomain,
		Channel:     s.Subreddit,
		Title:       s.Title,
		Body:        s.Selftext,
		IsSelf:      true,
		Permalink:   s.Permalink,
		URL:         s.URL,
		CreatedUTC:  s.CreatedUTC,
		Score:       s.Score,
		NumComments: s.NumComments,
		UpvoteRatio: s.UpvoteRatio,
	}
	if s.Author != nil {
		item.Author = *s.Author
	}
	if s.IsSelf != nil {
		item.IsSelf = *s.IsSelf
	}
	return item
}

func Load(path string) (Submission, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Submission{}, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var s Submission
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Submission{}, fmt.Errorf("decode fixture %s: %w", path, err)
	}
	if strings.TrimSpace(s.ID) == "" {
		return Submission{}, fmt.Errorf("fixture %s has no id", path)
	}
	return s, nil
}

// LoadDir loads every *.yaml fixture in dir, sorted by file name.
func LoadDir(dir string) ([]Submission, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	out := make([]Submission, 0, len(paths))
	for _, p := range paths {
		s, err := Load(p)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Write stores s as <dir>/<id>.yaml and returns the path.
func Write(dir string, s Submission) (string, error) {
	if strings.TrimSpace(s.ID) == "" {
		return "", fmt.Errorf("submission id is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create fixture dir: %w", err)
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("encode fixture: %w", err)
	}
	path := filepath.Join(dir, s.ID+".yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write fixture: %w", err)
	}
	return path, nil
}
