// Package provider fetches raw items from Reddit and news feeds.
package provider

import (
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

const (
	SortHot    = "hot"
	SortNew    = "new"
	SortTop    = "top"
	SortRising = "rising"
	SortSearch = "search"
)

// Query describes one listing or search call against a channel.
type Query struct {
	Sort       string
	Term       string
	Limit      int
	TimeWindow string
}

func (q Query) String() string {
	if q.Term != "" {
		return fmt.Sprintf("%s %q", q.Sort, q.Term)
	}
	return q.Sort
}

// StatusError is returned for non-200 responses.
type StatusError struct {
	Service string
	Code    int
	Body    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API error %d: %s", e.Service, e.Code, e.Body)
}

// Temporary reports whether repeating the request may succeed.
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// normalizeAuthor maps the placeholders Reddit uses for removed accounts to "".
func normalizeAuthor(author string) string {
	author = strings.TrimSpace(author)
	switch author {
	case "[deleted]", "[removed]":
		return ""
	}
	return author
}

func sanitizeText(in string, maxLen int) string {
	in = strings.TrimSpace(in)
	if in == "" {
		return ""
	}
	in = strings.Join(strings.Fields(in), " ")
	if maxLen > 0 && len(in) > maxLen {
		cut := maxLen
		for cut > 0 && !utf8.RuneStart(in[cut]) {
			cut--
		}
		in = in[:cut]
	}
	return in
}

func clampLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 100 {
		return 100
	}
	return limit
}
