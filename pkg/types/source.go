// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the shared data structures that flow through the
// research pipeline: source records, per-source analyses, the final report,
// pipeline configuration and the error taxonomy.
package types

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// UnknownDate is the published date of a source whose date is missing.
const UnknownDate = "unknown"

// SourceRecord is one discovered or fetched document. Stages never modify a
// record they were handed; they return an updated copy via the With* methods.
type SourceRecord struct {
	// Title is the document title as returned by search.
	Title string `json:"title" yaml:"title"`

	// URL is an absolute http or https address.
	URL string `json:"url" yaml:"url"`

	// PublishedDate is YYYY-MM-DD or UnknownDate.
	PublishedDate string `json:"published_date" yaml:"published_date"`

	// RelevanceScore is assigned by the evaluator, conventionally 0-10.
	RelevanceScore float64 `json:"relevance_score" yaml:"relevance_score"`

	// Content is the full text, empty until fetched.
	Content string `json:"content,omitempty" yaml:"content,omitempty"`

	// ContentSummary is a compressed form of Content, set only when Content
	// exceeded the summarization budget.
	ContentSummary string `json:"content_summary,omitempty" yaml:"content_summary,omitempty"`
}

// NewSourceRecord builds a record with a zero score, rejecting URLs that are
// not absolute http(s) and dates that are not ISO-8601.
func NewSourceRecord(title, rawURL, published string) (SourceRecord, error) {
	u, err := ValidateURL(rawURL)
	if err != nil {
		return SourceRecord{}, err
	}
	date, err := NormalizeDate(published)
	if err != nil {
		return SourceRecord{}, err
	}
	return SourceRecord{
		Title:         strings.TrimSpace(title),
		URL:           u,
		PublishedDate: date,
	}, nil
}

// ValidateURL returns rawURL unchanged when its scheme is http or https and
// it names a host. Anything else fails with ErrInvalidURL.
func ValidateURL(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	return strings.TrimSpace(rawURL), nil
}

// URLKey folds case in scheme and host, drops the fragment and a trailing
// slash, so trivially different spellings of one page compare equal.
func URLKey(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.RawPath = ""
	return u.String()
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// NormalizeDate reduces an ISO-8601 date or timestamp to YYYY-MM-DD.
// Blank input and UnknownDate map to UnknownDate.
func NormalizeDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, UnknownDate) {
		return UnknownDate, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}
	return "", fmt.Errorf("%w: invalid date %q", ErrValidation, s)
}

// HasContent reports whether the record carries fetched text.
func (s SourceRecord) HasContent() bool {
	return strings.TrimSpace(s.Content) != ""
}

// PromptText is the text an analysis prompt should carry: the summary when
// one exists, otherwise the full content.
func (s SourceRecord) PromptText() string {
	if s.ContentSummary != "" {
		return s.ContentSummary
	}
	return s.Content
}

// Preview returns at most n runes of the content.
func (s SourceRecord) Preview(n int) string {
	r := []rune(s.Content)
	if len(r) <= n {
		return s.Content
	}
	return string(r[:n])
}

// WithContent returns a copy carrying text as its content.
func (s SourceRecord) WithContent(text string) SourceRecord {
	s.Content = text
	return s
}

// WithScore returns a copy carrying score.
func (s SourceRecord) WithScore(score float64) SourceRecord {
	s.RelevanceScore = score
	return s
}

// WithSummary returns a copy carrying summary. A summary that is not strictly
// shorter than the content is rejected.
func (s SourceRecord) WithSummary(summary string) (SourceRecord, error) {
	if len(summary) >= len(s.Content) {
		return s, fmt.Errorf("%w: summary (%d bytes) not shorter than content (%d bytes)",
			ErrSchema, len(summary), len(s.Content))
	}
	s.ContentSummary = summary
	return s, nil
}

// URLs lists the URL of each record in order.
func URLs(sources []SourceRecord) []string {
	out := make([]string, len(sources))
	for i, s := range sources {
		out[i] = s.URL
	}
	return out
}

// SearchHistoryEntry records one search call made by an agent.
type SearchHistoryEntry struct {
	Query       string   `json:"query" yaml:"query"`
	ResultCount int      `json:"result_count" yaml:"result_count"`
	URLs        []string `json:"urls" yaml:"urls"`
}
