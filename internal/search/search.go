// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package search is the boundary to the web search and content services.
// It defines the search client contract, an Exa-backed implementation, a
// direct page fetcher, and the URL-deduplicating fan-out used by each
// gathering round.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/pdiddy/research-pipeline/pkg/types"
)

// Searcher runs a web search. Implementations fail with types.ErrInvalidQuery
// for blank queries and types.ErrSearchUnavailable for upstream failures.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]types.SourceRecord, error)
}

// ContentFetcher returns the text of each URL, in input order. Every URL is
// validated before any request is made.
type ContentFetcher interface {
	FetchContents(ctx context.Context, urls []string, batchSize int) ([]string, error)
}

// Client is the full search collaborator consumed by the pipeline.
type Client interface {
	Searcher
	ContentFetcher
}

// Composite pairs a Searcher with a different ContentFetcher.
type Composite struct {
	Searcher
	ContentFetcher
}

// QueryOutcome records what one query of a gathering round produced.
type QueryOutcome struct {
	Query    string `json:"query" yaml:"query"`
	Found    int    `json:"found" yaml:"found"`
	Admitted int    `json:"admitted" yaml:"admitted"`
	Error    string `json:"error,omitempty" yaml:"error,omitempty"`
}

// GatherOutput holds the newly admitted sources of one round.
type GatherOutput struct {
	Sources     []types.SourceRecord
	DupsRemoved int
	Outcomes    []QueryOutcome
}

// Gather runs every query concurrently and admits the results through seen
// in query order, so a URL returned by two queries, or by an earlier round,
// is kept once. Query failures are logged and recorded in Outcomes; the
// round continues with whatever the other queries returned.
func Gather(ctx context.Context, s Searcher, queries []string, maxResults int, seen *SeenSet) GatherOutput {
	type queryResult struct {
		results []types.SourceRecord
		err     error
	}

	results := make([]queryResult, len(queries))
	var wg sync.WaitGroup
	for i, q := range queries {
		wg.Add(1)
		go func(i int, q string) {
			defer wg.Done()
			res, err := s.Search(ctx, q, maxResults)
			results[i] = queryResult{results: res, err: err}
		}(i, q)
	}
	wg.Wait()

	log := zerolog.Ctx(ctx)
	var out GatherOutput
	for i, qr := range results {
		outcome := QueryOutcome{Query: queries[i], Found: len(qr.results)}
		if qr.err != nil {
			outcome.Error = qr.err.Error()
			log.Warn().Err(qr.err).Str("stage", types.StageSearch).Str("query", queries[i]).Msg("query failed")
		}
		for _, r := range qr.results {
			if !seen.Admit(r.URL) {
				out.DupsRemoved++
				continue
			}
			outcome.Admitted++
			out.Sources = append(out.Sources, r)
		}
		out.Outcomes = append(out.Outcomes, outcome)
	}
	return out
}

// FormatTable writes sources as a human-readable table to w.
func FormatTable(sources []types.SourceRecord, w io.Writer) {
	if len(sources) == 0 {
		fmt.Fprintln(w, "No results found.")
		return
	}

	fmt.Fprintf(w, "%-4s  %-60s  %-10s  %-6s  %s\n", "Rank", "Title", "Published", "Score", "URL")
	fmt.Fprintln(w, strings.Repeat("-", 120))

	for i, r := range sources {
		fmt.Fprintf(w, "%-4d  %-60s  %-10s  %-6.2f  %s\n",
			i+1, truncate(r.Title, 60), r.PublishedDate, r.RelevanceScore, r.URL)
	}
	fmt.Fprintf(w, "\n%d results\n", len(sources))
}

// FormatJSON writes sources as indented JSON to w.
func FormatJSON(sources []types.SourceRecord, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(sources)
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
