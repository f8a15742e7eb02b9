// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package agent holds the conversational researchers: a tool-calling agent
// that lets the model drive search and reading, and a task agent that runs
// a fixed search-and-fetch plan.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/pdiddy/research-pipeline/internal/llm"
	"github.com/pdiddy/research-pipeline/internal/search"
	"github.com/pdiddy/research-pipeline/pkg/types"
)

const (
	toolSearch  = "search_articles"
	toolContent = "get_article_content"

	defaultToolResults = 5
)

const researcherPrompt = `You are a research assistant that finds and analyses articles.
Follow these steps:
1. Search for relevant articles with search_articles.
2. Decide which results are worth reading in detail.
3. Read the most relevant articles with get_article_content.
4. Answer with one JSON object in exactly this shape:
{
  "title": "concise title",
  "summary": "brief executive summary",
  "key_findings": [
    {"finding": "key finding", "supporting_sources": [{"title": "article title", "url": "article url", "quote": "supporting quote"}]}
  ],
  "timeline": [{"date": "YYYY-MM-DD", "event": "what happened", "significance": "why it matters"}],
  "metadata": {"query": "original query", "sources_analyzed": 0, "date_range": {"earliest": "YYYY-MM-DD", "latest": "YYYY-MM-DD"}}
}
Support findings with direct quotes, order the timeline chronologically and use YYYY-MM-DD dates. Output JSON only.`

var researchTools = []llm.Tool{
	{
		Name:        toolSearch,
		Description: "Search for articles on a topic",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query":       map[string]any{"type": "string", "description": "The search query"},
				"max_results": map[string]any{"type": "integer", "description": "Maximum number of results (default 5)", "default": defaultToolResults},
			},
			"required": []string{"query"},
		},
	},
	{
		Name:        toolContent,
		Description: "Get the full text of articles by URL",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"urls": map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Article URLs"},
			},
			"required": []string{"urls"},
		},
	},
}

// ToolResearcher lets the model call search and content tools until it can
// write a report. It keeps a history of every search it ran.
type ToolResearcher struct {
	client        llm.Client
	search        search.Client
	model         string
	maxRoundTrips int
	batchSize     int

	mu      sync.Mutex
	history []types.SearchHistoryEntry
}

// NewToolResearcher returns a ToolResearcher. maxRoundTrips caps model calls
// per report; zero uses llm.DefaultMaxRoundTrips.
func NewToolResearcher(client llm.Client, sc search.Client, model string, maxRoundTrips, batchSize int) *ToolResearcher {
	return &ToolResearcher{client: client, search: sc, model: model, maxRoundTrips: maxRoundTrips, batchSize: batchSize}
}

// SearchHistory returns a copy of the searches run so far.
func (r *ToolResearcher) SearchHistory() []types.SearchHistoryEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.SearchHistoryEntry(nil), r.history...)
}

type articleView struct {
	Title         string `json:"title"`
	URL           string `json:"url"`
	PublishedDate string `json:"published_date"`
}

type supportingSource struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Quote string `json:"quote"`
}

type finding struct {
	Finding           string             `json:"finding"`
	SupportingSources []supportingSource `json:"supporting_sources"`
}

// findings accepts objects or bare strings.
type findings []finding

func (f *findings) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := make([]finding, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			out = append(out, finding{Finding: s})
			continue
		}
		var fd finding
		if err := json.Unmarshal(item, &fd); err != nil {
			return err
		}
		out = append(out, fd)
	}
	*f = out
	return nil
}

type agentReport struct {
	Title       string                `json:"title"`
	Summary     string                `json:"summary"`
	KeyFindings findings              `json:"key_findings"`
	Timeline    []types.TimelineEvent `json:"timeline"`
	Metadata    struct {
		SourcesAnalyzed any `json:"sources_analyzed"`
		DateRange       struct {
			Earliest string `json:"earliest"`
			Latest   string `json:"latest"`
		} `json:"date_range"`
	} `json:"metadata"`
}

// session is the per-report tool state.
type session struct {
	r    *ToolResearcher
	read map[string]bool
}

// Research asks the model for a report on query, executing its tool calls.
// Tool failures are reported to the model as empty results so it can carry
// on. A model or transport failure is returned as an error. A report
// missing its title, summary or findings is returned with an error matching
// types.ErrReportIncomplete.
func (r *ToolResearcher) Research(ctx context.Context, query string) (*types.ResearchReport, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, types.NewStageError(types.StageAgent, query, types.ErrInvalidQuery)
	}

	s := &session{r: r, read: make(map[string]bool)}
	loop := llm.ToolLoop{Client: r.client, Dispatcher: llm.DispatchFunc(s.dispatch), MaxRoundTrips: r.maxRoundTrips}
	req := llm.Prompt(types.StageAgent, r.model, researcherPrompt,
		"Research this topic and provide a structured report: "+query)
	req.Tools = researchTools

	var out agentReport
	res, err := loop.Run(ctx, req, &out)
	if err != nil {
		return nil, types.NewStageError(types.StageAgent, query, err)
	}
	zerolog.Ctx(ctx).Info().Str("query", query).Int("round_trips", res.RoundTrips).
		Int("tool_calls", res.ToolCalls).Int("sources_read", len(s.read)).Msg("agent research complete")

	report := s.toReport(out, query)
	if missing := agentMissing(report); len(missing) > 0 {
		return report, types.NewStageError(types.StageAgent, query,
			fmt.Errorf("%w: %s", types.ErrReportIncomplete, strings.Join(missing, ", ")))
	}
	return report, nil
}

func (s *session) dispatch(ctx context.Context, call llm.ToolCall) (any, error) {
	switch call.Name {
	case toolSearch:
		var args struct {
			Query      string `json:"query"`
			MaxResults int    `json:"max_results"`
		}
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return nil, fmt.Errorf("%w: %s arguments: %w", types.ErrValidation, call.Name, err)
		}
		return s.searchArticles(ctx, args.Query, args.MaxResults), nil
	case toolContent:
		var args struct {
			URLs []string `json:"urls"`
		}
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return nil, fmt.Errorf("%w: %s arguments: %w", types.ErrValidation, call.Name, err)
		}
		return s.articleContent(ctx, args.URLs), nil
	}
	return nil, fmt.Errorf("%w: unknown tool %q", types.ErrValidation, call.Name)
}

// searchArticles degrades to an empty list when the search fails.
func (s *session) searchArticles(ctx context.Context, query string, maxResults int) []articleView {
	if maxResults <= 0 {
		maxResults = defaultToolResults
	}
	results, err := s.r.search.Search(ctx, query, maxResults)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("stage", types.StageSearch).Str("query", query).Msg("agent search failed")
		results = nil
	}

	views := make([]articleView, len(results))
	for i, res := range results {
		views[i] = articleView{Title: res.Title, URL: res.URL, PublishedDate: res.PublishedDate}
	}
	s.r.mu.Lock()
	s.r.history = append(s.r.history, types.SearchHistoryEntry{Query: query, ResultCount: len(results), URLs: types.URLs(results)})
	s.r.mu.Unlock()
	return views
}

// articleContent degrades to empty text for every URL when the fetch fails.
func (s *session) articleContent(ctx context.Context, urls []string) map[string]string {
	out := make(map[string]string, len(urls))
	contents, err := s.r.search.FetchContents(ctx, urls, s.r.batchSize)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("stage", types.StageFetch).Int("urls", len(urls)).Msg("agent content fetch failed")
		for _, u := range urls {
			out[u] = ""
		}
		return out
	}
	for i, u := range urls {
		out[u] = contents[i]
		s.read[u] = true
	}
	return out
}

func (s *session) toReport(a agentReport, query string) *types.ResearchReport {
	report := &types.ResearchReport{
		Title:    strings.TrimSpace(a.Title),
		Summary:  strings.TrimSpace(a.Summary),
		Timeline: a.Timeline,
	}
	for _, f := range a.KeyFindings {
		text := strings.TrimSpace(f.Finding)
		if text == "" {
			continue
		}
		report.KeyFindings = append(report.KeyFindings, text)
		for _, src := range f.SupportingSources {
			quote := strings.TrimSpace(src.Quote)
			if quote == "" {
				continue
			}
			report.Evidence = append(report.Evidence, types.Evidence{
				Finding: text,
				Title:   strings.TrimSpace(src.Title),
				URL:     strings.TrimSpace(src.URL),
				Quote:   quote,
			})
		}
	}
	report.SetMeta(types.MetaQuery, query)

	analyzed := len(s.read)
	switch n := a.Metadata.SourcesAnalyzed.(type) {
	case float64:
		if n > 0 {
			analyzed = int(n)
		}
	case string:
		if v, err := strconv.Atoi(strings.TrimSpace(n)); err == nil && v > 0 {
			analyzed = v
		}
	}
	report.SetMeta(types.MetaSourcesAnalyzed, analyzed)
	if dr := a.Metadata.DateRange; dr.Earliest != "" || dr.Latest != "" {
		report.SetMeta(types.MetaDateRange, dr.Earliest+" to "+dr.Latest)
	}
	return report
}

func agentMissing(r *types.ResearchReport) []string {
	var missing []string
	if r.Title == "" {
		missing = append(missing, "title")
	}
	if r.Summary == "" {
		missing = append(missing, "summary")
	}
	if len(r.KeyFindings) == 0 {
		missing = append(missing, "key_findings")
	}
	return missing
}
