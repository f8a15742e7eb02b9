// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package research

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pdiddy/research-pipeline/internal/llm"
	"github.com/pdiddy/research-pipeline/pkg/types"
)

const maxQueries = 3

const initialQueriesPrompt = `You are a research librarian planning a web search.
Generate 2-3 focused search queries for the research topic. Each query should explore a different aspect:
- background, history and key definitions
- current evidence, studies and data
- debates, criticism and open problems

Return JSON only: {"queries": ["query", "..."]}`

const followUpQueriesPrompt = `You are a research librarian extending a web search.
Given the topic and the sources found so far, generate 1-3 additional focused search queries that fill gaps in the current findings. Do not repeat topics the sources already cover well.

Return JSON only: {"queries": ["query", "..."]}`

// QueryGenerator proposes search queries for each gathering round.
type QueryGenerator struct {
	client llm.Client
	model  string
}

// NewQueryGenerator returns a QueryGenerator.
func NewQueryGenerator(client llm.Client, model string) *QueryGenerator {
	return &QueryGenerator{client: client, model: model}
}

// Generate returns 1-3 queries. The first round is conditioned on the topic
// alone and always searches the topic itself first; later rounds are
// conditioned on the accumulated sources. Any model failure falls back to
// the topic.
func (g *QueryGenerator) Generate(ctx context.Context, topic string, iteration int, accumulated []types.SourceRecord) []string {
	var req llm.Request
	if iteration <= 1 || len(accumulated) == 0 {
		req = llm.Prompt(types.StageQueries, g.model, initialQueriesPrompt, "Research topic: "+topic)
	} else {
		var b strings.Builder
		fmt.Fprintf(&b, "Research topic: %s\n\nSources found so far:\n", topic)
		for _, s := range accumulated {
			fmt.Fprintf(&b, "Title: %s\nURL: %s\nDate: %s\n\n", s.Title, s.URL, s.PublishedDate)
		}
		b.WriteString("Generate additional research queries to expand the investigation.")
		req = llm.Prompt(types.StageQueries, g.model, followUpQueriesPrompt, b.String())
	}
	req.MaxTokens = 200

	var resp struct {
		Queries []string `json:"queries"`
	}
	if err := llm.CompleteJSON(ctx, g.client, req, &resp); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("stage", types.StageQueries).Str("query", topic).
			Int("iteration", iteration).Msg("query generation failed, searching the topic")
		return []string{topic}
	}

	var queries []string
	if iteration <= 1 {
		queries = append(queries, topic)
	}
	queries = appendUnique(queries, resp.Queries...)
	if len(queries) == 0 {
		return []string{topic}
	}
	return queries
}

// appendUnique adds non-blank queries not already present, ignoring case,
// up to maxQueries.
func appendUnique(dst []string, queries ...string) []string {
	seen := make(map[string]bool, len(dst))
	for _, q := range dst {
		seen[strings.ToLower(q)] = true
	}
	for _, q := range queries {
		if len(dst) >= maxQueries {
			break
		}
		q = strings.TrimSpace(q)
		key := strings.ToLower(q)
		if q == "" || seen[key] {
			continue
		}
		seen[key] = true
		dst = append(dst, q)
	}
	return dst
}
