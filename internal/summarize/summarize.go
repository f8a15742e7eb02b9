// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package summarize compresses long source content with an LLM call when it
// exceeds a token budget.
package summarize

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pdiddy/research-pipeline/internal/llm"
	"github.com/pdiddy/research-pipeline/pkg/types"
)

const systemPrompt = `You are a research assistant condensing a source document for later analysis.
Write a summary that preserves:
- key findings and conclusions
- methodological detail (study design, sample, measures)
- quantitative data points exactly as stated
- stated limitations

Write plain prose with no preamble. The summary must be substantially shorter than the source.`

// Summarizer adds a ContentSummary to sources whose content is over budget.
type Summarizer struct {
	client  llm.Client
	model   string
	counter llm.TokenCounter
}

// New returns a Summarizer. A nil counter uses llm.RuneCounter.
func New(client llm.Client, model string, counter llm.TokenCounter) *Summarizer {
	if counter == nil {
		counter = llm.RuneCounter{}
	}
	return &Summarizer{client: client, model: model, counter: counter}
}

// NeedsSummary reports whether the content of src exceeds budget tokens.
func (s *Summarizer) NeedsSummary(src types.SourceRecord, budget int) bool {
	return src.HasContent() && s.counter.Count(src.Content) > budget
}

// Summarize returns src with ContentSummary set when its content exceeds
// budget tokens. Sources without content, or within budget, are returned
// unchanged. Content is never modified. A reply that is empty or not shorter
// than the content is rejected with an error matching types.ErrSchema and
// src is returned unchanged.
func (s *Summarizer) Summarize(ctx context.Context, src types.SourceRecord, budget int) (types.SourceRecord, error) {
	if !s.NeedsSummary(src, budget) {
		return src, nil
	}

	user := fmt.Sprintf("Target length: at most %d tokens.\n\nTitle: %s\nURL: %s\n\nSource text:\n%s",
		budget, src.Title, src.URL, src.Content)
	req := llm.Prompt(types.StageSummarize, s.model, systemPrompt, user)
	req.JSON = false
	req.MaxTokens = budget

	resp, err := s.client.Complete(ctx, req)
	if err != nil {
		return src, types.NewStageError(types.StageSummarize, src.URL, err)
	}
	summary := strings.TrimSpace(resp.Text)
	if summary == "" {
		return src, types.NewStageError(types.StageSummarize, src.URL,
			fmt.Errorf("%w: empty summary", types.ErrMalformedResponse))
	}

	out, err := src.WithSummary(summary)
	if err != nil {
		return src, types.NewStageError(types.StageSummarize, src.URL, err)
	}
	zerolog.Ctx(ctx).Debug().Str("url", src.URL).
		Int("content_tokens", s.counter.Count(src.Content)).
		Int("summary_tokens", s.counter.Count(summary)).
		Msg("source summarized")
	return out, nil
}
