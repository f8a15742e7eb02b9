// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package analyze extracts a structured reading of one source: key points,
// methodology, limitations and significance.
package analyze

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"text/template"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/research-pipeline/internal/llm"
	"github.com/pdiddy/research-pipeline/pkg/types"
)

const systemPrompt = `You are a research analyst. Read the source and return a single JSON object:
{
  "key_points": ["finding or claim", "..."],
  "methodology": "how the work reached its conclusions, or empty if not described",
  "limitations": "weaknesses, caveats, or gaps, or empty if none are stated",
  "significance": "why this source matters for the research query"
}
key_points must contain at least one entry and significance must not be empty. Output JSON only.`

var userTmpl = template.Must(template.New("analyze").Parse(`Research query: {{.Query}}

Title: {{.Source.Title}}
URL: {{.Source.URL}}
Published: {{.Source.PublishedDate}}

{{if .Source.ContentSummary}}Summary of the source:{{else}}Source text:{{end}}
{{.Text}}
`))

// backoffBase controls the pause before a retry. Tests override this to
// avoid real sleeps.
var backoffBase = 500 * time.Millisecond

type analysisResponse struct {
	KeyPoints    []string `json:"key_points"`
	Methodology  string   `json:"methodology"`
	Limitations  string   `json:"limitations"`
	Significance string   `json:"significance"`
}

// Analyzer produces one SourceAnalysis per source.
type Analyzer struct {
	client  llm.Client
	model   string
	retries int
}

// New returns an Analyzer. retries is the number of extra attempts after a
// response that fails the schema (0 or 1).
func New(client llm.Client, model string, retries int) *Analyzer {
	return &Analyzer{client: client, model: model, retries: retries}
}

// Analyze reads src, preferring its ContentSummary over Content, and returns
// the analysis. A response without key points or significance is retried up
// to the configured bound, then fails with an error matching
// types.ErrAnalysisSchema. No defaults are invented for required fields.
func (a *Analyzer) Analyze(ctx context.Context, src types.SourceRecord, query string) (types.SourceAnalysis, error) {
	var user bytes.Buffer
	err := userTmpl.Execute(&user, struct {
		Query  string
		Source types.SourceRecord
		Text   string
	}{query, src, src.PromptText()})
	if err != nil {
		return types.SourceAnalysis{}, fmt.Errorf("rendering analysis prompt: %w", err)
	}
	req := llm.Prompt(types.StageAnalyze, a.model, systemPrompt, user.String())

	analysis, err := callWithRetry(ctx, a.client, req, src, a.retries)
	if err != nil {
		return types.SourceAnalysis{}, types.NewStageError(types.StageAnalyze, src.URL, err)
	}
	return analysis, nil
}

// callWithRetry calls the model until it returns a valid analysis, retrying
// only schema failures.
func callWithRetry(ctx context.Context, client llm.Client, req llm.Request, src types.SourceRecord, maxRetries int) (types.SourceAnalysis, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * backoffBase
			zerolog.Ctx(ctx).Debug().Err(lastErr).Str("url", src.URL).Msg("retrying analysis")
			select {
			case <-ctx.Done():
				return types.SourceAnalysis{}, ctx.Err()
			case <-time.After(backoff):
			}
		}

		var resp analysisResponse
		err := llm.CompleteJSON(ctx, client, req, &resp)
		if err == nil {
			analysis := types.SourceAnalysis{
				Source:       src,
				KeyPoints:    resp.KeyPoints,
				Methodology:  resp.Methodology,
				Limitations:  resp.Limitations,
				Significance: resp.Significance,
			}
			if err = analysis.Validate(); err == nil {
				return analysis, nil
			}
		}
		if errors.Is(err, types.ErrMalformedResponse) {
			err = fmt.Errorf("%w: %w", types.ErrAnalysisSchema, err)
		}
		if !errors.Is(err, types.ErrSchema) {
			return types.SourceAnalysis{}, err
		}
		lastErr = err
	}
	return types.SourceAnalysis{}, fmt.Errorf("after %d retries: %w", maxRetries, lastErr)
}
