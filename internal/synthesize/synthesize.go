// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package synthesize combines per-source analyses into one research report.
package synthesize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pdiddy/research-pipeline/internal/llm"
	"github.com/pdiddy/research-pipeline/pkg/types"
)

const systemPrompt = `You are a senior researcher writing a synthesis of several analysed sources.
Work across sources rather than summarising them one by one:
- identify patterns and points of agreement
- identify contradictions and explain what might cause them
- critique the methodologies used
- describe forward-looking implications and open questions

Return a single JSON object:
{
  "title": "concise report title",
  "summary": "executive summary",
  "key_findings": ["finding", "..."],
  "detailed_analysis": "cross-source analysis",
  "critical_evaluation": "strengths, weaknesses, contradictions",
  "future_implications": "what follows and what to study next",
  "methodology_analysis": "critique of the methods across sources",
  "limitations_and_gaps": "what the evidence does not cover",
  "timeline": [{"date": "YYYY-MM-DD", "event": "what happened", "significance": "why it matters"}]
}
Every string field must be non-empty and key_findings must have at least one entry. Output JSON only.`

type analysisView struct {
	Title        string   `json:"title"`
	URL          string   `json:"url"`
	Published    string   `json:"published_date"`
	Relevance    float64  `json:"relevance_score"`
	KeyPoints    []string `json:"key_points"`
	Methodology  string   `json:"methodology,omitempty"`
	Limitations  string   `json:"limitations,omitempty"`
	Significance string   `json:"significance"`
}

type reportResponse struct {
	Title               string                `json:"title"`
	Summary             string                `json:"summary"`
	KeyFindings         findingList           `json:"key_findings"`
	DetailedAnalysis    string                `json:"detailed_analysis"`
	CriticalEvaluation  string                `json:"critical_evaluation"`
	FutureImplications  string                `json:"future_implications"`
	MethodologyAnalysis string                `json:"methodology_analysis"`
	LimitationsAndGaps  string                `json:"limitations_and_gaps"`
	Timeline            []types.TimelineEvent `json:"timeline"`
}

// Synthesizer builds the final report.
type Synthesizer struct {
	client  llm.Client
	model   string
	retries int
}

// New returns a Synthesizer. retries is the number of extra attempts after
// a response that fails the schema (0 or 1).
func New(client llm.Client, model string, retries int) *Synthesizer {
	return &Synthesizer{client: client, model: model, retries: retries}
}

// Synthesize asks the model for one report over all analyses. The returned
// report's SourceAnalyses is exactly analyses, in order, and its metadata
// carries the query.
//
// Zero analyses fail with types.ErrEmptyInput. A reply that never parses
// fails with types.ErrMalformedResponse. A reply that parses but leaves
// required fields blank is returned as-is together with an error matching
// types.ErrReportIncomplete, so the caller can keep the partial report.
func (s *Synthesizer) Synthesize(ctx context.Context, analyses []types.SourceAnalysis, query string) (types.ResearchReport, error) {
	if len(analyses) == 0 {
		return types.ResearchReport{}, types.NewStageError(types.StageSynthesize, query, types.ErrEmptyInput)
	}

	views := make([]analysisView, len(analyses))
	for i, a := range analyses {
		views[i] = analysisView{
			Title:        a.Source.Title,
			URL:          a.Source.URL,
			Published:    a.Source.PublishedDate,
			Relevance:    a.Source.RelevanceScore,
			KeyPoints:    a.KeyPoints,
			Methodology:  a.Methodology,
			Limitations:  a.Limitations,
			Significance: a.Significance,
		}
	}
	payload, err := json.MarshalIndent(views, "", "  ")
	if err != nil {
		return types.ResearchReport{}, fmt.Errorf("encoding analyses: %w", err)
	}
	user := fmt.Sprintf("Research query: %s\n\nSource analyses (%d):\n%s", query, len(analyses), payload)
	req := llm.Prompt(types.StageSynthesize, s.model, systemPrompt, user)

	log := zerolog.Ctx(ctx)
	var (
		report  types.ResearchReport
		missing []string
		decoded bool
	)
	for attempt := 0; attempt <= s.retries; attempt++ {
		var resp reportResponse
		err = llm.CompleteJSON(ctx, s.client, req, &resp)
		if err != nil && !errors.Is(err, types.ErrSchema) {
			return types.ResearchReport{}, types.NewStageError(types.StageSynthesize, query, err)
		}
		if err != nil {
			log.Warn().Err(err).Int("attempt", attempt+1).Msg("synthesis reply did not parse")
			continue
		}
		decoded = true
		report = toReport(resp)
		if missing = report.MissingFields(); len(missing) == 0 {
			break
		}
		log.Warn().Strs("missing", missing).Int("attempt", attempt+1).Msg("synthesis reply incomplete")
	}
	if !decoded {
		return types.ResearchReport{}, types.NewStageError(types.StageSynthesize, query, err)
	}

	report.SourceAnalyses = append([]types.SourceAnalysis(nil), analyses...)
	report.SetMeta(types.MetaQuery, query)
	if len(missing) > 0 {
		return report, types.NewStageError(types.StageSynthesize, query,
			fmt.Errorf("%w: %s", types.ErrReportIncomplete, strings.Join(missing, ", ")))
	}
	return report, nil
}

func toReport(r reportResponse) types.ResearchReport {
	return types.ResearchReport{
		Title:               strings.TrimSpace(r.Title),
		Summary:             strings.TrimSpace(r.Summary),
		KeyFindings:         []string(r.KeyFindings),
		DetailedAnalysis:    strings.TrimSpace(r.DetailedAnalysis),
		CriticalEvaluation:  strings.TrimSpace(r.CriticalEvaluation),
		FutureImplications:  strings.TrimSpace(r.FutureImplications),
		MethodologyAnalysis: strings.TrimSpace(r.MethodologyAnalysis),
		LimitationsAndGaps:  strings.TrimSpace(r.LimitationsAndGaps),
		Timeline:            r.Timeline,
	}
}

// findingList accepts key findings as strings or as objects with a
// "finding" field.
type findingList []string

func (f *findingList) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			out = append(out, s)
			continue
		}
		var obj struct {
			Finding string `json:"finding"`
		}
		if err := json.Unmarshal(item, &obj); err != nil {
			return err
		}
		out = append(out, obj.Finding)
	}
	*f = out
	return nil
}
