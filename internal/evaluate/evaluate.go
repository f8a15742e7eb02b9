// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package evaluate scores sources for relevance to a research query with an
// LLM call, ranks them, and optionally reports whether the set is
// sufficient to stop gathering.
package evaluate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"text/template"

	"github.com/rs/zerolog"

	"github.com/pdiddy/research-pipeline/internal/llm"
	"github.com/pdiddy/research-pipeline/pkg/types"
)

const systemPrompt = `You are a research quality evaluator. Score each source from 0 to 10 for how well it serves the research query, weighing relevance, credibility of the publisher, recency and rigor.

Respond with a single JSON object and nothing else:
{"scores": [{"url": "<source url>", "score": 8.5}]{{if .Sufficiency}},
 "sufficient": true or false,
 "explanation": "why the sources do or do not cover the topic adequately, and what is missing"{{end}}}

Use the exact URLs given. Score every source.`

const userPrompt = `Research query: {{.Query}}

Sources:
{{range $i, $s := .Sources}}
[{{inc $i}}] Title: {{$s.Title}}
URL: {{$s.URL}}
Date: {{$s.PublishedDate}}
{{- if $.Preview}}
Content preview: {{$s.Preview}}
{{- end}}
{{end}}`

var (
	systemTmpl = template.Must(template.New("evaluate-system").Parse(systemPrompt))
	userTmpl   = template.Must(template.New("evaluate-user").
			Funcs(template.FuncMap{"inc": func(i int) int { return i + 1 }}).
			Parse(userPrompt))
)

// sourceView is the prompt rendering of one source.
type sourceView struct {
	Title         string
	URL           string
	PublishedDate string
	Preview       string
}

// Request is one evaluation call.
type Request struct {
	Query   string
	Sources []types.SourceRecord

	// MaxSelected bounds the returned sources; zero keeps all of them.
	MaxSelected int

	// Sufficiency asks the model whether the sources cover the query and
	// includes a content preview of each source in the prompt.
	Sufficiency bool
}

// Result holds ranked sources and, in sufficiency mode, the model's verdict.
type Result struct {
	Sources     []types.SourceRecord
	Sufficient  bool
	Explanation string
}

// Evaluator ranks sources through an LLM.
type Evaluator struct {
	client       llm.Client
	model        string
	previewChars int
	retries      int
}

// New returns an Evaluator. previewChars bounds the content preview sent in
// sufficiency mode; retries is the number of extra attempts after a response
// that does not parse (0 or 1).
func New(client llm.Client, model string, previewChars, retries int) *Evaluator {
	if previewChars <= 0 {
		previewChars = 500
	}
	return &Evaluator{client: client, model: model, previewChars: previewChars, retries: retries}
}

type scoreEntry struct {
	URL   string    `json:"url"`
	Score flexFloat `json:"score"`
}

type evaluation struct {
	Scores      *[]scoreEntry `json:"scores"`
	Sufficient  *bool         `json:"sufficient"`
	Explanation string        `json:"explanation"`
}

// Evaluate scores req.Sources and returns them sorted by score, highest
// first, with ties kept in input order. A source the model did not score
// keeps 0.0 and stays in the list.
//
// When the response cannot be parsed after the allowed retries, Evaluate
// returns the input unscored and unsorted, truncated to MaxSelected, with
// Sufficient false, together with an error matching types.ErrEvaluationParse.
// The caller should log it and carry on. An upstream failure degrades the
// same way with an error matching types.ErrUpstream.
func (e *Evaluator) Evaluate(ctx context.Context, req Request) (Result, error) {
	if len(req.Sources) == 0 {
		return Result{}, nil
	}

	chatReq, err := e.buildRequest(req)
	if err != nil {
		return fallback(req), fmt.Errorf("rendering evaluation prompt: %w", err)
	}

	log := zerolog.Ctx(ctx)
	var ev evaluation
	for attempt := 0; ; attempt++ {
		ev, err = e.call(ctx, chatReq)
		if err == nil {
			break
		}
		if !errors.Is(err, types.ErrSchema) || attempt >= e.retries {
			log.Warn().Err(err).Str("stage", types.StageEvaluate).Str("query", req.Query).
				Int("sources", len(req.Sources)).Msg("evaluation failed, keeping input order")
			return fallback(req), types.NewStageError(types.StageEvaluate, req.Query, err)
		}
		log.Debug().Err(err).Int("attempt", attempt+1).Msg("retrying evaluation")
	}

	scores := make(map[string]float64, len(*ev.Scores))
	for _, s := range *ev.Scores {
		scores[types.URLKey(s.URL)] = clamp(float64(s.Score))
	}

	ranked := make([]types.SourceRecord, len(req.Sources))
	for i, s := range req.Sources {
		ranked[i] = s.WithScore(scores[types.URLKey(s.URL)])
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].RelevanceScore > ranked[j].RelevanceScore
	})

	res := Result{Sources: limit(ranked, req.MaxSelected), Explanation: ev.Explanation}
	if ev.Sufficient != nil {
		res.Sufficient = *ev.Sufficient
	}
	return res, nil
}

// EvaluateSources ranks sources without a sufficiency verdict.
func (e *Evaluator) EvaluateSources(ctx context.Context, sources []types.SourceRecord, query string, maxSelected int) ([]types.SourceRecord, error) {
	res, err := e.Evaluate(ctx, Request{Query: query, Sources: sources, MaxSelected: maxSelected})
	return res.Sources, err
}

func (e *Evaluator) call(ctx context.Context, req llm.Request) (evaluation, error) {
	var ev evaluation
	if err := llm.CompleteJSON(ctx, e.client, req, &ev); err != nil {
		if errors.Is(err, types.ErrMalformedResponse) {
			return ev, fmt.Errorf("%w: %w", types.ErrEvaluationParse, err)
		}
		return ev, err
	}
	if ev.Scores == nil {
		return ev, fmt.Errorf("%w: response has no scores", types.ErrEvaluationParse)
	}
	return ev, nil
}

func (e *Evaluator) buildRequest(req Request) (llm.Request, error) {
	var sys, user bytes.Buffer
	if err := systemTmpl.Execute(&sys, req); err != nil {
		return llm.Request{}, err
	}
	views := make([]sourceView, len(req.Sources))
	for i, s := range req.Sources {
		views[i] = sourceView{Title: s.Title, URL: s.URL, PublishedDate: s.PublishedDate, Preview: "No content"}
		if s.HasContent() {
			views[i].Preview = strings.Join(strings.Fields(s.Preview(e.previewChars)), " ")
		}
	}
	data := struct {
		Query   string
		Sources []sourceView
		Preview bool
	}{req.Query, views, req.Sufficiency}
	if err := userTmpl.Execute(&user, data); err != nil {
		return llm.Request{}, err
	}
	return llm.Prompt(types.StageEvaluate, e.model, sys.String(), user.String()), nil
}

// fallback is the soft-failure result: input order, no scores, not sufficient.
func fallback(req Request) Result {
	return Result{Sources: limit(append([]types.SourceRecord(nil), req.Sources...), req.MaxSelected)}
}

func limit(sources []types.SourceRecord, n int) []types.SourceRecord {
	if n > 0 && len(sources) > n {
		return sources[:n]
	}
	return sources
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 10:
		return 10
	}
	return v
}

// flexFloat accepts a JSON number or a numeric string.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		*f = flexFloat(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return err
	}
	*f = flexFloat(n)
	return nil
}
