// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package research drives a research run end to end: the iterative
// source-gathering loop, then summarize, analyze and synthesize over the
// best-ranked sources.
package research

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pdiddy/research-pipeline/internal/analyze"
	"github.com/pdiddy/research-pipeline/internal/evaluate"
	"github.com/pdiddy/research-pipeline/internal/llm"
	"github.com/pdiddy/research-pipeline/internal/search"
	"github.com/pdiddy/research-pipeline/internal/summarize"
	"github.com/pdiddy/research-pipeline/internal/synthesize"
	"github.com/pdiddy/research-pipeline/pkg/types"
)

// Stop reasons recorded on a Run.
const (
	StopSufficient = "sufficient"
	StopCeiling    = "iteration-ceiling"
	StopCancelled  = "cancelled"
	StopSinglePass = "single-pass"
)

// Run is the outcome of one research run.
type Run struct {
	ID         string
	Query      string
	Iterations int
	StopReason string
	Plan       search.Plan

	// Sources is the accumulated set, ranked when the loop stopped normally.
	Sources []types.SourceRecord

	Report       *types.ResearchReport
	Degradations []types.Degradation
}

// Partial reports whether the run was cut short or tolerated failures.
func (r *Run) Partial() bool {
	return r.StopReason == StopCancelled || len(r.Degradations) > 0
}

func (r *Run) degrade(stage, resource string, err error) {
	r.Degradations = append(r.Degradations, types.Degradation{Stage: stage, Resource: resource, Reason: err.Error()})
}

// Pipeline wires the stage components together. It holds no per-run state
// and is safe for concurrent runs.
type Pipeline struct {
	cfg         types.PipelineConfig
	search      search.Client
	queries     *QueryGenerator
	evaluator   *evaluate.Evaluator
	summarizer  *summarize.Summarizer
	analyzer    *analyze.Analyzer
	synthesizer *synthesize.Synthesizer

	now   func() time.Time
	newID func() string
}

// New builds a Pipeline from cfg. A nil counter uses llm.RuneCounter.
func New(cfg types.PipelineConfig, sc search.Client, client llm.Client, counter llm.TokenCounter) *Pipeline {
	m := cfg.AI.Models
	return &Pipeline{
		cfg:         cfg,
		search:      sc,
		queries:     NewQueryGenerator(client, m.Queries),
		evaluator:   evaluate.New(client, m.Evaluation, cfg.Loop.PreviewChars, cfg.AI.MaxRetries),
		summarizer:  summarize.New(client, m.Summary, counter),
		analyzer:    analyze.New(client, m.Analysis, cfg.AI.MaxRetries),
		synthesizer: synthesize.New(client, m.Synthesis, cfg.AI.MaxRetries),
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// Run gathers sources until the evaluator judges them sufficient or the
// iteration ceiling is reached, then analyzes the top-ranked sources and
// synthesizes a report.
//
// Cancelling ctx stops gathering at the next boundary without losing the
// sources accumulated so far; the remaining stages then run on a fresh,
// time-bounded context so the caller still gets a best-effort report. The
// returned Run is non-nil whenever the query is valid, even on error.
func (p *Pipeline) Run(ctx context.Context, query string) (*Run, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, types.NewStageError(types.StageQueries, query, types.ErrInvalidQuery)
	}

	run := &Run{ID: p.newID(), Query: query}
	logger := zerolog.Ctx(ctx).With().Str("run_id", run.ID).Logger()
	ctx = logger.WithContext(ctx)
	run.Plan = search.Plan{RunID: run.ID, Topic: query}

	seen := search.NewSeenSet()
	var accumulated, ranked []types.SourceRecord

	for iteration := 1; ; iteration++ {
		if ctx.Err() != nil {
			run.StopReason = StopCancelled
			break
		}
		run.Iterations = iteration

		queries := p.queries.Generate(ctx, query, iteration, accumulated)
		gathered := search.Gather(ctx, p.search, queries, p.cfg.Search.ResultsPerQuery, seen)
		for _, o := range gathered.Outcomes {
			if o.Error != "" {
				run.Degradations = append(run.Degradations, types.Degradation{Stage: types.StageSearch, Resource: o.Query, Reason: o.Error})
			}
		}
		accumulated = append(accumulated, p.fetch(ctx, run, gathered.Sources)...)

		round := search.Round{
			Iteration:   iteration,
			Queries:     gathered.Outcomes,
			Admitted:    len(gathered.Sources),
			DupsRemoved: gathered.DupsRemoved,
			Accumulated: len(accumulated),
		}

		if ctx.Err() != nil {
			run.Plan.Rounds = append(run.Plan.Rounds, round)
			run.StopReason = StopCancelled
			break
		}

		// Scores from an earlier round must not survive a failed evaluation.
		candidates := make([]types.SourceRecord, len(accumulated))
		for i, s := range accumulated {
			candidates[i] = s.WithScore(0)
		}
		res, err := p.evaluator.Evaluate(ctx, evaluate.Request{Query: query, Sources: candidates, Sufficiency: true})
		if err != nil {
			run.degrade(types.StageEvaluate, query, err)
		} else if len(res.Sources) > 0 {
			ranked = res.Sources
		}
		round.Sufficient = res.Sufficient
		round.Explanation = res.Explanation
		run.Plan.Rounds = append(run.Plan.Rounds, round)

		logger.Info().Int("iteration", iteration).Int("sources", len(accumulated)).
			Int("admitted", round.Admitted).Int("seen", seen.Len()).Bool("sufficient", res.Sufficient).Msg("gathering round complete")

		if res.Sufficient || iteration >= p.maxIterations() {
			if len(res.Sources) > 0 {
				accumulated = res.Sources
			}
			run.StopReason = StopCeiling
			if res.Sufficient {
				run.StopReason = StopSufficient
			}
			break
		}
	}

	run.Sources = accumulated
	run.Plan.Summary = search.PlanSummary{TotalSources: len(accumulated), StopReason: run.StopReason, Timestamp: p.now().UTC()}

	if run.StopReason == StopCancelled {
		accumulated = rankedFirst(ranked, accumulated)
		run.Sources = accumulated
		logger.Warn().Int("sources", len(accumulated)).Msg("run cancelled, producing best-effort report")
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), p.bestEffortTimeout())
		defer cancel()
	}

	err := p.finish(ctx, run, top(accumulated, p.cfg.Loop.TopN), p.cfg.Loop.TokenBudget)
	return run, err
}

// rankedFirst orders accumulated by the last completed ranking. Sources
// admitted after that ranking follow in admission order.
func rankedFirst(ranked, accumulated []types.SourceRecord) []types.SourceRecord {
	if len(ranked) == 0 {
		return accumulated
	}
	byURL := make(map[string]types.SourceRecord, len(accumulated))
	for _, s := range accumulated {
		byURL[s.URL] = s
	}
	out := make([]types.SourceRecord, 0, len(accumulated))
	placed := make(map[string]bool, len(ranked))
	for _, r := range ranked {
		s, ok := byURL[r.URL]
		if !ok || placed[r.URL] {
			continue
		}
		placed[r.URL] = true
		out = append(out, s.WithScore(r.RelevanceScore))
	}
	for _, s := range accumulated {
		if !placed[s.URL] {
			out = append(out, s)
		}
	}
	return out
}

// fetch attaches content to newly admitted sources. A failed fetch keeps
// every source of the call without content and records why.
func (p *Pipeline) fetch(ctx context.Context, run *Run, sources []types.SourceRecord) []types.SourceRecord {
	if len(sources) == 0 {
		return nil
	}
	contents, err := p.search.FetchContents(ctx, types.URLs(sources), p.cfg.Search.BatchSize)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("stage", types.StageFetch).Int("sources", len(sources)).
			Msg("content fetch failed, continuing without content")
		for _, s := range sources {
			run.degrade(types.StageFetch, s.URL, err)
		}
		return sources
	}

	out := make([]types.SourceRecord, len(sources))
	for i, s := range sources {
		out[i] = s.WithContent(contents[i])
	}
	return out
}

// finish runs summarize, analyze and synthesize over sources and attaches
// the report to run.
func (p *Pipeline) finish(ctx context.Context, run *Run, sources []types.SourceRecord, budget int) error {
	summarized := p.summarizeAll(ctx, run, sources, budget)
	analyses := p.analyzeAll(ctx, run, summarized)

	report, err := p.synthesizer.Synthesize(ctx, analyses, run.Query)
	switch {
	case errors.Is(err, types.ErrReportIncomplete):
		run.degrade(types.StageSynthesize, run.Query, err)
	case err != nil:
		return err
	}

	p.annotate(run, &report, sources)
	run.Report = &report
	return nil
}

// annotate layers the run's own facts on top of the synthesized report.
func (p *Pipeline) annotate(run *Run, report *types.ResearchReport, forwarded []types.SourceRecord) {
	now := p.now().UTC()
	report.Timeline = append(report.Timeline, types.TimelineEvent{
		Date:         now.Format("2006-01-02"),
		Event:        "Research Completed",
		Significance: fmt.Sprintf("Analyzed %d sources", len(report.SourceAnalyses)),
	})
	report.SetMeta(types.MetaQuery, run.Query)
	report.SetMeta(types.MetaRunID, run.ID)
	report.SetMeta(types.MetaNumSources, len(run.Sources))
	report.SetMeta(types.MetaSourcesAnalyzed, len(report.SourceAnalyses))
	report.SetMeta(types.MetaGeneratedAt, now.Format(time.RFC3339))
	report.SetMeta(types.MetaPartial, run.Partial())
	if len(run.Degradations) > 0 {
		report.SetMeta(types.MetaDegraded, append([]types.Degradation(nil), run.Degradations...))
	}
	if dr := dateRange(forwarded); dr != "" {
		report.SetMeta(types.MetaDateRange, dr)
	}
}

func (p *Pipeline) maxIterations() int {
	if p.cfg.Loop.MaxIterations > 0 {
		return p.cfg.Loop.MaxIterations
	}
	return 3
}

// bestEffortTimeout allows one call timeout per remaining stage.
func (p *Pipeline) bestEffortTimeout() time.Duration {
	d := p.cfg.AI.CallTimeout
	if d <= 0 {
		d = 2 * time.Minute
	}
	return 3 * d
}

func top(sources []types.SourceRecord, n int) []types.SourceRecord {
	if n > 0 && len(sources) > n {
		return sources[:n]
	}
	return sources
}

// dateRange returns "earliest to latest" over known publication dates.
func dateRange(sources []types.SourceRecord) string {
	var lo, hi string
	for _, s := range sources {
		d := s.PublishedDate
		if d == "" || d == types.UnknownDate {
			continue
		}
		if lo == "" || d < lo {
			lo = d
		}
		if d > hi {
			hi = d
		}
	}
	if lo == "" {
		return ""
	}
	return lo + " to " + hi
}
