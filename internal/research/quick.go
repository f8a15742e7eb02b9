// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package research

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pdiddy/research-pipeline/internal/search"
	"github.com/pdiddy/research-pipeline/pkg/types"
)

// QuickRun is the one-shot flow: a single wide search, ranking without a
// sufficiency verdict, content fetch for the top sources, then the same
// summarize, analyze and synthesize stages as Run with a larger
// summarization budget. A search failure is fatal here.
func (p *Pipeline) QuickRun(ctx context.Context, query string) (*Run, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, types.NewStageError(types.StageSearch, query, types.ErrInvalidQuery)
	}

	run := &Run{ID: p.newID(), Query: query, Iterations: 1, StopReason: StopSinglePass}
	logger := zerolog.Ctx(ctx).With().Str("run_id", run.ID).Logger()
	ctx = logger.WithContext(ctx)

	limit := p.cfg.Loop.QuickSearchResults
	if limit <= 0 {
		limit = 20
	}
	results, err := p.search.Search(ctx, query, limit)
	if err != nil {
		return run, types.NewStageError(types.StageSearch, query, err)
	}

	ranked, err := p.evaluator.EvaluateSources(ctx, results, query, p.cfg.Loop.TopN)
	if err != nil {
		run.degrade(types.StageEvaluate, query, err)
	}
	ranked = p.fetch(ctx, run, ranked)
	run.Sources = ranked

	run.Plan = search.Plan{
		RunID: run.ID,
		Topic: query,
		Rounds: []search.Round{{
			Iteration:   1,
			Queries:     []search.QueryOutcome{{Query: query, Found: len(results), Admitted: len(results)}},
			Admitted:    len(results),
			Accumulated: len(ranked),
		}},
		Summary: search.PlanSummary{TotalSources: len(ranked), StopReason: run.StopReason, Timestamp: p.now().UTC()},
	}

	budget := p.cfg.Loop.QuickTokenBudget
	if budget <= 0 {
		budget = 4000
	}
	err = p.finish(ctx, run, ranked, budget)
	return run, err
}
