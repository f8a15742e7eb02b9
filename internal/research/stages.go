// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package research

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/research-pipeline/pkg/types"
)

// summarizeAll summarizes sources concurrently. Results keep input order; a
// source whose summary failed is carried forward unchanged.
func (p *Pipeline) summarizeAll(ctx context.Context, run *Run, sources []types.SourceRecord, budget int) []types.SourceRecord {
	out := make([]types.SourceRecord, len(sources))
	errs := make([]error, len(sources))

	var g errgroup.Group
	g.SetLimit(p.concurrency())
	for i, src := range sources {
		g.Go(func() error {
			out[i], errs[i] = p.summarizer.Summarize(ctx, src, budget)
			return nil
		})
	}
	_ = g.Wait()

	for i, err := range errs {
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("stage", types.StageSummarize).Str("url", sources[i].URL).
				Msg("summary failed, analyzing full content")
			run.degrade(types.StageSummarize, sources[i].URL, err)
		}
	}
	return out
}

// analyzeAll analyzes sources concurrently. Failed sources are left out of
// the result, in input order, and recorded on run.
func (p *Pipeline) analyzeAll(ctx context.Context, run *Run, sources []types.SourceRecord) []types.SourceAnalysis {
	results := make([]types.SourceAnalysis, len(sources))
	errs := make([]error, len(sources))

	var g errgroup.Group
	g.SetLimit(p.concurrency())
	for i, src := range sources {
		g.Go(func() error {
			results[i], errs[i] = p.analyzer.Analyze(ctx, src, run.Query)
			return nil
		})
	}
	_ = g.Wait()

	analyses := make([]types.SourceAnalysis, 0, len(sources))
	for i, err := range errs {
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("stage", types.StageAnalyze).Str("url", sources[i].URL).
				Msg("analysis failed, source left out of synthesis")
			run.degrade(types.StageAnalyze, sources[i].URL, err)
			continue
		}
		analyses = append(analyses, results[i])
	}
	return analyses
}

func (p *Pipeline) concurrency() int {
	if p.cfg.Loop.Concurrency > 0 {
		return p.cfg.Loop.Concurrency
	}
	return 1
}
