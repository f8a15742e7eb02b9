// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"

	"github.com/pdiddy/research-pipeline/internal/llm"
	"github.com/pdiddy/research-pipeline/internal/logging"
	"github.com/pdiddy/research-pipeline/internal/research"
	"github.com/pdiddy/research-pipeline/internal/search"
	"github.com/pdiddy/research-pipeline/internal/store"
	"github.com/pdiddy/research-pipeline/pkg/types"
)

// fallbackLogger is used when a command runs before the root pre-run has
// put a logger on the context.
var fallbackLogger = zerolog.New(os.Stderr).With().Timestamp().Logger()

// searchClient returns the Exa client, or Exa search paired with direct
// page fetching when direct is set.
func searchClient(cfg types.SearchConfig, direct bool) search.Client {
	exa := search.NewExaClient(cfg)
	if !direct {
		return exa
	}
	return search.Composite{Searcher: exa, ContentFetcher: search.NewPageFetcher(cfg)}
}

func newPipeline(cfg types.PipelineConfig, direct bool) (*research.Pipeline, error) {
	client, err := llm.New(cfg.AI)
	if err != nil {
		return nil, err
	}
	counter := llm.NewTiktokenCounter(cfg.AI.Models.Summary)
	return research.New(cfg, searchClient(cfg.Search, direct), client, counter), nil
}

// getSpinner returns an indeterminate progress bar that keeps spinning until
// the returned stop function is called.
func getSpinner(w io.Writer, desc string) (stop func()) {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(color.CyanString(desc)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				_ = bar.Add(1)
			}
		}
	}()

	return func() {
		close(done)
		_ = bar.Finish()
		fmt.Fprintln(w)
	}
}

// writePlanBeside saves the run's query plan next to the rendered report.
func writePlanBeside(reportPath string, plan search.Plan) (string, error) {
	planPath := strings.TrimSuffix(reportPath, filepath.Ext(reportPath)) + ".plan.yaml"
	if err := search.WritePlan(planPath, plan); err != nil {
		return "", err
	}
	return planPath, nil
}

// planHistory converts the plan's query outcomes into archive history rows.
func planHistory(plan search.Plan) []types.SearchHistoryEntry {
	var out []types.SearchHistoryEntry
	for _, r := range plan.Rounds {
		for _, q := range r.Queries {
			out = append(out, types.SearchHistoryEntry{Query: q.Query, ResultCount: q.Found})
		}
	}
	return out
}

// archive stores rec in the run database. Archive failures are logged and
// never fail the command; the rendered report is already on disk.
func archive(ctx context.Context, path string, rec store.RunRecord) {
	log := logging.FromContext(ctx, &fallbackLogger)
	st, err := store.Open(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("opening run archive")
		return
	}
	defer st.Close()

	if err := st.SaveRun(ctx, rec); err != nil {
		log.Warn().Err(err).Str("run_id", rec.ID).Msg("archiving run")
		return
	}
	log.Debug().Str("run_id", rec.ID).Str("path", path).Msg("run archived")
}

// printDegradations lists the stages that failed softly during a run.
func printDegradations(w io.Writer, degradations []types.Degradation) {
	if len(degradations) == 0 {
		return
	}
	yellow := color.New(color.FgYellow)
	yellow.Fprintf(w, "%d step(s) degraded:\n", len(degradations))
	for _, d := range degradations {
		fmt.Fprintf(w, "  - [%s] %s: %s\n", d.Stage, d.Resource, d.Reason)
	}
}
