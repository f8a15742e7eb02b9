// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/pdiddy/research-pipeline/internal/logging"
	"github.com/pdiddy/research-pipeline/internal/render"
	"github.com/pdiddy/research-pipeline/internal/research"
	"github.com/pdiddy/research-pipeline/internal/store"
)

var (
	flagTemplate string
	flagDirect   bool
	flagNoStore  bool
)

var researchCmd = &cobra.Command{
	Use:   "research <question>",
	Short: "Run the iterative research loop and write a report",
	Long: `Generate search queries, gather and rank sources over up to
three rounds until the model judges them sufficient, then summarize,
analyze and synthesize the top sources into a report.

Interrupting the command (Ctrl-C) stops gathering and still produces a
best-effort report from the sources found so far.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runResearch(cmd, strings.Join(args, " "), store.KindResearch,
			func(ctx context.Context, p *research.Pipeline, q string) (*research.Run, error) {
				return p.Run(ctx, q)
			})
	},
}

var quickCmd = &cobra.Command{
	Use:   "quick <question>",
	Short: "Single-pass research: one search, rank, analyze, report",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runResearch(cmd, strings.Join(args, " "), store.KindQuick,
			func(ctx context.Context, p *research.Pipeline, q string) (*research.Run, error) {
				return p.QuickRun(ctx, q)
			})
	},
}

func init() {
	for _, c := range []*cobra.Command{researchCmd, quickCmd} {
		c.Flags().StringVarP(&flagTemplate, "template", "t", "", "output template: "+strings.Join(render.Templates(), ", "))
		c.Flags().BoolVar(&flagDirect, "direct", false, "fetch page content directly instead of through the search API")
		c.Flags().BoolVar(&flagNoStore, "no-store", false, "do not archive the run")
		rootCmd.AddCommand(c)
	}
}

type runFunc func(ctx context.Context, p *research.Pipeline, query string) (*research.Run, error)

func runResearch(cmd *cobra.Command, query, kind string, fn runFunc) error {
	ctx := cmd.Context()
	cfg := appConfig
	templateID := flagTemplate
	if templateID == "" {
		templateID = cfg.Output.Template
	}

	p, err := newPipeline(cfg, flagDirect)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	stop := getSpinner(cmd.ErrOrStderr(), fmt.Sprintf("Researching %q", query))
	run, err := fn(ctx, p, query)
	stop()
	if err != nil {
		color.New(color.FgRed).Fprintf(cmd.ErrOrStderr(), "Research failed: %v\n", err)
		return err
	}

	path, err := render.New(cfg.Output.Dir).Render(run.Report, templateID)
	if err != nil {
		return err
	}
	planPath, err := writePlanBeside(path, run.Plan)
	if err != nil {
		logging.FromContext(ctx, &fallbackLogger).Warn().Err(err).Msg("writing query plan")
	}

	if !flagNoStore {
		archive(ctx, cfg.Store.Path, store.RunRecord{
			ID:         run.ID,
			Query:      run.Query,
			Kind:       kind,
			Iterations: run.Iterations,
			StopReason: run.StopReason,
			ReportPath: path,
			Sources:    run.Sources,
			History:    planHistory(run.Plan),
			Report:     run.Report,
		})
	}

	green := color.New(color.FgGreen)
	green.Fprintf(w, "Report: %s\n", path)
	if planPath != "" {
		fmt.Fprintf(w, "Plan:   %s\n", planPath)
	}
	fmt.Fprintf(w, "Run %s: %d iteration(s), stopped: %s, %d sources, %d analyzed\n",
		run.ID, run.Iterations, run.StopReason, len(run.Sources), len(run.Report.SourceAnalyses))
	if run.Partial() {
		printDegradations(w, run.Degradations)
	}
	return nil
}
