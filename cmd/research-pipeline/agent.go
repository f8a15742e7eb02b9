// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/research-pipeline/internal/agent"
	"github.com/pdiddy/research-pipeline/internal/llm"
	"github.com/pdiddy/research-pipeline/internal/render"
	"github.com/pdiddy/research-pipeline/internal/search"
	"github.com/pdiddy/research-pipeline/internal/store"
	"github.com/pdiddy/research-pipeline/pkg/types"
)

var agentCmd = &cobra.Command{
	Use:   "agent <question>",
	Short: "Let the model drive search and reading through tool calls",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAgent,
}

var (
	flagTaskMax    int
	flagTaskMin    string
	flagTaskRecent bool
	flagTaskJSON   bool
)

var taskCmd = &cobra.Command{
	Use:   "task <query>",
	Short: "Search, read every result and filter by date",
	Long: `Run one search, fetch the content of every result, optionally drop
results older than --min-date, and print the results with summary stats.
No model is involved.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTask,
}

func init() {
	agentCmd.Flags().StringVarP(&flagTemplate, "template", "t", "", "output template: "+strings.Join(render.Templates(), ", "))
	agentCmd.Flags().BoolVar(&flagDirect, "direct", false, "fetch page content directly instead of through the search API")
	agentCmd.Flags().BoolVar(&flagNoStore, "no-store", false, "do not archive the run")
	rootCmd.AddCommand(agentCmd)

	taskCmd.Flags().IntVarP(&flagTaskMax, "max-results", "n", agent.DefaultTaskResults, "maximum search results")
	taskCmd.Flags().StringVar(&flagTaskMin, "min-date", "", "drop results published before this date (YYYY-MM-DD)")
	taskCmd.Flags().BoolVar(&flagTaskRecent, "recent", true, "order results newest first")
	taskCmd.Flags().BoolVar(&flagTaskJSON, "json", false, "output results as JSON")
	taskCmd.Flags().BoolVar(&flagDirect, "direct", false, "fetch page content directly instead of through the search API")
	rootCmd.AddCommand(taskCmd)
}

func runAgent(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := appConfig
	query := strings.Join(args, " ")
	templateID := flagTemplate
	if templateID == "" {
		templateID = cfg.Output.Template
	}

	client, err := llm.New(cfg.AI)
	if err != nil {
		return err
	}
	researcher := agent.NewToolResearcher(client, searchClient(cfg.Search, flagDirect),
		cfg.AI.Models.Agent, cfg.AI.MaxToolRoundTrips, cfg.Search.BatchSize)

	stop := getSpinner(cmd.ErrOrStderr(), fmt.Sprintf("Agent researching %q", query))
	report, err := researcher.Research(ctx, query)
	stop()

	w := cmd.OutOrStdout()
	switch {
	case errors.Is(err, types.ErrReportIncomplete) && report != nil:
		color.New(color.FgYellow).Fprintf(w, "Report is incomplete: %v\n", err)
	case err != nil:
		color.New(color.FgRed).Fprintf(cmd.ErrOrStderr(), "Agent failed: %v\n", err)
		return err
	}

	path, err := render.New(cfg.Output.Dir).Render(report, templateID)
	if err != nil {
		return err
	}

	history := researcher.SearchHistory()
	if !flagNoStore {
		archive(ctx, cfg.Store.Path, store.RunRecord{
			ID:         uuid.NewString(),
			Query:      query,
			Kind:       store.KindAgent,
			Iterations: 1,
			ReportPath: path,
			History:    history,
			Report:     report,
		})
	}

	color.New(color.FgGreen).Fprintf(w, "Report: %s\n", path)
	fmt.Fprintf(w, "%d searches, %d findings\n", len(history), len(report.KeyFindings))
	return nil
}

func runTask(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := appConfig

	task := agent.NewTask(strings.Join(args, " "))
	task.MaxResults = flagTaskMax
	task.MinDate = flagTaskMin
	task.RequireRecent = flagTaskRecent

	a := agent.NewTaskAgent(searchClient(cfg.Search, flagDirect), cfg.Search.BatchSize)
	stop := getSpinner(cmd.ErrOrStderr(), fmt.Sprintf("Searching %q", task.Query))
	results, err := a.Research(ctx, task)
	stop()
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if flagTaskJSON {
		return search.FormatJSON(results, w)
	}
	search.FormatTable(results, w)

	stats := agent.Summarize(results)
	fmt.Fprintln(w)
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(stats); err != nil {
		return fmt.Errorf("encoding stats: %w", err)
	}
	return enc.Close()
}
