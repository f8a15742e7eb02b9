// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/pdiddy/research-pipeline/internal/render"
	"github.com/pdiddy/research-pipeline/internal/store"
)

var (
	flagHistoryMatch  string
	flagHistoryLimit  int
	flagHistoryExport string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List archived runs, or search their reports",
	Long: `List archived runs newest first. With --match, run a full-text
search over report titles, summaries and findings instead. With
--export, write every archived run to a YAML file.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

var renderCmd = &cobra.Command{
	Use:   "render <run-id>",
	Short: "Render an archived run's report with a template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := appConfig
		st, err := store.Open(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer st.Close()

		report, err := st.GetReport(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		templateID := flagTemplate
		if templateID == "" {
			templateID = cfg.Output.Template
		}
		if templateID == "-" {
			data, err := render.Bytes(report, render.JSON)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		}
		path, err := render.New(cfg.Output.Dir).Render(report, templateID)
		if err != nil {
			return err
		}
		color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "Report: %s\n", path)
		return nil
	},
}

func init() {
	historyCmd.Flags().StringVarP(&flagHistoryMatch, "match", "m", "", "full-text search expression (FTS5 syntax)")
	historyCmd.Flags().IntVarP(&flagHistoryLimit, "limit", "n", 20, "maximum runs listed")
	historyCmd.Flags().StringVar(&flagHistoryExport, "export", "", "write all runs to this YAML file")
	rootCmd.AddCommand(historyCmd)

	renderCmd.Flags().StringVarP(&flagTemplate, "template", "t", "",
		"output template: "+strings.Join(render.Templates(), ", ")+", or - for JSON on stdout")
	rootCmd.AddCommand(renderCmd)
}

func runHistory(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	path := appConfig.Store.Path
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs archived yet.")
		return nil
	}

	st, err := store.Open(path)
	if err != nil {
		return err
	}
	defer st.Close()

	if flagHistoryExport != "" {
		if err := st.ExportYAML(ctx, flagHistoryExport); err != nil {
			return err
		}
		color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "Exported to %s\n", flagHistoryExport)
		return nil
	}

	var runs []store.RunSummary
	if flagHistoryMatch != "" {
		runs, err = st.SearchReports(ctx, flagHistoryMatch, flagHistoryLimit)
	} else {
		runs, err = st.ListRuns(ctx, flagHistoryLimit)
	}
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(w, "No matching runs.")
		return nil
	}
	fmt.Fprintf(w, "%-36s  %-16s  %-8s  %-7s  %s\n", "Run", "Created", "Kind", "Sources", "Title")
	fmt.Fprintln(w, strings.Repeat("-", 110))
	for _, r := range runs {
		title := r.Title
		if title == "" {
			title = r.Query
		}
		fmt.Fprintf(w, "%-36s  %-16s  %-8s  %-7d  %s\n",
			r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04"), r.Kind, r.SourceCount, title)
	}
	return nil
}
