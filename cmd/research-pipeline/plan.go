// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/pdiddy/research-pipeline/internal/search"
)

var flagPlanQueriesOnly bool

var planCmd = &cobra.Command{
	Use:   "plan <plan-file>",
	Short: "Show the queries a run issued, round by round",
	Long: `Print a query plan written next to a rendered report
(<report>.plan.yaml): each gathering round with its queries, how many
results each found and admitted, and whether the sources were judged
sufficient.`,
	Args: cobra.ExactArgs(1),
	// Reading a local file needs no config or keys.
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := search.ReadPlan(args[0])
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if flagPlanQueriesOnly {
			for _, q := range p.Queries() {
				fmt.Fprintln(w, q)
			}
			return nil
		}

		bold := color.New(color.Bold)
		bold.Fprintf(w, "Run %s: %s\n", p.RunID, p.Topic)
		for _, r := range p.Rounds {
			verdict := color.YellowString("insufficient")
			if r.Sufficient {
				verdict = color.GreenString("sufficient")
			}
			fmt.Fprintf(w, "\nRound %d: %d admitted, %d duplicates, %d accumulated, %s\n",
				r.Iteration, r.Admitted, r.DupsRemoved, r.Accumulated, verdict)
			for _, q := range r.Queries {
				line := fmt.Sprintf("  %-50s found %2d  admitted %2d", q.Query, q.Found, q.Admitted)
				if q.Error != "" {
					line += color.RedString("  error: %s", q.Error)
				}
				fmt.Fprintln(w, line)
			}
			if r.Explanation != "" {
				fmt.Fprintf(w, "  %s\n", strings.TrimSpace(r.Explanation))
			}
		}
		fmt.Fprintf(w, "\n%d sources, stopped: %s\n", p.Summary.TotalSources, p.Summary.StopReason)
		return nil
	},
}

func init() {
	planCmd.Flags().BoolVarP(&flagPlanQueriesOnly, "queries", "q", false, "print only the query strings")
	rootCmd.AddCommand(planCmd)
}
