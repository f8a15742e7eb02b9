// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/pdiddy/research-pipeline/internal/search"
)

var (
	flagSearchMax  int
	flagSearchJSON bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Run one web search and print the results",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := appConfig
		results, err := search.NewExaClient(cfg.Search).Search(cmd.Context(), strings.Join(args, " "), flagSearchMax)
		if err != nil {
			return err
		}
		if flagSearchJSON {
			return search.FormatJSON(results, cmd.OutOrStdout())
		}
		search.FormatTable(results, cmd.OutOrStdout())
		return nil
	},
}

var fetchCmd = &cobra.Command{
	Use:   "fetch <url>...",
	Short: "Fetch and print the text content of one or more URLs",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := appConfig
		contents, err := searchClient(cfg.Search, flagDirect).FetchContents(cmd.Context(), args, cfg.Search.BatchSize)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		cyan := color.New(color.FgCyan, color.Bold)
		for i, u := range args {
			cyan.Fprintf(w, "== %s (%d chars)\n", u, len([]rune(contents[i])))
			fmt.Fprintln(w, contents[i])
			fmt.Fprintln(w)
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().IntVarP(&flagSearchMax, "max-results", "n", 10, "maximum results")
	searchCmd.Flags().BoolVar(&flagSearchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)

	fetchCmd.Flags().BoolVar(&flagDirect, "direct", false, "download pages directly instead of through the search API")
	rootCmd.AddCommand(fetchCmd)
}
