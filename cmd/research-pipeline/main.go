// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the research-pipeline CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/research-pipeline/internal/logging"
	"github.com/pdiddy/research-pipeline/internal/secrets"
	"github.com/pdiddy/research-pipeline/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// appConfig is built once in PersistentPreRunE.
var appConfig types.PipelineConfig

// rootCmd is the base command for the research-pipeline CLI.
var rootCmd = &cobra.Command{
	Use:   "research-pipeline",
	Short: "Search the web, read the sources and write a research report",
	Long: `research-pipeline answers a research question by searching the web,
ranking and reading the sources it finds with a language model, and
synthesizing a structured report.

The research command gathers sources over up to three rounds until the
model judges them sufficient; quick does a single pass; agent lets the
model drive search itself. Reports are rendered to files and archived in
a local SQLite database that history and render read back.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger, err := logging.New(os.Stderr, viper.GetString("log.level"), viper.GetBool("log.pretty"))
		if err != nil {
			return err
		}
		ctx := logger.WithContext(cmd.Context())
		cmd.SetContext(ctx)

		s, err := secrets.Load(ctx, viper.GetString("secrets_dir"))
		if err != nil {
			return err
		}
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			logger.Debug().Strs("keys", keys).Msg("loaded secrets")
		}

		cfg := loadPipelineConfig()
		s.Apply(&cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}
		appConfig = cfg
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./research-pipeline.yaml or ~/.config/research-pipeline/research-pipeline.yaml)")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.Bool("pretty-log", true, "human-readable log output on stderr")
	pf.String("secrets-dir", ".secrets/", "directory of API key files")
	pf.String("provider", "", "LLM provider: openai, anthropic, ollama")

	_ = viper.BindPFlag("log.level", pf.Lookup("log-level"))
	_ = viper.BindPFlag("log.pretty", pf.Lookup("pretty-log"))
	_ = viper.BindPFlag("secrets_dir", pf.Lookup("secrets-dir"))
	_ = viper.BindPFlag("ai.provider", pf.Lookup("provider"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("research-pipeline")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "research-pipeline"))
		}
	}

	viper.SetEnvPrefix("RESEARCH_PIPELINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
