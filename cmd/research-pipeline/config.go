// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"github.com/spf13/viper"

	"github.com/pdiddy/research-pipeline/pkg/types"
)

// loadPipelineConfig overlays config file, environment and bound flags on
// the defaults. Keys mirror the yaml names of types.PipelineConfig.
func loadPipelineConfig() types.PipelineConfig {
	cfg := types.DefaultPipelineConfig()

	str := func(key string, dst *string) {
		if viper.IsSet(key) && viper.GetString(key) != "" {
			*dst = viper.GetString(key)
		}
	}
	num := func(key string, dst *int) {
		if viper.IsSet(key) {
			*dst = viper.GetInt(key)
		}
	}

	s := &cfg.Search
	str("search.base_url", &s.BaseURL)
	str("search.api_key", &s.APIKey)
	str("search.user_agent", &s.UserAgent)
	num("search.results_per_query", &s.ResultsPerQuery)
	num("search.batch_size", &s.BatchSize)
	num("search.max_characters", &s.MaxCharacters)
	if viper.IsSet("search.rate_per_second") {
		s.RatePerSecond = viper.GetFloat64("search.rate_per_second")
	}
	if viper.IsSet("search.timeout") {
		s.Timeout = viper.GetDuration("search.timeout")
	}

	ai := &cfg.AI
	var provider string
	str("ai.provider", &provider)
	if provider != "" {
		ai.Provider = types.Provider(provider)
	}
	str("ai.api_key", &ai.APIKey)
	str("ai.base_url", &ai.BaseURL)
	str("ai.models.queries", &ai.Models.Queries)
	str("ai.models.evaluation", &ai.Models.Evaluation)
	str("ai.models.summary", &ai.Models.Summary)
	str("ai.models.analysis", &ai.Models.Analysis)
	str("ai.models.synthesis", &ai.Models.Synthesis)
	str("ai.models.agent", &ai.Models.Agent)
	num("ai.max_retries", &ai.MaxRetries)
	num("ai.max_tool_round_trips", &ai.MaxToolRoundTrips)
	if viper.IsSet("ai.call_timeout") {
		ai.CallTimeout = viper.GetDuration("ai.call_timeout")
	}

	l := &cfg.Loop
	num("loop.max_iterations", &l.MaxIterations)
	num("loop.top_n", &l.TopN)
	num("loop.token_budget", &l.TokenBudget)
	num("loop.quick_token_budget", &l.QuickTokenBudget)
	num("loop.quick_search_results", &l.QuickSearchResults)
	num("loop.preview_chars", &l.PreviewChars)
	num("loop.concurrency", &l.Concurrency)

	str("output.dir", &cfg.Output.Dir)
	str("output.template", &cfg.Output.Template)
	str("store.path", &cfg.Store.Path)
	return cfg
}
