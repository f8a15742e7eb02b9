// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"time"
)

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout bounds a single external call.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "research-pipeline/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// SearchConfig holds settings for the search and content-fetch client.
type SearchConfig struct {
	HTTPConfig `yaml:",inline"`

	// BaseURL is the search API root (default "https://api.exa.ai").
	BaseURL string `json:"base_url" yaml:"base_url"`

	// APIKey authenticates against the search API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// ResultsPerQuery is the result bound for each generated query (default 5).
	ResultsPerQuery int `json:"results_per_query" yaml:"results_per_query"`

	// BatchSize is the maximum number of URLs per content request (default 5).
	BatchSize int `json:"batch_size" yaml:"batch_size"`

	// RatePerSecond paces requests to the search API; zero disables pacing.
	RatePerSecond float64 `json:"rate_per_second" yaml:"rate_per_second"`

	// MaxCharacters caps the text returned per URL (default 20000).
	MaxCharacters int `json:"max_characters" yaml:"max_characters"`
}

// Provider names an LLM vendor.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderOllama    Provider = "ollama"
)

// StageModels selects a model identifier per pipeline stage.
type StageModels struct {
	Queries    string `json:"queries" yaml:"queries"`
	Evaluation string `json:"evaluation" yaml:"evaluation"`
	Summary    string `json:"summary" yaml:"summary"`
	Analysis   string `json:"analysis" yaml:"analysis"`
	Synthesis  string `json:"synthesis" yaml:"synthesis"`
	Agent      string `json:"agent" yaml:"agent"`
}

// AIConfig holds settings for stages that call a Generative AI API.
type AIConfig struct {
	// Provider selects the vendor: openai, anthropic or ollama.
	Provider Provider `json:"provider" yaml:"provider"`

	// APIKey is the authentication key for the AI API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// BaseURL overrides the provider endpoint (required for ollama).
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// Models maps stages to model identifiers.
	Models StageModels `json:"models" yaml:"models"`

	// MaxRetries is the number of extra attempts after a schema failure (default 1).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// CallTimeout bounds one model call (default 2m).
	CallTimeout time.Duration `json:"call_timeout" yaml:"call_timeout"`

	// MaxToolRoundTrips caps tool-call round-trips in agent conversations (default 6).
	MaxToolRoundTrips int `json:"max_tool_round_trips" yaml:"max_tool_round_trips"`
}

// LoopConfig holds settings for the source-gathering loop and the per-source stages.
type LoopConfig struct {
	// MaxIterations is the hard ceiling on gathering rounds (default 3).
	MaxIterations int `json:"max_iterations" yaml:"max_iterations"`

	// TopN is the number of ranked sources carried into analysis (default 5).
	TopN int `json:"top_n" yaml:"top_n"`

	// TokenBudget is the per-source size above which content is summarized (default 2000).
	TokenBudget int `json:"token_budget" yaml:"token_budget"`

	// QuickTokenBudget is the summarization budget of the one-shot flow (default 4000).
	QuickTokenBudget int `json:"quick_token_budget" yaml:"quick_token_budget"`

	// QuickSearchResults is the result bound of the one-shot search (default 20).
	QuickSearchResults int `json:"quick_search_results" yaml:"quick_search_results"`

	// PreviewChars is the content preview length sent to the evaluator (default 500).
	PreviewChars int `json:"preview_chars" yaml:"preview_chars"`

	// Concurrency bounds per-source summarize and analyze fan-out (default 4).
	Concurrency int `json:"concurrency" yaml:"concurrency"`
}

// OutputConfig holds report rendering settings.
type OutputConfig struct {
	// Dir is the directory rendered reports are written to (default "reports").
	Dir string `json:"dir" yaml:"dir"`

	// Template is the default template id (default "markdown").
	Template string `json:"template" yaml:"template"`
}

// StoreConfig holds run archive settings.
type StoreConfig struct {
	// Path is the SQLite database file (default "reports/runs.db").
	Path string `json:"path" yaml:"path"`
}

// PipelineConfig groups all configuration. It is built once at process start.
type PipelineConfig struct {
	Search SearchConfig `json:"search" yaml:"search"`
	AI     AIConfig     `json:"ai" yaml:"ai"`
	Loop   LoopConfig   `json:"loop" yaml:"loop"`
	Output OutputConfig `json:"output" yaml:"output"`
	Store  StoreConfig  `json:"store" yaml:"store"`
}

// DefaultModel is used for every stage unless configured otherwise.
const DefaultModel = "gpt-4o-mini"

// DefaultPipelineConfig returns the configuration defaults.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Search: SearchConfig{
			HTTPConfig: HTTPConfig{
				Timeout:   60 * time.Second,
				UserAgent: "research-pipeline/0.1",
			},
			BaseURL:         "https://api.exa.ai",
			ResultsPerQuery: 5,
			BatchSize:       5,
			RatePerSecond:   5,
			MaxCharacters:   20000,
		},
		AI: AIConfig{
			Provider: ProviderOpenAI,
			Models: StageModels{
				Queries:    DefaultModel,
				Evaluation: DefaultModel,
				Summary:    DefaultModel,
				Analysis:   DefaultModel,
				Synthesis:  DefaultModel,
				Agent:      "gpt-4o",
			},
			MaxRetries:        1,
			CallTimeout:       2 * time.Minute,
			MaxToolRoundTrips: 6,
		},
		Loop: LoopConfig{
			MaxIterations:      3,
			TopN:               5,
			TokenBudget:        2000,
			QuickTokenBudget:   4000,
			QuickSearchResults: 20,
			PreviewChars:       500,
			Concurrency:        4,
		},
		Output: OutputConfig{
			Dir:      "reports",
			Template: "markdown",
		},
		Store: StoreConfig{
			Path: "reports/runs.db",
		},
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (c PipelineConfig) Validate() error {
	switch {
	case c.Loop.MaxIterations < 1:
		return fmt.Errorf("%w: loop.max_iterations must be >= 1, got %d", ErrValidation, c.Loop.MaxIterations)
	case c.Loop.TopN < 1:
		return fmt.Errorf("%w: loop.top_n must be >= 1, got %d", ErrValidation, c.Loop.TopN)
	case c.Loop.TokenBudget < 1:
		return fmt.Errorf("%w: loop.token_budget must be >= 1, got %d", ErrValidation, c.Loop.TokenBudget)
	case c.Loop.Concurrency < 1:
		return fmt.Errorf("%w: loop.concurrency must be >= 1, got %d", ErrValidation, c.Loop.Concurrency)
	case c.Search.BatchSize < 1:
		return fmt.Errorf("%w: search.batch_size must be >= 1, got %d", ErrValidation, c.Search.BatchSize)
	case c.Search.ResultsPerQuery < 1:
		return fmt.Errorf("%w: search.results_per_query must be >= 1, got %d", ErrValidation, c.Search.ResultsPerQuery)
	case c.AI.MaxRetries < 0 || c.AI.MaxRetries > 1:
		return fmt.Errorf("%w: ai.max_retries must be 0 or 1, got %d", ErrValidation, c.AI.MaxRetries)
	}
	switch c.AI.Provider {
	case ProviderOpenAI, ProviderAnthropic, ProviderOllama:
	default:
		return fmt.Errorf("%w: unknown ai.provider %q", ErrValidation, c.AI.Provider)
	}
	return nil
}
