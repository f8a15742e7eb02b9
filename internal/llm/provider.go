// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"fmt"

	"github.com/pdiddy/research-pipeline/internal/httputil"
	"github.com/pdiddy/research-pipeline/pkg/types"
)

// New builds the Client selected by cfg.Provider, bounded by cfg.CallTimeout.
func New(cfg types.AIConfig) (Client, error) {
	var c Client
	switch cfg.Provider {
	case types.ProviderOpenAI, "":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%w: openai api key is required", types.ErrValidation)
		}
		c = NewOpenAIClient(cfg.APIKey, cfg.BaseURL)
	case types.ProviderAnthropic:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%w: anthropic api key is required", types.ErrValidation)
		}
		c = &AnthropicClient{APIKey: cfg.APIKey, HTTP: httputil.NewClient(cfg.CallTimeout, 0)}
	case types.ProviderOllama:
		oc, err := NewOllamaClient(cfg.Models.Summary, cfg.BaseURL)
		if err != nil {
			return nil, err
		}
		c = oc
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", types.ErrValidation, cfg.Provider)
	}
	return WithTimeout(c, cfg.CallTimeout), nil
}
