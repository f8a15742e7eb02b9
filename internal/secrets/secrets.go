// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys from a directory of plain-text files.
// Each file in the directory represents one secret: the filename is the key
// name and the file contents (trimmed) are the value. A key with no file
// falls back to its environment variable.
package secrets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pdiddy/research-pipeline/pkg/types"
)

// Key file names.
const (
	ExaAPIKey       = "exa-api-key"
	OpenAIAPIKey    = "openai-api-key"
	AnthropicAPIKey = "anthropic-api-key"
)

var envFallback = map[string]string{
	ExaAPIKey:       "EXA_API_KEY",
	OpenAIAPIKey:    "OPENAI_API_KEY",
	AnthropicAPIKey: "ANTHROPIC_API_KEY",
}

// Secrets maps key names to values.
type Secrets map[string]string

// Load reads all files in dir. A missing directory or missing files are
// not errors; Load returns an empty set. Unreadable files are logged and
// skipped.
func Load(ctx context.Context, dir string) (Secrets, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return Secrets{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(Secrets)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("secret", name).Msg("could not read secret")
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// Get returns the value of key, falling back to its environment variable.
func (s Secrets) Get(key string) string {
	if v := s[key]; v != "" {
		return v
	}
	if env, ok := envFallback[key]; ok {
		return strings.TrimSpace(os.Getenv(env))
	}
	return ""
}

// Apply fills API keys in cfg that are not already set. The AI key is
// chosen by the configured provider.
func (s Secrets) Apply(cfg *types.PipelineConfig) {
	if cfg.Search.APIKey == "" {
		cfg.Search.APIKey = s.Get(ExaAPIKey)
	}
	if cfg.AI.APIKey != "" {
		return
	}
	switch cfg.AI.Provider {
	case types.ProviderAnthropic:
		cfg.AI.APIKey = s.Get(AnthropicAPIKey)
	case types.ProviderOpenAI, "":
		cfg.AI.APIKey = s.Get(OpenAIAPIKey)
	}
}
