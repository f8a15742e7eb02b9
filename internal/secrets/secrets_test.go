// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package secrets

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-pipeline/pkg/types"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(t *testing.T) string
		want   Secrets
		errMsg string
	}{
		{
			name: "reads key files and trims whitespace",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, ExaAPIKey, "  exa_abc123  \n")
				writeFile(t, dir, OpenAIAPIKey, "sk-xyz789")
				writeFile(t, dir, AnthropicAPIKey, "ak_456\n")
				return dir
			},
			want: Secrets{
				ExaAPIKey:       "exa_abc123",
				OpenAIAPIKey:    "sk-xyz789",
				AnthropicAPIKey: "ak_456",
			},
		},
		{
			name: "returns empty map for nonexistent directory",
			setup: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "does-not-exist")
			},
			want: Secrets{},
		},
		{
			name: "skips empty files",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, "anthropic-api-key", "valid-key")
				writeFile(t, dir, "empty-key", "")
				writeFile(t, dir, "whitespace-only", "   \n\t  ")
				return dir
			},
			want: Secrets{
				"anthropic-api-key": "valid-key",
			},
		},
		{
			name: "skips dotfiles",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, ".gitkeep", "")
				writeFile(t, dir, ".hidden-key", "secret")
				writeFile(t, dir, ExaAPIKey, "exa_real")
				return dir
			},
			want: Secrets{
				ExaAPIKey: "exa_real",
			},
		},
		{
			name: "skips subdirectories",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, "anthropic-api-key", "ak_123")
				require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir"), 0o755))
				return dir
			},
			want: Secrets{
				"anthropic-api-key": "ak_123",
			},
		},
		{
			name: "returns empty map for empty directory",
			setup: func(t *testing.T) string {
				return t.TempDir()
			},
			want: Secrets{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := tt.setup(t)
			got, err := Load(context.Background(), dir)
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadUnreadableFile(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("file permissions do not restrict root")
	}
	dir := t.TempDir()
	writeFile(t, dir, "good-key", "value123")

	// Create a file then remove read permission.
	badPath := filepath.Join(dir, "bad-key")
	require.NoError(t, os.WriteFile(badPath, []byte("secret"), 0o000))
	t.Cleanup(func() { os.Chmod(badPath, 0o644) })

	got, err := Load(context.Background(), dir)
	require.NoError(t, err)
	// The good file should still be returned; the bad file is skipped with a warning.
	assert.Equal(t, "value123", got["good-key"])
	_, hasBad := got["bad-key"]
	assert.False(t, hasBad, "unreadable file should not appear in result")
}

func TestGet_EnvFallback(t *testing.T) {
	t.Setenv("EXA_API_KEY", " from-env ")
	t.Setenv("OPENAI_API_KEY", "")

	s := Secrets{OpenAIAPIKey: "from-file"}
	assert.Equal(t, "from-env", s.Get(ExaAPIKey))
	assert.Equal(t, "from-file", s.Get(OpenAIAPIKey))
	assert.Empty(t, s.Get("unknown-key"))
}

func TestApply(t *testing.T) {
	t.Setenv("EXA_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	s := Secrets{ExaAPIKey: "exa", OpenAIAPIKey: "oai", AnthropicAPIKey: "ant"}

	cfg := types.DefaultPipelineConfig()
	s.Apply(&cfg)
	assert.Equal(t, "exa", cfg.Search.APIKey)
	assert.Equal(t, "oai", cfg.AI.APIKey)

	cfg = types.DefaultPipelineConfig()
	cfg.AI.Provider = types.ProviderAnthropic
	s.Apply(&cfg)
	assert.Equal(t, "ant", cfg.AI.APIKey)

	cfg = types.DefaultPipelineConfig()
	cfg.AI.APIKey = "explicit"
	s.Apply(&cfg)
	assert.Equal(t, "explicit", cfg.AI.APIKey, "configured keys win")
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}
