// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnthropicClient_ToolUseRoundTrip(t *testing.T) {
	var got anthropicRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		io.WriteString(w, `{"content": [
			{"type": "text", "text": "Let me search."},
			{"type": "tool_use", "id": "tu_1", "name": "search_articles", "input": {"query": "cats"}}
		], "stop_reason": "tool_use"}`)
	}))
	defer ts.Close()

	old := anthropicAPIURL
	anthropicAPIURL = ts.URL
	defer func() { anthropicAPIURL = old }()

	c := &AnthropicClient{APIKey: "key"}
	req := Request{
		Model:  "claude",
		System: "sys",
		Messages: []Message{
			{Role: RoleUser, Content: "research cats"},
			{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "a", Name: "search_articles", Arguments: `{"query":"x"}`}, {ID: "b", Name: "get_article_content", Arguments: `{}`}}},
			{Role: RoleTool, ToolCallID: "a", Content: `[]`},
			{Role: RoleTool, ToolCallID: "b", Content: `{}`},
		},
		Tools: []Tool{{Name: "search_articles", Parameters: map[string]any{"type": "object"}}},
	}
	resp, err := c.Complete(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "Let me search.", resp.Text)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "tu_1", resp.ToolCalls[0].ID)
	assert.JSONEq(t, `{"query":"cats"}`, resp.ToolCalls[0].Arguments)

	assert.Equal(t, "sys", got.System)
	assert.Equal(t, anthropicDefaultMaxTokens, got.MaxTokens)
	require.Len(t, got.Messages, 3, "tool results fold into one user turn")
	assert.Equal(t, "user", got.Messages[2].Role)
	assert.Len(t, got.Messages[2].Content, 2)
	assert.Equal(t, "tool_result", got.Messages[2].Content[0].Type)
	require.Len(t, got.Tools, 1)
}

func TestAnthropicClient_Non200(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ts.Close()

	old := anthropicAPIURL
	anthropicAPIURL = ts.URL
	defer func() { anthropicAPIURL = old }()

	_, err := (&AnthropicClient{APIKey: "bad"}).Complete(context.Background(), Request{Model: "m"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
