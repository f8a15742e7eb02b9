// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-pipeline/internal/llm"
	"github.com/pdiddy/research-pipeline/internal/llm/llmtest"
	"github.com/pdiddy/research-pipeline/pkg/types"
)

// --- DecodeJSON ---

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Sufficient bool `json:"sufficient"`
		N          int  `json:"n"`
	}
	tests := []struct {
		name string
		text string
		want payload
	}{
		{"plain", `{"sufficient": true, "n": 2}`, payload{true, 2}},
		{"fenced", "```json\n{\"sufficient\": true, \"n\": 3}\n```", payload{true, 3}},
		{"prose around", "Here you go:\n{\"n\": 4}\nHope that helps.", payload{false, 4}},
		{"trailing comma", `{"n": 5,}`, payload{false, 5}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got payload
			require.NoError(t, llm.DecodeJSON(tc.text, &got))
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDecodeJSON_Malformed(t *testing.T) {
	var v map[string]any
	for _, text := range []string{"", "no json here", "{not: json: at all"} {
		err := llm.DecodeJSON(text, &v)
		assert.ErrorIs(t, err, types.ErrMalformedResponse, text)
		assert.ErrorIs(t, err, types.ErrSchema, text)
	}
}

// --- ToolLoop ---

func TestToolLoop_DispatchesThenFinishes(t *testing.T) {
	fake := llmtest.New().Script("agent",
		llmtest.Reply{ToolCalls: []llm.ToolCall{{ID: "c1", Name: "search_articles", Arguments: `{"query":"cats"}`}}},
		llmtest.Text(`{"title": "Cats"}`),
	)
	var dispatched []string
	loop := &llm.ToolLoop{
		Client: fake,
		Dispatcher: llm.DispatchFunc(func(_ context.Context, call llm.ToolCall) (any, error) {
			dispatched = append(dispatched, call.Name)
			return []string{"https://a.example/1"}, nil
		}),
		MaxRoundTrips: 4,
	}

	var out struct {
		Title string `json:"title"`
	}
	res, err := loop.Run(context.Background(), llm.Prompt("agent", "m", "sys", "research cats"), &out)
	require.NoError(t, err)
	assert.Equal(t, "Cats", out.Title)
	assert.Equal(t, 2, res.RoundTrips)
	assert.Equal(t, 1, res.ToolCalls)
	assert.Equal(t, []string{"search_articles"}, dispatched)

	second := fake.Calls()[1]
	require.Len(t, second.Messages, 3)
	assert.Equal(t, llm.RoleAssistant, second.Messages[1].Role)
	assert.Equal(t, llm.RoleTool, second.Messages[2].Role)
	assert.Equal(t, "c1", second.Messages[2].ToolCallID)
	assert.JSONEq(t, `["https://a.example/1"]`, second.Messages[2].Content)
}

func TestToolLoop_RoundTripCap(t *testing.T) {
	fake := llmtest.New()
	fake.Default = func(llm.Request) llmtest.Reply {
		return llmtest.Reply{ToolCalls: []llm.ToolCall{{ID: "x", Name: "search_articles", Arguments: `{}`}}}
	}
	loop := &llm.ToolLoop{
		Client:        fake,
		Dispatcher:    llm.DispatchFunc(func(context.Context, llm.ToolCall) (any, error) { return []any{}, nil }),
		MaxRoundTrips: 3,
	}
	var out map[string]any
	res, err := loop.Run(context.Background(), llm.Prompt("agent", "m", "s", "u"), &out)
	assert.ErrorIs(t, err, types.ErrToolLoopExhausted)
	assert.Equal(t, 3, res.RoundTrips)
	assert.Len(t, fake.Calls(), 3)
}

func TestToolLoop_RepromptsOnceForJSON(t *testing.T) {
	fake := llmtest.New().Script("agent",
		llmtest.Text("Sorry, here is prose."),
		llmtest.Text(`{"ok": true}`),
	)
	loop := &llm.ToolLoop{Client: fake}
	var out struct {
		OK bool `json:"ok"`
	}
	_, err := loop.Run(context.Background(), llm.Prompt("agent", "m", "s", "u"), &out)
	require.NoError(t, err)
	assert.True(t, out.OK)

	last := fake.Calls()[1].Messages
	assert.Equal(t, llm.RoleUser, last[len(last)-1].Role)
	assert.Contains(t, last[len(last)-1].Content, "valid JSON")
}

func TestToolLoop_SecondBadJSONFails(t *testing.T) {
	fake := llmtest.New().Script("agent", llmtest.Text("nope"), llmtest.Text("still nope"))
	loop := &llm.ToolLoop{Client: fake}
	var out map[string]any
	_, err := loop.Run(context.Background(), llm.Prompt("agent", "m", "s", "u"), &out)
	assert.ErrorIs(t, err, types.ErrMalformedResponse)
}

func TestToolLoop_DispatchErrorReportedToModel(t *testing.T) {
	fake := llmtest.New().Script("agent",
		llmtest.Reply{ToolCalls: []llm.ToolCall{{ID: "c1", Name: "boom"}}},
		llmtest.Text(`{}`),
	)
	loop := &llm.ToolLoop{
		Client: fake,
		Dispatcher: llm.DispatchFunc(func(context.Context, llm.ToolCall) (any, error) {
			return nil, errors.New("tool exploded")
		}),
	}
	var out map[string]any
	_, err := loop.Run(context.Background(), llm.Prompt("agent", "m", "s", "u"), &out)
	require.NoError(t, err)
	toolMsg := fake.Calls()[1].Messages[2]
	assert.JSONEq(t, `{"error":"tool exploded"}`, toolMsg.Content)
}

// --- tokens ---

func TestRuneCounterMonotonic(t *testing.T) {
	c := llm.RuneCounter{}
	assert.Equal(t, 0, c.Count(""))
	assert.Equal(t, 1, c.Count("abc"))
	assert.Equal(t, 2, c.Count("abcde"))
	assert.LessOrEqual(t, c.Count("short"), c.Count("a much longer piece of text"))
}

// --- timeout ---

type slowClient struct{}

func (slowClient) Complete(ctx context.Context, _ llm.Request) (llm.Response, error) {
	<-ctx.Done()
	return llm.Response{}, ctx.Err()
}

func TestWithTimeout(t *testing.T) {
	c := llm.WithTimeout(slowClient{}, 10*time.Millisecond)
	_, err := c.Complete(context.Background(), llm.Request{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// --- providers ---

func TestOpenAIClient_ToolCallsAndText(t *testing.T) {
	var seen map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &seen))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"id": "chatcmpl-1", "object": "chat.completion", "created": 1, "model": "gpt-4o-mini",
			"choices": [{"index": 0, "finish_reason": "tool_calls", "message": {
				"role": "assistant", "content": "",
				"tool_calls": [{"id": "call_1", "type": "function",
					"function": {"name": "search_articles", "arguments": "{\"query\":\"cats\"}"}}]
			}}]
		}`)
	}))
	defer ts.Close()

	c := llm.NewOpenAIClient("sk-test", ts.URL)
	req := llm.Prompt("agent", "gpt-4o-mini", "system text", "user text")
	req.Tools = []llm.Tool{{Name: "search_articles", Description: "search", Parameters: map[string]any{"type": "object"}}}

	resp, err := c.Complete(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "call_1", resp.ToolCalls[0].ID)
	assert.Equal(t, "search_articles", resp.ToolCalls[0].Name)
	assert.JSONEq(t, `{"query":"cats"}`, resp.ToolCalls[0].Arguments)

	assert.Equal(t, "gpt-4o-mini", seen["model"])
	msgs := seen["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Len(t, seen["tools"], 1)
}

func TestOpenAIClient_UpstreamError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error": {"message": "bad"}}`)
	}))
	defer ts.Close()

	c := llm.NewOpenAIClient("sk-test", ts.URL)
	_, err := c.Complete(context.Background(), llm.Prompt("x", "m", "s", "u"))
	assert.ErrorIs(t, err, types.ErrUpstreamUnavailable)
	assert.ErrorIs(t, err, types.ErrUpstream)
}

func TestNew_RequiresKey(t *testing.T) {
	_, err := llm.New(types.AIConfig{Provider: types.ProviderOpenAI})
	assert.ErrorIs(t, err, types.ErrValidation)

	_, err = llm.New(types.AIConfig{Provider: "mystery"})
	assert.ErrorIs(t, err, types.ErrValidation)

	c, err := llm.New(types.AIConfig{Provider: types.ProviderAnthropic, APIKey: "k", CallTimeout: time.Second})
	require.NoError(t, err)
	assert.NotNil(t, c)
}
