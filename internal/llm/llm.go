// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm is the boundary to large-language-model providers. It defines
// a provider-neutral chat request, JSON decoding of model output, a bounded
// tool-calling loop and token estimation.
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/pdiddy/research-pipeline/pkg/types"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one conversation turn. Assistant turns may carry tool calls;
// tool turns carry the result of one call.
type Message struct {
	Role       Role
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
	Name       string
}

// Tool describes a function the model may ask the caller to run.
// Parameters is a JSON schema object.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ToolCall is a model request to run a named tool. Arguments is raw JSON.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Request is one chat completion request.
type Request struct {
	// Stage names the pipeline stage issuing the call; used for logging only.
	Stage     string
	Model     string
	System    string
	Messages  []Message
	Tools     []Tool
	JSON      bool
	MaxTokens int
}

// Response is the model's reply: either final text or tool calls.
type Response struct {
	Text      string
	ToolCalls []ToolCall
}

// Client sends chat requests to a provider. Implementations wrap transport
// failures in types.ErrUpstreamUnavailable.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// Prompt builds a single-turn request.
func Prompt(stage, model, system, user string) Request {
	return Request{
		Stage:    stage,
		Model:    model,
		System:   system,
		Messages: []Message{{Role: RoleUser, Content: user}},
		JSON:     true,
	}
}

// CompleteJSON sends req and decodes the reply text into v.
func CompleteJSON(ctx context.Context, c Client, req Request, v any) error {
	resp, err := c.Complete(ctx, req)
	if err != nil {
		return err
	}
	return DecodeJSON(resp.Text, v)
}

// upstream wraps a provider failure so it matches types.ErrUpstreamUnavailable.
func upstream(provider string, err error) error {
	return fmt.Errorf("%w: %s: %w", types.ErrUpstreamUnavailable, provider, err)
}

// timeoutClient bounds every call with its own deadline.
type timeoutClient struct {
	next    Client
	timeout time.Duration
}

// WithTimeout returns a Client that gives each call at most d.
func WithTimeout(c Client, d time.Duration) Client {
	if d <= 0 {
		return c
	}
	return &timeoutClient{next: c, timeout: d}
}

func (t *timeoutClient) Complete(ctx context.Context, req Request) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Complete(ctx, req)
}
