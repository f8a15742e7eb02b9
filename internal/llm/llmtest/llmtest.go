// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llmtest provides a scripted llm.Client for tests.
package llmtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/pdiddy/research-pipeline/internal/llm"
)

// Reply is one scripted model answer.
type Reply struct {
	Text      string
	ToolCalls []llm.ToolCall
	Err       error
}

// Text is a Reply carrying only text.
func Text(s string) Reply { return Reply{Text: s} }

// Client replays scripted replies. Replies keyed by stage are consumed in
// order for requests with that Stage; Default answers once a stage's script
// is exhausted or was never given. Safe for concurrent use.
type Client struct {
	mu      sync.Mutex
	scripts map[string][]Reply
	calls   []llm.Request

	// Default answers requests without a script. When nil such requests fail.
	Default func(req llm.Request) Reply
}

// New returns an empty scripted client.
func New() *Client {
	return &Client{scripts: make(map[string][]Reply)}
}

// Script appends replies for stage.
func (c *Client) Script(stage string, replies ...Reply) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scripts[stage] = append(c.scripts[stage], replies...)
	return c
}

// Complete implements llm.Client.
func (c *Client) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	if err := ctx.Err(); err != nil {
		return llm.Response{}, err
	}
	c.mu.Lock()
	c.calls = append(c.calls, req)
	var reply Reply
	queue := c.scripts[req.Stage]
	switch {
	case len(queue) > 0:
		reply = queue[0]
		c.scripts[req.Stage] = queue[1:]
	case c.Default != nil:
		reply = c.Default(req)
	default:
		c.mu.Unlock()
		return llm.Response{}, fmt.Errorf("llmtest: no reply scripted for stage %q", req.Stage)
	}
	c.mu.Unlock()

	if reply.Err != nil {
		return llm.Response{}, reply.Err
	}
	return llm.Response{Text: reply.Text, ToolCalls: reply.ToolCalls}, nil
}

// Calls returns a copy of every request received.
func (c *Client) Calls() []llm.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]llm.Request(nil), c.calls...)
}

// CallsFor returns the requests received for stage.
func (c *Client) CallsFor(stage string) []llm.Request {
	var out []llm.Request
	for _, r := range c.Calls() {
		if r.Stage == stage {
			out = append(out, r)
		}
	}
	return out
}
