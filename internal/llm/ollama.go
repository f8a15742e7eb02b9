// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/pdiddy/research-pipeline/pkg/types"
)

// OllamaClient runs prompts against a local Ollama server through
// langchaingo. It does not support tool calls.
type OllamaClient struct {
	model llms.Model
}

// NewOllamaClient connects to serverURL with model as the default model.
func NewOllamaClient(model, serverURL string) (*OllamaClient, error) {
	opts := []ollama.Option{ollama.WithModel(model)}
	if serverURL != "" {
		opts = append(opts, ollama.WithServerURL(serverURL))
	}
	m, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating ollama client: %w", err)
	}
	return &OllamaClient{model: m}, nil
}

// Complete implements Client.
func (o *OllamaClient) Complete(ctx context.Context, req Request) (Response, error) {
	if len(req.Tools) > 0 {
		return Response{}, fmt.Errorf("%w: ollama provider does not support tool calls", types.ErrValidation)
	}

	var content []llms.MessageContent
	if req.System != "" {
		content = append(content, llms.TextParts(llms.ChatMessageTypeSystem, req.System))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case RoleAssistant:
			content = append(content, llms.TextParts(llms.ChatMessageTypeAI, m.Content))
		default:
			content = append(content, llms.TextParts(llms.ChatMessageTypeHuman, m.Content))
		}
	}

	var opts []llms.CallOption
	if req.Model != "" {
		opts = append(opts, llms.WithModel(req.Model))
	}
	if req.JSON {
		opts = append(opts, llms.WithJSONMode())
	}
	if req.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(req.MaxTokens))
	}

	resp, err := o.model.GenerateContent(ctx, content, opts...)
	if err != nil {
		return Response{}, upstream("ollama", err)
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return Response{}, nil
	}
	return Response{Text: resp.Choices[0].Content}, nil
}
