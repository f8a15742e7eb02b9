// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/pdiddy/research-pipeline/pkg/types"
)

// DefaultMaxRoundTrips caps model calls in one tool conversation.
const DefaultMaxRoundTrips = 6

// jsonReprompt is appended once when the final message is not valid JSON.
const jsonReprompt = "Please provide your response in valid JSON format following the specified schema exactly."

// Dispatcher executes one tool call and returns its JSON-serializable result.
type Dispatcher interface {
	Dispatch(ctx context.Context, call ToolCall) (any, error)
}

// DispatchFunc adapts a function to Dispatcher.
type DispatchFunc func(ctx context.Context, call ToolCall) (any, error)

// Dispatch implements Dispatcher.
func (f DispatchFunc) Dispatch(ctx context.Context, call ToolCall) (any, error) {
	return f(ctx, call)
}

// LoopState is the state of a tool conversation.
type LoopState int

const (
	StateAwaitingModel LoopState = iota
	StateDispatch
	StateFinal
)

func (s LoopState) String() string {
	switch s {
	case StateAwaitingModel:
		return "awaiting-model"
	case StateDispatch:
		return "dispatch"
	case StateFinal:
		return "final"
	}
	return "unknown"
}

// ToolLoop drives a conversation in which the model may request tool calls
// before answering. Each model call counts as one round-trip.
type ToolLoop struct {
	Client        Client
	Dispatcher    Dispatcher
	MaxRoundTrips int
}

// LoopResult describes a finished conversation.
type LoopResult struct {
	RoundTrips int
	ToolCalls  int
	Messages   []Message
}

// Run sends req, executes requested tools and decodes the final reply into
// out. If the final reply is not valid JSON the model is asked once more.
// Exceeding MaxRoundTrips returns types.ErrToolLoopExhausted.
func (l *ToolLoop) Run(ctx context.Context, req Request, out any) (LoopResult, error) {
	limit := l.MaxRoundTrips
	if limit <= 0 {
		limit = DefaultMaxRoundTrips
	}
	log := zerolog.Ctx(ctx)

	res := LoopResult{Messages: append([]Message(nil), req.Messages...)}
	reprompted := false
	state := StateAwaitingModel

	for res.RoundTrips < limit {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		req.Messages = res.Messages
		resp, err := l.Client.Complete(ctx, req)
		res.RoundTrips++
		if err != nil {
			return res, err
		}

		if len(resp.ToolCalls) > 0 {
			state = StateDispatch
			res.Messages = append(res.Messages, Message{Role: RoleAssistant, Content: resp.Text, ToolCalls: resp.ToolCalls})
			for _, call := range resp.ToolCalls {
				res.ToolCalls++
				res.Messages = append(res.Messages, Message{
					Role:       RoleTool,
					ToolCallID: call.ID,
					Name:       call.Name,
					Content:    l.dispatch(ctx, call),
				})
			}
			log.Debug().Str("state", state.String()).Int("round_trip", res.RoundTrips).
				Int("calls", len(resp.ToolCalls)).Msg("tool calls dispatched")
			state = StateAwaitingModel
			continue
		}

		err = DecodeJSON(resp.Text, out)
		if err == nil {
			state = StateFinal
			res.Messages = append(res.Messages, Message{Role: RoleAssistant, Content: resp.Text})
			log.Debug().Str("state", state.String()).Int("round_trips", res.RoundTrips).Msg("tool loop finished")
			return res, nil
		}
		if reprompted {
			return res, err
		}
		reprompted = true
		log.Warn().Err(err).Str("stage", req.Stage).Msg("final reply was not valid JSON, asking again")
		res.Messages = append(res.Messages,
			Message{Role: RoleAssistant, Content: resp.Text},
			Message{Role: RoleUser, Content: jsonReprompt},
		)
	}
	return res, fmt.Errorf("%w after %d round-trips", types.ErrToolLoopExhausted, res.RoundTrips)
}

// dispatch runs one call and serializes its result. Failures are reported
// to the model as an error object rather than ending the conversation.
func (l *ToolLoop) dispatch(ctx context.Context, call ToolCall) string {
	if l.Dispatcher == nil {
		return errorJSON(errors.New("no tools available"))
	}
	result, err := l.Dispatcher.Dispatch(ctx, call)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("tool", call.Name).Msg("tool call failed")
		return errorJSON(err)
	}
	data, err := json.Marshal(result)
	if err != nil {
		return errorJSON(err)
	}
	return string(data)
}

func errorJSON(err error) string {
	data, _ := json.Marshal(map[string]string{"error": err.Error()})
	return string(data)
}
