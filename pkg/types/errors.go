// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"fmt"
)

// Error categories. Every named pipeline error matches exactly one of these
// with errors.Is.
var (
	// ErrValidation covers malformed input: bad URLs, blank queries, bad config.
	ErrValidation = errors.New("validation error")

	// ErrUpstream covers failed calls to search, content or LLM services.
	ErrUpstream = errors.New("upstream error")

	// ErrSchema covers model responses that do not parse or lack required fields.
	ErrSchema = errors.New("schema error")
)

type categorized struct {
	msg      string
	category error
}

func (e *categorized) Error() string { return e.msg }
func (e *categorized) Unwrap() error { return e.category }

func newCategorized(msg string, category error) error {
	return &categorized{msg: msg, category: category}
}

var (
	ErrInvalidQuery = newCategorized("invalid query", ErrValidation)
	ErrInvalidURL   = newCategorized("invalid URL", ErrValidation)

	ErrSearchUnavailable   = newCategorized("search unavailable", ErrUpstream)
	ErrContentFetchFailed  = newCategorized("content fetch failed", ErrUpstream)
	ErrUpstreamUnavailable = newCategorized("LLM upstream unavailable", ErrUpstream)
	ErrToolLoopExhausted   = newCategorized("tool-call round-trip limit reached", ErrUpstream)

	ErrMalformedResponse = newCategorized("malformed model response", ErrSchema)
	ErrEvaluationParse   = newCategorized("evaluation response unparseable", ErrSchema)
	ErrAnalysisSchema    = newCategorized("analysis response missing required fields", ErrSchema)
	ErrReportIncomplete  = newCategorized("report missing required fields", ErrSchema)

	// ErrEmptyInput is fatal: no report is produced from zero analyses.
	ErrEmptyInput = errors.New("no analyses to synthesize")
)

// Pipeline stage names used in StageError and Degradation.
const (
	StageQueries    = "queries"
	StageSearch     = "search"
	StageFetch      = "fetch"
	StageEvaluate   = "evaluate"
	StageSummarize  = "summarize"
	StageAnalyze    = "analyze"
	StageSynthesize = "synthesize"
	StageRender     = "render"
	StageAgent      = "agent"
)

// StageError names the stage and the resource (query or URL) behind a
// failure.
type StageError struct {
	Stage    string
	Resource string
	Err      error
}

func (e *StageError) Error() string {
	if e.Resource == "" {
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s %q: %v", e.Stage, e.Resource, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// NewStageError wraps err unless it is nil.
func NewStageError(stage, resource string, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Resource: resource, Err: err}
}
