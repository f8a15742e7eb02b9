// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	json5 "github.com/yosuke-furukawa/json5/encoding/json5"

	"github.com/pdiddy/research-pipeline/pkg/types"
)

// DecodeJSON decodes model output into v. It tolerates Markdown code fences
// and prose around the JSON value, and falls back to JSON5 for trailing
// commas. Anything else is ErrMalformedResponse.
func DecodeJSON(text string, v any) error {
	body := extractJSON(text)
	if body == "" {
		return fmt.Errorf("%w: no JSON value in response", types.ErrMalformedResponse)
	}
	if err := json.Unmarshal([]byte(body), v); err == nil {
		return nil
	}
	if err := json5.Unmarshal([]byte(body), v); err != nil {
		return fmt.Errorf("%w: %v", types.ErrMalformedResponse, err)
	}
	return nil
}

// extractJSON returns the outermost object or array in text.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if nl := strings.IndexByte(text, '\n'); nl >= 0 {
			text = text[nl+1:]
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}

	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return ""
	}
	closer := byte('}')
	if text[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(text, closer)
	if end < start {
		return ""
	}
	return text[start : end+1]
}
