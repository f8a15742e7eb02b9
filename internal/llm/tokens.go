// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter estimates the token length of text. Implementations must be
// monotonic in text length.
type TokenCounter interface {
	Count(text string) int
}

// RuneCounter approximates tokens as one per four runes.
type RuneCounter struct{}

// Count implements TokenCounter.
func (RuneCounter) Count(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + 3) / 4
}

// TiktokenCounter counts tokens with the BPE encoding of a model, falling
// back to cl100k_base for unknown models and to RuneCounter when no encoding
// can be loaded.
type TiktokenCounter struct {
	Model string

	once sync.Once
	enc  *tiktoken.Tiktoken
}

// NewTiktokenCounter returns a counter for model.
func NewTiktokenCounter(model string) *TiktokenCounter {
	return &TiktokenCounter{Model: model}
}

func (t *TiktokenCounter) load() {
	enc, err := tiktoken.EncodingForModel(t.Model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
	}
	if err == nil {
		t.enc = enc
	}
}

// Count implements TokenCounter.
func (t *TiktokenCounter) Count(text string) int {
	t.once.Do(t.load)
	if t.enc == nil {
		return RuneCounter{}.Count(text)
	}
	return len(t.enc.Encode(text, nil, nil))
}
