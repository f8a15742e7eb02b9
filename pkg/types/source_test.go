// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name  string
		input string
		ok    bool
	}{
		{"https", "https://example.com/a", true},
		{"http", "http://example.com", true},
		{"with query", "https://example.com/a?b=c#d", true},
		{"bare word", "not-a-url", false},
		{"ftp scheme", "ftp://example.com/file", false},
		{"missing host", "https:///path", false},
		{"relative", "/relative/path", false},
		{"empty", "", false},
		{"mailto", "mailto:someone@example.com", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ValidateURL(tc.input)
			if tc.ok {
				require.NoError(t, err)
				assert.Equal(t, tc.input, got)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidURL)
			assert.ErrorIs(t, err, ErrValidation)
			assert.Contains(t, err.Error(), tc.input)
		})
	}
}

func TestURLKey(t *testing.T) {
	tests := []struct {
		a, b string
		same bool
	}{
		{"https://a.example/x", "HTTPS://A.EXAMPLE/x/", true},
		{"https://a.example/x", " https://a.example/x#section ", true},
		{"https://a.example/", "https://a.example", true},
		{"https://a.example/x", "https://a.example/X", false},
		{"https://a.example/x?p=1", "https://a.example/x?p=2", false},
	}
	for _, tc := range tests {
		t.Run(tc.a+" vs "+tc.b, func(t *testing.T) {
			assert.Equal(t, tc.same, URLKey(tc.a) == URLKey(tc.b))
		})
	}
}

func TestNewSourceRecord(t *testing.T) {
	rec, err := NewSourceRecord("  Cats  ", "https://example.com/cats", "2023-11-16T01:36:32.547Z")
	require.NoError(t, err)
	assert.Equal(t, "Cats", rec.Title)
	assert.Equal(t, "2023-11-16", rec.PublishedDate)
	assert.Zero(t, rec.RelevanceScore)
	assert.Empty(t, rec.Content)

	rec, err = NewSourceRecord("No date", "https://example.com/x", "")
	require.NoError(t, err)
	assert.Equal(t, UnknownDate, rec.PublishedDate)

	_, err = NewSourceRecord("Bad", "not-a-url", "")
	assert.ErrorIs(t, err, ErrInvalidURL)

	_, err = NewSourceRecord("Bad date", "https://example.com", "last tuesday")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestWithSummary_MustBeShorter(t *testing.T) {
	rec := SourceRecord{URL: "https://example.com", Content: "a long body of text"}

	got, err := rec.WithSummary("short")
	require.NoError(t, err)
	assert.Equal(t, "short", got.ContentSummary)
	assert.Equal(t, rec.Content, got.Content)
	assert.Empty(t, rec.ContentSummary, "receiver must not change")

	_, err = rec.WithSummary("a long body of text, now even longer")
	assert.ErrorIs(t, err, ErrSchema)
}

func TestPromptTextPrefersSummary(t *testing.T) {
	rec := SourceRecord{Content: "full"}
	assert.Equal(t, "full", rec.PromptText())
	rec.ContentSummary = "sum"
	assert.Equal(t, "sum", rec.PromptText())
}

func TestPreview(t *testing.T) {
	rec := SourceRecord{Content: "héllo world"}
	assert.Equal(t, "héllo", rec.Preview(5))
	assert.Equal(t, "héllo world", rec.Preview(100))
}

func TestAnalysisValidate(t *testing.T) {
	a := SourceAnalysis{KeyPoints: []string{" ", "point"}, Significance: "matters"}
	require.NoError(t, a.Validate())
	assert.Equal(t, []string{"point"}, a.KeyPoints)

	a = SourceAnalysis{KeyPoints: []string{"  "}, Significance: "matters"}
	assert.ErrorIs(t, a.Validate(), ErrAnalysisSchema)

	a = SourceAnalysis{KeyPoints: []string{"p"}, Significance: " "}
	assert.ErrorIs(t, a.Validate(), ErrAnalysisSchema)
}

func TestReportMissingFields(t *testing.T) {
	r := ResearchReport{Title: "T", Summary: "S", KeyFindings: []string{"", "f"}}
	missing := r.MissingFields()
	assert.Equal(t, []string{"f"}, r.KeyFindings)
	assert.Contains(t, missing, "detailed_analysis")
	assert.NotContains(t, missing, "title")
	assert.NotContains(t, missing, "key_findings")
}

func TestErrorCategories(t *testing.T) {
	tests := []struct {
		err      error
		category error
	}{
		{ErrInvalidQuery, ErrValidation},
		{ErrInvalidURL, ErrValidation},
		{ErrSearchUnavailable, ErrUpstream},
		{ErrContentFetchFailed, ErrUpstream},
		{ErrUpstreamUnavailable, ErrUpstream},
		{ErrMalformedResponse, ErrSchema},
		{ErrEvaluationParse, ErrSchema},
		{ErrAnalysisSchema, ErrSchema},
	}
	for _, tc := range tests {
		assert.ErrorIs(t, tc.err, tc.category, tc.err.Error())
	}
	assert.False(t, errors.Is(ErrEmptyInput, ErrSchema))
}

func TestStageError(t *testing.T) {
	err := NewStageError(StageFetch, "https://a.example/1", ErrContentFetchFailed)
	assert.Equal(t, `fetch "https://a.example/1": content fetch failed`, err.Error())
	assert.ErrorIs(t, err, ErrUpstream)

	var se *StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, StageFetch, se.Stage)

	assert.NoError(t, NewStageError(StageFetch, "x", nil))
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultPipelineConfig()
	require.NoError(t, cfg.Validate())

	bad := cfg
	bad.Loop.MaxIterations = 0
	assert.ErrorIs(t, bad.Validate(), ErrValidation)

	bad = cfg
	bad.AI.Provider = "mystery"
	assert.ErrorIs(t, bad.Validate(), ErrValidation)

	bad = cfg
	bad.AI.MaxRetries = 3
	assert.ErrorIs(t, bad.Validate(), ErrValidation)
}
