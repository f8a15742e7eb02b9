// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/pdiddy/research-pipeline/pkg/types"
)

// --- mock searcher ---

type mockSearcher struct {
	mu      sync.Mutex
	results map[string][]types.SourceRecord
	errs    map[string]error
	calls   []string
}

func (m *mockSearcher) Search(_ context.Context, query string, _ int) ([]types.SourceRecord, error) {
	m.mu.Lock()
	m.calls = append(m.calls, query)
	m.mu.Unlock()
	if err := m.errs[query]; err != nil {
		return nil, err
	}
	return m.results[query], nil
}

func rec(title, url string) types.SourceRecord {
	return types.SourceRecord{Title: title, URL: url, PublishedDate: types.UnknownDate}
}

// --- Gather ---

func TestGatherDedupAcrossQueries(t *testing.T) {
	s := &mockSearcher{results: map[string][]types.SourceRecord{
		"q1": {rec("A", "https://a.example/1"), rec("B", "https://a.example/2")},
		"q2": {rec("B again", "https://a.example/2/"), rec("C", "https://a.example/3")},
	}}
	seen := NewSeenSet()

	out := Gather(context.Background(), s, []string{"q1", "q2"}, 5, seen)

	if len(out.Sources) != 3 {
		t.Fatalf("len(Sources) = %d, want 3", len(out.Sources))
	}
	if out.DupsRemoved != 1 {
		t.Errorf("DupsRemoved = %d, want 1", out.DupsRemoved)
	}
	want := []string{"A", "B", "C"}
	for i, w := range want {
		if out.Sources[i].Title != w {
			t.Errorf("Sources[%d].Title = %q, want %q", i, out.Sources[i].Title, w)
		}
	}
	if out.Outcomes[1].Admitted != 1 || out.Outcomes[1].Found != 2 {
		t.Errorf("q2 outcome = %+v", out.Outcomes[1])
	}
}

func TestGatherDedupAcrossRounds(t *testing.T) {
	s := &mockSearcher{results: map[string][]types.SourceRecord{
		"round1": {rec("A", "https://a.example/1")},
		"round2": {rec("A", "https://a.example/1"), rec("D", "https://a.example/4")},
	}}
	seen := NewSeenSet()

	first := Gather(context.Background(), s, []string{"round1"}, 5, seen)
	second := Gather(context.Background(), s, []string{"round2"}, 5, seen)

	if len(first.Sources) != 1 || len(second.Sources) != 1 {
		t.Fatalf("admitted %d then %d, want 1 then 1", len(first.Sources), len(second.Sources))
	}
	if second.Sources[0].Title != "D" {
		t.Errorf("second round admitted %q, want D", second.Sources[0].Title)
	}
	if seen.Len() != 2 {
		t.Errorf("seen.Len() = %d, want 2", seen.Len())
	}
}

func TestGatherContinuesAfterQueryFailure(t *testing.T) {
	s := &mockSearcher{
		results: map[string][]types.SourceRecord{"good": {rec("A", "https://a.example/1")}},
		errs:    map[string]error{"bad": fmt.Errorf("%w: boom", types.ErrSearchUnavailable)},
	}

	out := Gather(context.Background(), s, []string{"bad", "good"}, 5, NewSeenSet())

	if len(out.Sources) != 1 {
		t.Fatalf("len(Sources) = %d, want 1", len(out.Sources))
	}
	if out.Outcomes[0].Error == "" {
		t.Error("failed query should record its error")
	}
	if out.Outcomes[1].Error != "" {
		t.Errorf("good query recorded error %q", out.Outcomes[1].Error)
	}
}

// --- SeenSet ---

func TestSeenSetAdmit(t *testing.T) {
	s := NewSeenSet()
	if !s.Admit("https://Example.com/a") {
		t.Fatal("first admit should succeed")
	}
	for _, dup := range []string{"https://example.com/a", "https://example.com/a/", "https://example.com/a#frag"} {
		if s.Admit(dup) {
			t.Errorf("Admit(%q) = true, want false", dup)
		}
	}
	if !s.Contains("https://example.com/a") {
		t.Error("Contains should report admitted URL")
	}
	if s.Admit("https://example.com/b") != true {
		t.Error("distinct URL should be admitted")
	}
}

func TestSeenSetConcurrentAdmit(t *testing.T) {
	s := NewSeenSet()
	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.Admit("https://a.example/same") {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if admitted != 1 {
		t.Errorf("admitted = %d, want exactly 1", admitted)
	}
}

// --- output ---

func TestFormatTable(t *testing.T) {
	sources := []types.SourceRecord{
		{Title: "Cat cognition", URL: "https://a.example/1", PublishedDate: "2023-01-01", RelevanceScore: 9.1},
		{Title: "Feline memory", URL: "https://a.example/2", PublishedDate: types.UnknownDate, RelevanceScore: 8.7},
	}

	var buf bytes.Buffer
	FormatTable(sources, &buf)
	s := buf.String()

	for _, want := range []string{"Cat cognition", "Feline memory", "9.10", "2 results"} {
		if !strings.Contains(s, want) {
			t.Errorf("table should contain %q", want)
		}
	}
}

func TestFormatTableEmpty(t *testing.T) {
	var buf bytes.Buffer
	FormatTable(nil, &buf)
	if !strings.Contains(buf.String(), "No results") {
		t.Error("empty output should say 'No results'")
	}
}

func TestFormatJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := FormatJSON([]types.SourceRecord{rec("A", "https://a.example/1")}, &buf); err != nil {
		t.Fatalf("FormatJSON: %v", err)
	}
	var parsed []types.SourceRecord
	if err := json.Unmarshal(buf.Bytes(), &parsed); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}
	if len(parsed) != 1 || parsed[0].URL != "https://a.example/1" {
		t.Errorf("parsed = %+v", parsed)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("abcdefghijkl", 8); got != "abcde..." {
		t.Errorf("truncate = %q, want abcde...", got)
	}
}
