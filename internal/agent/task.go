// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agent

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/pdiddy/research-pipeline/internal/search"
	"github.com/pdiddy/research-pipeline/pkg/types"
)

// DefaultTaskResults is the search bound of a task with no MaxResults.
const DefaultTaskResults = 10

// Task is one search-and-read job.
type Task struct {
	Query      string
	MaxResults int

	// MinDate drops results published before it (YYYY-MM-DD). Results with
	// an unknown date are dropped too when MinDate is set.
	MinDate string

	// RequireRecent sorts results newest first.
	RequireRecent bool
}

// NewTask returns a Task with the default bound and recency ordering.
func NewTask(query string) Task {
	return Task{Query: query, MaxResults: DefaultTaskResults, RequireRecent: true}
}

// TaskStats summarizes a task's results.
type TaskStats struct {
	TotalResults     int     `json:"total_results" yaml:"total_results"`
	Earliest         string  `json:"earliest,omitempty" yaml:"earliest,omitempty"`
	Latest           string  `json:"latest,omitempty" yaml:"latest,omitempty"`
	AvgContentLength float64 `json:"avg_content_length" yaml:"avg_content_length"`
}

// TaskAgent searches, fetches every result, then filters and orders them.
type TaskAgent struct {
	search    search.Client
	batchSize int

	mu      sync.Mutex
	history []types.SearchHistoryEntry
}

// NewTaskAgent returns a TaskAgent.
func NewTaskAgent(sc search.Client, batchSize int) *TaskAgent {
	return &TaskAgent{search: sc, batchSize: batchSize}
}

// Research runs task. Search and fetch failures are returned as errors.
func (a *TaskAgent) Research(ctx context.Context, task Task) ([]types.SourceRecord, error) {
	minDate := ""
	if strings.TrimSpace(task.MinDate) != "" {
		d, err := types.NormalizeDate(task.MinDate)
		if err != nil {
			return nil, types.NewStageError(types.StageAgent, task.MinDate, err)
		}
		minDate = d
	}
	limit := task.MaxResults
	if limit <= 0 {
		limit = DefaultTaskResults
	}

	results, err := a.search.Search(ctx, task.Query, limit)
	if err != nil {
		return nil, types.NewStageError(types.StageSearch, task.Query, err)
	}
	a.mu.Lock()
	a.history = append(a.history, types.SearchHistoryEntry{Query: task.Query, ResultCount: len(results), URLs: types.URLs(results)})
	a.mu.Unlock()

	contents, err := a.search.FetchContents(ctx, types.URLs(results), a.batchSize)
	if err != nil {
		return nil, types.NewStageError(types.StageFetch, task.Query, err)
	}

	out := make([]types.SourceRecord, 0, len(results))
	for i, r := range results {
		if minDate != "" && (r.PublishedDate == types.UnknownDate || r.PublishedDate < minDate) {
			continue
		}
		out = append(out, r.WithContent(contents[i]))
	}
	if task.RequireRecent {
		sort.SliceStable(out, func(i, j int) bool {
			return newer(out[i].PublishedDate, out[j].PublishedDate)
		})
	}
	return out, nil
}

// newer orders known dates descending with unknown dates last.
func newer(a, b string) bool {
	switch {
	case a == types.UnknownDate:
		return false
	case b == types.UnknownDate:
		return true
	}
	return a > b
}

// History returns a copy of the searches run so far.
func (a *TaskAgent) History() []types.SearchHistoryEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]types.SearchHistoryEntry(nil), a.history...)
}

// Summarize computes result statistics. Unknown dates are left out of the
// date range.
func Summarize(results []types.SourceRecord) TaskStats {
	stats := TaskStats{TotalResults: len(results)}
	if len(results) == 0 {
		return stats
	}
	total := 0
	for _, r := range results {
		total += len(r.Content)
		d := r.PublishedDate
		if d == "" || d == types.UnknownDate {
			continue
		}
		if stats.Earliest == "" || d < stats.Earliest {
			stats.Earliest = d
		}
		if d > stats.Latest {
			stats.Latest = d
		}
	}
	stats.AvgContentLength = float64(total) / float64(len(results))
	return stats
}
