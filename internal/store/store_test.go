// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/research-pipeline/pkg/types"
)

func testStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "archive", "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, dir
}

func testRun(id, title, finding string, created time.Time) RunRecord {
	report := &types.ResearchReport{
		Title:       title,
		Summary:     "summary of " + title,
		KeyFindings: []string{finding},
	}
	report.SetMeta(types.MetaQuery, "q "+id)
	return RunRecord{
		ID:         id,
		Query:      "q " + id,
		Kind:       KindResearch,
		Iterations: 2,
		StopReason: "sufficient",
		CreatedAt:  created,
		Sources: []types.SourceRecord{
			{Title: "A", URL: "https://a.example/" + id, PublishedDate: "2024-01-01", RelevanceScore: 9, Content: "long text", ContentSummary: "short"},
			{Title: "B", URL: "https://b.example/" + id, PublishedDate: types.UnknownDate, RelevanceScore: 4},
		},
		History: []types.SearchHistoryEntry{{Query: "q " + id, ResultCount: 2, URLs: []string{"https://a.example/" + id}}},
		Report:  report,
	}
}

func TestSaveRun_RoundTrip(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveRun(ctx, testRun("r1", "Cat Intelligence", "cats recognise names", base)))

	report, err := s.GetReport(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "Cat Intelligence", report.Title)
	assert.Equal(t, "q r1", report.Query())

	sources, err := s.Sources(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, sources, 2)
	assert.Equal(t, "https://a.example/r1", sources[0].URL)
	assert.Equal(t, "short", sources[0].ContentSummary)
	assert.Empty(t, sources[0].Content, "content is not archived")

	history, err := s.History(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example/r1"}, history[0].URLs)
}

func TestSaveRun_ReplacesExisting(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveRun(ctx, testRun("r1", "Old title", "old finding", base)))

	rec := testRun("r1", "New title", "new finding", base)
	rec.Sources = rec.Sources[:1]
	require.NoError(t, s.SaveRun(ctx, rec))

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "New title", runs[0].Title)
	assert.Equal(t, 1, runs[0].SourceCount)

	hits, err := s.SearchReports(ctx, "old", 0)
	require.NoError(t, err)
	assert.Empty(t, hits, "index follows updates")
}

func TestListRuns_NewestFirst(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"r1", "r2", "r3"} {
		require.NoError(t, s.SaveRun(ctx, testRun(id, "T "+id, "f", base.Add(time.Duration(i)*time.Hour))))
	}

	runs, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "r3", runs[0].ID)
	assert.Equal(t, "r2", runs[1].ID)
	assert.Equal(t, base.Add(2*time.Hour), runs[0].CreatedAt)
	assert.Equal(t, KindResearch, runs[0].Kind)
}

func TestSearchReports(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveRun(ctx, testRun("r1", "Cat Intelligence", "cats recognise names", base)))
	require.NoError(t, s.SaveRun(ctx, testRun("r2", "Dog Training", "dogs follow pointing", base)))

	hits, err := s.SearchReports(ctx, "pointing", 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "r2", hits[0].ID)

	hits, err = s.SearchReports(ctx, "cat*", 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "r1", hits[0].ID)

	_, err = s.SearchReports(ctx, "  ", 0)
	assert.ErrorIs(t, err, types.ErrInvalidQuery)
}

func TestGetReport_NotFound(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()
	_, err := s.GetReport(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	rec := testRun("r1", "T", "f", time.Now())
	rec.Report = nil
	require.NoError(t, s.SaveRun(ctx, rec))
	_, err = s.GetReport(ctx, "r1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveRun_RequiresID(t *testing.T) {
	s, _ := testStore(t)
	err := s.SaveRun(context.Background(), RunRecord{Query: "q"})
	assert.ErrorIs(t, err, types.ErrValidation)
}

func TestExportYAML(t *testing.T) {
	s, dir := testStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveRun(ctx, testRun("r1", "Cat Intelligence", "f", base)))
	require.NoError(t, s.SaveRun(ctx, testRun("r2", "Dog Training", "f", base.Add(time.Hour))))

	path := filepath.Join(dir, "export.yaml")
	require.NoError(t, s.ExportYAML(ctx, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var entries []ExportEntry
	require.NoError(t, yaml.Unmarshal(data, &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "r2", entries[0].ID)
	assert.Len(t, entries[1].Sources, 2)
	assert.Equal(t, 2, entries[1].SourceCount)
	assert.Equal(t, "https://a.example/r1", entries[1].Sources[0].URL)
	assert.Equal(t, "q r1", entries[1].History[0].Query)
	assert.Contains(t, string(data), "source_count: 2")
}
