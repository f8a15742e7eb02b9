// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/research-pipeline/pkg/types"
)

// ExportEntry is one run in an archive export.
type ExportEntry struct {
	RunSummary `yaml:",inline"`
	Sources    []ExportSource             `yaml:"sources"`
	History    []types.SearchHistoryEntry `yaml:"history,omitempty"`
}

// ExportSource holds the source fields included in each export entry.
type ExportSource struct {
	Title          string  `yaml:"title"`
	URL            string  `yaml:"url"`
	PublishedDate  string  `yaml:"published_date"`
	RelevanceScore float64 `yaml:"relevance_score"`
}

const exportLimit = 100000

// ExportYAML writes every archived run, newest first, to path.
func (s *Store) ExportYAML(ctx context.Context, path string) error {
	runs, err := s.ListRuns(ctx, exportLimit)
	if err != nil {
		return fmt.Errorf("querying for export: %w", err)
	}

	entries := make([]ExportEntry, len(runs))
	for i, r := range runs {
		sources, err := s.Sources(ctx, r.ID)
		if err != nil {
			return err
		}
		history, err := s.History(ctx, r.ID)
		if err != nil {
			return err
		}
		entries[i] = ExportEntry{RunSummary: r, History: history, Sources: make([]ExportSource, len(sources))}
		for j, src := range sources {
			entries[i].Sources[j] = ExportSource{Title: src.Title, URL: src.URL, PublishedDate: src.PublishedDate, RelevanceScore: src.RelevanceScore}
		}
	}

	data, err := yaml.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
