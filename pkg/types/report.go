// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"strings"
)

// SourceAnalysis is the structured reading of one source.
type SourceAnalysis struct {
	Source       SourceRecord `json:"source" yaml:"source"`
	KeyPoints    []string     `json:"key_points" yaml:"key_points"`
	Methodology  string       `json:"methodology,omitempty" yaml:"methodology,omitempty"`
	Limitations  string       `json:"limitations,omitempty" yaml:"limitations,omitempty"`
	Significance string       `json:"significance" yaml:"significance"`
}

// Validate checks that significance is non-blank and at least one key point
// is non-blank. Blank key points are dropped from the receiver.
func (a *SourceAnalysis) Validate() error {
	var points []string
	for _, p := range a.KeyPoints {
		if p = strings.TrimSpace(p); p != "" {
			points = append(points, p)
		}
	}
	a.KeyPoints = points
	if len(points) == 0 {
		return fmt.Errorf("%w: key points are empty", ErrAnalysisSchema)
	}
	if strings.TrimSpace(a.Significance) == "" {
		return fmt.Errorf("%w: significance is blank", ErrAnalysisSchema)
	}
	return nil
}

// TimelineEvent is one dated entry in a report timeline.
type TimelineEvent struct {
	Date         string `json:"date" yaml:"date"`
	Event        string `json:"event" yaml:"event"`
	Significance string `json:"significance,omitempty" yaml:"significance,omitempty"`
}

// Metadata keys the pipeline sets on every report.
const (
	MetaQuery           = "query"
	MetaNumSources      = "num_sources"
	MetaSourcesAnalyzed = "sources_analyzed"
	MetaRunID           = "run_id"
	MetaGeneratedAt     = "generated_at"
	MetaPartial         = "partial"
	MetaDegraded        = "degraded"
	MetaDateRange       = "date_range"
)

// ResearchReport is the final output of one pipeline run.
type ResearchReport struct {
	Title               string           `json:"title" yaml:"title"`
	Summary             string           `json:"summary" yaml:"summary"`
	KeyFindings         []string         `json:"key_findings" yaml:"key_findings"`
	DetailedAnalysis    string           `json:"detailed_analysis" yaml:"detailed_analysis"`
	CriticalEvaluation  string           `json:"critical_evaluation" yaml:"critical_evaluation"`
	FutureImplications  string           `json:"future_implications" yaml:"future_implications"`
	MethodologyAnalysis string           `json:"methodology_analysis" yaml:"methodology_analysis"`
	LimitationsAndGaps  string           `json:"limitations_and_gaps" yaml:"limitations_and_gaps"`
	Timeline            []TimelineEvent  `json:"timeline" yaml:"timeline"`
	Metadata            map[string]any   `json:"metadata" yaml:"metadata"`
	SourceAnalyses      []SourceAnalysis `json:"source_analyses" yaml:"source_analyses"`

	// Evidence holds quotes backing individual key findings.
	Evidence []Evidence `json:"evidence,omitempty" yaml:"evidence,omitempty"`
}

// Evidence is a quote from a source that supports one key finding.
type Evidence struct {
	Finding string `json:"finding" yaml:"finding"`
	Title   string `json:"title,omitempty" yaml:"title,omitempty"`
	URL     string `json:"url,omitempty" yaml:"url,omitempty"`
	Quote   string `json:"quote" yaml:"quote"`
}

// EvidenceFor returns the evidence recorded for finding, in report order.
func (r *ResearchReport) EvidenceFor(finding string) []Evidence {
	var out []Evidence
	for _, e := range r.Evidence {
		if e.Finding == finding {
			out = append(out, e)
		}
	}
	return out
}

// MissingFields lists the names of required report fields that are blank.
func (r *ResearchReport) MissingFields() []string {
	var missing []string
	check := func(name, v string) {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	check("title", r.Title)
	check("summary", r.Summary)
	check("detailed_analysis", r.DetailedAnalysis)
	check("critical_evaluation", r.CriticalEvaluation)
	check("future_implications", r.FutureImplications)
	check("methodology_analysis", r.MethodologyAnalysis)
	check("limitations_and_gaps", r.LimitationsAndGaps)

	var findings []string
	for _, f := range r.KeyFindings {
		if f = strings.TrimSpace(f); f != "" {
			findings = append(findings, f)
		}
	}
	r.KeyFindings = findings
	if len(findings) == 0 {
		missing = append(missing, "key_findings")
	}
	return missing
}

// SetMeta stores a metadata value, allocating the map on first use.
func (r *ResearchReport) SetMeta(key string, value any) {
	if r.Metadata == nil {
		r.Metadata = make(map[string]any)
	}
	r.Metadata[key] = value
}

// Query returns the query recorded in the report metadata.
func (r *ResearchReport) Query() string {
	q, _ := r.Metadata[MetaQuery].(string)
	return q
}

// Degradation records a per-source or per-query failure that the pipeline
// tolerated instead of aborting the run.
type Degradation struct {
	Stage    string `json:"stage" yaml:"stage"`
	Resource string `json:"resource" yaml:"resource"`
	Reason   string `json:"reason" yaml:"reason"`
}
