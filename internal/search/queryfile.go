// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"
)

// Plan is the on-disk record of the queries a run issued, round by round.
// It is written next to the rendered report so a run can be audited
// without re-querying the search service.
type Plan struct {
	RunID   string      `yaml:"run_id"`
	Topic   string      `yaml:"topic"`
	Rounds  []Round     `yaml:"rounds"`
	Summary PlanSummary `yaml:"summary"`
}

// Round is one iteration of the gathering loop.
type Round struct {
	Iteration   int            `yaml:"iteration"`
	Queries     []QueryOutcome `yaml:"queries"`
	Admitted    int            `yaml:"admitted"`
	DupsRemoved int            `yaml:"duplicates_removed"`
	Accumulated int            `yaml:"accumulated"`
	Sufficient  bool           `yaml:"sufficient"`
	Explanation string         `yaml:"explanation,omitempty"`
}

// PlanSummary stores totals and a timestamp.
type PlanSummary struct {
	TotalSources int       `yaml:"total_sources"`
	StopReason   string    `yaml:"stop_reason"`
	Timestamp    time.Time `yaml:"timestamp"`
}

// Queries flattens the query strings of every round.
func (p *Plan) Queries() []string {
	var out []string
	for _, r := range p.Rounds {
		for _, q := range r.Queries {
			out = append(out, q.Query)
		}
	}
	return out
}

// WritePlan saves p to a YAML file, stamping the summary timestamp when unset.
func WritePlan(path string, p Plan) error {
	if p.Summary.Timestamp.IsZero() {
		p.Summary.Timestamp = time.Now().UTC()
	}
	data, err := yaml.Marshal(&p)
	if err != nil {
		return fmt.Errorf("marshaling plan: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadPlan loads a previously saved plan from disk.
func ReadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading plan: %w", err)
	}
	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing plan: %w", err)
	}
	return &p, nil
}
