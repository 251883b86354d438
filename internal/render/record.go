// Package render turns a fixture analysis into reports, structured records
// and graph descriptions.
package render

import "github.com/panbanda/fixgraph/pkg/analyzer/fixtures"

// Record is the structured form of an analysis, used for JSON and TOON.
type Record struct {
	Summary  RecordSummary   `json:"summary" toon:"summary"`
	Fixtures []FixtureRecord `json:"fixtures" toon:"fixtures"`
	Issues   []IssueRecord   `json:"issues" toon:"issues"`
	Cycles   [][]string      `json:"cycles" toon:"cycles"`
}

// RecordSummary holds the headline counts.
type RecordSummary struct {
	TotalFixtures int `json:"total_fixtures" toon:"total_fixtures"`
	TotalUsages   int `json:"total_usages" toon:"total_usages"`
	Errors        int `json:"errors" toon:"errors"`
	Warnings      int `json:"warnings" toon:"warnings"`
	Infos         int `json:"infos" toon:"infos"`
	MaxDepth      int `json:"max_depth" toon:"max_depth"`
	Threshold     int `json:"threshold" toon:"threshold"`
}

// FixtureRecord is one fixture with its computed depth.
type FixtureRecord struct {
	Name         string   `json:"name" toon:"name"`
	File         string   `json:"file" toon:"file"`
	Line         int      `json:"line" toon:"line"`
	Scope        string   `json:"scope" toon:"scope"`
	Dependencies []string `json:"dependencies" toon:"dependencies"`
	Autouse      bool     `json:"autouse" toon:"autouse"`
	Params       []string `json:"params,omitempty" toon:"params,omitempty"`
	Depth        int      `json:"depth" toon:"depth"`
}

// IssueRecord is one finding. File, Line and Depth are null when unknown.
type IssueRecord struct {
	Fixture  string  `json:"fixture" toon:"fixture"`
	Type     string  `json:"type" toon:"type"`
	Severity string  `json:"severity" toon:"severity"`
	Message  string  `json:"message" toon:"message"`
	File     *string `json:"file" toon:"file"`
	Line     *int    `json:"line" toon:"line"`
	Depth    *int    `json:"depth" toon:"depth"`
}

// NewRecord builds the structured record of an analysis.
func NewRecord(a *fixtures.Analysis) *Record {
	rec := &Record{
		Summary: RecordSummary{
			TotalFixtures: a.Summary.TotalFixtures,
			TotalUsages:   a.Summary.TotalUsages,
			Errors:        a.Summary.Errors,
			Warnings:      a.Summary.Warnings,
			Infos:         a.Summary.Infos,
			MaxDepth:      a.Summary.MaxDepth,
			Threshold:     a.Threshold,
		},
		Fixtures: make([]FixtureRecord, 0, len(a.Nodes)),
		Issues:   make([]IssueRecord, 0, len(a.Issues)),
		Cycles:   a.Cycles,
	}
	if rec.Cycles == nil {
		rec.Cycles = make([][]string, 0)
	}

	for _, n := range a.Nodes {
		deps := n.Dependencies
		if deps == nil {
			deps = make([]string, 0)
		}
		rec.Fixtures = append(rec.Fixtures, FixtureRecord{
			Name:         n.Name,
			File:         n.Location.File,
			Line:         n.Location.Line,
			Scope:        n.Scope.String(),
			Dependencies: deps,
			Autouse:      n.Autouse,
			Params:       n.Params,
			Depth:        a.Depths[n.Name],
		})
	}

	for _, issue := range a.Issues {
		ir := IssueRecord{
			Fixture:  issue.Fixture,
			Type:     issue.Kind.String(),
			Severity: string(issue.Severity),
			Message:  issue.Message,
		}
		if issue.Location != nil {
			file, line := issue.Location.File, issue.Location.Line
			ir.File, ir.Line = &file, &line
		}
		if issue.Depth != 0 {
			depth := issue.Depth
			ir.Depth = &depth
		}
		rec.Issues = append(rec.Issues, ir)
	}

	return rec
}
