package report

import (
	"time"

	"github.com/panbanda/fixgraph/internal/render"
)

// Metadata contains report generation metadata.
type Metadata struct {
	GeneratedAt     time.Time `json:"generated_at"`
	FixgraphVersion string    `json:"fixgraph_version"`
	Paths           []string  `json:"paths"`
	// Source is the JSON record the report was rendered from, if any.
	Source string `json:"source,omitempty"`
}

// IssueGroup holds the issues of one kind, in report order.
type IssueGroup struct {
	Type     string
	Severity string
	Issues   []render.IssueRecord
}

// ScopeCount is the number of fixtures declared with a scope.
type ScopeCount struct {
	Scope string
	Count int
}

// RenderData contains all data needed to render the report.
type RenderData struct {
	Metadata    Metadata
	Record      *render.Record
	StatusClass string
	Groups      []IssueGroup
	Scopes      []ScopeCount
	// Deepest lists fixtures by descending depth, cycles last.
	Deepest []render.FixtureRecord
	Mermaid string
}
