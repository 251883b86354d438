package fixtures

import "time"

// CycleDepth is the depth recorded for a fixture that participates in, or
// depends on, a circular dependency.
const CycleDepth = -1

// DefaultMaxDepth is the nesting depth above which a fixture is reported.
const DefaultMaxDepth = 3

// Scope is the lifetime tier of a fixture.
type Scope string

const (
	ScopeFunction Scope = "function"
	ScopeClass    Scope = "class"
	ScopeModule   Scope = "module"
	ScopePackage  Scope = "package"
	ScopeSession  Scope = "session"
)

// Scopes lists the known scopes from broadest to narrowest.
var Scopes = []Scope{ScopeSession, ScopePackage, ScopeModule, ScopeClass, ScopeFunction}

// Rank orders scopes by lifetime: larger is longer-lived.
// Unrecognized scopes rank as function.
func (s Scope) Rank() int {
	switch s {
	case ScopeSession:
		return 4
	case ScopePackage:
		return 3
	case ScopeModule:
		return 2
	case ScopeClass:
		return 1
	default:
		return 0
	}
}

// String returns the string representation.
func (s Scope) String() string {
	return string(s)
}

// Location is a position in a source file.
type Location struct {
	File string `json:"file" toon:"file"`
	Line int    `json:"line" toon:"line"`
}

// Node is a single fixture declaration.
type Node struct {
	Name         string   `json:"name" toon:"name"`
	Scope        Scope    `json:"scope" toon:"scope"`
	Dependencies []string `json:"dependencies" toon:"dependencies"`
	Params       []string `json:"params,omitempty" toon:"params,omitempty"`
	Autouse      bool     `json:"autouse" toon:"autouse"`
	Location     Location `json:"location" toon:"location"`
}

// Usage is a reference to a fixture from a consuming test function.
type Usage struct {
	Fixture  string   `json:"fixture" toon:"fixture"`
	Consumer string   `json:"consumer" toon:"consumer"`
	Location Location `json:"location" toon:"location"`
}

// Kind is the category of a fixture issue.
type Kind string

const (
	KindDeepNesting   Kind = "deep_nesting"
	KindScopeMismatch Kind = "scope_mismatch"
	KindCircular      Kind = "circular"
	KindUnused        Kind = "unused"
)

// Severity returns the fixed severity for issues of this kind.
func (k Kind) Severity() Severity {
	switch k {
	case KindCircular:
		return SeverityError
	case KindScopeMismatch, KindDeepNesting:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// String returns the string representation.
func (k Kind) String() string {
	return string(k)
}

// Severity represents how serious an issue is.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Weight returns a numeric weight for sorting (higher = more severe).
func (s Severity) Weight() int {
	switch s {
	case SeverityError:
		return 2
	case SeverityWarning:
		return 1
	default:
		return 0
	}
}

// Issue is a single finding about a fixture.
type Issue struct {
	Fixture  string    `json:"fixture" toon:"fixture"`
	Kind     Kind      `json:"type" toon:"type"`
	Severity Severity  `json:"severity" toon:"severity"`
	Message  string    `json:"message" toon:"message"`
	Location *Location `json:"location,omitempty" toon:"location,omitempty"`
	Depth    int       `json:"depth,omitempty" toon:"depth,omitempty"` // 0 when the subject has no computed depth
}

// Summary provides aggregate counts.
type Summary struct {
	TotalFixtures int           `json:"total_fixtures" toon:"total_fixtures"`
	TotalUsages   int           `json:"total_usages" toon:"total_usages"`
	Errors        int           `json:"errors" toon:"errors"`
	Warnings      int           `json:"warnings" toon:"warnings"`
	Infos         int           `json:"infos" toon:"infos"`
	DeepNesting   int           `json:"deep_nesting" toon:"deep_nesting"`
	ScopeMismatch int           `json:"scope_mismatch" toon:"scope_mismatch"`
	Circular      int           `json:"circular" toon:"circular"`
	Unused        int           `json:"unused" toon:"unused"`
	MaxDepth      int           `json:"max_depth" toon:"max_depth"`
	ByScope       map[Scope]int `json:"by_scope" toon:"by_scope"`
}

// Analysis is the result of one fixture analysis run.
type Analysis struct {
	GeneratedAt time.Time      `json:"generated_at" toon:"generated_at"`
	Nodes       []Node         `json:"nodes" toon:"nodes"`
	Usages      []Usage        `json:"usages" toon:"usages"`
	Depths      map[string]int `json:"depths" toon:"depths"`
	Cycles      [][]string     `json:"cycles" toon:"cycles"`
	Issues      []Issue        `json:"issues" toon:"issues"`
	Summary     Summary        `json:"summary" toon:"summary"`
	Threshold   int            `json:"threshold" toon:"threshold"`

	graph *Graph
}

// Node returns the fixture with the given name.
func (a *Analysis) Node(name string) (Node, bool) {
	if a.graph == nil {
		return Node{}, false
	}
	n, ok := a.graph.Node(name)
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// Graph returns the fixture graph the analysis was computed from.
func (a *Analysis) Graph() *Graph {
	return a.graph
}

// AddIssue appends an issue and updates the summary.
func (a *Analysis) AddIssue(issue Issue) {
	a.Issues = append(a.Issues, issue)

	switch issue.Severity {
	case SeverityError:
		a.Summary.Errors++
	case SeverityWarning:
		a.Summary.Warnings++
	case SeverityInfo:
		a.Summary.Infos++
	}

	switch issue.Kind {
	case KindDeepNesting:
		a.Summary.DeepNesting++
	case KindScopeMismatch:
		a.Summary.ScopeMismatch++
	case KindCircular:
		a.Summary.Circular++
	case KindUnused:
		a.Summary.Unused++
	}
}

// HasErrors reports whether any error-severity issue was found.
func (a *Analysis) HasErrors() bool {
	return a.Summary.Errors > 0
}

// IssuesOf returns the issues of a single kind, in report order.
func (a *Analysis) IssuesOf(kind Kind) []Issue {
	var out []Issue
	for _, issue := range a.Issues {
		if issue.Kind == kind {
			out = append(out, issue)
		}
	}
	return out
}
