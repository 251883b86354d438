package fixtures

import (
	"fmt"
	"strings"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
)

// BuiltinFixtures are provided by pytest itself and always count as used.
var BuiltinFixtures = []string{
	"request",
	"tmp_path",
	"tmp_path_factory",
	"tmpdir",
	"tmpdir_factory",
	"capfd",
	"capfdbinary",
	"capsys",
	"capsysbinary",
	"caplog",
	"monkeypatch",
	"pytestconfig",
	"recwarn",
	"cache",
	"doctest_namespace",
}

// Analyzer computes dependency depth, cycles, scope mismatches and unused
// fixtures over a set of fixture declarations.
// This analyzer is safe for concurrent use.
type Analyzer struct {
	maxDepth      int
	includeUnused bool
	builtins      map[string]bool
}

// Option is a functional option for configuring Analyzer.
type Option func(*Analyzer)

// WithMaxDepth sets the depth above which fixtures are reported as deeply nested.
func WithMaxDepth(depth int) Option {
	return func(a *Analyzer) {
		a.maxDepth = depth
	}
}

// WithUnused enables unused-fixture detection.
func WithUnused(enabled bool) Option {
	return func(a *Analyzer) {
		a.includeUnused = enabled
	}
}

// WithBuiltins adds names that are always considered used, on top of
// BuiltinFixtures.
func WithBuiltins(names ...string) Option {
	return func(a *Analyzer) {
		for _, name := range names {
			a.builtins[name] = true
		}
	}
}

// New creates a new fixture analyzer.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		maxDepth: DefaultMaxDepth,
		builtins: make(map[string]bool, len(BuiltinFixtures)),
	}
	for _, name := range BuiltinFixtures {
		a.builtins[name] = true
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze runs every check over the declarations and usage sites. It never
// fails: cycles and other defects are reported as issues.
func (a *Analyzer) Analyze(decls []Node, usages []Usage) *Analysis {
	g := BuildGraph(decls)

	analysis := &Analysis{
		GeneratedAt: time.Now().UTC(),
		Nodes:       g.Nodes(),
		Usages:      usages,
		Cycles:      make([][]string, 0),
		Issues:      make([]Issue, 0),
		Threshold:   a.maxDepth,
		graph:       g,
	}
	if analysis.Usages == nil {
		analysis.Usages = make([]Usage, 0)
	}

	analysis.Depths = ComputeDepths(g)
	a.detectDeepNesting(g, analysis)

	analysis.Cycles = DetectCycles(g)
	for _, cycle := range analysis.Cycles {
		analysis.AddIssue(Issue{
			Fixture:  cycle[0],
			Kind:     KindCircular,
			Severity: KindCircular.Severity(),
			Message:  "Circular dependency: " + strings.Join(cycle, " -> "),
			Depth:    CycleDepth,
		})
	}

	for _, issue := range ScopeMismatches(g) {
		issue.Depth = analysis.Depths[issue.Fixture]
		analysis.AddIssue(issue)
	}

	if a.includeUnused {
		for _, name := range a.FindUnused(g, usages) {
			node, _ := g.Node(name)
			loc := node.Location
			analysis.AddIssue(Issue{
				Fixture:  name,
				Kind:     KindUnused,
				Severity: KindUnused.Severity(),
				Message:  fmt.Sprintf("Fixture '%s' appears to be unused", name),
				Location: &loc,
				Depth:    analysis.Depths[name],
			})
		}
	}

	a.summarize(g, analysis)
	return analysis
}

// ComputeDepths returns the dependency depth of every declared fixture.
// A fixture without dependencies has depth 1; otherwise its depth is one
// more than the deepest declared dependency. Undeclared dependencies count
// as 0. Fixtures on or above a cycle get CycleDepth.
func ComputeDepths(g *Graph) map[string]int {
	memo := make(map[string]int, g.Len())

	var depthOf func(name string, path map[string]bool) int
	depthOf = func(name string, path map[string]bool) int {
		if path[name] {
			return CycleDepth
		}
		if d, ok := memo[name]; ok {
			return d
		}
		node, ok := g.Node(name)
		if !ok {
			return 0
		}

		path[name] = true
		defer delete(path, name)

		deepest := 0
		for _, dep := range node.Dependencies {
			if !g.Has(dep) {
				continue
			}
			d := depthOf(dep, path)
			if d == CycleDepth {
				return CycleDepth
			}
			deepest = max(deepest, d)
		}

		// Only completed, cycle-free results are memoized.
		memo[name] = deepest + 1
		return deepest + 1
	}

	depths := make(map[string]int, g.Len())
	for _, name := range g.order {
		if _, ok := memo[name]; !ok {
			depthOf(name, make(map[string]bool))
		}
		if d, ok := memo[name]; ok {
			depths[name] = d
		} else {
			depths[name] = CycleDepth
		}
	}
	return depths
}

// detectDeepNesting reports fixtures deeper than the threshold, in
// declaration order. Cyclic fixtures are left to the cycle check.
func (a *Analyzer) detectDeepNesting(g *Graph, analysis *Analysis) {
	for _, name := range g.order {
		depth := analysis.Depths[name]
		if depth == CycleDepth || depth <= a.maxDepth {
			continue
		}
		node, _ := g.Node(name)
		loc := node.Location
		analysis.AddIssue(Issue{
			Fixture:  name,
			Kind:     KindDeepNesting,
			Severity: KindDeepNesting.Severity(),
			Message:  fmt.Sprintf("Fixture '%s' has depth %d (max: %d)", name, depth, a.maxDepth),
			Location: &loc,
			Depth:    depth,
		})
	}
}

// DetectCycles walks the graph depth-first from every fixture and returns
// each distinct cycle once. A cycle lists the path from the first repeated
// fixture back to itself, e.g. [a b c a].
func DetectCycles(g *Graph) [][]string {
	cycles := make([][]string, 0)
	seen := make(map[string]bool)
	visited := make(map[string]bool, g.Len())

	var path []string
	onPath := make(map[string]int)

	var visit func(name string)
	visit = func(name string) {
		if start, ok := onPath[name]; ok {
			cycle := make([]string, 0, len(path)-start+1)
			cycle = append(cycle, path[start:]...)
			cycle = append(cycle, name)
			key := strings.Join(cycle, "\x00")
			if !seen[key] {
				seen[key] = true
				cycles = append(cycles, cycle)
			}
			return
		}
		if visited[name] {
			return
		}
		node, ok := g.Node(name)
		if !ok {
			return
		}

		onPath[name] = len(path)
		path = append(path, name)
		for _, dep := range node.Dependencies {
			visit(dep)
		}
		path = path[:len(path)-1]
		delete(onPath, name)

		visited[name] = true
	}

	for _, name := range g.order {
		visit(name)
	}
	return cycles
}

// ScopeMismatches reports fixtures that depend on a declared fixture with a
// narrower scope. Each (fixture, dependency) pair is reported once.
func ScopeMismatches(g *Graph) []Issue {
	var issues []Issue
	for _, name := range g.order {
		node, _ := g.Node(name)
		for _, depName := range g.KnownDependencies(name) {
			dep, _ := g.Node(depName)
			if dep.Scope.Rank() >= node.Scope.Rank() {
				continue
			}
			loc := node.Location
			issues = append(issues, Issue{
				Fixture:  name,
				Kind:     KindScopeMismatch,
				Severity: KindScopeMismatch.Severity(),
				Message: fmt.Sprintf("Fixture '%s' (%s scope) depends on '%s' (%s scope)",
					name, node.Scope, depName, dep.Scope),
				Location: &loc,
			})
		}
	}
	return issues
}

// FindUnused returns declared fixtures that no test requests, directly or
// through other fixtures, that are not autouse and not pytest built-ins.
func (a *Analyzer) FindUnused(g *Graph, usages []Usage) []string {
	used := roaring.New()

	var mark func(name string)
	mark = func(name string) {
		idx, ok := g.Index(name)
		if !ok || used.Contains(uint32(idx)) {
			return
		}
		used.Add(uint32(idx))
		node, _ := g.Node(name)
		for _, dep := range node.Dependencies {
			mark(dep)
		}
	}

	for _, u := range usages {
		mark(u.Fixture)
	}
	for _, name := range g.order {
		if node, _ := g.Node(name); node.Autouse {
			mark(name)
		}
	}

	var unused []string
	for i, name := range g.order {
		if used.Contains(uint32(i)) || a.builtins[name] {
			continue
		}
		unused = append(unused, name)
	}
	return unused
}

// summarize fills in the counts not maintained by AddIssue.
func (a *Analyzer) summarize(g *Graph, analysis *Analysis) {
	analysis.Summary.TotalFixtures = g.Len()
	analysis.Summary.TotalUsages = len(analysis.Usages)
	analysis.Summary.ByScope = make(map[Scope]int)
	for _, name := range g.order {
		node, _ := g.Node(name)
		analysis.Summary.ByScope[node.Scope]++
		analysis.Summary.MaxDepth = max(analysis.Summary.MaxDepth, analysis.Depths[name])
	}
}
