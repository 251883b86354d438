package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/panbanda/fixgraph/pkg/analyzer/fixtures"
	"gonum.org/v1/gonum/graph/encoding"
	"gonum.org/v1/gonum/graph/encoding/dot"
	"gonum.org/v1/gonum/graph/simple"
)

// ScopeColors are the fill colors used for each scope in graph output.
var ScopeColors = map[fixtures.Scope]string{
	fixtures.ScopeSession:  "#ff9999",
	fixtures.ScopePackage:  "#ffcc99",
	fixtures.ScopeModule:   "#ffff99",
	fixtures.ScopeClass:    "#99ff99",
	fixtures.ScopeFunction: "#99ccff",
}

const unknownScopeColor = "#ffffff"

func scopeColor(s fixtures.Scope) string {
	if c, ok := ScopeColors[s]; ok {
		return c
	}
	return unknownScopeColor
}

// fixtureNode is a fixture as a DOT node.
type fixtureNode struct {
	id   int64
	node fixtures.Node
}

func (n fixtureNode) ID() int64 { return n.id }

func (n fixtureNode) DOTID() string { return n.node.Name }

func (n fixtureNode) Attributes() []encoding.Attribute {
	return []encoding.Attribute{
		{Key: "label", Value: n.node.Name + "\n(" + n.node.Scope.String() + ")"},
		{Key: "style", Value: "filled"},
		{Key: "fillcolor", Value: scopeColor(n.node.Scope)},
	}
}

type attrs []encoding.Attribute

func (a attrs) Attributes() []encoding.Attribute { return a }

// dotGraph carries the graph-wide DOT attributes.
type dotGraph struct {
	*simple.DirectedGraph
}

func (g dotGraph) DOTID() string { return "fixtures" }

func (g dotGraph) DOTAttributers() (graph, node, edge encoding.Attributer) {
	return attrs{{Key: "rankdir", Value: "LR"}}, attrs{{Key: "shape", Value: "box"}}, attrs{}
}

// buildDOTGraph converts the analysis into a gonum graph with one node per
// fixture and an edge from each fixture to every declared dependency.
// Self-dependencies are left out as simple graphs cannot hold loops; they
// are reported as circular issues instead.
func buildDOTGraph(a *fixtures.Analysis) dotGraph {
	g := dotGraph{simple.NewDirectedGraph()}
	ids := make(map[string]int64, len(a.Nodes))
	for i, n := range a.Nodes {
		ids[n.Name] = int64(i)
		g.AddNode(fixtureNode{id: int64(i), node: n})
	}
	for _, n := range a.Nodes {
		from := ids[n.Name]
		for _, dep := range n.Dependencies {
			to, ok := ids[dep]
			if !ok || to == from {
				continue
			}
			g.SetEdge(g.NewEdge(g.Node(from), g.Node(to)))
		}
	}
	return g
}

// WriteDOT writes the fixture graph in Graphviz DOT syntax.
func WriteDOT(w io.Writer, a *fixtures.Analysis) error {
	out, err := dot.Marshal(buildDOTGraph(a), "", "", "\t")
	if err != nil {
		return fmt.Errorf("failed to encode DOT graph: %w", err)
	}
	if _, err := w.Write(out); err != nil {
		return err
	}
	_, err = fmt.Fprintln(w)
	return err
}

// WriteMermaid writes the fixture graph as a Mermaid flowchart, one class
// per scope.
func WriteMermaid(w io.Writer, a *fixtures.Analysis) error {
	var sb strings.Builder
	sb.WriteString("graph LR\n")

	ids := make(map[string]string, len(a.Nodes))
	for i, n := range a.Nodes {
		ids[n.Name] = fmt.Sprintf("f%d_%s", i, sanitizeID(n.Name))
	}

	for _, n := range a.Nodes {
		fmt.Fprintf(&sb, "    %s[\"%s<br/>(%s)\"]:::%s\n",
			ids[n.Name], escapeMermaidLabel(n.Name), escapeMermaidLabel(n.Scope.String()), scopeClass(n.Scope))
	}

	for _, n := range a.Nodes {
		seen := make(map[string]bool, len(n.Dependencies))
		for _, dep := range n.Dependencies {
			to, ok := ids[dep]
			if !ok || seen[dep] {
				continue
			}
			seen[dep] = true
			fmt.Fprintf(&sb, "    %s --> %s\n", ids[n.Name], to)
		}
	}

	for _, s := range fixtures.Scopes {
		fmt.Fprintf(&sb, "    classDef %s fill:%s\n", s, ScopeColors[s])
	}
	sb.WriteString("    classDef unknown fill:" + unknownScopeColor + "\n")

	_, err := io.WriteString(w, sb.String())
	return err
}

func scopeClass(s fixtures.Scope) string {
	if _, ok := ScopeColors[s]; ok {
		return s.String()
	}
	return "unknown"
}

// sanitizeID replaces non-alphanumeric characters for Mermaid diagram IDs.
func sanitizeID(id string) string {
	var result strings.Builder
	for _, c := range id {
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			result.WriteRune(c)
		} else {
			result.WriteRune('_')
		}
	}
	return result.String()
}

func escapeMermaidLabel(s string) string {
	return strings.NewReplacer(`"`, "#quot;", "<", "#lt;", ">", "#gt;").Replace(s)
}
