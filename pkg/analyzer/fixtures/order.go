package fixtures

import (
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// toDirected converts the fixture graph to a gonum graph with an edge from
// each fixture to every declared dependency. Node IDs are declaration
// indexes. Self-dependencies are skipped as simple graphs reject loops.
func toDirected(g *Graph) *simple.DirectedGraph {
	dg := simple.NewDirectedGraph()
	for i := range g.order {
		dg.AddNode(simple.Node(int64(i)))
	}
	for i, name := range g.order {
		for _, dep := range g.KnownDependencies(name) {
			j := g.index[dep]
			if i == j {
				continue
			}
			dg.SetEdge(simple.Edge{F: simple.Node(int64(i)), T: simple.Node(int64(j))})
		}
	}
	return dg
}

// SetupOrder returns an instantiation order in which every fixture comes
// after all of its declared dependencies. It returns false when the graph
// contains a cycle.
func (a *Analysis) SetupOrder() ([]string, bool) {
	if a.graph == nil {
		return nil, false
	}
	if len(a.Cycles) > 0 {
		return nil, false
	}

	sorted, err := topo.SortStabilized(toDirected(a.graph), byID)
	if err != nil {
		return nil, false
	}

	// topo order puts dependents first; setup runs dependencies first.
	order := make([]string, 0, len(sorted))
	for i := len(sorted) - 1; i >= 0; i-- {
		order = append(order, a.graph.order[sorted[i].ID()])
	}
	return order, true
}

func byID(nodes []graph.Node) {
	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].ID() < nodes[j].ID()
	})
}
