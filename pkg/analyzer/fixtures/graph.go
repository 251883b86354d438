package fixtures

// Graph maps fixture names to their effective declarations, preserving the
// order in which names were first declared.
type Graph struct {
	order []string
	nodes map[string]*Node
	index map[string]int
}

// BuildGraph folds declarations into a graph. A later declaration of a name
// replaces the earlier one entirely (dependencies are not merged) but keeps
// the slot of the first declaration, so iteration order is stable.
func BuildGraph(decls []Node) *Graph {
	g := &Graph{
		order: make([]string, 0, len(decls)),
		nodes: make(map[string]*Node, len(decls)),
		index: make(map[string]int, len(decls)),
	}
	for i := range decls {
		node := decls[i]
		if node.Scope == "" {
			node.Scope = ScopeFunction
		}
		if _, seen := g.nodes[node.Name]; !seen {
			g.index[node.Name] = len(g.order)
			g.order = append(g.order, node.Name)
		}
		g.nodes[node.Name] = &node
	}
	return g
}

// Len returns the number of distinct fixtures.
func (g *Graph) Len() int {
	return len(g.order)
}

// Names returns fixture names in declaration order.
func (g *Graph) Names() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Node returns the effective declaration for name.
func (g *Graph) Node(name string) (*Node, bool) {
	n, ok := g.nodes[name]
	return n, ok
}

// Has reports whether name is a declared fixture.
func (g *Graph) Has(name string) bool {
	_, ok := g.nodes[name]
	return ok
}

// Index returns the position of name in declaration order.
func (g *Graph) Index(name string) (int, bool) {
	i, ok := g.index[name]
	return i, ok
}

// Nodes returns copies of all effective declarations in order.
func (g *Graph) Nodes() []Node {
	out := make([]Node, 0, len(g.order))
	for _, name := range g.order {
		out = append(out, *g.nodes[name])
	}
	return out
}

// KnownDependencies returns the dependencies of name that are declared
// fixtures, in declaration order with duplicates removed.
func (g *Graph) KnownDependencies(name string) []string {
	node, ok := g.nodes[name]
	if !ok {
		return nil
	}
	seen := make(map[string]bool, len(node.Dependencies))
	var out []string
	for _, dep := range node.Dependencies {
		if seen[dep] || !g.Has(dep) {
			continue
		}
		seen[dep] = true
		out = append(out, dep)
	}
	return out
}
