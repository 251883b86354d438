package mcpserver

// Tool descriptions with interpretation guidance for LLMs.
// Each description explains what the tool does, when to use it,
// how to interpret results, and key thresholds.

func describeAnalyzeFixtures() string {
	return `Analyzes pytest fixtures across a test suite: builds the fixture dependency graph and reports circular dependencies, scope mismatches, deeply nested fixtures and, optionally, unused fixtures.

USE WHEN:
- Tests fail with "recursive dependency involving fixture" or ScopeMismatch errors
- Test setup is slow and fixture chains are suspected
- Cleaning up conftest.py files before a refactor
- Reviewing a change that adds or modifies fixtures

INTERPRETING RESULTS:
- circular (error): fixtures that depend on each other; pytest cannot set them up
- scope_mismatch (warning): a broader fixture (e.g. session) requests a narrower one (e.g. function)
- deep_nesting (warning): a fixture chain deeper than max_depth (default 3); consider flattening
- unused (info): no test requests the fixture directly or through other fixtures; autouse and built-in fixtures are never reported
- depth 1 is a fixture without dependencies; depth -1 marks fixtures on or above a cycle
- When a fixture name is defined more than once, the definition scanned last wins (nested conftest.py overrides its parents)

METRICS RETURNED:
- summary: total_fixtures, total_usages, errors, warnings, infos, max_depth, threshold
- fixtures: name, file, line, scope, dependencies, autouse, params, depth
- issues: fixture, type, severity, message, file, line, depth
- cycles: each distinct cycle as a list of fixture names ending where it started`
}

func describeFixtureGraph() string {
	return `Renders the pytest fixture dependency graph as Graphviz DOT or a Mermaid flowchart.

USE WHEN:
- Explaining how a test's fixtures are wired together
- Visualizing which session-scoped fixtures the suite relies on
- Documenting test infrastructure

INTERPRETING RESULTS:
- Each node is a fixture labelled with its name and scope
- Edges point from a fixture to the fixtures it requests
- Node color encodes scope: session red, package orange, module yellow, class green, function blue
- Dependencies on fixtures that are not declared in the scanned files (pytest built-ins, plugins) are not drawn

METRICS RETURNED:
- A single DOT digraph or Mermaid "graph LR" document`
}
