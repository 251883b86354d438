package collector

import (
	"strconv"
	"strings"

	"github.com/panbanda/fixgraph/pkg/analyzer/fixtures"
	"github.com/panbanda/fixgraph/pkg/parser"
	sitter "github.com/smacker/go-tree-sitter"
)

// implicitParams are bound by Python itself, never by pytest.
var implicitParams = map[string]bool{"self": true, "cls": true}

// Extract collects fixture declarations and test usages from a parsed
// Python file. Functions are visited in source order at every nesting level.
func Extract(result *parser.ParseResult, consumerPrefix string) *FileResult {
	out := &FileResult{Path: result.Path}

	parser.WalkTyped(result.Root(), result.Source, func(node *sitter.Node, nodeType string, src []byte) bool {
		if nodeType != "function_definition" {
			return true
		}

		name := parser.GetNodeText(node.ChildByFieldName("name"), src)
		params := parameterNames(node.ChildByFieldName("parameters"), src)
		loc := fixtures.Location{File: result.Path, Line: parser.Line(node)}

		if matched, call := fixtureDecorator(node, src); matched {
			decl := fixtures.Node{
				Name:         name,
				Scope:        fixtures.ScopeFunction,
				Dependencies: params,
				Location:     loc,
			}
			if call != nil {
				applyFixtureArgs(&decl, call, src)
			}
			out.Fixtures = append(out.Fixtures, decl)
		} else if consumerPrefix != "" && strings.HasPrefix(name, consumerPrefix) {
			for _, p := range params {
				out.Usages = append(out.Usages, fixtures.Usage{
					Fixture:  p,
					Consumer: name,
					Location: loc,
				})
			}
		}
		return true
	})

	return out
}

// fixtureDecorator returns whether fn carries a fixture decorator and, for
// the call forms, the call node holding its arguments. When several
// decorators match, the last one wins.
func fixtureDecorator(fn *sitter.Node, src []byte) (bool, *sitter.Node) {
	parent := fn.Parent()
	if parent == nil || parent.Type() != "decorated_definition" {
		return false, nil
	}

	matched := false
	var call *sitter.Node
	for i := range int(parent.NamedChildCount()) {
		dec := parent.NamedChild(i)
		if dec.Type() != "decorator" || dec.NamedChildCount() == 0 {
			continue
		}
		expr := dec.NamedChild(0)
		switch expr.Type() {
		case "identifier", "attribute":
			if isFixtureRef(expr, src) {
				matched, call = true, nil
			}
		case "call":
			if isFixtureRef(expr.ChildByFieldName("function"), src) {
				matched, call = true, expr
			}
		}
	}
	return matched, call
}

// isFixtureRef matches `fixture` and `<anything>.fixture`.
func isFixtureRef(node *sitter.Node, src []byte) bool {
	if node == nil {
		return false
	}
	switch node.Type() {
	case "identifier":
		return parser.GetNodeText(node, src) == "fixture"
	case "attribute":
		return parser.GetNodeText(node.ChildByFieldName("attribute"), src) == "fixture"
	}
	return false
}

// applyFixtureArgs reads the literal keyword arguments of a fixture call.
// Non-literal values are ignored.
func applyFixtureArgs(decl *fixtures.Node, call *sitter.Node, src []byte) {
	args := call.ChildByFieldName("arguments")
	if args == nil {
		return
	}

	for i := range int(args.NamedChildCount()) {
		kw := args.NamedChild(i)
		if kw.Type() != "keyword_argument" {
			continue
		}
		value := kw.ChildByFieldName("value")
		if value == nil {
			continue
		}

		switch parser.GetNodeText(kw.ChildByFieldName("name"), src) {
		case "scope":
			if s, ok := constantText(value, src); ok {
				decl.Scope = fixtures.Scope(s)
			}
		case "autouse":
			if b, ok := constantTruth(value, src); ok {
				decl.Autouse = b
			}
		case "params":
			if value.Type() == "list" {
				decl.Params = listElements(value, src)
			}
		case "name":
			if value.Type() == "string" {
				if s, ok := constantText(value, src); ok && s != "" {
					decl.Name = s
				}
			}
		}
	}
}

// parameterNames returns the names of positional-or-keyword parameters,
// the ones pytest resolves as fixture requests.
func parameterNames(params *sitter.Node, src []byte) []string {
	if params == nil {
		return nil
	}

	names := make([]string, 0, params.NamedChildCount())
	for i := range int(params.NamedChildCount()) {
		p := params.NamedChild(i)

		var name string
		switch p.Type() {
		case "identifier":
			name = parser.GetNodeText(p, src)
		case "default_parameter", "typed_default_parameter":
			name = parser.GetNodeText(p.ChildByFieldName("name"), src)
		case "typed_parameter":
			if p.NamedChildCount() == 0 {
				continue
			}
			inner := p.NamedChild(0)
			switch inner.Type() {
			case "identifier":
				name = parser.GetNodeText(inner, src)
			case "list_splat_pattern":
				return names
			default:
				continue
			}
		case "positional_separator":
			// Everything before `/` is positional-only.
			names = names[:0]
			continue
		case "keyword_separator", "list_splat_pattern":
			return names
		default:
			continue
		}

		if name == "" || implicitParams[name] {
			continue
		}
		names = append(names, name)
	}
	return names
}

// constantText returns the value of a literal constant as Python's str()
// would print it.
func constantText(node *sitter.Node, src []byte) (string, bool) {
	text := parser.GetNodeText(node, src)
	switch node.Type() {
	case "string":
		for i := range int(node.NamedChildCount()) {
			if node.NamedChild(i).Type() == "interpolation" {
				return "", false
			}
		}
		return unquote(text), true
	case "integer", "float":
		return text, true
	case "true":
		return "True", true
	case "false":
		return "False", true
	case "none":
		return "None", true
	}
	return "", false
}

// constantTruth evaluates the truthiness of a literal constant.
func constantTruth(node *sitter.Node, src []byte) (bool, bool) {
	text, ok := constantText(node, src)
	if !ok {
		return false, false
	}
	switch node.Type() {
	case "true":
		return true, true
	case "false", "none":
		return false, true
	case "string":
		return text != "", true
	case "integer", "float":
		f, err := strconv.ParseFloat(strings.ReplaceAll(text, "_", ""), 64)
		if err != nil {
			// hex, octal and binary literals
			n, err := strconv.ParseInt(strings.ReplaceAll(text, "_", ""), 0, 64)
			return err == nil && n != 0, err == nil
		}
		return f != 0, true
	}
	return false, false
}

func listElements(list *sitter.Node, src []byte) []string {
	out := make([]string, 0, list.NamedChildCount())
	for i := range int(list.NamedChildCount()) {
		el := list.NamedChild(i)
		if el.Type() == "comment" {
			continue
		}
		out = append(out, parser.GetNodeText(el, src))
	}
	return out
}

// unquote strips string prefixes and quotes from a Python string literal.
func unquote(s string) string {
	s = strings.TrimLeft(s, "rRbBuUfF")
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if len(s) >= 2*len(q) && strings.HasPrefix(s, q) && strings.HasSuffix(s, q) {
			return s[len(q) : len(s)-len(q)]
		}
	}
	return s
}
