// Package report renders a fixture analysis as a standalone HTML page.
package report

import (
	"cmp"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/panbanda/fixgraph/internal/render"
	"github.com/panbanda/fixgraph/pkg/analyzer/fixtures"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

//go:embed template.html
var templateFS embed.FS

// Renderer handles HTML report generation.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer creates a new renderer with the embedded template.
func NewRenderer() (*Renderer, error) {
	funcMap := template.FuncMap{
		"severityClass": func(severity string) string {
			switch severity {
			case string(fixtures.SeverityError):
				return "danger"
			case string(fixtures.SeverityWarning):
				return "warning"
			default:
				return "info"
			}
		},
		"limit": func(items any, n int) any {
			switch v := items.(type) {
			case []render.IssueRecord:
				if len(v) > n {
					return v[:n]
				}
				return v
			case []render.FixtureRecord:
				if len(v) > n {
					return v[:n]
				}
				return v
			default:
				return items
			}
		},
		"title": func(s string) string {
			return cases.Title(language.English).String(strings.ReplaceAll(s, "_", " "))
		},
		"join": strings.Join,
		"truncatePath": func(s string, n int) string {
			if len(s) <= n {
				return s
			}
			parts := strings.Split(s, "/")
			if len(parts) <= 2 {
				return s[:n-3] + "..."
			}
			filename := parts[len(parts)-1]
			if len(filename) >= n-3 {
				return "..." + filename[len(filename)-n+3:]
			}
			remaining := max(n-len(filename)-4, 0)
			prefix := strings.Join(parts[:len(parts)-1], "/")
			if len(prefix) > remaining {
				prefix = prefix[len(prefix)-remaining:]
			}
			return ".../" + prefix + "/" + filename
		},
		"percent": func(a, b int) float64 {
			if b == 0 {
				return 0
			}
			return float64(a) / float64(b) * 100
		},
		"json": func(v any) template.JS {
			b, _ := json.Marshal(v)
			return template.JS(b)
		},
		"num": func(n int) string {
			return message.NewPrinter(language.English).Sprintf("%d", n)
		},
	}

	tmplContent, err := templateFS.ReadFile("template.html")
	if err != nil {
		return nil, err
	}

	tmpl, err := template.New("report").Funcs(funcMap).Parse(string(tmplContent))
	if err != nil {
		return nil, err
	}

	return &Renderer{tmpl: tmpl}, nil
}

// Render writes the HTML report for data.
func (r *Renderer) Render(data *RenderData, w io.Writer) error {
	return r.tmpl.Execute(w, data)
}

// RenderToFile generates HTML and writes it to a file.
func (r *Renderer) RenderToFile(data *RenderData, outputPath string) error {
	f, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer f.Close()

	return r.Render(data, f)
}

// NewRenderData derives the report sections from an analysis.
func NewRenderData(meta Metadata, a *fixtures.Analysis) (*RenderData, error) {
	var mermaid strings.Builder
	if err := render.WriteMermaid(&mermaid, a); err != nil {
		return nil, err
	}
	return buildRenderData(meta, render.NewRecord(a), mermaid.String()), nil
}

// NewRenderDataFromRecord derives the report sections from a record saved
// with "fixgraph analyze -f json". The graph is rebuilt from the fixtures.
func NewRenderDataFromRecord(meta Metadata, rec *render.Record) (*RenderData, error) {
	nodes := make([]fixtures.Node, 0, len(rec.Fixtures))
	for _, f := range rec.Fixtures {
		nodes = append(nodes, fixtures.Node{
			Name:         f.Name,
			Scope:        fixtures.Scope(f.Scope),
			Dependencies: f.Dependencies,
			Params:       f.Params,
			Autouse:      f.Autouse,
			Location:     fixtures.Location{File: f.File, Line: f.Line},
		})
	}

	var mermaid strings.Builder
	if err := render.WriteMermaid(&mermaid, fixtures.New().Analyze(nodes, nil)); err != nil {
		return nil, err
	}
	return buildRenderData(meta, rec, mermaid.String()), nil
}

// LoadRecord reads a JSON analysis record.
func LoadRecord(path string) (*render.Record, error) {
	rec := &render.Record{}
	if err := loadJSON(path, rec); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return rec, nil
}

func buildRenderData(meta Metadata, rec *render.Record, mermaid string) *RenderData {
	data := &RenderData{
		Metadata: meta,
		Record:   rec,
		Mermaid:  mermaid,
	}

	switch {
	case rec.Summary.Errors > 0:
		data.StatusClass = "danger"
	case rec.Summary.Warnings > 0:
		data.StatusClass = "warning"
	default:
		data.StatusClass = "good"
	}

	groupIndex := make(map[string]int)
	for _, issue := range rec.Issues {
		i, ok := groupIndex[issue.Type]
		if !ok {
			i = len(data.Groups)
			groupIndex[issue.Type] = i
			data.Groups = append(data.Groups, IssueGroup{Type: issue.Type, Severity: issue.Severity})
		}
		data.Groups[i].Issues = append(data.Groups[i].Issues, issue)
	}

	counts := make(map[string]int)
	for _, f := range rec.Fixtures {
		counts[f.Scope]++
	}
	for _, s := range fixtures.Scopes {
		if n := counts[s.String()]; n > 0 {
			data.Scopes = append(data.Scopes, ScopeCount{Scope: s.String(), Count: n})
			delete(counts, s.String())
		}
	}
	other := make([]string, 0, len(counts))
	for s := range counts {
		other = append(other, s)
	}
	slices.Sort(other)
	for _, s := range other {
		data.Scopes = append(data.Scopes, ScopeCount{Scope: s, Count: counts[s]})
	}

	data.Deepest = slices.Clone(rec.Fixtures)
	slices.SortStableFunc(data.Deepest, func(a, b render.FixtureRecord) int {
		return cmp.Compare(b.Depth, a.Depth)
	})

	return data
}

func loadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
