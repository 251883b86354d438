package render

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/fatih/color"
	"github.com/panbanda/fixgraph/internal/output"
	"github.com/panbanda/fixgraph/pkg/analyzer/fixtures"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	reportTitle       = "Fixture Analysis Report"
	scopePreviewNames = 5
	issuesPerKind     = 5
	topDependencies   = 10
)

// Report renders an analysis in every supported output format.
type Report struct {
	analysis *fixtures.Analysis
	verbose  bool
	files    int
}

// ReportOption configures a Report.
type ReportOption func(*Report)

// WithVerbose includes the per-fixture dependency list and setup order.
func WithVerbose(verbose bool) ReportOption {
	return func(r *Report) {
		r.verbose = verbose
	}
}

// WithFileCount records how many files were analyzed.
func WithFileCount(n int) ReportOption {
	return func(r *Report) {
		r.files = n
	}
}

// NewReport wraps an analysis for rendering.
func NewReport(a *fixtures.Analysis, opts ...ReportOption) *Report {
	r := &Report{analysis: a}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RenderData returns the structured record.
func (r *Report) RenderData() any {
	return NewRecord(r.analysis)
}

// RenderDOT writes the fixture graph as DOT.
func (r *Report) RenderDOT(w io.Writer) error {
	return WriteDOT(w, r.analysis)
}

// RenderMermaid writes the fixture graph as a Mermaid flowchart.
func (r *Report) RenderMermaid(w io.Writer) error {
	return WriteMermaid(w, r.analysis)
}

// RenderText writes the human-readable report.
func (r *Report) RenderText(w io.Writer, colored bool) error {
	bold := color.New(color.Bold)
	if !colored {
		bold.DisableColor()
	}

	bold.Fprintln(w, reportTitle)
	fmt.Fprintln(w, strings.Repeat("=", len(reportTitle)))
	fmt.Fprintln(w)

	if err := r.summaryTable().RenderText(w, colored); err != nil {
		return err
	}
	if r.analysis.Summary.TotalFixtures > 0 {
		if err := r.scopeTable().RenderText(w, colored); err != nil {
			return err
		}
	}

	if r.verbose {
		r.dependencySection().RenderText(w, colored)
		fmt.Fprintln(w)
	}

	if len(r.analysis.Issues) == 0 {
		fmt.Fprintln(w, severityText(colored, "ok", "No issues found!"))
		return nil
	}

	bold.Fprintln(w, "Issues")
	fmt.Fprintln(w, "------")
	for _, group := range groupIssues(r.analysis.Issues) {
		fmt.Fprintln(w)
		header := fmt.Sprintf("%s (%d)", strings.ToUpper(group.kind.String()), len(group.issues))
		fmt.Fprintln(w, severityText(colored, string(group.kind.Severity()), header))
		for _, issue := range head(group.issues, issuesPerKind) {
			fmt.Fprintf(w, "  %s\n", issue.Message)
			if issue.Location != nil {
				fmt.Fprintf(w, "    %s:%d\n", issue.Location.File, issue.Location.Line)
			}
		}
		if extra := len(group.issues) - issuesPerKind; extra > 0 {
			fmt.Fprintf(w, "  ... and %d more\n", extra)
		}
	}
	return nil
}

// RenderMarkdown writes the report as markdown.
func (r *Report) RenderMarkdown(w io.Writer) error {
	fmt.Fprintf(w, "# %s\n\n", reportTitle)

	if err := r.summaryTable().RenderMarkdown(w); err != nil {
		return err
	}
	if r.analysis.Summary.TotalFixtures > 0 {
		if err := r.scopeTable().RenderMarkdown(w); err != nil {
			return err
		}
	}
	if r.verbose {
		r.dependencySection().RenderMarkdown(w)
	}

	fmt.Fprint(w, "## Issues\n\n")
	if len(r.analysis.Issues) == 0 {
		fmt.Fprint(w, "No issues found.\n")
		return nil
	}
	for _, group := range groupIssues(r.analysis.Issues) {
		fmt.Fprintf(w, "### %s (%d)\n\n", group.kind, len(group.issues))
		fmt.Fprintln(w, "| Fixture | Severity | Message | Location |")
		fmt.Fprintln(w, "| --- | --- | --- | --- |")
		for _, issue := range group.issues {
			loc := ""
			if issue.Location != nil {
				loc = fmt.Sprintf("`%s:%d`", issue.Location.File, issue.Location.Line)
			}
			fmt.Fprintf(w, "| `%s` | %s | %s | %s |\n",
				issue.Fixture, issue.Severity, escapeMarkdownCell(issue.Message), loc)
		}
		fmt.Fprintln(w)
	}
	return nil
}

func (r *Report) summaryTable() *output.Table {
	p := message.NewPrinter(language.English)
	s := r.analysis.Summary
	rows := [][]string{
		{"Total Fixtures", p.Sprintf("%d", s.TotalFixtures)},
		{"Total Usages", p.Sprintf("%d", s.TotalUsages)},
		{"Errors", p.Sprintf("%d", s.Errors)},
		{"Warnings", p.Sprintf("%d", s.Warnings)},
	}
	if s.Infos > 0 {
		rows = append(rows, []string{"Info", p.Sprintf("%d", s.Infos)})
	}
	if r.files > 0 {
		rows = append([][]string{{"Files Analyzed", p.Sprintf("%d", r.files)}}, rows...)
	}
	return output.NewTable("Summary", []string{"Metric", "Value"}, rows, nil, nil)
}

// scopeTable lists fixtures per scope from broadest to narrowest. Scopes
// outside the known set are appended in first-seen order.
func (r *Report) scopeTable() *output.Table {
	byScope := make(map[fixtures.Scope][]string)
	var extra []fixtures.Scope
	for _, n := range r.analysis.Nodes {
		if _, ok := byScope[n.Scope]; !ok && !slices.Contains(fixtures.Scopes, n.Scope) {
			extra = append(extra, n.Scope)
		}
		byScope[n.Scope] = append(byScope[n.Scope], n.Name)
	}

	var rows [][]string
	for _, scope := range append(slices.Clone(fixtures.Scopes), extra...) {
		names := byScope[scope]
		if len(names) == 0 {
			continue
		}
		preview := strings.Join(head(names, scopePreviewNames), ", ")
		if len(names) > scopePreviewNames {
			preview += fmt.Sprintf(" (+%d)", len(names)-scopePreviewNames)
		}
		rows = append(rows, []string{scope.String(), fmt.Sprint(len(names)), preview})
	}
	return output.NewTable("Fixtures by Scope", []string{"Scope", "Count", "Fixtures"}, rows, nil, nil)
}

// dependencySection lists the deepest fixtures and, for acyclic graphs,
// the order fixtures are set up in.
func (r *Report) dependencySection() *output.Section {
	nodes := slices.Clone(r.analysis.Nodes)
	slices.SortStableFunc(nodes, func(a, b fixtures.Node) int {
		return cmp.Compare(r.analysis.Depths[b.Name], r.analysis.Depths[a.Name])
	})

	var sb strings.Builder
	for _, n := range head(nodes, topDependencies) {
		deps := "(none)"
		if len(n.Dependencies) > 0 {
			deps = strings.Join(n.Dependencies, ", ")
		}
		fmt.Fprintf(&sb, "  %s (depth %d): %s\n", n.Name, r.analysis.Depths[n.Name], deps)
	}

	section := &output.Section{
		Title:   "Fixture Dependencies",
		Content: strings.TrimSuffix(sb.String(), "\n"),
	}
	if order, ok := r.analysis.SetupOrder(); ok && len(order) > 0 {
		section.Sections = append(section.Sections, output.Section{
			Title:   "Setup Order",
			Content: "  " + strings.Join(order, " -> "),
		})
	}
	return section
}

type issueGroup struct {
	kind   fixtures.Kind
	issues []fixtures.Issue
}

// groupIssues buckets issues by kind in order of first appearance.
func groupIssues(issues []fixtures.Issue) []issueGroup {
	var groups []issueGroup
	index := make(map[fixtures.Kind]int)
	for _, issue := range issues {
		i, ok := index[issue.Kind]
		if !ok {
			i = len(groups)
			index[issue.Kind] = i
			groups = append(groups, issueGroup{kind: issue.Kind})
		}
		groups[i].issues = append(groups[i].issues, issue)
	}
	return groups
}

func head[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func escapeMarkdownCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func severityText(colored bool, severity, text string) string {
	if !colored {
		return text
	}
	return output.SeverityColor(severity, text)
}
