package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/ballotharvest/internal/model"
)

// MarkdownWriter outputs the run summary in Markdown, built with
// nao1215/markdown.
type MarkdownWriter struct {
	baseWriter

	// maxIssues caps the rows of the issue table. Zero means no cap.
	maxIssues int
}

// MarkdownWriterOption configures a MarkdownWriter.
type MarkdownWriterOption func(*MarkdownWriter)

// WithMaxIssues caps the number of issues listed individually.
func WithMaxIssues(n int) MarkdownWriterOption {
	return func(w *MarkdownWriter) {
		w.maxIssues = n
	}
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer, opts ...MarkdownWriterOption) *MarkdownWriter {
	w := &MarkdownWriter{baseWriter: newBaseWriter(output), maxIssues: 200}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the summary in Markdown format.
func (w *MarkdownWriter) Write(report *model.HarvestReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeStats(md, report)
	w.writeIssues(md, report)

	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Summary generated by [ballotharvest](https://github.com/nao1215/ballotharvest)*")

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.HarvestReport) {
	md.H1("Harvest Summary")
	md.PlainText("")

	rows := [][]string{
		{"Source", string(report.Source)},
		{"Root URL", "`" + report.RootURL + "`"},
		{"Started", report.DateStarted.Format("2006-01-02 15:04:05 MST")},
		{"Elapsed", report.Elapsed().Round(1e6).String()},
		{"Rows", strconv.Itoa(rowCount(report))},
	}
	if report.OutputFile != "" {
		rows = append(rows, []string{"Output File", "`" + report.OutputFile + "`"})
	}
	if report.RunID != 0 {
		rows = append(rows, []string{"Run ID", strconv.FormatInt(report.RunID, 10)})
	}
	rows = append(rows, []string{"Status", statusText(report)})

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeStats(md *markdown.Markdown, report *model.HarvestReport) {
	lines := statLines(report.Stats)
	if len(lines) == 0 {
		return
	}

	rows := make([][]string, len(lines))
	for i, l := range lines {
		rows[i] = []string{l[0], l[1]}
	}
	md.H2("Requests")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Counter", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeIssues(md *markdown.Markdown, report *model.HarvestReport) {
	md.H2("Issues")
	md.PlainText("")

	all := issues(report)
	if len(all) == 0 {
		md.Tip("No issues recorded.")
		md.PlainText("")
		return
	}

	md.Warningf("%d issue(s) recorded. Affected pages or records are missing from the output.", len(all))
	md.PlainText("")

	counts := report.Issues.CountByKind()
	kinds := report.Issues.Kinds()

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Issues by Kind"),
		piechart.WithShowData(true),
	)
	kindRows := make([][]string, 0, len(kinds))
	for _, k := range kinds {
		chart.LabelAndIntValue(string(k), uint64(counts[k])) //nolint:gosec // counts are positive
		kindRows = append(kindRows, []string{string(k), strconv.Itoa(counts[k])})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Kind", "Count"},
		Rows:   kindRows,
	})
	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")

	listed := all
	if w.maxIssues > 0 && len(listed) > w.maxIssues {
		listed = listed[:w.maxIssues]
	}
	rows := make([][]string, len(listed))
	for i, is := range listed {
		rows[i] = []string{string(is.Kind), truncateString(is.URL, 80), truncateString(is.Detail, 80)}
	}
	md.H3("Details")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Kind", "URL", "Detail"},
		Rows:   rows,
	})
	md.PlainText("")
	if len(listed) < len(all) {
		md.Notef("%d more issue(s) not listed.", len(all)-len(listed))
		md.PlainText("")
	}
}

// truncateString truncates s to maxLen bytes with an ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
