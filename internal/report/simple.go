package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/ballotharvest/internal/model"
)

// SimpleWriter outputs a plain-text run summary for terminal display.
type SimpleWriter struct {
	baseWriter

	// verbose lists every issue instead of only the per-kind counts.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose lists every issue.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the summary in human-readable format.
func (w *SimpleWriter) Write(report *model.HarvestReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeStats(&sb, report)
	w.writeIssues(&sb, report)

	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")

	return w.output.Write([]byte(sb.String()))
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.HarvestReport) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                         HARVEST SUMMARY\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Source:     %s\n", report.Source)
	fmt.Fprintf(sb, "Root URL:   %s\n", report.RootURL)
	fmt.Fprintf(sb, "Started:    %s\n", report.DateStarted.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Elapsed:    %s\n", report.Elapsed().Round(1e6))
	fmt.Fprintf(sb, "Rows:       %d\n", rowCount(report))
	if report.OutputFile != "" {
		fmt.Fprintf(sb, "Output:     %s\n", report.OutputFile)
	}
	if report.RunID != 0 {
		fmt.Fprintf(sb, "Run ID:     %d\n", report.RunID)
	}
	fmt.Fprintf(sb, "Status:     %s\n", statusText(report))
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeStats(sb *strings.Builder, report *model.HarvestReport) {
	lines := statLines(report.Stats)
	if len(lines) == 0 {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\nREQUESTS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
	for _, l := range lines {
		fmt.Fprintf(sb, "  %-18s %s\n", l[0]+":", l[1])
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeIssues(sb *strings.Builder, report *model.HarvestReport) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\nISSUES\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	if report.Issues == nil || report.Issues.Len() == 0 {
		sb.WriteString("  No issues recorded\n\n")
		return
	}

	counts := report.Issues.CountByKind()
	for _, kind := range report.Issues.Kinds() {
		fmt.Fprintf(sb, "  %-20s %d\n", string(kind)+":", counts[kind])
	}
	sb.WriteString("\n")

	if !w.verbose {
		return
	}
	for _, is := range issues(report) {
		fmt.Fprintf(sb, "  [%s] %s\n", is.Kind, is.URL)
		if is.Detail != "" {
			fmt.Fprintf(sb, "    %s\n", is.Detail)
		}
	}
	sb.WriteString("\n")
}
