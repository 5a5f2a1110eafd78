package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/ballotharvest/internal/model"
)

// JSONWriter outputs the run summary as JSON for tool integration.
type JSONWriter struct {
	baseWriter

	version string

	indent       bool
	indentPrefix string
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables indented output with the given prefix and indent.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint is WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, version string, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
		version:    version,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// JSONSummary wraps the run report with output-only fields.
type JSONSummary struct {
	// Version is the ballotharvest version that produced the run.
	Version string `json:"version"`

	// Report is the run metadata.
	Report *model.HarvestReport `json:"report"`

	// Schema names the columns of the output table.
	Schema model.Schema `json:"schema"`

	// RowCount is the number of harvested rows.
	RowCount int `json:"row_count"`

	// IssueCounts is the number of issues per kind.
	IssueCounts map[model.IssueKind]int `json:"issue_counts"`

	// Issues lists every recorded issue.
	Issues []model.Issue `json:"issues"`
}

// NewJSONSummary builds the JSON view of report.
func NewJSONSummary(report *model.HarvestReport, version string) *JSONSummary {
	s := &JSONSummary{
		Version:     version,
		Report:      report,
		Schema:      model.SchemaFor(report.Source),
		RowCount:    rowCount(report),
		IssueCounts: map[model.IssueKind]int{},
		Issues:      []model.Issue{},
	}
	if report.Issues != nil {
		s.IssueCounts = report.Issues.CountByKind()
		s.Issues = report.Issues.Issues()
	}
	if report.Error != nil && report.ErrorMessage == "" {
		report.ErrorMessage = report.Error.Error()
	}
	return s
}

// Write outputs the summary as JSON followed by a newline.
func (w *JSONWriter) Write(report *model.HarvestReport) (int, error) {
	var (
		data []byte
		err  error
	)
	summary := NewJSONSummary(report, w.version)
	if w.indent {
		data, err = json.MarshalIndent(summary, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(summary)
	}
	if err != nil {
		return 0, err
	}
	data = append(data, '\n')
	return w.output.Write(data)
}
