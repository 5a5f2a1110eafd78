package report

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/nao1215/ballotharvest/internal/model"
)

// ErrUnknownFormat is returned for an unsupported summary format.
var ErrUnknownFormat = errors.New("unknown summary format")

// Summary formats.
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
)

// Writer writes a run summary.
type Writer interface {
	// Write outputs the summary of report.
	// Returns the number of bytes written and any error encountered.
	Write(report *model.HarvestReport) (int, error)
}

// NewWriter returns the summary Writer for format.
func NewWriter(format string, output io.Writer, version string) (Writer, error) {
	switch format {
	case FormatText, "":
		return NewSimpleWriter(output), nil
	case FormatMarkdown:
		return NewMarkdownWriter(output), nil
	case FormatJSON:
		return NewJSONWriter(output, version, WithPrettyPrint()), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// FormatForPath picks the summary format from the extension of path:
// .json, .md or .markdown, and .txt. Other paths, including "-", use fallback.
func FormatForPath(path, fallback string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".md", ".markdown":
		return FormatMarkdown
	case ".txt":
		return FormatText
	default:
		return fallback
	}
}

// MultiWriter writes to multiple Writers.
// Our Writer writes reports, not raw bytes, so io.MultiWriter does not apply.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
// Returns the total bytes written and stops on the first error.
func (m *MultiWriter) Write(report *model.HarvestReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for summary writers.
type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// statusText describes how the run ended.
func statusText(report *model.HarvestReport) string {
	switch {
	case report.TimedOut:
		return "Timed out (partial results)"
	case report.ErrorMessage != "":
		return "Error - " + report.ErrorMessage
	case report.Error != nil:
		return "Error - " + report.Error.Error()
	default:
		return "Complete"
	}
}

// rowCount returns the number of harvested rows.
func rowCount(report *model.HarvestReport) int {
	if report.Rows == nil {
		return 0
	}
	return report.Rows.Len()
}

// issues returns the recorded issues.
func issues(report *model.HarvestReport) []model.Issue {
	if report.Issues == nil {
		return nil
	}
	return report.Issues.Issues()
}

// statLines returns the non-zero request counters as label/value pairs.
func statLines(stats model.Stats) [][2]string {
	all := []struct {
		label string
		value int
	}{
		{"Pages visited", stats.PagesVisited},
		{"Results pages", stats.ResultsPages},
		{"Navigation pages", stats.NavigationPages},
		{"List pages", stats.ListPages},
		{"Detail requests", stats.DetailRequests},
		{"Advance requests", stats.AdvanceRequests},
		{"Queries", stats.Queries},
	}
	lines := make([][2]string, 0, len(all))
	for _, s := range all {
		if s.value > 0 {
			lines = append(lines, [2]string{s.label, fmt.Sprint(s.value)})
		}
	}
	return lines
}
